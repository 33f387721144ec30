package hw

// P is the processor status register.
type P uint8

const (
	Carry P = 1 << iota
	Zero
	IntDisable
	Decimal
	Break
	Unused
	Overflow
	Negative
)

func (p P) String() string {
	const bits = "nvubdizcNVUBDIZC"

	s := make([]byte, 8)
	for i := 0; i < 8; i++ {
		ibit := (uint8(p) & (1 << (7 - i))) >> (7 - i)
		s[i] = bits[i+int(8*ibit)]
	}
	return string(s)
}

func (p P) has(f P) bool { return p&f != 0 }

func (p *P) set(f P, on bool) {
	if on {
		*p |= f
	} else {
		*p &^= f
	}
}

// carry returns the carry bit, as a number.
func (p P) carry() uint8 { return uint8(p & Carry) }

func (p *P) checkNZ(v uint8) {
	p.set(Zero, v == 0)
	p.set(Negative, v&0x80 != 0)
}

// checkCV sets carry and overflow after x+y(+carry) gave sum.
func (p *P) checkCV(x, y uint8, sum uint16) {
	p.set(Carry, sum > 0xFF)

	// signed overflow, can only happen if the sign of the sum differs
	// from that of both operands.
	p.set(Overflow, (uint16(x)^sum)&(uint16(y)^sum)&0x80 != 0)
}

// fromStack returns the value of P once pulled from the stack, B doesn't exist
// in the register and U always reads as set.
func fromStack(v uint8) P {
	return P(v)&^Break | Unused
}
