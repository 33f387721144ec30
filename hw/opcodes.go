package hw

import (
	"nescore/emu/log"
)

type addrMode uint8

const (
	implied addrMode = iota
	accumulator
	immediate
	zeroPage
	zeroPageX
	zeroPageY
	absolute
	absoluteX
	absoluteY
	indirect
	indirectX
	indirectY
	relative
)

// number of bytes of an instruction, per addressing mode.
var modeSize = [...]uint8{
	implied:     1,
	accumulator: 1,
	immediate:   2,
	zeroPage:    2,
	zeroPageX:   2,
	zeroPageY:   2,
	absolute:    3,
	absoluteX:   3,
	absoluteY:   3,
	indirect:    3,
	indirectX:   2,
	indirectY:   2,
	relative:    2,
}

// access is the kind of memory access an instruction performs on its operand.
// Indexed writes and read-modify-writes always perform the dummy read of the
// partially computed address, reads only when a page is crossed.
type access uint8

const (
	noAccess access = iota
	readAccess
	writeAccess
	rmwAccess
	manual // the instruction handles its addressing cycles
)

type opcode struct {
	name    string
	mode    addrMode
	access  access
	exec    func(c *CPU, addr uint16)
	illegal bool
}

// operand performs the addressing cycles of the current instruction and
// returns the effective address. For immediate and relative modes it's the
// address of the operand itself.
func (c *CPU) operand(mode addrMode, acc access) uint16 {
	switch mode {
	case implied, accumulator:
		c.Read8(c.PC) // dummy read
		return 0
	case immediate, relative:
		addr := c.PC
		c.PC++
		return addr
	case zeroPage:
		return uint16(c.fetch8())
	case zeroPageX:
		base := c.fetch8()
		c.Read8(uint16(base))
		return uint16(base + c.X)
	case zeroPageY:
		base := c.fetch8()
		c.Read8(uint16(base))
		return uint16(base + c.Y)
	case absolute:
		return c.fetch16()
	case absoluteX:
		return c.indexed(c.fetch16(), c.X, acc)
	case absoluteY:
		return c.indexed(c.fetch16(), c.Y, acc)
	case indirect:
		// The pointer high byte is fetched without carry into the high byte
		// of the pointer address (JMP ($xxFF) bug).
		ptr := c.fetch16()
		lo := c.Read8(ptr)
		hi := c.Read8(ptr&0xFF00 | uint16(uint8(ptr)+1))
		return uint16(hi)<<8 | uint16(lo)
	case indirectX:
		ptr := c.fetch8()
		c.Read8(uint16(ptr))
		ptr += c.X
		lo := c.Read8(uint16(ptr))
		hi := c.Read8(uint16(ptr + 1))
		return uint16(hi)<<8 | uint16(lo)
	case indirectY:
		ptr := c.fetch8()
		lo := c.Read8(uint16(ptr))
		hi := c.Read8(uint16(ptr + 1))
		return c.indexed(uint16(hi)<<8|uint16(lo), c.Y, acc)
	}
	panic("unreachable")
}

func (c *CPU) indexed(base uint16, idx uint8, acc access) uint16 {
	addr := base + uint16(idx)
	if acc != readAccess || pagecrossed(base, addr) {
		c.Read8(base&0xFF00 | addr&0x00FF)
	}
	return addr
}

func pagecrossed(a, b uint16) bool {
	return a&0xFF00 != b&0xFF00
}

var opcodes = [256]opcode{
	0x00: {"BRK", implied, noAccess, brk, false},
	0x01: {"ORA", indirectX, readAccess, ora, false},
	0x02: {"JAM", implied, noAccess, jam, true},
	0x03: {"SLO", indirectX, rmwAccess, slo, true},
	0x04: {"NOP", zeroPage, readAccess, nopRead, true},
	0x05: {"ORA", zeroPage, readAccess, ora, false},
	0x06: {"ASL", zeroPage, rmwAccess, asl, false},
	0x07: {"SLO", zeroPage, rmwAccess, slo, true},
	0x08: {"PHP", implied, noAccess, php, false},
	0x09: {"ORA", immediate, readAccess, ora, false},
	0x0A: {"ASL", accumulator, noAccess, aslA, false},
	0x0B: {"ANC", immediate, readAccess, anc, true},
	0x0C: {"NOP", absolute, readAccess, nopRead, true},
	0x0D: {"ORA", absolute, readAccess, ora, false},
	0x0E: {"ASL", absolute, rmwAccess, asl, false},
	0x0F: {"SLO", absolute, rmwAccess, slo, true},
	0x10: {"BPL", relative, noAccess, branch(Negative, false), false},
	0x11: {"ORA", indirectY, readAccess, ora, false},
	0x12: {"JAM", implied, noAccess, jam, true},
	0x13: {"SLO", indirectY, rmwAccess, slo, true},
	0x14: {"NOP", zeroPageX, readAccess, nopRead, true},
	0x15: {"ORA", zeroPageX, readAccess, ora, false},
	0x16: {"ASL", zeroPageX, rmwAccess, asl, false},
	0x17: {"SLO", zeroPageX, rmwAccess, slo, true},
	0x18: {"CLC", implied, noAccess, flag(Carry, false), false},
	0x19: {"ORA", absoluteY, readAccess, ora, false},
	0x1A: {"NOP", implied, noAccess, nop, true},
	0x1B: {"SLO", absoluteY, rmwAccess, slo, true},
	0x1C: {"NOP", absoluteX, readAccess, nopRead, true},
	0x1D: {"ORA", absoluteX, readAccess, ora, false},
	0x1E: {"ASL", absoluteX, rmwAccess, asl, false},
	0x1F: {"SLO", absoluteX, rmwAccess, slo, true},
	0x20: {"JSR", absolute, manual, jsr, false},
	0x21: {"AND", indirectX, readAccess, and, false},
	0x22: {"JAM", implied, noAccess, jam, true},
	0x23: {"RLA", indirectX, rmwAccess, rla, true},
	0x24: {"BIT", zeroPage, readAccess, bit, false},
	0x25: {"AND", zeroPage, readAccess, and, false},
	0x26: {"ROL", zeroPage, rmwAccess, rol, false},
	0x27: {"RLA", zeroPage, rmwAccess, rla, true},
	0x28: {"PLP", implied, noAccess, plp, false},
	0x29: {"AND", immediate, readAccess, and, false},
	0x2A: {"ROL", accumulator, noAccess, rolA, false},
	0x2B: {"ANC", immediate, readAccess, anc, true},
	0x2C: {"BIT", absolute, readAccess, bit, false},
	0x2D: {"AND", absolute, readAccess, and, false},
	0x2E: {"ROL", absolute, rmwAccess, rol, false},
	0x2F: {"RLA", absolute, rmwAccess, rla, true},
	0x30: {"BMI", relative, noAccess, branch(Negative, true), false},
	0x31: {"AND", indirectY, readAccess, and, false},
	0x32: {"JAM", implied, noAccess, jam, true},
	0x33: {"RLA", indirectY, rmwAccess, rla, true},
	0x34: {"NOP", zeroPageX, readAccess, nopRead, true},
	0x35: {"AND", zeroPageX, readAccess, and, false},
	0x36: {"ROL", zeroPageX, rmwAccess, rol, false},
	0x37: {"RLA", zeroPageX, rmwAccess, rla, true},
	0x38: {"SEC", implied, noAccess, flag(Carry, true), false},
	0x39: {"AND", absoluteY, readAccess, and, false},
	0x3A: {"NOP", implied, noAccess, nop, true},
	0x3B: {"RLA", absoluteY, rmwAccess, rla, true},
	0x3C: {"NOP", absoluteX, readAccess, nopRead, true},
	0x3D: {"AND", absoluteX, readAccess, and, false},
	0x3E: {"ROL", absoluteX, rmwAccess, rol, false},
	0x3F: {"RLA", absoluteX, rmwAccess, rla, true},
	0x40: {"RTI", implied, noAccess, rti, false},
	0x41: {"EOR", indirectX, readAccess, eor, false},
	0x42: {"JAM", implied, noAccess, jam, true},
	0x43: {"SRE", indirectX, rmwAccess, sre, true},
	0x44: {"NOP", zeroPage, readAccess, nopRead, true},
	0x45: {"EOR", zeroPage, readAccess, eor, false},
	0x46: {"LSR", zeroPage, rmwAccess, lsr, false},
	0x47: {"SRE", zeroPage, rmwAccess, sre, true},
	0x48: {"PHA", implied, noAccess, pha, false},
	0x49: {"EOR", immediate, readAccess, eor, false},
	0x4A: {"LSR", accumulator, noAccess, lsrA, false},
	0x4B: {"ALR", immediate, readAccess, alr, true},
	0x4C: {"JMP", absolute, noAccess, jmp, false},
	0x4D: {"EOR", absolute, readAccess, eor, false},
	0x4E: {"LSR", absolute, rmwAccess, lsr, false},
	0x4F: {"SRE", absolute, rmwAccess, sre, true},
	0x50: {"BVC", relative, noAccess, branch(Overflow, false), false},
	0x51: {"EOR", indirectY, readAccess, eor, false},
	0x52: {"JAM", implied, noAccess, jam, true},
	0x53: {"SRE", indirectY, rmwAccess, sre, true},
	0x54: {"NOP", zeroPageX, readAccess, nopRead, true},
	0x55: {"EOR", zeroPageX, readAccess, eor, false},
	0x56: {"LSR", zeroPageX, rmwAccess, lsr, false},
	0x57: {"SRE", zeroPageX, rmwAccess, sre, true},
	0x58: {"CLI", implied, noAccess, flag(IntDisable, false), false},
	0x59: {"EOR", absoluteY, readAccess, eor, false},
	0x5A: {"NOP", implied, noAccess, nop, true},
	0x5B: {"SRE", absoluteY, rmwAccess, sre, true},
	0x5C: {"NOP", absoluteX, readAccess, nopRead, true},
	0x5D: {"EOR", absoluteX, readAccess, eor, false},
	0x5E: {"LSR", absoluteX, rmwAccess, lsr, false},
	0x5F: {"SRE", absoluteX, rmwAccess, sre, true},
	0x60: {"RTS", implied, noAccess, rts, false},
	0x61: {"ADC", indirectX, readAccess, adc, false},
	0x62: {"JAM", implied, noAccess, jam, true},
	0x63: {"RRA", indirectX, rmwAccess, rra, true},
	0x64: {"NOP", zeroPage, readAccess, nopRead, true},
	0x65: {"ADC", zeroPage, readAccess, adc, false},
	0x66: {"ROR", zeroPage, rmwAccess, ror, false},
	0x67: {"RRA", zeroPage, rmwAccess, rra, true},
	0x68: {"PLA", implied, noAccess, pla, false},
	0x69: {"ADC", immediate, readAccess, adc, false},
	0x6A: {"ROR", accumulator, noAccess, rorA, false},
	0x6B: {"ARR", immediate, readAccess, arr, true},
	0x6C: {"JMP", indirect, noAccess, jmp, false},
	0x6D: {"ADC", absolute, readAccess, adc, false},
	0x6E: {"ROR", absolute, rmwAccess, ror, false},
	0x6F: {"RRA", absolute, rmwAccess, rra, true},
	0x70: {"BVS", relative, noAccess, branch(Overflow, true), false},
	0x71: {"ADC", indirectY, readAccess, adc, false},
	0x72: {"JAM", implied, noAccess, jam, true},
	0x73: {"RRA", indirectY, rmwAccess, rra, true},
	0x74: {"NOP", zeroPageX, readAccess, nopRead, true},
	0x75: {"ADC", zeroPageX, readAccess, adc, false},
	0x76: {"ROR", zeroPageX, rmwAccess, ror, false},
	0x77: {"RRA", zeroPageX, rmwAccess, rra, true},
	0x78: {"SEI", implied, noAccess, flag(IntDisable, true), false},
	0x79: {"ADC", absoluteY, readAccess, adc, false},
	0x7A: {"NOP", implied, noAccess, nop, true},
	0x7B: {"RRA", absoluteY, rmwAccess, rra, true},
	0x7C: {"NOP", absoluteX, readAccess, nopRead, true},
	0x7D: {"ADC", absoluteX, readAccess, adc, false},
	0x7E: {"ROR", absoluteX, rmwAccess, ror, false},
	0x7F: {"RRA", absoluteX, rmwAccess, rra, true},
	0x80: {"NOP", immediate, readAccess, nopRead, true},
	0x81: {"STA", indirectX, writeAccess, sta, false},
	0x82: {"NOP", immediate, readAccess, nopRead, true},
	0x83: {"SAX", indirectX, writeAccess, sax, true},
	0x84: {"STY", zeroPage, writeAccess, sty, false},
	0x85: {"STA", zeroPage, writeAccess, sta, false},
	0x86: {"STX", zeroPage, writeAccess, stx, false},
	0x87: {"SAX", zeroPage, writeAccess, sax, true},
	0x88: {"DEY", implied, noAccess, dey, false},
	0x89: {"NOP", immediate, readAccess, nopRead, true},
	0x8A: {"TXA", implied, noAccess, txa, false},
	0x8B: {"XAA", immediate, readAccess, unstable, true},
	0x8C: {"STY", absolute, writeAccess, sty, false},
	0x8D: {"STA", absolute, writeAccess, sta, false},
	0x8E: {"STX", absolute, writeAccess, stx, false},
	0x8F: {"SAX", absolute, writeAccess, sax, true},
	0x90: {"BCC", relative, noAccess, branch(Carry, false), false},
	0x91: {"STA", indirectY, writeAccess, sta, false},
	0x92: {"JAM", implied, noAccess, jam, true},
	0x93: {"AHX", indirectY, writeAccess, unstable, true},
	0x94: {"STY", zeroPageX, writeAccess, sty, false},
	0x95: {"STA", zeroPageX, writeAccess, sta, false},
	0x96: {"STX", zeroPageY, writeAccess, stx, false},
	0x97: {"SAX", zeroPageY, writeAccess, sax, true},
	0x98: {"TYA", implied, noAccess, tya, false},
	0x99: {"STA", absoluteY, writeAccess, sta, false},
	0x9A: {"TXS", implied, noAccess, txs, false},
	0x9B: {"TAS", absoluteY, writeAccess, unstable, true},
	0x9C: {"SHY", absoluteX, writeAccess, unstable, true},
	0x9D: {"STA", absoluteX, writeAccess, sta, false},
	0x9E: {"SHX", absoluteY, writeAccess, unstable, true},
	0x9F: {"AHX", absoluteY, writeAccess, unstable, true},
	0xA0: {"LDY", immediate, readAccess, ldy, false},
	0xA1: {"LDA", indirectX, readAccess, lda, false},
	0xA2: {"LDX", immediate, readAccess, ldx, false},
	0xA3: {"LAX", indirectX, readAccess, lax, true},
	0xA4: {"LDY", zeroPage, readAccess, ldy, false},
	0xA5: {"LDA", zeroPage, readAccess, lda, false},
	0xA6: {"LDX", zeroPage, readAccess, ldx, false},
	0xA7: {"LAX", zeroPage, readAccess, lax, true},
	0xA8: {"TAY", implied, noAccess, tay, false},
	0xA9: {"LDA", immediate, readAccess, lda, false},
	0xAA: {"TAX", implied, noAccess, tax, false},
	0xAB: {"LXA", immediate, readAccess, unstable, true},
	0xAC: {"LDY", absolute, readAccess, ldy, false},
	0xAD: {"LDA", absolute, readAccess, lda, false},
	0xAE: {"LDX", absolute, readAccess, ldx, false},
	0xAF: {"LAX", absolute, readAccess, lax, true},
	0xB0: {"BCS", relative, noAccess, branch(Carry, true), false},
	0xB1: {"LDA", indirectY, readAccess, lda, false},
	0xB2: {"JAM", implied, noAccess, jam, true},
	0xB3: {"LAX", indirectY, readAccess, lax, true},
	0xB4: {"LDY", zeroPageX, readAccess, ldy, false},
	0xB5: {"LDA", zeroPageX, readAccess, lda, false},
	0xB6: {"LDX", zeroPageY, readAccess, ldx, false},
	0xB7: {"LAX", zeroPageY, readAccess, lax, true},
	0xB8: {"CLV", implied, noAccess, flag(Overflow, false), false},
	0xB9: {"LDA", absoluteY, readAccess, lda, false},
	0xBA: {"TSX", implied, noAccess, tsx, false},
	0xBB: {"LAS", absoluteY, readAccess, unstable, true},
	0xBC: {"LDY", absoluteX, readAccess, ldy, false},
	0xBD: {"LDA", absoluteX, readAccess, lda, false},
	0xBE: {"LDX", absoluteY, readAccess, ldx, false},
	0xBF: {"LAX", absoluteY, readAccess, lax, true},
	0xC0: {"CPY", immediate, readAccess, cpy, false},
	0xC1: {"CMP", indirectX, readAccess, cmpa, false},
	0xC2: {"NOP", immediate, readAccess, nopRead, true},
	0xC3: {"DCP", indirectX, rmwAccess, dcp, true},
	0xC4: {"CPY", zeroPage, readAccess, cpy, false},
	0xC5: {"CMP", zeroPage, readAccess, cmpa, false},
	0xC6: {"DEC", zeroPage, rmwAccess, dec, false},
	0xC7: {"DCP", zeroPage, rmwAccess, dcp, true},
	0xC8: {"INY", implied, noAccess, iny, false},
	0xC9: {"CMP", immediate, readAccess, cmpa, false},
	0xCA: {"DEX", implied, noAccess, dex, false},
	0xCB: {"SBX", immediate, readAccess, sbx, true},
	0xCC: {"CPY", absolute, readAccess, cpy, false},
	0xCD: {"CMP", absolute, readAccess, cmpa, false},
	0xCE: {"DEC", absolute, rmwAccess, dec, false},
	0xCF: {"DCP", absolute, rmwAccess, dcp, true},
	0xD0: {"BNE", relative, noAccess, branch(Zero, false), false},
	0xD1: {"CMP", indirectY, readAccess, cmpa, false},
	0xD2: {"JAM", implied, noAccess, jam, true},
	0xD3: {"DCP", indirectY, rmwAccess, dcp, true},
	0xD4: {"NOP", zeroPageX, readAccess, nopRead, true},
	0xD5: {"CMP", zeroPageX, readAccess, cmpa, false},
	0xD6: {"DEC", zeroPageX, rmwAccess, dec, false},
	0xD7: {"DCP", zeroPageX, rmwAccess, dcp, true},
	0xD8: {"CLD", implied, noAccess, flag(Decimal, false), false},
	0xD9: {"CMP", absoluteY, readAccess, cmpa, false},
	0xDA: {"NOP", implied, noAccess, nop, true},
	0xDB: {"DCP", absoluteY, rmwAccess, dcp, true},
	0xDC: {"NOP", absoluteX, readAccess, nopRead, true},
	0xDD: {"CMP", absoluteX, readAccess, cmpa, false},
	0xDE: {"DEC", absoluteX, rmwAccess, dec, false},
	0xDF: {"DCP", absoluteX, rmwAccess, dcp, true},
	0xE0: {"CPX", immediate, readAccess, cpx, false},
	0xE1: {"SBC", indirectX, readAccess, sbc, false},
	0xE2: {"NOP", immediate, readAccess, nopRead, true},
	0xE3: {"ISB", indirectX, rmwAccess, isb, true},
	0xE4: {"CPX", zeroPage, readAccess, cpx, false},
	0xE5: {"SBC", zeroPage, readAccess, sbc, false},
	0xE6: {"INC", zeroPage, rmwAccess, inc, false},
	0xE7: {"ISB", zeroPage, rmwAccess, isb, true},
	0xE8: {"INX", implied, noAccess, inx, false},
	0xE9: {"SBC", immediate, readAccess, sbc, false},
	0xEA: {"NOP", implied, noAccess, nop, false},
	0xEB: {"SBC", immediate, readAccess, sbc, true},
	0xEC: {"CPX", absolute, readAccess, cpx, false},
	0xED: {"SBC", absolute, readAccess, sbc, false},
	0xEE: {"INC", absolute, rmwAccess, inc, false},
	0xEF: {"ISB", absolute, rmwAccess, isb, true},
	0xF0: {"BEQ", relative, noAccess, branch(Zero, true), false},
	0xF1: {"SBC", indirectY, readAccess, sbc, false},
	0xF2: {"JAM", implied, noAccess, jam, true},
	0xF3: {"ISB", indirectY, rmwAccess, isb, true},
	0xF4: {"NOP", zeroPageX, readAccess, nopRead, true},
	0xF5: {"SBC", zeroPageX, readAccess, sbc, false},
	0xF6: {"INC", zeroPageX, rmwAccess, inc, false},
	0xF7: {"ISB", zeroPageX, rmwAccess, isb, true},
	0xF8: {"SED", implied, noAccess, flag(Decimal, true), false},
	0xF9: {"SBC", absoluteY, readAccess, sbc, false},
	0xFA: {"NOP", implied, noAccess, nop, true},
	0xFB: {"ISB", absoluteY, rmwAccess, isb, true},
	0xFC: {"NOP", absoluteX, readAccess, nopRead, true},
	0xFD: {"SBC", absoluteX, readAccess, sbc, false},
	0xFE: {"INC", absoluteX, rmwAccess, inc, false},
	0xFF: {"ISB", absoluteX, rmwAccess, isb, true},
}

/* loads, stores and transfers */

func lda(c *CPU, addr uint16) {
	c.A = c.Read8(addr)
	c.P.checkNZ(c.A)
}

func ldx(c *CPU, addr uint16) {
	c.X = c.Read8(addr)
	c.P.checkNZ(c.X)
}

func ldy(c *CPU, addr uint16) {
	c.Y = c.Read8(addr)
	c.P.checkNZ(c.Y)
}

func lax(c *CPU, addr uint16) {
	c.A = c.Read8(addr)
	c.X = c.A
	c.P.checkNZ(c.A)
}

func sta(c *CPU, addr uint16) { c.Write8(addr, c.A) }
func stx(c *CPU, addr uint16) { c.Write8(addr, c.X) }
func sty(c *CPU, addr uint16) { c.Write8(addr, c.Y) }
func sax(c *CPU, addr uint16) { c.Write8(addr, c.A&c.X) }

func (c *CPU) setreg(reg *uint8, val uint8) {
	*reg = val
	c.P.checkNZ(val)
}

func tax(c *CPU, _ uint16) { c.setreg(&c.X, c.A) }
func tay(c *CPU, _ uint16) { c.setreg(&c.Y, c.A) }
func txa(c *CPU, _ uint16) { c.setreg(&c.A, c.X) }
func tya(c *CPU, _ uint16) { c.setreg(&c.A, c.Y) }
func tsx(c *CPU, _ uint16) { c.setreg(&c.X, c.SP) }
func txs(c *CPU, _ uint16) { c.SP = c.X }
func inx(c *CPU, _ uint16) { c.setreg(&c.X, c.X+1) }
func iny(c *CPU, _ uint16) { c.setreg(&c.Y, c.Y+1) }
func dex(c *CPU, _ uint16) { c.setreg(&c.X, c.X-1) }
func dey(c *CPU, _ uint16) { c.setreg(&c.Y, c.Y-1) }

func flag(f P, on bool) func(*CPU, uint16) {
	return func(c *CPU, _ uint16) { c.P.set(f, on) }
}

/* arithmetic and logic */

func (c *CPU) add(v uint8) {
	sum := uint16(c.A) + uint16(v) + uint16(c.P.carry())
	c.P.checkCV(c.A, v, sum)
	c.setreg(&c.A, uint8(sum))
}

func (c *CPU) compare(reg, v uint8) {
	c.P.set(Carry, reg >= v)
	c.P.checkNZ(reg - v)
}

func adc(c *CPU, addr uint16)  { c.add(c.Read8(addr)) }
func sbc(c *CPU, addr uint16)  { c.add(^c.Read8(addr)) }
func and(c *CPU, addr uint16)  { c.setreg(&c.A, c.A&c.Read8(addr)) }
func ora(c *CPU, addr uint16)  { c.setreg(&c.A, c.A|c.Read8(addr)) }
func eor(c *CPU, addr uint16)  { c.setreg(&c.A, c.A^c.Read8(addr)) }
func cmpa(c *CPU, addr uint16) { c.compare(c.A, c.Read8(addr)) }
func cpx(c *CPU, addr uint16)  { c.compare(c.X, c.Read8(addr)) }
func cpy(c *CPU, addr uint16)  { c.compare(c.Y, c.Read8(addr)) }

func bit(c *CPU, addr uint16) {
	v := c.Read8(addr)
	c.P.set(Zero, c.A&v == 0)
	c.P.set(Negative, v&0x80 != 0)
	c.P.set(Overflow, v&0x40 != 0)
}

/* shifts, rotations, increments */

// rmw performs the read-modify-write cycles: the original value is written
// back unmodified before the result.
func (c *CPU) rmw(addr uint16, f func(uint8) uint8) uint8 {
	v := c.Read8(addr)
	c.Write8(addr, v)
	v = f(v)
	c.Write8(addr, v)
	return v
}

func (c *CPU) shl(v uint8) uint8 {
	c.P.set(Carry, v&0x80 != 0)
	v <<= 1
	c.P.checkNZ(v)
	return v
}

func (c *CPU) shr(v uint8) uint8 {
	c.P.set(Carry, v&0x01 != 0)
	v >>= 1
	c.P.checkNZ(v)
	return v
}

func (c *CPU) rotl(v uint8) uint8 {
	carry := c.P.carry()
	c.P.set(Carry, v&0x80 != 0)
	v = v<<1 | carry
	c.P.checkNZ(v)
	return v
}

func (c *CPU) rotr(v uint8) uint8 {
	carry := c.P.carry()
	c.P.set(Carry, v&0x01 != 0)
	v = v>>1 | carry<<7
	c.P.checkNZ(v)
	return v
}

func (c *CPU) incr(v uint8) uint8 {
	c.P.checkNZ(v + 1)
	return v + 1
}

func (c *CPU) decr(v uint8) uint8 {
	c.P.checkNZ(v - 1)
	return v - 1
}

func aslA(c *CPU, _ uint16) { c.A = c.shl(c.A) }
func lsrA(c *CPU, _ uint16) { c.A = c.shr(c.A) }
func rolA(c *CPU, _ uint16) { c.A = c.rotl(c.A) }
func rorA(c *CPU, _ uint16) { c.A = c.rotr(c.A) }

func asl(c *CPU, addr uint16) { c.rmw(addr, c.shl) }
func lsr(c *CPU, addr uint16) { c.rmw(addr, c.shr) }
func rol(c *CPU, addr uint16) { c.rmw(addr, c.rotl) }
func ror(c *CPU, addr uint16) { c.rmw(addr, c.rotr) }
func inc(c *CPU, addr uint16) { c.rmw(addr, c.incr) }
func dec(c *CPU, addr uint16) { c.rmw(addr, c.decr) }

/* undocumented, stable */

func slo(c *CPU, addr uint16) { c.setreg(&c.A, c.A|c.rmw(addr, c.shl)) }
func rla(c *CPU, addr uint16) { c.setreg(&c.A, c.A&c.rmw(addr, c.rotl)) }
func sre(c *CPU, addr uint16) { c.setreg(&c.A, c.A^c.rmw(addr, c.shr)) }
func rra(c *CPU, addr uint16) { c.add(c.rmw(addr, c.rotr)) }
func isb(c *CPU, addr uint16) { c.add(^c.rmw(addr, func(v uint8) uint8 { return v + 1 })) }

func dcp(c *CPU, addr uint16) {
	c.compare(c.A, c.rmw(addr, func(v uint8) uint8 { return v - 1 }))
}

func anc(c *CPU, addr uint16) {
	c.setreg(&c.A, c.A&c.Read8(addr))
	c.P.set(Carry, c.P.has(Negative))
}

func alr(c *CPU, addr uint16) {
	c.A = c.shr(c.A & c.Read8(addr))
}

func arr(c *CPU, addr uint16) {
	v := c.A & c.Read8(addr)
	c.setreg(&c.A, v>>1|c.P.carry()<<7)
	c.P.set(Carry, c.A&0x40 != 0)
	c.P.set(Overflow, (c.A>>6^c.A>>5)&1 != 0)
}

func sbx(c *CPU, addr uint16) {
	v := c.Read8(addr)
	ax := c.A & c.X
	c.P.set(Carry, ax >= v)
	c.setreg(&c.X, ax-v)
}

func nop(*CPU, uint16) {}

func nopRead(c *CPU, addr uint16) { c.Read8(addr) }

/* undocumented, unstable */

func (c *CPU) warnIllegal() {
	if c.warned[c.op] {
		return
	}
	c.warned[c.op] = true
	log.ModCPU.WarnZ("unsupported opcode executed as NOP").
		Hex8("opcode", c.op).
		Hex16("PC", c.PC).
		End()
}

func unstable(c *CPU, addr uint16) {
	c.warnIllegal()
	c.Read8(addr)
}

func jam(c *CPU, _ uint16) {
	c.warnIllegal()
}

/* control flow */

func branch(f P, want bool) func(*CPU, uint16) {
	return func(c *CPU, addr uint16) {
		off := int8(c.Read8(addr))
		if c.P.has(f) != want {
			return
		}

		// A taken non-page-crossing branch ignores IRQ during its last cycle,
		// so that the next instruction runs before the interrupt.
		if c.runIRQ && !c.prevRunIRQ {
			c.runIRQ = false
		}

		c.Read8(c.PC)
		target := c.PC + uint16(off)
		if pagecrossed(c.PC, target) {
			c.Read8(c.PC&0xFF00 | target&0x00FF)
		}
		c.PC = target
	}
}

func jmp(c *CPU, addr uint16) { c.PC = addr }

func jsr(c *CPU, _ uint16) {
	lo := c.fetch8()
	c.Read8(0x0100 | uint16(c.SP)) // dummy stack read
	c.push16(c.PC)
	hi := c.Read8(c.PC)
	c.PC = uint16(hi)<<8 | uint16(lo)
}

func rts(c *CPU, _ uint16) {
	c.Read8(0x0100 | uint16(c.SP))
	c.PC = c.pull16()
	c.Read8(c.PC)
	c.PC++
}

func rti(c *CPU, _ uint16) {
	c.Read8(0x0100 | uint16(c.SP))
	c.P = fromStack(c.pull8())
	c.PC = c.pull16()
}

func brk(c *CPU, _ uint16) {
	c.push16(c.PC + 1)

	p := c.P | Break | Unused
	if c.needNmi {
		c.needNmi = false
		c.push8(uint8(p))
		c.P.set(IntDisable, true)
		c.PC = c.Read16(NMIVector)
	} else {
		c.push8(uint8(p))
		c.P.set(IntDisable, true)
		c.PC = c.Read16(IRQVector)
	}

	// The first instruction of the handler must run before an NMI.
	c.prevNeedNmi = false
}

func pha(c *CPU, _ uint16) { c.push8(c.A) }
func php(c *CPU, _ uint16) { c.push8(uint8(c.P | Break | Unused)) }

func pla(c *CPU, _ uint16) {
	c.Read8(0x0100 | uint16(c.SP))
	c.setreg(&c.A, c.pull8())
}

func plp(c *CPU, _ uint16) {
	c.Read8(0x0100 | uint16(c.SP))
	c.P = fromStack(c.pull8())
}
