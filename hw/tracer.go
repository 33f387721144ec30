package hw

import (
	"fmt"
	"io"
)

// cpuState stores the CPU state for the execution trace.
type cpuState struct {
	A, X, Y uint8
	P       P
	SP      uint8
	PC      uint16

	Clock    int64
	PPUCycle int
	Scanline int
}

type disasmer interface {
	Disasm(pc uint16) DisasmOp
}

type tracer struct {
	d   disasmer
	w   io.Writer
	ppu *PPU // nil if not traced
}

func (c *CPU) traceState() cpuState {
	state := cpuState{
		A:     c.A,
		X:     c.X,
		Y:     c.Y,
		P:     c.P,
		SP:    c.SP,
		PC:    c.PC,
		Clock: c.Cycles,
	}
	if c.tracer.ppu != nil {
		state.PPUCycle = c.tracer.ppu.Cycle
		state.Scanline = c.tracer.ppu.Scanline
	}
	return state
}

func hexEncode(dst []byte, v byte) {
	const hextable = "0123456789ABCDEF"
	dst[0] = hextable[v>>4]
	dst[1] = hextable[v&0x0f]
}

// write the execution trace line of the instruction about to be executed.
func (t *tracer) write(state cpuState) {
	buf := t.d.Disasm(state.PC).Bytes()
	for len(buf) < 49 {
		buf = append(buf, ' ')
	}

	scanline := state.Scanline
	if scanline == 261 {
		scanline = -1
	}

	buf = fmt.Appendf(buf, "A:%02X X:%02X Y:%02X P:%02X S:%02X PPU:%-3d,%-3d %d\n",
		state.A, state.X, state.Y, uint8(state.P), state.SP,
		scanline, state.PPUCycle, state.Clock)
	t.w.Write(buf)
}

type DisasmOp struct {
	Opcode string
	Oper   string
	Buf    []byte
	PC     uint16
}

func (d DisasmOp) String() string {
	return string(d.Bytes())
}

// Bytes returns the representation of a DisasmOp, address, instruction
// bytes, then mnemonic and operand, padded to 48 characters.
func (d DisasmOp) Bytes() []byte {
	const totalLen = 48
	buf := make([]byte, 0, totalLen)

	var hex [2]byte
	hexEncode(hex[:], byte(d.PC>>8))
	buf = append(buf, hex[:]...)
	hexEncode(hex[:], byte(d.PC))
	buf = append(buf, hex[:]...)
	buf = append(buf, ' ', ' ')

	for _, b := range d.Buf {
		hexEncode(hex[:], b)
		buf = append(buf, hex[0], hex[1], ' ')
	}
	for len(buf) < 16 {
		buf = append(buf, ' ')
	}

	buf = append(buf, d.Opcode...)
	buf = append(buf, ' ')
	buf = append(buf, d.Oper...)
	if len(buf) >= totalLen {
		return append(buf, ' ')
	}
	for len(buf) < totalLen {
		buf = append(buf, ' ')
	}
	return buf
}

// Disasm disassembles the instruction at pc, without side effects.
func (c *CPU) Disasm(pc uint16) DisasmOp {
	opcode := c.Bus.Peek8(pc)
	op := &opcodes[opcode]

	d := DisasmOp{
		Opcode: op.name,
		PC:     pc,
		Buf:    make([]byte, modeSize[op.mode]),
	}
	if op.illegal {
		d.Opcode = "*" + op.name
	}
	for i := range d.Buf {
		d.Buf[i] = c.Bus.Peek8(pc + uint16(i))
	}

	var oper8 uint8
	var oper16 uint16
	if len(d.Buf) > 1 {
		oper8 = d.Buf[1]
		oper16 = uint16(oper8)
	}
	if len(d.Buf) > 2 {
		oper16 |= uint16(d.Buf[2]) << 8
	}

	switch op.mode {
	case implied:
	case accumulator:
		d.Oper = "A"
	case immediate:
		d.Oper = fmt.Sprintf("#$%02X", oper8)
	case zeroPage:
		d.Oper = fmt.Sprintf("$%02X", oper8)
	case zeroPageX:
		d.Oper = fmt.Sprintf("$%02X,X", oper8)
	case zeroPageY:
		d.Oper = fmt.Sprintf("$%02X,Y", oper8)
	case absolute:
		d.Oper = formatAddr(oper16)
	case absoluteX:
		d.Oper = formatAddr(oper16) + ",X"
	case absoluteY:
		d.Oper = formatAddr(oper16) + ",Y"
	case indirect:
		d.Oper = fmt.Sprintf("($%04X)", oper16)
	case indirectX:
		d.Oper = fmt.Sprintf("($%02X,X)", oper8)
	case indirectY:
		d.Oper = fmt.Sprintf("($%02X),Y", oper8)
	case relative:
		d.Oper = fmt.Sprintf("$%04X", pc+2+uint16(int8(oper8)))
	}
	return d
}

var addressLabels = map[uint16]string{
	0x2000: "PpuControl_2000",
	0x2001: "PpuMask_2001",
	0x2002: "PpuStatus_2002",
	0x2003: "OamAddr_2003",
	0x2004: "OamData_2004",
	0x2005: "PpuScroll_2005",
	0x2006: "PpuAddr_2006",
	0x2007: "PpuData_2007",
	0x4010: "DmcFreq_4010",
	0x4011: "DmcCounter_4011",
	0x4012: "DmcAddress_4012",
	0x4013: "DmcLength_4013",
	0x4014: "SpriteDma_4014",
	0x4015: "ApuStatus_4015",
	0x4016: "Ctrl1_4016",
	0x4017: "Ctrl2_FrameCtr_4017",
}

func formatAddr(addr uint16) string {
	if label, ok := addressLabels[addr]; ok {
		return label
	}
	return fmt.Sprintf("$%04X", addr)
}
