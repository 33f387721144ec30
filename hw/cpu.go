package hw

import (
	"io"

	"github.com/go-faster/errors"

	"nescore/emu/log"
	"nescore/hw/hwdefs"
	"nescore/hw/hwio"
	"nescore/hw/snapshot"
)

// Locations reserved for vector pointers.
const (
	NMIVector   = uint16(0xFFFA) // Non-Maskable Interrupt
	ResetVector = uint16(0xFFFC) // Reset
	IRQVector   = uint16(0xFFFE) // Interrupt Request
)

// busClock is advanced by the CPU around each of its bus accesses, so that the
// other units run in lockstep with it.
type busClock interface {
	cycleBegin()
	cycleEnd()
}

type CPU struct {
	Bus *hwio.Table

	RAM hwio.Mem `hwio:"bank=0,offset=0x0,size=0x800,vsize=0x2000"`

	clock  busClock // nil when nothing runs alongside the CPU
	dma    *DMA     // nil when there's no DMA unit
	tracer *tracer

	Cycles int64 // CPU cycles since reset

	// cpu registers
	A, X, Y, SP uint8
	PC          uint16
	P           P

	// interrupt handling
	nmiFlag, prevNmiFlag bool
	needNmi, prevNeedNmi bool
	runIRQ, prevRunIRQ   bool
	irqFlag              hwdefs.IRQSource

	op      uint8 // opcode being executed
	openBus uint8 // last value seen on the data bus
	warned  [256]bool
}

// NewCPU creates a CPU with its internal RAM mapped on its bus.
func NewCPU() *CPU {
	c := &CPU{
		Bus: hwio.NewTable("cpu"),
	}
	hwio.MustInitRegs(c)
	c.Bus.MapBank(0x0000, c, 0)
	c.Bus.Unmapped = openBus{c}
	c.Reset(hwdefs.HardReset)
	return c
}

// openBus is read when nothing drives the data bus, the last value read or
// written is returned.
type openBus struct{ cpu *CPU }

func (ob openBus) Read8(uint16, bool) uint8 { return ob.cpu.openBus }
func (ob openBus) Write8(uint16, uint8)     {}

// Reset loads PC from the reset vector. A hard reset (power-up) also clears the
// registers. Cycles restarts from 0.
func (c *CPU) Reset(soft bool) {
	if soft {
		c.SP -= 0x03
	} else {
		c.A = 0x00
		c.X = 0x00
		c.Y = 0x00
		c.SP = 0xFF
		c.P = Unused
		c.irqFlag = 0
		c.openBus = 0
	}
	c.P.set(IntDisable, true)

	// Directly read from the bus to avoid side effects.
	lo := c.Bus.Peek8(ResetVector)
	hi := c.Bus.Peek8(ResetVector + 1)
	c.PC = uint16(hi)<<8 | uint16(lo)

	c.Cycles = 0
	c.nmiFlag, c.prevNmiFlag = false, false
	c.needNmi, c.prevNeedNmi = false, false
	c.runIRQ, c.prevRunIRQ = false, false

	log.ModCPU.DebugZ("reset").
		Bool("soft", soft).
		Hex16("PC", c.PC).
		End()
}

// Step executes one instruction and returns the number of cycles it took,
// including the cycles stolen by DMA.
func (c *CPU) Step() int {
	start := c.Cycles
	if c.tracer != nil {
		c.traceOp()
	}

	c.op = c.fetch8()
	op := &opcodes[c.op]
	if op.access == manual {
		op.exec(c, 0)
	} else {
		op.exec(c, c.operand(op.mode, op.access))
	}
	return int(c.Cycles - start)
}

// InterruptPending reports whether an interrupt must be serviced before the
// next instruction. That is the case when an NMI edge has been detected, or
// when the IRQ line has been asserted with interrupts enabled, during the
// next-to-last cycle of the last instruction.
func (c *CPU) InterruptPending() bool {
	return c.prevRunIRQ || c.prevNeedNmi
}

// ServiceNMI pushes PC and P on the stack and jumps to the NMI handler.
// Returns the number of cycles taken.
func (c *CPU) ServiceNMI() int {
	c.needNmi = true
	return c.serviceInterrupt()
}

// ServiceIRQ pushes PC and P on the stack and jumps to the IRQ handler, unless
// interrupts are disabled, in which case it does nothing and returns false.
func (c *CPU) ServiceIRQ() bool {
	if c.P.has(IntDisable) {
		return false
	}
	c.serviceInterrupt()
	return true
}

// serviceInterrupt runs the 7 cycles interrupt sequence. A pending NMI
// hijacks the sequence, even if it started as an IRQ.
func (c *CPU) serviceInterrupt() int {
	start := c.Cycles
	c.Read8(c.PC) // dummy reads
	c.Read8(c.PC)

	prevpc := c.PC
	c.push16(c.PC)

	p := c.P&^Break | Unused
	nmi := c.needNmi
	if nmi {
		c.needNmi = false
		c.push8(uint8(p))
		c.P.set(IntDisable, true)
		c.PC = c.Read16(NMIVector)
	} else {
		c.push8(uint8(p))
		c.P.set(IntDisable, true)
		c.PC = c.Read16(IRQVector)
	}

	log.ModCPU.DebugZ("interrupt").
		Bool("nmi", nmi).
		Hex16("from", prevpc).
		Hex16("to", c.PC).
		End()
	return int(c.Cycles - start)
}

/* bus accesses */

func (c *CPU) cycleBegin() {
	c.Cycles++
	if c.clock != nil {
		c.clock.cycleBegin()
	}
}

func (c *CPU) cycleEnd() {
	if c.clock != nil {
		c.clock.cycleEnd()
	}
	c.handleInterrupts()
}

func (c *CPU) Read8(addr uint16) uint8 {
	if c.dma != nil {
		c.dma.process(addr)
	}
	c.cycleBegin()
	val := c.Bus.Read8(addr, false)
	c.openBus = val
	c.cycleEnd()
	return val
}

func (c *CPU) Write8(addr uint16, val uint8) {
	c.cycleBegin()
	c.openBus = val
	c.Bus.Write8(addr, val)
	c.cycleEnd()
}

func (c *CPU) Read16(addr uint16) uint16 {
	lo := c.Read8(addr)
	hi := c.Read8(addr + 1)
	return uint16(hi)<<8 | uint16(lo)
}

func (c *CPU) fetch8() uint8 {
	v := c.Read8(c.PC)
	c.PC++
	return v
}

func (c *CPU) fetch16() uint16 {
	v := c.Read16(c.PC)
	c.PC += 2
	return v
}

/* stack operations */

func (c *CPU) push8(val uint8) {
	c.Write8(0x0100|uint16(c.SP), val)
	c.SP--
}

func (c *CPU) push16(val uint16) {
	c.push8(uint8(val >> 8))
	c.push8(uint8(val))
}

func (c *CPU) pull8() uint8 {
	c.SP++
	return c.Read8(0x0100 | uint16(c.SP))
}

func (c *CPU) pull16() uint16 {
	lo := c.pull8()
	hi := c.pull8()
	return uint16(hi)<<8 | uint16(lo)
}

/* interrupt lines */

func (c *CPU) SetIRQSource(src hwdefs.IRQSource)      { c.irqFlag |= src }
func (c *CPU) HasIRQSource(src hwdefs.IRQSource) bool { return c.irqFlag&src != 0 }
func (c *CPU) ClearIRQSource(src hwdefs.IRQSource)    { c.irqFlag &^= src }

// CurrentCycle returns the number of cycles since reset.
func (c *CPU) CurrentCycle() int64 { return c.Cycles }

func (c *CPU) setNMIflag()   { c.nmiFlag = true }
func (c *CPU) clearNMIflag() { c.nmiFlag = false }

func (c *CPU) handleInterrupts() {
	// The internal signal goes high during φ1 of the cycle that follows the one
	// where the edge is detected and stays high until the NMI has been handled.
	c.prevNeedNmi = c.needNmi

	// The NMI input is edge sensitive, it's polled during φ2 of each cycle.
	if !c.prevNmiFlag && c.nmiFlag {
		c.needNmi = true
	}
	c.prevNmiFlag = c.nmiFlag

	// It's the status of the IRQ line at the end of the second-to-last cycle
	// that matters.
	c.prevRunIRQ = c.runIRQ
	c.runIRQ = c.irqFlag != 0 && !c.P.has(IntDisable)
}

/* register accessor */

// Register identifies a CPU register for Reg and SetReg.
type Register uint8

const (
	RegA Register = iota
	RegX
	RegY
	RegSP
	RegPC
	RegP
)

var ErrInvalidRegister = errors.New("invalid register")

// Reg returns the value of register id.
func (c *CPU) Reg(id Register) (uint16, error) {
	switch id {
	case RegA:
		return uint16(c.A), nil
	case RegX:
		return uint16(c.X), nil
	case RegY:
		return uint16(c.Y), nil
	case RegSP:
		return uint16(c.SP), nil
	case RegPC:
		return c.PC, nil
	case RegP:
		return uint16(c.P), nil
	}
	return 0, errors.Wrapf(ErrInvalidRegister, "id %d", id)
}

// SetReg sets the value of register id, truncated to the register size.
func (c *CPU) SetReg(id Register, val uint16) error {
	switch id {
	case RegA:
		c.A = uint8(val)
	case RegX:
		c.X = uint8(val)
	case RegY:
		c.Y = uint8(val)
	case RegSP:
		c.SP = uint8(val)
	case RegPC:
		c.PC = val
	case RegP:
		c.P = P(val)
	default:
		return errors.Wrapf(ErrInvalidRegister, "id %d", id)
	}
	return nil
}

/* state */

func (c *CPU) State() snapshot.CPU {
	return snapshot.CPU{
		PC:          c.PC,
		SP:          c.SP,
		P:           uint8(c.P),
		A:           c.A,
		X:           c.X,
		Y:           c.Y,
		Cycles:      c.Cycles,
		OpenBus:     c.openBus,
		IRQFlag:     uint8(c.irqFlag),
		RunIRQ:      c.runIRQ,
		PrevRunIRQ:  c.prevRunIRQ,
		NMIFlag:     c.nmiFlag,
		PrevNMIFlag: c.prevNmiFlag,
		NeedNMI:     c.needNmi,
		PrevNeedNMI: c.prevNeedNmi,
	}
}

func (c *CPU) SetState(s *snapshot.CPU) {
	c.PC = s.PC
	c.SP = s.SP
	c.P = P(s.P)
	c.A = s.A
	c.X = s.X
	c.Y = s.Y
	c.Cycles = s.Cycles
	c.openBus = s.OpenBus
	c.irqFlag = hwdefs.IRQSource(s.IRQFlag)
	c.runIRQ = s.RunIRQ
	c.prevRunIRQ = s.PrevRunIRQ
	c.nmiFlag = s.NMIFlag
	c.prevNmiFlag = s.PrevNMIFlag
	c.needNmi = s.NeedNMI
	c.prevNeedNmi = s.PrevNeedNMI
}

/* tracing */

// SetTraceOutput enables the execution trace of each instruction into w.
// Tracing is disabled if w is nil.
func (c *CPU) SetTraceOutput(w io.Writer, ppu *PPU) {
	if w == nil {
		c.tracer = nil
		return
	}
	c.tracer = &tracer{d: c, w: w, ppu: ppu}
}

func (c *CPU) traceOp() {
	c.tracer.write(c.traceState())
}
