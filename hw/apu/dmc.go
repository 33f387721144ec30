package apu

import (
	"nescore/emu/log"
	"nescore/hw/hwdefs"
	"nescore/hw/hwio"
	"nescore/hw/snapshot"
)

// The DMC (Delta Modulation Channel) can output samples composed of 1-bit
// deltas and its DAC can be directly changed. It contains the following: DMA
// reader, interrupt flag, sample buffer, Timer, output unit, 7-bit counter tied
// to 7-bit DAC.
//
//	+----------+    +---------+
//	|DMA Reader|    |  Timer  |
//	+----------+    +---------+
//	     |               |
//	     |               v
//	+----------+    +---------+     +---------+     +---------+
//	|  Buffer  |----| Output  |---->| Counter |---->|   DAC   |
//	+----------+    +---------+     +---------+     +---------+
//
// The DMC does not access memory by itself. When its sample buffer needs to be
// refilled, NeedDMA reports true; the bus owner then reads the byte at DMAAddr
// and hands it over with DMAComplete.
type DMC struct {
	cpu   cpu
	timer timer

	irqEnabled bool
	loop       bool
	level      uint8

	sampleAddr uint16
	sampleLen  uint16
	curaddr    uint16
	remaining  uint16

	buffer   uint8
	bufEmpty bool

	shiftReg uint8
	bitsLeft uint8
	silence  bool
	needDMA  bool

	FLAGS      hwio.Reg8 `hwio:"offset=0x10,writeonly,wcb"`
	LOAD       hwio.Reg8 `hwio:"offset=0x11,writeonly,wcb"`
	SAMPLEADDR hwio.Reg8 `hwio:"offset=0x12,writeonly,wcb"`
	SAMPLELEN  hwio.Reg8 `hwio:"offset=0x13,writeonly,wcb"`
}

// NewDMC returns a DMC in its power-up state. irq receives the DMC
// interrupt requests.
func NewDMC(irq cpu) *DMC {
	dc := &DMC{cpu: irq}
	hwio.MustInitRegs(dc)
	dc.reset(hwdefs.HardReset)
	return dc
}

var dmcPeriodLUT = [16]uint16{428, 380, 340, 320, 286, 254, 226, 214, 190, 160, 142, 128, 106, 84, 72, 54}

func (dc *DMC) reset(soft bool) {
	if !soft {
		dc.sampleAddr = 0xC000
		dc.sampleLen = 1
	}

	dc.irqEnabled = false
	dc.loop = false
	dc.level = 0

	dc.curaddr = 0
	dc.remaining = 0
	dc.buffer = 0
	dc.bufEmpty = true

	dc.shiftReg = 0
	dc.bitsLeft = 8
	dc.silence = true
	dc.needDMA = false

	dc.timer.period = dmcPeriodLUT[0] - 1
	dc.timer.counter = dc.timer.period
}

func (dc *DMC) initSample() {
	dc.curaddr = dc.sampleAddr
	dc.remaining = dc.sampleLen
}

// WriteFLAGS handles writes to $4010: IL--RRRR (IRQ enable, loop, rate index).
func (dc *DMC) WriteFLAGS(_, val uint8) {
	dc.irqEnabled = val&0x80 == 0x80
	dc.loop = val&0x40 == 0x40
	dc.timer.period = dmcPeriodLUT[val&0x0F] - 1

	if !dc.irqEnabled {
		dc.cpu.ClearIRQSource(hwdefs.DMC)
	}

	log.ModSound.DebugZ("write dmc flags").
		Uint8("reg", val).
		Bool("irq", dc.irqEnabled).
		Bool("loop", dc.loop).
		Uint16("period", dc.timer.period).
		End()
}

// WriteLOAD handles writes to $4011, directly loading the 7-bit output level.
func (dc *DMC) WriteLOAD(_, val uint8) {
	dc.level = val & 0x7F
}

// WriteSAMPLEADDR handles writes to $4012. Samples start at $C000 + $40*val.
func (dc *DMC) WriteSAMPLEADDR(_, val uint8) {
	dc.sampleAddr = 0xC000 | uint16(val)<<6
}

// WriteSAMPLELEN handles writes to $4013. Samples are $10*val + 1 bytes long.
func (dc *DMC) WriteSAMPLELEN(_, val uint8) {
	dc.sampleLen = uint16(val)<<4 | 0x1
}

func (dc *DMC) requestDMA() {
	if dc.bufEmpty && dc.remaining > 0 {
		dc.needDMA = true
	}
}

// NeedDMA reports whether the sample buffer is waiting for a memory fetch.
func (dc *DMC) NeedDMA() bool { return dc.needDMA }

// DMAAddr is the address of the next sample byte.
func (dc *DMC) DMAAddr() uint16 { return dc.curaddr }

// Level returns the current output level, in [0, 127].
func (dc *DMC) Level() uint8 { return dc.level }

// DMAComplete delivers the sample byte fetched at DMAAddr.
func (dc *DMC) DMAComplete(val uint8) {
	dc.needDMA = false
	if dc.remaining == 0 {
		// Transfer cancelled in the meantime (channel disabled).
		return
	}

	dc.buffer = val
	dc.bufEmpty = false

	// Address wraps around to $8000, not $0000.
	dc.curaddr++
	if dc.curaddr == 0 {
		dc.curaddr = 0x8000
	}

	dc.remaining--
	if dc.remaining == 0 {
		if dc.loop {
			// Looped samples never raise an IRQ.
			dc.initSample()
		} else if dc.irqEnabled {
			dc.cpu.SetIRQSource(hwdefs.DMC)
		}
	}

	log.ModSound.DebugZ("dmc dma complete").
		Hex8("val", val).
		Uint16("remaining", dc.remaining).
		End()
}

// Clock runs the DMC for one CPU cycle.
func (dc *DMC) Clock() {
	if !dc.timer.clock() {
		return
	}

	if !dc.silence {
		if dc.shiftReg&0x01 != 0 {
			if dc.level <= 125 {
				dc.level += 2
			}
		} else if dc.level >= 2 {
			dc.level -= 2
		}
		dc.shiftReg >>= 1
	}

	dc.bitsLeft--
	if dc.bitsLeft == 0 {
		dc.bitsLeft = 8
		if dc.bufEmpty {
			dc.silence = true
		} else {
			dc.silence = false
			dc.shiftReg = dc.buffer
			dc.bufEmpty = true
			dc.requestDMA()
		}
	}
}

func (dc *DMC) setEnabled(enabled bool) {
	if !enabled {
		dc.remaining = 0
		dc.needDMA = false
		return
	}
	if dc.remaining == 0 {
		dc.initSample()
		dc.requestDMA()
	}
}

func (dc *DMC) status() bool {
	return dc.remaining > 0
}

func (dc *DMC) saveState(s *snapshot.DMC) {
	s.Timer = dc.timer.counter
	s.Period = dc.timer.period
	s.IRQEnabled = dc.irqEnabled
	s.Loop = dc.loop
	s.Level = dc.level
	s.SampleAddr = dc.sampleAddr
	s.SampleLen = dc.sampleLen
	s.CurrentAddr = dc.curaddr
	s.Remaining = dc.remaining
	s.Buffer = dc.buffer
	s.BufferEmpty = dc.bufEmpty
	s.ShiftReg = dc.shiftReg
	s.BitsLeft = dc.bitsLeft
	s.Silence = dc.silence
	s.NeedDMA = dc.needDMA
}

func (dc *DMC) setState(s *snapshot.DMC) {
	dc.timer.counter = s.Timer
	dc.timer.period = s.Period
	dc.irqEnabled = s.IRQEnabled
	dc.loop = s.Loop
	dc.level = s.Level & 0x7F
	dc.sampleAddr = s.SampleAddr
	dc.sampleLen = s.SampleLen
	dc.curaddr = s.CurrentAddr
	dc.remaining = s.Remaining
	dc.buffer = s.Buffer
	dc.bufEmpty = s.BufferEmpty
	dc.shiftReg = s.ShiftReg
	dc.bitsLeft = s.BitsLeft
	if dc.bitsLeft == 0 || dc.bitsLeft > 8 {
		dc.bitsLeft = 8
	}
	dc.silence = s.Silence
	dc.needDMA = s.NeedDMA
}
