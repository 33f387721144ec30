package apu

import (
	"nescore/emu/log"
	"nescore/hw/hwdefs"
	"nescore/hw/snapshot"
)

var stepCycles = [2][6]int32{
	{7457, 14913, 22371, 29828, 29829, 29830},
	{7457, 14913, 22371, 29829, 37281, 37282},
}

var frameType = [2][6]FrameType{
	{QuarterFrame, HalfFrame, QuarterFrame, NoFrame, HalfFrame, NoFrame},
	{QuarterFrame, HalfFrame, QuarterFrame, NoFrame, HalfFrame, NoFrame},
}

// frameCounter generates the quarter and half frame clocks driving envelopes,
// sweeps, length and linear counters, and the frame IRQ in 4-step mode.
type frameCounter struct {
	apu *APU
	cpu cpu

	cycle      int32
	step       uint8
	mode       uint8 // 0: 4-step mode, 1: 5-step mode
	inhibitIRQ bool

	// A write to $4017 takes effect 3 or 4 cycles later.
	newval     int16
	writeDelay int8

	// Prevents a $4017 write from clocking the units right after the
	// sequencer did.
	blockTick uint8
}

func (fc *frameCounter) reset(soft bool) {
	fc.cycle = 0

	// Mode is kept on soft reset.
	if !soft {
		fc.mode = 0
	}
	fc.step = 0

	// After reset or power-up, the APU acts as if $4017 had been written
	// (with the current mode) a few clocks before the first instruction.
	fc.newval = 0
	if fc.mode != 0 {
		fc.newval = 0x80
	}
	fc.writeDelay = 3
	fc.inhibitIRQ = false
	fc.blockTick = 0
}

func (fc *frameCounter) write(val uint8) {
	log.ModSound.DebugZ("write frame counter").Uint8("val", val).End()

	fc.newval = int16(val)

	// If the write occurs during an APU cycle, the effects occur 3 CPU cycles
	// after the write cycle, 4 if it occurs between APU cycles.
	if fc.cpu.CurrentCycle()&0x01 != 0 {
		fc.writeDelay = 4
	} else {
		fc.writeDelay = 3
	}

	fc.inhibitIRQ = val&0x40 == 0x40
	if fc.inhibitIRQ {
		fc.cpu.ClearIRQSource(hwdefs.FrameCounter)
	}
}

func (fc *frameCounter) tick() {
	fc.cycle++
	if fc.cycle >= stepCycles[fc.mode][fc.step] {
		if !fc.inhibitIRQ && fc.mode == 0 && fc.step >= 3 {
			// IRQ is set during the last 3 cycles of the 4-step sequence.
			fc.cpu.SetIRQSource(hwdefs.FrameCounter)
		}

		if ftyp := frameType[fc.mode][fc.step]; ftyp != NoFrame && fc.blockTick == 0 {
			fc.apu.clockFrame(ftyp)
			fc.blockTick = 2
		}

		fc.step++
		if fc.step == 6 {
			fc.step = 0
			fc.cycle = 0
		}
	}

	if fc.newval >= 0 {
		fc.writeDelay--
		if fc.writeDelay == 0 {
			fc.mode = 0
			if fc.newval&0x80 == 0x80 {
				fc.mode = 1
			}
			fc.writeDelay = -1
			fc.step = 0
			fc.cycle = 0
			fc.newval = -1

			if fc.mode != 0 && fc.blockTick == 0 {
				// Writing to $4017 with bit 7 set immediately clocks both the
				// quarter and half frame units.
				fc.apu.clockFrame(HalfFrame)
				fc.blockTick = 2
			}
		}
	}

	if fc.blockTick > 0 {
		fc.blockTick--
	}
}

func (fc *frameCounter) saveState(s *snapshot.FrameCounter) {
	s.Cycle = fc.cycle
	s.Step = fc.step
	s.Mode = fc.mode
	s.InhibitIRQ = fc.inhibitIRQ
	s.NewValue = fc.newval
	s.WriteDelay = fc.writeDelay
	s.BlockTick = fc.blockTick
}

func (fc *frameCounter) setState(s *snapshot.FrameCounter) {
	fc.cycle = s.Cycle
	fc.step = s.Step % 6
	fc.mode = s.Mode & 1
	fc.inhibitIRQ = s.InhibitIRQ
	fc.newval = s.NewValue
	fc.writeDelay = s.WriteDelay
	if fc.newval >= 0 && fc.writeDelay <= 0 {
		fc.writeDelay = 1
	}
	fc.blockTick = s.BlockTick
}
