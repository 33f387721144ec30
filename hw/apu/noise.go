package apu

import (
	"nescore/emu/log"
	"nescore/hw/hwio"
	"nescore/hw/snapshot"
)

// noiseChannel generates pseudo-random 1-bit noise at 16 different
// frequencies.
//
//	      Timer --> Shift Register   Length Counter
//	                    |                |
//	                    v                v
//	Envelope -------> Gate ----------> Gate --> (to mixer)
type noiseChannel struct {
	envelope envelope
	timer    timer

	shiftReg uint16
	mode     bool

	Volume hwio.Reg8 `hwio:"offset=0x0C,writeonly,wcb"`
	Unused hwio.Reg8 `hwio:"offset=0x0D,writeonly"`
	Period hwio.Reg8 `hwio:"offset=0x0E,writeonly,wcb"`
	Length hwio.Reg8 `hwio:"offset=0x0F,writeonly,wcb"`
}

func newNoiseChannel() noiseChannel {
	return noiseChannel{
		envelope: envelope{
			lenCounter: lengthCounter{channel: Noise},
		},
	}
}

var noisePeriodLUT = [16]uint16{4, 8, 16, 32, 64, 96, 128, 160, 202, 254, 380, 508, 762, 1016, 2034, 4068}

func (nc *noiseChannel) WriteVOLUME(_, val uint8) {
	nc.envelope.init(val)
}

func (nc *noiseChannel) WritePERIOD(_, val uint8) {
	nc.timer.period = noisePeriodLUT[val&0x0F] - 1
	nc.mode = val&0x80 != 0

	log.ModSound.DebugZ("write noise period").
		Uint8("reg", val).
		Bool("mode", nc.mode).
		End()
}

func (nc *noiseChannel) WriteLENGTH(_, val uint8) {
	nc.envelope.lenCounter.load(val >> 3)
	nc.envelope.restart()
}

func (nc *noiseChannel) clock() {
	if !nc.timer.clock() {
		return
	}

	// Feedback is the exclusive-OR of bit 0 and one other bit: bit 6 if Mode
	// flag is set, otherwise bit 1.
	modebit := 1
	if nc.mode {
		modebit = 6
	}
	feedback := (nc.shiftReg & 0x01) ^ ((nc.shiftReg >> modebit) & 0x01)
	nc.shiftReg >>= 1
	nc.shiftReg |= feedback << 14
}

// The mixer receives the current envelope volume except when bit 0 of the
// shift register is set, or the length counter is zero.
func (nc *noiseChannel) output() uint8 {
	if nc.shiftReg&0x01 == 0x01 {
		return 0
	}
	return nc.envelope.output()
}

func (nc *noiseChannel) reset(soft bool) {
	nc.envelope.reset(soft)
	nc.timer.reset()

	nc.timer.period = noisePeriodLUT[0] - 1
	nc.shiftReg = 1
	nc.mode = false
}

func (nc *noiseChannel) tickEnvelope()        { nc.envelope.tick() }
func (nc *noiseChannel) tickLengthCounter()   { nc.envelope.lenCounter.tick() }
func (nc *noiseChannel) reloadLengthCounter() { nc.envelope.lenCounter.reload() }
func (nc *noiseChannel) setEnabled(en bool)   { nc.envelope.lenCounter.setEnabled(en) }
func (nc *noiseChannel) status() bool         { return nc.envelope.lenCounter.status() }

func (nc *noiseChannel) saveState(s *snapshot.Noise) {
	nc.envelope.saveState(&s.Envelope, &s.Length)
	s.Timer = nc.timer.counter
	s.Period = nc.timer.period
	s.ShiftReg = nc.shiftReg
	s.Mode = nc.mode
}

func (nc *noiseChannel) setState(s *snapshot.Noise) {
	nc.envelope.setState(&s.Envelope, &s.Length)
	nc.timer.counter = s.Timer
	nc.timer.period = s.Period
	nc.shiftReg = s.ShiftReg & 0x7FFF
	nc.mode = s.Mode
}
