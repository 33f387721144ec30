package apu

import (
	"nescore/emu/log"
	"nescore/hw/hwio"
	"nescore/hw/snapshot"
)

// The triangleChannel contains the following: Timer, 32-step sequencer, Length
// Counter, Linear Counter, 4-bit DAC.
//
//	+---------+    +---------+
//	|LinearCtr|    | Length  |
//	+---------+    +---------+
//	     |              |
//	     v              v
//	+---------+        |\             |\         +---------+    +---------+
//	|  Timer  |------->| >----------->| >------->|Sequencer|--->|   DAC   |
//	+---------+        |/             |/         +---------+    +---------+
type triangleChannel struct {
	lenCounter lengthCounter
	timer      timer

	linearCounter       uint8
	linearCounterReload uint8
	linearReload        bool
	linearCtrl          bool

	pos uint8 // current position in triangleSequence

	Linear hwio.Reg8 `hwio:"offset=0x08,writeonly,wcb"`
	Unused hwio.Reg8 `hwio:"offset=0x09,writeonly"`
	Timer  hwio.Reg8 `hwio:"offset=0x0A,writeonly,wcb"`
	Length hwio.Reg8 `hwio:"offset=0x0B,writeonly,wcb"`
}

func newTriangleChannel() triangleChannel {
	return triangleChannel{
		lenCounter: lengthCounter{channel: Triangle},
	}
}

var triangleSequence = [32]uint8{
	15, 14, 13, 12, 11, 10, 9, 8,
	7, 6, 5, 4, 3, 2, 1, 0,
	0, 1, 2, 3, 4, 5, 6, 7,
	8, 9, 10, 11, 12, 13, 14, 15,
}

func (tc *triangleChannel) clock() {
	if !tc.timer.clock() {
		return
	}

	// The sequencer is clocked as long as both the linear counter and the
	// length counter are nonzero. Ultrasonic periods (< 2) are not played,
	// they only produce pops.
	if tc.lenCounter.status() && tc.linearCounter > 0 && tc.timer.period >= 2 {
		tc.pos = (tc.pos + 1) & 0x1F
	}
}

func (tc *triangleChannel) output() uint8 {
	return triangleSequence[tc.pos]
}

func (tc *triangleChannel) reset(soft bool) {
	tc.timer.reset()
	tc.lenCounter.reset(soft)

	tc.linearCounter = 0
	tc.linearCounterReload = 0
	tc.linearReload = false
	tc.linearCtrl = false
	tc.pos = 0
}

func (tc *triangleChannel) WriteLINEAR(_, val uint8) {
	tc.linearCtrl = val&0x80 == 0x80
	tc.linearCounterReload = val & 0x7F
	tc.lenCounter.init(tc.linearCtrl)

	log.ModSound.DebugZ("write triangle linear").
		Uint8("reg", val).
		Bool("ctrl", tc.linearCtrl).
		End()
}

func (tc *triangleChannel) WriteTIMER(_, val uint8) {
	tc.timer.period = (tc.timer.period & 0xFF00) | uint16(val)
}

func (tc *triangleChannel) WriteLENGTH(_, val uint8) {
	tc.lenCounter.load(val >> 3)
	tc.timer.period = (tc.timer.period & 0xFF) | uint16(val&0x07)<<8

	// Sets the linear counter reload flag (side effect).
	tc.linearReload = true

	log.ModSound.DebugZ("write triangle length").
		Uint8("reg", val).
		Uint16("period", tc.timer.period).
		End()
}

func (tc *triangleChannel) tickLinearCounter() {
	if tc.linearReload {
		tc.linearCounter = tc.linearCounterReload
	} else if tc.linearCounter > 0 {
		tc.linearCounter--
	}

	if !tc.linearCtrl {
		tc.linearReload = false
	}
}

func (tc *triangleChannel) tickLengthCounter()   { tc.lenCounter.tick() }
func (tc *triangleChannel) reloadLengthCounter() { tc.lenCounter.reload() }
func (tc *triangleChannel) setEnabled(en bool)   { tc.lenCounter.setEnabled(en) }
func (tc *triangleChannel) status() bool         { return tc.lenCounter.status() }

func (tc *triangleChannel) saveState(s *snapshot.Triangle) {
	tc.lenCounter.saveState(&s.Length)
	s.Timer = tc.timer.counter
	s.Period = tc.timer.period
	s.Pos = tc.pos
	s.LinearCounter = tc.linearCounter
	s.LinearReload = tc.linearCounterReload
	s.LinearFlag = tc.linearReload
	s.LinearCtrl = tc.linearCtrl
}

func (tc *triangleChannel) setState(s *snapshot.Triangle) {
	tc.lenCounter.setState(&s.Length)
	tc.timer.counter = s.Timer
	tc.timer.period = s.Period & 0x7FF
	tc.pos = s.Pos & 0x1F
	tc.linearCounter = s.LinearCounter & 0x7F
	tc.linearCounterReload = s.LinearReload & 0x7F
	tc.linearReload = s.LinearFlag
	tc.linearCtrl = s.LinearCtrl
}
