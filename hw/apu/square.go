package apu

import (
	"nescore/emu/log"
	"nescore/hw/hwio"
	"nescore/hw/snapshot"
)

// There are two square channels beginning at registers $4000 and $4004. Each
// contains the following: Envelope Generator, Sweep Unit, Timer with
// divide-by-two on the output, 8-step sequencer, Length Counter.
//
//	               +---------+    +---------+
//	               |  Sweep  |--->|Timer / 2|
//	               +---------+    +---------+
//	                    |              |
//	                    |              v
//	                    |         +---------+    +---------+
//	                    |         |Sequencer|    | Length  |
//	                    |         +---------+    +---------+
//	                    |              |              |
//	                    v              v              v
//	+---------+        |\             |\             |\          +---------+
//	|Envelope |------->| >----------->| >----------->| >-------->|   DAC   |
//	+---------+        |/             |/             |/          +---------+
type squareChannel struct {
	envelope envelope
	timer    timer

	isChannel1 bool

	duty    uint8
	dutyPos uint8

	sweepEnabled      bool
	sweepPeriod       uint8
	sweepNegate       bool
	sweepShift        uint8
	reloadSweep       bool
	sweepDivider      uint8
	sweepTargetPeriod uint32
	realPeriod        uint16

	Duty   hwio.Reg8 `hwio:"offset=0x00,writeonly,wcb"`
	Sweep  hwio.Reg8 `hwio:"offset=0x01,writeonly,wcb"`
	Timer  hwio.Reg8 `hwio:"offset=0x02,writeonly,wcb"`
	Length hwio.Reg8 `hwio:"offset=0x03,writeonly,wcb"`
}

func newSquareChannel(channel Channel) squareChannel {
	return squareChannel{
		isChannel1: channel == Square1,
		envelope: envelope{
			lenCounter: lengthCounter{channel: channel},
		},
	}
}

func (sc *squareChannel) WriteDUTY(_, val uint8) {
	sc.envelope.init(val)
	sc.duty = (val & 0xC0) >> 6

	log.ModSound.DebugZ("write pulse duty").
		Uint8("reg", val).
		Uint8("duty", sc.duty).
		End()
}

func (sc *squareChannel) WriteSWEEP(_, val uint8) {
	sc.sweepEnabled = val&0x80 == 0x80
	sc.sweepNegate = val&0x08 == 0x08

	// The divider's period is set to P + 1
	sc.sweepPeriod = ((val & 0x70) >> 4) + 1
	sc.sweepShift = val & 0x07
	sc.updateTargetPeriod()
	sc.reloadSweep = true

	log.ModSound.DebugZ("write pulse sweep").Uint8("reg", val).End()
}

func (sc *squareChannel) WriteTIMER(_, val uint8) {
	sc.setPeriod((sc.realPeriod & 0x0700) | uint16(val))
}

func (sc *squareChannel) WriteLENGTH(_, val uint8) {
	sc.envelope.lenCounter.load(val >> 3)
	sc.setPeriod((sc.realPeriod & 0xFF) | uint16(val&0x07)<<8)

	// Sequencer and envelope are restarted.
	sc.dutyPos = 0
	sc.envelope.restart()

	log.ModSound.DebugZ("write pulse length").
		Uint8("reg", val).
		Uint16("period", sc.realPeriod).
		End()
}

// A period of t < 8, either set explicitly or via a sweep period update,
// silences the channel.
func (sc *squareChannel) isMuted() bool {
	return sc.realPeriod < 8 || (!sc.sweepNegate && sc.sweepTargetPeriod > 0x7FF)
}

func (sc *squareChannel) updateTargetPeriod() {
	shifted := sc.realPeriod >> sc.sweepShift
	if sc.sweepNegate {
		sc.sweepTargetPeriod = uint32(sc.realPeriod - shifted)
		if sc.isChannel1 {
			// Pulse 1 negates with ones' complement.
			sc.sweepTargetPeriod--
		}
	} else {
		sc.sweepTargetPeriod = uint32(sc.realPeriod + shifted)
	}
}

func (sc *squareChannel) setPeriod(period uint16) {
	sc.realPeriod = period
	sc.timer.period = sc.realPeriod*2 + 1
	sc.updateTargetPeriod()
}

var squareDuty = [4][8]uint8{
	{0, 0, 0, 0, 0, 0, 0, 1},
	{0, 0, 0, 0, 0, 0, 1, 1},
	{0, 0, 0, 0, 1, 1, 1, 1},
	{1, 1, 1, 1, 1, 1, 0, 0},
}

func (sc *squareChannel) output() uint8 {
	if sc.isMuted() {
		return 0
	}
	return squareDuty[sc.duty][sc.dutyPos] * sc.envelope.output()
}

func (sc *squareChannel) clock() {
	if sc.timer.clock() {
		sc.dutyPos = (sc.dutyPos - 1) & 0x07
	}
}

func (sc *squareChannel) reset(soft bool) {
	sc.envelope.reset(soft)
	sc.timer.reset()

	sc.duty = 0
	sc.dutyPos = 0
	sc.realPeriod = 0

	sc.sweepEnabled = false
	sc.sweepPeriod = 0
	sc.sweepNegate = false
	sc.sweepShift = 0
	sc.reloadSweep = false
	sc.sweepDivider = 0
	sc.updateTargetPeriod()
}

func (sc *squareChannel) tickSweep() {
	sc.sweepDivider--
	if sc.sweepDivider == 0 {
		if sc.sweepShift > 0 && sc.sweepEnabled && sc.realPeriod >= 8 && sc.sweepTargetPeriod <= 0x7FF {
			sc.setPeriod(uint16(sc.sweepTargetPeriod))
		}
		sc.sweepDivider = sc.sweepPeriod
	}

	if sc.reloadSweep {
		sc.sweepDivider = sc.sweepPeriod
		sc.reloadSweep = false
	}
}

func (sc *squareChannel) tickEnvelope()        { sc.envelope.tick() }
func (sc *squareChannel) tickLengthCounter()   { sc.envelope.lenCounter.tick() }
func (sc *squareChannel) reloadLengthCounter() { sc.envelope.lenCounter.reload() }
func (sc *squareChannel) setEnabled(en bool)   { sc.envelope.lenCounter.setEnabled(en) }
func (sc *squareChannel) status() bool         { return sc.envelope.lenCounter.status() }

func (sc *squareChannel) saveState(s *snapshot.Square) {
	sc.envelope.saveState(&s.Envelope, &s.Length)
	s.Timer = sc.timer.counter
	s.Period = sc.timer.period
	s.RealPeriod = sc.realPeriod
	s.Duty = sc.duty
	s.DutyPos = sc.dutyPos
	s.SweepEnabled = sc.sweepEnabled
	s.SweepNegate = sc.sweepNegate
	s.SweepReload = sc.reloadSweep
	s.SweepPeriod = sc.sweepPeriod
	s.SweepShift = sc.sweepShift
	s.SweepDivider = sc.sweepDivider
}

func (sc *squareChannel) setState(s *snapshot.Square) {
	sc.envelope.setState(&s.Envelope, &s.Length)
	sc.timer.counter = s.Timer
	sc.timer.period = s.Period
	sc.realPeriod = s.RealPeriod & 0x7FF
	sc.duty = s.Duty & 0x03
	sc.dutyPos = s.DutyPos & 0x07
	sc.sweepEnabled = s.SweepEnabled
	sc.sweepNegate = s.SweepNegate
	sc.reloadSweep = s.SweepReload
	sc.sweepPeriod = s.SweepPeriod
	sc.sweepShift = s.SweepShift & 0x07
	sc.sweepDivider = s.SweepDivider
	sc.updateTargetPeriod()
}
