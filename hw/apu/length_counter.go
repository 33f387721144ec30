package apu

import "nescore/hw/snapshot"

var lengthLUT = [32]uint8{10, 254, 20, 2, 40, 4, 80, 6, 160, 8, 60, 10, 14, 12, 26, 14, 12, 16, 24, 18, 48, 20, 96, 22, 192, 24, 72, 26, 16, 28, 32, 30}

// lengthCounter silences its channel when it reaches 0. Writes to the halt
// flag and counter reloads only take effect on the next APU cycle, after the
// frame counter had a chance to clock the counter.
type lengthCounter struct {
	channel Channel

	enabled bool
	halt    bool
	counter uint8

	newHalt       bool
	reloadValue   uint8
	previousValue uint8
}

func (lc *lengthCounter) init(halt bool) {
	lc.newHalt = halt
}

func (lc *lengthCounter) load(idx uint8) {
	if lc.enabled {
		lc.reloadValue = lengthLUT[idx&0x1F]
		lc.previousValue = lc.counter
	}
}

func (lc *lengthCounter) reset(soft bool) {
	lc.enabled = false
	if soft && lc.channel == Triangle {
		// Triangle length counter is unaffected by a soft reset.
		return
	}
	lc.halt = false
	lc.counter = 0
	lc.newHalt = false
	lc.reloadValue = 0
	lc.previousValue = 0
}

func (lc *lengthCounter) status() bool {
	return lc.counter > 0
}

func (lc *lengthCounter) reload() {
	if lc.reloadValue != 0 {
		// A reload on the same cycle the counter is clocked is ignored.
		if lc.counter == lc.previousValue {
			lc.counter = lc.reloadValue
		}
		lc.reloadValue = 0
	}
	lc.halt = lc.newHalt
}

func (lc *lengthCounter) tick() {
	if lc.counter > 0 && !lc.halt {
		lc.counter--
	}
}

func (lc *lengthCounter) setEnabled(enabled bool) {
	if !enabled {
		lc.counter = 0
	}
	lc.enabled = enabled
}

func (lc *lengthCounter) saveState(s *snapshot.LengthCounter) {
	s.Enabled = lc.enabled
	s.Halt = lc.halt
	s.Counter = lc.counter
}

func (lc *lengthCounter) setState(s *snapshot.LengthCounter) {
	lc.enabled = s.Enabled
	lc.halt = s.Halt
	lc.newHalt = s.Halt
	lc.counter = s.Counter
	lc.reloadValue = 0
	lc.previousValue = 0
}
