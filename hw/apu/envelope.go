package apu

import "nescore/hw/snapshot"

// envelope generates a decreasing saw envelope, or a constant volume. Its
// loop flag is shared with the length counter halt flag.
type envelope struct {
	lenCounter lengthCounter

	constVolume bool
	volume      uint8

	start   bool
	divider int8
	counter uint8
}

func (env *envelope) init(reg uint8) {
	env.lenCounter.init(reg&0x20 == 0x20)
	env.constVolume = reg&0x10 == 0x10
	env.volume = reg & 0x0F
}

func (env *envelope) restart() {
	env.start = true
}

func (env *envelope) output() uint8 {
	if !env.lenCounter.status() {
		return 0
	}
	if env.constVolume {
		return env.volume
	}
	return env.counter
}

func (env *envelope) reset(soft bool) {
	env.lenCounter.reset(soft)
	env.constVolume = false
	env.volume = 0
	env.start = false
	env.divider = 0
	env.counter = 0
}

func (env *envelope) tick() {
	if env.start {
		env.start = false
		env.counter = 15
		env.divider = int8(env.volume)
		return
	}

	env.divider--
	if env.divider < 0 {
		env.divider = int8(env.volume)
		if env.counter > 0 {
			env.counter--
		} else if env.lenCounter.halt {
			env.counter = 15
		}
	}
}

func (env *envelope) saveState(s *snapshot.Envelope, lc *snapshot.LengthCounter) {
	s.ConstVolume = env.constVolume
	s.Volume = env.volume
	s.Start = env.start
	s.Divider = env.divider
	s.Counter = env.counter
	env.lenCounter.saveState(lc)
}

func (env *envelope) setState(s *snapshot.Envelope, lc *snapshot.LengthCounter) {
	env.constVolume = s.ConstVolume
	env.volume = s.Volume & 0x0F
	env.start = s.Start
	env.divider = s.Divider
	env.counter = s.Counter & 0x0F
	env.lenCounter.setState(lc)
}
