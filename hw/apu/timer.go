package apu

// timer is a divider clocked once per CPU cycle. Each time it reaches 0 it is
// reloaded with its period and outputs a clock.
type timer struct {
	counter uint16
	period  uint16
}

func (t *timer) clock() bool {
	if t.counter == 0 {
		t.counter = t.period
		return true
	}
	t.counter--
	return false
}

func (t *timer) reset() {
	t.counter = 0
	t.period = 0
}
