// Package hwdefs holds definitions shared by the emulated units.
package hwdefs

import "strings"

// IRQSource identifies a device asserting the CPU IRQ line. The line is
// asserted as long as at least one source is set.
type IRQSource uint8

const (
	External IRQSource = 1 << iota
	FrameCounter
	DMC

	numSources = 3
)

var irqSrcNames = [numSources]string{
	"ext",
	"fcnt",
	"dmc",
}

func (irq IRQSource) String() string {
	var names []string
	for i := range numSources {
		if irq&(1<<i) != 0 {
			names = append(names, irqSrcNames[i])
		}
	}
	return strings.Join(names, "|")
}

const (
	SoftReset = true
	HardReset = false
)

const NumAudioChannels = 5 // Square1, Square2, Triangle, Noise, DMC

// Button is a bit of a standard controller state, in the order in which the
// controller shift register reports them.
type Button uint8

const (
	A Button = 1 << iota
	B
	Select
	Start
	Up
	Down
	Left
	Right
)

var buttonNames = [8]string{"A", "B", "Select", "Start", "Up", "Down", "Left", "Right"}

func (b Button) String() string {
	var names []string
	for i := range 8 {
		if b&(1<<i) != 0 {
			names = append(names, buttonNames[i])
		}
	}
	return strings.Join(names, "+")
}

// ParseButtons parses a button combination such as "A+Start".
func ParseButtons(s string) (Button, bool) {
	var btns Button
	if s == "" {
		return 0, true
	}
	for _, name := range strings.Split(s, "+") {
		found := false
		for i, bn := range buttonNames {
			if strings.EqualFold(bn, strings.TrimSpace(name)) {
				btns |= 1 << i
				found = true
				break
			}
		}
		if !found {
			return 0, false
		}
	}
	return btns, true
}
