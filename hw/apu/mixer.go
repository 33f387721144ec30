package apu

import (
	"fmt"

	"nescore/hw/hwdefs"
)

// FilterMode selects the low-pass filter applied to the mixer output.
type FilterMode uint8

const (
	FilterOff FilterMode = iota
	FilterNormal
	FilterHigh // high quality, lets more of the high frequencies through
)

func (m FilterMode) String() string {
	switch m {
	case FilterOff:
		return "off"
	case FilterNormal:
		return "normal"
	case FilterHigh:
		return "high"
	}
	return fmt.Sprintf("FilterMode(%d)", m)
}

// ParseFilterMode parses the string representation of a FilterMode.
func ParseFilterMode(s string) (FilterMode, error) {
	for _, m := range []FilterMode{FilterOff, FilterNormal, FilterHigh} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown filter mode %q", s)
}

// Low-pass filter coefficients.
const (
	filterBetaNormal = 0.6
	filterBetaHigh   = 0.8
)

// Mixer combines the channel outputs with the non-linear DAC approximation:
//
//	pulse_out = 95.52 / (8128 / (pulse1 + pulse2) + 100)
//	tnd_out   = 163.67 / (22638 / (3 * triangle + 2 * noise + dmc) + 100)
//
// Both formulas are precomputed in lookup tables.
type Mixer struct {
	pulseTable [31]float32
	tndTable   [203]float32

	// Volumes holds per channel volumes, in [0, 1].
	Volumes [hwdefs.NumAudioChannels]float32
	Master  float32
	Filter  FilterMode

	prev float32
}

// NewMixer returns a mixer with all volumes set to 1 and the low-pass filter
// disabled.
func NewMixer() *Mixer {
	m := &Mixer{Master: 1}
	for i := range m.pulseTable {
		if i != 0 {
			m.pulseTable[i] = float32(95.52 / (8128.0/float64(i) + 100))
		}
	}
	for i := range m.tndTable {
		if i != 0 {
			m.tndTable[i] = float32(163.67 / (22638.0/float64(i) + 100))
		}
	}
	for i := range m.Volumes {
		m.Volumes[i] = 1
	}
	return m
}

// PulseTable returns the precomputed pulse output for the sum of both pulse
// channels, in [0, 30].
func (m *Mixer) PulseTable(idx int) float32 { return m.pulseTable[idx] }

// TNDTable returns the precomputed output for 3*triangle + 2*noise + dmc, in
// [0, 202].
func (m *Mixer) TNDTable(idx int) float32 { return m.tndTable[idx] }

// Mix returns the output sample for the given channel levels. Pulse, triangle
// and noise levels are 4 bits wide, dmc is 7 bits wide. The result is in [0,
// 1] with default volumes, approximately.
func (m *Mixer) Mix(pulse1, pulse2, triangle, noise, dmc uint8) float32 {
	pulse1 &= 0x0F
	pulse2 &= 0x0F
	triangle &= 0x0F
	noise &= 0x0F
	dmc &= 0x7F

	v := &m.Volumes
	pulse := m.pulseTable[pulse1+pulse2] * (v[Square1] + v[Square2]) / 2
	tnd := m.tndTable[3*int(triangle)+2*int(noise)+int(dmc)] * (v[Triangle] + v[Noise] + v[DPCM]) / 3

	out := (pulse + tnd) * m.Master

	switch m.Filter {
	case FilterNormal:
		out = filterBetaNormal*out + (1-filterBetaNormal)*m.prev
	case FilterHigh:
		out = filterBetaHigh*out + (1-filterBetaHigh)*m.prev
	}
	m.prev = out
	return out
}

// Reset clears the filter history.
func (m *Mixer) Reset() {
	m.prev = 0
}
