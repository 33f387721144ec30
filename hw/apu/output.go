package apu

import (
	"github.com/arl/blip"

	"nescore/emu/log"
)

const (
	// NTSC CPU clock rate.
	ClockRate = 1789773

	DefaultSampleRate = 44100
	MaxSampleRate     = 96000

	// Size of the output buffer, in samples.
	outputBufferSize = MaxSampleRate / 60 * 8

	// Longest time frame, in clocks (2 NTSC frames).
	maxFrameClocks = ClockRate / 30

	// Mixer output of 1.0 is scaled to this amplitude.
	outputAmplitude = 30000
)

// Output resamples the mixer output, produced at the CPU clock rate, to a
// 16-bit mono stream at the requested sample rate, using band-limited
// synthesis.
//
// Samples are made available at the end of each frame (EndFrame), and must be
// read with ReadSamples. Unread samples are dropped when the buffer fills up.
type Output struct {
	buf        *blip.Buffer
	sampleRate int

	time uint64 // clocks since the last EndFrame
	prev int32  // last amplitude added to buf
}

// NewOutput creates an output stream at the given sample rate.
func NewOutput(sampleRate int) *Output {
	sampleRate = min(max(sampleRate, 8000), MaxSampleRate)
	o := &Output{
		buf:        blip.NewBuffer(outputBufferSize),
		sampleRate: sampleRate,
	}
	o.buf.SetRates(ClockRate, float64(sampleRate))
	return o
}

func (o *Output) SampleRate() int { return o.sampleRate }

// Add feeds the mixer output for one CPU cycle.
func (o *Output) Add(sample float32) {
	amp := int32(sample * outputAmplitude)
	if delta := amp - o.prev; delta != 0 {
		o.buf.AddDelta(o.time, delta)
		o.prev = amp
	}
	o.time++

	if o.time >= maxFrameClocks {
		// Nobody ends frames (CPU stopped rendering?), don't overflow blip.
		o.EndFrame()
	}
}

// EndFrame makes the samples for all clocks added so far available.
func (o *Output) EndFrame() {
	if o.time == 0 {
		return
	}

	if avail := o.buf.SamplesAvailable(); avail > outputBufferSize/2 {
		log.ModSound.DebugZ("audio buffer full, dropping samples").Int("count", avail).End()
		var scratch [512]int16
		for o.buf.SamplesAvailable() > 0 {
			o.buf.ReadSamples(scratch[:], len(scratch), blip.Mono)
		}
	}

	o.buf.EndFrame(int(o.time))
	o.time = 0
}

// SamplesAvailable returns the number of samples that can be read.
func (o *Output) SamplesAvailable() int {
	return o.buf.SamplesAvailable()
}

// ReadSamples reads at most len(dst) samples into dst and returns the number
// of samples read.
func (o *Output) ReadSamples(dst []int16) int {
	return o.buf.ReadSamples(dst, len(dst), blip.Mono)
}

// Clear discards all buffered samples.
func (o *Output) Clear() {
	o.buf.Clear()
	o.time = 0
	o.prev = 0
}
