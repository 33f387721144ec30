package apu

import "nescore/hw/hwdefs"

// Channel identifies an audio channel.
type Channel uint8

const (
	Square1 Channel = iota
	Square2
	Triangle
	Noise
	DPCM
)

var channelNames = [hwdefs.NumAudioChannels]string{"square1", "square2", "triangle", "noise", "dmc"}

func (c Channel) String() string {
	if int(c) < len(channelNames) {
		return channelNames[c]
	}
	return "unknown"
}

// ChannelByName returns the channel named s, as returned by Channel.String.
func ChannelByName(s string) (Channel, bool) {
	for i, n := range channelNames {
		if n == s {
			return Channel(i), true
		}
	}
	return 0, false
}

// cpu is the view the APU has of the CPU: its IRQ line and cycle counter.
type cpu interface {
	SetIRQSource(src hwdefs.IRQSource)
	ClearIRQSource(src hwdefs.IRQSource)
	HasIRQSource(src hwdefs.IRQSource) bool
	CurrentCycle() int64
}

// FrameType is the kind of clock generated by the frame counter.
type FrameType uint8

const (
	NoFrame FrameType = iota
	QuarterFrame
	HalfFrame
)
