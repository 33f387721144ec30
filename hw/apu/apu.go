// Package apu implements the NES audio processing unit: two pulse channels, a
// triangle channel, a noise channel, the delta modulation channel, the frame
// counter and the mixer.
package apu

import (
	"nescore/emu/log"
	"nescore/hw/hwdefs"
	"nescore/hw/hwio"
	"nescore/hw/snapshot"
)

// APU is clocked once per CPU cycle with Tick.
//
// Registers $4000-$4013 and $4015 are mapped with MapBank. $4017 is shared
// with the second controller port and must be forwarded to
// WriteFrameCounter.
type APU struct {
	cpu   cpu
	mixer *Mixer
	out   *Output

	Square1  squareChannel
	Square2  squareChannel
	Triangle triangleChannel
	Noise    noiseChannel
	DMC      *DMC

	frameCounter frameCounter

	cycle   uint64
	levels  [hwdefs.NumAudioChannels]uint8 // last channel outputs fed to the mixer
	sample  float32
	enabled bool

	STATUS hwio.Reg8 `hwio:"offset=0x15,rcb,wcb"`
}

// New creates an APU, in power-up state. cpu receives the frame counter and
// DMC interrupts. If out is nil, no audio samples are produced.
func New(cpu cpu, mixer *Mixer, out *Output) *APU {
	if mixer == nil {
		mixer = NewMixer()
	}
	a := &APU{
		cpu:      cpu,
		mixer:    mixer,
		out:      out,
		enabled:  true,
		Square1:  newSquareChannel(Square1),
		Square2:  newSquareChannel(Square2),
		Triangle: newTriangleChannel(),
		Noise:    newNoiseChannel(),
		DMC:      NewDMC(cpu),
	}
	a.frameCounter.apu = a
	a.frameCounter.cpu = cpu

	hwio.MustInitRegs(a)
	hwio.MustInitRegs(&a.Square1)
	hwio.MustInitRegs(&a.Square2)
	hwio.MustInitRegs(&a.Triangle)
	hwio.MustInitRegs(&a.Noise)

	a.Reset(hwdefs.HardReset)
	return a
}

// MapRegisters maps all APU registers but $4017 on the CPU bus.
func (a *APU) MapRegisters(bus *hwio.Table) {
	bus.MapBank(0x4000, &a.Square1, 0)
	bus.MapBank(0x4004, &a.Square2, 0)
	bus.MapBank(0x4000, &a.Triangle, 0)
	bus.MapBank(0x4000, &a.Noise, 0)
	bus.MapBank(0x4000, a.DMC, 0)
	bus.MapBank(0x4000, a, 0)
}

func (a *APU) Mixer() *Mixer   { return a.mixer }
func (a *APU) Output() *Output { return a.out }

// SetEnabled enables or disables sample generation. The units keep running
// when disabled.
func (a *APU) SetEnabled(enabled bool) { a.enabled = enabled }

func (a *APU) status() uint8 {
	var status uint8

	if a.Square1.status() {
		status |= 0x01
	}
	if a.Square2.status() {
		status |= 0x02
	}
	if a.Triangle.status() {
		status |= 0x04
	}
	if a.Noise.status() {
		status |= 0x08
	}
	if a.DMC.status() {
		status |= 0x10
	}
	if a.cpu.HasIRQSource(hwdefs.FrameCounter) {
		status |= 0x40
	}
	if a.cpu.HasIRQSource(hwdefs.DMC) {
		status |= 0x80
	}
	return status
}

// ReadSTATUS handles reads of $4015: IF-D NT21.
func (a *APU) ReadSTATUS(_ uint8, peek bool) uint8 {
	status := a.status()
	if peek {
		return status
	}

	// Reading $4015 clears the frame counter interrupt flag.
	a.cpu.ClearIRQSource(hwdefs.FrameCounter)

	log.ModSound.DebugZ("read status").Hex8("status", status).End()
	return status
}

// WriteSTATUS handles writes to $4015: ---D NT21, channel enable flags.
func (a *APU) WriteSTATUS(_, val uint8) {
	log.ModSound.DebugZ("write status").Hex8("val", val).End()

	// Writing to $4015 clears the DMC interrupt flag. This needs to be done
	// before enabling the DMC, which can trigger an IRQ.
	a.cpu.ClearIRQSource(hwdefs.DMC)

	a.Square1.setEnabled(val&0x01 == 0x01)
	a.Square2.setEnabled(val&0x02 == 0x02)
	a.Triangle.setEnabled(val&0x04 == 0x04)
	a.Noise.setEnabled(val&0x08 == 0x08)
	a.DMC.setEnabled(val&0x10 == 0x10)
}

// WriteFrameCounter handles writes to $4017.
func (a *APU) WriteFrameCounter(val uint8) {
	a.frameCounter.write(val)
}

func (a *APU) clockFrame(ftyp FrameType) {
	// Quarter & half frames clock envelopes & linear counter.
	a.Square1.tickEnvelope()
	a.Square2.tickEnvelope()
	a.Triangle.tickLinearCounter()
	a.Noise.tickEnvelope()

	if ftyp == HalfFrame {
		// Half frames also clock length counters & sweep units.
		a.Square1.tickLengthCounter()
		a.Square2.tickLengthCounter()
		a.Triangle.tickLengthCounter()
		a.Noise.tickLengthCounter()

		a.Square1.tickSweep()
		a.Square2.tickSweep()
	}
}

func (a *APU) Reset(soft bool) {
	a.cycle = 0

	a.Square1.reset(soft)
	a.Square2.reset(soft)
	a.Triangle.reset(soft)
	a.Noise.reset(soft)
	a.DMC.reset(soft)
	a.frameCounter.reset(soft)

	a.levels = [hwdefs.NumAudioChannels]uint8{}
	a.mixer.Reset()
	a.sample = 0
	if a.out != nil {
		a.out.Clear()
	}
}

// Tick runs the APU for one CPU cycle.
func (a *APU) Tick() {
	a.cycle++
	a.frameCounter.tick()

	// Reload length counters written during the previous cycle, after the
	// frame counter had a chance to clock them.
	a.Square1.reloadLengthCounter()
	a.Square2.reloadLengthCounter()
	a.Triangle.reloadLengthCounter()
	a.Noise.reloadLengthCounter()

	a.Square1.clock()
	a.Square2.clock()
	a.Triangle.clock()
	a.Noise.clock()
	a.DMC.Clock()

	if a.out == nil || !a.enabled {
		return
	}

	if levels := a.Levels(); levels != a.levels || a.mixer.Filter != FilterOff {
		a.levels = levels
		a.sample = a.mixer.Mix(levels[0], levels[1], levels[2], levels[3], levels[4])
	}
	a.out.Add(a.sample)
}

// EndFrame makes the samples produced since the last call available on the
// output stream.
func (a *APU) EndFrame() {
	if a.out != nil {
		a.out.EndFrame()
	}
}

// Cycles returns the number of cycles the APU ran since reset.
func (a *APU) Cycles() uint64 { return a.cycle }

// Levels returns the current output level of each channel.
func (a *APU) Levels() [hwdefs.NumAudioChannels]uint8 {
	return [hwdefs.NumAudioChannels]uint8{
		a.Square1.output(),
		a.Square2.output(),
		a.Triangle.output(),
		a.Noise.output(),
		a.DMC.Level(),
	}
}

func (a *APU) State() snapshot.APU {
	var s snapshot.APU
	a.Square1.saveState(&s.Square1)
	a.Square2.saveState(&s.Square2)
	a.Triangle.saveState(&s.Triangle)
	a.Noise.saveState(&s.Noise)
	a.DMC.saveState(&s.DMC)
	a.frameCounter.saveState(&s.FrameCounter)
	s.Cycle = a.cycle
	return s
}

// SetState restores the APU state. IRQ sources are part of the CPU state.
func (a *APU) SetState(s *snapshot.APU) {
	a.Square1.setState(&s.Square1)
	a.Square2.setState(&s.Square2)
	a.Triangle.setState(&s.Triangle)
	a.Noise.setState(&s.Noise)
	a.DMC.setState(&s.DMC)
	a.frameCounter.setState(&s.FrameCounter)
	a.cycle = s.Cycle

	// Force the mixer to recompute the output.
	a.levels = [hwdefs.NumAudioChannels]uint8{0xFF}
	a.mixer.Reset()
}
