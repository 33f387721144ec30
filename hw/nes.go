package hw

import (
	"bytes"

	"github.com/go-faster/errors"

	"nescore/emu/log"
	"nescore/hw/apu"
	"nescore/hw/hwdefs"
	"nescore/hw/hwio"
	"nescore/hw/mappers"
	"nescore/hw/snapshot"
	"nescore/ines"
)

// Options configures the machine created by NewNES.
type Options struct {
	Granularity Granularity
	NMIDelay    int // in PPU dots, 0 means DefaultNMIDelay

	// Mixer and audio output. A nil Mixer is replaced by a default one, a nil
	// Output disables sample generation.
	Mixer  *apu.Mixer
	Output *apu.Output

	// FrameBuffer receives the pictures. If nil, the PPU owns one. NewNES
	// fails with ErrFrameBuffer if it can't hold a whole screen.
	FrameBuffer *FrameBuffer
}

// NES is the whole console, with a cartridge inserted.
type NES struct {
	CPU         *CPU
	PPU         *PPU
	APU         *apu.APU
	DMA         *DMA
	Controllers *Controllers
	Mapper      mappers.Mapper
	Rom         *ines.Rom
	Scheduler   *Scheduler

	// $4020-$FFFF: cartridge space
	Cart hwio.Device `hwio:"offset=0x4020,size=0xBFE0,rcb,wcb"`
}

// NewNES powers up a console with rom inserted. It fails if rom mapper isn't
// supported, if rom is malformed or if the frame buffer is invalid.
func NewNES(rom *ines.Rom, opts Options) (*NES, error) {
	if opts.FrameBuffer != nil {
		if err := opts.FrameBuffer.Check(); err != nil {
			return nil, err
		}
	}
	mapper, err := mappers.New(rom)
	if err != nil {
		return nil, err
	}

	nes := &NES{
		CPU:    NewCPU(),
		Mapper: mapper,
		Rom:    rom,
	}
	nes.PPU = NewPPU(nes.CPU, mapper)
	nes.APU = apu.New(nes.CPU, opts.Mixer, opts.Output)
	nes.DMA = newDMA(nes.CPU, nes.APU.DMC)
	nes.Controllers = newControllers(nes.APU.WriteFrameCounter)
	nes.Scheduler = newScheduler(nes.CPU, nes.PPU, nes.APU, nes.DMA)
	nes.CPU.dma = nes.DMA

	mapper.SetCPUClock(nes.CPU.CurrentCycle)
	if opts.NMIDelay > 0 {
		nes.PPU.SetNMIDelay(opts.NMIDelay)
	}
	if opts.FrameBuffer != nil {
		nes.PPU.fb = opts.FrameBuffer
	}
	nes.Scheduler.SetGranularity(opts.Granularity)

	hwio.MustInitRegs(nes)
	nes.initBus()
	nes.Reset(hwdefs.HardReset)

	log.ModEmu.InfoZ("console powered up").
		String("mapper", mapper.Name()).
		Stringer("granularity", opts.Granularity).
		End()
	return nes, nil
}

// initBus maps the units on the CPU bus.
//
//	$0000-$1FFF	2KB RAM, mirrored
//	$2000-$3FFF	PPU registers, mirrored every 8 bytes
//	$4000-$4013	APU
//	$4014		OAM DMA
//	$4015		APU status
//	$4016		controllers strobe, port 1
//	$4017		port 2, APU frame counter
//	$4020-$FFFF	cartridge
func (nes *NES) initBus() {
	bus := nes.CPU.Bus
	nes.PPU.MapRegisters(bus)
	nes.APU.MapRegisters(bus)
	bus.MapBank(0x4014, nes.DMA, 0)
	bus.MapBank(0x4000, nes.Controllers, 0)
	bus.MapBank(0x0000, nes, 0)
}

func (nes *NES) ReadCART(addr uint16, _ bool) uint8 { return nes.Mapper.ReadPRG(addr) }
func (nes *NES) WriteCART(addr uint16, val uint8)   { nes.Mapper.WritePRG(addr, val) }

// Reset resets the console, soft is the reset button, hard is power cycling.
func (nes *NES) Reset(soft bool) {
	nes.PPU.Reset(soft)
	nes.APU.Reset(soft)
	nes.DMA.reset()
	nes.Mapper.Reset()
	if !soft {
		clear(nes.CPU.RAM.Data)
	}
	nes.CPU.Reset(soft)
}

// RunFrame emulates a whole frame.
func (nes *NES) RunFrame() {
	nes.Scheduler.RunFrame()
}

// SetButtons sets the state of the controller plugged in port (0 or 1).
func (nes *NES) SetButtons(port int, btns hwdefs.Button) {
	nes.Controllers.SetButtons(port, btns)
}

// SetFrameBuffer changes the buffer receiving the pictures, see
// PPU.SetFrameBuffer.
func (nes *NES) SetFrameBuffer(fb *FrameBuffer) error {
	return nes.PPU.SetFrameBuffer(fb)
}

// State returns a snapshot of the whole machine.
func (nes *NES) State() *snapshot.NES {
	return &snapshot.NES{
		CPU:    nes.CPU.State(),
		RAM:    bytes.Clone(nes.CPU.RAM.Data),
		DMA:    nes.DMA.State(),
		PPU:    nes.PPU.State(),
		APU:    nes.APU.State(),
		Mapper: nes.Mapper.State(),
		Input:  nes.Controllers.State(),
	}
}

// SetState restores a snapshot. The snapshot is checked against the machine
// before anything is modified: on error the machine is left untouched.
func (nes *NES) SetState(s *snapshot.NES) error {
	if len(s.RAM) != len(nes.CPU.RAM.Data) {
		return errors.Wrapf(snapshot.ErrSize, "ram is %d bytes", len(s.RAM))
	}
	if len(s.PPU.VRAM) != snapshot.VRAMSize ||
		len(s.PPU.OAM) != snapshot.OAMSize ||
		len(s.PPU.Palette) != snapshot.PaletteSize {
		return errors.Wrap(snapshot.ErrSize, "ppu memories")
	}

	// The mapper is the only unit which can refuse a state, it's left
	// unmodified on error.
	if err := nes.Mapper.SetState(&s.Mapper); err != nil {
		return errors.Wrap(err, "mapper")
	}

	nes.CPU.SetState(&s.CPU)
	copy(nes.CPU.RAM.Data, s.RAM)
	nes.DMA.SetState(&s.DMA)
	nes.PPU.SetState(&s.PPU)
	nes.APU.SetState(&s.APU)
	nes.Controllers.SetState(&s.Input)
	return nil
}

// SaveState serializes the whole machine state.
func (nes *NES) SaveState() []byte {
	return snapshot.Encode(nes.State())
}

// LoadState restores a state produced by SaveState. The machine is only
// modified if the whole state is valid.
func (nes *NES) LoadState(b []byte) error {
	s, err := snapshot.Decode(b)
	if err != nil {
		return errors.Wrap(err, "decode state")
	}
	if err := nes.SetState(s); err != nil {
		return errors.Wrap(err, "restore state")
	}
	log.ModEmu.DebugZ("state loaded").Int("size", len(b)).End()
	return nil
}
