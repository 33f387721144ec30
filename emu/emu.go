package emu

import (
	"context"
	"image/png"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"

	"nescore/emu/log"
	"nescore/hw"
	"nescore/hw/hwdefs"
	"nescore/ines"
	"nescore/rewind"
)

// AudioSink receives the audio samples produced at the end of each frame.
type AudioSink interface {
	WriteSamples(samples []int16) error
}

// Emulator is an emulation session: a console with a cartridge inserted, its
// frame buffer, its audio stream and its rewind buffer.
type Emulator struct {
	NES *hw.NES

	cfg     Config
	rewind  *rewind.Rewind
	sink    AudioSink
	samples []int16
	frames  int64

	// These are accessed concurrently by the emulator loop and its callers.
	quit    atomic.Bool
	paused  atomic.Bool
	reset   atomic.Bool
	restart atomic.Bool
	back    atomic.Bool
	buttons [2]atomic.Uint32
}

// Launch powers up a console with rom inserted, configured by cfg. It doesn't
// start the emulation loop, call Run() or RunOneFrame() for that.
func Launch(rom *ines.Rom, cfg Config) (*Emulator, error) {
	cfg.Check()

	nes, err := hw.NewNES(rom, cfg.Options())
	if err != nil {
		return nil, errors.Wrap(err, "power up failed")
	}

	e := &Emulator{
		NES:    nes,
		cfg:    cfg,
		rewind: rewind.New(cfg.Rewind.Frames),
	}
	e.rewind.SetFrequency(cfg.Rewind.FramesPerSnapshot)

	if cfg.Audio.DisableAudio {
		log.ModEmu.WarnZ("Audio disabled").End()
	} else {
		e.samples = make([]int16, cfg.Audio.SampleRate/10)
		log.ModEmu.InfoZ("Audio enabled").Int("rate", cfg.Audio.SampleRate).End()
	}
	if cfg.Rewind.Frames > 0 {
		log.ModEmu.InfoZ("Rewind enabled").
			Int("snapshots", cfg.Rewind.Frames).
			Int("period", cfg.Rewind.FramesPerSnapshot).
			End()
	}
	return e, nil
}

// Open loads the ROM at path, then launches it.
func Open(path string, cfg Config) (*Emulator, error) {
	rom, err := ines.Open(path)
	if err != nil {
		return nil, err
	}
	return Launch(rom, cfg)
}

// SetAudioSink sets the destination of audio samples. A nil sink discards
// them.
func (e *Emulator) SetAudioSink(sink AudioSink) { e.sink = sink }

// SampleRate returns the audio sample rate, or 0 if audio is disabled.
func (e *Emulator) SampleRate() int {
	if out := e.NES.APU.Output(); out != nil {
		return out.SampleRate()
	}
	return 0
}

// Frames returns the number of frames emulated since launch.
func (e *Emulator) Frames() int64 { return e.frames }

// Rewind returns the rewind buffer.
func (e *Emulator) Rewind() *rewind.Rewind { return e.rewind }

// FrameBuffer returns the last rendered picture.
func (e *Emulator) FrameBuffer() *hw.FrameBuffer { return e.NES.PPU.FrameBuffer() }

// RunOneFrame emulates a whole frame, then flushes the audio samples and takes
// a rewind snapshot when one is due.
func (e *Emulator) RunOneFrame() error {
	for port := range e.buttons {
		e.NES.SetButtons(port, hwdefs.Button(e.buttons[port].Load()))
	}

	e.NES.RunFrame()
	e.frames++

	if err := e.flushAudio(); err != nil {
		return err
	}
	e.rewind.NewFrame(e.NES)
	return nil
}

func (e *Emulator) flushAudio() error {
	out := e.NES.APU.Output()
	if out == nil {
		return nil
	}
	for out.SamplesAvailable() > 0 {
		n := out.ReadSamples(e.samples)
		if e.sink == nil {
			continue
		}
		if err := e.sink.WriteSamples(e.samples[:n]); err != nil {
			return errors.Wrap(err, "audio")
		}
	}
	return nil
}

// Run runs the emulation loop until ctx is canceled, Stop is called, or
// nframes have been emulated (no limit if nframes <= 0).
func (e *Emulator) Run(ctx context.Context, nframes int64) error {
	start := time.Now()
	first := e.frames

	for nframes <= 0 || e.frames-first < nframes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.shouldStop() {
			break
		}
		e.handleControls()

		if e.isPaused() {
			// Don't burn cpu while paused.
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if err := e.RunOneFrame(); err != nil {
			return err
		}
	}

	log.ModEmu.InfoZ("Emulation loop exited").
		Int64("frames", e.frames-first).
		Duration("elapsed", time.Since(start)).
		End()
	return nil
}

// SetButtons sets the state of the controller plugged in port (0 or 1). It is
// taken into account at the start of the next frame.
func (e *Emulator) SetButtons(port int, btns hwdefs.Button) {
	if port < 0 || port >= len(e.buttons) {
		return
	}
	e.buttons[port].Store(uint32(btns))
}

// SetPause, Stop, Reset, Restart and StepBack allows to control the emulator
// loop in a concurrent-safe way.

func (e *Emulator) SetPause(pause bool) { e.paused.CompareAndSwap(!pause, pause) }
func (e *Emulator) Reset()              { e.reset.Store(true) }
func (e *Emulator) Restart()            { e.restart.Store(true) }
func (e *Emulator) StepBack()           { e.back.Store(true) }
func (e *Emulator) Stop() {
	e.quit.Store(true)
}

func (e *Emulator) isPaused() bool {
	return e.paused.Load()
}

func (e *Emulator) shouldStop() bool {
	return e.quit.Load()
}

func (e *Emulator) handleControls() {
	if e.reset.CompareAndSwap(true, false) {
		log.ModEmu.InfoZ("Performing soft reset").End()
		e.NES.Reset(hwdefs.SoftReset)
	} else if e.restart.CompareAndSwap(true, false) {
		log.ModEmu.InfoZ("Performing hard reset").End()
		e.NES.Reset(hwdefs.HardReset)
	}

	if e.back.CompareAndSwap(true, false) {
		if err := e.rewind.Pop(e.NES); err != nil {
			log.ModEmu.WarnZ("Can't rewind").Error("err", err).End()
		}
	}
}

// SaveScreenshot writes the last rendered picture as a PNG file.
func (e *Emulator) SaveScreenshot(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "screenshot")
	}
	if err := png.Encode(f, e.FrameBuffer().Image()); err != nil {
		f.Close()
		return errors.Wrap(err, "screenshot")
	}
	return f.Close()
}
