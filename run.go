package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"

	"golang.org/x/sync/errgroup"

	"nescore/emu"
	"nescore/hw/mappers"
	"nescore/ines"
)

// runMain runs the emulator, without display, with the given rom.
func runMain(args Run) {
	cfg := loadConfig(args)

	emulator, err := emu.Open(args.RomPath, cfg)
	checkf(err, "failed to start emulator")

	if args.Trace != nil {
		emulator.NES.CPU.SetTraceOutput(args.Trace, emulator.NES.PPU)
		defer args.Trace.Close()
	}

	if args.LoadState != "" {
		checkf(emulator.LoadStateFile(args.LoadState), "failed to load state")
	}

	var wav *emu.WavWriter
	if args.Wav != "" {
		wav, err = emu.NewWavWriter(args.Wav, emulator.SampleRate())
		checkf(err, "failed to create wav file")
		emulator.SetAudioSink(wav)
	}

	if args.CPUProfile != "" {
		f, err := os.Create(args.CPUProfile)
		checkf(err, "failed to create cpu profile file")
		checkf(pprof.StartCPUProfile(f), "failed to start cpu profile")
		defer func() {
			pprof.StopCPUProfile()
			f.Close()
			fmt.Println("CPU profile written to", args.CPUProfile)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = emulator.Run(ctx, args.Frames)
	if !errors.Is(err, context.Canceled) {
		checkf(err, "emulation error")
	}

	if wav != nil {
		checkf(wav.Close(), "failed to write wav file")
	}
	if args.SaveState != "" {
		checkf(emulator.SaveStateFile(args.SaveState), "failed to save state")
	}
	if args.Screenshot != "" {
		checkf(emulator.SaveScreenshot(args.Screenshot), "failed to save screenshot")
	}
}

func loadConfig(args Run) emu.Config {
	var cfg emu.Config
	if args.Config != "" {
		var err error
		cfg, err = emu.LoadConfigFile(args.Config)
		checkf(err, "failed to load config")
	} else {
		cfg = emu.LoadConfigOrDefault()
	}

	if args.Granularity != "" {
		cfg.Emulation.Granularity = args.Granularity
	}
	// No audio device, samples are only produced for the wav file.
	if args.Wav == "" {
		cfg.Audio.DisableAudio = true
	}
	return cfg
}

// romInfos prints the infos of all roms. Roms are decoded concurrently, infos
// are printed in order.
func romInfos(w io.Writer, paths []string) error {
	bufs := make([]bytes.Buffer, len(paths))

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		g.Go(func() error {
			rom, err := ines.Open(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			buf := &bufs[i]
			fmt.Fprintf(buf, "%s\n", path)
			rom.PrintInfos(buf)
			if m, err := mappers.New(rom); err != nil {
				fmt.Fprintf(buf, "Supported: no (%s)\n", err)
			} else {
				fmt.Fprintf(buf, "Board:     %s\n", m.Name())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i := range bufs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if _, err := w.Write(bufs[i].Bytes()); err != nil {
			return err
		}
	}
	return nil
}
