package emu

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/go-faster/errors"
	"github.com/kirsle/configdir"

	"nescore/emu/log"
	"nescore/hw"
	"nescore/hw/apu"
	"nescore/hw/hwdefs"
)

type Config struct {
	Emulation EmulationConfig `toml:"emulation"`
	Video     VideoConfig     `toml:"video"`
	Audio     AudioConfig     `toml:"audio"`
	Rewind    RewindConfig    `toml:"rewind"`
}

type EmulationConfig struct {
	Granularity string `toml:"granularity"` // "cycle" or "instruction"
	NMIDelay    int    `toml:"nmi_delay"`   // in PPU dots
}

type VideoConfig struct {
	PixelFormat string `toml:"pixel_format"`
}

type AudioConfig struct {
	DisableAudio bool    `toml:"disable_audio"`
	SampleRate   int     `toml:"sample_rate"`
	Filter       string  `toml:"filter"` // "off", "normal" or "high"
	MasterVolume float32 `toml:"master_volume"`

	Volumes ChannelVolumes `toml:"volumes"`
}

// ChannelVolumes holds per-channel volumes, in [0, 1].
type ChannelVolumes struct {
	Square1  float32 `toml:"square1"`
	Square2  float32 `toml:"square2"`
	Triangle float32 `toml:"triangle"`
	Noise    float32 `toml:"noise"`
	DMC      float32 `toml:"dmc"`
}

func (v *ChannelVolumes) array() [hwdefs.NumAudioChannels]*float32 {
	return [hwdefs.NumAudioChannels]*float32{
		apu.Square1:  &v.Square1,
		apu.Square2:  &v.Square2,
		apu.Triangle: &v.Triangle,
		apu.Noise:    &v.Noise,
		apu.DPCM:     &v.DMC,
	}
}

type RewindConfig struct {
	Frames            int `toml:"frames"` // ring capacity, 0 disables rewind
	FramesPerSnapshot int `toml:"frames_per_snapshot"`
}

const (
	maxNMIDelay   = 341 // a whole scanline
	maxRewind     = 3600
	minSampleRate = 8000
)

// DefaultConfig returns the configuration of an NTSC console, with audio
// enabled and rewind disabled.
func DefaultConfig() Config {
	return Config{
		Emulation: EmulationConfig{
			Granularity: hw.GranularityCycle.String(),
			NMIDelay:    hw.DefaultNMIDelay,
		},
		Video: VideoConfig{
			PixelFormat: hw.RGBA8888.String(),
		},
		Audio: AudioConfig{
			SampleRate:   apu.DefaultSampleRate,
			Filter:       apu.FilterOff.String(),
			MasterVolume: 1,
			Volumes: ChannelVolumes{
				Square1:  1,
				Square2:  1,
				Triangle: 1,
				Noise:    1,
				DMC:      1,
			},
		},
		Rewind: RewindConfig{
			Frames:            0,
			FramesPerSnapshot: 1,
		},
	}
}

// Check replaces the invalid values of cfg with valid ones, logging a warning
// for each.
func (cfg *Config) Check() {
	def := DefaultConfig()

	if _, err := hw.ParseGranularity(cfg.Emulation.Granularity); err != nil {
		log.ModEmu.Warnf("Invalid granularity %q, fallback to %q", cfg.Emulation.Granularity, def.Emulation.Granularity)
		cfg.Emulation.Granularity = def.Emulation.Granularity
	}
	if cfg.Emulation.NMIDelay <= 0 || cfg.Emulation.NMIDelay > maxNMIDelay {
		log.ModEmu.Warnf("Invalid NMI delay %d, fallback to %d", cfg.Emulation.NMIDelay, def.Emulation.NMIDelay)
		cfg.Emulation.NMIDelay = def.Emulation.NMIDelay
	}

	if _, err := hw.ParsePixelFormat(cfg.Video.PixelFormat); err != nil {
		log.ModEmu.Warnf("Invalid pixel format %q, fallback to %q", cfg.Video.PixelFormat, def.Video.PixelFormat)
		cfg.Video.PixelFormat = def.Video.PixelFormat
	}

	acfg := &cfg.Audio
	if acfg.SampleRate < minSampleRate || acfg.SampleRate > apu.MaxSampleRate {
		rate := min(max(acfg.SampleRate, minSampleRate), apu.MaxSampleRate)
		log.ModEmu.Warnf("Sample rate %d out of range, clamped to %d", acfg.SampleRate, rate)
		acfg.SampleRate = rate
	}
	if _, err := apu.ParseFilterMode(acfg.Filter); err != nil {
		log.ModEmu.Warnf("Invalid audio filter %q, fallback to %q", acfg.Filter, def.Audio.Filter)
		acfg.Filter = def.Audio.Filter
	}
	clampVolume("master", &acfg.MasterVolume)
	for i, v := range acfg.Volumes.array() {
		clampVolume(apu.Channel(i).String(), v)
	}

	rcfg := &cfg.Rewind
	if rcfg.Frames < 0 || rcfg.Frames > maxRewind {
		frames := min(max(rcfg.Frames, 0), maxRewind)
		log.ModEmu.Warnf("Rewind frames %d out of range, clamped to %d", rcfg.Frames, frames)
		rcfg.Frames = frames
	}
	if rcfg.FramesPerSnapshot < 1 {
		log.ModEmu.Warnf("Invalid rewind period %d, fallback to 1", rcfg.FramesPerSnapshot)
		rcfg.FramesPerSnapshot = 1
	}
}

func clampVolume(name string, v *float32) {
	if *v >= 0 && *v <= 1 {
		return
	}
	clamped := min(max(*v, 0), 1)
	log.ModEmu.Warnf("Volume %s=%g out of range, clamped to %g", name, *v, clamped)
	*v = clamped
}

// Options returns the hardware options described by cfg, which must have been
// checked.
func (cfg *Config) Options() hw.Options {
	gran, _ := hw.ParseGranularity(cfg.Emulation.Granularity)
	format, _ := hw.ParsePixelFormat(cfg.Video.PixelFormat)

	opts := hw.Options{
		Granularity: gran,
		NMIDelay:    cfg.Emulation.NMIDelay,
		FrameBuffer: hw.NewFrameBuffer(format),
	}
	if !cfg.Audio.DisableAudio {
		opts.Mixer = cfg.Audio.mixer()
		opts.Output = apu.NewOutput(cfg.Audio.SampleRate)
	}
	return opts
}

func (acfg *AudioConfig) mixer() *apu.Mixer {
	mixer := apu.NewMixer()
	mixer.Filter, _ = apu.ParseFilterMode(acfg.Filter)
	mixer.Master = acfg.MasterVolume
	for i, v := range acfg.Volumes.array() {
		mixer.Volumes[i] = *v
	}
	return mixer
}

// ConfigDir returns the nescore configuration directory, creating it if
// needed.
var ConfigDir = sync.OnceValue(func() string {
	dir := configdir.LocalConfig("nescore")
	if err := configdir.MakePath(dir); err != nil {
		log.ModEmu.Fatalf("failed to create directory %s: %v", dir, err)
	}
	return dir
})

const cfgFilename = "config.toml"

// LoadConfigOrDefault loads the configuration from the nescore config
// directory, or provide a default one.
func LoadConfigOrDefault() Config {
	path := filepath.Join(ConfigDir(), cfgFilename)
	cfg, err := LoadConfigFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.ModEmu.WarnZ("Failed to load config, using defaults").
				String("path", path).
				Error("err", err).
				End()
		}
		return DefaultConfig()
	}
	return cfg
}

// LoadConfigFile loads and checks the configuration at path. Values missing
// from the file keep their default value.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "config")
	}
	cfg.Check()
	return cfg, nil
}

// SaveConfig into nescore config directory.
func SaveConfig(cfg Config) error {
	return SaveConfigFile(filepath.Join(ConfigDir(), cfgFilename), cfg)
}

func SaveConfigFile(path string, cfg Config) error {
	buf, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, buf, 0644)
}
