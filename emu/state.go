package emu

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"

	"nescore/emu/log"
	"nescore/hw/snapshot"
)

const stateExt = ".state"

// StatePath returns the path of the save-state file of the given slot for the
// ROM at romPath, in the states subdirectory of the config directory.
func StatePath(romPath string, slot int) string {
	return statePath(ConfigDir(), romPath, slot)
}

func statePath(cfgdir, romPath string, slot int) string {
	base := filepath.Base(romPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(cfgdir, "states", fmt.Sprintf("%s.%d%s", base, slot, stateExt))
}

// SaveStateFile saves the console state at path. The state is first written
// to a temporary file in the same directory, then renamed, so that path either
// holds the previous state or the new one.
func (e *Emulator) SaveStateFile(path string) error {
	buf := e.NES.SaveState()
	if err := writeFileAtomic(path, buf); err != nil {
		return errors.Wrapf(err, "save state %s", path)
	}

	log.ModEmu.InfoZ("State saved").
		String("path", path).
		Int("size", len(buf)).
		End()
	return nil
}

// LoadStateFile restores the console state saved at path. On error, the
// console is left untouched.
func (e *Emulator) LoadStateFile(path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "load state")
	}
	if err := e.NES.LoadState(buf); err != nil {
		return errors.Wrapf(err, "load state %s", path)
	}

	// Older snapshots belong to another timeline.
	e.rewind.Reset()

	log.ModEmu.InfoZ("State loaded").String("path", path).End()
	return nil
}

// ReadStateFile decodes the save-state file at path, without loading it.
func ReadStateFile(path string) (*snapshot.NES, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read state")
	}
	s, err := snapshot.Decode(buf)
	if err != nil {
		return nil, errors.Wrapf(err, "read state %s", path)
	}
	return s, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
