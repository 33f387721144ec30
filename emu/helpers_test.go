package emu

import (
	"os"
	"path/filepath"
	"testing"

	"nescore/emu/log"
	"nescore/ines"
)

func init() {
	log.Disable()
}

// testROM returns an NROM cartridge running a program that enables NMI,
// plays a square wave on pulse 1 then loops forever. NMIs are counted at $0010.
func testROM() *ines.Rom {
	prg := make([]byte, 0x8000)
	copy(prg, []byte{
		0xA9, 0x80, // LDA #$80
		0x8D, 0x00, 0x20, // STA $2000
		0xA9, 0x01, // LDA #$01
		0x8D, 0x15, 0x40, // STA $4015
		0xA9, 0xBF, // LDA #$BF
		0x8D, 0x00, 0x40, // STA $4000
		0xA9, 0xFD, // LDA #$FD
		0x8D, 0x02, 0x40, // STA $4002
		0xA9, 0x08, // LDA #$08
		0x8D, 0x03, 0x40, // STA $4003
		0x4C, 0x19, 0x80, // JMP $8019
	})
	copy(prg[0x1000:], []byte{
		0xE6, 0x10, // INC $10
		0x40, // RTI
	})
	prg[0x1100] = 0x40 // RTI

	// NMI, RESET, IRQ vectors.
	copy(prg[0x7FFA:], []byte{0x00, 0x90, 0x00, 0x80, 0x00, 0x91})
	return ines.New(0, ines.HorzMirroring, prg, make([]byte, 0x2000))
}

// writeROM writes the test ROM in a temporary directory and returns its path.
func writeROM(tb testing.TB) string {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "test.nes")
	if err := os.WriteFile(path, testROM().Encode(), 0644); err != nil {
		tb.Fatal(err)
	}
	return path
}

func launch(tb testing.TB, cfg Config) *Emulator {
	tb.Helper()

	e, err := Launch(testROM(), cfg)
	if err != nil {
		tb.Fatalf("Launch: %s", err)
	}
	return e
}

// sampleCounter is an AudioSink counting samples.
type sampleCounter struct {
	n       int
	nonzero int
}

func (c *sampleCounter) WriteSamples(samples []int16) error {
	c.n += len(samples)
	for _, s := range samples {
		if s != 0 {
			c.nonzero++
		}
	}
	return nil
}
