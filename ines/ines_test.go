package ines

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"nescore/tests"
)

func makeImage(hdr [16]byte, prglen, chrlen int) []byte {
	buf := append([]byte{}, hdr[:]...)
	for i := 0; i < prglen; i++ {
		buf = append(buf, uint8(i))
	}
	for i := 0; i < chrlen; i++ {
		buf = append(buf, uint8(i>>8))
	}
	return buf
}

func TestDecodeHeader(t *testing.T) {
	hdr := [16]byte{'N', 'E', 'S', 0x1A, 2, 1, 0x13, 0x40}
	rom, err := Decode(makeImage(hdr, 2*0x4000, 0x2000))
	if err != nil {
		t.Fatal(err)
	}

	if got := rom.Mapper(); got != 0x41 {
		t.Errorf("Mapper() = %d, want %d", got, 0x41)
	}
	if got := rom.Mirroring(); got != VertMirroring {
		t.Errorf("Mirroring() = %s, want %s", got, VertMirroring)
	}
	if !rom.HasPersistent() {
		t.Errorf("HasPersistent() = false, want true")
	}
	if rom.HasTrainer() {
		t.Errorf("HasTrainer() = true, want false")
	}
	if len(rom.PRG) != 0x8000 {
		t.Errorf("len(PRG) = %d, want %d", len(rom.PRG), 0x8000)
	}
	if len(rom.CHR) != 0x2000 {
		t.Errorf("len(CHR) = %d, want %d", len(rom.CHR), 0x2000)
	}
	if rom.PRGRAMSize() != 0x2000 {
		t.Errorf("PRGRAMSize() = %d, want %d", rom.PRGRAMSize(), 0x2000)
	}
}

func TestDecodeErrors(t *testing.T) {
	valid := [16]byte{'N', 'E', 'S', 0x1A, 1, 1}
	trainer := [16]byte{'N', 'E', 'S', 0x1A, 1, 0, 0x04}
	noprg := [16]byte{'N', 'E', 'S', 0x1A, 0, 1}

	tests := []struct {
		name string
		buf  []byte
		want error
	}{
		{"short header", []byte("NES\x1a"), ErrTruncated},
		{"bad magic", makeImage([16]byte{'N', 'E', 'Z', 0x1A, 1}, 0x4000, 0), ErrMagic},
		{"no prg", makeImage(noprg, 0, 0x2000), ErrNoPRG},
		{"truncated prg", makeImage(valid, 0x3000, 0), ErrTruncated},
		{"truncated chr", makeImage(valid, 0x4000, 0x1000), ErrTruncated},
		{"truncated trainer", makeImage(trainer, 100, 0), ErrTruncated},
		{"oversized", makeImage(valid, 0x4000, 0x2000+0x4000), ErrOversized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.buf)
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewEncodeRoundTrip(t *testing.T) {
	prg := bytes.Repeat([]byte{0xEA}, 0x8000)
	chr := bytes.Repeat([]byte{0x55}, 0x2000)

	for _, m := range []Mirroring{HorzMirroring, VertMirroring, FourScreen} {
		rom := New(1, m, prg, chr)
		got, err := Decode(rom.Encode())
		if err != nil {
			t.Fatal(err)
		}
		if got.Mapper() != 1 {
			t.Errorf("Mapper() = %d, want 1", got.Mapper())
		}
		if got.Mirroring() != m {
			t.Errorf("Mirroring() = %s, want %s", got.Mirroring(), m)
		}
		if diff := cmp.Diff(rom.PRG, got.PRG); diff != "" {
			t.Errorf("PRG mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(rom.CHR, got.CHR); diff != "" {
			t.Errorf("CHR mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestRomOpen(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test rom download")
	}

	dir := filepath.Join(tests.RomsPath(t), "instr_test-v5", "rom_singles")
	paths := []string{
		"01-basics.nes",
		"02-implied.nes",
		"10-branches.nes",
		"15-brk.nes",
	}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			if _, err := os.Stat(filepath.Join(dir, path)); err != nil {
				t.Skip(err)
			}
			rom, err := Open(filepath.Join(dir, path))
			if err != nil {
				t.Fatal(err)
			}
			if len(rom.PRG) == 0 {
				t.Errorf("len(PRG) = 0, want > 0")
			}
		})
	}
}
