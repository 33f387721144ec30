// Package ines implements a decoder for roms in the iNES file format, used for
// the distribution of NES binary programs.
package ines

import (
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	headerSize  = 16
	trainerSize = 512
	prgUnit     = 0x4000 // 16KB
	chrUnit     = 0x2000 // 8KB
	prgRAMUnit  = 0x2000 // 8KB

	// Some dumps carry a small trailer (title, PlayChoice data, etc.). Anything
	// beyond that is considered an oversized image.
	maxTrailer = chrUnit
)

const Magic = "NES\x1a"

var (
	ErrMagic     = errors.New("invalid magic number")
	ErrTruncated = errors.New("truncated rom image")
	ErrOversized = errors.New("oversized rom image")
	ErrNoPRG     = errors.New("rom has no PRG-ROM")
)

// Mirroring is the nametable arrangement of a cartridge.
type Mirroring uint8

const (
	HorzMirroring Mirroring = iota
	VertMirroring
	FourScreen
	OnlyAScreen
	OnlyBScreen
)

func (m Mirroring) String() string {
	switch m {
	case HorzMirroring:
		return "horizontal"
	case VertMirroring:
		return "vertical"
	case FourScreen:
		return "four-screen"
	case OnlyAScreen:
		return "single-screen A"
	case OnlyBScreen:
		return "single-screen B"
	}
	return fmt.Sprintf("Mirroring(%d)", m)
}

type Rom struct {
	header
	Trainer []byte // Trainer, 512 bytes if present, or empty.
	PRG     []byte // PRG is PRG ROM data (length is multiples of 16k)
	CHR     []byte // CHR is CHR ROM data (length is multiples of 8k), empty for CHR-RAM carts.
}

// Open loads a rom from file.
func Open(path string) (*Rom, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rom := new(Rom)
	if _, err := rom.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rom, nil
}

// Decode decodes a whole iNES image.
func Decode(buf []byte) (*Rom, error) {
	rom := new(Rom)
	if err := rom.decode(buf); err != nil {
		return nil, err
	}
	return rom, nil
}

// ReadFrom implements io.ReaderFrom interface
func (rom *Rom) ReadFrom(r io.Reader) (int64, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	if err := rom.decode(buf); err != nil {
		return 0, err
	}
	return int64(len(buf)), nil
}

func (rom *Rom) decode(buf []byte) error {
	if err := rom.header.decode(buf); err != nil {
		return fmt.Errorf("failed to decode header: %w", err)
	}
	if rom.prgsz == 0 {
		return ErrNoPRG
	}
	off := headerSize

	// trainer
	if rom.HasTrainer() {
		if len(buf) < off+trainerSize {
			return fmt.Errorf("incomplete TRAINER section: %w", ErrTruncated)
		}
		rom.Trainer = clone(buf[off : off+trainerSize])
		off += trainerSize
	}

	// PRG rom data
	if len(buf) < off+rom.prgsz {
		return fmt.Errorf("incomplete PRG section (%d/%d bytes): %w", len(buf)-off, rom.prgsz, ErrTruncated)
	}
	rom.PRG = clone(buf[off : off+rom.prgsz])
	off += rom.prgsz

	// CHR rom data
	if len(buf) < off+rom.chrsz {
		return fmt.Errorf("incomplete CHR section (%d/%d bytes): %w", len(buf)-off, rom.chrsz, ErrTruncated)
	}
	rom.CHR = clone(buf[off : off+rom.chrsz])
	off += rom.chrsz

	if extra := len(buf) - off; extra > maxTrailer {
		return fmt.Errorf("%d unexpected trailing bytes: %w", extra, ErrOversized)
	}
	return nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

// New creates a rom from its components. Mostly useful in tests and tools
// which synthesize cartridges.
func New(mapper uint16, m Mirroring, prg, chr []byte) *Rom {
	rom := &Rom{PRG: prg, CHR: chr}
	copy(rom.raw[:4], Magic)
	rom.raw[4] = uint8(len(prg) / prgUnit)
	rom.raw[5] = uint8(len(chr) / chrUnit)
	rom.raw[6] = uint8(mapper&0x0F) << 4
	rom.raw[7] = uint8(mapper & 0xF0)
	switch m {
	case VertMirroring:
		rom.raw[6] |= 0x01
	case FourScreen:
		rom.raw[6] |= 0x08
	}
	rom.prgsz = len(prg)
	rom.chrsz = len(chr)
	return rom
}

// Encode returns the iNES image of the rom.
func (rom *Rom) Encode() []byte {
	buf := make([]byte, 0, headerSize+len(rom.Trainer)+len(rom.PRG)+len(rom.CHR))
	buf = append(buf, rom.raw[:]...)
	buf = append(buf, rom.Trainer...)
	buf = append(buf, rom.PRG...)
	buf = append(buf, rom.CHR...)
	return buf
}

// PrintInfos writes a human readable summary of the rom header.
func (rom *Rom) PrintInfos(w io.Writer) {
	fmt.Fprintf(w, "PRG ROM:   %d x 16KB\n", rom.raw[4])
	fmt.Fprintf(w, "CHR ROM:   %d x 8KB\n", rom.raw[5])
	fmt.Fprintf(w, "PRG RAM:   %d x 8KB\n", rom.PRGRAMSize()/prgRAMUnit)
	fmt.Fprintf(w, "Mapper:    %d\n", rom.Mapper())
	fmt.Fprintf(w, "Mirroring: %s\n", rom.Mirroring())
	fmt.Fprintf(w, "Battery:   %t\n", rom.HasPersistent())
	fmt.Fprintf(w, "Trainer:   %t\n", rom.HasTrainer())
	fmt.Fprintf(w, "NES 2.0:   %t\n", rom.IsNES20())
}

type header struct {
	raw   [headerSize]byte
	prgsz int
	chrsz int
}

func (hdr *header) decode(p []byte) error {
	if len(p) < headerSize {
		return fmt.Errorf("too small, needs %d bytes: %w", headerSize, ErrTruncated)
	}
	if string(p[:4]) != Magic {
		return ErrMagic
	}
	copy(hdr.raw[:], p[:headerSize])

	hdr.prgsz = int(hdr.raw[4]) * prgUnit
	hdr.chrsz = int(hdr.raw[5]) * chrUnit
	return nil
}

// HasTrainer indicates the presence of a trainer section in the rom.
func (hdr *header) HasTrainer() bool {
	return hdr.raw[6]&0x04 != 0
}

// HasPersistent indicates the presence of battery-backed memory in the rom.
func (hdr *header) HasPersistent() bool {
	return hdr.raw[6]&0x02 != 0
}

// Mirroring returns the nametable mirroring hardwired in the cartridge.
func (hdr *header) Mirroring() Mirroring {
	switch {
	case hdr.raw[6]&0x08 != 0:
		return FourScreen
	case hdr.raw[6]&0x01 != 0:
		return VertMirroring
	}
	return HorzMirroring
}

// Mapper returns the iNES mapper number.
func (hdr *header) Mapper() uint16 {
	return uint16(hdr.raw[7]&0xF0) | uint16(hdr.raw[6]>>4)
}

// IsNES20 reports whether the header is in the NES 2.0 format.
func (hdr *header) IsNES20() bool {
	return hdr.raw[7]&0x0C == 0x08
}

// PRGRAMSize returns the size of PRG-RAM in bytes. A zero value in the header
// means 8KB, for compatibility.
func (hdr *header) PRGRAMSize() int {
	return max(1, int(hdr.raw[8])) * prgRAMUnit
}

// HasCHRRAM reports whether the cartridge uses CHR-RAM instead of CHR-ROM.
func (hdr *header) HasCHRRAM() bool {
	return hdr.chrsz == 0
}
