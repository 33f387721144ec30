// Package mappers implements cartridge mappers: the hardware which remaps
// fixed CPU/PPU address windows onto larger PRG/CHR memories.
package mappers

import (
	"errors"
	"fmt"

	"nescore/emu/log"
	"nescore/hw/snapshot"
	"nescore/ines"
)

var modMapper = log.NewModule("mapper")

var ErrUnsupported = errors.New("unsupported mapper")

// Mapper is the cartridge seen from the console.
//
// PRG accesses cover the CPU cartridge space $4020-$FFFF, that is expansion
// area, PRG-RAM at $6000-$7FFF and PRG-ROM at $8000-$FFFF. CHR accesses cover
// the PPU pattern tables at $0000-$1FFF.
type Mapper interface {
	Name() string
	ID() uint16

	ReadPRG(addr uint16) uint8
	WritePRG(addr uint16, val uint8)
	ReadCHR(addr uint16) uint8
	WriteCHR(addr uint16, val uint8)

	// Mirroring returns the current nametable arrangement.
	Mirroring() ines.Mirroring

	// PRGRAM gives direct access to the cartridge RAM (nil if none), for
	// battery saves.
	PRGRAM() []byte
	HasBattery() bool

	// SetCPUClock gives access to the CPU cycle counter, for mappers sensitive
	// to write timings.
	SetCPUClock(clock func() int64)

	// Reset is called on console reset, soft or hard.
	Reset()

	State() snapshot.Mapper
	// SetState restores the mapper state. It fails without modifying the
	// mapper if the state has been produced by another cartridge.
	SetState(*snapshot.Mapper) error
}

type Desc struct {
	Name string
	New  func(*base) Mapper
}

var All = map[uint16]Desc{
	0:  NROM,
	1:  MMC1,
	2:  UxROM,
	3:  CNROM,
	7:  AxROM,
	66: GxROM,
}

// New creates the mapper used by rom.
func New(rom *ines.Rom) (Mapper, error) {
	desc, ok := All[rom.Mapper()]
	if !ok {
		return nil, fmt.Errorf("mapper %d: %w", rom.Mapper(), ErrUnsupported)
	}
	b, err := newbase(desc, rom)
	if err != nil {
		return nil, fmt.Errorf("failed to load mapper %s: %w", desc.Name, err)
	}

	m := desc.New(b)
	modMapper.InfoZ("loaded mapper").
		String("name", desc.Name).
		Int("prg", len(b.prg)).
		Int("chr", len(b.chr)).
		Bool("chrram", b.chrRAM).
		Stringer("mirroring", b.mirroring).
		End()
	return m, nil
}
