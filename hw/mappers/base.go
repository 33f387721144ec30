package mappers

import (
	"bytes"
	"fmt"

	"nescore/hw/snapshot"
	"nescore/ines"
)

const (
	prgWindow  = 0x2000 // PRG banking granularity (8KB)
	chrWindow  = 0x0400 // CHR banking granularity (1KB)
	chrRAMSize = 0x2000
)

// base implements the parts common to all mappers: memories, mirroring and
// bank windows. Mappers only decide which banks are selected.
type base struct {
	desc Desc
	rom  *ines.Rom

	prg    []byte
	chr    []byte // CHR-ROM, or CHR-RAM
	chrRAM bool
	prgRAM []byte

	prgRAMEnabled bool
	mirroring     ines.Mirroring

	// Offsets in prg (resp. chr) of each 8KB window at $8000-$FFFF (resp. 1KB
	// window at $0000-$1FFF).
	prgBanks [4]int
	chrBanks [8]int

	clock func() int64
}

func newbase(desc Desc, rom *ines.Rom) (*base, error) {
	if len(rom.PRG) == 0 || len(rom.PRG)%prgWindow != 0 {
		return nil, fmt.Errorf("invalid PRG-ROM size %d", len(rom.PRG))
	}

	b := &base{
		desc:          desc,
		rom:           rom,
		prg:           rom.PRG,
		chr:           rom.CHR,
		prgRAM:        make([]byte, rom.PRGRAMSize()),
		prgRAMEnabled: true,
		mirroring:     rom.Mirroring(),
	}
	if rom.HasCHRRAM() {
		b.chr = make([]byte, chrRAMSize)
		b.chrRAM = true
	}
	if len(b.chr)%chrWindow != 0 {
		return nil, fmt.Errorf("invalid CHR size %d", len(b.chr))
	}
	if b.mirroring == ines.FourScreen {
		modMapper.WarnZ("four-screen mirroring is not supported, using vertical").End()
		b.mirroring = ines.VertMirroring
	}

	b.selectPRGPage32KB(0)
	b.selectCHRPage8KB(0)
	return b, nil
}

func (b *base) Name() string                   { return b.desc.Name }
func (b *base) ID() uint16                     { return b.rom.Mapper() }
func (b *base) Mirroring() ines.Mirroring      { return b.mirroring }
func (b *base) PRGRAM() []byte                 { return b.prgRAM }
func (b *base) HasBattery() bool               { return b.rom.HasPersistent() }
func (b *base) SetCPUClock(clock func() int64) { b.clock = clock }
func (b *base) Reset()                         {}

func (b *base) cpuCycle() int64 {
	if b.clock == nil {
		return 0
	}
	return b.clock()
}

// bankOffset returns the offset of a bank of the given size in a memory of
// length memlen. Negative banks count from the end. Bank numbers wrap around
// the number of banks present.
func bankOffset(memlen, size, bank int) int {
	nbanks := max(1, memlen/size)
	if bank < 0 {
		bank += nbanks
	}
	bank %= nbanks
	if bank < 0 {
		bank += nbanks
	}
	return bank * size
}

func (b *base) selectPRGPage8KB(slot, bank int) {
	b.prgBanks[slot] = bankOffset(len(b.prg), 0x2000, bank)
}

func (b *base) selectPRGPage16KB(slot, bank int) {
	off := bankOffset(len(b.prg), 0x4000, bank)
	if len(b.prg) < 0x4000 {
		off = 0
	}
	b.prgBanks[slot*2] = off
	b.prgBanks[slot*2+1] = (off + 0x2000) % len(b.prg)
}

func (b *base) selectPRGPage32KB(bank int) {
	off := bankOffset(len(b.prg), 0x8000, bank)
	for i := range b.prgBanks {
		b.prgBanks[i] = (off + i*0x2000) % len(b.prg)
	}
}

func (b *base) selectCHRPage4KB(slot, bank int) {
	off := bankOffset(len(b.chr), 0x1000, bank)
	for i := range 4 {
		b.chrBanks[slot*4+i] = (off + i*chrWindow) % len(b.chr)
	}
}

func (b *base) selectCHRPage8KB(bank int) {
	off := bankOffset(len(b.chr), 0x2000, bank)
	for i := range b.chrBanks {
		b.chrBanks[i] = (off + i*chrWindow) % len(b.chr)
	}
}

func (b *base) ReadPRG(addr uint16) uint8 {
	switch {
	case addr >= 0x8000:
		return b.prg[b.prgBanks[(addr-0x8000)/prgWindow]+int(addr&(prgWindow-1))]
	case addr >= 0x6000 && b.prgRAMEnabled && len(b.prgRAM) > 0:
		return b.prgRAM[int(addr-0x6000)%len(b.prgRAM)]
	}
	// Open bus.
	return uint8(addr >> 8)
}

// WritePRG handles writes to PRG-RAM. Writes to PRG-ROM are ignored.
func (b *base) WritePRG(addr uint16, val uint8) {
	if addr >= 0x6000 && addr < 0x8000 && b.prgRAMEnabled && len(b.prgRAM) > 0 {
		b.prgRAM[int(addr-0x6000)%len(b.prgRAM)] = val
	}
}

func (b *base) ReadCHR(addr uint16) uint8 {
	addr &= 0x1FFF
	return b.chr[b.chrBanks[addr/chrWindow]+int(addr&(chrWindow-1))]
}

func (b *base) WriteCHR(addr uint16, val uint8) {
	if !b.chrRAM {
		return
	}
	addr &= 0x1FFF
	b.chr[b.chrBanks[addr/chrWindow]+int(addr&(chrWindow-1))] = val
}

func (b *base) state(regs []byte) snapshot.Mapper {
	s := snapshot.Mapper{
		ID:     b.ID(),
		Regs:   regs,
		PRGRAM: bytes.Clone(b.prgRAM),
	}
	if b.chrRAM {
		s.CHRRAM = bytes.Clone(b.chr)
	}
	return s
}

// setState validates s then restores memories and registers. loadRegs must
// not modify the mapper when it returns an error.
func (b *base) setState(s *snapshot.Mapper, loadRegs func([]byte) error) error {
	if s.ID != b.ID() {
		return fmt.Errorf("mapper id %d, want %d: %w", s.ID, b.ID(), snapshot.ErrMismatch)
	}
	if len(s.PRGRAM) != len(b.prgRAM) {
		return fmt.Errorf("PRG-RAM is %d bytes, want %d: %w", len(s.PRGRAM), len(b.prgRAM), snapshot.ErrSize)
	}
	wantCHR := 0
	if b.chrRAM {
		wantCHR = len(b.chr)
	}
	if len(s.CHRRAM) != wantCHR {
		return fmt.Errorf("CHR-RAM is %d bytes, want %d: %w", len(s.CHRRAM), wantCHR, snapshot.ErrSize)
	}
	if err := loadRegs(s.Regs); err != nil {
		return err
	}

	copy(b.prgRAM, s.PRGRAM)
	if b.chrRAM {
		copy(b.chr, s.CHRRAM)
	}
	return nil
}

func checkRegs(regs []byte, n int) error {
	if len(regs) != n {
		return fmt.Errorf("mapper has %d registers, want %d: %w", len(regs), n, snapshot.ErrSize)
	}
	return nil
}
