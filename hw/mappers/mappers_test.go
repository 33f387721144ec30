package mappers

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"nescore/hw/snapshot"
	"nescore/ines"
)

// makePRG returns a PRG-ROM where each byte holds the number of the 16KB bank
// it belongs to.
func makePRG(nbanks int) []byte {
	prg := make([]byte, nbanks*0x4000)
	for i := range prg {
		prg[i] = uint8(i / 0x4000)
	}
	return prg
}

func makeCHR(nbanks4k int) []byte {
	chr := make([]byte, nbanks4k*0x1000)
	for i := range chr {
		chr[i] = uint8(i/0x1000) | 0x80
	}
	return chr
}

func mustNew(t *testing.T, rom *ines.Rom) Mapper {
	t.Helper()
	m, err := New(rom)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m
}

func TestNROMMirroring(t *testing.T) {
	prg := make([]byte, 0x4000)
	for i := range prg {
		prg[i] = uint8(i * 7)
	}
	m := mustNew(t, ines.New(0, ines.HorzMirroring, prg, makeCHR(2)))

	for addr := 0x8000; addr < 0xC000; addr++ {
		lo := m.ReadPRG(uint16(addr))
		hi := m.ReadPRG(uint16(addr + 0x4000))
		if lo != hi {
			t.Fatalf("ReadPRG(%04X) = %02X, ReadPRG(%04X) = %02X, want equal", addr, lo, addr+0x4000, hi)
		}
	}

	// PRG-ROM is read-only
	m.WritePRG(0x8000, 0xFF)
	if got := m.ReadPRG(0x8000); got != 0 {
		t.Errorf("ReadPRG(8000) = %02X after write, want 00", got)
	}
}

func TestNROMPRGRAM(t *testing.T) {
	m := mustNew(t, ines.New(0, ines.VertMirroring, makePRG(2), makeCHR(2)))

	m.WritePRG(0x6000, 0x42)
	m.WritePRG(0x7FFF, 0x43)
	if got := m.ReadPRG(0x6000); got != 0x42 {
		t.Errorf("ReadPRG(6000) = %02X, want 42", got)
	}
	if got := m.PRGRAM()[0x1FFF]; got != 0x43 {
		t.Errorf("PRGRAM[1FFF] = %02X, want 43", got)
	}
	if got := m.Mirroring(); got != ines.VertMirroring {
		t.Errorf("Mirroring() = %s, want %s", got, ines.VertMirroring)
	}
}

func TestCHRRAM(t *testing.T) {
	m := mustNew(t, ines.New(0, ines.HorzMirroring, makePRG(1), nil))

	m.WriteCHR(0x1234, 0x99)
	if got := m.ReadCHR(0x1234); got != 0x99 {
		t.Errorf("ReadCHR(1234) = %02X, want 99", got)
	}

	rom := mustNew(t, ines.New(0, ines.HorzMirroring, makePRG(1), makeCHR(2)))
	rom.WriteCHR(0x0000, 0x11)
	if got := rom.ReadCHR(0x0000); got != 0x80 {
		t.Errorf("CHR-ROM written: ReadCHR(0000) = %02X, want 80", got)
	}
}

// mmc1Write serially writes the 5 low bits of val to the register at addr.
func mmc1Write(m Mapper, addr uint16, val uint8) {
	for i := range 5 {
		m.WritePRG(addr, (val>>i)&1)
	}
}

func TestMMC1PRGBankSwitch(t *testing.T) {
	m := mustNew(t, ines.New(1, ines.HorzMirroring, makePRG(8), makeCHR(4)))

	for bank := range 8 {
		m.WritePRG(0x8000, 0x80) // reset
		mmc1Write(m, 0xE000, uint8(bank))

		if got := m.ReadPRG(0x8000); got != uint8(bank) {
			t.Errorf("bank %d: ReadPRG(8000) = %d, want %d", bank, got, bank)
		}
		if got := m.ReadPRG(0xBFFF); got != uint8(bank) {
			t.Errorf("bank %d: ReadPRG(BFFF) = %d, want %d", bank, got, bank)
		}
		// Last bank fixed at $C000.
		if got := m.ReadPRG(0xC000); got != 7 {
			t.Errorf("bank %d: ReadPRG(C000) = %d, want 7", bank, got)
		}
	}
}

func TestMMC1PRGModes(t *testing.T) {
	m := mustNew(t, ines.New(1, ines.HorzMirroring, makePRG(8), makeCHR(4)))

	// 32KB mode, low bit of the bank ignored.
	mmc1Write(m, 0x8000, 0b00000)
	mmc1Write(m, 0xE000, 5)
	if got, want := [2]uint8{m.ReadPRG(0x8000), m.ReadPRG(0xC000)}, [2]uint8{4, 5}; got != want {
		t.Errorf("32KB mode: got banks %v, want %v", got, want)
	}

	// First bank fixed at $8000.
	mmc1Write(m, 0x8000, 0b01000)
	mmc1Write(m, 0xE000, 3)
	if got, want := [2]uint8{m.ReadPRG(0x8000), m.ReadPRG(0xC000)}, [2]uint8{0, 3}; got != want {
		t.Errorf("fixed first mode: got banks %v, want %v", got, want)
	}

	// Bank numbers wrap around the number of banks present.
	mmc1Write(m, 0xE000, 11)
	if got := m.ReadPRG(0xC000); got != 3 {
		t.Errorf("bank 11 of 8: ReadPRG(C000) = %d, want 3", got)
	}
}

func TestMMC1CHRAndMirroring(t *testing.T) {
	m := mustNew(t, ines.New(1, ines.HorzMirroring, makePRG(2), makeCHR(8)))

	// 4KB CHR mode, vertical mirroring.
	mmc1Write(m, 0x8000, 0b11110)
	mmc1Write(m, 0xA000, 5)
	mmc1Write(m, 0xC000, 2)

	if got := m.ReadCHR(0x0000); got != 0x85 {
		t.Errorf("ReadCHR(0000) = %02X, want 85", got)
	}
	if got := m.ReadCHR(0x1FFF); got != 0x82 {
		t.Errorf("ReadCHR(1FFF) = %02X, want 82", got)
	}
	if got := m.Mirroring(); got != ines.VertMirroring {
		t.Errorf("Mirroring() = %s, want %s", got, ines.VertMirroring)
	}

	// 8KB CHR mode, low bit ignored, single screen.
	mmc1Write(m, 0x8000, 0b01101)
	mmc1Write(m, 0xA000, 5)
	if got := m.ReadCHR(0x0000); got != 0x84 {
		t.Errorf("ReadCHR(0000) = %02X, want 84", got)
	}
	if got := m.ReadCHR(0x1000); got != 0x85 {
		t.Errorf("ReadCHR(1000) = %02X, want 85", got)
	}
	if got := m.Mirroring(); got != ines.OnlyBScreen {
		t.Errorf("Mirroring() = %s, want %s", got, ines.OnlyBScreen)
	}
}

func TestMMC1ConsecutiveWrites(t *testing.T) {
	m := mustNew(t, ines.New(1, ines.HorzMirroring, makePRG(8), makeCHR(4)))

	var cycle int64
	m.SetCPUClock(func() int64 { return cycle })

	write := func(val uint8) {
		m.WritePRG(0xE000, val)
		cycle++
	}

	// Each bit is written twice on consecutive cycles (as a RMW instruction
	// would do), only the first write counts.
	for _, bit := range []uint8{1, 1, 0, 0, 1} {
		write(bit)
		write(bit ^ 1)
		cycle += 2
	}
	if got := m.ReadPRG(0x8000); got != 3 {
		t.Errorf("ReadPRG(8000) = %d, want 3", got)
	}
}

func TestMMC1CycleCounterRestart(t *testing.T) {
	tests := []struct {
		name  string
		reset bool
	}{
		{"counter goes back", false},
		{"console reset", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mustNew(t, ines.New(1, ines.HorzMirroring, makePRG(8), makeCHR(4)))

			cycle := int64(90000)
			m.SetCPUClock(func() int64 { return cycle })
			m.WritePRG(0x8000, 0x80)

			if tt.reset {
				m.Reset()
			}
			cycle = 1
			for i := range 5 {
				m.WritePRG(0xE000, (5>>i)&1)
				cycle += 3
			}
			if got := m.ReadPRG(0x8000); got != 5 {
				t.Errorf("ReadPRG(8000) = %d, want 5", got)
			}
		})
	}
}

func TestMMC1StateKeepsWriteTiming(t *testing.T) {
	rom := ines.New(1, ines.HorzMirroring, makePRG(8), makeCHR(4))
	m := mustNew(t, rom)

	var cycle int64 = 50
	m.SetCPUClock(func() int64 { return cycle })
	m.WritePRG(0xE000, 1)
	state := m.State()

	m2 := mustNew(t, rom)
	m2.SetCPUClock(func() int64 { return cycle })
	if err := m2.SetState(&state); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}

	// The write on the next cycle is part of the same read-modify-write and
	// must be ignored, the following ones complete the load.
	cycle++
	m2.WritePRG(0xE000, 0)
	for _, bit := range []uint8{1, 0, 0, 0} {
		cycle += 3
		m2.WritePRG(0xE000, bit)
	}
	if got := m2.ReadPRG(0x8000); got != 3 {
		t.Errorf("ReadPRG(8000) = %d, want 3", got)
	}
}

func TestMMC1WRAMDisable(t *testing.T) {
	m := mustNew(t, ines.New(1, ines.HorzMirroring, makePRG(2), makeCHR(2)))

	m.WritePRG(0x6000, 0x55)
	mmc1Write(m, 0xE000, 0x10)
	m.WritePRG(0x6000, 0xAA)
	if got := m.PRGRAM()[0]; got != 0x55 {
		t.Errorf("PRGRAM[0] = %02X, want 55 (WRAM disabled)", got)
	}
}

func TestOtherMappers(t *testing.T) {
	t.Run("UxROM", func(t *testing.T) {
		m := mustNew(t, ines.New(2, ines.VertMirroring, makePRG(8), nil))
		m.WritePRG(0x8000, 3)
		if got := m.ReadPRG(0x8000); got != 3 {
			t.Errorf("ReadPRG(8000) = %d, want 3", got)
		}
		if got := m.ReadPRG(0xC000); got != 7 {
			t.Errorf("ReadPRG(C000) = %d, want 7", got)
		}
	})
	t.Run("CNROM", func(t *testing.T) {
		m := mustNew(t, ines.New(3, ines.VertMirroring, makePRG(2), makeCHR(8)))
		m.WritePRG(0x8000, 2)
		if got := m.ReadCHR(0x0000); got != 0x84 {
			t.Errorf("ReadCHR(0000) = %02X, want 84", got)
		}
	})
	t.Run("AxROM", func(t *testing.T) {
		m := mustNew(t, ines.New(7, ines.VertMirroring, makePRG(8), nil))
		m.WritePRG(0x8000, 0x12)
		if got := m.ReadPRG(0x8000); got != 4 {
			t.Errorf("ReadPRG(8000) = %d, want 4", got)
		}
		if got := m.Mirroring(); got != ines.OnlyBScreen {
			t.Errorf("Mirroring() = %s, want %s", got, ines.OnlyBScreen)
		}
	})
	t.Run("GxROM", func(t *testing.T) {
		m := mustNew(t, ines.New(66, ines.VertMirroring, makePRG(8), makeCHR(8)))
		m.WritePRG(0x8000, 0x31)
		if got := m.ReadPRG(0x8000); got != 6 {
			t.Errorf("ReadPRG(8000) = %d, want 6", got)
		}
		if got := m.ReadCHR(0x0000); got != 0x82 {
			t.Errorf("ReadCHR(0000) = %02X, want 82", got)
		}
	})
}

func TestUnsupported(t *testing.T) {
	_, err := New(ines.New(4, ines.HorzMirroring, makePRG(2), makeCHR(2)))
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("New(mapper 4) error = %v, want %v", err, ErrUnsupported)
	}
}

func TestMapperState(t *testing.T) {
	rom := ines.New(1, ines.HorzMirroring, makePRG(8), nil)
	m := mustNew(t, rom)

	mmc1Write(m, 0x8000, 0b11110)
	mmc1Write(m, 0xE000, 6)
	m.WritePRG(0x6123, 0x77)
	m.WriteCHR(0x0042, 0x66)
	m.WritePRG(0x8000, 1) // 1 bit pending in the shift register

	state := m.State()

	m2 := mustNew(t, rom)
	if err := m2.SetState(&state); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}
	if diff := cmp.Diff(state, m2.State()); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
	if got := m2.ReadPRG(0x8000); got != 6 {
		t.Errorf("ReadPRG(8000) = %d, want 6", got)
	}
	if got := m2.ReadCHR(0x0042); got != 0x66 {
		t.Errorf("ReadCHR(0042) = %02X, want 66", got)
	}

	// Mismatching states are rejected and leave the mapper untouched.
	before := m2.State()
	bad := []snapshot.Mapper{
		{ID: 0, Regs: state.Regs, PRGRAM: state.PRGRAM, CHRRAM: state.CHRRAM},
		{ID: 1, Regs: state.Regs, PRGRAM: state.PRGRAM[:10], CHRRAM: state.CHRRAM},
		{ID: 1, Regs: state.Regs, PRGRAM: state.PRGRAM},
		{ID: 1, Regs: state.Regs[:2], PRGRAM: make([]byte, len(state.PRGRAM)), CHRRAM: state.CHRRAM},
	}
	for i, s := range bad {
		if err := m2.SetState(&s); err == nil {
			t.Errorf("bad state %d: SetState() succeeded", i)
		}
	}
	if diff := cmp.Diff(before, m2.State()); diff != "" {
		t.Errorf("state modified by failed SetState (-want +got):\n%s", diff)
	}
}
