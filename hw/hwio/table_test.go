package hwio_test

import (
	"testing"

	"nescore/hw/hwio"
)

type openbus struct{}

func (openbus) Read8(addr uint16, peek bool) uint8 { return 0xD3 }
func (openbus) Write8(addr uint16, val uint8)      {}

type testTable struct {
	t testing.TB
	*hwio.Table

	// $0000-$07FF, mirrored up to $1FFF
	RAM hwio.Mem `hwio:"bank=0,offset=0x0,size=0x800,vsize=0x2000"`

	// $2000
	Reg0 hwio.Reg8 `hwio:"bank=1,offset=0x0,reset=0x77"`
	// $2001
	Reg1 hwio.Reg8 `hwio:"bank=1,offset=0x1,rwmask=0xF0,rcb,reset=0x99"`
	// $2002
	Reg2 hwio.Reg8 `hwio:"bank=1,offset=0x2,readonly,reset=0x12"`

	// $4100-$41FF
	DEV hwio.Device `hwio:"bank=2,offset=0x100,size=0x100,rcb,wcb"`

	// $8000-$FFFF, 16KB mirrored
	ROM hwio.Mem `hwio:"bank=3,offset=0x0,size=0x4000,vsize=0x8000,readonly"`

	devval uint8
}

// $2001
func (tbl *testTable) ReadREG1(val uint8, peek bool) uint8 {
	if !peek {
		tbl.Reg1.Value++
	}
	return tbl.Reg1.Value
}

// $4100-41FF
func (tbl *testTable) ReadDEV(addr uint16, peek bool) uint8 { return 0xE1 }
func (tbl *testTable) WriteDEV(addr uint16, val uint8)      { tbl.devval = uint8(addr) & val }

func newTestTable(tb testing.TB) *testTable {
	tbl := &testTable{t: tb, Table: hwio.NewTable("bus")}
	hwio.MustInitRegs(tbl)
	tbl.MapBank(0x0000, tbl, 0)
	tbl.MapBank(0x2000, tbl, 1)
	tbl.MapBank(0x4000, tbl, 2)
	tbl.MapBank(0x8000, tbl, 3)
	tbl.Unmapped = openbus{}
	return tbl
}

func (tbl *testTable) wantRead8(addr uint16, want uint8) {
	tbl.t.Helper()

	if got := tbl.Read8(addr, false); got != want {
		tbl.t.Errorf("Read8(%04X) = %02X, want %02X", addr, got, want)
	}
}

func TestTableMem(t *testing.T) {
	tbl := newTestTable(t)

	tbl.wantRead8(0x00, 0)
	tbl.Write8(0x00, 0x12)
	tbl.wantRead8(0x00, 0x12)
	tbl.wantRead8(0x800, 0x12)
	tbl.wantRead8(0x1800, 0x12)

	tbl.Write8(0x1FFF, 0x34)
	tbl.wantRead8(0x07FF, 0x34)

	tbl.ROM.Data[0] = 0xEA
	tbl.Write8(0x8000, 0xFF)
	tbl.wantRead8(0x8000, 0xEA)
	tbl.wantRead8(0xC000, 0xEA)
}

func TestTableReg8(t *testing.T) {
	tbl := newTestTable(t)

	tbl.wantRead8(0x2000, 0x77)

	tbl.wantRead8(0x2001, 0x9A)
	tbl.wantRead8(0x2001, 0x9B)
	if got := tbl.Peek8(0x2001); got != 0x9B {
		t.Errorf("Peek8(2001) = %02X, want 9B", got)
	}
	tbl.Write8(0x2001, 0xFF)
	tbl.wantRead8(0x2001, 0xA0)

	tbl.Write8(0x2002, 0xFF)
	tbl.wantRead8(0x2002, 0x12)
}

func TestTableDevice(t *testing.T) {
	tbl := newTestTable(t)

	tbl.wantRead8(0x4100, 0xE1)
	tbl.wantRead8(0x41FF, 0xE1)

	tbl.Write8(0x41F0, 0x3C)
	if tbl.devval != 0x30 {
		t.Errorf("devval = %02X, want 30", tbl.devval)
	}
}

func TestTableUnmapped(t *testing.T) {
	tbl := newTestTable(t)

	tbl.wantRead8(0x4000, 0xD3)
	tbl.wantRead8(0x6000, 0xD3)

	tbl.Unmap(0x0000, 0x1FFF)
	tbl.wantRead8(0x0000, 0xD3)
	if tbl.Mapped(0x0000) {
		t.Errorf("Mapped(0000) = true after Unmap")
	}
}

func TestRead16Write16(t *testing.T) {
	tbl := newTestTable(t)

	hwio.Write16(tbl, 0x07FF, 0xBEEF)
	if got := hwio.Read16(tbl, 0x07FF); got != 0xBEEF {
		t.Errorf("Read16(07FF) = %04X, want BEEF", got)
	}
	tbl.wantRead8(0x0800, 0xBE)
}

func TestInitRegsErrors(t *testing.T) {
	var missingCb struct {
		R hwio.Reg8 `hwio:"offset=0,rcb"`
	}
	if err := hwio.InitRegs(&missingCb); err == nil {
		t.Errorf("InitRegs() with missing callback: got nil error")
	}

	var noSize struct {
		M hwio.Mem `hwio:"offset=0"`
	}
	if err := hwio.InitRegs(&noSize); err == nil {
		t.Errorf("InitRegs() with missing size: got nil error")
	}

	if err := hwio.InitRegs(struct{}{}); err == nil {
		t.Errorf("InitRegs() with non-pointer: got nil error")
	}
}
