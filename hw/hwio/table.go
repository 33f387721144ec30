package hwio

import (
	"fmt"

	"nescore/emu/log"
)

// log unmapped accesses (useful for debugging but verbose on NES since many
// games read from open bus)
const logUnmapped = false

type BankIO8 interface {
	// Read8 reads a byte from the given address. If peek is true, the read
	// shouldn't have any side effects (debugging/tracing).
	Read8(addr uint16, peek bool) uint8
	Write8(addr uint16, val uint8)
}

func Write16(b BankIO8, addr uint16, val uint16) {
	b.Write8(addr, uint8(val))
	b.Write8(addr+1, uint8(val>>8))
}

func Read16(b BankIO8, addr uint16) uint16 {
	lo := b.Read8(addr, false)
	hi := b.Read8(addr+1, false)
	return uint16(hi)<<8 | uint16(lo)
}

// Table dispatches accesses over a 16-bit address space to the mapped devices.
// Each address holds the index of its device, 0 meaning unmapped.
type Table struct {
	Name string

	// Unmapped, if non-nil, handles accesses to unmapped addresses.
	Unmapped BankIO8

	slots [0x10000]uint8
	devs  []BankIO8
}

func NewTable(name string) *Table {
	t := &Table{Name: name}
	t.Reset()
	return t
}

// Reset unmaps everything.
func (t *Table) Reset() {
	clear(t.slots[:])
	t.devs = append(t.devs[:0], nil)
}

// Map maps io over the address range [begin, end].
func (t *Table) Map(begin, end uint16, io BankIO8) {
	idx := -1
	for i, d := range t.devs {
		if i != 0 && d == io {
			idx = i
			break
		}
	}
	if idx == -1 {
		if len(t.devs) == 0x100 {
			panic(fmt.Errorf("hwio: table %s: too many devices", t.Name))
		}
		idx = len(t.devs)
		t.devs = append(t.devs, io)
	}

	for addr := int(begin); addr <= int(end); addr++ {
		t.slots[addr] = uint8(idx)
	}
}

func (t *Table) Unmap(begin, end uint16) {
	for addr := int(begin); addr <= int(end); addr++ {
		t.slots[addr] = 0
	}
}

func (t *Table) MapReg8(addr uint16, io *Reg8) {
	t.Map(addr, addr, io)
}

func (t *Table) MapDevice(addr uint16, io *Device) {
	t.Map(addr, addr+uint16(io.Size-1), io)
}

func (t *Table) MapMem(addr uint16, mem *Mem) {
	log.ModHwIo.DebugZ("mapping mem").
		Hex16("addr", addr).
		Int("size", mem.vsize()).
		String("area", mem.Name).
		String("bus", t.Name).
		End()

	t.Map(addr, addr+uint16(mem.vsize()-1), mem.BankIO8())
}

// MapMemorySlice maps buf over [addr, end], mirroring it if the range is
// bigger than the buffer.
func (t *Table) MapMemorySlice(addr, end uint16, buf []uint8, readonly bool) {
	var flags MemFlags
	if readonly {
		flags |= MemFlagReadOnly
	}
	t.MapMem(addr, &Mem{
		Data:  buf,
		Flags: flags,
		VSize: int(end) - int(addr) + 1,
	})
}

// Mapped reports whether a device is mapped at addr.
func (t *Table) Mapped(addr uint16) bool {
	return t.slots[addr] != 0
}

func (t *Table) Read8(addr uint16, peek bool) uint8 {
	if idx := t.slots[addr]; idx != 0 {
		return t.devs[idx].Read8(addr, peek)
	}
	if logUnmapped && !peek {
		log.ModHwIo.WarnZ("unmapped Read8").
			String("name", t.Name).
			Hex16("addr", addr).
			End()
	}
	if t.Unmapped != nil {
		return t.Unmapped.Read8(addr, peek)
	}
	return 0
}

// Peek8 reads without side effects.
func (t *Table) Peek8(addr uint16) uint8 {
	return t.Read8(addr, true)
}

func (t *Table) Write8(addr uint16, val uint8) {
	if idx := t.slots[addr]; idx != 0 {
		t.devs[idx].Write8(addr, val)
		return
	}
	if logUnmapped {
		log.ModHwIo.WarnZ("unmapped Write8").
			String("name", t.Name).
			Hex16("addr", addr).
			Hex8("val", val).
			End()
	}
	if t.Unmapped != nil {
		t.Unmapped.Write8(addr, val)
	}
}
