package hwio

import (
	"nescore/emu/log"
)

type MemFlags uint8

const (
	MemFlagReadWrite MemFlags = 0
	MemFlagReadOnly  MemFlags = (1 << iota)
	MemFlagNoROLog            // silently drop writes to readonly memory
)

// Mem is a linear memory area that can be mapped into a Table.
//
// Data length must be a power of 2. When VSize is bigger than len(Data), the
// memory is mirrored over the whole virtual size. Mirroring relies on address
// masking so a Mem must be mapped at an address aligned to len(Data).
type Mem struct {
	Name    string              // for debugging
	Data    []byte              // backing buffer
	VSize   int                 // virtual size, 0 means len(Data)
	Flags   MemFlags            // access flags
	WriteCb func(uint16, uint8) // if set, called instead of writing
}

func (m *Mem) BankIO8() BankIO8 {
	if len(m.Data) == 0 || len(m.Data)&(len(m.Data)-1) != 0 {
		panic("hwio: memory buffer size is not pow2: " + m.Name)
	}
	return &mem{Mem: m, mask: uint16(len(m.Data) - 1)}
}

func (m *Mem) vsize() int {
	if m.VSize == 0 {
		return len(m.Data)
	}
	return m.VSize
}

type mem struct {
	*Mem
	mask uint16
}

func (m *mem) Read8(addr uint16, _ bool) uint8 {
	return m.Data[addr&m.mask]
}

func (m *mem) Write8(addr uint16, val uint8) {
	if m.WriteCb != nil {
		m.WriteCb(addr, val)
		return
	}

	switch {
	case m.Flags&MemFlagReadOnly == 0:
		m.Data[addr&m.mask] = val
	case m.Flags&MemFlagNoROLog == 0:
		log.ModHwIo.WarnZ("Write8 to readonly memory").
			String("name", m.Name).
			Hex16("addr", addr).
			Hex8("val", val).
			End()
	}
}
