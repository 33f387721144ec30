package mappers

import "nescore/hw/snapshot"

var CNROM = Desc{
	Name: "CNROM",
	New: func(b *base) Mapper {
		b.selectPRGPage16KB(0, 0)
		b.selectPRGPage16KB(1, -1)
		return &cnrom{base: b}
	},
}

type cnrom struct {
	*base

	chrbank uint8
}

func (m *cnrom) WritePRG(addr uint16, val uint8) {
	if addr < 0x8000 {
		m.base.WritePRG(addr, val)
		return
	}

	// 7  bit  0
	// ---- ----
	// cccc ccCC
	// |||| ||||
	// ++++-++++- Select 8 KB CHR ROM bank for PPU $0000-$1FFF
	// CNROM only uses lowest 2 bits
	prev := m.chrbank
	m.chrbank = val & 0b11
	if prev != m.chrbank {
		m.selectCHRPage8KB(int(m.chrbank))
		modMapper.DebugZ("CHR bank switch").Uint8("prev", prev).Uint8("new", m.chrbank).End()
	}
}

func (m *cnrom) State() snapshot.Mapper {
	return m.state([]byte{m.chrbank})
}

func (m *cnrom) SetState(s *snapshot.Mapper) error {
	return m.setState(s, func(regs []byte) error {
		if err := checkRegs(regs, 1); err != nil {
			return err
		}
		m.chrbank = regs[0]
		m.selectCHRPage8KB(int(m.chrbank))
		return nil
	})
}
