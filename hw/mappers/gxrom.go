package mappers

import "nescore/hw/snapshot"

var GxROM = Desc{
	Name: "GxROM",
	New: func(b *base) Mapper {
		return &gxrom{base: b}
	},
}

type gxrom struct {
	*base

	reg uint8
}

func (m *gxrom) WritePRG(addr uint16, val uint8) {
	if addr < 0x8000 {
		m.base.WritePRG(addr, val)
		return
	}

	// 7  bit  0
	// ---- ----
	// xxPP xxCC
	//   ||   ||
	//   ||   ++- Select 8 KB CHR ROM bank for PPU $0000-$1FFF
	//   ++------ Select 32 KB PRG ROM bank for CPU $8000-$FFFF
	m.reg = val & 0x33
	m.remap()
}

func (m *gxrom) remap() {
	m.selectCHRPage8KB(int(m.reg & 0x03))
	m.selectPRGPage32KB(int(m.reg>>4) & 0x03)
}

func (m *gxrom) State() snapshot.Mapper {
	return m.state([]byte{m.reg})
}

func (m *gxrom) SetState(s *snapshot.Mapper) error {
	return m.setState(s, func(regs []byte) error {
		if err := checkRegs(regs, 1); err != nil {
			return err
		}
		m.reg = regs[0] & 0x33
		m.remap()
		return nil
	})
}
