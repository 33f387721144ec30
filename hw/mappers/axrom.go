package mappers

import (
	"nescore/hw/snapshot"
	"nescore/ines"
)

var AxROM = Desc{
	Name: "AxROM",
	New: func(b *base) Mapper {
		m := &axrom{base: b}
		m.remap()
		return m
	},
}

type axrom struct {
	*base

	reg uint8
}

func (m *axrom) WritePRG(addr uint16, val uint8) {
	if addr < 0x8000 {
		m.base.WritePRG(addr, val)
		return
	}

	// 7  bit  0
	// ---- ----
	// xxxM xPPP
	//    |  |||
	//    |  +++- Select 32 KB PRG ROM bank for CPU $8000-$FFFF
	//    +------ Select 1 KB VRAM page for all 4 nametables
	m.reg = val & 0x17
	m.remap()
}

func (m *axrom) remap() {
	m.selectPRGPage32KB(int(m.reg & 0x07))
	if m.reg&0x10 != 0 {
		m.mirroring = ines.OnlyBScreen
	} else {
		m.mirroring = ines.OnlyAScreen
	}
}

func (m *axrom) State() snapshot.Mapper {
	return m.state([]byte{m.reg})
}

func (m *axrom) SetState(s *snapshot.Mapper) error {
	return m.setState(s, func(regs []byte) error {
		if err := checkRegs(regs, 1); err != nil {
			return err
		}
		m.reg = regs[0] & 0x17
		m.remap()
		return nil
	})
}
