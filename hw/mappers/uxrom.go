package mappers

import "nescore/hw/snapshot"

var UxROM = Desc{
	Name: "UxROM",
	New: func(b *base) Mapper {
		m := &uxrom{base: b}
		m.remap()
		return m
	},
}

type uxrom struct {
	*base

	prgbank uint8
}

func (m *uxrom) WritePRG(addr uint16, val uint8) {
	if addr < 0x8000 {
		m.base.WritePRG(addr, val)
		return
	}

	// 7  bit  0
	// ---- ----
	// xxxx pPPP
	//      ||||
	//      ++++- Select 16 KB PRG ROM bank for CPU $8000-$BFFF
	//            (UNROM uses bits 2-0; UOROM uses bits 3-0)
	m.prgbank = val & 0x0F
	m.remap()
}

func (m *uxrom) remap() {
	m.selectPRGPage16KB(0, int(m.prgbank))
	m.selectPRGPage16KB(1, -1)
}

func (m *uxrom) State() snapshot.Mapper {
	return m.state([]byte{m.prgbank})
}

func (m *uxrom) SetState(s *snapshot.Mapper) error {
	return m.setState(s, func(regs []byte) error {
		if err := checkRegs(regs, 1); err != nil {
			return err
		}
		m.prgbank = regs[0]
		m.remap()
		return nil
	})
}
