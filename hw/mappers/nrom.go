package mappers

import "nescore/hw/snapshot"

// NROM has no bank switching: 16KB PRG-ROM are mirrored at $C000-$FFFF.
var NROM = Desc{
	Name: "NROM",
	New: func(b *base) Mapper {
		return &nrom{base: b}
	},
}

type nrom struct {
	*base
}

func (m *nrom) State() snapshot.Mapper {
	return m.state(nil)
}

func (m *nrom) SetState(s *snapshot.Mapper) error {
	return m.setState(s, func(regs []byte) error {
		return checkRegs(regs, 0)
	})
}
