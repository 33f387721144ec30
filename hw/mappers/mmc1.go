package mappers

import (
	"encoding/binary"

	"nescore/hw/snapshot"
	"nescore/ines"
)

var MMC1 = Desc{
	Name: "MMC1",
	New:  newMMC1,
}

// mmc1 registers are written serially: 5 writes, one bit each, to any address
// of $8000-$FFFF. The 5th write copies the shift register into the register
// selected by bits 13-14 of the address.
type mmc1 struct {
	*base

	prevCycle int64 // cpu cycle of the last serial write

	shift   shiftReg
	counter uint8 // bits shifted so far

	ctrl   uint8 // $8000: [...C PPMM]
	chr0   uint8 // $A000
	chr1   uint8 // $C000
	prgReg uint8 // $E000: [...W PPPP]
}

type shiftReg uint8

func (sr shiftReg) push(val uint8) shiftReg {
	sr >>= 1
	sr |= shiftReg((val << 4) & 0x10)
	return sr
}

func newMMC1(b *base) Mapper {
	m := &mmc1{base: b, prevCycle: -2}

	// On powerup: bits 2,3 of $8000 are set (16k PRG mode, $C000 fixed to the
	// last bank).
	m.ctrl = 0x0C
	m.remap()
	return m
}

func (m *mmc1) WritePRG(addr uint16, val uint8) {
	if addr < 0x8000 {
		m.base.WritePRG(addr, val)
		return
	}

	// Consecutive-cycle writes (read-modify-write instructions) are ignored,
	// only the first one is taken into account.
	cur := m.cpuCycle()
	// The cpu cycle counter restarts on reset or goes back on state loading,
	// a write before the last one can't be consecutive.
	consecutive := m.clock != nil && cur >= m.prevCycle && cur-m.prevCycle < 2
	m.prevCycle = cur

	if val&0x80 != 0 {
		// Reset: clear the shift register and set 16k PRG mode with $C000
		// fixed. Other registers are unchanged.
		m.shift = 0
		m.counter = 0
		m.ctrl |= 0x0C
		m.remap()
		return
	}
	if consecutive {
		return
	}

	m.shift = m.shift.push(val)
	m.counter++
	if m.counter == 5 {
		m.writeReg(addr, uint8(m.shift))
		m.shift = 0
		m.counter = 0
	}
}

// Reset forgets the last serial write timing, the cpu cycle counter restarts
// from 0. Registers are kept: the cartridge doesn't see the reset line.
func (m *mmc1) Reset() {
	m.prevCycle = -2
}

func (m *mmc1) writeReg(addr uint16, val uint8) {
	switch (addr & 0x6000) >> 13 {
	case 0:
		m.ctrl = val
	case 1:
		m.chr0 = val
	case 2:
		m.chr1 = val
	case 3:
		m.prgReg = val
	}

	modMapper.DebugZ("write register").
		Hex16("addr", addr).
		Hex8("val", val).
		End()
	m.remap()
}

func (m *mmc1) prgmode() uint8 { return (m.ctrl >> 2) & 0x03 }
func (m *mmc1) chrmode() uint8 { return (m.ctrl >> 4) & 0x01 }

func (m *mmc1) remap() {
	switch m.ctrl & 0x03 {
	case 0:
		m.mirroring = ines.OnlyAScreen
	case 1:
		m.mirroring = ines.OnlyBScreen
	case 2:
		m.mirroring = ines.VertMirroring
	case 3:
		m.mirroring = ines.HorzMirroring
	}

	// 512KB carts (SUROM) use bit 4 of the CHR registers to select the 256KB
	// PRG half.
	outer := 0
	if len(m.base.prg) == 512*1024 {
		outer = int(m.chr0 & 0x10)
	}

	bank := int(m.prgReg & 0x0F)
	switch m.prgmode() {
	case 0, 1:
		// Low bit of the bank number is ignored in 32k mode.
		m.selectPRGPage32KB((outer | bank) >> 1)
	case 2:
		m.selectPRGPage16KB(0, outer)
		m.selectPRGPage16KB(1, outer|bank)
	case 3:
		m.selectPRGPage16KB(0, outer|bank)
		m.selectPRGPage16KB(1, outer|0x0F)
	}

	switch m.chrmode() {
	case 0:
		m.selectCHRPage8KB(int(m.chr0&0x1F) >> 1)
	case 1:
		m.selectCHRPage4KB(0, int(m.chr0&0x1F))
		m.selectCHRPage4KB(1, int(m.chr1&0x1F))
	}

	// PRG-RAM is enabled when bit 4 of the PRG register is clear (MMC1B).
	m.prgRAMEnabled = m.prgReg&0x10 == 0
}

// mmc1 state registers: shift, counter, ctrl, chr0, chr1, prg, then the
// cycle of the last serial write (int64, little endian).
const mmc1NumRegs = 6 + 8

func (m *mmc1) State() snapshot.Mapper {
	regs := []byte{uint8(m.shift), m.counter, m.ctrl, m.chr0, m.chr1, m.prgReg}
	regs = binary.LittleEndian.AppendUint64(regs, uint64(m.prevCycle))
	return m.state(regs)
}

func (m *mmc1) SetState(s *snapshot.Mapper) error {
	return m.setState(s, func(regs []byte) error {
		if err := checkRegs(regs, mmc1NumRegs); err != nil {
			return err
		}
		m.shift = shiftReg(regs[0])
		m.counter = regs[1] % 5
		m.ctrl, m.chr0, m.chr1, m.prgReg = regs[2], regs[3], regs[4], regs[5]
		m.prevCycle = int64(binary.LittleEndian.Uint64(regs[6:]))
		m.remap()
		return nil
	})
}
