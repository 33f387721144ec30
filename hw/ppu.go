package hw

import (
	"nescore/emu/log"
	"nescore/hw/hwdefs"
	"nescore/hw/hwio"
	"nescore/hw/snapshot"
	"nescore/ines"
)

const (
	NumScanlines = 262 // Number of scanlines per frame.
	NumCycles    = 341 // Number of PPU cycles per scanline.

	// DefaultNMIDelay is the number of PPU dots between the rising edge of
	// the NMI output and the moment the CPU sees its NMI line asserted.
	DefaultNMIDelay = 15
)

const (
	// PPUCTRL bits
	// $2000

	// Nametable selection mask
	// (0 = $2000; 1 = $2400; 2 = $2800; 3 = $2C00)
	ntselect = 0b11

	// VRAM address increment per CPU read/write of PPUDATA
	// (0: +1 i.e. horizontal; 1: +32 i.e. vertical)
	vramIncr = 2

	// Sprite pattern table address for 8x8 sprites
	// (0: $0000; 1: $1000; ignored in 8x16 mode)
	spriteAddr = 3

	// Background pattern table address (0: $0000; 1: $1000)
	backgroundAddr = 4

	// Sprite size (0: 8x8 pixels; 1: 8x16 pixels)
	spriteSize = 5

	// Generate an NMI at the start of the
	// vertical blanking interval (0: off; 1: on)
	nmi = 7
)

const (
	// PPUMASK bits
	// $2001

	// Greyscale
	// (0: normal color, 1: produce a greyscale display)
	greyscale = 0

	// Show background in leftmost 8 pixels of screen
	leftmostBg = 1

	// Show sprites in leftmost 8 pixels of screen
	leftmostSprites = 2

	showBg      = 3
	showSprites = 4
)

const (
	// PPUSTATUS bits
	// $2002

	// Returns stale PPU bus contents.
	openbusMask = 0b11111

	// Sprite overflow. Set during sprite evaluation when more than 8 sprites
	// are found on a scanline, cleared at dot 1 of the pre-render line.
	spriteOverflow = 5

	// Sprite 0 Hit. Set when a nonzero pixel of sprite 0 overlaps a nonzero
	// background pixel; cleared at dot 1 of the pre-render line.
	sprite0Hit = 6

	// Vertical blank has started. Set at dot 1 of line 241, cleared after
	// reading $2002 and at dot 1 of the pre-render line.
	vblank = 7
)

// cartridge is the part of the mapper the PPU bus sees.
type cartridge interface {
	ReadCHR(addr uint16) uint8
	WriteCHR(addr uint16, val uint8)
	Mirroring() ines.Mirroring
}

// nmiLine is the CPU NMI input.
type nmiLine interface {
	setNMIflag()
	clearNMIflag()
}

type PPU struct {
	Bus  *hwio.Table // PPU bus
	cpu  nmiLine
	cart cartridge

	Cycle    int    // Current cycle/pixel in scanline
	Scanline int    // Current scanline being drawn
	Frame    uint64 // Number of frames since reset
	oddFrame bool

	//	$0000-$1FFF	Pattern tables, on the cartridge
	CHR hwio.Device `hwio:"offset=0x0000,size=0x2000,rcb,wcb"`

	// $2000-$2FFF	Nametables 0 to 3
	// $3000-$3EFF	Mirrors of $2000-$2EFF
	NameTables hwio.Device `hwio:"offset=0x2000,size=0x1F00,rcb,wcb"`

	// $3F00-$3F1F	Palette RAM indexes
	// $3F20-$3FFF	Mirrors of $3F00-$3F1F
	Palettes hwio.Device `hwio:"offset=0x3F00,size=0x100,rcb,wcb"`

	// CPU-exposed memory-mapped PPU registers
	// mapped from $2000 to $2007, mirrored up to $3fff
	PPUCTRL   hwio.Reg8 `hwio:"bank=1,offset=0x0,rcb,wcb"`
	PPUMASK   hwio.Reg8 `hwio:"bank=1,offset=0x1,rcb,wcb"`
	PPUSTATUS hwio.Reg8 `hwio:"bank=1,offset=0x2,rcb,wcb"`
	OAMADDR   hwio.Reg8 `hwio:"bank=1,offset=0x3,rcb,wcb"`
	OAMDATA   hwio.Reg8 `hwio:"bank=1,offset=0x4,rcb,wcb"`
	PPUSCROLL hwio.Reg8 `hwio:"bank=1,offset=0x5,rcb,wcb"`
	PPUADDR   hwio.Reg8 `hwio:"bank=1,offset=0x6,rcb,wcb"`
	PPUDATA   hwio.Reg8 `hwio:"bank=1,offset=0x7,rcb,wcb"`

	regs [8]*hwio.Reg8

	ctrl    uint8
	mask    uint8
	status  uint8
	oamAddr uint8
	openBus uint8 // I/O latch, returned by reads of write-only registers

	// VRAM read/write
	vramAddr    uint16 // v
	vramTmp     uint16 // t
	finex       uint8
	writeLatch  bool // w
	ppuDataRbuf uint8

	// NMI output, delayed
	nmiDelay    int
	nmiDots     int
	nmiPrevious bool
	suppressVBL bool

	bg  bgRegs
	spr spriteRegs

	vram    [snapshot.VRAMSize]byte
	oam     [snapshot.OAMSize]byte
	palette [snapshot.PaletteSize]byte

	fb *FrameBuffer
}

// NewPPU creates a PPU, drawing pattern tables from cart and raising NMIs on
// cpu.
func NewPPU(cpu nmiLine, cart cartridge) *PPU {
	p := &PPU{
		Bus:     hwio.NewTable("ppu"),
		cpu:     cpu,
		cart:    cart,
		nmiDots: DefaultNMIDelay,
	}
	hwio.MustInitRegs(p)
	p.Bus.MapBank(0x0000, p, 0)
	p.regs = [8]*hwio.Reg8{
		&p.PPUCTRL, &p.PPUMASK, &p.PPUSTATUS, &p.OAMADDR,
		&p.OAMDATA, &p.PPUSCROLL, &p.PPUADDR, &p.PPUDATA,
	}
	p.fb = NewFrameBuffer(RGBA8888)
	p.Reset(hwdefs.HardReset)
	return p
}

// MapRegisters maps the 8 PPU registers on the CPU bus, mirrored every
// 8 bytes from $2000 to $3FFF.
func (p *PPU) MapRegisters(bus *hwio.Table) {
	for addr := uint16(0x2000); addr < 0x4000; addr += 8 {
		bus.MapBank(addr, p, 1)
	}
}

// SetNMIDelay sets the number of dots after which a raised NMI output is
// seen by the CPU.
func (p *PPU) SetNMIDelay(dots int) {
	p.nmiDots = max(dots, 1)
}

// SetFrameBuffer sets the buffer in which frames are drawn. If fb is nil the
// PPU allocates and owns an RGBA8888 buffer. An fb too small for its format
// is refused with ErrFrameBuffer, the current buffer is kept.
func (p *PPU) SetFrameBuffer(fb *FrameBuffer) error {
	if fb == nil {
		fb = NewFrameBuffer(RGBA8888)
	}
	if err := fb.Check(); err != nil {
		return err
	}
	p.fb = fb
	return nil
}

func (p *PPU) FrameBuffer() *FrameBuffer { return p.fb }

func (p *PPU) Reset(soft bool) {
	p.ctrl = 0
	p.mask = 0
	p.writeLatch = false
	p.finex = 0
	p.vramTmp = 0
	p.ppuDataRbuf = 0
	if !soft {
		p.status = 0
		p.oamAddr = 0
		p.vramAddr = 0
		p.openBus = 0
		p.vram = [snapshot.VRAMSize]byte{}
		p.oam = [snapshot.OAMSize]byte{}
		p.palette = [snapshot.PaletteSize]byte{}
	}
	p.Scanline = 0
	p.Cycle = 0
	p.Frame = 0
	p.oddFrame = false
	p.nmiDelay = 0
	p.nmiPrevious = false
	p.suppressVBL = false
	p.bg = bgRegs{}
	p.spr = spriteRegs{}
	p.cpu.clearNMIflag()
}

// ReadReg reads the register at $2000+id, with the side effects of a CPU
// read. Invalid ids read as 0xFF.
func (p *PPU) ReadReg(id uint8) uint8 {
	if int(id) >= len(p.regs) {
		return 0xFF
	}
	return p.regs[id].Read8(0x2000+uint16(id), false)
}

// WriteReg writes val to the register at $2000+id. Invalid ids are ignored.
func (p *PPU) WriteReg(id uint8, val uint8) {
	if int(id) >= len(p.regs) {
		return
	}
	p.regs[id].Write8(0x2000+uint16(id), val)
}

func (p *PPU) renderingEnabled() bool {
	return p.mask&(1<<showBg|1<<showSprites) != 0
}

/* NMI */

// updateNMI recomputes the NMI output, a rising edge starts the delay after
// which the CPU sees it. A falling edge is seen immediately.
func (p *PPU) updateNMI() {
	out := p.ctrl&(1<<nmi) != 0 && p.status&(1<<vblank) != 0
	if out && !p.nmiPrevious {
		p.nmiDelay = p.nmiDots
	}
	if !out {
		p.nmiDelay = 0
		p.cpu.clearNMIflag()
	}
	p.nmiPrevious = out
}

func (p *PPU) tickNMI() {
	if p.nmiDelay == 0 {
		return
	}
	p.nmiDelay--
	if p.nmiDelay == 0 && p.nmiPrevious {
		p.cpu.setNMIflag()
	}
}

/* CPU-exposed registers */

func (p *PPU) latch(val uint8) uint8 {
	p.openBus = val
	return val
}

// PPUCTRL: $2000
func (p *PPU) ReadPPUCTRL(_ uint8, _ bool) uint8 { return p.openBus }

func (p *PPU) WritePPUCTRL(_, val uint8) {
	log.ModPPU.DebugZ("Write to PPUCTRL").Hex8("val", val).End()
	p.latch(val)
	p.ctrl = val

	// Transfer the nametable bits.
	p.vramTmp &^= ntselect << 10
	p.vramTmp |= (uint16(val) & ntselect) << 10

	// By toggling the nmi bit during vblank without reading PPUSTATUS, a
	// program can cause /nmi to be pulled low multiple times, causing
	// multiple NMIs to be generated.
	p.updateNMI()
}

// PPUMASK: $2001
func (p *PPU) ReadPPUMASK(_ uint8, _ bool) uint8 { return p.openBus }

func (p *PPU) WritePPUMASK(_, val uint8) {
	log.ModPPU.DebugZ("Write to PPUMASK").Hex8("val", val).End()
	p.latch(val)
	p.mask = val
}

// PPUSTATUS: $2002
func (p *PPU) ReadPPUSTATUS(_ uint8, peek bool) uint8 {
	ret := p.status&^openbusMask | p.openBus&openbusMask
	if peek {
		return ret
	}

	p.writeLatch = false
	p.status &^= 1 << vblank
	p.updateNMI()

	// Reading one dot before vblank is set returns it clear and prevents
	// it from being set for this frame.
	if p.Scanline == 241 && p.Cycle == 0 {
		p.suppressVBL = true
	}
	return p.latch(ret)
}

func (p *PPU) WritePPUSTATUS(_, val uint8) { p.latch(val) }

// OAMADDR: $2003
func (p *PPU) ReadOAMADDR(_ uint8, _ bool) uint8 { return p.openBus }

func (p *PPU) WriteOAMADDR(_, val uint8) {
	p.latch(val)
	p.oamAddr = val
}

// OAMDATA: $2004
func (p *PPU) ReadOAMDATA(_ uint8, peek bool) uint8 {
	val := p.oam[p.oamAddr]
	if p.oamAddr&0x03 == 0x02 {
		// Unimplemented bits of the sprite attribute byte.
		val &= 0xE3
	}
	if peek {
		return val
	}
	return p.latch(val)
}

func (p *PPU) WriteOAMDATA(_, val uint8) {
	p.latch(val)
	if p.renderingEnabled() && (p.Scanline < 240 || p.Scanline == 261) {
		// Writes during rendering are ignored but increment the high 6 bits
		// of the address.
		p.oamAddr += 4
		return
	}
	p.oam[p.oamAddr] = val
	p.oamAddr++
}

// PPUSCROLL: $2005
func (p *PPU) ReadPPUSCROLL(_ uint8, _ bool) uint8 { return p.openBus }

func (p *PPU) WritePPUSCROLL(_, val uint8) {
	log.ModPPU.DebugZ("Write to PPUSCROLL").Hex8("val", val).End()
	p.latch(val)

	if !p.writeLatch { // first write
		p.finex = val & 0b111
		p.vramTmp &^= 0b1_1111
		p.vramTmp |= uint16(val >> 3)
	} else { // second write
		p.vramTmp &^= 0b0111_0011_1110_0000
		p.vramTmp |= uint16(val&0b111) << 12
		p.vramTmp |= uint16(val&0b1111_1000) << 2
	}

	p.writeLatch = !p.writeLatch
}

// To read/write VRAM from CPU, PPUADDR is set to the address of the operation.
// It's a 16-bit register so 2 writes are necessary.
// PPUADDR: $2006
func (p *PPU) ReadPPUADDR(_ uint8, _ bool) uint8 { return p.openBus }

func (p *PPU) WritePPUADDR(_, val uint8) {
	p.latch(val)
	if !p.writeLatch { // first write
		p.vramTmp &^= 0b11_1111_0000_0000
		p.vramTmp |= uint16(val&0b11_1111) << 8
		p.vramTmp &^= 1 << 14 // clear z bit
	} else { // second write
		p.vramTmp &^= 0xff
		p.vramTmp |= uint16(val)
		p.vramAddr = p.vramTmp
	}

	p.writeLatch = !p.writeLatch
}

// PPUDATA: $2007
func (p *PPU) ReadPPUDATA(_ uint8, peek bool) uint8 {
	addr := p.vramAddr & 0x3FFF
	if peek {
		if addr >= 0x3F00 {
			return p.Bus.Peek8(addr)
		}
		return p.ppuDataRbuf
	}

	var val uint8
	if addr < 0x3F00 {
		// Reading VRAM is too slow so the actual data
		// will be returned at the next read.
		val = p.ppuDataRbuf
		p.ppuDataRbuf = p.Bus.Read8(addr, false)
	} else {
		// Reading palette data is immediate, the top 2 bits come from the
		// latch. The read buffer gets the nametable byte 'under' the palette.
		val = p.Bus.Read8(addr, false) | p.openBus&0xC0
		p.ppuDataRbuf = p.Bus.Read8(addr-0x1000, false)
	}

	p.incVRAMaddr()
	log.ModPPU.DebugZ("VRAM read").
		Hex16("addr", addr).
		Hex8("val", val).
		End()
	return p.latch(val)
}

func (p *PPU) WritePPUDATA(_, val uint8) {
	p.latch(val)
	addr := p.vramAddr & 0x3FFF
	p.Bus.Write8(addr, val)
	p.incVRAMaddr()

	log.ModPPU.DebugZ("VRAM write").
		Hex16("addr", addr).
		Hex8("val", val).
		End()
}

// After each i/o on PPUDATA, PPUADDR is incremented.
func (p *PPU) incVRAMaddr() {
	if p.renderingEnabled() && (p.Scanline < 240 || p.Scanline == 261) {
		// During rendering, the address is updated as if a tile was fetched.
		p.incrementX()
		p.incrementY()
		return
	}

	if p.ctrl&(1<<vramIncr) != 0 {
		p.vramAddr += 32
	} else {
		p.vramAddr++
	}
	p.vramAddr &= 0x7FFF
}

/* PPU bus devices */

func (p *PPU) ReadCHR(addr uint16, _ bool) uint8 { return p.cart.ReadCHR(addr) }
func (p *PPU) WriteCHR(addr uint16, val uint8)   { p.cart.WriteCHR(addr, val) }

func (p *PPU) ReadNAMETABLES(addr uint16, _ bool) uint8 { return p.vram[p.ntIndex(addr)] }
func (p *PPU) WriteNAMETABLES(addr uint16, val uint8)   { p.vram[p.ntIndex(addr)] = val }

// ntIndex maps a nametable address onto the 2KB of console VRAM, following
// the cartridge mirroring.
func (p *PPU) ntIndex(addr uint16) uint16 {
	addr &= 0x0FFF
	table := addr / 0x400
	switch p.cart.Mirroring() {
	case ines.HorzMirroring:
		table >>= 1
	case ines.VertMirroring, ines.FourScreen:
		table &= 1
	case ines.OnlyAScreen:
		table = 0
	case ines.OnlyBScreen:
		table = 1
	}
	return table*0x400 | addr&0x3FF
}

func (p *PPU) ReadPALETTES(addr uint16, _ bool) uint8 {
	return p.palette[paletteIndex(addr)]
}

func (p *PPU) WritePALETTES(addr uint16, val uint8) {
	p.palette[paletteIndex(addr)] = val & 0x3F
}

// $3F10/$3F14/$3F18/$3F1C mirror $3F00/$3F04/$3F08/$3F0C.
func paletteIndex(addr uint16) uint16 {
	addr &= 0x1F
	if addr&0x13 == 0x10 {
		addr &^= 0x10
	}
	return addr
}

/* state */

func (p *PPU) State() snapshot.PPU {
	return snapshot.PPU{
		CTRL:        p.ctrl,
		MASK:        p.mask,
		STATUS:      p.status,
		OAMAddr:     p.oamAddr,
		OpenBus:     p.openBus,
		DataBuf:     p.ppuDataRbuf,
		V:           p.vramAddr,
		T:           p.vramTmp,
		FineX:       p.finex,
		Toggle:      p.writeLatch,
		Scanline:    p.Scanline,
		Cycle:       p.Cycle,
		Frame:       p.Frame,
		OddFrame:    p.oddFrame,
		NMIDelay:    p.nmiDelay,
		NMIOutput:   p.nmiPrevious,
		SuppressVBL: p.suppressVBL,
		Bg:          p.bg.state(),
		Sprites:     p.spr.state(),
		VRAM:        append([]byte(nil), p.vram[:]...),
		OAM:         append([]byte(nil), p.oam[:]...),
		Palette:     append([]byte(nil), p.palette[:]...),
	}
}

// SetState restores the PPU state. Memory sizes must have been validated.
func (p *PPU) SetState(s *snapshot.PPU) {
	p.ctrl = s.CTRL
	p.mask = s.MASK
	p.status = s.STATUS
	p.oamAddr = s.OAMAddr
	p.openBus = s.OpenBus
	p.ppuDataRbuf = s.DataBuf
	p.vramAddr = s.V
	p.vramTmp = s.T
	p.finex = s.FineX
	p.writeLatch = s.Toggle
	p.Scanline = s.Scanline
	p.Cycle = s.Cycle
	p.Frame = s.Frame
	p.oddFrame = s.OddFrame
	p.nmiDelay = s.NMIDelay
	p.nmiPrevious = s.NMIOutput
	p.suppressVBL = s.SuppressVBL
	p.bg.setState(&s.Bg)
	p.spr.setState(&s.Sprites)
	copy(p.vram[:], s.VRAM)
	copy(p.oam[:], s.OAM)
	copy(p.palette[:], s.Palette)
}
