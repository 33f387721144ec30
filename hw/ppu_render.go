package hw

import (
	"math/bits"

	"nescore/hw/snapshot"
)

// Background tile fetch latches and shift registers. The high byte of each
// shifter holds the tile being drawn, the low byte the next one.
type bgRegs struct {
	nt     uint8
	at     uint8
	tileLo uint8
	tileHi uint8

	shiftLo   uint16
	shiftHi   uint16
	atShiftLo uint16
	atShiftHi uint16
}

func (bg *bgRegs) state() snapshot.BgRegs {
	return snapshot.BgRegs{
		NT:        bg.nt,
		AT:        bg.at,
		TileLo:    bg.tileLo,
		TileHi:    bg.tileHi,
		ShiftLo:   bg.shiftLo,
		ShiftHi:   bg.shiftHi,
		ATShiftLo: bg.atShiftLo,
		ATShiftHi: bg.atShiftHi,
	}
}

func (bg *bgRegs) setState(s *snapshot.BgRegs) {
	bg.nt = s.NT
	bg.at = s.AT
	bg.tileLo = s.TileLo
	bg.tileHi = s.TileHi
	bg.shiftLo = s.ShiftLo
	bg.shiftHi = s.ShiftHi
	bg.atShiftLo = s.ATShiftLo
	bg.atShiftHi = s.ATShiftHi
}

// Sprites selected for the scanline being drawn. Patterns are stored already
// flipped horizontally if needed, leftmost pixel in bit 7.
type spriteRegs struct {
	count      int
	hasSprite0 bool
	x          [snapshot.NumSprites]uint8
	attr       [snapshot.NumSprites]uint8
	patLo      [snapshot.NumSprites]uint8
	patHi      [snapshot.NumSprites]uint8
}

func (sr *spriteRegs) state() snapshot.Sprites {
	return snapshot.Sprites{
		Count:      sr.count,
		HasSprite0: sr.hasSprite0,
		X:          sr.x,
		Attr:       sr.attr,
		PatLo:      sr.patLo,
		PatHi:      sr.patHi,
	}
}

func (sr *spriteRegs) setState(s *snapshot.Sprites) {
	sr.count = min(max(s.Count, 0), snapshot.NumSprites)
	sr.hasSprite0 = s.HasSprite0
	sr.x = s.X
	sr.attr = s.Attr
	sr.patLo = s.PatLo
	sr.patHi = s.PatHi
}

// Tick advances the PPU by one dot and performs the work of that dot.
func (p *PPU) Tick() {
	p.tickNMI()

	// The pre-render line is one dot shorter on odd frames when rendering.
	if p.Scanline == 261 && p.Cycle == 339 && p.oddFrame && p.renderingEnabled() {
		p.Cycle = 340
	}

	p.Cycle++
	if p.Cycle >= NumCycles {
		p.Cycle = 0
		p.Scanline++
		if p.Scanline >= NumScanlines {
			p.Scanline = 0
			p.Frame++
			p.oddFrame = !p.oddFrame
		}
	}

	switch {
	case p.Scanline < 240:
		p.doScanline(renderMode)
	case p.Scanline == 240:
		p.doScanline(postRender)
	case p.Scanline == 241:
		p.doScanline(vblankNMI)
	case p.Scanline == 261:
		p.doScanline(preRender)
	}
}

type scanlineMode int

const (
	preRender scanlineMode = iota
	renderMode
	postRender
	vblankNMI
)

func (p *PPU) doScanline(sm scanlineMode) {
	switch sm {
	case preRender:
		if p.Cycle == 1 {
			// Clear vblank, sprite0Hit and spriteOverflow
			p.status &^= 1<<vblank | 1<<sprite0Hit | 1<<spriteOverflow
			p.suppressVBL = false
			p.updateNMI()
		}
		p.fetch()
		if p.renderingEnabled() && p.Cycle >= 280 && p.Cycle <= 304 {
			p.copyY()
		}
		if p.Cycle == 257 {
			p.spr.count = 0
		}

	case renderMode:
		if p.Cycle >= 1 && p.Cycle <= 256 {
			p.renderPixel()
		}
		p.fetch()
		if p.Cycle == 257 && p.renderingEnabled() {
			p.evaluateSprites()
		}

	case postRender:
		break

	case vblankNMI:
		if p.Cycle == 1 {
			if !p.suppressVBL {
				p.status |= 1 << vblank
				p.updateNMI()
			}
			p.suppressVBL = false
		}
	}
}

// fetch performs the background memory fetches and the VRAM address updates
// of the current dot of a render line.
func (p *PPU) fetch() {
	if !p.renderingEnabled() {
		return
	}

	c := p.Cycle
	if c >= 257 && c <= 320 {
		p.oamAddr = 0
	}

	if (c >= 2 && c <= 257) || (c >= 322 && c <= 337) {
		p.shiftBg()
		switch (c - 1) % 8 {
		case 0:
			p.loadBg()
			p.bg.nt = p.Bus.Read8(0x2000|p.vramAddr&0x0FFF, false)
		case 2:
			p.bg.at = p.fetchAttribute()
		case 4:
			p.bg.tileLo = p.Bus.Read8(p.bgTileAddr(), false)
		case 6:
			p.bg.tileHi = p.Bus.Read8(p.bgTileAddr()+8, false)
		case 7:
			p.incrementX()
		}
	}

	switch c {
	case 256:
		p.incrementY()
	case 257:
		p.copyX()
	case 338, 340:
		// Unused nametable fetches.
		p.Bus.Read8(0x2000|p.vramAddr&0x0FFF, false)
	}
}

func (p *PPU) fetchAttribute() uint8 {
	v := p.vramAddr
	addr := 0x23C0 | v&0x0C00 | (v>>4)&0x38 | (v>>2)&0x07
	at := p.Bus.Read8(addr, false)
	shift := ((v >> 4) & 4) | (v & 2)
	return (at >> shift) & 0x03
}

func (p *PPU) bgTileAddr() uint16 {
	fineY := (p.vramAddr >> 12) & 7
	table := uint16(p.ctrl>>backgroundAddr&1) * 0x1000
	return table + uint16(p.bg.nt)*16 + fineY
}

func (p *PPU) loadBg() {
	p.bg.shiftLo = p.bg.shiftLo&0xFF00 | uint16(p.bg.tileLo)
	p.bg.shiftHi = p.bg.shiftHi&0xFF00 | uint16(p.bg.tileHi)

	var lo, hi uint16
	if p.bg.at&1 != 0 {
		lo = 0xFF
	}
	if p.bg.at&2 != 0 {
		hi = 0xFF
	}
	p.bg.atShiftLo = p.bg.atShiftLo&0xFF00 | lo
	p.bg.atShiftHi = p.bg.atShiftHi&0xFF00 | hi
}

func (p *PPU) shiftBg() {
	p.bg.shiftLo <<= 1
	p.bg.shiftHi <<= 1
	p.bg.atShiftLo <<= 1
	p.bg.atShiftHi <<= 1
}

/* loopy scroll helpers */

// incrementX increments the coarse X scroll in v, switching horizontal
// nametable when it wraps.
func (p *PPU) incrementX() {
	if p.vramAddr&0x001F == 31 {
		p.vramAddr &^= 0x001F
		p.vramAddr ^= 0x0400
	} else {
		p.vramAddr++
	}
}

// incrementY increments the fine Y scroll in v, overflowing into coarse Y,
// then switching vertical nametable after row 29.
func (p *PPU) incrementY() {
	if p.vramAddr&0x7000 != 0x7000 {
		p.vramAddr += 0x1000
		return
	}

	p.vramAddr &^= 0x7000
	y := (p.vramAddr & 0x03E0) >> 5
	switch y {
	case 29:
		y = 0
		p.vramAddr ^= 0x0800
	case 31:
		y = 0
	default:
		y++
	}
	p.vramAddr = p.vramAddr&^0x03E0 | y<<5
}

// copyX copies the horizontal position bits from t to v.
func (p *PPU) copyX() {
	p.vramAddr = p.vramAddr&0xFBE0 | p.vramTmp&0x041F
}

// copyY copies the vertical position bits from t to v.
func (p *PPU) copyY() {
	p.vramAddr = p.vramAddr&0x841F | p.vramTmp&0x7BE0
}

/* sprites */

func (p *PPU) spriteHeight() int {
	if p.ctrl&(1<<spriteSize) != 0 {
		return 16
	}
	return 8
}

// evaluateSprites selects the first 8 sprites visible on the next scanline
// and fetches their patterns.
func (p *PPU) evaluateSprites() {
	h := p.spriteHeight()
	count := 0
	p.spr.hasSprite0 = false

	for i := range 64 {
		y := p.oam[i*4]
		row := p.Scanline - int(y)
		if row < 0 || row >= h {
			continue
		}
		if count == snapshot.NumSprites {
			p.status |= 1 << spriteOverflow
			break
		}
		if i == 0 {
			p.spr.hasSprite0 = true
		}

		tile := p.oam[i*4+1]
		attr := p.oam[i*4+2]
		lo, hi := p.fetchSpritePattern(tile, attr, row)
		p.spr.x[count] = p.oam[i*4+3]
		p.spr.attr[count] = attr
		p.spr.patLo[count] = lo
		p.spr.patHi[count] = hi
		count++
	}
	p.spr.count = count
}

func (p *PPU) fetchSpritePattern(tile, attr uint8, row int) (lo, hi uint8) {
	var addr uint16
	if p.spriteHeight() == 8 {
		if attr&0x80 != 0 { // vertical flip
			row = 7 - row
		}
		table := uint16(p.ctrl>>spriteAddr&1) * 0x1000
		addr = table + uint16(tile)*16 + uint16(row)
	} else {
		if attr&0x80 != 0 {
			row = 15 - row
		}
		table := uint16(tile&1) * 0x1000
		tile &= 0xFE
		if row > 7 {
			tile++
			row -= 8
		}
		addr = table + uint16(tile)*16 + uint16(row)
	}

	lo = p.Bus.Read8(addr, false)
	hi = p.Bus.Read8(addr+8, false)
	if attr&0x40 != 0 { // horizontal flip
		lo = bits.Reverse8(lo)
		hi = bits.Reverse8(hi)
	}
	return lo, hi
}

/* pixel output */

func (p *PPU) bgPixel(x int) uint8 {
	if p.mask&(1<<showBg) == 0 || (x < 8 && p.mask&(1<<leftmostBg) == 0) {
		return 0
	}
	bit := 15 - uint16(p.finex)
	px := uint8(p.bg.shiftLo>>bit&1) | uint8(p.bg.shiftHi>>bit&1)<<1
	if px == 0 {
		return 0
	}
	pal := uint8(p.bg.atShiftLo>>bit&1) | uint8(p.bg.atShiftHi>>bit&1)<<1
	return pal<<2 | px
}

// spritePixel returns the slot and color of the frontmost opaque sprite
// pixel at x, slot is -1 if there's none.
func (p *PPU) spritePixel(x int) (slot int, color uint8) {
	if p.mask&(1<<showSprites) == 0 || (x < 8 && p.mask&(1<<leftmostSprites) == 0) {
		return -1, 0
	}
	for i := range p.spr.count {
		off := x - int(p.spr.x[i])
		if off < 0 || off > 7 {
			continue
		}
		bit := 7 - off
		px := p.spr.patLo[i]>>bit&1 | (p.spr.patHi[i]>>bit&1)<<1
		if px == 0 {
			continue
		}
		return i, 0x10 | (p.spr.attr[i]&3)<<2 | px
	}
	return -1, 0
}

func (p *PPU) renderPixel() {
	x := p.Cycle - 1
	y := p.Scanline

	var color uint8
	if p.renderingEnabled() {
		bg := p.bgPixel(x)
		slot, spr := p.spritePixel(x)
		switch {
		case bg == 0 && slot < 0:
			color = 0
		case bg == 0:
			color = spr
		case slot < 0:
			color = bg
		default:
			if slot == 0 && p.spr.hasSprite0 && x != 255 {
				p.status |= 1 << sprite0Hit
			}
			if p.spr.attr[slot]&0x20 == 0 {
				color = spr
			} else {
				color = bg
			}
		}
	} else if p.vramAddr&0x3F00 == 0x3F00 {
		// With rendering off, the backdrop color is the palette entry v
		// points to, if any.
		color = uint8(p.vramAddr & 0x1F)
	}

	idx := p.palette[paletteIndex(uint16(color))]
	if p.mask&(1<<greyscale) != 0 {
		idx &= 0x30
	}
	p.fb.set(x, y, ntscPalette[idx&0x3F])
}
