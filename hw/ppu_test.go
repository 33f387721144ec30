package hw

import (
	"testing"

	"nescore/ines"
)

type testCart struct {
	chr [0x2000]byte
	mir ines.Mirroring
}

func (c *testCart) ReadCHR(addr uint16) uint8       { return c.chr[addr&0x1FFF] }
func (c *testCart) WriteCHR(addr uint16, val uint8) { c.chr[addr&0x1FFF] = val }
func (c *testCart) Mirroring() ines.Mirroring       { return c.mir }

type testNMI struct {
	line  bool
	edges int
}

func (n *testNMI) setNMIflag() {
	if !n.line {
		n.edges++
	}
	n.line = true
}

func (n *testNMI) clearNMIflag() { n.line = false }

func newTestPPU(mir ines.Mirroring) (*PPU, *testNMI) {
	nmi := &testNMI{}
	return NewPPU(nmi, &testCart{mir: mir}), nmi
}

func tickFrame(p *PPU) {
	for range NumScanlines * NumCycles {
		p.Tick()
	}
}

func TestPPUVBlankOncePerFrame(t *testing.T) {
	p, nmi := newTestPPU(ines.VertMirroring)
	p.WriteReg(0, 0x80) // enable NMI

	const nframes = 5
	sets := 0
	prev := false
	for range nframes * NumScanlines * NumCycles {
		p.Tick()
		vbl := p.status&(1<<vblank) != 0
		if vbl && !prev {
			sets++
			if p.Scanline != 241 || p.Cycle != 1 {
				t.Errorf("vblank set at %d,%d, want 241,1", p.Scanline, p.Cycle)
			}
		}
		prev = vbl
	}

	if sets != nframes {
		t.Errorf("vblank set %d times, want %d", sets, nframes)
	}
	if nmi.edges != nframes {
		t.Errorf("NMI raised %d times, want %d", nmi.edges, nframes)
	}
	if p.Frame != nframes {
		t.Errorf("Frame = %d, want %d", p.Frame, nframes)
	}
}

func TestPPUNMIDelay(t *testing.T) {
	p, nmi := newTestPPU(ines.VertMirroring)
	p.SetNMIDelay(4)
	p.WriteReg(0, 0x80)

	for p.Scanline != 241 || p.Cycle != 1 {
		p.Tick()
	}
	if nmi.line {
		t.Fatal("NMI seen by the CPU without delay")
	}
	for range 4 {
		p.Tick()
	}
	if !nmi.line {
		t.Fatal("NMI not seen by the CPU after delay")
	}

	// Disabling NMI output drops the line immediately.
	p.WriteReg(0, 0x00)
	if nmi.line {
		t.Error("NMI line still asserted after disabling NMI output")
	}
}

func TestPPUStatusRead(t *testing.T) {
	p, _ := newTestPPU(ines.VertMirroring)
	for p.Scanline != 241 || p.Cycle != 1 {
		p.Tick()
	}

	p.WriteReg(6, 0x21) // first write, sets the toggle
	if st := p.ReadReg(2); st&0x80 == 0 {
		t.Errorf("PPUSTATUS = %02X, want vblank set", st)
	}
	if p.writeLatch {
		t.Error("reading PPUSTATUS should clear the write toggle")
	}
	if st := p.ReadReg(2); st&0x80 != 0 {
		t.Errorf("PPUSTATUS = %02X, want vblank cleared by the previous read", st)
	}
}

func TestPPUSuppressVBL(t *testing.T) {
	p, nmi := newTestPPU(ines.VertMirroring)
	p.WriteReg(0, 0x80)
	for p.Scanline != 241 || p.Cycle != 0 {
		p.Tick()
	}
	p.ReadReg(2)
	for range 100 {
		p.Tick()
	}
	if p.status&(1<<vblank) != 0 || nmi.edges != 0 {
		t.Errorf("vblank = %t, nmi edges = %d, want suppressed", p.status&(1<<vblank) != 0, nmi.edges)
	}
}

func TestPPUScrollAddr(t *testing.T) {
	p, _ := newTestPPU(ines.VertMirroring)

	p.WriteReg(0, 0x02) // nametable 2
	if want := uint16(0x0800); p.vramTmp != want {
		t.Errorf("t = %04X, want %04X", p.vramTmp, want)
	}

	p.WriteReg(5, 0x7D) // X = 15*8+5
	if p.finex != 5 || p.vramTmp&0x1F != 15 {
		t.Errorf("fine x = %d, coarse x = %d, want 5, 15", p.finex, p.vramTmp&0x1F)
	}
	p.WriteReg(5, 0x5E) // Y = 11*8+6
	if got := p.vramTmp >> 12 & 0x7; got != 6 {
		t.Errorf("fine y = %d, want 6", got)
	}
	if got := p.vramTmp >> 5 & 0x1F; got != 11 {
		t.Errorf("coarse y = %d, want 11", got)
	}

	p.WriteReg(6, 0x3D)
	p.WriteReg(6, 0xF0)
	if p.vramAddr != 0x3DF0 {
		t.Errorf("v = %04X, want 3DF0", p.vramAddr)
	}
}

func TestPPUDataReadBuffer(t *testing.T) {
	p, _ := newTestPPU(ines.HorzMirroring)

	setAddr := func(addr uint16) {
		p.ReadReg(2)
		p.WriteReg(6, uint8(addr>>8))
		p.WriteReg(6, uint8(addr))
	}

	setAddr(0x2000)
	p.WriteReg(7, 0x11)
	p.WriteReg(7, 0x22)

	setAddr(0x2000)
	if got := p.ReadReg(7); got != 0x00 {
		t.Errorf("first PPUDATA read = %02X, want stale buffer 00", got)
	}
	if got := p.ReadReg(7); got != 0x11 {
		t.Errorf("second PPUDATA read = %02X, want 11", got)
	}
	if got := p.ReadReg(7); got != 0x22 {
		t.Errorf("third PPUDATA read = %02X, want 22", got)
	}

	// Horizontal mirroring: $2400 mirrors $2000.
	setAddr(0x2400)
	p.ReadReg(7)
	if got := p.ReadReg(7); got != 0x11 {
		t.Errorf("$2400 = %02X, want 11 (mirror of $2000)", got)
	}

	// +32 increment.
	p.WriteReg(0, 0x04)
	setAddr(0x2000)
	p.ReadReg(7)
	if p.vramAddr != 0x2020 {
		t.Errorf("v = %04X after read with +32 increment, want 2020", p.vramAddr)
	}
}

func TestPPUPalette(t *testing.T) {
	p, _ := newTestPPU(ines.VertMirroring)

	setAddr := func(addr uint16) {
		p.ReadReg(2)
		p.WriteReg(6, uint8(addr>>8))
		p.WriteReg(6, uint8(addr))
	}

	setAddr(0x3F10)
	p.WriteReg(7, 0xFF) // only 6 bits are stored

	// Palette reads aren't buffered, $3F00 mirrors $3F10.
	setAddr(0x3F00)
	if got := p.ReadReg(7) & 0x3F; got != 0x3F {
		t.Errorf("$3F00 = %02X, want 3F", got)
	}
	setAddr(0x3F20)
	if got := p.ReadReg(7) & 0x3F; got != 0x3F {
		t.Errorf("$3F20 = %02X, want 3F", got)
	}

	setAddr(0x3F05)
	p.WriteReg(7, 0x21)
	if got := p.palette[5]; got != 0x21 {
		t.Errorf("palette[5] = %02X, want 21", got)
	}
	if got := p.palette[0x15]; got != 0x00 {
		t.Errorf("palette[$15] = %02X, want 00, $3F15 isn't a mirror", got)
	}
}

func TestPPUMirroring(t *testing.T) {
	tests := []struct {
		mir  ines.Mirroring
		addr uint16
		want uint16
	}{
		{ines.HorzMirroring, 0x2000, 0x000},
		{ines.HorzMirroring, 0x2400, 0x000},
		{ines.HorzMirroring, 0x2800, 0x400},
		{ines.HorzMirroring, 0x2C00, 0x400},
		{ines.VertMirroring, 0x2000, 0x000},
		{ines.VertMirroring, 0x2400, 0x400},
		{ines.VertMirroring, 0x2800, 0x000},
		{ines.VertMirroring, 0x2C00, 0x400},
		{ines.OnlyAScreen, 0x2C00, 0x000},
		{ines.OnlyBScreen, 0x2000, 0x400},
		{ines.VertMirroring, 0x3405, 0x405},
	}
	for _, tt := range tests {
		p, _ := newTestPPU(tt.mir)
		if got := p.ntIndex(tt.addr); got != tt.want {
			t.Errorf("%s: ntIndex(%04X) = %03X, want %03X", tt.mir, tt.addr, got, tt.want)
		}
	}
}

func TestPPUOAMData(t *testing.T) {
	p, _ := newTestPPU(ines.VertMirroring)

	p.WriteReg(3, 0x00)
	for i := range 4 {
		p.WriteReg(4, 0xFF-uint8(i))
	}
	if p.oamAddr != 4 {
		t.Errorf("OAMADDR = %d, want 4", p.oamAddr)
	}

	p.WriteReg(3, 0x02)
	if got := p.ReadReg(4); got != 0xFD&0xE3 {
		t.Errorf("attribute byte = %02X, want %02X", got, 0xFD&0xE3)
	}
}

func TestPPUInvalidRegister(t *testing.T) {
	p, _ := newTestPPU(ines.VertMirroring)
	if got := p.ReadReg(8); got != 0xFF {
		t.Errorf("ReadReg(8) = %02X, want FF", got)
	}
	p.WriteReg(8, 0x12) // ignored
}

func TestPPUOpenBus(t *testing.T) {
	p, _ := newTestPPU(ines.VertMirroring)
	p.WriteReg(1, 0x5A)
	if got := p.ReadReg(0); got != 0x5A {
		t.Errorf("reading PPUCTRL = %02X, want last written value 5A", got)
	}
	if got := p.ReadReg(2) & 0x1F; got != 0x1A {
		t.Errorf("PPUSTATUS low bits = %02X, want 1A", got)
	}
}

func TestPPURenderBackdrop(t *testing.T) {
	p, _ := newTestPPU(ines.VertMirroring)

	p.ReadReg(2)
	p.WriteReg(6, 0x3F)
	p.WriteReg(6, 0x00)
	p.WriteReg(7, 0x16) // red

	p.WriteReg(1, 1<<showBg|1<<leftmostBg)
	tickFrame(p)
	tickFrame(p)

	want := ntscPalette[0x16]
	for _, pt := range [][2]int{{0, 0}, {128, 120}, {255, 239}} {
		c := p.FrameBuffer().At(pt[0], pt[1])
		got := uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
		if got != want {
			t.Errorf("pixel %v = %06X, want %06X", pt, got, want)
		}
	}
}

func TestPPUSprite0Hit(t *testing.T) {
	p, _ := newTestPPU(ines.VertMirroring)
	cart := p.cart.(*testCart)

	// Tile 1 is solid, color 1.
	for i := range 8 {
		cart.chr[0x10+i] = 0xFF
	}
	// Nametable filled with tile 1.
	p.ReadReg(2)
	p.WriteReg(6, 0x20)
	p.WriteReg(6, 0x00)
	for range 960 {
		p.WriteReg(7, 0x01)
	}

	// Sprite 0 at (40, 30), tile 1.
	p.WriteReg(3, 0)
	for _, b := range []uint8{30, 1, 0, 40} {
		p.WriteReg(4, b)
	}

	// Reset scroll.
	p.ReadReg(2)
	p.WriteReg(5, 0)
	p.WriteReg(5, 0)
	p.WriteReg(0, 0)

	p.WriteReg(1, 1<<showBg|1<<showSprites|1<<leftmostBg|1<<leftmostSprites)
	tickFrame(p)
	for p.Scanline != 100 {
		p.Tick()
	}

	if p.status&(1<<sprite0Hit) == 0 {
		t.Error("sprite 0 hit not set")
	}
}

func TestPPUSpriteOverflow(t *testing.T) {
	p, _ := newTestPPU(ines.VertMirroring)

	// 9 sprites on the same line.
	p.WriteReg(3, 0)
	for i := range 64 {
		y := uint8(0xF0)
		if i < 9 {
			y = 50
		}
		for _, b := range []uint8{y, 0, 0, uint8(i * 8)} {
			p.WriteReg(4, b)
		}
	}

	p.WriteReg(1, 1<<showSprites)
	tickFrame(p)
	for p.Scanline != 60 {
		p.Tick()
	}
	if p.status&(1<<spriteOverflow) == 0 {
		t.Error("sprite overflow not set with 9 sprites on a line")
	}
}

func TestPPUStateRoundTrip(t *testing.T) {
	p, _ := newTestPPU(ines.VertMirroring)
	p.WriteReg(0, 0x80)
	p.WriteReg(5, 0x12)
	for range 1000 {
		p.Tick()
	}
	s := p.State()

	p2, _ := newTestPPU(ines.VertMirroring)
	p2.SetState(&s)
	for range 5000 {
		p.Tick()
		p2.Tick()
	}
	if p.Scanline != p2.Scanline || p.Cycle != p2.Cycle || p.status != p2.status {
		t.Errorf("PPU diverged after restoring state: %d,%d/%02X vs %d,%d/%02X",
			p.Scanline, p.Cycle, p.status, p2.Scanline, p2.Cycle, p2.status)
	}
}
