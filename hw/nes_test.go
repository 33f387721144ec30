package hw

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"nescore/hw/hwdefs"
	"nescore/hw/mappers"
	"nescore/hw/snapshot"
	"nescore/ines"
)

func TestNewNESUnsupportedMapper(t *testing.T) {
	rom := testROM(t, 4, nil)
	nes, err := NewNES(rom, Options{})
	if !errors.Is(err, mappers.ErrUnsupported) {
		t.Fatalf("NewNES error = %v, want %v", err, mappers.ErrUnsupported)
	}
	if nes != nil {
		t.Errorf("NewNES returned a machine along with an error")
	}
}

func TestNESPowerUp(t *testing.T) {
	nes := newTestNES(t, infiniteLoop, Options{})

	if nes.CPU.PC != 0x8000 {
		t.Errorf("PC = $%04X, want $8000", nes.CPU.PC)
	}
	if nes.CPU.SP != 0xFF {
		t.Errorf("SP = $%02X, want $FF", nes.CPU.SP)
	}
	if got := nes.Scheduler.Granularity(); got != GranularityCycle {
		t.Errorf("granularity = %s, want %s", got, GranularityCycle)
	}
}

func TestBusMapping(t *testing.T) {
	nes := newTestNES(t, infiniteLoop, Options{})
	bus := nes.CPU.Bus

	// RAM mirrors.
	bus.Write8(0x0123, 0x42)
	for _, addr := range []uint16{0x0123, 0x0923, 0x1123, 0x1923} {
		if got := bus.Peek8(addr); got != 0x42 {
			t.Errorf("Peek8($%04X) = $%02X, want $42", addr, got)
		}
	}

	// PPU registers, mirrored every 8 bytes.
	bus.Write8(0x3FF9, 0x5A) // PPUMASK
	if nes.PPU.mask != 0x5A {
		t.Errorf("PPUMASK = $%02X, want $5A", nes.PPU.mask)
	}

	// Cartridge.
	if got := bus.Peek8(0x8000); got != infiniteLoop[0] {
		t.Errorf("Peek8($8000) = $%02X, want $%02X", got, infiniteLoop[0])
	}
	// NROM-256, no mirroring.
	if got := bus.Peek8(0xFFFD); got != 0x80 {
		t.Errorf("Peek8($FFFD) = $%02X, want $80", got)
	}
}

func TestRunFrame(t *testing.T) {
	for _, gran := range []Granularity{GranularityCycle, GranularityInstruction} {
		t.Run(gran.String(), func(t *testing.T) {
			nes := newTestNES(t, infiniteLoop, Options{Granularity: gran})

			const nframes = 10
			for i := range nframes {
				n := nes.Scheduler.RunFrame()
				if n < 29770 || n > 29800 {
					t.Errorf("frame %d took %d cycles, want ~29780", i, n)
				}
			}

			// One NMI per frame, the first one occurs in the first frame.
			if got := nes.CPU.RAM.Data[0x10]; got < nframes-1 || got > nframes {
				t.Errorf("NMI count = %d, want %d", got, nframes)
			}
			if nes.PPU.Frame != nframes {
				t.Errorf("Frame = %d, want %d", nes.PPU.Frame, nframes)
			}
		})
	}
}

func TestOAMDMA(t *testing.T) {
	prg := []byte{
		0xA9, 0x02, // LDA #$02
		0x8D, 0x14, 0x40, // STA $4014
		0xEA,             // NOP
		0x4C, 0x06, 0x80, // JMP $8006
	}
	nes := newTestNES(t, prg, Options{})
	for i := range 256 {
		nes.CPU.RAM.Data[0x200+i] = uint8(i) ^ 0x55
	}

	nes.Scheduler.Step() // LDA
	if n := nes.Scheduler.Step(); n != 4 {
		t.Errorf("STA $4014 took %d cycles, want 4", n)
	}
	// The transfer halts the CPU on the next read.
	n := nes.Scheduler.Step()
	if n != 2+513 && n != 2+514 {
		t.Errorf("NOP + OAM DMA took %d cycles, want %d or %d", n, 2+513, 2+514)
	}

	for i := range 256 {
		if got, want := nes.PPU.oam[i], uint8(i)^0x55; got != want {
			t.Fatalf("oam[%d] = $%02X, want $%02X", i, got, want)
		}
	}
}

func TestControllers(t *testing.T) {
	nes := newTestNES(t, infiniteLoop, Options{})
	bus := nes.CPU.Bus

	nes.SetButtons(0, hwdefs.A|hwdefs.Start|hwdefs.Right)
	nes.SetButtons(1, hwdefs.B)
	nes.SetButtons(2, hwdefs.A) // ignored

	bus.Write8(0x4016, 1)
	bus.Write8(0x4016, 0)

	want1 := []uint8{1, 0, 0, 1, 0, 0, 0, 1, 1, 1}
	for i, want := range want1 {
		if got := bus.Read8(0x4016, false); got != 0x40|want {
			t.Errorf("port 1 read %d = $%02X, want $%02X", i, got, 0x40|want)
		}
	}
	want2 := []uint8{0, 1, 0, 0}
	for i, want := range want2 {
		if got := bus.Read8(0x4017, false); got != 0x40|want {
			t.Errorf("port 2 read %d = $%02X, want $%02X", i, got, 0x40|want)
		}
	}

	// While strobe is high, A is continuously reported.
	bus.Write8(0x4016, 1)
	for range 3 {
		if got := bus.Read8(0x4016, false); got != 0x41 {
			t.Errorf("read with strobe high = $%02X, want $41", got)
		}
	}
}

func TestNESReset(t *testing.T) {
	nes := newTestNES(t, infiniteLoop, Options{})
	nes.RunFrame()
	nes.CPU.RAM.Data[0x300] = 0x99

	nes.Reset(hwdefs.SoftReset)
	if nes.CPU.PC != 0x8000 {
		t.Errorf("PC = $%04X, want $8000", nes.CPU.PC)
	}
	if nes.CPU.RAM.Data[0x300] != 0x99 {
		t.Errorf("soft reset cleared RAM")
	}

	nes.Reset(hwdefs.HardReset)
	if nes.CPU.RAM.Data[0x300] != 0x00 {
		t.Errorf("hard reset didn't clear RAM")
	}
}

var stateOpts = cmpopts.EquateEmpty()

func TestSaveStateRoundTrip(t *testing.T) {
	for _, gran := range []Granularity{GranularityCycle, GranularityInstruction} {
		t.Run(gran.String(), func(t *testing.T) {
			nes := newTestNES(t, infiniteLoop, Options{Granularity: gran})
			for range 3 {
				nes.RunFrame()
			}
			nes.SetButtons(0, hwdefs.Select)

			blob := nes.SaveState()
			for range 5 {
				nes.RunFrame()
			}
			want := nes.State()

			if err := nes.LoadState(blob); err != nil {
				t.Fatalf("LoadState: %s", err)
			}
			for range 5 {
				nes.RunFrame()
			}
			got := nes.State()

			if diff := cmp.Diff(want, got, stateOpts); diff != "" {
				t.Errorf("state after reload differs (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSaveStateIntoOtherMachine(t *testing.T) {
	nes := newTestNES(t, infiniteLoop, Options{})
	nes.RunFrame()
	blob := nes.SaveState()

	other := newTestNES(t, infiniteLoop, Options{})
	if err := other.LoadState(blob); err != nil {
		t.Fatalf("LoadState: %s", err)
	}
	if diff := cmp.Diff(nes.State(), other.State(), stateOpts); diff != "" {
		t.Errorf("restored state differs (-want +got):\n%s", diff)
	}
}

func TestLoadStateErrors(t *testing.T) {
	nes := newTestNES(t, infiniteLoop, Options{})
	nes.RunFrame()
	good := nes.SaveState()
	nes.RunFrame()

	mmc1, err := NewNES(testROM(t, 1, infiniteLoop), Options{})
	if err != nil {
		t.Fatal(err)
	}

	badVersion := append([]byte(nil), good...)
	badVersion[len(snapshot.Magic)]++

	badMagic := append([]byte(nil), good...)
	badMagic[0] = 'X'

	s, err := snapshot.Decode(good)
	if err != nil {
		t.Fatal(err)
	}
	s.PPU.Scanline = -7
	badScanline := snapshot.Encode(s)

	tests := []struct {
		name string
		nes  *NES
		blob []byte
		want error
	}{
		{"version", nes, badVersion, snapshot.ErrVersion},
		{"magic", nes, badMagic, snapshot.ErrMagic},
		{"truncated", nes, good[:len(good)/2], snapshot.ErrTruncated},
		{"empty", nes, nil, snapshot.ErrTruncated},
		{"mapper", mmc1, good, snapshot.ErrMismatch},
		{"scanline", nes, badScanline, snapshot.ErrMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.nes.State()
			err := tt.nes.LoadState(tt.blob)
			if !errors.Is(err, tt.want) {
				t.Fatalf("LoadState error = %v, want %v", err, tt.want)
			}
			if diff := cmp.Diff(before, tt.nes.State(), stateOpts); diff != "" {
				t.Errorf("machine modified by a failed load (-before +after):\n%s", diff)
			}
			tt.nes.RunFrame()
		})
	}
}

func TestMMC1AfterResetAndLoad(t *testing.T) {
	tests := []struct {
		name   string
		rewind func(nes *NES, early []byte) error
	}{
		{"soft reset", func(nes *NES, _ []byte) error {
			nes.Reset(hwdefs.SoftReset)
			return nil
		}},
		{"load earlier state", func(nes *NES, early []byte) error {
			return nes.LoadState(early)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nes, err := NewNES(testROM(t, 1, infiniteLoop), Options{})
			if err != nil {
				t.Fatal(err)
			}
			nes.RunFrame()
			early := nes.SaveState()
			nes.RunFrame()
			nes.RunFrame()
			nes.CPU.Bus.Write8(0x8000, 0x80)

			if err := tt.rewind(nes, early); err != nil {
				t.Fatal(err)
			}

			// Select the last 16KB bank at $8000, with well-spaced writes.
			for i := range 5 {
				nes.CPU.Cycles += 3
				nes.CPU.Bus.Write8(0xE000, (1>>i)&1)
			}
			if got, want := nes.CPU.Bus.Peek8(0x8000), nes.CPU.Bus.Peek8(0xC000); got != want {
				t.Errorf("$8000 = %02X, want %02X (bank 1)", got, want)
			}
		})
	}
}

func TestSetStateBadSizes(t *testing.T) {
	nes := newTestNES(t, infiniteLoop, Options{})
	s := nes.State()
	s.RAM = s.RAM[:0x400]
	if err := nes.SetState(s); !errors.Is(err, snapshot.ErrSize) {
		t.Errorf("SetState error = %v, want %v", err, snapshot.ErrSize)
	}

	s = nes.State()
	s.PPU.OAM = nil
	if err := nes.SetState(s); !errors.Is(err, snapshot.ErrSize) {
		t.Errorf("SetState error = %v, want %v", err, snapshot.ErrSize)
	}
}

func TestFrameBufferFormats(t *testing.T) {
	for _, format := range []PixelFormat{RGB565, RGB888, RGBA8888} {
		t.Run(format.String(), func(t *testing.T) {
			fb := NewFrameBuffer(format)
			if got, want := len(fb.Pix), ScreenWidth*ScreenHeight*format.BytesPerPixel(); got != want {
				t.Fatalf("len(Pix) = %d, want %d", got, want)
			}
			nes := newTestNES(t, infiniteLoop, Options{FrameBuffer: fb})
			if nes.PPU.FrameBuffer() != fb {
				t.Fatal("PPU doesn't draw in the given frame buffer")
			}

			// Palette entry $30 is white.
			fb.set(3, 7, ntscPalette[0x30])
			c := fb.At(3, 7)
			if c.R < 0xF8 || c.G < 0xF8 || c.B < 0xF8 {
				t.Errorf("At(3, 7) = %v, want white", c)
			}
			if img := fb.Image(); img.RGBAAt(3, 7) != c {
				t.Errorf("Image().At(3, 7) = %v, want %v", img.RGBAAt(3, 7), c)
			}
		})
	}

	if _, err := ParsePixelFormat("yuv"); err == nil {
		t.Error("ParsePixelFormat(yuv) should fail")
	}
	if f, err := ParsePixelFormat("RGB565"); err != nil || f != RGB565 {
		t.Errorf("ParsePixelFormat(RGB565) = %s, %v", f, err)
	}
}

func TestInvalidFrameBuffer(t *testing.T) {
	tests := []struct {
		name string
		fb   *FrameBuffer
	}{
		{"no pixels", &FrameBuffer{Format: RGB565, Pitch: 512}},
		{"short pitch", &FrameBuffer{Format: RGBA8888, Pitch: 256 * 3, Pix: make([]byte, 256*4*240)}},
		{"short buffer", &FrameBuffer{Format: RGB888, Pitch: 256 * 3, Pix: make([]byte, 256*3*239)}},
		{"unknown format", &FrameBuffer{Format: 7, Pitch: 1024, Pix: make([]byte, 1024*240)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nes, err := NewNES(testROM(t, 0, infiniteLoop), Options{FrameBuffer: tt.fb})
			if !errors.Is(err, ErrFrameBuffer) {
				t.Errorf("NewNES error = %v, want %v", err, ErrFrameBuffer)
			}
			if nes != nil {
				t.Errorf("NewNES returned a machine along with an error")
			}

			nes = newTestNES(t, infiniteLoop, Options{})
			prev := nes.PPU.FrameBuffer()
			if err := nes.SetFrameBuffer(tt.fb); !errors.Is(err, ErrFrameBuffer) {
				t.Errorf("SetFrameBuffer error = %v, want %v", err, ErrFrameBuffer)
			}
			if nes.PPU.FrameBuffer() != prev {
				t.Errorf("frame buffer replaced by an invalid one")
			}
			nes.RunFrame()
		})
	}

	// Rows may be padded, the last one doesn't need to be.
	fb := &FrameBuffer{Format: RGB565, Pitch: 600, Pix: make([]byte, 600*239+512)}
	nes := newTestNES(t, infiniteLoop, Options{FrameBuffer: fb})
	nes.RunFrame()
	if err := nes.SetFrameBuffer(nil); err != nil {
		t.Errorf("SetFrameBuffer(nil) error = %v", err)
	}
	if got := nes.PPU.FrameBuffer(); got == fb || got == nil {
		t.Errorf("SetFrameBuffer(nil) didn't switch to an internal buffer")
	}
}

func TestParseGranularity(t *testing.T) {
	for _, g := range []Granularity{GranularityCycle, GranularityInstruction} {
		got, err := ParseGranularity(g.String())
		if err != nil || got != g {
			t.Errorf("ParseGranularity(%q) = %s, %v, want %s", g.String(), got, err, g)
		}
	}
	if _, err := ParseGranularity("frame"); err == nil {
		t.Error("ParseGranularity(frame) should fail")
	}
}

func TestFourScreenFallback(t *testing.T) {
	rom := testROM(t, 0, infiniteLoop)
	rom = ines.New(0, ines.FourScreen, rom.PRG, rom.CHR)
	nes, err := NewNES(rom, Options{})
	if err != nil {
		t.Fatalf("NewNES: %s", err)
	}
	if got := nes.Mapper.Mirroring(); got != ines.VertMirroring {
		t.Errorf("mirroring = %s, want %s", got, ines.VertMirroring)
	}
}
