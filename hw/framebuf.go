package hw

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/go-faster/errors"
)

const (
	ScreenWidth  = 256
	ScreenHeight = 240
)

// PixelFormat is the memory layout of a frame buffer pixel.
type PixelFormat uint8

const (
	RGB565   PixelFormat = iota // 16-bit, little-endian
	RGB888                      // 24-bit, R then G then B
	RGBA8888                    // 32-bit, R G B then opaque alpha
)

var pixelFormatNames = [...]string{"rgb565", "rgb888", "rgba8888"}

func (f PixelFormat) String() string {
	if int(f) < len(pixelFormatNames) {
		return pixelFormatNames[f]
	}
	return fmt.Sprintf("PixelFormat(%d)", f)
}

// BytesPerPixel returns the size in bytes of a pixel.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case RGB565:
		return 2
	case RGB888:
		return 3
	}
	return 4
}

// ParsePixelFormat parses a pixel format name (rgb565, rgb888 or rgba8888),
// ignoring case.
func ParsePixelFormat(s string) (PixelFormat, error) {
	for i, name := range pixelFormatNames {
		if strings.EqualFold(s, name) {
			return PixelFormat(i), nil
		}
	}
	return 0, errors.Errorf("unknown pixel format %q", s)
}

// FrameBuffer is a 256x240 picture. Pitch is the number of bytes per row.
type FrameBuffer struct {
	Format PixelFormat
	Pitch  int
	Pix    []byte
}

// ErrFrameBuffer reports a frame buffer which can't hold a whole screen.
var ErrFrameBuffer = errors.New("invalid frame buffer")

// Check verifies that fb can hold a whole screen in its format.
func (fb *FrameBuffer) Check() error {
	if fb.Format > RGBA8888 {
		return errors.Wrapf(ErrFrameBuffer, "unknown format %s", fb.Format)
	}
	row := ScreenWidth * fb.Format.BytesPerPixel()
	if fb.Pitch < row {
		return errors.Wrapf(ErrFrameBuffer, "pitch %d, want at least %d", fb.Pitch, row)
	}
	if need := fb.Pitch*(ScreenHeight-1) + row; len(fb.Pix) < need {
		return errors.Wrapf(ErrFrameBuffer, "%d bytes, want at least %d", len(fb.Pix), need)
	}
	return nil
}

// NewFrameBuffer allocates a frame buffer for a whole screen.
func NewFrameBuffer(format PixelFormat) *FrameBuffer {
	pitch := ScreenWidth * format.BytesPerPixel()
	return &FrameBuffer{
		Format: format,
		Pitch:  pitch,
		Pix:    make([]byte, pitch*ScreenHeight),
	}
}

func (fb *FrameBuffer) set(x, y int, rgb uint32) {
	off := y*fb.Pitch + x*fb.Format.BytesPerPixel()
	r, g, b := uint8(rgb>>16), uint8(rgb>>8), uint8(rgb)
	switch fb.Format {
	case RGB565:
		v := uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
		fb.Pix[off] = uint8(v)
		fb.Pix[off+1] = uint8(v >> 8)
	case RGB888:
		fb.Pix[off] = r
		fb.Pix[off+1] = g
		fb.Pix[off+2] = b
	default:
		fb.Pix[off] = r
		fb.Pix[off+1] = g
		fb.Pix[off+2] = b
		fb.Pix[off+3] = 0xFF
	}
}

// At returns the color of the pixel at (x, y).
func (fb *FrameBuffer) At(x, y int) color.RGBA {
	off := y*fb.Pitch + x*fb.Format.BytesPerPixel()
	switch fb.Format {
	case RGB565:
		v := uint16(fb.Pix[off]) | uint16(fb.Pix[off+1])<<8
		return color.RGBA{
			R: uint8(v>>11) << 3,
			G: uint8(v>>5&0x3F) << 2,
			B: uint8(v&0x1F) << 3,
			A: 0xFF,
		}
	case RGB888:
		return color.RGBA{R: fb.Pix[off], G: fb.Pix[off+1], B: fb.Pix[off+2], A: 0xFF}
	}
	return color.RGBA{R: fb.Pix[off], G: fb.Pix[off+1], B: fb.Pix[off+2], A: fb.Pix[off+3]}
}

// Image converts the frame buffer into an image.
func (fb *FrameBuffer) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, ScreenWidth, ScreenHeight))
	for y := range ScreenHeight {
		for x := range ScreenWidth {
			img.SetRGBA(x, y, fb.At(x, y))
		}
	}
	return img
}

// 2C02 NTSC palette, 0xRRGGBB.
var ntscPalette = [64]uint32{
	0x666666, 0x002A88, 0x1412A7, 0x3B00A4, 0x5C007E, 0x6E0040, 0x6C0600, 0x561D00,
	0x333500, 0x0B4800, 0x005200, 0x004F08, 0x00404D, 0x000000, 0x000000, 0x000000,
	0xADADAD, 0x155FD9, 0x4240FF, 0x7527FE, 0xA01ACC, 0xB71E7B, 0xB53120, 0x994E00,
	0x6B6D00, 0x388700, 0x0C9300, 0x008F32, 0x007C8D, 0x000000, 0x000000, 0x000000,
	0xFFFEFF, 0x64B0FF, 0x9290FF, 0xC676FF, 0xF36AFF, 0xFE6ECC, 0xFE8170, 0xEA9E22,
	0xBCBE00, 0x88D800, 0x5CE430, 0x45E082, 0x48CDDE, 0x4F4F4F, 0x000000, 0x000000,
	0xFFFEFF, 0xC0DFFF, 0xD3D2FF, 0xE8C8FF, 0xFBC2FF, 0xFEC4EA, 0xFECCC5, 0xF7D8A5,
	0xE4E594, 0xCFEF96, 0xBDF4AB, 0xB3F3CC, 0xB5EBF2, 0xB8B8B8, 0x000000, 0x000000,
}
