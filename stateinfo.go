package main

import (
	"fmt"
	"io"

	"github.com/go-faster/jx"

	"nescore/emu"
	"nescore/hw/snapshot"
)

// stateInfo writes a JSON summary of the save-state file at path. Memory
// contents are only included when blobs is true.
func stateInfo(w io.Writer, path string, blobs bool) error {
	s, err := emu.ReadStateFile(path)
	if err != nil {
		return err
	}

	var e jx.Encoder
	e.SetIdent(2)
	encodeState(&e, s, blobs)
	if _, err := w.Write(e.Bytes()); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w)
	return err
}

func hex16(v uint16) string { return fmt.Sprintf("$%04X", v) }
func hex8(v uint8) string   { return fmt.Sprintf("$%02X", v) }

func encodeState(e *jx.Encoder, s *snapshot.NES, blobs bool) {
	e.ObjStart()

	e.FieldStart("version")
	e.Int(snapshot.Version)

	e.FieldStart("cpu")
	e.ObjStart()
	e.FieldStart("pc")
	e.Str(hex16(s.CPU.PC))
	e.FieldStart("a")
	e.Str(hex8(s.CPU.A))
	e.FieldStart("x")
	e.Str(hex8(s.CPU.X))
	e.FieldStart("y")
	e.Str(hex8(s.CPU.Y))
	e.FieldStart("sp")
	e.Str(hex8(s.CPU.SP))
	e.FieldStart("p")
	e.Str(hex8(s.CPU.P))
	e.FieldStart("cycles")
	e.Int64(s.CPU.Cycles)
	e.FieldStart("open_bus")
	e.Str(hex8(s.CPU.OpenBus))
	e.FieldStart("irq_flag")
	e.Int(int(s.CPU.IRQFlag))
	e.FieldStart("nmi_flag")
	e.Bool(s.CPU.NMIFlag)
	e.ObjEnd()

	e.FieldStart("dma")
	e.ObjStart()
	e.FieldStart("oam_pending")
	e.Bool(s.DMA.OAMPending)
	e.FieldStart("oam_page")
	e.Str(hex8(s.DMA.OAMPage))
	e.FieldStart("dmc_pending")
	e.Bool(s.DMA.DMCPending)
	e.ObjEnd()

	e.FieldStart("ppu")
	e.ObjStart()
	e.FieldStart("ctrl")
	e.Str(hex8(s.PPU.CTRL))
	e.FieldStart("mask")
	e.Str(hex8(s.PPU.MASK))
	e.FieldStart("status")
	e.Str(hex8(s.PPU.STATUS))
	e.FieldStart("v")
	e.Str(hex16(s.PPU.V))
	e.FieldStart("t")
	e.Str(hex16(s.PPU.T))
	e.FieldStart("fine_x")
	e.Int(int(s.PPU.FineX))
	e.FieldStart("scanline")
	e.Int(s.PPU.Scanline)
	e.FieldStart("cycle")
	e.Int(s.PPU.Cycle)
	e.FieldStart("frame")
	e.Int64(int64(s.PPU.Frame))
	if blobs {
		e.FieldStart("vram")
		e.Base64(s.PPU.VRAM)
		e.FieldStart("oam")
		e.Base64(s.PPU.OAM)
		e.FieldStart("palette")
		e.Base64(s.PPU.Palette)
	}
	e.ObjEnd()

	e.FieldStart("apu")
	e.ObjStart()
	e.FieldStart("cycle")
	e.Int64(int64(s.APU.Cycle))
	e.FieldStart("square1")
	encodeChannel(e, s.APU.Square1.Length, s.APU.Square1.Period)
	e.FieldStart("square2")
	encodeChannel(e, s.APU.Square2.Length, s.APU.Square2.Period)
	e.FieldStart("triangle")
	encodeChannel(e, s.APU.Triangle.Length, s.APU.Triangle.Period)
	e.FieldStart("noise")
	encodeChannel(e, s.APU.Noise.Length, s.APU.Noise.Period)
	e.FieldStart("dmc")
	e.ObjStart()
	e.FieldStart("level")
	e.Int(int(s.APU.DMC.Level))
	e.FieldStart("address")
	e.Str(hex16(s.APU.DMC.CurrentAddr))
	e.FieldStart("remaining")
	e.Int(int(s.APU.DMC.Remaining))
	e.FieldStart("irq_enabled")
	e.Bool(s.APU.DMC.IRQEnabled)
	e.ObjEnd()
	e.FieldStart("frame_counter")
	e.ObjStart()
	e.FieldStart("mode")
	e.Int(int(s.APU.FrameCounter.Mode))
	e.FieldStart("step")
	e.Int(int(s.APU.FrameCounter.Step))
	e.ObjEnd()
	e.ObjEnd()

	e.FieldStart("mapper")
	e.ObjStart()
	e.FieldStart("id")
	e.Int(int(s.Mapper.ID))
	e.FieldStart("regs")
	e.ArrStart()
	for _, r := range s.Mapper.Regs {
		e.Str(hex8(r))
	}
	e.ArrEnd()
	e.FieldStart("prg_ram_size")
	e.Int(len(s.Mapper.PRGRAM))
	e.FieldStart("chr_ram_size")
	e.Int(len(s.Mapper.CHRRAM))
	if blobs {
		e.FieldStart("prg_ram")
		e.Base64(s.Mapper.PRGRAM)
		e.FieldStart("chr_ram")
		e.Base64(s.Mapper.CHRRAM)
	}
	e.ObjEnd()

	e.FieldStart("input")
	e.ObjStart()
	e.FieldStart("strobe")
	e.Bool(s.Input.Strobe)
	e.FieldStart("buttons")
	e.ArrStart()
	for _, b := range s.Input.Buttons {
		e.Str(hex8(b))
	}
	e.ArrEnd()
	e.ObjEnd()

	if blobs {
		e.FieldStart("ram")
		e.Base64(s.RAM)
	}

	e.ObjEnd()
}

func encodeChannel(e *jx.Encoder, l snapshot.LengthCounter, period uint16) {
	e.ObjStart()
	e.FieldStart("enabled")
	e.Bool(l.Enabled)
	e.FieldStart("length")
	e.Int(int(l.Counter))
	e.FieldStart("period")
	e.Int(int(period))
	e.ObjEnd()
}
