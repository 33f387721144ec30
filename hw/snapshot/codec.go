package snapshot

import (
	"github.com/go-faster/errors"
	"github.com/tinylib/msgp/msgp"
)

// A save-state blob is the 4-byte magic, a version byte, then one region per
// unit, in a fixed order. Each region is a msgpack string tag followed by a
// msgpack bin holding a map of named fields.
const (
	Magic   = "NESS"
	Version = 1

	headerSize = len(Magic) + 1
)

var (
	ErrMagic     = errors.New("not a save state")
	ErrVersion   = errors.New("unsupported save state version")
	ErrTruncated = errors.New("truncated save state")
	ErrSize      = errors.New("save state region size mismatch")
	ErrMismatch  = errors.New("save state does not match the machine")
)

type region struct {
	tag string
	enc func(*NES, *fieldWriter)
	dec func(*NES, *fieldReader)
}

var regions = []region{
	{"cpu", (*NES).encodeCPU, (*NES).decodeCPU},
	{"ram", (*NES).encodeRAM, (*NES).decodeRAM},
	{"dma", (*NES).encodeDMA, (*NES).decodeDMA},
	{"ppu", (*NES).encodePPU, (*NES).decodePPU},
	{"apu", (*NES).encodeAPU, (*NES).decodeAPU},
	{"mapper", (*NES).encodeMapper, (*NES).decodeMapper},
	{"input", (*NES).encodeInput, (*NES).decodeInput},
}

// Encode serializes the whole machine state.
func Encode(s *NES) []byte {
	buf := make([]byte, 0, 16*1024)
	buf = append(buf, Magic...)
	buf = append(buf, Version)

	for _, r := range regions {
		var w fieldWriter
		r.enc(s, &w)
		buf = msgp.AppendString(buf, r.tag)
		buf = msgp.AppendBytes(buf, w.bytes())
	}
	return buf
}

// Decode deserializes a whole machine state. The blob is fully validated: on
// error, the returned state is nil.
func Decode(b []byte) (*NES, error) {
	if len(b) < headerSize {
		return nil, ErrTruncated
	}
	if string(b[:len(Magic)]) != Magic {
		return nil, ErrMagic
	}
	if v := b[len(Magic)]; v != Version {
		return nil, errors.Wrapf(ErrVersion, "got %d, want %d", v, Version)
	}
	b = b[headerSize:]

	s := new(NES)
	for _, r := range regions {
		var (
			tag     string
			payload []byte
			err     error
		)
		if tag, b, err = msgp.ReadStringBytes(b); err != nil {
			return nil, errors.Wrapf(msgpError(err), "region %s", r.tag)
		}
		if tag != r.tag {
			return nil, errors.Wrapf(ErrMismatch, "got region %q, want %q", tag, r.tag)
		}
		if payload, b, err = msgp.ReadBytesZC(b); err != nil {
			return nil, errors.Wrapf(msgpError(err), "region %s", r.tag)
		}

		fr := newFieldReader(r.tag, payload)
		if fr.err == nil {
			r.dec(s, fr)
		}
		if fr.err != nil {
			return nil, fr.err
		}
	}
	if len(b) != 0 {
		return nil, errors.Wrapf(ErrSize, "%d trailing bytes", len(b))
	}
	return s, nil
}

func (s *NES) encodeCPU(w *fieldWriter) {
	c := &s.CPU
	w.u16("PC", c.PC)
	w.u8("SP", c.SP)
	w.u8("P", c.P)
	w.u8("A", c.A)
	w.u8("X", c.X)
	w.u8("Y", c.Y)
	w.i64("Cycles", c.Cycles)
	w.u8("OpenBus", c.OpenBus)
	w.u8("IRQFlag", c.IRQFlag)
	w.bool("RunIRQ", c.RunIRQ)
	w.bool("PrevRunIRQ", c.PrevRunIRQ)
	w.bool("NMIFlag", c.NMIFlag)
	w.bool("PrevNMIFlag", c.PrevNMIFlag)
	w.bool("NeedNMI", c.NeedNMI)
	w.bool("PrevNeedNMI", c.PrevNeedNMI)
}

func (s *NES) decodeCPU(r *fieldReader) {
	c := &s.CPU
	r.u16("PC", &c.PC)
	r.u8("SP", &c.SP)
	r.u8("P", &c.P)
	r.u8("A", &c.A)
	r.u8("X", &c.X)
	r.u8("Y", &c.Y)
	r.i64("Cycles", &c.Cycles)
	r.u8("OpenBus", &c.OpenBus)
	r.u8("IRQFlag", &c.IRQFlag)
	r.bool("RunIRQ", &c.RunIRQ)
	r.bool("PrevRunIRQ", &c.PrevRunIRQ)
	r.bool("NMIFlag", &c.NMIFlag)
	r.bool("PrevNMIFlag", &c.PrevNMIFlag)
	r.bool("NeedNMI", &c.NeedNMI)
	r.bool("PrevNeedNMI", &c.PrevNeedNMI)
}

func (s *NES) encodeRAM(w *fieldWriter) { w.bin("Data", s.RAM) }
func (s *NES) decodeRAM(r *fieldReader) { r.bin("Data", &s.RAM, RAMSize) }

func (s *NES) encodeDMA(w *fieldWriter) {
	w.bool("OAMPending", s.DMA.OAMPending)
	w.u8("OAMPage", s.DMA.OAMPage)
	w.bool("DMCPending", s.DMA.DMCPending)
}

func (s *NES) decodeDMA(r *fieldReader) {
	r.bool("OAMPending", &s.DMA.OAMPending)
	r.u8("OAMPage", &s.DMA.OAMPage)
	r.bool("DMCPending", &s.DMA.DMCPending)
}

func (s *NES) encodePPU(w *fieldWriter) {
	p := &s.PPU
	w.u8("CTRL", p.CTRL)
	w.u8("MASK", p.MASK)
	w.u8("STATUS", p.STATUS)
	w.u8("OAMAddr", p.OAMAddr)
	w.u8("OpenBus", p.OpenBus)
	w.u8("DataBuf", p.DataBuf)
	w.u16("V", p.V)
	w.u16("T", p.T)
	w.u8("FineX", p.FineX)
	w.bool("Toggle", p.Toggle)
	w.int("Scanline", p.Scanline)
	w.int("Cycle", p.Cycle)
	w.u64("Frame", p.Frame)
	w.bool("OddFrame", p.OddFrame)
	w.int("NMIDelay", p.NMIDelay)
	w.bool("NMIOutput", p.NMIOutput)
	w.bool("SuppressVBL", p.SuppressVBL)
	w.sub("Bg", func(w *fieldWriter) {
		w.u8("NT", p.Bg.NT)
		w.u8("AT", p.Bg.AT)
		w.u8("TileLo", p.Bg.TileLo)
		w.u8("TileHi", p.Bg.TileHi)
		w.u16("ShiftLo", p.Bg.ShiftLo)
		w.u16("ShiftHi", p.Bg.ShiftHi)
		w.u16("ATShiftLo", p.Bg.ATShiftLo)
		w.u16("ATShiftHi", p.Bg.ATShiftHi)
	})
	w.sub("Sprites", func(w *fieldWriter) {
		w.int("Count", p.Sprites.Count)
		w.bool("HasSprite0", p.Sprites.HasSprite0)
		w.bin("X", p.Sprites.X[:])
		w.bin("Attr", p.Sprites.Attr[:])
		w.bin("PatLo", p.Sprites.PatLo[:])
		w.bin("PatHi", p.Sprites.PatHi[:])
	})
	w.bin("VRAM", p.VRAM)
	w.bin("OAM", p.OAM)
	w.bin("Palette", p.Palette)
}

func (s *NES) decodePPU(r *fieldReader) {
	p := &s.PPU
	r.u8("CTRL", &p.CTRL)
	r.u8("MASK", &p.MASK)
	r.u8("STATUS", &p.STATUS)
	r.u8("OAMAddr", &p.OAMAddr)
	r.u8("OpenBus", &p.OpenBus)
	r.u8("DataBuf", &p.DataBuf)
	r.u16("V", &p.V)
	r.u16("T", &p.T)
	r.u8("FineX", &p.FineX)
	r.bool("Toggle", &p.Toggle)
	r.int("Scanline", &p.Scanline)
	r.int("Cycle", &p.Cycle)
	r.u64("Frame", &p.Frame)
	r.bool("OddFrame", &p.OddFrame)
	r.int("NMIDelay", &p.NMIDelay)
	r.bool("NMIOutput", &p.NMIOutput)
	r.bool("SuppressVBL", &p.SuppressVBL)
	r.sub("Bg", func(r *fieldReader) {
		r.u8("NT", &p.Bg.NT)
		r.u8("AT", &p.Bg.AT)
		r.u8("TileLo", &p.Bg.TileLo)
		r.u8("TileHi", &p.Bg.TileHi)
		r.u16("ShiftLo", &p.Bg.ShiftLo)
		r.u16("ShiftHi", &p.Bg.ShiftHi)
		r.u16("ATShiftLo", &p.Bg.ATShiftLo)
		r.u16("ATShiftHi", &p.Bg.ATShiftHi)
	})
	r.sub("Sprites", func(r *fieldReader) {
		r.int("Count", &p.Sprites.Count)
		r.bool("HasSprite0", &p.Sprites.HasSprite0)
		r.array("X", p.Sprites.X[:])
		r.array("Attr", p.Sprites.Attr[:])
		r.array("PatLo", p.Sprites.PatLo[:])
		r.array("PatHi", p.Sprites.PatHi[:])
	})
	r.bin("VRAM", &p.VRAM, VRAMSize)
	r.bin("OAM", &p.OAM, OAMSize)
	r.bin("Palette", &p.Palette, PaletteSize)

	r.inRange("Scanline", p.Scanline, 0, LastScanline)
	r.inRange("Cycle", p.Cycle, 0, LastCycle)
	r.inRange("FineX", int(p.FineX), 0, 7)
	r.inRange("V", int(p.V), 0, 0x7FFF)
	r.inRange("T", int(p.T), 0, 0x7FFF)
	r.inRange("NMIDelay", p.NMIDelay, 0, LastCycle+1)
	r.inRange("Sprites.Count", p.Sprites.Count, 0, NumSprites)
}

func encodeEnvelope(e *Envelope) func(*fieldWriter) {
	return func(w *fieldWriter) {
		w.bool("ConstVolume", e.ConstVolume)
		w.u8("Volume", e.Volume)
		w.bool("Start", e.Start)
		w.i8("Divider", e.Divider)
		w.u8("Counter", e.Counter)
	}
}

func decodeEnvelope(e *Envelope) func(*fieldReader) {
	return func(r *fieldReader) {
		r.bool("ConstVolume", &e.ConstVolume)
		r.u8("Volume", &e.Volume)
		r.bool("Start", &e.Start)
		r.i8("Divider", &e.Divider)
		r.u8("Counter", &e.Counter)

		r.inRange("Volume", int(e.Volume), 0, 15)
		r.inRange("Counter", int(e.Counter), 0, 15)
	}
}

func encodeLength(l *LengthCounter) func(*fieldWriter) {
	return func(w *fieldWriter) {
		w.bool("Enabled", l.Enabled)
		w.bool("Halt", l.Halt)
		w.u8("Counter", l.Counter)
	}
}

func decodeLength(l *LengthCounter) func(*fieldReader) {
	return func(r *fieldReader) {
		r.bool("Enabled", &l.Enabled)
		r.bool("Halt", &l.Halt)
		r.u8("Counter", &l.Counter)
	}
}

func encodeSquare(sq *Square) func(*fieldWriter) {
	return func(w *fieldWriter) {
		w.sub("Envelope", encodeEnvelope(&sq.Envelope))
		w.sub("Length", encodeLength(&sq.Length))
		w.u16("Timer", sq.Timer)
		w.u16("Period", sq.Period)
		w.u16("RealPeriod", sq.RealPeriod)
		w.u8("Duty", sq.Duty)
		w.u8("DutyPos", sq.DutyPos)
		w.bool("SweepEnabled", sq.SweepEnabled)
		w.bool("SweepNegate", sq.SweepNegate)
		w.bool("SweepReload", sq.SweepReload)
		w.u8("SweepPeriod", sq.SweepPeriod)
		w.u8("SweepShift", sq.SweepShift)
		w.u8("SweepDivider", sq.SweepDivider)
	}
}

func decodeSquare(sq *Square) func(*fieldReader) {
	return func(r *fieldReader) {
		r.sub("Envelope", decodeEnvelope(&sq.Envelope))
		r.sub("Length", decodeLength(&sq.Length))
		r.u16("Timer", &sq.Timer)
		r.u16("Period", &sq.Period)
		r.u16("RealPeriod", &sq.RealPeriod)
		r.u8("Duty", &sq.Duty)
		r.u8("DutyPos", &sq.DutyPos)
		r.bool("SweepEnabled", &sq.SweepEnabled)
		r.bool("SweepNegate", &sq.SweepNegate)
		r.bool("SweepReload", &sq.SweepReload)
		r.u8("SweepPeriod", &sq.SweepPeriod)
		r.u8("SweepShift", &sq.SweepShift)
		r.u8("SweepDivider", &sq.SweepDivider)

		r.inRange("RealPeriod", int(sq.RealPeriod), 0, 0x7FF)
		r.inRange("Duty", int(sq.Duty), 0, 3)
		r.inRange("DutyPos", int(sq.DutyPos), 0, 7)
		r.inRange("SweepShift", int(sq.SweepShift), 0, 7)
	}
}

func (s *NES) encodeAPU(w *fieldWriter) {
	a := &s.APU
	w.sub("Square1", encodeSquare(&a.Square1))
	w.sub("Square2", encodeSquare(&a.Square2))
	w.sub("Triangle", func(w *fieldWriter) {
		t := &a.Triangle
		w.sub("Length", encodeLength(&t.Length))
		w.u16("Timer", t.Timer)
		w.u16("Period", t.Period)
		w.u8("Pos", t.Pos)
		w.u8("LinearCounter", t.LinearCounter)
		w.u8("LinearReload", t.LinearReload)
		w.bool("LinearFlag", t.LinearFlag)
		w.bool("LinearCtrl", t.LinearCtrl)
	})
	w.sub("Noise", func(w *fieldWriter) {
		n := &a.Noise
		w.sub("Envelope", encodeEnvelope(&n.Envelope))
		w.sub("Length", encodeLength(&n.Length))
		w.u16("Timer", n.Timer)
		w.u16("Period", n.Period)
		w.u16("ShiftReg", n.ShiftReg)
		w.bool("Mode", n.Mode)
	})
	w.sub("DMC", func(w *fieldWriter) {
		d := &a.DMC
		w.u16("Timer", d.Timer)
		w.u16("Period", d.Period)
		w.bool("IRQEnabled", d.IRQEnabled)
		w.bool("Loop", d.Loop)
		w.u8("Level", d.Level)
		w.u16("SampleAddr", d.SampleAddr)
		w.u16("SampleLen", d.SampleLen)
		w.u16("CurrentAddr", d.CurrentAddr)
		w.u16("Remaining", d.Remaining)
		w.u8("Buffer", d.Buffer)
		w.bool("BufferEmpty", d.BufferEmpty)
		w.u8("ShiftReg", d.ShiftReg)
		w.u8("BitsLeft", d.BitsLeft)
		w.bool("Silence", d.Silence)
		w.bool("NeedDMA", d.NeedDMA)
	})
	w.sub("FrameCounter", func(w *fieldWriter) {
		fc := &a.FrameCounter
		w.i32("Cycle", fc.Cycle)
		w.u8("Step", fc.Step)
		w.u8("Mode", fc.Mode)
		w.bool("InhibitIRQ", fc.InhibitIRQ)
		w.i16("NewValue", fc.NewValue)
		w.i8("WriteDelay", fc.WriteDelay)
		w.u8("BlockTick", fc.BlockTick)
	})
	w.u64("Cycle", a.Cycle)
}

func (s *NES) decodeAPU(r *fieldReader) {
	a := &s.APU
	r.sub("Square1", decodeSquare(&a.Square1))
	r.sub("Square2", decodeSquare(&a.Square2))
	r.sub("Triangle", func(r *fieldReader) {
		t := &a.Triangle
		r.sub("Length", decodeLength(&t.Length))
		r.u16("Timer", &t.Timer)
		r.u16("Period", &t.Period)
		r.u8("Pos", &t.Pos)
		r.u8("LinearCounter", &t.LinearCounter)
		r.u8("LinearReload", &t.LinearReload)
		r.bool("LinearFlag", &t.LinearFlag)
		r.bool("LinearCtrl", &t.LinearCtrl)

		r.inRange("Period", int(t.Period), 0, 0x7FF)
		r.inRange("Pos", int(t.Pos), 0, 31)
		r.inRange("LinearCounter", int(t.LinearCounter), 0, 127)
		r.inRange("LinearReload", int(t.LinearReload), 0, 127)
	})
	r.sub("Noise", func(r *fieldReader) {
		n := &a.Noise
		r.sub("Envelope", decodeEnvelope(&n.Envelope))
		r.sub("Length", decodeLength(&n.Length))
		r.u16("Timer", &n.Timer)
		r.u16("Period", &n.Period)
		r.u16("ShiftReg", &n.ShiftReg)
		r.bool("Mode", &n.Mode)

		r.inRange("ShiftReg", int(n.ShiftReg), 0, 0x7FFF)
	})
	r.sub("DMC", func(r *fieldReader) {
		d := &a.DMC
		r.u16("Timer", &d.Timer)
		r.u16("Period", &d.Period)
		r.bool("IRQEnabled", &d.IRQEnabled)
		r.bool("Loop", &d.Loop)
		r.u8("Level", &d.Level)
		r.u16("SampleAddr", &d.SampleAddr)
		r.u16("SampleLen", &d.SampleLen)
		r.u16("CurrentAddr", &d.CurrentAddr)
		r.u16("Remaining", &d.Remaining)
		r.u8("Buffer", &d.Buffer)
		r.bool("BufferEmpty", &d.BufferEmpty)
		r.u8("ShiftReg", &d.ShiftReg)
		r.u8("BitsLeft", &d.BitsLeft)
		r.bool("Silence", &d.Silence)
		r.bool("NeedDMA", &d.NeedDMA)

		r.inRange("Level", int(d.Level), 0, 127)
		r.inRange("BitsLeft", int(d.BitsLeft), 0, 8)
	})
	r.sub("FrameCounter", func(r *fieldReader) {
		fc := &a.FrameCounter
		r.i32("Cycle", &fc.Cycle)
		r.u8("Step", &fc.Step)
		r.u8("Mode", &fc.Mode)
		r.bool("InhibitIRQ", &fc.InhibitIRQ)
		r.i16("NewValue", &fc.NewValue)
		r.i8("WriteDelay", &fc.WriteDelay)
		r.u8("BlockTick", &fc.BlockTick)

		r.inRange("Step", int(fc.Step), 0, 5)
		r.inRange("Mode", int(fc.Mode), 0, 1)
	})
	r.u64("Cycle", &a.Cycle)
}

func (s *NES) encodeMapper(w *fieldWriter) {
	w.u16("ID", s.Mapper.ID)
	w.bin("Regs", s.Mapper.Regs)
	w.bin("PRGRAM", s.Mapper.PRGRAM)
	w.bin("CHRRAM", s.Mapper.CHRRAM)
}

func (s *NES) decodeMapper(r *fieldReader) {
	r.u16("ID", &s.Mapper.ID)
	r.bin("Regs", &s.Mapper.Regs, -1)
	r.bin("PRGRAM", &s.Mapper.PRGRAM, -1)
	r.bin("CHRRAM", &s.Mapper.CHRRAM, -1)
}

func (s *NES) encodeInput(w *fieldWriter) {
	w.bool("Strobe", s.Input.Strobe)
	w.bin("Buttons", s.Input.Buttons[:])
	w.bin("Shift", s.Input.Shift[:])
}

func (s *NES) decodeInput(r *fieldReader) {
	r.bool("Strobe", &s.Input.Strobe)
	r.array("Buttons", s.Input.Buttons[:])
	r.array("Shift", s.Input.Shift[:])
}
