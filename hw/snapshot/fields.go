package snapshot

import (
	"github.com/go-faster/errors"
	"github.com/tinylib/msgp/msgp"
)

// fieldWriter encodes a msgpack map of named fields.
type fieldWriter struct {
	buf []byte
	n   uint32
}

func (w *fieldWriter) key(name string) {
	w.buf = msgp.AppendString(w.buf, name)
	w.n++
}

func (w *fieldWriter) bytes() []byte {
	out := msgp.AppendMapHeader(make([]byte, 0, len(w.buf)+5), w.n)
	return append(out, w.buf...)
}

func (w *fieldWriter) u8(name string, v uint8) {
	w.key(name)
	w.buf = msgp.AppendUint8(w.buf, v)
}

func (w *fieldWriter) u16(name string, v uint16) {
	w.key(name)
	w.buf = msgp.AppendUint16(w.buf, v)
}

func (w *fieldWriter) u64(name string, v uint64) {
	w.key(name)
	w.buf = msgp.AppendUint64(w.buf, v)
}

func (w *fieldWriter) i8(name string, v int8) {
	w.key(name)
	w.buf = msgp.AppendInt8(w.buf, v)
}

func (w *fieldWriter) i16(name string, v int16) {
	w.key(name)
	w.buf = msgp.AppendInt16(w.buf, v)
}

func (w *fieldWriter) i32(name string, v int32) {
	w.key(name)
	w.buf = msgp.AppendInt32(w.buf, v)
}

func (w *fieldWriter) i64(name string, v int64) {
	w.key(name)
	w.buf = msgp.AppendInt64(w.buf, v)
}

func (w *fieldWriter) int(name string, v int) {
	w.key(name)
	w.buf = msgp.AppendInt(w.buf, v)
}

func (w *fieldWriter) bool(name string, v bool) {
	w.key(name)
	w.buf = msgp.AppendBool(w.buf, v)
}

func (w *fieldWriter) bin(name string, v []byte) {
	w.key(name)
	w.buf = msgp.AppendBytes(w.buf, v)
}

func (w *fieldWriter) sub(name string, enc func(*fieldWriter)) {
	var sw fieldWriter
	enc(&sw)
	w.key(name)
	w.buf = append(w.buf, sw.bytes()...)
}

// fieldReader decodes a msgpack map of named fields. The first error is
// sticky: once set, all subsequent reads are no-ops.
type fieldReader struct {
	path   string
	fields map[string][]byte
	err    error
}

func newFieldReader(path string, b []byte) *fieldReader {
	r := &fieldReader{path: path}
	r.fields, r.err = splitFields(b)
	if r.err != nil {
		r.err = errors.Wrap(r.err, path)
	}
	return r
}

func splitFields(b []byte) (map[string][]byte, error) {
	sz, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return nil, msgpError(err)
	}

	fields := make(map[string][]byte, sz)
	for range sz {
		var key string
		key, b, err = msgp.ReadStringBytes(b)
		if err != nil {
			return nil, msgpError(err)
		}
		start := b
		if b, err = msgp.Skip(b); err != nil {
			return nil, msgpError(err)
		}
		fields[key] = start[:len(start)-len(b)]
	}
	if len(b) != 0 {
		return nil, errors.Wrapf(ErrSize, "%d trailing bytes", len(b))
	}
	return fields, nil
}

func msgpError(err error) error {
	if errors.Is(err, msgp.ErrShortBytes) {
		return ErrTruncated
	}
	return errors.Wrap(ErrMismatch, err.Error())
}

// field returns the raw encoding of a field, or nil if the reader is in error
// or the field is missing.
func (r *fieldReader) field(name string) []byte {
	if r.err != nil {
		return nil
	}
	raw, ok := r.fields[name]
	if !ok {
		r.err = errors.Wrapf(ErrMismatch, "%s: missing field %q", r.path, name)
		return nil
	}
	return raw
}

func (r *fieldReader) check(name string, err error) bool {
	if err != nil {
		r.err = errors.Wrapf(msgpError(err), "%s.%s", r.path, name)
		return false
	}
	return true
}

func (r *fieldReader) u8(name string, v *uint8) {
	if raw := r.field(name); raw != nil {
		x, _, err := msgp.ReadUint8Bytes(raw)
		if r.check(name, err) {
			*v = x
		}
	}
}

func (r *fieldReader) u16(name string, v *uint16) {
	if raw := r.field(name); raw != nil {
		x, _, err := msgp.ReadUint16Bytes(raw)
		if r.check(name, err) {
			*v = x
		}
	}
}

func (r *fieldReader) u64(name string, v *uint64) {
	if raw := r.field(name); raw != nil {
		x, _, err := msgp.ReadUint64Bytes(raw)
		if r.check(name, err) {
			*v = x
		}
	}
}

func (r *fieldReader) i8(name string, v *int8) {
	if raw := r.field(name); raw != nil {
		x, _, err := msgp.ReadInt8Bytes(raw)
		if r.check(name, err) {
			*v = x
		}
	}
}

func (r *fieldReader) i16(name string, v *int16) {
	if raw := r.field(name); raw != nil {
		x, _, err := msgp.ReadInt16Bytes(raw)
		if r.check(name, err) {
			*v = x
		}
	}
}

func (r *fieldReader) i32(name string, v *int32) {
	if raw := r.field(name); raw != nil {
		x, _, err := msgp.ReadInt32Bytes(raw)
		if r.check(name, err) {
			*v = x
		}
	}
}

func (r *fieldReader) i64(name string, v *int64) {
	if raw := r.field(name); raw != nil {
		x, _, err := msgp.ReadInt64Bytes(raw)
		if r.check(name, err) {
			*v = x
		}
	}
}

func (r *fieldReader) int(name string, v *int) {
	if raw := r.field(name); raw != nil {
		x, _, err := msgp.ReadIntBytes(raw)
		if r.check(name, err) {
			*v = x
		}
	}
}

func (r *fieldReader) bool(name string, v *bool) {
	if raw := r.field(name); raw != nil {
		x, _, err := msgp.ReadBoolBytes(raw)
		if r.check(name, err) {
			*v = x
		}
	}
}

// inRange fails the decoding if v, the already decoded field name, is out of
// [lo, hi].
func (r *fieldReader) inRange(name string, v, lo, hi int) {
	if r.err == nil && (v < lo || v > hi) {
		r.err = errors.Wrapf(ErrMismatch, "%s.%s: %d out of [%d, %d]", r.path, name, v, lo, hi)
	}
}

// bin reads a byte slice field. If size is not negative, the slice must have
// exactly that length.
func (r *fieldReader) bin(name string, v *[]byte, size int) {
	raw := r.field(name)
	if raw == nil {
		return
	}
	x, _, err := msgp.ReadBytesBytes(raw, nil)
	if !r.check(name, err) {
		return
	}
	if size >= 0 && len(x) != size {
		r.err = errors.Wrapf(ErrSize, "%s.%s: got %d bytes, want %d", r.path, name, len(x), size)
		return
	}
	*v = x
}

// array reads a byte slice field into a fixed-size array.
func (r *fieldReader) array(name string, dst []byte) {
	var x []byte
	r.bin(name, &x, len(dst))
	if r.err == nil {
		copy(dst, x)
	}
}

func (r *fieldReader) sub(name string, dec func(*fieldReader)) {
	raw := r.field(name)
	if raw == nil {
		return
	}
	sr := newFieldReader(r.path+"."+name, raw)
	if sr.err == nil {
		dec(sr)
	}
	if sr.err != nil {
		r.err = sr.err
	}
}
