package log

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

type FieldType uint8

const (
	FieldTypeUnknown FieldType = iota
	FieldTypeBool
	FieldTypeString
	FieldTypeHex8
	FieldTypeHex16
	FieldTypeHex32
	FieldTypeInt
	FieldTypeUint
	FieldTypeError
	FieldTypeStringer
	FieldTypeDuration
	FieldTypeBlob
)

// ZField is a typed log field. Only the member matching Type is populated.
type ZField struct {
	Type FieldType
	Key  string

	String    string
	Integer   uint64
	Error     error
	Interface any
}

func (f *ZField) Value() string {
	switch f.Type {
	case FieldTypeBool:
		return strconv.FormatBool(f.Integer != 0)
	case FieldTypeString:
		return f.String
	case FieldTypeUint:
		return strconv.FormatUint(f.Integer, 10)
	case FieldTypeInt:
		return strconv.FormatInt(int64(f.Integer), 10)
	case FieldTypeHex8:
		return fmt.Sprintf("%02x", f.Integer)
	case FieldTypeHex16:
		return fmt.Sprintf("%04x", f.Integer)
	case FieldTypeHex32:
		return fmt.Sprintf("%08x", f.Integer)
	case FieldTypeError:
		if f.Error == nil {
			return "<nil>"
		}
		return f.Error.Error()
	case FieldTypeStringer:
		return f.Interface.(fmt.Stringer).String()
	case FieldTypeDuration:
		return time.Duration(f.Integer).String()
	case FieldTypeBlob:
		return hex.Dump(f.Interface.([]byte))
	}
	return ""
}
