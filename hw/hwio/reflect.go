package hwio

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// bankReg is a register found in a bank structure.
type bankReg struct {
	offset uint16
	regPtr any
}

type tagOpts map[string]string

func parseTag(tag string) tagOpts {
	opts := tagOpts{}
	for _, kv := range strings.Split(tag, ",") {
		if kv = strings.TrimSpace(kv); kv == "" {
			continue
		}
		k, v, _ := strings.Cut(kv, "=")
		opts[k] = v
	}
	return opts
}

func (o tagOpts) has(key string) bool {
	_, ok := o[key]
	return ok
}

func (o tagOpts) uint(key string, def uint64) (uint64, error) {
	s, ok := o[key]
	if !ok {
		return def, nil
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, s, err)
	}
	return v, nil
}

// callback returns the method of bank named by the option key (e.g "rcb=Foo"),
// or prefix+NAME if the option has no value.
func (o tagOpts) callback(bank reflect.Value, key, prefix, field string) (reflect.Value, bool, error) {
	name, ok := o[key]
	if !ok {
		return reflect.Value{}, false, nil
	}
	if name == "" {
		name = prefix + strings.ToUpper(field)
	}
	m := bank.MethodByName(name)
	if !m.IsValid() {
		return reflect.Value{}, false, fmt.Errorf("field %s: method %s not found in %s", field, name, bank.Type())
	}
	return m, true, nil
}

// InitRegs initializes all registers of a bank structure, that is, each field
// of type Mem, Reg8 or Device having a "hwio" struct tag. The supported tag
// options are:
//
//	bank=N       bank number, default 0 (see MapBank)
//	offset=0x12  offset within the bank (required for MapBank)
//	size=0x800   buffer size of a Mem, range size of a Device
//	vsize=0x2000 virtual (mirrored) size of a Mem
//	reset=0xNN   initial value of a Reg8
//	rwmask=0xNN  read-only bits of a Reg8
//	readonly     read-only Reg8 or Mem
//	writeonly    write-only Reg8
//	rcb[=Name]   read callback, defaults to method ReadFIELDNAME
//	wcb[=Name]   write callback, defaults to method WriteFIELDNAME
func InitRegs(bank any) error {
	pv := reflect.ValueOf(bank)
	if pv.Kind() != reflect.Pointer || pv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("hwio: InitRegs wants a pointer to struct, got %T", bank)
	}

	v := pv.Elem()
	for i := 0; i < v.NumField(); i++ {
		sf := v.Type().Field(i)
		tag, ok := sf.Tag.Lookup("hwio")
		if !ok {
			continue
		}
		opts := parseTag(tag)

		var err error
		switch reg := v.Field(i).Addr().Interface().(type) {
		case *Mem:
			err = initMem(pv, sf.Name, opts, reg)
		case *Reg8:
			err = initReg8(pv, sf.Name, opts, reg)
		case *Device:
			err = initDevice(pv, sf.Name, opts, reg)
		default:
			err = fmt.Errorf("unsupported type %s", sf.Type)
		}
		if err != nil {
			return fmt.Errorf("hwio: %s.%s: %w", v.Type(), sf.Name, err)
		}
	}
	return nil
}

// MustInitRegs is like InitRegs but panics on error.
func MustInitRegs(bank any) {
	if err := InitRegs(bank); err != nil {
		panic(err)
	}
}

func initMem(bank reflect.Value, name string, opts tagOpts, m *Mem) error {
	size, err := opts.uint("size", 0)
	if err != nil {
		return err
	}
	if size == 0 {
		return fmt.Errorf("missing size")
	}
	vsize, err := opts.uint("vsize", size)
	if err != nil {
		return err
	}

	m.Name = name
	m.Data = make([]byte, size)
	m.VSize = int(vsize)
	if opts.has("readonly") {
		m.Flags |= MemFlagReadOnly
	}
	if cb, ok, err := opts.callback(bank, "wcb", "Write", name); err != nil {
		return err
	} else if ok {
		f, ok := cb.Interface().(func(uint16, uint8))
		if !ok {
			return fmt.Errorf("write callback has wrong signature %s", cb.Type())
		}
		m.WriteCb = f
	}
	return nil
}

func initReg8(bank reflect.Value, name string, opts tagOpts, r *Reg8) error {
	reset, err := opts.uint("reset", 0)
	if err != nil {
		return err
	}
	romask, err := opts.uint("rwmask", 0)
	if err != nil {
		return err
	}

	r.Name = name
	r.Value = uint8(reset)
	r.RoMask = uint8(romask)
	if opts.has("readonly") {
		r.Flags |= ReadOnlyFlag
	}
	if opts.has("writeonly") {
		r.Flags |= WriteOnlyFlag
	}

	if cb, ok, err := opts.callback(bank, "rcb", "Read", name); err != nil {
		return err
	} else if ok {
		f, ok := cb.Interface().(func(uint8, bool) uint8)
		if !ok {
			return fmt.Errorf("read callback has wrong signature %s", cb.Type())
		}
		r.ReadCb = f
	}
	if cb, ok, err := opts.callback(bank, "wcb", "Write", name); err != nil {
		return err
	} else if ok {
		f, ok := cb.Interface().(func(uint8, uint8))
		if !ok {
			return fmt.Errorf("write callback has wrong signature %s", cb.Type())
		}
		r.WriteCb = f
	}
	return nil
}

func initDevice(bank reflect.Value, name string, opts tagOpts, d *Device) error {
	size, err := opts.uint("size", 1)
	if err != nil {
		return err
	}

	d.Name = name
	d.Size = int(size)
	if cb, ok, err := opts.callback(bank, "rcb", "Read", name); err != nil {
		return err
	} else if ok {
		f, ok := cb.Interface().(func(uint16, bool) uint8)
		if !ok {
			return fmt.Errorf("read callback has wrong signature %s", cb.Type())
		}
		d.ReadCb = f
	}
	if cb, ok, err := opts.callback(bank, "wcb", "Write", name); err != nil {
		return err
	} else if ok {
		f, ok := cb.Interface().(func(uint16, uint8))
		if !ok {
			return fmt.Errorf("write callback has wrong signature %s", cb.Type())
		}
		d.WriteCb = f
	}
	return nil
}

func bankGetRegs(bank any, bankNum int) ([]bankReg, error) {
	pv := reflect.ValueOf(bank)
	if pv.Kind() != reflect.Pointer || pv.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("hwio: MapBank wants a pointer to struct, got %T", bank)
	}

	var regs []bankReg
	v := pv.Elem()
	for i := 0; i < v.NumField(); i++ {
		sf := v.Type().Field(i)
		tag, ok := sf.Tag.Lookup("hwio")
		if !ok {
			continue
		}
		opts := parseTag(tag)
		if !opts.has("offset") {
			continue
		}
		if n, err := opts.uint("bank", 0); err != nil {
			return nil, err
		} else if int(n) != bankNum {
			continue
		}
		off, err := opts.uint("offset", 0)
		if err != nil {
			return nil, err
		}
		regs = append(regs, bankReg{
			offset: uint16(off),
			regPtr: v.Field(i).Addr().Interface(),
		})
	}
	return regs, nil
}

// MapBank maps all registers of a bank structure having the given bank number
// at addr plus their offset. Registers must have been initialized with
// InitRegs.
func (t *Table) MapBank(addr uint16, bank any, bankNum int) {
	regs, err := bankGetRegs(bank, bankNum)
	if err != nil {
		panic(err)
	}

	for _, reg := range regs {
		switch r := reg.regPtr.(type) {
		case *Mem:
			t.MapMem(addr+reg.offset, r)
		case *Reg8:
			t.MapReg8(addr+reg.offset, r)
		case *Device:
			t.MapDevice(addr+reg.offset, r)
		default:
			panic(fmt.Errorf("hwio: invalid reg type: %T", r))
		}
	}
}
