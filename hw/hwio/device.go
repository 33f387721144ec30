package hwio

// Device is a BankIO8 that delegates accesses to an entire memory range to
// callbacks. A nil callback reads 0 and ignores writes.
type Device struct {
	Name string // for debugging
	Size int

	ReadCb  func(addr uint16, peek bool) uint8
	WriteCb func(addr uint16, val uint8)
}

func (d *Device) Read8(addr uint16, peek bool) uint8 {
	if d.ReadCb == nil {
		return 0
	}
	return d.ReadCb(addr, peek)
}

func (d *Device) Write8(addr uint16, val uint8) {
	if d.WriteCb != nil {
		d.WriteCb(addr, val)
	}
}
