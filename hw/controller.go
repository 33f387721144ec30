package hw

import (
	"nescore/emu/log"
	"nescore/hw/hwdefs"
	"nescore/hw/hwio"
	"nescore/hw/snapshot"
)

// Controllers handles the 2 standard controller ports.
//
// Writing bit 0 of $4016 sets the strobe: while it's high the shift registers
// continuously reload the buttons state. Each read of $4016/$4017 then returns
// the next button of port 1/2, in the A, B, Select, Start, Up, Down, Left,
// Right order.
type Controllers struct {
	In  hwio.Reg8 `hwio:"offset=0x16,rcb,wcb"`
	Out hwio.Reg8 `hwio:"offset=0x17,rcb,wcb"`

	// $4017 writes go to the APU frame counter.
	frameCounter func(val uint8)

	strobe  bool
	buttons [2]uint8 // as set by the host
	shift   [2]uint8 // state shift registers
}

func newControllers(frameCounter func(uint8)) *Controllers {
	ctrl := &Controllers{frameCounter: frameCounter}
	hwio.MustInitRegs(ctrl)
	return ctrl
}

// SetButtons sets the pressed buttons of the controller plugged in port
// (0 or 1). Other ports are ignored.
func (ctrl *Controllers) SetButtons(port int, btns hwdefs.Button) {
	if port < 0 || port > 1 {
		log.ModInput.WarnZ("invalid controller port").Int("port", port).End()
		return
	}
	ctrl.buttons[port] = uint8(btns)
	if ctrl.strobe {
		ctrl.reload()
	}
}

func (ctrl *Controllers) reload() {
	ctrl.shift = ctrl.buttons
}

func (ctrl *Controllers) regval(port int, peek bool) uint8 {
	if ctrl.strobe {
		ctrl.reload()
	}
	ret := ctrl.shift[port] & 1
	if !peek {
		// After 8 bits are read, a standard controller reports 1s.
		ctrl.shift[port] = ctrl.shift[port]>>1 | 0x80
	}

	// Upper bits are open bus, usually the high byte of the address.
	return 0x40 | ret
}

// In: $4016
func (ctrl *Controllers) WriteIN(_, val uint8) {
	prev := ctrl.strobe
	ctrl.strobe = val&1 == 1
	if ctrl.strobe || prev {
		ctrl.reload()
	}
}

func (ctrl *Controllers) ReadIN(_ uint8, peek bool) uint8 {
	return ctrl.regval(0, peek)
}

// Out: $4017
func (ctrl *Controllers) ReadOUT(_ uint8, peek bool) uint8 {
	return ctrl.regval(1, peek)
}

func (ctrl *Controllers) WriteOUT(_, val uint8) {
	if ctrl.frameCounter != nil {
		ctrl.frameCounter(val)
	}
}

func (ctrl *Controllers) State() snapshot.Input {
	return snapshot.Input{
		Strobe:  ctrl.strobe,
		Buttons: ctrl.buttons,
		Shift:   ctrl.shift,
	}
}

func (ctrl *Controllers) SetState(s *snapshot.Input) {
	ctrl.strobe = s.Strobe
	ctrl.buttons = s.Buttons
	ctrl.shift = s.Shift
}
