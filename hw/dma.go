package hw

import (
	"nescore/emu/log"
	"nescore/hw/apu"
	"nescore/hw/hwio"
	"nescore/hw/snapshot"
)

var modDMA = log.NewModule("dma")

// DMA handles DMA transfer of OAM (sprites attributes) to the PPU
// and DMC samples to the APU. Transfers halt the CPU on its next read cycle.
type DMA struct {
	cpu *CPU
	dmc *apu.DMC

	needHalt bool
	// A DMC fetch needs a dummy cycle after the halt cycle.
	dummy bool

	dmcRunning bool

	OAMDMA     hwio.Reg8 `hwio:"offset=0x00,writeonly,wcb"`
	oamPage    uint8
	oamRunning bool
}

func newDMA(cpu *CPU, dmc *apu.DMC) *DMA {
	dma := &DMA{cpu: cpu, dmc: dmc}
	hwio.MustInitRegs(dma)
	dma.reset()
	return dma
}

func (dma *DMA) reset() {
	dma.oamPage = 0x00
	dma.oamRunning = false
	dma.dmcRunning = false
	dma.needHalt = false
	dma.dummy = false
}

func (dma *DMA) WriteOAMDMA(_, val uint8) {
	modDMA.DebugZ("start OAM DMA transfer").Hex8("page", val).End()
	dma.oamPage = val
	dma.oamRunning = true
	dma.needHalt = true
}

// startDMC schedules the fetch of the next DMC sample byte.
func (dma *DMA) startDMC() {
	if dma.dmcRunning {
		return
	}
	modDMA.DebugZ("start DMC DMA transfer").Hex16("addr", dma.dmc.DMAAddr()).End()
	dma.dmcRunning = true
	dma.dummy = true
	dma.needHalt = true
}

// pollDMC starts a DMC transfer if the sample buffer is waiting for data.
func (dma *DMA) pollDMC() {
	if dma.dmc != nil && dma.dmc.NeedDMA() {
		dma.startDMC()
	}
}

// process runs the pending transfers, if any, before the CPU read cycle at
// addr takes place. Every DMA cycle is a full CPU cycle so the other units
// keep running.
func (dma *DMA) process(addr uint16) {
	if !dma.needHalt {
		return
	}
	dma.needHalt = false
	cpu := dma.cpu

	// Halt cycle, the CPU repeats the read it was about to perform.
	cpu.cycleBegin()
	cpu.Bus.Read8(addr, false)
	cpu.cycleEnd()

	processCycle := func() {
		// Sprite DMA cycles count as halt/dummy cycles for the DMC DMA when
		// both run at the same time.
		if dma.needHalt {
			dma.needHalt = false
		} else if dma.dummy {
			dma.dummy = false
		}
		cpu.cycleBegin()
	}

	oamCounter := 0
	spriteAddr := uint8(0)
	val := uint8(0)

	for dma.dmcRunning || dma.oamRunning {
		if cpu.Cycles&0x01 == 0 {
			// Get cycle.
			switch {
			case dma.dmcRunning && !dma.needHalt && !dma.dummy:
				processCycle()
				v := cpu.Bus.Read8(dma.dmc.DMAAddr(), false)
				cpu.cycleEnd()
				dma.dmcRunning = false
				dma.dmc.DMAComplete(v)
			case dma.oamRunning:
				processCycle()
				val = cpu.Bus.Read8(uint16(dma.oamPage)<<8|uint16(spriteAddr), false)
				cpu.cycleEnd()
				spriteAddr++
				oamCounter++
			default:
				// DMC not ready yet and no sprite DMA.
				processCycle()
				cpu.Bus.Read8(addr, false)
				cpu.cycleEnd()
			}
		} else {
			// Put cycle.
			if dma.oamRunning && oamCounter&0x01 != 0 {
				processCycle()
				cpu.Bus.Write8(0x2004, val)
				cpu.cycleEnd()
				oamCounter++
				if oamCounter == 0x200 {
					dma.oamRunning = false
					modDMA.DebugZ("end OAM DMA transfer").Hex8("page", dma.oamPage).End()
				}
			} else {
				// Align to a get cycle.
				processCycle()
				cpu.Bus.Read8(addr, false)
				cpu.cycleEnd()
			}
		}
	}
}

func (dma *DMA) State() snapshot.DMA {
	return snapshot.DMA{
		OAMPending: dma.oamRunning,
		OAMPage:    dma.oamPage,
		DMCPending: dma.dmcRunning,
	}
}

func (dma *DMA) SetState(s *snapshot.DMA) {
	dma.oamRunning = s.OAMPending
	dma.oamPage = s.OAMPage
	dma.dmcRunning = s.DMCPending
	dma.needHalt = s.OAMPending || s.DMCPending
	dma.dummy = s.DMCPending
}
