package hw

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"

	"nescore/emu/log"
	"nescore/hw/apu"
)

var modSched = log.NewModule("sched")

// Granularity is the unit of time by which the scheduler interleaves the CPU
// with the other units.
type Granularity uint8

const (
	// GranularityCycle advances the PPU by 3 dots and the APU by 1 cycle
	// during each CPU bus cycle.
	GranularityCycle Granularity = iota

	// GranularityInstruction runs a whole CPU instruction, then catches up
	// the PPU and the APU. It's faster but interrupts may be seen up to one
	// instruction late.
	GranularityInstruction
)

var granularityNames = [...]string{"cycle", "instruction"}

func (g Granularity) String() string {
	if int(g) < len(granularityNames) {
		return granularityNames[g]
	}
	return fmt.Sprintf("Granularity(%d)", g)
}

// ParseGranularity parses a granularity name (cycle or instruction), ignoring
// case.
func ParseGranularity(s string) (Granularity, error) {
	for i, name := range granularityNames {
		if strings.EqualFold(s, name) {
			return Granularity(i), nil
		}
	}
	return 0, errors.Errorf("unknown granularity %q", s)
}

// Scheduler keeps the CPU, PPU and APU in lockstep. Everything runs on the
// caller goroutine.
type Scheduler struct {
	cpu *CPU
	ppu *PPU
	apu *apu.APU
	dma *DMA

	gran   Granularity
	cycles int64 // CPU cycles run by the scheduler
}

func newScheduler(cpu *CPU, ppu *PPU, a *apu.APU, dma *DMA) *Scheduler {
	s := &Scheduler{cpu: cpu, ppu: ppu, apu: a, dma: dma}
	s.SetGranularity(GranularityCycle)
	return s
}

func (s *Scheduler) Granularity() Granularity { return s.gran }

func (s *Scheduler) SetGranularity(g Granularity) {
	s.gran = g
	if g == GranularityCycle {
		s.cpu.clock = s
	} else {
		s.cpu.clock = nil
	}
	modSched.InfoZ("granularity").Stringer("mode", g).End()
}

// Cycles returns the number of CPU cycles run through the scheduler.
func (s *Scheduler) Cycles() int64 { return s.cycles }

// 3 PPU dots per CPU cycle: 2 during the first half of the cycle, 1 after
// the bus access.
func (s *Scheduler) cycleBegin() {
	s.ppu.Tick()
	s.ppu.Tick()
	s.apu.Tick()
	s.dma.pollDMC()
}

func (s *Scheduler) cycleEnd() {
	s.ppu.Tick()
}

// catchUp runs the PPU and the APU for n CPU cycles.
func (s *Scheduler) catchUp(n int) {
	for range n {
		s.cycleBegin()
		s.cycleEnd()
	}
}

// Step executes one CPU instruction, then services the pending interrupt if
// any. It returns the number of CPU cycles taken.
func (s *Scheduler) Step() int {
	n := s.cpu.Step()
	if s.gran == GranularityInstruction {
		s.catchUp(n)
	}

	if s.cpu.InterruptPending() {
		irq := s.cpu.serviceInterrupt()
		if s.gran == GranularityInstruction {
			s.catchUp(irq)
		}
		n += irq
	}

	s.cycles += int64(n)
	return n
}

// RunFrame runs the machine until the PPU starts a new frame, then flushes
// the audio samples of that frame. It returns the number of CPU cycles run.
func (s *Scheduler) RunFrame() int64 {
	start := s.cycles
	frame := s.ppu.Frame
	for s.ppu.Frame == frame {
		s.Step()
	}
	s.apu.EndFrame()
	return s.cycles - start
}
