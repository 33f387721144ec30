package hw

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"strconv"
	"strings"
	"testing"

	"nescore/hw/hwdefs"
	"nescore/hw/hwio"
	"nescore/ines"
)

/* cpu specific testing helpers */

// newTestCPU returns a CPU with 64KB of flat RAM on its bus, and nothing else.
func newTestCPU() *CPU {
	cpu := NewCPU()
	cpu.Bus = hwio.NewTable("cputest")
	cpu.Bus.MapMem(0x0000, &hwio.Mem{
		Name:  "flat",
		Data:  make([]byte, 0x10000),
		VSize: 0x10000,
	})
	return cpu
}

// loadCPUWith creates a test CPU with the memory described by dump, then
// resets it.
func loadCPUWith(tb testing.TB, dump string) *CPU {
	tb.Helper()

	cpu := newTestCPU()
	for _, dl := range loadDump(tb, dump) {
		for i, b := range dl.bytes[:dl.len] {
			cpu.Bus.Write8(dl.off+uint16(i), b)
		}
	}
	cpu.Reset(hwdefs.HardReset)
	return cpu
}

func wantMem8(t *testing.T, cpu *CPU, addr uint16, want uint8) {
	t.Helper()

	if got := cpu.Bus.Peek8(addr); got != want {
		t.Errorf("$%04X = %02X want %02X", addr, got, want)
	}
}

func wantMem(t *testing.T, cpu *CPU, dl dumpline) {
	t.Helper()

	mem := make([]byte, dl.len)
	for i := range mem {
		mem[i] = cpu.Bus.Peek8(dl.off + uint16(i))
	}

	if want := dl.bytes[:dl.len]; !bytes.Equal(mem, want) {
		t.Errorf("mem mismatch at 0x%04x.\ngot:  % x\nwant: % x", dl.off, mem, want)
	}
}

// tbwriter redirects the execution trace to the test log.
type tbwriter struct{ tb testing.TB }

func (w tbwriter) Write(p []byte) (int, error) {
	w.tb.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// runAndCheckState runs the cpu for at least ncycles then compares its state
// with the wanted one, given as name/value pairs.
func runAndCheckState(t *testing.T, cpu *CPU, ncycles int64, states ...any) {
	t.Helper()

	if len(states)%2 != 0 {
		panic("odd number of states")
	}

	if testing.Verbose() {
		cpu.SetTraceOutput(tbwriter{t}, nil)
		defer cpu.SetTraceOutput(nil, nil)
	}

	for cpu.Cycles < ncycles {
		cpu.Step()
	}

	for i := 0; i < len(states); i += 2 {
		s := states[i].(string)
		switch {
		case s == "A":
			if got, want := cpu.A, uint8(states[i+1].(int)); got != want {
				t.Errorf("A = $%02X, want $%02X", got, want)
			}
		case s == "X":
			if got, want := cpu.X, uint8(states[i+1].(int)); got != want {
				t.Errorf("X = $%02X, want $%02X", got, want)
			}
		case s == "Y":
			if got, want := cpu.Y, uint8(states[i+1].(int)); got != want {
				t.Errorf("Y = $%02X, want $%02X", got, want)
			}
		case s == "SP":
			if got, want := cpu.SP, uint8(states[i+1].(int)); got != want {
				t.Errorf("SP = $%02X, want $%02X", got, want)
			}
		case s == "PC":
			if got, want := cpu.PC, uint16(states[i+1].(int)); got != want {
				t.Errorf("PC = $%04X, want $%04X", got, want)
			}
		case s == "P":
			if got, want := cpu.P, P(states[i+1].(int)); got != want {
				t.Errorf("P = $%02X(%s), want $%02X(%s)", uint8(got), got, uint8(want), want)
			}
		case len(s) == 2 && s[0] == 'P':
			flag := map[byte]P{
				'n': Negative, 'v': Overflow, 'b': Break, 'd': Decimal,
				'i': IntDisable, 'z': Zero, 'c': Carry,
			}[s[1]]
			if flag == 0 {
				panic("unknown P bit: " + s)
			}
			if got, want := cpu.P.has(flag), states[i+1].(int) != 0; got != want {
				t.Errorf("%s = %t, want %t", s, got, want)
			}
		case s == "mem":
			for _, line := range loadDump(t, states[i+1].(string)) {
				wantMem(t, cpu, line)
			}
		default:
			panic("unknown state: " + s)
		}
	}

	if t.Failed() {
		t.FailNow()
	}
}

type dumpline struct {
	off   uint16
	len   int
	bytes []byte
}

// loadDump parses an hexdump-like memory description: each line is an
// hexadecimal offset, a colon, then hex bytes. Lines starting with # are
// comments.
func loadDump(tb testing.TB, dump string) []dumpline {
	tb.Helper()

	var lines []dumpline
	scan := bufio.NewScanner(strings.NewReader(dump))
	for scan.Scan() {
		line := scan.Text()
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		off, octets, ok := strings.Cut(line, ":")
		if !ok {
			tb.Fatalf("malformed line: %s", line)
		}

		ioff, err := strconv.ParseUint(strings.TrimSpace(off), 16, 16)
		if err != nil {
			tb.Fatalf("malformed offset %s: %s", off, err)
		}
		buf, err := hex.DecodeString(strings.ReplaceAll(octets, " ", ""))
		if err != nil {
			tb.Fatalf("hex decode: %s", err)
		}
		lines = append(lines, dumpline{off: uint16(ioff), len: len(buf), bytes: buf})
	}
	if scan.Err() != nil {
		tb.Fatalf("scan error: %s", scan.Err())
	}

	return lines
}

/* console testing helpers */

// testROM builds a 32KB cartridge for the given mapper. prg is copied at
// $8000 and the reset vector points to $8000. The NMI handler at $9000 counts
// NMIs at $0010, the IRQ handler at $9100 is an RTI.
func testROM(tb testing.TB, mapper uint16, prg []byte) *ines.Rom {
	tb.Helper()

	img := make([]byte, 0x8000)
	copy(img, prg)
	copy(img[0x1000:], []byte{
		0xE6, 0x10, // INC $10
		0x40, // RTI
	})
	img[0x1100] = 0x40 // RTI

	setvec := func(vec, addr uint16) {
		img[vec-0x8000] = uint8(addr)
		img[vec-0x8000+1] = uint8(addr >> 8)
	}
	setvec(NMIVector, 0x9000)
	setvec(ResetVector, 0x8000)
	setvec(IRQVector, 0x9100)

	return ines.New(mapper, ines.VertMirroring, img, make([]byte, 0x2000))
}

// infiniteLoop is a program that enables NMI then jumps on itself.
var infiniteLoop = []byte{
	0xA9, 0x80, // LDA #$80
	0x8D, 0x00, 0x20, // STA $2000
	0x4C, 0x05, 0x80, // JMP $8005
}

func newTestNES(tb testing.TB, prg []byte, opts Options) *NES {
	tb.Helper()

	nes, err := NewNES(testROM(tb, 0, prg), opts)
	if err != nil {
		tb.Fatalf("NewNES: %s", err)
	}
	return nes
}
