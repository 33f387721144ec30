package hw

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func BenchmarkDisasmOpString(b *testing.B) {
	const want = `C000  4C F5 C5  JMP $C5F5                       `

	op := DisasmOp{
		Opcode: "JMP",
		Oper:   "$C5F5",
		Buf:    []byte{0x4c, 0xf5, 0xc5},
		PC:     0xC000,
	}

	var opbytes []byte
	for range b.N {
		opbytes = op.Bytes()
	}

	if string(opbytes) != want {
		b.Fatalf("\ngot:  \"%s\"\nwant: \"%s\"\n", string(opbytes), want)
	}
}

type dummyDisasm map[uint16]DisasmOp

func (dd dummyDisasm) Disasm(pc uint16) DisasmOp {
	return dd[pc]
}

func TestTraceFormat(t *testing.T) {
	want := []string{
		`E052  A9 32     LDA #$32                         A:00 X:01 Y:00 P:07 S:F4 PPU:0  ,27  8`,
		`E054  20 EE E0  JSR $E0EE                        A:32 X:01 Y:00 P:05 S:F4 PPU:0  ,33  10`,
	}

	var out bytes.Buffer

	tr := tracer{
		d: dummyDisasm{
			0xE052: DisasmOp{
				PC:     0xE052,
				Buf:    []byte{0xA9, 0x32},
				Opcode: "LDA",
				Oper:   "#$32",
			},
			0xE054: DisasmOp{
				PC:     0xE054,
				Buf:    []byte{0x20, 0xEE, 0xE0},
				Opcode: "JSR",
				Oper:   "$E0EE",
			},
		},
		w: &out,
	}

	tr.write(cpuState{
		PC: 0xE052,
		A:  0x00, X: 0x01, Y: 0x00, P: P(0x07), SP: 0xF4,
		Scanline: 0,
		PPUCycle: 27,
		Clock:    8,
	})
	tr.write(cpuState{
		PC: 0xE054,
		A:  0x32, X: 0x01, Y: 0x00, P: P(0x05), SP: 0xF4,
		Scanline: 0,
		PPUCycle: 33,
		Clock:    10,
	})

	wantstr := strings.Join(want, "\n") + "\n"
	if out.String() != wantstr {
		t.Fatalf("trace differs\ngot:\n%s\nwant:\n%s\n", out.String(), wantstr)
	}
}

func BenchmarkTraceFormat(b *testing.B) {
	tr := tracer{
		d: dummyDisasm{
			0xE052: DisasmOp{
				PC:     0xE052,
				Buf:    []byte{0xA9, 0x32},
				Opcode: "LDA",
				Oper:   "#$32",
			},
			0xE054: DisasmOp{
				PC:     0xE054,
				Buf:    []byte{0x20, 0xEE, 0xE0},
				Opcode: "JSR",
				Oper:   "$E0EE",
			},
		},
		w: io.Discard,
	}
	s1 := cpuState{
		PC: 0xE052,
		A:  0x00, X: 0x01, Y: 0x00, P: P(0x07), SP: 0xF4,
		Scanline: 0,
		PPUCycle: 27,
		Clock:    8,
	}
	s2 := cpuState{
		PC: 0xE054,
		A:  0x32, X: 0x01, Y: 0x00, P: P(0x05), SP: 0xF4,
		Scanline: 0,
		PPUCycle: 33,
		Clock:    10,
	}

	for range b.N {
		tr.write(s1)
		tr.write(s2)
	}
}

func TestDisasm(t *testing.T) {
	cpu := loadCPUWith(t, `
0600: 8d 00 20 a7 10 d0 fe 6c ff 03`)

	tests := []struct {
		pc     uint16
		opcode string
		oper   string
	}{
		{0x0600, "STA", "PpuControl_2000"},
		{0x0603, "*LAX", "$10"},
		{0x0605, "BNE", "$0605"},
		{0x0607, "JMP", "($03FF)"},
	}
	for _, tt := range tests {
		d := cpu.Disasm(tt.pc)
		if d.Opcode != tt.opcode || d.Oper != tt.oper {
			t.Errorf("Disasm($%04X) = %s %s, want %s %s", tt.pc, d.Opcode, d.Oper, tt.opcode, tt.oper)
		}
	}
	if cpu.Cycles != 0 {
		t.Errorf("Disasm has side effects, Cycles = %d", cpu.Cycles)
	}
}

func TestSetTraceOutput(t *testing.T) {
	cpu := loadCPUWith(t, `
0600: a9 32
FFFC: 00 06`)

	var out bytes.Buffer
	cpu.SetTraceOutput(&out, nil)
	cpu.Step()

	want := "0600  A9 32     LDA #$32                         A:00 X:00 Y:00 P:24 S:FF PPU:0  ,0   0\n"
	if out.String() != want {
		t.Errorf("trace = %q, want %q", out.String(), want)
	}
}
