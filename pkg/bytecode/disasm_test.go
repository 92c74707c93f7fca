package bytecode

import (
	"strings"
	"testing"
)

func TestDisassembleSimple(t *testing.T) {
	m := NewBuilder("demo/Calc", "compute", "()I", AccStatic).
		Insn(OpIconst1, OpIconst2, OpIadd).
		Int(OpBipush, 3).
		Insn(OpImul, OpIreturn).
		Build()

	output := Disassemble(m)

	for _, want := range []string{"demo/Calc.compute()I", "[STATIC]", "0000  ICONST_1", "0003  BIPUSH 3", "IMUL", "IRETURN"} {
		if !strings.Contains(output, want) {
			t.Errorf("Disassembly missing %q:\n%s", want, output)
		}
	}
}

func TestDisassembleLabelsAndHandlers(t *testing.T) {
	b := NewBuilder("demo/Calc", "safe", "(I)I", AccStatic)
	start, end, handler := b.Label(), b.Label(), b.Label()
	b.Mark(start).
		Insn(OpIconst1).Var(OpIload, 0).Insn(OpIdiv).
		Mark(end).
		Insn(OpIreturn).
		Mark(handler).
		Insn(OpPop, OpIconst0, OpIreturn).
		TryCatch(start, end, handler, "java/lang/ArithmeticException")
	output := Disassemble(b.Build())

	for _, want := range []string{"L0:", "ILOAD 0", "L1:", "L2:", "; Exception table:", "L0 L1 -> L2 java/lang/ArithmeticException"} {
		if !strings.Contains(output, want) {
			t.Errorf("Disassembly missing %q:\n%s", want, output)
		}
	}
}

func TestListingSkipsPseudo(t *testing.T) {
	b := NewBuilder("demo/Calc", "f", "()J", AccStatic)
	loop := b.Label()
	b.Line(10).Ldc(int64(42)).Mark(loop).Insn(OpLreturn)
	m := b.Build()

	code := Listing(m, true)
	if len(code) != 2 || code[0] != "LDC 42L" || code[1] != "LRETURN" {
		t.Errorf("Listing(code) = %v", code)
	}
	if all := Listing(m, false); len(all) != 5 {
		t.Errorf("Listing(all) has %d lines, want 5: %v", len(all), all)
	}
}

func TestFormatConstant(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{int32(7), "7"},
		{int64(7), "7L"},
		{float32(10), "10.0F"},
		{float64(0.25), "0.25D"},
		{"a\"b", `"a\"b"`},
		{nil, "null"},
	}
	for _, tt := range tests {
		if got := FormatConstant(tt.value); got != tt.want {
			t.Errorf("FormatConstant(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestCountOpcode(t *testing.T) {
	m := NewBuilder("demo/Calc", "f", "()V", AccStatic).Insn(OpNop, OpNop, OpReturn).Build()
	if got := CountOpcode(m, OpNop); got != 2 {
		t.Errorf("CountOpcode(NOP) = %d, want 2", got)
	}
}
