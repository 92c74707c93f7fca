package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the method.
func Disassemble(m *Method) string {
	return DisassembleWithName(m, m.String())
}

// DisassembleWithName returns a listing with a custom header name.
func DisassembleWithName(m *Method, name string) string {
	var sb strings.Builder

	// Header
	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; Access: 0x%04X", uint16(m.Access)))
	if m.IsStatic() {
		sb.WriteString(" [STATIC]")
	}
	sb.WriteString("\n")
	if m.MaxLocals > 0 {
		sb.WriteString(fmt.Sprintf("; Locals: %d slots\n", m.MaxLocals))
	}
	sb.WriteString("\n")

	names := LabelNames(m)
	label := func(l *Insn) string {
		if n, ok := names[l]; ok {
			return n
		}
		return "L?"
	}

	// Code section
	sb.WriteString("; Code:\n")
	for i, insn := range m.Instructions.Slice() {
		sb.WriteString(fmt.Sprintf("%04X  %s\n", i, insn.format(label)))
	}

	// Exception table
	if len(m.TryCatchBlocks) > 0 {
		sb.WriteString("\n; Exception table:\n")
		for _, tcb := range m.TryCatchBlocks {
			typ := tcb.Type
			if typ == "" {
				typ = "any"
			}
			sb.WriteString(fmt.Sprintf(";   %s %s -> %s %s\n",
				label(tcb.Start), label(tcb.End), label(tcb.Handler), typ))
		}
	}

	return sb.String()
}

// LabelNames numbers the method's labels L0, L1, ... in list order.
func LabelNames(m *Method) map[*Insn]string {
	names := make(map[*Insn]string)
	for insn := m.Instructions.First(); insn != nil; insn = insn.Next() {
		if insn.Op == OpLabel {
			names[insn] = fmt.Sprintf("L%d", len(names))
		}
	}
	return names
}

// Listing returns one line per instruction without offsets or header,
// skipping pseudo-instructions when code is true. Handy for comparing two
// versions of a method.
func Listing(m *Method, code bool) []string {
	names := LabelNames(m)
	label := func(l *Insn) string { return names[l] }
	var out []string
	for insn := m.Instructions.First(); insn != nil; insn = insn.Next() {
		if code && insn.IsPseudo() {
			continue
		}
		out = append(out, insn.format(label))
	}
	return out
}

// CountOpcode returns how many instructions in m use op.
func CountOpcode(m *Method, op Opcode) int {
	n := 0
	for insn := m.Instructions.First(); insn != nil; insn = insn.Next() {
		if insn.Op == op {
			n++
		}
	}
	return n
}
