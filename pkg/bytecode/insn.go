package bytecode

import (
	"fmt"
	"math"
	"strconv"
)

// Insn is a single node of a method's instruction list. The pointer itself
// is the stable handle: list edits never move or copy an Insn, so other
// structures may keep referring to it across any number of edits.
//
// Which operand fields are meaningful depends on the opcode's Form.
type Insn struct {
	Op Opcode

	Operand int32 // BIPUSH/SIPUSH value, NEWARRAY type code, IINC increment
	Var     int   // local variable index for FormVar and FormIinc
	Const   any   // LDC constant: int32, int64, float32, float64 or string
	Owner   string
	Name    string
	Desc    string
	Class   string // internal name for NEW, ANEWARRAY, CHECKCAST, INSTANCEOF

	Target *Insn   // jump target, switch default, or the label a line marker starts at
	Labels []*Insn // switch targets
	Keys   []int32 // LOOKUPSWITCH keys
	Low    int32   // TABLESWITCH low key
	Line   int     // source line for OpLine

	id   uint32
	list *InsnList
	prev *Insn
	next *Insn
	idx  int
}

// NewInsn creates a zero-operand instruction.
func NewInsn(op Opcode) *Insn {
	return &Insn{Op: op}
}

// NewIntInsn creates a BIPUSH, SIPUSH or NEWARRAY instruction.
func NewIntInsn(op Opcode, operand int32) *Insn {
	return &Insn{Op: op, Operand: operand}
}

// NewVarInsn creates a local variable load or store.
func NewVarInsn(op Opcode, index int) *Insn {
	return &Insn{Op: op, Var: index}
}

// NewIincInsn creates an IINC instruction.
func NewIincInsn(index int, increment int32) *Insn {
	return &Insn{Op: OpIinc, Var: index, Operand: increment}
}

// NewLdcInsn creates an LDC instruction. The constant must be an int32,
// int64, float32, float64 or string.
func NewLdcInsn(cst any) *Insn {
	return &Insn{Op: OpLdc, Const: cst}
}

// NewJumpInsn creates a conditional or unconditional jump to a label.
func NewJumpInsn(op Opcode, target *Insn) *Insn {
	return &Insn{Op: op, Target: target}
}

// NewTypeInsn creates NEW, ANEWARRAY, CHECKCAST or INSTANCEOF.
func NewTypeInsn(op Opcode, class string) *Insn {
	return &Insn{Op: op, Class: class}
}

// NewFieldInsn creates a field access instruction.
func NewFieldInsn(op Opcode, owner, name, desc string) *Insn {
	return &Insn{Op: op, Owner: owner, Name: name, Desc: desc}
}

// NewMethodInsn creates an invocation instruction.
func NewMethodInsn(op Opcode, owner, name, desc string) *Insn {
	return &Insn{Op: op, Owner: owner, Name: name, Desc: desc}
}

// NewTableSwitch creates a TABLESWITCH over keys low..low+len(labels)-1.
func NewTableSwitch(low int32, dflt *Insn, labels ...*Insn) *Insn {
	return &Insn{Op: OpTableswitch, Low: low, Target: dflt, Labels: labels}
}

// NewLookupSwitch creates a LOOKUPSWITCH. Keys and labels pair up by index.
func NewLookupSwitch(dflt *Insn, keys []int32, labels []*Insn) *Insn {
	return &Insn{Op: OpLookupswitch, Target: dflt, Keys: keys, Labels: labels}
}

// NewLabel creates a label pseudo-instruction.
func NewLabel() *Insn {
	return &Insn{Op: OpLabel}
}

// NewLine creates a line number marker attached to a label.
func NewLine(line int, start *Insn) *Insn {
	return &Insn{Op: OpLine, Line: line, Target: start}
}

// ID returns the identifier assigned when the instruction was first added
// to a list. Zero means it never was.
func (i *Insn) ID() uint32 { return i.id }

// List returns the list currently holding the instruction, or nil once it
// has been replaced or removed.
func (i *Insn) List() *InsnList { return i.list }

// Next returns the following instruction, or nil.
func (i *Insn) Next() *Insn { return i.next }

// Prev returns the preceding instruction, or nil.
func (i *Insn) Prev() *Insn { return i.prev }

// IsPseudo returns true for labels and line markers.
func (i *Insn) IsPseudo() bool { return i.Op.IsPseudo() }

// SwitchTarget returns the label a switch transfers to for key.
func (i *Insn) SwitchTarget(key int32) *Insn {
	switch i.Op {
	case OpTableswitch:
		off := int64(key) - int64(i.Low)
		if off >= 0 && off < int64(len(i.Labels)) {
			return i.Labels[off]
		}
	case OpLookupswitch:
		for n, k := range i.Keys {
			if k == key {
				return i.Labels[n]
			}
		}
	}
	return i.Target
}

// String renders the instruction without list context. Labels referenced by
// the instruction print as their IDs.
func (i *Insn) String() string {
	return i.format(func(l *Insn) string { return "L" + strconv.FormatUint(uint64(l.ID()), 10) })
}

func (i *Insn) format(label func(*Insn) string) string {
	name := i.Op.String()
	switch i.Op.Form() {
	case FormInt:
		return fmt.Sprintf("%s %d", name, i.Operand)
	case FormVar:
		return fmt.Sprintf("%s %d", name, i.Var)
	case FormIinc:
		return fmt.Sprintf("%s %d %d", name, i.Var, i.Operand)
	case FormLdc:
		return name + " " + FormatConstant(i.Const)
	case FormJump:
		return name + " " + label(i.Target)
	case FormType:
		return name + " " + i.Class
	case FormField, FormMethod:
		return fmt.Sprintf("%s %s.%s %s", name, i.Owner, i.Name, i.Desc)
	case FormTableSwitch:
		s := fmt.Sprintf("%s %d:", name, i.Low)
		for _, l := range i.Labels {
			s += " " + label(l)
		}
		return s + " default: " + label(i.Target)
	case FormLookupSwitch:
		s := name
		for n, k := range i.Keys {
			s += fmt.Sprintf(" %d: %s", k, label(i.Labels[n]))
		}
		return s + " default: " + label(i.Target)
	case FormLabel:
		return label(i) + ":"
	case FormLine:
		return fmt.Sprintf("LINE %d %s", i.Line, label(i.Target))
	}
	return name
}

// FormatConstant renders an LDC constant the way it is written in assembly:
// longs get an L suffix, floats an F suffix, strings are quoted.
func FormatConstant(c any) string {
	switch v := c.(type) {
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10) + "L"
	case float32:
		return formatFloat(float64(v), 32) + "F"
	case float64:
		return formatFloat(v, 64) + "D"
	case string:
		return strconv.Quote(v)
	case nil:
		return "null"
	}
	return fmt.Sprintf("%v", c)
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	s := strconv.FormatFloat(f, 'g', -1, bits)
	for _, ch := range s {
		if ch == '.' || ch == 'e' {
			return s
		}
	}
	return s + ".0"
}
