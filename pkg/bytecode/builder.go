package bytecode

// Builder assembles a method one instruction at a time. Every emit method
// returns the builder so that straight-line code reads top to bottom.
type Builder struct {
	m      *Method
	locals int
}

// NewBuilder starts a method body. The receiver and arguments are counted
// towards MaxLocals automatically.
func NewBuilder(owner, name, desc string, access Access) *Builder {
	b := &Builder{m: NewMethod(owner, name, desc, access)}
	if n, err := ArgumentSlots(desc); err == nil {
		b.locals = n
	}
	if access&AccStatic == 0 {
		b.locals++
	}
	return b
}

func (b *Builder) emit(insn *Insn) *Builder {
	b.m.Instructions.Add(insn)
	return b
}

// Insn emits a zero-operand instruction.
func (b *Builder) Insn(ops ...Opcode) *Builder {
	for _, op := range ops {
		b.emit(NewInsn(op))
	}
	return b
}

// Int emits BIPUSH, SIPUSH or NEWARRAY.
func (b *Builder) Int(op Opcode, operand int32) *Builder {
	return b.emit(NewIntInsn(op, operand))
}

// Push emits the shortest instruction pushing c.
// Panics if c is not a loadable constant.
func (b *Builder) Push(c any) *Builder {
	insn, err := CreatePush(c)
	if err != nil {
		panic(err)
	}
	return b.emit(insn)
}

// Ldc emits an LDC, even when a shorter form exists.
func (b *Builder) Ldc(c any) *Builder {
	return b.emit(NewLdcInsn(c))
}

// Var emits a local variable load or store.
func (b *Builder) Var(op Opcode, index int) *Builder {
	size := 1
	if op == OpLload || op == OpDload || op == OpLstore || op == OpDstore {
		size = 2
	}
	b.touch(index + size)
	return b.emit(NewVarInsn(op, index))
}

// Iinc emits an IINC.
func (b *Builder) Iinc(index int, increment int32) *Builder {
	b.touch(index + 1)
	return b.emit(NewIincInsn(index, increment))
}

func (b *Builder) touch(n int) {
	if n > b.locals {
		b.locals = n
	}
}

// Jump emits a jump to target, which must be marked separately.
func (b *Builder) Jump(op Opcode, target *Insn) *Builder {
	return b.emit(NewJumpInsn(op, target))
}

// Type emits NEW, ANEWARRAY, CHECKCAST or INSTANCEOF.
func (b *Builder) Type(op Opcode, class string) *Builder {
	return b.emit(NewTypeInsn(op, class))
}

// Field emits a field access.
func (b *Builder) Field(op Opcode, owner, name, desc string) *Builder {
	return b.emit(NewFieldInsn(op, owner, name, desc))
}

// Invoke emits a method invocation.
func (b *Builder) Invoke(op Opcode, owner, name, desc string) *Builder {
	return b.emit(NewMethodInsn(op, owner, name, desc))
}

// TableSwitch emits a TABLESWITCH.
func (b *Builder) TableSwitch(low int32, dflt *Insn, labels ...*Insn) *Builder {
	return b.emit(NewTableSwitch(low, dflt, labels...))
}

// LookupSwitch emits a LOOKUPSWITCH.
func (b *Builder) LookupSwitch(dflt *Insn, keys []int32, labels []*Insn) *Builder {
	return b.emit(NewLookupSwitch(dflt, keys, labels))
}

// Label creates a label without placing it.
func (b *Builder) Label() *Insn {
	return NewLabel()
}

// Mark places a label created by Label at the current position.
func (b *Builder) Mark(label *Insn) *Builder {
	return b.emit(label)
}

// Line places a fresh label followed by a line marker.
func (b *Builder) Line(line int) *Builder {
	l := NewLabel()
	b.emit(l)
	return b.emit(NewLine(line, l))
}

// TryCatch adds an exception table entry.
func (b *Builder) TryCatch(start, end, handler *Insn, catchType string) *Builder {
	b.m.TryCatchBlocks = append(b.m.TryCatchBlocks, &TryCatchBlock{
		Start: start, End: end, Handler: handler, Type: catchType,
	})
	return b
}

// Build finishes the method. The builder must not be used afterwards.
func (b *Builder) Build() *Method {
	b.m.MaxLocals = b.locals
	return b.m
}
