package peephole

import (
	"github.com/chazu/peephole/journal"
	"github.com/chazu/peephole/pkg/bytecode"
	"github.com/chazu/peephole/track"
	"github.com/chazu/peephole/vm"
)

// ---------------------------------------------------------------------------
// Arithmetic and conversion folder
// ---------------------------------------------------------------------------

func (o *Overlay) installArithmetic() {
	for _, op := range bytecode.AllOpcodes() {
		if op.IsNumeric() {
			o.vm.SetProcessor(op, o.foldNumeric)
		}
	}
}

func isNarrowing(op bytecode.Opcode) bool {
	return op == bytecode.OpI2b || op == bytecode.OpI2c || op == bytecode.OpI2s
}

// constantSlots returns the tracked constants in the top len(types) logical
// stack positions, bottom first. Widths come from types, never from the
// values found.
func (o *Overlay) constantSlots(s *vm.Stack, types []bytecode.Type) ([]*track.Value, bool) {
	values := make([]*track.Value, len(types))
	top := s.Position()
	for i := len(types) - 1; i >= 0; i-- {
		if types[i].IsWide() {
			if top < 2 || s.GetAt(top-1) != vm.Top {
				return nil, false
			}
			top -= 2
		} else {
			if top < 1 {
				return nil, false
			}
			top--
		}
		t, ok := o.tracked(s.GetAt(top))
		if !ok || !t.IsConstant() {
			return nil, false
		}
		values[i] = t
	}
	return values, true
}

func (o *Overlay) foldNumeric(insn *bytecode.Insn, ctx *vm.ExecutionContext) (vm.Result, error) {
	orig := o.original[insn.Op]
	if !o.allowed(ctx) {
		return orig(insn, ctx)
	}
	s := ctx.Stack()
	operands, ok := o.constantSlots(s, bytecode.GetOpcodeInfo(insn.Op).In)
	if !ok {
		return orig(insn, ctx)
	}
	args := make([]vm.Value, len(operands))
	for i, t := range operands {
		args[i] = t.Unwrap()
	}
	result, err := vm.Evaluate(insn.Op, args...)
	if err != nil {
		// Division by zero raises through the original processor.
		return orig(insn, ctx)
	}
	vm.PopOperands(insn.Op, s)

	if !(o.opts.deferNarrowing && isNarrowing(insn.Op)) {
		if lit, ok := o.rewrite(ctx, journal.KindArithmetic, insn, result, operands...); ok {
			s.PushGeneric(lit)
			return vm.Continue, nil
		}
	}
	o.stats.Deferred++
	s.PushGeneric(o.graph.Derive(result, insn, operands...))
	return vm.Continue, nil
}
