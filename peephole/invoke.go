package peephole

import (
	"github.com/chazu/peephole/journal"
	"github.com/chazu/peephole/pkg/bytecode"
	"github.com/chazu/peephole/vm"
)

// ---------------------------------------------------------------------------
// Static invocation folder
// ---------------------------------------------------------------------------

// foldableReturn reports whether a call returning t can become a literal.
func foldableReturn(t bytecode.Type) bool {
	switch t.Sort {
	case bytecode.SortBoolean, bytecode.SortChar, bytecode.SortByte, bytecode.SortShort,
		bytecode.SortInt, bytecode.SortLong, bytecode.SortFloat, bytecode.SortDouble:
		return true
	case bytecode.SortObject:
		return t.Descriptor == bytecode.StringType.Descriptor
	}
	return false
}

// foldInvoke always performs the call, then replaces it with its result
// when every argument was constant and the callee is pure. Faults propagate
// exactly as without the overlay.
func (o *Overlay) foldInvoke(insn *bytecode.Insn, ctx *vm.ExecutionContext) (vm.Result, error) {
	orig := o.original[insn.Op]
	if !o.allowed(ctx) {
		return orig(insn, ctx)
	}
	types, ret, err := bytecode.ParseMethodType(insn.Desc)
	if err != nil || !foldableReturn(ret) {
		return orig(insn, ctx)
	}
	args, constant := o.constantSlots(ctx.Stack(), types)

	res, err := orig(insn, ctx)
	if err != nil || res != vm.Continue || !constant {
		return res, err
	}

	s := ctx.Stack()
	if _, ok := vm.Constant(s.Peek()); !ok {
		return res, nil
	}
	m, err := o.vm.ResolveMethod(insn.Owner, insn.Name, insn.Desc)
	if err != nil || !o.pure(m) {
		return res, nil
	}
	// A recursive activation may already have folded this call.
	if !ctx.Instructions().Contains(insn) {
		return res, nil
	}

	result := s.PopGeneric()
	if lit, ok := o.rewrite(ctx, journal.KindInvoke, insn, result, args...); ok {
		s.PushGeneric(lit)
		return res, nil
	}
	o.stats.Deferred++
	s.PushGeneric(o.graph.Derive(result, insn, args...))
	return res, nil
}
