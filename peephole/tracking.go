package peephole

import (
	"github.com/chazu/peephole/pkg/bytecode"
	"github.com/chazu/peephole/vm"
)

// ---------------------------------------------------------------------------
// Tracking processors: attach provenance to values as they move
// ---------------------------------------------------------------------------

func (o *Overlay) installTracking() {
	set := o.vm.SetProcessor
	for _, op := range bytecode.AllOpcodes() {
		switch {
		case isLiteralPush(op):
			set(op, o.pushLiteral)
		case op.IsLoad():
			set(op, o.loadLocal)
		case op.IsStore():
			set(op, o.storeLocal)
		case op.IsArrayStore():
			set(op, o.storeElement)
		}
	}
	set(bytecode.OpIinc, o.increment)
	set(bytecode.OpDup, o.dup)
	set(bytecode.OpDup2, o.dup2)
	set(bytecode.OpSwap, o.strip(2))
	set(bytecode.OpDupX1, o.strip(3))
	set(bytecode.OpDupX2, o.strip(4))
	set(bytecode.OpDup2X1, o.strip(5))
	set(bytecode.OpDup2X2, o.strip(6))
	set(bytecode.OpNewarray, o.newArray)
	set(bytecode.OpNew, o.newInstance)
}

func isLiteralPush(op bytecode.Opcode) bool {
	return op >= bytecode.OpIconstM1 && op <= bytecode.OpLdc
}

// replaceTop runs the original processor and swaps the value it left on top
// of the stack for f's result.
func (o *Overlay) replaceTop(insn *bytecode.Insn, ctx *vm.ExecutionContext, f func(vm.Value) vm.Value) (vm.Result, error) {
	res, err := o.original[insn.Op](insn, ctx)
	if err != nil || !o.allowed(ctx) {
		return res, err
	}
	s := ctx.Stack()
	s.PushGeneric(f(s.PopGeneric()))
	return res, nil
}

func (o *Overlay) pushLiteral(insn *bytecode.Insn, ctx *vm.ExecutionContext) (vm.Result, error) {
	return o.replaceTop(insn, ctx, func(v vm.Value) vm.Value {
		return o.graph.Leaf(v, insn)
	})
}

// loadLocal keeps tracking only for bindings made by this frame. Anything
// else in a local, such as a tracked argument from the caller, is loaded
// plain.
func (o *Overlay) loadLocal(insn *bytecode.Insn, ctx *vm.ExecutionContext) (vm.Result, error) {
	if !o.allowed(ctx) {
		return o.original[insn.Op](insn, ctx)
	}
	v := ctx.Locals().Load(insn.Var)
	if b, ok := o.tracked(v); ok && b.Binding() == ctx {
		ctx.Stack().PushGeneric(o.graph.Load(b, insn))
	} else {
		ctx.Stack().PushGeneric(vm.Unwrap(v))
	}
	return vm.Continue, nil
}

func (o *Overlay) storeLocal(insn *bytecode.Insn, ctx *vm.ExecutionContext) (vm.Result, error) {
	if !o.allowed(ctx) {
		return o.original[insn.Op](insn, ctx)
	}
	s := ctx.Stack()
	var v vm.Value
	if insn.Op == bytecode.OpLstore || insn.Op == bytecode.OpDstore {
		v = s.PopWide()
	} else {
		v = s.Pop()
	}
	if t, ok := o.tracked(v); ok {
		if _, constant := t.Const(); constant {
			ctx.Locals().Store(insn.Var, o.graph.Bind(t, insn, ctx))
			return vm.Continue, nil
		}
	}
	ctx.Locals().Store(insn.Var, vm.Unwrap(v))
	return vm.Continue, nil
}

func (o *Overlay) increment(insn *bytecode.Insn, ctx *vm.ExecutionContext) (vm.Result, error) {
	if o.allowed(ctx) {
		if b, ok := o.tracked(ctx.Locals().Get(insn.Var)); ok && b.Binding() == ctx && b.IsConstant() {
			next := vm.IntValue(b.AsInt() + insn.Operand)
			ctx.Locals().Store(insn.Var, o.graph.Rebind(b, next, insn))
			return vm.Continue, nil
		}
	}
	return o.original[insn.Op](insn, ctx)
}

// ---------------------------------------------------------------------------
// Stack shuffles
// ---------------------------------------------------------------------------

func (o *Overlay) dup(insn *bytecode.Insn, ctx *vm.ExecutionContext) (vm.Result, error) {
	res, err := o.original[insn.Op](insn, ctx)
	if err != nil || !o.allowed(ctx) {
		return res, err
	}
	s := ctx.Stack()
	top := s.Position() - 1
	if t, ok := o.tracked(s.GetAt(top)); ok {
		s.Set(top, o.graph.Clone(t, insn))
	}
	return res, nil
}

// dup2 clones a duplicated wide value, or a duplicated pair of narrow values
// when both are tracked. A pair with one untracked half loses tracking on
// the copies, so DUP2 never joins the provenance of half a pair.
func (o *Overlay) dup2(insn *bytecode.Insn, ctx *vm.ExecutionContext) (vm.Result, error) {
	res, err := o.original[insn.Op](insn, ctx)
	if err != nil || !o.allowed(ctx) {
		return res, err
	}
	s := ctx.Stack()
	n := s.Position()
	if s.GetAt(n-1) == vm.Top {
		if t, ok := o.tracked(s.GetAt(n - 2)); ok {
			s.Set(n-2, o.graph.Clone(t, insn))
		}
		return res, nil
	}
	lo, loOK := o.tracked(s.GetAt(n - 2))
	hi, hiOK := o.tracked(s.GetAt(n - 1))
	switch {
	case loOK && hiOK:
		s.Set(n-2, o.graph.Clone(lo, insn))
		s.Set(n-1, o.graph.Clone(hi, insn))
	case loOK || hiOK:
		s.Set(n-2, vm.Unwrap(s.GetAt(n-2)))
		s.Set(n-1, vm.Unwrap(s.GetAt(n-1)))
	}
	return res, nil
}

// strip builds the processor for shuffles that reorder values. The top
// width slots after the shuffle lose their tracking.
func (o *Overlay) strip(width int) vm.Processor {
	return func(insn *bytecode.Insn, ctx *vm.ExecutionContext) (vm.Result, error) {
		res, err := o.original[insn.Op](insn, ctx)
		if err != nil || !o.allowed(ctx) {
			return res, err
		}
		s := ctx.Stack()
		for i := s.Position() - width; i < s.Position(); i++ {
			s.Set(i, vm.Unwrap(s.GetAt(i)))
		}
		return res, nil
	}
}

// ---------------------------------------------------------------------------
// Allocation and arrays
// ---------------------------------------------------------------------------

func (o *Overlay) newArray(insn *bytecode.Insn, ctx *vm.ExecutionContext) (vm.Result, error) {
	var length vm.Value
	if s := ctx.Stack(); s.Position() > 0 {
		length = s.GetAt(s.Position() - 1)
	}
	return o.replaceTop(insn, ctx, func(arr vm.Value) vm.Value {
		if n, ok := o.tracked(length); ok && n.IsConstant() {
			return o.graph.NewArray(arr, insn, n)
		}
		return arr
	})
}

func (o *Overlay) newInstance(insn *bytecode.Insn, ctx *vm.ExecutionContext) (vm.Result, error) {
	if insn.Class != vm.StringClass {
		return o.original[insn.Op](insn, ctx)
	}
	return o.replaceTop(insn, ctx, func(inst vm.Value) vm.Value {
		return o.graph.Opaque(inst, insn)
	})
}

func (o *Overlay) storeElement(insn *bytecode.Insn, ctx *vm.ExecutionContext) (vm.Result, error) {
	orig := o.original[insn.Op]
	s := ctx.Stack()
	at := s.Position() - 1
	if insn.Op == bytecode.OpLastore || insn.Op == bytecode.OpDastore {
		at--
	}
	if !o.allowed(ctx) || at < 2 {
		return orig(insn, ctx)
	}
	arr, isTracked := o.tracked(s.GetAt(at - 2))
	index, _ := o.tracked(s.GetAt(at - 1))
	value, _ := o.tracked(s.GetAt(at))

	res, err := orig(insn, ctx)
	if err != nil || !isTracked || !arr.IsArray() {
		return res, err
	}
	o.graph.SetElement(arr, insn, index, value)
	return res, nil
}
