package peephole

import (
	"github.com/chazu/peephole/journal"
	"github.com/chazu/peephole/pkg/bytecode"
	"github.com/chazu/peephole/track"
	"github.com/chazu/peephole/vm"
)

// joinPoints returns the cached join points of m. Folds never touch labels
// or jumps, so the set stays valid for the whole simulation.
func (o *Overlay) joinPoints(m *bytecode.Method) map[*bytecode.Insn]bool {
	joins, ok := o.joins[m]
	if !ok {
		joins = bytecode.JoinPoints(m)
		o.joins[m] = joins
	}
	return joins
}

// straight reports whether [from, to] is straight-line code. Control may
// neither enter after from nor leave before to. Another activation of the
// same method paused inside the region would resume into the rewritten code.
func (o *Overlay) straight(ctx *vm.ExecutionContext, from, to int) bool {
	list := ctx.Instructions()
	joins := o.joinPoints(ctx.Node())
	for i := from; i <= to; i++ {
		insn := list.Get(i)
		if i > from && joins[insn] {
			return false
		}
		if i < to && insn.Op.IsTransfer() {
			return false
		}
	}
	bt := o.vm.Backtrace()
	for i := 0; i < bt.Count(); i++ {
		frame := bt.Get(i)
		if frame == ctx || frame.Instructions() != list {
			continue
		}
		if at := frame.Cursor() - 1; at >= from && at < to {
			o.log.Debugf("Not folding in %s: another activation is paused at %d", ctx.Method(), at)
			return false
		}
	}
	return true
}

// rewrite replaces site, and every instruction that produced operands, with
// a literal push of result. It returns the tracked literal to push in place
// of result, or false when the rewrite cannot be proven safe, in which case
// nothing is changed.
func (o *Overlay) rewrite(ctx *vm.ExecutionContext, kind string, site *bytecode.Insn, result vm.Value, operands ...*track.Value) (*track.Value, bool) {
	c, ok := vm.Constant(result)
	if !ok {
		return nil, false
	}
	list := ctx.Instructions()
	if list == nil || !list.Contains(site) {
		return nil, false
	}
	insns, anchors := o.graph.Provenance(o.graph.Consumed(operands...))

	// Ownership and ordering: everything that fed the site is still before
	// it in this list. An instruction detached by an earlier fold means the
	// value is stale.
	siteIndex := list.IndexOf(site)
	earliest := siteIndex
	var live []*bytecode.Insn
	for _, insn := range insns {
		if insn.List() != list {
			return nil, false
		}
		i := list.IndexOf(insn)
		if i >= siteIndex {
			return nil, false
		}
		earliest = min(earliest, i)
		live = append(live, insn)
	}
	for _, anchor := range anchors {
		if anchor.List() != list {
			return nil, false
		}
		i := list.IndexOf(anchor)
		if i >= siteIndex {
			return nil, false
		}
		earliest = min(earliest, i)
	}

	if !o.straight(ctx, earliest, siteIndex) {
		return nil, false
	}

	if !o.graph.Exclusive(operands...) {
		return nil, false
	}

	lit, err := bytecode.CreatePush(c)
	if err != nil {
		return nil, false
	}
	removed := 0
	for _, insn := range live {
		if list.Contains(insn) {
			list.Set(insn, bytecode.NewInsn(bytecode.OpNop))
			removed++
		}
	}
	list.Set(site, lit)

	switch kind {
	case journal.KindArithmetic:
		o.stats.Arithmetic++
	case journal.KindInvoke:
		o.stats.Invocations++
	}
	o.record(ctx, kind, lit, removed, c)
	return o.graph.Leaf(result, lit), true
}
