package peephole

import (
	"github.com/chazu/peephole/journal"
	"github.com/chazu/peephole/pkg/bytecode"
	"github.com/chazu/peephole/track"
	"github.com/chazu/peephole/vm"
)

// ---------------------------------------------------------------------------
// String construction folder
// ---------------------------------------------------------------------------

// foldString runs on entry to String.<init>([B)V. When the receiver and the
// byte array were built entirely from constants in the caller, the caller's
// NEW becomes an LDC of the decoded text and the rest of the construction
// sequence becomes NOPs. The constructor itself still runs.
func (o *Overlay) foldString(ctx *vm.ExecutionContext) {
	bt := o.vm.Backtrace()
	caller := bt.Get(bt.Count() - 2)
	if caller == nil || !o.allowed(caller) {
		return
	}
	this, ok := o.tracked(ctx.Locals().Get(0))
	if !ok {
		return
	}
	arr, ok := o.tracked(ctx.Locals().Get(1))
	if !ok || !arr.IsArray() || !arr.IsConstant() {
		return
	}
	bytes, ok := vm.AsArray(arr.Unwrap())
	if !ok {
		return
	}
	text := vm.DecodeBytes(bytes.Bytes())

	list := caller.Instructions()
	site := caller.Current()
	if site == nil || site.Op != bytecode.OpInvokespecial {
		return
	}

	closure := o.graph.Closure(this, arr)
	insns, anchors := o.graph.Provenance(closure)
	members := make(map[*bytecode.Insn]bool, len(insns)+1)
	for _, insn := range insns {
		members[insn] = true
	}
	members[site] = true

	alloc := findAllocation(site, members)
	if alloc == nil {
		o.bail(caller, "no allocation of the receiver precedes %s", site)
		return
	}

	siteIndex := list.IndexOf(site)
	earliest := siteIndex
	for _, insn := range append(insns, anchors...) {
		if insn.List() != list {
			o.bail(caller, "%s is not in the calling method", insn)
			return
		}
		earliest = min(earliest, list.IndexOf(insn))
	}
	if !o.contiguous(caller, earliest, siteIndex, members) {
		return
	}
	if !o.straight(caller, earliest, siteIndex) {
		o.bail(caller, "the construction sequence is not straight-line code")
		return
	}

	slot, ok := o.receiverSlot(caller, this, closure, members)
	if !ok {
		return
	}

	ldc := bytecode.NewLdcInsn(text)
	list.Set(alloc, ldc)
	removed := 0
	for _, insn := range append(insns, site) {
		if insn != alloc && list.Contains(insn) {
			list.Set(insn, bytecode.NewInsn(bytecode.OpNop))
			removed++
		}
	}
	s := caller.Stack()
	s.Set(slot, o.graph.Literal(s.GetAt(slot), text, ldc))

	o.stats.Strings++
	o.record(caller, journal.KindString, ldc, removed, text)
}

// findAllocation walks back from site to the nearest NEW java/lang/String
// that is part of members.
func findAllocation(site *bytecode.Insn, members map[*bytecode.Insn]bool) *bytecode.Insn {
	for p := site.Prev(); p != nil; p = p.Prev() {
		if p.Op == bytecode.OpNew && p.Class == vm.StringClass && members[p] {
			return p
		}
	}
	return nil
}

// contiguous checks that [from, to] holds nothing but members, NOPs and
// markers, and that nothing jumps into it.
func (o *Overlay) contiguous(caller *vm.ExecutionContext, from, to int, members map[*bytecode.Insn]bool) bool {
	list := caller.Instructions()
	joins := o.joinPoints(caller.Node())
	for i := from; i <= to; i++ {
		insn := list.Get(i)
		if i > from && joins[insn] {
			o.bail(caller, "control flow joins at %d", i)
			return false
		}
		if members[insn] || insn.Op == bytecode.OpNop || insn.IsPseudo() {
			continue
		}
		o.bail(caller, "%s interrupts the construction sequence", insn)
		return false
	}
	return true
}

// receiverSlot finds the caller's stack slot holding the original receiver.
// It fails if any other value built by the sequence is still live in the
// caller, since those instructions are about to disappear.
func (o *Overlay) receiverSlot(caller *vm.ExecutionContext, this *track.Value, closure track.Set, members map[*bytecode.Insn]bool) (int, bool) {
	family := o.graph.Family(this.ID())
	slot := -1
	s := caller.Stack()
	for i := 0; i < s.Position(); i++ {
		t, ok := o.tracked(s.GetAt(i))
		if !ok {
			continue
		}
		if family[t.ID()] && t.CloneOf() == track.None && slot < 0 {
			slot = i
			continue
		}
		if closure[t.ID()] || dependsOn(t, members) {
			o.bail(caller, "%v is still on the stack", t)
			return 0, false
		}
	}
	if slot < 0 {
		o.bail(caller, "receiver is not on the stack")
		return 0, false
	}
	locals := caller.Locals()
	for i := 0; i < locals.Len(); i++ {
		t, ok := o.tracked(locals.Get(i))
		if ok && (closure[t.ID()] || dependsOn(t, members)) {
			o.bail(caller, "%v is held in local %d", t, i)
			return 0, false
		}
	}
	return slot, true
}

func dependsOn(t *track.Value, members map[*bytecode.Insn]bool) bool {
	for _, insn := range t.Insns() {
		if members[insn] {
			return true
		}
	}
	return false
}

func (o *Overlay) bail(ctx *vm.ExecutionContext, format string, args ...any) {
	o.stats.Bailed++
	o.log.Debugf("Not folding String in %s: "+format, append([]any{ctx.Method()}, args...)...)
}
