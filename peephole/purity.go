package peephole

import (
	"github.com/chazu/peephole/pkg/bytecode"
	"github.com/chazu/peephole/vm"
)

// pure reports whether m may be folded away: it has no side effects and its
// result depends only on its arguments. Natives carry their own flag,
// configured patterns are trusted, and bytecode bodies are scanned.
func (o *Overlay) pure(m *vm.Method) bool {
	if p, ok := o.purity[m]; ok {
		return p
	}
	p := o.scan(m, make(map[*vm.Method]bool))
	o.purity[m] = p
	return p
}

// scan checks m and everything it calls. Methods already on the path are
// assumed pure: recursion alone has no effect. Only the outermost result
// is cached, since inner results may rest on that assumption.
func (o *Overlay) scan(m *vm.Method, path map[*vm.Method]bool) bool {
	if matchMethod(o.opts.pure, m.Class.Name, m.Name, m.Desc) {
		return true
	}
	if m.IsNative() {
		return m.Pure
	}
	if m.Node == nil {
		return false
	}
	if path[m] {
		return true
	}
	path[m] = true
	defer delete(path, m)

	for insn := m.Node.Instructions.First(); insn != nil; insn = insn.Next() {
		switch op := insn.Op; {
		case op == bytecode.OpPutstatic, op == bytecode.OpPutfield,
			op == bytecode.OpGetstatic, op == bytecode.OpGetfield,
			op == bytecode.OpAthrow, op.IsArrayStore():
			return false
		case op.IsInvoke():
			callee := o.callee(insn)
			if callee == nil || !o.scan(callee, path) {
				return false
			}
		}
	}
	return true
}

// callee resolves the method an invoke instruction reaches. Virtual calls
// are only resolved on String, whose methods cannot be overridden.
func (o *Overlay) callee(insn *bytecode.Insn) *vm.Method {
	if insn.Op == bytecode.OpInvokevirtual && insn.Owner != vm.StringClass {
		return nil
	}
	m, err := o.vm.ResolveMethod(insn.Owner, insn.Name, insn.Desc)
	if err != nil {
		return nil
	}
	return m
}
