package track

import (
	"fmt"

	"github.com/chazu/peephole/pkg/bytecode"
	"github.com/chazu/peephole/vm"
)

// Value is a stack or local value carrying provenance. It embeds the
// interpreter value it decorates, so default processors see through it;
// vm.Unwrap recovers the delegate.
type Value struct {
	vm.Value

	g   *Graph
	gen uint32
	id  NodeID
}

// Unwrap returns the undecorated value.
func (v *Value) Unwrap() vm.Value { return v.Value }

// ID returns the node backing v.
func (v *Value) ID() NodeID { return v.id }

func (v *Value) node() *node { return v.g.node(v.id) }

// IsConstant reports whether the value is statically known. An array is
// constant while its length and every element are.
func (v *Value) IsConstant() bool {
	n := v.node()
	return n.constant && (n.array == nil || !n.array.poisoned)
}

// Const returns the constant payload of a numeric or String value.
func (v *Value) Const() (any, bool) {
	if !v.IsConstant() {
		return nil, false
	}
	if n := v.node(); n.literal != nil {
		return n.literal, true
	}
	return vm.Constant(v.Value)
}

// Insns returns the instructions that produced the value.
func (v *Value) Insns() []*bytecode.Insn {
	return append([]*bytecode.Insn(nil), v.node().insns...)
}

// Anchors returns instructions the value depends on that must stay in
// place, such as the store behind a local variable load.
func (v *Value) Anchors() []*bytecode.Insn {
	return append([]*bytecode.Insn(nil), v.node().anchors...)
}

// IsArray reports whether the value tracks array elements.
func (v *Value) IsArray() bool { return v.node().array != nil }

// Binding returns the frame whose local variable holds v, or nil when v is
// not a local binding.
func (v *Value) Binding() *vm.ExecutionContext { return v.node().frame }

// CloneOf returns the value v was duplicated from, or None.
func (v *Value) CloneOf() NodeID { return v.node().cloneOf }

func (v *Value) String() string {
	n := v.node()
	state := "opaque"
	if v.IsConstant() {
		state = "const"
	}
	return fmt.Sprintf("#%d(%v %s, %d insns)", v.id, v.Value, state, len(n.insns))
}
