package track

import (
	"github.com/chazu/peephole/pkg/bytecode"
	"github.com/chazu/peephole/vm"
)

// NodeID indexes a node in a Graph. IDs are only meaningful within the
// generation of the graph that issued them.
type NodeID int32

// None is the absent node.
const None NodeID = -1

type node struct {
	insns   []*bytecode.Insn // instructions that produced the value
	anchors []*bytecode.Insn // instructions the value depends on but that stay in place
	parents []NodeID
	cloneOf NodeID
	clones  []NodeID

	constant bool
	literal  any // explicit payload when the delegate is not yet a constant
	array    *arrayState
	frame    *vm.ExecutionContext // set on local variable bindings
}

// arrayState is shared by an array and all its clones.
type arrayState struct {
	poisoned bool
}

// Graph is an arena of provenance nodes. It is owned by one overlay and
// reset whenever the outermost simulated frame exits.
type Graph struct {
	nodes []node
	gen   uint32
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// Len returns the number of live nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Reset discards every node. Values issued before the reset are no longer
// owned by the graph.
func (g *Graph) Reset() {
	g.nodes = g.nodes[:0]
	g.gen++
}

// Owns reports whether v was issued by this generation of the graph.
func (g *Graph) Owns(v *Value) bool {
	return v != nil && v.g == g && v.gen == g.gen && int(v.id) < len(g.nodes)
}

// Lookup returns the tracked form of v, if it has one in this graph.
func (g *Graph) Lookup(v vm.Value) (*Value, bool) {
	t, ok := v.(*Value)
	if !ok || !g.Owns(t) {
		return nil, false
	}
	return t, true
}

func (g *Graph) add(delegate vm.Value, n node) *Value {
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, n)
	return &Value{Value: vm.Unwrap(delegate), g: g, gen: g.gen, id: id}
}

func (g *Graph) node(id NodeID) *node { return &g.nodes[id] }

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

// Leaf tracks a value pushed by a single instruction. It is a constant when
// the value's category is foldable.
func (g *Graph) Leaf(v vm.Value, insn *bytecode.Insn) *Value {
	_, ok := vm.Constant(v)
	return g.add(v, node{insns: []*bytecode.Insn{insn}, cloneOf: None, constant: ok})
}

// Literal tracks a constant whose payload is given explicitly, for values
// such as a String whose text is not yet stored in its delegate.
func (g *Graph) Literal(v vm.Value, c any, insn *bytecode.Insn) *Value {
	return g.add(v, node{insns: []*bytecode.Insn{insn}, cloneOf: None, constant: true, literal: c})
}

// Opaque tracks a value that is never constant, such as an uninitialized
// String instance.
func (g *Graph) Opaque(v vm.Value, insns ...*bytecode.Insn) *Value {
	return g.add(v, node{insns: append([]*bytecode.Insn(nil), insns...), cloneOf: None})
}

// Derive tracks the result of an operation over parents. Its instructions
// are the union of the parents' instructions, in order, followed by insn
// when it is not nil. The result is constant when every parent is.
func (g *Graph) Derive(v vm.Value, insn *bytecode.Insn, parents ...*Value) *Value {
	n := node{cloneOf: None, constant: true}
	for _, p := range parents {
		pn := g.node(p.id)
		n.insns = appendUnique(n.insns, pn.insns...)
		n.anchors = appendUnique(n.anchors, pn.anchors...)
		n.parents = append(n.parents, p.id)
		n.constant = n.constant && p.IsConstant()
	}
	if insn != nil {
		n.insns = appendUnique(n.insns, insn)
	}
	if _, ok := vm.Constant(v); !ok {
		n.constant = false
	}
	return g.add(v, n)
}

// Clone tracks a stack duplicate of v made by insn. The clone shares v's
// provenance and, for arrays, its element state.
func (g *Graph) Clone(v *Value, insn *bytecode.Insn) *Value {
	src := g.node(v.id)
	n := node{
		insns:    appendUnique(append([]*bytecode.Insn(nil), src.insns...), insn),
		anchors:  append([]*bytecode.Insn(nil), src.anchors...),
		cloneOf:  v.id,
		constant: src.constant,
		literal:  src.literal,
		array:    src.array,
	}
	c := g.add(v.Value, n)
	src = g.node(v.id)
	src.clones = append(src.clones, c.id)
	return c
}

// Bind records that v was stored into a local variable of frame by store.
// The binding has no instructions of its own: everything that produced v,
// plus the store, becomes an anchor.
func (g *Graph) Bind(v *Value, store *bytecode.Insn, frame *vm.ExecutionContext) *Value {
	src := g.node(v.id)
	n := node{
		anchors:  appendUnique(appendUnique(append([]*bytecode.Insn(nil), src.insns...), src.anchors...), store),
		cloneOf:  None,
		constant: src.constant,
		literal:  src.literal,
		frame:    frame,
	}
	return g.add(v.Value, n)
}

// Rebind derives a new binding from b after an in-place update by insn,
// such as IINC.
func (g *Graph) Rebind(b *Value, v vm.Value, insn *bytecode.Insn) *Value {
	src := g.node(b.id)
	_, ok := vm.Constant(v)
	n := node{
		anchors:  appendUnique(append([]*bytecode.Insn(nil), src.anchors...), insn),
		cloneOf:  None,
		constant: src.constant && ok,
		frame:    src.frame,
	}
	return g.add(v, n)
}

// Load tracks a read of binding b by load. Only the load itself can be
// removed; the binding's anchors must stay.
func (g *Graph) Load(b *Value, load *bytecode.Insn) *Value {
	src := g.node(b.id)
	n := node{
		insns:    []*bytecode.Insn{load},
		anchors:  append([]*bytecode.Insn(nil), src.anchors...),
		cloneOf:  None,
		constant: src.constant,
		literal:  src.literal,
	}
	return g.add(b.Value, n)
}

// NewArray tracks an array allocated by insn with the given length. Its
// elements start as constants of the component type's zero value.
func (g *Graph) NewArray(arr vm.Value, insn *bytecode.Insn, length *Value) *Value {
	v := g.Derive(arr, insn, length)
	n := g.node(v.id)
	n.constant = length.IsConstant()
	n.array = &arrayState{}
	return v
}

// SetElement records a store into the array arr. A constant index and
// value add their provenance, and the store's, to arr. Anything else makes
// the array non-constant for good.
func (g *Graph) SetElement(arr *Value, insn *bytecode.Insn, index, value *Value) {
	n := g.node(arr.id)
	if n.array == nil {
		return
	}
	if index == nil || value == nil || !index.IsConstant() || !value.IsConstant() {
		n.array.poisoned = true
		return
	}
	for _, p := range []*Value{index, value} {
		pn := g.node(p.id)
		n = g.node(arr.id)
		n.insns = appendUnique(n.insns, pn.insns...)
		n.anchors = appendUnique(n.anchors, pn.anchors...)
		n.parents = append(n.parents, p.id)
	}
	n.insns = appendUnique(n.insns, insn)
}

// Poison marks an array non-constant.
func (g *Graph) Poison(arr *Value) {
	if n := g.node(arr.id); n.array != nil {
		n.array.poisoned = true
	}
}

func appendUnique(dst []*bytecode.Insn, insns ...*bytecode.Insn) []*bytecode.Insn {
outer:
	for _, insn := range insns {
		for _, have := range dst {
			if have == insn {
				continue outer
			}
		}
		dst = append(dst, insn)
	}
	return dst
}
