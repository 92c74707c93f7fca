package track

import (
	"sort"

	"github.com/chazu/peephole/pkg/bytecode"
)

// Set is a set of nodes.
type Set map[NodeID]bool

// IDs returns the members in ascending order.
func (s Set) IDs() []NodeID {
	ids := make([]NodeID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Consumed returns the operands plus every node they were derived from.
func (g *Graph) Consumed(operands ...*Value) Set {
	seen := make(Set)
	stack := make([]NodeID, 0, len(operands))
	for _, op := range operands {
		stack = append(stack, op.id)
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		stack = append(stack, g.node(id).parents...)
	}
	return seen
}

// Family returns the original that id was cloned from, directly or
// transitively, together with all of its clones. A node that was never
// cloned is its own family.
func (g *Graph) Family(id NodeID) Set {
	root := id
	seen := Set{root: true}
	for {
		up := g.node(root).cloneOf
		if up == None || seen[up] {
			break
		}
		root = up
		seen[root] = true
	}

	family := make(Set)
	stack := []NodeID{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if family[n] {
			continue
		}
		family[n] = true
		stack = append(stack, g.node(n).clones...)
	}
	return family
}

// Closure returns every node reachable from roots through parent and clone
// links in either direction of a clone family.
func (g *Graph) Closure(roots ...*Value) Set {
	seen := make(Set)
	stack := make([]NodeID, 0, len(roots))
	for _, r := range roots {
		stack = append(stack, r.id)
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		n := g.node(id)
		stack = append(stack, n.parents...)
		stack = append(stack, n.clones...)
		if n.cloneOf != None {
			stack = append(stack, n.cloneOf)
		}
	}
	return seen
}

// Exclusive reports whether the operands are the only remaining users of
// the values they were built from: for every consumed node, each member of
// its clone family must be consumed as well. Only then may the consumed
// nodes' instructions be removed.
func (g *Graph) Exclusive(operands ...*Value) bool {
	consumed := g.Consumed(operands...)
	for id := range consumed {
		for member := range g.Family(id) {
			if !consumed[member] {
				return false
			}
		}
	}
	return true
}

// Provenance returns the union of the instructions and anchors of the nodes
// in s, in node order.
func (g *Graph) Provenance(s Set) (insns, anchors []*bytecode.Insn) {
	for _, id := range s.IDs() {
		n := g.node(id)
		insns = appendUnique(insns, n.insns...)
		anchors = appendUnique(anchors, n.anchors...)
	}
	return insns, anchors
}

// Member reports whether v is a node of s.
func (g *Graph) Member(s Set, v *Value) bool {
	return g.Owns(v) && s[v.id]
}
