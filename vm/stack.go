package vm

import "fmt"

// StackError is panicked by Stack and Locals on misuse: underflow, overflow,
// or a width mismatch. The dispatch loop recovers it into a returned error.
type StackError struct {
	Op  string
	Msg string
}

func (e *StackError) Error() string {
	return fmt.Sprintf("vm: %s: %s", e.Op, e.Msg)
}

// Stack is a method frame's operand stack. One-slot and two-slot
// operations are distinct calls; a wide value occupies its own slot plus a
// Top slot above it.
type Stack struct {
	slots []Value
	limit int
}

// NewStack creates a stack. A limit of zero means unbounded.
func NewStack(limit int) *Stack {
	return &Stack{slots: make([]Value, 0, 16), limit: limit}
}

// Position returns the number of occupied slots.
func (s *Stack) Position() int { return len(s.slots) }

// GetAt returns the slot at index i, counted from the bottom.
func (s *Stack) GetAt(i int) Value {
	if i < 0 || i >= len(s.slots) {
		panic(&StackError{"getAt", fmt.Sprintf("index %d out of %d", i, len(s.slots))})
	}
	return s.slots[i]
}

// Set overwrites the slot at index i.
func (s *Stack) Set(i int, v Value) {
	if i < 0 || i >= len(s.slots) {
		panic(&StackError{"set", fmt.Sprintf("index %d out of %d", i, len(s.slots))})
	}
	s.slots[i] = v
}

func (s *Stack) pushSlot(v Value) {
	if s.limit > 0 && len(s.slots) >= s.limit {
		panic(&StackError{"push", "stack overflow"})
	}
	s.slots = append(s.slots, v)
}

func (s *Stack) popSlot() Value {
	n := len(s.slots)
	if n == 0 {
		panic(&StackError{"pop", "stack underflow"})
	}
	v := s.slots[n-1]
	s.slots[n-1] = nil
	s.slots = s.slots[:n-1]
	return v
}

// Push pushes a one-slot value.
func (s *Stack) Push(v Value) {
	if v.IsWide() {
		panic(&StackError{"push", "wide value needs pushWide"})
	}
	s.pushSlot(v)
}

// PushWide pushes a two-slot value.
func (s *Stack) PushWide(v Value) {
	if !v.IsWide() {
		panic(&StackError{"pushWide", "narrow value"})
	}
	s.pushSlot(v)
	s.pushSlot(Top)
}

// PushGeneric pushes v with the width its category requires.
func (s *Stack) PushGeneric(v Value) {
	if v.IsWide() {
		s.PushWide(v)
	} else {
		s.Push(v)
	}
}

// Pop removes a one-slot value.
func (s *Stack) Pop() Value {
	v := s.popSlot()
	if v == Top {
		panic(&StackError{"pop", "top half of a wide value"})
	}
	return v
}

// PopWide removes a two-slot value.
func (s *Stack) PopWide() Value {
	if top := s.popSlot(); top != Top {
		panic(&StackError{"popWide", "narrow value on top"})
	}
	return s.popSlot()
}

// PopGeneric removes the top value whatever its width.
func (s *Stack) PopGeneric() Value {
	if n := len(s.slots); n > 0 && s.slots[n-1] == Top {
		return s.PopWide()
	}
	return s.Pop()
}

// Peek returns the top value without removing it, skipping a Top filler.
func (s *Stack) Peek() Value {
	n := len(s.slots)
	if n == 0 {
		panic(&StackError{"peek", "stack underflow"})
	}
	if s.slots[n-1] == Top {
		if n < 2 {
			panic(&StackError{"peek", "orphan top slot"})
		}
		return s.slots[n-2]
	}
	return s.slots[n-1]
}

// Clear empties the stack.
func (s *Stack) Clear() {
	for i := range s.slots {
		s.slots[i] = nil
	}
	s.slots = s.slots[:0]
}

// Slots returns a copy of the occupied slots, bottom first.
func (s *Stack) Slots() []Value {
	out := make([]Value, len(s.slots))
	copy(out, s.slots)
	return out
}

// ---------------------------------------------------------------------------
// Locals
// ---------------------------------------------------------------------------

// Locals is a method frame's local variable table.
type Locals struct {
	slots []Value
}

// NewLocals creates a table with n slots.
func NewLocals(n int) *Locals {
	return &Locals{slots: make([]Value, n)}
}

// Len returns the number of slots.
func (l *Locals) Len() int { return len(l.slots) }

// Load returns the value in slot i.
func (l *Locals) Load(i int) Value {
	if i < 0 || i >= len(l.slots) || l.slots[i] == nil {
		panic(&StackError{"load", fmt.Sprintf("local %d is unset", i)})
	}
	return l.slots[i]
}

// Get returns slot i, or nil when unset or out of range.
func (l *Locals) Get(i int) Value {
	if i < 0 || i >= len(l.slots) {
		return nil
	}
	return l.slots[i]
}

// Store writes v into slot i, and Top into slot i+1 for wide values.
func (l *Locals) Store(i int, v Value) {
	need := i + 1
	if v.IsWide() {
		need++
	}
	if i < 0 {
		panic(&StackError{"store", fmt.Sprintf("local %d", i)})
	}
	for len(l.slots) < need {
		l.slots = append(l.slots, nil)
	}
	l.slots[i] = v
	if v.IsWide() {
		l.slots[i+1] = Top
	}
}
