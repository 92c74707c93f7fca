package bytecode

// InsnList is a doubly linked list of instructions. Instructions keep their
// identity across edits; numeric positions are recomputed lazily the first
// time they are asked for after a structural change.
type InsnList struct {
	first  *Insn
	last   *Insn
	size   int
	nextID uint32

	// cache holds the instructions in order. nil means stale.
	cache []*Insn
}

// NewInsnList creates an empty list.
func NewInsnList() *InsnList {
	return &InsnList{}
}

// Len returns the number of instructions, labels included.
func (l *InsnList) Len() int { return l.size }

// First returns the first instruction, or nil.
func (l *InsnList) First() *Insn { return l.first }

// Last returns the last instruction, or nil.
func (l *InsnList) Last() *Insn { return l.last }

// Contains reports whether insn currently belongs to this list.
func (l *InsnList) Contains(insn *Insn) bool {
	return insn != nil && insn.list == l
}

// Get returns the instruction at index i.
// Panics if i is out of range.
func (l *InsnList) Get(i int) *Insn {
	l.index()
	return l.cache[i]
}

// IndexOf returns the position of insn, or -1 if it is not in the list.
func (l *InsnList) IndexOf(insn *Insn) int {
	if !l.Contains(insn) {
		return -1
	}
	l.index()
	return insn.idx
}

// Slice returns the instructions in order. The slice is a copy.
func (l *InsnList) Slice() []*Insn {
	l.index()
	out := make([]*Insn, len(l.cache))
	copy(out, l.cache)
	return out
}

func (l *InsnList) index() {
	if l.cache != nil {
		return
	}
	l.cache = make([]*Insn, 0, l.size)
	n := 0
	for insn := l.first; insn != nil; insn = insn.next {
		insn.idx = n
		l.cache = append(l.cache, insn)
		n++
	}
}

func (l *InsnList) attach(insn *Insn) {
	if insn.list != nil {
		panic("bytecode: instruction already belongs to a list")
	}
	if insn.id == 0 {
		l.nextID++
		insn.id = l.nextID
	}
	insn.list = l
	l.size++
	l.cache = nil
}

func (l *InsnList) detach(insn *Insn) {
	insn.list = nil
	insn.prev = nil
	insn.next = nil
	l.size--
	l.cache = nil
}

// Add appends insn to the end of the list.
func (l *InsnList) Add(insn *Insn) {
	l.attach(insn)
	if l.last == nil {
		l.first = insn
	} else {
		l.last.next = insn
		insn.prev = l.last
	}
	l.last = insn
}

// AddAll appends each instruction in order.
func (l *InsnList) AddAll(insns ...*Insn) {
	for _, insn := range insns {
		l.Add(insn)
	}
}

// InsertBefore inserts insn immediately before loc.
func (l *InsnList) InsertBefore(loc, insn *Insn) {
	if !l.Contains(loc) {
		panic("bytecode: insertion point not in list")
	}
	l.attach(insn)
	insn.next = loc
	insn.prev = loc.prev
	if loc.prev == nil {
		l.first = insn
	} else {
		loc.prev.next = insn
	}
	loc.prev = insn
}

// Set replaces old with repl in place. old is detached and keeps its ID;
// repl takes its position. Labels cannot be replaced since jumps and
// exception ranges refer to them.
func (l *InsnList) Set(old, repl *Insn) {
	if !l.Contains(old) {
		panic("bytecode: replaced instruction not in list")
	}
	if old.Op == OpLabel {
		panic("bytecode: labels cannot be replaced")
	}
	prev, next := old.prev, old.next
	l.detach(old)
	l.attach(repl)
	repl.prev = prev
	repl.next = next
	if prev == nil {
		l.first = repl
	} else {
		prev.next = repl
	}
	if next == nil {
		l.last = repl
	} else {
		next.prev = repl
	}
}

// Remove unlinks insn from the list.
func (l *InsnList) Remove(insn *Insn) {
	if !l.Contains(insn) {
		panic("bytecode: removed instruction not in list")
	}
	prev, next := insn.prev, insn.next
	if prev == nil {
		l.first = next
	} else {
		prev.next = next
	}
	if next == nil {
		l.last = prev
	} else {
		next.prev = prev
	}
	l.detach(insn)
}
