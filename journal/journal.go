// Package journal records the folds an overlay performs, either in memory
// or in a SQLite database, so that a session's rewrites can be reviewed
// after the simulation that produced them has finished.
package journal

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Fold kinds.
const (
	KindArithmetic = "arithmetic"
	KindInvoke     = "invoke"
	KindString     = "string"
)

// Entry describes one rewrite.
type Entry struct {
	Session string
	Owner   string
	Name    string
	Desc    string
	Kind    string
	Site    int    // list index of the rewritten instruction
	Removed int    // instructions turned into NOPs
	Literal string // the literal that replaced the site
	At      time.Time
}

// Method returns owner.name+desc.
func (e Entry) Method() string {
	return e.Owner + "." + e.Name + e.Desc
}

func (e Entry) String() string {
	return fmt.Sprintf("%s %s@%d -> %s (%d removed)", e.Kind, e.Method(), e.Site, e.Literal, e.Removed)
}

// Recorder receives fold entries.
type Recorder interface {
	Record(e Entry) error
}

// ---------------------------------------------------------------------------
// Memory: in-process recorder
// ---------------------------------------------------------------------------

// Memory keeps entries in a slice.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemory creates an empty in-memory journal.
func NewMemory() *Memory {
	return &Memory{}
}

// Record appends e.
func (m *Memory) Record(e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

// Entries returns a copy of the recorded entries, oldest first.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

// Len returns the number of recorded entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Summary renders one line per entry.
func Summary(entries []Entry) string {
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
