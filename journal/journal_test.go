package journal

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sample(session string, site int) Entry {
	return Entry{
		Session: session,
		Owner:   "demo/Calc",
		Name:    "compute",
		Desc:    "()I",
		Kind:    KindArithmetic,
		Site:    site,
		Removed: 2,
		Literal: "9",
		At:      time.Unix(1700000000, 0),
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	if err := m.Record(sample("s1", 3)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	m.Record(sample("s1", 5))

	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}
	entries := m.Entries()
	entries[0].Site = 99
	if m.Entries()[0].Site != 3 {
		t.Error("Entries() should return a copy")
	}
}

func TestEntryString(t *testing.T) {
	got := sample("s1", 3).String()
	want := "arithmetic demo/Calc.compute()I@3 -> 9 (2 removed)"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if s := Summary([]Entry{sample("s", 1), sample("s", 2)}); strings.Count(s, "\n") != 2 {
		t.Errorf("Summary() = %q", s)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "folds.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	for i, e := range []Entry{sample("a", 1), sample("b", 2), sample("a", 3)} {
		if err := s.Record(e); err != nil {
			t.Fatalf("Record %d failed: %v", i, err)
		}
	}

	all, err := s.Entries("")
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Entries(\"\") returned %d, want 3", len(all))
	}

	a, err := s.Entries("a")
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(a) != 2 || a[0].Site != 1 || a[1].Site != 3 {
		t.Errorf("Entries(\"a\") = %v", a)
	}
	if got := a[0]; got.Method() != "demo/Calc.compute()I" || got.Literal != "9" || got.Removed != 2 {
		t.Errorf("entry did not round-trip: %+v", got)
	}
	if !a[0].At.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("At = %v", a[0].At)
	}

	sessions, err := s.Sessions()
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if sessions["a"] != 2 || sessions["b"] != 1 {
		t.Errorf("Sessions() = %v", sessions)
	}
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "folds.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	e := sample("x", 1)
	e.At = time.Time{}
	s.Record(e)
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()
	got, err := s.Entries("x")
	if err != nil || len(got) != 1 {
		t.Fatalf("Entries after reopen = %v, %v", got, err)
	}
	if got[0].At.IsZero() {
		t.Error("a zero timestamp should be stamped on record")
	}
}
