package manifest

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/chazu/peephole/pkg/bytecode"
	"github.com/chazu/peephole/peephole"
	"github.com/chazu/peephole/vm"
)

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "peephole.toml", `
[project]
name = "calc"

[simulate]
bundle = "classes.cbor"
entry = "demo.Calc#compute()I"
args = ["3"]
output = "folded.cbor"

[fold]
strings = false
defer-narrowing = true

[whitelist]
include = ["demo/*"]
exclude = ["demo.Calc#debug*"]

[purity]
pure = ["demo/Calc.answer"]

[log]
verbosity = 2
file = "logs/peephole.log"

[journal]
enabled = true
path = "folds.db"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "calc" {
		t.Errorf("project name = %q, want calc", m.Project.Name)
	}
	if m.Simulate.Entry != "demo.Calc#compute()I" || !reflect.DeepEqual(m.Simulate.Args, []string{"3"}) {
		t.Errorf("simulate = %+v", m.Simulate)
	}
	if !*m.Fold.Arithmetic || !*m.Fold.Invocations || *m.Fold.Strings || !m.Fold.DeferNarrowing {
		t.Errorf("fold switches = %v %v %v %v", *m.Fold.Arithmetic, *m.Fold.Invocations, *m.Fold.Strings, m.Fold.DeferNarrowing)
	}
	if !reflect.DeepEqual(m.Whitelist.Exclude, []string{"demo/Calc.debug*"}) {
		t.Errorf("exclude = %v, want normalized pattern", m.Whitelist.Exclude)
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("log verbosity = %d, want 2", m.Log.Verbosity)
	}
	if got := *m.LogFile(); got != filepath.Join(m.Dir, "logs", "peephole.log") {
		t.Errorf("LogFile() = %q", got)
	}
	if got := m.JournalPath(); got != filepath.Join(m.Dir, "folds.db") {
		t.Errorf("JournalPath() = %q", got)
	}
	if got := m.Resolve(m.Simulate.Bundle); got != filepath.Join(m.Dir, "classes.cbor") {
		t.Errorf("Resolve(bundle) = %q", got)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "peephole.toml", `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !*m.Fold.Arithmetic || !*m.Fold.Invocations || !*m.Fold.Strings || m.Fold.DeferNarrowing {
		t.Error("every folder should default to on, narrowing to off")
	}
	if m.Journal.Enabled || m.Journal.Path != DefaultJournal {
		t.Errorf("journal = %+v, want disabled at %s", m.Journal, DefaultJournal)
	}
	if m.LogFile() != nil {
		t.Errorf("LogFile() = %q, want nil", *m.LogFile())
	}
	store, err := m.OpenJournal()
	if err != nil || store != nil {
		t.Errorf("OpenJournal() = %v, %v, want nil, nil", store, err)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "peephole.yaml", `
project:
  name: yaml-calc
fold:
  invocations: false
whitelist:
  include: ["demo/Calc.*"]
journal:
  enabled: true
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Project.Name != "yaml-calc" {
		t.Errorf("project name = %q, want yaml-calc", m.Project.Name)
	}
	if *m.Fold.Invocations || !*m.Fold.Arithmetic {
		t.Errorf("fold = %v %v, want invocations off, arithmetic on", *m.Fold.Invocations, *m.Fold.Arithmetic)
	}

	store, err := m.OpenJournal()
	if err != nil {
		t.Fatalf("OpenJournal failed: %v", err)
	}
	defer store.Close()
	if store.Path() != filepath.Join(m.Dir, DefaultJournal) {
		t.Errorf("journal path = %q", store.Path())
	}
}

func TestLoadRejectsBadPattern(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "peephole.toml", `
[whitelist]
include = ["demo/[Calc"]
`)
	if _, err := Load(dir); err == nil {
		t.Error("expected an error for a malformed pattern")
	}
}

func TestLoadNotFound(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected an error when no manifest exists")
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	write(t, dir, "peephole.toml", `[project]
name = "found-project"
`)

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
	if m.Dir != dir {
		t.Errorf("Dir = %q, want %q", m.Dir, dir)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no peephole.toml exists")
	}
}

// The manifest's options and whitelist drive a real overlay.
func TestOptionsConfigureOverlay(t *testing.T) {
	build := func(name string) *bytecode.Method {
		return bytecode.NewBuilder("demo/Calc", name, "()I", bytecode.AccPublic|bytecode.AccStatic).
			Push(int32(2)).Push(int32(3)).Insn(bytecode.OpIadd, bytecode.OpIreturn).Build()
	}
	m := Default()
	m.Whitelist.Exclude = []string{"demo/Calc.skip"}
	fold, skip := build("fold"), build("skip")

	v := vm.New()
	o := peephole.Install(v, m.Predicate(), m.Options()...)
	node := bytecode.NewClass("demo/Calc")
	node.AddMethod(fold)
	node.AddMethod(skip)
	if _, err := v.DefineClass(node); err != nil {
		t.Fatalf("DefineClass failed: %v", err)
	}
	for _, name := range []string{"fold", "skip"} {
		if _, err := v.InvokeStatic("demo/Calc", name, "()I"); err != nil {
			t.Fatalf("%s failed: %v", name, err)
		}
	}

	if got := bytecode.Listing(fold, true); !reflect.DeepEqual(got, []string{"NOP", "NOP", "ICONST_5", "IRETURN"}) {
		t.Errorf("fold = %q", got)
	}
	if bytecode.CountOpcode(skip, bytecode.OpIadd) != 1 {
		t.Errorf("excluded method was folded:\n%s", bytecode.Disassemble(skip))
	}
	if o.Stats().Arithmetic != 1 {
		t.Errorf("Arithmetic = %d, want 1", o.Stats().Arithmetic)
	}
}

func TestNormalizePattern(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"demo/*", "demo/*"},
		{"  demo/Calc.compute ", "demo/Calc.compute"},
		{"com.example.Calc#compute", "com/example/Calc.compute"},
		{"com.example.Calc#compute()I", "com/example/Calc.compute()I"},
		{"demo/Calc.sum(\\[I)I", "demo/Calc.sum(\\[I)I"},
	}
	for _, tc := range tests {
		got, err := NormalizePattern(tc.input)
		if err != nil {
			t.Errorf("NormalizePattern(%q) failed: %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizePattern(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}

	for _, bad := range []string{"", "   ", "demo/[Calc"} {
		if _, err := NormalizePattern(bad); err == nil {
			t.Errorf("NormalizePattern(%q) should fail", bad)
		}
	}
}

func TestParseEntry(t *testing.T) {
	tests := []struct {
		input string
		want  Entry
	}{
		{"demo/Calc.compute()I", Entry{"demo/Calc", "compute", "()I"}},
		{"demo.Calc#compute", Entry{"demo/Calc", "compute", ""}},
		{"demo/Calc.sum([I)I", Entry{"demo/Calc", "sum", "([I)I"}},
		{"a/b/C.m(Ljava/lang/String;)V", Entry{"a/b/C", "m", "(Ljava/lang/String;)V"}},
	}
	for _, tc := range tests {
		got, err := ParseEntry(tc.input)
		if err != nil {
			t.Errorf("ParseEntry(%q) failed: %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseEntry(%q) = %+v, want %+v", tc.input, got, tc.want)
		}
	}
	if got := (Entry{"demo/Calc", "compute", "()I"}).String(); got != "demo/Calc.compute()I" {
		t.Errorf("String() = %q", got)
	}

	for _, bad := range []string{"compute", "demo/Calc.", "demo/*.compute", "demo/Calc.compute(I"} {
		if _, err := ParseEntry(bad); err == nil {
			t.Errorf("ParseEntry(%q) should fail", bad)
		}
	}
}
