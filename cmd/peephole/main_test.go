package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/peephole/pkg/bytecode"
)

// writeManifest writes a peephole.toml into a fresh directory and returns
// its path.
func writeManifest(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "peephole.toml")
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", p, err)
	}
	return p
}

func TestRunSample(t *testing.T) {
	path := writeManifest(t, "[project]\nname = \"sample\"\n")
	output := filepath.Join(t.TempDir(), "folded.cbor")

	var out bytes.Buffer
	if err := run(config{manifest: path, output: output, verbosity: -1}, &out); err != nil {
		t.Fatalf("run failed: %v\n%s", err, out.String())
	}

	got := out.String()
	if !strings.HasPrefix(got, "9\npeephole\n1024\n144\n") {
		t.Errorf("program output = %q", got)
	}
	for _, want := range []string{"demo/Calc.main()V", `-> LDC "peephole"`, "-> SIPUSH 1024", "-> BIPUSH 9", "-> SIPUSH 144", "Folded "} {
		if !strings.Contains(got, want) {
			t.Errorf("report is missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "\033[") {
		t.Error("report should not be coloured")
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("reading output bundle: %v", err)
	}
	bundle, err := bytecode.UnmarshalBundle(data)
	if err != nil {
		t.Fatalf("UnmarshalBundle failed: %v", err)
	}
	c := bundle.Class("demo/Calc")
	if c == nil {
		t.Fatal("output bundle lost demo/Calc")
	}
	for _, m := range c.Methods {
		if m.Name != "main" {
			continue
		}
		if bytecode.CountOpcode(m, bytecode.OpIadd) != 0 || bytecode.CountOpcode(m, bytecode.OpNewarray) != 0 {
			t.Errorf("saved main was not folded:\n%s", bytecode.Disassemble(m))
		}
		if bytecode.CountOpcode(m, bytecode.OpLdiv) != 1 {
			t.Errorf("clock division should survive:\n%s", bytecode.Disassemble(m))
		}
	}
}

func TestRunWithArguments(t *testing.T) {
	path := writeManifest(t, "[simulate]\nentry = \"demo.Calc#square\"\nargs = [\"5\"]\n")

	var out bytes.Buffer
	if err := run(config{manifest: path, verbosity: -1}, &out); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out.String(), "demo/Calc.square(I)I returned 25") {
		t.Errorf("output = %q", out.String())
	}
	if !strings.Contains(out.String(), "Folded 0 sites") {
		t.Errorf("square has nothing constant to fold:\n%s", out.String())
	}

	out.Reset()
	if err := run(config{manifest: path, verbosity: -1, args: []string{"x"}}, &out); err == nil {
		t.Error("expected an error for a non-numeric argument")
	}
	if err := run(config{manifest: path, verbosity: -1, args: []string{"1", "2"}}, &out); err == nil {
		t.Error("expected an error for too many arguments")
	}
}

func TestRunRejectsUnknownEntry(t *testing.T) {
	path := writeManifest(t, "")
	for _, entry := range []string{"demo/Calc.missing", "demo/Other.main()V", "demo/*.main"} {
		var out bytes.Buffer
		if err := run(config{manifest: path, entry: entry, verbosity: -1}, &out); err == nil {
			t.Errorf("run(%q) should fail", entry)
		}
	}
}

func TestRunJournal(t *testing.T) {
	path := writeManifest(t, "[journal]\nenabled = true\n")

	var out bytes.Buffer
	if err := run(config{manifest: path, verbosity: -1}, &out); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out.String(), "recorded in "+filepath.Join(filepath.Dir(path), ".peephole", "journal.db")) {
		t.Errorf("output does not name the journal:\n%s", out.String())
	}

	out.Reset()
	if err := run(config{manifest: path, sessions: true, verbosity: -1}, &out); err != nil {
		t.Fatalf("listing sessions failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 1 || !strings.HasSuffix(lines[0], "folds") {
		t.Errorf("sessions = %q, want one session", out.String())
	}
}

func TestSessionsNeedJournal(t *testing.T) {
	path := writeManifest(t, "")
	var out bytes.Buffer
	if err := run(config{manifest: path, sessions: true, verbosity: -1}, &out); err == nil {
		t.Error("expected an error when the journal is disabled")
	}
}
