// peephole simulates a method under the constant-folding overlay and
// prints which instructions were folded.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/peephole/journal"
	"github.com/chazu/peephole/manifest"
	"github.com/chazu/peephole/peephole"
	"github.com/chazu/peephole/pkg/bytecode"
	"github.com/chazu/peephole/vm"
)

var log = commonlog.GetLogger("peephole.cli")

type config struct {
	manifest  string
	bundle    string
	entry     string
	output    string
	verbosity int
	journal   bool
	sessions  bool
	color     bool
	args      []string
}

func main() {
	var cfg config
	flag.StringVar(&cfg.manifest, "config", "", "Manifest file (default: peephole.toml found from the current directory)")
	flag.StringVar(&cfg.bundle, "bundle", "", "CBOR class bundle to load (default: built-in sample)")
	flag.StringVar(&cfg.entry, "entry", "", "Static method to simulate, e.g. 'demo/Calc.compute()I'")
	flag.StringVar(&cfg.output, "o", "", "Write the folded bundle to this file")
	flag.IntVar(&cfg.verbosity, "v", -1, "Log verbosity, 0-4 (default: from manifest)")
	flag.BoolVar(&cfg.journal, "journal", false, "Record folds in the journal")
	flag.BoolVar(&cfg.sessions, "sessions", false, "List journal sessions and exit")
	noColor := flag.Bool("no-color", false, "Never colour the listing")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: peephole [options] [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Simulates a static method with constant folding and prints the folded code.\n")
		fmt.Fprintf(os.Stderr, "Arguments are passed to the entry method.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  peephole                                   # Fold the built-in sample\n")
		fmt.Fprintf(os.Stderr, "  peephole -bundle app.cbor -entry 'demo/Calc.run(I)I' 7 -o folded.cbor\n")
		fmt.Fprintf(os.Stderr, "  peephole -journal -sessions                # Show recorded sessions\n")
	}
	flag.Parse()

	cfg.args = flag.Args()
	cfg.color = !*noColor && (isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))

	if err := run(cfg, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadManifest(cfg config) (*manifest.Manifest, error) {
	if cfg.manifest != "" {
		return manifest.LoadFile(cfg.manifest)
	}
	m, err := manifest.FindAndLoad(".")
	if err != nil || m != nil {
		return m, err
	}
	return manifest.Default(), nil
}

func run(cfg config, stdout io.Writer) error {
	m, err := loadManifest(cfg)
	if err != nil {
		return err
	}

	verbosity := m.Log.Verbosity
	if cfg.verbosity >= 0 {
		verbosity = cfg.verbosity
	}
	commonlog.Configure(verbosity, m.LogFile())

	if cfg.journal {
		m.Journal.Enabled = true
	}
	store, err := m.OpenJournal()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}
	if cfg.sessions {
		return listSessions(store, stdout)
	}

	bundle, entry, err := loadProgram(cfg, m)
	if err != nil {
		return err
	}

	before := listings(bundle)

	v := vm.New(vm.WithOutput(stdout))
	if err := v.DefineBundle(bundle); err != nil {
		return err
	}
	opts := m.Options()
	if store != nil {
		opts = append(opts, peephole.WithRecorder(store))
	}
	o := peephole.Install(v, m.Predicate(), opts...)

	method, err := v.ResolveMethod(entry.Owner, entry.Name, entry.Desc)
	if err != nil {
		return err
	}
	args := cfg.args
	if len(args) == 0 {
		args = m.Simulate.Args
	}
	values, err := parseArgs(v, method, args)
	if err != nil {
		return err
	}

	log.Infof("Simulating %s", method)
	result, runErr := v.Invoke(method, values)
	if runErr != nil {
		fmt.Fprintf(stdout, "%s raised %v\n", method, runErr)
	} else if result != nil {
		fmt.Fprintf(stdout, "%s returned %v\n", method, result)
	}

	report(stdout, bundle, before, cfg.color)
	s := o.Stats()
	fmt.Fprintf(stdout, "Folded %d sites (%d arithmetic, %d invocations, %d strings), %d instructions removed, %d deferred\n",
		s.Folds(), s.Arithmetic, s.Invocations, s.Strings, s.Removed, s.Deferred)
	if store != nil {
		fmt.Fprintf(stdout, "Session %s recorded in %s\n", o.Session(), store.Path())
	}

	output := cfg.output
	if output == "" && m.Simulate.Output != "" {
		output = m.Resolve(m.Simulate.Output)
	}
	if output != "" {
		data, err := bytecode.MarshalBundle(bundle)
		if err != nil {
			return err
		}
		if err := os.WriteFile(output, data, 0644); err != nil {
			return fmt.Errorf("cannot write %s: %w", output, err)
		}
	}
	return runErr
}

// loadProgram reads the bundle and resolves the entry method, falling back
// to the built-in sample when neither flags nor the manifest name a bundle.
func loadProgram(cfg config, m *manifest.Manifest) (*bytecode.Bundle, manifest.Entry, error) {
	path := cfg.bundle
	if path == "" && m.Simulate.Bundle != "" {
		path = m.Resolve(m.Simulate.Bundle)
	}
	name := cfg.entry
	if name == "" {
		name = m.Simulate.Entry
	}

	var bundle *bytecode.Bundle
	if path == "" {
		bundle = sampleBundle()
		if name == "" {
			name = sampleEntry
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, manifest.Entry{}, fmt.Errorf("cannot read %s: %w", path, err)
		}
		if bundle, err = bytecode.UnmarshalBundle(data); err != nil {
			return nil, manifest.Entry{}, err
		}
	}
	if name == "" {
		return nil, manifest.Entry{}, fmt.Errorf("no entry method given")
	}

	entry, err := manifest.ParseEntry(name)
	if err != nil {
		return nil, manifest.Entry{}, err
	}
	if entry.Desc == "" {
		if entry.Desc, err = uniqueDesc(bundle, entry); err != nil {
			return nil, manifest.Entry{}, err
		}
	}
	return bundle, entry, nil
}

// uniqueDesc finds the descriptor of the only method called entry.Name.
func uniqueDesc(bundle *bytecode.Bundle, entry manifest.Entry) (string, error) {
	c := bundle.Class(entry.Owner)
	if c == nil {
		return "", fmt.Errorf("no class %s in bundle", entry.Owner)
	}
	var found []string
	for _, m := range c.Methods {
		if m.Name == entry.Name {
			found = append(found, m.Desc)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("no method %s", entry)
	case 1:
		return found[0], nil
	}
	return "", fmt.Errorf("%s is overloaded, add a descriptor: %v", entry, found)
}

// parseArgs converts command line arguments to the entry method's
// parameter types.
func parseArgs(v *vm.VM, m *vm.Method, args []string) ([]vm.Value, error) {
	types := m.Args()
	if len(args) != len(types) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", m, len(types), len(args))
	}
	values := make([]vm.Value, len(args))
	for i, s := range args {
		var err error
		switch t := types[i]; {
		case t.Sort == bytecode.SortLong:
			var n int64
			n, err = strconv.ParseInt(s, 10, 64)
			values[i] = vm.LongValue(n)
		case t.Sort == bytecode.SortFloat:
			var f float64
			f, err = strconv.ParseFloat(s, 32)
			values[i] = vm.FloatValue(float32(f))
		case t.Sort == bytecode.SortDouble:
			var f float64
			f, err = strconv.ParseFloat(s, 64)
			values[i] = vm.DoubleValue(f)
		case t.IsIntLike():
			var n int64
			n, err = strconv.ParseInt(s, 10, 32)
			values[i] = vm.IntValue(n)
		case t.Descriptor == bytecode.StringType.Descriptor:
			values[i] = v.Intern(s)
		default:
			return nil, fmt.Errorf("argument %d of %s: cannot pass %s from the command line", i, m, t)
		}
		if err != nil {
			return nil, fmt.Errorf("argument %d of %s: %w", i, m, err)
		}
	}
	return values, nil
}

func listSessions(store *journal.Store, w io.Writer) error {
	if store == nil {
		return fmt.Errorf("the journal is disabled")
	}
	sessions, err := store.Sessions()
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(sessions))
	for id := range sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "%s  %d folds\n", id, sessions[id])
	}
	return nil
}
