// Package manifest handles peephole.toml project configuration.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/chazu/peephole/journal"
	"github.com/chazu/peephole/peephole"
)

// Names tried, in order, when looking for a manifest in a directory.
var FileNames = []string{"peephole.toml", "peephole.yaml", "peephole.yml"}

// DefaultJournal is the journal location relative to the manifest.
const DefaultJournal = ".peephole/journal.db"

// Manifest represents a peephole.toml project configuration.
type Manifest struct {
	Project   Project   `toml:"project" yaml:"project"`
	Simulate  Simulate  `toml:"simulate" yaml:"simulate"`
	Fold      Fold      `toml:"fold" yaml:"fold"`
	Whitelist Whitelist `toml:"whitelist" yaml:"whitelist"`
	Purity    Purity    `toml:"purity" yaml:"purity"`
	Log       Log       `toml:"log" yaml:"log"`
	Journal   Journal   `toml:"journal" yaml:"journal"`

	// Dir is the directory containing the manifest file (set at load time).
	Dir string `toml:"-" yaml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name string `toml:"name" yaml:"name"`
}

// Simulate selects what the command line driver runs.
type Simulate struct {
	Bundle string   `toml:"bundle" yaml:"bundle"`
	Entry  string   `toml:"entry" yaml:"entry"`
	Args   []string `toml:"args" yaml:"args"`
	Output string   `toml:"output" yaml:"output"`
}

// Fold switches individual folders. Unset switches default to on.
type Fold struct {
	Arithmetic     *bool `toml:"arithmetic" yaml:"arithmetic"`
	Invocations    *bool `toml:"invocations" yaml:"invocations"`
	Strings        *bool `toml:"strings" yaml:"strings"`
	DeferNarrowing bool  `toml:"defer-narrowing" yaml:"defer-narrowing"`
}

// Whitelist limits folding to matching methods.
type Whitelist struct {
	Include []string `toml:"include" yaml:"include"`
	Exclude []string `toml:"exclude" yaml:"exclude"`
}

// Purity lists methods trusted to be free of side effects.
type Purity struct {
	Pure []string `toml:"pure" yaml:"pure"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity" yaml:"verbosity"`
	File      string `toml:"file" yaml:"file"`
}

// Journal configures the persistent fold journal.
type Journal struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

// Load parses the manifest found in the given directory.
func Load(dir string) (*Manifest, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, fmt.Errorf("cannot find %s in %s", FileNames[0], dir)
}

// LoadFile parses a manifest file. Files ending in .yaml or .yml are read
// as YAML, everything else as TOML.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	default:
		err = toml.Unmarshal(data, &m)
	}
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	if err := m.normalize(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a manifest, then loads and
// returns it. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		for _, name := range FileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return LoadFile(path)
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Default returns the configuration used when no manifest exists.
func Default() *Manifest {
	m := &Manifest{Dir: "."}
	m.normalize()
	return m
}

// normalize applies defaults and rewrites patterns into internal form.
func (m *Manifest) normalize() error {
	on := func(p **bool) {
		if *p == nil {
			t := true
			*p = &t
		}
	}
	on(&m.Fold.Arithmetic)
	on(&m.Fold.Invocations)
	on(&m.Fold.Strings)
	if m.Journal.Path == "" {
		m.Journal.Path = DefaultJournal
	}

	var errs []error
	for _, list := range []*[]string{&m.Whitelist.Include, &m.Whitelist.Exclude, &m.Purity.Pure} {
		for i, p := range *list {
			n, err := NormalizePattern(p)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			(*list)[i] = n
		}
	}
	return errors.Join(errs...)
}

// Resolve returns path relative to the manifest directory, unless it is
// already absolute.
func (m *Manifest) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(m.Dir, path)
}

// JournalPath returns the absolute location of the fold journal.
func (m *Manifest) JournalPath() string {
	return m.Resolve(m.Journal.Path)
}

// LogFile returns the log destination, or nil for stderr.
func (m *Manifest) LogFile() *string {
	if m.Log.File == "" {
		return nil
	}
	path := m.Resolve(m.Log.File)
	return &path
}

// Predicate builds the overlay whitelist. With no include patterns every
// method is accepted.
func (m *Manifest) Predicate() peephole.Whitelist {
	w := peephole.All()
	if len(m.Whitelist.Include) > 0 {
		w = peephole.Methods(m.Whitelist.Include...)
	}
	if len(m.Whitelist.Exclude) > 0 {
		w = peephole.Except(w, m.Whitelist.Exclude...)
	}
	return w
}

// Options converts the manifest into overlay options.
func (m *Manifest) Options() []peephole.Option {
	opts := []peephole.Option{
		peephole.WithArithmetic(*m.Fold.Arithmetic),
		peephole.WithInvocations(*m.Fold.Invocations),
		peephole.WithStrings(*m.Fold.Strings),
		peephole.WithDeferNarrowing(m.Fold.DeferNarrowing),
	}
	if len(m.Purity.Pure) > 0 {
		opts = append(opts, peephole.WithPure(m.Purity.Pure...))
	}
	return opts
}

// OpenJournal opens the configured journal. It returns nil when the
// journal is disabled.
func (m *Manifest) OpenJournal() (*journal.Store, error) {
	if !m.Journal.Enabled {
		return nil, nil
	}
	return journal.Open(m.JournalPath())
}
