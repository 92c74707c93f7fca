package manifest

import (
	"fmt"
	"path"
	"strings"

	"github.com/chazu/peephole/pkg/bytecode"
)

// NormalizePattern converts a method pattern into the internal form
// matched by the overlay: owner.name or owner.name+desc, with slashes
// between package segments. Patterns use path.Match syntax, so a literal
// '[' in a descriptor must be escaped.
// "com.example.Calc#compute" -> "com/example/Calc.compute"
// "demo/*" -> "demo/*"
func NormalizePattern(p string) (string, error) {
	p = internal(p)
	if p == "" {
		return "", fmt.Errorf("empty method pattern")
	}
	if _, err := path.Match(p, ""); err != nil {
		return "", fmt.Errorf("invalid method pattern %q: %w", p, err)
	}
	return p, nil
}

func internal(s string) string {
	s = strings.TrimSpace(s)
	if class, member, ok := strings.Cut(s, "#"); ok {
		s = strings.ReplaceAll(class, ".", "/") + "." + member
	}
	return s
}

// Entry names a method: owner, name and an optional descriptor.
type Entry struct {
	Owner string
	Name  string
	Desc  string
}

func (e Entry) String() string {
	return e.Owner + "." + e.Name + e.Desc
}

// ParseEntry parses "demo/Calc.compute()I" or "demo.Calc#compute()I".
// The descriptor may be left out.
func ParseEntry(s string) (Entry, error) {
	var e Entry
	rest := internal(s)
	if i := strings.IndexByte(rest, '('); i >= 0 {
		rest, e.Desc = rest[:i], rest[i:]
		if _, _, err := bytecode.ParseMethodType(e.Desc); err != nil {
			return Entry{}, fmt.Errorf("entry %q: %w", s, err)
		}
	}
	if strings.ContainsAny(rest, "*?[") {
		return Entry{}, fmt.Errorf("entry %q must name a single method", s)
	}
	dot := strings.LastIndexByte(rest, '.')
	if dot <= 0 || dot == len(rest)-1 {
		return Entry{}, fmt.Errorf("entry %q is not of the form owner.name", s)
	}
	e.Owner, e.Name = rest[:dot], rest[dot+1:]
	return e, nil
}
