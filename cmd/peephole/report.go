package main

import (
	"fmt"
	"io"

	"github.com/chazu/peephole/pkg/bytecode"
)

const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorBold  = "\033[1m"
)

// listings captures the code of every method in the bundle, keyed by
// method.
func listings(bundle *bytecode.Bundle) map[*bytecode.Method][]string {
	out := make(map[*bytecode.Method][]string)
	for _, c := range bundle.Classes {
		for _, m := range c.Methods {
			if m.Instructions != nil {
				out[m] = bytecode.Listing(m, true)
			}
		}
	}
	return out
}

// report prints every method whose code changed since before. Folding
// rewrites instructions in place, so the listings line up one to one.
func report(w io.Writer, bundle *bytecode.Bundle, before map[*bytecode.Method][]string, color bool) {
	paint := func(code, s string) string {
		if !color {
			return s
		}
		return code + s + colorReset
	}

	for _, c := range bundle.Classes {
		for _, m := range c.Methods {
			old, ok := before[m]
			if !ok {
				continue
			}
			now := bytecode.Listing(m, true)
			if equal(old, now) {
				continue
			}
			fmt.Fprintf(w, "%s\n", paint(colorBold, m.String()))
			for i := range now {
				switch {
				case i >= len(old):
					fmt.Fprintf(w, "  %4d  %s\n", i, paint(colorGreen, now[i]))
				case old[i] == now[i]:
					fmt.Fprintf(w, "  %4d  %s\n", i, now[i])
				default:
					fmt.Fprintf(w, "  %4d  %s -> %s\n", i, paint(colorRed, old[i]), paint(colorGreen, now[i]))
				}
			}
		}
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
