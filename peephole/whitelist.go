package peephole

import (
	"path"

	"github.com/chazu/peephole/vm"
)

// Whitelist decides whether the overlay may track and rewrite the method
// running in ctx.
type Whitelist func(ctx *vm.ExecutionContext) bool

// All accepts every bytecode method.
func All() Whitelist {
	return func(*vm.ExecutionContext) bool { return true }
}

// None accepts nothing.
func None() Whitelist {
	return func(*vm.ExecutionContext) bool { return false }
}

// Methods accepts methods whose owner.name or owner.name+desc matches one of
// patterns, using path.Match syntax: "demo/*" accepts every method of every
// class in package demo.
func Methods(patterns ...string) Whitelist {
	return func(ctx *vm.ExecutionContext) bool {
		m := ctx.Method()
		return matchMethod(patterns, m.Class.Name, m.Name, m.Desc)
	}
}

// Except accepts what w accepts unless the method matches one of patterns.
func Except(w Whitelist, patterns ...string) Whitelist {
	if len(patterns) == 0 {
		return w
	}
	exclude := Methods(patterns...)
	return func(ctx *vm.ExecutionContext) bool {
		return w(ctx) && !exclude(ctx)
	}
}

func matchMethod(patterns []string, owner, name, desc string) bool {
	short := owner + "." + name
	full := short + desc
	for _, p := range patterns {
		if ok, _ := path.Match(p, short); ok {
			return true
		}
		if ok, _ := path.Match(p, full); ok {
			return true
		}
	}
	return false
}
