package vm

import "github.com/chazu/peephole/pkg/bytecode"

// Result tells the dispatch loop what to do after a processor returns.
type Result uint8

const (
	// Continue with the instruction at the cursor.
	Continue Result = iota
	// Abort leaves the method; its result is whatever the processor recorded.
	Abort
)

// Processor executes one instruction.
type Processor func(insn *bytecode.Insn, ctx *ExecutionContext) (Result, error)

// MethodHook observes a method invocation.
type MethodHook func(ctx *ExecutionContext)

// Interface holds an interpreter's processor table and method hooks. Each
// VM owns its own, so overlays installed on one VM never affect another.
type Interface struct {
	processors [256]Processor
	entry      map[string][]MethodHook
	exit       []MethodHook
}

func newInterface() *Interface {
	return &Interface{entry: make(map[string][]MethodHook)}
}

// GetProcessor returns the processor installed for op, or nil.
func (i *Interface) GetProcessor(op bytecode.Opcode) Processor {
	return i.processors[op]
}

// SetProcessor installs p for op.
func (i *Interface) SetProcessor(op bytecode.Opcode, p Processor) {
	i.processors[op] = p
}

// OnMethodEntry registers a hook that runs when the given method is entered,
// after its locals are populated and before its body runs.
func (i *Interface) OnMethodEntry(owner, name, desc string, hook MethodHook) {
	key := owner + "." + name + desc
	i.entry[key] = append(i.entry[key], hook)
}

// OnMethodExit registers a hook that runs whenever any method exits,
// normally or not, while its frame is still on the backtrace.
func (i *Interface) OnMethodExit(hook MethodHook) {
	i.exit = append(i.exit, hook)
}

func (i *Interface) fireEntry(m *Method, ctx *ExecutionContext) {
	for _, hook := range i.entry[m.String()] {
		hook(ctx)
	}
}

func (i *Interface) fireExit(ctx *ExecutionContext) {
	for _, hook := range i.exit {
		hook(ctx)
	}
}
