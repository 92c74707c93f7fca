package vm

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/peephole/pkg/bytecode"
)

// DefaultMaxDepth bounds the simulated call stack.
const DefaultMaxDepth = 512

// ---------------------------------------------------------------------------
// VM: the bytecode interpreter
// ---------------------------------------------------------------------------

// VM interprets method bodies one instruction at a time, dispatching each
// through its processor table. Overlays change behaviour by replacing
// processors and registering method hooks; the dispatch loop itself never
// changes.
//
// A VM is single-threaded. Method bodies are executed in place, so the same
// body must not be simulated by two VMs at once.
type VM struct {
	iface     *Interface
	classes   map[string]*Class
	strings   map[string]*Instance
	backtrace Backtrace
	maxDepth  int
	out       io.Writer
	clock     func() time.Time
	log       commonlog.Logger
}

// Option configures a VM.
type Option func(*VM)

// WithOutput directs PrintStream output to w.
func WithOutput(w io.Writer) Option {
	return func(v *VM) { v.out = w }
}

// WithMaxDepth bounds the call stack. Deeper calls raise StackOverflowError.
func WithMaxDepth(n int) Option {
	return func(v *VM) { v.maxDepth = n }
}

// WithClock replaces the wall clock read by System.currentTimeMillis.
func WithClock(clock func() time.Time) Option {
	return func(v *VM) { v.clock = clock }
}

// New creates a VM with the runtime classes loaded and the default
// processors installed.
func New(opts ...Option) *VM {
	v := &VM{
		iface:    newInterface(),
		classes:  make(map[string]*Class),
		strings:  make(map[string]*Instance),
		maxDepth: DefaultMaxDepth,
		out:      os.Stdout,
		clock:    time.Now,
		log:      commonlog.GetLogger("vm"),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.bootstrap()
	v.installProcessors()
	return v
}

// Interface returns the VM's processor table and hooks.
func (v *VM) Interface() *Interface { return v.iface }

// GetProcessor returns the processor installed for op.
func (v *VM) GetProcessor(op bytecode.Opcode) Processor { return v.iface.GetProcessor(op) }

// SetProcessor installs p for op.
func (v *VM) SetProcessor(op bytecode.Opcode, p Processor) { v.iface.SetProcessor(op, p) }

// OnMethodEntry registers an entry hook for one method.
func (v *VM) OnMethodEntry(owner, name, desc string, hook MethodHook) {
	v.iface.OnMethodEntry(owner, name, desc, hook)
}

// OnMethodExit registers a hook that runs on every method exit.
func (v *VM) OnMethodExit(hook MethodHook) { v.iface.OnMethodExit(hook) }

// Backtrace returns the simulated call stack.
func (v *VM) Backtrace() *Backtrace { return &v.backtrace }

// Output returns the writer PrintStream natives print to.
func (v *VM) Output() io.Writer { return v.out }

// ---------------------------------------------------------------------------
// Class loading
// ---------------------------------------------------------------------------

// FindClass returns a loaded class, or nil.
func (v *VM) FindClass(name string) *Class { return v.classes[name] }

// DefineClass loads a class. Its superclass must already be loaded.
func (v *VM) DefineClass(node *bytecode.Class) (*Class, error) {
	if _, ok := v.classes[node.Name]; ok {
		return nil, fmt.Errorf("vm: class %s is already defined", node.Name)
	}
	var super *Class
	if node.Super != "" {
		if super = v.classes[node.Super]; super == nil {
			return nil, fmt.Errorf("%w: %s (superclass of %s)", ErrNoSuchClass, node.Super, node.Name)
		}
	}
	c := newClass(node.Name, super)
	c.Node = node
	c.fields = node.Fields
	for _, f := range node.Fields {
		if !f.IsStatic() {
			continue
		}
		t, err := bytecode.ParseType(f.Desc)
		if err != nil {
			return nil, fmt.Errorf("vm: field %s.%s: %w", node.Name, f.Name, err)
		}
		value := ZeroValue(t)
		if f.Value != nil {
			value = v.ConstantValue(f.Value)
		}
		c.SetStatic(f.Name, value)
	}
	for _, m := range node.Methods {
		if err := c.addBytecode(m); err != nil {
			return nil, err
		}
	}
	v.classes[c.Name] = c
	v.log.Debugf("defined class %s (%d methods)", c.Name, len(node.Methods))
	return c, nil
}

// DefineBundle loads every class of a bundle, superclasses first regardless
// of their order in the bundle.
func (v *VM) DefineBundle(b *bytecode.Bundle) error {
	pending := append([]*bytecode.Class(nil), b.Classes...)
	for len(pending) > 0 {
		var next []*bytecode.Class
		for _, node := range pending {
			if node.Super != "" && v.classes[node.Super] == nil {
				next = append(next, node)
				continue
			}
			if _, err := v.DefineClass(node); err != nil {
				return err
			}
		}
		if len(next) == len(pending) {
			return fmt.Errorf("%w: %s (superclass of %s)", ErrNoSuchClass, next[0].Super, next[0].Name)
		}
		pending = next
	}
	return nil
}

// ---------------------------------------------------------------------------
// Invocation
// ---------------------------------------------------------------------------

// ResolveMethod finds a method in owner or its superclasses.
func (v *VM) ResolveMethod(owner, name, desc string) (*Method, error) {
	c := v.classes[owner]
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchClass, owner)
	}
	m := c.Method(name, desc)
	if m == nil {
		return nil, fmt.Errorf("%w: %s.%s%s", ErrNoSuchMethod, owner, name, desc)
	}
	return m, nil
}

// InvokeStatic runs a static method from the host.
func (v *VM) InvokeStatic(owner, name, desc string, args ...Value) (Value, error) {
	m, err := v.ResolveMethod(owner, name, desc)
	if err != nil {
		return nil, err
	}
	if !m.Static {
		return nil, fmt.Errorf("vm: %s is not static", m)
	}
	return v.Invoke(m, args)
}

// Invoke runs m with the given arguments, receiver first for instance
// methods. The returned value is always unwrapped; nil means void.
func (v *VM) Invoke(m *Method, args []Value) (Value, error) {
	if v.backtrace.Count() >= v.maxDepth {
		return nil, v.NewFault("java/lang/StackOverflowError", m.String())
	}
	ctx := newContext(v, m, args)
	v.backtrace.push(ctx)
	v.iface.fireEntry(m, ctx)

	var result Value
	var err error
	if m.Native != nil {
		plain := make([]Value, len(args))
		for i, a := range args {
			plain[i] = Unwrap(a)
		}
		result, err = m.Native(ctx, plain)
	} else {
		result, err = v.execute(ctx)
	}

	v.iface.fireExit(ctx)
	v.backtrace.pop()
	if err != nil {
		return nil, err
	}
	if result != nil {
		result = Unwrap(result)
	}
	return result, nil
}

// execute is the dispatch loop for one bytecode frame.
func (v *VM) execute(ctx *ExecutionContext) (Value, error) {
	list := ctx.Instructions()
	for {
		if ctx.cursor >= list.Len() {
			return nil, fmt.Errorf("%w: %s", ErrFellOffEnd, ctx.method)
		}
		insn := list.Get(ctx.cursor)
		ctx.cursor++
		if insn.IsPseudo() {
			continue
		}
		res, err := v.step(insn, ctx)
		if err != nil {
			if v.handle(ctx, err) {
				continue
			}
			return nil, err
		}
		if res != Continue {
			return ctx.result, nil
		}
	}
}

// step runs one processor, turning stack misuse into an error.
func (v *VM) step(insn *bytecode.Insn, ctx *ExecutionContext) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			se, ok := r.(*StackError)
			if !ok {
				panic(r)
			}
			res, err = Abort, fmt.Errorf("%s: %s: %w", ctx, insn, se)
		}
	}()
	p := v.iface.processors[insn.Op]
	if p == nil {
		return Abort, fmt.Errorf("%w: %s in %s", ErrUnsupportedOpcode, insn.Op, ctx.method)
	}
	return p(insn, ctx)
}

// handle transfers control to the innermost handler catching err, if any.
func (v *VM) handle(ctx *ExecutionContext, err error) bool {
	f, ok := AsFault(err)
	if !ok {
		return false
	}
	tcb := bytecode.HandlerFor(ctx.Node(), ctx.cursor-1, func(catchType string) bool {
		c := v.classes[catchType]
		return c != nil && f.Class().IsSubclassOf(c)
	})
	if tcb == nil {
		v.log.Debugf("%s unwinds %s", f, ctx)
		return false
	}
	ctx.stack.Clear()
	ctx.stack.Push(f.Exception)
	return ctx.Jump(tcb.Handler) == nil
}
