package vm

import (
	"fmt"

	"github.com/chazu/peephole/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// ExecutionContext: execution state for a method invocation
// ---------------------------------------------------------------------------

// ExecutionContext is the state of one method invocation. Native methods
// get a context too, with no instructions.
type ExecutionContext struct {
	vm     *VM
	method *Method
	stack  *Stack
	locals *Locals
	cursor int   // index of the next instruction to execute
	result Value // set by return processors
}

func newContext(v *VM, m *Method, args []Value) *ExecutionContext {
	maxLocals, maxStack := 0, 0
	if m.Node != nil {
		maxLocals, maxStack = m.Node.MaxLocals, m.Node.MaxStack
	}
	ctx := &ExecutionContext{
		vm:     v,
		method: m,
		stack:  NewStack(maxStack),
		locals: NewLocals(maxLocals),
	}
	slot := 0
	for _, a := range args {
		ctx.locals.Store(slot, a)
		slot++
		if a.IsWide() {
			slot++
		}
	}
	return ctx
}

// VM returns the interpreter running this context.
func (c *ExecutionContext) VM() *VM { return c.vm }

// Method returns the runtime method being executed.
func (c *ExecutionContext) Method() *Method { return c.method }

// Node returns the method body, or nil for natives.
func (c *ExecutionContext) Node() *bytecode.Method { return c.method.Node }

// Instructions returns the mutable instruction list of the method body, or
// nil for natives.
func (c *ExecutionContext) Instructions() *bytecode.InsnList {
	if c.method.Node == nil {
		return nil
	}
	return c.method.Node.Instructions
}

// Owner returns the class declaring the method.
func (c *ExecutionContext) Owner() *Class { return c.method.Class }

// Stack returns the operand stack.
func (c *ExecutionContext) Stack() *Stack { return c.stack }

// Locals returns the local variable table.
func (c *ExecutionContext) Locals() *Locals { return c.locals }

// Cursor returns the index of the next instruction to execute. While a
// processor runs, the current instruction is at Cursor()-1.
func (c *ExecutionContext) Cursor() int { return c.cursor }

// SetCursor moves execution to index i.
func (c *ExecutionContext) SetCursor(i int) { c.cursor = i }

// Current returns the instruction being executed, or nil.
func (c *ExecutionContext) Current() *bytecode.Insn {
	list := c.Instructions()
	if list == nil || c.cursor < 1 || c.cursor > list.Len() {
		return nil
	}
	return list.Get(c.cursor - 1)
}

// Jump continues execution at label.
func (c *ExecutionContext) Jump(label *bytecode.Insn) error {
	i := c.Instructions().IndexOf(label)
	if i < 0 {
		return fmt.Errorf("vm: %s: jump to a label outside the method", c.method)
	}
	c.cursor = i
	return nil
}

// Return records the method result. A nil value means void.
func (c *ExecutionContext) Return(v Value) { c.result = v }

func (c *ExecutionContext) String() string {
	return fmt.Sprintf("%s@%d", c.method, c.cursor)
}

// ---------------------------------------------------------------------------
// Backtrace: the simulated call stack
// ---------------------------------------------------------------------------

// Backtrace lists the active contexts, outermost first.
type Backtrace struct {
	frames []*ExecutionContext
}

// Count returns the number of active frames.
func (b *Backtrace) Count() int { return len(b.frames) }

// Get returns frame i, where 0 is the outermost.
func (b *Backtrace) Get(i int) *ExecutionContext {
	if i < 0 || i >= len(b.frames) {
		return nil
	}
	return b.frames[i]
}

// Top returns the innermost frame, or nil.
func (b *Backtrace) Top() *ExecutionContext {
	return b.Get(len(b.frames) - 1)
}

func (b *Backtrace) push(ctx *ExecutionContext) {
	b.frames = append(b.frames, ctx)
}

func (b *Backtrace) pop() {
	n := len(b.frames)
	b.frames[n-1] = nil
	b.frames = b.frames[:n-1]
}
