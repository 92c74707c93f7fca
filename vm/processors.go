package vm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/peephole/pkg/bytecode"
)

// installProcessors fills the processor table with the default semantics.
func (v *VM) installProcessors() {
	set := v.iface.SetProcessor

	set(bytecode.OpNop, func(*bytecode.Insn, *ExecutionContext) (Result, error) { return Continue, nil })
	set(bytecode.OpAconstNull, func(_ *bytecode.Insn, ctx *ExecutionContext) (Result, error) {
		ctx.stack.Push(Null)
		return Continue, nil
	})
	for _, op := range bytecode.AllOpcodes() {
		switch {
		case op >= bytecode.OpIconstM1 && op <= bytecode.OpLdc:
			set(op, pushConstant)
		case op.IsNumeric():
			set(op, evaluate)
		case op.IsLoad():
			set(op, loadLocal)
		case op.IsStore():
			set(op, storeLocal)
		case op.IsArrayLoad():
			set(op, loadElement)
		case op.IsArrayStore():
			set(op, storeElement)
		case op >= bytecode.OpIfeq && op <= bytecode.OpIfle,
			op >= bytecode.OpIfIcmpeq && op <= bytecode.OpIfAcmpne,
			op == bytecode.OpIfnull || op == bytecode.OpIfnonnull:
			set(op, branch)
		case op.IsReturn():
			set(op, returnValue)
		case op.IsInvoke():
			set(op, invoke)
		}
	}

	set(bytecode.OpPop, shuffle(1, []int{}))
	set(bytecode.OpPop2, shuffle(2, []int{}))
	set(bytecode.OpDup, shuffle(1, []int{0, 0}))
	set(bytecode.OpDupX1, shuffle(2, []int{1, 0, 1}))
	set(bytecode.OpDupX2, shuffle(3, []int{2, 0, 1, 2}))
	set(bytecode.OpDup2, shuffle(2, []int{0, 1, 0, 1}))
	set(bytecode.OpDup2X1, shuffle(3, []int{1, 2, 0, 1, 2}))
	set(bytecode.OpDup2X2, shuffle(4, []int{2, 3, 0, 1, 2, 3}))
	set(bytecode.OpSwap, shuffle(2, []int{1, 0}))

	set(bytecode.OpIinc, func(insn *bytecode.Insn, ctx *ExecutionContext) (Result, error) {
		ctx.locals.Store(insn.Var, IntValue(ctx.locals.Load(insn.Var).AsInt()+insn.Operand))
		return Continue, nil
	})
	set(bytecode.OpGoto, func(insn *bytecode.Insn, ctx *ExecutionContext) (Result, error) {
		return Continue, ctx.Jump(insn.Target)
	})
	set(bytecode.OpTableswitch, switchOn)
	set(bytecode.OpLookupswitch, switchOn)

	set(bytecode.OpGetstatic, getStatic)
	set(bytecode.OpPutstatic, putStatic)
	set(bytecode.OpGetfield, getField)
	set(bytecode.OpPutfield, putField)

	set(bytecode.OpNew, newInstance)
	set(bytecode.OpNewarray, newArray)
	set(bytecode.OpAnewarray, newArray)
	set(bytecode.OpArraylength, func(_ *bytecode.Insn, ctx *ExecutionContext) (Result, error) {
		arr, ok := AsArray(ctx.stack.Pop())
		if !ok {
			return Abort, ctx.vm.NewFault("java/lang/NullPointerException", "arraylength")
		}
		ctx.stack.Push(IntValue(arr.Len()))
		return Continue, nil
	})
	set(bytecode.OpAthrow, func(_ *bytecode.Insn, ctx *ExecutionContext) (Result, error) {
		ex, ok := AsInstance(ctx.stack.Pop())
		if !ok {
			return Abort, ctx.vm.NewFault("java/lang/NullPointerException", "athrow")
		}
		return Abort, &Fault{Exception: ex}
	})
	set(bytecode.OpCheckcast, func(insn *bytecode.Insn, ctx *ExecutionContext) (Result, error) {
		if ok, known := ctx.vm.isInstance(ctx.stack.Peek(), insn.Class); known && !ok {
			return Abort, ctx.vm.NewFault("java/lang/ClassCastException", insn.Class)
		}
		return Continue, nil
	})
	set(bytecode.OpInstanceof, func(insn *bytecode.Insn, ctx *ExecutionContext) (Result, error) {
		ok, _ := ctx.vm.isInstance(ctx.stack.Pop(), insn.Class)
		ctx.stack.Push(boolValue(ok))
		return Continue, nil
	})
}

func boolValue(b bool) Value {
	if b {
		return IntValue(1)
	}
	return IntValue(0)
}

// ---------------------------------------------------------------------------
// Constants, locals and stack shuffles
// ---------------------------------------------------------------------------

func pushConstant(insn *bytecode.Insn, ctx *ExecutionContext) (Result, error) {
	c, ok := bytecode.PushedConstant(insn)
	if !ok {
		return Abort, fmt.Errorf("vm: %s has no constant", insn)
	}
	ctx.stack.PushGeneric(ctx.vm.ConstantValue(c))
	return Continue, nil
}

func loadLocal(insn *bytecode.Insn, ctx *ExecutionContext) (Result, error) {
	ctx.stack.PushGeneric(ctx.locals.Load(insn.Var))
	return Continue, nil
}

func storeLocal(insn *bytecode.Insn, ctx *ExecutionContext) (Result, error) {
	var v Value
	if insn.Op == bytecode.OpLstore || insn.Op == bytecode.OpDstore {
		v = ctx.stack.PopWide()
	} else {
		v = ctx.stack.Pop()
	}
	ctx.locals.Store(insn.Var, v)
	return Continue, nil
}

// shuffle builds a processor for the POP, DUP and SWAP families. It removes
// n raw slots and pushes them back in the given order, where 0 is the
// deepest removed slot. Working on raw slots keeps a wide value and its Top
// filler adjacent, as the JVM's category rules require.
func shuffle(n int, order []int) Processor {
	return func(_ *bytecode.Insn, ctx *ExecutionContext) (Result, error) {
		taken := make([]Value, n)
		for i := n - 1; i >= 0; i-- {
			taken[i] = ctx.stack.popSlot()
		}
		for _, i := range order {
			ctx.stack.pushSlot(taken[i])
		}
		return Continue, nil
	}
}

// ---------------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------------

// PopOperands pops the operands of a numeric opcode, returning them bottom
// first. Widths come from the opcode metadata.
func PopOperands(op bytecode.Opcode, s *Stack) []Value {
	in := bytecode.GetOpcodeInfo(op).In
	args := make([]Value, len(in))
	for i := len(in) - 1; i >= 0; i-- {
		if in[i].IsWide() {
			args[i] = s.PopWide()
		} else {
			args[i] = s.Pop()
		}
	}
	return args
}

func evaluate(insn *bytecode.Insn, ctx *ExecutionContext) (Result, error) {
	args := PopOperands(insn.Op, ctx.stack)
	for i, a := range args {
		args[i] = Unwrap(a)
	}
	result, err := Evaluate(insn.Op, args...)
	if errors.Is(err, ErrDivideByZero) {
		return Abort, ctx.vm.NewFault("java/lang/ArithmeticException", err.Error())
	}
	if err != nil {
		return Abort, err
	}
	ctx.stack.PushGeneric(result)
	return Continue, nil
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

func branch(insn *bytecode.Insn, ctx *ExecutionContext) (Result, error) {
	var taken bool
	switch op := insn.Op; {
	case op == bytecode.OpIfnull || op == bytecode.OpIfnonnull:
		taken = IsNull(ctx.stack.Pop()) == (op == bytecode.OpIfnull)
	case op == bytecode.OpIfAcmpeq || op == bytecode.OpIfAcmpne:
		b := Unwrap(ctx.stack.Pop())
		a := Unwrap(ctx.stack.Pop())
		taken = (a == b) == (op == bytecode.OpIfAcmpeq)
	case op >= bytecode.OpIfIcmpeq:
		b := ctx.stack.Pop().AsInt()
		a := ctx.stack.Pop().AsInt()
		taken = compareInt(op-bytecode.OpIfIcmpeq, a, b)
	default:
		taken = compareInt(op-bytecode.OpIfeq, ctx.stack.Pop().AsInt(), 0)
	}
	if taken {
		return Continue, ctx.Jump(insn.Target)
	}
	return Continue, nil
}

// compareInt evaluates condition k in the order eq, ne, lt, ge, gt, le.
func compareInt(k bytecode.Opcode, a, b int32) bool {
	switch k {
	case 0:
		return a == b
	case 1:
		return a != b
	case 2:
		return a < b
	case 3:
		return a >= b
	case 4:
		return a > b
	}
	return a <= b
}

func switchOn(insn *bytecode.Insn, ctx *ExecutionContext) (Result, error) {
	key := ctx.stack.Pop().AsInt()
	return Continue, ctx.Jump(insn.SwitchTarget(key))
}

func returnValue(insn *bytecode.Insn, ctx *ExecutionContext) (Result, error) {
	switch insn.Op {
	case bytecode.OpReturn:
		ctx.Return(nil)
	case bytecode.OpLreturn, bytecode.OpDreturn:
		ctx.Return(ctx.stack.PopWide())
	default:
		ctx.Return(ctx.stack.Pop())
	}
	return Abort, nil
}

// ---------------------------------------------------------------------------
// Fields
// ---------------------------------------------------------------------------

func popTyped(s *Stack, desc string) Value {
	if desc == "J" || desc == "D" {
		return s.PopWide()
	}
	return s.Pop()
}

// staticOwner finds the class declaring a static field, searching supers.
func (v *VM) staticOwner(owner, name string) (*Class, error) {
	for c := v.classes[owner]; c != nil; c = c.Super {
		if _, ok := c.statics[name]; ok {
			return c, nil
		}
	}
	return nil, fmt.Errorf("vm: no static field %s.%s", owner, name)
}

func getStatic(insn *bytecode.Insn, ctx *ExecutionContext) (Result, error) {
	c, err := ctx.vm.staticOwner(insn.Owner, insn.Name)
	if err != nil {
		return Abort, err
	}
	ctx.stack.PushGeneric(c.Static(insn.Name))
	return Continue, nil
}

func putStatic(insn *bytecode.Insn, ctx *ExecutionContext) (Result, error) {
	c, err := ctx.vm.staticOwner(insn.Owner, insn.Name)
	if err != nil {
		return Abort, err
	}
	c.SetStatic(insn.Name, popTyped(ctx.stack, insn.Desc))
	return Continue, nil
}

func getField(insn *bytecode.Insn, ctx *ExecutionContext) (Result, error) {
	obj, ok := AsInstance(ctx.stack.Pop())
	if !ok {
		return Abort, ctx.vm.NewFault("java/lang/NullPointerException", "getfield "+insn.Name)
	}
	v := obj.Field(insn.Name)
	if v == nil {
		t, err := bytecode.ParseType(insn.Desc)
		if err != nil {
			return Abort, err
		}
		v = ZeroValue(t)
	}
	ctx.stack.PushGeneric(v)
	return Continue, nil
}

func putField(insn *bytecode.Insn, ctx *ExecutionContext) (Result, error) {
	v := popTyped(ctx.stack, insn.Desc)
	obj, ok := AsInstance(ctx.stack.Pop())
	if !ok {
		return Abort, ctx.vm.NewFault("java/lang/NullPointerException", "putfield "+insn.Name)
	}
	obj.SetField(insn.Name, v)
	return Continue, nil
}

// ---------------------------------------------------------------------------
// Objects and arrays
// ---------------------------------------------------------------------------

func newInstance(insn *bytecode.Insn, ctx *ExecutionContext) (Result, error) {
	c := ctx.vm.FindClass(insn.Class)
	if c == nil {
		return Abort, fmt.Errorf("%w: %s", ErrNoSuchClass, insn.Class)
	}
	ctx.stack.Push(c.New())
	return Continue, nil
}

func newArray(insn *bytecode.Insn, ctx *ExecutionContext) (Result, error) {
	var elem bytecode.Type
	var err error
	if insn.Op == bytecode.OpNewarray {
		elem, err = bytecode.ArrayElementType(insn.Operand)
	} else {
		elem = bytecode.ObjectType(insn.Class)
		if strings.HasPrefix(insn.Class, "[") {
			elem, err = bytecode.ParseType(insn.Class)
		}
	}
	if err != nil {
		return Abort, err
	}
	n := ctx.stack.Pop().AsInt()
	if n < 0 {
		return Abort, ctx.vm.NewFault("java/lang/NegativeArraySizeException", strconv.Itoa(int(n)))
	}
	ctx.stack.Push(NewArray(elem, int(n)))
	return Continue, nil
}

// checkIndex validates an array access, returning a fault on failure.
func checkIndex(ctx *ExecutionContext, ref Value, index int32) (*Array, error) {
	arr, ok := AsArray(ref)
	if !ok {
		return nil, ctx.vm.NewFault("java/lang/NullPointerException", "array access")
	}
	if index < 0 || int(index) >= arr.Len() {
		return nil, ctx.vm.NewFault("java/lang/ArrayIndexOutOfBoundsException",
			fmt.Sprintf("Index %d out of bounds for length %d", index, arr.Len()))
	}
	return arr, nil
}

func loadElement(insn *bytecode.Insn, ctx *ExecutionContext) (Result, error) {
	index := ctx.stack.Pop().AsInt()
	arr, err := checkIndex(ctx, ctx.stack.Pop(), index)
	if err != nil {
		return Abort, err
	}
	ctx.stack.PushGeneric(arr.Get(int(index)))
	return Continue, nil
}

func storeElement(insn *bytecode.Insn, ctx *ExecutionContext) (Result, error) {
	var v Value
	if insn.Op == bytecode.OpLastore || insn.Op == bytecode.OpDastore {
		v = ctx.stack.PopWide()
	} else {
		v = ctx.stack.Pop()
	}
	index := ctx.stack.Pop().AsInt()
	arr, err := checkIndex(ctx, ctx.stack.Pop(), index)
	if err != nil {
		return Abort, err
	}
	arr.Set(int(index), v)
	return Continue, nil
}

// isInstance reports whether v is an instance of the named class. known is
// false when the answer cannot be determined, such as for arrays.
func (v *VM) isInstance(val Value, class string) (ok, known bool) {
	if IsNull(val) {
		return false, true
	}
	inst, isInst := AsInstance(val)
	c := v.classes[class]
	if !isInst || c == nil {
		return false, false
	}
	return inst.class.IsSubclassOf(c), true
}

// ---------------------------------------------------------------------------
// Invocation
// ---------------------------------------------------------------------------

// PopArguments pops the arguments of a call to desc, returning them first
// argument first. Values are returned as found on the stack.
func PopArguments(s *Stack, desc string) ([]Value, error) {
	types, _, err := bytecode.ParseMethodType(desc)
	if err != nil {
		return nil, err
	}
	args := make([]Value, len(types))
	for i := len(types) - 1; i >= 0; i-- {
		if types[i].IsWide() {
			args[i] = s.PopWide()
		} else {
			args[i] = s.Pop()
		}
	}
	return args, nil
}

func invoke(insn *bytecode.Insn, ctx *ExecutionContext) (Result, error) {
	args, err := PopArguments(ctx.stack, insn.Desc)
	if err != nil {
		return Abort, err
	}

	var m *Method
	if insn.Op == bytecode.OpInvokestatic {
		if m, err = ctx.vm.ResolveMethod(insn.Owner, insn.Name, insn.Desc); err != nil {
			return Abort, err
		}
	} else {
		receiver := ctx.stack.Pop()
		inst, ok := AsInstance(receiver)
		if !ok {
			return Abort, ctx.vm.NewFault("java/lang/NullPointerException", "invoke "+insn.Name)
		}
		owner := insn.Owner
		if insn.Op == bytecode.OpInvokevirtual {
			owner = inst.class.Name
		}
		if m, err = ctx.vm.ResolveMethod(owner, insn.Name, insn.Desc); err != nil {
			return Abort, err
		}
		args = append([]Value{receiver}, args...)
	}

	result, err := ctx.vm.Invoke(m, args)
	if err != nil {
		return Abort, err
	}
	if result != nil {
		ctx.stack.PushGeneric(result)
	}
	return Continue, nil
}
