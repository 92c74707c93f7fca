package peephole

import (
	"bytes"
	"math"
	"testing"

	"github.com/chazu/peephole/pkg/bytecode"
	"github.com/chazu/peephole/vm"
)

// ---------------------------------------------------------------------------
// Programs
// ---------------------------------------------------------------------------

const (
	systemClass = "java/lang/System"
	mathClass   = "java/lang/Math"
	printDesc   = "Ljava/io/PrintStream;"
)

// construct emits new String(new byte[]{...}) where each element is pushed
// by the matching emit function.
func construct(b *bytecode.Builder, elems ...func(*bytecode.Builder)) *bytecode.Builder {
	b.Type(bytecode.OpNew, vm.StringClass).Insn(bytecode.OpDup).
		Push(int32(len(elems))).Int(bytecode.OpNewarray, bytecode.TByte)
	for i, emit := range elems {
		b.Insn(bytecode.OpDup).Push(int32(i))
		emit(b)
		b.Insn(bytecode.OpBastore)
	}
	return b.Invoke(bytecode.OpInvokespecial, vm.StringClass, "<init>", "([B)V")
}

func char(c byte) func(*bytecode.Builder) {
	return func(b *bytecode.Builder) { b.Push(int32(int8(c))) }
}

func local(i int) func(*bytecode.Builder) {
	return func(b *bytecode.Builder) { b.Var(bytecode.OpIload, i) }
}

func length(b *bytecode.Builder) *bytecode.Builder {
	return b.Invoke(bytecode.OpInvokevirtual, vm.StringClass, "length", "()I")
}

func printLine(b *bytecode.Builder, desc string) *bytecode.Builder {
	return b.Invoke(bytecode.OpInvokevirtual, vm.PrintStreamClass, "println", desc)
}

func systemOut(b *bytecode.Builder) *bytecode.Builder {
	return b.Field(bytecode.OpGetstatic, systemClass, "out", printDesc)
}

// bump increments the counter field and returns it.
func bump() *bytecode.Method {
	return static("bump", "()I").
		Field(bytecode.OpGetstatic, owner, "counter", "I").Push(int32(1)).Insn(bytecode.OpIadd, bytecode.OpDup).
		Field(bytecode.OpPutstatic, owner, "counter", "I").Insn(bytecode.OpIreturn).Build()
}

func square() *bytecode.Method {
	return static("square", "(I)I").
		Var(bytecode.OpIload, 0).Insn(bytecode.OpDup, bytecode.OpImul, bytecode.OpIreturn).Build()
}

// fact is the recursive factorial.
func fact() *bytecode.Method {
	b := static("fact", "(I)I")
	rec := b.Label()
	return b.Var(bytecode.OpIload, 0).Jump(bytecode.OpIfgt, rec).
		Push(int32(1)).Insn(bytecode.OpIreturn).
		Mark(rec).
		Var(bytecode.OpIload, 0).Var(bytecode.OpIload, 0).Push(int32(1)).Insn(bytecode.OpIsub).
		Invoke(bytecode.OpInvokestatic, owner, "fact", "(I)I").
		Insn(bytecode.OpImul, bytecode.OpIreturn).Build()
}

// reenter returns n + (10 + 3) for n > 0, calling itself on n-1 between
// the two pushes of the constant sum and discarding the result.
func reenter() *bytecode.Method {
	b := static("reenter", "(I)I")
	body := b.Label()
	return b.Var(bytecode.OpIload, 0).Jump(bytecode.OpIfne, body).
		Push(int32(0)).Insn(bytecode.OpIreturn).
		Mark(body).
		Var(bytecode.OpIload, 0).Push(int32(10)).
		Var(bytecode.OpIload, 0).Push(int32(1)).Insn(bytecode.OpIsub).
		Invoke(bytecode.OpInvokestatic, owner, "reenter", "(I)I").Insn(bytecode.OpPop).
		Push(int32(3)).Insn(bytecode.OpIadd, bytecode.OpIadd, bytecode.OpIreturn).Build()
}

// branchOut leaves a constant on the stack across a conditional return:
// 1 + 2 when n != 0, otherwise 1.
func branchOut() *bytecode.Method {
	b := static("run", "(I)I")
	out := b.Label()
	return b.Push(int32(1)).Var(bytecode.OpIload, 0).Jump(bytecode.OpIfeq, out).
		Push(int32(2)).Insn(bytecode.OpIadd, bytecode.OpIreturn).
		Mark(out).Insn(bytecode.OpIreturn).Build()
}

// sumLoop adds 2*3 to an accumulator three times.
func sumLoop() *bytecode.Method {
	b := static("run", "()I")
	head, done := b.Label(), b.Label()
	return b.Push(int32(0)).Var(bytecode.OpIstore, 0).
		Push(int32(0)).Var(bytecode.OpIstore, 1).
		Mark(head).
		Var(bytecode.OpIload, 1).Push(int32(3)).Jump(bytecode.OpIfIcmpge, done).
		Var(bytecode.OpIload, 0).Push(int32(2)).Push(int32(3)).Insn(bytecode.OpImul, bytecode.OpIadd).
		Var(bytecode.OpIstore, 0).
		Iinc(1, 1).Jump(bytecode.OpGoto, head).
		Mark(done).
		Var(bytecode.OpIload, 0).Insn(bytecode.OpIreturn).Build()
}

// ---------------------------------------------------------------------------
// Differential runs
// ---------------------------------------------------------------------------

type scenario struct {
	name    string
	methods func() []*bytecode.Method // entry point first
	inputs  [][]vm.Value
	opts    []Option
}

func one(m func() *bytecode.Method) func() []*bytecode.Method {
	return func() []*bytecode.Method { return []*bytecode.Method{m()} }
}

func ints(xs ...int32) [][]vm.Value {
	out := make([][]vm.Value, len(xs))
	for i, x := range xs {
		out[i] = []vm.Value{vm.IntValue(x)}
	}
	return out
}

var scenarios = []scenario{
	{name: "nested", methods: one(nested)},
	{
		name: "parameter",
		methods: one(func() *bytecode.Method {
			return static("run", "(I)I").Var(bytecode.OpIload, 0).
				Push(int32(2)).Push(int32(3)).Insn(bytecode.OpImul, bytecode.OpIadd, bytecode.OpIreturn).Build()
		}),
		inputs: ints(0, 5, -7),
	},
	{
		name: "long",
		methods: one(func() *bytecode.Method {
			return static("run", "(J)J").Var(bytecode.OpLload, 0).
				Push(int32(2)).Insn(bytecode.OpI2l).Push(int64(3)).Insn(bytecode.OpLmul, bytecode.OpLadd).
				Push(int64(-1)).Insn(bytecode.OpLxor, bytecode.OpLreturn).Build()
		}),
		inputs: [][]vm.Value{{vm.LongValue(1)}, {vm.LongValue(-5)}},
	},
	{
		name: "floating",
		methods: one(func() *bytecode.Method {
			return static("run", "()I").
				Push(1.5).Push(2.25).Insn(bytecode.OpDmul, bytecode.OpD2i).
				Push(float32(3.5)).Insn(bytecode.OpF2i, bytecode.OpIadd, bytecode.OpIreturn).Build()
		}),
	},
	{
		name: "comparisons",
		methods: one(func() *bytecode.Method {
			return static("run", "()I").
				Push(int64(5)).Push(int64(7)).Insn(bytecode.OpLcmp).
				Push(float32(1)).Push(float32(1)).Insn(bytecode.OpFcmpg, bytecode.OpIadd).
				Push(math.NaN()).Push(0.0).Insn(bytecode.OpDcmpl, bytecode.OpIadd, bytecode.OpIreturn).Build()
		}),
	},
	{
		name: "locals",
		methods: one(func() *bytecode.Method {
			return static("run", "(I)I").
				Push(int32(4)).Var(bytecode.OpIstore, 1).
				Var(bytecode.OpIload, 1).Push(int32(5)).Insn(bytecode.OpImul).Var(bytecode.OpIstore, 2).
				Var(bytecode.OpIload, 2).Var(bytecode.OpIload, 0).Insn(bytecode.OpIadd, bytecode.OpIreturn).Build()
		}),
		inputs: ints(1, 100),
	},
	{
		name: "iinc",
		methods: one(func() *bytecode.Method {
			return static("run", "()I").
				Push(int32(1)).Var(bytecode.OpIstore, 0).Iinc(0, 41).
				Var(bytecode.OpIload, 0).Push(int32(2)).Insn(bytecode.OpImul, bytecode.OpIreturn).Build()
		}),
	},
	{
		name: "branch join",
		methods: one(func() *bytecode.Method {
			b := static("run", "(I)I")
			other, join := b.Label(), b.Label()
			return b.Var(bytecode.OpIload, 0).Jump(bytecode.OpIfeq, other).
				Push(int32(1)).Jump(bytecode.OpGoto, join).
				Mark(other).Push(int32(2)).
				Mark(join).Push(int32(3)).Insn(bytecode.OpIadd, bytecode.OpIreturn).Build()
		}),
		inputs: ints(0, 1),
	},
	{name: "loop", methods: one(sumLoop)},
	{name: "recursion inside a constant sum", methods: one(reenter), inputs: ints(2, 0, 1, 3)},
	{name: "conditional exit", methods: one(branchOut), inputs: ints(5, 0, -1)},
	{
		name: "switch exit",
		methods: one(func() *bytecode.Method {
			b := static("run", "(I)I")
			zero, other := b.Label(), b.Label()
			return b.Push(int32(1)).Var(bytecode.OpIload, 0).TableSwitch(0, other, zero).
				Mark(zero).Push(int32(2)).Insn(bytecode.OpIadd, bytecode.OpIreturn).
				Mark(other).Insn(bytecode.OpIreturn).Build()
		}),
		inputs: ints(0, 7, 0),
	},
	{
		name: "goto past a constant",
		methods: one(func() *bytecode.Method {
			b := static("run", "(I)I")
			skip, done := b.Label(), b.Label()
			return b.Push(int32(4)).Var(bytecode.OpIload, 0).Jump(bytecode.OpIfne, skip).
				Push(int32(5)).Insn(bytecode.OpImul).Jump(bytecode.OpGoto, done).
				Mark(skip).Push(int32(-1)).Insn(bytecode.OpIadd).
				Mark(done).Insn(bytecode.OpIreturn).Build()
		}),
		inputs: ints(0, 1, 0),
	},
	{
		name: "caught parameter division",
		methods: one(func() *bytecode.Method {
			b := static("run", "(I)I")
			start, end, handler := b.Label(), b.Label(), b.Label()
			return b.Mark(start).
				Push(int32(12)).Var(bytecode.OpIload, 0).Insn(bytecode.OpIdiv, bytecode.OpIreturn).
				Mark(end).
				Mark(handler).Insn(bytecode.OpPop).Push(int32(2)).Push(int32(3)).Insn(bytecode.OpImul, bytecode.OpIreturn).
				TryCatch(start, end, handler, "java/lang/ArithmeticException").Build()
		}),
		inputs: ints(0, 4),
	},
	{
		name: "caught constant division",
		methods: one(func() *bytecode.Method {
			b := static("run", "()I")
			start, end, handler := b.Label(), b.Label(), b.Label()
			return b.Mark(start).
				Push(int32(6)).Push(int32(0)).Insn(bytecode.OpIdiv, bytecode.OpIreturn).
				Mark(end).
				Mark(handler).Insn(bytecode.OpPop).Push(int32(-1)).Insn(bytecode.OpIreturn).
				TryCatch(start, end, handler, "java/lang/ArithmeticException").Build()
		}),
	},
	{
		name: "uncaught division",
		methods: one(func() *bytecode.Method {
			return static("run", "()I").Push(int32(1)).Push(int32(0)).Insn(bytecode.OpIdiv, bytecode.OpIreturn).Build()
		}),
	},
	{
		name: "println",
		methods: one(func() *bytecode.Method {
			b := systemOut(static("run", "()V")).Push(int32(2)).Push(int32(3)).Insn(bytecode.OpIadd)
			return printLine(b, "(I)V").Insn(bytecode.OpReturn).Build()
		}),
	},
	{
		name: "impure call",
		methods: func() []*bytecode.Method {
			run := static("run", "()I").Invoke(bytecode.OpInvokestatic, owner, "bump", "()I").
				Push(int32(2)).Insn(bytecode.OpImul, bytecode.OpIreturn).Build()
			return []*bytecode.Method{run, bump()}
		},
	},
	{
		name: "pure call",
		methods: func() []*bytecode.Method {
			run := static("run", "()I").Push(int32(7)).Invoke(bytecode.OpInvokestatic, owner, "square", "(I)I").
				Push(int32(1)).Insn(bytecode.OpIadd, bytecode.OpIreturn).Build()
			return []*bytecode.Method{run, square()}
		},
	},
	{
		name: "clock",
		methods: one(func() *bytecode.Method {
			return static("run", "()J").Invoke(bytecode.OpInvokestatic, systemClass, "currentTimeMillis", "()J").
				Insn(bytecode.OpLreturn).Build()
		}),
	},
	{
		name: "string length",
		methods: one(func() *bytecode.Method {
			return length(construct(static("run", "()I"), char('h'), char('i'))).Insn(bytecode.OpIreturn).Build()
		}),
	},
	{
		name: "string println",
		methods: one(func() *bytecode.Method {
			b := construct(systemOut(static("run", "()V")), char('o'), char('k'))
			return printLine(b, "(Ljava/lang/String;)V").Insn(bytecode.OpReturn).Build()
		}),
	},
	{
		name: "string with parameter byte",
		methods: one(func() *bytecode.Method {
			return length(construct(static("run", "(I)I"), char('h'), local(0))).Insn(bytecode.OpIreturn).Build()
		}),
		inputs: ints('i', 0x80, 0x1F600),
	},
	{
		name: "invalid utf-8",
		methods: one(func() *bytecode.Method {
			b := construct(systemOut(static("run", "()V")), char('a'), char(0xC3), char(0x28))
			return printLine(b, "(Ljava/lang/String;)V").Insn(bytecode.OpReturn).Build()
		}),
	},
	{
		name: "shuffles",
		methods: one(func() *bytecode.Method {
			return static("run", "()I").
				Push(int32(4)).Insn(bytecode.OpDup, bytecode.OpImul).
				Push(int32(7)).Insn(bytecode.OpDupX1, bytecode.OpIadd, bytecode.OpImul).
				Push(int32(3)).Insn(bytecode.OpSwap, bytecode.OpIsub, bytecode.OpIreturn).Build()
		}),
	},
	{
		name: "long shuffles",
		methods: one(func() *bytecode.Method {
			return static("run", "()J").
				Push(int64(1)).Push(int32(2)).
				Insn(bytecode.OpDupX2, bytecode.OpPop, bytecode.OpDup2X1, bytecode.OpL2i, bytecode.OpSwap,
					bytecode.OpIsub, bytecode.OpI2l, bytecode.OpLadd, bytecode.OpLreturn).Build()
		}),
	},
	{
		name: "half tracked pair",
		methods: one(func() *bytecode.Method {
			return static("run", "(I)I").
				Var(bytecode.OpIload, 0).Push(int32(3)).Insn(bytecode.OpDup2, bytecode.OpImul, bytecode.OpIsub).
				Push(int32(5)).Insn(bytecode.OpIadd, bytecode.OpIadd, bytecode.OpIreturn).Build()
		}),
		inputs: ints(2, -9),
	},
	{
		name: "narrowing",
		methods: one(func() *bytecode.Method {
			return static("run", "()I").Push(int32(200)).Insn(bytecode.OpI2b).
				Push(int32(1)).Insn(bytecode.OpIadd, bytecode.OpIreturn).Build()
		}),
	},
	{
		name: "deferred narrowing",
		methods: one(func() *bytecode.Method {
			return static("run", "()I").Push(int32(200)).Insn(bytecode.OpI2b).
				Push(int32(1)).Insn(bytecode.OpIadd, bytecode.OpIreturn).Build()
		}),
		opts: []Option{WithDeferNarrowing(true)},
	},
	{
		name: "recursion",
		methods: func() []*bytecode.Method {
			run := static("run", "()I").Push(int32(5)).Invoke(bytecode.OpInvokestatic, owner, "fact", "(I)I").
				Insn(bytecode.OpIreturn).Build()
			return []*bytecode.Method{run, fact()}
		},
	},
	{
		name: "string result",
		methods: one(func() *bytecode.Method {
			b := static("run", "()I").Push(int32(42)).
				Invoke(bytecode.OpInvokestatic, vm.StringClass, "valueOf", "(I)Ljava/lang/String;")
			return length(b).Insn(bytecode.OpIreturn).Build()
		}),
	},
	{
		name: "math",
		methods: one(func() *bytecode.Method {
			return static("run", "()I").Push(2.0).Push(7.0).
				Invoke(bytecode.OpInvokestatic, mathClass, "pow", "(DD)D").Insn(bytecode.OpD2i).
				Push(int32(-3)).Invoke(bytecode.OpInvokestatic, mathClass, "abs", "(I)I").
				Insn(bytecode.OpIadd, bytecode.OpIreturn).Build()
		}),
	},
}

func scenarioNamed(t *testing.T, name string) scenario {
	t.Helper()
	for _, sc := range scenarios {
		if sc.name == name {
			return sc
		}
	}
	t.Fatalf("no scenario named %q", name)
	return scenario{}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// sameValue compares results by constant payload, since the overlay may
// return an interned String where the plain VM allocated a fresh one.
func sameValue(a, b vm.Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ca, oka := vm.Constant(a)
	cb, okb := vm.Constant(b)
	if oka || okb {
		return oka && okb && vm.SameConstant(ca, cb)
	}
	return vm.IsNull(a) == vm.IsNull(b)
}

// differential runs sc twice on a plain VM holding a pristine copy of the
// code and on an overlay VM, and requires identical observable behaviour.
// The second round runs the already folded code.
func differential(t *testing.T, sc scenario) *simulator {
	t.Helper()
	methods := sc.methods()
	pristine := make([]*bytecode.Method, len(methods))
	for i, m := range methods {
		c, err := bytecode.CloneMethod(m)
		if err != nil {
			t.Fatalf("CloneMethod failed: %v", err)
		}
		pristine[i] = c
	}

	var refOut bytes.Buffer
	ref := vm.New(vm.WithOutput(&refOut), vm.WithClock(clock))
	defineAll(t, ref, pristine)

	s := simulate(t, All(), methods, sc.opts...)
	entry := methods[0]

	inputs := sc.inputs
	if len(inputs) == 0 {
		inputs = [][]vm.Value{nil}
	}
	for round := 1; round <= 2; round++ {
		for _, in := range inputs {
			want, wantErr := ref.InvokeStatic(owner, entry.Name, entry.Desc, in...)
			got, gotErr := s.vm.InvokeStatic(owner, entry.Name, entry.Desc, in...)
			if errText(gotErr) != errText(wantErr) {
				t.Fatalf("round %d %v: error = %v, want %v\n%s", round, in, gotErr, wantErr, bytecode.Disassemble(entry))
			}
			if !sameValue(got, want) {
				t.Errorf("round %d %v: result = %v, want %v\n%s", round, in, got, want, bytecode.Disassemble(entry))
			}
		}
	}
	if s.out.String() != refOut.String() {
		t.Errorf("output = %q, want %q", s.out.String(), refOut.String())
	}
	return s
}

func TestFoldingPreservesBehaviour(t *testing.T) {
	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			differential(t, sc)
		})
	}
}

// Simulating folded code again must not change it.
func TestIdempotent(t *testing.T) {
	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			s := differential(t, sc)
			folded := s.vm.FindClass(owner)
			if folded == nil {
				t.Fatalf("FindClass(%s) returned nil", owner)
			}

			var copies []*bytecode.Method
			var before [][]byte
			for _, m := range sc.methods() {
				rm := folded.DeclaredMethod(m.Name, m.Desc)
				c, err := bytecode.CloneMethod(rm.Node)
				if err != nil {
					t.Fatalf("CloneMethod failed: %v", err)
				}
				copies = append(copies, c)
				before = append(before, snapshot(t, c))
			}

			again := simulate(t, All(), copies, sc.opts...)
			inputs := sc.inputs
			if len(inputs) == 0 {
				inputs = [][]vm.Value{nil}
			}
			for _, in := range inputs {
				again.vm.InvokeStatic(owner, copies[0].Name, copies[0].Desc, in...)
			}
			for i, c := range copies {
				expectUnchanged(t, c, before[i])
			}
			if n := again.overlay.Stats().Folds(); n != 0 {
				t.Errorf("second simulation folded %d more times", n)
			}
		})
	}
}
