package bytecode

import (
	"bytes"
	"math"
	"reflect"
	"testing"
)

func sampleMethod() *Method {
	b := NewBuilder("demo/Calc", "mix", "(IJ)D", AccStatic|AccPublic)
	start, end, handler, l1, l2, dflt := b.Label(), b.Label(), b.Label(), b.Label(), b.Label(), b.Label()
	b.Mark(start).
		Line(3).
		Var(OpIload, 0).
		TableSwitch(1, dflt, l1, l2).
		Mark(l1).
		Ldc(float32(math.Copysign(0, -1))).Insn(OpF2d).Insn(OpDreturn).
		Mark(l2).
		Var(OpLload, 1).Ldc(int64(-9)).Insn(OpLadd, OpL2d, OpDreturn).
		Mark(dflt).
		Var(OpIload, 0).LookupSwitch(end, []int32{7}, []*Insn{l1}).
		Mark(end).
		Ldc("text").Insn(OpPop).
		Type(OpNew, "java/lang/Object").Insn(OpPop).
		Field(OpGetstatic, "java/lang/System", "out", "Ljava/io/PrintStream;").Insn(OpPop).
		Iinc(0, -1).
		Ldc(math.NaN()).Insn(OpDreturn).
		Mark(handler).
		Insn(OpPop).Push(float64(1)).Insn(OpDreturn).
		TryCatch(start, end, handler, "java/lang/ArithmeticException")
	return b.Build()
}

func TestMethodRoundTrip(t *testing.T) {
	m := sampleMethod()

	data, err := MarshalMethod(m)
	if err != nil {
		t.Fatalf("MarshalMethod failed: %v", err)
	}
	got, err := UnmarshalMethod(data)
	if err != nil {
		t.Fatalf("UnmarshalMethod failed: %v", err)
	}

	if got.String() != m.String() || got.Access != m.Access || got.MaxLocals != m.MaxLocals {
		t.Errorf("header mismatch: %s %x %d", got, got.Access, got.MaxLocals)
	}
	if !reflect.DeepEqual(Listing(got, false), Listing(m, false)) {
		t.Errorf("listing mismatch:\n%v\n%v", Listing(got, false), Listing(m, false))
	}
	if len(got.TryCatchBlocks) != 1 || got.TryCatchBlocks[0].Handler.Op != OpLabel {
		t.Fatal("exception table not restored")
	}

	// -0.0F must keep its sign bit.
	var f32 *Insn
	for insn := got.Instructions.First(); insn != nil; insn = insn.Next() {
		if _, ok := insn.Const.(float32); ok {
			f32 = insn
		}
	}
	if f32 == nil {
		t.Fatal("float constant not restored")
	}
	if f := f32.Const.(float32); math.Float32bits(f) != math.Float32bits(float32(math.Copysign(0, -1))) {
		t.Errorf("expected -0.0F, got %v", f)
	}
}

func TestMarshalIsCanonical(t *testing.T) {
	a, err := MarshalMethod(sampleMethod())
	if err != nil {
		t.Fatalf("MarshalMethod failed: %v", err)
	}
	b, err := MarshalMethod(sampleMethod())
	if err != nil {
		t.Fatalf("MarshalMethod failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("equal methods encoded differently")
	}
}

func TestMarshalDetectsEdits(t *testing.T) {
	m := sampleMethod()
	before, _ := MarshalMethod(m)

	var ldc *Insn
	for insn := m.Instructions.First(); insn != nil; insn = insn.Next() {
		if insn.Op == OpLdc && insn.Const == "text" {
			ldc = insn
		}
	}
	m.Instructions.Set(ldc, NewInsn(OpNop))

	after, _ := MarshalMethod(m)
	if bytes.Equal(before, after) {
		t.Error("edit did not change the encoding")
	}
}

func TestCloneMethodIsIndependent(t *testing.T) {
	m := sampleMethod()
	c, err := CloneMethod(m)
	if err != nil {
		t.Fatalf("CloneMethod failed: %v", err)
	}
	c.Instructions.Set(c.Instructions.Get(2), NewInsn(OpNop))
	if m.Instructions.Get(2).Op == OpNop {
		t.Error("editing the clone changed the original")
	}
}

func TestBundleRoundTrip(t *testing.T) {
	c := NewClass("demo/Calc")
	c.Fields = append(c.Fields, &Field{Name: "LIMIT", Desc: "I", Access: AccStatic | AccFinal, Value: int32(10)})
	c.AddMethod(sampleMethod())

	data, err := MarshalBundle(&Bundle{Classes: []*Class{c}})
	if err != nil {
		t.Fatalf("MarshalBundle failed: %v", err)
	}
	b, err := UnmarshalBundle(data)
	if err != nil {
		t.Fatalf("UnmarshalBundle failed: %v", err)
	}
	got := b.Class("demo/Calc")
	if got == nil {
		t.Fatal("class missing from bundle")
	}
	if got.Super != "java/lang/Object" || len(got.Fields) != 1 || got.Fields[0].Value != int32(10) {
		t.Errorf("class header mismatch: %+v", got)
	}
	if got.Method("mix", "(IJ)D") == nil {
		t.Error("method missing from class")
	}
}

func TestUnmarshalBundleRejectsGarbage(t *testing.T) {
	if _, err := UnmarshalBundle([]byte{0xff, 0x00}); err == nil {
		t.Error("expected an error for garbage input")
	}
}
