package bytecode

import (
	"errors"
	"testing"
)

func TestParseMethodType(t *testing.T) {
	tests := []struct {
		desc  string
		args  []string
		ret   string
		slots int
	}{
		{"()V", nil, "V", 0},
		{"(DD)D", []string{"D", "D"}, "D", 4},
		{"(IJ)J", []string{"I", "J"}, "J", 3},
		{"([B)V", []string{"[B"}, "V", 1},
		{"(Ljava/lang/String;I[[J)Ljava/lang/String;", []string{"Ljava/lang/String;", "I", "[[J"}, "Ljava/lang/String;", 3},
	}

	for _, tt := range tests {
		args, ret, err := ParseMethodType(tt.desc)
		if err != nil {
			t.Fatalf("ParseMethodType(%q) failed: %v", tt.desc, err)
		}
		if len(args) != len(tt.args) {
			t.Fatalf("%q: expected %d args, got %d", tt.desc, len(tt.args), len(args))
		}
		for i, a := range args {
			if a.Descriptor != tt.args[i] {
				t.Errorf("%q arg %d = %q, want %q", tt.desc, i, a.Descriptor, tt.args[i])
			}
		}
		if ret.Descriptor != tt.ret {
			t.Errorf("%q return = %q, want %q", tt.desc, ret.Descriptor, tt.ret)
		}
		slots, _ := ArgumentSlots(tt.desc)
		if slots != tt.slots {
			t.Errorf("%q slots = %d, want %d", tt.desc, slots, tt.slots)
		}
	}
}

func TestParseMethodTypeErrors(t *testing.T) {
	for _, desc := range []string{"", "I", "(I", "(V)V", "(Ljava/lang/String)V", "(I)", "(I)VV", "([V)V", "(Q)V"} {
		if _, _, err := ParseMethodType(desc); !errors.Is(err, ErrBadDescriptor) {
			t.Errorf("ParseMethodType(%q) should fail with ErrBadDescriptor, got %v", desc, err)
		}
	}
}

func TestTypeProperties(t *testing.T) {
	if LongType.Size() != 2 || DoubleType.Size() != 2 || IntType.Size() != 1 || VoidType.Size() != 0 {
		t.Error("sizes are wrong")
	}
	if !ByteType.IsIntLike() || !BooleanType.IsIntLike() || FloatType.IsIntLike() {
		t.Error("IsIntLike is wrong")
	}
	if StringType.InternalName() != "java/lang/String" {
		t.Errorf("InternalName = %q", StringType.InternalName())
	}
	arr, err := ParseType("[B")
	if err != nil {
		t.Fatalf("ParseType failed: %v", err)
	}
	elem, err := arr.ElementType()
	if err != nil || elem != ByteType {
		t.Errorf("ElementType = %v, %v", elem, err)
	}
	if ObjectType("demo/Calc").Descriptor != "Ldemo/Calc;" {
		t.Error("ObjectType is wrong")
	}
}

func TestArrayElementType(t *testing.T) {
	got, err := ArrayElementType(TByte)
	if err != nil || got != ByteType {
		t.Errorf("ArrayElementType(TByte) = %v, %v", got, err)
	}
	if _, err := ArrayElementType(3); err == nil {
		t.Error("type code 3 should be rejected")
	}
}
