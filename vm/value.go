package vm

import (
	"fmt"
	"math"

	"github.com/chazu/peephole/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Value: the contents of a stack slot or local variable
// ---------------------------------------------------------------------------

// Kind is the computational category of a value on the operand stack.
type Kind uint8

const (
	KindInt Kind = iota
	KindLong
	KindFloat
	KindDouble
	KindReference
	KindTop
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindReference:
		return "reference"
	case KindTop:
		return "top"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Value is anything that can live in a stack slot or local variable.
// Wide values (long, double) occupy two slots; the second holds Top.
type Value interface {
	Kind() Kind
	IsWide() bool
	AsInt() int32
	AsLong() int64
	AsFloat() float32
	AsDouble() float64
}

// Wrapper is implemented by values that decorate another value, such as
// values carrying provenance. Processors that need the concrete reference
// call Unwrap.
type Wrapper interface {
	Unwrap() Value
}

// Unwrap strips all decorations from v.
func Unwrap(v Value) Value {
	for {
		w, ok := v.(Wrapper)
		if !ok {
			return v
		}
		v = w.Unwrap()
	}
}

// IntValue is a 32-bit int. Booleans, bytes, chars and shorts are carried
// as ints on the stack.
type IntValue int32

func (IntValue) Kind() Kind { return KindInt }
func (IntValue) IsWide() bool { return false }
func (v IntValue) AsInt() int32 { return int32(v) }
func (v IntValue) AsLong() int64 { return int64(v) }
func (v IntValue) AsFloat() float32 { return float32(v) }
func (v IntValue) AsDouble() float64 { return float64(v) }
func (v IntValue) String() string { return fmt.Sprintf("%d", int32(v)) }

// LongValue is a 64-bit long.
type LongValue int64

func (LongValue) Kind() Kind { return KindLong }
func (LongValue) IsWide() bool { return true }
func (v LongValue) AsInt() int32 { return int32(v) }
func (v LongValue) AsLong() int64 { return int64(v) }
func (v LongValue) AsFloat() float32 { return float32(v) }
func (v LongValue) AsDouble() float64 { return float64(v) }
func (v LongValue) String() string { return fmt.Sprintf("%dL", int64(v)) }

// FloatValue is a 32-bit IEEE float.
type FloatValue float32

func (FloatValue) Kind() Kind { return KindFloat }
func (FloatValue) IsWide() bool { return false }
func (v FloatValue) AsInt() int32 { return D2I(float64(v)) }
func (v FloatValue) AsLong() int64 { return D2L(float64(v)) }
func (v FloatValue) AsFloat() float32 { return float32(v) }
func (v FloatValue) AsDouble() float64 { return float64(v) }
func (v FloatValue) String() string { return bytecode.FormatConstant(float32(v)) }

// DoubleValue is a 64-bit IEEE double.
type DoubleValue float64

func (DoubleValue) Kind() Kind { return KindDouble }
func (DoubleValue) IsWide() bool { return true }
func (v DoubleValue) AsInt() int32 { return D2I(float64(v)) }
func (v DoubleValue) AsLong() int64 { return D2L(float64(v)) }
func (v DoubleValue) AsFloat() float32 { return float32(v) }
func (v DoubleValue) AsDouble() float64 { return float64(v) }
func (v DoubleValue) String() string { return bytecode.FormatConstant(float64(v)) }

// refValue supplies the numeric accessors for references, which have none.
type refValue struct{}

func (refValue) Kind() Kind { return KindReference }
func (refValue) IsWide() bool { return false }
func (refValue) AsInt() int32 { return 0 }
func (refValue) AsLong() int64 { return 0 }
func (refValue) AsFloat() float32 { return 0 }
func (refValue) AsDouble() float64 { return 0 }

type nullValue struct{ refValue }

func (nullValue) String() string { return "null" }

// Null is the null reference.
var Null Value = nullValue{}

type topValue struct{}

func (topValue) Kind() Kind { return KindTop }
func (topValue) IsWide() bool { return false }
func (topValue) AsInt() int32 { return 0 }
func (topValue) AsLong() int64 { return 0 }
func (topValue) AsFloat() float32 { return 0 }
func (topValue) AsDouble() float64 { return 0 }
func (topValue) String() string { return "top" }

// Top fills the second slot of a wide value.
var Top Value = topValue{}

// IsNull reports whether v is the null reference.
func IsNull(v Value) bool {
	return Unwrap(v) == Null
}

// ---------------------------------------------------------------------------
// Objects and arrays
// ---------------------------------------------------------------------------

// Instance is an object of a runtime class.
type Instance struct {
	refValue
	class  *Class
	fields map[string]Value

	// Native carries host data: the text of a java/lang/String, or the
	// message of a Throwable.
	Native any
}

// Class returns the instance's class.
func (i *Instance) Class() *Class { return i.class }

// Field returns an instance field, or nil if it was never set.
func (i *Instance) Field(name string) Value { return i.fields[name] }

// SetField stores an instance field.
func (i *Instance) SetField(name string, v Value) {
	if i.fields == nil {
		i.fields = make(map[string]Value)
	}
	i.fields[name] = Unwrap(v)
}

func (i *Instance) String() string {
	if s, ok := i.Native.(string); ok && i.class != nil && i.class.Name == StringClass {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%s@%p", i.class.Name, i)
}

// Array is a fixed-length array. Elements of int-like component types are
// stored as IntValue, already narrowed.
type Array struct {
	refValue
	Elem  bytecode.Type
	elems []Value
}

// NewArray allocates an array filled with the component type's zero value.
func NewArray(elem bytecode.Type, n int) *Array {
	a := &Array{Elem: elem, elems: make([]Value, n)}
	zero := ZeroValue(elem)
	for i := range a.elems {
		a.elems[i] = zero
	}
	return a
}

// Len returns the array length.
func (a *Array) Len() int { return len(a.elems) }

// Get returns element i. The caller checks bounds.
func (a *Array) Get(i int) Value { return a.elems[i] }

// Set stores element i, narrowing int-like components.
func (a *Array) Set(i int, v Value) {
	v = Unwrap(v)
	switch a.Elem.Sort {
	case bytecode.SortBoolean:
		v = IntValue(v.AsInt() & 1)
	case bytecode.SortByte:
		v = IntValue(int8(v.AsInt()))
	case bytecode.SortChar:
		v = IntValue(uint16(v.AsInt()))
	case bytecode.SortShort:
		v = IntValue(int16(v.AsInt()))
	}
	a.elems[i] = v
}

// Bytes returns the low byte of every element.
func (a *Array) Bytes() []byte {
	out := make([]byte, len(a.elems))
	for i, v := range a.elems {
		out[i] = byte(v.AsInt())
	}
	return out
}

func (a *Array) String() string {
	return fmt.Sprintf("%s[%d]", a.Elem.Descriptor, len(a.elems))
}

// AsInstance unwraps v and returns it as an object.
func AsInstance(v Value) (*Instance, bool) {
	i, ok := Unwrap(v).(*Instance)
	return i, ok
}

// AsArray unwraps v and returns it as an array.
func AsArray(v Value) (*Array, bool) {
	a, ok := Unwrap(v).(*Array)
	return a, ok
}

// ZeroValue returns the default value for a field or array element type.
func ZeroValue(t bytecode.Type) Value {
	switch t.Sort {
	case bytecode.SortLong:
		return LongValue(0)
	case bytecode.SortFloat:
		return FloatValue(0)
	case bytecode.SortDouble:
		return DoubleValue(0)
	case bytecode.SortArray, bytecode.SortObject:
		return Null
	}
	return IntValue(0)
}

// Constant returns the Go constant carried by v when its category is
// foldable: int32, int64, float32, float64, or the text of a String.
func Constant(v Value) (any, bool) {
	switch c := Unwrap(v).(type) {
	case IntValue:
		return int32(c), true
	case LongValue:
		return int64(c), true
	case FloatValue:
		return float32(c), true
	case DoubleValue:
		return float64(c), true
	case *Instance:
		if s, ok := StringOf(c); ok {
			return s, true
		}
	}
	return nil, false
}

// SameConstant compares two constants bit for bit, so NaN equals NaN and
// 0.0 differs from -0.0.
func SameConstant(a, b any) bool {
	switch x := a.(type) {
	case float32:
		y, ok := b.(float32)
		return ok && math.Float32bits(x) == math.Float32bits(y)
	case float64:
		y, ok := b.(float64)
		return ok && math.Float64bits(x) == math.Float64bits(y)
	}
	return a == b
}
