package bytecode

import (
	"errors"
	"fmt"
	"strings"
)

// Sort classifies a field or method type.
type Sort uint8

const (
	SortVoid Sort = iota
	SortBoolean
	SortChar
	SortByte
	SortShort
	SortInt
	SortFloat
	SortLong
	SortDouble
	SortArray
	SortObject
)

// Type is a parsed JVM field descriptor.
type Type struct {
	Sort       Sort
	Descriptor string
}

// Primitive types.
var (
	VoidType    = Type{SortVoid, "V"}
	BooleanType = Type{SortBoolean, "Z"}
	CharType    = Type{SortChar, "C"}
	ByteType    = Type{SortByte, "B"}
	ShortType   = Type{SortShort, "S"}
	IntType     = Type{SortInt, "I"}
	FloatType   = Type{SortFloat, "F"}
	LongType    = Type{SortLong, "J"}
	DoubleType  = Type{SortDouble, "D"}
	StringType  = Type{SortObject, "Ljava/lang/String;"}
)

// ErrBadDescriptor is returned for malformed type descriptors.
var ErrBadDescriptor = errors.New("bytecode: malformed descriptor")

// Size returns the number of stack or local slots a value of this type
// occupies: 2 for long and double, 0 for void, 1 otherwise.
func (t Type) Size() int {
	switch t.Sort {
	case SortVoid:
		return 0
	case SortLong, SortDouble:
		return 2
	default:
		return 1
	}
}

// IsWide returns true for 64-bit categories.
func (t Type) IsWide() bool {
	return t.Size() == 2
}

// IsIntLike returns true for types carried as an int on the operand stack.
func (t Type) IsIntLike() bool {
	switch t.Sort {
	case SortBoolean, SortChar, SortByte, SortShort, SortInt:
		return true
	}
	return false
}

// IsReference returns true for object and array types.
func (t Type) IsReference() bool {
	return t.Sort == SortArray || t.Sort == SortObject
}

// InternalName returns the slash-separated class name of an object type,
// or the descriptor itself for arrays.
func (t Type) InternalName() string {
	if t.Sort == SortObject {
		return t.Descriptor[1 : len(t.Descriptor)-1]
	}
	return t.Descriptor
}

// ElementType returns the component type of an array type.
func (t Type) ElementType() (Type, error) {
	if t.Sort != SortArray {
		return Type{}, fmt.Errorf("%w: %s is not an array", ErrBadDescriptor, t.Descriptor)
	}
	return ParseType(t.Descriptor[1:])
}

func (t Type) String() string {
	return t.Descriptor
}

// ObjectType returns the type for an internal class name.
func ObjectType(internalName string) Type {
	return Type{SortObject, "L" + internalName + ";"}
}

// ParseType parses a single field descriptor.
func ParseType(desc string) (Type, error) {
	t, n, err := parseOne(desc, 0)
	if err != nil {
		return Type{}, err
	}
	if n != len(desc) {
		return Type{}, fmt.Errorf("%w: trailing data in %q", ErrBadDescriptor, desc)
	}
	return t, nil
}

// ParseMethodType parses a method descriptor into its argument and return
// types.
func ParseMethodType(desc string) ([]Type, Type, error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, Type{}, fmt.Errorf("%w: %q", ErrBadDescriptor, desc)
	}
	var args []Type
	i := 1
	for i < len(desc) && desc[i] != ')' {
		t, next, err := parseOne(desc, i)
		if err != nil {
			return nil, Type{}, err
		}
		if t.Sort == SortVoid {
			return nil, Type{}, fmt.Errorf("%w: void argument in %q", ErrBadDescriptor, desc)
		}
		args = append(args, t)
		i = next
	}
	if i >= len(desc) {
		return nil, Type{}, fmt.Errorf("%w: unterminated arguments in %q", ErrBadDescriptor, desc)
	}
	ret, next, err := parseOne(desc, i+1)
	if err != nil {
		return nil, Type{}, err
	}
	if next != len(desc) {
		return nil, Type{}, fmt.Errorf("%w: trailing data in %q", ErrBadDescriptor, desc)
	}
	return args, ret, nil
}

// ArgumentSlots returns the number of local slots taken by the arguments of
// a method descriptor, excluding any receiver.
func ArgumentSlots(desc string) (int, error) {
	args, _, err := ParseMethodType(desc)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, a := range args {
		n += a.Size()
	}
	return n, nil
}

func parseOne(desc string, i int) (Type, int, error) {
	if i >= len(desc) {
		return Type{}, i, fmt.Errorf("%w: unexpected end of %q", ErrBadDescriptor, desc)
	}
	switch desc[i] {
	case 'V':
		return VoidType, i + 1, nil
	case 'Z':
		return BooleanType, i + 1, nil
	case 'C':
		return CharType, i + 1, nil
	case 'B':
		return ByteType, i + 1, nil
	case 'S':
		return ShortType, i + 1, nil
	case 'I':
		return IntType, i + 1, nil
	case 'F':
		return FloatType, i + 1, nil
	case 'J':
		return LongType, i + 1, nil
	case 'D':
		return DoubleType, i + 1, nil
	case 'L':
		end := strings.IndexByte(desc[i:], ';')
		if end < 2 {
			return Type{}, i, fmt.Errorf("%w: bad class type in %q", ErrBadDescriptor, desc)
		}
		return Type{SortObject, desc[i : i+end+1]}, i + end + 1, nil
	case '[':
		j := i
		for j < len(desc) && desc[j] == '[' {
			j++
		}
		elem, next, err := parseOne(desc, j)
		if err != nil {
			return Type{}, i, err
		}
		if elem.Sort == SortVoid {
			return Type{}, i, fmt.Errorf("%w: void array in %q", ErrBadDescriptor, desc)
		}
		return Type{SortArray, desc[i:next]}, next, nil
	}
	return Type{}, i, fmt.Errorf("%w: unexpected %q in %q", ErrBadDescriptor, desc[i], desc)
}

// ArrayElementType maps a NEWARRAY operand to its element type.
func ArrayElementType(code int32) (Type, error) {
	switch code {
	case TBoolean:
		return BooleanType, nil
	case TChar:
		return CharType, nil
	case TFloat:
		return FloatType, nil
	case TDouble:
		return DoubleType, nil
	case TByte:
		return ByteType, nil
	case TShort:
		return ShortType, nil
	case TInt:
		return IntType, nil
	case TLong:
		return LongType, nil
	}
	return Type{}, fmt.Errorf("bytecode: unknown array type code %d", code)
}
