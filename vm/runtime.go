package vm

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Well-known class names.
const (
	ObjectClass      = "java/lang/Object"
	StringClass      = "java/lang/String"
	ThrowableClass   = "java/lang/Throwable"
	PrintStreamClass = "java/io/PrintStream"
)

// exceptionClasses lists the builtin throwables as name, superclass pairs,
// superclasses first.
var exceptionClasses = [][2]string{
	{"java/lang/Exception", ThrowableClass},
	{"java/lang/Error", ThrowableClass},
	{"java/lang/StackOverflowError", "java/lang/Error"},
	{"java/lang/RuntimeException", "java/lang/Exception"},
	{"java/lang/ArithmeticException", "java/lang/RuntimeException"},
	{"java/lang/NullPointerException", "java/lang/RuntimeException"},
	{"java/lang/ArrayIndexOutOfBoundsException", "java/lang/RuntimeException"},
	{"java/lang/NegativeArraySizeException", "java/lang/RuntimeException"},
	{"java/lang/ClassCastException", "java/lang/RuntimeException"},
	{"java/lang/IllegalArgumentException", "java/lang/RuntimeException"},
	{"java/lang/NumberFormatException", "java/lang/IllegalArgumentException"},
}

func (v *VM) builtin(name string, super *Class) *Class {
	c := newClass(name, super)
	v.classes[name] = c
	return c
}

// bootstrap loads the runtime classes every program can rely on.
func (v *VM) bootstrap() {
	object := v.builtin(ObjectClass, nil)
	object.AddNative("<init>", "()V", false, true, func(*ExecutionContext, []Value) (Value, error) {
		return nil, nil
	})

	v.bootstrapString(object)
	v.bootstrapThrowables(object)
	v.bootstrapMath(object)

	stream := v.builtin(PrintStreamClass, object)
	for _, desc := range []string{"(I)V", "(J)V", "(F)V", "(D)V", "(Z)V", "(C)V", "(Ljava/lang/String;)V", "(Ljava/lang/Object;)V"} {
		stream.AddNative("println", desc, false, false, func(ctx *ExecutionContext, args []Value) (Value, error) {
			_, err := fmt.Fprintln(ctx.vm.out, formatPrinted(desc, args[1]))
			return nil, err
		})
	}
	stream.AddNative("println", "()V", false, false, func(ctx *ExecutionContext, _ []Value) (Value, error) {
		_, err := fmt.Fprintln(ctx.vm.out)
		return nil, err
	})

	system := v.builtin("java/lang/System", object)
	system.SetStatic("out", stream.New())
	system.AddNative("currentTimeMillis", "()J", true, false, func(ctx *ExecutionContext, _ []Value) (Value, error) {
		return LongValue(ctx.vm.clock().UnixMilli()), nil
	})
}

func (v *VM) bootstrapString(object *Class) {
	str := v.builtin(StringClass, object)
	str.AddNative("<init>", "([B)V", false, true, func(ctx *ExecutionContext, args []Value) (Value, error) {
		arr, ok := args[1].(*Array)
		if !ok {
			return nil, ctx.vm.NewFault("java/lang/NullPointerException", "")
		}
		args[0].(*Instance).Native = DecodeBytes(arr.Bytes())
		return nil, nil
	})
	str.AddNative("length", "()I", false, true, func(_ *ExecutionContext, args []Value) (Value, error) {
		s, _ := StringOf(args[0])
		return IntValue(len(utf16.Encode([]rune(s)))), nil
	})
	str.AddNative("concat", "(Ljava/lang/String;)Ljava/lang/String;", false, true, func(ctx *ExecutionContext, args []Value) (Value, error) {
		a, _ := StringOf(args[0])
		b, ok := StringOf(args[1])
		if !ok {
			return nil, ctx.vm.NewFault("java/lang/NullPointerException", "")
		}
		return ctx.vm.NewString(a + b), nil
	})
	str.AddNative("valueOf", "(I)Ljava/lang/String;", true, true, func(ctx *ExecutionContext, args []Value) (Value, error) {
		return ctx.vm.NewString(strconv.Itoa(int(args[0].AsInt()))), nil
	})
}

func (v *VM) bootstrapThrowables(object *Class) {
	throwable := v.builtin(ThrowableClass, object)
	throwable.AddNative("<init>", "()V", false, true, func(*ExecutionContext, []Value) (Value, error) {
		return nil, nil
	})
	throwable.AddNative("<init>", "(Ljava/lang/String;)V", false, true, func(_ *ExecutionContext, args []Value) (Value, error) {
		if s, ok := StringOf(args[1]); ok {
			args[0].(*Instance).Native = s
		}
		return nil, nil
	})
	throwable.AddNative("getMessage", "()Ljava/lang/String;", false, true, func(ctx *ExecutionContext, args []Value) (Value, error) {
		if msg, ok := args[0].(*Instance).Native.(string); ok {
			return ctx.vm.NewString(msg), nil
		}
		return Null, nil
	})
	for _, pair := range exceptionClasses {
		v.builtin(pair[0], v.classes[pair[1]])
	}
}

func (v *VM) bootstrapMath(object *Class) {
	m := v.builtin("java/lang/Math", object)
	m.AddNative("pow", "(DD)D", true, true, func(_ *ExecutionContext, args []Value) (Value, error) {
		return DoubleValue(math.Pow(args[0].AsDouble(), args[1].AsDouble())), nil
	})
	m.AddNative("sqrt", "(D)D", true, true, func(_ *ExecutionContext, args []Value) (Value, error) {
		return DoubleValue(math.Sqrt(args[0].AsDouble())), nil
	})
	m.AddNative("abs", "(I)I", true, true, func(_ *ExecutionContext, args []Value) (Value, error) {
		if x := args[0].AsInt(); x < 0 {
			return IntValue(-x), nil
		}
		return args[0], nil
	})
	m.AddNative("max", "(II)I", true, true, func(_ *ExecutionContext, args []Value) (Value, error) {
		return IntValue(max(args[0].AsInt(), args[1].AsInt())), nil
	})
	m.AddNative("min", "(II)I", true, true, func(_ *ExecutionContext, args []Value) (Value, error) {
		return IntValue(min(args[0].AsInt(), args[1].AsInt())), nil
	})

	i := v.builtin("java/lang/Integer", object)
	i.AddNative("parseInt", "(Ljava/lang/String;)I", true, true, func(ctx *ExecutionContext, args []Value) (Value, error) {
		s, _ := StringOf(args[0])
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, ctx.vm.NewFault("java/lang/NumberFormatException", fmt.Sprintf("For input string: %q", s))
		}
		return IntValue(n), nil
	})
	i.AddNative("bitCount", "(I)I", true, true, func(_ *ExecutionContext, args []Value) (Value, error) {
		return IntValue(bits.OnesCount32(uint32(args[0].AsInt()))), nil
	})
	i.AddNative("rotateLeft", "(II)I", true, true, func(_ *ExecutionContext, args []Value) (Value, error) {
		return IntValue(bits.RotateLeft32(uint32(args[0].AsInt()), int(args[1].AsInt()&31))), nil
	})
}

// ---------------------------------------------------------------------------
// Strings
// ---------------------------------------------------------------------------

// NewString allocates a java/lang/String holding text.
func (v *VM) NewString(text string) *Instance {
	s := v.classes[StringClass].New()
	s.Native = text
	return s
}

// Intern returns the canonical String for text, as LDC does.
func (v *VM) Intern(text string) *Instance {
	if s, ok := v.strings[text]; ok {
		return s
	}
	s := v.NewString(text)
	v.strings[text] = s
	return s
}

// StringOf returns the text of a constructed java/lang/String.
func StringOf(v Value) (string, bool) {
	inst, ok := AsInstance(v)
	if !ok || inst.class == nil || inst.class.Name != StringClass {
		return "", false
	}
	s, ok := inst.Native.(string)
	return s, ok
}

// DecodeBytes decodes bytes as UTF-8, replacing each malformed byte with
// U+FFFD. String.<init>([B)V and the string folder share it so a folded
// literal always equals the constructed text.
func DecodeBytes(b []byte) string {
	var sb strings.Builder
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		sb.WriteRune(r)
		b = b[size:]
	}
	return sb.String()
}

// ConstantValue converts an LDC or field constant to a value.
func (v *VM) ConstantValue(c any) Value {
	switch x := c.(type) {
	case int32:
		return IntValue(x)
	case int64:
		return LongValue(x)
	case float32:
		return FloatValue(x)
	case float64:
		return DoubleValue(x)
	case string:
		return v.Intern(x)
	}
	return Null
}

func formatPrinted(desc string, v Value) string {
	switch desc {
	case "(I)V":
		return strconv.Itoa(int(v.AsInt()))
	case "(J)V":
		return strconv.FormatInt(v.AsLong(), 10)
	case "(F)V":
		return formatJavaFloat(float64(v.AsFloat()), 32)
	case "(D)V":
		return formatJavaFloat(v.AsDouble(), 64)
	case "(Z)V":
		return strconv.FormatBool(v.AsInt() != 0)
	case "(C)V":
		return string(rune(uint16(v.AsInt())))
	}
	if s, ok := StringOf(v); ok {
		return s
	}
	if IsNull(v) {
		return "null"
	}
	return fmt.Sprint(v)
}

func formatJavaFloat(f float64, bitSize int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == math.Trunc(f) && math.Abs(f) < 1e7:
		return strconv.FormatFloat(f, 'f', 1, bitSize)
	}
	return strconv.FormatFloat(f, 'g', -1, bitSize)
}
