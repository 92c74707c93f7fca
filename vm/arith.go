package vm

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/peephole/pkg/bytecode"
)

// ErrDivideByZero is returned by Evaluate for integer division or remainder
// by zero. The processor turns it into an ArithmeticException.
var ErrDivideByZero = errors.New("/ by zero")

// Evaluate applies a pure numeric opcode to its operands, given bottom of
// stack first. It implements Java semantics: two's complement wraparound,
// masked shift distances, IEEE float arithmetic, saturating float to
// integer conversion, and int results for all comparisons.
//
// The default processors and the constant folder both call Evaluate, so a
// folded result is always exactly what execution would have produced.
func Evaluate(op bytecode.Opcode, args ...Value) (Value, error) {
	info := bytecode.GetOpcodeInfo(op)
	if len(info.In) == 0 {
		return nil, fmt.Errorf("vm: %s is not a numeric operation", op)
	}
	if len(args) != len(info.In) {
		return nil, fmt.Errorf("vm: %s takes %d operands, got %d", op, len(info.In), len(args))
	}
	a := args[0]
	var b Value
	if len(args) > 1 {
		b = args[1]
	}

	switch op {
	// int
	case bytecode.OpIadd:
		return IntValue(a.AsInt() + b.AsInt()), nil
	case bytecode.OpIsub:
		return IntValue(a.AsInt() - b.AsInt()), nil
	case bytecode.OpImul:
		return IntValue(a.AsInt() * b.AsInt()), nil
	case bytecode.OpIdiv:
		if b.AsInt() == 0 {
			return nil, ErrDivideByZero
		}
		return IntValue(a.AsInt() / b.AsInt()), nil
	case bytecode.OpIrem:
		if b.AsInt() == 0 {
			return nil, ErrDivideByZero
		}
		return IntValue(a.AsInt() % b.AsInt()), nil
	case bytecode.OpIneg:
		return IntValue(-a.AsInt()), nil
	case bytecode.OpIshl:
		return IntValue(a.AsInt() << (uint32(b.AsInt()) & 31)), nil
	case bytecode.OpIshr:
		return IntValue(a.AsInt() >> (uint32(b.AsInt()) & 31)), nil
	case bytecode.OpIushr:
		return IntValue(int32(uint32(a.AsInt()) >> (uint32(b.AsInt()) & 31))), nil
	case bytecode.OpIand:
		return IntValue(a.AsInt() & b.AsInt()), nil
	case bytecode.OpIor:
		return IntValue(a.AsInt() | b.AsInt()), nil
	case bytecode.OpIxor:
		return IntValue(a.AsInt() ^ b.AsInt()), nil

	// long
	case bytecode.OpLadd:
		return LongValue(a.AsLong() + b.AsLong()), nil
	case bytecode.OpLsub:
		return LongValue(a.AsLong() - b.AsLong()), nil
	case bytecode.OpLmul:
		return LongValue(a.AsLong() * b.AsLong()), nil
	case bytecode.OpLdiv:
		if b.AsLong() == 0 {
			return nil, ErrDivideByZero
		}
		return LongValue(a.AsLong() / b.AsLong()), nil
	case bytecode.OpLrem:
		if b.AsLong() == 0 {
			return nil, ErrDivideByZero
		}
		return LongValue(a.AsLong() % b.AsLong()), nil
	case bytecode.OpLneg:
		return LongValue(-a.AsLong()), nil
	case bytecode.OpLshl:
		return LongValue(a.AsLong() << (uint32(b.AsInt()) & 63)), nil
	case bytecode.OpLshr:
		return LongValue(a.AsLong() >> (uint32(b.AsInt()) & 63)), nil
	case bytecode.OpLushr:
		return LongValue(int64(uint64(a.AsLong()) >> (uint32(b.AsInt()) & 63))), nil
	case bytecode.OpLand:
		return LongValue(a.AsLong() & b.AsLong()), nil
	case bytecode.OpLor:
		return LongValue(a.AsLong() | b.AsLong()), nil
	case bytecode.OpLxor:
		return LongValue(a.AsLong() ^ b.AsLong()), nil

	// float
	case bytecode.OpFadd:
		return FloatValue(a.AsFloat() + b.AsFloat()), nil
	case bytecode.OpFsub:
		return FloatValue(a.AsFloat() - b.AsFloat()), nil
	case bytecode.OpFmul:
		return FloatValue(a.AsFloat() * b.AsFloat()), nil
	case bytecode.OpFdiv:
		return FloatValue(a.AsFloat() / b.AsFloat()), nil
	case bytecode.OpFrem:
		return FloatValue(float32(math.Mod(float64(a.AsFloat()), float64(b.AsFloat())))), nil
	case bytecode.OpFneg:
		return FloatValue(-a.AsFloat()), nil

	// double
	case bytecode.OpDadd:
		return DoubleValue(a.AsDouble() + b.AsDouble()), nil
	case bytecode.OpDsub:
		return DoubleValue(a.AsDouble() - b.AsDouble()), nil
	case bytecode.OpDmul:
		return DoubleValue(a.AsDouble() * b.AsDouble()), nil
	case bytecode.OpDdiv:
		return DoubleValue(a.AsDouble() / b.AsDouble()), nil
	case bytecode.OpDrem:
		return DoubleValue(math.Mod(a.AsDouble(), b.AsDouble())), nil
	case bytecode.OpDneg:
		return DoubleValue(-a.AsDouble()), nil

	// conversions
	case bytecode.OpI2l:
		return LongValue(int64(a.AsInt())), nil
	case bytecode.OpI2f:
		return FloatValue(float32(a.AsInt())), nil
	case bytecode.OpI2d:
		return DoubleValue(float64(a.AsInt())), nil
	case bytecode.OpL2i:
		return IntValue(int32(a.AsLong())), nil
	case bytecode.OpL2f:
		return FloatValue(float32(a.AsLong())), nil
	case bytecode.OpL2d:
		return DoubleValue(float64(a.AsLong())), nil
	case bytecode.OpF2i:
		return IntValue(D2I(float64(a.AsFloat()))), nil
	case bytecode.OpF2l:
		return LongValue(D2L(float64(a.AsFloat()))), nil
	case bytecode.OpF2d:
		return DoubleValue(float64(a.AsFloat())), nil
	case bytecode.OpD2i:
		return IntValue(D2I(a.AsDouble())), nil
	case bytecode.OpD2l:
		return LongValue(D2L(a.AsDouble())), nil
	case bytecode.OpD2f:
		return FloatValue(float32(a.AsDouble())), nil
	case bytecode.OpI2b:
		return IntValue(int8(a.AsInt())), nil
	case bytecode.OpI2c:
		return IntValue(uint16(a.AsInt())), nil
	case bytecode.OpI2s:
		return IntValue(int16(a.AsInt())), nil

	// comparisons
	case bytecode.OpLcmp:
		return IntValue(compareLong(a.AsLong(), b.AsLong())), nil
	case bytecode.OpFcmpl:
		return IntValue(compareFloat(float64(a.AsFloat()), float64(b.AsFloat()), -1)), nil
	case bytecode.OpFcmpg:
		return IntValue(compareFloat(float64(a.AsFloat()), float64(b.AsFloat()), 1)), nil
	case bytecode.OpDcmpl:
		return IntValue(compareFloat(a.AsDouble(), b.AsDouble(), -1)), nil
	case bytecode.OpDcmpg:
		return IntValue(compareFloat(a.AsDouble(), b.AsDouble(), 1)), nil
	}
	return nil, fmt.Errorf("vm: %s has no evaluator", op)
}

func compareLong(a, b int64) int32 {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareFloat(a, b float64, nan int32) int32 {
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		return nan
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// D2I converts a double to an int the way the JVM does: NaN becomes 0 and
// out-of-range values saturate.
func D2I(d float64) int32 {
	switch {
	case math.IsNaN(d):
		return 0
	case d >= math.MaxInt32:
		return math.MaxInt32
	case d <= math.MinInt32:
		return math.MinInt32
	}
	return int32(d)
}

// D2L converts a double to a long the way the JVM does.
func D2L(d float64) int64 {
	switch {
	case math.IsNaN(d):
		return 0
	case d >= math.MaxInt64:
		return math.MaxInt64
	case d <= math.MinInt64:
		return math.MinInt64
	}
	return int64(d)
}
