package bytecode

import (
	"fmt"
	"math"
)

// CreatePush returns the shortest instruction that pushes c. Supported
// constants are int32, int64, float32, float64 and string.
func CreatePush(c any) (*Insn, error) {
	switch v := c.(type) {
	case int32:
		return createIntPush(v), nil
	case int64:
		switch v {
		case 0:
			return NewInsn(OpLconst0), nil
		case 1:
			return NewInsn(OpLconst1), nil
		}
		return NewLdcInsn(v), nil
	case float32:
		// Compare bits so that -0.0 keeps its sign.
		switch math.Float32bits(v) {
		case math.Float32bits(0):
			return NewInsn(OpFconst0), nil
		case math.Float32bits(1):
			return NewInsn(OpFconst1), nil
		case math.Float32bits(2):
			return NewInsn(OpFconst2), nil
		}
		return NewLdcInsn(v), nil
	case float64:
		switch math.Float64bits(v) {
		case math.Float64bits(0):
			return NewInsn(OpDconst0), nil
		case math.Float64bits(1):
			return NewInsn(OpDconst1), nil
		}
		return NewLdcInsn(v), nil
	case string:
		return NewLdcInsn(v), nil
	}
	return nil, fmt.Errorf("bytecode: no push instruction for %T", c)
}

func createIntPush(v int32) *Insn {
	switch {
	case v >= -1 && v <= 5:
		return NewInsn(Opcode(int32(OpIconst0) + v))
	case v >= math.MinInt8 && v <= math.MaxInt8:
		return NewIntInsn(OpBipush, v)
	case v >= math.MinInt16 && v <= math.MaxInt16:
		return NewIntInsn(OpSipush, v)
	}
	return NewLdcInsn(v)
}

// PushedConstant returns the constant a literal push instruction loads.
func PushedConstant(insn *Insn) (any, bool) {
	switch op := insn.Op; {
	case op >= OpIconstM1 && op <= OpIconst5:
		return int32(op) - int32(OpIconst0), true
	case op == OpLconst0 || op == OpLconst1:
		return int64(op - OpLconst0), true
	case op >= OpFconst0 && op <= OpFconst2:
		return float32(op - OpFconst0), true
	case op == OpDconst0 || op == OpDconst1:
		return float64(op - OpDconst0), true
	case op == OpBipush || op == OpSipush:
		return insn.Operand, true
	case op == OpLdc:
		return insn.Const, insn.Const != nil
	}
	return nil, false
}
