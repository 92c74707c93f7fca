package bytecode

import "fmt"

// Opcode represents a JVM instruction.
// Values match the class file encoding; pseudo-instructions (labels, line
// markers) live above the JVM range.
type Opcode byte

const (
	// ========================================================================
	// Constants (0x00-0x14)
	// ========================================================================

	OpNop        Opcode = 0x00 // No operation
	OpAconstNull Opcode = 0x01 // Push null
	OpIconstM1   Opcode = 0x02 // Push int -1
	OpIconst0    Opcode = 0x03
	OpIconst1    Opcode = 0x04
	OpIconst2    Opcode = 0x05
	OpIconst3    Opcode = 0x06
	OpIconst4    Opcode = 0x07
	OpIconst5    Opcode = 0x08
	OpLconst0    Opcode = 0x09 // Push long 0
	OpLconst1    Opcode = 0x0A
	OpFconst0    Opcode = 0x0B // Push float 0.0
	OpFconst1    Opcode = 0x0C
	OpFconst2    Opcode = 0x0D
	OpDconst0    Opcode = 0x0E // Push double 0.0
	OpDconst1    Opcode = 0x0F
	OpBipush     Opcode = 0x10 // Push sign-extended byte: BIPUSH <value:i8>
	OpSipush     Opcode = 0x11 // Push sign-extended short: SIPUSH <value:i16>
	OpLdc        Opcode = 0x12 // Push constant (LDC, LDC_W and LDC2_W)

	// ========================================================================
	// Local variables (0x15-0x3A)
	// ========================================================================

	OpIload Opcode = 0x15
	OpLload Opcode = 0x16
	OpFload Opcode = 0x17
	OpDload Opcode = 0x18
	OpAload Opcode = 0x19

	OpIstore Opcode = 0x36
	OpLstore Opcode = 0x37
	OpFstore Opcode = 0x38
	OpDstore Opcode = 0x39
	OpAstore Opcode = 0x3A

	// ========================================================================
	// Arrays (0x2E-0x35, 0x4F-0x56)
	// ========================================================================

	OpIaload Opcode = 0x2E
	OpLaload Opcode = 0x2F
	OpFaload Opcode = 0x30
	OpDaload Opcode = 0x31
	OpAaload Opcode = 0x32
	OpBaload Opcode = 0x33
	OpCaload Opcode = 0x34
	OpSaload Opcode = 0x35

	OpIastore Opcode = 0x4F
	OpLastore Opcode = 0x50
	OpFastore Opcode = 0x51
	OpDastore Opcode = 0x52
	OpAastore Opcode = 0x53
	OpBastore Opcode = 0x54
	OpCastore Opcode = 0x55
	OpSastore Opcode = 0x56

	// ========================================================================
	// Stack manipulation (0x57-0x5F)
	// ========================================================================

	OpPop    Opcode = 0x57
	OpPop2   Opcode = 0x58
	OpDup    Opcode = 0x59
	OpDupX1  Opcode = 0x5A
	OpDupX2  Opcode = 0x5B
	OpDup2   Opcode = 0x5C
	OpDup2X1 Opcode = 0x5D
	OpDup2X2 Opcode = 0x5E
	OpSwap   Opcode = 0x5F

	// ========================================================================
	// Arithmetic (0x60-0x84)
	// ========================================================================

	OpIadd  Opcode = 0x60
	OpLadd  Opcode = 0x61
	OpFadd  Opcode = 0x62
	OpDadd  Opcode = 0x63
	OpIsub  Opcode = 0x64
	OpLsub  Opcode = 0x65
	OpFsub  Opcode = 0x66
	OpDsub  Opcode = 0x67
	OpImul  Opcode = 0x68
	OpLmul  Opcode = 0x69
	OpFmul  Opcode = 0x6A
	OpDmul  Opcode = 0x6B
	OpIdiv  Opcode = 0x6C
	OpLdiv  Opcode = 0x6D
	OpFdiv  Opcode = 0x6E
	OpDdiv  Opcode = 0x6F
	OpIrem  Opcode = 0x70
	OpLrem  Opcode = 0x71
	OpFrem  Opcode = 0x72
	OpDrem  Opcode = 0x73
	OpIneg  Opcode = 0x74
	OpLneg  Opcode = 0x75
	OpFneg  Opcode = 0x76
	OpDneg  Opcode = 0x77
	OpIshl  Opcode = 0x78
	OpLshl  Opcode = 0x79
	OpIshr  Opcode = 0x7A
	OpLshr  Opcode = 0x7B
	OpIushr Opcode = 0x7C
	OpLushr Opcode = 0x7D
	OpIand  Opcode = 0x7E
	OpLand  Opcode = 0x7F
	OpIor   Opcode = 0x80
	OpLor   Opcode = 0x81
	OpIxor  Opcode = 0x82
	OpLxor  Opcode = 0x83
	OpIinc  Opcode = 0x84 // Increment local: IINC <index> <const>

	// ========================================================================
	// Conversions (0x85-0x93)
	// ========================================================================

	OpI2l Opcode = 0x85
	OpI2f Opcode = 0x86
	OpI2d Opcode = 0x87
	OpL2i Opcode = 0x88
	OpL2f Opcode = 0x89
	OpL2d Opcode = 0x8A
	OpF2i Opcode = 0x8B
	OpF2l Opcode = 0x8C
	OpF2d Opcode = 0x8D
	OpD2i Opcode = 0x8E
	OpD2l Opcode = 0x8F
	OpD2f Opcode = 0x90
	OpI2b Opcode = 0x91
	OpI2c Opcode = 0x92
	OpI2s Opcode = 0x93

	// ========================================================================
	// Comparison (0x94-0x98)
	// ========================================================================

	OpLcmp  Opcode = 0x94
	OpFcmpl Opcode = 0x95
	OpFcmpg Opcode = 0x96
	OpDcmpl Opcode = 0x97
	OpDcmpg Opcode = 0x98

	// ========================================================================
	// Control flow (0x99-0xB1)
	// ========================================================================

	OpIfeq         Opcode = 0x99
	OpIfne         Opcode = 0x9A
	OpIflt         Opcode = 0x9B
	OpIfge         Opcode = 0x9C
	OpIfgt         Opcode = 0x9D
	OpIfle         Opcode = 0x9E
	OpIfIcmpeq     Opcode = 0x9F
	OpIfIcmpne     Opcode = 0xA0
	OpIfIcmplt     Opcode = 0xA1
	OpIfIcmpge     Opcode = 0xA2
	OpIfIcmpgt     Opcode = 0xA3
	OpIfIcmple     Opcode = 0xA4
	OpIfAcmpeq     Opcode = 0xA5
	OpIfAcmpne     Opcode = 0xA6
	OpGoto         Opcode = 0xA7
	OpTableswitch  Opcode = 0xAA
	OpLookupswitch Opcode = 0xAB
	OpIreturn      Opcode = 0xAC
	OpLreturn      Opcode = 0xAD
	OpFreturn      Opcode = 0xAE
	OpDreturn      Opcode = 0xAF
	OpAreturn      Opcode = 0xB0
	OpReturn       Opcode = 0xB1
	OpIfnull       Opcode = 0xC6
	OpIfnonnull    Opcode = 0xC7

	// ========================================================================
	// Fields and invocation (0xB2-0xB8)
	// ========================================================================

	OpGetstatic     Opcode = 0xB2
	OpPutstatic     Opcode = 0xB3
	OpGetfield      Opcode = 0xB4
	OpPutfield      Opcode = 0xB5
	OpInvokevirtual Opcode = 0xB6
	OpInvokespecial Opcode = 0xB7
	OpInvokestatic  Opcode = 0xB8

	// ========================================================================
	// Objects (0xBB-0xC1)
	// ========================================================================

	OpNew         Opcode = 0xBB
	OpNewarray    Opcode = 0xBC // NEWARRAY <atype>
	OpAnewarray   Opcode = 0xBD
	OpArraylength Opcode = 0xBE
	OpAthrow      Opcode = 0xBF
	OpCheckcast   Opcode = 0xC0
	OpInstanceof  Opcode = 0xC1

	// ========================================================================
	// Pseudo-instructions (0xF0-0xF1)
	// ========================================================================

	OpLabel Opcode = 0xF0 // Jump target / range marker, never executed
	OpLine  Opcode = 0xF1 // Source line marker, never executed
)

// NEWARRAY element type codes.
const (
	TBoolean int32 = 4
	TChar    int32 = 5
	TFloat   int32 = 6
	TDouble  int32 = 7
	TByte    int32 = 8
	TShort   int32 = 9
	TInt     int32 = 10
	TLong    int32 = 11
)

// Form describes the operand shape of an instruction.
type Form uint8

const (
	FormNone Form = iota
	FormInt
	FormVar
	FormIinc
	FormLdc
	FormJump
	FormType
	FormField
	FormMethod
	FormTableSwitch
	FormLookupSwitch
	FormLabel
	FormLine
)

// OpcodeInfo provides metadata about each opcode for dispatch, folding and
// disassembly. In and Out are only set for pure numeric operations: In lists
// operand types bottom of stack first, so the last entry is the top.
type OpcodeInfo struct {
	Name string
	Form Form
	In   []Type
	Out  Type
}

var (
	i1  = []Type{IntType}
	i2  = []Type{IntType, IntType}
	l1  = []Type{LongType}
	l2  = []Type{LongType, LongType}
	lsh = []Type{LongType, IntType}
	f1  = []Type{FloatType}
	f2  = []Type{FloatType, FloatType}
	d1  = []Type{DoubleType}
	d2  = []Type{DoubleType, DoubleType}
)

// opcodeInfoTable maps each supported opcode to its metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Constants
	OpNop:        {Name: "NOP"},
	OpAconstNull: {Name: "ACONST_NULL"},
	OpIconstM1:   {Name: "ICONST_M1"},
	OpIconst0:    {Name: "ICONST_0"},
	OpIconst1:    {Name: "ICONST_1"},
	OpIconst2:    {Name: "ICONST_2"},
	OpIconst3:    {Name: "ICONST_3"},
	OpIconst4:    {Name: "ICONST_4"},
	OpIconst5:    {Name: "ICONST_5"},
	OpLconst0:    {Name: "LCONST_0"},
	OpLconst1:    {Name: "LCONST_1"},
	OpFconst0:    {Name: "FCONST_0"},
	OpFconst1:    {Name: "FCONST_1"},
	OpFconst2:    {Name: "FCONST_2"},
	OpDconst0:    {Name: "DCONST_0"},
	OpDconst1:    {Name: "DCONST_1"},
	OpBipush:     {Name: "BIPUSH", Form: FormInt},
	OpSipush:     {Name: "SIPUSH", Form: FormInt},
	OpLdc:        {Name: "LDC", Form: FormLdc},

	// Locals
	OpIload:  {Name: "ILOAD", Form: FormVar},
	OpLload:  {Name: "LLOAD", Form: FormVar},
	OpFload:  {Name: "FLOAD", Form: FormVar},
	OpDload:  {Name: "DLOAD", Form: FormVar},
	OpAload:  {Name: "ALOAD", Form: FormVar},
	OpIstore: {Name: "ISTORE", Form: FormVar},
	OpLstore: {Name: "LSTORE", Form: FormVar},
	OpFstore: {Name: "FSTORE", Form: FormVar},
	OpDstore: {Name: "DSTORE", Form: FormVar},
	OpAstore: {Name: "ASTORE", Form: FormVar},
	OpIinc:   {Name: "IINC", Form: FormIinc},

	// Arrays
	OpIaload:  {Name: "IALOAD"},
	OpLaload:  {Name: "LALOAD"},
	OpFaload:  {Name: "FALOAD"},
	OpDaload:  {Name: "DALOAD"},
	OpAaload:  {Name: "AALOAD"},
	OpBaload:  {Name: "BALOAD"},
	OpCaload:  {Name: "CALOAD"},
	OpSaload:  {Name: "SALOAD"},
	OpIastore: {Name: "IASTORE"},
	OpLastore: {Name: "LASTORE"},
	OpFastore: {Name: "FASTORE"},
	OpDastore: {Name: "DASTORE"},
	OpAastore: {Name: "AASTORE"},
	OpBastore: {Name: "BASTORE"},
	OpCastore: {Name: "CASTORE"},
	OpSastore: {Name: "SASTORE"},

	// Stack
	OpPop:    {Name: "POP"},
	OpPop2:   {Name: "POP2"},
	OpDup:    {Name: "DUP"},
	OpDupX1:  {Name: "DUP_X1"},
	OpDupX2:  {Name: "DUP_X2"},
	OpDup2:   {Name: "DUP2"},
	OpDup2X1: {Name: "DUP2_X1"},
	OpDup2X2: {Name: "DUP2_X2"},
	OpSwap:   {Name: "SWAP"},

	// Arithmetic
	OpIadd:  {Name: "IADD", In: i2, Out: IntType},
	OpLadd:  {Name: "LADD", In: l2, Out: LongType},
	OpFadd:  {Name: "FADD", In: f2, Out: FloatType},
	OpDadd:  {Name: "DADD", In: d2, Out: DoubleType},
	OpIsub:  {Name: "ISUB", In: i2, Out: IntType},
	OpLsub:  {Name: "LSUB", In: l2, Out: LongType},
	OpFsub:  {Name: "FSUB", In: f2, Out: FloatType},
	OpDsub:  {Name: "DSUB", In: d2, Out: DoubleType},
	OpImul:  {Name: "IMUL", In: i2, Out: IntType},
	OpLmul:  {Name: "LMUL", In: l2, Out: LongType},
	OpFmul:  {Name: "FMUL", In: f2, Out: FloatType},
	OpDmul:  {Name: "DMUL", In: d2, Out: DoubleType},
	OpIdiv:  {Name: "IDIV", In: i2, Out: IntType},
	OpLdiv:  {Name: "LDIV", In: l2, Out: LongType},
	OpFdiv:  {Name: "FDIV", In: f2, Out: FloatType},
	OpDdiv:  {Name: "DDIV", In: d2, Out: DoubleType},
	OpIrem:  {Name: "IREM", In: i2, Out: IntType},
	OpLrem:  {Name: "LREM", In: l2, Out: LongType},
	OpFrem:  {Name: "FREM", In: f2, Out: FloatType},
	OpDrem:  {Name: "DREM", In: d2, Out: DoubleType},
	OpIneg:  {Name: "INEG", In: i1, Out: IntType},
	OpLneg:  {Name: "LNEG", In: l1, Out: LongType},
	OpFneg:  {Name: "FNEG", In: f1, Out: FloatType},
	OpDneg:  {Name: "DNEG", In: d1, Out: DoubleType},
	OpIshl:  {Name: "ISHL", In: i2, Out: IntType},
	OpLshl:  {Name: "LSHL", In: lsh, Out: LongType},
	OpIshr:  {Name: "ISHR", In: i2, Out: IntType},
	OpLshr:  {Name: "LSHR", In: lsh, Out: LongType},
	OpIushr: {Name: "IUSHR", In: i2, Out: IntType},
	OpLushr: {Name: "LUSHR", In: lsh, Out: LongType},
	OpIand:  {Name: "IAND", In: i2, Out: IntType},
	OpLand:  {Name: "LAND", In: l2, Out: LongType},
	OpIor:   {Name: "IOR", In: i2, Out: IntType},
	OpLor:   {Name: "LOR", In: l2, Out: LongType},
	OpIxor:  {Name: "IXOR", In: i2, Out: IntType},
	OpLxor:  {Name: "LXOR", In: l2, Out: LongType},

	// Conversions
	OpI2l: {Name: "I2L", In: i1, Out: LongType},
	OpI2f: {Name: "I2F", In: i1, Out: FloatType},
	OpI2d: {Name: "I2D", In: i1, Out: DoubleType},
	OpL2i: {Name: "L2I", In: l1, Out: IntType},
	OpL2f: {Name: "L2F", In: l1, Out: FloatType},
	OpL2d: {Name: "L2D", In: l1, Out: DoubleType},
	OpF2i: {Name: "F2I", In: f1, Out: IntType},
	OpF2l: {Name: "F2L", In: f1, Out: LongType},
	OpF2d: {Name: "F2D", In: f1, Out: DoubleType},
	OpD2i: {Name: "D2I", In: d1, Out: IntType},
	OpD2l: {Name: "D2L", In: d1, Out: LongType},
	OpD2f: {Name: "D2F", In: d1, Out: FloatType},
	OpI2b: {Name: "I2B", In: i1, Out: IntType},
	OpI2c: {Name: "I2C", In: i1, Out: IntType},
	OpI2s: {Name: "I2S", In: i1, Out: IntType},

	// Comparison
	OpLcmp:  {Name: "LCMP", In: l2, Out: IntType},
	OpFcmpl: {Name: "FCMPL", In: f2, Out: IntType},
	OpFcmpg: {Name: "FCMPG", In: f2, Out: IntType},
	OpDcmpl: {Name: "DCMPL", In: d2, Out: IntType},
	OpDcmpg: {Name: "DCMPG", In: d2, Out: IntType},

	// Control flow
	OpIfeq:         {Name: "IFEQ", Form: FormJump},
	OpIfne:         {Name: "IFNE", Form: FormJump},
	OpIflt:         {Name: "IFLT", Form: FormJump},
	OpIfge:         {Name: "IFGE", Form: FormJump},
	OpIfgt:         {Name: "IFGT", Form: FormJump},
	OpIfle:         {Name: "IFLE", Form: FormJump},
	OpIfIcmpeq:     {Name: "IF_ICMPEQ", Form: FormJump},
	OpIfIcmpne:     {Name: "IF_ICMPNE", Form: FormJump},
	OpIfIcmplt:     {Name: "IF_ICMPLT", Form: FormJump},
	OpIfIcmpge:     {Name: "IF_ICMPGE", Form: FormJump},
	OpIfIcmpgt:     {Name: "IF_ICMPGT", Form: FormJump},
	OpIfIcmple:     {Name: "IF_ICMPLE", Form: FormJump},
	OpIfAcmpeq:     {Name: "IF_ACMPEQ", Form: FormJump},
	OpIfAcmpne:     {Name: "IF_ACMPNE", Form: FormJump},
	OpGoto:         {Name: "GOTO", Form: FormJump},
	OpIfnull:       {Name: "IFNULL", Form: FormJump},
	OpIfnonnull:    {Name: "IFNONNULL", Form: FormJump},
	OpTableswitch:  {Name: "TABLESWITCH", Form: FormTableSwitch},
	OpLookupswitch: {Name: "LOOKUPSWITCH", Form: FormLookupSwitch},
	OpIreturn:      {Name: "IRETURN"},
	OpLreturn:      {Name: "LRETURN"},
	OpFreturn:      {Name: "FRETURN"},
	OpDreturn:      {Name: "DRETURN"},
	OpAreturn:      {Name: "ARETURN"},
	OpReturn:       {Name: "RETURN"},

	// Fields and invocation
	OpGetstatic:     {Name: "GETSTATIC", Form: FormField},
	OpPutstatic:     {Name: "PUTSTATIC", Form: FormField},
	OpGetfield:      {Name: "GETFIELD", Form: FormField},
	OpPutfield:      {Name: "PUTFIELD", Form: FormField},
	OpInvokevirtual: {Name: "INVOKEVIRTUAL", Form: FormMethod},
	OpInvokespecial: {Name: "INVOKESPECIAL", Form: FormMethod},
	OpInvokestatic:  {Name: "INVOKESTATIC", Form: FormMethod},

	// Objects
	OpNew:         {Name: "NEW", Form: FormType},
	OpNewarray:    {Name: "NEWARRAY", Form: FormInt},
	OpAnewarray:   {Name: "ANEWARRAY", Form: FormType},
	OpArraylength: {Name: "ARRAYLENGTH"},
	OpAthrow:      {Name: "ATHROW"},
	OpCheckcast:   {Name: "CHECKCAST", Form: FormType},
	OpInstanceof:  {Name: "INSTANCEOF", Form: FormType},

	// Pseudo
	OpLabel: {Name: "LABEL", Form: FormLabel},
	OpLine:  {Name: "LINE", Form: FormLine},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// Form returns the operand shape of the opcode.
func (op Opcode) Form() Form {
	return GetOpcodeInfo(op).Form
}

// IsKnown reports whether op is a supported opcode.
func (op Opcode) IsKnown() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// IsPseudo returns true for list markers that are never executed.
func (op Opcode) IsPseudo() bool {
	return op == OpLabel || op == OpLine
}

// IsNumeric returns true for pure numeric operations: arithmetic, bitwise,
// conversion and comparison opcodes.
func (op Opcode) IsNumeric() bool {
	return len(GetOpcodeInfo(op).In) > 0
}

// IsJump returns true if this opcode transfers control to a label operand.
func (op Opcode) IsJump() bool {
	return op.Form() == FormJump
}

// IsSwitch returns true for TABLESWITCH and LOOKUPSWITCH.
func (op Opcode) IsSwitch() bool {
	return op == OpTableswitch || op == OpLookupswitch
}

// IsReturn returns true if this opcode terminates the method.
func (op Opcode) IsReturn() bool {
	return op >= OpIreturn && op <= OpReturn
}

// IsTransfer returns true if execution may not continue with the next
// instruction: jumps, switches, returns and ATHROW.
func (op Opcode) IsTransfer() bool {
	return op.IsJump() || op.IsSwitch() || op.IsReturn() || op == OpAthrow
}

// IsInvoke returns true if this opcode is a method invocation.
func (op Opcode) IsInvoke() bool {
	return op >= OpInvokevirtual && op <= OpInvokestatic
}

// IsArrayStore returns true for the xASTORE family.
func (op Opcode) IsArrayStore() bool {
	return op >= OpIastore && op <= OpSastore
}

// IsArrayLoad returns true for the xALOAD family.
func (op Opcode) IsArrayLoad() bool {
	return op >= OpIaload && op <= OpSaload
}

// IsLoad returns true for xLOAD local variable instructions.
func (op Opcode) IsLoad() bool {
	return op >= OpIload && op <= OpAload
}

// IsStore returns true for xSTORE local variable instructions.
func (op Opcode) IsStore() bool {
	return op >= OpIstore && op <= OpAstore
}

// AllOpcodes returns a slice of all defined opcodes.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}

// LookupOpcode finds an opcode by its mnemonic.
func LookupOpcode(name string) (Opcode, bool) {
	for op, info := range opcodeInfoTable {
		if info.Name == name {
			return op, true
		}
	}
	return 0, false
}
