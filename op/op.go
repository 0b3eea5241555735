// Package op defines the opcodes of the stack-based bytecode that msplit
// reads and writes. Opcode numbers follow the JVM instruction set.
package op

// Code is an integer opcode that indicates an operation to execute.
type Code int

// None is reported by pseudo-instructions (labels, line numbers, frames)
// that occupy a position in an instruction sequence but encode nothing.
const None Code = -1

const (
	Nop        Code = 0
	AconstNull Code = 1
	IconstM1   Code = 2
	Iconst0    Code = 3
	Iconst1    Code = 4
	Iconst2    Code = 5
	Iconst3    Code = 6
	Iconst4    Code = 7
	Iconst5    Code = 8
	Lconst0    Code = 9
	Lconst1    Code = 10
	Fconst0    Code = 11
	Fconst1    Code = 12
	Fconst2    Code = 13
	Dconst0    Code = 14
	Dconst1    Code = 15
	Bipush     Code = 16
	Sipush     Code = 17
	Ldc        Code = 18
	LdcW       Code = 19
	Ldc2W      Code = 20

	// Load
	Iload Code = 21
	Lload Code = 22
	Fload Code = 23
	Dload Code = 24
	Aload Code = 25

	// Array load
	Iaload Code = 46
	Laload Code = 47
	Faload Code = 48
	Daload Code = 49
	Aaload Code = 50
	Baload Code = 51
	Caload Code = 52
	Saload Code = 53

	// Store
	Istore Code = 54
	Lstore Code = 55
	Fstore Code = 56
	Dstore Code = 57
	Astore Code = 58

	// Array store
	Iastore Code = 79
	Lastore Code = 80
	Fastore Code = 81
	Dastore Code = 82
	Aastore Code = 83
	Bastore Code = 84
	Castore Code = 85
	Sastore Code = 86

	// Stack
	Pop    Code = 87
	Pop2   Code = 88
	Dup    Code = 89
	DupX1  Code = 90
	DupX2  Code = 91
	Dup2   Code = 92
	Dup2X1 Code = 93
	Dup2X2 Code = 94
	Swap   Code = 95

	// Arithmetic
	Iadd  Code = 96
	Ladd  Code = 97
	Fadd  Code = 98
	Dadd  Code = 99
	Isub  Code = 100
	Lsub  Code = 101
	Fsub  Code = 102
	Dsub  Code = 103
	Imul  Code = 104
	Lmul  Code = 105
	Fmul  Code = 106
	Dmul  Code = 107
	Idiv  Code = 108
	Ldiv  Code = 109
	Fdiv  Code = 110
	Ddiv  Code = 111
	Irem  Code = 112
	Lrem  Code = 113
	Frem  Code = 114
	Drem  Code = 115
	Ineg  Code = 116
	Lneg  Code = 117
	Fneg  Code = 118
	Dneg  Code = 119
	Ishl  Code = 120
	Lshl  Code = 121
	Ishr  Code = 122
	Lshr  Code = 123
	Iushr Code = 124
	Lushr Code = 125
	Iand  Code = 126
	Land  Code = 127
	Ior   Code = 128
	Lor   Code = 129
	Ixor  Code = 130
	Lxor  Code = 131
	Iinc  Code = 132

	// Conversions
	I2l Code = 133
	I2f Code = 134
	I2d Code = 135
	L2i Code = 136
	L2f Code = 137
	L2d Code = 138
	F2i Code = 139
	F2l Code = 140
	F2d Code = 141
	D2i Code = 142
	D2l Code = 143
	D2f Code = 144
	I2b Code = 145
	I2c Code = 146
	I2s Code = 147

	// Comparisons
	Lcmp  Code = 148
	Fcmpl Code = 149
	Fcmpg Code = 150
	Dcmpl Code = 151
	Dcmpg Code = 152

	// Branches
	Ifeq     Code = 153
	Ifne     Code = 154
	Iflt     Code = 155
	Ifge     Code = 156
	Ifgt     Code = 157
	Ifle     Code = 158
	IfIcmpeq Code = 159
	IfIcmpne Code = 160
	IfIcmplt Code = 161
	IfIcmpge Code = 162
	IfIcmpgt Code = 163
	IfIcmple Code = 164
	IfAcmpeq Code = 165
	IfAcmpne Code = 166
	Goto     Code = 167
	Jsr      Code = 168
	Ret      Code = 169

	// Switches
	Tableswitch  Code = 170
	Lookupswitch Code = 171

	// Returns
	Ireturn Code = 172
	Lreturn Code = 173
	Freturn Code = 174
	Dreturn Code = 175
	Areturn Code = 176
	Return  Code = 177

	// Fields and methods
	Getstatic       Code = 178
	Putstatic       Code = 179
	Getfield        Code = 180
	Putfield        Code = 181
	Invokevirtual   Code = 182
	Invokespecial   Code = 183
	Invokestatic    Code = 184
	Invokeinterface Code = 185
	Invokedynamic   Code = 186

	// Objects and arrays
	New            Code = 187
	Newarray       Code = 188
	Anewarray      Code = 189
	Arraylength    Code = 190
	Athrow         Code = 191
	Checkcast      Code = 192
	Instanceof     Code = 193
	Monitorenter   Code = 194
	Monitorexit    Code = 195
	Wide           Code = 196
	Multianewarray Code = 197
	Ifnull         Code = 198
	Ifnonnull      Code = 199
	GotoW          Code = 200
	JsrW           Code = 201
)

// Array element type codes used as the operand of Newarray.
const (
	TBoolean = 4
	TChar    = 5
	TFloat   = 6
	TDouble  = 7
	TByte    = 8
	TShort   = 9
	TInt     = 10
	TLong    = 11
)

// Kind describes the operand shape of an opcode, which determines the
// instruction variant that carries it.
type Kind uint8

const (
	KindNone Kind = iota
	KindInt
	KindVar
	KindIinc
	KindType
	KindField
	KindMethod
	KindLdc
	KindJump
	KindTableSwitch
	KindLookupSwitch
	KindMultiANewArray
	KindInvokeDynamic
)

// Flow describes how control leaves an instruction.
type Flow uint8

const (
	// FlowNext continues with the following instruction.
	FlowNext Flow = iota
	// FlowBranch may jump to a label or continue with the next instruction.
	FlowBranch
	// FlowGoto always jumps to a label.
	FlowGoto
	// FlowSwitch jumps to one of several labels.
	FlowSwitch
	// FlowReturn leaves the routine normally.
	FlowReturn
	// FlowThrow leaves through an exception.
	FlowThrow
	// FlowSubroutine is jsr/ret, which msplit never moves.
	FlowSubroutine
)

// Info contains information about an opcode.
type Info struct {
	Code Code
	Name string
	Kind Kind
	Flow Flow
}

// FallsThrough reports whether control can reach the next instruction.
func (i Info) FallsThrough() bool {
	switch i.Flow {
	case FlowNext, FlowBranch:
		return true
	}
	return false
}

// IsBranch reports whether the opcode references one or more labels.
func (i Info) IsBranch() bool {
	return i.Kind == KindJump || i.Kind == KindTableSwitch || i.Kind == KindLookupSwitch
}

var infos = make([]Info, 256)

func init() {
	type opInfo struct {
		op   Code
		name string
		kind Kind
		flow Flow
	}
	ops := []opInfo{
		{Nop, "NOP", KindNone, FlowNext},
		{AconstNull, "ACONST_NULL", KindNone, FlowNext},
		{IconstM1, "ICONST_M1", KindNone, FlowNext},
		{Iconst0, "ICONST_0", KindNone, FlowNext},
		{Iconst1, "ICONST_1", KindNone, FlowNext},
		{Iconst2, "ICONST_2", KindNone, FlowNext},
		{Iconst3, "ICONST_3", KindNone, FlowNext},
		{Iconst4, "ICONST_4", KindNone, FlowNext},
		{Iconst5, "ICONST_5", KindNone, FlowNext},
		{Lconst0, "LCONST_0", KindNone, FlowNext},
		{Lconst1, "LCONST_1", KindNone, FlowNext},
		{Fconst0, "FCONST_0", KindNone, FlowNext},
		{Fconst1, "FCONST_1", KindNone, FlowNext},
		{Fconst2, "FCONST_2", KindNone, FlowNext},
		{Dconst0, "DCONST_0", KindNone, FlowNext},
		{Dconst1, "DCONST_1", KindNone, FlowNext},
		{Bipush, "BIPUSH", KindInt, FlowNext},
		{Sipush, "SIPUSH", KindInt, FlowNext},
		{Ldc, "LDC", KindLdc, FlowNext},
		{Iload, "ILOAD", KindVar, FlowNext},
		{Lload, "LLOAD", KindVar, FlowNext},
		{Fload, "FLOAD", KindVar, FlowNext},
		{Dload, "DLOAD", KindVar, FlowNext},
		{Aload, "ALOAD", KindVar, FlowNext},
		{Iaload, "IALOAD", KindNone, FlowNext},
		{Laload, "LALOAD", KindNone, FlowNext},
		{Faload, "FALOAD", KindNone, FlowNext},
		{Daload, "DALOAD", KindNone, FlowNext},
		{Aaload, "AALOAD", KindNone, FlowNext},
		{Baload, "BALOAD", KindNone, FlowNext},
		{Caload, "CALOAD", KindNone, FlowNext},
		{Saload, "SALOAD", KindNone, FlowNext},
		{Istore, "ISTORE", KindVar, FlowNext},
		{Lstore, "LSTORE", KindVar, FlowNext},
		{Fstore, "FSTORE", KindVar, FlowNext},
		{Dstore, "DSTORE", KindVar, FlowNext},
		{Astore, "ASTORE", KindVar, FlowNext},
		{Iastore, "IASTORE", KindNone, FlowNext},
		{Lastore, "LASTORE", KindNone, FlowNext},
		{Fastore, "FASTORE", KindNone, FlowNext},
		{Dastore, "DASTORE", KindNone, FlowNext},
		{Aastore, "AASTORE", KindNone, FlowNext},
		{Bastore, "BASTORE", KindNone, FlowNext},
		{Castore, "CASTORE", KindNone, FlowNext},
		{Sastore, "SASTORE", KindNone, FlowNext},
		{Pop, "POP", KindNone, FlowNext},
		{Pop2, "POP2", KindNone, FlowNext},
		{Dup, "DUP", KindNone, FlowNext},
		{DupX1, "DUP_X1", KindNone, FlowNext},
		{DupX2, "DUP_X2", KindNone, FlowNext},
		{Dup2, "DUP2", KindNone, FlowNext},
		{Dup2X1, "DUP2_X1", KindNone, FlowNext},
		{Dup2X2, "DUP2_X2", KindNone, FlowNext},
		{Swap, "SWAP", KindNone, FlowNext},
		{Iadd, "IADD", KindNone, FlowNext},
		{Ladd, "LADD", KindNone, FlowNext},
		{Fadd, "FADD", KindNone, FlowNext},
		{Dadd, "DADD", KindNone, FlowNext},
		{Isub, "ISUB", KindNone, FlowNext},
		{Lsub, "LSUB", KindNone, FlowNext},
		{Fsub, "FSUB", KindNone, FlowNext},
		{Dsub, "DSUB", KindNone, FlowNext},
		{Imul, "IMUL", KindNone, FlowNext},
		{Lmul, "LMUL", KindNone, FlowNext},
		{Fmul, "FMUL", KindNone, FlowNext},
		{Dmul, "DMUL", KindNone, FlowNext},
		{Idiv, "IDIV", KindNone, FlowNext},
		{Ldiv, "LDIV", KindNone, FlowNext},
		{Fdiv, "FDIV", KindNone, FlowNext},
		{Ddiv, "DDIV", KindNone, FlowNext},
		{Irem, "IREM", KindNone, FlowNext},
		{Lrem, "LREM", KindNone, FlowNext},
		{Frem, "FREM", KindNone, FlowNext},
		{Drem, "DREM", KindNone, FlowNext},
		{Ineg, "INEG", KindNone, FlowNext},
		{Lneg, "LNEG", KindNone, FlowNext},
		{Fneg, "FNEG", KindNone, FlowNext},
		{Dneg, "DNEG", KindNone, FlowNext},
		{Ishl, "ISHL", KindNone, FlowNext},
		{Lshl, "LSHL", KindNone, FlowNext},
		{Ishr, "ISHR", KindNone, FlowNext},
		{Lshr, "LSHR", KindNone, FlowNext},
		{Iushr, "IUSHR", KindNone, FlowNext},
		{Lushr, "LUSHR", KindNone, FlowNext},
		{Iand, "IAND", KindNone, FlowNext},
		{Land, "LAND", KindNone, FlowNext},
		{Ior, "IOR", KindNone, FlowNext},
		{Lor, "LOR", KindNone, FlowNext},
		{Ixor, "IXOR", KindNone, FlowNext},
		{Lxor, "LXOR", KindNone, FlowNext},
		{Iinc, "IINC", KindIinc, FlowNext},
		{I2l, "I2L", KindNone, FlowNext},
		{I2f, "I2F", KindNone, FlowNext},
		{I2d, "I2D", KindNone, FlowNext},
		{L2i, "L2I", KindNone, FlowNext},
		{L2f, "L2F", KindNone, FlowNext},
		{L2d, "L2D", KindNone, FlowNext},
		{F2i, "F2I", KindNone, FlowNext},
		{F2l, "F2L", KindNone, FlowNext},
		{F2d, "F2D", KindNone, FlowNext},
		{D2i, "D2I", KindNone, FlowNext},
		{D2l, "D2L", KindNone, FlowNext},
		{D2f, "D2F", KindNone, FlowNext},
		{I2b, "I2B", KindNone, FlowNext},
		{I2c, "I2C", KindNone, FlowNext},
		{I2s, "I2S", KindNone, FlowNext},
		{Lcmp, "LCMP", KindNone, FlowNext},
		{Fcmpl, "FCMPL", KindNone, FlowNext},
		{Fcmpg, "FCMPG", KindNone, FlowNext},
		{Dcmpl, "DCMPL", KindNone, FlowNext},
		{Dcmpg, "DCMPG", KindNone, FlowNext},
		{Ifeq, "IFEQ", KindJump, FlowBranch},
		{Ifne, "IFNE", KindJump, FlowBranch},
		{Iflt, "IFLT", KindJump, FlowBranch},
		{Ifge, "IFGE", KindJump, FlowBranch},
		{Ifgt, "IFGT", KindJump, FlowBranch},
		{Ifle, "IFLE", KindJump, FlowBranch},
		{IfIcmpeq, "IF_ICMPEQ", KindJump, FlowBranch},
		{IfIcmpne, "IF_ICMPNE", KindJump, FlowBranch},
		{IfIcmplt, "IF_ICMPLT", KindJump, FlowBranch},
		{IfIcmpge, "IF_ICMPGE", KindJump, FlowBranch},
		{IfIcmpgt, "IF_ICMPGT", KindJump, FlowBranch},
		{IfIcmple, "IF_ICMPLE", KindJump, FlowBranch},
		{IfAcmpeq, "IF_ACMPEQ", KindJump, FlowBranch},
		{IfAcmpne, "IF_ACMPNE", KindJump, FlowBranch},
		{Goto, "GOTO", KindJump, FlowGoto},
		{Jsr, "JSR", KindJump, FlowSubroutine},
		{Ret, "RET", KindVar, FlowSubroutine},
		{Tableswitch, "TABLESWITCH", KindTableSwitch, FlowSwitch},
		{Lookupswitch, "LOOKUPSWITCH", KindLookupSwitch, FlowSwitch},
		{Ireturn, "IRETURN", KindNone, FlowReturn},
		{Lreturn, "LRETURN", KindNone, FlowReturn},
		{Freturn, "FRETURN", KindNone, FlowReturn},
		{Dreturn, "DRETURN", KindNone, FlowReturn},
		{Areturn, "ARETURN", KindNone, FlowReturn},
		{Return, "RETURN", KindNone, FlowReturn},
		{Getstatic, "GETSTATIC", KindField, FlowNext},
		{Putstatic, "PUTSTATIC", KindField, FlowNext},
		{Getfield, "GETFIELD", KindField, FlowNext},
		{Putfield, "PUTFIELD", KindField, FlowNext},
		{Invokevirtual, "INVOKEVIRTUAL", KindMethod, FlowNext},
		{Invokespecial, "INVOKESPECIAL", KindMethod, FlowNext},
		{Invokestatic, "INVOKESTATIC", KindMethod, FlowNext},
		{Invokeinterface, "INVOKEINTERFACE", KindMethod, FlowNext},
		{Invokedynamic, "INVOKEDYNAMIC", KindInvokeDynamic, FlowNext},
		{New, "NEW", KindType, FlowNext},
		{Newarray, "NEWARRAY", KindInt, FlowNext},
		{Anewarray, "ANEWARRAY", KindType, FlowNext},
		{Arraylength, "ARRAYLENGTH", KindNone, FlowNext},
		{Athrow, "ATHROW", KindNone, FlowThrow},
		{Checkcast, "CHECKCAST", KindType, FlowNext},
		{Instanceof, "INSTANCEOF", KindType, FlowNext},
		{Monitorenter, "MONITORENTER", KindNone, FlowNext},
		{Monitorexit, "MONITOREXIT", KindNone, FlowNext},
		{Multianewarray, "MULTIANEWARRAY", KindMultiANewArray, FlowNext},
		{Ifnull, "IFNULL", KindJump, FlowBranch},
		{Ifnonnull, "IFNONNULL", KindJump, FlowBranch},
	}
	for _, o := range ops {
		infos[o.op] = Info{
			Code: o.op,
			Name: o.name,
			Kind: o.kind,
			Flow: o.flow,
		}
	}
}

// GetInfo returns information about the given opcode. Unknown opcodes and
// None return the zero Info.
func GetInfo(op Code) Info {
	if op < 0 || int(op) >= len(infos) {
		return Info{Code: op}
	}
	return infos[op]
}

// String returns the mnemonic of the opcode.
func (c Code) String() string {
	if name := GetInfo(c).Name; name != "" {
		return name
	}
	return "UNKNOWN"
}

// IsReturn reports whether the opcode returns from the routine.
func (c Code) IsReturn() bool {
	return c >= Ireturn && c <= Return
}
