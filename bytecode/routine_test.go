package bytecode

import (
	"testing"

	"github.com/cretz/msplit/op"
	"github.com/stretchr/testify/require"
)

func TestBuilderRoutine(t *testing.T) {
	b := NewBuilder("Foo", AccPublic|AccStatic, "sum", "(II)I")
	loop, done := b.NewLabel(), b.NewLabel()
	b.Int(0).Store(IntType, 2).
		Mark(loop).
		Load(IntType, 2).Load(IntType, 0).
		Jump(op.IfIcmpge, done).
		Load(IntType, 2).Load(IntType, 1).Op(op.Iadd).Store(IntType, 2).
		Jump(op.Goto, loop).
		Mark(done).
		Load(IntType, 2).Return(IntType)
	r, err := b.Routine()
	require.NoError(t, err)

	require.Equal(t, "Foo.sum(II)I", r.String())
	require.True(t, r.IsStatic())
	require.Equal(t, 3, r.MaxLocals())
	require.Equal(t, 2, r.ArgumentCount())
	require.Equal(t, IntType, r.ReturnType())
	require.Equal(t, 14, r.InstructionCount())

	off, ok := r.LabelOffset(loop)
	require.True(t, ok)
	require.Equal(t, 2, off)
	off, ok = r.LabelOffset(done)
	require.True(t, ok)
	require.Equal(t, 11, off)
	_, ok = r.LabelOffset(&Label{})
	require.False(t, ok)
}

func TestRoutineArgumentsSize(t *testing.T) {
	r := NewBuilder("Foo", AccPublic, "f", "(JI)V").Return(VoidType).MustRoutine()
	require.Equal(t, 4, r.ArgumentsSize())
	require.Equal(t, 4, r.MaxLocals())
}

func TestRoutineRegions(t *testing.T) {
	b := NewBuilder("Foo", AccStatic, "f", "()V")
	start, end, handler := b.NewLabel(), b.NewLabel(), b.NewLabel()
	b.Mark(start).Op(op.Nop).Mark(end).Return(VoidType).
		Mark(handler).Op(op.Athrow).
		TryCatch(start, end, handler, "java/lang/Exception")
	r := b.MustRoutine()
	require.Equal(t, 1, r.TryCatchBlockCount())
	region := r.RegionAt(0)
	require.Equal(t, ProtectedRegion{Start: 0, End: 2, Handler: 4, Type: "java/lang/Exception"}, region)
	require.True(t, region.Contains(1))
	require.False(t, region.Contains(2))
	require.Equal(t, start, r.TryCatchBlockAt(0).Start)
}

func TestRoutineErrors(t *testing.T) {
	l := &Label{Name: "x"}
	_, err := NewRoutine(RoutineParams{Owner: "Foo", Name: "f", Desc: "()V",
		Instructions: []Instruction{&JumpInsn{Op: op.Goto, Label: l}}})
	require.ErrorContains(t, err, "unmarked label")

	_, err = NewRoutine(RoutineParams{Owner: "Foo", Name: "f", Desc: "()V",
		Instructions: []Instruction{l, l}})
	require.ErrorContains(t, err, "marked at 0 and 1")

	_, err = NewRoutine(RoutineParams{Owner: "Foo", Name: "f", Desc: "(V"})
	require.Error(t, err)

	_, err = NewRoutine(RoutineParams{Owner: "Foo", Name: "f", Desc: "()V",
		Instructions: []Instruction{l},
		TryCatchBlocks: []TryCatchBlock{{Start: l, End: l, Handler: &Label{}}}})
	require.ErrorContains(t, err, "unmarked label")
}

func TestRoutineImmutable(t *testing.T) {
	insns := []Instruction{&Insn{Op: op.Return}}
	r := MustRoutine(RoutineParams{Owner: "Foo", Name: "f", Desc: "()V", Access: AccStatic, Instructions: insns})
	insns[0] = &Insn{Op: op.Nop}
	require.Equal(t, op.Return, r.InstructionAt(0).Opcode())

	p := r.Params()
	p.Instructions[0] = &Insn{Op: op.Nop}
	require.Equal(t, op.Return, r.InstructionAt(0).Opcode())
}

func TestBuilderInt(t *testing.T) {
	tests := []struct {
		v    int32
		want Instruction
	}{
		{-1, &Insn{Op: op.IconstM1}},
		{5, &Insn{Op: op.Iconst5}},
		{6, &IntInsn{Op: op.Bipush, Operand: 6}},
		{-128, &IntInsn{Op: op.Bipush, Operand: -128}},
		{13000, &IntInsn{Op: op.Sipush, Operand: 13000}},
		{40000, &LdcInsn{Value: int32(40000)}},
	}
	for _, tt := range tests {
		r := NewBuilder("Foo", AccStatic, "f", "()V").Int(tt.v).MustRoutine()
		require.Equal(t, tt.want, r.InstructionAt(0), "value %d", tt.v)
	}
}

func TestBuilderBoxUnbox(t *testing.T) {
	r := NewBuilder("Foo", AccStatic, "f", "()V").
		Box(LongType).Box(StringType).
		Unbox(IntType).Unbox(StringType).Unbox(ObjectType).
		MustRoutine()
	require.Equal(t, 4, r.InstructionCount())
	require.Equal(t, &MethodInsn{Op: op.Invokestatic, Owner: "java/lang/Long", Name: "valueOf", Desc: "(J)Ljava/lang/Long;"}, r.InstructionAt(0))
	require.Equal(t, &TypeInsn{Op: op.Checkcast, Desc: "java/lang/Integer"}, r.InstructionAt(1))
	require.Equal(t, &MethodInsn{Op: op.Invokevirtual, Owner: "java/lang/Integer", Name: "intValue", Desc: "()I"}, r.InstructionAt(2))
	require.Equal(t, &TypeInsn{Op: op.Checkcast, Desc: "java/lang/String"}, r.InstructionAt(3))
}

func TestOpcodeHelpers(t *testing.T) {
	require.Equal(t, op.Iload, LoadOpcode(BooleanType))
	require.Equal(t, op.Dload, LoadOpcode(DoubleType))
	require.Equal(t, op.Aload, LoadOpcode(NullType))
	require.Equal(t, op.Lstore, StoreOpcode(LongType))
	require.Equal(t, op.Astore, StoreOpcode(ObjectArrayType))
	require.Equal(t, op.Return, ReturnOpcode(VoidType))
	require.Equal(t, op.Freturn, ReturnOpcode(FloatType))
}

func TestCloneRemapsLabels(t *testing.T) {
	a, b := &Label{Name: "a"}, &Label{Name: "b"}
	insns := []Instruction{a, &JumpInsn{Op: op.Goto, Label: a},
		&TableSwitchInsn{Min: 0, Max: 0, Default: b, Labels: []*Label{a}}, b}
	labels := FreshLabels(insns)
	require.Len(t, labels, 2)

	clonedA := insns[0].Clone(labels).(*Label)
	require.NotSame(t, a, clonedA)
	require.Equal(t, "a", clonedA.Name)
	jump := insns[1].Clone(labels).(*JumpInsn)
	require.Same(t, clonedA, jump.Label)
	sw := insns[2].Clone(labels).(*TableSwitchInsn)
	require.Same(t, labels[b], sw.Default)
	require.Same(t, clonedA, sw.Labels[0])
	require.Equal(t, []*Label{labels[b], clonedA}, Targets(sw))

	// Labels outside the map are kept.
	outside := &JumpInsn{Op: op.Goto, Label: &Label{}}
	require.Same(t, outside.Label, outside.Clone(labels).(*JumpInsn).Label)
	require.True(t, IsPseudo(&LineNumber{Line: 3}))
	require.False(t, IsPseudo(jump))
}
