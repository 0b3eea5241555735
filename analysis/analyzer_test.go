package analysis

import (
	"testing"

	"github.com/cretz/msplit/bytecode"
	"github.com/cretz/msplit/op"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"
)

func analyze(t *testing.T, b *bytecode.Builder) *Result {
	t.Helper()
	r, err := b.Routine()
	require.NoError(t, err)
	res, err := New().Analyze(r)
	require.NoError(t, err)
	return res
}

func TestEntryFrame(t *testing.T) {
	r := bytecode.NewBuilder("a/Foo", bytecode.AccPublic, "f", "(JZLjava/lang/String;)V").
		Return(bytecode.VoidType).MustRoutine()
	f := EntryFrame(r)
	require.Equal(t, 0, f.Depth())
	require.Equal(t, bytecode.ObjectTypeOf("a/Foo"), f.Local(0))
	require.Equal(t, bytecode.LongType, f.Local(1))
	require.Equal(t, bytecode.TopType, f.Local(2))
	require.Equal(t, bytecode.IntType, f.Local(3))
	require.Equal(t, bytecode.StringType, f.Local(4))

	ctor := bytecode.NewBuilder("a/Foo", bytecode.AccPublic, "<init>", "()V").
		Return(bytecode.VoidType).MustRoutine()
	require.Equal(t, bytecode.UninitializedThis("a/Foo"), EntryFrame(ctor).Local(0))
}

func TestStackShuffles(t *testing.T) {
	a := bytecode.ObjectTypeOf("A")
	b := bytecode.ObjectTypeOf("B")
	c := bytecode.ObjectTypeOf("C")
	d := bytecode.ObjectTypeOf("D")
	tests := []struct {
		code  op.Code
		in    []bytecode.Type
		want  []bytecode.Type
		pops  int
		pushs int
	}{
		{op.Dup, []bytecode.Type{a}, []bytecode.Type{a, a}, 1, 2},
		{op.DupX1, []bytecode.Type{a, b}, []bytecode.Type{b, a, b}, 2, 3},
		{op.DupX2, []bytecode.Type{a, b, c}, []bytecode.Type{c, a, b, c}, 3, 4},
		{op.Dup2, []bytecode.Type{a, b}, []bytecode.Type{a, b, a, b}, 2, 4},
		{op.Dup2X1, []bytecode.Type{a, b, c}, []bytecode.Type{b, c, a, b, c}, 3, 5},
		{op.Dup2X2, []bytecode.Type{a, b, c, d}, []bytecode.Type{c, d, a, b, c, d}, 4, 6},
		{op.Swap, []bytecode.Type{a, b}, []bytecode.Type{b, a}, 2, 2},
		{op.Pop2, []bytecode.Type{a, b}, []bytecode.Type{}, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			f := NewFrame()
			f.PushCells(tt.in...)
			in := &Interpreter{}
			eff, err := in.Execute(f, &bytecode.Insn{Op: tt.code}, 0)
			require.NoError(t, err)
			require.Equal(t, tt.want, f.Cells(0))
			require.Equal(t, tt.pops, eff.Pops)
			require.Equal(t, tt.pushs, eff.Pushes)
		})
	}
}

func TestExecuteUnderflow(t *testing.T) {
	in := &Interpreter{}
	_, err := in.Execute(NewFrame(), &bytecode.Insn{Op: op.Iadd}, 7)
	require.ErrorIs(t, err, ErrStackUnderflow)
	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	require.Equal(t, 7, aerr.Offset)
	require.Equal(t, op.Iadd, aerr.Opcode)
	require.Equal(t, "analysis error at 7 (IADD): stack underflow", err.Error())
}

func TestExecuteLocals(t *testing.T) {
	f := NewFrame()
	f.SetLocal(0, bytecode.LongType)
	in := &Interpreter{}

	eff, err := in.Execute(f, &bytecode.VarInsn{Op: op.Lload, Var: 0}, 0)
	require.NoError(t, err)
	require.Equal(t, []LocalAccess{{Slot: 0, Size: 2}}, eff.Reads)
	require.Equal(t, 0, eff.Pops)
	require.Equal(t, 2, eff.Pushes)

	eff, err = in.Execute(f, &bytecode.Insn{Op: op.L2i}, 1)
	require.NoError(t, err)
	require.Equal(t, 2, eff.Pops)
	require.Equal(t, 1, eff.Pushes)

	eff, err = in.Execute(f, &bytecode.VarInsn{Op: op.Istore, Var: 3}, 2)
	require.NoError(t, err)
	require.Equal(t, []LocalAccess{{Slot: 3, Size: 1}}, eff.Writes)
	require.Equal(t, bytecode.IntType, f.Local(3))

	eff, err = in.Execute(f, &bytecode.IincInsn{Var: 3, Incr: 2}, 3)
	require.NoError(t, err)
	require.Len(t, eff.Reads, 1)
	require.Len(t, eff.Writes, 1)
}

func TestExecuteConstructor(t *testing.T) {
	b := bytecode.NewBuilder("Foo", bytecode.AccStatic, "f", "()Ljava/lang/Object;").
		TypeOp(op.New, "java/lang/StringBuilder").
		Op(op.Dup).
		Invoke(op.Invokespecial, "java/lang/StringBuilder", "<init>", "()V").
		Op(op.Areturn)
	res := analyze(t, b)
	sb := bytecode.ObjectTypeOf("java/lang/StringBuilder")
	require.Equal(t, []bytecode.Type{bytecode.Uninitialized("java/lang/StringBuilder", 0)}, res.FrameAt(1).Cells(0))
	require.Equal(t, []bytecode.Type{sb}, res.FrameAt(3).Cells(0))
}

func TestAnalyzeLoop(t *testing.T) {
	b := bytecode.NewBuilder("Foo", bytecode.AccStatic, "f", "(I)I")
	loop, done := b.NewLabel(), b.NewLabel()
	b.Op(op.AconstNull).Store(bytecode.ObjectType, 1).
		Mark(loop).
		Load(bytecode.IntType, 0).Jump(op.Ifle, done).
		Ldc("x").Store(bytecode.StringType, 1).
		Iinc(0, -1).
		Jump(op.Goto, loop).
		Mark(done).
		Load(bytecode.IntType, 0).Return(bytecode.IntType)
	res := analyze(t, b)

	// Slot 1 is null on entry and a String on the back edge.
	require.Equal(t, bytecode.StringType, res.FrameAt(2).Local(1))
	require.Equal(t, bytecode.IntType, res.FrameAt(2).Local(0))
	require.True(t, res.Reachable(10))
	require.Equal(t, 0, res.FrameAt(10).Depth())
}

func TestAnalyzeUnreachable(t *testing.T) {
	b := bytecode.NewBuilder("Foo", bytecode.AccStatic, "f", "()V").
		Return(bytecode.VoidType).
		Op(op.Nop).
		Return(bytecode.VoidType)
	res := analyze(t, b)
	require.True(t, res.Reachable(0))
	require.False(t, res.Reachable(1))
	require.Nil(t, res.FrameAt(2))
	_, err := res.Range(1, 2)
	require.ErrorIs(t, err, ErrUnreachable)
}

func TestAnalyzeFallOff(t *testing.T) {
	r := bytecode.NewBuilder("Foo", bytecode.AccStatic, "f", "()V").Op(op.Nop).MustRoutine()
	_, err := New().Analyze(r)
	require.ErrorIs(t, err, ErrFallOff)
}

func TestAnalyzeCollectsErrors(t *testing.T) {
	b := bytecode.NewBuilder("Foo", bytecode.AccStatic, "f", "(I)I")
	other := b.NewLabel()
	b.Load(bytecode.IntType, 0).Jump(op.Ifeq, other).
		Op(op.Iadd).Return(bytecode.IntType).
		Mark(other).
		Op(op.Pop).Int(0).Return(bytecode.IntType)
	r, err := b.Routine()
	require.NoError(t, err)

	_, err = New().Analyze(r)
	require.ErrorIs(t, err, ErrStackUnderflow)
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	require.Len(t, merr.Errors, 2)
	var offsets []int
	for _, e := range merr.Errors {
		var aerr *Error
		require.ErrorAs(t, e, &aerr)
		offsets = append(offsets, aerr.Offset)
	}
	require.ElementsMatch(t, []int{2, 5}, offsets)
}

func TestAnalyzeHandler(t *testing.T) {
	b := bytecode.NewBuilder("Foo", bytecode.AccStatic, "f", "()I")
	start, end, handler := b.NewLabel(), b.NewLabel(), b.NewLabel()
	b.Mark(start).
		Int(1).Store(bytecode.IntType, 0).
		Ldc(float32(2)).Store(bytecode.FloatType, 0).
		Mark(end).
		Int(0).Return(bytecode.IntType).
		Mark(handler).
		Op(op.Pop).Int(-1).Return(bytecode.IntType).
		TryCatch(start, end, handler, "java/lang/RuntimeException")
	res := analyze(t, b)
	h := res.FrameAt(9)
	require.Equal(t, []bytecode.Type{bytecode.ObjectTypeOf("java/lang/RuntimeException")}, h.Cells(0))
	// Slot 0 is unset when the protected range is entered.
	require.Equal(t, bytecode.TopType, h.Local(0))
}

func TestRangeFacts(t *testing.T) {
	b := bytecode.NewBuilder("Foo", bytecode.AccStatic, "f", "(IJ)J")
	b.Load(bytecode.IntType, 0)
	b.Load(bytecode.LongType, 1)
	b.Load(bytecode.IntType, 0)
	b.Op(op.I2l, op.Ladd)
	b.Store(bytecode.LongType, 4)
	b.Load(bytecode.LongType, 4)
	b.Op(op.L2i, op.Iadd, op.I2l)
	b.Return(bytecode.LongType)
	res := analyze(t, b)

	facts, err := res.Range(1, 6)
	require.NoError(t, err)
	require.Equal(t, 1, facts.StartDepth)
	require.Equal(t, 1, facts.MinDepth)
	require.Empty(t, facts.Consumed)
	require.Equal(t, []bytecode.Type{bytecode.LongType}, facts.Produced)
	require.Equal(t, map[int]bytecode.Type{0: bytecode.IntType, 1: bytecode.LongType, 4: bytecode.TopType}, facts.Read)
	require.Equal(t, map[int]bytecode.Type{4: bytecode.LongType}, facts.Written)
	require.Equal(t, map[int]int{0: 1, 1: 2, 4: 2}, facts.Widths)
	require.False(t, facts.Branches)

	facts, err = res.Range(7, 8)
	require.NoError(t, err)
	require.Equal(t, 3, facts.StartDepth)
	require.Equal(t, 0, facts.MinDepth)
	require.Equal(t, []bytecode.Type{bytecode.IntType, bytecode.LongType}, facts.Consumed)
	require.Equal(t, []bytecode.Type{bytecode.IntType}, facts.Produced)
}
