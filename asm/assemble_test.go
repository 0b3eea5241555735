package asm

import (
	"errors"
	"testing"

	"github.com/cretz/msplit/bytecode"
	"github.com/cretz/msplit/op"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"
)

func newBuilder(desc string) *bytecode.Builder {
	return bytecode.NewBuilder("Foo", bytecode.AccPublic|bytecode.AccStatic, "f", desc)
}

func TestAssembleShortForms(t *testing.T) {
	r := newBuilder("()I").
		Int(1).Store(bytecode.IntType, 0).
		Int(100).Store(bytecode.IntType, 4).
		Load(bytecode.IntType, 0).Load(bytecode.IntType, 4).Op(op.Iadd).
		Iinc(4, 1).
		Return(bytecode.IntType).
		MustRoutine()
	m, err := Assemble(r)
	require.NoError(t, err)
	require.Equal(t, []byte{
		4, 59, // iconst_1, istore_0
		16, 100, 54, 4, // bipush 100, istore 4
		26, 21, 4, 96, // iload_0, iload 4, iadd
		132, 4, 1, // iinc 4 1
		172, // ireturn
	}, m.Code)
	require.Equal(t, 2, m.MaxStack)
	require.Equal(t, 5, m.MaxLocals)
	require.Equal(t, []int{0, 1, 2, 4, 6, 7, 9, 10, 13}, m.Positions)
}

func TestAssembleWideLocals(t *testing.T) {
	r := newBuilder("()V").
		Int(1).Store(bytecode.IntType, 300).
		Iinc(300, 1000).
		Return(bytecode.VoidType).
		MustRoutine()
	m, err := Assemble(r)
	require.NoError(t, err)
	require.Equal(t, []byte{
		4,
		196, 54, 1, 44, // wide istore 300
		196, 132, 1, 44, 3, 232, // wide iinc 300 1000
		177,
	}, m.Code)
	require.Equal(t, 301, m.MaxLocals)
}

func TestAssembleLdc(t *testing.T) {
	r := newBuilder("()V").
		Ldc(int32(100000)).Op(op.Pop).
		Ldc("hi").Op(op.Pop).
		Ldc(int64(7)).Op(op.Pop2).
		Ldc(int32(100000)).Op(op.Pop).
		Return(bytecode.VoidType).
		MustRoutine()
	m, err := Assemble(r)
	require.NoError(t, err)
	require.Equal(t, []byte{
		18, 1, 87, // ldc #1 (int)
		18, 3, 87, // ldc #3 (string, utf8 at #2)
		20, 0, 4, 88, // ldc2_w #4
		18, 1, 87, // deduplicated
		177,
	}, m.Code)
	require.Equal(t, 6, m.Pool.Len())
	require.Equal(t, 2, m.MaxStack)
}

func TestAssembleWideGoto(t *testing.T) {
	b := newBuilder("()V")
	target := b.NewLabel()
	b.Jump(op.Goto, target)
	for i := 0; i < 40000; i++ {
		b.Op(op.Nop)
	}
	b.Mark(target).Return(bytecode.VoidType)
	m, err := Assemble(b.MustRoutine())
	require.NoError(t, err)
	require.Equal(t, []byte{200, 0, 0, 0x9c, 0x45}, m.Code[:5])
	require.Len(t, m.Code, 40006)
}

func TestAssembleWideConditional(t *testing.T) {
	b := newBuilder("()V")
	target := b.NewLabel()
	b.Int(0).Jump(op.Ifeq, target)
	for i := 0; i < 40000; i++ {
		b.Op(op.Nop)
	}
	b.Mark(target).Return(bytecode.VoidType)
	m, err := Assemble(b.MustRoutine())
	require.NoError(t, err)
	require.Equal(t, []byte{3, 154, 0, 8, 200, 0, 0, 0x9c, 0x45}, m.Code[:9])
	require.Len(t, m.Code, 1+8+40000+1)
}

func TestAssembleTableSwitch(t *testing.T) {
	b := newBuilder("()V")
	dflt, one := b.NewLabel(), b.NewLabel()
	b.Int(0).TableSwitch(0, dflt, one).
		Mark(one).Op(op.Nop).
		Mark(dflt).Return(bytecode.VoidType)
	m, err := Assemble(b.MustRoutine())
	require.NoError(t, err)
	require.Equal(t, []byte{
		3,
		170, 0, 0, // tableswitch, padding
		0, 0, 0, 20, // default
		0, 0, 0, 0, // low
		0, 0, 0, 0, // high
		0, 0, 0, 19, // 0
		0,
		177,
	}, m.Code)
}

func TestAssembleExceptions(t *testing.T) {
	b := newBuilder("()V")
	start, end, handler, empty := b.NewLabel(), b.NewLabel(), b.NewLabel(), b.NewLabel()
	b.Mark(start).Op(op.Nop).Mark(end).Mark(empty).Return(bytecode.VoidType).
		Mark(handler).Op(op.Pop).Return(bytecode.VoidType).
		TryCatch(start, end, handler, "java/lang/Exception").
		TryCatch(end, empty, handler, "")
	m, err := Assemble(b.MustRoutine())
	require.NoError(t, err)
	require.Len(t, m.Exceptions, 1)
	require.Equal(t, uint16(0), m.Exceptions[0].StartPC)
	require.Equal(t, uint16(1), m.Exceptions[0].EndPC)
	require.Equal(t, uint16(2), m.Exceptions[0].HandlerPC)
	require.NotZero(t, m.Exceptions[0].CatchType)
	require.Equal(t, 1, m.MaxStack)
}

func TestAssembleTooLarge(t *testing.T) {
	b := newBuilder("()V")
	for i := 0; i < 70000; i++ {
		b.Op(op.Nop)
	}
	b.Return(bytecode.VoidType)
	_, err := Assemble(b.MustRoutine())
	require.ErrorIs(t, err, ErrMethodTooLarge)
	var tooLarge *MethodTooLargeError
	require.True(t, errors.As(err, &tooLarge))
	require.Equal(t, "f", tooLarge.Name)
	require.Equal(t, 70001, tooLarge.CodeSize)
}

func TestAssembleAggregatesErrors(t *testing.T) {
	r := newBuilder("()V").
		Emit(&bytecode.IntInsn{Op: op.Bipush, Operand: 300}).Op(op.Pop).
		Ldc([]byte{1}).Op(op.Pop).
		Return(bytecode.VoidType).
		MustRoutine()
	_, err := Assemble(r)
	require.Error(t, err)
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	require.Len(t, merr.Errors, 3)
}

func TestInvert(t *testing.T) {
	require.Equal(t, op.Ifne, invert(op.Ifeq))
	require.Equal(t, op.IfIcmple, invert(op.IfIcmpgt))
	require.Equal(t, op.IfAcmpeq, invert(op.IfAcmpne))
	require.Equal(t, op.Ifnonnull, invert(op.Ifnull))
}

func TestPoolDedup(t *testing.T) {
	p := NewPool()
	a, err := p.Member(TagMethodref, "java/lang/Integer", "valueOf", "(I)Ljava/lang/Integer;")
	require.NoError(t, err)
	b, err := p.Member(TagMethodref, "java/lang/Integer", "valueOf", "(I)Ljava/lang/Integer;")
	require.NoError(t, err)
	require.Equal(t, a, b)
	c, err := p.Class("java/lang/Integer")
	require.NoError(t, err)
	require.Less(t, c, a)
	require.Equal(t, 7, p.Len())
}
