package dis

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cretz/msplit/bytecode"
	"github.com/cretz/msplit/op"
	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

func disableColor(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })
}

func absRoutine() *bytecode.Routine {
	b := bytecode.NewBuilder("Foo", bytecode.AccPublic|bytecode.AccStatic, "abs", "(I)I")
	positive := b.NewLabel()
	b.Line(3).
		Load(bytecode.IntType, 0).
		Jump(op.Ifge, positive).
		Load(bytecode.IntType, 0).
		Op(op.Ineg).
		Return(bytecode.IntType).
		Mark(positive).
		Load(bytecode.IntType, 0).
		Return(bytecode.IntType)
	return b.MustRoutine()
}

func TestRoutineDisassembly(t *testing.T) {
	disableColor(t)
	instructions, err := Disassemble(absRoutine())
	require.Nil(t, err)
	require.Len(t, instructions, 9)

	var buf bytes.Buffer
	Print(instructions, &buf)

	expected := strings.TrimSpace(`
+--------+---------+----------+------+
| OFFSET | OPCODE  | OPERANDS | INFO |
+--------+---------+----------+------+
|      0 | LINE    |        3 |      |
|      1 | ILOAD   |        0 | arg0 |
|      2 | IFGE    |          | L1   |
|      3 | ILOAD   |        0 | arg0 |
|      4 | INEG    |          |      |
|      5 | IRETURN |          |      |
|      6 | L1:     |          |      |
|      7 | ILOAD   |        0 | arg0 |
|      8 | IRETURN |          |      |
+--------+---------+----------+------+
`)
	require.Equal(t, expected+"\n", buf.String())
}

func TestDisassembleOperands(t *testing.T) {
	b := bytecode.NewBuilder("Foo", bytecode.AccPublic, "f", "(JI)Ljava/lang/Object;")
	start, end, handler := b.NewLabel(), b.NewLabel(), b.NewLabel()
	one, dflt := b.NewLabel(), b.NewLabel()
	b.Mark(start).
		Load(bytecode.IntType, 3).
		TableSwitch(1, dflt, one).
		Mark(one).
		Ldc("hi").
		Op(op.Areturn).
		Mark(dflt).
		Iinc(3, -2).
		Emit(&bytecode.IntInsn{Op: op.Newarray, Operand: op.TLong}).
		Op(op.Areturn).
		Mark(end).
		Mark(handler).
		Op(op.Areturn).
		TryCatch(start, end, handler, "java/lang/RuntimeException")
	r := b.MustRoutine()

	instructions, err := Disassemble(r)
	require.Nil(t, err)

	byOffset := func(i int) Instruction {
		require.Equal(t, i, instructions[i].Offset)
		return instructions[i]
	}
	require.Equal(t, "try#0 start", byOffset(0).Annotation)
	require.Equal(t, "arg1", byOffset(1).Annotation)
	require.Equal(t, "TABLESWITCH", byOffset(2).Name)
	require.Equal(t, []string{"1", "1"}, byOffset(2).Operands)
	require.Equal(t, "1: L4, default: L5", byOffset(2).Annotation)
	require.Equal(t, "hi", byOffset(4).Constant)
	require.Equal(t, []string{"3", "-2"}, byOffset(7).Operands)
	require.Equal(t, "arg1", byOffset(7).Annotation)
	require.Equal(t, "long", byOffset(8).Annotation)
	require.Equal(t, "try#0 end", byOffset(10).Annotation)
	require.Equal(t, "try#0 catch java/lang/RuntimeException", byOffset(11).Annotation)
	require.Equal(t, op.None, byOffset(11).Opcode)
}

func TestLocalNames(t *testing.T) {
	b := bytecode.NewBuilder("Foo", bytecode.AccPublic, "f", "(JI)V")
	b.Op(op.Return)
	r := b.MustRoutine()
	require.Equal(t, "this", localName(r, 0))
	require.Equal(t, "arg0", localName(r, 1))
	require.Equal(t, "", localName(r, 2))
	require.Equal(t, "arg1", localName(r, 3))
	require.Equal(t, "", localName(r, 4))
}

func TestFprint(t *testing.T) {
	disableColor(t)
	var buf bytes.Buffer
	require.Nil(t, Fprint(&buf, absRoutine()))
	first := strings.SplitN(buf.String(), "\n", 2)[0]
	require.Equal(t, "public static Foo.abs(I)I (locals=1, instructions=9)", first)
}
