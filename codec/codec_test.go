package codec

import (
	"context"
	"math"
	"testing"

	"github.com/cretz/msplit/bytecode"
	"github.com/cretz/msplit/dis"
	"github.com/cretz/msplit/op"
	"github.com/cretz/msplit/split"
	"github.com/cretz/msplit/vm"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"
)

// kitchenSink uses every instruction variant. It is not meant to run.
func kitchenSink() *bytecode.Routine {
	b := bytecode.NewBuilder("Sink", bytecode.AccPublic|bytecode.AccStatic, "all", "(IJ)Ljava/lang/Object;")
	start, end, handler := b.NewLabel(), b.NewLabel(), b.NewLabel()
	a, c, dflt := b.NewLabel(), b.NewLabel(), b.NewLabel()
	b.Line(10).
		Mark(start).
		Frame().
		Int(1000).
		Emit(&bytecode.IntInsn{Op: op.Newarray, Operand: op.TInt}).
		Op(op.Pop).
		Ldc(int32(70000)).
		Ldc(int64(-5)).
		Ldc(float32(1.5)).
		Ldc(2.25).
		Ldc("text").
		Ldc(bytecode.StringType).
		Op(op.Pop, op.Pop2, op.Pop, op.Pop2, op.Pop, op.Pop).
		Iinc(0, -3).
		Load(bytecode.LongType, 1).
		Op(op.Pop2).
		TypeOp(op.New, "java/lang/StringBuilder").
		Op(op.Pop).
		Field(op.Getstatic, "Sink", "counter", "I").
		Op(op.Pop).
		Emit(&bytecode.MethodInsn{Op: op.Invokeinterface, Owner: "java/util/List", Name: "size", Desc: "()I", Itf: true}).
		Load(bytecode.IntType, 0).
		TableSwitch(3, dflt, a, c).
		Mark(a).
		Load(bytecode.IntType, 0).
		LookupSwitch(dflt, []int32{-1, 8}, []*bytecode.Label{c, a}).
		Mark(c).
		Int(2).Int(3).
		Emit(&bytecode.MultiANewArrayInsn{Desc: "[[I", Dims: 2}).
		Op(op.Areturn).
		Mark(dflt).
		Load(bytecode.IntType, 0).
		Jump(op.Ifne, a).
		Mark(end).
		Op(op.AconstNull, op.Areturn).
		Mark(handler).
		Op(op.Areturn).
		TryCatch(start, end, handler, "java/lang/RuntimeException").
		TryCatch(a, c, handler, "")
	return b.MustRoutine()
}

func listing(t *testing.T, r *bytecode.Routine) []dis.Instruction {
	t.Helper()
	instructions, err := dis.Disassemble(r)
	require.NoError(t, err)
	return instructions
}

func TestRoundTrip(t *testing.T) {
	r := kitchenSink()
	data, err := Marshal(r)
	require.NoError(t, err)

	decoded, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, r.String(), decoded.String())
	require.Equal(t, r.Access(), decoded.Access())
	require.Equal(t, r.MaxLocals(), decoded.MaxLocals())
	require.Equal(t, r.TryCatchBlockCount(), decoded.TryCatchBlockCount())
	for i := 0; i < r.TryCatchBlockCount(); i++ {
		require.Equal(t, r.RegionAt(i), decoded.RegionAt(i))
	}
	require.Equal(t, listing(t, r), listing(t, decoded))

	again, err := Marshal(decoded)
	require.NoError(t, err)
	require.Equal(t, data, again)
}

func TestConstantTypes(t *testing.T) {
	decoded, err := Unmarshal(mustMarshal(t, kitchenSink()))
	require.NoError(t, err)
	var constants []any
	for i := 0; i < decoded.InstructionCount(); i++ {
		if ldc, ok := decoded.InstructionAt(i).(*bytecode.LdcInsn); ok {
			constants = append(constants, ldc.Value)
		}
	}
	require.Equal(t, []any{
		int32(70000), int64(-5), float32(1.5), 2.25, "text", bytecode.StringType,
	}, constants)
}

func TestFloatConstantBits(t *testing.T) {
	nan32 := math.Float32frombits(0x7fc00001)
	nan64 := math.Float64frombits(0x7ff8000000000abc)
	r := bytecode.NewBuilder("Sink", bytecode.AccStatic, "floats", "()V").
		Ldc(float32(math.Copysign(0, -1))).Op(op.Pop).
		Ldc(math.Copysign(0, -1)).Op(op.Pop2).
		Ldc(nan32).Op(op.Pop).
		Ldc(nan64).Op(op.Pop2).
		Op(op.Return).
		MustRoutine()
	decoded, err := Unmarshal(mustMarshal(t, r))
	require.NoError(t, err)

	f, ok := decoded.InstructionAt(0).(*bytecode.LdcInsn).Value.(float32)
	require.True(t, ok)
	require.Equal(t, uint32(0x80000000), math.Float32bits(f))
	d, ok := decoded.InstructionAt(2).(*bytecode.LdcInsn).Value.(float64)
	require.True(t, ok)
	require.True(t, math.Signbit(d))
	require.Zero(t, d)
	f, ok = decoded.InstructionAt(4).(*bytecode.LdcInsn).Value.(float32)
	require.True(t, ok)
	require.Equal(t, uint32(0x7fc00001), math.Float32bits(f))
	d, ok = decoded.InstructionAt(6).(*bytecode.LdcInsn).Value.(float64)
	require.True(t, ok)
	require.Equal(t, uint64(0x7ff8000000000abc), math.Float64bits(d))
}

func TestDigest(t *testing.T) {
	d1, err := Digest(kitchenSink())
	require.NoError(t, err)
	d2, err := Digest(kitchenSink())
	require.NoError(t, err)
	require.Equal(t, d1, d2)

	other := bytecode.NewBuilder("Sink", bytecode.AccPublic|bytecode.AccStatic, "all", "()V").
		Op(op.Return).
		MustRoutine()
	d3, err := Digest(other)
	require.NoError(t, err)
	require.NotEqual(t, d1, d3)
}

func TestSplitResultSurvivesEncoding(t *testing.T) {
	b := bytecode.NewBuilder("Sum", bytecode.AccPublic|bytecode.AccStatic, "sum", "(I)I")
	for i := 0; i < 40; i++ {
		b.Load(bytecode.IntType, 0).Int(int32(i)).Op(op.Iadd).Store(bytecode.IntType, 0)
	}
	original := b.Load(bytecode.IntType, 0).Return(bytecode.IntType).MustRoutine()

	res, err := split.New().Split(original)
	require.NoError(t, err)

	data, err := MarshalAll(res.Trimmed, res.Extracted)
	require.NoError(t, err)
	routines, err := UnmarshalAll(data)
	require.NoError(t, err)
	require.Len(t, routines, 2)

	machine := vm.New()
	machine.Define(routines...)
	got, err := machine.Invoke(context.Background(), "Sum", "sum", "(I)I", 7)
	require.NoError(t, err)
	require.Equal(t, int32(7+780), got)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Unmarshal([]byte{0xff, 0x00})
	require.Error(t, err)
	require.Contains(t, err.Error(), "codec: unmarshal routine")

	tests := []struct {
		name   string
		mutate func(*Document)
		want   string
	}{
		{"version", func(d *Document) { d.Version = 99 }, "unsupported version 99"},
		{"opcode", func(d *Document) { d.Insns[3].Op = 250 }, "unknown opcode 250"},
		{"pseudo", func(d *Document) { d.Insns[0].Pseudo = "comment" }, `unknown pseudo-instruction "comment"`},
		{"label", func(d *Document) { d.TryCatch[0].Handler = 42 }, "label 42 out of range"},
		{"constant", func(d *Document) { d.Insns[6].Const = "Q" }, `unknown constant kind "Q"`},
		{"descriptor", func(d *Document) { d.Desc = "(I" }, "invalid method descriptor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Encode(kitchenSink())
			require.NoError(t, err)
			tt.mutate(doc)
			data, err := cbor.Marshal(doc)
			require.NoError(t, err)
			_, err = Unmarshal(data)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func mustMarshal(t *testing.T, r *bytecode.Routine) []byte {
	t.Helper()
	data, err := Marshal(r)
	require.NoError(t, err)
	return data
}
