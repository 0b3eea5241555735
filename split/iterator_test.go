package split

import (
	"testing"

	"github.com/cretz/msplit/bytecode"
	"github.com/cretz/msplit/op"
	"github.com/stretchr/testify/require"
)

func TestIteratorPeekAndNext(t *testing.T) {
	r := sumRoutine(tempOwner(), 3)
	it, err := New().Points(r, 2, 4)
	require.NoError(t, err)

	peeked, ok := it.Peek()
	require.True(t, ok)
	again, ok := it.Peek()
	require.True(t, ok)
	require.Equal(t, peeked, again)

	first, ok := it.Next()
	require.True(t, ok)
	require.Equal(t, peeked, first)
	require.Equal(t, 0, first.Start)

	second, ok := it.Next()
	require.True(t, ok)
	require.Greater(t, second.Start, first.Start)

	var starts []int
	for sp, ok := it.Next(); ok; sp, ok = it.Next() {
		starts = append(starts, sp.Start)
	}
	require.IsIncreasing(t, starts)
	_, ok = it.Next()
	require.False(t, ok)
	_, ok = it.Peek()
	require.False(t, ok)

	it.Reset()
	sp, ok := it.Next()
	require.True(t, ok)
	require.Equal(t, first, sp)
}

func TestIteratorLongestPerStart(t *testing.T) {
	r := sumRoutine(tempOwner(), 3)
	// 16 instructions; the last one is the return.
	it, err := New().Points(r, 1, 100)
	require.NoError(t, err)
	sp, ok := it.Next()
	require.True(t, ok)
	require.Equal(t, 0, sp.Start)
	require.Equal(t, 15, sp.Length)
}

func TestIteratorSkipsLineContinuations(t *testing.T) {
	b := newStatic(tempOwner(), "lines", "()I")
	b.Line(1).Int(1).Store(bytecode.IntType, 0).
		Line(2).Int(2).Store(bytecode.IntType, 1).
		Load(bytecode.IntType, 0).Load(bytecode.IntType, 1).Op(op.Iadd).
		Return(bytecode.IntType)
	r := b.MustRoutine()

	it, err := New().Points(r, 1, 2)
	require.NoError(t, err)
	var starts []int
	for sp, ok := it.Next(); ok; sp, ok = it.Next() {
		starts = append(starts, sp.Start)
	}
	require.Contains(t, starts, 0)
	require.Contains(t, starts, 2)
	require.NotContains(t, starts, 1)
	require.NotContains(t, starts, 4)
}

func TestSplitPointSlots(t *testing.T) {
	sp := SplitPoint{
		Start:         3,
		Length:        4,
		LocalsRead:    map[int]bytecode.Type{5: bytecode.IntType, 1: bytecode.LongType},
		LocalsWritten: map[int]bytecode.Type{9: bytecode.StringType, 0: bytecode.DoubleType},
	}
	require.Equal(t, 7, sp.End())
	require.Equal(t, []int{1, 5}, sp.ReadSlots())
	require.Equal(t, []int{0, 9}, sp.WrittenSlots())
	require.Equal(t, "(JI)[Ljava/lang/Object;", extractedDescriptor(sp))
	require.Contains(t, sp.String(), "[3, 7)")
}
