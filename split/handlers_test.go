package split

import (
	"testing"

	"github.com/cretz/msplit/analysis"
	"github.com/stretchr/testify/require"
)

func TestHandlerReads(t *testing.T) {
	r := tryLocalRoutine(tempOwner())
	frames, err := analysis.New().Analyze(r)
	require.NoError(t, err)
	h := newHandlerReads(frames, newConstraints(r).regions)

	reads := h.reads(12)
	require.False(t, reads.all)
	require.True(t, reads.has(2))
	require.False(t, reads.has(0))

	tests := []struct {
		start, end, want int
	}{
		// The first store to slot 2 inside the region.
		{2, 8, 4},
		{5, 8, 8},
		{5, 7, -1},
		// Outside the region nothing is watched.
		{0, 1, -1},
		{10, 11, -1},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, h.firstObservedWrite(tt.start, tt.end), "firstObservedWrite(%d, %d)", tt.start, tt.end)
	}

	// The other routine's handler reads no locals.
	r = tryRoutine(tempOwner())
	frames, err = analysis.New().Analyze(r)
	require.NoError(t, err)
	h = newHandlerReads(frames, newConstraints(r).regions)
	require.Equal(t, -1, h.firstObservedWrite(2, 6))
}

func TestRangesKeepHandlerLocals(t *testing.T) {
	r := tryLocalRoutine(tempOwner())
	region := r.RegionAt(0)
	it, err := New().Points(r, 1, r.InstructionCount())
	require.NoError(t, err)
	inside := 0
	for sp, ok := it.Next(); ok; sp, ok = it.Next() {
		if !region.Contains(sp.Start) {
			continue
		}
		inside++
		require.NotContains(t, sp.LocalsWritten, 2, "split %s", sp)
	}
	require.NotZero(t, inside)

	// Dividing by zero inside the extracted routine still returns the value
	// stored before the division.
	s := New()
	res, err := s.FromSplitPoint(r, mustPoint(t, s, r, 5, 3))
	require.NoError(t, err)
	requireEquivalent(t, r, res, []any{1, 0}, []any{9, 3})
}
