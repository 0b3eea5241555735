package split

import (
	"github.com/cretz/msplit/analysis"
	"github.com/cretz/msplit/bytecode"
	"github.com/rs/zerolog"
)

// Iterator lazily yields the longest valid split point for each start
// offset, in ascending order of start. It is not safe for concurrent use.
type Iterator struct {
	routine     *bytecode.Routine
	frames      *analysis.Result
	constraints *constraints
	handlers    *handlerReads
	minSize     int
	maxSize     int
	logger      zerolog.Logger

	start  int
	peeked bool
	next   SplitPoint
	ok     bool
}

func newIterator(frames *analysis.Result, minSize, maxSize int, logger zerolog.Logger) *Iterator {
	if minSize < 1 {
		minSize = 1
	}
	c := newConstraints(frames.Routine())
	it := &Iterator{
		routine:     frames.Routine(),
		frames:      frames,
		constraints: c,
		handlers:    newHandlerReads(frames, c.regions),
		minSize:     minSize,
		maxSize:     maxSize,
		logger:      logger,
	}
	it.Reset()
	return it
}

// Reset restarts the iteration from offset zero.
func (it *Iterator) Reset() {
	it.start = -1
	it.peeked = false
}

// Peek returns the next split point without consuming it.
func (it *Iterator) Peek() (SplitPoint, bool) {
	if !it.peeked {
		it.next, it.ok = it.advance()
		it.peeked = true
	}
	return it.next, it.ok
}

// Next consumes and returns the next split point. It returns false once
// every start offset has been tried.
func (it *Iterator) Next() (SplitPoint, bool) {
	sp, ok := it.Peek()
	it.peeked = false
	return sp, ok
}

func (it *Iterator) advance() (SplitPoint, bool) {
	n := it.routine.InstructionCount()
	for it.start++; it.start+it.minSize <= n; it.start++ {
		if sp, ok := it.longestAt(it.start); ok {
			return sp, true
		}
	}
	it.start = n
	return SplitPoint{}, false
}

func (it *Iterator) longestAt(start int) (SplitPoint, bool) {
	// Only the first start offset of a source line is tried.
	if start > 0 {
		if _, ok := it.routine.InstructionAt(start - 1).(*bytecode.LineNumber); ok {
			return SplitPoint{}, false
		}
	}
	end := min(start+it.maxSize-1, it.routine.InstructionCount()-1)
	end = it.constraints.constrain(start, end)
	// A handler must not read a local the extracted routine would write.
	if w := it.handlers.firstObservedWrite(start, end); w >= 0 {
		end = it.constraints.constrain(start, w-1)
	}
	if end-start+1 < it.minSize {
		return SplitPoint{}, false
	}
	facts, err := it.frames.Range(start, end)
	if err != nil {
		it.logger.Debug().Err(err).Int("start", start).Int("end", end).Msg("skipping range")
		return SplitPoint{}, false
	}
	sp, err := fromFacts(facts)
	if err != nil {
		it.logger.Debug().Err(err).Int("start", start).Int("end", end).Msg("skipping range")
		return SplitPoint{}, false
	}
	return sp, true
}
