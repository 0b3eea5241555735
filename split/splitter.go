package split

import (
	"errors"
	"fmt"

	"github.com/cretz/msplit/analysis"
	"github.com/cretz/msplit/bytecode"
	"github.com/rs/zerolog"
)

// ErrNoSplitPoint is returned when no range of the routine satisfies the
// size bounds and the extraction constraints.
var ErrNoSplitPoint = errors.New("no split point found")

// DefaultSuffix is appended to the routine name to name the extracted
// routine.
const DefaultSuffix = "$split"

// Result holds the two routines replacing the original one.
type Result struct {
	// Trimmed has the name, descriptor and access of the original routine
	// and calls Extracted in place of the split range.
	Trimmed *bytecode.Routine
	// Extracted is a private static synthetic routine returning the
	// values produced by the range in an Object array.
	Extracted *bytecode.Routine
	// SplitPoint is the range that was extracted.
	SplitPoint SplitPoint
}

// Splitter splits routines in two. A Splitter holds no state between
// calls.
type Splitter struct {
	logger    zerolog.Logger
	hierarchy analysis.Hierarchy
	suffix    string
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithLogger sets the logger receiving debug events about candidates.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Splitter) {
		s.logger = logger
	}
}

// WithHierarchy sets the class hierarchy used to merge reference types.
func WithHierarchy(h analysis.Hierarchy) Option {
	return func(s *Splitter) {
		s.hierarchy = h
	}
}

// WithSuffix sets the suffix naming extracted routines.
func WithSuffix(suffix string) Option {
	return func(s *Splitter) {
		s.suffix = suffix
	}
}

// New returns a Splitter configured with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		logger:    zerolog.Nop(),
		hierarchy: analysis.ObjectHierarchy{},
		suffix:    DefaultSuffix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultBounds returns the size bounds used by Split for a routine of n
// instructions: 20% + 1 to 70% + 1, stopping at the first candidate of the
// maximum size.
func DefaultBounds(n int) (minSize, maxSize, firstAtLeast int) {
	minSize = n*2/10 + 1
	maxSize = n*7/10 + 1
	return minSize, maxSize, maxSize
}

// Split splits the routine using the default bounds.
func (s *Splitter) Split(r *bytecode.Routine) (*Result, error) {
	minSize, maxSize, firstAtLeast := DefaultBounds(r.InstructionCount())
	return s.SplitBounded(r, minSize, maxSize, firstAtLeast)
}

// SplitBounded extracts the longest range of minSize to maxSize
// instructions. The search stops at the first range of at least
// firstAtLeast instructions; zero searches every start offset.
func (s *Splitter) SplitBounded(r *bytecode.Routine, minSize, maxSize, firstAtLeast int) (*Result, error) {
	sp, err := s.Find(r, minSize, maxSize, firstAtLeast)
	if err != nil {
		return nil, err
	}
	return s.FromSplitPoint(r, sp)
}

// Points returns an iterator over the candidate split points of the
// routine.
func (s *Splitter) Points(r *bytecode.Routine, minSize, maxSize int) (*Iterator, error) {
	frames, err := analysis.New(analysis.WithHierarchy(s.hierarchy)).Analyze(r)
	if err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", r, err)
	}
	return newIterator(frames, minSize, maxSize, s.logger), nil
}

// Find returns the split point SplitBounded would extract.
func (s *Splitter) Find(r *bytecode.Routine, minSize, maxSize, firstAtLeast int) (SplitPoint, error) {
	it, err := s.Points(r, minSize, maxSize)
	if err != nil {
		return SplitPoint{}, err
	}
	var best SplitPoint
	found := false
	for {
		sp, ok := it.Next()
		if !ok {
			break
		}
		if found && sp.Length <= best.Length {
			continue
		}
		best, found = sp, true
		s.logger.Debug().
			Int("start", sp.Start).
			Int("length", sp.Length).
			Msg("candidate")
		if firstAtLeast > 0 && sp.Length >= firstAtLeast {
			break
		}
	}
	if !found {
		return SplitPoint{}, fmt.Errorf("%s: %w", r, ErrNoSplitPoint)
	}
	return best, nil
}

// FromSplitPoint extracts the given split point. The split point is
// trusted to describe the routine; it is only checked to lie within it.
func (s *Splitter) FromSplitPoint(r *bytecode.Routine, sp SplitPoint) (*Result, error) {
	if sp.Length < 1 || sp.Start < 0 || sp.End() > r.InstructionCount() {
		return nil, fmt.Errorf("%s: split point %d+%d out of bounds", r, sp.Start, sp.Length)
	}
	extracted, err := s.extract(r, sp)
	if err != nil {
		return nil, fmt.Errorf("extracting from %s: %w", r, err)
	}
	trimmed, err := s.trim(r, sp, extracted)
	if err != nil {
		return nil, fmt.Errorf("trimming %s: %w", r, err)
	}
	s.logger.Debug().
		Str("routine", r.String()).
		Int("start", sp.Start).
		Int("length", sp.Length).
		Int("trimmed", trimmed.InstructionCount()).
		Int("extracted", extracted.InstructionCount()).
		Msg("split routine")
	return &Result{Trimmed: trimmed, Extracted: extracted, SplitPoint: sp}, nil
}
