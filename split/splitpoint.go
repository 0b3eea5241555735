package split

import (
	"fmt"

	"github.com/cretz/msplit/analysis"
	"github.com/cretz/msplit/bytecode"
	"golang.org/x/exp/slices"
)

// SplitPoint is a range of instructions chosen for extraction together with
// the values crossing its boundary.
type SplitPoint struct {
	Start  int
	Length int

	// LocalsRead maps the slots whose incoming values the range needs to
	// their types. LocalsWritten maps the slots the range leaves new values
	// in to their types after the range.
	LocalsRead    map[int]bytecode.Type
	LocalsWritten map[int]bytecode.Type

	// StackConsumed holds the values the range pops from the stack it
	// starts on, StackProduced the values it leaves in their place. Both
	// are bottom first.
	StackConsumed []bytecode.Type
	StackProduced []bytecode.Type
}

// End returns the offset just after the range.
func (sp SplitPoint) End() int {
	return sp.Start + sp.Length
}

// ReadSlots returns the keys of LocalsRead in ascending order.
func (sp SplitPoint) ReadSlots() []int {
	return sortedSlots(sp.LocalsRead)
}

// WrittenSlots returns the keys of LocalsWritten in ascending order.
func (sp SplitPoint) WrittenSlots() []int {
	return sortedSlots(sp.LocalsWritten)
}

// String returns a short description of the range.
func (sp SplitPoint) String() string {
	return fmt.Sprintf("[%d, %d) consumed=%v produced=%v read=%v written=%v",
		sp.Start, sp.End(), sp.StackConsumed, sp.StackProduced, sp.LocalsRead, sp.LocalsWritten)
}

func sortedSlots(m map[int]bytecode.Type) []int {
	slots := make([]int, 0, len(m))
	for s := range m {
		slots = append(slots, s)
	}
	slices.Sort(slots)
	return slots
}

// fromFacts turns range facts into a split point. It fails with a reason
// when a value crossing the boundary cannot be passed through an Object
// array.
func fromFacts(facts analysis.RangeFacts) (SplitPoint, error) {
	sp := SplitPoint{
		Start:         facts.Start,
		Length:        facts.End - facts.Start + 1,
		LocalsRead:    map[int]bytecode.Type{},
		LocalsWritten: map[int]bytecode.Type{},
		StackConsumed: facts.Consumed,
		StackProduced: facts.Produced,
	}
	for _, t := range facts.Consumed {
		if !t.IsUsable() {
			return sp, fmt.Errorf("consumed stack value of type %s", t)
		}
	}
	for _, t := range facts.Produced {
		if !t.IsUsable() {
			return sp, fmt.Errorf("produced stack value of type %s", t)
		}
	}
	for slot := range facts.Read {
		t := facts.StartFrame.Local(slot)
		if t.Sort() == bytecode.SortUninitialized {
			return sp, fmt.Errorf("local %d read while %s", slot, t)
		}
		if t.IsUsable() {
			sp.LocalsRead[slot] = t
		}
	}
	for slot, t := range facts.Written {
		if t.Sort() == bytecode.SortUninitialized {
			return sp, fmt.Errorf("local %d written with %s", slot, t)
		}
		if t.IsUsable() {
			sp.LocalsWritten[slot] = t
		}
		// A write on one path leaves the incoming value on the others.
		if facts.Branches {
			if in := facts.StartFrame.Local(slot); in.IsUsable() {
				sp.LocalsRead[slot] = in
			}
		}
	}
	return sp, nil
}
