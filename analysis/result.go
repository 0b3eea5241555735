package analysis

import (
	"github.com/cretz/msplit/bytecode"
)

// Result holds the frames computed for a routine.
type Result struct {
	routine *bytecode.Routine
	interp  *Interpreter
	frames  []*Frame
	effects []Effect
}

// Routine returns the analyzed routine.
func (r *Result) Routine() *bytecode.Routine {
	return r.routine
}

// Reachable reports whether some path reaches the instruction.
func (r *Result) Reachable(i int) bool {
	return r.frames[i] != nil
}

// FrameAt returns the frame before the instruction at offset i, or nil if
// it is unreachable. The frame must not be modified.
func (r *Result) FrameAt(i int) *Frame {
	return r.frames[i]
}

// EffectAt returns the effect of the instruction at offset i.
func (r *Result) EffectAt(i int) Effect {
	return r.effects[i]
}

// OutFrame returns the frame after the instruction at offset i.
func (r *Result) OutFrame(i int) (*Frame, error) {
	if r.frames[i] == nil {
		return nil, &Error{Offset: i, Opcode: r.routine.InstructionAt(i).Opcode(), Err: ErrUnreachable}
	}
	out := r.frames[i].Clone()
	if _, err := r.interp.Execute(out, r.routine.InstructionAt(i), i); err != nil {
		return nil, err
	}
	return out, nil
}

// RangeFacts describes the data flowing into and out of the instructions
// start..end (inclusive).
type RangeFacts struct {
	Start int
	End   int

	// StartFrame is the frame before Start and ExitFrame the frame after
	// End.
	StartFrame *Frame
	ExitFrame  *Frame

	// StartDepth is the stack depth before Start. MinDepth is the lowest
	// depth any instruction of the range pops down to.
	StartDepth int
	MinDepth   int

	// Consumed holds the values between MinDepth and StartDepth at Start,
	// Produced the values above MinDepth after End. Both are bottom first.
	Consumed []bytecode.Type
	Produced []bytecode.Type

	// Read maps each slot read in the range to its type at Start, Written
	// each slot written to its type after End.
	Read    map[int]bytecode.Type
	Written map[int]bytecode.Type

	// Widths maps each accessed slot to the widest value the range reads
	// or writes through it.
	Widths map[int]int

	// Branches reports whether the range contains a jump or switch.
	Branches bool
}

// Range computes the facts of the given inclusive range. Both ends must be
// reachable.
func (r *Result) Range(start, end int) (RangeFacts, error) {
	facts := RangeFacts{
		Start:   start,
		End:     end,
		Read:    map[int]bytecode.Type{},
		Written: map[int]bytecode.Type{},
		Widths:  map[int]int{},
	}
	facts.StartFrame = r.frames[start]
	if facts.StartFrame == nil {
		return facts, &Error{Offset: start, Opcode: r.routine.InstructionAt(start).Opcode(), Err: ErrUnreachable}
	}
	exit, err := r.OutFrame(end)
	if err != nil {
		return facts, err
	}
	facts.ExitFrame = exit
	facts.StartDepth = facts.StartFrame.Depth()
	facts.MinDepth = facts.StartDepth

	widen := func(a LocalAccess) {
		if a.Size > facts.Widths[a.Slot] {
			facts.Widths[a.Slot] = a.Size
		}
	}
	for i := start; i <= end; i++ {
		if len(bytecode.Targets(r.routine.InstructionAt(i))) > 0 {
			facts.Branches = true
		}
		f := r.frames[i]
		if f == nil {
			continue
		}
		eff := r.effects[i]
		if d := f.Depth() - eff.Pops; d < facts.MinDepth {
			facts.MinDepth = d
		}
		for _, a := range eff.Reads {
			widen(a)
			facts.Read[a.Slot] = facts.StartFrame.Local(a.Slot)
		}
		for _, a := range eff.Writes {
			widen(a)
			facts.Written[a.Slot] = exit.Local(a.Slot)
		}
	}

	// Never split a wide value in two.
	if m := facts.MinDepth; m > 0 && m < facts.StartDepth &&
		facts.StartFrame.Cell(m).Sort() == bytecode.SortTop &&
		facts.StartFrame.Cell(m-1).Size() == 2 {
		facts.MinDepth--
	}
	facts.Consumed = collapse(facts.StartFrame.Cells(facts.MinDepth))
	facts.Produced = collapse(exit.Cells(facts.MinDepth))
	return facts, nil
}
