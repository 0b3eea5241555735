package bytecode

import (
	"fmt"
)

// TryCatchBlock protects the instructions between Start (inclusive) and End
// (exclusive). Control transfers to Handler when a throwable of class Type
// is raised; an empty Type catches everything.
type TryCatchBlock struct {
	Start   *Label
	End     *Label
	Handler *Label
	Type    string
}

// ProtectedRegion is a TryCatchBlock resolved to instruction offsets. End is
// exclusive.
type ProtectedRegion struct {
	Start   int
	End     int
	Handler int
	Type    string
}

// Contains reports whether the offset lies inside the protected range.
func (r ProtectedRegion) Contains(offset int) bool {
	return offset >= r.Start && offset < r.End
}

// Routine is a single method body. It is immutable after creation and safe
// for concurrent use.
type Routine struct {
	owner  string
	name   string
	desc   string
	access Access

	instructions []Instruction
	tryCatch     []TryCatchBlock
	regions      []ProtectedRegion
	labels       map[*Label]int

	args      []Type
	ret       Type
	maxLocals int
	maxStack  int
}

// RoutineParams contains parameters for creating a new Routine.
type RoutineParams struct {
	Owner          string
	Name           string
	Desc           string
	Access         Access
	Instructions   []Instruction
	TryCatchBlocks []TryCatchBlock

	// MaxLocals is raised to the argument size when smaller.
	MaxLocals int
	MaxStack  int
}

// NewRoutine creates a new immutable Routine from the given parameters.
// Input slices are copied. Every label referenced by a jump, a switch or
// the try/catch table must be marked exactly once in the instructions.
func NewRoutine(params RoutineParams) (*Routine, error) {
	args, ret, err := ParseMethod(params.Desc)
	if err != nil {
		return nil, err
	}
	r := &Routine{
		owner:        params.Owner,
		name:         params.Name,
		desc:         params.Desc,
		access:       params.Access,
		instructions: copyInstructions(params.Instructions),
		tryCatch:     copyTryCatchBlocks(params.TryCatchBlocks),
		labels:       map[*Label]int{},
		args:         args,
		ret:          ret,
		maxLocals:    params.MaxLocals,
		maxStack:     params.MaxStack,
	}
	if argSize := r.ArgumentsSize(); r.maxLocals < argSize {
		r.maxLocals = argSize
	}
	for i, insn := range r.instructions {
		if insn == nil {
			return nil, fmt.Errorf("%s: nil instruction at %d", r, i)
		}
		l, ok := insn.(*Label)
		if !ok {
			continue
		}
		if prev, dup := r.labels[l]; dup {
			return nil, fmt.Errorf("%s: label %s marked at %d and %d", r, l, prev, i)
		}
		r.labels[l] = i
	}
	for i, insn := range r.instructions {
		for _, target := range Targets(insn) {
			if _, ok := r.labels[target]; !ok {
				return nil, fmt.Errorf("%s: instruction %d jumps to unmarked label %s", r, i, target)
			}
		}
	}
	r.regions = make([]ProtectedRegion, len(r.tryCatch))
	for i, tcb := range r.tryCatch {
		start, ok1 := r.labels[tcb.Start]
		end, ok2 := r.labels[tcb.End]
		handler, ok3 := r.labels[tcb.Handler]
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("%s: try/catch block %d references an unmarked label", r, i)
		}
		if start > end {
			return nil, fmt.Errorf("%s: try/catch block %d ends before it starts", r, i)
		}
		r.regions[i] = ProtectedRegion{Start: start, End: end, Handler: handler, Type: tcb.Type}
	}
	return r, nil
}

// MustRoutine is like NewRoutine but panics on error.
func MustRoutine(params RoutineParams) *Routine {
	r, err := NewRoutine(params)
	if err != nil {
		panic(err)
	}
	return r
}

// Owner returns the internal name of the declaring class.
func (r *Routine) Owner() string {
	return r.owner
}

// Name returns the routine name.
func (r *Routine) Name() string {
	return r.name
}

// Descriptor returns the method descriptor.
func (r *Routine) Descriptor() string {
	return r.desc
}

// Access returns the access flags.
func (r *Routine) Access() Access {
	return r.access
}

// IsStatic reports whether the routine has no receiver.
func (r *Routine) IsStatic() bool {
	return r.access.Has(AccStatic)
}

// InstructionCount returns the number of instructions, markers included.
func (r *Routine) InstructionCount() int {
	return len(r.instructions)
}

// InstructionAt returns the instruction at the given offset.
func (r *Routine) InstructionAt(i int) Instruction {
	return r.instructions[i]
}

// TryCatchBlockCount returns the number of try/catch blocks.
func (r *Routine) TryCatchBlockCount() int {
	return len(r.tryCatch)
}

// TryCatchBlockAt returns the try/catch block at the given index.
func (r *Routine) TryCatchBlockAt(i int) TryCatchBlock {
	return r.tryCatch[i]
}

// RegionAt returns the try/catch block at the given index resolved to
// instruction offsets.
func (r *Routine) RegionAt(i int) ProtectedRegion {
	return r.regions[i]
}

// LabelOffset returns the offset at which the label is marked.
func (r *Routine) LabelOffset(l *Label) (int, bool) {
	i, ok := r.labels[l]
	return i, ok
}

// ArgumentCount returns the number of declared arguments.
func (r *Routine) ArgumentCount() int {
	return len(r.args)
}

// ArgumentAt returns the declared type of the i'th argument.
func (r *Routine) ArgumentAt(i int) Type {
	return r.args[i]
}

// ArgumentsSize returns the number of local slots taken by the arguments,
// including the receiver of an instance routine.
func (r *Routine) ArgumentsSize() int {
	n := ArgumentsSize(r.args)
	if !r.IsStatic() {
		n++
	}
	return n
}

// ReturnType returns the declared return type.
func (r *Routine) ReturnType() Type {
	return r.ret
}

// MaxLocals returns the number of local slots the routine declares.
func (r *Routine) MaxLocals() int {
	return r.maxLocals
}

// MaxStack returns the declared operand stack size, zero when unknown.
func (r *Routine) MaxStack() int {
	return r.maxStack
}

// Params returns a copy of the parameters the routine was built from.
func (r *Routine) Params() RoutineParams {
	return RoutineParams{
		Owner:          r.owner,
		Name:           r.name,
		Desc:           r.desc,
		Access:         r.access,
		Instructions:   copyInstructions(r.instructions),
		TryCatchBlocks: copyTryCatchBlocks(r.tryCatch),
		MaxLocals:      r.maxLocals,
		MaxStack:       r.maxStack,
	}
}

// String returns "owner.name desc".
func (r *Routine) String() string {
	return r.owner + "." + r.name + r.desc
}
