package analysis

import (
	"github.com/cretz/msplit/bytecode"
	"github.com/cretz/msplit/op"
	"github.com/hashicorp/go-multierror"
)

// Analyzer computes the frame at every instruction of a routine.
type Analyzer struct {
	hierarchy Hierarchy
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithHierarchy sets the hierarchy consulted when two reference types
// merge. The default answers java/lang/Object.
func WithHierarchy(h Hierarchy) Option {
	return func(a *Analyzer) {
		a.hierarchy = h
	}
}

// New returns an Analyzer configured with the given options.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{hierarchy: ObjectHierarchy{}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// EntryFrame returns the frame on entry to the routine: an empty stack and
// the receiver and arguments in their slots.
func EntryFrame(r *bytecode.Routine) *Frame {
	f := NewFrame()
	slot := 0
	if !r.IsStatic() {
		recv := bytecode.ObjectTypeOf(r.Owner())
		if r.Name() == "<init>" {
			recv = bytecode.UninitializedThis(r.Owner())
		}
		f.SetLocal(0, recv)
		slot = 1
	}
	for i := 0; i < r.ArgumentCount(); i++ {
		t := r.ArgumentAt(i)
		f.SetLocal(slot, t.StackType())
		slot += t.Size()
	}
	return f
}

// Analyze runs the dataflow pass over the routine. Instructions no path
// reaches get no frame. Every offset that fails contributes one error to the
// returned *multierror.Error and its successors are not visited from it.
func (a *Analyzer) Analyze(r *bytecode.Routine) (*Result, error) {
	n := r.InstructionCount()
	res := &Result{
		routine: r,
		interp:  &Interpreter{Owner: r.Owner()},
		frames:  make([]*Frame, n),
		effects: make([]Effect, n),
	}
	if n == 0 {
		return res, nil
	}
	var errs *multierror.Error
	failed := make([]bool, n)
	fail := func(at int, err error) {
		if !failed[at] {
			failed[at] = true
			errs = multierror.Append(errs, err)
		}
	}
	queued := make([]bool, n)
	var work []int
	merge := func(to int, f *Frame) {
		if failed[to] {
			return
		}
		if res.frames[to] == nil {
			res.frames[to] = f.Clone()
		} else {
			changed, err := res.frames[to].Merge(f, a.hierarchy)
			if err != nil {
				fail(to, &Error{Offset: to, Opcode: r.InstructionAt(to).Opcode(), Err: err})
				return
			}
			if !changed {
				return
			}
		}
		if !queued[to] {
			queued[to] = true
			work = append(work, to)
		}
	}
	merge(0, EntryFrame(r))

	for len(work) > 0 {
		i := work[len(work)-1]
		work = work[:len(work)-1]
		queued[i] = false
		if failed[i] {
			continue
		}

		insn := r.InstructionAt(i)
		in := res.frames[i]
		out := in.Clone()
		eff, err := res.interp.Execute(out, insn, i)
		if err != nil {
			fail(i, err)
			continue
		}
		res.effects[i] = eff

		for h := 0; h < r.TryCatchBlockCount(); h++ {
			region := r.RegionAt(h)
			if !region.Contains(i) || bytecode.IsPseudo(insn) {
				continue
			}
			caught := bytecode.ThrowableType
			if region.Type != "" {
				caught = bytecode.ObjectTypeOf(region.Type)
			}
			for _, src := range []*Frame{in, out} {
				hf := src.Clone()
				hf.ClearStack()
				hf.Push(caught)
				merge(region.Handler, hf)
			}
		}

		info := op.GetInfo(insn.Opcode())
		if bytecode.IsPseudo(insn) || info.FallsThrough() {
			if i+1 >= n {
				fail(i, &Error{Offset: i, Opcode: insn.Opcode(), Err: ErrFallOff})
				continue
			}
			merge(i+1, out)
		}
		for _, target := range bytecode.Targets(insn) {
			to, _ := r.LabelOffset(target)
			merge(to, out)
		}
		// Execution resumes after a jsr once the subroutine returns.
		if c := insn.Opcode(); (c == op.Jsr || c == op.JsrW) && i+1 < n {
			merge(i+1, in)
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return res, nil
}
