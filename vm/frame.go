package vm

import (
	"fmt"

	"github.com/cretz/msplit/bytecode"
)

// frame is the activation of one routine: its locals, operand stack and
// instruction pointer.
type frame struct {
	routine *bytecode.Routine
	name    string
	locals  []any
	stack   []any
	ip      int
	line    int
	newLine bool
}

func newFrame(r *bytecode.Routine, args []any) *frame {
	f := &frame{
		routine: r,
		name:    r.String(),
		locals:  make([]any, max(r.MaxLocals(), r.ArgumentsSize())),
		stack:   make([]any, 0, r.MaxStack()+2),
	}
	slot := 0
	if !r.IsStatic() {
		f.locals[0] = args[0]
		args = args[1:]
		slot++
	}
	for i, arg := range args {
		t := r.ArgumentAt(i)
		f.locals[slot] = arg
		if t.Size() == 2 {
			f.locals[slot+1] = wide
		}
		slot += t.Size()
	}
	return f
}

func (f *frame) push(v any) {
	f.stack = append(f.stack, v)
}

// pushValue pushes a value and, for long and double, its wide marker.
func (f *frame) pushValue(v any) {
	f.stack = append(f.stack, v)
	switch v.(type) {
	case int64, float64:
		f.stack = append(f.stack, wide)
	}
}

func (f *frame) pop() any {
	if len(f.stack) == 0 {
		panic(fmt.Sprintf("operand stack underflow in %s at %d", f.name, f.ip))
	}
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

// popValue pops one value, skipping the wide marker of a long or double.
func (f *frame) popValue() any {
	v := f.pop()
	if v == wide {
		return f.pop()
	}
	return v
}

// popCells removes the top n cells and returns them bottom first.
func (f *frame) popCells(n int) []any {
	if len(f.stack) < n {
		panic(fmt.Sprintf("operand stack underflow in %s at %d", f.name, f.ip))
	}
	cells := make([]any, n)
	copy(cells, f.stack[len(f.stack)-n:])
	f.stack = f.stack[:len(f.stack)-n]
	return cells
}

func (f *frame) popInt() int32      { return f.pop().(int32) }
func (f *frame) popFloat() float32  { return f.pop().(float32) }
func (f *frame) popLong() int64     { return f.popValue().(int64) }
func (f *frame) popDouble() float64 { return f.popValue().(float64) }

func (f *frame) load(slot int) any {
	return f.locals[slot]
}

func (f *frame) store(slot int, v any) {
	if need := slot + 2; need > len(f.locals) {
		f.locals = append(f.locals, make([]any, need-len(f.locals))...)
	}
	if slot > 0 && f.locals[slot-1] != nil {
		switch f.locals[slot-1].(type) {
		case int64, float64:
			f.locals[slot-1] = nil
		}
	}
	f.locals[slot] = v
	switch v.(type) {
	case int64, float64:
		f.locals[slot+1] = wide
	}
}
