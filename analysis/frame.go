package analysis

import (
	"fmt"
	"strings"

	"github.com/cretz/msplit/bytecode"
	"golang.org/x/exp/slices"
)

// Frame is the abstract state before or after an instruction: the types
// of the operand stack cells, bottom first, and of the local slots. A long
// or double takes two cells (or slots); the second one holds Top. Slots
// missing from the map are Top.
type Frame struct {
	stack  []bytecode.Type
	locals map[int]bytecode.Type

	// low is the lowest depth reached since the last mark.
	low int
}

// NewFrame returns an empty frame.
func NewFrame() *Frame {
	return &Frame{locals: map[int]bytecode.Type{}}
}

// Clone returns an independent copy of the frame.
func (f *Frame) Clone() *Frame {
	c := &Frame{
		stack:  make([]bytecode.Type, len(f.stack)),
		locals: make(map[int]bytecode.Type, len(f.locals)),
		low:    f.low,
	}
	copy(c.stack, f.stack)
	for k, v := range f.locals {
		c.locals[k] = v
	}
	return c
}

// Depth returns the number of operand stack cells.
func (f *Frame) Depth() int {
	return len(f.stack)
}

// Cell returns the type of the i'th stack cell counted from the bottom.
func (f *Frame) Cell(i int) bytecode.Type {
	return f.stack[i]
}

// Cells returns a copy of the stack cells between from and the top.
func (f *Frame) Cells(from int) []bytecode.Type {
	cells := make([]bytecode.Type, len(f.stack)-from)
	copy(cells, f.stack[from:])
	return cells
}

// Values returns the stack values between cell from and the top, with each
// wide value reported once.
func (f *Frame) Values(from int) []bytecode.Type {
	return collapse(f.stack[from:])
}

// Push pushes a value, taking two cells for wide types.
func (f *Frame) Push(t bytecode.Type) {
	f.stack = append(f.stack, t)
	if t.Size() == 2 {
		f.stack = append(f.stack, bytecode.TopType)
	}
}

// PopCell pops a single stack cell.
func (f *Frame) PopCell() (bytecode.Type, error) {
	if len(f.stack) == 0 {
		return bytecode.TopType, ErrStackUnderflow
	}
	t := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	if len(f.stack) < f.low {
		f.low = len(f.stack)
	}
	return t, nil
}

// Pop pops one value, which takes two cells when it is wide.
func (f *Frame) Pop() (bytecode.Type, error) {
	t, err := f.PopCell()
	if err != nil {
		return t, err
	}
	if t.Sort() == bytecode.SortTop && len(f.stack) > 0 && f.stack[len(f.stack)-1].Size() == 2 {
		return f.PopCell()
	}
	return t, nil
}

// PopN pops n cells and returns them bottom first.
func (f *Frame) PopN(n int) ([]bytecode.Type, error) {
	if n > len(f.stack) {
		f.low = 0
		return nil, ErrStackUnderflow
	}
	cells := f.Cells(len(f.stack) - n)
	for i := 0; i < n; i++ {
		if _, err := f.PopCell(); err != nil {
			return nil, err
		}
	}
	return cells, nil
}

// PushCells pushes raw cells, bottom first.
func (f *Frame) PushCells(cells ...bytecode.Type) {
	f.stack = append(f.stack, cells...)
}

// ClearStack empties the operand stack.
func (f *Frame) ClearStack() {
	f.stack = f.stack[:0]
	f.low = 0
}

// Local returns the type held in a local slot, Top when unset.
func (f *Frame) Local(slot int) bytecode.Type {
	if t, ok := f.locals[slot]; ok {
		return t
	}
	return bytecode.TopType
}

// SetLocal stores a value in a local slot. A wide value also claims the
// next slot, and a value stored into the second half of a wide value
// invalidates it.
func (f *Frame) SetLocal(slot int, t bytecode.Type) {
	if prev, ok := f.locals[slot-1]; ok && prev.Size() == 2 {
		f.locals[slot-1] = bytecode.TopType
	}
	f.locals[slot] = t
	if t.Size() == 2 {
		f.locals[slot+1] = bytecode.TopType
	}
}

// Slots returns the set local slots in ascending order.
func (f *Frame) Slots() []int {
	slots := make([]int, 0, len(f.locals))
	for s := range f.locals {
		slots = append(slots, s)
	}
	slices.Sort(slots)
	return slots
}

// Replace substitutes every occurrence of one type by another, on the
// stack and in the locals. It runs when a constructor initializes an
// object.
func (f *Frame) Replace(from, to bytecode.Type) {
	for i, t := range f.stack {
		if t == from {
			f.stack[i] = to
		}
	}
	for s, t := range f.locals {
		if t == from {
			f.locals[s] = to
		}
	}
}

func (f *Frame) mark() {
	f.low = len(f.stack)
}

// Merge merges other into f and reports whether f changed.
func (f *Frame) Merge(other *Frame, h Hierarchy) (bool, error) {
	if len(f.stack) != len(other.stack) {
		return false, fmt.Errorf("%w: %d and %d", ErrStackMismatch, len(f.stack), len(other.stack))
	}
	changed := false
	for i, t := range f.stack {
		m := mergeTypes(t, other.stack[i], h)
		if m != t {
			f.stack[i] = m
			changed = true
		}
	}
	for s, t := range f.locals {
		if t.Sort() == bytecode.SortTop {
			continue
		}
		m := mergeTypes(t, other.Local(s), h)
		if m != t {
			f.locals[s] = m
			changed = true
		}
	}
	return changed, nil
}

// String renders the frame as "[stack] {slot:type ...}".
func (f *Frame) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, t := range f.stack {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.String())
	}
	sb.WriteString("] {")
	for i, s := range f.Slots() {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d:%s", s, f.locals[s])
	}
	sb.WriteByte('}')
	return sb.String()
}

// mergeTypes returns the type of a value that may be either a or b.
func mergeTypes(a, b bytecode.Type, h Hierarchy) bytecode.Type {
	if a == b {
		return a
	}
	if !mergeableRef(a) || !mergeableRef(b) {
		return bytecode.TopType
	}
	if a.Sort() == bytecode.SortNull {
		return b
	}
	if b.Sort() == bytecode.SortNull {
		return a
	}
	return bytecode.ObjectTypeOf(h.CommonSuperClass(a.InternalName(), b.InternalName()))
}

func mergeableRef(t bytecode.Type) bool {
	switch t.Sort() {
	case bytecode.SortObject, bytecode.SortArray, bytecode.SortNull:
		return true
	}
	return false
}

func collapse(cells []bytecode.Type) []bytecode.Type {
	var values []bytecode.Type
	for i := 0; i < len(cells); i++ {
		values = append(values, cells[i])
		if cells[i].Size() == 2 {
			i++
		}
	}
	return values
}
