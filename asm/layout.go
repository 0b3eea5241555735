package asm

import (
	"fmt"
	"math"

	"github.com/cretz/msplit/bytecode"
	"github.com/cretz/msplit/op"
)

// layout assigns a byte offset to every instruction. Jumps start narrow and
// are widened until every offset fits.
type layout struct {
	routine *bytecode.Routine
	pool    *Pool
	// index holds the constant pool index of each instruction's operand.
	index []uint16
	// wide marks jumps that need a 32-bit offset.
	wide []bool
	// positions holds the byte offset of each instruction, plus one
	// trailing entry holding the code length.
	positions []int
}

func (l *layout) target(lbl *bytecode.Label) int {
	i, _ := l.routine.LabelOffset(lbl)
	return l.positions[i]
}

// size returns the encoded length of the instruction at offset i when it
// starts at byte position pos.
func (l *layout) size(i, pos int) int {
	switch insn := l.routine.InstructionAt(i).(type) {
	case *bytecode.Label, *bytecode.LineNumber, *bytecode.FrameMarker:
		return 0
	case *bytecode.Insn:
		return 1
	case *bytecode.IntInsn:
		if insn.Op == op.Sipush {
			return 3
		}
		return 2
	case *bytecode.VarInsn:
		switch {
		case insn.Op != op.Ret && insn.Var <= 3:
			return 1
		case insn.Var <= math.MaxUint8:
			return 2
		}
		return 4
	case *bytecode.IincInsn:
		if insn.Var <= math.MaxUint8 && insn.Incr >= math.MinInt8 && insn.Incr <= math.MaxInt8 {
			return 3
		}
		return 6
	case *bytecode.TypeInsn, *bytecode.FieldInsn:
		return 3
	case *bytecode.MethodInsn:
		if insn.Op == op.Invokeinterface || insn.Op == op.Invokedynamic {
			return 5
		}
		return 3
	case *bytecode.LdcInsn:
		switch insn.Value.(type) {
		case int64, float64:
			return 3
		}
		if l.index[i] <= math.MaxUint8 {
			return 2
		}
		return 3
	case *bytecode.JumpInsn:
		if !l.wide[i] {
			return 3
		}
		if insn.Op == op.Goto || insn.Op == op.Jsr {
			return 5
		}
		// Inverted condition over a goto_w.
		return 8
	case *bytecode.TableSwitchInsn:
		return 1 + padding(pos) + 12 + 4*len(insn.Labels)
	case *bytecode.LookupSwitchInsn:
		return 1 + padding(pos) + 8 + 8*len(insn.Keys)
	case *bytecode.MultiANewArrayInsn:
		return 4
	}
	panic(fmt.Sprintf("unknown instruction %T", l.routine.InstructionAt(i)))
}

// padding returns the number of bytes aligning a switch operand after the
// opcode at pos to four bytes.
func padding(pos int) int {
	return (4 - (pos+1)%4) % 4
}

func (l *layout) calcPositions() {
	pos := 0
	n := l.routine.InstructionCount()
	for i := 0; i < n; i++ {
		l.positions[i] = pos
		pos += l.size(i, pos)
	}
	l.positions[n] = pos
}

// resolve computes positions, widening jumps whose offset does not fit in
// 16 bits until nothing changes. Widening only moves code forward, so this
// converges.
func (l *layout) resolve() {
	for {
		l.calcPositions()
		changed := false
		for i := 0; i < l.routine.InstructionCount(); i++ {
			j, ok := l.routine.InstructionAt(i).(*bytecode.JumpInsn)
			if !ok || l.wide[i] {
				continue
			}
			off := l.target(j.Label) - l.positions[i]
			if off < math.MinInt16 || off > math.MaxInt16 {
				l.wide[i] = true
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

// invert returns the conditional jump taken exactly when c is not.
func invert(c op.Code) op.Code {
	switch c {
	case op.Ifnull:
		return op.Ifnonnull
	case op.Ifnonnull:
		return op.Ifnull
	}
	return op.Ifeq + ((c - op.Ifeq) ^ 1)
}
