package split

import (
	"github.com/cretz/msplit/bytecode"
	"github.com/cretz/msplit/op"
	"golang.org/x/exp/slices"
)

// extractedAccess is the access of every extracted routine.
const extractedAccess = bytecode.AccPrivate | bytecode.AccStatic | bytecode.AccSynthetic

// extractedDescriptor returns the descriptor of the routine extracted for
// sp: the consumed stack values followed by the read locals in slot order,
// returning an Object array.
func extractedDescriptor(sp SplitPoint) string {
	args := make([]bytecode.Type, 0, len(sp.StackConsumed)+len(sp.LocalsRead))
	args = append(args, sp.StackConsumed...)
	for _, slot := range sp.ReadSlots() {
		args = append(args, sp.LocalsRead[slot])
	}
	return bytecode.MethodTypeOf(bytecode.ObjectArrayType, args...).Descriptor()
}

// slotWidths returns, for every local slot an instruction of the range
// accesses, the widest value accessed through it.
func slotWidths(r *bytecode.Routine, sp SplitPoint) map[int]int {
	widths := map[int]int{}
	for i := sp.Start; i < sp.End(); i++ {
		var slot, width int
		switch insn := r.InstructionAt(i).(type) {
		case *bytecode.VarInsn:
			slot, width = insn.Var, 1
			switch insn.Op {
			case op.Lload, op.Dload, op.Lstore, op.Dstore:
				width = 2
			}
		case *bytecode.IincInsn:
			slot, width = insn.Var, 1
		default:
			continue
		}
		if width > widths[slot] {
			widths[slot] = width
		}
	}
	return widths
}

// extract builds the routine holding the instructions of sp.
func (s *Splitter) extract(r *bytecode.Routine, sp SplitPoint) (*bytecode.Routine, error) {
	b := bytecode.NewBuilder(r.Owner(), extractedAccess, r.Name()+s.suffix, extractedDescriptor(sp))

	next := 0
	stackParams := make([]int, len(sp.StackConsumed))
	for i, t := range sp.StackConsumed {
		stackParams[i] = next
		next += t.Size()
	}
	readSlots := sp.ReadSlots()
	params := make(map[int]int, len(readSlots))
	for _, slot := range readSlots {
		params[slot] = next
		next += sp.LocalsRead[slot].Size()
	}

	// Read locals keep their parameter slot unless the range stores a
	// wider value through them.
	widths := slotWidths(r, sp)
	remap := make(map[int]int, len(widths))
	for _, slot := range readSlots {
		t := sp.LocalsRead[slot]
		if widths[slot] <= t.Size() {
			remap[slot] = params[slot]
			continue
		}
		remap[slot] = next
		b.Load(t, params[slot]).Store(t, next)
		next += widths[slot]
	}
	accessed := make([]int, 0, len(widths))
	for slot := range widths {
		accessed = append(accessed, slot)
	}
	slices.Sort(accessed)
	for _, slot := range accessed {
		if _, ok := remap[slot]; !ok {
			remap[slot] = next
			next += widths[slot]
		}
	}
	for _, slot := range sp.WrittenSlots() {
		if _, ok := remap[slot]; !ok {
			remap[slot] = next
			next += sp.LocalsWritten[slot].Size()
		}
	}
	b.SetMaxLocals(next)

	for i, t := range sp.StackConsumed {
		b.Load(t, stackParams[i])
	}

	body := make([]bytecode.Instruction, 0, sp.Length)
	for i := sp.Start; i < sp.End(); i++ {
		body = append(body, r.InstructionAt(i))
	}
	labels := bytecode.FreshLabels(body)
	for _, insn := range body {
		switch insn := insn.(type) {
		case *bytecode.LineNumber, *bytecode.FrameMarker:
		case *bytecode.VarInsn:
			b.Var(insn.Op, remap[insn.Var])
		case *bytecode.IincInsn:
			b.Iinc(remap[insn.Var], insn.Incr)
		default:
			b.Emit(insn.Clone(labels))
		}
	}

	// Box the produced stack values into the array top first, keeping the
	// array reference under the next value.
	produced := sp.StackProduced
	written := sp.WrittenSlots()
	b.Int(int32(len(produced) + len(written))).TypeOp(op.Anewarray, "java/lang/Object")
	for i := len(produced) - 1; i >= 0; i-- {
		t := produced[i]
		if t.Size() == 2 {
			b.Op(op.DupX2, op.DupX2, op.Pop)
		} else {
			b.Op(op.DupX1, op.Swap)
		}
		b.Box(t).Int(int32(i)).Op(op.Swap, op.Aastore)
	}
	for k, slot := range written {
		t := sp.LocalsWritten[slot]
		b.Op(op.Dup).Int(int32(len(produced)+k)).Load(t, remap[slot]).Box(t).Op(op.Aastore)
	}
	b.Op(op.Areturn)
	return b.Routine()
}

// trim builds the original routine with the range of sp replaced by a call
// to the extracted routine.
func (s *Splitter) trim(r *bytecode.Routine, sp SplitPoint, extracted *bytecode.Routine) (*bytecode.Routine, error) {
	b := bytecode.NewBuilder(r.Owner(), r.Access(), r.Name(), r.Descriptor())
	b.SetMaxLocals(r.MaxLocals())

	all := make([]bytecode.Instruction, r.InstructionCount())
	for i := range all {
		all[i] = r.InstructionAt(i)
	}
	labels := bytecode.FreshLabels(all)
	copyInsns := func(from, to int) {
		for _, insn := range all[from:to] {
			if _, ok := insn.(*bytecode.FrameMarker); ok {
				continue
			}
			b.Emit(insn.Clone(labels))
		}
	}

	copyInsns(0, sp.Start)

	// Labels of the range that bound a protected region move in front of
	// the call.
	protected := map[*bytecode.Label]bool{}
	for i := 0; i < r.TryCatchBlockCount(); i++ {
		tcb := r.TryCatchBlockAt(i)
		protected[tcb.Start] = true
		protected[tcb.End] = true
		protected[tcb.Handler] = true
	}
	for _, insn := range all[sp.Start:sp.End()] {
		if l, ok := insn.(*bytecode.Label); ok && protected[l] {
			b.Mark(labels[l])
		}
	}

	readSlots := sp.ReadSlots()
	for _, slot := range readSlots {
		b.Load(sp.LocalsRead[slot], slot)
	}
	b.Invoke(op.Invokestatic, extracted.Owner(), extracted.Name(), extracted.Descriptor())

	produced := sp.StackProduced
	written := sp.WrittenSlots()
	for k, slot := range written {
		t := sp.LocalsWritten[slot]
		if k < len(written)-1 || len(produced) > 0 {
			b.Op(op.Dup)
		}
		b.Int(int32(len(produced) + k)).Op(op.Aaload).Unbox(t).Store(t, slot)
	}
	for i, t := range produced {
		if i == len(produced)-1 {
			b.Int(int32(i)).Op(op.Aaload).Unbox(t)
			break
		}
		b.Op(op.Dup).Int(int32(i)).Op(op.Aaload).Unbox(t)
		if t.Size() == 2 {
			b.Op(op.Dup2X1, op.Pop2)
		} else {
			b.Op(op.Swap)
		}
	}
	if len(produced)+len(written) == 0 {
		b.Op(op.Pop)
	}

	copyInsns(sp.End(), len(all))

	for i := 0; i < r.TryCatchBlockCount(); i++ {
		tcb := r.TryCatchBlockAt(i)
		b.TryCatch(labels[tcb.Start], labels[tcb.End], labels[tcb.Handler], tcb.Type)
	}
	return b.Routine()
}
