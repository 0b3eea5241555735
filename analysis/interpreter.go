package analysis

import (
	"fmt"

	"github.com/cretz/msplit/bytecode"
	"github.com/cretz/msplit/op"
)

// LocalAccess is a read or write of a local slot by one instruction.
type LocalAccess struct {
	Slot int
	Size int
}

// Effect summarizes what one instruction did to a frame.
type Effect struct {
	// Pops is the number of cells popped below the depth the instruction
	// started at.
	Pops int
	// Pushes is the number of cells the instruction left above that
	// lowest depth.
	Pushes int
	Reads  []LocalAccess
	Writes []LocalAccess
}

// Interpreter applies instructions to frames.
type Interpreter struct {
	// Owner is the internal name of the class declaring the routine being
	// interpreted.
	Owner string
}

var (
	classType = bytecode.ObjectTypeOf("java/lang/Class")
	// returnAddress stands for the value pushed by jsr. It can only be
	// stored and consumed by ret.
	returnAddress = bytecode.TopType
)

// Execute applies the instruction at the given offset to frame f in place.
func (in *Interpreter) Execute(f *Frame, insn bytecode.Instruction, offset int) (Effect, error) {
	start := f.Depth()
	f.mark()
	var eff Effect
	if err := in.execute(f, insn, offset, &eff); err != nil {
		return eff, &Error{Offset: offset, Opcode: insn.Opcode(), Err: err}
	}
	eff.Pops = start - f.low
	eff.Pushes = f.Depth() - f.low
	return eff, nil
}

func (in *Interpreter) execute(f *Frame, insn bytecode.Instruction, offset int, eff *Effect) error {
	if bytecode.IsPseudo(insn) {
		return nil
	}
	read := func(slot, size int) {
		eff.Reads = append(eff.Reads, LocalAccess{Slot: slot, Size: size})
	}
	write := func(slot int, t bytecode.Type) {
		eff.Writes = append(eff.Writes, LocalAccess{Slot: slot, Size: t.Size()})
		f.SetLocal(slot, t)
	}
	pop := func(n int) error {
		_, err := f.PopN(n)
		return err
	}
	code := insn.Opcode()
	switch code {
	case op.Nop:
	case op.AconstNull:
		f.Push(bytecode.NullType)
	case op.IconstM1, op.Iconst0, op.Iconst1, op.Iconst2, op.Iconst3, op.Iconst4, op.Iconst5,
		op.Bipush, op.Sipush:
		f.Push(bytecode.IntType)
	case op.Lconst0, op.Lconst1:
		f.Push(bytecode.LongType)
	case op.Fconst0, op.Fconst1, op.Fconst2:
		f.Push(bytecode.FloatType)
	case op.Dconst0, op.Dconst1:
		f.Push(bytecode.DoubleType)
	case op.Ldc:
		t, err := ldcType(insn.(*bytecode.LdcInsn).Value)
		if err != nil {
			return err
		}
		f.Push(t)

	case op.Iload, op.Lload, op.Fload, op.Dload, op.Aload:
		v := insn.(*bytecode.VarInsn)
		t := loadType(code)
		read(v.Var, t.Size())
		if code == op.Aload {
			t = f.Local(v.Var)
			if !t.IsReference() {
				t = bytecode.ObjectType
			}
		}
		f.Push(t)
	case op.Istore, op.Lstore, op.Fstore, op.Dstore, op.Astore:
		v := insn.(*bytecode.VarInsn)
		t, err := f.Pop()
		if err != nil {
			return err
		}
		if code != op.Astore {
			t = loadType(code)
		}
		write(v.Var, t)
	case op.Iinc:
		v := insn.(*bytecode.IincInsn)
		read(v.Var, 1)
		write(v.Var, bytecode.IntType)
	case op.Ret:
		read(insn.(*bytecode.VarInsn).Var, 1)

	case op.Iaload, op.Baload, op.Caload, op.Saload:
		if err := pop(2); err != nil {
			return err
		}
		f.Push(bytecode.IntType)
	case op.Laload:
		if err := pop(2); err != nil {
			return err
		}
		f.Push(bytecode.LongType)
	case op.Faload:
		if err := pop(2); err != nil {
			return err
		}
		f.Push(bytecode.FloatType)
	case op.Daload:
		if err := pop(2); err != nil {
			return err
		}
		f.Push(bytecode.DoubleType)
	case op.Aaload:
		if err := pop(1); err != nil {
			return err
		}
		arr, err := f.Pop()
		if err != nil {
			return err
		}
		elem := bytecode.ObjectType
		switch arr.Sort() {
		case bytecode.SortArray:
			elem = arr.ElementType()
		case bytecode.SortNull:
			elem = bytecode.NullType
		}
		f.Push(elem)
	case op.Iastore, op.Fastore, op.Aastore, op.Bastore, op.Castore, op.Sastore:
		if err := pop(3); err != nil {
			return err
		}
	case op.Lastore, op.Dastore:
		if err := pop(4); err != nil {
			return err
		}

	case op.Pop:
		return pop(1)
	case op.Pop2:
		return pop(2)
	case op.Dup:
		return shuffle(f, 1, 0, 0)
	case op.DupX1:
		return shuffle(f, 2, 1, 0, 1)
	case op.DupX2:
		return shuffle(f, 3, 2, 0, 1, 2)
	case op.Dup2:
		return shuffle(f, 2, 0, 1, 0, 1)
	case op.Dup2X1:
		return shuffle(f, 3, 1, 2, 0, 1, 2)
	case op.Dup2X2:
		return shuffle(f, 4, 2, 3, 0, 1, 2, 3)
	case op.Swap:
		return shuffle(f, 2, 1, 0)

	case op.Iadd, op.Isub, op.Imul, op.Idiv, op.Irem, op.Ishl, op.Ishr, op.Iushr,
		op.Iand, op.Ior, op.Ixor, op.Fcmpl, op.Fcmpg:
		if err := pop(2); err != nil {
			return err
		}
		f.Push(bytecode.IntType)
	case op.Fadd, op.Fsub, op.Fmul, op.Fdiv, op.Frem:
		if err := pop(2); err != nil {
			return err
		}
		f.Push(bytecode.FloatType)
	case op.Ladd, op.Lsub, op.Lmul, op.Ldiv, op.Lrem, op.Land, op.Lor, op.Lxor:
		if err := pop(4); err != nil {
			return err
		}
		f.Push(bytecode.LongType)
	case op.Lshl, op.Lshr, op.Lushr:
		if err := pop(3); err != nil {
			return err
		}
		f.Push(bytecode.LongType)
	case op.Dadd, op.Dsub, op.Dmul, op.Ddiv, op.Drem:
		if err := pop(4); err != nil {
			return err
		}
		f.Push(bytecode.DoubleType)
	case op.Lcmp, op.Dcmpl, op.Dcmpg:
		if err := pop(4); err != nil {
			return err
		}
		f.Push(bytecode.IntType)
	case op.Ineg, op.Lneg, op.Fneg, op.Dneg:
		t, err := f.Pop()
		if err != nil {
			return err
		}
		f.Push(t)
	case op.I2l, op.I2f, op.I2d, op.L2i, op.L2f, op.L2d, op.F2i, op.F2l, op.F2d,
		op.D2i, op.D2l, op.D2f, op.I2b, op.I2c, op.I2s:
		if _, err := f.Pop(); err != nil {
			return err
		}
		f.Push(conversionType(code))

	case op.Ifeq, op.Ifne, op.Iflt, op.Ifge, op.Ifgt, op.Ifle, op.Ifnull, op.Ifnonnull,
		op.Tableswitch, op.Lookupswitch, op.Athrow, op.Monitorenter, op.Monitorexit:
		return pop(1)
	case op.IfIcmpeq, op.IfIcmpne, op.IfIcmplt, op.IfIcmpge, op.IfIcmpgt, op.IfIcmple,
		op.IfAcmpeq, op.IfAcmpne:
		return pop(2)
	case op.Goto, op.GotoW:
	case op.Jsr, op.JsrW:
		f.Push(returnAddress)

	case op.Ireturn, op.Lreturn, op.Freturn, op.Dreturn, op.Areturn:
		_, err := f.Pop()
		return err
	case op.Return:

	case op.Getstatic, op.Putstatic, op.Getfield, op.Putfield:
		return fieldAccess(f, insn.(*bytecode.FieldInsn))
	case op.Invokevirtual, op.Invokespecial, op.Invokestatic, op.Invokeinterface, op.Invokedynamic:
		return in.invoke(f, insn.(*bytecode.MethodInsn))

	case op.New:
		f.Push(bytecode.Uninitialized(insn.(*bytecode.TypeInsn).Desc, offset))
	case op.Newarray:
		if err := pop(1); err != nil {
			return err
		}
		elem, err := newarrayType(insn.(*bytecode.IntInsn).Operand)
		if err != nil {
			return err
		}
		f.Push(bytecode.ArrayOf(elem))
	case op.Anewarray:
		if err := pop(1); err != nil {
			return err
		}
		f.Push(bytecode.ArrayOf(bytecode.ObjectTypeOf(insn.(*bytecode.TypeInsn).Desc)))
	case op.Multianewarray:
		m := insn.(*bytecode.MultiANewArrayInsn)
		if err := pop(m.Dims); err != nil {
			return err
		}
		t, err := bytecode.ParseType(m.Desc)
		if err != nil {
			return err
		}
		f.Push(t)
	case op.Arraylength, op.Instanceof:
		if err := pop(1); err != nil {
			return err
		}
		f.Push(bytecode.IntType)
	case op.Checkcast:
		if err := pop(1); err != nil {
			return err
		}
		f.Push(bytecode.ObjectTypeOf(insn.(*bytecode.TypeInsn).Desc))
	default:
		return fmt.Errorf("unsupported opcode %s", code)
	}
	return nil
}

func (in *Interpreter) invoke(f *Frame, m *bytecode.MethodInsn) error {
	args, ret, err := bytecode.ParseMethod(m.Desc)
	if err != nil {
		return err
	}
	if _, err := f.PopN(bytecode.ArgumentsSize(args)); err != nil {
		return err
	}
	if m.Op != op.Invokestatic && m.Op != op.Invokedynamic {
		recv, err := f.Pop()
		if err != nil {
			return err
		}
		if m.Op == op.Invokespecial && m.Name == "<init>" && recv.Sort() == bytecode.SortUninitialized {
			init := bytecode.ObjectTypeOf(recv.InternalName())
			if recv.Site() < 0 {
				init = bytecode.ObjectTypeOf(in.Owner)
			}
			f.Replace(recv, init)
		}
	}
	if ret.Sort() != bytecode.SortVoid {
		f.Push(ret.StackType())
	}
	return nil
}

func fieldAccess(f *Frame, fi *bytecode.FieldInsn) error {
	t, err := bytecode.ParseType(fi.Desc)
	if err != nil {
		return err
	}
	switch fi.Op {
	case op.Getstatic:
		f.Push(t.StackType())
	case op.Putstatic:
		_, err = f.PopN(t.Size())
	case op.Getfield:
		if _, err = f.Pop(); err == nil {
			f.Push(t.StackType())
		}
	case op.Putfield:
		_, err = f.PopN(t.Size() + 1)
	}
	return err
}

// shuffle pops n cells and pushes them back in the given order, indexes
// counting from the deepest popped cell.
func shuffle(f *Frame, n int, order ...int) error {
	cells, err := f.PopN(n)
	if err != nil {
		return err
	}
	for _, i := range order {
		f.PushCells(cells[i])
	}
	return nil
}

func loadType(code op.Code) bytecode.Type {
	switch code {
	case op.Iload, op.Istore:
		return bytecode.IntType
	case op.Lload, op.Lstore:
		return bytecode.LongType
	case op.Fload, op.Fstore:
		return bytecode.FloatType
	case op.Dload, op.Dstore:
		return bytecode.DoubleType
	}
	return bytecode.ObjectType
}

func conversionType(code op.Code) bytecode.Type {
	switch code {
	case op.I2l, op.F2l, op.D2l:
		return bytecode.LongType
	case op.I2f, op.L2f, op.D2f:
		return bytecode.FloatType
	case op.I2d, op.L2d, op.F2d:
		return bytecode.DoubleType
	}
	return bytecode.IntType
}

func ldcType(v any) (bytecode.Type, error) {
	switch v.(type) {
	case int32:
		return bytecode.IntType, nil
	case float32:
		return bytecode.FloatType, nil
	case int64:
		return bytecode.LongType, nil
	case float64:
		return bytecode.DoubleType, nil
	case string:
		return bytecode.StringType, nil
	case bytecode.Type:
		return classType, nil
	}
	return bytecode.TopType, fmt.Errorf("unsupported constant %T", v)
}

func newarrayType(operand int32) (bytecode.Type, error) {
	switch operand {
	case op.TBoolean:
		return bytecode.BooleanType, nil
	case op.TChar:
		return bytecode.CharType, nil
	case op.TFloat:
		return bytecode.FloatType, nil
	case op.TDouble:
		return bytecode.DoubleType, nil
	case op.TByte:
		return bytecode.ByteType, nil
	case op.TShort:
		return bytecode.ShortType, nil
	case op.TInt:
		return bytecode.IntType, nil
	case op.TLong:
		return bytecode.LongType, nil
	}
	return bytecode.TopType, fmt.Errorf("invalid newarray type %d", operand)
}
