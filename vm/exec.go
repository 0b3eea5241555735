package vm

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/cretz/msplit/bytecode"
	"github.com/cretz/msplit/op"
)

// exec runs a frame until it returns or throws. An exception that no
// handler in this frame catches is returned as a *thrown error.
func (vm *VirtualMachine) exec(ctx context.Context, f *frame) (any, error) {
	r := f.routine
	n := r.InstructionCount()
	checkInterval := vm.contextCheckInterval
	doneChan := ctx.Done()

	for {
		if f.ip >= n {
			return nil, vm.fault(f, f.ip, op.None, errors.New("execution fell off the end of the code"))
		}
		insn := r.InstructionAt(f.ip)
		if ln, ok := insn.(*bytecode.LineNumber); ok {
			f.line = ln.Line
			f.newLine = true
			f.ip++
			continue
		}
		if bytecode.IsPseudo(insn) {
			f.ip++
			continue
		}

		if checkInterval > 0 && doneChan != nil {
			vm.instructionCount++
			if vm.instructionCount >= checkInterval {
				vm.instructionCount = 0
				select {
				case <-doneChan:
					return nil, vm.fault(f, f.ip, insn.Opcode(), ctx.Err())
				default:
				}
			}
		}
		if vm.observer != nil && !vm.observeStep(f, insn) {
			return nil, vm.fault(f, f.ip, insn.Opcode(), ErrHalted)
		}

		offset := f.ip
		result, done, err := vm.execute(ctx, f, insn)
		if err == nil {
			if done {
				return result, nil
			}
			continue
		}
		var t *thrown
		if !errors.As(err, &t) {
			return nil, vm.fault(f, offset, insn.Opcode(), err)
		}
		if t.routine == "" {
			t.routine, t.offset, t.opcode = f.name, offset, insn.Opcode()
		}
		if handler, ok := vm.handler(f, offset, t.exception); ok {
			f.stack = f.stack[:0]
			f.push(t.exception)
			f.ip = handler
			continue
		}
		return nil, t
	}
}

func (vm *VirtualMachine) observeStep(f *frame, insn bytecode.Instruction) bool {
	cfg := vm.observerConfig
	switch cfg.StepMode {
	case StepNone:
		return true
	case StepSampled:
		vm.stepCount++
		if vm.stepCount < cfg.SampleInterval {
			return true
		}
		vm.stepCount = 0
	case StepOnLine:
		if !f.newLine {
			return true
		}
	}
	f.newLine = false
	code := insn.Opcode()
	return vm.observer.OnStep(StepEvent{
		Routine:    f.name,
		IP:         f.ip,
		Opcode:     code,
		OpcodeName: code.String(),
		Line:       f.line,
		StackDepth: len(f.stack),
		FrameDepth: vm.depth,
	})
}

// fault wraps err in an *Error unless a nested frame already did.
func (vm *VirtualMachine) fault(f *frame, offset int, code op.Code, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Routine: f.name, Offset: offset, Opcode: code, Err: err}
}

func (vm *VirtualMachine) handler(f *frame, offset int, exception *Object) (int, bool) {
	r := f.routine
	for i := 0; i < r.TryCatchBlockCount(); i++ {
		region := r.RegionAt(i)
		if !region.Contains(offset) {
			continue
		}
		if region.Type == "" || vm.isInstance(exception.Class, region.Type) {
			return region.Handler, true
		}
	}
	return 0, false
}

func (vm *VirtualMachine) target(f *frame, l *bytecode.Label) int {
	offset, ok := f.routine.LabelOffset(l)
	if !ok {
		panic(fmt.Sprintf("unresolved label %s in %s", l, f.name))
	}
	return offset
}

// execute runs one instruction. It reports done with the result when the
// routine returns.
func (vm *VirtualMachine) execute(ctx context.Context, f *frame, insn bytecode.Instruction) (any, bool, error) {
	f.ip++
	switch insn := insn.(type) {
	case *bytecode.Insn:
		return vm.executeInsn(f, insn.Op)
	case *bytecode.IntInsn:
		if insn.Op != op.Newarray {
			f.push(insn.Operand)
			return nil, false, nil
		}
		elem, err := primitiveElement(insn.Operand)
		if err != nil {
			return nil, false, err
		}
		length := f.popInt()
		if length < 0 {
			return nil, false, negativeSize(length)
		}
		f.push(NewArray(bytecode.ArrayOf(elem), int(length)))
	case *bytecode.VarInsn:
		switch insn.Op {
		case op.Iload, op.Fload, op.Aload:
			f.push(f.load(insn.Var))
		case op.Lload, op.Dload:
			f.pushValue(f.load(insn.Var))
		case op.Istore, op.Fstore, op.Astore:
			f.store(insn.Var, f.pop())
		case op.Lstore, op.Dstore:
			f.store(insn.Var, f.popValue())
		case op.Ret:
			f.ip = int(f.load(insn.Var).(returnAddress))
		}
	case *bytecode.IincInsn:
		f.locals[insn.Var] = f.load(insn.Var).(int32) + insn.Incr
	case *bytecode.LdcInsn:
		if t, ok := insn.Value.(bytecode.Type); ok {
			f.push(Class{Name: t.InternalName()})
		} else {
			f.pushValue(insn.Value)
		}
	case *bytecode.TypeInsn:
		return nil, false, vm.executeType(f, insn)
	case *bytecode.FieldInsn:
		return nil, false, vm.executeField(f, insn)
	case *bytecode.MethodInsn:
		return nil, false, vm.call(ctx, f, insn)
	case *bytecode.JumpInsn:
		vm.jump(f, insn)
	case *bytecode.TableSwitchInsn:
		key := f.popInt()
		l := insn.Default
		if key >= insn.Min && key <= insn.Max {
			l = insn.Labels[key-insn.Min]
		}
		f.ip = vm.target(f, l)
	case *bytecode.LookupSwitchInsn:
		key := f.popInt()
		l := insn.Default
		for i, k := range insn.Keys {
			if k == key {
				l = insn.Labels[i]
				break
			}
		}
		f.ip = vm.target(f, l)
	case *bytecode.MultiANewArrayInsn:
		counts := make([]int32, insn.Dims)
		for i, c := range f.popCells(insn.Dims) {
			counts[i] = c.(int32)
			if counts[i] < 0 {
				return nil, false, negativeSize(counts[i])
			}
		}
		t, err := bytecode.ParseType(insn.Desc)
		if err != nil {
			return nil, false, err
		}
		f.push(multiArray(t, counts))
	default:
		return nil, false, fmt.Errorf("unsupported instruction %T", insn)
	}
	return nil, false, nil
}

func (vm *VirtualMachine) executeInsn(f *frame, code op.Code) (any, bool, error) {
	switch code {
	case op.Nop:
	case op.AconstNull:
		f.push(nil)
	case op.IconstM1, op.Iconst0, op.Iconst1, op.Iconst2, op.Iconst3, op.Iconst4, op.Iconst5:
		f.push(int32(code - op.Iconst0))
	case op.Lconst0, op.Lconst1:
		f.pushValue(int64(code - op.Lconst0))
	case op.Fconst0, op.Fconst1, op.Fconst2:
		f.push(float32(code - op.Fconst0))
	case op.Dconst0, op.Dconst1:
		f.pushValue(float64(code - op.Dconst0))

	case op.Iaload, op.Laload, op.Faload, op.Daload, op.Aaload, op.Baload, op.Caload, op.Saload:
		idx := f.popInt()
		arr, err := arrayAccess(f.pop(), idx)
		if err != nil {
			return nil, false, err
		}
		f.pushValue(arr.Elements[idx])
	case op.Iastore, op.Lastore, op.Fastore, op.Dastore, op.Aastore, op.Bastore, op.Castore, op.Sastore:
		v := f.popValue()
		idx := f.popInt()
		arr, err := arrayAccess(f.pop(), idx)
		if err != nil {
			return nil, false, err
		}
		if i, ok := v.(int32); ok {
			v = narrow(arr.Type.ElementType(), i)
		}
		arr.Elements[idx] = v

	case op.Pop:
		f.pop()
	case op.Pop2:
		f.popCells(2)
	case op.Dup:
		shuffle(f, 1, 0, 0)
	case op.DupX1:
		shuffle(f, 2, 1, 0, 1)
	case op.DupX2:
		shuffle(f, 3, 2, 0, 1, 2)
	case op.Dup2:
		shuffle(f, 2, 0, 1, 0, 1)
	case op.Dup2X1:
		shuffle(f, 3, 1, 2, 0, 1, 2)
	case op.Dup2X2:
		shuffle(f, 4, 2, 3, 0, 1, 2, 3)
	case op.Swap:
		shuffle(f, 2, 1, 0)

	case op.Iadd, op.Isub, op.Imul, op.Idiv, op.Irem, op.Ishl, op.Ishr, op.Iushr, op.Iand, op.Ior, op.Ixor:
		b, a := f.popInt(), f.popInt()
		v, err := intOp(code, a, b)
		if err != nil {
			return nil, false, err
		}
		f.push(v)
	case op.Ladd, op.Lsub, op.Lmul, op.Ldiv, op.Lrem, op.Land, op.Lor, op.Lxor:
		b, a := f.popLong(), f.popLong()
		v, err := longOp(code, a, b)
		if err != nil {
			return nil, false, err
		}
		f.pushValue(v)
	case op.Lshl, op.Lshr, op.Lushr:
		s := uint(f.popInt()) & 63
		a := f.popLong()
		switch code {
		case op.Lshl:
			f.pushValue(a << s)
		case op.Lshr:
			f.pushValue(a >> s)
		default:
			f.pushValue(int64(uint64(a) >> s))
		}
	case op.Fadd, op.Fsub, op.Fmul, op.Fdiv, op.Frem:
		b, a := f.popFloat(), f.popFloat()
		f.push(float32(floatOp(code-op.Fadd+op.Dadd, float64(a), float64(b))))
	case op.Dadd, op.Dsub, op.Dmul, op.Ddiv, op.Drem:
		b, a := f.popDouble(), f.popDouble()
		f.pushValue(floatOp(code, a, b))
	case op.Ineg:
		f.push(-f.popInt())
	case op.Lneg:
		f.pushValue(-f.popLong())
	case op.Fneg:
		f.push(-f.popFloat())
	case op.Dneg:
		f.pushValue(-f.popDouble())

	case op.I2l:
		f.pushValue(int64(f.popInt()))
	case op.I2f:
		f.push(float32(f.popInt()))
	case op.I2d:
		f.pushValue(float64(f.popInt()))
	case op.L2i:
		f.push(int32(f.popLong()))
	case op.L2f:
		f.push(float32(f.popLong()))
	case op.L2d:
		f.pushValue(float64(f.popLong()))
	case op.F2i:
		f.push(f2i(float64(f.popFloat())))
	case op.F2l:
		f.pushValue(f2l(float64(f.popFloat())))
	case op.F2d:
		f.pushValue(float64(f.popFloat()))
	case op.D2i:
		f.push(f2i(f.popDouble()))
	case op.D2l:
		f.pushValue(f2l(f.popDouble()))
	case op.D2f:
		f.push(float32(f.popDouble()))
	case op.I2b:
		f.push(int32(int8(f.popInt())))
	case op.I2c:
		f.push(int32(uint16(f.popInt())))
	case op.I2s:
		f.push(int32(int16(f.popInt())))

	case op.Lcmp:
		b, a := f.popLong(), f.popLong()
		f.push(lcmp(a, b))
	case op.Fcmpl, op.Fcmpg:
		b, a := f.popFloat(), f.popFloat()
		nan := int32(-1)
		if code == op.Fcmpg {
			nan = 1
		}
		f.push(fcmp(float64(a), float64(b), nan))
	case op.Dcmpl, op.Dcmpg:
		b, a := f.popDouble(), f.popDouble()
		nan := int32(-1)
		if code == op.Dcmpg {
			nan = 1
		}
		f.push(fcmp(a, b, nan))

	case op.Ireturn, op.Freturn, op.Areturn:
		return f.pop(), true, nil
	case op.Lreturn, op.Dreturn:
		return f.popValue(), true, nil
	case op.Return:
		return nil, true, nil

	case op.Arraylength:
		arr := f.pop()
		if arr == nil {
			return nil, false, nullPointer("cannot read the array length")
		}
		f.push(int32(arr.(*Array).Len()))
	case op.Athrow:
		v := f.pop()
		if v == nil {
			return nil, false, nullPointer("cannot throw null")
		}
		return nil, false, &thrown{exception: v.(*Object)}
	case op.Monitorenter, op.Monitorexit:
		if f.pop() == nil {
			return nil, false, nullPointer("cannot lock null")
		}
	default:
		return nil, false, fmt.Errorf("unsupported opcode %s", code)
	}
	return nil, false, nil
}

func (vm *VirtualMachine) executeType(f *frame, insn *bytecode.TypeInsn) error {
	switch insn.Op {
	case op.New:
		f.push(NewObject(insn.Desc))
	case op.Anewarray:
		length := f.popInt()
		if length < 0 {
			return negativeSize(length)
		}
		f.push(NewArray(bytecode.ArrayOf(bytecode.ObjectTypeOf(insn.Desc)), int(length)))
	case op.Checkcast:
		v := f.pop()
		if v != nil && !vm.isInstance(classOf(v), insn.Desc) {
			return Throw("java/lang/ClassCastException",
				fmt.Sprintf("class %s cannot be cast to class %s", classOf(v), insn.Desc))
		}
		f.push(v)
	case op.Instanceof:
		v := f.pop()
		if v != nil && vm.isInstance(classOf(v), insn.Desc) {
			f.push(int32(1))
		} else {
			f.push(int32(0))
		}
	}
	return nil
}

func (vm *VirtualMachine) executeField(f *frame, insn *bytecode.FieldInsn) error {
	t, err := bytecode.ParseType(insn.Desc)
	if err != nil {
		return err
	}
	key := insn.Owner + "." + insn.Name
	switch insn.Op {
	case op.Getstatic:
		v, ok := vm.statics[key]
		if !ok {
			v = zeroValue(t)
		}
		f.pushValue(v)
	case op.Putstatic:
		vm.statics[key] = f.popValue()
	case op.Getfield:
		o, err := object(f.pop(), "read field "+insn.Name)
		if err != nil {
			return err
		}
		v, ok := o.Fields[insn.Name]
		if !ok {
			v = zeroValue(t)
		}
		f.pushValue(v)
	case op.Putfield:
		v := f.popValue()
		o, err := object(f.pop(), "assign field "+insn.Name)
		if err != nil {
			return err
		}
		o.Fields[insn.Name] = v
	}
	return nil
}

func (vm *VirtualMachine) call(ctx context.Context, f *frame, m *bytecode.MethodInsn) error {
	if m.Op == op.Invokedynamic {
		return fmt.Errorf("invokedynamic %s%s is not supported", m.Name, m.Desc)
	}
	params, ret, err := bytecode.ParseMethod(m.Desc)
	if err != nil {
		return err
	}
	args := make([]any, len(params))
	for i := len(params) - 1; i >= 0; i-- {
		args[i] = f.popValue()
	}
	if m.Op != op.Invokestatic {
		receiver := f.pop()
		if receiver == nil {
			return nullPointer(fmt.Sprintf("cannot invoke %s.%s", m.Owner, m.Name))
		}
		args = append([]any{receiver}, args...)
	}
	virtual := m.Op == op.Invokevirtual || m.Op == op.Invokeinterface
	result, err := vm.invoke(ctx, m.Owner, m.Name, m.Desc, args, virtual)
	if err != nil {
		return err
	}
	if ret.Sort() != bytecode.SortVoid {
		f.pushValue(result)
	}
	return nil
}

func (vm *VirtualMachine) jump(f *frame, j *bytecode.JumpInsn) {
	var taken bool
	switch j.Op {
	case op.Ifeq, op.Ifne, op.Iflt, op.Ifge, op.Ifgt, op.Ifle:
		taken = compare(j.Op-op.Ifeq, f.popInt(), 0)
	case op.IfIcmpeq, op.IfIcmpne, op.IfIcmplt, op.IfIcmpge, op.IfIcmpgt, op.IfIcmple:
		b, a := f.popInt(), f.popInt()
		taken = compare(j.Op-op.IfIcmpeq, a, b)
	case op.IfAcmpeq, op.IfAcmpne:
		b, a := f.pop(), f.pop()
		taken = (a == b) == (j.Op == op.IfAcmpeq)
	case op.Ifnull:
		taken = f.pop() == nil
	case op.Ifnonnull:
		taken = f.pop() != nil
	case op.Goto, op.GotoW:
		taken = true
	case op.Jsr, op.JsrW:
		f.push(returnAddress(f.ip))
		taken = true
	}
	if taken {
		f.ip = vm.target(f, j.Label)
	}
}

// compare evaluates the condition at position cond in the order
// eq, ne, lt, ge, gt, le.
func compare(cond op.Code, a, b int32) bool {
	switch cond {
	case 0:
		return a == b
	case 1:
		return a != b
	case 2:
		return a < b
	case 3:
		return a >= b
	case 4:
		return a > b
	}
	return a <= b
}

// shuffle pops n cells and pushes them back in the given order, where 0 is
// the deepest popped cell.
func shuffle(f *frame, n int, order ...int) {
	cells := f.popCells(n)
	for _, i := range order {
		f.push(cells[i])
	}
}

func intOp(code op.Code, a, b int32) (int32, error) {
	switch code {
	case op.Iadd:
		return a + b, nil
	case op.Isub:
		return a - b, nil
	case op.Imul:
		return a * b, nil
	case op.Idiv, op.Irem:
		if b == 0 {
			return 0, Throw("java/lang/ArithmeticException", "/ by zero")
		}
		if code == op.Idiv {
			return a / b, nil
		}
		return a % b, nil
	case op.Ishl:
		return a << (uint32(b) & 31), nil
	case op.Ishr:
		return a >> (uint32(b) & 31), nil
	case op.Iushr:
		return int32(uint32(a) >> (uint32(b) & 31)), nil
	case op.Iand:
		return a & b, nil
	case op.Ior:
		return a | b, nil
	}
	return a ^ b, nil
}

func longOp(code op.Code, a, b int64) (int64, error) {
	switch code {
	case op.Ladd:
		return a + b, nil
	case op.Lsub:
		return a - b, nil
	case op.Lmul:
		return a * b, nil
	case op.Ldiv, op.Lrem:
		if b == 0 {
			return 0, Throw("java/lang/ArithmeticException", "/ by zero")
		}
		if code == op.Ldiv {
			return a / b, nil
		}
		return a % b, nil
	case op.Land:
		return a & b, nil
	case op.Lor:
		return a | b, nil
	}
	return a ^ b, nil
}

func floatOp(code op.Code, a, b float64) float64 {
	switch code {
	case op.Dadd:
		return a + b
	case op.Dsub:
		return a - b
	case op.Dmul:
		return a * b
	case op.Ddiv:
		return a / b
	}
	return math.Mod(a, b)
}

func arrayAccess(v any, idx int32) (*Array, error) {
	if v == nil {
		return nil, nullPointer("cannot access an element of a null array")
	}
	arr := v.(*Array)
	if idx < 0 || int(idx) >= arr.Len() {
		return nil, Throw("java/lang/ArrayIndexOutOfBoundsException",
			fmt.Sprintf("Index %d out of bounds for length %d", idx, arr.Len()))
	}
	return arr, nil
}

func object(v any, action string) (*Object, error) {
	if v == nil {
		return nil, nullPointer("cannot " + action)
	}
	o, ok := v.(*Object)
	if !ok {
		return nil, fmt.Errorf("cannot %s of %s", action, classOf(v))
	}
	return o, nil
}

func nullPointer(message string) error {
	return Throw("java/lang/NullPointerException", message)
}

func negativeSize(n int32) error {
	return Throw("java/lang/NegativeArraySizeException", fmt.Sprint(n))
}

func primitiveElement(operand int32) (bytecode.Type, error) {
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
	return bytecode.Type{}, fmt.Errorf("invalid newarray type %d", operand)
}

func multiArray(t bytecode.Type, counts []int32) *Array {
	arr := NewArray(t, int(counts[0]))
	if len(counts) > 1 {
		for i := range arr.Elements {
			arr.Elements[i] = multiArray(t.ElementType(), counts[1:])
		}
	}
	return arr
}
