package asm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cretz/msplit/analysis"
	"github.com/cretz/msplit/bytecode"
	"github.com/cretz/msplit/op"
	"github.com/hashicorp/go-multierror"
)

// MaxCodeSize is the largest code attribute a method may have.
const MaxCodeSize = math.MaxUint16

// ErrMethodTooLarge is returned when a routine assembles to more than
// MaxCodeSize bytes.
var ErrMethodTooLarge = errors.New("method too large")

// MethodTooLargeError reports the routine that did not fit.
type MethodTooLargeError struct {
	Owner    string
	Name     string
	Desc     string
	CodeSize int
}

func (e *MethodTooLargeError) Error() string {
	return fmt.Sprintf("%s.%s%s: %d bytes of code: %s", e.Owner, e.Name, e.Desc, e.CodeSize, ErrMethodTooLarge)
}

// Is reports whether target is ErrMethodTooLarge.
func (e *MethodTooLargeError) Is(target error) bool {
	return target == ErrMethodTooLarge
}

// ExceptionEntry is one row of the exception table, in byte offsets.
// CatchType is zero for a catch-all handler.
type ExceptionEntry struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16
}

// Method is an assembled routine.
type Method struct {
	Owner      string
	Name       string
	Desc       string
	Access     bytecode.Access
	Code       []byte
	MaxStack   int
	MaxLocals  int
	Exceptions []ExceptionEntry
	// Positions holds the byte offset of each instruction of the routine.
	Positions []int
	Pool      *Pool
}

// Option configures Assemble.
type Option func(*options)

type options struct {
	pool *Pool
}

// WithPool assembles into an existing constant pool, shared by the
// routines of one class.
func WithPool(p *Pool) Option {
	return func(o *options) {
		o.pool = p
	}
}

// Assemble lays the routine out as bytes. Problems with individual
// instructions are reported together.
func Assemble(r *bytecode.Routine, opts ...Option) (*Method, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.pool == nil {
		o.pool = NewPool()
	}
	n := r.InstructionCount()
	l := &layout{
		routine:   r,
		pool:      o.pool,
		index:     make([]uint16, n),
		wide:      make([]bool, n),
		positions: make([]int, n+1),
	}

	var result *multierror.Error
	for i := 0; i < n; i++ {
		if err := l.resolveConstant(i); err != nil {
			result = multierror.Append(result, fmt.Errorf("instruction %d: %w", i, err))
		}
	}
	maxStack, maxLocals, err := limits(r)
	if err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("assembling %s: %w", r, err)
	}

	l.resolve()
	if size := l.positions[n]; size > MaxCodeSize {
		return nil, &MethodTooLargeError{Owner: r.Owner(), Name: r.Name(), Desc: r.Descriptor(), CodeSize: size}
	}

	code := make([]byte, 0, l.positions[n])
	for i := 0; i < n; i++ {
		var err error
		code, err = l.encode(code, i)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("instruction %d: %w", i, err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("assembling %s: %w", r, err)
	}

	m := &Method{
		Owner:     r.Owner(),
		Name:      r.Name(),
		Desc:      r.Descriptor(),
		Access:    r.Access(),
		Code:      code,
		MaxStack:  maxStack,
		MaxLocals: maxLocals,
		Positions: l.positions[:n],
		Pool:      o.pool,
	}
	for i := 0; i < r.TryCatchBlockCount(); i++ {
		region := r.RegionAt(i)
		entry := ExceptionEntry{
			StartPC:   uint16(l.positions[region.Start]),
			EndPC:     uint16(l.positions[region.End]),
			HandlerPC: uint16(l.positions[region.Handler]),
		}
		// Regions covering no code are dropped.
		if entry.StartPC == entry.EndPC {
			continue
		}
		if region.Type != "" {
			if entry.CatchType, err = o.pool.Class(region.Type); err != nil {
				return nil, fmt.Errorf("assembling %s: %w", r, err)
			}
		}
		m.Exceptions = append(m.Exceptions, entry)
	}
	return m, nil
}

// limits returns the deepest operand stack any instruction can see and the
// number of local slots the routine touches.
func limits(r *bytecode.Routine) (maxStack, maxLocals int, err error) {
	frames, err := analysis.New().Analyze(r)
	if err != nil {
		return 0, 0, fmt.Errorf("computing limits: %w", err)
	}
	maxLocals = r.MaxLocals()
	for i := 0; i < r.InstructionCount(); i++ {
		f := frames.FrameAt(i)
		if f == nil {
			continue
		}
		eff := frames.EffectAt(i)
		if d := f.Depth() - eff.Pops + eff.Pushes; d > maxStack {
			maxStack = d
		}
		if f.Depth() > maxStack {
			maxStack = f.Depth()
		}
		for _, a := range eff.Reads {
			maxLocals = max(maxLocals, a.Slot+a.Size)
		}
		for _, a := range eff.Writes {
			maxLocals = max(maxLocals, a.Slot+a.Size)
		}
	}
	return maxStack, maxLocals, nil
}

// resolveConstant interns the constant pool operand of instruction i and
// checks operand ranges.
func (l *layout) resolveConstant(i int) error {
	var idx uint16
	var err error
	p := l.pool
	switch insn := l.routine.InstructionAt(i).(type) {
	case *bytecode.IntInsn:
		switch {
		case insn.Op == op.Bipush && (insn.Operand < math.MinInt8 || insn.Operand > math.MaxInt8),
			insn.Op == op.Sipush && (insn.Operand < math.MinInt16 || insn.Operand > math.MaxInt16),
			insn.Op == op.Newarray && (insn.Operand < op.TBoolean || insn.Operand > op.TLong):
			return fmt.Errorf("%s operand %d out of range", insn.Op, insn.Operand)
		}
	case *bytecode.VarInsn:
		if insn.Var < 0 || insn.Var > math.MaxUint16 {
			return fmt.Errorf("local %d out of range", insn.Var)
		}
	case *bytecode.IincInsn:
		if insn.Var < 0 || insn.Var > math.MaxUint16 || insn.Incr < math.MinInt16 || insn.Incr > math.MaxInt16 {
			return fmt.Errorf("iinc %d %d out of range", insn.Var, insn.Incr)
		}
	case *bytecode.TypeInsn:
		idx, err = p.Class(insn.Desc)
	case *bytecode.MultiANewArrayInsn:
		idx, err = p.Class(insn.Desc)
	case *bytecode.FieldInsn:
		idx, err = p.Member(TagFieldref, insn.Owner, insn.Name, insn.Desc)
	case *bytecode.MethodInsn:
		switch {
		case insn.Op == op.Invokedynamic:
			idx, err = p.InvokeDynamic(insn.Name, insn.Desc)
		case insn.Itf || insn.Op == op.Invokeinterface:
			idx, err = p.Member(TagInterfaceMethodref, insn.Owner, insn.Name, insn.Desc)
		default:
			idx, err = p.Member(TagMethodref, insn.Owner, insn.Name, insn.Desc)
		}
	case *bytecode.LdcInsn:
		switch v := insn.Value.(type) {
		case int32:
			idx, err = p.Integer(v)
		case float32:
			idx, err = p.Float(v)
		case int64:
			idx, err = p.Long(v)
		case float64:
			idx, err = p.Double(v)
		case string:
			idx, err = p.String(v)
		case bytecode.Type:
			idx, err = p.Class(v.InternalName())
		default:
			err = fmt.Errorf("unsupported constant %T", v)
		}
	}
	l.index[i] = idx
	return err
}

// encode appends the bytes of instruction i.
func (l *layout) encode(code []byte, i int) ([]byte, error) {
	u16 := func(v uint16) {
		code = binary.BigEndian.AppendUint16(code, v)
	}
	i32 := func(v int32) {
		code = binary.BigEndian.AppendUint32(code, uint32(v))
	}
	pos := l.positions[i]
	switch insn := l.routine.InstructionAt(i).(type) {
	case *bytecode.Label, *bytecode.LineNumber, *bytecode.FrameMarker:
	case *bytecode.Insn:
		code = append(code, byte(insn.Op))
	case *bytecode.IntInsn:
		code = append(code, byte(insn.Op))
		if insn.Op == op.Sipush {
			u16(uint16(insn.Operand))
		} else {
			code = append(code, byte(insn.Operand))
		}
	case *bytecode.VarInsn:
		switch {
		case insn.Op != op.Ret && insn.Var <= 3:
			code = append(code, shortForm(insn.Op, insn.Var))
		case insn.Var <= math.MaxUint8:
			code = append(code, byte(insn.Op), byte(insn.Var))
		default:
			code = append(code, byte(op.Wide), byte(insn.Op))
			u16(uint16(insn.Var))
		}
	case *bytecode.IincInsn:
		if insn.Var <= math.MaxUint8 && insn.Incr >= math.MinInt8 && insn.Incr <= math.MaxInt8 {
			code = append(code, byte(op.Iinc), byte(insn.Var), byte(insn.Incr))
		} else {
			code = append(code, byte(op.Wide), byte(op.Iinc))
			u16(uint16(insn.Var))
			u16(uint16(insn.Incr))
		}
	case *bytecode.TypeInsn, *bytecode.FieldInsn:
		code = append(code, byte(insn.Opcode()))
		u16(l.index[i])
	case *bytecode.MethodInsn:
		code = append(code, byte(insn.Op))
		u16(l.index[i])
		switch insn.Op {
		case op.Invokeinterface:
			args, _, err := bytecode.ParseMethod(insn.Desc)
			if err != nil {
				return code, err
			}
			code = append(code, byte(bytecode.ArgumentsSize(args)+1), 0)
		case op.Invokedynamic:
			code = append(code, 0, 0)
		}
	case *bytecode.LdcInsn:
		switch insn.Value.(type) {
		case int64, float64:
			code = append(code, byte(op.Ldc2W))
			u16(l.index[i])
		default:
			if l.index[i] <= math.MaxUint8 {
				code = append(code, byte(op.Ldc), byte(l.index[i]))
			} else {
				code = append(code, byte(op.LdcW))
				u16(l.index[i])
			}
		}
	case *bytecode.JumpInsn:
		off := l.target(insn.Label) - pos
		switch {
		case !l.wide[i]:
			code = append(code, byte(insn.Op))
			u16(uint16(int16(off)))
		case insn.Op == op.Goto:
			code = append(code, byte(op.GotoW))
			i32(int32(off))
		case insn.Op == op.Jsr:
			code = append(code, byte(op.JsrW))
			i32(int32(off))
		default:
			code = append(code, byte(invert(insn.Op)))
			u16(8)
			code = append(code, byte(op.GotoW))
			i32(int32(off - 3))
		}
	case *bytecode.TableSwitchInsn:
		code = append(code, byte(op.Tableswitch))
		code = append(code, make([]byte, padding(pos))...)
		i32(int32(l.target(insn.Default) - pos))
		i32(insn.Min)
		i32(insn.Max)
		for _, lbl := range insn.Labels {
			i32(int32(l.target(lbl) - pos))
		}
	case *bytecode.LookupSwitchInsn:
		code = append(code, byte(op.Lookupswitch))
		code = append(code, make([]byte, padding(pos))...)
		i32(int32(l.target(insn.Default) - pos))
		i32(int32(len(insn.Keys)))
		for k, key := range insn.Keys {
			i32(key)
			i32(int32(l.target(insn.Labels[k]) - pos))
		}
	case *bytecode.MultiANewArrayInsn:
		code = append(code, byte(op.Multianewarray))
		u16(l.index[i])
		code = append(code, byte(insn.Dims))
	}
	return code, nil
}

// shortForm returns the one-byte opcode loading or storing one of the first
// four local slots, such as iload_0.
func shortForm(c op.Code, slot int) byte {
	const (
		iload0  = 26
		istore0 = 59
	)
	if c >= op.Iload && c <= op.Aload {
		return byte(iload0 + int(c-op.Iload)*4 + slot)
	}
	return byte(istore0 + int(c-op.Istore)*4 + slot)
}
