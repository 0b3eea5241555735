package bytecode

import (
	"math"
	"strconv"

	"github.com/cretz/msplit/op"
)

// Builder appends instructions to a routine under construction. Methods
// return the builder so emission can be chained.
type Builder struct {
	owner     string
	name      string
	desc      string
	access    Access
	insns     []Instruction
	tryCatch  []TryCatchBlock
	maxLocals int
	maxStack  int
	labelSeq  int
}

// NewBuilder returns a builder for a routine with the given identity.
func NewBuilder(owner string, access Access, name, desc string) *Builder {
	return &Builder{owner: owner, name: name, desc: desc, access: access}
}

// Len returns the number of instructions emitted so far, which is also the
// offset of the next one.
func (b *Builder) Len() int {
	return len(b.insns)
}

// Emit appends instructions as they are.
func (b *Builder) Emit(insns ...Instruction) *Builder {
	for _, insn := range insns {
		switch insn := insn.(type) {
		case *VarInsn:
			b.touchLocal(insn.Var, varSize(insn.Op))
		case *IincInsn:
			b.touchLocal(insn.Var, 1)
		}
		b.insns = append(b.insns, insn)
	}
	return b
}

// Op appends operand-less instructions.
func (b *Builder) Op(codes ...op.Code) *Builder {
	for _, c := range codes {
		b.Emit(&Insn{Op: c})
	}
	return b
}

// Int pushes an int constant using the shortest encoding.
func (b *Builder) Int(v int32) *Builder {
	switch {
	case v >= -1 && v <= 5:
		return b.Op(op.Iconst0 + op.Code(v))
	case v >= math.MinInt8 && v <= math.MaxInt8:
		return b.Emit(&IntInsn{Op: op.Bipush, Operand: v})
	case v >= math.MinInt16 && v <= math.MaxInt16:
		return b.Emit(&IntInsn{Op: op.Sipush, Operand: v})
	}
	return b.Ldc(v)
}

// Ldc pushes a constant from the pool.
func (b *Builder) Ldc(v any) *Builder {
	return b.Emit(&LdcInsn{Value: v})
}

// Var appends a load, store or ret on a local slot.
func (b *Builder) Var(code op.Code, slot int) *Builder {
	return b.Emit(&VarInsn{Op: code, Var: slot})
}

// Load pushes the local slot holding a value of type t.
func (b *Builder) Load(t Type, slot int) *Builder {
	return b.Var(LoadOpcode(t), slot)
}

// Store pops a value of type t into the local slot.
func (b *Builder) Store(t Type, slot int) *Builder {
	return b.Var(StoreOpcode(t), slot)
}

// Iinc increments an int local in place.
func (b *Builder) Iinc(slot int, incr int32) *Builder {
	return b.Emit(&IincInsn{Var: slot, Incr: incr})
}

// TypeOp appends new, anewarray, checkcast or instanceof.
func (b *Builder) TypeOp(code op.Code, internalName string) *Builder {
	return b.Emit(&TypeInsn{Op: code, Desc: internalName})
}

// Field appends a field access.
func (b *Builder) Field(code op.Code, owner, name, desc string) *Builder {
	return b.Emit(&FieldInsn{Op: code, Owner: owner, Name: name, Desc: desc})
}

// Invoke appends a method call on a class.
func (b *Builder) Invoke(code op.Code, owner, name, desc string) *Builder {
	return b.Emit(&MethodInsn{Op: code, Owner: owner, Name: name, Desc: desc})
}

// NewLabel returns an unmarked label.
func (b *Builder) NewLabel() *Label {
	b.labelSeq++
	return &Label{Name: "L" + strconv.Itoa(b.labelSeq)}
}

// Mark places the label at the current position.
func (b *Builder) Mark(l *Label) *Builder {
	return b.Emit(l)
}

// Jump appends a conditional or unconditional jump.
func (b *Builder) Jump(code op.Code, l *Label) *Builder {
	return b.Emit(&JumpInsn{Op: code, Label: l})
}

// TableSwitch appends a tableswitch over min..min+len(labels)-1.
func (b *Builder) TableSwitch(min int32, dflt *Label, labels ...*Label) *Builder {
	return b.Emit(&TableSwitchInsn{
		Min:     min,
		Max:     min + int32(len(labels)) - 1,
		Default: dflt,
		Labels:  labels,
	})
}

// LookupSwitch appends a lookupswitch. Keys must be sorted.
func (b *Builder) LookupSwitch(dflt *Label, keys []int32, labels []*Label) *Builder {
	return b.Emit(&LookupSwitchInsn{Default: dflt, Keys: keys, Labels: labels})
}

// Line appends a line number marker.
func (b *Builder) Line(line int) *Builder {
	return b.Emit(&LineNumber{Line: line})
}

// Frame appends a stack map frame marker.
func (b *Builder) Frame() *Builder {
	return b.Emit(&FrameMarker{})
}

// TryCatch adds a try/catch block. An empty typ catches everything.
func (b *Builder) TryCatch(start, end, handler *Label, typ string) *Builder {
	b.tryCatch = append(b.tryCatch, TryCatchBlock{Start: start, End: end, Handler: handler, Type: typ})
	return b
}

// Return appends the return instruction for type t.
func (b *Builder) Return(t Type) *Builder {
	return b.Op(ReturnOpcode(t))
}

// Box converts the primitive of type t on top of the stack to its wrapper.
// References are left alone.
func (b *Builder) Box(t Type) *Builder {
	box, ok := BoxingOf(t)
	if !ok {
		return b
	}
	return b.Invoke(op.Invokestatic, box.Class, "valueOf", box.BoxDesc)
}

// Unbox converts the Object on top of the stack to type t: a cast followed
// by the unboxing call for primitives, a cast alone for references other
// than java/lang/Object.
func (b *Builder) Unbox(t Type) *Builder {
	if box, ok := BoxingOf(t); ok {
		b.TypeOp(op.Checkcast, box.Class)
		return b.Invoke(op.Invokevirtual, box.Class, box.UnboxName, box.UnboxDesc)
	}
	if t == ObjectType || t.Sort() == SortNull {
		return b
	}
	return b.TypeOp(op.Checkcast, t.InternalName())
}

// NewLocal reserves the next free local slot for a value of type t.
func (b *Builder) NewLocal(t Type) int {
	slot := b.maxLocals
	b.maxLocals += t.Size()
	return slot
}

// SetMaxLocals raises the declared local count.
func (b *Builder) SetMaxLocals(n int) *Builder {
	if n > b.maxLocals {
		b.maxLocals = n
	}
	return b
}

// SetMaxStack sets the declared operand stack size.
func (b *Builder) SetMaxStack(n int) *Builder {
	b.maxStack = n
	return b
}

// Routine builds the immutable routine.
func (b *Builder) Routine() (*Routine, error) {
	return NewRoutine(RoutineParams{
		Owner:          b.owner,
		Name:           b.name,
		Desc:           b.desc,
		Access:         b.access,
		Instructions:   b.insns,
		TryCatchBlocks: b.tryCatch,
		MaxLocals:      b.maxLocals,
		MaxStack:       b.maxStack,
	})
}

// MustRoutine is like Routine but panics on error.
func (b *Builder) MustRoutine() *Routine {
	r, err := b.Routine()
	if err != nil {
		panic(err)
	}
	return r
}

func (b *Builder) touchLocal(slot, size int) {
	if slot+size > b.maxLocals {
		b.maxLocals = slot + size
	}
}

// LoadOpcode returns the xLOAD opcode for values of type t.
func LoadOpcode(t Type) op.Code {
	switch t.StackType().Sort() {
	case SortInt:
		return op.Iload
	case SortLong:
		return op.Lload
	case SortFloat:
		return op.Fload
	case SortDouble:
		return op.Dload
	}
	return op.Aload
}

// StoreOpcode returns the xSTORE opcode for values of type t.
func StoreOpcode(t Type) op.Code {
	switch t.StackType().Sort() {
	case SortInt:
		return op.Istore
	case SortLong:
		return op.Lstore
	case SortFloat:
		return op.Fstore
	case SortDouble:
		return op.Dstore
	}
	return op.Astore
}

// ReturnOpcode returns the return opcode for type t.
func ReturnOpcode(t Type) op.Code {
	switch t.StackType().Sort() {
	case SortVoid:
		return op.Return
	case SortInt:
		return op.Ireturn
	case SortLong:
		return op.Lreturn
	case SortFloat:
		return op.Freturn
	case SortDouble:
		return op.Dreturn
	}
	return op.Areturn
}

func varSize(code op.Code) int {
	switch code {
	case op.Lload, op.Dload, op.Lstore, op.Dstore:
		return 2
	}
	return 1
}
