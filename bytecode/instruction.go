package bytecode

import (
	"fmt"

	"github.com/cretz/msplit/op"
)

// Instruction is one element of a routine's instruction sequence. The set
// of implementations is closed: *Insn, *IntInsn, *VarInsn, *IincInsn,
// *TypeInsn, *FieldInsn, *MethodInsn, *LdcInsn, *JumpInsn,
// *TableSwitchInsn, *LookupSwitchInsn, *MultiANewArrayInsn and the
// pseudo-instructions *Label, *LineNumber and *FrameMarker.
type Instruction interface {
	// Opcode returns the opcode, or op.None for pseudo-instructions.
	Opcode() op.Code

	// Clone returns a copy of the instruction. Labels found in the given map
	// are replaced by their mapped value.
	Clone(labels map[*Label]*Label) Instruction

	instruction()
}

// Insn is an instruction without operands.
type Insn struct {
	Op op.Code
}

// IntInsn carries an immediate integer (bipush, sipush, newarray).
type IntInsn struct {
	Op      op.Code
	Operand int32
}

// VarInsn reads or writes a local slot.
type VarInsn struct {
	Op  op.Code
	Var int
}

// IincInsn increments a local int slot in place.
type IincInsn struct {
	Var  int
	Incr int32
}

// TypeInsn carries a class internal name (new, anewarray, checkcast,
// instanceof).
type TypeInsn struct {
	Op   op.Code
	Desc string
}

// FieldInsn accesses a field.
type FieldInsn struct {
	Op    op.Code
	Owner string
	Name  string
	Desc  string
}

// MethodInsn invokes a method.
type MethodInsn struct {
	Op    op.Code
	Owner string
	Name  string
	Desc  string
	Itf   bool
}

// LdcInsn pushes a constant: int32, float32, int64, float64, string or a
// class Type.
type LdcInsn struct {
	Value any
}

// JumpInsn jumps to a single label.
type JumpInsn struct {
	Op    op.Code
	Label *Label
}

// TableSwitchInsn jumps through a dense key range.
type TableSwitchInsn struct {
	Min     int32
	Max     int32
	Default *Label
	Labels  []*Label
}

// LookupSwitchInsn jumps through sorted sparse keys.
type LookupSwitchInsn struct {
	Default *Label
	Keys    []int32
	Labels  []*Label
}

// MultiANewArrayInsn allocates a multi-dimensional array.
type MultiANewArrayInsn struct {
	Desc string
	Dims int
}

// Label marks a position in the instruction sequence. Labels are compared
// by identity.
type Label struct {
	Name string
}

// LineNumber is a debug marker. It is copied where the surrounding code is
// copied but never moved into an extracted routine.
type LineNumber struct {
	Line int
}

// FrameMarker stands for a stack map frame in the input. Frames are
// recomputed after assembly, so markers are dropped by the generator.
type FrameMarker struct{}

func (*Insn) instruction() {}
func (*IntInsn) instruction() {}
func (*VarInsn) instruction() {}
func (*IincInsn) instruction() {}
func (*TypeInsn) instruction() {}
func (*FieldInsn) instruction() {}
func (*MethodInsn) instruction() {}
func (*LdcInsn) instruction() {}
func (*JumpInsn) instruction() {}
func (*TableSwitchInsn) instruction() {}
func (*LookupSwitchInsn) instruction() {}
func (*MultiANewArrayInsn) instruction() {}
func (*Label) instruction() {}
func (*LineNumber) instruction() {}
func (*FrameMarker) instruction() {}

func (i *Insn) Opcode() op.Code { return i.Op }
func (i *IntInsn) Opcode() op.Code { return i.Op }
func (i *VarInsn) Opcode() op.Code { return i.Op }
func (*IincInsn) Opcode() op.Code { return op.Iinc }
func (i *TypeInsn) Opcode() op.Code { return i.Op }
func (i *FieldInsn) Opcode() op.Code { return i.Op }
func (i *MethodInsn) Opcode() op.Code { return i.Op }
func (*LdcInsn) Opcode() op.Code { return op.Ldc }
func (i *JumpInsn) Opcode() op.Code { return i.Op }
func (*TableSwitchInsn) Opcode() op.Code { return op.Tableswitch }
func (*LookupSwitchInsn) Opcode() op.Code { return op.Lookupswitch }
func (*MultiANewArrayInsn) Opcode() op.Code { return op.Multianewarray }
func (*Label) Opcode() op.Code { return op.None }
func (*LineNumber) Opcode() op.Code { return op.None }
func (*FrameMarker) Opcode() op.Code { return op.None }

func (i *Insn) Clone(map[*Label]*Label) Instruction {
	c := *i
	return &c
}

func (i *IntInsn) Clone(map[*Label]*Label) Instruction {
	c := *i
	return &c
}

func (i *VarInsn) Clone(map[*Label]*Label) Instruction {
	c := *i
	return &c
}

func (i *IincInsn) Clone(map[*Label]*Label) Instruction {
	c := *i
	return &c
}

func (i *TypeInsn) Clone(map[*Label]*Label) Instruction {
	c := *i
	return &c
}

func (i *FieldInsn) Clone(map[*Label]*Label) Instruction {
	c := *i
	return &c
}

func (i *MethodInsn) Clone(map[*Label]*Label) Instruction {
	c := *i
	return &c
}

func (i *LdcInsn) Clone(map[*Label]*Label) Instruction {
	c := *i
	return &c
}

func (i *MultiANewArrayInsn) Clone(map[*Label]*Label) Instruction {
	c := *i
	return &c
}

func (i *LineNumber) Clone(map[*Label]*Label) Instruction {
	c := *i
	return &c
}

func (*FrameMarker) Clone(map[*Label]*Label) Instruction {
	return &FrameMarker{}
}

func (i *JumpInsn) Clone(labels map[*Label]*Label) Instruction {
	return &JumpInsn{Op: i.Op, Label: mapLabel(labels, i.Label)}
}

func (i *TableSwitchInsn) Clone(labels map[*Label]*Label) Instruction {
	return &TableSwitchInsn{
		Min:     i.Min,
		Max:     i.Max,
		Default: mapLabel(labels, i.Default),
		Labels:  mapLabels(labels, i.Labels),
	}
}

func (i *LookupSwitchInsn) Clone(labels map[*Label]*Label) Instruction {
	keys := make([]int32, len(i.Keys))
	copy(keys, i.Keys)
	return &LookupSwitchInsn{
		Default: mapLabel(labels, i.Default),
		Keys:    keys,
		Labels:  mapLabels(labels, i.Labels),
	}
}

// Clone of a label returns its mapped label, so that a label marker and the
// jumps referencing it stay consistent within one copy.
func (l *Label) Clone(labels map[*Label]*Label) Instruction {
	return mapLabel(labels, l)
}

func (l *Label) String() string {
	if l.Name != "" {
		return l.Name
	}
	return fmt.Sprintf("L%p", l)
}

func mapLabel(labels map[*Label]*Label, l *Label) *Label {
	if mapped, ok := labels[l]; ok {
		return mapped
	}
	return l
}

func mapLabels(labels map[*Label]*Label, src []*Label) []*Label {
	dst := make([]*Label, len(src))
	for i, l := range src {
		dst[i] = mapLabel(labels, l)
	}
	return dst
}

// IsPseudo reports whether the instruction only marks a position.
func IsPseudo(insn Instruction) bool {
	return insn.Opcode() == op.None
}

// Targets returns the labels an instruction can jump to. The default label
// of a switch comes first.
func Targets(insn Instruction) []*Label {
	switch insn := insn.(type) {
	case *JumpInsn:
		return []*Label{insn.Label}
	case *TableSwitchInsn:
		return append([]*Label{insn.Default}, insn.Labels...)
	case *LookupSwitchInsn:
		return append([]*Label{insn.Default}, insn.Labels...)
	}
	return nil
}

// FreshLabels returns a map from every label marker in insns to a new
// label with the same name. It is the argument Clone expects when copying a
// sequence into a new routine.
func FreshLabels(insns []Instruction) map[*Label]*Label {
	labels := map[*Label]*Label{}
	for _, insn := range insns {
		if l, ok := insn.(*Label); ok {
			labels[l] = &Label{Name: l.Name}
		}
	}
	return labels
}
