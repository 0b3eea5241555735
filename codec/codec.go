// Package codec serializes routines to CBOR. The canonical encoding is
// deterministic, so equal routines produce equal bytes and equal digests.
package codec

import (
	"crypto/sha256"
	"fmt"
	"math"

	"github.com/cretz/msplit/bytecode"
	"github.com/cretz/msplit/op"
	"github.com/fxamacker/cbor/v2"
)

// Version is written into every document and checked on decode.
const Version = 1

// Pseudo-instruction kinds. Real instructions are identified by opcode.
const (
	pseudoLabel = "label"
	pseudoLine  = "line"
	pseudoFrame = "frame"
)

// Constant kinds of an ldc operand.
const (
	constInt    = "I"
	constFloat  = "F"
	constLong   = "J"
	constDouble = "D"
	constString = "S"
	constClass  = "C"
)

// Document is the wire form of a routine. Labels are referenced by the
// index of their marker in the order they are marked.
type Document struct {
	Version   int        `cbor:"1,keyasint"`
	Owner     string     `cbor:"2,keyasint"`
	Name      string     `cbor:"3,keyasint"`
	Desc      string     `cbor:"4,keyasint"`
	Access    uint16     `cbor:"5,keyasint"`
	MaxLocals int        `cbor:"6,keyasint"`
	MaxStack  int        `cbor:"7,keyasint,omitempty"`
	Insns     []Insn     `cbor:"8,keyasint"`
	TryCatch  []TryCatch `cbor:"9,keyasint,omitempty"`
}

// Insn is the wire form of one instruction. Only the fields of the
// instruction's kind are set.
type Insn struct {
	Op     int     `cbor:"1,keyasint"`
	Pseudo string  `cbor:"2,keyasint,omitempty"`
	Int    int64   `cbor:"3,keyasint,omitempty"`
	Var    int     `cbor:"4,keyasint,omitempty"`
	Owner  string  `cbor:"5,keyasint,omitempty"`
	Name   string  `cbor:"6,keyasint,omitempty"`
	Desc   string  `cbor:"7,keyasint,omitempty"`
	Itf    bool    `cbor:"8,keyasint,omitempty"`
	Const  string  `cbor:"9,keyasint,omitempty"`
	Bits   uint64  `cbor:"10,keyasint,omitempty"`
	Label  int     `cbor:"11,keyasint,omitempty"`
	Labels []int   `cbor:"12,keyasint,omitempty"`
	Keys   []int32 `cbor:"13,keyasint,omitempty"`
}

// TryCatch is the wire form of a try/catch block.
type TryCatch struct {
	Start   int    `cbor:"1,keyasint"`
	End     int    `cbor:"2,keyasint"`
	Handler int    `cbor:"3,keyasint"`
	Type    string `cbor:"4,keyasint,omitempty"`
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Marshal serializes a routine to CBOR bytes.
func Marshal(r *bytecode.Routine) ([]byte, error) {
	doc, err := Encode(r)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(doc)
}

// MarshalAll serializes several routines as one CBOR array.
func MarshalAll(routines ...*bytecode.Routine) ([]byte, error) {
	docs := make([]*Document, 0, len(routines))
	for _, r := range routines {
		doc, err := Encode(r)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return encMode.Marshal(docs)
}

// Unmarshal deserializes a routine from CBOR bytes.
func Unmarshal(data []byte) (*bytecode.Routine, error) {
	var doc Document
	if err := cbor.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("codec: unmarshal routine: %w", err)
	}
	return Decode(&doc)
}

// UnmarshalAll deserializes routines written by MarshalAll.
func UnmarshalAll(data []byte) ([]*bytecode.Routine, error) {
	var docs []*Document
	if err := cbor.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("codec: unmarshal routines: %w", err)
	}
	routines := make([]*bytecode.Routine, 0, len(docs))
	for _, doc := range docs {
		r, err := Decode(doc)
		if err != nil {
			return nil, err
		}
		routines = append(routines, r)
	}
	return routines, nil
}

// Digest returns the SHA-256 of the routine's canonical encoding.
func Digest(r *bytecode.Routine) ([32]byte, error) {
	data, err := Marshal(r)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}

// Encode converts a routine to its wire form.
func Encode(r *bytecode.Routine) (*Document, error) {
	ids := map[*bytecode.Label]int{}
	for i := 0; i < r.InstructionCount(); i++ {
		if l, ok := r.InstructionAt(i).(*bytecode.Label); ok {
			ids[l] = len(ids)
		}
	}
	labelList := func(labels []*bytecode.Label) []int {
		out := make([]int, len(labels))
		for i, l := range labels {
			out[i] = ids[l]
		}
		return out
	}
	doc := &Document{
		Version:   Version,
		Owner:     r.Owner(),
		Name:      r.Name(),
		Desc:      r.Descriptor(),
		Access:    uint16(r.Access()),
		MaxLocals: r.MaxLocals(),
		MaxStack:  r.MaxStack(),
		Insns:     make([]Insn, 0, r.InstructionCount()),
	}
	for i := 0; i < r.InstructionCount(); i++ {
		insn := r.InstructionAt(i)
		w := Insn{Op: int(insn.Opcode())}
		switch insn := insn.(type) {
		case *bytecode.Label:
			w.Pseudo = pseudoLabel
			w.Name = insn.Name
		case *bytecode.LineNumber:
			w.Pseudo = pseudoLine
			w.Int = int64(insn.Line)
		case *bytecode.FrameMarker:
			w.Pseudo = pseudoFrame
		case *bytecode.Insn:
		case *bytecode.IntInsn:
			w.Int = int64(insn.Operand)
		case *bytecode.VarInsn:
			w.Var = insn.Var
		case *bytecode.IincInsn:
			w.Var = insn.Var
			w.Int = int64(insn.Incr)
		case *bytecode.TypeInsn:
			w.Desc = insn.Desc
		case *bytecode.FieldInsn:
			w.Owner, w.Name, w.Desc = insn.Owner, insn.Name, insn.Desc
		case *bytecode.MethodInsn:
			w.Owner, w.Name, w.Desc, w.Itf = insn.Owner, insn.Name, insn.Desc, insn.Itf
		case *bytecode.LdcInsn:
			if err := encodeConstant(&w, insn.Value); err != nil {
				return nil, fmt.Errorf("codec: %s at %d: %w", r, i, err)
			}
		case *bytecode.JumpInsn:
			w.Label = ids[insn.Label]
		case *bytecode.TableSwitchInsn:
			w.Int = int64(insn.Min)
			w.Label = ids[insn.Default]
			w.Labels = labelList(insn.Labels)
		case *bytecode.LookupSwitchInsn:
			w.Label = ids[insn.Default]
			w.Keys = insn.Keys
			w.Labels = labelList(insn.Labels)
		case *bytecode.MultiANewArrayInsn:
			w.Desc = insn.Desc
			w.Int = int64(insn.Dims)
		default:
			return nil, fmt.Errorf("codec: %s at %d: unsupported instruction %T", r, i, insn)
		}
		doc.Insns = append(doc.Insns, w)
	}
	for i := 0; i < r.TryCatchBlockCount(); i++ {
		tcb := r.TryCatchBlockAt(i)
		doc.TryCatch = append(doc.TryCatch, TryCatch{
			Start:   ids[tcb.Start],
			End:     ids[tcb.End],
			Handler: ids[tcb.Handler],
			Type:    tcb.Type,
		})
	}
	return doc, nil
}

func encodeConstant(w *Insn, v any) error {
	switch v := v.(type) {
	case int32:
		w.Const, w.Int = constInt, int64(v)
	case int64:
		w.Const, w.Int = constLong, v
	case float32:
		w.Const, w.Bits = constFloat, uint64(math.Float32bits(v))
	case float64:
		w.Const, w.Bits = constDouble, math.Float64bits(v)
	case string:
		w.Const, w.Desc = constString, v
	case bytecode.Type:
		w.Const, w.Desc = constClass, v.Descriptor()
	default:
		return fmt.Errorf("unsupported constant %T", v)
	}
	return nil
}

// Decode converts a wire document back into a routine.
func Decode(doc *Document) (*bytecode.Routine, error) {
	if doc.Version != Version {
		return nil, fmt.Errorf("codec: unsupported version %d", doc.Version)
	}
	var labels []*bytecode.Label
	for _, w := range doc.Insns {
		if w.Pseudo == pseudoLabel {
			labels = append(labels, &bytecode.Label{Name: w.Name})
		}
	}
	label := func(id int) (*bytecode.Label, error) {
		if id < 0 || id >= len(labels) {
			return nil, fmt.Errorf("label %d out of range", id)
		}
		return labels[id], nil
	}
	labelList := func(ids []int) ([]*bytecode.Label, error) {
		out := make([]*bytecode.Label, len(ids))
		for i, id := range ids {
			l, err := label(id)
			if err != nil {
				return nil, err
			}
			out[i] = l
		}
		return out, nil
	}

	insns := make([]bytecode.Instruction, 0, len(doc.Insns))
	marked := 0
	for i, w := range doc.Insns {
		insn, err := decodeInsn(w, labels, &marked, label, labelList)
		if err != nil {
			return nil, fmt.Errorf("codec: %s.%s%s at %d: %w", doc.Owner, doc.Name, doc.Desc, i, err)
		}
		insns = append(insns, insn)
	}
	var tryCatch []bytecode.TryCatchBlock
	for i, tc := range doc.TryCatch {
		start, err1 := label(tc.Start)
		end, err2 := label(tc.End)
		handler, err3 := label(tc.Handler)
		for _, err := range []error{err1, err2, err3} {
			if err != nil {
				return nil, fmt.Errorf("codec: try/catch block %d: %w", i, err)
			}
		}
		tryCatch = append(tryCatch, bytecode.TryCatchBlock{Start: start, End: end, Handler: handler, Type: tc.Type})
	}
	r, err := bytecode.NewRoutine(bytecode.RoutineParams{
		Owner:          doc.Owner,
		Name:           doc.Name,
		Desc:           doc.Desc,
		Access:         bytecode.Access(doc.Access),
		Instructions:   insns,
		TryCatchBlocks: tryCatch,
		MaxLocals:      doc.MaxLocals,
		MaxStack:       doc.MaxStack,
	})
	if err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}
	return r, nil
}

func decodeInsn(
	w Insn,
	labels []*bytecode.Label,
	marked *int,
	label func(int) (*bytecode.Label, error),
	labelList func([]int) ([]*bytecode.Label, error),
) (bytecode.Instruction, error) {
	switch w.Pseudo {
	case pseudoLabel:
		l := labels[*marked]
		*marked++
		return l, nil
	case pseudoLine:
		return &bytecode.LineNumber{Line: int(w.Int)}, nil
	case pseudoFrame:
		return &bytecode.FrameMarker{}, nil
	case "":
	default:
		return nil, fmt.Errorf("unknown pseudo-instruction %q", w.Pseudo)
	}
	code := op.Code(w.Op)
	info := op.GetInfo(code)
	if info.Name == "" {
		return nil, fmt.Errorf("unknown opcode %d", w.Op)
	}
	switch info.Kind {
	case op.KindNone:
		return &bytecode.Insn{Op: code}, nil
	case op.KindInt:
		return &bytecode.IntInsn{Op: code, Operand: int32(w.Int)}, nil
	case op.KindVar:
		return &bytecode.VarInsn{Op: code, Var: w.Var}, nil
	case op.KindIinc:
		return &bytecode.IincInsn{Var: w.Var, Incr: int32(w.Int)}, nil
	case op.KindType:
		return &bytecode.TypeInsn{Op: code, Desc: w.Desc}, nil
	case op.KindField:
		return &bytecode.FieldInsn{Op: code, Owner: w.Owner, Name: w.Name, Desc: w.Desc}, nil
	case op.KindMethod, op.KindInvokeDynamic:
		return &bytecode.MethodInsn{Op: code, Owner: w.Owner, Name: w.Name, Desc: w.Desc, Itf: w.Itf}, nil
	case op.KindLdc:
		v, err := decodeConstant(w)
		if err != nil {
			return nil, err
		}
		return &bytecode.LdcInsn{Value: v}, nil
	case op.KindJump:
		l, err := label(w.Label)
		if err != nil {
			return nil, err
		}
		return &bytecode.JumpInsn{Op: code, Label: l}, nil
	case op.KindTableSwitch:
		dflt, err := label(w.Label)
		if err != nil {
			return nil, err
		}
		targets, err := labelList(w.Labels)
		if err != nil {
			return nil, err
		}
		lo := int32(w.Int)
		return &bytecode.TableSwitchInsn{
			Min:     lo,
			Max:     lo + int32(len(targets)) - 1,
			Default: dflt,
			Labels:  targets,
		}, nil
	case op.KindLookupSwitch:
		dflt, err := label(w.Label)
		if err != nil {
			return nil, err
		}
		targets, err := labelList(w.Labels)
		if err != nil {
			return nil, err
		}
		if len(targets) != len(w.Keys) {
			return nil, fmt.Errorf("lookupswitch has %d keys and %d labels", len(w.Keys), len(targets))
		}
		return &bytecode.LookupSwitchInsn{Default: dflt, Keys: w.Keys, Labels: targets}, nil
	case op.KindMultiANewArray:
		return &bytecode.MultiANewArrayInsn{Desc: w.Desc, Dims: int(w.Int)}, nil
	}
	return nil, fmt.Errorf("opcode %s has no wire form", info.Name)
}

func decodeConstant(w Insn) (any, error) {
	switch w.Const {
	case constInt:
		return int32(w.Int), nil
	case constLong:
		return w.Int, nil
	case constFloat:
		return math.Float32frombits(uint32(w.Bits)), nil
	case constDouble:
		return math.Float64frombits(w.Bits), nil
	case constString:
		return w.Desc, nil
	case constClass:
		t, err := bytecode.ParseType(w.Desc)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	return nil, fmt.Errorf("unknown constant kind %q", w.Const)
}
