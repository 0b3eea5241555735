package vm

import (
	"fmt"
	"math"

	"github.com/cretz/msplit/bytecode"
)

// Values on the operand stack and in locals are represented as:
//
//	int, boolean, byte, char, short  int32
//	long                             int64
//	float                            float32
//	double                           float64
//	java/lang/String                 string
//	null                             nil
//
// Other references are *Object, *Boxed, *Array or Class. A long or double
// takes two cells; the second holds the wide marker.

type wideHalf struct{}

var wide = wideHalf{}

// returnAddress is pushed by jsr and consumed by ret.
type returnAddress int

// Object is an instance of a class without a native representation.
type Object struct {
	Class  string
	Fields map[string]any
}

// NewObject returns an instance of the given class with no fields set.
func NewObject(class string) *Object {
	return &Object{Class: class, Fields: map[string]any{}}
}

func (o *Object) String() string {
	return fmt.Sprintf("%s@%p", o.Class, o)
}

// Boxed is an instance of a primitive wrapper class such as
// java/lang/Integer. Value holds the stack representation of the
// primitive.
type Boxed struct {
	Class string
	Value any
}

func (b *Boxed) String() string {
	return fmt.Sprint(b.Value)
}

// Array is a Java array. Elements of boolean, byte, char and short arrays
// are stored as int32 already narrowed to their element type.
type Array struct {
	Type     bytecode.Type
	Elements []any
}

// NewArray returns an array of the given array type filled with zero
// values.
func NewArray(t bytecode.Type, length int) *Array {
	elems := make([]any, length)
	zero := zeroValue(t.ElementType())
	for i := range elems {
		elems[i] = zero
	}
	return &Array{Type: t, Elements: elems}
}

// Len returns the array length.
func (a *Array) Len() int {
	return len(a.Elements)
}

// Class is a java/lang/Class constant loaded with ldc.
type Class struct {
	Name string
}

func zeroValue(t bytecode.Type) any {
	switch t.StackType().Sort() {
	case bytecode.SortInt:
		return int32(0)
	case bytecode.SortLong:
		return int64(0)
	case bytecode.SortFloat:
		return float32(0)
	case bytecode.SortDouble:
		return float64(0)
	}
	return nil
}

// classOf returns the internal class name of a non-null reference.
func classOf(v any) string {
	switch v := v.(type) {
	case string:
		return "java/lang/String"
	case *Object:
		return v.Class
	case *Boxed:
		return v.Class
	case *Array:
		return v.Type.InternalName()
	case Class:
		return "java/lang/Class"
	}
	return "java/lang/Object"
}

// coerce converts a Go argument into the stack representation of t.
func coerce(t bytecode.Type, v any) (any, error) {
	switch t.StackType().Sort() {
	case bytecode.SortInt:
		switch v := v.(type) {
		case int32:
			return v, nil
		case int:
			return int32(v), nil
		case bool:
			if v {
				return int32(1), nil
			}
			return int32(0), nil
		case int8:
			return int32(v), nil
		case int16:
			return int32(v), nil
		case uint16:
			return int32(v), nil
		}
	case bytecode.SortLong:
		switch v := v.(type) {
		case int64:
			return v, nil
		case int:
			return int64(v), nil
		}
	case bytecode.SortFloat:
		if v, ok := v.(float32); ok {
			return v, nil
		}
	case bytecode.SortDouble:
		switch v := v.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		}
	default:
		return v, nil
	}
	return nil, fmt.Errorf("cannot pass %T as %s", v, t)
}

// Java conversions saturate and map NaN to zero.

func f2i(f float64) int32 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int32(f)
}

func f2l(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

func fcmp(a, b float64, nan int32) int32 {
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		return nan
	case a > b:
		return 1
	case a < b:
		return -1
	}
	return 0
}

func lcmp(a, b int64) int32 {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	}
	return 0
}

// narrow applies the element type of a primitive array to a stored int.
func narrow(elem bytecode.Type, v int32) int32 {
	switch elem.Sort() {
	case bytecode.SortBoolean:
		return v & 1
	case bytecode.SortByte:
		return int32(int8(v))
	case bytecode.SortChar:
		return int32(uint16(v))
	case bytecode.SortShort:
		return int32(int16(v))
	}
	return v
}
