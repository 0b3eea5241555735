package bytecode

import (
	"fmt"
	"strings"
)

// Sort identifies the category of a Type.
type Sort uint8

const (
	SortVoid Sort = iota
	SortBoolean
	SortChar
	SortByte
	SortShort
	SortInt
	SortFloat
	SortLong
	SortDouble
	SortArray
	SortObject
	SortMethod

	// The remaining sorts never appear in descriptors. They describe values
	// seen by the type tracker.

	// SortNull is the type of the null reference.
	SortNull
	// SortTop marks an unusable slot: the second half of a wide value or a
	// slot whose incoming types could not be merged.
	SortTop
	// SortUninitialized is an object created by NEW (or the receiver of a
	// constructor) whose constructor has not run yet.
	SortUninitialized
)

// Type is a value type (a descriptor plus tracker-only sorts). Types are
// comparable with ==.
type Type struct {
	sort Sort
	desc string
	site int
}

var (
	VoidType    = Type{sort: SortVoid, desc: "V"}
	BooleanType = Type{sort: SortBoolean, desc: "Z"}
	CharType    = Type{sort: SortChar, desc: "C"}
	ByteType    = Type{sort: SortByte, desc: "B"}
	ShortType   = Type{sort: SortShort, desc: "S"}
	IntType     = Type{sort: SortInt, desc: "I"}
	FloatType   = Type{sort: SortFloat, desc: "F"}
	LongType    = Type{sort: SortLong, desc: "J"}
	DoubleType  = Type{sort: SortDouble, desc: "D"}
	NullType    = Type{sort: SortNull, desc: "null"}
	TopType     = Type{sort: SortTop, desc: "top"}

	ObjectType      = ObjectTypeOf("java/lang/Object")
	StringType      = ObjectTypeOf("java/lang/String")
	ThrowableType   = ObjectTypeOf("java/lang/Throwable")
	ObjectArrayType = ArrayOf(ObjectType)
)

// ObjectTypeOf returns the type of the class with the given internal name,
// for example "java/lang/String".
func ObjectTypeOf(internalName string) Type {
	if strings.HasPrefix(internalName, "[") {
		return Type{sort: SortArray, desc: internalName}
	}
	return Type{sort: SortObject, desc: "L" + internalName + ";"}
}

// ArrayOf returns the one-dimensional array type with the given element.
func ArrayOf(elem Type) Type {
	return Type{sort: SortArray, desc: "[" + elem.desc}
}

// Uninitialized returns the type of an object allocated by the NEW at the
// given instruction offset.
func Uninitialized(internalName string, site int) Type {
	return Type{sort: SortUninitialized, desc: "L" + internalName + ";", site: site}
}

// UninitializedThis returns the type of the receiver inside a constructor
// before the super constructor has run.
func UninitializedThis(owner string) Type {
	return Type{sort: SortUninitialized, desc: "L" + owner + ";", site: -1}
}

// MethodTypeOf returns the method type with the given return and argument
// types.
func MethodTypeOf(ret Type, args ...Type) Type {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, a := range args {
		sb.WriteString(a.Descriptor())
	}
	sb.WriteByte(')')
	sb.WriteString(ret.Descriptor())
	return Type{sort: SortMethod, desc: sb.String()}
}

// ParseType parses a field descriptor such as "I", "[J" or
// "Ljava/lang/String;".
func ParseType(desc string) (Type, error) {
	t, n, err := parseAt(desc, 0)
	if err != nil {
		return Type{}, err
	}
	if n != len(desc) {
		return Type{}, fmt.Errorf("invalid descriptor %q: trailing characters", desc)
	}
	return t, nil
}

// MustParseType is like ParseType but panics on malformed input.
func MustParseType(desc string) Type {
	t, err := ParseType(desc)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseMethod parses a method descriptor such as "(IJ)Ljava/lang/Object;"
// into its argument and return types.
func ParseMethod(desc string) ([]Type, Type, error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, Type{}, fmt.Errorf("invalid method descriptor %q", desc)
	}
	var args []Type
	pos := 1
	for pos < len(desc) && desc[pos] != ')' {
		t, next, err := parseAt(desc, pos)
		if err != nil {
			return nil, Type{}, err
		}
		if t.sort == SortVoid {
			return nil, Type{}, fmt.Errorf("invalid method descriptor %q: void argument", desc)
		}
		args = append(args, t)
		pos = next
	}
	if pos >= len(desc) {
		return nil, Type{}, fmt.Errorf("invalid method descriptor %q: missing ')'", desc)
	}
	ret, next, err := parseAt(desc, pos+1)
	if err != nil {
		return nil, Type{}, err
	}
	if next != len(desc) {
		return nil, Type{}, fmt.Errorf("invalid method descriptor %q: trailing characters", desc)
	}
	return args, ret, nil
}

func parseAt(desc string, pos int) (Type, int, error) {
	if pos >= len(desc) {
		return Type{}, pos, fmt.Errorf("invalid descriptor %q: unexpected end", desc)
	}
	switch desc[pos] {
	case 'V':
		return VoidType, pos + 1, nil
	case 'Z':
		return BooleanType, pos + 1, nil
	case 'C':
		return CharType, pos + 1, nil
	case 'B':
		return ByteType, pos + 1, nil
	case 'S':
		return ShortType, pos + 1, nil
	case 'I':
		return IntType, pos + 1, nil
	case 'F':
		return FloatType, pos + 1, nil
	case 'J':
		return LongType, pos + 1, nil
	case 'D':
		return DoubleType, pos + 1, nil
	case 'L':
		end := strings.IndexByte(desc[pos:], ';')
		if end < 2 {
			return Type{}, pos, fmt.Errorf("invalid descriptor %q: bad class name at %d", desc, pos)
		}
		return Type{sort: SortObject, desc: desc[pos : pos+end+1]}, pos + end + 1, nil
	case '[':
		elem, next, err := parseAt(desc, pos+1)
		if err != nil {
			return Type{}, pos, err
		}
		if elem.sort == SortVoid {
			return Type{}, pos, fmt.Errorf("invalid descriptor %q: void array", desc)
		}
		return Type{sort: SortArray, desc: desc[pos:next]}, next, nil
	}
	return Type{}, pos, fmt.Errorf("invalid descriptor %q: unexpected %q at %d", desc, desc[pos], pos)
}

// Sort returns the category of the type.
func (t Type) Sort() Sort {
	return t.sort
}

// Site returns the NEW offset of an uninitialized type (-1 for the
// receiver of a constructor).
func (t Type) Site() int {
	return t.site
}

// Descriptor returns the JVM descriptor. Null is described as
// java/lang/Object so that it can appear in generated signatures.
func (t Type) Descriptor() string {
	switch t.sort {
	case SortNull, SortTop:
		return ObjectType.desc
	}
	return t.desc
}

// InternalName returns the internal class name of an object type, or the
// descriptor of an array type.
func (t Type) InternalName() string {
	switch t.sort {
	case SortObject, SortUninitialized:
		return t.desc[1 : len(t.desc)-1]
	case SortArray:
		return t.desc
	case SortNull:
		return "java/lang/Object"
	}
	return ""
}

// ElementType returns the component type of an array type.
func (t Type) ElementType() Type {
	if t.sort != SortArray {
		return TopType
	}
	elem, _, err := parseAt(t.desc, 1)
	if err != nil {
		return TopType
	}
	return elem
}

// Size returns the number of local slots (and operand stack cells) a value
// of this type occupies.
func (t Type) Size() int {
	switch t.sort {
	case SortVoid:
		return 0
	case SortLong, SortDouble:
		return 2
	}
	return 1
}

// IsPrimitive reports whether the type is a non-void primitive.
func (t Type) IsPrimitive() bool {
	return t.sort >= SortBoolean && t.sort <= SortDouble
}

// IsReference reports whether values of the type are references.
func (t Type) IsReference() bool {
	switch t.sort {
	case SortArray, SortObject, SortNull, SortUninitialized:
		return true
	}
	return false
}

// IsUsable reports whether a value of the type can be loaded, passed or
// returned. Top and uninitialized values cannot.
func (t Type) IsUsable() bool {
	return t.sort != SortTop && t.sort != SortUninitialized && t.sort != SortVoid && t.sort != SortMethod
}

// StackType returns the type a value of this type has on the operand
// stack. Boolean, char, byte and short widen to int.
func (t Type) StackType() Type {
	switch t.sort {
	case SortBoolean, SortChar, SortByte, SortShort:
		return IntType
	}
	return t
}

// String returns a human readable form of the type.
func (t Type) String() string {
	switch t.sort {
	case SortVoid:
		return "void"
	case SortBoolean:
		return "boolean"
	case SortChar:
		return "char"
	case SortByte:
		return "byte"
	case SortShort:
		return "short"
	case SortInt:
		return "int"
	case SortFloat:
		return "float"
	case SortLong:
		return "long"
	case SortDouble:
		return "double"
	case SortObject:
		return t.InternalName()
	case SortArray:
		return t.ElementType().String() + "[]"
	case SortNull:
		return "null"
	case SortTop:
		return "top"
	case SortUninitialized:
		if t.site < 0 {
			return "uninitialized this"
		}
		return fmt.Sprintf("uninitialized %s@%d", t.InternalName(), t.site)
	}
	return t.desc
}

// ArgumentsSize returns the number of local slots occupied by the given
// argument types, not counting a receiver.
func ArgumentsSize(args []Type) int {
	n := 0
	for _, a := range args {
		n += a.Size()
	}
	return n
}
