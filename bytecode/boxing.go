package bytecode

// Boxing describes the wrapper class of a primitive type and the methods
// converting between the two.
type Boxing struct {
	// Class is the internal name of the wrapper, e.g. java/lang/Integer.
	Class string
	// BoxDesc is the descriptor of the static Class.valueOf method.
	BoxDesc string
	// UnboxName and UnboxDesc identify the instance method returning the
	// primitive, e.g. intValue()I.
	UnboxName string
	UnboxDesc string
}

var boxings = map[Sort]Boxing{
	SortBoolean: {"java/lang/Boolean", "(Z)Ljava/lang/Boolean;", "booleanValue", "()Z"},
	SortChar:    {"java/lang/Character", "(C)Ljava/lang/Character;", "charValue", "()C"},
	SortByte:    {"java/lang/Byte", "(B)Ljava/lang/Byte;", "byteValue", "()B"},
	SortShort:   {"java/lang/Short", "(S)Ljava/lang/Short;", "shortValue", "()S"},
	SortInt:     {"java/lang/Integer", "(I)Ljava/lang/Integer;", "intValue", "()I"},
	SortFloat:   {"java/lang/Float", "(F)Ljava/lang/Float;", "floatValue", "()F"},
	SortLong:    {"java/lang/Long", "(J)Ljava/lang/Long;", "longValue", "()J"},
	SortDouble:  {"java/lang/Double", "(D)Ljava/lang/Double;", "doubleValue", "()D"},
}

// BoxingOf returns the wrapper of a primitive type. References are not
// boxed and report false.
func BoxingOf(t Type) (Boxing, bool) {
	b, ok := boxings[t.sort]
	return b, ok
}

// BoxingByClass returns the wrapper with the given internal class name.
func BoxingByClass(class string) (Boxing, Type, bool) {
	for sort, b := range boxings {
		if b.Class == class {
			return b, primitiveOf(sort), true
		}
	}
	return Boxing{}, Type{}, false
}

func primitiveOf(s Sort) Type {
	switch s {
	case SortBoolean:
		return BooleanType
	case SortChar:
		return CharType
	case SortByte:
		return ByteType
	case SortShort:
		return ShortType
	case SortInt:
		return IntType
	case SortFloat:
		return FloatType
	case SortLong:
		return LongType
	case SortDouble:
		return DoubleType
	}
	return TopType
}
