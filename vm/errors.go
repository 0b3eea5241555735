package vm

import (
	"errors"
	"fmt"

	"github.com/cretz/msplit/op"
)

var (
	// ErrHalted is returned when an observer stops execution.
	ErrHalted = errors.New("execution halted by observer")

	// ErrStackOverflow is returned when invocations nest deeper than the
	// configured maximum frame depth.
	ErrStackOverflow = errors.New("stack overflow")

	// ErrUnknownMethod is returned when an invoked method is neither defined
	// nor native.
	ErrUnknownMethod = errors.New("unknown method")

	// ErrUncaught is wrapped by errors for exceptions no handler caught.
	ErrUncaught = errors.New("uncaught exception")
)

// Error describes a fault raised while executing a routine.
type Error struct {
	// Routine is "owner.name" plus descriptor of the routine that faulted.
	Routine string
	// Offset is the instruction offset of the fault.
	Offset int
	// Opcode is the faulting opcode.
	Opcode op.Code
	// Exception is the thrown object when the fault is an uncaught exception.
	Exception *Object
	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	msg := e.Err.Error()
	if e.Exception != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Exception.Class)
		if m, ok := e.Exception.Fields["message"].(string); ok && m != "" {
			msg += ": " + m
		}
	}
	return fmt.Sprintf("%s at %d (%s): %s", e.Routine, e.Offset, e.Opcode, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// thrown carries a Java exception up through Go calls until a handler
// catches it.
type thrown struct {
	exception *Object

	// Where the exception was first raised.
	routine string
	offset  int
	opcode  op.Code
}

func (t *thrown) Error() string {
	return "exception " + t.exception.Class
}

func newThrowable(class, message string) *thrown {
	o := NewObject(class)
	o.Fields["message"] = message
	return &thrown{exception: o}
}

var defaultSupers = map[string]string{
	"java/lang/Throwable":                      "java/lang/Object",
	"java/lang/Exception":                      "java/lang/Throwable",
	"java/lang/Error":                          "java/lang/Throwable",
	"java/lang/RuntimeException":               "java/lang/Exception",
	"java/lang/ArithmeticException":            "java/lang/RuntimeException",
	"java/lang/NullPointerException":           "java/lang/RuntimeException",
	"java/lang/ClassCastException":             "java/lang/RuntimeException",
	"java/lang/NegativeArraySizeException":     "java/lang/RuntimeException",
	"java/lang/IndexOutOfBoundsException":      "java/lang/RuntimeException",
	"java/lang/ArrayIndexOutOfBoundsException": "java/lang/IndexOutOfBoundsException",
	"java/lang/ArrayStoreException":            "java/lang/RuntimeException",
	"java/lang/IllegalArgumentException":       "java/lang/RuntimeException",
	"java/lang/IllegalStateException":          "java/lang/RuntimeException",
	"java/lang/Number":                         "java/lang/Object",
	"java/lang/Integer":                        "java/lang/Number",
	"java/lang/Long":                           "java/lang/Number",
	"java/lang/Float":                          "java/lang/Number",
	"java/lang/Double":                         "java/lang/Number",
	"java/lang/Short":                          "java/lang/Number",
	"java/lang/Byte":                           "java/lang/Number",
	"java/lang/Character":                      "java/lang/Object",
	"java/lang/Boolean":                        "java/lang/Object",
	"java/lang/String":                         "java/lang/Object",
	"java/lang/Class":                          "java/lang/Object",
}
