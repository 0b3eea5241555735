package analysis

import (
	"errors"
	"fmt"

	"github.com/cretz/msplit/op"
)

var (
	// ErrStackUnderflow is returned when an instruction pops more values
	// than the operand stack holds.
	ErrStackUnderflow = errors.New("stack underflow")

	// ErrStackMismatch is returned when two paths reach an instruction with
	// different stack depths.
	ErrStackMismatch = errors.New("stack depth mismatch")

	// ErrFallOff is returned when execution can run past the last
	// instruction.
	ErrFallOff = errors.New("execution falls off the end of the code")

	// ErrUnreachable is returned when range facts are requested for an
	// instruction no path reaches.
	ErrUnreachable = errors.New("unreachable instruction")
)

// Error is a type tracking failure at a specific instruction.
type Error struct {
	Offset int
	Opcode op.Code
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Opcode == op.None {
		return fmt.Sprintf("analysis error at %d: %s", e.Offset, e.Err)
	}
	return fmt.Sprintf("analysis error at %d (%s): %s", e.Offset, e.Opcode, e.Err)
}

// Unwrap returns the underlying cause of the error.
func (e *Error) Unwrap() error {
	return e.Err
}
