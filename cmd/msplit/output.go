package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cretz/msplit/asm"
	"github.com/cretz/msplit/bytecode"
	"github.com/cretz/msplit/vm"
	"github.com/fatih/color"
)

var (
	red   = color.New(color.FgRed).SprintFunc()
	green = color.New(color.FgGreen).SprintFunc()
	bold  = color.New(color.Bold).SprintFunc()
	faint = color.New(color.Faint).SprintFunc()
)

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s\n", red(err.Error()))
}

// describeRoutine prints one summary line for a routine and its assembled
// size.
func describeRoutine(w io.Writer, label string, r *bytecode.Routine) (*asm.Method, error) {
	m, err := asm.Assemble(r)
	var tooLarge *asm.MethodTooLargeError
	if errors.As(err, &tooLarge) {
		fmt.Fprintf(w, "%-10s %s  %d instructions, %s\n", label, bold(r.String()),
			r.InstructionCount(), red(fmt.Sprintf("%d bytes (too large)", tooLarge.CodeSize)))
		return nil, err
	} else if err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "%-10s %s  %d instructions, %s %s\n", label, bold(r.String()),
		r.InstructionCount(), green(fmt.Sprintf("%d bytes", len(m.Code))),
		faint(fmt.Sprintf("(max_stack=%d, max_locals=%d)", m.MaxStack, m.MaxLocals)))
	return m, nil
}

// formatValue renders a value returned by the reference VM.
func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", v)
	case *vm.Array:
		parts := make([]string, len(v.Elements))
		for i, e := range v.Elements {
			parts[i] = formatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *vm.Boxed:
		return formatValue(v.Value)
	case *vm.Object:
		return v.Class + "@object"
	case vm.Class:
		return "class " + v.Name
	}
	return fmt.Sprintf("%v", v)
}
