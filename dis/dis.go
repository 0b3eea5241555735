// Package dis supports inspection of routines by listing their instructions.
// Offsets are instruction indexes, the same positions the splitter and the
// type tracker report.
package dis

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cretz/msplit/bytecode"
	"github.com/cretz/msplit/internal/table"
	"github.com/cretz/msplit/op"
	"github.com/fatih/color"
)

// Instruction represents a single instruction of a routine and its operands.
// Pseudo-instructions (labels, line numbers and frames) are listed with
// opcode op.None.
type Instruction struct {
	Offset     int
	Name       string
	Opcode     op.Code
	Operands   []string
	Annotation string
	Constant   any
}

var arrayTypes = map[int32]string{
	op.TBoolean: "boolean",
	op.TChar:    "char",
	op.TFloat:   "float",
	op.TDouble:  "double",
	op.TByte:    "byte",
	op.TShort:   "short",
	op.TInt:     "int",
	op.TLong:    "long",
}

// Disassemble returns a parsed representation of the routine's instructions.
func Disassemble(r *bytecode.Routine) ([]Instruction, error) {
	names := labelNames(r)
	roles := tryCatchRoles(r)
	instructions := make([]Instruction, 0, r.InstructionCount())
	for i := 0; i < r.InstructionCount(); i++ {
		insn := r.InstructionAt(i)
		instr := Instruction{Offset: i, Opcode: insn.Opcode()}
		if !bytecode.IsPseudo(insn) {
			info := op.GetInfo(insn.Opcode())
			if info.Name == "" {
				return nil, fmt.Errorf("%s: unknown opcode %d at %d", r, insn.Opcode(), i)
			}
			instr.Name = info.Name
		}
		switch insn := insn.(type) {
		case *bytecode.Label:
			instr.Name = names[insn] + ":"
			instr.Annotation = strings.Join(roles[insn], ", ")
		case *bytecode.LineNumber:
			instr.Name = "LINE"
			instr.Operands = []string{strconv.Itoa(insn.Line)}
		case *bytecode.FrameMarker:
			instr.Name = "FRAME"
		case *bytecode.IntInsn:
			instr.Operands = []string{strconv.Itoa(int(insn.Operand))}
			if insn.Op == op.Newarray {
				t, ok := arrayTypes[insn.Operand]
				if !ok {
					return nil, fmt.Errorf("%s: bad array type %d at %d", r, insn.Operand, i)
				}
				instr.Annotation = t
			}
		case *bytecode.VarInsn:
			instr.Operands = []string{strconv.Itoa(insn.Var)}
			instr.Annotation = localName(r, insn.Var)
		case *bytecode.IincInsn:
			instr.Operands = []string{strconv.Itoa(insn.Var), strconv.Itoa(int(insn.Incr))}
			instr.Annotation = localName(r, insn.Var)
		case *bytecode.TypeInsn:
			instr.Annotation = insn.Desc
		case *bytecode.FieldInsn:
			instr.Annotation = insn.Owner + "." + insn.Name + ":" + insn.Desc
		case *bytecode.MethodInsn:
			instr.Annotation = insn.Owner + "." + insn.Name + insn.Desc
			if insn.Op == op.Invokedynamic {
				instr.Annotation = insn.Name + insn.Desc
			}
		case *bytecode.LdcInsn:
			instr.Constant = insn.Value
		case *bytecode.JumpInsn:
			instr.Annotation = names[insn.Label]
		case *bytecode.TableSwitchInsn:
			instr.Operands = []string{strconv.Itoa(int(insn.Min)), strconv.Itoa(int(insn.Max))}
			cases := make([]string, 0, len(insn.Labels)+1)
			for k, l := range insn.Labels {
				cases = append(cases, fmt.Sprintf("%d: %s", int(insn.Min)+k, names[l]))
			}
			cases = append(cases, "default: "+names[insn.Default])
			instr.Annotation = strings.Join(cases, ", ")
		case *bytecode.LookupSwitchInsn:
			instr.Operands = []string{strconv.Itoa(len(insn.Keys))}
			cases := make([]string, 0, len(insn.Labels)+1)
			for k, l := range insn.Labels {
				cases = append(cases, fmt.Sprintf("%d: %s", insn.Keys[k], names[l]))
			}
			cases = append(cases, "default: "+names[insn.Default])
			instr.Annotation = strings.Join(cases, ", ")
		case *bytecode.MultiANewArrayInsn:
			instr.Operands = []string{strconv.Itoa(insn.Dims)}
			instr.Annotation = insn.Desc
		}
		instructions = append(instructions, instr)
	}
	return instructions, nil
}

// labelNames assigns L0, L1, ... to labels in the order they are marked.
// Labels that already carry a name keep it.
func labelNames(r *bytecode.Routine) map[*bytecode.Label]string {
	names := map[*bytecode.Label]string{}
	n := 0
	for i := 0; i < r.InstructionCount(); i++ {
		l, ok := r.InstructionAt(i).(*bytecode.Label)
		if !ok {
			continue
		}
		if l.Name != "" {
			names[l] = l.Name
		} else {
			names[l] = "L" + strconv.Itoa(n)
		}
		n++
	}
	return names
}

func tryCatchRoles(r *bytecode.Routine) map[*bytecode.Label][]string {
	roles := map[*bytecode.Label][]string{}
	for i := 0; i < r.TryCatchBlockCount(); i++ {
		tcb := r.TryCatchBlockAt(i)
		typ := tcb.Type
		if typ == "" {
			typ = "any"
		}
		roles[tcb.Start] = append(roles[tcb.Start], fmt.Sprintf("try#%d start", i))
		roles[tcb.End] = append(roles[tcb.End], fmt.Sprintf("try#%d end", i))
		roles[tcb.Handler] = append(roles[tcb.Handler], fmt.Sprintf("try#%d catch %s", i, typ))
	}
	return roles
}

func localName(r *bytecode.Routine, slot int) string {
	if !r.IsStatic() {
		if slot == 0 {
			return "this"
		}
		slot--
	}
	pos := 0
	for i := 0; i < r.ArgumentCount(); i++ {
		if pos == slot {
			return "arg" + strconv.Itoa(i)
		}
		pos += r.ArgumentAt(i).Size()
	}
	return ""
}

var (
	bold    = color.New(color.Bold).SprintFunc()
	italic  = color.New(color.Italic).SprintFunc()
	yellow  = color.New(color.FgYellow).SprintFunc()
	green   = color.New(color.FgGreen).SprintFunc()
	magenta = color.New(color.FgMagenta).SprintFunc()
	cyan    = color.New(color.FgHiCyan).SprintFunc()
)

// Print a string representation of the given instructions to the given writer.
func Print(instructions []Instruction, writer io.Writer) {
	var lines [][]string
	for _, instr := range instructions {
		var values []string
		values = append(values, strconv.Itoa(instr.Offset))
		if instr.Opcode == op.None {
			values = append(values, italic(instr.Name))
		} else {
			values = append(values, bold(instr.Name))
		}
		values = append(values, strings.Join(instr.Operands, ", "))
		if instr.Constant != nil {
			switch c := instr.Constant.(type) {
			case int32, int64:
				values = append(values, yellow(fmt.Sprintf("%d", c)))
			case float32, float64:
				values = append(values, yellow(fmt.Sprintf("%g", c)))
			case string:
				if len(c) > 80 {
					c = c[:77] + "..."
				}
				values = append(values, green(strconv.Quote(c)))
			case bytecode.Type:
				values = append(values, magenta("class:"+c.InternalName()))
			default:
				values = append(values, bold(fmt.Sprintf("%v", c)))
			}
		} else if instr.Annotation != "" {
			values = append(values, cyan(instr.Annotation))
		} else {
			values = append(values, "")
		}
		lines = append(lines, values)
	}

	table.NewTable(writer).
		WithHeader([]string{"OFFSET", "OPCODE", "OPERANDS", "INFO"}).
		WithColumnAlignment([]table.Alignment{
			table.AlignRight,
			table.AlignLeft,
			table.AlignRight,
			table.AlignLeft,
		}).
		WithHeaderAlignment([]table.Alignment{
			table.AlignCenter,
			table.AlignCenter,
			table.AlignCenter,
			table.AlignCenter,
		}).
		WithRows(lines).
		Render()
}

// Fprint disassembles the routine and prints it, preceded by its signature
// and limits.
func Fprint(w io.Writer, r *bytecode.Routine) error {
	instructions, err := Disassemble(r)
	if err != nil {
		return err
	}
	access := r.Access().String()
	if access != "" {
		access += " "
	}
	fmt.Fprintf(w, "%s%s (locals=%d, instructions=%d)\n", access, r, r.MaxLocals(), r.InstructionCount())
	Print(instructions, w)
	return nil
}
