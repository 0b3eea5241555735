package split

import (
	"context"
	"strings"
	"testing"

	"github.com/cretz/msplit/bytecode"
	"github.com/cretz/msplit/op"
	"github.com/cretz/msplit/vm"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/require"
)

// tempOwner returns a class name no other test uses.
func tempOwner() string {
	return "temp" + strings.ReplaceAll(uuid.Must(uuid.NewV4()).String(), "-", "")
}

func newStatic(owner, name, desc string) *bytecode.Builder {
	return bytecode.NewBuilder(owner, bytecode.AccPublic|bytecode.AccStatic, name, desc)
}

// sumRoutine returns a routine adding 0..n-1 into local 0 with one
// unrolled group of four instructions per term.
func sumRoutine(owner string, n int) *bytecode.Routine {
	b := newStatic(owner, "testMethod", "()I")
	b.Int(0).Store(bytecode.IntType, 0)
	for i := 0; i < n; i++ {
		b.Load(bytecode.IntType, 0).Int(int32(i)).Op(op.Iadd).Store(bytecode.IntType, 0)
	}
	return b.Load(bytecode.IntType, 0).Return(bytecode.IntType).MustRoutine()
}

// run invokes entry on a VM holding the given routines.
func run(t *testing.T, entry *bytecode.Routine, routines []*bytecode.Routine, args ...any) (any, error) {
	t.Helper()
	machine := vm.New()
	machine.Define(routines...)
	return machine.Invoke(context.Background(), entry.Owner(), entry.Name(), entry.Descriptor(), args...)
}

// requireEquivalent checks that the split routines compute what the
// original computes for every argument list, including thrown exceptions.
func requireEquivalent(t *testing.T, original *bytecode.Routine, res *Result, argLists ...[]any) {
	t.Helper()
	for _, args := range argLists {
		want, wantErr := run(t, original, []*bytecode.Routine{original}, args...)
		got, gotErr := run(t, res.Trimmed, []*bytecode.Routine{res.Trimmed, res.Extracted}, args...)
		if wantErr != nil {
			require.Error(t, gotErr, "split %s with args %v", res.SplitPoint, args)
			continue
		}
		require.NoError(t, gotErr, "split %s with args %v", res.SplitPoint, args)
		require.Equal(t, want, got, "split %s with args %v", res.SplitPoint, args)
	}
}

// opcodes lists the opcodes of a routine, skipping pseudo-instructions.
func opcodes(r *bytecode.Routine) []op.Code {
	var codes []op.Code
	for i := 0; i < r.InstructionCount(); i++ {
		if insn := r.InstructionAt(i); !bytecode.IsPseudo(insn) {
			codes = append(codes, insn.Opcode())
		}
	}
	return codes
}
