package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cretz/msplit/asm"
	"github.com/cretz/msplit/bytecode"
	"github.com/cretz/msplit/op"
	"github.com/cretz/msplit/vm"
	"github.com/gofrs/uuid"
	"github.com/spf13/cobra"
)

// sumRoutine builds a static ()I routine adding 0..terms-1 into local 0,
// one unrolled group of instructions per term.
func sumRoutine(owner string, terms int) *bytecode.Routine {
	b := bytecode.NewBuilder(owner, bytecode.AccPublic|bytecode.AccStatic, "sum", "()I")
	b.Int(0).Store(bytecode.IntType, 0)
	for i := 0; i < terms; i++ {
		b.Load(bytecode.IntType, 0).Int(int32(i)).Op(op.Iadd).Store(bytecode.IntType, 0)
	}
	return b.Load(bytecode.IntType, 0).Return(bytecode.IntType).MustRoutine()
}

func demoOwner(owner string) string {
	if owner != "" {
		return owner
	}
	return "Demo" + strings.ReplaceAll(uuid.Must(uuid.NewV4()).String(), "-", "")
}

func (a *app) genCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate an unrolled summing routine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := sumRoutine(demoOwner(a.config.GetString("owner")), a.config.GetInt("terms"))
			if a.config.GetString("out") == "" {
				return errors.New("--out is required")
			}
			return a.writeRoutines(cmd, r)
		},
	}
	cmd.Flags().Int("terms", 13000, "Number of unrolled additions")
	cmd.Flags().String("owner", "", "Owner class of the routine (random when empty)")
	cmd.Flags().StringP("out", "o", "", `Output file, or "-" for stdout`)
	return cmd
}

func (a *app) demoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Split a generated routine that is too large and check the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			original := sumRoutine(demoOwner(a.config.GetString("owner")), a.config.GetInt("terms"))
			if _, err := describeRoutine(out, "original", original); err != nil && !errors.Is(err, asm.ErrMethodTooLarge) {
				return err
			}

			s, err := a.splitter(cmd)
			if err != nil {
				return err
			}
			res, err := s.Split(original)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%-10s %s\n", "split", res.SplitPoint)
			if _, err := describeRoutine(out, "trimmed", res.Trimmed); err != nil {
				return err
			}
			if _, err := describeRoutine(out, "extracted", res.Extracted); err != nil {
				return err
			}

			ctx := commandContext(cmd)
			want, err := invokeStatic(ctx, original, []*bytecode.Routine{original})
			if err != nil {
				return err
			}
			got, err := invokeStatic(ctx, res.Trimmed, []*bytecode.Routine{res.Trimmed, res.Extracted})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%-10s original=%s split=%s\n", "result", formatValue(want), formatValue(got))
			if formatValue(want) != formatValue(got) {
				return fmt.Errorf("split routine returned %s, want %s", formatValue(got), formatValue(want))
			}
			return a.writeRoutines(cmd, res.Trimmed, res.Extracted)
		},
	}
	cmd.Flags().Int("terms", 13000, "Number of unrolled additions")
	cmd.Flags().String("owner", "", "Owner class of the routine (random when empty)")
	cmd.Flags().String("suffix", "", "Suffix of the extracted routine name")
	cmd.Flags().StringP("out", "o", "", `Write the split routines to a file, or "-" for stdout`)
	return cmd
}

func invokeStatic(ctx context.Context, entry *bytecode.Routine, routines []*bytecode.Routine, args ...any) (any, error) {
	machine := vm.New()
	machine.Define(routines...)
	return machine.Invoke(ctx, entry.Owner(), entry.Name(), entry.Descriptor(), args...)
}
