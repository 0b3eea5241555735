package main

import (
	"fmt"

	"github.com/cretz/msplit/bytecode"
	"github.com/cretz/msplit/split"
	"github.com/spf13/cobra"
)

func (a *app) splitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split [file]",
		Short: "Split an encoded routine in two",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			routines, err := a.loadRoutines(cmd, args)
			if err != nil {
				return err
			}
			idx, err := selectRoutine(routines, a.config.GetString("name"))
			if err != nil {
				return err
			}
			s, err := a.splitter(cmd)
			if err != nil {
				return err
			}
			res, err := a.splitWithBounds(s, routines[idx])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.config.GetString("out") != "-" {
				fmt.Fprintf(out, "%-10s %s\n", "split", res.SplitPoint)
				for _, part := range []struct {
					label string
					r     *bytecode.Routine
				}{{"trimmed", res.Trimmed}, {"extracted", res.Extracted}} {
					if _, err := describeRoutine(out, part.label, part.r); err != nil {
						return err
					}
				}
			}

			replaced := make([]*bytecode.Routine, 0, len(routines)+1)
			replaced = append(replaced, routines[:idx]...)
			replaced = append(replaced, res.Trimmed, res.Extracted)
			replaced = append(replaced, routines[idx+1:]...)
			return a.writeRoutines(cmd, replaced...)
		},
	}
	cmd.Flags().Bool("stdin", false, "Read the routines from stdin")
	cmd.Flags().String("name", "", "Routine to split (the first one when empty)")
	cmd.Flags().String("suffix", "", "Suffix of the extracted routine name")
	cmd.Flags().Int("min", 0, "Minimum number of instructions to extract")
	cmd.Flags().Int("max", 0, "Maximum number of instructions to extract")
	cmd.Flags().Int("first-at-least", -1, "Accept the first range at least this long (0 searches every start, -1 uses --max)")
	cmd.Flags().StringP("out", "o", "", `Write all routines, split ones included, to a file or "-" for stdout`)
	return cmd
}

// splitWithBounds uses the default bounds unless --min or --max is set.
func (a *app) splitWithBounds(s *split.Splitter, r *bytecode.Routine) (*split.Result, error) {
	minSize, maxSize := a.config.GetInt("min"), a.config.GetInt("max")
	if minSize == 0 && maxSize == 0 {
		return s.Split(r)
	}
	defMin, defMax, _ := split.DefaultBounds(r.InstructionCount())
	if minSize == 0 {
		minSize = defMin
	}
	if maxSize == 0 {
		maxSize = defMax
	}
	firstAtLeast := a.config.GetInt("first-at-least")
	if firstAtLeast < 0 {
		firstAtLeast = maxSize
	}
	return s.SplitBounded(r, minSize, maxSize, firstAtLeast)
}

// selectRoutine returns the index of the routine with the given name, or 0
// when name is empty.
func selectRoutine(routines []*bytecode.Routine, name string) (int, error) {
	if name == "" {
		return 0, nil
	}
	for i, r := range routines {
		if r.Name() == name || r.String() == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("routine %q not found", name)
}
