package main

import (
	"fmt"

	"github.com/cretz/msplit/dis"
	"github.com/spf13/cobra"
)

func (a *app) disCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dis [file]",
		Short: "List the instructions of encoded routines",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			routines, err := a.loadRoutines(cmd, args)
			if err != nil {
				return err
			}
			name := a.config.GetString("name")
			out := cmd.OutOrStdout()
			printed := 0
			for _, r := range routines {
				if name != "" && r.Name() != name && r.String() != name {
					continue
				}
				if printed > 0 {
					fmt.Fprintln(out)
				}
				if err := dis.Fprint(out, r); err != nil {
					return err
				}
				printed++
			}
			if printed == 0 {
				return fmt.Errorf("routine %q not found", name)
			}
			return nil
		},
	}
	cmd.Flags().Bool("stdin", false, "Read the routines from stdin")
	cmd.Flags().String("name", "", "Only list the routine with this name")
	return cmd
}
