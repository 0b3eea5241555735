package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cretz/msplit/bytecode"
	"github.com/cretz/msplit/vm"
	"github.com/spf13/cobra"
)

func (a *app) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [file] [args...]",
		Short: "Invoke an encoded routine on the reference VM",
		RunE: func(cmd *cobra.Command, args []string) error {
			var input, rest []string
			if a.config.GetBool("stdin") {
				rest = args
			} else if len(args) > 0 {
				input, rest = args[:1], args[1:]
			}
			routines, err := a.loadRoutines(cmd, input)
			if err != nil {
				return err
			}
			idx, err := selectRoutine(routines, a.config.GetString("name"))
			if err != nil {
				return err
			}
			entry := routines[idx]
			if !entry.IsStatic() {
				return fmt.Errorf("%s is not static", entry)
			}
			callArgs, err := parseArgs(entry, rest)
			if err != nil {
				return err
			}

			opts := []vm.Option{vm.WithMaxFrameDepth(a.config.GetInt("max-depth"))}
			observer, err := a.tracer(cmd)
			if err != nil {
				return err
			}
			if observer != nil {
				opts = append(opts, vm.WithObserver(observer))
			}
			machine := vm.New(opts...)
			machine.Define(routines...)
			start := time.Now()
			result, err := machine.Invoke(commandContext(cmd), entry.Owner(), entry.Name(), entry.Descriptor(), callArgs...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if entry.ReturnType().Sort() != bytecode.SortVoid {
				fmt.Fprintln(out, formatValue(result))
			}
			if a.config.GetBool("timing") {
				fmt.Fprintln(cmd.ErrOrStderr(), faint(time.Since(start).String()))
			}
			return nil
		},
	}
	cmd.Flags().Bool("stdin", false, "Read the routines from stdin")
	cmd.Flags().String("name", "", "Routine to invoke (the first one when empty)")
	cmd.Flags().Int("max-depth", vm.MaxFrameDepth, "Maximum call depth")
	cmd.Flags().Bool("timing", false, "Show execution time")
	cmd.Flags().String("trace", "", "Log VM events to stderr (all, line, sampled or calls)")
	cmd.Flags().Lookup("trace").NoOptDefVal = "all"
	cmd.Flags().Int("trace-interval", 0, "Instructions between steps in sampled mode")
	return cmd
}

// parseArgs converts command line arguments to the routine's parameter
// types.
func parseArgs(r *bytecode.Routine, args []string) ([]any, error) {
	if len(args) != r.ArgumentCount() {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", r, r.ArgumentCount(), len(args))
	}
	values := make([]any, len(args))
	for i, s := range args {
		t := r.ArgumentAt(i)
		var err error
		switch t.Sort() {
		case bytecode.SortBoolean:
			var b bool
			b, err = strconv.ParseBool(s)
			values[i] = b
		case bytecode.SortByte, bytecode.SortChar, bytecode.SortShort, bytecode.SortInt:
			var n int64
			n, err = strconv.ParseInt(s, 0, 32)
			values[i] = int32(n)
		case bytecode.SortLong:
			values[i], err = strconv.ParseInt(s, 0, 64)
		case bytecode.SortFloat:
			var f float64
			f, err = strconv.ParseFloat(s, 32)
			values[i] = float32(f)
		case bytecode.SortDouble:
			values[i], err = strconv.ParseFloat(s, 64)
		default:
			if t != bytecode.StringType {
				return nil, fmt.Errorf("argument %d: cannot pass %s from the command line", i, t)
			}
			values[i] = s
		}
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
	}
	return values, nil
}
