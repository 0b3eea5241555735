package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cretz/msplit/bytecode"
	"github.com/cretz/msplit/codec"
	"github.com/cretz/msplit/split"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// commandContext returns the context the command was executed with.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func (a *app) configureColor() {
	if a.config.GetBool("no-color") || !isTerminalIO() {
		color.NoColor = true
	}
}

func isTerminalIO() bool {
	stdout := os.Stdout.Fd()
	return isatty.IsTerminal(stdout) || isatty.IsCygwinTerminal(stdout)
}

// logger returns a console logger on w at the configured level.
func (a *app) logger(w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(a.config.GetString("log-level"))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level: %w", err)
	}
	out := zerolog.ConsoleWriter{Out: w, NoColor: color.NoColor}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

func (a *app) splitter(cmd *cobra.Command) (*split.Splitter, error) {
	logger, err := a.logger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	opts := []split.Option{split.WithLogger(logger)}
	if suffix := a.config.GetString("suffix"); suffix != "" {
		opts = append(opts, split.WithSuffix(suffix))
	}
	return split.New(opts...), nil
}

// readInput returns the encoded routines named by the command line. There
// are two possibilities:
// 1. --stdin (read from stdin)
// 2. path as args[0]
func (a *app) readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	stdinFlagSet := a.config.GetBool("stdin")
	pathSupplied := len(args) > 0
	if pathSupplied && stdinFlagSet {
		return nil, errors.New("multiple input sources specified")
	}
	if stdinFlagSet {
		return io.ReadAll(cmd.InOrStdin())
	}
	if pathSupplied {
		return os.ReadFile(args[0])
	}
	return nil, errors.New("no input specified")
}

// loadRoutines decodes either a single routine or a list of routines.
func (a *app) loadRoutines(cmd *cobra.Command, args []string) ([]*bytecode.Routine, error) {
	data, err := a.readInput(cmd, args)
	if err != nil {
		return nil, err
	}
	routines, listErr := codec.UnmarshalAll(data)
	if listErr == nil {
		if len(routines) == 0 {
			return nil, errors.New("input holds no routines")
		}
		return routines, nil
	}
	r, err := codec.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return []*bytecode.Routine{r}, nil
}

// writeRoutines encodes the routines into the --out file, or to stdout when
// it is "-".
func (a *app) writeRoutines(cmd *cobra.Command, routines ...*bytecode.Routine) error {
	path := a.config.GetString("out")
	if path == "" {
		return nil
	}
	data, err := codec.MarshalAll(routines...)
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
