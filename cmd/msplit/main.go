package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// app holds the configuration shared by all commands.
type app struct {
	config *viper.Viper
}

func newRootCmd() *cobra.Command {
	a := &app{config: viper.New()}
	a.config.SetEnvPrefix("MSPLIT")
	a.config.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.config.AutomaticEnv()

	root := &cobra.Command{
		Use:           "msplit",
		Short:         "Split JVM routines that are too large to assemble",
		Version:       version + " (" + commit + ", " + date + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.config.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			a.configureColor()
			return nil
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	flags.String("log-level", "warn", "Log level (trace, debug, info, warn, error)")
	flags.Bool("no-color", false, "Disable colored output")
	if err := a.config.BindPFlags(flags); err != nil {
		panic(err)
	}

	root.AddCommand(
		a.genCmd(),
		a.demoCmd(),
		a.splitCmd(),
		a.disCmd(),
		a.runCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root := newRootCmd()
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		printError(root.ErrOrStderr(), err)
		os.Exit(1)
	}
}
