package main

import (
	"fmt"

	"github.com/cretz/msplit/vm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// traceObserver writes VM events to a logger at debug level.
type traceObserver struct {
	logger zerolog.Logger
	config vm.ObserverConfig
}

func (o *traceObserver) Config() vm.ObserverConfig {
	return o.config
}

func (o *traceObserver) OnStep(e vm.StepEvent) bool {
	ev := o.logger.Debug().
		Str("routine", e.Routine).
		Int("ip", e.IP).
		Str("op", e.OpcodeName).
		Int("stack", e.StackDepth).
		Int("depth", e.FrameDepth)
	if e.Line > 0 {
		ev = ev.Int("line", e.Line)
	}
	ev.Msg("step")
	return true
}

func (o *traceObserver) OnCall(e vm.CallEvent) bool {
	o.logger.Debug().
		Str("routine", e.Routine).
		Int("args", e.ArgCount).
		Bool("native", e.Native).
		Int("depth", e.FrameDepth).
		Msg("call")
	return true
}

func (o *traceObserver) OnReturn(e vm.ReturnEvent) bool {
	o.logger.Debug().
		Str("routine", e.Routine).
		Str("value", formatValue(e.Value)).
		Int("depth", e.FrameDepth).
		Msg("return")
	return true
}

var _ vm.Observer = (*traceObserver)(nil)

// parseTraceMode maps a --trace value to the VM step mode. "calls" traces
// only calls and returns.
func parseTraceMode(mode string) (vm.StepMode, error) {
	switch mode {
	case "all":
		return vm.StepAll, nil
	case "line":
		return vm.StepOnLine, nil
	case "sampled":
		return vm.StepSampled, nil
	case "calls":
		return vm.StepNone, nil
	}
	return 0, fmt.Errorf("unknown trace mode %q", mode)
}

// tracer returns the observer configured by --trace, or nil when tracing
// is off. Events go to stderr whatever the log level.
func (a *app) tracer(cmd *cobra.Command) (vm.Observer, error) {
	mode := a.config.GetString("trace")
	if mode == "" {
		return nil, nil
	}
	stepMode, err := parseTraceMode(mode)
	if err != nil {
		return nil, err
	}
	logger, err := a.logger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	cfg := vm.NewObserverConfig(stepMode)
	if interval := a.config.GetInt("trace-interval"); interval > 0 {
		cfg.SampleInterval = interval
	}
	return &traceObserver{logger: logger.Level(zerolog.DebugLevel), config: cfg}, nil
}
