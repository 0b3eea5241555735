package vm

import "github.com/cretz/msplit/op"

// StepMode controls when OnStep callbacks are triggered.
type StepMode uint8

const (
	// StepAll calls OnStep for every instruction.
	StepAll StepMode = iota

	// StepNone never calls OnStep.
	// Use for: profilers that only need Call/Return events.
	StepNone

	// StepSampled calls OnStep every N instructions.
	StepSampled

	// StepOnLine calls OnStep on the first instruction after a line number
	// marker.
	StepOnLine
)

// ObserverConfig specifies what events an observer wants to receive.
// Use NewObserverConfig() to create configs with safe defaults.
type ObserverConfig struct {
	// StepMode controls OnStep callback frequency.
	StepMode StepMode

	// SampleInterval is the number of instructions between OnStep calls
	// when StepMode is StepSampled. Values <= 0 are treated as 1.
	SampleInterval int

	// ObserveCalls enables OnCall callbacks.
	ObserveCalls bool

	// ObserveReturns enables OnReturn callbacks.
	ObserveReturns bool
}

// NewObserverConfig creates a config with safe defaults.
// ObserveCalls and ObserveReturns default to true.
func NewObserverConfig(mode StepMode) ObserverConfig {
	return ObserverConfig{
		StepMode:       mode,
		SampleInterval: 1000,
		ObserveCalls:   true,
		ObserveReturns: true,
	}
}

// NormalizeConfig validates and clamps config values.
func NormalizeConfig(cfg ObserverConfig) ObserverConfig {
	if cfg.StepMode == StepSampled && cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 1
	}
	return cfg
}

// Observer receives execution events from the VM. Implementations can embed
// NoOpObserver and override only what they need.
//
// Observer methods are called synchronously during execution.
// Returning false from any method halts execution.
type Observer interface {
	// Config returns the observer's configuration.
	// Called once when the observer is attached to the VM.
	Config() ObserverConfig

	// OnStep is called based on the StepMode in the observer's config.
	OnStep(event StepEvent) bool

	// OnCall is called when a routine is entered (if ObserveCalls is true).
	OnCall(event CallEvent) bool

	// OnReturn is called when a routine returns (if ObserveReturns is true).
	OnReturn(event ReturnEvent) bool
}

// StepEvent contains information about a single instruction step.
type StepEvent struct {
	// Routine is "owner.name" plus descriptor of the executing routine.
	Routine string

	// IP is the instruction offset in the routine.
	IP int

	// Opcode is the operation being executed.
	Opcode op.Code

	// OpcodeName is the mnemonic of the opcode.
	OpcodeName string

	// Line is the most recent line number marker, or 0.
	Line int

	// StackDepth is the current number of operand stack cells.
	StackDepth int

	// FrameDepth is the current depth of the call stack.
	FrameDepth int
}

// CallEvent contains information about a routine invocation.
type CallEvent struct {
	// Routine is "owner.name" plus descriptor of the callee.
	Routine string

	// ArgCount is the number of arguments passed, including a receiver.
	ArgCount int

	// Native is true when the callee is a Go function.
	Native bool

	// FrameDepth is the call stack depth after the call.
	FrameDepth int
}

// ReturnEvent contains information about a routine return.
type ReturnEvent struct {
	// Routine is "owner.name" plus descriptor of the returning routine.
	Routine string

	// Value is the returned value, nil for void routines.
	Value any

	// FrameDepth is the call stack depth after returning.
	FrameDepth int
}

// NoOpObserver is an Observer implementation that does nothing.
// It uses StepAll mode with ObserveCalls and ObserveReturns enabled.
type NoOpObserver struct{}

func (NoOpObserver) Config() ObserverConfig {
	return NewObserverConfig(StepAll)
}

func (NoOpObserver) OnStep(StepEvent) bool     { return true }
func (NoOpObserver) OnCall(CallEvent) bool     { return true }
func (NoOpObserver) OnReturn(ReturnEvent) bool { return true }

var _ Observer = NoOpObserver{}
