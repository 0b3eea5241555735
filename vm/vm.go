package vm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cretz/msplit/bytecode"
)

const (
	// MaxFrameDepth is the default limit on nested invocations.
	MaxFrameDepth = 1024

	// DefaultContextCheckInterval is the number of instructions between
	// deterministic checks of ctx.Done(). Set to 0 to disable.
	DefaultContextCheckInterval = 1000
)

// VirtualMachine interprets routines directly from their instruction
// sequence. It exists to run routines before and after splitting and
// compare the results; it does not verify code and only models the parts
// of the Java runtime that routines in this module touch.
type VirtualMachine struct {
	routines map[string]*bytecode.Routine
	natives  map[string]Native
	supers   map[string]string
	statics  map[string]any

	running  bool
	runMutex sync.Mutex
	depth    int

	maxFrameDepth int

	// contextCheckInterval is the number of instructions between checks of
	// ctx.Done(). A value of 0 disables checking.
	contextCheckInterval int
	instructionCount     int

	// observer receives callbacks for execution events. If nil, no
	// callbacks are made.
	observer       Observer
	observerConfig ObserverConfig
	stepCount      int
}

// New creates a new Virtual Machine.
func New(options ...Option) *VirtualMachine {
	vm := &VirtualMachine{
		routines:             map[string]*bytecode.Routine{},
		natives:              builtinNatives(),
		supers:               map[string]string{},
		statics:              map[string]any{},
		maxFrameDepth:        MaxFrameDepth,
		contextCheckInterval: DefaultContextCheckInterval,
	}
	for class, super := range defaultSupers {
		vm.supers[class] = super
	}
	for _, opt := range options {
		opt(vm)
	}
	if vm.observer != nil {
		vm.observerConfig = NormalizeConfig(vm.observer.Config())
	}
	return vm
}

// Define makes routines available to Invoke and to invoke instructions.
// A routine replaces any earlier one with the same owner, name and
// descriptor.
func (vm *VirtualMachine) Define(routines ...*bytecode.Routine) {
	vm.runMutex.Lock()
	defer vm.runMutex.Unlock()
	for _, r := range routines {
		vm.routines[r.String()] = r
	}
}

// Static returns the value of a static field set by putstatic.
func (vm *VirtualMachine) Static(owner, name string) (any, bool) {
	v, ok := vm.statics[owner+"."+name]
	return v, ok
}

func (vm *VirtualMachine) start() error {
	vm.runMutex.Lock()
	defer vm.runMutex.Unlock()
	if vm.running {
		return fmt.Errorf("vm is already running")
	}
	vm.running = true
	vm.depth = 0
	vm.instructionCount = 0
	vm.stepCount = 0
	return nil
}

func (vm *VirtualMachine) stop() {
	vm.runMutex.Lock()
	defer vm.runMutex.Unlock()
	vm.running = false
}

// Invoke runs a defined routine or native method and returns its result,
// or nil for void methods. For instance methods the receiver is passed as
// the first argument. Go int, bool and float32 arguments are converted to
// the declared parameter types.
//
// An exception no handler catches is returned as an *Error wrapping
// ErrUncaught.
func (vm *VirtualMachine) Invoke(ctx context.Context, owner, name, desc string, args ...any) (result any, err error) {
	if err := vm.start(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		vm.stop()
	}()
	params, _, err := bytecode.ParseMethod(desc)
	if err != nil {
		return nil, err
	}
	receiver := 0
	if r, ok := vm.routines[methodKey(owner, name, desc)]; ok && !r.IsStatic() {
		receiver = 1
	} else if !ok && len(args) == len(params)+1 {
		receiver = 1
	}
	if len(args) != len(params)+receiver {
		return nil, fmt.Errorf("%s: expected %d arguments, got %d",
			methodKey(owner, name, desc), len(params)+receiver, len(args))
	}
	values := make([]any, len(args))
	copy(values, args)
	for i, t := range params {
		if values[i+receiver], err = coerce(t, args[i+receiver]); err != nil {
			return nil, err
		}
	}
	result, err = vm.invoke(ctx, owner, name, desc, values, false)
	var t *thrown
	if errors.As(err, &t) {
		return nil, &Error{
			Routine:   t.routine,
			Offset:    t.offset,
			Opcode:    t.opcode,
			Exception: t.exception,
			Err:       ErrUncaught,
		}
	}
	return result, err
}

// invoke resolves and calls a method. Virtual calls start the lookup at
// the class of the receiver.
func (vm *VirtualMachine) invoke(ctx context.Context, owner, name, desc string, args []any, virtual bool) (any, error) {
	start := owner
	if virtual && len(args) > 0 && args[0] != nil {
		start = classOf(args[0])
	}
	r, native := vm.resolve(start, name, desc)
	if r == nil && native == nil && start != owner {
		r, native = vm.resolve(owner, name, desc)
	}
	if r == nil && native == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, methodKey(owner, name, desc))
	}

	vm.depth++
	defer func() { vm.depth-- }()
	if vm.depth > vm.maxFrameDepth {
		return nil, ErrStackOverflow
	}
	key := methodKey(owner, name, desc)
	if r != nil {
		key = r.String()
	}
	if vm.observer != nil && vm.observerConfig.ObserveCalls {
		if !vm.observer.OnCall(CallEvent{
			Routine:    key,
			ArgCount:   len(args),
			Native:     native != nil,
			FrameDepth: vm.depth,
		}) {
			return nil, ErrHalted
		}
	}

	var result any
	var err error
	if native != nil {
		result, err = native(ctx, args)
	} else {
		result, err = vm.exec(ctx, newFrame(r, args))
	}
	if err != nil {
		return nil, err
	}
	if vm.observer != nil && vm.observerConfig.ObserveReturns {
		if !vm.observer.OnReturn(ReturnEvent{
			Routine:    key,
			Value:      result,
			FrameDepth: vm.depth - 1,
		}) {
			return nil, ErrHalted
		}
	}
	return result, nil
}

// resolve walks the superclass chain from class looking for a defined
// routine first and a native second.
func (vm *VirtualMachine) resolve(class, name, desc string) (*bytecode.Routine, Native) {
	for c := class; c != ""; c = vm.superOf(c) {
		if r, ok := vm.routines[methodKey(c, name, desc)]; ok {
			return r, nil
		}
		if fn, ok := vm.natives[methodKey(c, name, desc)]; ok {
			return nil, fn
		}
	}
	return nil, nil
}

func (vm *VirtualMachine) superOf(class string) string {
	if class == "java/lang/Object" {
		return ""
	}
	if s, ok := vm.supers[class]; ok {
		return s
	}
	return "java/lang/Object"
}

// isInstance reports whether class is target or one of its subclasses.
// Arrays are instances of java/lang/Object and of identical array types.
func (vm *VirtualMachine) isInstance(class, target string) bool {
	if target == "java/lang/Object" || class == target {
		return true
	}
	if len(class) > 0 && class[0] == '[' {
		return false
	}
	for c := vm.superOf(class); c != ""; c = vm.superOf(c) {
		if c == target {
			return true
		}
	}
	return false
}
