package vm

// Option is a configuration function for a Virtual Machine.
type Option func(*VirtualMachine)

// WithContextCheckInterval sets how often the VM checks ctx.Done() during
// execution, in number of instructions. A value of 0 disables the check.
// The default is DefaultContextCheckInterval.
func WithContextCheckInterval(interval int) Option {
	return func(vm *VirtualMachine) {
		vm.contextCheckInterval = interval
	}
}

// WithObserver sets an observer for VM execution events.
//
// Observer methods are called synchronously during execution, so
// implementations should be fast. Returning false from any observer method
// halts execution immediately.
func WithObserver(observer Observer) Option {
	return func(vm *VirtualMachine) {
		vm.observer = observer
	}
}

// WithNatives registers Go implementations of methods, keyed by owner, name
// and descriptor as in "java/lang/Math.abs(I)I". They take precedence over
// the built-in natives but not over routines added with Define.
func WithNatives(natives map[string]Native) Option {
	return func(vm *VirtualMachine) {
		for key, fn := range natives {
			vm.natives[key] = fn
		}
	}
}

// WithSuperclass declares the superclass of a class for instanceof,
// checkcast and exception handler matching.
func WithSuperclass(class, super string) Option {
	return func(vm *VirtualMachine) {
		vm.supers[class] = super
	}
}

// WithMaxFrameDepth limits the depth of nested invocations.
func WithMaxFrameDepth(depth int) Option {
	return func(vm *VirtualMachine) {
		vm.maxFrameDepth = depth
	}
}
