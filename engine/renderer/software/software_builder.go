package software

import "log/slog"

// BackendBuilderOption is a functional option applied to a Backend during construction via New.
type BackendBuilderOption func(*Backend)

// WithWorkers sets the number of goroutines that shade row bands of a draw in parallel.
// Defaults to runtime.NumCPU().
//
// Parameters:
//   - n: the worker count, at least 1
//
// Returns:
//   - BackendBuilderOption: a function that sets the worker count
func WithWorkers(n int) BackendBuilderOption {
	return func(b *Backend) {
		b.workers = n
	}
}

// WithKernel registers a kernel for programs with the given key, replacing any built-in one.
//
// Parameters:
//   - key: the program key
//   - factory: the kernel factory
//
// Returns:
//   - BackendBuilderOption: a function that registers the kernel
func WithKernel(key string, factory KernelFactory) BackendBuilderOption {
	return func(b *Backend) {
		b.kernels[key] = factory
	}
}

// WithTextureBudget caps the number of live textures; allocations beyond it fail with ErrOutOfMemory.
// Zero means unlimited.
//
// Parameters:
//   - n: the maximum number of live textures
//
// Returns:
//   - BackendBuilderOption: a function that sets the budget
func WithTextureBudget(n int) BackendBuilderOption {
	return func(b *Backend) {
		b.textureBudget = n
	}
}

// WithLogger sets the logger used for device diagnostics.
//
// Parameters:
//   - l: the logger; nil keeps the discarding default
//
// Returns:
//   - BackendBuilderOption: a function that sets the logger
func WithLogger(l *slog.Logger) BackendBuilderOption {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}
