package lua

import "errors"

// Errors for script loading and execution.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutorClosed is returned when attempting to use a closed executor.
	ErrExecutorClosed = errors.New("lua executor is closed")

	// ErrQueueFull is returned when the executor queue cannot take another call.
	ErrQueueFull = errors.New("lua executor queue full")

	// ErrCompile is returned when a script does not parse.
	ErrCompile = errors.New("lua compile error")

	// ErrAlreadyLoaded is returned when a script ID is loaded twice.
	ErrAlreadyLoaded = errors.New("script is already loaded")

	// ErrLoaderClosed is returned when loading after Close.
	ErrLoaderClosed = errors.New("script loader is closed")
)
