package delegation

import (
	"github.com/rs/zerolog"
)

// ExecutorOption configures an Executor via the functional options pattern.
type ExecutorOption func(*executorOptions)

// executorOptions holds all configurable fields set via ExecutorOption
// functions.
type executorOptions struct {
	recorder TraceRecorder
	logger   zerolog.Logger
	maxDepth int
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (o *executorOptions) applyDefaults() {
	if o.maxDepth == 0 {
		o.maxDepth = DefaultMaxDepth
	}
}

// resolveOptions applies all option functions and fills defaults.
func resolveOptions(opts []ExecutorOption) executorOptions {
	o := executorOptions{logger: zerolog.Nop()}
	for _, fn := range opts {
		fn(&o)
	}
	o.applyDefaults()
	return o
}

// WithRecorder sets the trace recorder. Nil (the default) disables audit
// recording entirely.
func WithRecorder(r TraceRecorder) ExecutorOption {
	return func(o *executorOptions) { o.recorder = r }
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l zerolog.Logger) ExecutorOption {
	return func(o *executorOptions) { o.logger = l }
}

// WithMaxDepth sets the root delegation depth bound. Edges on a path can
// only tighten it, never widen it.
func WithMaxDepth(depth int) ExecutorOption {
	return func(o *executorOptions) { o.maxDepth = depth }
}
