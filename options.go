package core

import (
	"runtime"

	"github.com/joeycumines/logiface"
)

// libraryOptions holds configuration options for Library creation.
type libraryOptions struct {
	workerCount    int
	log            *logiface.Logger[logiface.Event]
	metricsEnabled bool
}

// LibraryOption configures a Library instance.
type LibraryOption interface {
	applyLibrary(*libraryOptions)
}

// libraryOptionImpl implements LibraryOption.
type libraryOptionImpl struct {
	applyLibraryFunc func(*libraryOptions)
}

func (l *libraryOptionImpl) applyLibrary(opts *libraryOptions) {
	l.applyLibraryFunc(opts)
}

// WithWorkerCount overrides the number of reactor goroutines the Library
// starts. The default is runtime.GOMAXPROCS(0).
func WithWorkerCount(n int) LibraryOption {
	return &libraryOptionImpl{func(opts *libraryOptions) {
		if n > 0 {
			opts.workerCount = n
		}
	}}
}

// WithLogger sets the structured logger components report failures through
// (session errors, transient accept failures). The default writes newline-delimited JSON
// to stderr via stumpy; pass nil to silence logging entirely.
func WithLogger(log *logiface.Logger[logiface.Event]) LibraryOption {
	return &libraryOptionImpl{func(opts *libraryOptions) {
		opts.log = log
	}}
}

// WithMetrics enables or disables the Library-wide Metrics counters
// (enabled by default). Recording is a handful of atomic ops per event, but
// callers that don't need it can disable it entirely.
func WithMetrics(enabled bool) LibraryOption {
	return &libraryOptionImpl{func(opts *libraryOptions) {
		opts.metricsEnabled = enabled
	}}
}

// resolveLibraryOptions applies LibraryOption instances to libraryOptions.
func resolveLibraryOptions(opts []LibraryOption) (*libraryOptions, error) {
	cfg := &libraryOptions{
		workerCount:    runtime.GOMAXPROCS(0),
		log:            defaultLogger(),
		metricsEnabled: true,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyLibrary(cfg)
	}
	return cfg, nil
}
