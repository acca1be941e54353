package engine

import "github.com/majorcontext/berm/internal/pipeline"

// Observer is the narrow surface the engine reports through. The engine
// does no terminal or log formatting of its own; the CLI supplies an
// implementation.
type Observer interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Progress(p pipeline.Progress)
}

// NopObserver discards everything. It is the default when no observer is
// configured and the zero-cost choice for tests.
type NopObserver struct{}

func (NopObserver) Info(string)                {}
func (NopObserver) Warn(string)                {}
func (NopObserver) Error(string)               {}
func (NopObserver) Progress(pipeline.Progress) {}
