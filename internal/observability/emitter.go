package observability

import (
	"log/slog"
)

// Emitter is the observability sink handlers write free-form lines to.
type Emitter interface {
	Emit(line string)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(line string)

// Emit calls f(line).
func (f EmitterFunc) Emit(line string) { f(line) }

// SlogEmitter writes each line as an info record.
type SlogEmitter struct {
	logger *slog.Logger
}

// NewSlogEmitter returns an emitter backed by l. A nil l follows the
// process logger, including later SetLogger calls.
func NewSlogEmitter(l *slog.Logger) *SlogEmitter {
	return &SlogEmitter{logger: l}
}

func (e *SlogEmitter) Emit(line string) {
	l := e.logger
	if l == nil {
		l = Logger()
	}
	l.Info(line, "source", "skill")
}

// Tee emits every line to all non-nil emitters in order.
func Tee(emitters ...Emitter) Emitter {
	var targets []Emitter
	for _, e := range emitters {
		if e != nil {
			targets = append(targets, e)
		}
	}
	return EmitterFunc(func(line string) {
		for _, e := range targets {
			e.Emit(line)
		}
	})
}

// Discard drops every line.
var Discard Emitter = EmitterFunc(func(string) {})
