package relay

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
)

// Sink accepts log text.
type Sink interface {
	Log(text string)
}

// Fanout delivers each line to every sink. A sink that panics does not stop
// delivery to the sinks after it.
type Fanout struct {
	sinks []Sink
}

// NewFanout combines sinks; nil sinks are skipped.
func NewFanout(sinks ...Sink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

func (f *Fanout) Log(text string) {
	for _, s := range f.sinks {
		deliver(s, text)
	}
}

func deliver(s Sink, text string) {
	defer func() {
		if v := recover(); v != nil {
			log.Printf("[relay] sink %T failed: %v", s, v)
		}
	}()
	s.Log(text)
}

// ScreenSink appends each line, JSON quoted, to a debug writer. A nil
// writer drops everything.
type ScreenSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewScreenSink writes to w.
func NewScreenSink(w io.Writer) *ScreenSink {
	return &ScreenSink{w: w}
}

func (s *ScreenSink) Log(text string) {
	if s == nil || s.w == nil {
		return
	}
	quoted, err := json.Marshal(text)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "\n%s", quoted); err != nil {
		log.Printf("[relay] screen write failed: %v", err)
	}
}
