package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"
)

const (
	// DefaultInterval is the flush period.
	DefaultInterval = time.Second

	// MessageTypeLog is the messageType of a batched log message.
	MessageTypeLog = "LogMessage"

	defaultSendTimeout = 5 * time.Second

	// TimestampLayout is ISO 8601 in UTC with millisecond precision.
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Entry is one buffered log line.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// MarshalJSON writes the timestamp with millisecond precision.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Timestamp string `json:"timestamp"`
		Message   string `json:"message"`
	}{
		Timestamp: e.Timestamp.UTC().Format(TimestampLayout),
		Message:   e.Message,
	})
}

// Message is the outbound envelope the page sends to the skill.
type Message struct {
	MessageType string `json:"messageType"`
	MessageBody Batch  `json:"messageBody"`
}

// Batch is the body of a log message.
type Batch struct {
	Messages []Entry `json:"messages"`
}

// Relay buffers log lines and ships them as one message per tick.
//
// The ticker starts on the first entry logged while the channel is ready
// and keeps running, idle ticks included, until Stop or Close.
type Relay struct {
	holder   *Holder
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	onError  func(error)

	mu      sync.Mutex
	entries []Entry
	stop    chan struct{}
	done    chan struct{}
	closed  bool

	// flushMu keeps batches in order when a tick and Close overlap.
	flushMu sync.Mutex
}

// Option configures a Relay.
type Option func(*Relay)

// WithInterval overrides the flush period.
func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) { r.now = now }
}

// WithErrorHandler receives delivery failures. They are never returned from Log.
func WithErrorHandler(fn func(error)) Option {
	return func(r *Relay) { r.onError = fn }
}

// WithSendTimeout bounds each SendMessage call made by the ticker.
func WithSendTimeout(d time.Duration) Option {
	return func(r *Relay) { r.timeout = d }
}

// New creates a relay that sends through the channel published on holder.
func New(holder *Holder, opts ...Option) *Relay {
	r := &Relay{
		holder:   holder,
		interval: DefaultInterval,
		timeout:  defaultSendTimeout,
		now:      time.Now,
		onError: func(err error) {
			log.Printf("[relay] delivery failed: %v", err)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Log buffers text. It is a no-op until the holder is ready and after Close.
func (r *Relay) Log(text string) {
	if _, ok := r.holder.Channel(); !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.entries = append(r.entries, Entry{Timestamp: r.now().UTC(), Message: text})
	if r.stop == nil {
		r.startLocked()
	}
}

// Pending returns the number of buffered entries.
func (r *Relay) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Running reports whether the ticker is active.
func (r *Relay) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stop != nil
}

func (r *Relay) startLocked() {
	stop := make(chan struct{})
	done := make(chan struct{})
	r.stop, r.done = stop, done
	go r.run(stop, done)
}

func (r *Relay) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

func (r *Relay) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.Flush(ctx); err != nil {
		r.onError(err)
	}
}

// Flush sends the buffered entries as one message and empties the buffer.
// An empty buffer sends nothing. Entries logged while the send is in flight
// stay buffered for the next flush. A failed batch is dropped.
func (r *Relay) Flush(ctx context.Context) (err error) {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	r.mu.Lock()
	batch := r.entries
	r.entries = nil
	r.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	ch, ok := r.holder.Channel()
	if !ok {
		return ErrNoChannel
	}

	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("send log batch: panic: %v", v)
		}
	}()
	msg := Message{MessageType: MessageTypeLog, MessageBody: Batch{Messages: batch}}
	if err := ch.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("send log batch of %d: %w", len(batch), err)
	}
	return nil
}

// Stop cancels the ticker and keeps buffered entries. A later Log starts a
// new ticker. Stop is idempotent.
func (r *Relay) Stop() {
	r.mu.Lock()
	stop, done := r.stop, r.done
	r.stop, r.done = nil, nil
	r.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Close stops the ticker, flushes what is buffered and disables the relay.
func (r *Relay) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.Stop()
	return r.Flush(ctx)
}
