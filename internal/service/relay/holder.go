package relay

import (
	"context"
	"errors"
	"sync"
)

// Channel is the outbound message primitive supplied by the host.
type Channel interface {
	SendMessage(ctx context.Context, msg any) error
}

// State is the lifecycle state of a Holder.
type State int

const (
	Uninitialized State = iota
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "uninitialized"
}

var (
	ErrNoChannel    = errors.New("relay channel is not ready")
	ErrAlreadyReady = errors.New("relay channel already set")
)

// Holder publishes the outbound channel once the host connection is
// established. It moves from Uninitialized to Ready exactly once.
type Holder struct {
	mu      sync.RWMutex
	channel Channel
}

// NewHolder returns an Uninitialized holder.
func NewHolder() *Holder {
	return &Holder{}
}

// ReadyHolder returns a holder that is already Ready with ch.
func ReadyHolder(ch Channel) *Holder {
	return &Holder{channel: ch}
}

// SetReady publishes ch.
func (h *Holder) SetReady(ch Channel) error {
	if ch == nil {
		return ErrNoChannel
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.channel != nil {
		return ErrAlreadyReady
	}
	h.channel = ch
	return nil
}

// Channel returns the channel and whether the holder is Ready.
func (h *Holder) Channel() (Channel, bool) {
	if h == nil {
		return nil, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channel, h.channel != nil
}

// State reports the current lifecycle state.
func (h *Holder) State() State {
	if _, ok := h.Channel(); ok {
		return Ready
	}
	return Uninitialized
}
