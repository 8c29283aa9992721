package relay

import (
	"errors"
	"testing"
)

func TestHolderLifecycle(t *testing.T) {
	h := NewHolder()
	if h.State() != Uninitialized {
		t.Fatalf("expected uninitialized, got %s", h.State())
	}
	if _, ok := h.Channel(); ok {
		t.Fatal("uninitialized holder has no channel")
	}

	if err := h.SetReady(nil); !errors.Is(err, ErrNoChannel) {
		t.Fatalf("expected ErrNoChannel, got %v", err)
	}

	ch := newFakeChannel()
	if err := h.SetReady(ch); err != nil {
		t.Fatalf("SetReady: %v", err)
	}
	if h.State() != Ready {
		t.Fatalf("expected ready, got %s", h.State())
	}
	if err := h.SetReady(newFakeChannel()); !errors.Is(err, ErrAlreadyReady) {
		t.Fatalf("expected ErrAlreadyReady, got %v", err)
	}
	if got, _ := h.Channel(); got != ch {
		t.Fatal("first channel must stay published")
	}
}

func TestRelayStartsAfterHolderReady(t *testing.T) {
	h := NewHolder()
	r := New(h)
	defer r.Stop()

	r.Log("before")
	if r.Pending() != 0 {
		t.Fatal("log before ready must be dropped")
	}

	if err := h.SetReady(newFakeChannel()); err != nil {
		t.Fatalf("SetReady: %v", err)
	}
	r.Log("after")
	if r.Pending() != 1 || !r.Running() {
		t.Fatal("log after ready should buffer and start the ticker")
	}
}
