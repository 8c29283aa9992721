package skill

import "encoding/json"

// Frame types written by the backend on the companion message channel.
const (
	FrameConnected = "connected"
	FrameMessage   = "message"
	FrameError     = "error"
)

// Frame wraps everything the backend writes to a connected page. Pages
// write bare HTML messages in the other direction.
type Frame struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}
