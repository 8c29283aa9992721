// Package companion is the page side of the message channel: it connects
// to the skill backend over a websocket, receives HandleMessage payloads
// and sends messages (log batches among them) back.
package companion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/webskill/backend/internal/model/skill"
)

const defaultWriteTimeout = 10 * time.Second

// ErrClosed is returned by SendMessage after Close.
var ErrClosed = errors.New("companion connection closed")

// Client is a connected companion page.
type Client struct {
	conn      *websocket.Conn
	sessionID string

	writeMu sync.Mutex

	mu        sync.RWMutex
	onMessage func(json.RawMessage)

	closed    chan struct{}
	closeOnce sync.Once
}

// Dial connects to serverURL (e.g. ws://localhost:8080/api/skill/ws) as
// sessionID. An empty sessionID gets a generated one.
func Dial(ctx context.Context, serverURL, sessionID string, header http.Header) (*Client, error) {
	if strings.TrimSpace(serverURL) == "" {
		return nil, errors.New("server url is required")
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	target := strings.TrimRight(serverURL, "/") + "/" + url.PathEscape(sessionID)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", target, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}

	return &Client{
		conn:      conn,
		sessionID: sessionID,
		closed:    make(chan struct{}),
	}, nil
}

// SessionID returns the session this client connected as.
func (c *Client) SessionID() string {
	return c.sessionID
}

// OnMessage registers the callback for messages the skill sends to the page.
func (c *Client) OnMessage(fn func(msg json.RawMessage)) {
	c.mu.Lock()
	c.onMessage = fn
	c.mu.Unlock()
}

// SendMessage writes msg as one JSON frame.
func (c *Client) SendMessage(ctx context.Context, msg any) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultWriteTimeout)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Run reads frames until the connection closes or ctx is done. A cancelled
// ctx only stops the reader; the connection stays open for writes until
// Close, so pending log batches can still be sent.
func (c *Client) Run(ctx context.Context) error {
	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			// unblocks ReadJSON; the read side is unusable afterwards
			_ = c.conn.SetReadDeadline(time.Now())
		case <-c.closed:
		case <-stopped:
		}
	}()

	for {
		var frame skill.Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			select {
			case <-c.closed:
				return nil
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}
		c.handleFrame(frame)
	}
}

func (c *Client) handleFrame(frame skill.Frame) {
	switch frame.Type {
	case skill.FrameMessage:
		c.mu.RLock()
		fn := c.onMessage
		c.mu.RUnlock()
		if fn != nil {
			fn(frame.Data)
		}
	case skill.FrameError:
		log.Printf("[companion] backend error: %s", frame.Data)
	case skill.FrameConnected:
		log.Printf("[companion] connected session=%s", c.sessionID)
	default:
		log.Printf("[companion] ignoring frame type %q", frame.Type)
	}
}

// Close sends a close frame and releases the connection.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}
