package skill

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/webskill/backend/internal/companion"
	skillmodel "github.com/zhouzirui/webskill/backend/internal/model/skill"
	sessionservice "github.com/zhouzirui/webskill/backend/internal/service/session"
)

func startServer(t *testing.T, d Dispatcher, sessions *sessionservice.Service) string {
	t.Helper()
	r := chi.NewRouter()
	New(d, sessions).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/skill/ws"
}

func TestMessageEnvelopeWrapsPagePayload(t *testing.T) {
	c := &connection{sessionID: "page-1", userID: "user-1"}
	env := messageEnvelope(c, []byte(`{"messageType":"LogMessage"}`))

	if env.Request.Type != skillmodel.RequestTypeMessage {
		t.Fatalf("unexpected type %s", env.Request.Type)
	}
	if env.UserID() != "user-1" || env.Session.SessionID != "page-1" {
		t.Fatalf("unexpected identity %+v", env.Session)
	}
	msg, err := env.Request.HTMLMessage()
	if err != nil || msg.MessageType != skillmodel.MessageTypeLog {
		t.Fatalf("unexpected message %+v err=%v", msg, err)
	}
	if !strings.HasPrefix(env.Request.RequestID, "webskill.request.") {
		t.Fatalf("unexpected request id %s", env.Request.RequestID)
	}
}

func TestWebSocketRelaysHandleMessageDirectives(t *testing.T) {
	d := &fakeDispatcher{resp: skillmodel.Wrap(skillmodel.NewResponseBuilder().
		AddDirective(skillmodel.Directive{"type": skillmodel.DirectiveHTMLStart}).
		AddDirective(skillmodel.Directive{
			"type":    skillmodel.DirectiveHTMLHandleMessage,
			"message": map[string]any{"echo": "pong"},
		}).
		GetResponse())}
	sessions := sessionservice.NewService()
	url := startServer(t, d, sessions)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := companion.Dial(ctx, url, "page-1", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	received := make(chan json.RawMessage, 1)
	client.OnMessage(func(msg json.RawMessage) { received <- msg })
	go client.Run(ctx)

	if err := client.SendMessage(ctx, map[string]any{"messageType": "Ping"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case msg := <-received:
		if string(msg) != `{"echo":"pong"}` {
			t.Fatalf("unexpected message %s", msg)
		}
	case <-ctx.Done():
		t.Fatal("no message relayed back")
	}

	if last := d.last(); last == nil || last.Request.Type != skillmodel.RequestTypeMessage {
		t.Fatalf("dispatcher got %+v", last)
	}
	got, err := sessions.Get(ctx, "page-1")
	if err != nil {
		t.Fatalf("session not tracked: %v", err)
	}
	if got.Messages != 1 {
		t.Fatalf("expected one message, got %d", got.Messages)
	}
}

func TestWebSocketRejectsDuplicateSession(t *testing.T) {
	sessions := sessionservice.NewService()
	if _, err := sessions.Open(context.Background(), "taken", ""); err != nil {
		t.Fatalf("Open err: %v", err)
	}
	url := startServer(t, &fakeDispatcher{}, sessions)

	if _, err := companion.Dial(context.Background(), url, "taken", nil); err == nil {
		t.Fatal("expected dial to fail for a connected session")
	}
}
