package skill

import (
	"encoding/json"
	"reflect"
	"testing"
)

const intentEnvelope = `{
	"version": "1.0",
	"session": {"new": false, "sessionId": "s-1", "user": {"userId": "session-user"}},
	"context": {"System": {"user": {"userId": "system-user"}, "application": {"applicationId": "app"}}},
	"request": {
		"type": "IntentRequest",
		"requestId": "r-1",
		"locale": "en-US",
		"intent": {"name": "EchoIntent", "slots": {"phrase": {"name": "phrase", "value": "hi"}}},
		"vendorField": {"nested": [1, 2, 3]}
	}
}`

func TestEnvelopeDecodesDiscriminants(t *testing.T) {
	var env Envelope
	if err := json.Unmarshal([]byte(intentEnvelope), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if env.Request.Type != RequestTypeIntent {
		t.Fatalf("unexpected type %s", env.Request.Type)
	}
	if env.IntentName() != IntentEcho {
		t.Fatalf("unexpected intent %s", env.IntentName())
	}
	if env.UserID() != "system-user" {
		t.Fatalf("expected system user to win, got %s", env.UserID())
	}
}

func TestUserIDFallsBackToSession(t *testing.T) {
	env := &Envelope{Session: &Session{User: User{UserID: "session-user"}}}
	if env.UserID() != "session-user" {
		t.Fatalf("unexpected user %s", env.UserID())
	}
	var nilEnv *Envelope
	if nilEnv.UserID() != "" || nilEnv.IntentName() != "" {
		t.Fatal("nil envelope should have no identity")
	}
}

func TestPayloadKeepsUnknownFields(t *testing.T) {
	var env Envelope
	if err := json.Unmarshal([]byte(intentEnvelope), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	raw, err := env.Request.Payload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}

	var want struct {
		Request map[string]any `json:"request"`
	}
	if err := json.Unmarshal([]byte(intentEnvelope), &want); err != nil {
		t.Fatalf("unmarshal want: %v", err)
	}
	if !reflect.DeepEqual(payload, want.Request) {
		t.Fatalf("payload mismatch:\n got %#v\nwant %#v", payload, want.Request)
	}
}

func TestPayloadOfConstructedRequest(t *testing.T) {
	req := Request{Type: RequestTypeSessionEnded, Reason: "USER_INITIATED"}
	raw, err := req.Payload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["type"] != RequestTypeSessionEnded || payload["reason"] != "USER_INITIATED" {
		t.Fatalf("unexpected payload %#v", payload)
	}
}

func TestPayloadKeepsLargeIntegersExact(t *testing.T) {
	raw := `{"type":"IntentRequest","intent":{"name":"EchoIntent"},"counter":9007199254740993}`
	var req Request
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	payload, err := req.Payload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if string(payload) != raw {
		t.Fatalf("payload changed:\n got %s\nwant %s", payload, raw)
	}
}

func TestHTMLMessageDecodesLogBatch(t *testing.T) {
	raw := `{"type":"Alexa.Presentation.HTML.Message","message":{"messageType":"LogMessage","messageBody":{"messages":[{"timestamp":"2024-01-01T00:00:00Z","message":"hello"}]}}}`
	var req Request
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	msg, err := req.HTMLMessage()
	if err != nil {
		t.Fatalf("html message: %v", err)
	}
	if msg.MessageType != MessageTypeLog {
		t.Fatalf("unexpected message type %s", msg.MessageType)
	}

	var batch LogBatch
	if err := json.Unmarshal(msg.MessageBody, &batch); err != nil {
		t.Fatalf("decode batch: %v", err)
	}
	if len(batch.Messages) != 1 || string(batch.Messages[0].Message) != `"hello"` {
		t.Fatalf("unexpected batch %+v", batch)
	}
}

func TestHTMLMessageMissing(t *testing.T) {
	req := Request{Type: RequestTypeMessage}
	if _, err := req.HTMLMessage(); err == nil {
		t.Fatal("expected error for missing message")
	}
}
