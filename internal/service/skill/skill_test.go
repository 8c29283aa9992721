package skill

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zhouzirui/webskill/backend/internal/model/attributes"
	"github.com/zhouzirui/webskill/backend/internal/model/skill"
	"github.com/zhouzirui/webskill/backend/internal/observability"
)

type recordingSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *recordingSink) Emit(line string) {
	s.mu.Lock()
	s.lines = append(s.lines, line)
	s.mu.Unlock()
}

func (s *recordingSink) matching(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, l := range s.lines {
		if strings.HasPrefix(l, prefix) {
			out = append(out, l)
		}
	}
	return out
}

// slowStore acknowledges writes only after a delay and records whether the
// write finished.
type slowStore struct {
	*attributes.MemoryStore
	mu    sync.Mutex
	saved bool
	err   error
}

func (s *slowStore) SaveAttributes(ctx context.Context, userID string, attrs map[string]any) error {
	time.Sleep(20 * time.Millisecond)
	if s.err != nil {
		return s.err
	}
	if err := s.MemoryStore.SaveAttributes(ctx, userID, attrs); err != nil {
		return err
	}
	s.mu.Lock()
	s.saved = true
	s.mu.Unlock()
	return nil
}

func (s *slowStore) wasSaved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}

func decode(t *testing.T, raw string) *skill.Envelope {
	t.Helper()
	var env skill.Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return &env
}

func intentEnvelope(name string) string {
	return `{"version":"1.0","session":{"sessionId":"s-1","user":{"userId":"user-1"}},` +
		`"request":{"type":"IntentRequest","requestId":"r-1","intent":{"name":"` + name + `"}}}`
}

func TestLaunchStartsWebApp(t *testing.T) {
	r := NewRouter(Config{Origin: "https://d111.cloudfront.net"}, nil, nil)

	out, err := r.Dispatch(context.Background(), decode(t, `{"request":{"type":"LaunchRequest"}}`))
	if err != nil {
		t.Fatalf("Dispatch err: %v", err)
	}
	if len(out.Response.Directives) != 1 {
		t.Fatalf("expected one directive, got %+v", out.Response.Directives)
	}

	d := out.Response.Directives[0]
	if d.Type() != skill.DirectiveHTMLStart {
		t.Fatalf("unexpected directive type %s", d.Type())
	}
	request := d["request"].(map[string]any)
	if request["uri"] != "https://d111.cloudfront.net" || request["method"] != "GET" {
		t.Fatalf("unexpected start request %v", request)
	}
	configuration := d["configuration"].(map[string]any)
	if configuration["timeoutInSeconds"] != LaunchTimeout {
		t.Fatalf("unexpected configuration %v", configuration)
	}
}

func TestEchoRoundTripsPayload(t *testing.T) {
	raw := `{"request":{"type":"IntentRequest","requestId":"r-9","locale":"en-US",` +
		`"intent":{"name":"EchoIntent","slots":{"word":{"name":"word","value":"ping"}}},"extra":[1,"two",{"three":3}]}}`
	r := NewRouter(Config{}, nil, nil)

	out, err := r.Dispatch(context.Background(), decode(t, raw))
	if err != nil {
		t.Fatalf("Dispatch err: %v", err)
	}
	if len(out.Response.Directives) != 1 || out.Response.Directives[0].Type() != skill.DirectiveHTMLHandleMessage {
		t.Fatalf("unexpected directives %+v", out.Response.Directives)
	}

	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	var decoded struct {
		Response struct {
			Directives []struct {
				Message map[string]any `json:"message"`
			} `json:"directives"`
		} `json:"response"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}

	var want struct {
		Request map[string]any `json:"request"`
	}
	if err := json.Unmarshal([]byte(raw), &want); err != nil {
		t.Fatalf("unmarshal input: %v", err)
	}
	if !reflect.DeepEqual(decoded.Response.Directives[0].Message, want.Request) {
		t.Fatalf("echo mismatch:\n got %#v\nwant %#v", decoded.Response.Directives[0].Message, want.Request)
	}
}

func TestEchoKeepsLargeIntegers(t *testing.T) {
	raw := `{"request":{"type":"IntentRequest","intent":{"name":"EchoIntent"},"counter":9007199254740993}}`
	r := NewRouter(Config{}, nil, nil)

	out, err := r.Dispatch(context.Background(), decode(t, raw))
	if err != nil {
		t.Fatalf("Dispatch err: %v", err)
	}
	data, err := json.Marshal(out.Response.Directives[0])
	if err != nil {
		t.Fatalf("marshal directive: %v", err)
	}
	if !strings.Contains(string(data), `"counter":9007199254740993`) {
		t.Fatalf("echo lost precision: %s", data)
	}
}

func TestCancelPersistsBeforeResponding(t *testing.T) {
	for _, intent := range []string{skill.IntentCancel, skill.IntentStop} {
		t.Run(intent, func(t *testing.T) {
			store := &slowStore{MemoryStore: attributes.NewMemoryStore()}
			r := NewRouter(Config{}, store, nil)

			out, err := r.Dispatch(context.Background(), decode(t, intentEnvelope(intent)))
			if err != nil {
				t.Fatalf("Dispatch err: %v", err)
			}
			if !store.wasSaved() {
				t.Fatal("response returned before the save completed")
			}

			attrs, _ := store.GetAttributes(context.Background(), "user-1")
			if attrs["lastAccessedIntent"] != "Cancel or Stop Intent" {
				t.Fatalf("unexpected attributes %v", attrs)
			}
			if _, ok := attrs["lastAccessedDate"].(int64); !ok {
				t.Fatalf("expected unix millis, got %T", attrs["lastAccessedDate"])
			}

			resp := out.Response
			if resp.OutputSpeech == nil || resp.OutputSpeech.SSML != "<speak>Goodbye!</speak>" {
				t.Fatalf("unexpected speech %+v", resp.OutputSpeech)
			}
			if resp.Card == nil || resp.Card.Title != "Hello World" || resp.Card.Content != "Goodbye!" {
				t.Fatalf("unexpected card %+v", resp.Card)
			}
			if resp.ShouldEndSession == nil || !*resp.ShouldEndSession {
				t.Fatal("expected session to end")
			}
		})
	}
}

func TestCancelSaveFailureApologises(t *testing.T) {
	store := &slowStore{MemoryStore: attributes.NewMemoryStore(), err: errors.New("disk full")}
	sink := &recordingSink{}
	r := NewRouter(Config{}, store, sink)

	out, err := r.Dispatch(context.Background(), decode(t, intentEnvelope(skill.IntentStop)))
	if err != nil {
		t.Fatalf("Dispatch err: %v", err)
	}
	if out.Response.OutputSpeech == nil || !strings.Contains(out.Response.OutputSpeech.SSML, "Sorry") {
		t.Fatalf("expected apology, got %+v", out.Response.OutputSpeech)
	}
	if got := sink.matching("Error handled: "); len(got) != 1 || !strings.Contains(got[0], "disk full") {
		t.Fatalf("expected error line, got %v", got)
	}
}

func TestLogMessageEmitsEachEntry(t *testing.T) {
	raw := `{"request":{"type":"Alexa.Presentation.HTML.Message","message":{"messageType":"LogMessage",` +
		`"messageBody":{"messages":[{"timestamp":"2024-01-01T00:00:00.000Z","message":"a"},` +
		`{"timestamp":"2024-01-01T00:00:00.500Z","message":{"k":1}}]}}}}`
	sink := &recordingSink{}
	r := NewRouter(Config{}, nil, sink)

	out, err := r.Dispatch(context.Background(), decode(t, raw))
	if err != nil {
		t.Fatalf("Dispatch err: %v", err)
	}
	if !out.Response.IsEmpty() {
		t.Fatalf("expected empty response, got %+v", out.Response)
	}

	got := sink.matching("UI Logger: ")
	want := []string{
		`UI Logger: 2024-01-01T00:00:00.000Z: "a"`,
		`UI Logger: 2024-01-01T00:00:00.500Z: {"k":1}`,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected log lines %v", got)
	}
}

func TestOtherHTMLMessagesAreNotLogs(t *testing.T) {
	raw := `{"request":{"type":"Alexa.Presentation.HTML.Message","message":{"messageType":"Ping"}}}`
	sink := &recordingSink{}
	r := NewRouter(Config{}, nil, sink)

	out, err := r.Dispatch(context.Background(), decode(t, raw))
	if err != nil {
		t.Fatalf("Dispatch err: %v", err)
	}
	if out.Response.Reprompt == nil {
		t.Fatal("unmatched message should fall back to the apology")
	}
}

func TestSessionEndedEmitsReason(t *testing.T) {
	sink := &recordingSink{}
	r := NewRouter(Config{}, nil, sink)

	out, err := r.Dispatch(context.Background(), decode(t, `{"request":{"type":"SessionEndedRequest","reason":"USER_INITIATED"}}`))
	if err != nil {
		t.Fatalf("Dispatch err: %v", err)
	}
	if !out.Response.IsEmpty() {
		t.Fatalf("expected empty response, got %+v", out.Response)
	}
	if got := sink.matching("Session ended"); len(got) != 1 || got[0] != "Session ended with reason: USER_INITIATED" {
		t.Fatalf("unexpected lines %v", got)
	}
}

func TestUnknownIntentApologises(t *testing.T) {
	r := NewRouter(Config{}, nil, nil)

	out, err := r.Dispatch(context.Background(), decode(t, intentEnvelope("HelpIntent")))
	if err != nil {
		t.Fatalf("Dispatch err: %v", err)
	}
	want := "<speak>" + apologySpeech + "</speak>"
	if out.Response.OutputSpeech == nil || out.Response.OutputSpeech.SSML != want {
		t.Fatalf("unexpected speech %+v", out.Response.OutputSpeech)
	}
	if out.Response.Reprompt == nil || out.Response.Reprompt.OutputSpeech.SSML != want {
		t.Fatalf("unexpected reprompt %+v", out.Response.Reprompt)
	}
	if out.Response.ShouldEndSession == nil || *out.Response.ShouldEndSession {
		t.Fatal("apology must not end the session")
	}
}

func TestInterceptorsLogRequestAndResponse(t *testing.T) {
	sink := &recordingSink{}
	r := NewRouter(Config{}, nil, sink)

	if _, err := r.Dispatch(context.Background(), decode(t, `{"request":{"type":"SessionEndedRequest","reason":"ERROR"}}`)); err != nil {
		t.Fatalf("Dispatch err: %v", err)
	}

	requests := sink.matching("Request: ")
	if len(requests) != 1 || !strings.Contains(requests[0], `"reason":"ERROR"`) {
		t.Fatalf("unexpected request lines %v", requests)
	}
	if responses := sink.matching("Response: "); len(responses) != 1 || responses[0] != "Response: {}" {
		t.Fatalf("unexpected response lines %v", responses)
	}
}

var _ observability.Emitter = (*recordingSink)(nil)
