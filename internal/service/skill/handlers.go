package skill

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zhouzirui/webskill/backend/internal/model/skill"
	"github.com/zhouzirui/webskill/backend/internal/observability"
	"github.com/zhouzirui/webskill/backend/internal/service/dispatch"
)

const (
	// LaunchTimeout is the inactivity timeout of the started web app session.
	LaunchTimeout = 300

	farewellSpeech = "Goodbye!"
	farewellTitle  = "Hello World"
	apologySpeech  = "Sorry, I can't understand the command. Please say again."

	cancelIntentMarker = "Cancel or Stop Intent"
)

// LaunchHandler starts the companion web app at Origin.
type LaunchHandler struct {
	Origin string
}

func (h LaunchHandler) CanHandle(in *dispatch.Input) bool {
	return in.Envelope.Request.Type == skill.RequestTypeLaunch
}

func (h LaunchHandler) Handle(_ context.Context, in *dispatch.Input) (*skill.Response, error) {
	return in.ResponseBuilder.
		AddDirective(skill.Directive{
			"type": skill.DirectiveHTMLStart,
			"request": map[string]any{
				"uri":    h.Origin,
				"method": "GET",
			},
			"configuration": map[string]any{
				"timeoutInSeconds": LaunchTimeout,
			},
		}).
		GetResponse(), nil
}

// EchoHandler sends the whole inbound request back to the web app.
type EchoHandler struct{}

func (EchoHandler) CanHandle(in *dispatch.Input) bool {
	return dispatch.IntentName(skill.IntentEcho)(in)
}

func (EchoHandler) Handle(_ context.Context, in *dispatch.Input) (*skill.Response, error) {
	payload, err := in.Envelope.Request.Payload()
	if err != nil {
		return nil, err
	}
	return in.ResponseBuilder.
		AddDirective(skill.Directive{
			"type":    skill.DirectiveHTMLHandleMessage,
			"message": payload,
		}).
		GetResponse(), nil
}

// CancelAndStopHandler records the last access and ends the session.
type CancelAndStopHandler struct {
	Now func() time.Time
}

func (h CancelAndStopHandler) CanHandle(in *dispatch.Input) bool {
	return dispatch.IntentName(skill.IntentCancel, skill.IntentStop)(in)
}

func (h CancelAndStopHandler) Handle(ctx context.Context, in *dispatch.Input) (*skill.Response, error) {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}

	in.AttributesManager.SetPersistentAttributes(map[string]any{
		"lastAccessedDate":   now().UnixMilli(),
		"lastAccessedIntent": cancelIntentMarker,
	})
	if err := in.AttributesManager.SavePersistentAttributes(ctx); err != nil {
		return nil, err
	}

	return in.ResponseBuilder.
		Speak(farewellSpeech).
		WithSimpleCard(farewellTitle, farewellSpeech).
		WithShouldEndSession(true).
		GetResponse(), nil
}

// LogMessageHandler writes log batches relayed by the web app to the sink.
type LogMessageHandler struct {
	Sink observability.Emitter
}

func (h LogMessageHandler) CanHandle(in *dispatch.Input) bool {
	if in.Envelope.Request.Type != skill.RequestTypeMessage {
		return false
	}
	msg, err := in.Envelope.Request.HTMLMessage()
	return err == nil && msg.MessageType == skill.MessageTypeLog
}

func (h LogMessageHandler) Handle(_ context.Context, in *dispatch.Input) (*skill.Response, error) {
	msg, err := in.Envelope.Request.HTMLMessage()
	if err != nil {
		return nil, err
	}

	var batch skill.LogBatch
	if err := json.Unmarshal(msg.MessageBody, &batch); err != nil {
		return nil, fmt.Errorf("decode log batch: %w", err)
	}
	for _, record := range batch.Messages {
		message := record.Message
		if len(message) == 0 {
			message = json.RawMessage("null")
		}
		h.Sink.Emit(fmt.Sprintf("UI Logger: %s: %s", record.Timestamp, message))
	}
	return in.ResponseBuilder.GetResponse(), nil
}

// SessionEndedHandler reports why the host closed the session.
type SessionEndedHandler struct {
	Sink observability.Emitter
}

func (h SessionEndedHandler) CanHandle(in *dispatch.Input) bool {
	return in.Envelope.Request.Type == skill.RequestTypeSessionEnded
}

func (h SessionEndedHandler) Handle(_ context.Context, in *dispatch.Input) (*skill.Response, error) {
	h.Sink.Emit(fmt.Sprintf("Session ended with reason: %s", in.Envelope.Request.Reason))
	return in.ResponseBuilder.GetResponse(), nil
}

// ApologyErrorHandler accepts every failure and asks the user to repeat.
type ApologyErrorHandler struct {
	Sink observability.Emitter
}

func (h ApologyErrorHandler) CanHandle(*dispatch.Input, error) bool { return true }

func (h ApologyErrorHandler) Handle(_ context.Context, in *dispatch.Input, err error) (*skill.Response, error) {
	h.Sink.Emit(fmt.Sprintf("Error handled: %v", err))
	return in.ResponseBuilder.
		Speak(apologySpeech).
		Reprompt(apologySpeech).
		GetResponse(), nil
}
