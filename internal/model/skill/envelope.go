package skill

import (
	"encoding/json"
	"fmt"
)

// Request types recognised by the built-in handlers.
const (
	RequestTypeLaunch       = "LaunchRequest"
	RequestTypeIntent       = "IntentRequest"
	RequestTypeSessionEnded = "SessionEndedRequest"
	RequestTypeMessage      = "Alexa.Presentation.HTML.Message"
)

// Intent names recognised by the built-in handlers.
const (
	IntentEcho   = "EchoIntent"
	IntentCancel = "AMAZON.CancelIntent"
	IntentStop   = "AMAZON.StopIntent"
)

// Envelope is the inbound event delivered to the skill endpoint.
type Envelope struct {
	Version string   `json:"version"`
	Session *Session `json:"session,omitempty"`
	Context *Context `json:"context,omitempty"`
	Request Request  `json:"request"`
}

// Session identifies the conversation the event belongs to.
type Session struct {
	New        bool           `json:"new"`
	SessionID  string         `json:"sessionId"`
	User       User           `json:"user"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// User carries the externally managed user identity.
type User struct {
	UserID string `json:"userId"`
}

// Context mirrors the host's device/system context.
type Context struct {
	System System `json:"System"`
}

// System holds the user and application the event was issued for.
type System struct {
	User        User        `json:"user"`
	Application Application `json:"application"`
}

// Application identifies the registered skill.
type Application struct {
	ApplicationID string `json:"applicationId"`
}

// UserID returns the user identity, preferring the system context over the session.
func (e *Envelope) UserID() string {
	if e == nil {
		return ""
	}
	if e.Context != nil && e.Context.System.User.UserID != "" {
		return e.Context.System.User.UserID
	}
	if e.Session != nil {
		return e.Session.User.UserID
	}
	return ""
}

// IntentName returns the intent name for intent requests and "" otherwise.
func (e *Envelope) IntentName() string {
	if e == nil || e.Request.Type != RequestTypeIntent || e.Request.Intent == nil {
		return ""
	}
	return e.Request.Intent.Name
}

// Request is the tagged payload of an Envelope. Type is the discriminant;
// which of the remaining fields are populated depends on it.
type Request struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Locale    string          `json:"locale,omitempty"`
	Intent    *Intent         `json:"intent,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Error     *RequestError   `json:"error,omitempty"`
	Message   json.RawMessage `json:"message,omitempty"`

	// raw keeps the request exactly as received so it can be echoed back.
	raw json.RawMessage
}

// Intent is the resolved user intent of an IntentRequest.
type Intent struct {
	Name               string          `json:"name"`
	ConfirmationStatus string          `json:"confirmationStatus,omitempty"`
	Slots              map[string]Slot `json:"slots,omitempty"`
}

// Slot is a single named intent slot.
type Slot struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// RequestError describes why the host ended a session with an error.
type RequestError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type requestAlias Request

// UnmarshalJSON decodes the typed fields and retains the raw bytes.
func (r *Request) UnmarshalJSON(data []byte) error {
	var alias requestAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*r = Request(alias)
	r.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON returns the received bytes when available so unknown vendor
// fields survive a round trip.
func (r Request) MarshalJSON() ([]byte, error) {
	if len(r.raw) > 0 {
		return r.raw, nil
	}
	return json.Marshal(requestAlias(r))
}

// Payload returns the whole request as JSON. A decoded request yields the
// received bytes unchanged, so large numbers and key order survive.
func (r Request) Payload() (json.RawMessage, error) {
	data, err := r.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return append(json.RawMessage(nil), data...), nil
}

// HTMLMessage is the body of an Alexa.Presentation.HTML.Message request,
// i.e. whatever the companion page passed to sendMessage.
type HTMLMessage struct {
	MessageType string          `json:"messageType"`
	MessageBody json.RawMessage `json:"messageBody,omitempty"`
}

// MessageTypeLog marks a batched log message sent by the companion relay.
const MessageTypeLog = "LogMessage"

// HTMLMessage decodes the message of an HTML message request.
func (r Request) HTMLMessage() (HTMLMessage, error) {
	var msg HTMLMessage
	if len(r.Message) == 0 {
		return msg, fmt.Errorf("request %s carries no message", r.Type)
	}
	if err := json.Unmarshal(r.Message, &msg); err != nil {
		return msg, fmt.Errorf("decode html message: %w", err)
	}
	return msg, nil
}

// LogBatch is the body of a LogMessage.
type LogBatch struct {
	Messages []LogRecord `json:"messages"`
}

// LogRecord is one relayed log line. Message is kept raw because the page
// may log arbitrary JSON values.
type LogRecord struct {
	Timestamp string          `json:"timestamp"`
	Message   json.RawMessage `json:"message"`
}
