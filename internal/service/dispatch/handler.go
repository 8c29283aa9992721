package dispatch

import (
	"context"

	"github.com/zhouzirui/webskill/backend/internal/model/skill"
)

// Input is what every handler, error handler and interceptor receives.
type Input struct {
	Envelope          *skill.Envelope
	ResponseBuilder   *skill.ResponseBuilder
	AttributesManager *AttributesManager
}

// Handler is one entry of the routing table.
type Handler interface {
	CanHandle(in *Input) bool
	Handle(ctx context.Context, in *Input) (*skill.Response, error)
}

// ErrorHandler produces the fallback response when routing fails.
type ErrorHandler interface {
	CanHandle(in *Input, err error) bool
	Handle(ctx context.Context, in *Input, err error) (*skill.Response, error)
}

// RequestInterceptor runs before the selected handler.
type RequestInterceptor interface {
	Process(ctx context.Context, in *Input) error
}

// ResponseInterceptor runs after the selected handler with its response.
type ResponseInterceptor interface {
	Process(ctx context.Context, in *Input, resp *skill.Response) error
}

// RequestInterceptorFunc adapts a function to RequestInterceptor.
type RequestInterceptorFunc func(ctx context.Context, in *Input) error

func (f RequestInterceptorFunc) Process(ctx context.Context, in *Input) error { return f(ctx, in) }

// ResponseInterceptorFunc adapts a function to ResponseInterceptor.
type ResponseInterceptorFunc func(ctx context.Context, in *Input, resp *skill.Response) error

func (f ResponseInterceptorFunc) Process(ctx context.Context, in *Input, resp *skill.Response) error {
	return f(ctx, in, resp)
}

type funcHandler struct {
	match  func(in *Input) bool
	action func(ctx context.Context, in *Input) (*skill.Response, error)
}

// NewHandler builds a Handler from a predicate and an action.
func NewHandler(match func(in *Input) bool, action func(ctx context.Context, in *Input) (*skill.Response, error)) Handler {
	return funcHandler{match: match, action: action}
}

func (h funcHandler) CanHandle(in *Input) bool { return h.match(in) }

func (h funcHandler) Handle(ctx context.Context, in *Input) (*skill.Response, error) {
	return h.action(ctx, in)
}

// RequestType matches envelopes whose request has the given type.
func RequestType(requestType string) func(in *Input) bool {
	return func(in *Input) bool {
		return in.Envelope.Request.Type == requestType
	}
}

// IntentName matches intent requests for any of the given intent names.
func IntentName(names ...string) func(in *Input) bool {
	return func(in *Input) bool {
		name := in.Envelope.IntentName()
		if name == "" {
			return false
		}
		for _, n := range names {
			if n == name {
				return true
			}
		}
		return false
	}
}
