package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zhouzirui/webskill/backend/internal/model/attributes"
	"github.com/zhouzirui/webskill/backend/internal/model/skill"
	"github.com/zhouzirui/webskill/backend/internal/observability"
)

var (
	// ErrNoHandler is passed to the error handlers when no predicate matched.
	ErrNoHandler = errors.New("no handler can handle the request")
	// ErrNoErrorHandler means routing failed and no error handler accepted
	// the failure. Dispatch returns it instead of a response.
	ErrNoErrorHandler = errors.New("no error handler can handle the failure")
)

// PanicError wraps a value recovered from a panicking handler or interceptor.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Router selects the first registered handler whose predicate matches an
// envelope and runs it between the registered interceptors.
type Router struct {
	mu                   sync.RWMutex
	handlers             []Handler
	errorHandlers        []ErrorHandler
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor

	store  attributes.Store
	strict bool
}

// Option configures a Router.
type Option func(*Router)

// WithStore sets the persistence collaborator exposed through AttributesManager.
func WithStore(store attributes.Store) Option {
	return func(r *Router) { r.store = store }
}

// WithStrictInterceptors makes an interceptor failure abort the dispatch and
// go through the error handlers. By default the failure is logged and the
// remaining interceptors and the handler still run.
func WithStrictInterceptors() Option {
	return func(r *Router) { r.strict = true }
}

// New creates an empty router.
func New(opts ...Option) *Router {
	r := &Router{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register appends handlers to the routing table. Earlier registrations are
// tried first; overlapping predicates are allowed.
func (r *Router) Register(handlers ...Handler) {
	r.mu.Lock()
	r.handlers = append(r.handlers, handlers...)
	r.mu.Unlock()
}

// RegisterErrorHandler appends fallback handlers.
func (r *Router) RegisterErrorHandler(handlers ...ErrorHandler) {
	r.mu.Lock()
	r.errorHandlers = append(r.errorHandlers, handlers...)
	r.mu.Unlock()
}

// UseRequestInterceptor appends request interceptors.
func (r *Router) UseRequestInterceptor(interceptors ...RequestInterceptor) {
	r.mu.Lock()
	r.requestInterceptors = append(r.requestInterceptors, interceptors...)
	r.mu.Unlock()
}

// UseResponseInterceptor appends response interceptors.
func (r *Router) UseResponseInterceptor(interceptors ...ResponseInterceptor) {
	r.mu.Lock()
	r.responseInterceptors = append(r.responseInterceptors, interceptors...)
	r.mu.Unlock()
}

type table struct {
	handlers             []Handler
	errorHandlers        []ErrorHandler
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
}

func (r *Router) snapshot() table {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return table{
		handlers:             r.handlers,
		errorHandlers:        r.errorHandlers,
		requestInterceptors:  r.requestInterceptors,
		responseInterceptors: r.responseInterceptors,
	}
}

// Dispatch routes env to exactly one response. The only error it returns
// wraps ErrNoErrorHandler.
func (r *Router) Dispatch(ctx context.Context, env *skill.Envelope) (*skill.ResponseEnvelope, error) {
	if env == nil {
		env = &skill.Envelope{}
	}

	ctx = observability.WithSkillRequestID(ctx, env.Request.RequestID)
	ctx, span := tracer.Start(ctx, "dispatch", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(
		attribute.String("skill.request.type", env.Request.Type),
		attribute.String("skill.request.id", env.Request.RequestID),
	)
	if name := env.IntentName(); name != "" {
		span.SetAttributes(attribute.String("skill.intent.name", name))
	}

	t := r.snapshot()
	in := r.newInput(env)

	resp, err := r.route(ctx, t, in)
	if err != nil {
		span.RecordError(err)
		observability.LoggerFromContext(ctx).Warn("routing failed, trying error handlers",
			"type", env.Request.Type, "error", err)
		resp, err = r.fallback(ctx, t, env, err)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			observability.LoggerFromContext(ctx).Error("no error handler accepted the failure", "error", err)
			return nil, err
		}
	}

	out := skill.Wrap(resp)
	if env.Session != nil && len(env.Session.Attributes) > 0 {
		out.SessionAttributes = env.Session.Attributes
	}
	return out, nil
}

func (r *Router) newInput(env *skill.Envelope) *Input {
	return &Input{
		Envelope:          env,
		ResponseBuilder:   skill.NewResponseBuilder(),
		AttributesManager: newAttributesManager(r.store, env.UserID()),
	}
}

func (r *Router) route(ctx context.Context, t table, in *Input) (*skill.Response, error) {
	for i, interceptor := range t.requestInterceptors {
		err := guard(func() error { return interceptor.Process(ctx, in) })
		if err != nil {
			if r.strict {
				return nil, fmt.Errorf("request interceptor %d: %w", i, err)
			}
			observability.LoggerFromContext(ctx).Warn("request interceptor failed", "index", i, "error", err)
		}
	}

	var handler Handler
	if err := guard(func() error {
		handler = match(t.handlers, in)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("match handler: %w", err)
	}
	if handler == nil {
		return nil, fmt.Errorf("%w: type=%s intent=%s", ErrNoHandler, in.Envelope.Request.Type, in.Envelope.IntentName())
	}

	var resp *skill.Response
	err := guard(func() error {
		var handleErr error
		resp, handleErr = handler.Handle(ctx, in)
		return handleErr
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		resp = in.ResponseBuilder.GetResponse()
	}

	for i, interceptor := range t.responseInterceptors {
		err := guard(func() error { return interceptor.Process(ctx, in, resp) })
		if err != nil {
			if r.strict {
				return nil, fmt.Errorf("response interceptor %d: %w", i, err)
			}
			observability.LoggerFromContext(ctx).Warn("response interceptor failed", "index", i, "error", err)
		}
	}
	return resp, nil
}

// fallback hands a routing failure to the first error handler that accepts
// it. Error handlers get a fresh builder so nothing the failed handler
// staged leaks into the fallback response.
func (r *Router) fallback(ctx context.Context, t table, env *skill.Envelope, cause error) (*skill.Response, error) {
	in := r.newInput(env)
	for _, h := range t.errorHandlers {
		if !h.CanHandle(in, cause) {
			continue
		}
		var resp *skill.Response
		err := guard(func() error {
			var handleErr error
			resp, handleErr = h.Handle(ctx, in, cause)
			return handleErr
		})
		if err != nil {
			return nil, fmt.Errorf("%w: error handler failed: %w (cause: %w)", ErrNoErrorHandler, err, cause)
		}
		if resp == nil {
			resp = in.ResponseBuilder.GetResponse()
		}
		return resp, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrNoErrorHandler, cause)
}

func match(handlers []Handler, in *Input) Handler {
	for _, h := range handlers {
		if h.CanHandle(in) {
			return h
		}
	}
	return nil
}

func guard(fn func() error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v}
		}
	}()
	return fn()
}
