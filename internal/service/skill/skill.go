// Package skill assembles the routing table served by the skill endpoint.
package skill

import (
	"github.com/zhouzirui/webskill/backend/internal/model/attributes"
	"github.com/zhouzirui/webskill/backend/internal/observability"
	"github.com/zhouzirui/webskill/backend/internal/service/dispatch"
)

// Config holds what the built-in handlers need at process start.
type Config struct {
	// Origin is the full URL the launch handler opens, e.g. https://example.cloudfront.net.
	Origin             string
	StrictInterceptors bool
}

// NewRouter registers the built-in handlers in their routing order.
func NewRouter(cfg Config, store attributes.Store, sink observability.Emitter) *dispatch.Router {
	if sink == nil {
		sink = observability.Discard
	}

	opts := []dispatch.Option{dispatch.WithStore(store)}
	if cfg.StrictInterceptors {
		opts = append(opts, dispatch.WithStrictInterceptors())
	}

	r := dispatch.New(opts...)
	r.Register(
		LaunchHandler{Origin: cfg.Origin},
		EchoHandler{},
		LogMessageHandler{Sink: sink},
		CancelAndStopHandler{},
		SessionEndedHandler{Sink: sink},
	)
	r.UseRequestInterceptor(RequestLogger(sink))
	r.UseResponseInterceptor(ResponseLogger(sink))
	r.RegisterErrorHandler(ApologyErrorHandler{Sink: sink})
	return r
}
