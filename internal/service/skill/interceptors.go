package skill

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zhouzirui/webskill/backend/internal/model/skill"
	"github.com/zhouzirui/webskill/backend/internal/observability"
	"github.com/zhouzirui/webskill/backend/internal/service/dispatch"
)

// RequestLogger emits every inbound envelope.
func RequestLogger(sink observability.Emitter) dispatch.RequestInterceptor {
	return dispatch.RequestInterceptorFunc(func(_ context.Context, in *dispatch.Input) error {
		data, err := json.Marshal(in.Envelope)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		sink.Emit("Request: " + string(data))
		return nil
	})
}

// ResponseLogger emits every produced response.
func ResponseLogger(sink observability.Emitter) dispatch.ResponseInterceptor {
	return dispatch.ResponseInterceptorFunc(func(_ context.Context, _ *dispatch.Input, resp *skill.Response) error {
		data, err := json.Marshal(resp)
		if err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
		sink.Emit("Response: " + string(data))
		return nil
	})
}
