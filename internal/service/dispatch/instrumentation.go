package dispatch

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/zhouzirui/webskill/backend/internal/service/dispatch"

var tracer trace.Tracer = otel.Tracer(scopeName)
