package tracing

import (
	"encoding/hex"
	"strings"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"go.opentelemetry.io/otel/trace"
)

// Unmarshal decodes a W3C traceparent value and reconstructs it into an
// opentelemetry SpanContext.
func Unmarshal(data []byte) (trace.SpanContext, error) {
	parts := strings.Split(string(data), "-")
	if len(parts) != 4 || parts[0] != version {
		return trace.SpanContext{}, errors.New("invalid traceparent", j.KS("traceparent", string(data)))
	}

	traceID, err := trace.TraceIDFromHex(parts[1])
	if err != nil {
		return trace.SpanContext{}, err
	}

	spanID, err := trace.SpanIDFromHex(parts[2])
	if err != nil {
		return trace.SpanContext{}, err
	}

	flags, err := hex.DecodeString(parts[3])
	if err != nil || len(flags) != 1 {
		return trace.SpanContext{}, errors.New("invalid trace flags", j.KS("traceparent", string(data)))
	}

	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.TraceFlags(flags[0]),
	}), nil
}
