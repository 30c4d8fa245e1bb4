package tracing

import (
	"github.com/luno/jettison/errors"
	"go.opentelemetry.io/otel/trace"
)

const version = "00"

// Marshal encodes the opentelemetry SpanContext as a W3C traceparent value,
// ex. "00-<trace id>-<span id>-<flags>", for propagation in message headers.
func Marshal(span trace.SpanContext) ([]byte, error) {
	if !span.HasTraceID() || !span.HasSpanID() {
		return nil, errors.New("invalid span context")
	}

	s := version + "-" + span.TraceID().String() + "-" +
		span.SpanID().String() + "-" + span.TraceFlags().String()

	return []byte(s), nil
}
