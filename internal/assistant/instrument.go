package assistant

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var fetchTracer = otel.Tracer("bridge.internal.assistant")

// LatencyObserver receives one observation per collaborator call.
type LatencyObserver interface {
	ObserveCollaborator(provider, outcome string, seconds float64)
}

// InstrumentedFetcher records a span and a latency observation per call.
type InstrumentedFetcher struct {
	next     Fetcher
	provider string
	observer LatencyObserver
}

// Instrument wraps next. A nil observer still records spans.
func Instrument(next Fetcher, provider string, observer LatencyObserver) *InstrumentedFetcher {
	return &InstrumentedFetcher{next: next, provider: provider, observer: observer}
}

// FetchReply delegates to the wrapped fetcher.
func (f *InstrumentedFetcher) FetchReply(ctx context.Context, sessionKey, utterance, languageCode string) (RawReply, error) {
	ctx, span := fetchTracer.Start(ctx, "assistant.fetch_reply",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("bridge.provider", f.provider),
			attribute.String("bridge.session_key", sessionKey),
		),
	)
	defer span.End()

	start := time.Now()
	raw, err := f.next.FetchReply(ctx, sessionKey, utterance, languageCode)
	outcome := Outcome(err)
	if err != nil {
		span.RecordError(err)
	}
	span.SetAttributes(attribute.String("bridge.outcome", outcome))
	if f.observer != nil {
		f.observer.ObserveCollaborator(f.provider, outcome, time.Since(start).Seconds())
	}
	return raw, err
}

// Outcome labels a fetch error for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCollaboratorUnavailable):
		return "unavailable"
	case errors.Is(err, ErrCollaboratorMalformed):
		return "malformed"
	default:
		return "error"
	}
}
