// Package webhook exposes the inbound gateway endpoint that relays chat
// messages to the conversational assistant and answers with its reply.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/dialogflow-bridge/internal/assistant"
	"github.com/wolfman30/dialogflow-bridge/internal/gateway"
	"github.com/wolfman30/dialogflow-bridge/internal/replay"
	"github.com/wolfman30/dialogflow-bridge/internal/reply"
	"github.com/wolfman30/dialogflow-bridge/internal/session"
	"github.com/wolfman30/dialogflow-bridge/pkg/logging"
)

var tracer = otel.Tracer("dialogflow-bridge.internal.webhook")

const (
	// Greeting is served on GET /.
	Greeting = "Hello, this is the WhatsApp bot server!"
	// DefaultFallbackReply is sent when the assistant cannot answer.
	DefaultFallbackReply = "Sorry, something went wrong, please try again."
)

// Outcomes recorded per inbound webhook.
const (
	OutcomeOK        = "ok"
	OutcomeMalformed = "malformed"
	OutcomeFallback  = "fallback"
	OutcomeReplayed  = "replayed"
	OutcomePanic     = "panic"
)

// Recorder receives per-request measurements.
type Recorder interface {
	ObserveInbound(outcome string, seconds float64)
	ObserveReply(kind, format string)
}

// Config holds the per-deployment settings of the handler.
type Config struct {
	LanguageCode  string
	PublicBaseURL string
	FallbackReply string
}

// Option customizes a Handler.
type Option func(*Handler)

// WithReplayStore enables response replay for retried deliveries.
func WithReplayStore(store replay.Store) Option {
	return func(h *Handler) { h.replay = store }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(h *Handler) { h.metrics = rec }
}

// Handler handles gateway webhook requests.
type Handler struct {
	fetcher  assistant.Fetcher
	renderer gateway.Renderer
	format   gateway.Format
	replay   replay.Store
	metrics  Recorder
	cfg      Config
	logger   *logging.Logger
}

// NewHandler creates a webhook handler.
func NewHandler(cfg Config, fetcher assistant.Fetcher, renderer gateway.Renderer, format gateway.Format, logger *logging.Logger, opts ...Option) *Handler {
	if fetcher == nil {
		panic("webhook: fetcher cannot be nil")
	}
	if format == nil {
		format = gateway.TwiMLFormat{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.FallbackReply) == "" {
		cfg.FallbackReply = DefaultFallbackReply
	}
	h := &Handler{
		fetcher:  fetcher,
		renderer: renderer,
		format:   format,
		cfg:      cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Webhook handles POST /webhook. The response is always HTTP 200 carrying a
// well-formed message, degraded to the fallback text when needed.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracer.Start(r.Context(), "webhook.inbound")
	defer span.End()

	in, err := ParseInbound(r)
	if err != nil {
		h.logger.Warn("failed to parse webhook", "error", err)
		span.RecordError(err)
	}
	span.SetAttributes(
		attribute.String("bridge.message_sid", in.MessageSid),
		attribute.Int("bridge.body_length", len(in.Body)),
	)

	if cached, ok := h.lookupReplay(ctx, in.MessageSid); ok {
		h.logger.Info("replaying cached webhook response", "message_sid", in.MessageSid)
		h.write(w, cached.ContentType, cached.Body)
		h.observeInbound(OutcomeReplayed, start)
		return
	}

	var (
		msg     gateway.OutboundMessage
		outcome string
	)
	if err != nil {
		msg, outcome = h.fallbackMessage(in), OutcomeFallback
	} else {
		msg, outcome = h.respond(ctx, in, h.baseURL(r))
	}
	body := h.encode(msg)
	span.SetAttributes(
		attribute.String("bridge.reply_kind", msg.Kind()),
		attribute.String("bridge.outcome", outcome),
	)

	if outcome == OutcomeOK || outcome == OutcomeMalformed {
		h.saveReplay(ctx, in.MessageSid, replay.Response{ContentType: h.format.ContentType(), Body: body})
	}
	h.write(w, h.format.ContentType(), body)

	h.logger.Info("webhook handled",
		"message_sid", in.MessageSid,
		"outcome", outcome,
		"reply_kind", msg.Kind(),
		"media_count", len(msg.MediaURLs),
		"button_count", len(msg.Buttons),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if h.metrics != nil {
		h.metrics.ObserveReply(msg.Kind(), h.format.Name())
	}
	h.observeInbound(outcome, start)
}

func (h *Handler) observeInbound(outcome string, start time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.ObserveInbound(outcome, time.Since(start).Seconds())
}

// respond runs derive → fetch → normalize → render. A panic anywhere in the
// pipeline degrades to the fallback message.
func (h *Handler) respond(ctx context.Context, in Inbound, baseURL string) (msg gateway.OutboundMessage, outcome string) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("webhook pipeline panicked", "panic", fmt.Sprint(rec), "message_sid", in.MessageSid)
			msg, outcome = h.fallbackMessage(in), OutcomePanic
		}
	}()

	sessionKey := session.DeriveKey(in.From)
	h.logger.Debug("incoming message", "session_key", sessionKey, "message_sid", in.MessageSid, "body_length", len(in.Body))

	outcome = OutcomeOK
	raw, err := h.fetcher.FetchReply(ctx, sessionKey, in.Body, h.cfg.LanguageCode)
	switch {
	case err == nil:
	case errors.Is(err, assistant.ErrCollaboratorMalformed):
		h.logger.Warn("assistant returned a malformed reply", "session_key", sessionKey, "error", err)
		outcome = OutcomeMalformed
	default:
		h.logger.Error("assistant unavailable", "session_key", sessionKey, "error", err)
		return h.fallbackMessage(in), OutcomeFallback
	}

	rep := reply.Normalize(raw)
	h.logger.Debug("assistant reply", "session_key", sessionKey, "has_image", rep.HasImage(), "option_count", len(rep.Options))

	msg = h.renderer.Render(rep, baseURL)
	msg.To = in.From
	return msg, outcome
}

func (h *Handler) fallbackMessage(in Inbound) gateway.OutboundMessage {
	return gateway.OutboundMessage{To: in.From, Body: h.cfg.FallbackReply}
}

// encode serializes msg, falling back to the apology text when the encoder
// fails or panics.
func (h *Handler) encode(msg gateway.OutboundMessage) (body []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("reply encoder panicked", "panic", fmt.Sprint(rec))
			body = h.encodeFallback(msg.To)
		}
	}()
	out, err := h.format.Encode(msg)
	if err != nil {
		h.logger.Error("failed to encode reply", "format", h.format.Name(), "error", err)
		return h.encodeFallback(msg.To)
	}
	return out
}

func (h *Handler) encodeFallback(to string) []byte {
	out, err := h.format.Encode(gateway.OutboundMessage{To: to, Body: h.cfg.FallbackReply})
	if err != nil {
		return []byte(h.cfg.FallbackReply)
	}
	return out
}

func (h *Handler) baseURL(r *http.Request) string {
	if base := strings.TrimSpace(h.cfg.PublicBaseURL); base != "" {
		return base
	}
	return publicBaseURL(r)
}

func (h *Handler) lookupReplay(ctx context.Context, messageSid string) (replay.Response, bool) {
	if h.replay == nil || messageSid == "" {
		return replay.Response{}, false
	}
	cached, ok, err := h.replay.Lookup(ctx, messageSid)
	if err != nil {
		h.logger.Warn("replay lookup failed", "message_sid", messageSid, "error", err)
		return replay.Response{}, false
	}
	return cached, ok
}

func (h *Handler) saveReplay(ctx context.Context, messageSid string, resp replay.Response) {
	if h.replay == nil || messageSid == "" {
		return
	}
	if err := h.replay.Save(ctx, messageSid, resp); err != nil {
		h.logger.Warn("replay save failed", "message_sid", messageSid, "error", err)
	}
}

func (h *Handler) write(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// Index handles GET /.
func Index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(Greeting))
}

// HealthCheck returns a simple health check response.
func HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
