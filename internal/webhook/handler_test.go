package webhook

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dialogflow-bridge/internal/assistant"
	"github.com/wolfman30/dialogflow-bridge/internal/gateway"
	"github.com/wolfman30/dialogflow-bridge/internal/replay"
	"github.com/wolfman30/dialogflow-bridge/internal/session"
)

type fetchCall struct {
	sessionKey, utterance, languageCode string
}

type stubFetcher struct {
	mu    sync.Mutex
	calls []fetchCall
	fn    func(call int) (assistant.RawReply, error)
}

func (s *stubFetcher) FetchReply(_ context.Context, sessionKey, utterance, languageCode string) (assistant.RawReply, error) {
	s.mu.Lock()
	s.calls = append(s.calls, fetchCall{sessionKey, utterance, languageCode})
	n := len(s.calls)
	s.mu.Unlock()
	return s.fn(n)
}

func replyWith(raw assistant.RawReply, err error) *stubFetcher {
	return &stubFetcher{fn: func(int) (assistant.RawReply, error) { return raw, err }}
}

type recordedInbound struct {
	outcome string
}

type fakeRecorder struct {
	inbound []recordedInbound
	replies []string
}

func (f *fakeRecorder) ObserveInbound(outcome string, _ float64) {
	f.inbound = append(f.inbound, recordedInbound{outcome: outcome})
}

func (f *fakeRecorder) ObserveReply(kind, format string) {
	f.replies = append(f.replies, kind+"/"+format)
}

type twimlDoc struct {
	Message struct {
		Body  string   `xml:"Body"`
		Media []string `xml:"Media"`
	} `xml:"Message"`
}

func postWebhook(t *testing.T, h *Handler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "http://bridge.test/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Webhook(rec, req)
	return rec
}

func parseTwiML(t *testing.T, rec *httptest.ResponseRecorder) twimlDoc {
	t.Helper()
	var doc twimlDoc
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &doc))
	return doc
}

func newTwiMLHandler(fetcher assistant.Fetcher, opts ...Option) *Handler {
	cfg := Config{LanguageCode: "en", PublicBaseURL: "https://host/"}
	return NewHandler(cfg, fetcher, gateway.NewRenderer(gateway.ButtonModeText), gateway.TwiMLFormat{}, nil, opts...)
}

func inbound(body, from string) url.Values {
	return url.Values{"Body": {body}, "From": {from}}
}

func TestWebhookEndToEndImageReply(t *testing.T) {
	fetcher := replyWith(assistant.RawReply{Text: "Welcome\ncatalog.png"}, nil)
	h := newTwiMLHandler(fetcher)

	rec := postWebhook(t, h, inbound("  hi ", "+15551234567"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	doc := parseTwiML(t, rec)
	assert.Equal(t, "Welcome", doc.Message.Body)
	require.Len(t, doc.Message.Media, 1)
	assert.True(t, strings.HasSuffix(doc.Message.Media[0], "catalog.png"))
	assert.Equal(t, "https://host/static/images/catalog.png", doc.Message.Media[0])

	require.Len(t, fetcher.calls, 1)
	assert.Equal(t, fetchCall{session.DeriveKey("+15551234567"), "hi", "en"}, fetcher.calls[0])
}

func TestWebhookSameCorrespondentSameSession(t *testing.T) {
	fetcher := replyWith(assistant.TextReply("ok"), nil)
	h := newTwiMLHandler(fetcher)

	postWebhook(t, h, inbound("one", "whatsapp:+15550001111"))
	postWebhook(t, h, inbound("two", "whatsapp:+15550001111"))
	postWebhook(t, h, inbound("three", "whatsapp:+15550002222"))

	require.Len(t, fetcher.calls, 3)
	assert.Equal(t, fetcher.calls[0].sessionKey, fetcher.calls[1].sessionKey)
	assert.NotEqual(t, fetcher.calls[0].sessionKey, fetcher.calls[2].sessionKey)
}

func TestWebhookTextFallbackButtons(t *testing.T) {
	raw := assistant.RawReply{
		Text: "Do you want it?",
		Messages: []assistant.RawMessage{{Payload: map[string]any{
			"richContent": []any{[]any{
				map[string]any{"type": "button", "text": "Yes", "postback": "yes"},
				map[string]any{"type": "button", "text": "No", "postback": "no"},
			}},
		}}},
	}
	h := newTwiMLHandler(replyWith(raw, nil))

	doc := parseTwiML(t, postWebhook(t, h, inbound("buy", "+1555")))
	assert.Equal(t, "Do you want it?\nYes: yes\nNo: no", doc.Message.Body)
	assert.Empty(t, doc.Message.Media)
}

func TestWebhookWhatsAppInteractive(t *testing.T) {
	raw := assistant.RawReply{
		Text: "Pick one\nmenu.jpg",
		Messages: []assistant.RawMessage{{Payload: map[string]any{
			"fields": map[string]any{"richContent": []any{[]any{
				map[string]any{"type": "button", "text": "Yes", "postback": "yes"},
			}}},
		}}},
	}
	format := gateway.WhatsAppFormat{}
	h := NewHandler(Config{PublicBaseURL: "https://host"}, replyWith(raw, nil),
		gateway.NewRenderer(gateway.ResolveButtonMode("auto", format)), format, nil)

	rec := postWebhook(t, h, inbound("menu", "whatsapp:+15551234567"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var env struct {
		Messages []map[string]any `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Len(t, env.Messages, 2)
	assert.Equal(t, "image", env.Messages[0]["type"])
	assert.Equal(t, "https://host/static/images/menu.jpg", env.Messages[0]["image"].(map[string]any)["link"])
	assert.Equal(t, "interactive", env.Messages[1]["type"])
	assert.Equal(t, "15551234567", env.Messages[1]["to"])
}

func TestWebhookCollaboratorUnavailable(t *testing.T) {
	recorder := &fakeRecorder{}
	fetcher := replyWith(assistant.RawReply{}, errors.Join(assistant.ErrCollaboratorUnavailable, context.DeadlineExceeded))
	h := newTwiMLHandler(fetcher, WithRecorder(recorder))

	rec := postWebhook(t, h, inbound("hi", "+1555"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, DefaultFallbackReply, parseTwiML(t, rec).Message.Body)
	assert.Equal(t, []recordedInbound{{OutcomeFallback}}, recorder.inbound)
	assert.Equal(t, []string{"text/twiml"}, recorder.replies)
}

func TestWebhookCustomFallbackReply(t *testing.T) {
	h := NewHandler(Config{FallbackReply: "Try again later"}, replyWith(assistant.RawReply{}, errors.New("boom")),
		gateway.NewRenderer(gateway.ButtonModeText), nil, nil)

	rec := postWebhook(t, h, inbound("hi", "+1555"))
	assert.Equal(t, "Try again later", parseTwiML(t, rec).Message.Body)
}

func TestWebhookMalformedReplyContinues(t *testing.T) {
	recorder := &fakeRecorder{}
	h := newTwiMLHandler(replyWith(assistant.RawReply{}, assistant.ErrCollaboratorMalformed), WithRecorder(recorder))

	rec := postWebhook(t, h, inbound("hi", "+1555"))

	assert.Equal(t, http.StatusOK, rec.Code)
	doc := parseTwiML(t, rec)
	assert.Empty(t, doc.Message.Body)
	assert.Empty(t, doc.Message.Media)
	assert.Equal(t, []recordedInbound{{OutcomeMalformed}}, recorder.inbound)
}

func TestWebhookRecoversFromPanic(t *testing.T) {
	fetcher := &stubFetcher{fn: func(int) (assistant.RawReply, error) { panic("unexpected shape") }}
	recorder := &fakeRecorder{}
	h := newTwiMLHandler(fetcher, WithRecorder(recorder))

	rec := postWebhook(t, h, inbound("hi", "+1555"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, DefaultFallbackReply, parseTwiML(t, rec).Message.Body)
	assert.Equal(t, []recordedInbound{{OutcomePanic}}, recorder.inbound)
}

func TestWebhookRecoversFromPanicBehindTimeout(t *testing.T) {
	fetcher := &stubFetcher{fn: func(int) (assistant.RawReply, error) { panic("vendor sdk nil deref") }}
	recorder := &fakeRecorder{}
	h := newTwiMLHandler(assistant.WithTimeout(fetcher, 5*time.Second), WithRecorder(recorder))

	rec := postWebhook(t, h, inbound("hi", "+1555"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, DefaultFallbackReply, parseTwiML(t, rec).Message.Body)
	assert.Equal(t, []recordedInbound{{OutcomeFallback}}, recorder.inbound)
}

type failingFormat struct {
	gateway.TwiMLFormat
}

func (f failingFormat) Encode(msg gateway.OutboundMessage) ([]byte, error) {
	if msg.Body != DefaultFallbackReply {
		return nil, errors.New("encoder broke")
	}
	return f.TwiMLFormat.Encode(msg)
}

func TestWebhookEncodeFailureFallsBack(t *testing.T) {
	h := NewHandler(Config{}, replyWith(assistant.TextReply("hello"), nil),
		gateway.NewRenderer(gateway.ButtonModeText), failingFormat{}, nil)

	rec := postWebhook(t, h, inbound("hi", "+1555"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, DefaultFallbackReply, parseTwiML(t, rec).Message.Body)
}

func TestWebhookBaseURLFromRequest(t *testing.T) {
	h := NewHandler(Config{}, replyWith(assistant.TextReply("x\na.png"), nil),
		gateway.NewRenderer(gateway.ButtonModeText), gateway.TwiMLFormat{}, nil)

	req := httptest.NewRequest(http.MethodPost, "http://internal:5000/webhook", strings.NewReader(inbound("hi", "+1").Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set("X-Forwarded-Host", "bot.example.com")
	rec := httptest.NewRecorder()
	h.Webhook(rec, req)

	doc := parseTwiML(t, rec)
	require.Len(t, doc.Message.Media, 1)
	assert.Equal(t, "https://bot.example.com/static/images/a.png", doc.Message.Media[0])
}

func newReplayStore(t *testing.T) replay.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return replay.NewRedisStore(client, time.Minute)
}

func TestWebhookReplaysRetriedDelivery(t *testing.T) {
	fetcher := &stubFetcher{fn: func(n int) (assistant.RawReply, error) {
		if n == 1 {
			return assistant.TextReply("first answer"), nil
		}
		return assistant.TextReply("second answer"), nil
	}}
	recorder := &fakeRecorder{}
	h := newTwiMLHandler(fetcher, WithReplayStore(newReplayStore(t)), WithRecorder(recorder))

	form := inbound("hi", "+1555")
	form.Set("MessageSid", "SM100")
	first := postWebhook(t, h, form)
	second := postWebhook(t, h, form)

	assert.Len(t, fetcher.calls, 1)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "application/xml", second.Header().Get("Content-Type"))
	assert.Equal(t, []recordedInbound{{OutcomeOK}, {OutcomeReplayed}}, recorder.inbound)
}

func TestWebhookDoesNotReplayFallback(t *testing.T) {
	fetcher := &stubFetcher{fn: func(n int) (assistant.RawReply, error) {
		if n == 1 {
			return assistant.RawReply{}, assistant.ErrCollaboratorUnavailable
		}
		return assistant.TextReply("recovered"), nil
	}}
	h := newTwiMLHandler(fetcher, WithReplayStore(newReplayStore(t)))

	form := inbound("hi", "+1555")
	form.Set("MessageSid", "SM200")
	assert.Equal(t, DefaultFallbackReply, parseTwiML(t, postWebhook(t, h, form)).Message.Body)
	assert.Equal(t, "recovered", parseTwiML(t, postWebhook(t, h, form)).Message.Body)
	assert.Len(t, fetcher.calls, 2)
}

func TestWebhookWithoutMessageSidSkipsReplay(t *testing.T) {
	fetcher := replyWith(assistant.TextReply("hello"), nil)
	h := newTwiMLHandler(fetcher, WithReplayStore(newReplayStore(t)))

	postWebhook(t, h, inbound("hi", "+1555"))
	postWebhook(t, h, inbound("hi", "+1555"))
	assert.Len(t, fetcher.calls, 2)
}

func TestIndex(t *testing.T) {
	rec := httptest.NewRecorder()
	Index(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Greeting, rec.Body.String())
}

func TestHealthCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestNewHandlerPanicsWithoutFetcher(t *testing.T) {
	assert.Panics(t, func() {
		NewHandler(Config{}, nil, gateway.Renderer{}, nil, nil)
	})
}

func TestParseInboundTrims(t *testing.T) {
	form := url.Values{"Body": {"  hello\n"}, "From": {" whatsapp:+1555 "}, "MessageSid": {"SM1"}, "To": {"+1999"}}
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	in, err := ParseInbound(req)
	require.NoError(t, err)
	assert.Equal(t, Inbound{MessageSid: "SM1", From: "whatsapp:+1555", To: "+1999", Body: "hello"}, in)
}
