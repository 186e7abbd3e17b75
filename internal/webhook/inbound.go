package webhook

import (
	"fmt"
	"net/http"
	"strings"
)

// Inbound is the subset of a Twilio Messaging webhook the bridge consumes.
type Inbound struct {
	MessageSid string
	From       string
	To         string
	Body       string
}

// ParseInbound reads the form-encoded webhook fields. Values are trimmed and
// missing fields are empty.
func ParseInbound(r *http.Request) (Inbound, error) {
	if err := r.ParseForm(); err != nil {
		return Inbound{}, fmt.Errorf("failed to parse form: %w", err)
	}
	return Inbound{
		MessageSid: strings.TrimSpace(r.FormValue("MessageSid")),
		From:       strings.TrimSpace(r.FormValue("From")),
		To:         strings.TrimSpace(r.FormValue("To")),
		Body:       strings.TrimSpace(r.FormValue("Body")),
	}, nil
}

// publicBaseURL derives the externally visible origin of the request, honoring
// reverse-proxy headers.
func publicBaseURL(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return fmt.Sprintf("%s://%s/", scheme, host)
}
