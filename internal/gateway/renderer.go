// Package gateway renders canonical replies into outbound messaging-gateway
// messages and encodes them for the webhook response.
package gateway

import (
	"net/url"
	"strings"

	"github.com/wolfman30/dialogflow-bridge/internal/reply"
)

// ImagePath is the static route images are served from.
const ImagePath = "/static/images/"

// ButtonMode selects how quick replies are rendered.
type ButtonMode string

const (
	// ButtonModeInteractive renders options as structured buttons.
	ButtonModeInteractive ButtonMode = "interactive"
	// ButtonModeText appends one "<label>: <value>" line per option to the body.
	ButtonModeText ButtonMode = "text"
)

// Button is an interactive quick reply.
type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// OutboundMessage is the gateway-side message built from a reply.
type OutboundMessage struct {
	To        string   `json:"to,omitempty"`
	Body      string   `json:"body"`
	MediaURLs []string `json:"media_urls,omitempty"`
	Buttons   []Button `json:"buttons,omitempty"`
}

// Kind labels the message for logs and metrics.
func (m OutboundMessage) Kind() string {
	switch {
	case len(m.Buttons) > 0:
		return "interactive"
	case len(m.MediaURLs) > 0:
		return "media"
	default:
		return "text"
	}
}

// Renderer converts canonical replies into outbound messages.
type Renderer struct {
	Mode ButtonMode
}

// NewRenderer returns a renderer; unknown modes fall back to text.
func NewRenderer(mode ButtonMode) Renderer {
	if mode != ButtonModeInteractive {
		mode = ButtonModeText
	}
	return Renderer{Mode: mode}
}

// Render builds the outbound message. baseURL is the public origin the
// gateway fetches media from.
func (r Renderer) Render(rep reply.Reply, baseURL string) OutboundMessage {
	msg := OutboundMessage{Body: rep.Text}
	if rep.HasImage() {
		msg.MediaURLs = []string{MediaURL(baseURL, rep.ImageRef)}
	}
	if !rep.HasOptions() {
		return msg
	}

	if r.Mode == ButtonModeInteractive {
		msg.Buttons = make([]Button, 0, len(rep.Options))
		for _, opt := range rep.Options {
			msg.Buttons = append(msg.Buttons, Button{ID: opt.Value, Title: opt.Label})
		}
		return msg
	}
	msg.Body = AppendOptionLines(msg.Body, rep.Options)
	return msg
}

// MediaURL joins the public origin, the static image route and the file name.
// References that are already absolute http(s) URLs are used as is.
func MediaURL(baseURL, imageRef string) string {
	if u, err := url.Parse(imageRef); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return imageRef
	}
	return strings.TrimRight(baseURL, "/") + ImagePath + url.PathEscape(imageRef)
}

// AppendOptionLines appends one "<label>: <value>" line per option.
func AppendOptionLines(body string, options []reply.Option) string {
	var b strings.Builder
	b.WriteString(body)
	for _, opt := range options {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(opt.Label)
		b.WriteString(": ")
		b.WriteString(opt.Value)
	}
	return b.String()
}
