package gateway

import (
	"encoding/xml"
	"fmt"
)

// Format encodes an outbound message as a webhook response body.
type Format interface {
	Name() string
	ContentType() string
	SupportsInteractive() bool
	Encode(msg OutboundMessage) ([]byte, error)
}

type twimlResponse struct {
	XMLName xml.Name      `xml:"Response"`
	Message *twimlMessage `xml:"Message,omitempty"`
}

type twimlMessage struct {
	Body  string   `xml:"Body"`
	Media []string `xml:"Media,omitempty"`
}

// TwiMLFormat writes Twilio Messaging TwiML. TwiML has no interactive
// elements, so buttons are written as text lines.
type TwiMLFormat struct{}

func (TwiMLFormat) Name() string              { return "twiml" }
func (TwiMLFormat) ContentType() string       { return "application/xml" }
func (TwiMLFormat) SupportsInteractive() bool { return false }

// Encode renders <Response><Message><Body/><Media/></Message></Response>.
func (TwiMLFormat) Encode(msg OutboundMessage) ([]byte, error) {
	body := msg.Body
	if len(msg.Buttons) > 0 {
		body = appendButtonLines(body, msg.Buttons)
	}
	doc := twimlResponse{Message: &twimlMessage{Body: body, Media: msg.MediaURLs}}
	out, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("gateway: encode twiml: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

func appendButtonLines(body string, buttons []Button) string {
	for _, b := range buttons {
		if body != "" {
			body += "\n"
		}
		body += b.Title + ": " + b.ID
	}
	return body
}
