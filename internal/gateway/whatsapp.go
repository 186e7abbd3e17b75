package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
)

// WhatsApp Cloud API limits for interactive messages.
const (
	maxReplyButtons   = 3
	maxListRows       = 10
	maxButtonTitle    = 20
	maxRowTitle       = 24
	maxInteractiveLen = 1024
	listButtonLabel   = "Options"
	defaultPrompt     = "Please choose an option"
)

type waEnvelope struct {
	Messages []waMessage `json:"messages"`
}

type waMessage struct {
	MessagingProduct string         `json:"messaging_product"`
	RecipientType    string         `json:"recipient_type"`
	To               string         `json:"to,omitempty"`
	Type             string         `json:"type"`
	Text             *waText        `json:"text,omitempty"`
	Image            *waImage       `json:"image,omitempty"`
	Interactive      *waInteractive `json:"interactive,omitempty"`
}

type waText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type waImage struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

type waInteractive struct {
	Type   string   `json:"type"`
	Body   waBody   `json:"body"`
	Action waAction `json:"action"`
}

type waBody struct {
	Text string `json:"text"`
}

type waAction struct {
	Buttons  []waButton  `json:"buttons,omitempty"`
	Button   string      `json:"button,omitempty"`
	Sections []waSection `json:"sections,omitempty"`
}

type waButton struct {
	Type  string        `json:"type"`
	Reply waButtonReply `json:"reply"`
}

type waButtonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type waSection struct {
	Title string  `json:"title,omitempty"`
	Rows  []waRow `json:"rows"`
}

type waRow struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// WhatsAppFormat writes WhatsApp Cloud API message objects: up to three
// options become reply buttons, up to ten a list, and any further options are
// appended to the body as text lines. Options the API would reject (empty id,
// duplicate id or title) are written as text lines too.
type WhatsAppFormat struct{}

func (WhatsAppFormat) Name() string              { return "whatsapp" }
func (WhatsAppFormat) ContentType() string       { return "application/json" }
func (WhatsAppFormat) SupportsInteractive() bool { return true }

// Encode renders {"messages": [...]} in send order.
func (WhatsAppFormat) Encode(msg OutboundMessage) ([]byte, error) {
	to := whatsAppRecipient(msg.To)
	var messages []waMessage

	var interactive *waInteractive
	if len(msg.Buttons) > 0 {
		interactive = buildInteractive(msg.Body, msg.Buttons)
	}

	if interactive == nil {
		body := appendButtonLines(msg.Body, msg.Buttons)
		switch {
		case len(msg.MediaURLs) > 0:
			for i, link := range msg.MediaURLs {
				img := &waImage{Link: link}
				if i == 0 {
					img.Caption = body
				}
				messages = append(messages, newWAMessage(to, "image", func(m *waMessage) { m.Image = img }))
			}
		default:
			messages = append(messages, newWAMessage(to, "text", func(m *waMessage) {
				m.Text = &waText{Body: body}
			}))
		}
	} else {
		for _, link := range msg.MediaURLs {
			img := &waImage{Link: link}
			messages = append(messages, newWAMessage(to, "image", func(m *waMessage) { m.Image = img }))
		}
		messages = append(messages, newWAMessage(to, "interactive", func(m *waMessage) { m.Interactive = interactive }))
	}

	out, err := json.Marshal(waEnvelope{Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("gateway: encode whatsapp: %w", err)
	}
	return out, nil
}

func newWAMessage(to, typ string, fill func(*waMessage)) waMessage {
	m := waMessage{MessagingProduct: "whatsapp", RecipientType: "individual", To: to, Type: typ}
	fill(&m)
	return m
}

// buildInteractive returns nil when no button qualifies as an interactive
// choice.
func buildInteractive(body string, buttons []Button) *waInteractive {
	if strings.TrimSpace(body) == "" {
		body = defaultPrompt
	}
	chosen, rest := usableButtons(buttons, maxRowTitle, maxListRows)
	if len(chosen) == 0 {
		return nil
	}

	if len(chosen) <= maxReplyButtons {
		chosen, rest = usableButtons(buttons, maxButtonTitle, maxReplyButtons)
		if len(chosen) == 0 {
			return nil
		}
		action := waAction{}
		for _, b := range chosen {
			action.Buttons = append(action.Buttons, waButton{
				Type:  "reply",
				Reply: waButtonReply{ID: b.ID, Title: b.Title},
			})
		}
		return &waInteractive{Type: "button", Body: waBody{Text: interactiveBody(appendButtonLines(body, rest))}, Action: action}
	}

	section := waSection{}
	for _, b := range chosen {
		section.Rows = append(section.Rows, waRow{ID: b.ID, Title: b.Title})
	}
	return &waInteractive{
		Type:   "list",
		Body:   waBody{Text: interactiveBody(appendButtonLines(body, rest))},
		Action: waAction{Button: listButtonLabel, Sections: []waSection{section}},
	}
}

// usableButtons picks up to limit buttons the Cloud API accepts: a non-empty id
// and title, with ids and truncated titles unique. Everything else is returned
// in its original order to be written as text lines.
func usableButtons(buttons []Button, titleLimit, limit int) (chosen, rest []Button) {
	ids := make(map[string]bool, len(buttons))
	titles := make(map[string]bool, len(buttons))
	for _, b := range buttons {
		title := truncateRunes(b.Title, titleLimit)
		if len(chosen) == limit || strings.TrimSpace(b.ID) == "" || strings.TrimSpace(title) == "" || ids[b.ID] || titles[title] {
			rest = append(rest, b)
			continue
		}
		ids[b.ID], titles[title] = true, true
		chosen = append(chosen, Button{ID: b.ID, Title: title})
	}
	return chosen, rest
}

func interactiveBody(body string) string {
	return truncateRunes(body, maxInteractiveLen)
}

func whatsAppRecipient(to string) string {
	to = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(to), "whatsapp:"))
	return strings.TrimPrefix(to, "+")
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit]))
}
