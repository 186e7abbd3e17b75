package gateway

import (
	"fmt"
	"strings"
)

// FormatByName returns the wire format for a REPLY_FORMAT value.
func FormatByName(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "twiml":
		return TwiMLFormat{}, nil
	case "whatsapp":
		return WhatsAppFormat{}, nil
	default:
		return nil, fmt.Errorf("gateway: unknown reply format %q", name)
	}
}

// ResolveButtonMode picks the rendering strategy for a BUTTON_MODE value.
// "auto" follows the format's capability; an explicit "interactive" on a
// format without interactive support degrades to text.
func ResolveButtonMode(setting string, format Format) ButtonMode {
	switch strings.ToLower(strings.TrimSpace(setting)) {
	case "text":
		return ButtonModeText
	case "interactive", "auto", "":
		if format != nil && format.SupportsInteractive() {
			return ButtonModeInteractive
		}
	}
	return ButtonModeText
}
