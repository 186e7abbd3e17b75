package reply

import (
	"strings"

	"github.com/wolfman30/dialogflow-bridge/internal/assistant"
)

var imageSuffixes = []string{".jpg", ".jpeg", ".png"}

// ExtractImage removes the first line naming an image file from text and
// returns the remaining text and the trimmed file name. Only one image is
// extracted; later image lines stay in the text.
func ExtractImage(text string) (string, string) {
	if text == "" {
		return "", ""
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		name := strings.TrimSpace(line)
		if !isImageName(name) {
			continue
		}
		kept := make([]string, 0, len(lines)-1)
		kept = append(kept, lines[:i]...)
		kept = append(kept, lines[i+1:]...)
		rest := strings.Join(kept, "\n")
		if onlyLineEndings(lines[i+1:]) {
			rest = strings.TrimRight(rest, "\r\n")
		}
		return rest, name
	}
	return text, ""
}

func isImageName(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range imageSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// onlyLineEndings reports whether the lines after the image line are empty,
// meaning the image was the last line and its separator should go with it.
func onlyLineEndings(lines []string) bool {
	for _, line := range lines {
		if line != "" && line != "\r" {
			return false
		}
	}
	return true
}

// payloadImage returns the first string "image" value found in a message
// payload, using the same shape probes as the option traversal.
func payloadImage(messages []assistant.RawMessage) string {
	for _, msg := range messages {
		payload, ok := payloadFields(msg.Payload)
		if !ok {
			continue
		}
		v, ok := lookup(payload, "image")
		if !ok {
			continue
		}
		if name, ok := asString(v); ok {
			if name = strings.TrimSpace(name); name != "" {
				return name
			}
		}
	}
	return ""
}
