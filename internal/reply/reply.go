// Package reply turns a raw collaborator reply into the canonical reply the
// gateway renderer consumes: text, at most one image and quick-reply options.
package reply

import "github.com/wolfman30/dialogflow-bridge/internal/assistant"

// Option is a quick reply: Label is shown, Value is sent back when chosen.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Reply is the transport-agnostic reply model.
type Reply struct {
	Text     string   `json:"text"`
	ImageRef string   `json:"image_ref,omitempty"`
	Options  []Option `json:"options"`
}

// HasImage reports whether an image should be attached.
func (r Reply) HasImage() bool {
	return r.ImageRef != ""
}

// HasOptions reports whether quick replies are present.
func (r Reply) HasOptions() bool {
	return len(r.Options) > 0
}

// Normalize builds the canonical reply. It never fails: missing or oddly
// shaped pieces of the raw reply simply contribute nothing.
func Normalize(raw assistant.RawReply) Reply {
	text, image := ExtractImage(raw.Text)
	if image == "" {
		image = payloadImage(raw.Messages)
	}
	return Reply{
		Text:     text,
		ImageRef: image,
		Options:  ExtractOptions(raw.Messages),
	}
}

// Text builds a reply with no image and no options.
func Text(text string) Reply {
	return Reply{Text: text, Options: []Option{}}
}
