package reply

import "github.com/wolfman30/dialogflow-bridge/internal/assistant"

const buttonType = "button"

// ExtractOptions collects button descriptors from every message payload's rich
// content, in traversal order. The result is never nil.
func ExtractOptions(messages []assistant.RawMessage) []Option {
	options := []Option{}
	for _, msg := range messages {
		payload, ok := payloadFields(msg.Payload)
		if !ok {
			continue
		}
		v, ok := lookup(payload, "richContent")
		if !ok {
			continue
		}
		groups, ok := asList(v)
		if !ok {
			continue
		}
		for _, group := range groups {
			for _, item := range groupItems(group) {
				if opt, ok := buttonOption(item); ok {
					options = append(options, opt)
				}
			}
		}
	}
	return options
}

// groupItems accepts a group as a list of items or as a lone item object.
func groupItems(group any) []any {
	if items, ok := asList(group); ok {
		return items
	}
	if _, ok := asObject(group); ok {
		return []any{group}
	}
	return nil
}

func buttonOption(item any) (Option, bool) {
	obj, ok := asObject(item)
	if !ok {
		return Option{}, false
	}
	if typ, _ := asString(obj["type"]); typ != buttonType {
		return Option{}, false
	}
	label, ok := asString(obj["text"])
	if !ok {
		return Option{}, false
	}
	value, ok := asString(obj["postback"])
	if !ok {
		return Option{}, false
	}
	return Option{Label: label, Value: value}, true
}
