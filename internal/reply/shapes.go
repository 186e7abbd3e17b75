package reply

// Collaborator payloads arrive in several shapes depending on the agent
// configuration and on how the vendor serialised its protobuf Struct:
//
//	direct:          {"richContent": [[item, ...]]}
//	fields-wrapped:  {"fields": {"richContent": [[item, ...]]}}
//	protobuf Struct: {"fields": {"richContent": {"listValue": {"values": [...]}}}}
//
// Each probe looks for a key in one shape and reports "no match" instead of
// failing; lookups try the probes in order and the first match wins.

type keyProbe func(payload map[string]any, key string) (any, bool)

var keyProbes = []keyProbe{directKey, fieldsWrappedKey}

func directKey(payload map[string]any, key string) (any, bool) {
	v, ok := payload[key]
	return v, ok && v != nil
}

func fieldsWrappedKey(payload map[string]any, key string) (any, bool) {
	fields, ok := unwrapValue(payload["fields"]).(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := fields[key]
	return v, ok && v != nil
}

// lookup returns the first value any probe finds for key, with protobuf Value
// wrappers removed.
func lookup(payload map[string]any, key string) (any, bool) {
	for _, probe := range keyProbes {
		if v, ok := probe(payload, key); ok {
			return unwrapValue(v), true
		}
	}
	return nil, false
}

func payloadFields(payload any) (map[string]any, bool) {
	m, ok := payload.(map[string]any)
	return m, ok && len(m) > 0
}

// unwrapValue strips one protobuf Value wrapper (stringValue, listValue, ...).
// Anything that is not a single-key wrapper is returned unchanged.
func unwrapValue(v any) any {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return v
	}
	for key, inner := range m {
		switch key {
		case "stringValue", "numberValue", "boolValue":
			return inner
		case "nullValue":
			return nil
		case "listValue":
			lv, ok := inner.(map[string]any)
			if !ok {
				return v
			}
			values, _ := lv["values"].([]any)
			if values == nil {
				values = []any{}
			}
			return values
		case "structValue":
			sv, ok := inner.(map[string]any)
			if !ok {
				return v
			}
			fields, _ := sv["fields"].(map[string]any)
			if fields == nil {
				fields = map[string]any{}
			}
			return fields
		}
	}
	return v
}

func asList(v any) ([]any, bool) {
	l, ok := unwrapValue(v).([]any)
	return l, ok
}

// asObject accepts a plain object or a protobuf Struct ({"fields": {...}}).
func asObject(v any) (map[string]any, bool) {
	m, ok := unwrapValue(v).(map[string]any)
	if !ok {
		return nil, false
	}
	if len(m) == 1 {
		if fields, ok := m["fields"].(map[string]any); ok {
			return fields, true
		}
	}
	return m, true
}

func asString(v any) (string, bool) {
	s, ok := unwrapValue(v).(string)
	return s, ok
}
