package payload

import "encoding/json"

// Object is a loosely-typed JSON object with absent-safe accessors.
//
// Webhook payloads from Meta are deeply nested and every field is optional in
// practice. All accessors return zero values for missing keys or type
// mismatches; none of them can fail. Decode into Object only at the edge;
// everything past the processors works with concrete types.
type Object map[string]any

// String returns the string at key, or "" when absent or not a string.
func (o Object) String(key string) string {
	if o == nil {
		return ""
	}
	s, _ := o[key].(string)
	return s
}

// Bool returns the bool at key, or false when absent or not a bool.
func (o Object) Bool(key string) bool {
	if o == nil {
		return false
	}
	b, _ := o[key].(bool)
	return b
}

// Float returns the number at key, or (0, false) when absent.
// encoding/json decodes all JSON numbers into float64.
func (o Object) Float(key string) (float64, bool) {
	if o == nil {
		return 0, false
	}
	f, ok := o[key].(float64)
	return f, ok
}

// Int returns the number at key truncated to int, or (0, false) when absent.
func (o Object) Int(key string) (int, bool) {
	f, ok := o.Float(key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Object returns the nested object at key. Missing or mistyped values yield
// a nil Object, which is itself safe to access.
func (o Object) Object(key string) Object {
	if o == nil {
		return nil
	}
	m, _ := o[key].(map[string]any)
	return Object(m)
}

// List returns the array of objects at key. Non-object elements are skipped.
func (o Object) List(key string) []Object {
	if o == nil {
		return nil
	}
	raw, _ := o[key].([]any)
	if raw == nil {
		return nil
	}
	out := make([]Object, 0, len(raw))
	for _, el := range raw {
		if m, ok := el.(map[string]any); ok {
			out = append(out, Object(m))
		}
	}
	return out
}

// Value returns the raw value at key, untyped.
func (o Object) Value(key string) any {
	if o == nil {
		return nil
	}
	return o[key]
}

// Marshal re-encodes the object verbatim for raw-payload storage.
// A nil object encodes as JSON null.
func (o Object) Marshal() json.RawMessage {
	b, err := json.Marshal(o)
	if err != nil {
		return json.RawMessage("null")
	}
	return json.RawMessage(b)
}
