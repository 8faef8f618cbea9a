package workflow

import (
	"encoding/json"
	"fmt"
)

// tagObject injects a discriminator field into an encoded JSON object.
func tagObject(kind string, body []byte) (json.RawMessage, error) {
	return tagObjectField("kind", kind, body)
}

func tagObjectField(field, value string, body []byte) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage, 1)
	}
	tag, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	fields[field] = tag
	return json.Marshal(fields)
}

// untagObject reads the "kind" discriminator out of an encoded JSON object.
// The returned body is the original object; variant structs simply ignore
// the discriminator field.
func untagObject(raw json.RawMessage) (string, json.RawMessage, error) {
	return untagObjectField("kind", raw)
}

func untagObjectField(field string, raw json.RawMessage) (string, json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", nil, err
	}
	tag, ok := fields[field]
	if !ok {
		return "", nil, fmt.Errorf("missing %q discriminator", field)
	}
	var value string
	if err := json.Unmarshal(tag, &value); err != nil {
		return "", nil, fmt.Errorf("decode %q discriminator: %w", field, err)
	}
	return value, raw, nil
}
