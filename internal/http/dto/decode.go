package dto

import (
	"encoding/json"
	"strings"
	"unicode"
)

// DecodeJSON unmarshals a JSON object body into v. Top-level keys may be sent
// in snake_case or camelCase; when a client sends both spellings of a field
// the snake_case one wins.
func DecodeJSON(body []byte, v any) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return err
	}

	normalized := make(map[string]json.RawMessage, len(raw))
	for key, value := range raw {
		snake := SnakeCase(key)
		if _, seen := normalized[snake]; seen && snake != key {
			continue
		}
		normalized[snake] = value
	}

	data, err := json.Marshal(normalized)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// SnakeCase converts a camelCase key such as escrowReferenceId to
// escrow_reference_id. Keys already in snake_case are returned unchanged.
func SnakeCase(key string) string {
	var b strings.Builder
	b.Grow(len(key) + 4)
	for i, r := range key {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
