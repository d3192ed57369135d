package reading

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeRaw parses a JSON record as stored by the node. A JSON null yields a
// nil map and no error; the caller treats it as an absent record.
func DecodeRaw(b []byte) (map[string]any, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return AsRecord(v), nil
}

// AsRecord returns v as a record map. Scalars and arrays become an empty
// record so they normalize to defaults.
func AsRecord(v any) map[string]any {
	switch m := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return m
	default:
		return map[string]any{}
	}
}

// EncodePayload renders r with the node's wire names.
func EncodePayload(r Reading) ([]byte, error) {
	b, err := json.Marshal(r.Payload())
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return b, nil
}
