package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type jsonFields map[string]json.RawMessage

func decodeObject(buf []byte, kind error) (jsonFields, error) {
	var fields jsonFields
	if err := json.Unmarshal(buf, &fields); err != nil {
		return nil, fmt.Errorf("%w: %s", kind, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not an object", kind)
	}
	return fields, nil
}

func (f jsonFields) has(name string) bool {
	raw, ok := f[name]
	return ok && !isNull(raw)
}

// stringField decodes a mandatory string field. null is not a string.
func (f jsonFields) stringField(name string, kind error) (string, error) {
	var value string
	if err := f.field(name, &value, kind); err != nil {
		return "", err
	}
	return value, nil
}

func (f jsonFields) field(name string, v interface{}, kind error) error {
	if !f.has(name) {
		return fmt.Errorf("%w: missing %s", kind, name)
	}
	if err := json.Unmarshal(f[name], v); err != nil {
		return fmt.Errorf("%w: wrong type for %s", kind, name)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
