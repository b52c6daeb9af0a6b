// Package nostrutil signs and validates NIP-01 events with handle keys.
package nostrutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidKey is returned for private keys that are not 32 byte hex
	// strings in the range [1, N-1] of the secp256k1 curve order.
	ErrInvalidKey = errors.New("private key must be a valid 32 byte hex string")
	// ErrInvalidEvent ...
	ErrInvalidEvent = errors.New("invalid nostr event")
	// ErrInvalidSignature ...
	ErrInvalidSignature = errors.New("event signature does not verify")
	// ErrInvalidID ...
	ErrInvalidID = errors.New("event id does not match its content")
)

// EventData holds the user provided part of an event.
type EventData struct {
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
}

// Event is a signed event. PubKey is the hex encoded x-only key of the signer
// and ID is the hex encoded SHA-256 of the canonical serialization.
type Event struct {
	EventData
	ID     string `json:"id"`
	PubKey string `json:"pub"`
	Sig    string `json:"sig"`
}

// IsSigned returns whether the event carries signer fields.
func (e Event) IsSigned() bool {
	return e.ID != "" && e.PubKey != "" && e.Sig != ""
}

// ParseEventData validates and decodes an unsigned event. Fields with a wrong
// JSON type are rejected, extra fields are ignored.
func ParseEventData(buf []byte) (*EventData, error) {
	fields, err := decodeObject(buf)
	if err != nil {
		return nil, err
	}
	return parseEventData(fields)
}

// ParseEvent validates and decodes a signed event. Only the shape is checked,
// use VerifyEvent for the signature.
func ParseEvent(buf []byte) (*Event, error) {
	fields, err := decodeObject(buf)
	if err != nil {
		return nil, err
	}
	data, err := parseEventData(fields)
	if err != nil {
		return nil, err
	}

	ev := &Event{EventData: *data}
	if err := decodeString(fields, "id", &ev.ID); err != nil {
		return nil, err
	}
	if err := decodeString(fields, "pub", &ev.PubKey); err != nil {
		return nil, err
	}
	if err := decodeString(fields, "sig", &ev.Sig); err != nil {
		return nil, err
	}
	return ev, nil
}

// IsEventData reports whether buf is a valid unsigned event.
func IsEventData(buf []byte) bool {
	_, err := ParseEventData(buf)
	return err == nil
}

// IsEvent reports whether buf is a valid signed event.
func IsEvent(buf []byte) bool {
	_, err := ParseEvent(buf)
	return err == nil
}

func parseEventData(fields map[string]json.RawMessage) (*EventData, error) {
	data := &EventData{}
	if err := decodeField(fields, "created_at", &data.CreatedAt); err != nil {
		return nil, err
	}
	if err := decodeField(fields, "kind", &data.Kind); err != nil {
		return nil, err
	}
	tags, err := decodeTags(fields)
	if err != nil {
		return nil, err
	}
	data.Tags = tags
	if err := decodeString(fields, "content", &data.Content); err != nil {
		return nil, err
	}
	return data, nil
}

func decodeObject(buf []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(buf, &fields); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEvent, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidEvent)
	}
	return fields, nil
}

func decodeTags(fields map[string]json.RawMessage) ([][]string, error) {
	var rawTags []json.RawMessage
	if err := decodeField(fields, "tags", &rawTags); err != nil {
		return nil, err
	}
	tags := make([][]string, 0, len(rawTags))
	for i, rawTag := range rawTags {
		var items []json.RawMessage
		if isNull(rawTag) || json.Unmarshal(rawTag, &items) != nil {
			return nil, fmt.Errorf("%w: tag %d must be an array of strings", ErrInvalidEvent, i)
		}
		tag := make([]string, 0, len(items))
		for _, rawItem := range items {
			var item string
			if isNull(rawItem) || json.Unmarshal(rawItem, &item) != nil {
				return nil, fmt.Errorf("%w: tag %d must be an array of strings", ErrInvalidEvent, i)
			}
			tag = append(tag, item)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func decodeString(fields map[string]json.RawMessage, name string, v *string) error {
	return decodeField(fields, name, v)
}

func decodeField(fields map[string]json.RawMessage, name string, v interface{}) error {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return fmt.Errorf("%w: missing %s", ErrInvalidEvent, name)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: wrong type for %s", ErrInvalidEvent, name)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
