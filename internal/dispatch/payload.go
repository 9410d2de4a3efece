package dispatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ValueKey is the reserved document key that holds a plain (non-JSON) payload.
const ValueKey = "value"

// Document is a structured payload.
type Document map[string]any

// InboundMessage is one message handed over by the transport. It is only
// valid for the duration of the handler call.
type InboundMessage struct {
	Topic   string
	Payload []byte
}

// Len returns the payload length in bytes.
func (m InboundMessage) Len() int {
	return len(m.Payload)
}

// ParsedPayload is an inbound payload normalised into a Document.
//
// A payload that is not a JSON object is stored as a string under ValueKey
// and Plain is set.
type ParsedPayload struct {
	Topic    string
	Document Document
	Plain    bool
}

// IsPlain reports whether the payload was not a JSON object.
func (p ParsedPayload) IsPlain() bool {
	return p.Plain
}

// PlainValue returns the raw payload text of a plain payload.
func (p ParsedPayload) PlainValue() (string, bool) {
	if !p.Plain {
		return "", false
	}
	s, ok := p.Document[ValueKey].(string)
	return s, ok
}

// PlainText is PlainValue with a JSON string literal unquoted, so both
// `12:00` and `"12:00"` yield 12:00.
func (p ParsedPayload) PlainText() (string, bool) {
	v, ok := p.PlainValue()
	if !ok {
		return "", false
	}
	var s string
	if json.Unmarshal([]byte(v), &s) == nil {
		return s, true
	}
	return v, true
}

// String returns the value stored under key, formatted with %v when it is
// not a string. Missing keys return "".
func (p ParsedPayload) String(key string) string {
	v, ok := p.Document[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// OutboundMessage is a message to publish. Payload may be a string, []byte,
// Document, map[string]any, or any other JSON-serialisable value.
type OutboundMessage struct {
	Topic    string
	Payload  any
	Retained bool
	QoS      byte
}

// Parse normalises raw bytes into a ParsedPayload. It never fails: anything
// other than a JSON object (invalid JSON, scalars, arrays, null, empty input)
// becomes a plain value.
//
// Integral numbers decode as int64, all others as float64.
func Parse(topic string, raw []byte) ParsedPayload {
	if doc, ok := decodeObject(raw); ok {
		return ParsedPayload{Topic: topic, Document: doc}
	}

	return ParsedPayload{
		Topic:    topic,
		Document: Document{ValueKey: string(raw)},
		Plain:    true,
	}
}

func decodeObject(raw []byte) (Document, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil || doc == nil {
		return nil, false
	}
	// Trailing data after the object makes the whole payload plain.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, false
	}

	for k, v := range doc {
		doc[k] = normaliseNumbers(v)
	}
	return doc, true
}

func normaliseNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, inner := range t {
			t[k] = normaliseNumbers(inner)
		}
		return t
	case []any:
		for i, inner := range t {
			t[i] = normaliseNumbers(inner)
		}
		return t
	default:
		return v
	}
}

// encodePayload serialises an outbound payload. Strings and byte slices pass
// through unchanged.
func encodePayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case nil:
		return []byte{}, nil
	case string:
		return []byte(p), nil
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEncodeFailed, err)
		}
		return b, nil
	}
}
