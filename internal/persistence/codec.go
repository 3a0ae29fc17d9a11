package persistence

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// EncodeValue serializes arbitrary Go values using encoding/gob.
// Callers must ensure that values are gob-encodable (concrete types
// carried inside `any` must be registered with gob.Register).
func EncodeValue(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	// Encode as interface{} so the payload can be decoded back into any.
	iv := v
	if err := enc.Encode(&iv); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeValue deserializes a payload produced by EncodeValue.
func DecodeValue(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var iv any
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&iv); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return iv, nil
}

// EncodeHistory serializes an instance history.
func EncodeHistory(events []HistoryEvent) ([]byte, error) {
	if len(events) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(events); err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeHistory deserializes a payload produced by EncodeHistory.
func DecodeHistory(data []byte) ([]HistoryEvent, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var events []HistoryEvent
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&events); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return events, nil
}
