package utils

import (
	"fmt"

	"github.com/goccy/go-json"
)

// EncodeJSON encodes any value to indented JSON bytes
func EncodeJSON[T any](value T) ([]byte, error) {
	bytes, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	return bytes, nil
}

// DecodeJSON decodes JSON bytes to the specified type
func DecodeJSON[T any](data []byte) (T, error) {
	var result T
	if len(data) == 0 {
		return result, fmt.Errorf("JSON data is empty")
	}

	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal JSON (bytes length: %d): %w", len(data), err)
	}

	return result, nil
}
