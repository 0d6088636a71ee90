package kafka

import (
	"encoding/json"
	"fmt"
)

func MustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// Decode unmarshals an envelope or payload, naming what it was decoding.
func Decode[T any](what string, b []byte) (T, error) {
	var t T
	if err := json.Unmarshal(b, &t); err != nil {
		return t, fmt.Errorf("decode %s: %w", what, err)
	}
	return t, nil
}
