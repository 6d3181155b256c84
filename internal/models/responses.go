package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// EncodeResponseSet serializes a response set to the JSON text stored with a result.
func EncodeResponseSet(rs ResponseSet) (string, error) {
	if rs == nil {
		rs = ResponseSet{}
	}
	b, err := json.Marshal(rs)
	if err != nil {
		return "", fmt.Errorf("encode responses: %w", err)
	}
	return string(b), nil
}

// DecodeResponseSet parses stored JSON text back into a response set.
// Non-integer values are rejected rather than truncated.
func DecodeResponseSet(s string) (ResponseSet, error) {
	out := ResponseSet{}
	if s == "" || s == "null" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decode responses: %w", err)
	}
	return out, nil
}

// ResponseKey formats a question id the way response sets key it.
func ResponseKey(questionID int) string {
	return strconv.Itoa(questionID)
}
