package common

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseJSON extracts and unmarshals the first JSON object or array embedded
// in a reasoner reply. Replies frequently wrap the payload in markdown fences
// or prose; everything outside the outermost braces/brackets is discarded.
func ParseJSON[T any](response string) (T, error) {
	var zero T

	jsonStr, err := extract(response)
	if err != nil {
		return zero, err
	}

	var result T
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return zero, fmt.Errorf("failed to unmarshal JSON: %w\nData: %s", err, jsonStr)
	}
	return result, nil
}

func extract(s string) (string, error) {
	objStart := strings.IndexByte(s, '{')
	arrStart := strings.IndexByte(s, '[')

	start, closer := objStart, byte('}')
	if start == -1 || (arrStart != -1 && arrStart < start) {
		start, closer = arrStart, ']'
	}
	if start == -1 {
		return "", fmt.Errorf("no JSON payload found in response")
	}

	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return "", fmt.Errorf("unterminated JSON payload in response")
	}
	return s[start : end+1], nil
}
