package inference

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNoJSONObject = errors.New("no JSON object found in response")

// ExtractJSONObject returns the first balanced top-level {...} span of s.
// Braces inside string literals are ignored, so models that wrap the object
// in prose still parse.
func ExtractJSONObject(s string) (string, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if start < 0 {
			if c == '{' {
				start = i
				depth = 1
			}
			continue
		}

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", ErrNoJSONObject
}

// DecodeJSONObject extracts the first JSON object of s into v.
func DecodeJSONObject(s string, v any) error {
	object, err := ExtractJSONObject(s)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(object), v); err != nil {
		return fmt.Errorf("json.Unmarshal(%s) > %w", object, err)
	}
	return nil
}
