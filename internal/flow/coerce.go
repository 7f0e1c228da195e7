package flow

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"fleet-assist/backend/internal/schema"
)

var errNotObject = errors.New("model output is not a JSON object")

// Coerce parses raw model text as a single JSON object and validates it
// against out. A surrounding markdown code fence is removed first; nothing
// else about the text is altered.
func Coerce(raw string, out schema.Schema) (map[string]any, error) {
	text := stripFence(raw)
	if text == "" {
		return nil, errors.New("model output is empty")
	}

	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil, fmt.Errorf("failed to parse model output: %w", err)
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	if err := out.Validate(obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func stripFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") || !strings.HasSuffix(text, "```") || len(text) < 6 {
		return text
	}
	body := strings.TrimSuffix(text[3:], "```")
	// Drop the info string ("json") on the opening line.
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		if info := strings.TrimSpace(body[:nl]); !strings.ContainsAny(info, "{[\"") {
			body = body[nl+1:]
		}
	}
	return strings.TrimSpace(body)
}
