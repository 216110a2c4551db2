package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	// \x60 is a backtick.
	fencedObject = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")
	fencedArray  = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*(\\[.*\\])\\s*\x60\x60\x60")
)

// ParseJSON decodes a model reply into T. It accepts bare JSON, JSON in a
// markdown fence, and JSON embedded in surrounding prose.
func ParseJSON[T any](reply string) (*T, error) {
	raw := extractJSON(reply)
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode model reply: %w (extracted: %s)", err, truncate(raw, 300))
	}
	return &out, nil
}

func extractJSON(reply string) string {
	reply = strings.TrimSpace(reply)
	if strings.HasPrefix(reply, "```") {
		if m := fencedObject.FindStringSubmatch(reply); len(m) > 1 {
			return m[1]
		}
		if m := fencedArray.FindStringSubmatch(reply); len(m) > 1 {
			return m[1]
		}
	}
	if strings.HasPrefix(reply, "{") || strings.HasPrefix(reply, "[") {
		return reply
	}
	if s, ok := span(reply, "{", "}"); ok {
		return s
	}
	if s, ok := span(reply, "[", "]"); ok {
		return s
	}
	return reply
}

func span(s, open, close string) (string, bool) {
	i, j := strings.Index(s, open), strings.LastIndex(s, close)
	if i < 0 || j <= i {
		return "", false
	}
	return s[i : j+1], true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
