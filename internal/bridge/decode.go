package bridge

import (
	"encoding/json"
	"strings"
)

// decodeBody parses a Bridge response body into out. Some Bridge deployments
// prepend PHP notices or other noise to otherwise valid JSON payloads, so a
// failed direct parse falls back to scanning for the outermost object span
// and parsing that substring. The fallback runs once; anything else is a
// decode failure.
func decodeBody(body []byte, out any) error {
	trimmed := strings.TrimSpace(string(body))
	if err := json.Unmarshal([]byte(trimmed), out); err == nil {
		return nil
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return errNoJSONObject
	}
	return json.Unmarshal([]byte(trimmed[start:end+1]), out)
}
