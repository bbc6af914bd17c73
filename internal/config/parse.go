package config

import (
	"fmt"
	"strings"
	"time"
)

// Supported HTTP methods.
const (
	MethodGet    = "GET"
	MethodPost   = "POST"
	MethodPut    = "PUT"
	MethodDelete = "DELETE"
)

// ParseMethod normalises s to upper case and checks that it is one of
// GET, POST, PUT or DELETE.
func ParseMethod(s string) (string, error) {
	method := strings.ToUpper(strings.TrimSpace(s))
	switch method {
	case MethodGet, MethodPost, MethodPut, MethodDelete:
		return method, nil
	case "":
		return "", &ValidationError{Field: "method", Message: "method is required"}
	default:
		return "", &ValidationError{
			Field:   "method",
			Message: fmt.Sprintf("unsupported method %q (expected GET, POST, PUT or DELETE)", s),
		}
	}
}

// ParseHeaders parses "Key:Value" entries into a header map.
//
// Whitespace around keys and values is trimmed and the value may itself
// contain colons. An entry without a colon or with an empty key is an error.
func ParseHeaders(entries []string) (map[string]string, error) {
	headers := make(map[string]string, len(entries))
	errs := &ValidationErrors{}

	for i, entry := range entries {
		key, value, ok := strings.Cut(entry, ":")
		key = strings.TrimSpace(key)
		if !ok {
			errs.Add(fmt.Sprintf("headers[%d]", i), fmt.Sprintf("expected 'Key:Value', got %q", entry))
			continue
		}
		if key == "" {
			errs.Add(fmt.Sprintf("headers[%d]", i), fmt.Sprintf("empty header name in %q", entry))
			continue
		}
		headers[key] = strings.TrimSpace(value)
	}

	if err := errs.Err(); err != nil {
		return nil, err
	}
	return headers, nil
}

// ParseDurationString parses a duration string with support for common formats.
//
// Supported formats:
//   - Standard Go duration: "30s", "2m", "1h30m", "500ms"
//   - Seconds as integer: "30" (treated as 30 seconds)
func ParseDurationString(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	var seconds int
	var rest string
	if n, _ := fmt.Sscanf(s, "%d%s", &seconds, &rest); n == 1 {
		return time.Duration(seconds) * time.Second, nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}

// hasHeader reports whether headers contains name, ignoring case.
func hasHeader(headers map[string]string, name string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
