package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// PayloadKind tags the variant held by a Payload.
type PayloadKind int

const (
	// PayloadNone sends no request body.
	PayloadNone PayloadKind = iota
	// PayloadRaw sends the body bytes as given, with no implied content type.
	PayloadRaw
	// PayloadJSON sends a validated JSON document as application/json.
	PayloadJSON
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadNone:
		return "none"
	case PayloadRaw:
		return "raw"
	case PayloadJSON:
		return "json"
	default:
		return "unknown"
	}
}

// Payload is the request body, chosen once when the run is configured.
// The zero value is an empty body.
type Payload struct {
	kind PayloadKind
	body []byte
}

// NoBody returns an empty payload.
func NoBody() Payload {
	return Payload{}
}

// RawBody returns a payload that sends b verbatim. An empty b is NoBody.
func RawBody(b []byte) Payload {
	if len(b) == 0 {
		return NoBody()
	}
	body := make([]byte, len(b))
	copy(body, b)
	return Payload{kind: PayloadRaw, body: body}
}

// JSONPayload validates doc as JSON and returns a JSON payload.
func JSONPayload(doc string) (Payload, error) {
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return NoBody(), &ValidationError{Field: "data", Message: "JSON payload is empty"}
	}
	if !gjson.Valid(doc) {
		return NoBody(), &ValidationError{Field: "data", Message: fmt.Sprintf("invalid JSON data: %s", truncate(doc, 64))}
	}
	return Payload{kind: PayloadJSON, body: []byte(doc)}, nil
}

// JSONValue marshals v and returns it as a JSON payload.
func JSONValue(v interface{}) (Payload, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return NoBody(), &ValidationError{Field: "json", Message: fmt.Sprintf("cannot encode JSON payload: %v", err)}
	}
	return JSONPayload(string(b))
}

// Kind returns the payload variant.
func (p Payload) Kind() PayloadKind {
	return p.kind
}

// Bytes returns the body bytes. Callers must not modify the returned slice.
func (p Payload) Bytes() []byte {
	return p.body
}

// Len returns the body size in bytes.
func (p Payload) Len() int {
	return len(p.body)
}

// ContentType returns the content type implied by the variant, or "".
func (p Payload) ContentType() string {
	if p.kind == PayloadJSON {
		return "application/json"
	}
	return ""
}

// Describe returns a short human-readable description of the payload.
func (p Payload) Describe() string {
	switch p.kind {
	case PayloadRaw:
		return fmt.Sprintf("raw (%d bytes)", len(p.body))
	case PayloadJSON:
		doc := gjson.ParseBytes(p.body)
		switch {
		case doc.IsArray():
			return fmt.Sprintf("json array of %d elements (%d bytes)", len(doc.Array()), len(p.body))
		case doc.IsObject():
			n := 0
			doc.ForEach(func(_, _ gjson.Result) bool {
				n++
				return true
			})
			return fmt.Sprintf("json object with %d fields (%d bytes)", n, len(p.body))
		default:
			return fmt.Sprintf("json %s (%d bytes)", doc.Type, len(p.body))
		}
	default:
		return "none"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
