package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/wesleyorama2/crudbench/internal/config"
)

// Request is a prepared call that can be issued any number of times.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Payload config.Payload
}

// NewRequest validates the method and URL and returns a reusable request.
// Headers are copied.
func NewRequest(method, rawURL string, headers map[string]string, payload config.Payload) (*Request, error) {
	m, err := config.ParseMethod(method)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &config.ValidationError{Field: "url", Message: fmt.Sprintf("invalid url %q", rawURL)}
	}

	h := make(map[string]string, len(headers))
	for k, v := range headers {
		h[k] = v
	}
	return &Request{Method: m, URL: rawURL, Headers: h, Payload: payload}, nil
}

// Build constructs an http.Request bound to ctx. Each call gets a fresh body
// reader, so the same Request can be built concurrently.
func (r *Request) Build(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if r.Payload.Len() > 0 {
		body = bytes.NewReader(r.Payload.Bytes())
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, err
	}

	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}
	if ct := r.Payload.ContentType(); ct != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", ct)
	}

	return req, nil
}
