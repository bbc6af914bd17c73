package http

import (
	"context"
	"net/http"
	"time"
)

// ProbeTimeout bounds the latency probe.
const ProbeTimeout = 500 * time.Millisecond

// ProbeLatency sends one HEAD request to rawURL and returns how long it took.
// The probe shares client's transport but always uses ProbeTimeout. Any HTTP
// status counts as a completed probe.
func ProbeLatency(ctx context.Context, client *Client, rawURL string) (time.Duration, error) {
	// HEAD is not a load method, so the request is built directly.
	req := &Request{Method: http.MethodHead, URL: rawURL}

	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	start := time.Now()
	if _, err := client.Do(ctx, req); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
