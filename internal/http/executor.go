package http

import (
	"context"
	"time"
)

// Outcome records one attempted call.
//
// Success is false only for transport-level failures (connection refused,
// timeout, DNS failure, malformed or truncated response). Any HTTP status,
// including 4xx and 5xx, is a successful call. Latency is always set.
type Outcome struct {
	Success    bool
	Latency    time.Duration
	StatusCode int
	Timestamp  time.Time
	BodySize   int64
	Err        error
}

// LatencyMs returns the latency in fractional milliseconds.
func (o Outcome) LatencyMs() float64 {
	return float64(o.Latency) / float64(time.Millisecond)
}

// Status returns the status code and whether one was observed.
func (o Outcome) Status() (int, bool) {
	return o.StatusCode, o.Success
}

// Executor issues a prepared Request through a Client.
//
// Execute is safe for concurrent use, but each worker should own its Executor
// and Client so connections are reused within a worker.
type Executor struct {
	client  *Client
	request *Request
}

// NewExecutor returns an executor for req using client.
func NewExecutor(client *Client, req *Request) *Executor {
	return &Executor{client: client, request: req}
}

// Client returns the client used by the executor.
func (e *Executor) Client() *Client {
	return e.client
}

// Execute performs exactly one call and classifies it. It never fails: any
// error is reported through Outcome.Err with Success set to false.
func (e *Executor) Execute(ctx context.Context) Outcome {
	start := time.Now()
	resp, err := e.client.Do(ctx, e.request)
	end := time.Now()

	outcome := Outcome{
		Latency:   end.Sub(start),
		Timestamp: end,
	}
	if err != nil {
		outcome.Err = err
		return outcome
	}

	outcome.Success = true
	outcome.StatusCode = resp.StatusCode
	outcome.BodySize = resp.BodySize
	return outcome
}
