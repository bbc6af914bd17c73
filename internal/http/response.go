package http

import (
	"net/http"
)

// Response is the part of an HTTP response kept after the body is drained.
type Response struct {
	StatusCode int
	Status     string
	Headers    http.Header
	BodySize   int64
}
