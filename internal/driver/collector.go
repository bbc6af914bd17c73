package driver

import (
	"sync"

	"github.com/wesleyorama2/crudbench/internal/http"
)

// Collector is an append-only outcome set safe for concurrent writers.
type Collector struct {
	mu        sync.Mutex
	outcomes  []http.Outcome
	successes int
}

// NewCollector returns a collector sized for n outcomes.
func NewCollector(n int) *Collector {
	if n < 0 {
		n = 0
	}
	return &Collector{outcomes: make([]http.Outcome, 0, n)}
}

// Add appends one outcome.
func (c *Collector) Add(o http.Outcome) {
	c.mu.Lock()
	c.outcomes = append(c.outcomes, o)
	if o.Success {
		c.successes++
	}
	c.mu.Unlock()
}

// Len returns the number of outcomes collected so far.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outcomes)
}

// Counts returns the success and failure totals.
func (c *Collector) Counts() (successes, failures int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.successes, len(c.outcomes) - c.successes
}

// Outcomes returns a copy of the collected outcomes in arrival order.
func (c *Collector) Outcomes() []http.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]http.Outcome, len(c.outcomes))
	copy(out, c.outcomes)
	return out
}
