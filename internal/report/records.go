package report

import (
	"sort"
	"strconv"
	"time"

	"github.com/wesleyorama2/crudbench/internal/http"
	"github.com/wesleyorama2/crudbench/internal/monitor"
)

// TimestampLayout is ISO-8601 with microseconds and the local offset.
const TimestampLayout = "2006-01-02T15:04:05.000000-07:00"

// Column headers of the two record streams.
var (
	RequestHeader = []string{"timestamp", "success", "latency_ms", "status_code"}
	SampleHeader  = []string{"timestamp", "cpu_percent", "rss_bytes"}
)

// RequestRecord is one row of the per-request stream.
type RequestRecord struct {
	Timestamp  time.Time
	Success    bool
	LatencyMs  float64
	StatusCode int // 0 when no status was observed
}

// Row formats the record as CSV fields: success is 0/1, latency has three
// decimals and the status is blank when absent.
func (r RequestRecord) Row() []string {
	success := "0"
	if r.Success {
		success = "1"
	}
	status := ""
	if r.StatusCode != 0 {
		status = strconv.Itoa(r.StatusCode)
	}
	return []string{
		r.Timestamp.Format(TimestampLayout),
		success,
		strconv.FormatFloat(r.LatencyMs, 'f', 3, 64),
		status,
	}
}

// SampleRecord is one row of the per-sample stream.
type SampleRecord struct {
	Timestamp  time.Time
	CPUPercent float64
	RSSBytes   uint64
}

// Row formats the record as CSV fields.
func (r SampleRecord) Row() []string {
	return []string{
		r.Timestamp.Format(TimestampLayout),
		strconv.FormatFloat(r.CPUPercent, 'f', -1, 64),
		strconv.FormatUint(r.RSSBytes, 10),
	}
}

// RequestRecords shapes outcomes into records ordered by timestamp.
func RequestRecords(outcomes []http.Outcome) []RequestRecord {
	records := make([]RequestRecord, len(outcomes))
	for i, o := range outcomes {
		records[i] = RequestRecord{
			Timestamp: o.Timestamp,
			Success:   o.Success,
			LatencyMs: o.LatencyMs(),
		}
		if code, ok := o.Status(); ok {
			records[i].StatusCode = code
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records
}

// SampleRecords shapes monitor samples into records, keeping their order.
func SampleRecords(samples []monitor.Sample) []SampleRecord {
	records := make([]SampleRecord, len(samples))
	for i, s := range samples {
		records[i] = SampleRecord{
			Timestamp:  s.Timestamp,
			CPUPercent: s.CPUPercent,
			RSSBytes:   s.RSSBytes,
		}
	}
	return records
}
