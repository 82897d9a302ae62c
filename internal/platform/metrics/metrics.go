// Package metrics keeps in-process request and domain counters and renders
// them in the Prometheus text format.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Domain event counter names.
const (
	PeriodsCreated   = "periods_created"
	RecordsGenerated = "assessment_records_generated"
	ScoresSubmitted  = "scores_submitted"
	RubricsReviewed  = "rubrics_reviewed"
	TasksReplied     = "tasks_replied"
	LoginFailures    = "login_failures"
)

type Collector struct {
	totalRequests   uint64
	clientErrors    uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64

	mu     sync.Mutex
	events map[string]uint64
}

func New() *Collector {
	return &Collector{events: map[string]uint64{}}
}

func (c *Collector) Record(status int, duration time.Duration) {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.totalRequests, 1)
	switch {
	case status == 429:
		atomic.AddUint64(&c.rateLimited, 1)
		atomic.AddUint64(&c.clientErrors, 1)
	case status >= 500:
		atomic.AddUint64(&c.errorRequests, 1)
	case status >= 400:
		atomic.AddUint64(&c.clientErrors, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// Add increments a named domain counter by n.
func (c *Collector) Add(name string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.mu.Lock()
	c.events[name] += uint64(n)
	c.mu.Unlock()
}

func (c *Collector) Inc(name string) {
	c.Add(name, 1)
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	out := map[string]any{
		"requestsTotal":     total,
		"clientErrorsTotal": atomic.LoadUint64(&c.clientErrors),
		"errorsTotal":       atomic.LoadUint64(&c.errorRequests),
		"rateLimitedTotal":  atomic.LoadUint64(&c.rateLimited),
		"avgDurationMs":     avg,
		"totalDurationMs":   totalMs,
	}
	events := map[string]uint64{}
	c.mu.Lock()
	for name, v := range c.events {
		events[name] = v
	}
	c.mu.Unlock()
	out["events"] = events
	return out
}

// WritePrometheus writes every counter as hrkpi_<name>.
func (c *Collector) WritePrometheus(w io.Writer) error {
	lines := []struct {
		name string
		help string
		v    uint64
	}{
		{"http_requests_total", "HTTP requests served.", atomic.LoadUint64(&c.totalRequests)},
		{"http_client_errors_total", "HTTP responses with a 4xx status.", atomic.LoadUint64(&c.clientErrors)},
		{"http_errors_total", "HTTP responses with a 5xx status.", atomic.LoadUint64(&c.errorRequests)},
		{"http_rate_limited_total", "Requests rejected by the rate limiter.", atomic.LoadUint64(&c.rateLimited)},
		{"http_request_duration_ms_total", "Sum of request durations in milliseconds.", atomic.LoadUint64(&c.totalDurationMs)},
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "# HELP hrkpi_%s %s\n# TYPE hrkpi_%s counter\nhrkpi_%s %d\n", l.name, l.help, l.name, l.name, l.v); err != nil {
			return err
		}
	}

	c.mu.Lock()
	names := make([]string, 0, len(c.events))
	for name := range c.events {
		names = append(names, name)
	}
	sort.Strings(names)
	values := make([]uint64, len(names))
	for i, name := range names {
		values[i] = c.events[name]
	}
	c.mu.Unlock()

	for i, name := range names {
		if _, err := fmt.Fprintf(w, "# TYPE hrkpi_%s_total counter\nhrkpi_%s_total %d\n", name, name, values[i]); err != nil {
			return err
		}
	}
	return nil
}
