// Package metrics keeps in-process counters for the HTTP API and crew runs and
// renders them in the Prometheus text exposition format.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type requestKey struct {
	route  string
	method string
	code   string
}

type latencyKey struct {
	route  string
	method string
}

type histogram struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type collector struct {
	mu       sync.Mutex
	requests map[requestKey]uint64
	latency  map[latencyKey]*histogram
	runs     map[string]uint64
	tools    map[[2]string]uint64
}

var defaultCollector = newCollector()

func newCollector() *collector {
	return &collector{
		requests: make(map[requestKey]uint64),
		latency:  make(map[latencyKey]*histogram),
		runs:     make(map[string]uint64),
		tools:    make(map[[2]string]uint64),
	}
}

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(route, method string, status int, duration time.Duration) {
	defaultCollector.observeRequest(route, method, status, duration)
}

// ObserveRun counts a finished run by outcome (succeeded, failed, retried).
func ObserveRun(outcome string) {
	defaultCollector.mu.Lock()
	defaultCollector.runs[outcome]++
	defaultCollector.mu.Unlock()
}

// ObserveToolCall counts a tool invocation.
func ObserveToolCall(tool string, failed bool) {
	result := "ok"
	if failed {
		result = "error"
	}
	defaultCollector.mu.Lock()
	defaultCollector.tools[[2]string{tool, result}]++
	defaultCollector.mu.Unlock()
}

func (c *collector) observeRequest(route, method string, status int, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests[requestKey{route: route, method: method, code: strconv.Itoa(status)}]++

	key := latencyKey{route: route, method: method}
	hist := c.latency[key]
	if hist == nil {
		hist = newHistogram()
		c.latency[key] = hist
	}
	hist.observe(duration.Seconds())
}

func newHistogram() *histogram {
	buckets := []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
	return &histogram{buckets: buckets, counts: make([]uint64, len(buckets))}
}

// observe keeps cumulative bucket counts; values above the last bound only
// show up in the +Inf bucket through count.
func (h *histogram) observe(value float64) {
	h.count++
	h.sum += value
	for idx, bound := range h.buckets {
		if value <= bound {
			for i := idx; i < len(h.counts); i++ {
				h.counts[i]++
			}
			return
		}
	}
}

// Handler exposes the metrics in Prometheus text exposition format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = fmt.Fprint(w, defaultCollector.render())
	})
}

func (c *collector) render() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	b.Grow(1024)

	reqKeys := make([]requestKey, 0, len(c.requests))
	for k := range c.requests {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		a, o := reqKeys[i], reqKeys[j]
		if a.route != o.route {
			return a.route < o.route
		}
		if a.method != o.method {
			return a.method < o.method
		}
		return a.code < o.code
	})
	b.WriteString("# HELP stackscrew_http_requests_total Total number of HTTP requests processed.\n")
	b.WriteString("# TYPE stackscrew_http_requests_total counter\n")
	for _, k := range reqKeys {
		fmt.Fprintf(&b, "stackscrew_http_requests_total{route=\"%s\",method=\"%s\",code=\"%s\"} %d\n",
			escape(k.route), escape(k.method), k.code, c.requests[k])
	}

	latKeys := make([]latencyKey, 0, len(c.latency))
	for k := range c.latency {
		latKeys = append(latKeys, k)
	}
	sort.Slice(latKeys, func(i, j int) bool {
		if latKeys[i].route != latKeys[j].route {
			return latKeys[i].route < latKeys[j].route
		}
		return latKeys[i].method < latKeys[j].method
	})
	b.WriteString("# HELP stackscrew_http_request_duration_seconds HTTP request duration in seconds.\n")
	b.WriteString("# TYPE stackscrew_http_request_duration_seconds histogram\n")
	for _, k := range latKeys {
		h := c.latency[k]
		labels := fmt.Sprintf("route=\"%s\",method=\"%s\"", escape(k.route), escape(k.method))
		for idx, bound := range h.buckets {
			fmt.Fprintf(&b, "stackscrew_http_request_duration_seconds_bucket{%s,le=\"%s\"} %d\n", labels, formatFloat(bound), h.counts[idx])
		}
		fmt.Fprintf(&b, "stackscrew_http_request_duration_seconds_bucket{%s,le=\"+Inf\"} %d\n", labels, h.count)
		fmt.Fprintf(&b, "stackscrew_http_request_duration_seconds_sum{%s} %s\n", labels, formatFloat(h.sum))
		fmt.Fprintf(&b, "stackscrew_http_request_duration_seconds_count{%s} %d\n", labels, h.count)
	}

	outcomes := make([]string, 0, len(c.runs))
	for k := range c.runs {
		outcomes = append(outcomes, k)
	}
	sort.Strings(outcomes)
	b.WriteString("# HELP stackscrew_runs_total Crew runs processed by outcome.\n")
	b.WriteString("# TYPE stackscrew_runs_total counter\n")
	for _, outcome := range outcomes {
		fmt.Fprintf(&b, "stackscrew_runs_total{outcome=\"%s\"} %d\n", escape(outcome), c.runs[outcome])
	}

	toolKeys := make([][2]string, 0, len(c.tools))
	for k := range c.tools {
		toolKeys = append(toolKeys, k)
	}
	sort.Slice(toolKeys, func(i, j int) bool {
		if toolKeys[i][0] != toolKeys[j][0] {
			return toolKeys[i][0] < toolKeys[j][0]
		}
		return toolKeys[i][1] < toolKeys[j][1]
	})
	b.WriteString("# HELP stackscrew_tool_calls_total Tool invocations by tool and result.\n")
	b.WriteString("# TYPE stackscrew_tool_calls_total counter\n")
	for _, k := range toolKeys {
		fmt.Fprintf(&b, "stackscrew_tool_calls_total{tool=\"%s\",result=\"%s\"} %d\n", escape(k[0]), k[1], c.tools[k])
	}
	return b.String()
}

func escape(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	return strings.ReplaceAll(value, "\n", "")
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
