package federation

import (
	"sync"
	"time"
)

// maxBufferedEvents caps the analytics event buffer so a long federation
// outage cannot grow memory without bound. The oldest events are dropped
// first.
const maxBufferedEvents = 256

// defaultResponseTimeMs is reported until real response times are observed.
const defaultResponseTimeMs = 100

// tracker accumulates usage counters between analytics reports. All methods
// are safe for concurrent use by the reporting loops.
type tracker struct {
	mu sync.Mutex

	start time.Time

	requests   int64
	successful int64
	failed     int64
	processed  int64

	processingJobs int64
	filesProcessed int64

	responseTotalMs float64
	responseSamples int64

	peakMemoryMB float64

	events []AnalyticsEvent
}

func newTracker() *tracker {
	return &tracker{start: time.Now()}
}

// RecordRequest counts one exchange with the federation and the bytes it
// processed.
func (t *tracker) RecordRequest(ok bool, bytes int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests++
	if ok {
		t.successful++
	} else {
		t.failed++
	}
	t.processed += bytes
}

// RecordJob counts a completed processing job and its record volume.
func (t *tracker) RecordJob(records int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processingJobs++
	t.processed += records
}

// RecordFile counts one generated or analyzed file.
func (t *tracker) RecordFile() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filesProcessed++
}

// ObserveResponseTime folds one response latency into the running average.
func (t *tracker) ObserveResponseTime(ms float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responseTotalMs += ms
	t.responseSamples++
}

// ObserveMemory keeps the peak resident memory seen so far.
func (t *tracker) ObserveMemory(rssBytes uint64) {
	mb := float64(rssBytes) / 1024 / 1024
	t.mu.Lock()
	defer t.mu.Unlock()
	if mb > t.peakMemoryMB {
		t.peakMemoryMB = mb
	}
}

// AddEvent buffers an analytics event for the next report.
func (t *tracker) AddEvent(ev AnalyticsEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.events) >= maxBufferedEvents {
		t.events = t.events[1:]
	}
	t.events = append(t.events, ev)
}

// ErrorRate returns failed requests as a percentage of all requests.
func (t *tracker) ErrorRate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errorRateLocked()
}

// Uptime is the time since the tracker started.
func (t *tracker) Uptime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Since(t.start)
}

// Performance summarizes request handling for the heartbeat.
func (t *tracker) Performance(rssBytes uint64) PerformanceMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	up := time.Since(t.start).Seconds()
	rps := 0.0
	if up > 0 {
		rps = float64(t.requests) / up
	}
	return PerformanceMetrics{
		RequestsPerSecond:   rps,
		AverageResponseTime: t.averageResponseLocked(),
		MemoryUsageMB:       float64(rssBytes) / 1024 / 1024,
	}
}

// Report snapshots the counters into an analytics payload.
func (t *tracker) Report() *AnalyticsReport {
	t.mu.Lock()
	defer t.mu.Unlock()
	events := make([]AnalyticsEvent, len(t.events))
	copy(events, t.events)
	return &AnalyticsReport{
		RequestCount:        t.requests,
		SuccessfulRequests:  t.successful,
		FailedRequests:      t.failed,
		AverageResponseTime: t.averageResponseLocked(),
		TotalDataProcessed:  t.processed,
		Uptime:              int64(time.Since(t.start).Seconds()),
		CustomMetrics: map[string]float64{
			"data_processing_jobs": float64(t.processingJobs),
			"files_processed":      float64(t.filesProcessed),
			"error_rate":           t.errorRateLocked(),
			"memory_peak_mb":       t.peakMemoryMB,
		},
		Events: events,
	}
}

// FlushEvents clears the event buffer after a successful report.
func (t *tracker) FlushEvents() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = t.events[:0]
}

func (t *tracker) errorRateLocked() float64 {
	if t.requests == 0 {
		return 0
	}
	return float64(t.failed) / float64(t.requests) * 100
}

func (t *tracker) averageResponseLocked() float64 {
	if t.responseSamples == 0 {
		return defaultResponseTimeMs
	}
	return t.responseTotalMs / float64(t.responseSamples)
}
