package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

type counter struct {
	name string
	help string
	v    atomic.Uint64
}

type gauge struct {
	name string
	help string
	v    atomic.Int64
}

var (
	uploadsStarted   = &counter{name: "document_upload_started_total", help: "Document uploads started"}
	uploadsCompleted = &counter{name: "document_upload_completed_total", help: "Document uploads completed"}
	uploadsFailed    = &counter{name: "document_upload_failed_total", help: "Document uploads that ended in the error stage"}
	progressDropped  = &counter{name: "progress_events_dropped_total", help: "Progress events dropped for slow subscribers"}
	loginsFailed     = &counter{name: "auth_login_failed_total", help: "Rejected login attempts"}
	panics           = &counter{name: "http_panics_recovered_total", help: "Handler panics turned into 500 responses"}

	progressStreams = &gauge{name: "progress_streams_open", help: "Open progress event streams"}

	counters = []*counter{uploadsStarted, uploadsCompleted, uploadsFailed, progressDropped, loginsFailed, panics}

	uploadDuration = newHistogram([]float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000})
)

func IncUploadStarted()   { uploadsStarted.v.Add(1) }
func IncUploadCompleted() { uploadsCompleted.v.Add(1) }
func IncUploadFailed()    { uploadsFailed.v.Add(1) }

// IncProgressDropped counts progress events not delivered to a slow subscriber.
func IncProgressDropped() { progressDropped.v.Add(1) }

func IncLoginFailed() { loginsFailed.v.Add(1) }
func IncPanics()      { panics.v.Add(1) }

// StreamOpened tracks an SSE connection; call the returned func on disconnect.
func StreamOpened() func() {
	progressStreams.v.Add(1)
	var once sync.Once
	return func() { once.Do(func() { progressStreams.v.Add(-1) }) }
}

// ObserveUploadDurationMs records an upload pipeline duration in milliseconds.
func ObserveUploadDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	uploadDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Data(http.StatusOK, "text/plain; version=0.0.4", []byte(Render()))
	}
}

func Render() string {
	var buf bytes.Buffer
	for _, ctr := range counters {
		writeHeader(&buf, ctr.name, ctr.help, "counter")
		fmt.Fprintf(&buf, "%s %d\n", ctr.name, ctr.v.Load())
	}
	writeHeader(&buf, progressStreams.name, progressStreams.help, "gauge")
	fmt.Fprintf(&buf, "%s %d\n", progressStreams.name, progressStreams.v.Load())
	writeHistogram(&buf, "document_upload_duration_ms", "Upload pipeline duration in milliseconds", uploadDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{buckets: buckets, counts: make([]uint64, len(buckets))}
}

// Observe increments the first bucket that holds value; Snapshot readers
// accumulate, so each observation is stored once.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeHeader(buf *bytes.Buffer, name, help, kind string) {
	fmt.Fprintf(buf, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	writeHeader(buf, name, help, "histogram")
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=%q} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n%s_count %d\n", name, formatFloat(snap.sum), name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// Since returns the elapsed milliseconds since start.
func Since(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
