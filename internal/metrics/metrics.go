package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poemgrid",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "poemgrid",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	liveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "poemgrid",
		Name:      "live_rooms",
		Help:      "Current number of rooms, the admin room included",
	})

	liveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "poemgrid",
		Name:      "live_connections",
		Help:      "Current number of attached realtime connections",
	})

	eventsBroadcast = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poemgrid",
		Name:      "events_broadcast_total",
		Help:      "Total realtime events fanned out, by event type",
	}, []string{"event"})
)

// SetLiveRooms updates the room gauge.
func SetLiveRooms(n int) { liveRooms.Set(float64(n)) }

// SetLiveConnections updates the connection gauge.
func SetLiveConnections(n int) { liveConnections.Set(float64(n)) }

// CountEvent records one broadcast of the given event type.
func CountEvent(event string) { eventsBroadcast.WithLabelValues(event).Inc() }

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack is required so the websocket upgrade still works behind the
// middleware.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("metrics: underlying ResponseWriter does not support hijacking")
}

// Middleware records request metrics with Prometheus labels.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		status := strconv.Itoa(rec.status)
		httpRequests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpLatency.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
