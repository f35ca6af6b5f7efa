package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServerMetrics owns the api service's prometheus registry. Pipeline
// counters are recorded by the HTTP adapter from SearchStats so the use
// cases stay free of metrics plumbing.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchTotal          *prometheus.CounterVec
	searchDuration       *prometheus.HistogramVec
	retrievedPassages    *prometheus.HistogramVec
	forcedIncludes       *prometheus.HistogramVec
	degradedChannelTotal *prometheus.CounterVec
	rerankFallbackTotal  *prometheus.CounterVec
	answerCacheTotal     *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cqa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cqa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqa",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total successful retrieval requests by endpoint and mode.",
		},
		[]string{"service", "endpoint", "mode"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cqa",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Retrieval pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	retrievedPassages := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cqa",
			Subsystem: "search",
			Name:      "retrieved_passages",
			Help:      "Distribution of passages returned per successful request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "endpoint"},
	)
	forcedIncludes := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cqa",
			Subsystem: "search",
			Name:      "forced_includes",
			Help:      "Chunks force-inserted per single-document request to guarantee completeness.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	degradedChannelTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqa",
			Subsystem: "search",
			Name:      "degraded_channel_total",
			Help:      "Requests served with one retrieval channel unavailable.",
		},
		[]string{"service", "channel"},
	)
	rerankFallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqa",
			Subsystem: "search",
			Name:      "rerank_fallback_total",
			Help:      "Requests that kept retrieval ordering because reranking failed.",
		},
		[]string{"service"},
	)
	answerCacheTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqa",
			Subsystem: "answers",
			Name:      "cache_total",
			Help:      "Answer cache lookups by result.",
		},
		[]string{"service", "result"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchTotal,
		searchDuration,
		retrievedPassages,
		forcedIncludes,
		degradedChannelTotal,
		rerankFallbackTotal,
		answerCacheTotal,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		searchTotal:          searchTotal,
		searchDuration:       searchDuration,
		retrievedPassages:    retrievedPassages,
		forcedIncludes:       forcedIncludes,
		degradedChannelTotal: degradedChannelTotal,
		rerankFallbackTotal:  rerankFallbackTotal,
		answerCacheTotal:     answerCacheTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordSearch(service, endpoint, mode string, passages int, duration time.Duration) {
	if mode == "" {
		mode = "unknown"
	}
	m.searchTotal.WithLabelValues(service, endpoint, mode).Inc()
	m.searchDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
	m.retrievedPassages.WithLabelValues(service, endpoint).Observe(float64(passages))
}

func (m *HTTPServerMetrics) RecordPipelineStats(service string, forcedIncluded int, degradedChannel string, rerankFallback bool) {
	m.forcedIncludes.WithLabelValues(service).Observe(float64(forcedIncluded))
	if degradedChannel != "" {
		m.degradedChannelTotal.WithLabelValues(service, degradedChannel).Inc()
	}
	if rerankFallback {
		m.rerankFallbackTotal.WithLabelValues(service).Inc()
	}
}

func (m *HTTPServerMetrics) RecordAnswerCache(service string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.answerCacheTotal.WithLabelValues(service, result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
