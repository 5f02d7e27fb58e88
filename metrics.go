package authclient

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one in-process counter.
type MetricID uint16

const (
	// MetricBootstrapSuccess counts bootstraps that confirmed a persisted token.
	MetricBootstrapSuccess MetricID = iota
	// MetricBootstrapFailure counts bootstraps that discarded a persisted token.
	MetricBootstrapFailure
	// MetricBootstrapAnonymous counts bootstraps that found no token.
	MetricBootstrapAnonymous
	MetricLoginSuccess
	MetricLoginFailure
	// MetricLoginDiscarded counts login responses dropped because a logout
	// happened while the request was in flight.
	MetricLoginDiscarded
	MetricRegisterSuccess
	MetricRegisterFailure
	MetricLogout
	MetricForcedLogout
	// MetricUnauthorizedSuppressed counts 401 responses that did not act
	// because another request already ended the session.
	MetricUnauthorizedSuppressed
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRequestSuccess
	MetricRequestUnauthorized
	MetricRequestForbidden
	MetricRequestNotFound
	MetricRequestValidationFailed
	MetricRequestClientError
	MetricRequestServerError
	MetricRequestNetworkError
	MetricRequestMalformed
	MetricRequestLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters for session and gateway activity. A nil
// or disabled Metrics ignores every update.
type Metrics struct {
	enabled    bool
	counters   [metricIDCount]paddedCounter
	histograms [metricIDCount]metricHistogram
}

// MetricsSnapshot is a consistent-enough copy of all counters for export.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a Metrics honoring cfg.Enabled.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Enabled reports whether updates are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a gateway round-trip duration. Only MetricRequestLatency
// carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || id != MetricRequestLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and the latency histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricRequestLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	buckets := make([]uint64, histBucketCount)
	for i := range buckets {
		buckets[i] = atomic.LoadUint64(&m.histograms[MetricRequestLatency].buckets[i])
	}
	s.Histograms[MetricRequestLatency] = buckets

	return s
}

// requestMetric maps a classification onto its per-kind counter.
func requestMetric(kind ErrorKind) MetricID {
	switch kind {
	case KindUnauthorized:
		return MetricRequestUnauthorized
	case KindForbidden:
		return MetricRequestForbidden
	case KindNotFound:
		return MetricRequestNotFound
	case KindValidationFailed:
		return MetricRequestValidationFailed
	case KindServerError:
		return MetricRequestServerError
	case KindNetworkUnreachable:
		return MetricRequestNetworkError
	case KindMalformedResponse:
		return MetricRequestMalformed
	default:
		return MetricRequestClientError
	}
}

// bucketIndex upper bounds: 25ms, 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, +Inf.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 25:
		return 0
	case ms <= 50:
		return 1
	case ms <= 100:
		return 2
	case ms <= 250:
		return 3
	case ms <= 500:
		return 4
	case ms <= 1000:
		return 5
	case ms <= 2500:
		return 6
	default:
		return 7
	}
}
