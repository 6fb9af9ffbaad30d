package common

import (
	"sync"
	"time"
)

// Metrics counts transform activity for the daemon's lifetime.
type Metrics struct {
	mu         sync.Mutex
	start      time.Time
	builds     int64
	failures   int64
	bytesIn    int64
	bytesOut   int64
	validation int64
}

func NewMetrics() *Metrics {
	return &Metrics{start: time.Now()}
}

// AddBuild records one completed merge and its input/output sizes.
func (m *Metrics) AddBuild(bytesIn, bytesOut int64) {
	m.mu.Lock()
	m.builds++
	m.bytesIn += bytesIn
	m.bytesOut += bytesOut
	m.mu.Unlock()
}

// AddFailure records a rejected transform.
func (m *Metrics) AddFailure() {
	m.mu.Lock()
	m.failures++
	m.mu.Unlock()
}

// AddValidation records one validation run.
func (m *Metrics) AddValidation() {
	m.mu.Lock()
	m.validation++
	m.mu.Unlock()
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Uptime      float64       `json:"uptimeSeconds"`
	Builds      int64         `json:"builds"`
	Failures    int64         `json:"failures"`
	Validations int64         `json:"validations"`
	BytesIn     int64         `json:"bytesIn"`
	BytesOut    int64         `json:"bytesOut"`
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		Uptime:      time.Since(m.start).Seconds(),
		Builds:      m.builds,
		Failures:    m.failures,
		Validations: m.validation,
		BytesIn:     m.bytesIn,
		BytesOut:    m.bytesOut,
	}
}
