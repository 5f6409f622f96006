package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for HTTP traffic and SLA activity.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	slaStatus    map[string]int64
	slaBreaches  map[string]int64
	sweeps       int64
	lastSweep    SweepStats
}

// SweepStats summarises one breach sweep.
type SweepStats struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Evaluated int           `json:"evaluated"`
	Breaches  int           `json:"breaches"`
	Failures  int           `json:"failures"`
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Requests    map[string]int64 `json:"requests"`
	Errors      map[string]int64 `json:"errors"`
	SlaStatus   map[string]int64 `json:"sla_status"`
	SlaBreaches map[string]int64 `json:"sla_breaches"`
	Sweeps      int64            `json:"sweeps"`
	LastSweep   SweepStats       `json:"last_sweep"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		slaStatus:    make(map[string]int64),
		slaBreaches:  make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, _ time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordEvaluation counts an SLA evaluation by resulting status.
func (m *Metrics) RecordEvaluation(status string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slaStatus[status]++
}

// RecordBreach counts a fired breach notification by phase.
func (m *Metrics) RecordBreach(phase string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slaBreaches[phase]++
}

// RecordSweep stores the outcome of a breach sweep.
func (m *Metrics) RecordSweep(stats SweepStats) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweeps++
	m.lastSweep = stats
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Requests:    copyCounts(m.requestCount),
		Errors:      copyCounts(m.errorCount),
		SlaStatus:   copyCounts(m.slaStatus),
		SlaBreaches: copyCounts(m.slaBreaches),
		Sweeps:      m.sweeps,
		LastSweep:   m.lastSweep,
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
