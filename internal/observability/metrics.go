package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	errorCount    map[string]int64
	ticks         int64
	lastTickItems int
	resyncs       int64
	expirations   int64
	registrations int64
	releases      int64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Requests      map[string]int64 `json:"requests"`
	Errors        map[string]int64 `json:"errors"`
	Ticks         int64            `json:"ticks"`
	TrackedItems  int              `json:"tracked_items"`
	Resyncs       int64            `json:"resyncs"`
	Expirations   int64            `json:"expirations"`
	Registrations int64            `json:"registrations"`
	Releases      int64            `json:"releases"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
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

// RecordTick counts a scheduler tick over the given number of items.
func (m *Metrics) RecordTick(items int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks++
	m.lastTickItems = items
}

// RecordResync counts a correction of a local countdown.
func (m *Metrics) RecordResync() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resyncs++
}

// RecordExpiration counts a crossed SLA deadline.
func (m *Metrics) RecordExpiration() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expirations++
}

// RecordRegistration counts an observer registration.
func (m *Metrics) RecordRegistration() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registrations++
}

// RecordUnregistration counts a released observer.
func (m *Metrics) RecordUnregistration() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases++
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		Requests:      make(map[string]int64, len(m.requestCount)),
		Errors:        make(map[string]int64, len(m.errorCount)),
		Ticks:         m.ticks,
		TrackedItems:  m.lastTickItems,
		Resyncs:       m.resyncs,
		Expirations:   m.expirations,
		Registrations: m.registrations,
		Releases:      m.releases,
	}
	for k, v := range m.requestCount {
		snap.Requests[k] = v
	}
	for k, v := range m.errorCount {
		snap.Errors[k] = v
	}
	return snap
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
