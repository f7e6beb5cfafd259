package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu               sync.Mutex
	requestCount     map[string]int64
	errorCount       map[string]int64
	interactionCount map[string]int64
	deliveryCount    map[string]int64
	transitionCount  map[string]int64
	deliveryLatency  time.Duration
	deliveries       int64
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Requests             map[string]int64 `json:"requests"`
	Errors               map[string]int64 `json:"errors"`
	Interactions         map[string]int64 `json:"interactions"`
	Deliveries           map[string]int64 `json:"deliveries"`
	Transitions          map[string]int64 `json:"transitions"`
	AvgDeliveryLatencyMS float64          `json:"avgDeliveryLatencyMs"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:     make(map[string]int64),
		errorCount:       make(map[string]int64),
		interactionCount: make(map[string]int64),
		deliveryCount:    make(map[string]int64),
		transitionCount:  make(map[string]int64),
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

// RecordInteraction counts a routed button press by action kind and outcome.
func (m *Metrics) RecordInteraction(kind, outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactionCount[kind+"|"+outcome]++
}

// RecordDelivery counts one webhook attempt.
func (m *Metrics) RecordDelivery(event string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveryCount[event+"|"+outcome]++
	m.deliveryLatency += duration
	m.deliveries++
}

// RecordTransition counts committed lifecycle transitions.
func (m *Metrics) RecordTransition(name string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitionCount[name]++
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Requests:     copyCounts(m.requestCount),
		Errors:       copyCounts(m.errorCount),
		Interactions: copyCounts(m.interactionCount),
		Deliveries:   copyCounts(m.deliveryCount),
		Transitions:  copyCounts(m.transitionCount),
	}
	if m.deliveries > 0 {
		snap.AvgDeliveryLatencyMS = float64(m.deliveryLatency.Milliseconds()) / float64(m.deliveries)
	}
	return snap
}

func copyCounts(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
