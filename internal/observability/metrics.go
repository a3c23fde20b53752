package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu              sync.Mutex
	requestCount    map[string]int64
	errorCount      map[string]int64
	deliveryCount   map[string]int64
	ticketEvents    map[string]int64
	deletedTickets  int64
	requestDuration time.Duration
}

// Snapshot is a point-in-time copy of the counters, served by /metrics.
type Snapshot struct {
	Requests           map[string]int64 `json:"requests"`
	Errors             map[string]int64 `json:"errors"`
	Deliveries         map[string]int64 `json:"deliveries"`
	TicketEvents       map[string]int64 `json:"ticket_events"`
	DeletedTickets     int64            `json:"deleted_tickets"`
	TotalRequestTimeMS int64            `json:"total_request_time_ms"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:  make(map[string]int64),
		errorCount:    make(map[string]int64),
		deliveryCount: make(map[string]int64),
		ticketEvents:  make(map[string]int64),
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
	m.requestDuration += duration
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

// RecordDelivery counts webhook delivery outcomes per service and event kind.
func (m *Metrics) RecordDelivery(service, kind string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveryCount[service+"|"+kind+"|"+outcome]++
}

// RecordTicketEvent counts lifecycle events such as created or accept.
func (m *Metrics) RecordTicketEvent(kind string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticketEvents[kind]++
}

// RecordTicketDeleted counts tickets removed by the deletion worker or an admin.
func (m *Metrics) RecordTicketDeleted() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletedTickets++
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Requests:           copyCounts(m.requestCount),
		Errors:             copyCounts(m.errorCount),
		Deliveries:         copyCounts(m.deliveryCount),
		TicketEvents:       copyCounts(m.ticketEvents),
		DeletedTickets:     m.deletedTickets,
		TotalRequestTimeMS: m.requestDuration.Milliseconds(),
	}
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
