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
	channelOutcomes map[string]int64
	transitions     map[string]int64
	remindersSent   int64
	reminderScans   int64
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Requests        map[string]int64 `json:"requests"`
	Errors          map[string]int64 `json:"errors"`
	ChannelOutcomes map[string]int64 `json:"channel_outcomes"`
	Transitions     map[string]int64 `json:"transitions"`
	RemindersSent   int64            `json:"reminders_sent"`
	ReminderScans   int64            `json:"reminder_scans"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]int64),
		errorCount:      make(map[string]int64),
		channelOutcomes: make(map[string]int64),
		transitions:     make(map[string]int64),
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

// RecordChannelOutcome counts one delivery attempt by channel and result.
func (m *Metrics) RecordChannelOutcome(channel, status string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channelOutcomes[channel+"|"+status]++
}

// RecordTransition counts a committed workflow action.
func (m *Metrics) RecordTransition(action string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions[action]++
}

// RecordReminderScan counts a finished scan and the tickets it reminded.
func (m *Metrics) RecordReminderScan(sent int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reminderScans++
	m.remindersSent += int64(sent)
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Requests:        copyCounts(m.requestCount),
		Errors:          copyCounts(m.errorCount),
		ChannelOutcomes: copyCounts(m.channelOutcomes),
		Transitions:     copyCounts(m.transitions),
		RemindersSent:   m.remindersSent,
		ReminderScans:   m.reminderScans,
	}
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
