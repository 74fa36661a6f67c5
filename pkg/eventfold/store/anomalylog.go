package store

import (
	"sync"
	"time"

	"github.com/randalmurphal/eventfold/pkg/eventfold/reduce"
)

// DefaultAnomalyCapacity bounds the anomaly log when no capacity is given.
const DefaultAnomalyCapacity = 1000

// AnomalyEntry is one recorded anomaly with fold context.
type AnomalyEntry struct {
	// Machine names the reducer that classified the anomaly.
	Machine string `json:"machine"`

	// AggregateID identifies the entity being folded.
	AggregateID string `json:"aggregate_id"`

	// Anomaly is the classification itself.
	Anomaly reduce.Anomaly `json:"anomaly"`

	// RecordedAt is when the entry was appended, UTC.
	RecordedAt time.Time `json:"recorded_at"`
}

// AnomalyLog keeps a bounded in-memory history of fold anomalies for
// operator inspection. When full, the oldest entries are evicted first.
// Safe for concurrent use.
type AnomalyLog struct {
	mu       sync.RWMutex
	entries  []AnomalyEntry
	capacity int
}

// NewAnomalyLog creates a log bounded to capacity entries.
// A non-positive capacity falls back to DefaultAnomalyCapacity.
func NewAnomalyLog(capacity int) *AnomalyLog {
	if capacity <= 0 {
		capacity = DefaultAnomalyCapacity
	}
	return &AnomalyLog{capacity: capacity}
}

// Append records anomalies from one fold, evicting oldest entries when the
// log is full.
func (l *AnomalyLog) Append(machine, aggregateID string, anomalies []reduce.Anomaly) {
	if len(anomalies) == 0 {
		return
	}
	now := time.Now().UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, a := range anomalies {
		l.entries = append(l.entries, AnomalyEntry{
			Machine:     machine,
			AggregateID: aggregateID,
			Anomaly:     a,
			RecordedAt:  now,
		})
	}
	if over := len(l.entries) - l.capacity; over > 0 {
		l.entries = append([]AnomalyEntry(nil), l.entries[over:]...)
	}
}

// Recent returns up to n newest entries, newest first. n <= 0 returns all.
func (l *AnomalyLog) Recent(n int) []AnomalyEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]AnomalyEntry, n)
	for i := 0; i < n; i++ {
		out[i] = l.entries[len(l.entries)-1-i]
	}
	return out
}

// Len returns the number of retained entries.
func (l *AnomalyLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
