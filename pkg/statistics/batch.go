package statistics

import (
	"github.com/adpulse-ai/platform/pkg/catalog"
)

// Key is the identity of a statistic. Dates use models.DateLayout.
type Key struct {
	CompanyID  uint
	EntityType string
	EntityID   uint
	StartDate  string
	EndDate    string
}

// Entry is one metric value waiting for its statistic id.
type Entry struct {
	Key        Key
	Definition catalog.Definition
	Value      interface{}
	seq        int
}

// Batch buffers source rows between flushes.
type Batch struct {
	stats   []Statistic
	entries []Entry
}

func NewBatch(capacity int) *Batch {
	return &Batch{
		stats:   make([]Statistic, 0, capacity),
		entries: make([]Entry, 0, capacity*8),
	}
}

// Add buffers one source row: its statistic and the metric entries read from it.
func (b *Batch) Add(stat Statistic, entries []Entry) {
	seq := len(b.stats)
	key := stat.Key()
	b.stats = append(b.stats, stat)
	for _, e := range entries {
		e.Key = key
		e.seq = seq
		b.entries = append(b.entries, e)
	}
}

// Len is the number of buffered source rows.
func (b *Batch) Len() int {
	return len(b.stats)
}

func (b *Batch) Reset() {
	b.stats = b.stats[:0]
	b.entries = b.entries[:0]
}

// Dedupe collapses rows sharing an identity key. The last row wins, both for
// the statistic's mutable fields and for the metric entries kept. Within the
// winning row a metric appearing twice keeps its last value.
func (b *Batch) Dedupe() ([]Statistic, []Entry) {
	winner := make(map[Key]int, len(b.stats))
	order := make([]Key, 0, len(b.stats))
	for seq, stat := range b.stats {
		key := stat.Key()
		if _, seen := winner[key]; !seen {
			order = append(order, key)
		}
		winner[key] = seq
	}

	stats := make([]Statistic, 0, len(order))
	for _, key := range order {
		stats = append(stats, b.stats[winner[key]])
	}

	type slot struct {
		key      Key
		metricID uint
	}
	position := make(map[slot]int)
	entries := make([]Entry, 0, len(b.entries))
	for _, e := range b.entries {
		if winner[e.Key] != e.seq {
			continue
		}
		s := slot{key: e.Key, metricID: e.Definition.ID}
		if idx, ok := position[s]; ok {
			entries[idx] = e
			continue
		}
		position[s] = len(entries)
		entries = append(entries, e)
	}
	return stats, entries
}
