package batch

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"gitlab.com/walletsweep/sweepnode/common"
)

// HistoryEntry records one completed batch execution, successful or not.
type HistoryEntry struct {
	ID        string                   `json:"id"`
	Address   string                   `json:"address"`
	Action    common.Action            `json:"action"`
	Result    common.BatchActionResult `json:"result"`
	Timestamp time.Time                `json:"timestamp"`
}

// History keeps the most recent batch executions in a bounded ring,
// newest first.
type History struct {
	mu      sync.Mutex
	limit   int
	entries []HistoryEntry
}

// NewHistory creates a History bounded to limit entries.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 1
	}
	return &History{limit: limit}
}

// Record appends an execution record and returns its assigned id.
func (h *History) Record(address string, action common.Action, result common.BatchActionResult) string {
	entry := HistoryEntry{
		ID:        uuid.New().String(),
		Address:   address,
		Action:    action,
		Result:    result,
		Timestamp: time.Now().UTC(),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append([]HistoryEntry{entry}, h.entries...)
	if len(h.entries) > h.limit {
		h.entries = h.entries[:h.limit]
	}
	return entry.ID
}

// List returns the retained entries, newest first.
func (h *History) List() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Get returns the entry with the given id.
func (h *History) Get(id string) (HistoryEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, entry := range h.entries {
		if entry.ID == id {
			return entry, true
		}
	}
	return HistoryEntry{}, false
}
