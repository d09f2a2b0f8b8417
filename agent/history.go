package agent

import (
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/agentrun/llm"
)

// Snapshot is one saved state of a run: the conversation after a round.
type Snapshot struct {
	Round    int
	Messages []llm.Message
	SavedAt  time.Time
}

// HistoryStore keeps per-run conversation snapshots in memory, keyed by run
// tag. Safe for concurrent use; sub agents running in parallel write to
// their own tags.
type HistoryStore struct {
	mu   sync.RWMutex
	runs map[string][]Snapshot
}

// NewHistoryStore creates an empty store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{runs: make(map[string][]Snapshot)}
}

// Save appends a deep copied snapshot for the tag.
func (h *HistoryStore) Save(tag string, round int, messages []llm.Message) {
	snap := Snapshot{
		Round:    round,
		Messages: llm.CloneMessages(messages),
		SavedAt:  time.Now(),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs[tag] = append(h.runs[tag], snap)
}

// Get returns all snapshots saved under a tag, oldest first.
func (h *HistoryStore) Get(tag string) []Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Snapshot, len(h.runs[tag]))
	copy(out, h.runs[tag])
	return out
}

// Latest returns the most recent snapshot for a tag.
func (h *HistoryStore) Latest(tag string) (Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	snaps := h.runs[tag]
	if len(snaps) == 0 {
		return Snapshot{}, false
	}
	return snaps[len(snaps)-1], true
}

// Tags returns every tag with at least one snapshot, sorted.
func (h *HistoryStore) Tags() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	tags := make([]string, 0, len(h.runs))
	for tag := range h.runs {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
