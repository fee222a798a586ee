package audit

import (
	"sync"

	"github.com/KatnessChen/MaraMap-Backend/internal/core"
)

var _ core.Auditor = (*InMemoryAuditor)(nil)

const DefaultMemoryCapacity = 1000

// InMemoryAuditor keeps the most recent entries in a fixed size ring.
type InMemoryAuditor struct {
	mu      sync.Mutex
	entries []core.AuditEntry
	next    int
	full    bool
}

func NewInMemoryAuditor(capacity int) *InMemoryAuditor {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &InMemoryAuditor{
		entries: make([]core.AuditEntry, capacity),
	}
}

func (i *InMemoryAuditor) Log(entry core.AuditEntry) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.entries[i.next] = entry
	i.next = (i.next + 1) % len(i.entries)
	if i.next == 0 {
		i.full = true
	}
	return nil
}

// snapshot returns the stored entries, oldest first. Callers hold mu.
func (i *InMemoryAuditor) snapshot() []core.AuditEntry {
	if !i.full {
		out := make([]core.AuditEntry, i.next)
		copy(out, i.entries[:i.next])
		return out
	}
	out := make([]core.AuditEntry, 0, len(i.entries))
	out = append(out, i.entries[i.next:]...)
	return append(out, i.entries[:i.next]...)
}

// Recent returns up to limit entries, oldest first.
func (i *InMemoryAuditor) Recent(limit int) []core.AuditEntry {
	i.mu.Lock()
	defer i.mu.Unlock()

	all := i.snapshot()
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all
}

// BySourceID returns every retained entry about sourceID, oldest first.
func (i *InMemoryAuditor) BySourceID(sourceID string) []core.AuditEntry {
	i.mu.Lock()
	defer i.mu.Unlock()

	var matches []core.AuditEntry
	for _, entry := range i.snapshot() {
		if entry.SourceID == sourceID {
			matches = append(matches, entry)
		}
	}
	return matches
}

func (i *InMemoryAuditor) Close() error {
	return nil
}
