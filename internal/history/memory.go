package history

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a thread-safe in-memory backend used whenever remote
// credentials are absent. It keeps an append-only log plus a monotonic id
// counter behind a single mutex; every operation holds the lock for its full
// duration, which is fine at interactive scale. The log is volatile and lives
// only as long as the process.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	log    []Record

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory backend.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		now:    time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Add(_ context.Context, ruleID, content, category, clientID string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := Record{
		ID:        m.nextID,
		RuleID:    ruleID,
		Content:   content,
		Category:  category,
		Timestamp: m.now().UTC(),
		ClientID:  clientID,
	}
	m.nextID++
	m.log = append(m.log, rec)
	return rec, nil
}

func (m *MemoryStore) ListRecent(_ context.Context, limit int, clientID string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// The log is append-only, so walking it backwards yields descending ids.
	result := make([]Record, 0, limit)
	for i := len(m.log) - 1; i >= 0 && len(result) < limit; i-- {
		if m.log[i].ClientID == clientID {
			result = append(result, m.log[i])
		}
	}
	return result, nil
}

func (m *MemoryStore) RecentRuleIDs(_ context.Context, limit int, clientID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]string, 0, limit)
	for i := len(m.log) - 1; i >= 0 && len(result) < limit; i-- {
		if m.log[i].ClientID == clientID && m.log[i].RuleID != "" {
			result = append(result, m.log[i].RuleID)
		}
	}
	return result, nil
}

func (m *MemoryStore) DeleteLast(_ context.Context, clientID string) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.log) - 1; i >= 0; i-- {
		if m.log[i].ClientID == clientID {
			rec := m.log[i]
			m.log = append(m.log[:i], m.log[i+1:]...)
			return rec, true, nil
		}
	}
	return Record{}, false, nil
}

func (m *MemoryStore) DeleteByIDs(_ context.Context, clientID string, ids []any) (int, error) {
	valid := coerceIDs(ids)
	if len(valid) == 0 {
		return 0, nil
	}
	wanted := make(map[int64]struct{}, len(valid))
	for _, id := range valid {
		wanted[id] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.log[:0]
	deleted := 0
	for _, rec := range m.log {
		if _, hit := wanted[rec.ID]; hit && rec.ClientID == clientID {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	m.log = kept
	return deleted, nil
}

func (m *MemoryStore) CountToday(_ context.Context, clientID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ty, tm, td := m.now().UTC().Date()
	count := 0
	for _, rec := range m.log {
		if rec.ClientID != clientID {
			continue
		}
		y, mo, d := rec.Timestamp.UTC().Date()
		if y == ty && mo == tm && d == td {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) CountByCategory(_ context.Context, clientID string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byCategory := make(map[string]int)
	for _, rec := range m.log {
		if rec.ClientID != clientID || rec.Category == "" {
			continue
		}
		byCategory[rec.Category]++
	}
	return byCategory, nil
}

// HealthCheck always succeeds: the in-memory backend has no dependency that
// can go away.
func (m *MemoryStore) HealthCheck(_ context.Context) error {
	return nil
}
