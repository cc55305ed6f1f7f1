package history

import (
	"context"
	"fmt"
	"math"

	"github.com/redlantern-games/drawlog/internal/logging"
)

// Service orchestrates the draw journal over whichever backend was chosen at
// startup. It never switches backends at runtime: if remote credentials are
// configured and the remote is down, operations fail instead of silently
// degrading to memory.
type Service struct {
	store Store
	log   *logging.Logger
}

// NewService wraps the chosen backend.
func NewService(store Store, log *logging.Logger) *Service {
	return &Service{store: store, log: log}
}

// Add journals one draw for the client and returns the persisted record.
func (s *Service) Add(ctx context.Context, ruleID, content, category, clientID string) (Record, error) {
	rec, err := s.store.Add(ctx, ruleID, content, category, clientID)
	if err != nil {
		return Record{}, fmt.Errorf("add record: %w", err)
	}
	s.log.Entry(ctx).
		WithField("record_id", rec.ID).
		WithField("rule_id", rec.RuleID).
		WithField("client_id", clientID).
		Debug("draw journaled")
	return rec, nil
}

// ListRecent returns the client's newest records, newest first.
func (s *Service) ListRecent(ctx context.Context, limit int, clientID string) ([]Record, error) {
	return s.store.ListRecent(ctx, limit, clientID)
}

// RecentRuleIDs returns the client's most recently drawn rule ids.
func (s *Service) RecentRuleIDs(ctx context.Context, limit int, clientID string) ([]string, error) {
	return s.store.RecentRuleIDs(ctx, limit, clientID)
}

// Undo removes the client's most recent record. The bool result is false when
// there was nothing to undo; that is a legitimate outcome, not an error.
func (s *Service) Undo(ctx context.Context, clientID string) (Record, bool, error) {
	rec, ok, err := s.store.DeleteLast(ctx, clientID)
	if err != nil {
		return Record{}, false, fmt.Errorf("undo: %w", err)
	}
	if ok {
		s.log.Entry(ctx).
			WithField("record_id", rec.ID).
			WithField("client_id", clientID).
			Debug("draw undone")
	}
	return rec, ok, nil
}

// UndoByIDs removes the client's records named in ids and reports how many
// were deleted. Foreign or malformed ids contribute nothing to the count.
func (s *Service) UndoByIDs(ctx context.Context, clientID string, ids []any) (int, error) {
	deleted, err := s.store.DeleteByIDs(ctx, clientID, ids)
	if err != nil {
		return 0, fmt.Errorf("undo by ids: %w", err)
	}
	s.log.Entry(ctx).
		WithField("client_id", clientID).
		WithField("deleted", deleted).
		Debug("draws undone by id")
	return deleted, nil
}

// Stats derives the client's journal statistics. The top category is picked
// deterministically: highest count, ties broken by the lexicographically
// smallest category name.
func (s *Service) Stats(ctx context.Context, clientID string) (Stats, error) {
	todayCount, err := s.store.CountToday(ctx, clientID)
	if err != nil {
		return Stats{}, fmt.Errorf("count today: %w", err)
	}
	byCategory, err := s.store.CountByCategory(ctx, clientID)
	if err != nil {
		return Stats{}, fmt.Errorf("count by category: %w", err)
	}
	if byCategory == nil {
		byCategory = make(map[string]int)
	}

	stats := Stats{
		TodayCount: todayCount,
		ByCategory: byCategory,
	}

	total := 0
	for _, n := range byCategory {
		total += n
	}
	if total > 0 {
		for category, n := range byCategory {
			if n > byCategory[stats.TopCategory] || (n == byCategory[stats.TopCategory] && (stats.TopCategory == "" || category < stats.TopCategory)) {
				stats.TopCategory = category
			}
		}
		stats.TopPct = int(math.Round(float64(byCategory[stats.TopCategory]) / float64(total) * 100))
	}
	return stats, nil
}

// Healthy reports backend reachability. Failures are downgraded to false so
// monitoring can poll without tripping alarms.
func (s *Service) Healthy(ctx context.Context) bool {
	if err := s.store.HealthCheck(ctx); err != nil {
		s.log.Entry(ctx).WithError(err).Warn("backend health check failed")
		return false
	}
	return true
}
