package history

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAddAssignsIDs(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.Add(ctx, "TAC-01", "Knives only", CategoryTactical, "client-a")
	require.NoError(t, err)
	second, err := store.Add(ctx, "WEP-03", "No scopes", CategoryWeaponry, "client-a")
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.False(t, first.Timestamp.IsZero())
}

func TestMemoryStoreListRecentOrderAndLimit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"TAC-01", "TAC-02", "TAC-03"} {
		_, err := store.Add(ctx, id, "rule "+id, CategoryTactical, "client-a")
		require.NoError(t, err)
	}

	records, err := store.ListRecent(ctx, 2, "client-a")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "TAC-03", records[0].RuleID)
	assert.Equal(t, "TAC-02", records[1].RuleID)
	assert.Greater(t, records[0].ID, records[1].ID)
}

func TestMemoryStoreClientIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Add(ctx, "TAC-01", "a", CategoryTactical, "client-a")
	require.NoError(t, err)
	_, err = store.Add(ctx, "SOC-01", "b", CategorySocial, "client-b")
	require.NoError(t, err)

	records, err := store.ListRecent(ctx, 10, "client-a")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "TAC-01", records[0].RuleID)

	ids, err := store.RecentRuleIDs(ctx, 10, "client-b")
	require.NoError(t, err)
	assert.Equal(t, []string{"SOC-01"}, ids)

	// Undo for one client must not touch the other's records.
	rec, ok, err := store.DeleteLast(ctx, "client-b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "SOC-01", rec.RuleID)

	remaining, err := store.ListRecent(ctx, 10, "client-a")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestMemoryStoreDeleteLastEmpty(t *testing.T) {
	store := NewMemoryStore()

	_, ok, err := store.DeleteLast(context.Background(), "client-a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreDeleteByIDs(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	a1, _ := store.Add(ctx, "TAC-01", "a", CategoryTactical, "client-a")
	a2, _ := store.Add(ctx, "TAC-02", "b", CategoryTactical, "client-a")
	b1, _ := store.Add(ctx, "SOC-01", "c", CategorySocial, "client-b")

	// JSON-decoded ids arrive as float64; strings and garbage ride along.
	ids := []any{float64(a1.ID), json.Number("2"), "not-a-number", nil, float64(b1.ID)}
	deleted, err := store.DeleteByIDs(ctx, "client-a", ids)
	require.NoError(t, err)

	// b1 belongs to another client and must not count.
	assert.Equal(t, 2, deleted)
	_ = a2

	left, err := store.ListRecent(ctx, 10, "client-a")
	require.NoError(t, err)
	assert.Empty(t, left)

	other, err := store.ListRecent(ctx, 10, "client-b")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestMemoryStoreDeleteByIDsNoValidIDs(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_, err := store.Add(ctx, "TAC-01", "a", CategoryTactical, "client-a")
	require.NoError(t, err)

	deleted, err := store.DeleteByIDs(ctx, "client-a", []any{"x", true, nil})
	require.NoError(t, err)
	assert.Zero(t, deleted)

	left, err := store.ListRecent(ctx, 10, "client-a")
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestMemoryStoreCountToday(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 23, 50, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	_, err := store.Add(ctx, "TAC-01", "a", CategoryTactical, "client-a")
	require.NoError(t, err)

	// Ten minutes later it is the next calendar day: yesterday's record no
	// longer counts even though less than 24h passed.
	store.now = func() time.Time { return base.Add(10 * time.Minute) }
	_, err = store.Add(ctx, "TAC-02", "b", CategoryTactical, "client-a")
	require.NoError(t, err)

	count, err := store.CountToday(ctx, "client-a")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryStoreCountByCategory(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, c := range []string{CategoryTactical, CategoryTactical, CategorySocial, ""} {
		_, err := store.Add(ctx, "X", "x", c, "client-a")
		require.NoError(t, err)
	}

	counts, err := store.CountByCategory(ctx, "client-a")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{CategoryTactical: 2, CategorySocial: 1}, counts)
}

func TestMemoryStoreRecentRuleIDsSkipsEmpty(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Add(ctx, "", "untagged", "", "client-a")
	require.NoError(t, err)
	_, err = store.Add(ctx, "TAC-01", "a", CategoryTactical, "client-a")
	require.NoError(t, err)

	ids, err := store.RecentRuleIDs(ctx, 10, "client-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"TAC-01"}, ids)
}
