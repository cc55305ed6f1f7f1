package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, handler http.HandlerFunc) *SupabaseStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store, err := NewSupabaseStore(SupabaseConfig{URL: srv.URL, APIKey: "test-key"})
	require.NoError(t, err)
	return store
}

func TestNewSupabaseStoreRequiresCredentials(t *testing.T) {
	_, err := NewSupabaseStore(SupabaseConfig{URL: "https://example.supabase.co"})
	assert.Error(t, err)
	_, err = NewSupabaseStore(SupabaseConfig{APIKey: "key"})
	assert.Error(t, err)
}

func TestSupabaseStoreRequestShape(t *testing.T) {
	var got *http.Request
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := store.ListRecent(context.Background(), 5, "client-a")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "/rest/v1/history", got.URL.Path)
	assert.Equal(t, "test-key", got.Header.Get("apikey"))
	assert.Equal(t, "Bearer test-key", got.Header.Get("Authorization"))

	q := got.URL.Query()
	assert.Equal(t, "eq.client-a", q.Get("client_id"))
	assert.Equal(t, "id.desc", q.Get("order"))
	assert.Equal(t, "5", q.Get("limit"))
}

func TestSupabaseStoreAddReturnsRepresentation(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))

		var row map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&row))
		assert.Equal(t, "client-a", row["client_id"])

		w.WriteHeader(http.StatusCreated)
		_, _ = fmt.Fprintf(w, `[{"id":42,"rule_id":%q,"content":%q,"category":%q,"timestamp":"2026-03-14T10:00:00Z"}]`,
			row["rule_id"], row["content"], row["category"])
	})

	rec, err := store.Add(context.Background(), "TAC-01", "Knives only", CategoryTactical, "client-a")
	require.NoError(t, err)
	assert.Equal(t, int64(42), rec.ID)
	assert.Equal(t, "TAC-01", rec.RuleID)
	assert.Equal(t, time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC), rec.Timestamp)
}

func TestSupabaseStoreAddFallsBackToRequery(t *testing.T) {
	// Deployment with Prefer stripped: the insert returns an empty body and
	// the store re-queries the newest record.
	var calls int
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		switch r.Method {
		case http.MethodPost:
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			_, _ = w.Write([]byte(`[{"id":7,"rule_id":"TAC-01","content":"a","category":"tactical","timestamp":"2026-03-14T10:00:00Z"}]`))
		}
	})

	rec, err := store.Add(context.Background(), "TAC-01", "a", CategoryTactical, "client-a")
	require.NoError(t, err)
	assert.Equal(t, int64(7), rec.ID)
	assert.Equal(t, 2, calls)
}

func TestSupabaseStoreCountToday(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "count=exact", r.Header.Get("Prefer"))

		q := r.URL.Query()
		assert.True(t, len(q.Get("timestamp")) > 4 && q.Get("timestamp")[:4] == "gte.")

		w.Header().Set("Content-Range", "0-0/17")
		w.WriteHeader(http.StatusOK)
	})

	count, err := store.CountToday(context.Background(), "client-a")
	require.NoError(t, err)
	assert.Equal(t, 17, count)
}

func TestParseContentRange(t *testing.T) {
	assert.Equal(t, 42, parseContentRange("0-9/42"))
	assert.Equal(t, 0, parseContentRange("*/0"))
	assert.Equal(t, 3, parseContentRange("*/3"))
	assert.Equal(t, 0, parseContentRange(""))
	assert.Equal(t, 0, parseContentRange("garbage"))
}

func TestSupabaseStoreDeleteByIDsCountsDeletedRows(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))

		q := r.URL.Query()
		assert.Equal(t, "in.(1,2,9999)", q.Get("id"))
		assert.Equal(t, "eq.client-a", q.Get("client_id"))

		// Only two of the three requested ids existed for this client.
		_, _ = w.Write([]byte(`[{"id":1},{"id":2}]`))
	})

	deleted, err := store.DeleteByIDs(context.Background(), "client-a", []any{float64(1), "2", float64(9999), "junk"})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
}

func TestSupabaseStoreDeleteByIDsNoValidIDs(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected when every id is malformed")
	})

	deleted, err := store.DeleteByIDs(context.Background(), "client-a", []any{"x", nil})
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestSupabaseStoreDeleteLast(t *testing.T) {
	var deletedQuery string
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`[{"id":9,"rule_id":"SOC-02","content":"x","category":"social","timestamp":"2026-03-14T10:00:00Z"}]`))
		case http.MethodDelete:
			deletedQuery = r.URL.RawQuery
			w.WriteHeader(http.StatusNoContent)
		}
	})

	rec, ok, err := store.DeleteLast(context.Background(), "client-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(9), rec.ID)
	assert.Contains(t, deletedQuery, "id=eq.9")
	assert.Contains(t, deletedQuery, "client_id=eq.client-a")
}

func TestSupabaseStoreDeleteLastEmpty(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`[]`))
	})

	_, ok, err := store.DeleteLast(context.Background(), "client-a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSupabaseStoreCountByCategory(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "category", r.URL.Query().Get("select"))
		_, _ = w.Write([]byte(`[{"category":"tactical"},{"category":"tactical"},{"category":"social"},{"category":""}]`))
	})

	counts, err := store.CountByCategory(context.Background(), "client-a")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{CategoryTactical: 2, CategorySocial: 1}, counts)
}

func TestSupabaseStoreErrorWrapping(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"message":"upstream down"}`)
	})

	_, err := store.ListRecent(context.Background(), 5, "client-a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBackendUnavailable))
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "upstream down")
}

func TestSupabaseStoreUnreachable(t *testing.T) {
	store, err := NewSupabaseStore(SupabaseConfig{URL: "http://127.0.0.1:1", APIKey: "key"})
	require.NoError(t, err)

	err = store.HealthCheck(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBackendUnavailable))
}
