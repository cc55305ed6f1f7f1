package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redlantern-games/drawlog/internal/httputil"
)

const (
	historyTable = "history"

	// Single synchronous attempt per operation; failures surface as
	// ErrBackendUnavailable and are never retried here.
	supabaseTimeout = 10 * time.Second

	// CategoryScanLimit bounds the rows fetched for per-category stats.
	// Clients with more history than this get approximate category counts;
	// an exact count would need a server-side aggregate the consumed REST
	// surface is not guaranteed to define.
	CategoryScanLimit = 1000

	maxResponseBytes  = 8 << 20  // 8 MiB
	maxErrorBodyBytes = 32 << 10 // 32 KiB
)

// SupabaseConfig holds the remote backend credentials. Both values must be
// non-empty; their presence is what selects this backend at startup.
type SupabaseConfig struct {
	URL    string
	APIKey string
}

// SupabaseStore talks to a Supabase-style REST tabular store. It holds no
// shared mutable state; concurrency safety is the remote service's problem.
type SupabaseStore struct {
	restURL string
	apiKey  string
	client  *http.Client

	now func() time.Time
}

// NewSupabaseStore creates the remote backend adapter.
func NewSupabaseStore(cfg SupabaseConfig) (*SupabaseStore, error) {
	if cfg.URL == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase URL and API key are required")
	}
	return &SupabaseStore{
		restURL: strings.TrimRight(cfg.URL, "/") + "/rest/v1/" + historyTable,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: supabaseTimeout},
		now:     time.Now,
	}, nil
}

var _ Store = (*SupabaseStore)(nil)

// supabaseRow is the wire shape of one history table row.
type supabaseRow struct {
	ID        int64     `json:"id"`
	RuleID    string    `json:"rule_id"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
}

func (r supabaseRow) record() Record {
	return Record{
		ID:        r.ID,
		RuleID:    r.RuleID,
		Content:   r.Content,
		Category:  r.Category,
		Timestamp: r.Timestamp,
	}
}

// do performs one REST request. Transport failures and non-2xx statuses are
// wrapped in ErrBackendUnavailable. The caller owns the response body.
func (s *SupabaseStore) do(ctx context.Context, method, query string, payload any, prefer string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	reqURL := s.restURL
	if query != "" {
		reqURL += "?" + query
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if resp.StatusCode >= 400 {
		msg, truncated, readErr := httputil.ReadAllWithLimit(resp.Body, maxErrorBodyBytes)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("%w: status %d", ErrBackendUnavailable, resp.StatusCode)
		}
		text := strings.TrimSpace(string(msg))
		if truncated {
			text += "...(truncated)"
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrBackendUnavailable, resp.StatusCode, text)
	}
	return resp, nil
}

func decodeRows(resp *http.Response) ([]supabaseRow, error) {
	defer resp.Body.Close()

	data, err := httputil.ReadAllStrict(resp.Body, maxResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrBackendUnavailable, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var rows []supabaseRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrBackendUnavailable, err)
	}
	return rows, nil
}

func (s *SupabaseStore) Add(ctx context.Context, ruleID, content, category, clientID string) (Record, error) {
	payload := struct {
		RuleID    string    `json:"rule_id"`
		Content   string    `json:"content"`
		Category  string    `json:"category"`
		Timestamp time.Time `json:"timestamp"`
		ClientID  string    `json:"client_id"`
	}{
		RuleID:    ruleID,
		Content:   content,
		Category:  category,
		Timestamp: s.now().UTC(),
		ClientID:  clientID,
	}

	resp, err := s.do(ctx, http.MethodPost, "", payload, "return=representation")
	if err != nil {
		return Record{}, err
	}
	rows, err := decodeRows(resp)
	if err != nil {
		return Record{}, err
	}
	if len(rows) > 0 {
		return rows[0].record(), nil
	}

	// Some deployments strip the representation; fall back to re-querying
	// the most recent record for this client.
	latest, err := s.ListRecent(ctx, 1, clientID)
	if err != nil {
		return Record{}, err
	}
	if len(latest) == 0 {
		return Record{}, fmt.Errorf("%w: insert returned no rows", ErrBackendUnavailable)
	}
	return latest[0], nil
}

func (s *SupabaseStore) ListRecent(ctx context.Context, limit int, clientID string) ([]Record, error) {
	q := url.Values{}
	q.Set("select", "id,rule_id,content,category,timestamp")
	q.Set("client_id", "eq."+clientID)
	q.Set("order", "id.desc")
	q.Set("limit", strconv.Itoa(limit))

	resp, err := s.do(ctx, http.MethodGet, q.Encode(), nil, "")
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(resp)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

func (s *SupabaseStore) RecentRuleIDs(ctx context.Context, limit int, clientID string) ([]string, error) {
	q := url.Values{}
	q.Set("select", "rule_id")
	q.Set("client_id", "eq."+clientID)
	q.Set("order", "id.desc")
	q.Set("limit", strconv.Itoa(limit))

	resp, err := s.do(ctx, http.MethodGet, q.Encode(), nil, "")
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(resp)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.RuleID != "" {
			ids = append(ids, row.RuleID)
		}
	}
	return ids, nil
}

func (s *SupabaseStore) DeleteLast(ctx context.Context, clientID string) (Record, bool, error) {
	latest, err := s.ListRecent(ctx, 1, clientID)
	if err != nil {
		return Record{}, false, err
	}
	if len(latest) == 0 {
		return Record{}, false, nil
	}

	q := url.Values{}
	q.Set("id", "eq."+strconv.FormatInt(latest[0].ID, 10))
	q.Set("client_id", "eq."+clientID)

	resp, err := s.do(ctx, http.MethodDelete, q.Encode(), nil, "")
	if err != nil {
		return Record{}, false, err
	}
	resp.Body.Close()
	return latest[0], true, nil
}

func (s *SupabaseStore) DeleteByIDs(ctx context.Context, clientID string, ids []any) (int, error) {
	valid := coerceIDs(ids)
	if len(valid) == 0 {
		return 0, nil
	}
	parts := make([]string, len(valid))
	for i, id := range valid {
		parts[i] = strconv.FormatInt(id, 10)
	}

	q := url.Values{}
	q.Set("id", "in.("+strings.Join(parts, ",")+")")
	q.Set("client_id", "eq."+clientID)

	// return=representation so the deleted count reflects rows the client
	// actually owned, not the length of the requested id list.
	resp, err := s.do(ctx, http.MethodDelete, q.Encode(), nil, "return=representation")
	if err != nil {
		return 0, err
	}
	rows, err := decodeRows(resp)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *SupabaseStore) CountToday(ctx context.Context, clientID string) (int, error) {
	y, m, d := s.now().UTC().Date()
	midnight := fmt.Sprintf("%04d-%02d-%02dT00:00:00Z", y, m, d)

	q := url.Values{}
	q.Set("select", "id")
	q.Set("client_id", "eq."+clientID)
	q.Set("timestamp", "gte."+midnight)
	q.Set("limit", "1")

	// HEAD with count=exact: the total arrives in Content-Range, no row
	// transfer needed.
	resp, err := s.do(ctx, http.MethodHead, q.Encode(), nil, "count=exact")
	if err != nil {
		return 0, err
	}
	resp.Body.Close()

	return parseContentRange(resp.Header.Get("Content-Range")), nil
}

// parseContentRange extracts the total from a PostgREST Content-Range header,
// which is either "0-9/42" or "*/0".
func parseContentRange(header string) int {
	var count int
	if _, err := fmt.Sscanf(header, "%*d-%*d/%d", &count); err != nil {
		_, _ = fmt.Sscanf(header, "*/%d", &count)
	}
	return count
}

func (s *SupabaseStore) CountByCategory(ctx context.Context, clientID string) (map[string]int, error) {
	q := url.Values{}
	q.Set("select", "category")
	q.Set("client_id", "eq."+clientID)
	q.Set("limit", strconv.Itoa(CategoryScanLimit))

	resp, err := s.do(ctx, http.MethodGet, q.Encode(), nil, "")
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(resp)
	if err != nil {
		return nil, err
	}
	byCategory := make(map[string]int)
	for _, row := range rows {
		if row.Category == "" {
			continue
		}
		byCategory[row.Category]++
	}
	return byCategory, nil
}

func (s *SupabaseStore) HealthCheck(ctx context.Context) error {
	q := url.Values{}
	q.Set("select", "id")
	q.Set("limit", "1")

	resp, err := s.do(ctx, http.MethodGet, q.Encode(), nil, "")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
