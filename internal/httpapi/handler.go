// Package httpapi maps the JSON API onto the history service.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/redlantern-games/drawlog/internal/history"
	"github.com/redlantern-games/drawlog/internal/logging"
	"github.com/redlantern-games/drawlog/internal/metrics"
)

const (
	defaultListLimit   = 20
	defaultRecentLimit = 10

	// Cap on error text sent to callers; full detail stays in the log.
	maxErrorMessageLen = 256
)

// Handler bundles the HTTP endpoints for the history service.
type Handler struct {
	svc *history.Service
	log *logging.Logger
}

// NewHandler returns the router exposing the history API.
func NewHandler(svc *history.Service, log *logging.Logger) http.Handler {
	h := &Handler{svc: svc, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/api/history/list", h.list).Methods(http.MethodGet)
	r.HandleFunc("/api/history/recent", h.recent).Methods(http.MethodGet)
	r.HandleFunc("/api/history/stats", h.stats).Methods(http.MethodGet)
	r.HandleFunc("/api/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/api/history/add", h.add).Methods(http.MethodPost)
	r.HandleFunc("/api/history/undo", h.undo).Methods(http.MethodPost)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "endpoint not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return h.recoverer(r)
}

// recoverer is the single per-request error boundary: an unexpected panic in
// a handler must never kill the listener or leak internals beyond a bounded
// message.
func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.log.Entry(r.Context()).
					WithField("panic", rec).
					WithField("path", r.URL.Path).
					Error("handler panic")
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// item is the caller-facing record shape; client_id never leaves the service.
type item struct {
	ID        int64     `json:"id"`
	RuleID    string    `json:"rule_id"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
}

func toItem(rec history.Record) item {
	return item{
		ID:        rec.ID,
		RuleID:    rec.RuleID,
		Content:   rec.Content,
		Category:  rec.Category,
		Timestamp: rec.Timestamp,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		writeError(w, http.StatusBadRequest, "missing client_id")
		return
	}
	limit, ok := parseLimit(r, defaultListLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	records, err := h.svc.ListRecent(r.Context(), limit, clientID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	items := make([]item, 0, len(records))
	for _, rec := range records {
		items = append(items, toItem(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "items": items})
}

func (h *Handler) recent(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		writeError(w, http.StatusBadRequest, "missing client_id")
		return
	}
	limit, ok := parseLimit(r, defaultRecentLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	ids, err := h.svc.RecentRuleIDs(r.Context(), limit, clientID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ids": ids})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		writeError(w, http.StatusBadRequest, "missing client_id")
		return
	}

	stats, err := h.svc.Stats(r.Context(), clientID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		history.Stats
	}{OK: true, Stats: stats})
}

// health never hard-fails: backend trouble is reported as db_connected=false
// so monitoring can poll it without tripping alarms.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":           true,
		"db_connected": h.svc.Healthy(r.Context()),
	})
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ClientID string `json:"client_id"`
		ID       string `json:"id"`
		Content  string `json:"content"`
		Category string `json:"category"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if payload.ClientID == "" {
		writeError(w, http.StatusBadRequest, "missing client_id")
		return
	}
	if payload.ID == "" || payload.Content == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	rec, err := h.svc.Add(r.Context(), payload.ID, payload.Content, payload.Category, payload.ClientID)
	metrics.RecordJournalOp("add", err)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "item": toItem(rec)})
}

func (h *Handler) undo(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ClientID string `json:"client_id"`
		IDs      []any  `json:"ids"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if payload.ClientID == "" {
		writeError(w, http.StatusBadRequest, "missing client_id")
		return
	}

	if len(payload.IDs) > 0 {
		deleted, err := h.svc.UndoByIDs(r.Context(), payload.ClientID, payload.IDs)
		metrics.RecordJournalOp("undo", err)
		if err != nil {
			h.serverError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "deleted_count": deleted})
		return
	}

	rec, ok, err := h.svc.Undo(r.Context(), payload.ClientID)
	metrics.RecordJournalOp("undo", err)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if !ok {
		// Nothing to undo is a soft failure, not an error.
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "message": "no record"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "item": toItem(rec)})
}

// serverError reports a backend failure: full detail to the log, a bounded
// message to the caller.
func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Entry(r.Context()).
		WithError(err).
		WithField("path", r.URL.Path).
		Error("request failed")
	writeError(w, http.StatusInternalServerError, boundedMessage(err))
}

func boundedMessage(err error) string {
	msg := err.Error()
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	return msg
}

// parseLimit reads the limit query parameter. Absent means the default;
// non-numeric or non-positive values are caller errors.
func parseLimit(r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, false
	}
	return limit, true
}

func decodeJSON(body io.ReadCloser, dst any) error {
	defer body.Close()
	return json.NewDecoder(body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}
