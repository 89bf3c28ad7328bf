package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/querypilot/querypilot/internal/history"
	"github.com/querypilot/querypilot/internal/observability"
	"github.com/querypilot/querypilot/internal/pipeline"
)

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Kind       pipeline.Kind `json:"kind"`
	IsError    bool          `json:"is_error"`
	SQL        string        `json:"sql"`
	Message    string        `json:"message,omitempty"`
	Columns    []string      `json:"columns"`
	Rows       [][]string    `json:"rows"`
	RowCount   int           `json:"row_count"`
	DurationMS int64         `json:"duration_ms"`
	TraceID    string        `json:"trace_id,omitempty"`
}

// ServeHTTP answers every pipeline outcome with 200; failures are carried in
// kind and message for the form to render.
func (h *askHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.deps.Asker == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASK_NOT_CONFIGURED", "question pipeline is not configured", false, nil)
		return
	}

	var req askRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}

	outcome := h.run(r, strings.TrimSpace(req.Question))
	h.record(r, outcome)

	response := askResponse{
		Kind:       outcome.Kind,
		IsError:    outcome.IsError(),
		SQL:        outcome.SQL,
		Columns:    []string{},
		Rows:       [][]string{},
		DurationMS: outcome.Duration.Milliseconds(),
		TraceID:    observability.TraceIDFromContext(r.Context()),
	}
	if outcome.Kind == pipeline.KindRows && outcome.Table != nil {
		response.Columns = outcome.Table.Columns
		response.Rows = outcome.Table.StringRows()
		response.RowCount = len(outcome.Table.Rows)
	} else {
		response.Message = outcome.Text()
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *askHandler) run(r *http.Request, question string) pipeline.Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.deps.Asker.Run(r.Context(), question)
}

func (h *askHandler) record(r *http.Request, outcome pipeline.Outcome) {
	if h.deps.History == nil {
		return
	}
	entry := history.EntryFromOutcome(outcome, history.SourceWeb, h.deps.PreviewRows)
	if _, err := h.deps.History.Record(r.Context(), entry); err != nil && h.deps.Logger != nil {
		h.deps.Logger.Warn("failed to record interaction history", "error", err)
	}
}

func handleHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.History == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "interaction history is not configured", false, nil)
		return
	}

	limit := deps.HistoryLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be between 1 and 500", false, nil)
			return
		}
		limit = parsed
	}

	entries, err := deps.History.Recent(r.Context(), limit)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_FETCH_FAILED", "failed to load interaction history", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"interactions": entries})
}
