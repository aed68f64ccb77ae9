package handler

import (
	"net/http"
	"strings"
	"time"

	"cellar-api/internal/service"
	"cellar-api/pkg/apierror"
	"cellar-api/pkg/response"
)

// HistoryHandler serves the change ledger and its statistics.
type HistoryHandler struct {
	history *service.HistoryService
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(history *service.HistoryService) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// List handles GET /api/v1/history?item_id=&action=&since=&until=&limit=
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	limit, err := intParam(values, "limit", 0)
	if err != nil {
		fail(w, r, err)
		return
	}
	q := service.HistoryQuery{
		ItemID: values.Get("item_id"),
		Action: values.Get("action"),
		Limit:  limit,
	}
	if q.Since, err = timeParam(values.Get("since")); err != nil {
		fail(w, r, apierror.BadRequest("since must be an RFC 3339 time"))
		return
	}
	if q.Until, err = timeParam(values.Get("until")); err != nil {
		fail(w, r, apierror.BadRequest("until must be an RFC 3339 time"))
		return
	}

	evs, err := h.history.List(r.Context(), q)
	if err != nil {
		fail(w, r, err)
		return
	}
	response.OK(w, evs)
}

// Summary handles GET /api/v1/history/summary
func (h *HistoryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.history.Summary(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	response.OK(w, summary)
}

// Series handles GET /api/v1/history/series?timeframe=month&metric=quantity
func (h *HistoryHandler) Series(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	series, err := h.history.Series(r.Context(), values.Get("timeframe"), values.Get("metric"))
	if err != nil {
		fail(w, r, err)
		return
	}
	response.OK(w, series)
}

func timeParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
