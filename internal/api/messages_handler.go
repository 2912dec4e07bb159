package api

import (
	"net/http"
	"strconv"
)

const (
	defaultMessagesLimit = 50
	maxMessagesLimit     = 1000
)

// ListMessages возвращает последние записи журнала, новые первыми.
// GET /api/messages?limit=...
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		NotFound(w, "message history is not configured")
		return
	}

	limit := defaultMessagesLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			BadRequest(w, "invalid limit")
			return
		}
		limit = min(n, maxMessagesLimit)
	}

	records, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	result := make([]MessageResponse, len(records))
	for i, rec := range records {
		result[i] = MessageFromDomain(rec)
	}

	List(w, result, len(result))
}
