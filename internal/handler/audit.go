package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/quorum/internal/model"
	"github.com/dukerupert/quorum/internal/store"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

type AuditHandler struct {
	audit  *store.AuditStore
	logger *slog.Logger
}

func NewAuditHandler(audit *store.AuditStore, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, logger: logger}
}

type auditQueryResponse struct {
	Entries []model.AuditEntry `json:"entries"`
	Total   int                `json:"total"`
	Limit   int                `json:"limit"`
	Offset  int                `json:"offset"`
}

// Query returns audit entries newest-first with optional action and
// voterId filters. Admin only.
func (h *AuditHandler) Query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filter store.AuditFilter
	if action := q.Get("action"); action != "" {
		a := model.Action(action)
		if !model.ValidAction(a) {
			writeError(w, http.StatusBadRequest, "invalid_action", "unknown audit action")
			return
		}
		filter.Action = a
	}
	filter.Actor = q.Get("voterId")

	limit := defaultAuditLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = min(n, maxAuditLimit)
	}

	offset := 0
	if s := q.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_offset", "offset must be a non-negative integer")
			return
		}
		offset = n
	}

	entries, total, err := h.audit.Query(filter, limit, offset)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if entries == nil {
		entries = []model.AuditEntry{}
	}

	writeJSON(w, http.StatusOK, auditQueryResponse{
		Entries: entries,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}
