package api

import (
	"errors"
	"net/http"

	"github.com/xraph/almanac"
	"github.com/xraph/almanac/dlq"
	"github.com/xraph/almanac/id"
	"github.com/xraph/almanac/policy"
)

func (h *Handler) listDLQ(w http.ResponseWriter, r *http.Request) {
	opts := dlq.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
		UserID: queryParam(r, "user_id"),
		From:   queryTime(r, "from"),
		To:     queryTime(r, "to"),
	}

	if ch := queryParam(r, "channel"); ch != "" {
		c := policy.Channel(ch)
		opts.Channel = &c
	}

	entries, err := h.dlqSvc.List(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) getDLQ(w http.ResponseWriter, r *http.Request) {
	dlqID, err := id.ParseDLQID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid DLQ ID")
		return
	}

	entry, getErr := h.dlqSvc.Get(r.Context(), dlqID)
	if getErr != nil {
		if errors.Is(getErr, almanac.ErrDLQNotFound) {
			writeError(w, http.StatusNotFound, "DLQ entry not found")
			return
		}
		writeError(w, http.StatusInternalServerError, getErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) purgeDLQ(w http.ResponseWriter, r *http.Request) {
	before := queryTime(r, "before")
	if before == nil {
		writeError(w, http.StatusBadRequest, "before is required (RFC 3339)")
		return
	}

	purged, err := h.dlqSvc.Purge(r.Context(), *before)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"purged": purged})
}
