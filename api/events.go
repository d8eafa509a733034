package api

import (
	"errors"
	"net/http"

	"github.com/xraph/almanac"
	"github.com/xraph/almanac/event"
)

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	opts := event.ListOpts{
		Offset:         queryInt(r, "offset", 0),
		Limit:          queryInt(r, "limit", 50),
		Category:       event.Category(queryParam(r, "category")),
		IncludeIgnored: queryParam(r, "include_ignored") == "true",
		From:           queryTime(r, "from"),
		To:             queryTime(r, "to"),
	}

	events, err := h.store.ListEvents(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	evtID := event.ID(r.PathValue("id"))
	if evtID == "" {
		writeError(w, http.StatusBadRequest, "invalid event ID")
		return
	}

	evt, err := h.store.GetEvent(r.Context(), evtID)
	if err != nil {
		if errors.Is(err, almanac.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, evt)
}

func (h *Handler) ignoreEvent(w http.ResponseWriter, r *http.Request) {
	evtID := event.ID(r.PathValue("id"))

	if err := h.store.MarkIgnored(r.Context(), evtID); err != nil {
		if errors.Is(err, almanac.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
}

func (h *Handler) deleteEvent(w http.ResponseWriter, r *http.Request) {
	evtID := event.ID(r.PathValue("id"))

	if err := h.store.DeleteEvent(r.Context(), evtID); err != nil {
		if errors.Is(err, almanac.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
