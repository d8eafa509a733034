package api

import (
	"net/http"
)

type statsResponse struct {
	LedgerRecords int64 `json:"ledger_records"`
	DLQSize       int64 `json:"dlq_size"`
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	records, err := h.store.CountRecords(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	dlqCount, err := h.dlqSvc.Count(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		LedgerRecords: records,
		DLQSize:       dlqCount,
	})
}

func (h *Handler) runCycle(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "cycle engine not configured")
		return
	}

	summary, err := h.runner.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
