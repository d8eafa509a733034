package api

import (
	"errors"
	"net/http"

	"github.com/xraph/almanac"
	"github.com/xraph/almanac/policy"
)

func (h *Handler) putPolicy(w http.ResponseWriter, r *http.Request) {
	var in policy.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// The path segment wins over any user_id in the body.
	in.UserID = r.PathValue("userID")

	sub, err := h.policySvc.Put(r.Context(), in)
	if err != nil {
		var verr *policy.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) listPolicies(w http.ResponseWriter, r *http.Request) {
	opts := policy.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	}

	subs, err := h.policySvc.List(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, subs)
}

func (h *Handler) getPolicy(w http.ResponseWriter, r *http.Request) {
	sub, err := h.policySvc.Get(r.Context(), r.PathValue("userID"))
	if err != nil {
		if errors.Is(err, almanac.ErrPolicyNotFound) {
			writeError(w, http.StatusNotFound, "policy not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) deletePolicy(w http.ResponseWriter, r *http.Request) {
	if err := h.policySvc.Delete(r.Context(), r.PathValue("userID")); err != nil {
		if errors.Is(err, almanac.ErrPolicyNotFound) {
			writeError(w, http.StatusNotFound, "policy not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type accountChannelsRequest struct {
	Channels []policy.Channel `json:"channels"`
}

func (h *Handler) setAccountChannels(w http.ResponseWriter, r *http.Request) {
	var req accountChannelsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := h.policySvc.SetAccountChannels(r.Context(), r.PathValue("userID"), req.Channels)
	if err != nil {
		var verr *policy.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		if errors.Is(err, almanac.ErrPolicyNotFound) {
			writeError(w, http.StatusNotFound, "policy not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, sub)
}
