package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/service"
)

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context(), currentUser(r), r.URL.Query().Get("role"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, http.StatusOK, "", envelope{"users": users})
}

func (h *Handler) ModerateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IsApproved *bool `json:"isApproved"`
		IsActive   *bool `json:"isActive"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.ModerateUser(r.Context(), currentUser(r), chi.URLParam(r, "id"), service.ModerationInput{
		IsApproved: req.IsApproved,
		IsActive:   req.IsActive,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, http.StatusOK, "user updated", envelope{"user": user})
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteUser(r.Context(), currentUser(r), chi.URLParam(r, "id")); err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, http.StatusOK, "user deleted", nil)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context(), currentUser(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, http.StatusOK, "", envelope{"stats": stats})
}
