package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	app, err := h.service.Apply(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, http.StatusCreated, "application submitted", envelope{"application": app})
}

func (h *Handler) ListJobApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.service.ListJobApplicants(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, http.StatusOK, "", envelope{"applications": apps})
}

func (h *Handler) ListApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.service.ListApplications(r.Context(), currentUser(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, http.StatusOK, "", envelope{"applications": apps})
}

func (h *Handler) UpdateApplicationStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status" validate:"required,oneof=accepted rejected"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	app, err := h.service.UpdateApplicationStatus(r.Context(), currentUser(r), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, http.StatusOK, "application "+string(app.Status), envelope{"application": app})
}
