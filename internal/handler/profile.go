package handler

import (
	"encoding/json"
	"net/http"

	"github.com/sysu-ecnc-dev/job-board/backend/internal/service"
)

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, http.StatusOK, "", envelope{"user": currentUser(r)})
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)

	var req struct {
		Username    *string                    `json:"username"`
		CompanyName *string                    `json:"companyName"`
		Email       *string                    `json:"email"`
		Role        *string                    `json:"role"`
		Profile     map[string]json.RawMessage `json:"profile"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), me, me.ID, service.ProfilePatch{
		Username:    req.Username,
		CompanyName: req.CompanyName,
		Email:       req.Email,
		Role:        req.Role,
		Profile:     req.Profile,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, http.StatusOK, "profile updated", envelope{"user": user})
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"currentPassword" validate:"required"`
		NewPassword     string `json:"newPassword" validate:"required"`
		ConfirmPassword string `json:"confirmPassword" validate:"required"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ChangePassword(r.Context(), currentUser(r), req.CurrentPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, http.StatusOK, "password updated", nil)
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Dashboard(r.Context(), currentUser(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, d)
}
