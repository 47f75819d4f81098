package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
)

const maxBodyBytes = 1 << 20

type envelope map[string]any

func (h *Handler) logInternalServerError(r *http.Request, err error) {
	slog.Error("服务器内部错误", "method", r.Method, "path", r.URL.Path, "error", err)
}

func (h *Handler) readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body must not be empty")
		}
		return errors.New("request body is not valid JSON")
	}
	return nil
}

// decode reads the JSON body into v and runs struct validation on it.
// It writes the 400 response itself and reports whether to continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := h.readJSON(w, r, v); err != nil {
		h.badRequest(w, r, err)
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		h.badRequest(w, r, err)
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logInternalServerError(r, err)
	}
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

func (h *Handler) errorResponse(w http.ResponseWriter, r *http.Request, status int, msg string, details map[string]string) {
	h.writeJSON(w, r, status, ErrorResponse{Error: msg, Details: details})
}

// badRequest reports malformed input. Validator errors become per-field
// details keyed by JSON name.
func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		h.errorResponse(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}

	details := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		details[fe.Field()] = fe.Translate(h.translator)
	}
	h.errorResponse(w, r, http.StatusBadRequest, "validation failed", details)
}

func (h *Handler) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	h.logInternalServerError(r, err)
	h.errorResponse(w, r, http.StatusInternalServerError, "internal server error", nil)
}

// serviceError maps a domain error kind to its HTTP status.
func (h *Handler) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidTransition):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrTimeout):
		slog.Warn("请求超时", "method", r.Method, "path", r.URL.Path, "error", err)
		status = http.StatusGatewayTimeout
	default:
		h.internalServerError(w, r, err)
		return
	}

	h.errorResponse(w, r, status, domain.Message(err), domain.FieldErrors(err))
}

func (h *Handler) successResponse(w http.ResponseWriter, r *http.Request, status int, msg string, data envelope) {
	if data == nil {
		data = envelope{}
	}
	if msg != "" {
		data["message"] = msg
	}
	h.writeJSON(w, r, status, data)
}

// splitList accepts both repeated query parameters and comma-separated
// values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
