package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/service"
)

// skillList accepts either a comma-delimited string or an array of strings.
type skillList struct {
	value string
	set   bool
}

func (s *skillList) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		s.value, s.set = str, true
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return errors.New("skills must be a string or an array of strings")
	}
	s.value, s.set = strings.Join(list, ","), true
	return nil
}

type jobRequest struct {
	Title           *string   `json:"title"`
	Description     *string   `json:"description"`
	Location        *string   `json:"location"`
	Type            *string   `json:"type"`
	Salary          *string   `json:"salary"`
	SalaryMin       *int      `json:"salaryMin" validate:"omitempty,gte=0"`
	SalaryMax       *int      `json:"salaryMax" validate:"omitempty,gte=0"`
	Skills          skillList `json:"skills"`
	Experience      *string   `json:"experience"`
	ExperienceLevel *string   `json:"experienceLevel"`
	Deadline        *string   `json:"deadline"`
	Status          *string   `json:"status"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if !h.decode(w, r, &req) {
		return
	}

	job, err := h.service.CreateJob(r.Context(), currentUser(r), service.CreateJobInput{
		Title:           deref(req.Title),
		Description:     deref(req.Description),
		Location:        deref(req.Location),
		Type:            deref(req.Type),
		Salary:          deref(req.Salary),
		SalaryMin:       req.SalaryMin,
		SalaryMax:       req.SalaryMax,
		Skills:          req.Skills.value,
		Experience:      deref(req.Experience),
		ExperienceLevel: deref(req.ExperienceLevel),
		Deadline:        deref(req.Deadline),
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, http.StatusCreated, "job created", envelope{"job": job})
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.GetJob(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, http.StatusOK, "", envelope{"job": job})
}

func (h *Handler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if !h.decode(w, r, &req) {
		return
	}

	patch := service.JobPatch{
		Title:           req.Title,
		Description:     req.Description,
		Location:        req.Location,
		Type:            req.Type,
		Salary:          req.Salary,
		SalaryMin:       req.SalaryMin,
		SalaryMax:       req.SalaryMax,
		Experience:      req.Experience,
		ExperienceLevel: req.ExperienceLevel,
		Deadline:        req.Deadline,
		Status:          req.Status,
	}
	if req.Skills.set {
		patch.Skills = &req.Skills.value
	}

	job, err := h.service.UpdateJob(r.Context(), currentUser(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, http.StatusOK, "job updated", envelope{"job": job})
}

func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteJob(r.Context(), currentUser(r), chi.URLParam(r, "id")); err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, http.StatusOK, "job deleted", nil)
}

// queryInt parses an optional integer query parameter, recording a field
// error when it is malformed.
func queryInt(r *http.Request, name string, fields map[string]string) *int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		fields[name] = name + " must be an integer"
		return nil
	}
	return &v
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	fields := map[string]string{}
	in := service.ListJobsInput{
		Keyword: r.URL.Query().Get("keyword"),
		Status:  r.URL.Query().Get("status"),
	}
	if page := queryInt(r, "page", fields); page != nil {
		in.Page = *page
	}
	if limit := queryInt(r, "limit", fields); limit != nil {
		in.Limit = *limit
	}
	if len(fields) > 0 {
		h.serviceError(w, r, domain.Validation("validation failed", fields))
		return
	}

	page, err := h.service.ListJobs(r.Context(), currentUser(r), in)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, page)
}

func (h *Handler) SearchJobs(w http.ResponseWriter, r *http.Request) {
	fields := map[string]string{}
	query := r.URL.Query()
	in := service.SearchJobsInput{
		Query:            query.Get("q"),
		Types:            splitList(query["jobType"]),
		ExperienceLevels: splitList(query["experienceLevel"]),
		Location:         query.Get("location"),
		MinSalary:        queryInt(r, "minSalary", fields),
		MaxSalary:        queryInt(r, "maxSalary", fields),
	}
	if len(fields) > 0 {
		h.serviceError(w, r, domain.Validation("validation failed", fields))
		return
	}

	jobs, err := h.service.SearchJobs(r.Context(), currentUser(r), in)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, http.StatusOK, "", envelope{"jobs": jobs})
}

func (h *Handler) ListMyJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListEmployerJobs(r.Context(), currentUser(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, http.StatusOK, "", envelope{"jobs": jobs})
}
