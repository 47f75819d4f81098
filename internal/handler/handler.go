package handler

import (
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/config"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/service"
)

type Handler struct {
	validate   *validator.Validate
	config     *config.Config
	service    *service.Service
	translator ut.Translator

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, svc *service.Service) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	// 校验错误使用 JSON 字段名，便于前端定位
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:   validate,
		config:     cfg,
		service:    svc,
		translator: trans,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	h.Mux.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// 认证相关
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.With(h.auth).Post("/logout", h.Logout)
			r.Post("/forgot-password", h.ForgotPassword)
			r.Post("/reset-password", h.ResetPassword)
			r.Get("/verify-email", h.VerifyEmail)
		})

		// 游客也可以浏览职位
		r.Route("/jobs", func(r chi.Router) {
			r.With(h.optionalAuth).Get("/", h.ListJobs)
			r.With(h.optionalAuth).Get("/search", h.SearchJobs)
			r.With(h.auth).Post("/", h.CreateJob)
			r.With(h.auth).Get("/mine", h.ListMyJobs)
			r.Route("/{id}", func(r chi.Router) {
				r.With(h.optionalAuth).Get("/", h.GetJob)
				r.With(h.auth).Patch("/", h.UpdateJob)
				r.With(h.auth).Delete("/", h.DeleteJob)
				r.With(h.auth).Post("/applications", h.Apply)
				r.With(h.auth).Get("/applications", h.ListJobApplications)
			})
		})

		// 以下 API 必须要在登录后才允许调用
		r.Group(func(r chi.Router) {
			r.Use(h.auth)

			r.Route("/profile", func(r chi.Router) {
				r.Get("/", h.GetProfile)
				r.Patch("/", h.UpdateProfile)
				r.Patch("/password", h.ChangePassword)
			})
			r.Get("/dashboard", h.Dashboard)

			r.Route("/applications", func(r chi.Router) {
				r.Get("/", h.ListApplications)
				r.Patch("/{id}", h.UpdateApplicationStatus)
			})

			r.Delete("/users/{id}", h.DeleteUser)

			r.Route("/admin", func(r chi.Router) {
				r.Use(h.RequiredRole(domain.RoleAdmin))
				r.Get("/users", h.ListUsers)
				r.Patch("/users/{id}", h.ModerateUser)
				r.Get("/stats", h.Stats)
			})
		})
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, envelope{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
