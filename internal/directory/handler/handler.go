// Package handler exposes the directory reads and the admin reference-data
// writes over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"registrar/internal/directory/models"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/httputil"
	mwauth "registrar/pkg/platform/middleware/auth"
	"registrar/pkg/requestcontext"
)

// Service is the directory operations surface.
type Service interface {
	ListCourses(ctx context.Context) ([]models.CourseDetail, error)
	ListDepartments(ctx context.Context) ([]models.Department, error)
	CreateDepartment(ctx context.Context, dept *models.Department) error
	DeleteDepartment(ctx context.Context, id int64) error
	ListSemesters(ctx context.Context) ([]models.Semester, error)
	CreateSemester(ctx context.Context, sem *models.Semester) error
	CurrentSemester(ctx context.Context) (*models.Semester, error)
}

// Handler handles the directory endpoints.
type Handler struct {
	service   Service
	logger    *slog.Logger
	validator mwauth.TokenValidator
	sessions  mwauth.SessionChecker
}

func New(service Service, validator mwauth.TokenValidator,
	sessions mwauth.SessionChecker, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		logger:    logger,
		validator: validator,
		sessions:  sessions,
	}
}

// Register mounts the directory routes. Reads need any authenticated user;
// reference-data writes are admin only.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(mwauth.RequireAuth(h.validator, h.sessions, h.logger))

		r.Get("/courses", h.handleListCourses)
		r.Get("/departments", h.handleListDepartments)
		r.Get("/semesters", h.handleListSemesters)
		r.Get("/semesters/current", h.handleCurrentSemester)

		r.Group(func(r chi.Router) {
			r.Use(mwauth.RequireRole(h.logger, string(models.RoleAdmin)))
			r.Post("/admin/departments", h.handleCreateDepartment)
			r.Delete("/admin/departments/{departmentID}", h.handleDeleteDepartment)
			r.Post("/admin/semesters", h.handleCreateSemester)
		})
	})
}

func (h *Handler) handleListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.service.ListCourses(r.Context())
	if err != nil {
		h.logError(r.Context(), "list courses", err)
		httputil.WriteError(w, err)
		return
	}
	if courses == nil {
		courses = []models.CourseDetail{}
	}
	httputil.WriteJSON(w, http.StatusOK, courses)
}

func (h *Handler) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.service.ListDepartments(r.Context())
	if err != nil {
		h.logError(r.Context(), "list departments", err)
		httputil.WriteError(w, err)
		return
	}
	if departments == nil {
		departments = []models.Department{}
	}
	httputil.WriteJSON(w, http.StatusOK, departments)
}

func (h *Handler) handleListSemesters(w http.ResponseWriter, r *http.Request) {
	semesters, err := h.service.ListSemesters(r.Context())
	if err != nil {
		h.logError(r.Context(), "list semesters", err)
		httputil.WriteError(w, err)
		return
	}
	if semesters == nil {
		semesters = []models.Semester{}
	}
	httputil.WriteJSON(w, http.StatusOK, semesters)
}

func (h *Handler) handleCurrentSemester(w http.ResponseWriter, r *http.Request) {
	sem, err := h.service.CurrentSemester(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sem)
}

type departmentRequest struct {
	Name string `json:"name"`
}

func (h *Handler) handleCreateDepartment(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.DecodeJSON[departmentRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	dept := &models.Department{Name: req.Name}
	if err := h.service.CreateDepartment(r.Context(), dept); err != nil {
		h.logError(r.Context(), "create department", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, dept)
}

func (h *Handler) handleDeleteDepartment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "departmentID"), 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid department id"))
		return
	}

	if err := h.service.DeleteDepartment(r.Context(), id); err != nil {
		h.logError(r.Context(), "delete department", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type semesterRequest struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (h *Handler) handleCreateSemester(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.DecodeJSON[semesterRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "start_date must be YYYY-MM-DD"))
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "end_date must be YYYY-MM-DD"))
		return
	}

	sem := &models.Semester{Name: req.Name, StartDate: start, EndDate: end}
	if err := h.service.CreateSemester(r.Context(), sem); err != nil {
		h.logError(r.Context(), "create semester", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sem)
}

func (h *Handler) logError(ctx context.Context, op string, err error) {
	if dErrors.CodeOf(err) != dErrors.CodeInternal {
		return
	}
	h.logger.ErrorContext(ctx, op,
		"error", err,
		"request_id", requestcontext.RequestID(ctx))
}
