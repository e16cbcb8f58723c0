// Package handler exposes the student enrollment surface over HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"registrar/internal/directory/models"
	"registrar/internal/enrollment"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/httputil"
	mwauth "registrar/pkg/platform/middleware/auth"
	"registrar/pkg/platform/sentinel"
	"registrar/pkg/requestcontext"
)

// Service is the enrollment operations surface.
type Service interface {
	Enroll(ctx context.Context, studentID, courseID int64) (enrollment.Result, error)
	Unenroll(ctx context.Context, studentID, courseID int64) error
	ListStudentCourses(ctx context.Context, studentID int64) ([]models.CourseDetail, error)
}

// StudentResolver maps the authenticated user to their student profile.
type StudentResolver interface {
	StudentByUserID(ctx context.Context, userID int64) (*models.Student, error)
}

// Handler handles the student enrollment endpoints.
type Handler struct {
	service   Service
	students  StudentResolver
	logger    *slog.Logger
	validator mwauth.TokenValidator
	sessions  mwauth.SessionChecker
}

func New(service Service, students StudentResolver, validator mwauth.TokenValidator,
	sessions mwauth.SessionChecker, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		students:  students,
		logger:    logger,
		validator: validator,
		sessions:  sessions,
	}
}

// Register mounts the enrollment routes. All routes require an authenticated
// student.
func (h *Handler) Register(r chi.Router) {
	r.Route("/enrollments", func(r chi.Router) {
		r.Use(mwauth.RequireAuth(h.validator, h.sessions, h.logger))
		r.Use(mwauth.RequireRole(h.logger, string(models.RoleStudent)))
		r.Post("/", h.handleEnroll)
		r.Get("/", h.handleListCourses)
		r.Delete("/{courseID}", h.handleUnenroll)
	})
}

type enrollRequest struct {
	CourseID int64 `json:"course_id"`
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	student, err := h.resolveStudent(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, err := httputil.DecodeJSON[enrollRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.CourseID == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "course_id is required"))
		return
	}

	result, err := h.service.Enroll(ctx, student.ID, req.CourseID)
	if err != nil {
		h.logger.ErrorContext(ctx, "enroll",
			"error", err,
			"request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleUnenroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	student, err := h.resolveStudent(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	courseID, err := strconv.ParseInt(chi.URLParam(r, "courseID"), 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid course id"))
		return
	}

	if err := h.service.Unenroll(ctx, student.ID, courseID); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "unenroll",
				"error", err,
				"request_id", requestcontext.RequestID(ctx))
		}
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListCourses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	student, err := h.resolveStudent(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	courses, err := h.service.ListStudentCourses(ctx, student.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "list student courses",
			"error", err,
			"request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, err)
		return
	}
	if courses == nil {
		courses = []models.CourseDetail{}
	}
	httputil.WriteJSON(w, http.StatusOK, courses)
}

func (h *Handler) resolveStudent(ctx context.Context) (*models.Student, error) {
	userID := requestcontext.UserID(ctx)
	student, err := h.students.StudentByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeForbidden, "no student profile for this account")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load student profile")
	}
	return student, nil
}
