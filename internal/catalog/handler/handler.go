// Package handler exposes catalog administration over HTTP. Teachers manage
// courses and offerings for their own department; admins are unrestricted.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"registrar/internal/directory/models"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/httputil"
	mwauth "registrar/pkg/platform/middleware/auth"
	"registrar/pkg/platform/sentinel"
	"registrar/pkg/requestcontext"
)

// Service is the catalog operations surface.
type Service interface {
	CreateCourse(ctx context.Context, course *models.Course, creatorTeacherID *int64) error
	UpdateCourse(ctx context.Context, course *models.Course, actorTeacherID *int64) error
	DeleteCourse(ctx context.Context, id int64) error
	CreateOffering(ctx context.Context, courseID, semesterID, instructorID int64) (*models.CourseOffering, error)
	UpdateOffering(ctx context.Context, offering *models.CourseOffering) error
	DeleteOffering(ctx context.Context, id int64) error
	ListOfferings(ctx context.Context, semesterID *int64) ([]models.OfferingDetail, error)
	ListTeachingCourses(ctx context.Context, teacherID int64) ([]models.CourseDetail, error)
}

// TeacherResolver maps the authenticated user to their teacher profile.
type TeacherResolver interface {
	TeacherByUserID(ctx context.Context, userID int64) (*models.Teacher, error)
}

// Handler handles the catalog administration endpoints.
type Handler struct {
	service   Service
	teachers  TeacherResolver
	logger    *slog.Logger
	validator mwauth.TokenValidator
	sessions  mwauth.SessionChecker
}

func New(service Service, teachers TeacherResolver, validator mwauth.TokenValidator,
	sessions mwauth.SessionChecker, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		teachers:  teachers,
		logger:    logger,
		validator: validator,
		sessions:  sessions,
	}
}

// Register mounts the catalog routes. Writes require a teacher or admin;
// course deletion is admin only.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(mwauth.RequireAuth(h.validator, h.sessions, h.logger))

		r.Get("/offerings", h.handleListOfferings)

		r.Group(func(r chi.Router) {
			r.Use(mwauth.RequireRole(h.logger, string(models.RoleTeacher), string(models.RoleAdmin)))
			r.Post("/courses", h.handleCreateCourse)
			r.Put("/courses/{courseID}", h.handleUpdateCourse)
			r.Post("/offerings", h.handleCreateOffering)
			r.Put("/offerings/{offeringID}", h.handleUpdateOffering)
			r.Delete("/offerings/{offeringID}", h.handleDeleteOffering)
		})

		r.Group(func(r chi.Router) {
			r.Use(mwauth.RequireRole(h.logger, string(models.RoleTeacher)))
			r.Get("/courses/teaching", h.handleListTeaching)
		})

		r.Group(func(r chi.Router) {
			r.Use(mwauth.RequireRole(h.logger, string(models.RoleAdmin)))
			r.Delete("/courses/{courseID}", h.handleDeleteCourse)
		})
	})
}

type courseRequest struct {
	Name         string `json:"name"`
	Code         string `json:"code"`
	Credits      int    `json:"credits"`
	ECTS         int    `json:"ects"`
	Level        string `json:"level"`
	Type         string `json:"type"`
	DepartmentID int64  `json:"department_id"`
}

func (req courseRequest) toModel() *models.Course {
	return &models.Course{
		Name:         req.Name,
		Code:         req.Code,
		Credits:      req.Credits,
		ECTS:         req.ECTS,
		Level:        models.Level(req.Level),
		Type:         models.CourseType(req.Type),
		DepartmentID: req.DepartmentID,
	}
}

func (h *Handler) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := h.resolveActor(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, err := httputil.DecodeJSON[courseRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	course := req.toModel()
	if err := h.service.CreateCourse(ctx, course, actor); err != nil {
		h.logError(ctx, "create course", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, course)
}

func (h *Handler) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := h.resolveActor(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	id, err := pathID(r, "courseID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, err := httputil.DecodeJSON[courseRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	course := req.toModel()
	course.ID = id
	if err := h.service.UpdateCourse(ctx, course, actor); err != nil {
		h.logError(ctx, "update course", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, course)
}

func (h *Handler) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "courseID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.DeleteCourse(ctx, id); err != nil {
		h.logError(ctx, "delete course", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListTeaching(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	teacher, err := h.teachers.TeacherByUserID(ctx, requestcontext.UserID(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "no teacher profile for this account"))
			return
		}
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "load teacher profile"))
		return
	}

	courses, err := h.service.ListTeachingCourses(ctx, teacher.ID)
	if err != nil {
		h.logError(ctx, "list teaching courses", err)
		httputil.WriteError(w, err)
		return
	}
	if courses == nil {
		courses = []models.CourseDetail{}
	}
	httputil.WriteJSON(w, http.StatusOK, courses)
}

type offeringRequest struct {
	CourseID     int64 `json:"course_id"`
	SemesterID   int64 `json:"semester_id"`
	InstructorID int64 `json:"instructor_id"`
}

func (h *Handler) handleCreateOffering(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httputil.DecodeJSON[offeringRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.CourseID == 0 || req.SemesterID == 0 || req.InstructorID == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest,
			"course_id, semester_id and instructor_id are required"))
		return
	}

	offering, err := h.service.CreateOffering(ctx, req.CourseID, req.SemesterID, req.InstructorID)
	if err != nil {
		h.logError(ctx, "create offering", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, offering)
}

func (h *Handler) handleUpdateOffering(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "offeringID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, err := httputil.DecodeJSON[offeringRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	offering := &models.CourseOffering{
		ID:           id,
		CourseID:     req.CourseID,
		SemesterID:   req.SemesterID,
		InstructorID: req.InstructorID,
	}
	if err := h.service.UpdateOffering(ctx, offering); err != nil {
		h.logError(ctx, "update offering", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, offering)
}

func (h *Handler) handleDeleteOffering(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "offeringID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.DeleteOffering(ctx, id); err != nil {
		h.logError(ctx, "delete offering", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListOfferings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var semesterID *int64
	if raw := r.URL.Query().Get("semester_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid semester_id"))
			return
		}
		semesterID = &id
	}

	offerings, err := h.service.ListOfferings(ctx, semesterID)
	if err != nil {
		h.logError(ctx, "list offerings", err)
		httputil.WriteError(w, err)
		return
	}
	if offerings == nil {
		offerings = []models.OfferingDetail{}
	}
	httputil.WriteJSON(w, http.StatusOK, offerings)
}

// resolveActor returns the caller's teacher id for department scoping, or nil
// for admins, who write across departments.
func (h *Handler) resolveActor(ctx context.Context) (*int64, error) {
	if requestcontext.Role(ctx) == string(models.RoleAdmin) {
		return nil, nil
	}
	teacher, err := h.teachers.TeacherByUserID(ctx, requestcontext.UserID(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeForbidden, "no teacher profile for this account")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load teacher profile")
	}
	return &teacher.ID, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) logError(ctx context.Context, op string, err error) {
	if dErrors.CodeOf(err) != dErrors.CodeInternal {
		return
	}
	h.logger.ErrorContext(ctx, op,
		"error", err,
		"request_id", requestcontext.RequestID(ctx))
}
