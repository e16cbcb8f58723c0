// Package directory serves the registrar's shared reference data: the course
// listing, departments, and semesters. Everything here is read-mostly; the
// only writes are the admin-managed department and semester records.
package directory

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"registrar/internal/directory/models"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/audit"
	"registrar/pkg/platform/sentinel"
	"registrar/pkg/platform/tx"
	"registrar/pkg/requestcontext"
)

// Store is the directory persistence surface the service needs.
type Store interface {
	ListCourses(ctx context.Context) ([]models.CourseDetail, error)

	CreateDepartment(ctx context.Context, dept *models.Department) error
	DeleteDepartment(ctx context.Context, id int64) error
	DepartmentByID(ctx context.Context, id int64) (*models.Department, error)
	ListDepartments(ctx context.Context) ([]models.Department, error)

	CreateSemester(ctx context.Context, sem *models.Semester) error
	ListSemesters(ctx context.Context) ([]models.Semester, error)
	CurrentSemester(ctx context.Context, today time.Time) (*models.Semester, error)
}

type auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service answers directory reads and applies the admin writes.
type Service struct {
	store  Store
	runner tx.Runner

	logger  *slog.Logger
	auditor auditor
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditor(a auditor) Option {
	return func(s *Service) { s.auditor = a }
}

func NewService(store Store, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		store:  store,
		runner: runner,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListCourses returns the full catalog with department names.
func (s *Service) ListCourses(ctx context.Context) ([]models.CourseDetail, error) {
	courses, err := s.store.ListCourses(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list courses")
	}
	return courses, nil
}

// ListDepartments returns all departments.
func (s *Service) ListDepartments(ctx context.Context) ([]models.Department, error) {
	departments, err := s.store.ListDepartments(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list departments")
	}
	return departments, nil
}

// CreateDepartment adds a department. Names are unique case-insensitively.
func (s *Service) CreateDepartment(ctx context.Context, dept *models.Department) error {
	if strings.TrimSpace(dept.Name) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "department name is required")
	}

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.CreateDepartment(ctx, dept); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "department name already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "create department")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, audit.Event{Subject: dept.Name, Action: audit.ActionDepartmentCreated})
	s.logger.Info("department created", "department_id", dept.ID, "name", dept.Name)
	return nil
}

// DeleteDepartment removes a department. Blocked while students, teachers or
// courses reference it.
func (s *Service) DeleteDepartment(ctx context.Context, id int64) error {
	var name string
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		dept, err := s.store.DepartmentByID(ctx, id)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "department not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "load department")
		}
		name = dept.Name

		if err := s.store.DeleteDepartment(ctx, id); err != nil {
			switch {
			case errors.Is(err, sentinel.ErrNotFound):
				return dErrors.New(dErrors.CodeNotFound, "department not found")
			case errors.Is(err, sentinel.ErrConflict):
				return dErrors.New(dErrors.CodeConflict, "department still has students, teachers or courses")
			default:
				return dErrors.Wrap(err, dErrors.CodeInternal, "delete department")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, audit.Event{Subject: name, Action: audit.ActionDepartmentDeleted})
	return nil
}

// ListSemesters returns all semesters.
func (s *Service) ListSemesters(ctx context.Context) ([]models.Semester, error) {
	semesters, err := s.store.ListSemesters(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list semesters")
	}
	return semesters, nil
}

// CreateSemester adds a dated term.
func (s *Service) CreateSemester(ctx context.Context, sem *models.Semester) error {
	if strings.TrimSpace(sem.Name) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "semester name is required")
	}
	if sem.StartDate.IsZero() || sem.EndDate.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "start and end dates are required")
	}
	if !sem.EndDate.After(sem.StartDate) {
		return dErrors.New(dErrors.CodeInvalidInput, "end date must be after start date")
	}

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.CreateSemester(ctx, sem); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "create semester")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("semester created", "semester_id", sem.ID, "name", sem.Name)
	return nil
}

// CurrentSemester returns the semester whose date range covers the request
// day.
func (s *Service) CurrentSemester(ctx context.Context) (*models.Semester, error) {
	sem, err := s.store.CurrentSemester(ctx, requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no semester is currently active")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "current semester")
	}
	return sem, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if event.ActorID == 0 {
		event.ActorID = requestcontext.UserID(ctx)
	}
	if event.UserID == 0 {
		event.UserID = requestcontext.UserID(ctx)
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.Error("emit audit event", "action", event.Action, "error", err)
	}
}
