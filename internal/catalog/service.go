// Package catalog guards writes to courses and their semester offerings.
// Teachers manage their own department's catalog; cross-department writes
// and duplicates are rejected before they reach the constraints.
package catalog

import (
	"context"
	"errors"
	"log/slog"

	"registrar/internal/catalog/metrics"
	"registrar/internal/directory/models"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/audit"
	"registrar/pkg/platform/sentinel"
	"registrar/pkg/platform/tx"
	"registrar/pkg/requestcontext"
)

// Directory is the read surface the catalog needs from the directory module.
type Directory interface {
	DepartmentByID(ctx context.Context, id int64) (*models.Department, error)
	TeacherByID(ctx context.Context, id int64) (*models.Teacher, error)
	SemesterByID(ctx context.Context, id int64) (*models.Semester, error)
}

// Store persists catalog rows.
type Store interface {
	CreateCourse(ctx context.Context, course *models.Course) error
	UpdateCourse(ctx context.Context, course *models.Course) error
	DeleteCourse(ctx context.Context, id int64) error
	CourseByID(ctx context.Context, id int64) (*models.Course, error)
	ListTeachingCourses(ctx context.Context, teacherID int64) ([]models.CourseDetail, error)

	CreateOffering(ctx context.Context, offering *models.CourseOffering) error
	UpdateOffering(ctx context.Context, offering *models.CourseOffering) error
	DeleteOffering(ctx context.Context, id int64) error
	OfferingByID(ctx context.Context, id int64) (*models.CourseOffering, error)
	ListOfferings(ctx context.Context, semesterID *int64) ([]models.OfferingDetail, error)
}

type auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service applies the catalog guard rules inside write transactions.
type Service struct {
	directory Directory
	store     Store
	runner    tx.Runner

	logger  *slog.Logger
	metrics *metrics.Metrics
	auditor auditor
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditor(a auditor) Option {
	return func(s *Service) { s.auditor = a }
}

func NewService(directory Directory, store Store, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		directory: directory,
		store:     store,
		runner:    runner,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCourse adds a catalog entry. When a creating teacher is given, the
// course must belong to that teacher's department.
func (s *Service) CreateCourse(ctx context.Context, course *models.Course, creatorTeacherID *int64) error {
	if err := course.Validate(); err != nil {
		return err
	}

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.checkDepartment(ctx, course.DepartmentID); err != nil {
			return err
		}
		if err := s.checkTeacherDepartment(ctx, creatorTeacherID, course.DepartmentID); err != nil {
			return err
		}
		if err := s.store.CreateCourse(ctx, course); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				s.metrics.IncrementRejection("duplicate")
				return dErrors.New(dErrors.CodeConflict, "course code already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "create course")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.IncrementWrite("course", "created")
	s.emit(ctx, audit.Event{Subject: course.Code, Action: audit.ActionCourseCreated})
	s.logger.Info("course created", "course_id", course.ID, "code", course.Code)
	return nil
}

// UpdateCourse rewrites a catalog entry under the same guards as creation.
func (s *Service) UpdateCourse(ctx context.Context, course *models.Course, actorTeacherID *int64) error {
	if course.ID == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "course id is required")
	}
	if err := course.Validate(); err != nil {
		return err
	}

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.checkDepartment(ctx, course.DepartmentID); err != nil {
			return err
		}
		if err := s.checkTeacherDepartment(ctx, actorTeacherID, course.DepartmentID); err != nil {
			return err
		}
		if err := s.store.UpdateCourse(ctx, course); err != nil {
			switch {
			case errors.Is(err, sentinel.ErrNotFound):
				return dErrors.New(dErrors.CodeNotFound, "course not found")
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				s.metrics.IncrementRejection("duplicate")
				return dErrors.New(dErrors.CodeConflict, "course code already exists")
			default:
				return dErrors.Wrap(err, dErrors.CodeInternal, "update course")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.IncrementWrite("course", "updated")
	s.emit(ctx, audit.Event{Subject: course.Code, Action: audit.ActionCourseUpdated})
	return nil
}

// DeleteCourse removes a catalog entry. Blocked while offerings or
// enrollments reference it.
func (s *Service) DeleteCourse(ctx context.Context, id int64) error {
	var code string
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		course, err := s.store.CourseByID(ctx, id)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "course not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "load course")
		}
		code = course.Code

		if err := s.store.DeleteCourse(ctx, id); err != nil {
			switch {
			case errors.Is(err, sentinel.ErrNotFound):
				return dErrors.New(dErrors.CodeNotFound, "course not found")
			case errors.Is(err, sentinel.ErrConflict):
				s.metrics.IncrementRejection("integrity")
				return dErrors.New(dErrors.CodeConflict, "course still has offerings or enrollments")
			default:
				return dErrors.Wrap(err, dErrors.CodeInternal, "delete course")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.IncrementWrite("course", "deleted")
	s.emit(ctx, audit.Event{Subject: code, Action: audit.ActionCourseDeleted})
	return nil
}

// CreateOffering schedules a course for a semester. The instructor must
// belong to the course's department, and at most one offering may exist per
// (course, semester) pair.
func (s *Service) CreateOffering(ctx context.Context, courseID, semesterID, instructorID int64) (*models.CourseOffering, error) {
	offering := &models.CourseOffering{CourseID: courseID, SemesterID: semesterID, InstructorID: instructorID}

	var code string
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		course, err := s.offeringGuards(ctx, offering)
		if err != nil {
			return err
		}
		code = course.Code

		if err := s.store.CreateOffering(ctx, offering); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				s.metrics.IncrementRejection("duplicate")
				return dErrors.New(dErrors.CodeConflict, "course is already offered in this semester")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "create offering")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementWrite("offering", "created")
	s.emit(ctx, audit.Event{Subject: code, Action: audit.ActionOfferingCreated})
	s.logger.Info("offering created",
		"offering_id", offering.ID, "course_id", courseID, "semester_id", semesterID)
	return offering, nil
}

// UpdateOffering rewrites an offering under the same guards as creation.
func (s *Service) UpdateOffering(ctx context.Context, offering *models.CourseOffering) error {
	if offering.ID == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "offering id is required")
	}

	var code string
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		course, err := s.offeringGuards(ctx, offering)
		if err != nil {
			return err
		}
		code = course.Code

		if err := s.store.UpdateOffering(ctx, offering); err != nil {
			switch {
			case errors.Is(err, sentinel.ErrNotFound):
				return dErrors.New(dErrors.CodeNotFound, "offering not found")
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				s.metrics.IncrementRejection("duplicate")
				return dErrors.New(dErrors.CodeConflict, "course is already offered in this semester")
			default:
				return dErrors.Wrap(err, dErrors.CodeInternal, "update offering")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.IncrementWrite("offering", "updated")
	s.emit(ctx, audit.Event{Subject: code, Action: audit.ActionOfferingUpdated})
	return nil
}

// DeleteOffering removes an offering.
func (s *Service) DeleteOffering(ctx context.Context, id int64) error {
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.DeleteOffering(ctx, id); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "offering not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "delete offering")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.IncrementWrite("offering", "deleted")
	s.emit(ctx, audit.Event{Action: audit.ActionOfferingDeleted})
	return nil
}

// ListOfferings returns offerings, optionally scoped to one semester.
func (s *Service) ListOfferings(ctx context.Context, semesterID *int64) ([]models.OfferingDetail, error) {
	offerings, err := s.store.ListOfferings(ctx, semesterID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list offerings")
	}
	return offerings, nil
}

// ListTeachingCourses returns the courses the teacher has offerings for.
func (s *Service) ListTeachingCourses(ctx context.Context, teacherID int64) ([]models.CourseDetail, error) {
	courses, err := s.store.ListTeachingCourses(ctx, teacherID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list teaching courses")
	}
	return courses, nil
}

// offeringGuards validates the offering's references and the instructor's
// department, returning the course for audit subjects.
func (s *Service) offeringGuards(ctx context.Context, offering *models.CourseOffering) (*models.Course, error) {
	course, err := s.store.CourseByID(ctx, offering.CourseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "course not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load course")
	}

	if _, err := s.directory.SemesterByID(ctx, offering.SemesterID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "semester not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load semester")
	}

	instructor, err := s.directory.TeacherByID(ctx, offering.InstructorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "instructor not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load instructor")
	}
	if instructor.DepartmentID != course.DepartmentID {
		s.metrics.IncrementRejection("cross_department")
		return nil, dErrors.New(dErrors.CodeForbidden, "instructor must belong to the course's department")
	}
	return course, nil
}

func (s *Service) checkDepartment(ctx context.Context, departmentID int64) error {
	if _, err := s.directory.DepartmentByID(ctx, departmentID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeInvalidInput, "department not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "load department")
	}
	return nil
}

func (s *Service) checkTeacherDepartment(ctx context.Context, teacherID *int64, departmentID int64) error {
	if teacherID == nil {
		return nil
	}
	teacher, err := s.directory.TeacherByID(ctx, *teacherID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeInvalidInput, "teacher not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "load teacher")
	}
	if teacher.DepartmentID != departmentID {
		s.metrics.IncrementRejection("cross_department")
		return dErrors.New(dErrors.CodeForbidden, "course must belong to your department")
	}
	return nil
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
