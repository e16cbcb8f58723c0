package enrollment

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"registrar/internal/directory/models"
	"registrar/internal/enrollment/metrics"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/audit"
	"registrar/pkg/platform/sentinel"
	"registrar/pkg/platform/tx"
	"registrar/pkg/requestcontext"
)

// Directory is the read surface the engine needs from the directory module.
type Directory interface {
	StudentByID(ctx context.Context, id int64) (*models.Student, error)
	CourseByID(ctx context.Context, id int64) (*models.Course, error)
	LatestOfferingByCourse(ctx context.Context, courseID int64) (*models.OfferingDetail, error)
}

// Store persists enrollment rows.
type Store interface {
	Exists(ctx context.Context, studentID, courseID int64) (bool, error)
	Create(ctx context.Context, e *models.Enrollment) error
	Delete(ctx context.Context, studentID, courseID int64) error
	ListByStudent(ctx context.Context, studentID int64) ([]models.CourseDetail, error)
}

type auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Result is the outcome of an enrollment attempt. A denial is a valid result,
// not an error: the caller renders Reason and Message to the student.
type Result struct {
	Allowed bool         `json:"allowed"`
	Reason  DenialReason `json:"reason,omitempty"`
	Message string       `json:"message"`
}

// Service runs enrollment attempts as single transactions so the rule
// evaluation and the insert observe one consistent snapshot.
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

// Enroll attempts to enroll the student in the course. Lookups, the rule
// evaluation, and the insert run inside one transaction; the unique
// constraint on (student, course) is the backstop for concurrent attempts,
// so at most one of N racing requests commits and the rest see a denial.
func (s *Service) Enroll(ctx context.Context, studentID, courseID int64) (Result, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveEnrollLatency(time.Since(start)) }()

	today := requestcontext.Now(ctx)

	var (
		result  Result
		student *models.Student
		course  *models.Course
	)
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		student, err = s.directory.StudentByID(ctx, studentID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "student not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "load student")
		}

		course, err = s.directory.CourseByID(ctx, courseID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "course not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "load course")
		}

		offering, err := s.directory.LatestOfferingByCourse(ctx, courseID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "load offering")
		}

		enrolled, err := s.store.Exists(ctx, studentID, courseID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "check enrollment")
		}

		decision := Evaluate(student, course, offering, enrolled, today)
		if !decision.Allowed {
			result = Result{Reason: decision.Reason, Message: decision.Message}
			return nil
		}

		createErr := s.store.Create(ctx, &models.Enrollment{
			StudentID:  studentID,
			CourseID:   courseID,
			EnrolledAt: today,
		})
		if createErr != nil {
			// A concurrent committer beat this transaction to the insert.
			if errors.Is(createErr, sentinel.ErrAlreadyUsed) {
				result = Result{
					Reason:  ReasonAlreadyEnrolled,
					Message: "already enrolled in this course",
				}
				return nil
			}
			return dErrors.Wrap(createErr, dErrors.CodeInternal, "create enrollment")
		}

		result = Result{Allowed: true, Message: "Successfully enrolled in course"}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if result.Allowed {
		s.metrics.IncrementOutcome("committed", "")
		s.emit(ctx, audit.Event{
			UserID:   student.UserID,
			Subject:  course.Code,
			Action:   audit.ActionEnrollmentCommitted,
			Decision: "allowed",
		})
		s.logger.Info("enrollment committed",
			"student_id", studentID, "course_id", courseID)
	} else {
		s.metrics.IncrementOutcome("denied", string(result.Reason))
		event := audit.Event{
			Subject:  courseSubject(course, courseID),
			Action:   audit.ActionEnrollmentDenied,
			Decision: "denied",
			Reason:   string(result.Reason),
		}
		if student != nil {
			event.UserID = student.UserID
		}
		s.emit(ctx, event)
		s.logger.Info("enrollment denied",
			"student_id", studentID, "course_id", courseID, "reason", result.Reason)
	}
	return result, nil
}

// Unenroll drops the student's enrollment in the course.
func (s *Service) Unenroll(ctx context.Context, studentID, courseID int64) error {
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Delete(ctx, studentID, courseID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "not enrolled in this course")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "delete enrollment")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.IncrementOutcome("dropped", "")
	s.emit(ctx, audit.Event{
		UserID:  requestcontext.UserID(ctx),
		Subject: courseSubject(nil, courseID),
		Action:  audit.ActionEnrollmentDropped,
	})
	s.logger.Info("enrollment dropped", "student_id", studentID, "course_id", courseID)
	return nil
}

// ListStudentCourses returns the student's current enrollments with course
// and department details.
func (s *Service) ListStudentCourses(ctx context.Context, studentID int64) ([]models.CourseDetail, error) {
	if _, err := s.directory.StudentByID(ctx, studentID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "student not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load student")
	}

	courses, err := s.store.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list enrollments")
	}
	return courses, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if event.ActorID == 0 {
		event.ActorID = requestcontext.UserID(ctx)
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.Error("emit audit event", "action", event.Action, "error", err)
	}
}

func courseSubject(course *models.Course, courseID int64) string {
	if course != nil {
		return course.Code
	}
	// Lookup may not have happened; record the raw id.
	return "course:" + strconv.FormatInt(courseID, 10)
}
