package enrollment

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"registrar/internal/directory/models"
	dirstore "registrar/internal/directory/store"
	"registrar/internal/enrollment/store"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/audit"
	auditmem "registrar/pkg/platform/audit/store/memory"
	"registrar/pkg/platform/tx"
	"registrar/pkg/requestcontext"
)

type EnrollmentServiceSuite struct {
	suite.Suite
	directory   *dirstore.InMemory
	enrollments *store.InMemory
	auditStore  *auditmem.InMemoryStore
	service     *Service
	ctx         context.Context

	cs   *models.Department
	math *models.Department

	ada     *models.Student
	adaUser *models.User

	algorithms  *models.Course // Bachelor Must, CS
	calculus    *models.Course // Bachelor Elective, Math
	distributed *models.Course // Master Must, CS
	archived    *models.Course // Bachelor Must, CS, only offered in an ended semester
	unoffered   *models.Course // Bachelor Must, CS, never offered
}

func TestEnrollmentServiceSuite(t *testing.T) {
	suite.Run(t, new(EnrollmentServiceSuite))
}

// today is the pinned request clock for every test in the suite.
var today = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func (s *EnrollmentServiceSuite) SetupTest() {
	s.directory = dirstore.NewInMemory()
	s.enrollments = store.NewInMemory()
	s.auditStore = auditmem.NewInMemoryStore()
	s.service = NewService(s.directory, s.enrollments, tx.NewMemoryRunner(),
		WithLogger(slog.New(slog.DiscardHandler)),
		WithAuditor(audit.NewPublisher(s.auditStore)),
	)
	s.ctx = requestcontext.WithTime(context.Background(), today)

	s.seedDirectory()
}

func (s *EnrollmentServiceSuite) seedDirectory() {
	ctx := context.Background()

	s.cs = &models.Department{Name: "Computer Science"}
	s.math = &models.Department{Name: "Mathematics"}
	s.Require().NoError(s.directory.CreateDepartment(ctx, s.cs))
	s.Require().NoError(s.directory.CreateDepartment(ctx, s.math))

	s.adaUser = &models.User{Username: "ada", PasswordHash: "salted-sha256$aa$bb", Role: models.RoleStudent}
	s.Require().NoError(s.directory.CreateUser(ctx, s.adaUser))
	s.ada = &models.Student{UserID: s.adaUser.ID, DepartmentID: s.cs.ID,
		Level: models.LevelBachelor, StudentNumber: "S100", Name: "Ada"}
	s.Require().NoError(s.directory.CreateStudent(ctx, s.ada))

	current := &models.Semester{Name: "Spring 2026",
		StartDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)}
	ended := &models.Semester{Name: "Fall 2025",
		StartDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)}
	s.Require().NoError(s.directory.CreateSemester(ctx, current))
	s.Require().NoError(s.directory.CreateSemester(ctx, ended))

	s.algorithms = &models.Course{Name: "Algorithms", Code: "CS201", Credits: 3, ECTS: 6,
		Level: models.LevelBachelor, Type: models.CourseTypeMust, DepartmentID: s.cs.ID}
	s.calculus = &models.Course{Name: "Calculus I", Code: "MATH101", Credits: 4, ECTS: 7,
		Level: models.LevelBachelor, Type: models.CourseTypeElective, DepartmentID: s.math.ID}
	s.distributed = &models.Course{Name: "Distributed Systems", Code: "CS501", Credits: 3, ECTS: 8,
		Level: models.LevelMaster, Type: models.CourseTypeMust, DepartmentID: s.cs.ID}
	s.archived = &models.Course{Name: "Pascal Programming", Code: "CS105", Credits: 2, ECTS: 4,
		Level: models.LevelBachelor, Type: models.CourseTypeMust, DepartmentID: s.cs.ID}
	s.unoffered = &models.Course{Name: "Quantum Computing", Code: "CS330", Credits: 3, ECTS: 6,
		Level: models.LevelBachelor, Type: models.CourseTypeMust, DepartmentID: s.cs.ID}
	for _, c := range []*models.Course{s.algorithms, s.calculus, s.distributed, s.archived, s.unoffered} {
		s.directory.AddCourse(c)
	}

	s.directory.AddOffering(&models.CourseOffering{CourseID: s.algorithms.ID, SemesterID: current.ID, InstructorID: 1})
	s.directory.AddOffering(&models.CourseOffering{CourseID: s.calculus.ID, SemesterID: current.ID, InstructorID: 1})
	s.directory.AddOffering(&models.CourseOffering{CourseID: s.distributed.ID, SemesterID: current.ID, InstructorID: 1})
	s.directory.AddOffering(&models.CourseOffering{CourseID: s.archived.ID, SemesterID: ended.ID, InstructorID: 1})
}

func (s *EnrollmentServiceSuite) TestEnrollCommits() {
	result, err := s.service.Enroll(s.ctx, s.ada.ID, s.algorithms.ID)
	s.Require().NoError(err)
	s.True(result.Allowed)
	s.Equal("Successfully enrolled in course", result.Message)

	exists, err := s.enrollments.Exists(s.ctx, s.ada.ID, s.algorithms.ID)
	s.Require().NoError(err)
	s.True(exists)

	events, err := s.auditStore.ListByUser(s.ctx, s.adaUser.ID)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionEnrollmentCommitted, events[0].Action)
	s.Equal("CS201", events[0].Subject)
}

func (s *EnrollmentServiceSuite) TestEnrollDenials() {
	// A Must course owned by another department denies cross-department
	// students even at the matching level.
	crossMust := &models.Course{Name: "Real Analysis", Code: "MATH301", Credits: 3, ECTS: 6,
		Level: models.LevelBachelor, Type: models.CourseTypeMust, DepartmentID: s.math.ID}
	s.directory.AddCourse(crossMust)
	sem, err := s.directory.CurrentSemester(context.Background(), today)
	s.Require().NoError(err)
	s.directory.AddOffering(&models.CourseOffering{CourseID: crossMust.ID, SemesterID: sem.ID, InstructorID: 1})

	cases := []struct {
		name     string
		courseID int64
		reason   DenialReason
	}{
		{"level mismatch", s.distributed.ID, ReasonLevelMismatch},
		{"cross-department must course", crossMust.ID, ReasonDepartmentTypeRestricted},
		{"no offering", s.unoffered.ID, ReasonOfferingNotFound},
		{"expired offering", s.archived.ID, ReasonOfferingExpired},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			result, err := s.service.Enroll(s.ctx, s.ada.ID, tc.courseID)
			s.Require().NoError(err)
			s.False(result.Allowed)
			s.Equal(tc.reason, result.Reason)
			s.NotEmpty(result.Message)

			exists, err := s.enrollments.Exists(s.ctx, s.ada.ID, tc.courseID)
			s.Require().NoError(err)
			s.False(exists)
		})
	}
}

func (s *EnrollmentServiceSuite) TestEnrollDenialIsAudited() {
	_, err := s.service.Enroll(s.ctx, s.ada.ID, s.distributed.ID)
	s.Require().NoError(err)

	events, err := s.auditStore.ListByUser(s.ctx, s.adaUser.ID)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionEnrollmentDenied, events[0].Action)
	s.Equal(string(ReasonLevelMismatch), events[0].Reason)
}

func (s *EnrollmentServiceSuite) TestEnrollElectiveOpenAcrossDepartments() {
	result, err := s.service.Enroll(s.ctx, s.ada.ID, s.calculus.ID)
	s.Require().NoError(err)
	s.True(result.Allowed)
}

func (s *EnrollmentServiceSuite) TestEnrollTwiceDeniesSecondAttempt() {
	result, err := s.service.Enroll(s.ctx, s.ada.ID, s.algorithms.ID)
	s.Require().NoError(err)
	s.Require().True(result.Allowed)

	result, err = s.service.Enroll(s.ctx, s.ada.ID, s.algorithms.ID)
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.Equal(ReasonAlreadyEnrolled, result.Reason)
}

func (s *EnrollmentServiceSuite) TestEnrollOnSemesterEndDateAllowed() {
	s.Run("midnight on the last day", func() {
		lastDay := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
		ctx := requestcontext.WithTime(context.Background(), lastDay)

		result, err := s.service.Enroll(ctx, s.ada.ID, s.algorithms.ID)
		s.Require().NoError(err)
		s.True(result.Allowed)
	})

	s.Run("afternoon on the last day", func() {
		// The live request clock carries time-of-day; the last day of the
		// semester must stay open past midnight.
		s.Require().NoError(s.service.Unenroll(s.ctx, s.ada.ID, s.algorithms.ID))

		lastAfternoon := time.Date(2026, 6, 30, 14, 30, 0, 0, time.UTC)
		ctx := requestcontext.WithTime(context.Background(), lastAfternoon)

		result, err := s.service.Enroll(ctx, s.ada.ID, s.algorithms.ID)
		s.Require().NoError(err)
		s.True(result.Allowed)
	})
}

func (s *EnrollmentServiceSuite) TestEnrollUnknownStudentOrCourse() {
	s.Run("unknown student", func() {
		_, err := s.service.Enroll(s.ctx, 9999, s.algorithms.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown course", func() {
		_, err := s.service.Enroll(s.ctx, s.ada.ID, 9999)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *EnrollmentServiceSuite) TestUnenroll() {
	result, err := s.service.Enroll(s.ctx, s.ada.ID, s.algorithms.ID)
	s.Require().NoError(err)
	s.Require().True(result.Allowed)

	s.Require().NoError(s.service.Unenroll(s.ctx, s.ada.ID, s.algorithms.ID))

	exists, err := s.enrollments.Exists(s.ctx, s.ada.ID, s.algorithms.ID)
	s.Require().NoError(err)
	s.False(exists)

	s.Run("dropping again is not found", func() {
		err := s.service.Unenroll(s.ctx, s.ada.ID, s.algorithms.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("re-enrollment after drop is allowed", func() {
		result, err := s.service.Enroll(s.ctx, s.ada.ID, s.algorithms.ID)
		s.Require().NoError(err)
		s.True(result.Allowed)
	})
}

func (s *EnrollmentServiceSuite) TestListStudentCourses() {
	s.enrollments.AddCourseDetail(models.CourseDetail{Course: *s.algorithms, DepartmentName: "Computer Science"})
	s.enrollments.AddCourseDetail(models.CourseDetail{Course: *s.calculus, DepartmentName: "Mathematics"})

	for _, id := range []int64{s.algorithms.ID, s.calculus.ID} {
		result, err := s.service.Enroll(s.ctx, s.ada.ID, id)
		s.Require().NoError(err)
		s.Require().True(result.Allowed)
	}

	courses, err := s.service.ListStudentCourses(s.ctx, s.ada.ID)
	s.Require().NoError(err)
	s.Require().Len(courses, 2)
	s.Equal("Computer Science", courses[0].DepartmentName)

	s.Run("unknown student", func() {
		_, err := s.service.ListStudentCourses(s.ctx, 9999)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
