package catalog

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"registrar/internal/catalog/store"
	"registrar/internal/directory/models"
	dirstore "registrar/internal/directory/store"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/tx"
)

type CatalogServiceSuite struct {
	suite.Suite
	directory *dirstore.InMemory
	catalog   *store.InMemory
	service   *Service
	ctx       context.Context

	cs   *models.Department
	math *models.Department

	grace  *models.Teacher // CS
	leona  *models.Teacher // Math
	spring *models.Semester
	fall   *models.Semester
}

func TestCatalogServiceSuite(t *testing.T) {
	suite.Run(t, new(CatalogServiceSuite))
}

func (s *CatalogServiceSuite) SetupTest() {
	s.directory = dirstore.NewInMemory()
	s.catalog = store.NewInMemory()
	s.service = NewService(s.directory, s.catalog, tx.NewMemoryRunner(),
		WithLogger(slog.New(slog.DiscardHandler)),
	)
	s.ctx = context.Background()

	s.cs = &models.Department{Name: "Computer Science"}
	s.math = &models.Department{Name: "Mathematics"}
	s.Require().NoError(s.directory.CreateDepartment(s.ctx, s.cs))
	s.Require().NoError(s.directory.CreateDepartment(s.ctx, s.math))

	graceUser := &models.User{Username: "grace", PasswordHash: "salted-sha256$aa$bb", Role: models.RoleTeacher}
	leonaUser := &models.User{Username: "leona", PasswordHash: "salted-sha256$aa$bb", Role: models.RoleTeacher}
	s.Require().NoError(s.directory.CreateUser(s.ctx, graceUser))
	s.Require().NoError(s.directory.CreateUser(s.ctx, leonaUser))

	s.grace = &models.Teacher{UserID: graceUser.ID, DepartmentID: s.cs.ID, Name: "Grace"}
	s.leona = &models.Teacher{UserID: leonaUser.ID, DepartmentID: s.math.ID, Name: "Leona"}
	s.Require().NoError(s.directory.CreateTeacher(s.ctx, s.grace))
	s.Require().NoError(s.directory.CreateTeacher(s.ctx, s.leona))

	s.spring = &models.Semester{Name: "Spring 2026",
		StartDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)}
	s.fall = &models.Semester{Name: "Fall 2026",
		StartDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC)}
	s.Require().NoError(s.directory.CreateSemester(s.ctx, s.spring))
	s.Require().NoError(s.directory.CreateSemester(s.ctx, s.fall))
	s.catalog.AddSemester(s.spring)
	s.catalog.AddSemester(s.fall)
}

func (s *CatalogServiceSuite) newCourse(code string, deptID int64) *models.Course {
	return &models.Course{Name: "Course " + code, Code: code, Credits: 3, ECTS: 6,
		Level: models.LevelBachelor, Type: models.CourseTypeMust, DepartmentID: deptID}
}

func (s *CatalogServiceSuite) createCourse(code string, deptID int64) *models.Course {
	course := s.newCourse(code, deptID)
	s.Require().NoError(s.service.CreateCourse(s.ctx, course, nil))
	return course
}

func (s *CatalogServiceSuite) TestCreateCourse() {
	s.Run("admin creates without a teacher check", func() {
		course := s.createCourse("CS201", s.cs.ID)
		s.NotZero(course.ID)
	})

	s.Run("duplicate code conflicts", func() {
		err := s.service.CreateCourse(s.ctx, s.newCourse("CS201", s.cs.ID), nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("teacher creates for own department", func() {
		s.NoError(s.service.CreateCourse(s.ctx, s.newCourse("CS202", s.cs.ID), &s.grace.ID))
	})

	s.Run("teacher blocked for another department", func() {
		err := s.service.CreateCourse(s.ctx, s.newCourse("MATH101", s.math.ID), &s.grace.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown department rejected", func() {
		err := s.service.CreateCourse(s.ctx, s.newCourse("CS203", 9999), nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("validation failures rejected", func() {
		bad := s.newCourse("CS204", s.cs.ID)
		bad.Credits = 0
		err := s.service.CreateCourse(s.ctx, bad, nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *CatalogServiceSuite) TestUpdateCourse() {
	course := s.createCourse("CS201", s.cs.ID)
	other := s.createCourse("CS300", s.cs.ID)

	s.Run("rename and retype", func() {
		course.Name = "Advanced Algorithms"
		course.Type = models.CourseTypeTechnicalElective
		s.Require().NoError(s.service.UpdateCourse(s.ctx, course, nil))

		got, err := s.catalog.CourseByID(s.ctx, course.ID)
		s.Require().NoError(err)
		s.Equal("Advanced Algorithms", got.Name)
		s.Equal(models.CourseTypeTechnicalElective, got.Type)
	})

	s.Run("code collision conflicts", func() {
		course.Code = other.Code
		err := s.service.UpdateCourse(s.ctx, course, nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		course.Code = "CS201"
	})

	s.Run("unknown course is not found", func() {
		ghost := s.newCourse("CS999", s.cs.ID)
		ghost.ID = 9999
		err := s.service.UpdateCourse(s.ctx, ghost, nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *CatalogServiceSuite) TestDeleteCourse() {
	course := s.createCourse("CS201", s.cs.ID)

	s.Run("blocked while an offering references it", func() {
		offering, err := s.service.CreateOffering(s.ctx, course.ID, s.spring.ID, s.grace.ID)
		s.Require().NoError(err)

		err = s.service.DeleteCourse(s.ctx, course.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		s.Require().NoError(s.service.DeleteOffering(s.ctx, offering.ID))
	})

	s.Run("blocked while an enrollment references it", func() {
		s.catalog.MarkEnrollment(course.ID)
		err := s.service.DeleteCourse(s.ctx, course.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unreferenced course deletes cleanly", func() {
		free := s.createCourse("CS400", s.cs.ID)
		s.Require().NoError(s.service.DeleteCourse(s.ctx, free.ID))

		_, err := s.catalog.CourseByID(s.ctx, free.ID)
		s.Error(err)
	})
}

func (s *CatalogServiceSuite) TestCreateOffering() {
	course := s.createCourse("CS201", s.cs.ID)

	s.Run("schedules the course", func() {
		offering, err := s.service.CreateOffering(s.ctx, course.ID, s.spring.ID, s.grace.ID)
		s.Require().NoError(err)
		s.NotZero(offering.ID)
	})

	s.Run("duplicate semester pair conflicts", func() {
		_, err := s.service.CreateOffering(s.ctx, course.ID, s.spring.ID, s.grace.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("same course in another semester is fine", func() {
		_, err := s.service.CreateOffering(s.ctx, course.ID, s.fall.ID, s.grace.ID)
		s.NoError(err)
	})

	s.Run("cross-department instructor forbidden", func() {
		other := s.createCourse("CS500", s.cs.ID)
		_, err := s.service.CreateOffering(s.ctx, other.ID, s.spring.ID, s.leona.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown references rejected", func() {
		_, err := s.service.CreateOffering(s.ctx, 9999, s.spring.ID, s.grace.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		_, err = s.service.CreateOffering(s.ctx, course.ID, 9999, s.grace.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		_, err = s.service.CreateOffering(s.ctx, course.ID, s.spring.ID, 9999)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *CatalogServiceSuite) TestUpdateOffering() {
	course := s.createCourse("CS201", s.cs.ID)
	offering, err := s.service.CreateOffering(s.ctx, course.ID, s.spring.ID, s.grace.ID)
	s.Require().NoError(err)

	s.Run("moves to another semester", func() {
		offering.SemesterID = s.fall.ID
		s.Require().NoError(s.service.UpdateOffering(s.ctx, offering))

		got, err := s.catalog.OfferingByID(s.ctx, offering.ID)
		s.Require().NoError(err)
		s.Equal(s.fall.ID, got.SemesterID)
	})

	s.Run("collision with an existing pair conflicts", func() {
		second, err := s.service.CreateOffering(s.ctx, course.ID, s.spring.ID, s.grace.ID)
		s.Require().NoError(err)

		second.SemesterID = s.fall.ID
		err = s.service.UpdateOffering(s.ctx, second)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unknown offering is not found", func() {
		ghost := &models.CourseOffering{ID: 9999, CourseID: course.ID, SemesterID: s.spring.ID, InstructorID: s.grace.ID}
		err := s.service.UpdateOffering(s.ctx, ghost)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *CatalogServiceSuite) TestListOfferings() {
	course := s.createCourse("CS201", s.cs.ID)
	other := s.createCourse("CS300", s.cs.ID)

	_, err := s.service.CreateOffering(s.ctx, course.ID, s.spring.ID, s.grace.ID)
	s.Require().NoError(err)
	_, err = s.service.CreateOffering(s.ctx, other.ID, s.fall.ID, s.grace.ID)
	s.Require().NoError(err)

	s.Run("all offerings", func() {
		offerings, err := s.service.ListOfferings(s.ctx, nil)
		s.Require().NoError(err)
		s.Len(offerings, 2)
		s.Equal("CS201", offerings[0].CourseCode)
		s.Equal("Spring 2026", offerings[0].SemesterName)
	})

	s.Run("scoped to one semester", func() {
		offerings, err := s.service.ListOfferings(s.ctx, &s.fall.ID)
		s.Require().NoError(err)
		s.Require().Len(offerings, 1)
		s.Equal("CS300", offerings[0].CourseCode)
	})
}

func (s *CatalogServiceSuite) TestListTeachingCourses() {
	course := s.createCourse("CS201", s.cs.ID)
	_, err := s.service.CreateOffering(s.ctx, course.ID, s.spring.ID, s.grace.ID)
	s.Require().NoError(err)
	_, err = s.service.CreateOffering(s.ctx, course.ID, s.fall.ID, s.grace.ID)
	s.Require().NoError(err)

	courses, err := s.service.ListTeachingCourses(s.ctx, s.grace.ID)
	s.Require().NoError(err)
	s.Require().Len(courses, 1, "distinct courses, not one per offering")
	s.Equal("CS201", courses[0].Code)

	none, err := s.service.ListTeachingCourses(s.ctx, s.leona.ID)
	s.Require().NoError(err)
	s.Empty(none)
}
