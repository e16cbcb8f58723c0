package handler_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	authmodels "registrar/internal/auth/models"
	"registrar/internal/auth/store/session"
	"registrar/internal/auth/token"
	"registrar/internal/directory/models"
	dirstore "registrar/internal/directory/store"
	"registrar/internal/enrollment"
	"registrar/internal/enrollment/handler"
	"registrar/internal/enrollment/store"
	"registrar/pkg/platform/tx"
)

// EnrollmentHandlerSuite drives the enrollment routes through a real router,
// token service, and session store; only the persistence is in memory.
type EnrollmentHandlerSuite struct {
	suite.Suite
	router   chi.Router
	tokens   *token.Service
	sessions *session.InMemorySessionStore

	student *models.Student
	course  *models.Course

	studentToken string
	teacherToken string
}

func TestEnrollmentHandlerSuite(t *testing.T) {
	suite.Run(t, new(EnrollmentHandlerSuite))
}

func (s *EnrollmentHandlerSuite) SetupTest() {
	ctx := context.Background()
	directory := dirstore.NewInMemory()
	enrollments := store.NewInMemory()
	log := slog.New(slog.DiscardHandler)

	dept := &models.Department{Name: "Computer Science"}
	s.Require().NoError(directory.CreateDepartment(ctx, dept))

	studentUser := &models.User{Username: "ada", PasswordHash: "salted-sha256$aa$bb", Role: models.RoleStudent}
	teacherUser := &models.User{Username: "grace", PasswordHash: "salted-sha256$aa$bb", Role: models.RoleTeacher}
	s.Require().NoError(directory.CreateUser(ctx, studentUser))
	s.Require().NoError(directory.CreateUser(ctx, teacherUser))

	s.student = &models.Student{UserID: studentUser.ID, DepartmentID: dept.ID,
		Level: models.LevelBachelor, StudentNumber: "S100", Name: "Ada"}
	s.Require().NoError(directory.CreateStudent(ctx, s.student))
	teacher := &models.Teacher{UserID: teacherUser.ID, DepartmentID: dept.ID, Name: "Grace"}
	s.Require().NoError(directory.CreateTeacher(ctx, teacher))

	s.course = &models.Course{Name: "Algorithms", Code: "CS201", Credits: 3, ECTS: 6,
		Level: models.LevelBachelor, Type: models.CourseTypeMust, DepartmentID: dept.ID}
	directory.AddCourse(s.course)
	enrollments.AddCourseDetail(models.CourseDetail{Course: *s.course, DepartmentName: dept.Name})

	semester := &models.Semester{Name: "Spring 2099",
		StartDate: time.Date(2099, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2099, 6, 30, 0, 0, 0, 0, time.UTC)}
	s.Require().NoError(directory.CreateSemester(ctx, semester))
	directory.AddOffering(&models.CourseOffering{
		CourseID: s.course.ID, SemesterID: semester.ID, InstructorID: teacher.ID})

	s.tokens = token.NewService("test-signing-key", "registrar")
	s.sessions = session.New()

	service := enrollment.NewService(directory, enrollments, tx.NewMemoryRunner(),
		enrollment.WithLogger(log))

	s.router = chi.NewRouter()
	handler.New(service, directory, s.tokens, s.sessions, log).Register(s.router)

	s.studentToken = s.login(studentUser)
	s.teacherToken = s.login(teacherUser)
}

func (s *EnrollmentHandlerSuite) login(user *models.User) string {
	sess := &authmodels.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Username:  user.Username,
		Role:      string(user.Role),
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	s.Require().NoError(s.sessions.Create(context.Background(), sess))

	tok, err := s.tokens.Generate(context.Background(), user.ID, user.Username, string(user.Role), sess.ID, time.Hour)
	s.Require().NoError(err)
	return tok
}

func (s *EnrollmentHandlerSuite) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *EnrollmentHandlerSuite) TestEnroll() {
	s.Run("student enrolls", func() {
		rec := s.do(http.MethodPost, "/enrollments", s.studentToken,
			`{"course_id": `+jsonID(s.course.ID)+`}`)
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

		var result enrollment.Result
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &result))
		s.True(result.Allowed)
	})

	s.Run("second attempt is a denial, not an error", func() {
		rec := s.do(http.MethodPost, "/enrollments", s.studentToken,
			`{"course_id": `+jsonID(s.course.ID)+`}`)
		s.Require().Equal(http.StatusOK, rec.Code)

		var result enrollment.Result
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &result))
		s.False(result.Allowed)
		s.Equal(enrollment.ReasonAlreadyEnrolled, result.Reason)
	})

	s.Run("missing course id is a bad request", func() {
		rec := s.do(http.MethodPost, "/enrollments", s.studentToken, `{}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *EnrollmentHandlerSuite) TestListAndUnenroll() {
	rec := s.do(http.MethodGet, "/enrollments", s.studentToken, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`[]`, rec.Body.String())

	rec = s.do(http.MethodPost, "/enrollments", s.studentToken,
		`{"course_id": `+jsonID(s.course.ID)+`}`)
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/enrollments", s.studentToken, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var courses []models.CourseDetail
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &courses))
	s.Require().Len(courses, 1)
	s.Equal("CS201", courses[0].Code)

	rec = s.do(http.MethodDelete, "/enrollments/"+jsonID(s.course.ID), s.studentToken, "")
	s.Equal(http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodDelete, "/enrollments/"+jsonID(s.course.ID), s.studentToken, "")
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *EnrollmentHandlerSuite) TestAccessControl() {
	s.Run("no token is unauthorized", func() {
		rec := s.do(http.MethodGet, "/enrollments", "", "")
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("garbage token is unauthorized", func() {
		rec := s.do(http.MethodGet, "/enrollments", "not-a-token", "")
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("teacher role is forbidden", func() {
		rec := s.do(http.MethodGet, "/enrollments", s.teacherToken, "")
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("revoked session is unauthorized", func() {
		revoked := s.studentToken
		claims, err := s.tokens.Validate(revoked)
		s.Require().NoError(err)
		s.Require().NoError(s.sessions.Revoke(context.Background(), claims.SessionID, time.Now().UTC()))

		rec := s.do(http.MethodGet, "/enrollments", revoked, "")
		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}

func jsonID(id int64) string {
	return strconv.FormatInt(id, 10)
}
