// Package models defines the registrar's directory records: users and their
// role profiles, departments, the course catalog, semesters, offerings, and
// enrollments. Parsing helpers validate the closed vocabularies (role, level,
// course type) at the boundary so services work with checked values only.
package models

import (
	"strings"
	"time"

	dErrors "registrar/pkg/domain-errors"
)

// Role is the flat access role attached to a user account. There is no
// hierarchy; each role unlocks its own surface.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return Role(s), nil
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", s)
}

// Level is the study level shared by students and courses. A student may only
// take courses at their own level.
type Level string

const (
	LevelBachelor Level = "Bachelor"
	LevelMaster   Level = "Master"
)

// ParseLevel validates a level string.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelBachelor, LevelMaster:
		return Level(s), nil
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown level %q", s)
}

// CourseType drives the cross-department rule: Must courses are reserved for
// the owning department's students, electives are open to everyone.
type CourseType string

const (
	CourseTypeMust              CourseType = "Must"
	CourseTypeElective          CourseType = "Elective"
	CourseTypeTechnicalElective CourseType = "Technical Elective"
)

// ParseCourseType validates a course type string.
func ParseCourseType(s string) (CourseType, error) {
	switch CourseType(s) {
	case CourseTypeMust, CourseTypeElective, CourseTypeTechnicalElective:
		return CourseType(s), nil
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown course type %q", s)
}

// OpenAcrossDepartments reports whether students outside the owning
// department may enroll.
func (t CourseType) OpenAcrossDepartments() bool {
	return t == CourseTypeElective || t == CourseTypeTechnicalElective
}

// User is an account record. PasswordHash holds the scheme-tagged stored form
// from the credential package; it never appears in JSON.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Department owns students, teachers and courses.
type Department struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Student is the student profile referencing a user account 1:1. Level and
// department are fixed at creation and drive enrollment eligibility.
type Student struct {
	ID            int64  `json:"id"`
	UserID        int64  `json:"user_id"`
	DepartmentID  int64  `json:"department_id"`
	Level         Level  `json:"level"`
	StudentNumber string `json:"student_number"`
	Name          string `json:"name"`
	Email         string `json:"email"`
}

// Validate checks the required fields for profile creation.
func (s *Student) Validate() error {
	if s.UserID == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	if s.DepartmentID == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "department id is required")
	}
	if _, err := ParseLevel(string(s.Level)); err != nil {
		return err
	}
	if strings.TrimSpace(s.StudentNumber) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "student number is required")
	}
	if strings.TrimSpace(s.Name) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}
	return nil
}

// Teacher is the instructor profile referencing a user account 1:1.
type Teacher struct {
	ID           int64  `json:"id"`
	UserID       int64  `json:"user_id"`
	DepartmentID int64  `json:"department_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
}

// Validate checks the required fields for profile creation.
func (t *Teacher) Validate() error {
	if t.UserID == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	if t.DepartmentID == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "department id is required")
	}
	if strings.TrimSpace(t.Name) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}
	return nil
}

// Course is a catalog entry. Code is unique across the catalog; the owning
// department controls who may take it when the type is Must.
type Course struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Code         string     `json:"code"`
	Credits      int        `json:"credits"`
	ECTS         int        `json:"ects"`
	Level        Level      `json:"level"`
	Type         CourseType `json:"type"`
	DepartmentID int64      `json:"department_id"`
}

// Validate checks the required fields for catalog writes.
func (c *Course) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "course name is required")
	}
	if strings.TrimSpace(c.Code) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "course code is required")
	}
	if c.Credits <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "credits must be positive")
	}
	if c.ECTS <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "ects must be positive")
	}
	if _, err := ParseLevel(string(c.Level)); err != nil {
		return err
	}
	if _, err := ParseCourseType(string(c.Type)); err != nil {
		return err
	}
	if c.DepartmentID == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "department id is required")
	}
	return nil
}

// Semester is a dated term. The semester owns the year; offerings do not
// carry one separately.
type Semester struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// DateOf truncates a clock reading to its UTC calendar day. Semester bounds
// are DATE columns that scan as midnight, so every comparison against the
// request clock must happen at day granularity.
func DateOf(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Contains reports whether the semester's date range covers the given day.
// The last day of the term still counts.
func (s *Semester) Contains(day time.Time) bool {
	day = DateOf(day)
	return !day.Before(s.StartDate) && !day.After(s.EndDate)
}

// CourseOffering is one (course, semester, instructor) teaching instance.
// At most one offering exists per (course, semester) pair.
type CourseOffering struct {
	ID           int64 `json:"id"`
	CourseID     int64 `json:"course_id"`
	SemesterID   int64 `json:"semester_id"`
	InstructorID int64 `json:"instructor_id"`
}

// OfferingDetail joins an offering with its semester window and display
// names. The enrollment engine reads SemesterEnd for the expiry rule.
type OfferingDetail struct {
	CourseOffering
	CourseName   string    `json:"course_name"`
	CourseCode   string    `json:"course_code"`
	SemesterName string    `json:"semester_name"`
	SemesterEnd  time.Time `json:"semester_end"`
}

// Enrollment links a student to a course. The (student, course) pair is
// unique; the offering is resolved at enrollment time but not stored.
type Enrollment struct {
	StudentID  int64     `json:"student_id"`
	CourseID   int64     `json:"course_id"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

// CourseDetail is a read projection of a course plus its department name,
// used by the listing endpoints.
type CourseDetail struct {
	Course
	DepartmentName string `json:"department_name"`
}
