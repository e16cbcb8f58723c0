package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	dErrors "registrar/pkg/domain-errors"
)

func TestParseVocabularies(t *testing.T) {
	t.Run("roles", func(t *testing.T) {
		for _, s := range []string{"student", "teacher", "admin"} {
			got, err := ParseRole(s)
			assert.NoError(t, err)
			assert.Equal(t, Role(s), got)
		}
		_, err := ParseRole("superuser")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("levels", func(t *testing.T) {
		for _, s := range []string{"Bachelor", "Master"} {
			got, err := ParseLevel(s)
			assert.NoError(t, err)
			assert.Equal(t, Level(s), got)
		}
		_, err := ParseLevel("PhD")
		assert.Error(t, err)
	})

	t.Run("course types", func(t *testing.T) {
		for _, s := range []string{"Must", "Elective", "Technical Elective"} {
			got, err := ParseCourseType(s)
			assert.NoError(t, err)
			assert.Equal(t, CourseType(s), got)
		}
		_, err := ParseCourseType("Optional")
		assert.Error(t, err)
	})
}

func TestCourseTypeOpenAcrossDepartments(t *testing.T) {
	assert.False(t, CourseTypeMust.OpenAcrossDepartments())
	assert.True(t, CourseTypeElective.OpenAcrossDepartments())
	assert.True(t, CourseTypeTechnicalElective.OpenAcrossDepartments())
}

func TestSemesterContains(t *testing.T) {
	sem := Semester{
		StartDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
	}

	assert.True(t, sem.Contains(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)), "start date is inclusive")
	assert.True(t, sem.Contains(time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)), "end date is inclusive")
	assert.True(t, sem.Contains(time.Date(2026, 6, 30, 14, 30, 0, 0, time.UTC)), "end date holds all day, not just midnight")
	assert.True(t, sem.Contains(time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)))
	assert.False(t, sem.Contains(time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)))
	assert.False(t, sem.Contains(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)))
}

func TestDateOf(t *testing.T) {
	afternoon := time.Date(2026, 6, 30, 14, 30, 45, 123, time.UTC)
	assert.Equal(t, time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC), DateOf(afternoon))

	// Non-UTC clocks normalize to the UTC calendar day.
	est := time.FixedZone("EST", -5*3600)
	lateEvening := time.Date(2026, 6, 30, 22, 0, 0, 0, est)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), DateOf(lateEvening))
}

func TestStudentValidate(t *testing.T) {
	valid := Student{UserID: 1, DepartmentID: 2, Level: LevelBachelor, StudentNumber: "S100", Name: "Ada"}
	assert.NoError(t, valid.Validate())

	cases := map[string]Student{
		"missing user":           {DepartmentID: 2, Level: LevelBachelor, StudentNumber: "S100", Name: "Ada"},
		"missing department":     {UserID: 1, Level: LevelBachelor, StudentNumber: "S100", Name: "Ada"},
		"bad level":              {UserID: 1, DepartmentID: 2, Level: "PhD", StudentNumber: "S100", Name: "Ada"},
		"missing student number": {UserID: 1, DepartmentID: 2, Level: LevelBachelor, Name: "Ada"},
		"missing name":           {UserID: 1, DepartmentID: 2, Level: LevelBachelor, StudentNumber: "S100"},
	}
	for name, st := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, st.Validate())
		})
	}
}

func TestCourseValidate(t *testing.T) {
	valid := Course{Name: "Algorithms", Code: "CS201", Credits: 3, ECTS: 6, Level: LevelBachelor, Type: CourseTypeMust, DepartmentID: 1}
	assert.NoError(t, valid.Validate())

	broken := valid
	broken.Code = "  "
	assert.Error(t, broken.Validate())

	broken = valid
	broken.Credits = 0
	assert.Error(t, broken.Validate())

	broken = valid
	broken.Type = "Optional"
	assert.Error(t, broken.Validate())
}
