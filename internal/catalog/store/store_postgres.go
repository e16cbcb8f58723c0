// Package store persists the course catalog: courses and their per-semester
// offerings. Uniqueness of course codes and (course, semester) pairs is
// enforced here by constraints; the service layer pre-checks and maps the
// constraint sentinels to domain errors.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"registrar/internal/directory/models"
	"registrar/internal/platform/postgres"
	"registrar/pkg/platform/sentinel"
	"registrar/pkg/platform/tx"
)

// PostgresStore persists the catalog in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed catalog store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

// --- courses ---

func (s *PostgresStore) CreateCourse(ctx context.Context, course *models.Course) error {
	err := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO courses (name, code, credits, ects, level, type, department_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, course.Name, course.Code, course.Credits, course.ECTS,
		course.Level, course.Type, course.DepartmentID).Scan(&course.ID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateCourse(ctx context.Context, course *models.Course) error {
	result, err := s.q(ctx).ExecContext(ctx, `
		UPDATE courses
		SET name = $2, code = $3, credits = $4, ects = $5, level = $6, type = $7, department_id = $8
		WHERE id = $1
	`, course.ID, course.Name, course.Code, course.Credits, course.ECTS,
		course.Level, course.Type, course.DepartmentID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("update course: %w", err)
	}
	return mustAffectOne(result, "update course")
}

// DeleteCourse removes a course. Offerings and enrollments referencing it
// surface as ErrConflict via their foreign keys.
func (s *PostgresStore) DeleteCourse(ctx context.Context, id int64) error {
	result, err := s.q(ctx).ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("delete course: %w", err)
	}
	return mustAffectOne(result, "delete course")
}

func (s *PostgresStore) CourseByID(ctx context.Context, id int64) (*models.Course, error) {
	var c models.Course
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, name, code, credits, ects, level, type, department_id
		FROM courses WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Code, &c.Credits, &c.ECTS, &c.Level, &c.Type, &c.DepartmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("course by id: %w", err)
	}
	return &c, nil
}

// ListTeachingCourses returns the distinct courses the teacher has offerings
// for.
func (s *PostgresStore) ListTeachingCourses(ctx context.Context, teacherID int64) ([]models.CourseDetail, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT DISTINCT c.id, c.name, c.code, c.credits, c.ects, c.level, c.type, c.department_id, d.name
		FROM courses c
		JOIN course_offerings o ON o.course_id = c.id
		JOIN departments d ON d.id = c.department_id
		WHERE o.instructor_id = $1
		ORDER BY c.id
	`, teacherID)
	if err != nil {
		return nil, fmt.Errorf("list teaching courses: %w", err)
	}
	defer rows.Close()

	return scanCourseDetails(rows)
}

// --- offerings ---

func (s *PostgresStore) CreateOffering(ctx context.Context, offering *models.CourseOffering) error {
	err := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO course_offerings (course_id, semester_id, instructor_id)
		VALUES ($1, $2, $3)
		RETURNING id
	`, offering.CourseID, offering.SemesterID, offering.InstructorID).Scan(&offering.ID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create offering: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateOffering(ctx context.Context, offering *models.CourseOffering) error {
	result, err := s.q(ctx).ExecContext(ctx, `
		UPDATE course_offerings
		SET course_id = $2, semester_id = $3, instructor_id = $4
		WHERE id = $1
	`, offering.ID, offering.CourseID, offering.SemesterID, offering.InstructorID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("update offering: %w", err)
	}
	return mustAffectOne(result, "update offering")
}

func (s *PostgresStore) DeleteOffering(ctx context.Context, id int64) error {
	result, err := s.q(ctx).ExecContext(ctx, `DELETE FROM course_offerings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete offering: %w", err)
	}
	return mustAffectOne(result, "delete offering")
}

func (s *PostgresStore) OfferingByID(ctx context.Context, id int64) (*models.CourseOffering, error) {
	var o models.CourseOffering
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, course_id, semester_id, instructor_id
		FROM course_offerings WHERE id = $1
	`, id).Scan(&o.ID, &o.CourseID, &o.SemesterID, &o.InstructorID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("offering by id: %w", err)
	}
	return &o, nil
}

// ListOfferings returns offerings with course and semester details,
// optionally filtered to one semester.
func (s *PostgresStore) ListOfferings(ctx context.Context, semesterID *int64) ([]models.OfferingDetail, error) {
	query := `
		SELECT o.id, o.course_id, o.semester_id, o.instructor_id,
		       c.name, c.code, s.name, s.end_date
		FROM course_offerings o
		JOIN courses c ON c.id = o.course_id
		JOIN semesters s ON s.id = o.semester_id
	`
	var args []any
	if semesterID != nil {
		query += ` WHERE o.semester_id = $1`
		args = append(args, *semesterID)
	}
	query += ` ORDER BY o.id`

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list offerings: %w", err)
	}
	defer rows.Close()

	var offerings []models.OfferingDetail
	for rows.Next() {
		var o models.OfferingDetail
		if err := rows.Scan(&o.ID, &o.CourseID, &o.SemesterID, &o.InstructorID,
			&o.CourseName, &o.CourseCode, &o.SemesterName, &o.SemesterEnd); err != nil {
			return nil, fmt.Errorf("scan offering: %w", err)
		}
		offerings = append(offerings, o)
	}
	return offerings, rows.Err()
}

func scanCourseDetails(rows *sql.Rows) ([]models.CourseDetail, error) {
	var courses []models.CourseDetail
	for rows.Next() {
		var c models.CourseDetail
		if err := rows.Scan(&c.ID, &c.Name, &c.Code, &c.Credits, &c.ECTS,
			&c.Level, &c.Type, &c.DepartmentID, &c.DepartmentName); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func mustAffectOne(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
