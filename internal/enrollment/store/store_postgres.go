// Package store persists enrollment rows. The enrollment service is the only
// writer; the (student_id, course_id) unique constraint is the backstop for
// its duplicate check under concurrency.
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

// PostgresStore persists enrollments in PostgreSQL. Pure I/O; the decision of
// whether a row may be written belongs to the service.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed enrollment store.
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

// Exists reports whether the (student, course) pair already has a row.
func (s *PostgresStore) Exists(ctx context.Context, studentID, courseID int64) (bool, error) {
	var exists bool
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2
		)
	`, studentID, courseID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("enrollment exists: %w", err)
	}
	return exists, nil
}

// Create inserts an enrollment row. A concurrent committer racing past the
// service's duplicate check trips the unique constraint and surfaces as
// ErrAlreadyUsed, never as a raw driver error.
func (s *PostgresStore) Create(ctx context.Context, e *models.Enrollment) error {
	err := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO enrollments (student_id, course_id, enrolled_at)
		VALUES ($1, $2, $3)
		RETURNING enrolled_at
	`, e.StudentID, e.CourseID, e.EnrolledAt).Scan(&e.EnrolledAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Delete drops the (student, course) enrollment row.
func (s *PostgresStore) Delete(ctx context.Context, studentID, courseID int64) error {
	result, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM enrollments WHERE student_id = $1 AND course_id = $2`, studentID, courseID)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete enrollment rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// ListByStudent returns the courses the student is enrolled in, with
// department names for display.
func (s *PostgresStore) ListByStudent(ctx context.Context, studentID int64) ([]models.CourseDetail, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT c.id, c.name, c.code, c.credits, c.ects, c.level, c.type, c.department_id, d.name
		FROM courses c
		JOIN enrollments e ON e.course_id = c.id
		JOIN departments d ON d.id = c.department_id
		WHERE e.student_id = $1
		ORDER BY c.id
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var courses []models.CourseDetail
	for rows.Next() {
		var c models.CourseDetail
		if err := rows.Scan(&c.ID, &c.Name, &c.Code, &c.Credits, &c.ECTS, &c.Level, &c.Type, &c.DepartmentID, &c.DepartmentName); err != nil {
			return nil, fmt.Errorf("scan enrolled course: %w", err)
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}
