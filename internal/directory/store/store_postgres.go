// Package store persists the directory: user accounts, role profiles,
// departments, semesters, and catalog read projections. Stores are pure I/O;
// eligibility and ownership rules live in the services.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"registrar/internal/directory/models"
	"registrar/internal/platform/postgres"
	"registrar/pkg/platform/sentinel"
	"registrar/pkg/platform/tx"
)

// PostgresStore reads and writes directory rows in PostgreSQL. All methods
// honor a transaction carried in the context, so service write paths compose
// lookups and inserts atomically.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed directory store.
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

// --- users ---

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := s.q(ctx).QueryRowContext(ctx, query, user.Username, user.PasswordHash, user.Role).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT id, username, password_hash, role, created_at
		FROM users
		WHERE username = $1
	`
	return scanUser(s.q(ctx).QueryRowContext(ctx, query, username))
}

func (s *PostgresStore) UserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, username, password_hash, role, created_at
		FROM users
		WHERE id = $1
	`
	return scanUser(s.q(ctx).QueryRowContext(ctx, query, id))
}

// ListUsers returns account projections without the stored credential.
func (s *PostgresStore) ListUsers(ctx context.Context) ([]models.User, error) {
	query := `
		SELECT id, username, role, created_at
		FROM users
		ORDER BY id
	`
	rows, err := s.q(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PostgresStore) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	result, err := s.q(ctx).ExecContext(ctx,
		`UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, userID int64) error {
	result, err := s.q(ctx).ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("delete user: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// --- role profiles ---

func (s *PostgresStore) CreateStudent(ctx context.Context, student *models.Student) error {
	query := `
		INSERT INTO students (user_id, department_id, level, student_number, name, email)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := s.q(ctx).QueryRowContext(ctx, query,
		student.UserID, student.DepartmentID, student.Level,
		student.StudentNumber, student.Name, student.Email,
	).Scan(&student.ID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

func (s *PostgresStore) StudentByID(ctx context.Context, id int64) (*models.Student, error) {
	query := `
		SELECT id, user_id, department_id, level, student_number, name, email
		FROM students
		WHERE id = $1
	`
	return scanStudent(s.q(ctx).QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) StudentByUserID(ctx context.Context, userID int64) (*models.Student, error) {
	query := `
		SELECT id, user_id, department_id, level, student_number, name, email
		FROM students
		WHERE user_id = $1
	`
	return scanStudent(s.q(ctx).QueryRowContext(ctx, query, userID))
}

func (s *PostgresStore) CreateTeacher(ctx context.Context, teacher *models.Teacher) error {
	query := `
		INSERT INTO teachers (user_id, department_id, name, email)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := s.q(ctx).QueryRowContext(ctx, query,
		teacher.UserID, teacher.DepartmentID, teacher.Name, teacher.Email,
	).Scan(&teacher.ID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

func (s *PostgresStore) TeacherByID(ctx context.Context, id int64) (*models.Teacher, error) {
	query := `
		SELECT id, user_id, department_id, name, email
		FROM teachers
		WHERE id = $1
	`
	return scanTeacher(s.q(ctx).QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) TeacherByUserID(ctx context.Context, userID int64) (*models.Teacher, error) {
	query := `
		SELECT id, user_id, department_id, name, email
		FROM teachers
		WHERE user_id = $1
	`
	return scanTeacher(s.q(ctx).QueryRowContext(ctx, query, userID))
}

// --- departments ---

func (s *PostgresStore) CreateDepartment(ctx context.Context, dept *models.Department) error {
	err := s.q(ctx).QueryRowContext(ctx,
		`INSERT INTO departments (name) VALUES ($1) RETURNING id`, dept.Name,
	).Scan(&dept.ID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

func (s *PostgresStore) DepartmentByID(ctx context.Context, id int64) (*models.Department, error) {
	var d models.Department
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT id, name FROM departments WHERE id = $1`, id,
	).Scan(&d.ID, &d.Name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get department: %w", err)
	}
	return &d, nil
}

func (s *PostgresStore) ListDepartments(ctx context.Context) ([]models.Department, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `SELECT id, name FROM departments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()

	var depts []models.Department
	for rows.Next() {
		var d models.Department
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		depts = append(depts, d)
	}
	return depts, rows.Err()
}

// DeleteDepartment removes a department. The FK constraints from students,
// teachers and courses surface as ErrConflict: a department that still owns
// rows cannot be removed.
func (s *PostgresStore) DeleteDepartment(ctx context.Context, id int64) error {
	result, err := s.q(ctx).ExecContext(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("delete department: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete department rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// --- semesters ---

func (s *PostgresStore) CreateSemester(ctx context.Context, sem *models.Semester) error {
	err := s.q(ctx).QueryRowContext(ctx,
		`INSERT INTO semesters (name, start_date, end_date) VALUES ($1, $2, $3) RETURNING id`,
		sem.Name, sem.StartDate, sem.EndDate,
	).Scan(&sem.ID)
	if err != nil {
		return fmt.Errorf("create semester: %w", err)
	}
	return nil
}

func (s *PostgresStore) SemesterByID(ctx context.Context, id int64) (*models.Semester, error) {
	var sem models.Semester
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT id, name, start_date, end_date FROM semesters WHERE id = $1`, id,
	).Scan(&sem.ID, &sem.Name, &sem.StartDate, &sem.EndDate)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get semester: %w", err)
	}
	return &sem, nil
}

func (s *PostgresStore) ListSemesters(ctx context.Context) ([]models.Semester, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT id, name, start_date, end_date FROM semesters ORDER BY start_date`)
	if err != nil {
		return nil, fmt.Errorf("list semesters: %w", err)
	}
	defer rows.Close()

	var sems []models.Semester
	for rows.Next() {
		var sem models.Semester
		if err := rows.Scan(&sem.ID, &sem.Name, &sem.StartDate, &sem.EndDate); err != nil {
			return nil, fmt.Errorf("scan semester: %w", err)
		}
		sems = append(sems, sem)
	}
	return sems, rows.Err()
}

// CurrentSemester returns the semester whose date range contains today.
// First match wins; the schema does not forbid overlap. The clock is
// truncated to its date so the term's last day still matches the DATE bounds.
func (s *PostgresStore) CurrentSemester(ctx context.Context, today time.Time) (*models.Semester, error) {
	today = models.DateOf(today)
	var sem models.Semester
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, name, start_date, end_date
		FROM semesters
		WHERE start_date <= $1 AND end_date >= $1
		ORDER BY start_date
		LIMIT 1
	`, today).Scan(&sem.ID, &sem.Name, &sem.StartDate, &sem.EndDate)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("current semester: %w", err)
	}
	return &sem, nil
}

// --- catalog reads ---

func (s *PostgresStore) CourseByID(ctx context.Context, id int64) (*models.Course, error) {
	query := `
		SELECT id, name, code, credits, ects, level, type, department_id
		FROM courses
		WHERE id = $1
	`
	return scanCourse(s.q(ctx).QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) ListCourses(ctx context.Context) ([]models.CourseDetail, error) {
	query := `
		SELECT c.id, c.name, c.code, c.credits, c.ects, c.level, c.type, c.department_id, d.name
		FROM courses c
		JOIN departments d ON d.id = c.department_id
		ORDER BY c.id
	`
	rows, err := s.q(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	var courses []models.CourseDetail
	for rows.Next() {
		var c models.CourseDetail
		if err := rows.Scan(&c.ID, &c.Name, &c.Code, &c.Credits, &c.ECTS, &c.Level, &c.Type, &c.DepartmentID, &c.DepartmentName); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// LatestOfferingByCourse returns the course's offering in the
// latest-ending semester, or ErrNotFound when the course is not offered at
// all. The enrollment engine evaluates expiry against SemesterEnd.
func (s *PostgresStore) LatestOfferingByCourse(ctx context.Context, courseID int64) (*models.OfferingDetail, error) {
	query := `
		SELECT co.id, co.course_id, co.semester_id, co.instructor_id,
		       c.name, c.code, s.name, s.end_date
		FROM course_offerings co
		JOIN courses c ON c.id = co.course_id
		JOIN semesters s ON s.id = co.semester_id
		WHERE co.course_id = $1
		ORDER BY s.end_date DESC
		LIMIT 1
	`
	var o models.OfferingDetail
	err := s.q(ctx).QueryRowContext(ctx, query, courseID).Scan(
		&o.ID, &o.CourseID, &o.SemesterID, &o.InstructorID,
		&o.CourseName, &o.CourseCode, &o.SemesterName, &o.SemesterEnd,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("latest offering by course: %w", err)
	}
	return &o, nil
}

// --- scan helpers ---

type row interface {
	Scan(dest ...any) error
}

func scanUser(r row) (*models.User, error) {
	var u models.User
	if err := r.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func scanStudent(r row) (*models.Student, error) {
	var st models.Student
	if err := r.Scan(&st.ID, &st.UserID, &st.DepartmentID, &st.Level, &st.StudentNumber, &st.Name, &st.Email); err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan student: %w", err)
	}
	return &st, nil
}

func scanTeacher(r row) (*models.Teacher, error) {
	var t models.Teacher
	if err := r.Scan(&t.ID, &t.UserID, &t.DepartmentID, &t.Name, &t.Email); err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan teacher: %w", err)
	}
	return &t, nil
}

func scanCourse(r row) (*models.Course, error) {
	var c models.Course
	if err := r.Scan(&c.ID, &c.Name, &c.Code, &c.Credits, &c.ECTS, &c.Level, &c.Type, &c.DepartmentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan course: %w", err)
	}
	return &c, nil
}
