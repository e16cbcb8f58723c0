package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"registrar/internal/directory/models"
	"registrar/pkg/platform/sentinel"
)

// InMemory is the directory store twin used by unit tests. It mirrors the
// PostgreSQL store's semantics, including uniqueness and the
// referential-integrity checks the schema enforces with constraints.
type InMemory struct {
	mu sync.RWMutex

	users       map[int64]*models.User
	students    map[int64]*models.Student
	teachers    map[int64]*models.Teacher
	departments map[int64]*models.Department
	semesters   map[int64]*models.Semester
	courses     map[int64]*models.Course
	offerings   map[int64]*models.CourseOffering

	nextID int64
}

// NewInMemory constructs an empty in-memory directory store.
func NewInMemory() *InMemory {
	return &InMemory{
		users:       make(map[int64]*models.User),
		students:    make(map[int64]*models.Student),
		teachers:    make(map[int64]*models.Teacher),
		departments: make(map[int64]*models.Department),
		semesters:   make(map[int64]*models.Semester),
		courses:     make(map[int64]*models.Course),
		offerings:   make(map[int64]*models.CourseOffering),
	}
}

func (s *InMemory) nextSeq() int64 {
	s.nextID++
	return s.nextID
}

// --- users ---

func (s *InMemory) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, user.Username) {
			return sentinel.ErrAlreadyUsed
		}
	}
	user.ID = s.nextSeq()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *InMemory) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) UserByID(ctx context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *InMemory) ListUsers(ctx context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		cp.PasswordHash = ""
		users = append(users, cp)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *InMemory) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (s *InMemory) DeleteUser(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return sentinel.ErrNotFound
	}
	for _, st := range s.students {
		if st.UserID == userID {
			return sentinel.ErrConflict
		}
	}
	for _, t := range s.teachers {
		if t.UserID == userID {
			return sentinel.ErrConflict
		}
	}
	delete(s.users, userID)
	return nil
}

// --- role profiles ---

func (s *InMemory) CreateStudent(ctx context.Context, student *models.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range s.students {
		if st.UserID == student.UserID {
			return sentinel.ErrAlreadyUsed
		}
	}
	student.ID = s.nextSeq()
	cp := *student
	s.students[student.ID] = &cp
	return nil
}

func (s *InMemory) StudentByID(ctx context.Context, id int64) (*models.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.students[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (s *InMemory) StudentByUserID(ctx context.Context, userID int64) (*models.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, st := range s.students {
		if st.UserID == userID {
			cp := *st
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) CreateTeacher(ctx context.Context, teacher *models.Teacher) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.teachers {
		if t.UserID == teacher.UserID {
			return sentinel.ErrAlreadyUsed
		}
	}
	teacher.ID = s.nextSeq()
	cp := *teacher
	s.teachers[teacher.ID] = &cp
	return nil
}

func (s *InMemory) TeacherByID(ctx context.Context, id int64) (*models.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.teachers[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *InMemory) TeacherByUserID(ctx context.Context, userID int64) (*models.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.teachers {
		if t.UserID == userID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// --- departments ---

func (s *InMemory) CreateDepartment(ctx context.Context, dept *models.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.departments {
		if strings.EqualFold(d.Name, dept.Name) {
			return sentinel.ErrAlreadyUsed
		}
	}
	dept.ID = s.nextSeq()
	cp := *dept
	s.departments[dept.ID] = &cp
	return nil
}

func (s *InMemory) DepartmentByID(ctx context.Context, id int64) (*models.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.departments[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *InMemory) ListDepartments(ctx context.Context) ([]models.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	depts := make([]models.Department, 0, len(s.departments))
	for _, d := range s.departments {
		depts = append(depts, *d)
	}
	sort.Slice(depts, func(i, j int) bool { return depts[i].ID < depts[j].ID })
	return depts, nil
}

func (s *InMemory) DeleteDepartment(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.departments[id]; !ok {
		return sentinel.ErrNotFound
	}
	for _, st := range s.students {
		if st.DepartmentID == id {
			return sentinel.ErrConflict
		}
	}
	for _, t := range s.teachers {
		if t.DepartmentID == id {
			return sentinel.ErrConflict
		}
	}
	for _, c := range s.courses {
		if c.DepartmentID == id {
			return sentinel.ErrConflict
		}
	}
	delete(s.departments, id)
	return nil
}

// --- semesters ---

func (s *InMemory) CreateSemester(ctx context.Context, sem *models.Semester) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sem.ID = s.nextSeq()
	cp := *sem
	s.semesters[sem.ID] = &cp
	return nil
}

func (s *InMemory) SemesterByID(ctx context.Context, id int64) (*models.Semester, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sem, ok := s.semesters[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *sem
	return &cp, nil
}

func (s *InMemory) ListSemesters(ctx context.Context) ([]models.Semester, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sems := make([]models.Semester, 0, len(s.semesters))
	for _, sem := range s.semesters {
		sems = append(sems, *sem)
	}
	sort.Slice(sems, func(i, j int) bool { return sems[i].StartDate.Before(sems[j].StartDate) })
	return sems, nil
}

func (s *InMemory) CurrentSemester(ctx context.Context, today time.Time) (*models.Semester, error) {
	sems, _ := s.ListSemesters(ctx)
	for i := range sems {
		if sems[i].Contains(today) {
			return &sems[i], nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// --- catalog reads; AddCourse and AddOffering seed test fixtures ---

func (s *InMemory) AddCourse(course *models.Course) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if course.ID == 0 {
		course.ID = s.nextSeq()
	}
	cp := *course
	s.courses[course.ID] = &cp
}

func (s *InMemory) AddOffering(offering *models.CourseOffering) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if offering.ID == 0 {
		offering.ID = s.nextSeq()
	}
	cp := *offering
	s.offerings[offering.ID] = &cp
}

func (s *InMemory) CourseByID(ctx context.Context, id int64) (*models.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.courses[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *InMemory) ListCourses(ctx context.Context) ([]models.CourseDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	courses := make([]models.CourseDetail, 0, len(s.courses))
	for _, c := range s.courses {
		detail := models.CourseDetail{Course: *c}
		if d, ok := s.departments[c.DepartmentID]; ok {
			detail.DepartmentName = d.Name
		}
		courses = append(courses, detail)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, nil
}

func (s *InMemory) LatestOfferingByCourse(ctx context.Context, courseID int64) (*models.OfferingDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *models.OfferingDetail
	for _, o := range s.offerings {
		if o.CourseID != courseID {
			continue
		}
		sem, ok := s.semesters[o.SemesterID]
		if !ok {
			continue
		}
		detail := &models.OfferingDetail{
			CourseOffering: *o,
			SemesterName:   sem.Name,
			SemesterEnd:    sem.EndDate,
		}
		if c, ok := s.courses[o.CourseID]; ok {
			detail.CourseName = c.Name
			detail.CourseCode = c.Code
		}
		if best == nil || detail.SemesterEnd.After(best.SemesterEnd) {
			best = detail
		}
	}
	if best == nil {
		return nil, sentinel.ErrNotFound
	}
	return best, nil
}
