package store

import (
	"context"
	"sort"
	"sync"

	"registrar/internal/directory/models"
	"registrar/pkg/platform/sentinel"
)

type enrollmentKey struct {
	studentID int64
	courseID  int64
}

// InMemory is the enrollment store twin used by unit tests. Course rows are
// seeded through AddCourseDetail so ListByStudent can resolve the join the
// PostgreSQL store does against the courses table.
type InMemory struct {
	mu          sync.RWMutex
	enrollments map[enrollmentKey]models.Enrollment
	courses     map[int64]models.CourseDetail
}

// NewInMemory constructs an empty in-memory enrollment store.
func NewInMemory() *InMemory {
	return &InMemory{
		enrollments: make(map[enrollmentKey]models.Enrollment),
		courses:     make(map[int64]models.CourseDetail),
	}
}

// AddCourseDetail seeds a course row for ListByStudent lookups.
func (s *InMemory) AddCourseDetail(detail models.CourseDetail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses[detail.ID] = detail
}

func (s *InMemory) Exists(ctx context.Context, studentID, courseID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.enrollments[enrollmentKey{studentID, courseID}]
	return ok, nil
}

func (s *InMemory) Create(ctx context.Context, e *models.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := enrollmentKey{e.StudentID, e.CourseID}
	if _, ok := s.enrollments[key]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.enrollments[key] = *e
	return nil
}

func (s *InMemory) Delete(ctx context.Context, studentID, courseID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := enrollmentKey{studentID, courseID}
	if _, ok := s.enrollments[key]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.enrollments, key)
	return nil
}

func (s *InMemory) ListByStudent(ctx context.Context, studentID int64) ([]models.CourseDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var courses []models.CourseDetail
	for key := range s.enrollments {
		if key.studentID != studentID {
			continue
		}
		if c, ok := s.courses[key.courseID]; ok {
			courses = append(courses, c)
		}
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, nil
}
