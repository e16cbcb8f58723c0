package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"registrar/internal/directory/models"
	"registrar/pkg/platform/sentinel"
)

// InMemory is the catalog store twin for unit tests. Semester rows are seeded
// with AddSemester so offering listings can resolve their join; enrollment
// references are seeded with MarkEnrollment so DeleteCourse can mirror the
// foreign-key conflict the schema raises.
type InMemory struct {
	mu sync.RWMutex

	courses   map[int64]*models.Course
	offerings map[int64]*models.CourseOffering
	semesters map[int64]*models.Semester

	enrolled map[int64]int

	nextID int64
}

// NewInMemory constructs an empty in-memory catalog store.
func NewInMemory() *InMemory {
	return &InMemory{
		courses:   make(map[int64]*models.Course),
		offerings: make(map[int64]*models.CourseOffering),
		semesters: make(map[int64]*models.Semester),
		enrolled:  make(map[int64]int),
	}
}

func (s *InMemory) nextSeq() int64 {
	s.nextID++
	return s.nextID
}

// AddSemester seeds a semester row for offering joins.
func (s *InMemory) AddSemester(sem *models.Semester) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sem.ID == 0 {
		sem.ID = s.nextSeq()
	}
	cp := *sem
	s.semesters[sem.ID] = &cp
}

// MarkEnrollment records that a student row references the course.
func (s *InMemory) MarkEnrollment(courseID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrolled[courseID]++
}

// --- courses ---

func (s *InMemory) CreateCourse(ctx context.Context, course *models.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.courses {
		if strings.EqualFold(c.Code, course.Code) {
			return sentinel.ErrAlreadyUsed
		}
	}
	course.ID = s.nextSeq()
	cp := *course
	s.courses[course.ID] = &cp
	return nil
}

func (s *InMemory) UpdateCourse(ctx context.Context, course *models.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[course.ID]; !ok {
		return sentinel.ErrNotFound
	}
	for id, c := range s.courses {
		if id != course.ID && strings.EqualFold(c.Code, course.Code) {
			return sentinel.ErrAlreadyUsed
		}
	}
	cp := *course
	s.courses[course.ID] = &cp
	return nil
}

func (s *InMemory) DeleteCourse(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[id]; !ok {
		return sentinel.ErrNotFound
	}
	for _, o := range s.offerings {
		if o.CourseID == id {
			return sentinel.ErrConflict
		}
	}
	if s.enrolled[id] > 0 {
		return sentinel.ErrConflict
	}
	delete(s.courses, id)
	return nil
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

func (s *InMemory) ListTeachingCourses(ctx context.Context, teacherID int64) ([]models.CourseDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int64]bool)
	var courses []models.CourseDetail
	for _, o := range s.offerings {
		if o.InstructorID != teacherID || seen[o.CourseID] {
			continue
		}
		seen[o.CourseID] = true
		if c, ok := s.courses[o.CourseID]; ok {
			courses = append(courses, models.CourseDetail{Course: *c})
		}
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, nil
}

// --- offerings ---

func (s *InMemory) CreateOffering(ctx context.Context, offering *models.CourseOffering) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.offerings {
		if o.CourseID == offering.CourseID && o.SemesterID == offering.SemesterID {
			return sentinel.ErrAlreadyUsed
		}
	}
	offering.ID = s.nextSeq()
	cp := *offering
	s.offerings[offering.ID] = &cp
	return nil
}

func (s *InMemory) UpdateOffering(ctx context.Context, offering *models.CourseOffering) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.offerings[offering.ID]; !ok {
		return sentinel.ErrNotFound
	}
	for id, o := range s.offerings {
		if id != offering.ID && o.CourseID == offering.CourseID && o.SemesterID == offering.SemesterID {
			return sentinel.ErrAlreadyUsed
		}
	}
	cp := *offering
	s.offerings[offering.ID] = &cp
	return nil
}

func (s *InMemory) DeleteOffering(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.offerings[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.offerings, id)
	return nil
}

func (s *InMemory) OfferingByID(ctx context.Context, id int64) (*models.CourseOffering, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.offerings[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *InMemory) ListOfferings(ctx context.Context, semesterID *int64) ([]models.OfferingDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var offerings []models.OfferingDetail
	for _, o := range s.offerings {
		if semesterID != nil && o.SemesterID != *semesterID {
			continue
		}
		detail := models.OfferingDetail{CourseOffering: *o}
		if c, ok := s.courses[o.CourseID]; ok {
			detail.CourseName = c.Name
			detail.CourseCode = c.Code
		}
		if sem, ok := s.semesters[o.SemesterID]; ok {
			detail.SemesterName = sem.Name
			detail.SemesterEnd = sem.EndDate
		}
		offerings = append(offerings, detail)
	}
	sort.Slice(offerings, func(i, j int) bool { return offerings[i].ID < offerings[j].ID })
	return offerings, nil
}
