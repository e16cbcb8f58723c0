package enrollment

import (
	"time"

	"registrar/internal/directory/models"
)

// DenialReason identifies the first rule that blocked an enrollment. The UI
// renders the specific rule, so reasons are part of the contract.
type DenialReason string

const (
	ReasonLevelMismatch            DenialReason = "level_mismatch"
	ReasonDepartmentTypeRestricted DenialReason = "department_type_restricted"
	ReasonAlreadyEnrolled          DenialReason = "already_enrolled"
	ReasonOfferingNotFound         DenialReason = "offering_not_found"
	ReasonOfferingExpired          DenialReason = "offering_expired"
)

// Decision is the outcome of an eligibility evaluation.
type Decision struct {
	Allowed bool
	Reason  DenialReason
	Message string
}

func allowed() Decision {
	return Decision{Allowed: true}
}

func denied(reason DenialReason, message string) Decision {
	return Decision{Reason: reason, Message: message}
}

// Evaluate applies the enrollment rules in order and short-circuits on the
// first failure. It is pure: all state is passed in, nothing is read or
// written here.
//
// Rule order: offering existence, level match, department/type openness,
// duplicate enrollment, offering expiry. A department controls who takes its
// Must courses; electives are open across departments; the expiry rule keeps
// students out of historically closed offerings.
func Evaluate(student *models.Student, course *models.Course, offering *models.OfferingDetail, alreadyEnrolled bool, today time.Time) Decision {
	if offering == nil {
		return denied(ReasonOfferingNotFound, "course is not offered in any semester")
	}
	if student.Level != course.Level {
		return denied(ReasonLevelMismatch, "course level does not match student level")
	}
	if student.DepartmentID != course.DepartmentID && !course.Type.OpenAcrossDepartments() {
		return denied(ReasonDepartmentTypeRestricted, "course is restricted to its own department's students")
	}
	if alreadyEnrolled {
		return denied(ReasonAlreadyEnrolled, "already enrolled in this course")
	}
	// Day granularity: SemesterEnd is a date at midnight, today carries
	// time-of-day. An offering whose semester ends today is still open.
	if offering.SemesterEnd.Before(models.DateOf(today)) {
		return denied(ReasonOfferingExpired, "the offering's semester has ended")
	}
	return allowed()
}
