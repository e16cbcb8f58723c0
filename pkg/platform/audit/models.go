// Package audit captures the registrar's append-only action trail. Services
// emit events through a Publisher; sinks fan out to memory, the database, or
// Kafka without the services knowing which.
package audit

import (
	"context"
	"time"
)

// Action names the recorded operation. Values are wire strings consumed by
// downstream tooling, so they never change once shipped.
type Action string

const (
	// Account actions.
	ActionUserCreated     Action = "user_created"
	ActionUserDeleted     Action = "user_deleted"
	ActionPasswordChanged Action = "password_changed"
	ActionAuthFailed      Action = "auth_failed"
	ActionSessionCreated  Action = "session_created"
	ActionSessionRevoked  Action = "session_revoked"

	// Enrollment actions.
	ActionEnrollmentCommitted Action = "enrollment_committed"
	ActionEnrollmentDenied    Action = "enrollment_denied"
	ActionEnrollmentDropped   Action = "enrollment_dropped"

	// Catalog actions.
	ActionCourseCreated   Action = "course_created"
	ActionCourseUpdated   Action = "course_updated"
	ActionCourseDeleted   Action = "course_deleted"
	ActionOfferingCreated Action = "offering_created"
	ActionOfferingUpdated Action = "offering_updated"
	ActionOfferingDeleted Action = "offering_deleted"

	// Directory actions.
	ActionDepartmentCreated Action = "department_created"
	ActionDepartmentDeleted Action = "department_deleted"
)

// Event is one audit record. UserID is the account the action concerns;
// ActorID is set when an admin acts on someone else's behalf.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	UserID    int64     `json:"user_id,omitempty"`
	Subject   string    `json:"subject"`
	Action    Action    `json:"action"`
	Decision  string    `json:"decision,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	ActorID   int64     `json:"actor_id,omitempty"`
}

// Appender is the write side of a sink. The Kafka sink only appends; reads
// happen downstream of the broker.
type Appender interface {
	Append(ctx context.Context, event Event) error
}

// Store is a sink with read access for the admin surface.
type Store interface {
	Appender
	ListByUser(ctx context.Context, userID int64) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Publisher stamps and appends events. It exists so services depend on a
// narrow emit surface rather than on a concrete sink.
type Publisher struct {
	sink Appender
}

func NewPublisher(sink Appender) *Publisher {
	return &Publisher{sink: sink}
}

// Emit appends the event, stamping the timestamp when the caller left it zero.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return p.sink.Append(ctx, event)
}
