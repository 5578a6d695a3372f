package events

import (
	"time"

	"github.com/spec-kit/credit-transfer/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventApplicationSubmitted   EventType = "application_submitted"
	EventApplicationReviewed    EventType = "application_reviewed"
	EventApplicationResubmitted EventType = "application_resubmitted"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID            string      `json:"id"`
	Type          EventType   `json:"type"`
	ApplicationID string      `json:"application_id"`
	OwnerID       string      `json:"owner_id"`
	Actor         Actor       `json:"actor"`
	Timestamp     time.Time   `json:"timestamp"`
	Payload       interface{} `json:"payload"`
}

// ApplicationReviewedPayload payload.
type ApplicationReviewedPayload struct {
	OldStatus domain.ApplicationStatus `json:"old_status"`
	NewStatus domain.ApplicationStatus `json:"new_status"`
	Remarks   string                   `json:"remarks,omitempty"`
}

// ApplicationSubmittedPayload payload.
type ApplicationSubmittedPayload struct {
	Courses     int `json:"courses"`
	Internships int `json:"internships"`
}
