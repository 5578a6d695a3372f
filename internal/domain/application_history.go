package domain

import "time"

// ApplicationHistory is an immutable audit entry for one status transition.
type ApplicationHistory struct {
	ID            string
	ApplicationID string
	ChangedByID   string
	ChangedByRole Role
	FromStatus    *ApplicationStatus
	ToStatus      ApplicationStatus
	Remarks       string
	CreatedAt     time.Time
}
