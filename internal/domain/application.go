package domain

import "time"

// ApplicationStatus enumerates review states for a transfer request.
type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "Pending"
	ApplicationStatusApproved ApplicationStatus = "Approved"
	ApplicationStatusRejected ApplicationStatus = "Rejected"
)

// Decision is a staff verdict on a pending application.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Target returns the status a decision moves an application to.
func (d Decision) Target() (ApplicationStatus, bool) {
	switch d {
	case DecisionApprove:
		return ApplicationStatusApproved, true
	case DecisionReject:
		return ApplicationStatusRejected, true
	}
	return "", false
}

// CourseItem is a completed external course claimed for credit.
type CourseItem struct {
	CourseCode        string     `json:"course_code" validate:"required,max=32"`
	CourseName        string     `json:"course_name" validate:"required,max=200"`
	Platform          string     `json:"platform" validate:"required,max=100"`
	Credits           float64    `json:"credits" validate:"gt=0,lte=20"`
	CompletedOn       *time.Time `json:"completed_on,omitempty"`
	CertificateFileID *string    `json:"certificate_file_id,omitempty"`
}

// InternshipItem is an internship claimed for credit.
type InternshipItem struct {
	Organization      string    `json:"organization" validate:"required,max=200"`
	Title             string    `json:"title" validate:"required,max=200"`
	StartDate         time.Time `json:"start_date" validate:"required"`
	EndDate           time.Time `json:"end_date" validate:"required,gtefield=StartDate"`
	Credits           float64   `json:"credits" validate:"gte=0,lte=20"`
	CertificateFileID *string   `json:"certificate_file_id,omitempty"`
}

// Application is a student's credit-transfer request.
// PDFRef is non-nil only while Status is Approved. Version increases on every
// committed write and guards conditional updates against stale copies.
type Application struct {
	ID          string
	OwnerID     string
	Department  string
	Semester    int
	Courses     []CourseItem
	Internships []InternshipItem
	Status      ApplicationStatus
	Remarks     string
	PDFRef      *string
	ReviewedBy  *string
	ReviewedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int64
}

// OwnedBy reports whether userID created the application.
func (a *Application) OwnedBy(userID string) bool {
	return a != nil && a.OwnerID == userID
}

// Editable reports whether the owner may still change the content.
func (a *Application) Editable() bool {
	return a.Status == ApplicationStatusPending || a.Status == ApplicationStatusRejected
}
