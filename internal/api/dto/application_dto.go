package dto

import (
	"time"

	"github.com/spec-kit/credit-transfer/internal/domain"
)

// ApplicationRequest payload for submission and edits.
type ApplicationRequest struct {
	Semester    int                     `json:"semester"`
	Courses     []domain.CourseItem     `json:"courses"`
	Internships []domain.InternshipItem `json:"internships"`
}

// ReviewRequest payload for staff decisions.
type ReviewRequest struct {
	Decision domain.Decision `json:"decision"`
	Remarks  string          `json:"remarks"`
}

// ApplicationResponse representation.
type ApplicationResponse struct {
	ID          string                   `json:"id"`
	OwnerID     string                   `json:"owner_id"`
	Department  string                   `json:"department"`
	Semester    int                      `json:"semester"`
	Courses     []domain.CourseItem      `json:"courses"`
	Internships []domain.InternshipItem  `json:"internships"`
	Status      domain.ApplicationStatus `json:"status"`
	Remarks     string                   `json:"remarks,omitempty"`
	HasPDF      bool                     `json:"has_pdf"`
	ReviewedBy  *string                  `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time               `json:"reviewed_at,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// ApplicationHistoryResponse is one audit entry.
type ApplicationHistoryResponse struct {
	ID            string                    `json:"id"`
	ChangedByID   string                    `json:"changed_by_id"`
	ChangedByRole domain.Role               `json:"changed_by_role"`
	FromStatus    *domain.ApplicationStatus `json:"from_status"`
	ToStatus      domain.ApplicationStatus  `json:"to_status"`
	Remarks       string                    `json:"remarks,omitempty"`
	CreatedAt     time.Time                 `json:"created_at"`
}

// ArtifactResponse points at the approval PDF.
type ArtifactResponse struct {
	PDFURL string `json:"pdfUrl"`
}

// FileResponse is returned after an upload.
type FileResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// NewApplicationResponse maps an application to its public view.
func NewApplicationResponse(app *domain.Application) ApplicationResponse {
	courses := app.Courses
	if courses == nil {
		courses = []domain.CourseItem{}
	}
	internships := app.Internships
	if internships == nil {
		internships = []domain.InternshipItem{}
	}
	return ApplicationResponse{
		ID:          app.ID,
		OwnerID:     app.OwnerID,
		Department:  app.Department,
		Semester:    app.Semester,
		Courses:     courses,
		Internships: internships,
		Status:      app.Status,
		Remarks:     app.Remarks,
		HasPDF:      app.PDFRef != nil,
		ReviewedBy:  app.ReviewedBy,
		ReviewedAt:  app.ReviewedAt,
		CreatedAt:   app.CreatedAt,
		UpdatedAt:   app.UpdatedAt,
	}
}

// NewApplicationHistoryResponses maps audit entries.
func NewApplicationHistoryResponses(entries []domain.ApplicationHistory) []ApplicationHistoryResponse {
	resp := make([]ApplicationHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, ApplicationHistoryResponse{
			ID:            entry.ID,
			ChangedByID:   entry.ChangedByID,
			ChangedByRole: entry.ChangedByRole,
			FromStatus:    entry.FromStatus,
			ToStatus:      entry.ToStatus,
			Remarks:       entry.Remarks,
			CreatedAt:     entry.CreatedAt,
		})
	}
	return resp
}
