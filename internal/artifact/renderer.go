package artifact

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/spec-kit/credit-transfer/internal/domain"
)

// Document is everything printed on an approval record.
type Document struct {
	Application *domain.Application
	Owner       *domain.User
	Reviewer    *domain.User
	IssuedAt    time.Time
}

// Renderer turns a Document into PDF bytes.
type Renderer interface {
	Render(ctx context.Context, doc Document) ([]byte, error)
}

// PDFRenderer lays out approval records with fpdf.
type PDFRenderer struct {
	institution string
}

// NewPDFRenderer builds a renderer that prints institution in the header.
func NewPDFRenderer(institution string) *PDFRenderer {
	return &PDFRenderer{institution: institution}
}

// Render runs layout off the caller's goroutine so ctx cancellation is honoured.
func (r *PDFRenderer) Render(ctx context.Context, doc Document) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := r.layout(doc)
		done <- result{data: data, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.data, res.err
	}
}

func (r *PDFRenderer) layout(doc Document) ([]byte, error) {
	if doc.Application == nil || doc.Owner == nil {
		return nil, fmt.Errorf("incomplete document")
	}
	app := doc.Application

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Credit Transfer Approval", true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(r.institution), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, "Credit Transfer Approval", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 11)
	field := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(50, 7, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 7, tr(value), "", 1, "L", false, 0, "")
	}
	field("Application", app.ID)
	field("Student", doc.Owner.Name)
	field("Email", doc.Owner.Email)
	if doc.Owner.RegisterNumber != nil {
		field("Register No.", *doc.Owner.RegisterNumber)
	}
	field("Department", app.Department)
	if app.Semester > 0 {
		field("Semester", fmt.Sprintf("%d", app.Semester))
	}
	field("Status", string(domain.ApplicationStatusApproved))
	if doc.Reviewer != nil {
		field("Approved by", doc.Reviewer.Name)
	}
	field("Issued", doc.IssuedAt.UTC().Format("02 Jan 2006"))
	pdf.Ln(4)

	if len(app.Courses) > 0 {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, "Courses", "", 1, "L", false, 0, "")
		header := []string{"Code", "Course", "Platform", "Credits"}
		widths := []float64{30, 80, 50, 20}
		pdf.SetFont("Helvetica", "B", 10)
		for i, h := range header {
			pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 10)
		for _, c := range app.Courses {
			pdf.CellFormat(widths[0], 7, tr(c.CourseCode), "1", 0, "L", false, 0, "")
			pdf.CellFormat(widths[1], 7, tr(c.CourseName), "1", 0, "L", false, 0, "")
			pdf.CellFormat(widths[2], 7, tr(c.Platform), "1", 0, "L", false, 0, "")
			pdf.CellFormat(widths[3], 7, fmt.Sprintf("%g", c.Credits), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
		pdf.Ln(4)
	}

	if len(app.Internships) > 0 {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, "Internships", "", 1, "L", false, 0, "")
		header := []string{"Organisation", "Role", "Period", "Credits"}
		widths := []float64{60, 50, 50, 20}
		pdf.SetFont("Helvetica", "B", 10)
		for i, h := range header {
			pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 10)
		for _, in := range app.Internships {
			period := in.StartDate.Format("Jan 2006") + " - " + in.EndDate.Format("Jan 2006")
			pdf.CellFormat(widths[0], 7, tr(in.Organization), "1", 0, "L", false, 0, "")
			pdf.CellFormat(widths[1], 7, tr(in.Title), "1", 0, "L", false, 0, "")
			pdf.CellFormat(widths[2], 7, period, "1", 0, "L", false, 0, "")
			pdf.CellFormat(widths[3], 7, fmt.Sprintf("%g", in.Credits), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
