package artifact

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/credit-transfer/internal/domain"
	"github.com/spec-kit/credit-transfer/internal/storage"
)

type failingRenderer struct{}

func (failingRenderer) Render(context.Context, Document) ([]byte, error) {
	return nil, errors.New("boom")
}

type blockingRenderer struct{}

func (blockingRenderer) Render(ctx context.Context, _ Document) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func sampleDocument() Document {
	reg := "2116210701001"
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return Document{
		Application: &domain.Application{
			ID:         "app-1",
			Department: "CSE",
			Semester:   6,
			Status:     domain.ApplicationStatusApproved,
			Courses: []domain.CourseItem{
				{CourseCode: "NPTEL-01", CourseName: "Cloud Computing", Platform: "NPTEL", Credits: 3},
			},
			Internships: []domain.InternshipItem{
				{Organization: "Acme Labs", Title: "Backend Intern", StartDate: start, EndDate: start.AddDate(0, 2, 0), Credits: 2},
			},
		},
		Owner:    &domain.User{Name: "Alice Ñúñez", Email: "alice@college.edu", RegisterNumber: &reg},
		Reviewer: &domain.User{Name: "Prof. Rao"},
		IssuedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestPDFRendererProducesPDF(t *testing.T) {
	data, err := NewPDFRenderer("Test College").Render(context.Background(), sampleDocument())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestPDFRendererRejectsIncompleteDocument(t *testing.T) {
	_, err := NewPDFRenderer("Test College").Render(context.Background(), Document{})
	assert.Error(t, err)
}

func TestLinkerStoresAndResolves(t *testing.T) {
	blobs := storage.NewMemoryStore(storage.DefaultLimits())
	l := NewLinker(NewPDFRenderer("Test College"), blobs, time.Second, nil)

	ref, err := l.Link(context.Background(), sampleDocument())
	require.NoError(t, err)

	blob, err := l.Resolve(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, storage.ContentTypePDF, blob.ContentType)
	assert.Equal(t, "credit-transfer-app-1.pdf", blob.Name)

	l.Discard(context.Background(), ref)
	_, err = l.Resolve(context.Background(), ref)
	assert.ErrorIs(t, err, storage.ErrBlobNotFound)
}

func TestLinkerWrapsFailures(t *testing.T) {
	blobs := storage.NewMemoryStore(storage.DefaultLimits())

	_, err := NewLinker(failingRenderer{}, blobs, time.Second, nil).Link(context.Background(), sampleDocument())
	assert.ErrorIs(t, err, ErrRender)

	_, err = NewLinker(blockingRenderer{}, blobs, 20*time.Millisecond, nil).Link(context.Background(), sampleDocument())
	assert.ErrorIs(t, err, ErrRender)

	tiny := storage.NewMemoryStore(storage.Limits{MaxBytes: 8})
	_, err = NewLinker(NewPDFRenderer("Test College"), tiny, time.Second, nil).Link(context.Background(), sampleDocument())
	assert.ErrorIs(t, err, ErrRender)
}
