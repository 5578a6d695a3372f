package artifact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/credit-transfer/internal/storage"
)

// ErrRender wraps every failure to produce or store an artifact.
var ErrRender = errors.New("artifact rendering failed")

// Linker produces the approval PDF for an application and hands back an
// opaque reference to it. It owns only the reference, never the record.
type Linker struct {
	renderer Renderer
	blobs    storage.BlobStore
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewLinker builds a linker. timeout bounds render plus upload.
func NewLinker(renderer Renderer, blobs storage.BlobStore, timeout time.Duration, logger *zap.Logger) *Linker {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Linker{renderer: renderer, blobs: blobs, timeout: timeout, logger: logger, now: time.Now}
}

// Link renders doc and stores it, returning the blob reference.
func (l *Linker) Link(ctx context.Context, doc Document) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if doc.IssuedAt.IsZero() {
		doc.IssuedAt = l.now()
	}
	data, err := l.renderer.Render(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRender, err)
	}
	name := fmt.Sprintf("credit-transfer-%s.pdf", doc.Application.ID)
	ref, err := l.blobs.Put(ctx, name, storage.ContentTypePDF, data)
	if err != nil {
		return "", fmt.Errorf("%w: store: %v", ErrRender, err)
	}
	return ref, nil
}

// Resolve loads the document behind ref.
func (l *Linker) Resolve(ctx context.Context, ref string) (*storage.Blob, error) {
	return l.blobs.Get(ctx, ref)
}

// Discard removes an artifact that never got linked. Failures are only logged.
func (l *Linker) Discard(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := l.blobs.Delete(ctx, ref); err != nil {
		l.logger.Warn("discard artifact", zap.String("ref", ref), zap.Error(err))
	}
}
