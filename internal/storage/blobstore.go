package storage

import (
	"context"
	"errors"
	"strings"
)

// ContentTypePDF is the only type accepted for uploads and artifacts.
const ContentTypePDF = "application/pdf"

// DefaultMaxBlobBytes caps a single blob.
const DefaultMaxBlobBytes int64 = 4 * 1024 * 1024

var (
	ErrBlobNotFound    = errors.New("blob not found")
	ErrBlobTooLarge    = errors.New("blob exceeds size limit")
	ErrContentType     = errors.New("content type not allowed")
	ErrStorageUnusable = errors.New("storage backend unavailable")
)

// Blob is a stored named byte payload.
type Blob struct {
	ID          string
	Name        string
	ContentType string
	Data        []byte
}

// BlobStore persists small immutable blobs addressed by an opaque id.
type BlobStore interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
	Get(ctx context.Context, id string) (*Blob, error)
	Delete(ctx context.Context, id string) error
}

// Limits restricts what a store accepts.
type Limits struct {
	MaxBytes     int64
	ContentTypes []string
}

// DefaultLimits accepts PDFs up to DefaultMaxBlobBytes.
func DefaultLimits() Limits {
	return Limits{MaxBytes: DefaultMaxBlobBytes, ContentTypes: []string{ContentTypePDF}}
}

// Check rejects payloads outside the limits.
func (l Limits) Check(contentType string, size int64) error {
	if l.MaxBytes > 0 && size > l.MaxBytes {
		return ErrBlobTooLarge
	}
	if len(l.ContentTypes) == 0 {
		return nil
	}
	normalized := normalizeContentType(contentType)
	for _, allowed := range l.ContentTypes {
		if normalized == allowed {
			return nil
		}
	}
	return ErrContentType
}

func normalizeContentType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = strings.TrimSpace(ct[:idx])
	}
	return ct
}
