package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/credit-transfer/internal/domain"
	"github.com/spec-kit/credit-transfer/internal/storage"
	apperrors "github.com/spec-kit/credit-transfer/pkg/util"
)

// FileService accepts certificate uploads and serves stored files.
type FileService struct {
	blobs  storage.BlobStore
	logger *zap.Logger
}

// NewFileService constructs the service.
func NewFileService(blobs storage.BlobStore, logger *zap.Logger) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileService{blobs: blobs, logger: logger}
}

// Upload stores a PDF supplied by an authenticated user and returns its id.
func (s *FileService) Upload(ctx context.Context, actor *domain.User, name, contentType string, data []byte) (string, error) {
	if actor == nil {
		return "", apperrors.NewUnauthorized("not authorized")
	}
	if len(data) == 0 {
		return "", apperrors.NewValidationError("no file uploaded", nil)
	}
	name = filepath.Base(strings.TrimSpace(name))
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return "", apperrors.NewValidationError("only PDF files are allowed", map[string]any{"file": "pdf"})
	}
	id, err := s.blobs.Put(ctx, name, contentType, data)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrContentType):
		return "", apperrors.NewValidationError("only PDF files are allowed", map[string]any{"file": "pdf"})
	case errors.Is(err, storage.ErrBlobTooLarge):
		return "", apperrors.NewValidationError("file too large", map[string]any{"file": "max"})
	default:
		return "", apperrors.NewDependencyError("file could not be stored", err)
	}
	s.logger.Info("file uploaded", zap.String("file_id", id), zap.String("user_id", actor.ID), zap.Int("size", len(data)))
	return id, nil
}

// Get returns a stored file.
func (s *FileService) Get(ctx context.Context, id string) (*storage.Blob, error) {
	blob, err := s.blobs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil, apperrors.NewNotFound("file", nil)
		}
		return nil, apperrors.NewDependencyError("file could not be retrieved", err)
	}
	return blob, nil
}
