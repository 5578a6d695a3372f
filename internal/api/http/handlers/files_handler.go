package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/credit-transfer/internal/api/dto"
	"github.com/spec-kit/credit-transfer/internal/auth"
	"github.com/spec-kit/credit-transfer/internal/service"
	apperrors "github.com/spec-kit/credit-transfer/pkg/util"
)

// FilesHandler accepts certificate uploads and serves stored PDFs.
type FilesHandler struct {
	files    *service.FileService
	maxBytes int64
}

// NewFilesHandler constructs handler.
func NewFilesHandler(files *service.FileService, maxBytes int64) *FilesHandler {
	return &FilesHandler{files: files, maxBytes: maxBytes}
}

// Upload POST /api/files (multipart field "file").
func (h *FilesHandler) Upload(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authorized")
	}
	header, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("no file uploaded", nil)
	}
	if h.maxBytes > 0 && header.Size > h.maxBytes {
		return apperrors.NewValidationError("file too large", map[string]any{"file": "max"})
	}
	f, err := header.Open()
	if err != nil {
		return apperrors.NewValidationError("unreadable upload", nil)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return apperrors.NewValidationError("unreadable upload", nil)
	}

	id, err := h.files.Upload(c.UserContext(), principal.User, header.Filename, header.Header.Get(fiber.HeaderContentType), data)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.FileResponse{ID: id, Name: header.Filename, URL: "/api/files/" + id},
	})
}

// Get GET /api/files/:id.
func (h *FilesHandler) Get(c *fiber.Ctx) error {
	blob, err := h.files.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, blob.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", blob.Name))
	return c.Send(blob.Data)
}
