package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/credit-transfer/internal/api/dto"
	"github.com/spec-kit/credit-transfer/internal/auth"
	"github.com/spec-kit/credit-transfer/internal/domain"
	"github.com/spec-kit/credit-transfer/internal/service"
	apperrors "github.com/spec-kit/credit-transfer/pkg/util"
)

// ApplicationsHandler manages credit transfer application endpoints.
type ApplicationsHandler struct {
	service *service.ApplicationService
}

// NewApplicationsHandler constructs handler.
func NewApplicationsHandler(applicationService *service.ApplicationService) *ApplicationsHandler {
	return &ApplicationsHandler{service: applicationService}
}

// Create POST /api/applications.
func (h *ApplicationsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authorized")
	}
	var req dto.ApplicationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	app, err := h.service.Submit(c.UserContext(), principal.User, applicationInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewApplicationResponse(app)})
}

// List GET /api/applications.
func (h *ApplicationsHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authorized")
	}
	apps, err := h.service.List(c.UserContext(), principal.User, parseApplicationQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.ApplicationResponse, 0, len(apps))
	for i := range apps {
		items = append(items, dto.NewApplicationResponse(&apps[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /api/applications/:id.
func (h *ApplicationsHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authorized")
	}
	app, err := h.service.Get(c.UserContext(), principal.User, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewApplicationResponse(app)})
}

// Update PUT /api/applications/:id.
func (h *ApplicationsHandler) Update(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authorized")
	}
	var req dto.ApplicationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	app, err := h.service.Update(c.UserContext(), principal.User, c.Params("id"), applicationInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewApplicationResponse(app)})
}

// Resubmit POST /api/applications/:id/resubmit.
func (h *ApplicationsHandler) Resubmit(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authorized")
	}
	app, err := h.service.Resubmit(c.UserContext(), principal.User, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewApplicationResponse(app)})
}

// Review POST /api/applications/:id/review.
func (h *ApplicationsHandler) Review(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authorized")
	}
	var req dto.ReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	decision := domain.Decision(strings.ToLower(strings.TrimSpace(string(req.Decision))))
	app, err := h.service.Review(c.UserContext(), principal.User, c.Params("id"), decision, req.Remarks)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewApplicationResponse(app)})
}

// History GET /api/applications/:id/history.
func (h *ApplicationsHandler) History(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authorized")
	}
	entries, err := h.service.History(c.UserContext(), principal.User, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewApplicationHistoryResponses(entries)})
}

// PDF GET /api/applications/:id/pdf. With ?download=true the document is streamed.
func (h *ApplicationsHandler) PDF(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authorized")
	}
	id := c.Params("id")
	if c.QueryBool("download") {
		blob, err := h.service.Artifact(c.UserContext(), principal.User, id)
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, blob.ContentType)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", blob.Name))
		return c.Send(blob.Data)
	}
	app, err := h.service.Get(c.UserContext(), principal.User, id)
	if err != nil {
		return err
	}
	if app.Status != domain.ApplicationStatusApproved || app.PDFRef == nil {
		return apperrors.NewNotFound("pdf", map[string]any{"status": app.Status})
	}
	return c.JSON(fiber.Map{"data": dto.ArtifactResponse{PDFURL: "/api/applications/" + app.ID + "/pdf?download=true"}})
}

// Delete DELETE /api/applications/:id.
func (h *ApplicationsHandler) Delete(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authorized")
	}
	if err := h.service.Delete(c.UserContext(), principal.User, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func applicationInput(req dto.ApplicationRequest) service.ApplicationInput {
	return service.ApplicationInput{
		Semester:    req.Semester,
		Courses:     req.Courses,
		Internships: req.Internships,
	}
}

func parseApplicationQuery(c *fiber.Ctx) service.ApplicationListFilter {
	filter := service.ApplicationListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.ApplicationStatus(strings.TrimSpace(part)))
		}
	}
	if dept := strings.TrimSpace(c.Query("department")); dept != "" {
		filter.Department = &dept
	}
	if owner := strings.TrimSpace(c.Query("owner_id")); owner != "" {
		filter.OwnerID = &owner
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
