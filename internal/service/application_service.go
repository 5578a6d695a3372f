package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/credit-transfer/internal/artifact"
	"github.com/spec-kit/credit-transfer/internal/domain"
	"github.com/spec-kit/credit-transfer/internal/events"
	"github.com/spec-kit/credit-transfer/internal/repository"
	"github.com/spec-kit/credit-transfer/internal/storage"
	apperrors "github.com/spec-kit/credit-transfer/pkg/util"
)

// ArtifactLinker renders approval documents and resolves their references.
type ArtifactLinker interface {
	Link(ctx context.Context, doc artifact.Document) (string, error)
	Resolve(ctx context.Context, ref string) (*storage.Blob, error)
	Discard(ctx context.Context, ref string)
}

// ApplicationService drives the review workflow for transfer requests.
type ApplicationService struct {
	apps       repository.ApplicationRepository
	history    repository.ApplicationHistoryRepository
	users      repository.UserRepository
	linker     ArtifactLinker
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// ApplicationDependencies bundles collaborators for the application service.
type ApplicationDependencies struct {
	ApplicationRepo repository.ApplicationRepository
	HistoryRepo     repository.ApplicationHistoryRepository
	UserRepo        repository.UserRepository
	Linker          ArtifactLinker
	Dispatcher      events.Dispatcher
	Logger          *zap.Logger
}

// ApplicationInput is the student-editable content of an application.
type ApplicationInput struct {
	Semester    int                     `validate:"gte=0,lte=12"`
	Courses     []domain.CourseItem     `validate:"dive"`
	Internships []domain.InternshipItem `validate:"dive"`
}

// ApplicationListFilter describes listing filters.
type ApplicationListFilter struct {
	Statuses   []domain.ApplicationStatus
	Department *string
	OwnerID    *string
	Limit      int
	Offset     int
}

// NewApplicationService constructs the service.
func NewApplicationService(deps ApplicationDependencies) *ApplicationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicationService{
		apps:       deps.ApplicationRepo,
		history:    deps.HistoryRepo,
		users:      deps.UserRepo,
		linker:     deps.Linker,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

var allowedTransitions = map[domain.ApplicationStatus][]domain.ApplicationStatus{
	domain.ApplicationStatusPending:  {domain.ApplicationStatusApproved, domain.ApplicationStatusRejected},
	domain.ApplicationStatusRejected: {domain.ApplicationStatusPending},
	domain.ApplicationStatusApproved: {},
}

// CanTransition reports whether a single step from current to next exists.
func CanTransition(current, next domain.ApplicationStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Submit creates a Pending application owned by the calling student.
func (s *ApplicationService) Submit(ctx context.Context, actor *domain.User, in ApplicationInput) (*domain.Application, error) {
	if actor == nil || actor.Role != domain.RoleStudent {
		return nil, apperrors.NewForbidden("only students can submit applications")
	}
	if err := validateApplicationInput(&in); err != nil {
		return nil, err
	}

	app := &domain.Application{
		OwnerID:     actor.ID,
		Department:  actor.Department,
		Semester:    in.Semester,
		Courses:     in.Courses,
		Internships: in.Internships,
		Status:      domain.ApplicationStatusPending,
	}
	if err := s.apps.Create(ctx, app); err != nil {
		return nil, err
	}
	s.recordTransition(ctx, actor, app.ID, nil, app.Status, "")
	s.publishEvent(ctx, events.Event{
		Type:          events.EventApplicationSubmitted,
		ApplicationID: app.ID,
		OwnerID:       app.OwnerID,
		Actor:         actorOf(actor),
		Payload: events.ApplicationSubmittedPayload{
			Courses:     len(app.Courses),
			Internships: len(app.Internships),
		},
	})
	return app, nil
}

// Get returns an application visible to the caller.
func (s *ApplicationService) Get(ctx context.Context, actor *domain.User, id string) (*domain.Application, error) {
	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, app) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return app, nil
}

// List returns the caller's own applications, or any application for staff.
func (s *ApplicationService) List(ctx context.Context, actor *domain.User, filter ApplicationListFilter) ([]domain.Application, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	repoFilter := repository.ApplicationFilter{
		Statuses:   filter.Statuses,
		Department: filter.Department,
		OwnerID:    filter.OwnerID,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	if !actor.Role.IsStaff() {
		repoFilter.OwnerID = &actor.ID
		repoFilter.Department = nil
	}
	apps, err := s.apps.List(ctx, repoFilter)
	if err != nil {
		return nil, err
	}
	if apps == nil {
		apps = []domain.Application{}
	}
	return apps, nil
}

// Update replaces the content of the caller's application. Editing a
// Rejected application resubmits it: status returns to Pending and the
// previous remarks are cleared.
func (s *ApplicationService) Update(ctx context.Context, actor *domain.User, id string, in ApplicationInput) (*domain.Application, error) {
	app, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := validateApplicationInput(&in); err != nil {
		return nil, err
	}
	if !app.Editable() {
		return nil, apperrors.NewConflict("application can no longer be edited", map[string]any{"status": app.Status})
	}

	expected := app.Status
	app.Semester = in.Semester
	app.Courses = in.Courses
	app.Internships = in.Internships
	if expected == domain.ApplicationStatusRejected {
		return s.resubmit(ctx, actor, app)
	}
	if err := s.swap(ctx, app, expected); err != nil {
		return nil, err
	}
	return app, nil
}

// Resubmit moves a Rejected application back to Pending without changing its content.
func (s *ApplicationService) Resubmit(ctx context.Context, actor *domain.User, id string) (*domain.Application, error) {
	app, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.resubmit(ctx, actor, app)
}

func (s *ApplicationService) resubmit(ctx context.Context, actor *domain.User, app *domain.Application) (*domain.Application, error) {
	from := app.Status
	if !CanTransition(from, domain.ApplicationStatusPending) {
		return nil, invalidTransition(from, domain.ApplicationStatusPending)
	}
	app.Status = domain.ApplicationStatusPending
	app.Remarks = ""
	app.PDFRef = nil
	app.ReviewedBy = nil
	app.ReviewedAt = nil
	if err := s.swap(ctx, app, from); err != nil {
		return nil, err
	}
	s.recordTransition(ctx, actor, app.ID, &from, app.Status, "")
	s.publishEvent(ctx, events.Event{
		Type:          events.EventApplicationResubmitted,
		ApplicationID: app.ID,
		OwnerID:       app.OwnerID,
		Actor:         actorOf(actor),
	})
	return app, nil
}

// Review approves or rejects a Pending application. Approval renders and
// links the PDF artifact before the status change is committed; if either
// step fails the application stays Pending.
func (s *ApplicationService) Review(ctx context.Context, actor *domain.User, id string, decision domain.Decision, remarks string) (*domain.Application, error) {
	if actor == nil || !actor.Role.IsStaff() {
		return nil, apperrors.NewForbidden("only faculty or admin can review applications")
	}
	target, ok := decision.Target()
	if !ok {
		return nil, apperrors.NewValidationError("decision must be approve or reject", map[string]any{"decision": decision})
	}
	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	from := app.Status
	if !CanTransition(from, target) {
		return nil, invalidTransition(from, target)
	}

	reviewedAt := s.now()
	reviewerID := actor.ID
	app.Status = target
	app.Remarks = strings.TrimSpace(remarks)
	app.ReviewedBy = &reviewerID
	app.ReviewedAt = &reviewedAt
	app.PDFRef = nil

	var ref string
	if target == domain.ApplicationStatusApproved {
		ref, err = s.renderArtifact(ctx, actor, app, reviewedAt)
		if err != nil {
			return nil, err
		}
		app.PDFRef = &ref
	}

	if err := s.swap(ctx, app, from); err != nil {
		if ref != "" {
			s.linker.Discard(context.WithoutCancel(ctx), ref)
		}
		return nil, err
	}

	s.recordTransition(ctx, actor, app.ID, &from, target, app.Remarks)
	s.publishEvent(ctx, events.Event{
		Type:          events.EventApplicationReviewed,
		ApplicationID: app.ID,
		OwnerID:       app.OwnerID,
		Actor:         actorOf(actor),
		Payload: events.ApplicationReviewedPayload{
			OldStatus: from,
			NewStatus: target,
			Remarks:   app.Remarks,
		},
	})
	return app, nil
}

// Artifact returns the approval PDF of an application visible to the caller.
func (s *ApplicationService) Artifact(ctx context.Context, actor *domain.User, id string) (*storage.Blob, error) {
	app, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if app.Status != domain.ApplicationStatusApproved || app.PDFRef == nil {
		return nil, apperrors.NewNotFound("pdf", map[string]any{"status": app.Status})
	}
	blob, err := s.linker.Resolve(ctx, *app.PDFRef)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil, apperrors.NewNotFound("pdf", nil)
		}
		return nil, apperrors.NewDependencyError("pdf could not be retrieved", err)
	}
	return blob, nil
}

// History returns the transition log of an application visible to the caller.
func (s *ApplicationService) History(ctx context.Context, actor *domain.User, id string) ([]domain.ApplicationHistory, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []domain.ApplicationHistory{}, nil
	}
	entries, err := s.history.ListByApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.ApplicationHistory{}
	}
	return entries, nil
}

// Delete removes an application. Admin only.
func (s *ApplicationService) Delete(ctx context.Context, actor *domain.User, id string) error {
	if actor == nil || actor.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("only admin can delete applications")
	}
	app, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.apps.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("application", nil)
		}
		return err
	}
	if app.PDFRef != nil {
		s.linker.Discard(ctx, *app.PDFRef)
	}
	s.logger.Info("application deleted", zap.String("application_id", id), zap.String("by", actor.ID))
	return nil
}

func (s *ApplicationService) renderArtifact(ctx context.Context, reviewer *domain.User, app *domain.Application, issuedAt time.Time) (string, error) {
	owner, err := s.users.GetByID(ctx, app.OwnerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", apperrors.NewNotFound("application owner", nil)
		}
		return "", err
	}
	ref, err := s.linker.Link(ctx, artifact.Document{
		Application: app,
		Owner:       owner,
		Reviewer:    reviewer,
		IssuedAt:    issuedAt,
	})
	if err != nil {
		s.logger.Error("artifact generation failed", zap.String("application_id", app.ID), zap.Error(err))
		return "", apperrors.NewDependencyError("pdf could not be generated", err)
	}
	return ref, nil
}

func (s *ApplicationService) swap(ctx context.Context, app *domain.Application, expected domain.ApplicationStatus) error {
	err := s.apps.CompareAndSwap(ctx, app, expected)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrStatusMismatch):
		return apperrors.NewConflict("application changed; reload and retry", map[string]any{"expected": expected})
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("application", nil)
	default:
		return err
	}
}

func (s *ApplicationService) load(ctx context.Context, id string) (*domain.Application, error) {
	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("application", nil)
		}
		return nil, err
	}
	return app, nil
}

func (s *ApplicationService) loadOwned(ctx context.Context, actor *domain.User, id string) (*domain.Application, error) {
	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor == nil || !app.OwnedBy(actor.ID) {
		return nil, apperrors.NewForbidden("only the owner can change this application")
	}
	return app, nil
}

func (s *ApplicationService) recordTransition(ctx context.Context, actor *domain.User, appID string, from *domain.ApplicationStatus, to domain.ApplicationStatus, remarks string) {
	if s.history == nil {
		return
	}
	entry := &domain.ApplicationHistory{
		ApplicationID: appID,
		ChangedByID:   actor.ID,
		ChangedByRole: actor.Role,
		FromStatus:    from,
		ToStatus:      to,
		Remarks:       remarks,
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("record application history", zap.String("application_id", appID), zap.Error(err))
	}
}

func (s *ApplicationService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func validateApplicationInput(in *ApplicationInput) error {
	for i := range in.Courses {
		c := &in.Courses[i]
		c.CourseCode = strings.ToUpper(strings.TrimSpace(c.CourseCode))
		c.CourseName = strings.TrimSpace(c.CourseName)
		c.Platform = strings.TrimSpace(c.Platform)
	}
	for i := range in.Internships {
		it := &in.Internships[i]
		it.Organization = strings.TrimSpace(it.Organization)
		it.Title = strings.TrimSpace(it.Title)
	}
	if err := apperrors.ValidateStruct(in); err != nil {
		return err
	}
	if len(in.Courses)+len(in.Internships) == 0 {
		return apperrors.NewValidationError("add at least one course or internship", nil)
	}
	return nil
}

func invalidTransition(from, to domain.ApplicationStatus) error {
	return apperrors.NewConflict("invalid status transition", map[string]any{"from": from, "to": to})
}

func canView(actor *domain.User, app *domain.Application) bool {
	if actor == nil {
		return false
	}
	return actor.Role.IsStaff() || app.OwnedBy(actor.ID)
}

func actorOf(user *domain.User) events.Actor {
	return events.Actor{UserID: user.ID, Role: user.Role}
}
