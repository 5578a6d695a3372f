package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/credit-transfer/internal/domain"
	"github.com/spec-kit/credit-transfer/internal/events"
	"github.com/spec-kit/credit-transfer/internal/mail"
	"github.com/spec-kit/credit-transfer/internal/repository"
)

// NotificationService tells applicants about review outcomes.
type NotificationService struct {
	dispatcher events.Dispatcher
	users      repository.UserRepository
	mailer     mail.Sender
	logger     *zap.Logger
	publicURL  string
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, users repository.UserRepository, mailer mail.Sender, logger *zap.Logger, publicURL string) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		users:      users,
		mailer:     mailer,
		logger:     logger,
		publicURL:  strings.TrimRight(publicURL, "/"),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventApplicationSubmitted, n.handleLifecycle)
	n.dispatcher.Subscribe(events.EventApplicationResubmitted, n.handleLifecycle)
	n.dispatcher.Subscribe(events.EventApplicationReviewed, n.handleApplicationReviewed)
}

func (n *NotificationService) handleLifecycle(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("application_id", event.ApplicationID),
		zap.String("actor_id", event.Actor.UserID))
	return nil
}

func (n *NotificationService) handleApplicationReviewed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ApplicationReviewedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	n.logger.Info(string(event.Type),
		zap.String("application_id", event.ApplicationID),
		zap.String("status", string(payload.NewStatus)))
	if n.mailer == nil || n.users == nil {
		return nil
	}
	owner, err := n.users.GetByID(ctx, event.OwnerID)
	if err != nil {
		return fmt.Errorf("load applicant: %w", err)
	}
	return n.mailer.Send(ctx, n.decisionMessage(owner, event.ApplicationID, payload))
}

func (n *NotificationService) decisionMessage(owner *domain.User, appID string, payload events.ApplicationReviewedPayload) mail.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", owner.Name)
	fmt.Fprintf(&b, "Your credit transfer application has been %s.\n", strings.ToLower(string(payload.NewStatus)))
	if payload.Remarks != "" {
		fmt.Fprintf(&b, "\nRemarks: %s\n", payload.Remarks)
	}
	if payload.NewStatus == domain.ApplicationStatusRejected {
		b.WriteString("\nYou may edit and resubmit the application from the portal.\n")
	}
	if n.publicURL != "" {
		fmt.Fprintf(&b, "\n%s/applications/%s\n", n.publicURL, appID)
	}
	return mail.Message{
		To:      owner.Email,
		Subject: fmt.Sprintf("Credit transfer application %s", payload.NewStatus),
		Body:    b.String(),
	}
}
