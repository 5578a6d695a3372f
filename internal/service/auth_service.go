package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/credit-transfer/internal/auth"
	"github.com/spec-kit/credit-transfer/internal/config"
	"github.com/spec-kit/credit-transfer/internal/domain"
	"github.com/spec-kit/credit-transfer/internal/mail"
	"github.com/spec-kit/credit-transfer/internal/repository"
	apperrors "github.com/spec-kit/credit-transfer/pkg/util"
)

// AuthService coordinates registration, login and password flows.
type AuthService struct {
	users       repository.UserRepository
	mailer      mail.Sender
	logger      *zap.Logger
	hasher      *auth.PasswordHasher
	tokenMgr    *auth.TokenManager
	emailDomain string
	resetTTL    time.Duration
	mailTimeout time.Duration
	publicURL   string
	revealEmail bool
	now         func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo repository.UserRepository
	Mailer   mail.Sender
	Logger   *zap.Logger
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Name           string      `validate:"required,max=120"`
	Email          string      `validate:"required,email"`
	Password       string      `validate:"required,min=6"`
	Department     string      `validate:"required,max=120"`
	Role           domain.Role `validate:"omitempty,oneof=student faculty admin"`
	RegisterNumber *string     `validate:"omitempty,max=40"`
}

// AuthResult is returned by every flow that logs the caller in.
type AuthResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:       deps.UserRepo,
		mailer:      deps.Mailer,
		logger:      logger,
		hasher:      auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		tokenMgr:    auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL()),
		emailDomain: strings.ToLower(cfg.Institution.EmailDomain),
		resetTTL:    cfg.Auth.PasswordResetTTL(),
		mailTimeout: cfg.Mail.Timeout(),
		publicURL:   strings.TrimRight(cfg.App.PublicURL, "/"),
		revealEmail: cfg.Auth.RevealUnknownEmail,
		now:         time.Now,
	}
}

// WithClock injects a time source for token issuing and reset expiry.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	if now != nil {
		s.now = now
		s.tokenMgr.WithClock(now)
	}
	return s
}

// Register creates a new account and logs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Department = strings.TrimSpace(in.Department)
	if err := apperrors.ValidateStruct(in); err != nil {
		return nil, err
	}
	if !strings.HasSuffix(in.Email, "@"+s.emailDomain) {
		return nil, apperrors.NewEmailDomainError(s.emailDomain)
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, apperrors.NewConflict("user already exists", nil)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	role := in.Role
	if role == "" {
		role = domain.RoleStudent
	}
	user := &domain.User{
		Name:           in.Name,
		Email:          in.Email,
		PasswordHash:   hash,
		Role:           role,
		Department:     in.Department,
		RegisterNumber: trimmedOrNil(in.RegisterNumber),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.NewConflict("user already exists", nil)
		}
		return nil, err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return s.issue(user)
}

// Login authenticates by email and password. Unknown emails and wrong
// passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password required", nil)
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.Burn(password)
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}
	return s.issue(user)
}

// Me returns the caller's profile.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, err
	}
	return user, nil
}

// ChangePassword verifies the current password before rewriting the hash.
// Any pending reset credential is dropped with it.
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return apperrors.NewValidationError("please provide both old and new passwords", nil)
	}
	if err := validateNewPassword(newPassword); err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.ErrInvalidCredentials
		}
		return err
	}
	if !s.hasher.Verify(oldPassword, user.PasswordHash) {
		return apperrors.ErrInvalidCredentials
	}
	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	s.logger.Info("password changed", zap.String("user_id", user.ID))
	return nil
}

// ForgotPassword issues a reset credential and mails it to the account holder.
// If delivery fails the credential is withdrawn before returning.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperrors.NewValidationError("email required", nil)
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if s.revealEmail {
				return apperrors.NewNotFound("user", nil)
			}
			return nil
		}
		return err
	}

	raw, digest, err := auth.NewResetToken()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	expiresAt := s.now().Add(s.resetTTL)
	if err := s.users.SetResetToken(ctx, user.ID, digest, expiresAt); err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.mailTimeout)
	defer cancel()
	if err := s.mailer.Send(sendCtx, s.resetMessage(user, raw, expiresAt)); err != nil {
		s.logger.Error("reset email delivery failed", zap.String("user_id", user.ID), zap.Error(err))
		if clearErr := s.users.ClearResetToken(context.WithoutCancel(ctx), user.ID, digest); clearErr != nil {
			s.logger.Error("withdraw reset token", zap.String("user_id", user.ID), zap.Error(clearErr))
		}
		return apperrors.NewDependencyError("email could not be sent", err)
	}
	s.logger.Info("password reset requested", zap.String("user_id", user.ID), zap.Time("expires_at", expiresAt))
	return nil
}

// ResetPassword exchanges a reset credential for a new password and logs the
// user in. A credential works once and only before its expiry.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) (*AuthResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.ErrInvalidResetToken
	}
	if newPassword == "" {
		return nil, apperrors.NewValidationError("password required", nil)
	}
	if err := validateNewPassword(newPassword); err != nil {
		return nil, err
	}
	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	user, err := s.users.ConsumeResetToken(ctx, auth.HashResetToken(token), s.now(), hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrInvalidResetToken
		}
		return nil, err
	}
	s.logger.Info("password reset completed", zap.String("user_id", user.ID))
	return s.issue(user)
}

// Authenticate verifies a session token and loads the current account.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	session, err := s.tokenMgr.ParseToken(token)
	if err != nil {
		return nil, apperrors.NewUnauthorized("not authorized, token failed")
	}
	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized("not authorized, token failed")
		}
		return nil, err
	}
	return user, nil
}

// TokenManager exposes the underlying token manager.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: exp}, nil
}

func (s *AuthService) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return "", apperrors.NewValidationError("password too long", map[string]any{"Password": "max"})
	}
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	return hash, nil
}

func (s *AuthService) resetMessage(user *domain.User, raw string, expiresAt time.Time) mail.Message {
	link := fmt.Sprintf("%s/passwordreset/%s", s.publicURL, raw)
	body := fmt.Sprintf("Hello %s,\n\n"+
		"You are receiving this email because you (or someone else) requested a password reset.\n"+
		"Open the link below to choose a new password:\n\n%s\n\n"+
		"The link expires at %s. If you did not request this, ignore this email.\n",
		user.Name, link, expiresAt.UTC().Format(time.RFC1123))
	return mail.Message{To: user.Email, Subject: "Password Reset Token", Body: body}
}

func validateNewPassword(password string) error {
	if len([]rune(password)) < 6 {
		return apperrors.NewValidationError("password must be at least 6 characters", map[string]any{"Password": "min"})
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
