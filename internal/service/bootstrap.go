package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/credit-transfer/internal/config"
	"github.com/spec-kit/credit-transfer/internal/domain"
	"github.com/spec-kit/credit-transfer/internal/repository"
)

// EnsureAdmin guarantees the configured admin account exists and holds the
// admin role. Running it again is a no-op; an existing account is never
// duplicated and only its role is corrected.
func (s *AuthService) EnsureAdmin(ctx context.Context, cfg config.AdminConfig) error {
	email := normalizeEmail(cfg.Email)
	for attempt := 0; attempt < 2; attempt++ {
		user, err := s.users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			if user.Role == domain.RoleAdmin {
				return nil
			}
			user.Role = domain.RoleAdmin
			if err := s.users.Update(ctx, user); err != nil {
				return err
			}
			s.logger.Warn("restored admin role to default admin user", zap.String("user_id", user.ID))
			return nil
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}

		s.logger.Info("default admin user not found; creating", zap.String("email", email))
		hash, err := s.hashPassword(cfg.Password)
		if err != nil {
			return err
		}
		admin := &domain.User{
			Name:           cfg.Name,
			Email:          email,
			PasswordHash:   hash,
			Role:           domain.RoleAdmin,
			Department:     cfg.Department,
			RegisterNumber: trimmedOrNil(&cfg.RegisterNumber),
		}
		err = s.users.Create(ctx, admin)
		if err == nil {
			s.logger.Info("default admin user created", zap.String("user_id", admin.ID))
			return nil
		}
		// Another instance created it first; re-read and check the role.
		if !errors.Is(err, repository.ErrDuplicateEmail) {
			return err
		}
	}
	return errors.New("ensure admin: account kept changing underneath")
}
