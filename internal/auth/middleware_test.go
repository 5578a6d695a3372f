package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/credit-transfer/internal/domain"
	apperrors "github.com/spec-kit/credit-transfer/pkg/util"
)

type staticAuthenticator map[string]*domain.User

func (s staticAuthenticator) Authenticate(_ context.Context, token string) (*domain.User, error) {
	if user, ok := s[token]; ok {
		return user, nil
	}
	return nil, apperrors.NewUnauthorized("not authorized, token failed")
}

func newGuardedApp(allowed ...domain.Role) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var de *apperrors.DomainError
			if errors.As(err, &de) {
				return c.Status(de.HTTPStatus).SendString(de.Code)
			}
			return c.Status(http.StatusInternalServerError).SendString(err.Error())
		},
	})
	mw := NewAuthMiddleware(staticAuthenticator{
		"student-token": {ID: "s1", Role: domain.RoleStudent},
		"faculty-token": {ID: "f1", Role: domain.RoleFaculty},
	})
	app.Get("/guarded", mw.Handle, RequireRole(allowed...), func(c *fiber.Ctx) error {
		p, ok := PrincipalFromContext(c)
		if !ok {
			return c.SendStatus(http.StatusTeapot)
		}
		return c.SendString(p.User.ID)
	})
	return app
}

func TestAuthMiddlewareAndRoles(t *testing.T) {
	app := newGuardedApp(domain.RoleFaculty, domain.RoleAdmin)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"student denied", "Bearer student-token", http.StatusForbidden},
		{"faculty allowed", "Bearer faculty-token", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestRequireRoleWithoutRestriction(t *testing.T) {
	app := newGuardedApp()
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "bearer student-token")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
