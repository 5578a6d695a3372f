package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/credit-transfer/internal/auth"
	"github.com/spec-kit/credit-transfer/internal/config"
	"github.com/spec-kit/credit-transfer/internal/domain"
	"github.com/spec-kit/credit-transfer/internal/mail"
	"github.com/spec-kit/credit-transfer/internal/repository/memory"
	apperrors "github.com/spec-kit/credit-transfer/pkg/util"
)

const testDomain = "college.edu"

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, msg mail.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func testConfig() config.Config {
	return config.Config{
		App:         config.AppConfig{PublicURL: "http://portal.test"},
		Auth:        config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 60, PasswordResetTTLMinutes: 10, BcryptCost: bcrypt.MinCost},
		Institution: config.InstitutionConfig{EmailDomain: testDomain},
		Mail:        config.MailConfig{TimeoutSeconds: 1},
	}
}

type authFixture struct {
	svc    *AuthService
	users  *memory.UserStore
	mailer *mockMailer
	now    time.Time
}

func newAuthFixture(t *testing.T, mutate ...func(*config.Config)) *authFixture {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	f := &authFixture{
		users:  memory.NewUserStore(),
		mailer: &mockMailer{},
		now:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewAuthService(cfg, AuthDependencies{UserRepo: f.users, Mailer: f.mailer}).
		WithClock(func() time.Time { return f.now })
	return f
}

func (f *authFixture) register(t *testing.T, local, password string) *AuthResult {
	t.Helper()
	res, err := f.svc.Register(context.Background(), RegisterInput{
		Name:       strings.ToUpper(local[:1]) + local[1:],
		Email:      local + "@" + testDomain,
		Password:   password,
		Department: "CSE",
	})
	require.NoError(t, err)
	return res
}

// expectResetMail captures the raw token from the next reset email.
func (f *authFixture) expectResetMail(sendErr error) *string {
	var token string
	f.mailer.On("Send", mock.Anything, mock.AnythingOfType("mail.Message")).
		Run(func(args mock.Arguments) {
			msg := args.Get(1).(mail.Message)
			token = extractResetToken(msg.Body)
		}).
		Return(sendErr).Once()
	return &token
}

func extractResetToken(body string) string {
	const marker = "/passwordreset/"
	idx := strings.Index(body, marker)
	if idx < 0 {
		return ""
	}
	rest := body[idx+len(marker):]
	if end := strings.IndexAny(rest, " \n"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

func TestRegisterDefaultsRoleAndHashesPassword(t *testing.T) {
	f := newAuthFixture(t)
	res := f.register(t, "alice", "Passw0rd")

	assert.Equal(t, domain.RoleStudent, res.User.Role)
	assert.NotEmpty(t, res.Token)

	stored, err := f.users.GetByEmail(context.Background(), "alice@"+testDomain)
	require.NoError(t, err)
	assert.NotEqual(t, "Passw0rd", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("Passw0rd")))

	session, err := f.svc.TokenManager().ParseToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, session.UserID)
}

func TestRegisterFailures(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice", "Passw0rd")

	cases := []struct {
		name string
		in   RegisterInput
		code string
	}{
		{"missing name", RegisterInput{Email: "bob@" + testDomain, Password: "Passw0rd", Department: "CSE"}, apperrors.CodeValidation},
		{"missing department", RegisterInput{Name: "Bob", Email: "bob@" + testDomain, Password: "Passw0rd"}, apperrors.CodeValidation},
		{"short password", RegisterInput{Name: "Bob", Email: "bob@" + testDomain, Password: "abc", Department: "CSE"}, apperrors.CodeValidation},
		{"unknown role", RegisterInput{Name: "Bob", Email: "bob@" + testDomain, Password: "Passw0rd", Department: "CSE", Role: "dean"}, apperrors.CodeValidation},
		{"foreign domain", RegisterInput{Name: "Bob", Email: "bob@gmail.com", Password: "Passw0rd", Department: "CSE"}, apperrors.CodeEmailDomain},
		{"lookalike domain", RegisterInput{Name: "Bob", Email: "bob@evil" + testDomain, Password: "Passw0rd", Department: "CSE"}, apperrors.CodeEmailDomain},
		{"duplicate", RegisterInput{Name: "Alice", Email: "ALICE@" + testDomain, Password: "Passw0rd", Department: "CSE"}, apperrors.CodeConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), tc.in)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tc.code), "got %v", err)
		})
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice", "Passw0rd")

	res, err := f.svc.Login(context.Background(), "Alice@"+testDomain, "Passw0rd")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleStudent, res.User.Role)

	_, wrongPassword := f.svc.Login(context.Background(), "alice@"+testDomain, "nope-nope")
	_, unknownEmail := f.svc.Login(context.Background(), "ghost@"+testDomain, "Passw0rd")

	require.Error(t, wrongPassword)
	require.Error(t, unknownEmail)
	assert.ErrorIs(t, wrongPassword, apperrors.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, apperrors.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestForgotAndResetPasswordIsSingleUse(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice", "Passw0rd")
	token := f.expectResetMail(nil)

	require.NoError(t, f.svc.ForgotPassword(context.Background(), "alice@"+testDomain))
	require.NotEmpty(t, *token)

	stored, err := f.users.GetByEmail(context.Background(), "alice@"+testDomain)
	require.NoError(t, err)
	require.True(t, stored.HasPendingReset())
	assert.NotEqual(t, *token, *stored.ResetTokenHash)
	assert.Equal(t, auth.HashResetToken(*token), *stored.ResetTokenHash)
	assert.True(t, stored.ResetTokenExpiry.Equal(f.now.Add(10*time.Minute)))

	res, err := f.svc.ResetPassword(context.Background(), *token, "NewPass1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	_, err = f.svc.ResetPassword(context.Background(), *token, "Another1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidResetToken)

	_, err = f.svc.Login(context.Background(), "alice@"+testDomain, "NewPass1")
	assert.NoError(t, err)
	_, err = f.svc.Login(context.Background(), "alice@"+testDomain, "Passw0rd")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	f.mailer.AssertExpectations(t)
}

func TestResetPasswordAfterExpiry(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice", "Passw0rd")
	token := f.expectResetMail(nil)
	require.NoError(t, f.svc.ForgotPassword(context.Background(), "alice@"+testDomain))

	f.now = f.now.Add(10 * time.Minute)
	_, err := f.svc.ResetPassword(context.Background(), *token, "NewPass1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidResetToken)

	_, err = f.svc.Login(context.Background(), "alice@"+testDomain, "Passw0rd")
	assert.NoError(t, err)
}

func TestForgotPasswordReplacesOutstandingToken(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice", "Passw0rd")
	first := f.expectResetMail(nil)
	require.NoError(t, f.svc.ForgotPassword(context.Background(), "alice@"+testDomain))
	second := f.expectResetMail(nil)
	require.NoError(t, f.svc.ForgotPassword(context.Background(), "alice@"+testDomain))
	require.NotEqual(t, *first, *second)

	_, err := f.svc.ResetPassword(context.Background(), *first, "NewPass1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidResetToken)
	_, err = f.svc.ResetPassword(context.Background(), *second, "NewPass1")
	assert.NoError(t, err)
}

func TestForgotPasswordMailFailureWithdrawsToken(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice", "Passw0rd")
	token := f.expectResetMail(errors.New("smtp down"))

	err := f.svc.ForgotPassword(context.Background(), "alice@"+testDomain)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeDependency))

	stored, err := f.users.GetByEmail(context.Background(), "alice@"+testDomain)
	require.NoError(t, err)
	assert.False(t, stored.HasPendingReset())

	_, err = f.svc.ResetPassword(context.Background(), *token, "NewPass1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidResetToken)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	f := newAuthFixture(t)
	assert.NoError(t, f.svc.ForgotPassword(context.Background(), "ghost@"+testDomain))
	f.mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)

	revealing := newAuthFixture(t, func(c *config.Config) { c.Auth.RevealUnknownEmail = true })
	err := revealing.svc.ForgotPassword(context.Background(), "ghost@"+testDomain)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestResetPasswordRejectsUnknownAndBlankTokens(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice", "Passw0rd")
	for _, tok := range []string{"", "   ", "deadbeef"} {
		_, err := f.svc.ResetPassword(context.Background(), tok, "NewPass1")
		assert.ErrorIs(t, err, apperrors.ErrInvalidResetToken)
	}
}

func TestChangePassword(t *testing.T) {
	f := newAuthFixture(t)
	res := f.register(t, "alice", "Passw0rd")

	err := f.svc.ChangePassword(context.Background(), res.User.ID, "wrong", "NewPass1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	require.NoError(t, f.svc.ChangePassword(context.Background(), res.User.ID, "Passw0rd", "NewPass1"))
	_, err = f.svc.Login(context.Background(), "alice@"+testDomain, "NewPass1")
	assert.NoError(t, err)
}

func TestAuthenticate(t *testing.T) {
	f := newAuthFixture(t)
	res := f.register(t, "alice", "Passw0rd")

	user, err := f.svc.Authenticate(context.Background(), res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, user.ID)

	_, err = f.svc.Authenticate(context.Background(), "garbage")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	tok, _, err := f.svc.TokenManager().GenerateToken("missing-user", domain.RoleAdmin)
	require.NoError(t, err)
	_, err = f.svc.Authenticate(context.Background(), tok)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	f := newAuthFixture(t)
	adminCfg := config.AdminConfig{Email: "Admin@" + testDomain, Password: "adminpassword", Name: "Admin", Department: "Administration", RegisterNumber: "ADMIN001"}

	require.NoError(t, f.svc.EnsureAdmin(context.Background(), adminCfg))
	first, err := f.users.GetByEmail(context.Background(), "admin@"+testDomain)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, first.Role)

	require.NoError(t, f.svc.EnsureAdmin(context.Background(), adminCfg))
	second, err := f.users.GetByEmail(context.Background(), "admin@"+testDomain)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.PasswordHash, second.PasswordHash)

	_, err = f.svc.Login(context.Background(), "admin@"+testDomain, "adminpassword")
	assert.NoError(t, err)
}

func TestEnsureAdminRestoresRole(t *testing.T) {
	f := newAuthFixture(t)
	res := f.register(t, "admin", "Passw0rd")
	require.Equal(t, domain.RoleStudent, res.User.Role)

	require.NoError(t, f.svc.EnsureAdmin(context.Background(), config.AdminConfig{Email: "admin@" + testDomain, Password: "ignored1"}))
	stored, err := f.users.GetByID(context.Background(), res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, stored.Role)

	_, err = f.svc.Login(context.Background(), "admin@"+testDomain, "Passw0rd")
	assert.NoError(t, err)
}
