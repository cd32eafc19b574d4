package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ecoterra/siteapi/internal/domain"
	"github.com/ecoterra/siteapi/internal/infrastructure/logger"
	"github.com/ecoterra/siteapi/internal/security/auth"
	"github.com/ecoterra/siteapi/internal/security/password"
	"github.com/ecoterra/siteapi/internal/security/ratelimit"
)

type authFixture struct {
	svc    *AuthService
	users  *auth.UserStore
	tokens *auth.TokenManager
	userID string
}

func newAuthFixture(t *testing.T, limiter *ratelimit.Limiter) *authFixture {
	t.Helper()
	users := auth.NewUserStore()
	hash, err := password.HashWithCost("Password123", bcrypt.MinCost)
	require.NoError(t, err)
	id, err := users.Seed("admin", "admin@example.com", hash, domain.RoleAdmin)
	require.NoError(t, err)

	tokens, err := auth.NewTokenManager("test-secret", "siteapi-test", 0, users)
	require.NoError(t, err)

	svc := NewAuthService(users, tokens, limiter, logger.Discard())
	svc.cost = bcrypt.MinCost
	return &authFixture{svc: svc, users: users, tokens: tokens, userID: id}
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	for _, identifier := range []string{"admin", "ADMIN@example.com"} {
		res, err := f.svc.Login(ctx, identifier, "Password123", "10.0.0.1")
		require.NoError(t, err, identifier)
		require.NotEmpty(t, res.Token)
		assert.Equal(t, f.userID, res.User.ID)
		assert.Equal(t, "admin", res.User.Username)
		assert.WithinDuration(t, time.Now().Add(24*time.Hour), res.ExpiresAt, time.Minute)

		user, err := f.tokens.Verify(ctx, "Bearer "+res.Token)
		require.NoError(t, err)
		assert.Equal(t, f.userID, user.ID)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, "admin", "wrong-password", "10.0.0.1")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, "nobody", "Password123", "10.0.0.1")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, "", "Password123", "10.0.0.1")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Login(ctx, "admin", "", "10.0.0.1")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	f := newAuthFixture(t, nil)
	require.NoError(t, f.users.SetActive(context.Background(), f.userID, false))

	_, err := f.svc.Login(context.Background(), "admin", "Password123", "10.0.0.1")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLoginThrottlesRepeatedFailures(t *testing.T) {
	limiter := ratelimit.NewLimiter(3, time.Minute)
	t.Cleanup(limiter.Stop)
	f := newAuthFixture(t, limiter)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Login(ctx, "admin", "wrong-password", "10.0.0.1")
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	}
	_, err := f.svc.Login(ctx, "admin", "Password123", "10.0.0.1")
	require.ErrorIs(t, err, domain.ErrTooManyAttempts)

	// A different address has its own budget.
	_, err = f.svc.Login(ctx, "admin", "Password123", "10.0.0.2")
	require.NoError(t, err)
}

func TestLoginSuccessResetsAttempts(t *testing.T) {
	limiter := ratelimit.NewLimiter(2, time.Minute)
	t.Cleanup(limiter.Stop)
	f := newAuthFixture(t, limiter)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, "admin", "wrong-password", "10.0.0.1")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "admin", "Password123", "10.0.0.1")
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "admin", "wrong-password", "10.0.0.1")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "admin", "Password123", "10.0.0.1")
	require.NoError(t, err)
}

func TestMe(t *testing.T) {
	f := newAuthFixture(t, nil)

	u, err := f.svc.Me(context.Background(), f.userID)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", u.Email)
	assert.Equal(t, domain.RoleAdmin, u.Role)

	_, err = f.svc.Me(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestChangePassword(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.svc.ChangePassword(ctx, f.userID, "Password123", "NewPassword456"))

	_, err := f.svc.Login(ctx, "admin", "Password123", "10.0.0.1")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "admin", "NewPassword456", "10.0.0.1")
	require.NoError(t, err)
}

func TestChangePasswordValidation(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	cases := []struct {
		name    string
		current string
		next    string
	}{
		{"missing current", "", "NewPassword456"},
		{"too short", "Password123", "short"},
		{"unchanged", "Password123", "Password123"},
		{"wrong current", "not-my-password", "NewPassword456"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.svc.ChangePassword(ctx, f.userID, tc.current, tc.next)
			require.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	// The original password still works after every rejected attempt.
	_, err := f.svc.Login(ctx, "admin", "Password123", "10.0.0.1")
	require.NoError(t, err)
}
