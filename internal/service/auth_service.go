package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ecoterra/siteapi/internal/domain"
	"github.com/ecoterra/siteapi/internal/observability/metrics"
	"github.com/ecoterra/siteapi/internal/security/password"
	"github.com/ecoterra/siteapi/internal/security/ratelimit"
)

// TokenIssuer signs bearer tokens for authenticated users
type TokenIssuer interface {
	Issue(user *domain.User) (string, time.Time, error)
}

// AuthService handles authentication operations
type AuthService struct {
	users    domain.UserRepository
	tokens   TokenIssuer
	attempts *ratelimit.Limiter
	logger   *slog.Logger
	cost     int

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates a new authentication service. attempts may be nil to
// disable login throttling.
func NewAuthService(
	users domain.UserRepository,
	tokens TokenIssuer,
	attempts *ratelimit.Limiter,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		users:    users,
		tokens:   tokens,
		attempts: attempts,
		logger:   logger,
		cost:     bcrypt.DefaultCost,
	}
}

// LoginResult represents login response
type LoginResult struct {
	Token     string            `json:"token"`
	User      domain.PublicUser `json:"user"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// Login checks credentials and issues a token. identifier is a username or
// email; clientIP scopes the attempt limiter.
func (s *AuthService) Login(ctx context.Context, identifier, secret, clientIP string) (*LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return nil, domain.Invalid("username or email and password are required")
	}

	attemptKey := strings.ToLower(identifier) + "|" + clientIP
	if s.attempts != nil && !s.attempts.Allow(attemptKey) {
		metrics.ObserveLogin("throttled")
		s.logger.Warn("login throttled", slog.String("identifier", identifier), slog.String("ip", clientIP))
		return nil, domain.ErrTooManyAttempts
	}

	user, err := s.users.FindByIdentifier(ctx, identifier)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			metrics.ObserveLogin("error")
			return nil, fmt.Errorf("find user: %w", err)
		}
		// Compare against a throwaway hash so unknown users cost the same as bad passwords.
		_, _ = password.Verify(secret, s.dummy())
		metrics.ObserveLogin("invalid")
		s.logger.Info("login attempt with unknown identifier", slog.String("identifier", identifier))
		return nil, domain.ErrInvalidCredentials
	}

	ok, err := password.Verify(secret, user.PasswordHash)
	if err != nil {
		metrics.ObserveLogin("error")
		return nil, fmt.Errorf("verify password for user %s: %w", user.ID, err)
	}
	if !ok {
		metrics.ObserveLogin("invalid")
		s.logger.Info("login failed with wrong password", slog.String("user_id", user.ID))
		return nil, domain.ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		metrics.ObserveLogin("error")
		return nil, fmt.Errorf("issue token: %w", err)
	}
	if s.attempts != nil {
		s.attempts.Reset(attemptKey)
	}

	metrics.ObserveLogin("success")
	s.logger.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return &LoginResult{
		Token:     token,
		User:      user.Public(),
		ExpiresAt: expiresAt,
	}, nil
}

// Me returns the scrubbed record of the given user
func (s *AuthService) Me(ctx context.Context, userID string) (domain.PublicUser, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return domain.PublicUser{}, fmt.Errorf("get user %s: %w", userID, err)
	}
	return user.Public(), nil
}

// ChangePassword replaces the user's hash after verifying the current password
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if current == "" {
		return domain.Invalid("current password is required")
	}
	if len(next) < password.MinLength {
		return domain.Invalid(fmt.Sprintf("new password must be at least %d characters", password.MinLength))
	}
	if next == current {
		return domain.Invalid("new password must differ from the current password")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user %s: %w", userID, err)
	}

	ok, err := password.Verify(current, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password for user %s: %w", userID, err)
	}
	if !ok {
		s.logger.Info("change password rejected: wrong current password", slog.String("user_id", userID))
		return domain.Invalid("current password is incorrect")
	}

	hash, err := password.HashWithCost(next, s.cost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password for user %s: %w", userID, err)
	}

	s.logger.Info("user changed password", slog.String("user_id", userID))
	return nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := password.HashWithCost("not-a-real-password", s.cost)
		if err != nil {
			s.logger.Error("failed to build dummy hash", slog.String("error", err.Error()))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}
