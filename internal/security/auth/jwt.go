package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ecoterra/siteapi/internal/domain"
)

// DefaultTTL is the lifetime of an issued token
const DefaultTTL = 24 * time.Hour

var (
	ErrMissingToken   = fmt.Errorf("%w: missing authorization header", domain.ErrUnauthorized)
	ErrMalformedToken = fmt.Errorf("%w: invalid authorization header", domain.ErrUnauthorized)
	ErrInvalidToken   = fmt.Errorf("%w: invalid or expired token", domain.ErrUnauthorized)
	ErrInactiveUser   = fmt.Errorf("%w: user no longer active", domain.ErrUnauthorized)
)

type Claims struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// UserLookup is the part of the credential store needed to re-check token owners
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	users  UserLookup
	now    func() time.Time
}

// NewTokenManager requires a non-empty secret; there is no fallback key.
func NewTokenManager(secret, issuer string, ttl time.Duration, users UserLookup) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("token signing secret is required")
	}
	if users == nil {
		return nil, errors.New("user lookup is required")
	}
	if issuer == "" {
		issuer = "siteapi"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		users:  users,
		now:    time.Now,
	}, nil
}

// Issue signs a token for user and returns it with its expiry
func (tm *TokenManager) Issue(user *domain.User) (string, time.Time, error) {
	if user == nil || user.ID == "" {
		return "", time.Time{}, errors.New("user id required")
	}
	now := tm.now()
	expiresAt := now.Add(tm.ttl)
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    tm.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken checks signature, algorithm, issuer and expiry
func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tm.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Verify resolves an Authorization header to the active user it was issued for
func (tm *TokenManager) Verify(ctx context.Context, authHeader string) (*domain.User, error) {
	if strings.TrimSpace(authHeader) == "" {
		return nil, ErrMissingToken
	}
	tokenString, err := ExtractToken(authHeader)
	if err != nil {
		return nil, err
	}
	claims, err := tm.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	user, err := tm.users.GetByID(ctx, claims.UserID)
	if err != nil || !user.Active {
		return nil, ErrInactiveUser
	}
	return user, nil
}

func ExtractToken(authHeader string) (string, error) {
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrMalformedToken
	}
	return parts[1], nil
}
