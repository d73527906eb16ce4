package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultTokenTTL = 8 * time.Hour

// Sentinel errors returned by AuthService. Transports map these to their own
// status codes.
var (
	ErrInvalidPIN   = errors.New("invalid operator pin")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	// OperatorPIN gates the operator API. Empty disables login entirely.
	OperatorPIN string
	// JWTSecret signs issued tokens (HS256). Required when OperatorPIN is set.
	JWTSecret []byte
	// TokenTTL bounds issued token lifetime. Defaults to 8 hours.
	TokenTTL time.Duration
	Logger   *slog.Logger
	// Clock overrides time.Now in tests.
	Clock func() time.Time
}

// AuthService exchanges the shared operator PIN for a short-lived bearer
// token and verifies tokens on subsequent requests.
type AuthService struct {
	pin      string
	secret   []byte
	tokenTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	if opts.OperatorPIN != "" && len(opts.JWTSecret) == 0 {
		return nil, errors.New("JWT secret is required when an operator PIN is configured")
	}

	tokenTTL := opts.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "auth_service")
	}

	return &AuthService{
		pin:      opts.OperatorPIN,
		secret:   opts.JWTSecret,
		tokenTTL: tokenTTL,
		logger:   logger,
		now:      now,
	}, nil
}

// Enabled reports whether PIN authentication is configured. When disabled,
// transports skip token checks entirely.
func (s *AuthService) Enabled() bool { return s.pin != "" }

// LoginResult contains an issued bearer token.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login exchanges the operator PIN for a bearer token. The comparison is
// constant-time.
func (s *AuthService) Login(ctx context.Context, pin string) (*LoginResult, error) {
	if !s.Enabled() {
		return nil, errors.New("pin authentication is not configured")
	}
	if subtle.ConstantTimeCompare([]byte(pin), []byte(s.pin)) != 1 {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "operator login rejected")
		}
		return nil, ErrInvalidPIN
	}

	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   "operator",
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "operator login accepted", "expires_at", expiresAt)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt}, nil
}

// VerifyToken validates a bearer token issued by Login.
func (s *AuthService) VerifyToken(tokenString string) error {
	if tokenString == "" {
		return ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}
