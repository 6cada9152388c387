package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/simp-lee/lendpanel/internal/domain"
	"github.com/simp-lee/lendpanel/internal/pkg"
)

// Authenticator exchanges credentials for a bearer token. *remote.Client
// implements it.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
}

// Session is a signed-in lending API session.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Service defines the authentication operations.
type Service interface {
	Login(ctx context.Context, email, password string) (*Session, error)
}

// authService implements Service.
type authService struct {
	api        Authenticator
	defaultTTL time.Duration
	now        func() time.Time
}

// NewService creates a new auth Service. defaultTTL is the session lifetime
// for tokens that carry no exp claim.
func NewService(api Authenticator, defaultTTL time.Duration) Service {
	if defaultTTL <= 0 {
		defaultTTL = 12 * time.Hour
	}
	return &authService{api: api, defaultTTL: defaultTTL, now: time.Now}
}

// validateLoginInput validates login input. email is expected to be
// pre-trimmed by callers.
func validateLoginInput(email, password string) error {
	if email == "" {
		return domain.NewAppError(domain.CodeValidation, "email is required", nil)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" || addr.Address != email {
		return domain.NewAppError(domain.CodeValidation, "email must be a valid email address", nil)
	}
	if password == "" {
		return domain.NewAppError(domain.CodeValidation, "password is required", nil)
	}
	return nil
}

// Login signs in against the lending API. The session expires at the token's
// exp claim when it has one.
func (s *authService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if err := validateLoginInput(email, password); err != nil {
		return nil, err
	}

	token, err := s.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	expiresAt, ok := pkg.TokenExpiry(token)
	if !ok {
		expiresAt = now.Add(s.defaultTTL)
	}
	if !now.Before(expiresAt) {
		return nil, domain.NewAppError(domain.CodeUnauthorized, "the lending api issued an expired token", nil)
	}
	return &Session{Token: token, ExpiresAt: expiresAt}, nil
}
