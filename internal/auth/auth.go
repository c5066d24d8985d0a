// Package auth issues and validates the dashboard's opaque session tokens.
// Tokens are base64("userID:companyID:issuedAtMillis") with a fixed 24h
// lifetime; validation re-checks that user and company still exist and
// still belong together.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oarthurdev/utm-n8n-facebook/internal/models"
	"github.com/oarthurdev/utm-n8n-facebook/internal/storage"
)

const tokenTTL = 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrCompanyNotFound    = errors.New("company not found")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
)

// Session is a validated token's identity.
type Session struct {
	User    *models.User
	Company *models.Company
}

// LoginResult is returned to the dashboard on a successful login.
type LoginResult struct {
	Token   string
	User    *models.User
	Company *models.Company
}

// Service authenticates dashboard users within their tenant.
type Service struct {
	store storage.Store
	now   func() time.Time
}

// NewService creates an auth service.
func NewService(store storage.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Login authenticates username/password within the subdomain's company and
// issues a token.
func (s *Service) Login(ctx context.Context, subdomain, username, password string) (*LoginResult, error) {
	company, err := s.store.GetCompanyBySubdomain(ctx, subdomain)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrCompanyNotFound
		}
		return nil, err
	}

	user, err := s.store.GetUserByUsername(ctx, company.ID, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(user.Password), []byte(password)) != 1 {
		return nil, ErrInvalidCredentials
	}

	payload := fmt.Sprintf("%d:%s:%d", user.ID, company.ID, s.now().UnixMilli())
	token := base64.StdEncoding.EncodeToString([]byte(payload))

	return &LoginResult{Token: token, User: user, Company: company}, nil
}

// Validate decodes and checks a token, returning the session it represents.
func (s *Service) Validate(ctx context.Context, token string) (*Session, error) {
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	parts := strings.Split(string(decoded), ":")
	if len(parts) != 3 {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}
	companyID, err := uuid.Parse(parts[1])
	if err != nil {
		return nil, ErrInvalidToken
	}
	issuedAt, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}

	if s.now().UnixMilli()-issuedAt > tokenTTL.Milliseconds() {
		return nil, ErrTokenExpired
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	company, err := s.store.GetCompany(ctx, companyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if user.CompanyID != company.ID {
		return nil, ErrInvalidToken
	}

	return &Session{User: user, Company: company}, nil
}
