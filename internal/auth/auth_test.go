package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oarthurdev/utm-n8n-facebook/internal/models"
	"github.com/oarthurdev/utm-n8n-facebook/internal/storage"
)

type stubStore struct {
	storage.Store
	company *models.Company
	user    *models.User
}

func (s *stubStore) GetCompanyBySubdomain(ctx context.Context, subdomain string) (*models.Company, error) {
	if s.company == nil || s.company.Subdomain != subdomain {
		return nil, storage.ErrNotFound
	}
	return s.company, nil
}

func (s *stubStore) GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	if s.company == nil || s.company.ID != id {
		return nil, storage.ErrNotFound
	}
	return s.company, nil
}

func (s *stubStore) GetUserByUsername(ctx context.Context, companyID uuid.UUID, username string) (*models.User, error) {
	if s.user == nil || s.user.CompanyID != companyID || s.user.Username != username {
		return nil, storage.ErrNotFound
	}
	return s.user, nil
}

func (s *stubStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, storage.ErrNotFound
	}
	return s.user, nil
}

func newTestStore() *stubStore {
	companyID := uuid.New()
	return &stubStore{
		company: &models.Company{ID: companyID, Name: "Demo", Subdomain: "demo"},
		user:    &models.User{ID: 1, Username: "admin", Password: "secret", CompanyID: companyID},
	}
}

func TestLoginSuccess(t *testing.T) {
	store := newTestStore()
	service := NewService(store)

	result, err := service.Login(context.Background(), "demo", "admin", "secret")

	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, store.user, result.User)
	assert.Equal(t, store.company, result.Company)
}

func TestLoginUnknownCompany(t *testing.T) {
	service := NewService(newTestStore())

	_, err := service.Login(context.Background(), "other", "admin", "secret")

	assert.ErrorIs(t, err, ErrCompanyNotFound)
}

func TestLoginWrongPassword(t *testing.T) {
	service := NewService(newTestStore())

	_, err := service.Login(context.Background(), "demo", "admin", "wrong")

	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownUser(t *testing.T) {
	service := NewService(newTestStore())

	_, err := service.Login(context.Background(), "demo", "nobody", "secret")

	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateRoundTrip(t *testing.T) {
	store := newTestStore()
	service := NewService(store)

	result, err := service.Login(context.Background(), "demo", "admin", "secret")
	require.NoError(t, err)

	session, err := service.Validate(context.Background(), result.Token)

	require.NoError(t, err)
	assert.Equal(t, store.user.ID, session.User.ID)
	assert.Equal(t, store.company.ID, session.Company.ID)
}

func TestValidateGarbageToken(t *testing.T) {
	service := NewService(newTestStore())

	_, err := service.Validate(context.Background(), "not-base64!!")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = service.Validate(context.Background(), "aGVsbG8=")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateExpiredToken(t *testing.T) {
	store := newTestStore()
	service := NewService(store)

	issued := time.Now().Add(-25 * time.Hour)
	service.now = func() time.Time { return issued }
	result, err := service.Login(context.Background(), "demo", "admin", "secret")
	require.NoError(t, err)

	service.now = time.Now
	_, err = service.Validate(context.Background(), result.Token)

	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateCompanyMismatch(t *testing.T) {
	store := newTestStore()
	service := NewService(store)

	result, err := service.Login(context.Background(), "demo", "admin", "secret")
	require.NoError(t, err)

	// The user changed tenants after the token was issued.
	store.user.CompanyID = uuid.New()
	_, err = service.Validate(context.Background(), result.Token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}
