package middleware

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oarthurdev/utm-n8n-facebook/internal/models"
	"github.com/oarthurdev/utm-n8n-facebook/internal/storage"
)

type stubStore struct {
	storage.Store
	company *models.Company
}

func (s *stubStore) GetCompanyBySubdomain(ctx context.Context, subdomain string) (*models.Company, error) {
	if s.company == nil || s.company.Subdomain != subdomain {
		return nil, storage.ErrNotFound
	}
	return s.company, nil
}

func TestSubdomainFromHost(t *testing.T) {
	cases := []struct {
		host string
		want string
	}{
		{"acme.example.com", "acme"},
		{"acme.example.com:8080", "acme"},
		{"acme.app.example.com", "acme"},
		{"example.com", ""},
		{"localhost", ""},
		{"localhost:3000", ""},
		{"127.0.0.1:3000", ""},
		{"10.0.0.1", ""},
		{"192.168.0.1:8080", ""},
		{"", ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, SubdomainFromHost(tc.host), "host %q", tc.host)
	}
}

func newTestApp(store storage.Store) *fiber.App {
	app := fiber.New()
	app.Use(ExtractCompany(store, zap.NewNop()))
	app.Get("/ping", func(c *fiber.Ctx) error {
		company := CompanyFromContext(c)
		return c.JSON(fiber.Map{"subdomain": company.Subdomain})
	})
	return app
}

func TestExtractCompanyFromHeader(t *testing.T) {
	store := &stubStore{company: &models.Company{Subdomain: "demo"}}
	app := newTestApp(store)

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-Subdomain", "demo")
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestExtractCompanyFromQuery(t *testing.T) {
	store := &stubStore{company: &models.Company{Subdomain: "demo"}}
	app := newTestApp(store)

	req := httptest.NewRequest("GET", "/ping?subdomain=demo", nil)
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestExtractCompanyFromHost(t *testing.T) {
	store := &stubStore{company: &models.Company{Subdomain: "acme"}}
	app := newTestApp(store)

	req := httptest.NewRequest("GET", "http://acme.example.com/ping", nil)
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestExtractCompanyMissingSubdomain(t *testing.T) {
	app := newTestApp(&stubStore{})

	req := httptest.NewRequest("GET", "/ping", nil)
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestExtractCompanyUnknownSubdomain(t *testing.T) {
	app := newTestApp(&stubStore{})

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-Subdomain", "ghost")
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
