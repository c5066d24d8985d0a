package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/oarthurdev/utm-n8n-facebook/internal/models"
	"github.com/oarthurdev/utm-n8n-facebook/internal/storage"
)

// companyKey is the fiber locals key holding the resolved tenant.
const companyKey = "company"

// ExtractCompany resolves the tenant from the request's subdomain and makes
// it available to handlers. Production hosts carry the subdomain as the
// first label of a 3+-label hostname; local development falls back to the
// X-Subdomain header or the subdomain query parameter.
func ExtractCompany(store storage.Store, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		subdomain := SubdomainFromHost(c.Hostname())
		if subdomain == "" {
			subdomain = c.Get("X-Subdomain")
		}
		if subdomain == "" {
			subdomain = c.Query("subdomain")
		}
		if subdomain == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Subdomain not provided",
			})
		}

		company, err := store.GetCompanyBySubdomain(c.Context(), subdomain)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"message": "Company not found",
				})
			}
			logger.Error("Failed to resolve company",
				zap.String("subdomain", subdomain),
				zap.Error(err),
			)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Internal server error",
			})
		}

		c.Locals(companyKey, company)
		return c.Next()
	}
}

// SubdomainFromHost extracts the subdomain label from a hostname. Returns
// "" for bare domains, localhost and IP addresses.
func SubdomainFromHost(host string) string {
	// Strip port if present
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	if host == "" || host == "localhost" || strings.Contains(host, "127.0.0.1") {
		return ""
	}
	parts := strings.Split(host, ".")
	if len(parts) <= 2 {
		return ""
	}
	// IP addresses have 4 numeric labels, never a subdomain
	for _, part := range parts {
		if part == "" {
			return ""
		}
	}
	if isIPv4(parts) {
		return ""
	}
	return parts[0]
}

func isIPv4(parts []string) bool {
	if len(parts) != 4 {
		return false
	}
	for _, part := range parts {
		for _, r := range part {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

// CompanyFromContext returns the tenant resolved by ExtractCompany, or nil
// when the middleware did not run.
func CompanyFromContext(c *fiber.Ctx) *models.Company {
	company, _ := c.Locals(companyKey).(*models.Company)
	return company
}
