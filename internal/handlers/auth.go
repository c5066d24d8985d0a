package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/oarthurdev/utm-n8n-facebook/internal/auth"
	"github.com/oarthurdev/utm-n8n-facebook/internal/middleware"
)

// AuthHandler serves login and token validation. These routes are public;
// the tenant is taken from the login request itself, not the tenant
// middleware.
type AuthHandler struct {
	Auth   *auth.Service
	Logger *zap.Logger
}

// NewAuthHandler creates an auth handler with dependencies.
func NewAuthHandler(service *auth.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{Auth: service, Logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	subdomain := c.Get("X-Subdomain")
	if subdomain == "" {
		subdomain = c.Query("subdomain")
	}
	if subdomain == "" {
		subdomain = middleware.SubdomainFromHost(c.Hostname())
	}
	if subdomain == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Subdomain is required",
		})
	}

	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if req.Username == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Username and password are required",
		})
	}

	result, err := h.Auth.Login(c.Context(), subdomain, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrCompanyNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Company not found",
			})
		case errors.Is(err, auth.ErrInvalidCredentials):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid credentials",
			})
		default:
			h.Logger.Error("Login failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Internal server error",
			})
		}
	}

	return c.JSON(fiber.Map{
		"token": result.Token,
		"user": fiber.Map{
			"id":        result.User.ID,
			"username":  result.User.Username,
			"companyId": result.User.CompanyID,
		},
		"company": fiber.Map{
			"id":        result.Company.ID,
			"name":      result.Company.Name,
			"subdomain": result.Company.Subdomain,
		},
	})
}

// Validate handles GET /api/auth/validate.
func (h *AuthHandler) Validate(c *fiber.Ctx) error {
	header := c.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "No token provided",
		})
	}

	session, err := h.Auth.Validate(c.Context(), strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Token expired",
			})
		case errors.Is(err, auth.ErrInvalidToken):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid token",
			})
		default:
			h.Logger.Error("Token validation failed", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid token",
			})
		}
	}

	return c.JSON(fiber.Map{
		"valid":   true,
		"user":    session.User,
		"company": session.Company,
	})
}
