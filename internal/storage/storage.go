package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/oarthurdev/utm-n8n-facebook/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyDelivered is returned by MarkLeadEventSent/MarkLeadEventError
// when the targeted event already reached its terminal-success state. The
// guarded update is what keeps concurrent sweeps from overwriting a
// delivered event.
var ErrAlreadyDelivered = errors.New("lead event already delivered")

// UtmStats summarizes attribution coverage for the dashboard.
type UtmStats struct {
	Total      int64
	WithUtm    int64
	Percentage int
}

// Store is the persistence handle injected into every component. There is
// exactly one implementation backed by GORM/Postgres; tests substitute
// mocks.
type Store interface {
	// Companies
	GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error)
	GetCompanyBySubdomain(ctx context.Context, subdomain string) (*models.Company, error)
	CreateCompany(ctx context.Context, company *models.Company) error
	ListCompanies(ctx context.Context) ([]models.Company, error)

	// Users
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, companyID uuid.UUID, username string) (*models.User, error)

	// Workflows
	GetWorkflows(ctx context.Context, companyID uuid.UUID) ([]models.Workflow, error)
	GetWorkflowByWorkflowID(ctx context.Context, companyID uuid.UUID, workflowID string) (*models.Workflow, error)

	// Integrations
	GetIntegrations(ctx context.Context, companyID uuid.UUID) ([]models.Integration, error)

	// Audit log (append-only)
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEvents(ctx context.Context, companyID uuid.UUID, limit int) ([]models.Event, error)

	// UTM attribution
	GetUtmDataByLeadID(ctx context.Context, companyID uuid.UUID, leadID string) (*models.UtmData, error)
	CreateUtmData(ctx context.Context, data *models.UtmData) (created bool, err error)
	GetUtmStats(ctx context.Context, companyID uuid.UUID) (*UtmStats, error)

	// Lead events
	CreateLeadEvent(ctx context.Context, event *models.LeadEvent) error
	GetLeadEvents(ctx context.Context, companyID uuid.UUID, limit int) ([]models.LeadEvent, error)
	GetLeadEventsByLeadID(ctx context.Context, companyID uuid.UUID, leadID string) ([]models.LeadEvent, error)
	GetUnsentLeadEvents(ctx context.Context) ([]models.LeadEvent, error)
	MarkLeadEventSent(ctx context.Context, id int64, sentAt time.Time) error
	MarkLeadEventError(ctx context.Context, id int64, errorMessage string) error

	// Settings
	GetSettings(ctx context.Context, companyID uuid.UUID) ([]models.Setting, error)
	GetSetting(ctx context.Context, companyID uuid.UUID, key string) (*models.Setting, error)
	UpsertSetting(ctx context.Context, companyID uuid.UUID, key, value string, isSecret bool) error
	GetCompanyConfig(ctx context.Context, companyID uuid.UUID, key string) (string, error)
}
