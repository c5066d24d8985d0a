package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oarthurdev/utm-n8n-facebook/internal/models"
)

// GormStore implements Store on top of a GORM Postgres connection.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store backed by the given database handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Companies

func (s *GormStore) GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	var company models.Company
	if err := s.db.WithContext(ctx).First(&company, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &company, nil
}

func (s *GormStore) GetCompanyBySubdomain(ctx context.Context, subdomain string) (*models.Company, error) {
	var company models.Company
	if err := s.db.WithContext(ctx).First(&company, "subdomain = ?", subdomain).Error; err != nil {
		return nil, translate(err)
	}
	return &company, nil
}

func (s *GormStore) CreateCompany(ctx context.Context, company *models.Company) error {
	if company.ID == uuid.Nil {
		company.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Create(company).Error
}

func (s *GormStore) ListCompanies(ctx context.Context) ([]models.Company, error) {
	var companies []models.Company
	if err := s.db.WithContext(ctx).Order("created_at").Find(&companies).Error; err != nil {
		return nil, err
	}
	return companies, nil
}

// Users

func (s *GormStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *GormStore) GetUserByUsername(ctx context.Context, companyID uuid.UUID, username string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		First(&user, "company_id = ? AND username = ?", companyID, username).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// Workflows

func (s *GormStore) GetWorkflows(ctx context.Context, companyID uuid.UUID) ([]models.Workflow, error) {
	var workflows []models.Workflow
	err := s.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at").
		Find(&workflows).Error
	if err != nil {
		return nil, err
	}
	return workflows, nil
}

func (s *GormStore) GetWorkflowByWorkflowID(ctx context.Context, companyID uuid.UUID, workflowID string) (*models.Workflow, error) {
	var workflow models.Workflow
	err := s.db.WithContext(ctx).
		First(&workflow, "company_id = ? AND workflow_id = ?", companyID, workflowID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &workflow, nil
}

// Integrations

func (s *GormStore) GetIntegrations(ctx context.Context, companyID uuid.UUID) ([]models.Integration, error) {
	var integrations []models.Integration
	err := s.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at").
		Find(&integrations).Error
	if err != nil {
		return nil, err
	}
	return integrations, nil
}

// Audit log

func (s *GormStore) CreateEvent(ctx context.Context, event *models.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(event).Error
}

func (s *GormStore) GetEvents(ctx context.Context, companyID uuid.UUID, limit int) ([]models.Event, error) {
	var events []models.Event
	query := s.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// UTM attribution

func (s *GormStore) GetUtmDataByLeadID(ctx context.Context, companyID uuid.UUID, leadID string) (*models.UtmData, error) {
	var data models.UtmData
	err := s.db.WithContext(ctx).
		First(&data, "company_id = ? AND lead_id = ?", companyID, leadID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &data, nil
}

// CreateUtmData inserts the attribution row for a lead unless one already
// exists. First write wins: when a row is present the stored record is
// loaded into data and created is false.
func (s *GormStore) CreateUtmData(ctx context.Context, data *models.UtmData) (bool, error) {
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.UtmData
		err := tx.First(&existing, "company_id = ? AND lead_id = ?", data.CompanyID, data.LeadID).Error
		if err == nil {
			*data = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if data.CreatedAt.IsZero() {
			data.CreatedAt = time.Now().UTC()
		}
		if err := tx.Create(data).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

func (s *GormStore) GetUtmStats(ctx context.Context, companyID uuid.UUID) (*UtmStats, error) {
	stats := &UtmStats{}

	err := s.db.WithContext(ctx).Model(&models.UtmData{}).
		Where("company_id = ?", companyID).
		Count(&stats.Total).Error
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Model(&models.UtmData{}).
		Where("company_id = ?", companyID).
		Where("source <> '' OR medium <> '' OR campaign <> '' OR content <> '' OR term <> ''").
		Count(&stats.WithUtm).Error
	if err != nil {
		return nil, err
	}

	if stats.Total > 0 {
		stats.Percentage = int(float64(stats.WithUtm) / float64(stats.Total) * 100)
	}
	return stats, nil
}

// Lead events

func (s *GormStore) CreateLeadEvent(ctx context.Context, event *models.LeadEvent) error {
	event.SentToFacebook = false
	event.ErrorMessage = nil
	event.SentAt = nil
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(event).Error
}

func (s *GormStore) GetLeadEvents(ctx context.Context, companyID uuid.UUID, limit int) ([]models.LeadEvent, error) {
	var events []models.LeadEvent
	query := s.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (s *GormStore) GetLeadEventsByLeadID(ctx context.Context, companyID uuid.UUID, leadID string) ([]models.LeadEvent, error) {
	var events []models.LeadEvent
	err := s.db.WithContext(ctx).
		Where("company_id = ? AND lead_id = ?", companyID, leadID).
		Order("created_at DESC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// GetUnsentLeadEvents returns every event still awaiting delivery across
// all tenants, oldest first. This is the sweep's work queue.
func (s *GormStore) GetUnsentLeadEvents(ctx context.Context) ([]models.LeadEvent, error) {
	var events []models.LeadEvent
	err := s.db.WithContext(ctx).
		Where("sent_to_facebook = ?", false).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// MarkLeadEventSent transitions an event to its terminal-success state. The
// update is guarded on sent_to_facebook = false so a concurrent sweep that
// already delivered the event cannot be overwritten; in that case
// ErrAlreadyDelivered is returned.
func (s *GormStore) MarkLeadEventSent(ctx context.Context, id int64, sentAt time.Time) error {
	result := s.db.WithContext(ctx).Model(&models.LeadEvent{}).
		Where("id = ? AND sent_to_facebook = ?", id, false).
		Updates(map[string]interface{}{
			"sent_to_facebook": true,
			"sent_at":          sentAt,
			"error_message":    nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyDelivered
	}
	return nil
}

// MarkLeadEventError records a delivery failure, leaving the event eligible
// for the next sweep. Delivered events are never demoted.
func (s *GormStore) MarkLeadEventError(ctx context.Context, id int64, errorMessage string) error {
	result := s.db.WithContext(ctx).Model(&models.LeadEvent{}).
		Where("id = ? AND sent_to_facebook = ?", id, false).
		Updates(map[string]interface{}{
			"error_message": errorMessage,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyDelivered
	}
	return nil
}

// Settings

func (s *GormStore) GetSettings(ctx context.Context, companyID uuid.UUID) ([]models.Setting, error) {
	var settings []models.Setting
	err := s.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("key").
		Find(&settings).Error
	if err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *GormStore) GetSetting(ctx context.Context, companyID uuid.UUID, key string) (*models.Setting, error) {
	var setting models.Setting
	err := s.db.WithContext(ctx).
		First(&setting, "company_id = ? AND key = ?", companyID, key).Error
	if err != nil {
		return nil, translate(err)
	}
	return &setting, nil
}

// UpsertSetting replaces a setting value wholesale; no partial merge
// happens at the storage layer.
func (s *GormStore) UpsertSetting(ctx context.Context, companyID uuid.UUID, key, value string, isSecret bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Setting{}).
			Where("company_id = ? AND key = ?", companyID, key).
			Updates(map[string]interface{}{
				"value":      value,
				"is_secret":  isSecret,
				"updated_at": time.Now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return nil
		}
		return tx.Create(&models.Setting{
			Key:       key,
			Value:     value,
			IsSecret:  isSecret,
			CompanyID: companyID,
			UpdatedAt: time.Now().UTC(),
		}).Error
	})
}

// GetCompanyConfig returns the raw JSON value stored under a *_CONFIG key
// for a tenant, or ErrNotFound when absent or empty.
func (s *GormStore) GetCompanyConfig(ctx context.Context, companyID uuid.UUID, key string) (string, error) {
	setting, err := s.GetSetting(ctx, companyID, key)
	if err != nil {
		return "", err
	}
	if setting.Value == "" {
		return "", ErrNotFound
	}
	return setting.Value, nil
}
