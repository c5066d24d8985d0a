// Package pipeline moves a lead-status change from "observed" to "confirmed
// delivered to the ad platform". Each LeadEvent walks a small state machine:
//
//	Created  (sent_to_facebook=false, error_message=nil)
//	Delivered (sent_to_facebook=true, sent_at set)        terminal
//	Failed   (sent_to_facebook=false, error_message set)  retried by sweep
//
// Delivery failures of any kind are recorded uniformly and retried by the
// next sweep; there is no backoff and no per-call retry.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oarthurdev/utm-n8n-facebook/internal/facebook"
	"github.com/oarthurdev/utm-n8n-facebook/internal/models"
	"github.com/oarthurdev/utm-n8n-facebook/internal/queue"
	"github.com/oarthurdev/utm-n8n-facebook/internal/storage"
)

// Sender is the ad-platform client surface the pipeline needs.
type Sender interface {
	GetConfig(ctx context.Context, companyID uuid.UUID) (*facebook.Config, error)
	SendEvent(ctx context.Context, cfg *facebook.Config, leadID, eventName string, user facebook.UserData, utm *models.UtmData) (*facebook.EventResult, error)
}

// Notifier publishes delivery outcomes for downstream consumers.
type Notifier interface {
	Publish(ctx context.Context, notification *queue.Notification) error
}

// SweepResult reports the outcome of one retry pass.
type SweepResult struct {
	Processed int `json:"processed"`
	Success   int `json:"success"`
	Failed    int `json:"failed"`
}

// SendResult reports the outcome of a direct send request.
type SendResult struct {
	Success bool   `json:"success"`
	LeadID  string `json:"leadId"`
	Message string `json:"message"`
}

// Pipeline orchestrates capture, delivery and the retry sweep.
type Pipeline struct {
	store    storage.Store
	sender   Sender
	notifier Notifier // nil when no broker is configured
	logger   *zap.Logger
}

// New creates a pipeline. notifier may be nil.
func New(store storage.Store, sender Sender, notifier Notifier, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		store:    store,
		sender:   sender,
		notifier: notifier,
		logger:   logger,
	}
}

// Capture records a lead-status change as a new LeadEvent in Created state.
// Repeated stage visits create repeated rows; capture never deduplicates.
func (p *Pipeline) Capture(ctx context.Context, companyID uuid.UUID, leadID string, eventType models.LeadEventType) (*models.LeadEvent, error) {
	event := &models.LeadEvent{
		LeadID:    leadID,
		EventType: string(eventType),
		CompanyID: companyID,
	}
	if err := p.store.CreateLeadEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create lead event: %w", err)
	}

	p.audit(ctx, companyID, models.EventTypeSuccess, "Lead Status Changed",
		fmt.Sprintf("Lead %s moved to %s stage", leadID, eventType.Stage()),
		models.SourceKommo,
		map[string]interface{}{"leadId": leadID, "eventType": string(eventType)},
	)

	p.logger.Info("Lead event captured",
		zap.String("lead_id", leadID),
		zap.String("event_type", string(eventType)),
		zap.String("company_id", companyID.String()),
	)
	return event, nil
}

// Deliver attempts to send one captured event to the ad platform and
// records the outcome on that exact row. Exactly one outbound call is made;
// any failure leaves the event in Failed state for the next sweep.
func (p *Pipeline) Deliver(ctx context.Context, event *models.LeadEvent, user facebook.UserData) error {
	if event.SentToFacebook {
		return nil
	}

	cfg, err := p.sender.GetConfig(ctx, event.CompanyID)
	if err != nil {
		p.recordFailure(ctx, event, err)
		return err
	}

	utm, err := p.store.GetUtmDataByLeadID(ctx, event.CompanyID, event.LeadID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		p.recordFailure(ctx, event, err)
		return err
	}

	result, err := p.sender.SendEvent(ctx, cfg, event.LeadID, event.EventType, user, utm)
	if err != nil {
		p.recordFailure(ctx, event, err)
		return err
	}

	sentAt := time.Now().UTC()
	if err := p.store.MarkLeadEventSent(ctx, event.ID, sentAt); err != nil {
		if errors.Is(err, storage.ErrAlreadyDelivered) {
			// A concurrent sweep won the race; the event is delivered either
			// way and must not be double-audited.
			p.logger.Info("Lead event already marked sent",
				zap.Int64("event_id", event.ID),
			)
			event.SentToFacebook = true
			return nil
		}
		return fmt.Errorf("delivered but failed to mark event %d sent: %w", event.ID, err)
	}

	event.SentToFacebook = true
	event.ErrorMessage = nil
	event.SentAt = &sentAt

	p.audit(ctx, event.CompanyID, models.EventTypeSuccess, "Event Sent to Facebook",
		fmt.Sprintf("Event %s for lead %s", event.EventType, event.LeadID),
		models.SourceFacebook,
		map[string]interface{}{
			"leadId":         event.LeadID,
			"eventType":      event.EventType,
			"eventsReceived": result.EventsReceived,
		},
	)

	p.notify(ctx, event, queue.StatusDelivered, "")

	p.logger.Info("Lead event delivered",
		zap.Int64("event_id", event.ID),
		zap.String("lead_id", event.LeadID),
		zap.String("event_type", event.EventType),
	)
	return nil
}

// SendDirect serves the operator-facing send endpoint: it bypasses capture,
// matching the request against the oldest unsent event for the lead whose
// type contains the requested event name. When a match exists that row is
// delivered; otherwise the event is sent without touching any row.
func (p *Pipeline) SendDirect(ctx context.Context, companyID uuid.UUID, leadID, eventName string, user facebook.UserData) (*SendResult, error) {
	events, err := p.store.GetLeadEventsByLeadID(ctx, companyID, leadID)
	if err != nil {
		return nil, err
	}

	// Rows come newest-first; walk backwards for the oldest match.
	for i := len(events) - 1; i >= 0; i-- {
		event := events[i]
		if event.SentToFacebook || !strings.Contains(event.EventType, eventName) {
			continue
		}
		if err := p.Deliver(ctx, &event, user); err != nil {
			return nil, err
		}
		return &SendResult{
			Success: true,
			LeadID:  leadID,
			Message: "Event sent successfully to Facebook",
		}, nil
	}

	// No tracked row; send without delivery-state bookkeeping.
	cfg, err := p.sender.GetConfig(ctx, companyID)
	if err != nil {
		p.auditSendFailure(ctx, companyID, leadID, eventName, err)
		return nil, err
	}
	utm, err := p.store.GetUtmDataByLeadID(ctx, companyID, leadID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if _, err := p.sender.SendEvent(ctx, cfg, leadID, eventName, user, utm); err != nil {
		p.auditSendFailure(ctx, companyID, leadID, eventName, err)
		return nil, err
	}

	p.audit(ctx, companyID, models.EventTypeSuccess, "Event Sent to Facebook",
		fmt.Sprintf("Event %s for lead %s", eventName, leadID),
		models.SourceFacebook,
		map[string]interface{}{"leadId": leadID, "eventName": eventName},
	)
	return &SendResult{
		Success: true,
		LeadID:  leadID,
		Message: "Event sent successfully to Facebook",
	}, nil
}

// SweepUnsent retries every event still awaiting delivery, oldest first,
// strictly sequentially: each event is fully resolved before the next
// begins. This is the only retry mechanism; callers are expected to invoke
// it from a scheduler.
func (p *Pipeline) SweepUnsent(ctx context.Context) (*SweepResult, error) {
	events, err := p.store.GetUnsentLeadEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query unsent lead events: %w", err)
	}

	result := &SweepResult{Processed: len(events)}
	for i := range events {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		// Contact details are not persisted with the event; retries send
		// attribution-only payloads (lead id + UTM custom data).
		if err := p.Deliver(ctx, &events[i], facebook.UserData{}); err != nil {
			result.Failed++
			continue
		}
		result.Success++
	}

	p.logger.Info("Sweep finished",
		zap.Int("processed", result.Processed),
		zap.Int("success", result.Success),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// recordFailure transitions the event to Failed state and writes the audit
// entry. Every delivery failure, regardless of kind, lands here.
func (p *Pipeline) recordFailure(ctx context.Context, event *models.LeadEvent, cause error) {
	message := cause.Error()

	if err := p.store.MarkLeadEventError(ctx, event.ID, message); err != nil {
		if errors.Is(err, storage.ErrAlreadyDelivered) {
			p.logger.Info("Skipping failure record for delivered event",
				zap.Int64("event_id", event.ID),
			)
			return
		}
		p.logger.Error("Failed to record delivery error",
			zap.Int64("event_id", event.ID),
			zap.Error(err),
		)
	} else {
		event.ErrorMessage = &message
	}

	p.audit(ctx, event.CompanyID, models.EventTypeError, "Event Delivery Failed",
		fmt.Sprintf("Failed to send %s for lead %s", event.EventType, event.LeadID),
		models.SourceFacebook,
		map[string]interface{}{
			"leadId":    event.LeadID,
			"eventType": event.EventType,
			"error":     message,
		},
	)

	p.notify(ctx, event, queue.StatusFailed, message)

	p.logger.Warn("Lead event delivery failed",
		zap.Int64("event_id", event.ID),
		zap.String("lead_id", event.LeadID),
		zap.String("error", message),
	)
}

func (p *Pipeline) auditSendFailure(ctx context.Context, companyID uuid.UUID, leadID, eventName string, cause error) {
	p.audit(ctx, companyID, models.EventTypeError, "Event Delivery Failed",
		fmt.Sprintf("Failed to send %s for lead %s", eventName, leadID),
		models.SourceFacebook,
		map[string]interface{}{"leadId": leadID, "eventName": eventName, "error": cause.Error()},
	)
}

// audit appends an audit event; audit failures are logged, never fatal to
// the delivery outcome.
func (p *Pipeline) audit(ctx context.Context, companyID uuid.UUID, eventType, title, description, source string, metadata map[string]interface{}) {
	err := p.store.CreateEvent(ctx, &models.Event{
		Type:        eventType,
		Title:       title,
		Description: description,
		Source:      source,
		Metadata:    metadata,
		CompanyID:   companyID,
	})
	if err != nil {
		p.logger.Error("Failed to write audit event",
			zap.String("title", title),
			zap.Error(err),
		)
	}
}

func (p *Pipeline) notify(ctx context.Context, event *models.LeadEvent, status, errMessage string) {
	if p.notifier == nil {
		return
	}
	err := p.notifier.Publish(ctx, &queue.Notification{
		EventID:   event.ID,
		LeadID:    event.LeadID,
		CompanyID: event.CompanyID.String(),
		EventType: event.EventType,
		Status:    status,
		Error:     errMessage,
	})
	if err != nil {
		p.logger.Warn("Failed to publish delivery notification",
			zap.Int64("event_id", event.ID),
			zap.Error(err),
		)
	}
}
