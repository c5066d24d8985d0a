// Package queue publishes delivery notifications to RabbitMQ so downstream
// consumers (N8N workflows, dashboards) can react to pipeline outcomes
// without polling the database. The publisher is optional; when no broker
// is configured the pipeline runs without it.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/oarthurdev/utm-n8n-facebook/internal/config"
)

// Notification statuses.
const (
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// Notification is the message published after each delivery attempt.
type Notification struct {
	EventID   int64  `json:"event_id"`
	LeadID    string `json:"lead_id"`
	CompanyID string `json:"company_id"`
	EventType string `json:"event_type"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// Publisher manages the RabbitMQ connection and channel used for delivery
// notifications.
type Publisher struct {
	cfg     *config.RabbitMQConfig
	logger  *zap.Logger
	conn    *amqp.Connection
	channel *amqp.Channel
	mu      sync.Mutex
}

// NewPublisher creates a publisher for the given broker configuration.
func NewPublisher(cfg *config.RabbitMQConfig, logger *zap.Logger) *Publisher {
	return &Publisher{
		cfg:    cfg,
		logger: logger,
	}
}

// Connect dials the broker with exponential backoff and declares the
// notification exchange.
func (p *Publisher) Connect() error {
	backoff := time.Second
	maxBackoff := 30 * time.Second
	maxAttempts := 10

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := p.connect(); err != nil {
			lastErr = err
			p.logger.Warn("Connection to RabbitMQ failed, retrying...",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		p.logger.Info("Connected to RabbitMQ",
			zap.String("exchange", p.cfg.Exchange),
			zap.Int("attempt", attempt),
		)
		return nil
	}

	return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxAttempts, lastErr)
}

func (p *Publisher) connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil && !p.conn.IsClosed() {
		p.conn.Close()
	}

	amqpConfig := amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Properties: amqp.Table{
			"connection_name": "utm-n8n-facebook",
		},
	}

	conn, err := amqp.DialConfig(p.cfg.URL, amqpConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		p.cfg.Exchange,
		"topic",
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare exchange %s: %w", p.cfg.Exchange, err)
	}

	p.conn = conn
	p.channel = channel
	return nil
}

// Publish sends one notification. A stale channel triggers a single
// reconnect attempt before giving up; a lost notification is tolerable
// since the database remains the source of truth.
func (p *Publisher) Publish(ctx context.Context, notification *Notification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	routingKey := fmt.Sprintf("%s.%s", p.cfg.RoutingKey, notification.Status)

	if err := p.publish(ctx, routingKey, body); err != nil {
		p.logger.Warn("Publish failed, reconnecting",
			zap.Error(err),
		)
		if err := p.connect(); err != nil {
			return err
		}
		return p.publish(ctx, routingKey, body)
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, routingKey string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil || p.channel.IsClosed() {
		return fmt.Errorf("channel is not open")
	}

	return p.channel.PublishWithContext(ctx,
		p.cfg.Exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}

// IsHealthy reports whether the broker connection is usable.
func (p *Publisher) IsHealthy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil && !p.conn.IsClosed() && p.channel != nil && !p.channel.IsClosed()
}

// Close shuts the channel and connection down.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil && !p.channel.IsClosed() {
		if err := p.channel.Close(); err != nil {
			p.logger.Error("Failed to close RabbitMQ channel", zap.Error(err))
		}
	}
	if p.conn != nil && !p.conn.IsClosed() {
		if err := p.conn.Close(); err != nil {
			p.logger.Error("Failed to close RabbitMQ connection", zap.Error(err))
		}
	}
}
