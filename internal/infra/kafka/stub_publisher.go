package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/domain"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/port"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(eventType string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Debug("stub event published",
		append([]zap.Field{zap.String("event_type", eventType), zap.Time("timestamp", at.UTC())}, fields...)...,
	)
}

func (p *StubPublisher) PublishSessionCreated(_ context.Context, event domain.SessionCreatedEvent) error {
	p.logEvent(EventSessionCreated, event.CreatedAt,
		zap.String("session_id", logger.MaskString(event.SessionID)),
		zap.String("device_type", string(event.DeviceType)),
		zap.String("os", event.OS),
		zap.String("browser", event.Browser),
	)
	return nil
}

func (p *StubPublisher) PublishSessionUserBound(_ context.Context, event domain.SessionUserBoundEvent) error {
	p.logEvent(EventSessionUserBound, event.BoundAt,
		zap.String("session_id", logger.MaskString(event.SessionID)),
		zap.String("user_id", event.UserID),
	)
	return nil
}

func (p *StubPublisher) PublishTokensRevoked(_ context.Context, event domain.TokensRevokedEvent) error {
	p.logEvent(EventTokensRevoked, event.RevokedAt,
		zap.String("user_id", event.UserID),
		zap.Int("count", event.Count),
		zap.Bool("all_tokens", event.AllTokens),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
