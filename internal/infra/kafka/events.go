package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/domain"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/port"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/infra/config"
)

const schemaVersion = "1.0"

const (
	EventSessionCreated   = "identity.session.created"
	EventSessionUserBound = "identity.session.user_bound"
	EventTokensRevoked    = "identity.tokens.revoked"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	Key       string            `json:"key,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// publish wraps payload in the common envelope. Messages are keyed so that
// every event about one session (or one user) lands on the same partition.
func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, key string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	body, err := json.Marshal(eventEnvelope{
		EventID:   eventID,
		EventType: eventType,
		Key:       key,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(body),
	}
	if key != "" {
		message.Key = sarama.StringEncoder(key)
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishSessionCreated publishes identity.session.created events.
func (p *EventPublisher) PublishSessionCreated(ctx context.Context, event domain.SessionCreatedEvent) error {
	payload := struct {
		SessionID  string    `json:"session_id"`
		UserID     *string   `json:"user_id,omitempty"`
		DeviceType string    `json:"device_type"`
		OS         string    `json:"os"`
		Browser    string    `json:"browser"`
		IPAddress  *string   `json:"ip_address,omitempty"`
		CreatedAt  time.Time `json:"created_at"`
	}{
		SessionID:  event.SessionID,
		UserID:     event.UserID,
		DeviceType: string(event.DeviceType),
		OS:         event.OS,
		Browser:    event.Browser,
		IPAddress:  event.IPAddress,
		CreatedAt:  event.CreatedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventSessionCreated, event.SessionID, event.CreatedAt, payload)
}

// PublishSessionUserBound publishes identity.session.user_bound events.
func (p *EventPublisher) PublishSessionUserBound(ctx context.Context, event domain.SessionUserBoundEvent) error {
	payload := struct {
		SessionID string    `json:"session_id"`
		UserID    string    `json:"user_id"`
		BoundAt   time.Time `json:"bound_at"`
	}{
		SessionID: event.SessionID,
		UserID:    event.UserID,
		BoundAt:   event.BoundAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventSessionUserBound, event.SessionID, event.BoundAt, payload)
}

// PublishTokensRevoked publishes identity.tokens.revoked events.
func (p *EventPublisher) PublishTokensRevoked(ctx context.Context, event domain.TokensRevokedEvent) error {
	payload := struct {
		UserID    string    `json:"user_id"`
		Count     int       `json:"count"`
		AllTokens bool      `json:"all_tokens"`
		RevokedAt time.Time `json:"revoked_at"`
	}{
		UserID:    event.UserID,
		Count:     event.Count,
		AllTokens: event.AllTokens,
		RevokedAt: event.RevokedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventTokensRevoked, event.UserID, event.RevokedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
