package port

import (
	"context"

	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/domain"
)

// EventPublisher publishes identity events to the message bus.
type EventPublisher interface {
	PublishSessionCreated(ctx context.Context, event domain.SessionCreatedEvent) error
	PublishSessionUserBound(ctx context.Context, event domain.SessionUserBoundEvent) error
	PublishTokensRevoked(ctx context.Context, event domain.TokensRevokedEvent) error
}
