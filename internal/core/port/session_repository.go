package port

import (
	"context"
	"time"

	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/domain"
)

// SessionRepository deals with visitor session storage.
// Implementations must enforce uniqueness of session identifiers and report
// violations as repository.ErrConflict.
type SessionRepository interface {
	Create(ctx context.Context, session domain.Session) (*domain.Session, error)
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Session, error)
	// FindLatestForUser returns the most recently active session of the user
	// with last activity at or after since. A zero since disables the bound.
	FindLatestForUser(ctx context.Context, userID string, since time.Time) (*domain.Session, error)
	SessionIDTaken(ctx context.Context, sessionID string, exceptID int64) (bool, error)
	Update(ctx context.Context, id int64, update domain.SessionUpdate) (*domain.Session, error)
}
