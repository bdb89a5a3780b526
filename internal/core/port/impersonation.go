package port

import (
	"context"

	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/domain"
)

// ImpersonationRequest carries the signals an impersonation mechanism needs.
type ImpersonationRequest struct {
	TargetUserID string
	CallerToken  string
}

// Impersonator resolves a request identity on behalf of an administrator.
type Impersonator interface {
	Impersonate(ctx context.Context, req ImpersonationRequest) (domain.Identity, error)
}
