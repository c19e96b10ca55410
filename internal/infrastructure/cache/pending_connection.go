// Package cache holds short-lived coordination records shared across
// processes: the pending OAuth connection correlation store, backed by redis
// in distributed deployments with an in-memory fallback.
package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PendingConnectionStore keeps the correlation record issued at
// connect-initiation and consumed exactly once at callback. The record is
// scoped one-per-tenant and overwritten on repeated connect attempts, so a
// second connect invalidates the first's in-flight state.
type PendingConnectionStore interface {
	// Put stores (or replaces) the tenant's issued state token with a TTL.
	Put(ctx context.Context, tenantID uuid.UUID, state string, ttl time.Duration) error
	// Get returns the issued state token, or ok=false when absent or expired.
	Get(ctx context.Context, tenantID uuid.UUID) (state string, ok bool, err error)
	// Delete consumes the record.
	Delete(ctx context.Context, tenantID uuid.UUID) error
}
