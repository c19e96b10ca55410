package accounting

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Smashkat12/crechebooks-sub003/internal/domain/accounting"
)

// Orchestrator runs multi-entity sync passes on top of the SyncService. Steps
// execute in the fixed StepOrder; one failing entity, or even one failing
// step, never aborts the run. Everything that went wrong is itemized in the
// returned aggregate.
type Orchestrator struct {
	service *SyncService
	logger  *zap.Logger
}

// NewOrchestrator creates an orchestrator over the sync service.
func NewOrchestrator(service *SyncService, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{service: service, logger: logger}
}

// Sync runs one synchronization pass for the tenant. The returned aggregate
// is transient: it is reported to the caller, not persisted. A missing
// connection fails the run as a whole, since no step could proceed.
func (o *Orchestrator) Sync(ctx context.Context, tenantID uuid.UUID, opts accounting.SyncOptions) (*accounting.SyncRunResult, error) {
	if err := o.service.requireConnection(ctx, tenantID); err != nil {
		return nil, err
	}

	direction := opts.Direction
	if !direction.IsValid() {
		direction = accounting.SyncDirectionPush
	}

	kinds := o.stepKinds(opts.Kinds)
	result := &accounting.SyncRunResult{
		EntitiesSynced: make(map[string]int),
		Errors:         make([]accounting.SyncError, 0),
	}

	started := time.Now()
	for _, kind := range kinds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if direction == accounting.SyncDirectionPush || direction == accounting.SyncDirectionBoth {
			o.runPushStep(ctx, tenantID, kind, opts, result)
		}
		if direction == accounting.SyncDirectionPull || direction == accounting.SyncDirectionBoth {
			o.runPullStep(ctx, tenantID, kind, opts, result)
		}
	}

	result.Success = len(result.Errors) == 0
	result.CompletedAt = time.Now()

	o.logger.Info("sync run completed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("direction", direction.String()),
		zap.Bool("success", result.Success),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("took", time.Since(started)),
	)
	return result, nil
}

// stepKinds returns the requested kinds in canonical step order, filtered to
// what the provider supports.
func (o *Orchestrator) stepKinds(requested []accounting.EntityKind) []accounting.EntityKind {
	caps := o.service.GetCapabilities()

	wanted := make(map[accounting.EntityKind]bool, len(requested))
	for _, k := range requested {
		wanted[k] = true
	}

	kinds := make([]accounting.EntityKind, 0, len(accounting.StepOrder))
	for _, kind := range accounting.StepOrder {
		if len(requested) > 0 && !wanted[kind] {
			continue
		}
		if !supportsKind(caps, kind) {
			continue
		}
		kinds = append(kinds, kind)
	}
	return kinds
}

func supportsKind(caps accounting.Capabilities, kind accounting.EntityKind) bool {
	switch kind {
	case accounting.EntityKindContact:
		return caps.SupportsContacts
	case accounting.EntityKindInvoice:
		return caps.SupportsInvoices
	case accounting.EntityKindPayment:
		return caps.SupportsPayments
	case accounting.EntityKindBank:
		return caps.SupportsBankFeed
	default:
		return false
	}
}

// runPushStep pushes one kind and folds the outcome into the aggregate. Bank
// transactions have no push side and are skipped silently here.
func (o *Orchestrator) runPushStep(ctx context.Context, tenantID uuid.UUID, kind accounting.EntityKind, opts accounting.SyncOptions, result *accounting.SyncRunResult) {
	if kind == accounting.EntityKindBank {
		return
	}

	push, err := o.service.SyncEntityBulk(ctx, tenantID, kind, opts.IDs[kind], opts.Force)
	if err != nil {
		// The whole step failed before any entity was attempted, e.g. the
		// listing query. Recorded once under the step's own key.
		result.Errors = append(result.Errors, syncError(stepKey(kind, "push"), err))
		return
	}

	result.EntitiesSynced[stepKey(kind, "pushed")] = push.Pushed
	result.EntitiesSynced[stepKey(kind, "skipped")] += push.Skipped
	result.Errors = append(result.Errors, push.Errors...)
}

// runPullStep pulls one kind and folds the outcome into the aggregate.
// Payments have no pull side and are skipped silently here.
func (o *Orchestrator) runPullStep(ctx context.Context, tenantID uuid.UUID, kind accounting.EntityKind, opts accounting.SyncOptions, result *accounting.SyncRunResult) {
	if kind == accounting.EntityKindPayment {
		return
	}

	pull, err := o.service.PullEntity(ctx, tenantID, kind, opts.Since)
	if err != nil {
		result.Errors = append(result.Errors, syncError(stepKey(kind, "pull"), err))
		return
	}

	result.EntitiesSynced[stepKey(kind, "pulled")] = pull.Imported
	result.EntitiesSynced[stepKey(kind, "skipped")] += pull.Skipped
	result.Errors = append(result.Errors, pull.Errors...)
}

// stepKey builds a stable aggregation key, e.g. "contact_pushed".
func stepKey(kind accounting.EntityKind, suffix string) string {
	return strings.ToLower(kind.String()) + "_" + suffix
}
