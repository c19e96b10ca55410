package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Smashkat12/crechebooks-sub003/internal/domain/accounting"
	"github.com/Smashkat12/crechebooks-sub003/internal/infrastructure/persistence/models"
)

// GormMappingRepository implements MappingRepository using GORM.
type GormMappingRepository struct {
	db *gorm.DB
}

// NewGormMappingRepository creates a new GormMappingRepository.
func NewGormMappingRepository(db *gorm.DB) *GormMappingRepository {
	return &GormMappingRepository{db: db}
}

// Find returns the mapping for (tenant, kind, internal ID).
func (r *GormMappingRepository) Find(ctx context.Context, tenantID uuid.UUID, kind accounting.EntityKind, internalID uuid.UUID) (*accounting.EntitySyncMapping, error) {
	var model models.EntitySyncMappingModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_kind = ? AND internal_id = ?", tenantID, kind.String(), internalID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, accounting.ErrMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByExternalID resolves a provider-assigned ID back to a mapping.
func (r *GormMappingRepository) FindByExternalID(ctx context.Context, tenantID uuid.UUID, kind accounting.EntityKind, externalID string) (*accounting.EntitySyncMapping, error) {
	var model models.EntitySyncMappingModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_kind = ? AND external_id = ?", tenantID, kind.String(), externalID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, accounting.ErrMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Upsert writes the mapping. The conflict target is the unique
// (tenant, kind, internal ID) index, so a re-sync updates the existing row
// instead of creating a duplicate.
func (r *GormMappingRepository) Upsert(ctx context.Context, mapping *accounting.EntitySyncMapping) error {
	if err := mapping.Validate(); err != nil {
		return err
	}

	model := models.EntitySyncMappingModelFromDomain(mapping)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "entity_kind"}, {Name: "internal_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"external_id", "external_label", "direction", "last_synced_at", "updated_at",
			}),
		}).
		Create(model).Error
}

// Delete removes the local mapping only.
func (r *GormMappingRepository) Delete(ctx context.Context, tenantID uuid.UUID, kind accounting.EntityKind, internalID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Delete(&models.EntitySyncMappingModel{}, "tenant_id = ? AND entity_kind = ? AND internal_id = ?", tenantID, kind.String(), internalID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return accounting.ErrMappingNotFound
	}
	return nil
}

// ListUnsyncedInternalIDs filters the candidate set down to IDs that have no
// mapping of the given kind yet. Order of the candidates is preserved.
func (r *GormMappingRepository) ListUnsyncedInternalIDs(ctx context.Context, tenantID uuid.UUID, kind accounting.EntityKind, candidates []uuid.UUID) ([]uuid.UUID, error) {
	if len(candidates) == 0 {
		return []uuid.UUID{}, nil
	}

	var mapped []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.EntitySyncMappingModel{}).
		Where("tenant_id = ? AND entity_kind = ? AND internal_id IN ?", tenantID, kind.String(), candidates).
		Pluck("internal_id", &mapped).Error; err != nil {
		return nil, err
	}

	mappedSet := make(map[uuid.UUID]struct{}, len(mapped))
	for _, id := range mapped {
		mappedSet[id] = struct{}{}
	}

	unsynced := make([]uuid.UUID, 0, len(candidates))
	for _, id := range candidates {
		if _, ok := mappedSet[id]; !ok {
			unsynced = append(unsynced, id)
		}
	}
	return unsynced, nil
}

// Ensure GormMappingRepository implements MappingRepository
var _ accounting.MappingRepository = (*GormMappingRepository)(nil)
