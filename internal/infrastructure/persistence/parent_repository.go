package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Smashkat12/crechebooks-sub003/internal/domain/accounting"
	"github.com/Smashkat12/crechebooks-sub003/internal/infrastructure/persistence/models"
)

// GormParentRepository implements ParentRepository using GORM.
type GormParentRepository struct {
	db *gorm.DB
}

// NewGormParentRepository creates a new GormParentRepository.
func NewGormParentRepository(db *gorm.DB) *GormParentRepository {
	return &GormParentRepository{db: db}
}

// FindByID finds a parent by ID within a tenant.
func (r *GormParentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*accounting.Parent, error) {
	var model models.ParentModel
	if err := r.db.WithContext(ctx).First(&model, "tenant_id = ? AND id = ?", tenantID, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, accounting.ErrParentNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByEmail finds a parent by email within a tenant.
func (r *GormParentRepository) FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*accounting.Parent, error) {
	var model models.ParentModel
	if err := r.db.WithContext(ctx).First(&model, "tenant_id = ? AND email = ?", tenantID, email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, accounting.ErrParentNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListIDs returns all parent IDs for a tenant, oldest first for stable sync order.
func (r *GormParentRepository) ListIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.ParentModel{}).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Save creates or updates a parent.
func (r *GormParentRepository) Save(ctx context.Context, parent *accounting.Parent) error {
	return r.db.WithContext(ctx).Save(models.ParentModelFromDomain(parent)).Error
}

// Ensure GormParentRepository implements ParentRepository
var _ accounting.ParentRepository = (*GormParentRepository)(nil)
