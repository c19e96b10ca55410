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

// GormConnectionRepository implements ConnectionRepository using GORM.
type GormConnectionRepository struct {
	db *gorm.DB
}

// NewGormConnectionRepository creates a new GormConnectionRepository.
func NewGormConnectionRepository(db *gorm.DB) *GormConnectionRepository {
	return &GormConnectionRepository{db: db}
}

// Find returns the tenant's connection or a NOT_CONNECTED domain error.
func (r *GormConnectionRepository) Find(ctx context.Context, tenantID uuid.UUID) (*accounting.Connection, error) {
	var model models.ProviderConnectionModel
	if err := r.db.WithContext(ctx).First(&model, "tenant_id = ?", tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, accounting.NewNotConnectedError(tenantID)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save upserts the single connection row for the tenant. Reconnecting
// replaces the stored authorization.
func (r *GormConnectionRepository) Save(ctx context.Context, conn *accounting.Connection) error {
	model := models.ProviderConnectionModelFromDomain(conn)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"provider", "provider_tenant_id", "access_token", "refresh_token",
				"expires_at", "connected_at", "updated_at",
			}),
		}).
		Create(model).Error
}

// Delete removes the tenant's connection. Deleting an absent connection is
// not an error: disconnect is idempotent.
func (r *GormConnectionRepository) Delete(ctx context.Context, tenantID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&models.ProviderConnectionModel{}, "tenant_id = ?", tenantID).Error
}

// Ensure GormConnectionRepository implements ConnectionRepository
var _ accounting.ConnectionRepository = (*GormConnectionRepository)(nil)
