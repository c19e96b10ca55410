package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Smashkat12/crechebooks-sub003/internal/domain/accounting"
	"github.com/Smashkat12/crechebooks-sub003/internal/infrastructure/persistence/models"
)

// GormPaymentRepository implements PaymentRepository using GORM.
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository.
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByID finds a payment by ID within a tenant.
func (r *GormPaymentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*accounting.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).First(&model, "tenant_id = ? AND id = ?", tenantID, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, accounting.ErrPaymentNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByReference finds a payment by its bank reference within a tenant.
func (r *GormPaymentRepository) FindByReference(ctx context.Context, tenantID uuid.UUID, reference string) (*accounting.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).First(&model, "tenant_id = ? AND reference = ?", tenantID, reference).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, accounting.ErrPaymentNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListIDs returns all payment IDs for a tenant, oldest first for stable sync order.
func (r *GormPaymentRepository) ListIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Save creates or updates a payment.
func (r *GormPaymentRepository) Save(ctx context.Context, payment *accounting.Payment) error {
	return r.db.WithContext(ctx).Save(models.PaymentModelFromDomain(payment)).Error
}

// Ensure GormPaymentRepository implements PaymentRepository
var _ accounting.PaymentRepository = (*GormPaymentRepository)(nil)
