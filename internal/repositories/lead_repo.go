package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/primaruang/realty-crm-be/internal/models"
)

type LeadRepo interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Lead, error)
	List(ctx context.Context, limit, offset int) ([]models.Lead, int, error)
}

type leadRepo struct {
	db *gorm.DB
}

func NewLeadRepo(db *gorm.DB) LeadRepo {
	return &leadRepo{db: db}
}

func (r *leadRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	var lead models.Lead
	if err := r.db.WithContext(ctx).First(&lead, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *leadRepo) List(ctx context.Context, limit, offset int) ([]models.Lead, int, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Lead{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var leads []models.Lead
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&leads).Error
	return leads, int(total), err
}
