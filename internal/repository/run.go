package repository

import (
	"context"

	"gorm.io/gorm"

	"staking-reward-engine/internal/models"
)

type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) Create(ctx context.Context, run *models.AccrualRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *RunRepository) GetRecent(ctx context.Context, limit int) ([]models.AccrualRun, error) {
	var runs []models.AccrualRun
	if limit <= 0 {
		limit = 10
	}
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}
