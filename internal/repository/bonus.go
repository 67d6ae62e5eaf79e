package repository

import (
	"context"

	"gorm.io/gorm"

	"staking-reward-engine/internal/models"
)

type BonusRepository struct {
	db *gorm.DB
}

func NewBonusRepository(db *gorm.DB) *BonusRepository {
	return &BonusRepository{db: db}
}

// Replace 用新的明细整体替换会员的奖金记录
func (r *BonusRepository) Replace(ctx context.Context, memberID uint64, records []models.BonusRecord) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("member_id = ?", memberID).Delete(&models.BonusRecord{}).Error; err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	return db.Create(&records).Error
}

func (r *BonusRepository) ListByMember(ctx context.Context, memberID uint64) ([]models.BonusRecord, error) {
	var records []models.BonusRecord
	err := r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("stream ASC, level ASC").
		Find(&records).Error
	return records, err
}
