package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"staking-reward-engine/internal/models"
)

type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetBonusSettings 读取奖金配置单行，不存在时返回nil
func (r *SettingsRepository) GetBonusSettings(ctx context.Context) (*models.BonusSettings, error) {
	var settings models.BonusSettings
	err := r.db.WithContext(ctx).Order("id ASC").First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &settings, err
}

// ClaimAccrualRun 以比较并交换的方式更新 last_accrual_run_at
// prev 必须是调用方读取到的旧值，返回false表示已被并发调用抢先更新
func (r *SettingsRepository) ClaimAccrualRun(ctx context.Context, id uint64, prev *time.Time, now time.Time) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&models.BonusSettings{}).
		Where("id = ?", id)
	if prev == nil {
		query = query.Where("last_accrual_run_at IS NULL")
	} else {
		query = query.Where("last_accrual_run_at = ?", *prev)
	}

	result := query.Update("last_accrual_run_at", now)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// TouchAccrualRun 无条件更新 last_accrual_run_at，用于强制执行
func (r *SettingsRepository) TouchAccrualRun(ctx context.Context, id uint64, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.BonusSettings{}).
		Where("id = ?", id).
		Update("last_accrual_run_at", now).Error
}

func (r *SettingsRepository) SaveBonusSettings(ctx context.Context, settings *models.BonusSettings) error {
	return r.db.WithContext(ctx).Save(settings).Error
}

// CoinPrices 返回各会员等级的币价
func (r *SettingsRepository) CoinPrices(ctx context.Context) (map[models.MemberTier]decimal.Decimal, error) {
	var prices []models.CoinPrice
	if err := r.db.WithContext(ctx).Find(&prices).Error; err != nil {
		return nil, err
	}

	out := make(map[models.MemberTier]decimal.Decimal, len(prices))
	for _, p := range prices {
		out[p.Tier] = p.Price
	}
	return out, nil
}
