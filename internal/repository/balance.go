package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"staking-reward-engine/internal/models"
)

type BalanceRepository struct {
	db *gorm.DB
}

func NewBalanceRepository(db *gorm.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// GetByMember 获取会员币余额，不存在时返回nil
func (r *BalanceRepository) GetByMember(ctx context.Context, memberID uint64) (*models.CoinBalance, error) {
	var balance models.CoinBalance
	err := r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		First(&balance).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &balance, err
}

// Credit 原子性增加会员总余额，记录不存在时创建
func (r *BalanceRepository) Credit(ctx context.Context, memberID uint64, amount decimal.Decimal) error {
	balance := &models.CoinBalance{
		MemberID: memberID,
		Total:    amount,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "member_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total": gorm.Expr("total + "+decimalArg, amount),
		}),
	}).Create(balance).Error
}

// LockStake 仅当 total - staked >= amount 时增加质押额
// 返回false表示可用余额不足，未做任何修改
func (r *BalanceRepository) LockStake(ctx context.Context, memberID uint64, amount decimal.Decimal) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CoinBalance{}).
		Where("member_id = ? AND total - staked >= "+decimalArg, memberID, amount).
		Update("staked", gorm.Expr("staked + "+decimalArg, amount))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ReleaseStake 减少质押额，最低截断为0
func (r *BalanceRepository) ReleaseStake(ctx context.Context, memberID uint64, amount decimal.Decimal) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CoinBalance{}).
		Where("member_id = ?", memberID).
		Update("staked", gorm.Expr(
			"CASE WHEN staked > "+decimalArg+" THEN staked - "+decimalArg+" ELSE 0 END",
			amount, amount))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SetBonus 用最新计算结果覆盖物化奖金，并按差额调整总余额
// 调整后若 total < staked 则不修改并返回false
func (r *BalanceRepository) SetBonus(ctx context.Context, memberID uint64, coin, usdt decimal.Decimal) (bool, error) {
	// total 必须排在 bonus_coin 之前赋值，MySQL 按从左到右的顺序使用新值
	result := r.db.WithContext(ctx).Exec(`
		UPDATE coin_balances
		SET total = total - bonus_coin + `+decimalArg+`,
			bonus_coin = `+decimalArg+`,
			bonus_usdt = `+decimalArg+`,
			updated_at = ?
		WHERE member_id = ? AND total - bonus_coin + `+decimalArg+` >= staked
	`, coin, coin, usdt, time.Now().UTC(), memberID, coin)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	existing, err := r.GetByMember(ctx, memberID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	err = r.db.WithContext(ctx).Create(&models.CoinBalance{
		MemberID:  memberID,
		Total:     coin,
		BonusCoin: coin,
		BonusUSDT: usdt,
	}).Error
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListViolations 返回违反 total >= staked >= 0 的余额记录
func (r *BalanceRepository) ListViolations(ctx context.Context) ([]models.CoinBalance, error) {
	var balances []models.CoinBalance
	err := r.db.WithContext(ctx).
		Where("total < staked OR staked < 0").
		Order("member_id ASC").
		Find(&balances).Error
	return balances, err
}
