package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"staking-reward-engine/internal/models"
)

type DepositRepository struct {
	db *gorm.DB
}

func NewDepositRepository(db *gorm.DB) *DepositRepository {
	return &DepositRepository{db: db}
}

// SumCompletedByMembers 一组会员已完成充值的USDT金额之和
func (r *DepositRepository) SumCompletedByMembers(ctx context.Context, memberIDs []uint64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, chunk := range chunkIDs(memberIDs, inListChunk) {
		var sum decimal.Decimal
		err := r.db.WithContext(ctx).
			Model(&models.Deposit{}).
			Select("COALESCE(SUM(amount), 0)").
			Where("member_id IN ? AND status = ?", chunk, models.DepositCompleted).
			Row().Scan(&sum)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(sum)
	}
	return total, nil
}

// SumCompletedCoin 会员已完成充值折合的币数量
func (r *DepositRepository) SumCompletedCoin(ctx context.Context, memberID uint64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.Deposit{}).
		Select("COALESCE(SUM(coin_amount), 0)").
		Where("member_id = ? AND status = ?", memberID, models.DepositCompleted).
		Row().Scan(&sum)
	return sum, err
}
