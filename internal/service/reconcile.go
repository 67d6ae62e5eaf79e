package service

import (
	"context"

	"staking-reward-engine/internal/models"
	"staking-reward-engine/internal/repository"
	"staking-reward-engine/pkg/errors"
	"staking-reward-engine/pkg/logger"
)

// ReconcileResult 物化字段核对结果
type ReconcileResult struct {
	RepairedPositions int64                        `json:"repaired_positions"`
	BalanceViolations []models.CoinBalance         `json:"balance_violations,omitempty"`
	EntryCounts       map[models.EntryStatus]int64 `json:"entry_counts"`
}

type ReconcileService struct {
	store *repository.Store
}

func NewReconcileService(store *repository.Store) *ReconcileService {
	return &ReconcileService{store: store}
}

// ReconcileEarnedTotals 按已支付计划条目重新汇总 earned_total，覆盖不一致的仓位
func (s *ReconcileService) ReconcileEarnedTotals(ctx context.Context) (int64, error) {
	var repaired int64
	for _, t := range []models.PositionType{models.PositionTypeStaking, models.PositionTypeMultiplier} {
		n, err := s.store.Positions.ReconcileEarned(ctx, t)
		if err != nil {
			return repaired, errors.New(errors.ErrSettlement, "核对仓位收益失败", err)
		}
		if n > 0 {
			logger.WithFields(map[string]interface{}{
				"position_type": t,
				"repaired":      n,
			}).Warn("仓位 earned_total 与已支付计划不一致，已修复")
		}
		repaired += n
	}
	return repaired, nil
}

// CheckBalances 返回违反 available = total - staked >= 0 的会员余额
func (s *ReconcileService) CheckBalances(ctx context.Context) ([]models.CoinBalance, error) {
	violations, err := s.store.Balances.ListViolations(ctx)
	if err != nil {
		return nil, err
	}
	for _, v := range violations {
		logger.WithFields(map[string]interface{}{
			"member_id": v.MemberID,
			"total":     v.Total.String(),
			"staked":    v.Staked.String(),
		}).Error("会员可用余额为负")
	}
	return violations, nil
}

func (s *ReconcileService) Run(ctx context.Context) (*ReconcileResult, error) {
	repaired, err := s.ReconcileEarnedTotals(ctx)
	if err != nil {
		return nil, err
	}
	violations, err := s.CheckBalances(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.Schedules.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	return &ReconcileResult{
		RepairedPositions: repaired,
		BalanceViolations: violations,
		EntryCounts:       counts,
	}, nil
}
