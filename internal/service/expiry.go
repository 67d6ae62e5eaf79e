package service

import (
	"context"
	"time"

	"staking-reward-engine/internal/metrics"
	"staking-reward-engine/internal/models"
	"staking-reward-engine/internal/repository"
	"staking-reward-engine/pkg/errors"
	"staking-reward-engine/pkg/logger"
)

// ExpiryResult 单次到期扫描的统计
type ExpiryResult struct {
	Expired int         `json:"expired"`
	Errored int         `json:"errored"`
	Errors  []ItemError `json:"errors,omitempty"`
}

type ExpiryService struct {
	store     *repository.Store
	batchSize int
}

func NewExpiryService(store *repository.Store, batchSize int) *ExpiryService {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &ExpiryService{store: store, batchSize: batchSize}
}

// SweepExpired 将所有 now >= started_at + duration 的active仓位转为unstaked并释放质押额
// 必须在结算之前执行，使恰好在到期时刻的收益计划被跳过
func (s *ExpiryService) SweepExpired(ctx context.Context, now time.Time) (*ExpiryResult, error) {
	now = normalize(now)
	result := &ExpiryResult{}

	for _, t := range []models.PositionType{models.PositionTypeStaking, models.PositionTypeMultiplier} {
		var afterID uint64
		for {
			positions, err := s.store.Positions.FindMatured(ctx, t, now, afterID, s.batchSize)
			if err != nil {
				return result, errors.New(errors.ErrExpiry, "查询到期仓位失败", err)
			}
			if len(positions) == 0 {
				break
			}

			for _, p := range positions {
				expired, err := s.expire(ctx, p, now)
				if err != nil {
					result.Errored++
					result.Errors = append(result.Errors, itemError(string(t)+"_position", p.PositionID(), err))
					logger.FromContext(ctx).
						WithFields(logger.PositionFields(string(t), p.PositionID(), p.Owner())).
						WithError(err).Error("仓位到期处理失败")
					continue
				}
				if expired {
					result.Expired++
					metrics.PositionsExpiredTotal.WithLabelValues(string(t)).Inc()
				}
			}

			afterID = positions[len(positions)-1].PositionID()
			if len(positions) < s.batchSize {
				break
			}
		}
	}

	logger.FromContext(ctx).WithFields(map[string]interface{}{
		"as_of":   now,
		"expired": result.Expired,
		"errored": result.Errored,
	}).Info("到期扫描完成")

	return result, nil
}

// expire 条件迁移 active -> unstaked，已处理过的仓位不产生任何变更
func (s *ExpiryService) expire(ctx context.Context, p models.Position, now time.Time) (bool, error) {
	var expired bool
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		ok, err := tx.Positions.Transition(ctx, p.Type(), p.PositionID(), models.PositionActive, models.PositionUnstaked, now)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if _, err := tx.Balances.ReleaseStake(ctx, p.Owner(), p.Principal()); err != nil {
			return err
		}
		expired = true
		return nil
	})
	if err != nil {
		return false, errors.New(errors.ErrExpiry, "仓位到期失败", err)
	}

	if expired {
		logger.FromContext(ctx).
			WithFields(logger.PositionFields(string(p.Type()), p.PositionID(), p.Owner())).
			WithFields(map[string]interface{}{
				"principal":  p.Principal().String(),
				"matures_at": p.Maturity(),
			}).Info("仓位已到期解除质押")
	}
	return expired, nil
}
