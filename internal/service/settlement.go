package service

import (
	"context"
	stderrors "errors"
	"time"

	"staking-reward-engine/internal/metrics"
	"staking-reward-engine/internal/models"
	"staking-reward-engine/internal/repository"
	"staking-reward-engine/pkg/errors"
	"staking-reward-engine/pkg/logger"
)

type outcome string

const (
	outcomePaid    outcome = "paid"
	outcomeSkipped outcome = "skipped"
	outcomeNoop    outcome = "noop"
	outcomeErrored outcome = "errored"
)

// errPositionInactive 在同一事务中发现仓位已不再active，需要回滚后改为跳过
var errPositionInactive = stderrors.New("position no longer active")

// SettlementResult 单次结算的统计
type SettlementResult struct {
	Processed int         `json:"processed"`
	Skipped   int         `json:"skipped"`
	Errored   int         `json:"errored"`
	Errors    []ItemError `json:"errors,omitempty"`
}

type SettlementService struct {
	store     *repository.Store
	batchSize int
}

func NewSettlementService(store *repository.Store, batchSize int) *SettlementService {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &SettlementService{store: store, batchSize: batchSize}
}

// SettleDue 结算所有 scheduled_time <= now 的pending条目
// 按计划时间从旧到新逐条处理，每条在独立事务中完成状态迁移和余额变更
// 单条失败只记录错误，条目保持pending等待下次重试
func (s *SettlementService) SettleDue(ctx context.Context, now time.Time) (*SettlementResult, error) {
	now = normalize(now)
	result := &SettlementResult{}

	var cursor *repository.DueCursor
	for {
		entries, err := s.store.Schedules.FindDue(ctx, now, cursor, s.batchSize)
		if err != nil {
			return result, errors.New(errors.ErrSettlement, "查询到期收益计划失败", err)
		}
		if len(entries) == 0 {
			break
		}

		for i := range entries {
			entry := &entries[i]
			res, err := s.settleEntry(ctx, entry, now)
			switch res {
			case outcomePaid:
				result.Processed++
			case outcomeSkipped:
				result.Skipped++
			case outcomeErrored:
				result.Errored++
				result.Errors = append(result.Errors, itemError("schedule_entry", entry.ID, err))
				logger.FromContext(ctx).
					WithFields(logger.EntryFields(entry.ID, string(entry.PositionType), entry.PositionID, entry.MemberID)).
					WithError(err).Error("收益结算失败，下次重试")
			}
			metrics.ScheduleEntriesTotal.WithLabelValues(string(res)).Inc()
		}

		last := entries[len(entries)-1]
		cursor = &repository.DueCursor{Time: last.ScheduledTime, ID: last.ID}
		if len(entries) < s.batchSize {
			break
		}
	}

	logger.FromContext(ctx).WithFields(map[string]interface{}{
		"as_of":     now,
		"processed": result.Processed,
		"skipped":   result.Skipped,
		"errored":   result.Errored,
	}).Info("收益结算完成")

	return result, nil
}

func (s *SettlementService) settleEntry(ctx context.Context, entry *models.RewardScheduleEntry, now time.Time) (outcome, error) {
	var res outcome
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		position, err := tx.Positions.Get(ctx, entry.PositionType, entry.PositionID)
		if err != nil {
			return err
		}

		if position == nil {
			logger.FromContext(ctx).
				WithFields(logger.EntryFields(entry.ID, string(entry.PositionType), entry.PositionID, entry.MemberID)).
				Warn(errors.ErrReferentialIntegrity + ": 收益计划引用的仓位不存在，跳过")
			res, err = skipEntry(ctx, tx, entry.ID, now)
			return err
		}

		if position.CurrentStatus() != models.PositionActive {
			res, err = skipEntry(ctx, tx, entry.ID, now)
			return err
		}

		paid, err := tx.Schedules.Transition(ctx, entry.ID, models.EntryPending, models.EntryPaid, now)
		if err != nil {
			return err
		}
		if !paid {
			res = outcomeNoop
			return nil
		}

		active, err := tx.Positions.RecomputeEarned(ctx, entry.PositionType, entry.PositionID, true)
		if err != nil {
			return err
		}
		if !active {
			return errPositionInactive
		}

		if err := tx.Balances.Credit(ctx, entry.MemberID, entry.RewardAmount); err != nil {
			return err
		}

		res = outcomePaid
		return nil
	})

	if stderrors.Is(err, errPositionInactive) {
		err = s.store.InTx(ctx, func(tx *repository.Store) error {
			var skipErr error
			res, skipErr = skipEntry(ctx, tx, entry.ID, now)
			return skipErr
		})
	}
	if err != nil {
		return outcomeErrored, errors.New(errors.ErrSettlement, "结算收益计划失败", err)
	}
	return res, nil
}

func skipEntry(ctx context.Context, tx *repository.Store, entryID uint64, now time.Time) (outcome, error) {
	skipped, err := tx.Schedules.Transition(ctx, entryID, models.EntryPending, models.EntrySkipped, now)
	if err != nil {
		return outcomeErrored, err
	}
	if !skipped {
		return outcomeNoop, nil
	}
	return outcomeSkipped, nil
}
