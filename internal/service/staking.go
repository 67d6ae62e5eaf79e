package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"staking-reward-engine/internal/models"
	"staking-reward-engine/internal/repository"
	"staking-reward-engine/internal/schedule"
	"staking-reward-engine/pkg/errors"
	"staking-reward-engine/pkg/logger"
)

type StakingService struct {
	store *repository.Store
	now   Clock
}

func NewStakingService(store *repository.Store, now Clock) *StakingService {
	if now == nil {
		now = systemClock
	}
	return &StakingService{store: store, now: now}
}

type StakeRequest struct {
	MemberID        uint64          `json:"member_id"`
	Principal       decimal.Decimal `json:"principal"`
	Percentage      decimal.Decimal `json:"percentage"`
	IntervalMinutes int             `json:"interval_minutes"`
	DurationMinutes int             `json:"duration_minutes"`
	StartAt         *time.Time      `json:"start_at,omitempty"`
}

type MultiplierStakeRequest struct {
	StakeRequest
	IncrementPeriodMinutes int `json:"increment_period_minutes"`
}

func (r StakeRequest) params(now time.Time) schedule.Params {
	start := now
	if r.StartAt != nil {
		start = *r.StartAt
	}
	return schedule.Params{
		Principal:  r.Principal,
		Percentage: r.Percentage,
		Interval:   time.Duration(r.IntervalMinutes) * time.Minute,
		Duration:   time.Duration(r.DurationMinutes) * time.Minute,
		Start:      normalize(start),
	}
}

// Stake 创建普通质押仓位
// 锁定质押额、写入仓位和全部收益计划在同一事务内完成
func (s *StakingService) Stake(ctx context.Context, req StakeRequest) (*models.StakingPosition, []models.RewardScheduleEntry, error) {
	params := req.params(s.now())
	events, err := schedule.Simple(params)
	if err != nil {
		return nil, nil, err
	}

	position := &models.StakingPosition{
		MemberID:              req.MemberID,
		PrincipalCoin:         req.Principal,
		RewardPercentage:      req.Percentage,
		RewardIntervalMinutes: req.IntervalMinutes,
		DurationMinutes:       req.DurationMinutes,
		StartedAt:             params.Start,
		MaturesAt:             models.MaturityFrom(params.Start, req.DurationMinutes),
		Status:                models.PositionActive,
		EarnedTotal:           decimal.Zero,
	}

	var entries []models.RewardScheduleEntry
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		if err := s.lockPrincipal(ctx, tx, req.MemberID, req.Principal); err != nil {
			return err
		}
		if err := tx.Positions.CreateStaking(ctx, position); err != nil {
			return errors.New(errors.ErrSettlement, "创建质押仓位失败", err)
		}
		entries = buildEntries(models.PositionTypeStaking, position.ID, req.MemberID, events)
		if err := tx.Schedules.CreateBatch(ctx, entries); err != nil {
			return errors.New(errors.ErrSettlement, "写入收益计划失败", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	logger.WithFields(logger.PositionFields(string(models.PositionTypeStaking), position.ID, req.MemberID)).
		WithFields(map[string]interface{}{
			"principal": req.Principal.String(),
			"entries":   len(entries),
		}).Info("质押仓位已创建")

	return position, entries, nil
}

// StakeMultiplier 创建复利质押仓位
func (s *StakingService) StakeMultiplier(ctx context.Context, req MultiplierStakeRequest) (*models.MultiplierStakingPosition, []models.RewardScheduleEntry, error) {
	params := schedule.MultiplierParams{
		Params:          req.params(s.now()),
		IncrementPeriod: time.Duration(req.IncrementPeriodMinutes) * time.Minute,
	}
	events, err := schedule.Multiplier(params)
	if err != nil {
		return nil, nil, err
	}

	position := &models.MultiplierStakingPosition{
		MemberID:               req.MemberID,
		PrincipalCoin:          req.Principal,
		BasePercentage:         req.Percentage,
		RewardIntervalMinutes:  req.IntervalMinutes,
		IncrementPeriodMinutes: req.IncrementPeriodMinutes,
		DurationMinutes:        req.DurationMinutes,
		StartedAt:              params.Start,
		MaturesAt:              models.MaturityFrom(params.Start, req.DurationMinutes),
		Status:                 models.PositionActive,
		EarnedTotal:            decimal.Zero,
	}

	var entries []models.RewardScheduleEntry
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		if err := s.lockPrincipal(ctx, tx, req.MemberID, req.Principal); err != nil {
			return err
		}
		if err := tx.Positions.CreateMultiplier(ctx, position); err != nil {
			return errors.New(errors.ErrSettlement, "创建复利质押仓位失败", err)
		}
		entries = buildEntries(models.PositionTypeMultiplier, position.ID, req.MemberID, events)
		if err := tx.Schedules.CreateBatch(ctx, entries); err != nil {
			return errors.New(errors.ErrSettlement, "写入收益计划失败", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	logger.WithFields(logger.PositionFields(string(models.PositionTypeMultiplier), position.ID, req.MemberID)).
		WithFields(map[string]interface{}{
			"principal": req.Principal.String(),
			"entries":   len(entries),
		}).Info("复利质押仓位已创建")

	return position, entries, nil
}

// lockPrincipal 检查会员存在并条件锁定质押额，可用余额不足时拒绝
func (s *StakingService) lockPrincipal(ctx context.Context, tx *repository.Store, memberID uint64, principal decimal.Decimal) error {
	member, err := tx.Members.GetByID(ctx, memberID)
	if err != nil {
		return err
	}
	if member == nil {
		return errors.New(errors.ErrNotFound, fmt.Sprintf("会员 %d 不存在", memberID), nil)
	}

	locked, err := tx.Balances.LockStake(ctx, memberID, principal)
	if err != nil {
		return err
	}
	if !locked {
		return errors.New(errors.ErrInsufficientBalance,
			fmt.Sprintf("会员 %d 可用余额不足以质押 %s", memberID, principal.String()), nil)
	}
	return nil
}

func buildEntries(t models.PositionType, positionID, memberID uint64, events []schedule.Event) []models.RewardScheduleEntry {
	entries := make([]models.RewardScheduleEntry, 0, len(events))
	for _, e := range events {
		entries = append(entries, models.RewardScheduleEntry{
			PositionType:  t,
			PositionID:    positionID,
			MemberID:      memberID,
			ScheduledTime: e.Time,
			RewardAmount:  e.Amount,
			Status:        models.EntryPending,
		})
	}
	return entries
}

// Cancel 取消active仓位：释放质押额并取消剩余pending计划
func (s *StakingService) Cancel(ctx context.Context, t models.PositionType, id uint64) error {
	if !t.Valid() {
		return errors.New(errors.ErrValidation, fmt.Sprintf("未知仓位类型 %q", t), nil)
	}
	now := normalize(s.now())

	var cancelled int64
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		position, err := tx.Positions.Get(ctx, t, id)
		if err != nil {
			return err
		}
		if position == nil {
			return errors.New(errors.ErrNotFound, fmt.Sprintf("仓位 %s/%d 不存在", t, id), nil)
		}

		ok, err := tx.Positions.Transition(ctx, t, id, models.PositionActive, models.PositionCancelled, now)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New(errors.ErrInvalidState,
				fmt.Sprintf("仓位 %s/%d 状态为 %s，无法取消", t, id, position.CurrentStatus()), nil)
		}

		if _, err := tx.Balances.ReleaseStake(ctx, position.Owner(), position.Principal()); err != nil {
			return err
		}

		cancelled, err = tx.Schedules.CancelPending(ctx, t, id, now)
		return err
	})
	if err != nil {
		return err
	}

	logger.WithFields(logger.PositionFields(string(t), id, 0)).
		WithField("cancelled_entries", cancelled).
		Info("仓位已取消")
	return nil
}

// Schedule 返回仓位的全部收益计划，用于审计展示
func (s *StakingService) Schedule(ctx context.Context, t models.PositionType, id uint64) ([]models.RewardScheduleEntry, error) {
	if !t.Valid() {
		return nil, errors.New(errors.ErrValidation, fmt.Sprintf("未知仓位类型 %q", t), nil)
	}
	return s.store.Schedules.ListByPosition(ctx, t, id)
}

// Position 返回仓位详情
func (s *StakingService) Position(ctx context.Context, t models.PositionType, id uint64) (models.Position, error) {
	if !t.Valid() {
		return nil, errors.New(errors.ErrValidation, fmt.Sprintf("未知仓位类型 %q", t), nil)
	}
	position, err := s.store.Positions.Get(ctx, t, id)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, errors.New(errors.ErrNotFound, fmt.Sprintf("仓位 %s/%d 不存在", t, id), nil)
	}
	return position, nil
}
