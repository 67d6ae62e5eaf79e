package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"staking-reward-engine/internal/models"
)

type PositionRepository struct {
	db *gorm.DB
}

func NewPositionRepository(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

func positionTable(t models.PositionType) (string, error) {
	switch t {
	case models.PositionTypeStaking:
		return models.StakingPosition{}.TableName(), nil
	case models.PositionTypeMultiplier:
		return models.MultiplierStakingPosition{}.TableName(), nil
	}
	return "", fmt.Errorf("unknown position type %q", t)
}

func newPosition(t models.PositionType) (models.Position, error) {
	switch t {
	case models.PositionTypeStaking:
		return &models.StakingPosition{}, nil
	case models.PositionTypeMultiplier:
		return &models.MultiplierStakingPosition{}, nil
	}
	return nil, fmt.Errorf("unknown position type %q", t)
}

func (r *PositionRepository) CreateStaking(ctx context.Context, p *models.StakingPosition) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PositionRepository) CreateMultiplier(ctx context.Context, p *models.MultiplierStakingPosition) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// Get 获取仓位，不存在时返回nil
func (r *PositionRepository) Get(ctx context.Context, t models.PositionType, id uint64) (models.Position, error) {
	p, err := newPosition(t)
	if err != nil {
		return nil, err
	}
	err = r.db.WithContext(ctx).First(p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// FindMatured 返回已到期但仍为active的仓位，按ID升序，afterID用于翻页
func (r *PositionRepository) FindMatured(ctx context.Context, t models.PositionType, now time.Time, afterID uint64, limit int) ([]models.Position, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND matures_at <= ? AND id > ?", models.PositionActive, now, afterID).
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var out []models.Position
	switch t {
	case models.PositionTypeStaking:
		var rows []models.StakingPosition
		if err := query.Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			out = append(out, &rows[i])
		}
	case models.PositionTypeMultiplier:
		var rows []models.MultiplierStakingPosition
		if err := query.Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			out = append(out, &rows[i])
		}
	default:
		return nil, fmt.Errorf("unknown position type %q", t)
	}
	return out, nil
}

// Transition 条件状态迁移，仅当当前状态为from时生效
// 返回false表示仓位已不处于from状态（已被其他调用处理）
func (r *PositionRepository) Transition(ctx context.Context, t models.PositionType, id uint64, from, to models.PositionStatus, at time.Time) (bool, error) {
	table, err := positionTable(t)
	if err != nil {
		return false, err
	}

	updates := map[string]interface{}{
		"status":     to,
		"updated_at": at,
	}
	if to == models.PositionUnstaked || to == models.PositionCancelled {
		updates["unstaked_at"] = at
	}

	result := r.db.WithContext(ctx).
		Table(table).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// RecomputeEarned 以已支付计划条目之和覆盖 earned_total
// requireActive 为true时仅更新active仓位，返回false表示仓位已不再active
func (r *PositionRepository) RecomputeEarned(ctx context.Context, t models.PositionType, id uint64, requireActive bool) (bool, error) {
	table, err := positionTable(t)
	if err != nil {
		return false, err
	}

	query := r.db.WithContext(ctx).Table(table).Where("id = ?", id)
	if requireActive {
		query = query.Where("status = ?", models.PositionActive)
	}

	result := query.Updates(map[string]interface{}{
		"earned_total": gorm.Expr(`(
			SELECT COALESCE(SUM(e.reward_amount), 0) FROM reward_schedule_entries e
			WHERE e.position_type = ? AND e.position_id = ? AND e.status = ?
		)`, t, id, models.EntryPaid),
		"updated_at": time.Now().UTC(),
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ReconcileEarned 修复所有 earned_total 与已支付条目之和不一致的仓位，返回修复数量
func (r *PositionRepository) ReconcileEarned(ctx context.Context, t models.PositionType) (int64, error) {
	table, err := positionTable(t)
	if err != nil {
		return 0, err
	}

	sum := fmt.Sprintf(`(
		SELECT COALESCE(SUM(e.reward_amount), 0) FROM reward_schedule_entries e
		WHERE e.position_type = ? AND e.position_id = %s.id AND e.status = ?
	)`, table)

	result := r.db.WithContext(ctx).Exec(
		fmt.Sprintf("UPDATE %s SET earned_total = %s WHERE earned_total <> %s", table, sum, sum),
		t, models.EntryPaid, t, models.EntryPaid,
	)
	return result.RowsAffected, result.Error
}
