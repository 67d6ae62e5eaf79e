package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"staking-reward-engine/internal/models"
)

type ScheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// CreateBatch 批量写入一个仓位的全部收益计划
func (r *ScheduleRepository) CreateBatch(ctx context.Context, entries []models.RewardScheduleEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(entries, 500).Error
}

// DueCursor 按 (scheduled_time, id) 翻页的游标
type DueCursor struct {
	Time time.Time
	ID   uint64
}

// FindDue 返回到期的pending条目，按计划时间升序
// after 非空时只返回排在游标之后的条目，保证失败条目不会被同一轮重复读取
func (r *ScheduleRepository) FindDue(ctx context.Context, now time.Time, after *DueCursor, limit int) ([]models.RewardScheduleEntry, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_time <= ?", models.EntryPending, now)
	if after != nil {
		query = query.Where("(scheduled_time > ? OR (scheduled_time = ? AND id > ?))", after.Time, after.Time, after.ID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []models.RewardScheduleEntry
	err := query.Order("scheduled_time ASC, id ASC").Find(&entries).Error
	return entries, err
}

// Transition 条件状态迁移，仅当条目当前为from时生效
func (r *ScheduleRepository) Transition(ctx context.Context, id uint64, from, to models.EntryStatus, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.RewardScheduleEntry{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"settled_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// CancelPending 取消仓位剩余的pending条目
func (r *ScheduleRepository) CancelPending(ctx context.Context, t models.PositionType, positionID uint64, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.RewardScheduleEntry{}).
		Where("position_type = ? AND position_id = ? AND status = ?", t, positionID, models.EntryPending).
		Updates(map[string]interface{}{
			"status":     models.EntryCancelled,
			"settled_at": at,
		})
	return result.RowsAffected, result.Error
}

func (r *ScheduleRepository) ListByPosition(ctx context.Context, t models.PositionType, positionID uint64) ([]models.RewardScheduleEntry, error) {
	var entries []models.RewardScheduleEntry
	err := r.db.WithContext(ctx).
		Where("position_type = ? AND position_id = ?", t, positionID).
		Order("scheduled_time ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

// SumPaidByMembers 一组会员在指定仓位类型下已支付收益之和
func (r *ScheduleRepository) SumPaidByMembers(ctx context.Context, t models.PositionType, memberIDs []uint64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, chunk := range chunkIDs(memberIDs, inListChunk) {
		var sum decimal.Decimal
		err := r.db.WithContext(ctx).
			Model(&models.RewardScheduleEntry{}).
			Select("COALESCE(SUM(reward_amount), 0)").
			Where("position_type = ? AND member_id IN ? AND status = ?", t, chunk, models.EntryPaid).
			Row().Scan(&sum)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(sum)
	}
	return total, nil
}

// CountByStatus 各状态条目数量
func (r *ScheduleRepository) CountByStatus(ctx context.Context) (map[models.EntryStatus]int64, error) {
	type row struct {
		Status models.EntryStatus
		Count  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.RewardScheduleEntry{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.EntryStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
