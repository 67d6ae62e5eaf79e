package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type EntryStatus string

const (
	EntryPending   EntryStatus = "pending"
	EntryPaid      EntryStatus = "paid"
	EntrySkipped   EntryStatus = "skipped"
	EntryCancelled EntryStatus = "cancelled"
)

// RewardScheduleEntry 一笔预先生成的待发放收益，paid之后不可变
type RewardScheduleEntry struct {
	ID            uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	PositionType  PositionType    `gorm:"size:16;not null;index:idx_position,priority:1;index:idx_type_member_status,priority:1" json:"position_type"`
	PositionID    uint64          `gorm:"not null;index:idx_position,priority:2" json:"position_id"`
	MemberID      uint64          `gorm:"not null;index:idx_type_member_status,priority:2" json:"member_id"`
	ScheduledTime time.Time       `gorm:"not null;index:idx_status_time,priority:2" json:"scheduled_time"`
	RewardAmount  decimal.Decimal `gorm:"type:decimal(36,18);not null" json:"reward_amount"`
	Status        EntryStatus     `gorm:"size:16;not null;default:pending;index:idx_status_time,priority:1;index:idx_type_member_status,priority:3" json:"status"`
	SettledAt     *time.Time      `json:"settled_at,omitempty"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (RewardScheduleEntry) TableName() string {
	return "reward_schedule_entries"
}
