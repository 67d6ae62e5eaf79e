package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PositionStatus string

const (
	PositionActive    PositionStatus = "active"
	PositionUnstaked  PositionStatus = "unstaked"
	PositionCancelled PositionStatus = "cancelled"
)

type PositionType string

const (
	PositionTypeStaking    PositionType = "staking"
	PositionTypeMultiplier PositionType = "multiplier"
)

func (t PositionType) Valid() bool {
	return t == PositionTypeStaking || t == PositionTypeMultiplier
}

// Position 两种质押仓位的公共视图
// MaturesAt 在创建时写入 StartedAt + DurationMinutes，供到期扫描按索引查询
type Position interface {
	PositionID() uint64
	Type() PositionType
	Owner() uint64
	Principal() decimal.Decimal
	CurrentStatus() PositionStatus
	Maturity() time.Time
}

type StakingPosition struct {
	ID                    uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	MemberID              uint64          `gorm:"not null;index" json:"member_id"`
	PrincipalCoin         decimal.Decimal `gorm:"type:decimal(36,18);not null" json:"principal_coin"`
	RewardPercentage      decimal.Decimal `gorm:"type:decimal(12,6);not null" json:"reward_percentage"`
	RewardIntervalMinutes int             `gorm:"not null" json:"reward_interval_minutes"`
	DurationMinutes       int             `gorm:"not null" json:"duration_minutes"`
	StartedAt             time.Time       `gorm:"not null" json:"started_at"`
	MaturesAt             time.Time       `gorm:"not null;index" json:"matures_at"`
	UnstakedAt            *time.Time      `json:"unstaked_at,omitempty"`
	Status                PositionStatus  `gorm:"size:16;not null;default:active;index" json:"status"`
	EarnedTotal           decimal.Decimal `gorm:"type:decimal(36,18);not null;default:0" json:"earned_total"`
	CreatedAt             time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (StakingPosition) TableName() string {
	return "staking_positions"
}

func (p *StakingPosition) PositionID() uint64            { return p.ID }
func (p *StakingPosition) Type() PositionType            { return PositionTypeStaking }
func (p *StakingPosition) Owner() uint64                 { return p.MemberID }
func (p *StakingPosition) Principal() decimal.Decimal    { return p.PrincipalCoin }
func (p *StakingPosition) CurrentStatus() PositionStatus { return p.Status }

func (p *StakingPosition) Maturity() time.Time {
	return p.MaturesAt
}

// MultiplierStakingPosition 复利质押，已产生的收益会并入后续计算的本金
type MultiplierStakingPosition struct {
	ID                     uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	MemberID               uint64          `gorm:"not null;index" json:"member_id"`
	PrincipalCoin          decimal.Decimal `gorm:"type:decimal(36,18);not null" json:"principal_coin"`
	BasePercentage         decimal.Decimal `gorm:"type:decimal(12,6);not null" json:"base_percentage"`
	RewardIntervalMinutes  int             `gorm:"not null" json:"reward_interval_minutes"`
	IncrementPeriodMinutes int             `gorm:"not null;default:0" json:"increment_period_minutes"`
	DurationMinutes        int             `gorm:"not null" json:"duration_minutes"`
	StartedAt              time.Time       `gorm:"not null" json:"started_at"`
	MaturesAt              time.Time       `gorm:"not null;index" json:"matures_at"`
	UnstakedAt             *time.Time      `json:"unstaked_at,omitempty"`
	Status                 PositionStatus  `gorm:"size:16;not null;default:active;index" json:"status"`
	EarnedTotal            decimal.Decimal `gorm:"type:decimal(36,18);not null;default:0" json:"earned_total"`
	CreatedAt              time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (MultiplierStakingPosition) TableName() string {
	return "multiplier_staking_positions"
}

func (p *MultiplierStakingPosition) PositionID() uint64            { return p.ID }
func (p *MultiplierStakingPosition) Type() PositionType            { return PositionTypeMultiplier }
func (p *MultiplierStakingPosition) Owner() uint64                 { return p.MemberID }
func (p *MultiplierStakingPosition) Principal() decimal.Decimal    { return p.PrincipalCoin }
func (p *MultiplierStakingPosition) CurrentStatus() PositionStatus { return p.Status }

func (p *MultiplierStakingPosition) Maturity() time.Time {
	return p.MaturesAt
}

// MaturityFrom 计算仓位到期时间
func MaturityFrom(start time.Time, durationMinutes int) time.Time {
	return start.Add(time.Duration(durationMinutes) * time.Minute)
}
