package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BonusStream string

const (
	StreamReferral BonusStream = "referral"
	StreamMatching BonusStream = "matching"
	StreamLoyalty  BonusStream = "loyalty"
)

// BonusRecord 物化后的分级奖金明细，(member_id, stream, level) 唯一，每次重算覆盖
type BonusRecord struct {
	ID              uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	MemberID        uint64          `gorm:"not null;uniqueIndex:uk_member_stream_level" json:"member_id"`
	Stream          BonusStream     `gorm:"size:16;not null;uniqueIndex:uk_member_stream_level" json:"stream"`
	Level           int             `gorm:"not null;uniqueIndex:uk_member_stream_level" json:"level"`
	Depth           int             `gorm:"not null" json:"depth"`
	Percentage      decimal.Decimal `gorm:"type:decimal(12,6);not null" json:"percentage"`
	SourceTotal     decimal.Decimal `gorm:"type:decimal(36,18);not null" json:"source_total"`
	BonusUSDT       decimal.Decimal `gorm:"column:bonus_usdt;type:decimal(36,18);not null" json:"bonus_usdt"`
	BalancePortion  decimal.Decimal `gorm:"type:decimal(36,18);not null" json:"balance_portion"`
	CoinPortionUSDT decimal.Decimal `gorm:"column:coin_portion_usdt;type:decimal(36,18);not null" json:"coin_portion_usdt"`
	CoinAmount      decimal.Decimal `gorm:"type:decimal(36,18);not null" json:"coin_amount"`
	ComputedAt      time.Time       `gorm:"not null" json:"computed_at"`
}

func (BonusRecord) TableName() string {
	return "bonus_records"
}
