package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CoinBalance 会员币余额
// Total 包含充值、已结算收益和已物化的奖金币；Staked 为质押锁定部分
type CoinBalance struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	MemberID  uint64          `gorm:"not null;uniqueIndex" json:"member_id"`
	Total     decimal.Decimal `gorm:"type:decimal(36,18);not null;default:0" json:"total"`
	Staked    decimal.Decimal `gorm:"type:decimal(36,18);not null;default:0" json:"staked"`
	BonusCoin decimal.Decimal `gorm:"type:decimal(36,18);not null;default:0" json:"bonus_coin"`
	BonusUSDT decimal.Decimal `gorm:"column:bonus_usdt;type:decimal(36,18);not null;default:0" json:"bonus_usdt"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CoinBalance) TableName() string {
	return "coin_balances"
}

func (b CoinBalance) Available() decimal.Decimal {
	return b.Total.Sub(b.Staked)
}
