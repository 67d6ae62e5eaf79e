package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BonusSettings 全局奖金配置，单行表。每次调用重新读取，不做进程内缓存
type BonusSettings struct {
	ID                     uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	ReferralPercentage     decimal.Decimal `gorm:"type:decimal(12,6);not null;default:0" json:"referral_percentage"`
	MatchingLevel1         decimal.Decimal `gorm:"type:decimal(12,6);not null;default:0" json:"matching_level_1"`
	MatchingLevel2         decimal.Decimal `gorm:"type:decimal(12,6);not null;default:0" json:"matching_level_2"`
	MatchingLevel3         decimal.Decimal `gorm:"type:decimal(12,6);not null;default:0" json:"matching_level_3"`
	LoyaltyLevel0          decimal.Decimal `gorm:"type:decimal(12,6);not null;default:0" json:"loyalty_level_0"`
	LoyaltyLevel1          decimal.Decimal `gorm:"type:decimal(12,6);not null;default:0" json:"loyalty_level_1"`
	LoyaltyLevel2Plus      decimal.Decimal `gorm:"type:decimal(12,6);not null;default:0" json:"loyalty_level_2_plus"`
	BalanceSplit           decimal.Decimal `gorm:"type:decimal(12,6);not null;default:0" json:"balance_split"`
	CoinSplit              decimal.Decimal `gorm:"type:decimal(12,6);not null;default:0" json:"coin_split"`
	AccrualIntervalMinutes int             `gorm:"not null;default:0" json:"accrual_interval_minutes"`
	LastAccrualRunAt       *time.Time      `json:"last_accrual_run_at,omitempty"`
	UpdatedAt              time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (BonusSettings) TableName() string {
	return "bonus_settings"
}

// MatchingPercentage 返回第level级对碰奖比例，level取1..3
func (s *BonusSettings) MatchingPercentage(level int) decimal.Decimal {
	switch level {
	case 1:
		return s.MatchingLevel1
	case 2:
		return s.MatchingLevel2
	case 3:
		return s.MatchingLevel3
	}
	return decimal.Zero
}

// LoyaltyPercentage 第0、1级各自配置，第2级及以下共用同一比例
func (s *BonusSettings) LoyaltyPercentage(level int) decimal.Decimal {
	switch {
	case level <= 0:
		return s.LoyaltyLevel0
	case level == 1:
		return s.LoyaltyLevel1
	default:
		return s.LoyaltyLevel2Plus
	}
}

func (s *BonusSettings) AccrualInterval() time.Duration {
	return time.Duration(s.AccrualIntervalMinutes) * time.Minute
}

// CoinPrice 按会员等级区分的币价（USDT）
type CoinPrice struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Tier      MemberTier      `gorm:"size:16;not null;uniqueIndex" json:"tier"`
	Price     decimal.Decimal `gorm:"type:decimal(36,18);not null" json:"price"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CoinPrice) TableName() string {
	return "coin_prices"
}
