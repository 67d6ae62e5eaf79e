package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DepositStatus string

const (
	DepositPending   DepositStatus = "pending"
	DepositCompleted DepositStatus = "completed"
	DepositFailed    DepositStatus = "failed"
)

// Deposit 充值记录，由外部系统写入，引擎只读
type Deposit struct {
	ID         uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	MemberID   uint64          `gorm:"not null;index:idx_member_status" json:"member_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(36,18);not null" json:"amount"`
	CoinAmount decimal.Decimal `gorm:"type:decimal(36,18);not null;default:0" json:"coin_amount"`
	Status     DepositStatus   `gorm:"size:16;not null;index:idx_member_status" json:"status"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (Deposit) TableName() string {
	return "deposits"
}
