package models

import (
	"time"
)

// RunErrorMaxLen accrual_runs.error 列长度
const RunErrorMaxLen = 512

// AccrualRun 每次计提调用的审计记录，Failed 表示到期扫描或结算中途中止
type AccrualRun struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID      string    `gorm:"size:36;not null;uniqueIndex" json:"run_id"`
	AsOf       time.Time `gorm:"not null;index" json:"as_of"`
	Forced     bool      `gorm:"not null" json:"forced"`
	Gated      bool      `gorm:"not null" json:"gated"`
	GateReason string    `gorm:"size:255" json:"gate_reason,omitempty"`
	Failed     bool      `gorm:"not null;default:false" json:"failed"`
	Error      string    `gorm:"size:512" json:"error,omitempty"`
	Expired    int       `gorm:"not null" json:"expired"`
	Settled    int       `gorm:"not null" json:"settled"`
	Skipped    int       `gorm:"not null" json:"skipped"`
	Errored    int       `gorm:"not null" json:"errored"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (AccrualRun) TableName() string {
	return "accrual_runs"
}
