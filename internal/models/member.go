package models

import (
	"time"
)

type MemberTier string

const (
	TierNormal MemberTier = "normal"
	TierVIP    MemberTier = "vip"
	TierLeader MemberTier = "leader"
)

// Member 会员。ReferredBy 可以是上级会员ID，也可以是上级推荐码，注册后不可修改
type Member struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ReferralCode string     `gorm:"size:32;not null;uniqueIndex" json:"referral_code"`
	ReferredBy   *string    `gorm:"size:32;index" json:"referred_by,omitempty"`
	Tier         MemberTier `gorm:"size:16;not null;default:normal" json:"tier"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (Member) TableName() string {
	return "members"
}
