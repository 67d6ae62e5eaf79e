package repository

import (
	"context"
	"errors"

	"staking-reward-engine/internal/models"

	"gorm.io/gorm"
)

type MemberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// GetByID 获取会员，不存在时返回nil
func (r *MemberRepository) GetByID(ctx context.Context, id uint64) (*models.Member, error) {
	var member models.Member
	err := r.db.WithContext(ctx).First(&member, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &member, err
}

// ListAll 获取全部会员，用于重建推荐树
func (r *MemberRepository) ListAll(ctx context.Context) ([]models.Member, error) {
	var members []models.Member
	err := r.db.WithContext(ctx).
		Select("id", "referral_code", "referred_by", "tier").
		Order("id ASC").
		Find(&members).Error
	return members, err
}

func (r *MemberRepository) Create(ctx context.Context, member *models.Member) error {
	return r.db.WithContext(ctx).Create(member).Error
}
