package repository

import (
	"context"

	"gorm.io/gorm"
)

// decimalArg 将绑定参数显式转换为DECIMAL，避免SQLite把字符串参数按TEXT比较
const decimalArg = "CAST(? AS DECIMAL(36,18))"

// inListChunk IN 列表单次绑定的最大参数个数，低于SQLite与MySQL的占位符上限
const inListChunk = 1000

// chunkIDs 按size切分id列表，返回的切片共享底层数组
func chunkIDs(ids []uint64, size int) [][]uint64 {
	chunks := make([][]uint64, 0, (len(ids)+size-1)/size)
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}

// Store 聚合所有仓储，InTx 内的仓储共享同一事务
type Store struct {
	db        *gorm.DB
	Members   *MemberRepository
	Balances  *BalanceRepository
	Positions *PositionRepository
	Schedules *ScheduleRepository
	Deposits  *DepositRepository
	Settings  *SettingsRepository
	Bonuses   *BonusRepository
	Runs      *RunRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:        db,
		Members:   NewMemberRepository(db),
		Balances:  NewBalanceRepository(db),
		Positions: NewPositionRepository(db),
		Schedules: NewScheduleRepository(db),
		Deposits:  NewDepositRepository(db),
		Settings:  NewSettingsRepository(db),
		Bonuses:   NewBonusRepository(db),
		Runs:      NewRunRepository(db),
	}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// InTx 在单个数据库事务中执行fn，fn返回错误时整体回滚
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
