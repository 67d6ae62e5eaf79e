package models

import "gorm.io/gorm"

// AutoMigrate 创建或更新引擎使用的全部表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Member{},
		&CoinBalance{},
		&StakingPosition{},
		&MultiplierStakingPosition{},
		&RewardScheduleEntry{},
		&Deposit{},
		&BonusSettings{},
		&CoinPrice{},
		&BonusRecord{},
		&AccrualRun{},
	)
}
