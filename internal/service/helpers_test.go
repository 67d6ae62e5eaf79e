package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"staking-reward-engine/internal/models"
	"staking-reward-engine/internal/repository"
)

var base = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func setupServiceTestDB(t *testing.T) (*gorm.DB, *repository.Store) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db, repository.NewStore(db)
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	require.True(t, dec(want).Equal(got), append([]interface{}{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func seedMember(t *testing.T, store *repository.Store, id uint64, code string, referredBy string, tier models.MemberTier) {
	t.Helper()
	member := &models.Member{ID: id, ReferralCode: code, Tier: tier}
	if referredBy != "" {
		member.ReferredBy = &referredBy
	}
	require.NoError(t, store.Members.Create(context.Background(), member))
}

func seedBalance(t *testing.T, store *repository.Store, memberID uint64, total string) {
	t.Helper()
	require.NoError(t, store.Balances.Credit(context.Background(), memberID, dec(total)))
}

func seedDeposit(t *testing.T, store *repository.Store, memberID uint64, amount, coin string, status models.DepositStatus) {
	t.Helper()
	require.NoError(t, store.DB().Create(&models.Deposit{
		MemberID:   memberID,
		Amount:     dec(amount),
		CoinAmount: dec(coin),
		Status:     status,
	}).Error)
}

func seedPrice(t *testing.T, store *repository.Store, tier models.MemberTier, price string) {
	t.Helper()
	require.NoError(t, store.DB().Create(&models.CoinPrice{Tier: tier, Price: dec(price)}).Error)
}

func defaultSettings() *models.BonusSettings {
	return &models.BonusSettings{
		ReferralPercentage:     dec("15"),
		MatchingLevel1:         dec("10"),
		MatchingLevel2:         dec("5"),
		MatchingLevel3:         dec("2"),
		LoyaltyLevel0:          dec("10"),
		LoyaltyLevel1:          dec("5"),
		LoyaltyLevel2Plus:      dec("2"),
		BalanceSplit:           dec("80"),
		CoinSplit:              dec("20"),
		AccrualIntervalMinutes: 60,
	}
}

func seedSettings(t *testing.T, store *repository.Store, settings *models.BonusSettings) {
	t.Helper()
	require.NoError(t, store.Settings.SaveBonusSettings(context.Background(), settings))
}

func balanceOf(t *testing.T, store *repository.Store, memberID uint64) *models.CoinBalance {
	t.Helper()
	balance, err := store.Balances.GetByMember(context.Background(), memberID)
	require.NoError(t, err)
	require.NotNil(t, balance)
	return balance
}

func simpleStake(memberID uint64, principal string, intervalMinutes, durationMinutes int) StakeRequest {
	start := base
	return StakeRequest{
		MemberID:        memberID,
		Principal:       dec(principal),
		Percentage:      dec("10"),
		IntervalMinutes: intervalMinutes,
		DurationMinutes: durationMinutes,
		StartAt:         &start,
	}
}
