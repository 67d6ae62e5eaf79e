package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staking-reward-engine/internal/models"
	"staking-reward-engine/internal/repository"
	"staking-reward-engine/pkg/errors"
)

func newAccrual(store *repository.Store, now time.Time) *AccrualService {
	return NewAccrualService(store, NewExpiryService(store, 500), NewSettlementService(store, 500), fixedClock(now))
}

func at(t time.Time) *time.Time { return &t }

func TestRunFailsWithoutSettings(t *testing.T) {
	_, store := setupServiceTestDB(t)

	_, err := newAccrual(store, base).Run(context.Background(), Trigger{Force: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfigMissing))
}

func TestRunGatedWithinInterval(t *testing.T) {
	_, store := setupServiceTestDB(t)
	ctx := context.Background()
	seedSettings(t, store, defaultSettings())
	seedMember(t, store, 1, "A", "", models.TierNormal)
	seedBalance(t, store, 1, "1000")

	_, _, err := NewStakingService(store, fixedClock(base)).Stake(ctx, simpleStake(1, "1000", 10, 600))
	require.NoError(t, err)

	svc := newAccrual(store, base)

	first, err := svc.Run(ctx, Trigger{AsOf: at(base.Add(10 * time.Minute))})
	require.NoError(t, err)
	assert.False(t, first.Gated)
	assert.Equal(t, 1, first.Settled)

	second, err := svc.Run(ctx, Trigger{AsOf: at(base.Add(30 * time.Minute))})
	require.NoError(t, err)
	assert.True(t, second.Gated)
	assert.Contains(t, second.GateReason, "interval")
	assert.Zero(t, second.Settled)
	requireDecimal(t, "1100", balanceOf(t, store, 1).Total)

	forced, err := svc.Run(ctx, Trigger{Force: true, AsOf: at(base.Add(30 * time.Minute))})
	require.NoError(t, err)
	assert.False(t, forced.Gated)
	assert.True(t, forced.Forced)
	assert.Equal(t, 2, forced.Settled)

	// interval counts from the forced run
	gated, err := svc.Run(ctx, Trigger{AsOf: at(base.Add(80 * time.Minute))})
	require.NoError(t, err)
	assert.True(t, gated.Gated)

	later, err := svc.Run(ctx, Trigger{AsOf: at(base.Add(90 * time.Minute))})
	require.NoError(t, err)
	assert.False(t, later.Gated)
	assert.Equal(t, 6, later.Settled)

	runs, err := svc.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 5)
	assert.Equal(t, later.RunID, runs[0].RunID)

	settings, err := store.Settings.GetBonusSettings(ctx)
	require.NoError(t, err)
	require.NotNil(t, settings.LastAccrualRunAt)
	assert.True(t, settings.LastAccrualRunAt.Equal(base.Add(90*time.Minute)))
}

func TestRunExpiresBeforeSettling(t *testing.T) {
	_, store := setupServiceTestDB(t)
	ctx := context.Background()
	seedSettings(t, store, defaultSettings())
	seedMember(t, store, 1, "A", "", models.TierNormal)
	seedBalance(t, store, 1, "1000")

	staking := NewStakingService(store, fixedClock(base))
	position, _, err := staking.Stake(ctx, simpleStake(1, "1000", 60, 180))
	require.NoError(t, err)

	svc := newAccrual(store, base)

	early, err := svc.Run(ctx, Trigger{Force: true, AsOf: at(base.Add(120 * time.Minute))})
	require.NoError(t, err)
	assert.Zero(t, early.Expired)
	assert.Equal(t, 2, early.Settled)

	// the payout due at maturity is excluded
	summary, err := svc.Run(ctx, Trigger{Force: true, AsOf: at(base.Add(180 * time.Minute))})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Expired)
	assert.Zero(t, summary.Settled)
	assert.Equal(t, 1, summary.Skipped)

	got, err := staking.Position(ctx, models.PositionTypeStaking, position.ID)
	require.NoError(t, err)
	p := got.(*models.StakingPosition)
	assert.Equal(t, models.PositionUnstaked, p.Status)
	requireDecimal(t, "200", p.EarnedTotal)

	balance := balanceOf(t, store, 1)
	requireDecimal(t, "1200", balance.Total)
	requireDecimal(t, "0", balance.Staked)
}

func TestRunUsesClockWhenAsOfMissing(t *testing.T) {
	_, store := setupServiceTestDB(t)
	seedSettings(t, store, defaultSettings())

	now := base.Add(42 * time.Minute)
	summary, err := newAccrual(store, now).Run(context.Background(), Trigger{})
	require.NoError(t, err)
	assert.True(t, summary.AsOf.Equal(now))
	assert.NotEmpty(t, summary.RunID)
}

func TestRunLosesClaimWithStaleSettings(t *testing.T) {
	_, store := setupServiceTestDB(t)
	ctx := context.Background()
	seedSettings(t, store, defaultSettings())
	seedMember(t, store, 1, "A", "", models.TierNormal)
	seedBalance(t, store, 1, "1000")

	_, _, err := NewStakingService(store, fixedClock(base)).Stake(ctx, simpleStake(1, "1000", 60, 600))
	require.NoError(t, err)

	stale, err := store.Settings.GetBonusSettings(ctx)
	require.NoError(t, err)
	require.Nil(t, stale.LastAccrualRunAt)

	// a concurrent invocation claims the run after stale was read
	claimed, err := store.Settings.ClaimAccrualRun(ctx, stale.ID, nil, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.True(t, claimed)

	svc := newAccrual(store, base)
	summary, err := svc.runWith(ctx, stale, Trigger{AsOf: at(base.Add(2 * time.Hour))}, time.Now())
	require.NoError(t, err)
	assert.True(t, summary.Gated)
	assert.Contains(t, summary.GateReason, "claimed by a concurrent invocation")
	assert.Zero(t, summary.Settled)
	assert.Zero(t, summary.Expired)
	requireDecimal(t, "1000", balanceOf(t, store, 1).Total)

	runs, err := svc.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Gated)
	assert.Contains(t, runs[0].GateReason, "concurrent invocation")
}

func TestRunRecordsFailedRunWithPartialCounts(t *testing.T) {
	db, store := setupServiceTestDB(t)
	ctx := context.Background()
	seedSettings(t, store, defaultSettings())
	seedMember(t, store, 1, "A", "", models.TierNormal)
	seedBalance(t, store, 1, "1000")

	_, _, err := NewStakingService(store, fixedClock(base)).Stake(ctx, simpleStake(1, "1000", 60, 60))
	require.NoError(t, err)

	// expiry only touches positions and balances; settlement then fails to read its table
	require.NoError(t, db.Exec("DROP TABLE reward_schedule_entries").Error)

	svc := newAccrual(store, base)
	summary, err := svc.Run(ctx, Trigger{Force: true, AsOf: at(base.Add(time.Hour))})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSettlement))
	require.NotNil(t, summary)
	assert.True(t, summary.Failed)
	assert.Equal(t, 1, summary.Expired)
	assert.Zero(t, summary.Settled)
	assert.NotEmpty(t, summary.Error)

	runs, err := svc.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].RunID)
	assert.True(t, runs[0].Failed)
	assert.False(t, runs[0].Gated)
	assert.Equal(t, 1, runs[0].Expired)
	assert.Contains(t, runs[0].Error, errors.ErrSettlement)
}

func TestTruncateKeepsRunes(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "结算", truncate("结算失败", 2))
}
