package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"staking-reward-engine/internal/models"
	"staking-reward-engine/internal/repository"
	"staking-reward-engine/internal/service"
)

func setupRouter(t *testing.T) (http.Handler, *repository.Store) {
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

	store := repository.NewStore(db)
	expiry := service.NewExpiryService(store, 100)
	settlement := service.NewSettlementService(store, 100)

	router := NewRouter(Handlers{
		Accrual: NewAccrualHandler(
			service.NewAccrualService(store, expiry, settlement, nil),
			service.NewReconcileService(store),
		),
		Bonus:       NewBonusHandler(service.NewBonusService(store, 20, nil)),
		Staking:     NewStakingHandler(service.NewStakingService(store, nil)),
		MetricsPath: "/metrics",
	})
	return router, store
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func seedMemberWithBalance(t *testing.T, store *repository.Store, id uint64, total string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Members.Create(ctx, &models.Member{ID: id, ReferralCode: fmt.Sprintf("M%d", id), Tier: models.TierNormal}))
	require.NoError(t, store.Balances.Credit(ctx, id, decimal.RequireFromString(total)))
}

func TestHealth(t *testing.T) {
	router, _ := setupRouter(t)

	rec, body := do(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateStakeAndSchedule(t *testing.T) {
	router, store := setupRouter(t)
	seedMemberWithBalance(t, store, 1, "1000")

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
	payload := fmt.Sprintf(`{"member_id":1,"principal":"1000","percentage":"10","interval_minutes":60,"duration_minutes":180,"start_at":%q}`, start)

	rec, body := do(t, router, http.MethodPost, "/api/stakes", payload)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	schedule, ok := body["schedule"].([]interface{})
	require.True(t, ok)
	assert.Len(t, schedule, 3)

	position := body["position"].(map[string]interface{})
	id := uint64(position["id"].(float64))

	rec, body = do(t, router, http.MethodGet, fmt.Sprintf("/api/positions/staking/%d/schedule", id), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), body["total"])

	rec, _ = do(t, router, http.MethodPost, "/api/stakes", payload)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = do(t, router, http.MethodPost, fmt.Sprintf("/api/positions/staking/%d/cancel", id), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = do(t, router, http.MethodPost, fmt.Sprintf("/api/positions/staking/%d/cancel", id), "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_STATE", body["code"])
}

func TestCreateStakeValidation(t *testing.T) {
	router, store := setupRouter(t)
	seedMemberWithBalance(t, store, 1, "1000")

	rec, _ := do(t, router, http.MethodPost, "/api/stakes", `{"member_id":1,"principal":"10","percentage":"10","interval_minutes":0,"duration_minutes":60}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, router, http.MethodPost, "/api/stakes", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, router, http.MethodGet, "/api/positions/bogus/1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, router, http.MethodGet, "/api/positions/staking/77", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAccrualRunRequiresSettings(t *testing.T) {
	router, _ := setupRouter(t)

	rec, body := do(t, router, http.MethodPost, "/api/accrual/run", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "CONFIG_MISSING", body["code"])

	rec, _ = do(t, router, http.MethodGet, "/api/bonus/1", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAccrualRunGate(t *testing.T) {
	router, store := setupRouter(t)
	require.NoError(t, store.Settings.SaveBonusSettings(context.Background(), &models.BonusSettings{
		AccrualIntervalMinutes: 60,
	}))

	rec, body := do(t, router, http.MethodPost, "/api/accrual/run", `{"as_of":"2025-03-01T00:00:00Z"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, false, body["gated"])

	rec, body = do(t, router, http.MethodPost, "/api/accrual/run?as_of=2025-03-01T00:10:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["gated"])
	assert.NotEmpty(t, body["gate_reason"])

	rec, body = do(t, router, http.MethodPost, "/api/accrual/run?force=true&as_of=2025-03-01T00:10:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["gated"])
	assert.Equal(t, true, body["forced"])

	rec, body = do(t, router, http.MethodGet, "/api/accrual/runs?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), body["total"])

	rec, _ = do(t, router, http.MethodPost, "/api/accrual/run?as_of=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccrualRunFailureReturnsSummary(t *testing.T) {
	router, store := setupRouter(t)
	require.NoError(t, store.Settings.SaveBonusSettings(context.Background(), &models.BonusSettings{
		AccrualIntervalMinutes: 60,
	}))
	require.NoError(t, store.DB().Exec("DROP TABLE reward_schedule_entries").Error)

	rec, body := do(t, router, http.MethodPost, "/api/accrual/run?force=true&as_of=2025-03-01T00:00:00Z", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())
	assert.Equal(t, "SETTLEMENT_ERROR", body["code"])
	assert.NotEmpty(t, body["error"])

	summary, ok := body["summary"].(map[string]interface{})
	require.True(t, ok, rec.Body.String())
	assert.Equal(t, true, summary["failed"])
	assert.NotEmpty(t, summary["run_id"])
	assert.Equal(t, float64(0), summary["settled"])

	rec, body = do(t, router, http.MethodGet, "/api/accrual/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["total"])
	items := body["items"].([]interface{})
	assert.Equal(t, true, items[0].(map[string]interface{})["failed"])
}

func TestBonusEndpoints(t *testing.T) {
	router, store := setupRouter(t)
	ctx := context.Background()
	require.NoError(t, store.Settings.SaveBonusSettings(ctx, &models.BonusSettings{
		ReferralPercentage: decimal.NewFromInt(15),
		BalanceSplit:       decimal.NewFromInt(80),
		CoinSplit:          decimal.NewFromInt(20),
	}))
	require.NoError(t, store.DB().Create(&models.CoinPrice{Tier: models.TierNormal, Price: decimal.RequireFromString("0.5")}).Error)
	seedMemberWithBalance(t, store, 1, "0")
	referrer := "M1"
	require.NoError(t, store.Members.Create(ctx, &models.Member{ID: 2, ReferralCode: "M2", ReferredBy: &referrer, Tier: models.TierNormal}))
	require.NoError(t, store.DB().Create(&models.Deposit{MemberID: 2, Amount: decimal.NewFromInt(200), Status: models.DepositCompleted}).Error)

	rec, body := do(t, router, http.MethodGet, "/api/bonus/1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "30", body["total_usdt"])
	assert.Equal(t, "12", body["total_coin"])

	rec, _ = do(t, router, http.MethodPost, "/api/bonus/1/materialize", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = do(t, router, http.MethodGet, "/api/bonus/1/records", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(5), body["total"])

	rec, body = do(t, router, http.MethodPost, "/api/bonus/materialize", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["materialized"])

	rec, _ = do(t, router, http.MethodGet, "/api/bonus/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, router, http.MethodGet, "/api/bonus/9", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReconcileEndpoint(t *testing.T) {
	router, _ := setupRouter(t)

	rec, body := do(t, router, http.MethodPost, "/api/reconcile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), body["repaired_positions"])
}
