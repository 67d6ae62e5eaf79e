package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"staking-reward-engine/internal/metrics"
	"staking-reward-engine/internal/models"
	"staking-reward-engine/internal/repository"
	"staking-reward-engine/pkg/errors"
	"staking-reward-engine/pkg/logger"
)

// Trigger 一次计提调用的参数
// Force 为true时跳过间隔限制；AsOf 为空时使用当前时间
type Trigger struct {
	Force bool       `json:"force"`
	AsOf  *time.Time `json:"as_of,omitempty"`
}

// RunSummary 单次计提的结果汇总
// Failed 为true时计数只包含中止前已完成的部分
type RunSummary struct {
	RunID      string        `json:"run_id"`
	AsOf       time.Time     `json:"as_of"`
	Forced     bool          `json:"forced"`
	Gated      bool          `json:"gated"`
	GateReason string        `json:"gate_reason,omitempty"`
	Failed     bool          `json:"failed"`
	Error      string        `json:"error,omitempty"`
	Expired    int           `json:"expired"`
	Settled    int           `json:"settled"`
	Skipped    int           `json:"skipped"`
	Errored    int           `json:"errored"`
	Errors     []ItemError   `json:"errors,omitempty"`
	Duration   time.Duration `json:"duration"`
}

type AccrualService struct {
	store      *repository.Store
	expiry     *ExpiryService
	settlement *SettlementService
	now        Clock
}

func NewAccrualService(store *repository.Store, expiry *ExpiryService, settlement *SettlementService, now Clock) *AccrualService {
	if now == nil {
		now = systemClock
	}
	return &AccrualService{
		store:      store,
		expiry:     expiry,
		settlement: settlement,
		now:        now,
	}
}

// Run 执行一次计提：间隔检查 -> 到期扫描 -> 收益结算
// 奖金配置不存在时直接失败，不做任何处理
// 到期扫描或结算中止时仍写入计提记录，并返回已完成部分的summary和错误
func (s *AccrualService) Run(ctx context.Context, trigger Trigger) (*RunSummary, error) {
	started := time.Now()

	settings, err := s.store.Settings.GetBonusSettings(ctx)
	if err != nil {
		metrics.ObserveRun("failed", started)
		return nil, errors.New(errors.ErrSettlement, "读取奖金配置失败", err)
	}
	if settings == nil {
		metrics.ObserveRun("failed", started)
		logger.Error("奖金配置不存在，计提中止")
		return nil, errors.New(errors.ErrConfigMissing, "奖金配置不存在", nil)
	}
	return s.runWith(ctx, settings, trigger, started)
}

// runWith 按调用方读到的配置执行计提
// settings.LastAccrualRunAt 是抢占执行时比较的旧值，已被并发调用更新时本次跳过
func (s *AccrualService) runWith(ctx context.Context, settings *models.BonusSettings, trigger Trigger, started time.Time) (*RunSummary, error) {
	asOf := s.now()
	if trigger.AsOf != nil {
		asOf = *trigger.AsOf
	}
	summary := &RunSummary{
		RunID:  uuid.NewString(),
		AsOf:   normalize(asOf),
		Forced: trigger.Force,
	}
	log := logger.WithRun(summary.RunID, summary.AsOf, trigger.Force)
	ctx = logger.NewContext(ctx, log)

	if reason, gated := s.gate(ctx, settings, summary.AsOf, trigger.Force); gated {
		summary.Gated = true
		summary.GateReason = reason
		summary.Duration = time.Since(started)
		s.record(ctx, summary)
		metrics.ObserveRun("gated", started)
		log.WithField("reason", reason).Info("计提间隔未到，跳过")
		return summary, nil
	}

	expiry, err := s.expiry.SweepExpired(ctx, summary.AsOf)
	if expiry != nil {
		summary.Expired = expiry.Expired
		summary.Errored += expiry.Errored
		summary.Errors = append(summary.Errors, expiry.Errors...)
	}
	if err != nil {
		return s.fail(ctx, summary, started, err)
	}

	settlement, err := s.settlement.SettleDue(ctx, summary.AsOf)
	if settlement != nil {
		summary.Settled = settlement.Processed
		summary.Skipped = settlement.Skipped
		summary.Errored += settlement.Errored
		summary.Errors = append(summary.Errors, settlement.Errors...)
	}
	if err != nil {
		return s.fail(ctx, summary, started, err)
	}

	summary.Duration = time.Since(started)
	s.record(ctx, summary)
	metrics.ObserveRun("completed", started)

	log.WithFields(map[string]interface{}{
		"expired":  summary.Expired,
		"settled":  summary.Settled,
		"skipped":  summary.Skipped,
		"errored":  summary.Errored,
		"duration": summary.Duration.String(),
	}).Info("计提完成")

	return summary, nil
}

// fail 记录中止的计提，summary保留中止前的计数
func (s *AccrualService) fail(ctx context.Context, summary *RunSummary, started time.Time, err error) (*RunSummary, error) {
	summary.Failed = true
	summary.Error = err.Error()
	summary.Duration = time.Since(started)
	s.record(ctx, summary)
	metrics.ObserveRun("failed", started)

	logger.FromContext(ctx).WithFields(map[string]interface{}{
		"expired": summary.Expired,
		"settled": summary.Settled,
		"skipped": summary.Skipped,
		"errored": summary.Errored,
	}).WithError(err).Error("计提中止")
	return summary, err
}

// gate 判断本次调用是否应被间隔限制跳过，未跳过时抢占本次执行时间
// 非强制调用通过比较并交换更新 last_accrual_run_at，并发调用只有一个能通过
func (s *AccrualService) gate(ctx context.Context, settings *models.BonusSettings, asOf time.Time, force bool) (string, bool) {
	interval := settings.AccrualInterval()
	last := settings.LastAccrualRunAt

	if !force && last != nil && interval > 0 {
		if elapsed := asOf.Sub(*last); elapsed < interval {
			return fmt.Sprintf("last accrual run at %s, %s elapsed of %s interval",
				last.UTC().Format(time.RFC3339), elapsed.Truncate(time.Second), interval), true
		}
	}

	if force {
		if err := s.store.Settings.TouchAccrualRun(ctx, settings.ID, asOf); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("更新 last_accrual_run_at 失败")
		}
		return "", false
	}

	claimed, err := s.store.Settings.ClaimAccrualRun(ctx, settings.ID, last, asOf)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("抢占计提执行失败")
		return "failed to claim accrual run: " + err.Error(), true
	}
	if !claimed {
		return "accrual run claimed by a concurrent invocation", true
	}
	return "", false
}

func (s *AccrualService) record(ctx context.Context, summary *RunSummary) {
	run := &models.AccrualRun{
		RunID:      summary.RunID,
		AsOf:       summary.AsOf,
		Forced:     summary.Forced,
		Gated:      summary.Gated,
		GateReason: summary.GateReason,
		Failed:     summary.Failed,
		Error:      truncate(summary.Error, models.RunErrorMaxLen),
		Expired:    summary.Expired,
		Settled:    summary.Settled,
		Skipped:    summary.Skipped,
		Errored:    summary.Errored,
	}
	// 超时或取消的计提也要留下记录
	if err := s.store.Runs.Create(context.WithoutCancel(ctx), run); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("写入计提记录失败")
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// RecentRuns 最近的计提记录
func (s *AccrualService) RecentRuns(ctx context.Context, limit int) ([]models.AccrualRun, error) {
	return s.store.Runs.GetRecent(ctx, limit)
}
