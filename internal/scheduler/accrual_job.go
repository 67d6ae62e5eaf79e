package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"staking-reward-engine/internal/service"
	"staking-reward-engine/pkg/logger"
)

// Runner 由计提服务实现
type Runner interface {
	Run(ctx context.Context, trigger service.Trigger) (*service.RunSummary, error)
}

type AccrualScheduler struct {
	cron     *cron.Cron
	runner   Runner
	cronExpr string
	timeout  time.Duration
}

func NewAccrualScheduler(runner Runner, cronExpr string, timeout time.Duration) *AccrualScheduler {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &AccrualScheduler{
		cron:     cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		runner:   runner,
		cronExpr: cronExpr,
		timeout:  timeout,
	}
}

func (s *AccrualScheduler) Start() error {
	_, err := s.cron.AddFunc(s.cronExpr, s.runAccrual)
	if err != nil {
		return err
	}

	s.cron.Start()
	logger.WithFields(map[string]interface{}{
		"cron": s.cronExpr,
	}).Info("Accrual scheduler started")
	return nil
}

func (s *AccrualScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Accrual scheduler stopped")
}

// runAccrual is the ambient trigger: interval-gated, never forced.
func (s *AccrualScheduler) runAccrual() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	summary, err := s.runner.Run(ctx, service.Trigger{})
	if err != nil {
		entry := logger.WithError(err)
		if summary != nil {
			entry = entry.WithField("run_id", summary.RunID)
		}
		entry.Error("Scheduled accrual run failed")
		return
	}
	if summary.Gated {
		logger.Debug("Scheduled accrual run gated:", summary.GateReason)
	}
}

// TriggerNow runs one accrual pass outside the cron cadence.
func (s *AccrualScheduler) TriggerNow(ctx context.Context, trigger service.Trigger) (*service.RunSummary, error) {
	return s.runner.Run(ctx, trigger)
}
