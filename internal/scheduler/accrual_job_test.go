package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staking-reward-engine/internal/service"
)

type stubRunner struct {
	mu       sync.Mutex
	triggers []service.Trigger
	err      error
}

func (r *stubRunner) Run(ctx context.Context, trigger service.Trigger) (*service.RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers = append(r.triggers, trigger)
	if r.err != nil {
		return nil, r.err
	}
	return &service.RunSummary{RunID: "run"}, nil
}

func (r *stubRunner) calls() []service.Trigger {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]service.Trigger(nil), r.triggers...)
}

func TestScheduledRunIsNeverForced(t *testing.T) {
	runner := &stubRunner{}
	s := NewAccrualScheduler(runner, "* * * * * *", time.Second)

	s.runAccrual()

	calls := runner.calls()
	require.Len(t, calls, 1)
	assert.False(t, calls[0].Force)
	assert.Nil(t, calls[0].AsOf)
}

func TestScheduledRunSwallowsErrors(t *testing.T) {
	runner := &stubRunner{err: errors.New("boom")}
	s := NewAccrualScheduler(runner, "* * * * * *", time.Second)

	assert.NotPanics(t, s.runAccrual)
	assert.Len(t, runner.calls(), 1)
}

func TestStartRejectsInvalidCron(t *testing.T) {
	s := NewAccrualScheduler(&stubRunner{}, "not a cron", time.Second)
	assert.Error(t, s.Start())
}

func TestTriggerNowPassesTriggerThrough(t *testing.T) {
	runner := &stubRunner{}
	s := NewAccrualScheduler(runner, "* * * * * *", time.Second)

	asOf := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := s.TriggerNow(context.Background(), service.Trigger{Force: true, AsOf: &asOf})
	require.NoError(t, err)

	calls := runner.calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Force)
	assert.Equal(t, asOf, *calls[0].AsOf)
}
