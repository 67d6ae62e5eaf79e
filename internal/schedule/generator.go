// Package schedule expands a staking position into its full list of
// future reward payouts.
package schedule

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"staking-reward-engine/pkg/errors"
)

// MaxEntries caps the number of payouts a single position may generate.
const MaxEntries = 100_000

var hundred = decimal.NewFromInt(100)

// Event is one scheduled payout.
type Event struct {
	Time   time.Time
	Amount decimal.Decimal
}

type Params struct {
	Principal  decimal.Decimal
	Percentage decimal.Decimal
	Interval   time.Duration
	Duration   time.Duration
	Start      time.Time
}

type MultiplierParams struct {
	Params
	// IncrementPeriod 仅作为仓位属性保存，不影响收益金额；0 表示与 Interval 相同
	IncrementPeriod time.Duration
}

// Validate rejects input that must never reach the ledger.
func (p Params) Validate() error {
	if !p.Principal.IsPositive() {
		return errors.New(errors.ErrValidation, "principal must be positive", nil)
	}
	if !p.Percentage.IsPositive() {
		return errors.New(errors.ErrValidation, "reward percentage must be positive", nil)
	}
	if p.Interval < time.Minute {
		return errors.New(errors.ErrValidation, "reward interval must be at least one minute", nil)
	}
	if p.Duration < time.Minute {
		return errors.New(errors.ErrValidation, "duration must be at least one minute", nil)
	}
	if p.Start.IsZero() {
		return errors.New(errors.ErrValidation, "start time is required", nil)
	}
	if n := int64(p.Duration / p.Interval); n > MaxEntries {
		return errors.New(errors.ErrValidation,
			fmt.Sprintf("schedule would have %d entries, limit is %d", n, MaxEntries), nil)
	}
	return nil
}

func (p MultiplierParams) Validate() error {
	if err := p.Params.Validate(); err != nil {
		return err
	}
	if p.IncrementPeriod != 0 && p.IncrementPeriod < time.Minute {
		return errors.New(errors.ErrValidation, "increment period must be at least one minute", nil)
	}
	return nil
}

// points returns start+k*interval for every k>=1 not after start+duration.
func (p Params) points() []time.Time {
	end := p.Start.Add(p.Duration)
	var out []time.Time
	for t := p.Start.Add(p.Interval); !t.After(end); t = t.Add(p.Interval) {
		out = append(out, t)
	}
	return out
}

// Simple pays principal*percentage/100 at every interval.
func Simple(p Params) ([]Event, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	amount := p.Principal.Mul(p.Percentage).Div(hundred)
	points := p.points()
	events := make([]Event, 0, len(points))
	for _, t := range points {
		events = append(events, Event{Time: t, Amount: amount})
	}
	return events, nil
}

// Multiplier compounds per entry: every payout is computed on the running
// base and added to it before the next payout. The whole schedule is fixed
// up front.
func Multiplier(p MultiplierParams) ([]Event, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	base := p.Principal
	points := p.points()
	events := make([]Event, 0, len(points))
	for _, t := range points {
		amount := base.Mul(p.Percentage).Div(hundred)
		events = append(events, Event{Time: t, Amount: amount})
		base = base.Add(amount)
	}
	return events, nil
}

// Total sums the amounts of a schedule.
func Total(events []Event) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range events {
		sum = sum.Add(e.Amount)
	}
	return sum
}
