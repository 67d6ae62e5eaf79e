package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Accrual     *AccrualHandler
	Bonus       *BonusHandler
	Staking     *StakingHandler
	MetricsPath string
}

func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", HandleHealth)
	if h.MetricsPath != "" {
		r.Handle(h.MetricsPath, promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/accrual/run", h.Accrual.TriggerRun)
		r.Get("/accrual/runs", h.Accrual.ListRuns)
		r.Post("/reconcile", h.Accrual.Reconcile)

		r.Post("/bonus/materialize", h.Bonus.MaterializeAll)
		r.Get("/bonus/{memberID}", h.Bonus.GetBreakdown)
		r.Get("/bonus/{memberID}/records", h.Bonus.ListRecords)
		r.Post("/bonus/{memberID}/materialize", h.Bonus.Materialize)

		r.Post("/stakes", h.Staking.CreateStake)
		r.Post("/multiplier-stakes", h.Staking.CreateMultiplierStake)
		r.Get("/positions/{type}/{id}", h.Staking.GetPosition)
		r.Get("/positions/{type}/{id}/schedule", h.Staking.GetSchedule)
		r.Post("/positions/{type}/{id}/cancel", h.Staking.CancelPosition)
	})

	return r
}
