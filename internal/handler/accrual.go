package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"staking-reward-engine/internal/service"
)

type AccrualHandler struct {
	accrualSvc   *service.AccrualService
	reconcileSvc *service.ReconcileService
}

func NewAccrualHandler(accrualSvc *service.AccrualService, reconcileSvc *service.ReconcileService) *AccrualHandler {
	return &AccrualHandler{accrualSvc: accrualSvc, reconcileSvc: reconcileSvc}
}

type runRequest struct {
	Force *bool   `json:"force"`
	AsOf  *string `json:"as_of"`
}

// parseTrigger 支持JSON body 和 query参数两种形式，query优先
func parseTrigger(r *http.Request) (service.Trigger, error) {
	var req runRequest
	if r.Body != nil {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
		if err != nil {
			return service.Trigger{}, err
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				return service.Trigger{}, err
			}
		}
	}

	q := r.URL.Query()
	if v := q.Get("force"); v != "" {
		force, err := strconv.ParseBool(v)
		if err != nil {
			return service.Trigger{}, err
		}
		req.Force = &force
	}
	if v := q.Get("as_of"); v != "" {
		req.AsOf = &v
	}

	var trigger service.Trigger
	if req.Force != nil {
		trigger.Force = *req.Force
	}
	if req.AsOf != nil && *req.AsOf != "" {
		asOf, err := time.Parse(time.RFC3339, *req.AsOf)
		if err != nil {
			return service.Trigger{}, err
		}
		trigger.AsOf = &asOf
	}
	return trigger, nil
}

func (h *AccrualHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	trigger, err := parseTrigger(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid trigger: "+err.Error())
		return
	}

	summary, err := h.accrualSvc.Run(r.Context(), trigger)
	if err != nil && summary != nil {
		// 中途失败时带上已完成部分
		status, body := appErrorBody(err)
		body["summary"] = summary
		writeJSON(w, status, body)
		return
	}
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *AccrualHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	runs, err := h.accrualSvc.RecentRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list runs: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": runs,
		"total": len(runs),
	})
}

func (h *AccrualHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconcileSvc.Run(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
