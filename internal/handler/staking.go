package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"staking-reward-engine/internal/models"
	"staking-reward-engine/internal/service"
)

type StakingHandler struct {
	stakingSvc *service.StakingService
}

func NewStakingHandler(stakingSvc *service.StakingService) *StakingHandler {
	return &StakingHandler{stakingSvc: stakingSvc}
}

func (h *StakingHandler) CreateStake(w http.ResponseWriter, r *http.Request) {
	var req service.StakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	position, entries, err := h.stakingSvc.Stake(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"position": position,
		"schedule": entries,
	})
}

func (h *StakingHandler) CreateMultiplierStake(w http.ResponseWriter, r *http.Request) {
	var req service.MultiplierStakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	position, entries, err := h.stakingSvc.StakeMultiplier(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"position": position,
		"schedule": entries,
	})
}

func (h *StakingHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid position id")
		return
	}
	t := models.PositionType(chi.URLParam(r, "type"))

	position, err := h.stakingSvc.Position(r.Context(), t, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, position)
}

func (h *StakingHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid position id")
		return
	}
	t := models.PositionType(chi.URLParam(r, "type"))

	entries, err := h.stakingSvc.Schedule(r.Context(), t, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": entries,
		"total": len(entries),
	})
}

func (h *StakingHandler) CancelPosition(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid position id")
		return
	}
	t := models.PositionType(chi.URLParam(r, "type"))

	if err := h.stakingSvc.Cancel(r.Context(), t, id); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": models.PositionCancelled,
	})
}
