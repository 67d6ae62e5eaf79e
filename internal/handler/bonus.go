package handler

import (
	"net/http"

	"staking-reward-engine/internal/service"
)

type BonusHandler struct {
	bonusSvc *service.BonusService
}

func NewBonusHandler(bonusSvc *service.BonusService) *BonusHandler {
	return &BonusHandler{bonusSvc: bonusSvc}
}

func (h *BonusHandler) GetBreakdown(w http.ResponseWriter, r *http.Request) {
	memberID, ok := uintParam(r, "memberID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid member id")
		return
	}

	breakdown, err := h.bonusSvc.Compute(r.Context(), memberID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

func (h *BonusHandler) Materialize(w http.ResponseWriter, r *http.Request) {
	memberID, ok := uintParam(r, "memberID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid member id")
		return
	}

	breakdown, err := h.bonusSvc.Materialize(r.Context(), memberID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

func (h *BonusHandler) MaterializeAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.bonusSvc.MaterializeAll(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *BonusHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	memberID, ok := uintParam(r, "memberID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid member id")
		return
	}

	records, err := h.bonusSvc.Records(r.Context(), memberID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list bonus records: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": records,
		"total": len(records),
	})
}
