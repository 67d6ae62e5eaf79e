package handler

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"staking-reward-engine/pkg/errors"
)

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func writeAppError(w http.ResponseWriter, err error) {
	status, body := appErrorBody(err)
	writeJSON(w, status, body)
}

// appErrorBody 按错误码映射HTTP状态，非AppError一律500
func appErrorBody(err error) (int, map[string]interface{}) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		return http.StatusInternalServerError, map[string]interface{}{"error": err.Error()}
	}

	status := http.StatusInternalServerError
	switch appErr.Code {
	case errors.ErrValidation:
		status = http.StatusBadRequest
	case errors.ErrNotFound:
		status = http.StatusNotFound
	case errors.ErrInsufficientBalance, errors.ErrInvalidState:
		status = http.StatusConflict
	case errors.ErrConfigMissing:
		status = http.StatusServiceUnavailable
	}
	return status, map[string]interface{}{
		"error": appErr.Error(),
		"code":  appErr.Code,
	}
}

func uintParam(r *http.Request, name string) (uint64, bool) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return v, true
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
