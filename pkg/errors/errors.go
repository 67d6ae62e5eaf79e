package errors

import (
	stderrors "errors"
	"fmt"
)

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is 判断错误链中是否存在指定错误码的AppError
func Is(err error, code string) bool {
	var appErr *AppError
	for err != nil {
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

var (
	ErrConfigLoad           = "CONFIG_LOAD_ERROR"
	ErrConfigMissing        = "CONFIG_MISSING"
	ErrDatabaseConnect      = "DATABASE_CONNECT_ERROR"
	ErrValidation           = "VALIDATION_ERROR"
	ErrInsufficientBalance  = "INSUFFICIENT_BALANCE"
	ErrNotFound             = "NOT_FOUND"
	ErrInvalidState         = "INVALID_STATE"
	ErrSettlement           = "SETTLEMENT_ERROR"
	ErrExpiry               = "EXPIRY_ERROR"
	ErrBonusCalc            = "BONUS_CALCULATION_ERROR"
	ErrReferentialIntegrity = "REFERENTIAL_INTEGRITY"
)
