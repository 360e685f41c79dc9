package errors

import "fmt"

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

var (
	ErrConfigLoad          = "CONFIG_LOAD_ERROR"
	ErrDatabaseConnect     = "DATABASE_CONNECT_ERROR"
	ErrRPConnect           = "RPC_CONNECT_ERROR"
	ErrRegistryUnavailable = "REGISTRY_UNAVAILABLE"
	ErrOracleUnavailable   = "ORACLE_UNAVAILABLE"
	ErrIdentityNotFound    = "IDENTITY_NOT_FOUND"
	ErrTransferFailed      = "TRANSFER_FAILED"
	ErrAllocationInvariant = "ALLOCATION_INVARIANT_VIOLATION"
	ErrSettlementRun       = "SETTLEMENT_RUN_ERROR"
)

// Code returns the application error code, or an empty string for
// errors that did not originate from this package.
func Code(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ""
}
