package errorvalues

import "errors"

var (
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrPlanNotFound      = errors.New("plan doesn't exist")
	ErrNotPlanOwner      = errors.New("not-plan-owner")
	ErrPlanNotCompleted  = errors.New("plan-not-completed")
	ErrAlreadyTerminal   = errors.New("plan is already completed or failed")
	ErrAlreadyWithdrawn  = errors.New("plan already withdrawn")
	ErrNoMissedPayment   = errors.New("plan has no missed payment")
	ErrGracePeriodActive = errors.New("grace period hasn't elapsed yet")
	ErrTransferDenied    = errors.New("transfer denied")
	ErrInsufficientPool  = errors.New("insufficient reward pool balance")
	ErrNotAuthorized     = errors.New("not authorized")
)

// Gateway level causes, reported together with ErrTransferDenied
var (
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrAssetUnsupported      = errors.New("asset unsupported")
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// ParamError names the parameter that failed validation
type ParamError struct {
	Field string
}

func (e *ParamError) Error() string {
	return ErrInvalidParameter.Error() + ": " + e.Field
}

func (e *ParamError) Unwrap() error {
	return ErrInvalidParameter
}

func InvalidParameter(field string) error {
	return &ParamError{Field: field}
}

// TransferError matches both ErrTransferDenied and the gateway cause
type TransferError struct {
	Cause error
}

func (e *TransferError) Error() string {
	return ErrTransferDenied.Error() + ": " + e.Cause.Error()
}

func (e *TransferError) Unwrap() []error {
	return []error{ErrTransferDenied, e.Cause}
}

func TransferDenied(cause error) error {
	return &TransferError{Cause: cause}
}
