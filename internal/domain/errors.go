package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrInvalidOrder          = errors.New("invalid_order")
	ErrDuplicateOrder        = errors.New("duplicate_order")
	ErrWrongInstrument       = errors.New("wrong_instrument")
	ErrUnregisteredProcessor = errors.New("unregistered_processor")
	ErrUnknownSymbol         = errors.New("unknown_symbol")
	ErrOrderNotFound         = errors.New("order_not_found")
	ErrAccountExists         = errors.New("account_already_exists")
	ErrAccountNotFound       = errors.New("account_not_found")
	ErrInvalidCredentials    = errors.New("invalid_credentials")
	ErrExchangeClosed        = errors.New("exchange_closed")
	ErrBrokerClosed          = errors.New("broker_closed")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
