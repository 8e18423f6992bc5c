package courier

import (
	"errors"
	"fmt"
)

// BridgeError represents a failure inside the courier bridge, carrying
// enough context for the operator-facing surface to decide how to react.
type BridgeError struct {
	Stage      string // "token", "locations", "shipment", "sync"
	Code       string
	Message    string
	StatusCode int
	Cause      error
}

// Error implements the error interface.
func (e *BridgeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error (%s): %s: %v", e.Stage, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Stage, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *BridgeError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for BridgeError.
func (e *BridgeError) Is(target error) bool {
	t, ok := target.(*BridgeError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewBridgeError creates a new BridgeError.
func NewBridgeError(stage, code, message string) *BridgeError {
	return &BridgeError{
		Stage:   stage,
		Code:    code,
		Message: message,
	}
}

// WithCause adds a cause to the error.
func (e *BridgeError) WithCause(err error) *BridgeError {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *BridgeError) WithStatusCode(code int) *BridgeError {
	e.StatusCode = code
	return e
}

// Sentinel errors for the bridge's failure taxonomy.
var (
	// ErrCredentialsMissing indicates a required carrier credential is
	// absent from settings. Fatal to the whole flow until the operator
	// configures the carrier integration.
	ErrCredentialsMissing = errors.New("carrier credentials missing")

	// ErrRefreshFailed indicates no usable token exists and the refresh
	// path could not produce one. Re-authentication is required.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrLocationFetch indicates a city/zone/area fetch failed and no
	// cached data was available to fall back on.
	ErrLocationFetch = errors.New("location fetch failed")

	// ErrMissingLocation indicates shipment submission was attempted
	// without a resolved city or zone.
	ErrMissingLocation = errors.New("city and zone are required")

	// ErrAlreadyShipped indicates the order already carries a
	// consignment id; it is never overwritten.
	ErrAlreadyShipped = errors.New("order already sent to courier")

	// ErrOrderNotFound indicates the order id does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrSettingNotFound indicates the settings collaborator has no
	// value under the requested key.
	ErrSettingNotFound = errors.New("setting not found")

	// ErrCacheMiss indicates the cache store has no entry for a key.
	ErrCacheMiss = errors.New("cache miss")
)

// ShipmentError is a carrier-side rejection of a shipment submission.
// The raw response body is preserved verbatim: it is the only audit
// trail an operator has when following up with carrier support.
type ShipmentError struct {
	Message string
	RawBody string
}

// GenericShipmentMessage is used when the carrier's error envelope
// carries none of the expected message fields.
const GenericShipmentMessage = "courier rejected the request"

// Error implements the error interface.
func (e *ShipmentError) Error() string {
	if e.Message == "" {
		return GenericShipmentMessage
	}
	return e.Message
}
