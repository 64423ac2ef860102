// Package domain contains the core entities and interfaces of the payment companion.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent the failure taxonomy of a payment flow.
var (
	// ErrValidation is returned for bad input caught before any network call.
	ErrValidation = errors.New("validation failed")

	// ErrNetworkFailure is returned when the remote API could not be reached or answered garbage.
	ErrNetworkFailure = errors.New("network failure")

	// ErrRejected is returned when the remote API refused the request on business grounds.
	ErrRejected = errors.New("request rejected")

	// ErrConnection is returned when the event stream itself failed.
	ErrConnection = errors.New("event stream connection error")

	// ErrMissingStreamKey is returned when no scoped stream key is available for a flow.
	ErrMissingStreamKey = errors.New("no event stream key available")

	// ErrAmountOutOfRange is returned by strict fee calculators for amounts beyond every tier.
	ErrAmountOutOfRange = errors.New("amount outside the fee schedule")

	// ErrInvalidTransition is returned when an operation is not allowed in the current state.
	ErrInvalidTransition = errors.New("invalid flow transition")

	// ErrFlowNotFound is returned when a flow id is unknown to the caller's session.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrSessionRequired is returned when an operation needs an authenticated session.
	ErrSessionRequired = errors.New("authenticated session required")

	// ErrSessionInvalidated is returned when a session was used after logout.
	ErrSessionInvalidated = errors.New("session invalidated")

	// ErrControllerStopped is returned by a flow controller after Stop.
	ErrControllerStopped = errors.New("flow controller stopped")
)

// PaymentError wraps a domain error with additional context.
type PaymentError struct {
	Err     error
	Message string
	Code    string
}

// Error implements the error interface.
func (e *PaymentError) Error() string {
	if e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// Unwrap allows errors.Is and errors.As to work with PaymentError.
func (e *PaymentError) Unwrap() error {
	return e.Err
}

// NewPaymentError creates a new PaymentError with the given error and message.
func NewPaymentError(err error, message, code string) *PaymentError {
	return &PaymentError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}

// NewValidationError creates a PaymentError for input rejected before any request is sent.
func NewValidationError(message string) *PaymentError {
	return NewPaymentError(ErrValidation, message, "VALIDATION_ERROR")
}

// RequestError is the result of a failed initiation request.
// Kind is ErrNetworkFailure or ErrRejected. For rejections Message holds the server text
// verbatim; the UI matches substrings of it, so it must never be rewritten.
type RequestError struct {
	Kind       error
	Message    string
	StatusCode int
	Cause      error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if errors.Is(e.Kind, ErrRejected) {
		return e.Message
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return e.Kind.Error()
}

// Unwrap exposes the kind for errors.Is.
func (e *RequestError) Unwrap() error {
	return e.Kind
}

// Rejected creates a RequestError for a business-rule refusal.
func Rejected(status int, message string) *RequestError {
	return &RequestError{Kind: ErrRejected, Message: message, StatusCode: status}
}

// NetworkFailure creates a RequestError for a transport problem.
func NetworkFailure(cause error) *RequestError {
	return &RequestError{Kind: ErrNetworkFailure, Message: "network failure", Cause: cause}
}

// UserMessage returns the text a UI should show for err.
// Rejections are passed through verbatim.
func UserMessage(err error) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		if errors.Is(reqErr.Kind, ErrRejected) && reqErr.Message != "" {
			return reqErr.Message
		}
		return "Network error. Please check your connection and try again."
	}
	var payErr *PaymentError
	if errors.As(err, &payErr) && payErr.Message != "" {
		return payErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
