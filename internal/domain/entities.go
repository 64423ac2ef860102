// Package domain contains the core entities and interfaces of the payment companion.
// This is the innermost layer - it has no dependencies on transports or infrastructure.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies which remote operation a flow confirms.
type Kind string

const (
	// KindReservationPayment pays (part of) a reservation balance via an M-Pesa prompt.
	KindReservationPayment Kind = "reservation_payment"
	// KindWithdrawal releases a verified wallet withdrawal to the provider.
	KindWithdrawal Kind = "withdrawal"
)

// PaymentOrder is what the user asked for before anything was sent to the remote API.
type PaymentOrder struct {
	Kind Kind `json:"kind"`
	// TargetID is the reservation id for payments and the disbursement id for withdrawals.
	TargetID string          `json:"target_id"`
	Amount   decimal.Decimal `json:"amount"`
	// Destination is the M-Pesa number charged by a reservation payment.
	Destination string `json:"destination,omitempty"`
	// Code is the verification code that releases a withdrawal.
	Code string `json:"code,omitempty"`
}

// PaymentRequest is the server-side pending payment or withdrawal created by a successful
// initiation. It is immutable once created.
type PaymentRequest struct {
	// RequestID is the opaque id assigned by the gateway.
	RequestID string `json:"request_id"`
	// StreamKey scopes the status stream to this flow, when the API issues one.
	StreamKey   string          `json:"-"`
	Kind        Kind            `json:"kind"`
	TargetID    string          `json:"target_id"`
	Amount      decimal.Decimal `json:"amount"`
	Destination string          `json:"destination,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// EventState is the gateway state carried by a status event.
type EventState string

const (
	EventPendingConfirmation EventState = "pending_confirmation"
	EventSuccess             EventState = "success"
	EventFailed              EventState = "failed"
)

// IsValid reports whether s is one of the known gateway states.
func (s EventState) IsValid() bool {
	switch s {
	case EventPendingConfirmation, EventSuccess, EventFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further events are expected after s.
func (s EventState) IsTerminal() bool {
	return s == EventSuccess || s == EventFailed
}

// PaymentEvent is one asynchronous status update for an in-flight payment or withdrawal.
// TransactionID is only set on success and Description only on failure.
type PaymentEvent struct {
	Type          string     `json:"type"`
	State         EventState `json:"state"`
	TransactionID string     `json:"transaction_id,omitempty"`
	Description   string     `json:"description,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
}

// Withdrawal is a pending disbursement that still needs its verification code.
type Withdrawal struct {
	DisbursementID string          `json:"disbursement_id"`
	Amount         decimal.Decimal `json:"amount"`
	CreatedAt      time.Time       `json:"created_at"`
}

// AccountType decides which disbursement tariff applies to a provider.
type AccountType string

const (
	AccountIndividual AccountType = "individual"
	AccountBusiness   AccountType = "business"
)
