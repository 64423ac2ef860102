// Package domain contains the core entities and interfaces of the payment companion.
package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// PaymentInitiator sends a payment or withdrawal initiation to the remote API.
// This is a "port" in hexagonal architecture - the domain defines what it needs,
// and infrastructure provides the implementation.
type PaymentInitiator interface {
	// Initiate sends exactly one request; it never retries.
	// Failures are *RequestError values.
	Initiate(ctx context.Context, order PaymentOrder) (*PaymentRequest, error)
}

// WithdrawalCreator opens a pending withdrawal that must be verified before money moves.
type WithdrawalCreator interface {
	CreateWithdrawal(ctx context.Context, amount decimal.Decimal) (*Withdrawal, error)
}

// EventSource opens status streams keyed by a stream key.
type EventSource interface {
	// Subscribe opens one long-lived connection for streamKey.
	// An empty key fails with ErrMissingStreamKey.
	Subscribe(ctx context.Context, streamKey string) (Subscription, error)
}

// Subscription is one open status stream.
type Subscription interface {
	// Events delivers events in arrival order. It is closed when the stream ends.
	Events() <-chan PaymentEvent
	// Err reports why Events was closed; nil after Close or after a terminal event.
	Err() error
	// Close releases the connection. It is safe to call more than once.
	Close() error
}
