package payment

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ryfty/ryfty-payments/internal/domain"
)

// fakeInitiator answers initiations with respond, or a request with streamKey when respond is nil.
type fakeInitiator struct {
	calls     atomic.Int32
	streamKey string
	respond   func(ctx context.Context, order domain.PaymentOrder) (*domain.PaymentRequest, error)
}

func (f *fakeInitiator) Initiate(ctx context.Context, order domain.PaymentOrder) (*domain.PaymentRequest, error) {
	n := f.calls.Add(1)
	if f.respond != nil {
		return f.respond(ctx, order)
	}
	return &domain.PaymentRequest{
		RequestID: "req-" + strconv.Itoa(int(n)),
		StreamKey: f.streamKey,
		Kind:      order.Kind,
		TargetID:  order.TargetID,
		Amount:    order.Amount,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (f *fakeInitiator) CreateWithdrawal(_ context.Context, amount decimal.Decimal) (*domain.Withdrawal, error) {
	return &domain.Withdrawal{DisbursementID: "dsb-1", Amount: amount, CreatedAt: time.Now().UTC()}, nil
}

// fakeSource hands out fakeSubscriptions and tracks how many are open at once.
type fakeSource struct {
	mu      sync.Mutex
	subs    []*fakeSubscription
	keys    []string
	open    int
	maxOpen int
	err     error
}

func (f *fakeSource) Subscribe(_ context.Context, key string) (domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	sub := &fakeSubscription{source: f, events: make(chan domain.PaymentEvent, 16)}
	f.subs = append(f.subs, sub)
	f.keys = append(f.keys, key)
	f.open++
	if f.open > f.maxOpen {
		f.maxOpen = f.open
	}
	return sub, nil
}

func (f *fakeSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeSource) last() *fakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.subs) == 0 {
		return nil
	}
	return f.subs[len(f.subs)-1]
}

func (f *fakeSource) all() []*fakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeSubscription(nil), f.subs...)
}

func (f *fakeSource) stats() (open, maxOpen int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open, f.maxOpen
}

type fakeSubscription struct {
	source     *fakeSource
	events     chan domain.PaymentEvent
	mu         sync.Mutex
	closed     bool
	ended      bool
	closeCalls int
	err        error
}

func (s *fakeSubscription) Events() <-chan domain.PaymentEvent {
	return s.events
}

func (s *fakeSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	if !s.closed {
		s.closed = true
		s.source.mu.Lock()
		s.source.open--
		s.source.mu.Unlock()
	}
	if !s.ended {
		s.ended = true
		close(s.events)
	}
	return nil
}

func (s *fakeSubscription) emit(state domain.EventState, txn, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.events <- domain.PaymentEvent{
		Type:          "payment_status",
		State:         state,
		TransactionID: txn,
		Description:   description,
		Timestamp:     time.Now().UTC(),
	}
}

// end terminates the stream from the server side.
func (s *fakeSubscription) end(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.err = err
	s.ended = true
	close(s.events)
}

func (s *fakeSubscription) closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}
