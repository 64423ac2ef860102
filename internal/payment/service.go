// Package payment implements the payment confirmation flows.
// This is the service/use-case layer in Clean Architecture.
package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ryfty/ryfty-payments/internal/domain"
	"github.com/ryfty/ryfty-payments/internal/fees"
	"github.com/ryfty/ryfty-payments/internal/session"
	"github.com/ryfty/ryfty-payments/internal/validation"
)

// ServiceConfig holds the flow timings.
type ServiceConfig struct {
	Timeout      time.Duration
	SuccessDelay time.Duration
}

// Service creates flows on behalf of sessions and keeps track of them.
// It orchestrates between the remote API client, the event source
// and the per-flow controllers.
type Service struct {
	initiator   domain.PaymentInitiator
	withdrawals domain.WithdrawalCreator
	source      domain.EventSource
	calculator  *fees.Calculator
	registry    *Registry
	validator   *validation.Validator
	metrics     *Metrics
	logger      *zap.Logger
	cfg         ServiceConfig
}

// NewService creates a new payment service with the required dependencies.
func NewService(
	initiator domain.PaymentInitiator,
	withdrawals domain.WithdrawalCreator,
	source domain.EventSource,
	calculator *fees.Calculator,
	metrics *Metrics,
	logger *zap.Logger,
	cfg ServiceConfig,
) *Service {
	return &Service{
		initiator:   initiator,
		withdrawals: withdrawals,
		source:      source,
		calculator:  calculator,
		registry:    NewRegistry(),
		validator:   validation.New(),
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
	}
}

// StartReservationPayment sends an M-Pesa prompt for a reservation and returns the new flow.
func (s *Service) StartReservationPayment(ctx context.Context, reservationID, mpesaNumber string, amount decimal.Decimal) (Snapshot, error) {
	return s.start(ctx, domain.PaymentOrder{
		Kind:        domain.KindReservationPayment,
		TargetID:    reservationID,
		Amount:      amount,
		Destination: mpesaNumber,
	})
}

// CreateWithdrawal opens a pending wallet withdrawal. The returned disbursement is
// released by StartWithdrawal once the user enters the verification code.
func (s *Service) CreateWithdrawal(ctx context.Context, amount decimal.Decimal) (*domain.Withdrawal, error) {
	if _, err := ownerOf(ctx); err != nil {
		return nil, err
	}
	if err := fees.ValidateAmount(amount); err != nil {
		return nil, err
	}

	withdrawal, err := s.withdrawals.CreateWithdrawal(ctx, amount)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Withdrawal created",
		zap.String("disbursement_id", withdrawal.DisbursementID),
		zap.String("amount", amount.String()),
	)
	return withdrawal, nil
}

// StartWithdrawal verifies a pending withdrawal and returns the flow confirming it.
func (s *Service) StartWithdrawal(ctx context.Context, disbursementID, code string, amount decimal.Decimal) (Snapshot, error) {
	return s.start(ctx, domain.PaymentOrder{
		Kind:     domain.KindWithdrawal,
		TargetID: disbursementID,
		Amount:   amount,
		Code:     code,
	})
}

func (s *Service) start(ctx context.Context, order domain.PaymentOrder) (Snapshot, error) {
	owner, err := ownerOf(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	flowID := uuid.NewString()
	logger := s.logger.With(zap.String("owner", owner))
	controller := NewController(flowID, s.initiator, s.source, ControllerOptions{
		Timeout:      s.cfg.Timeout,
		SuccessDelay: s.cfg.SuccessDelay,
		Metrics:      s.metrics,
		Logger:       logger,
		Validator:    s.validator,
		OnSuccess: func(snap Snapshot) {
			logger.Info("Payment confirmed",
				zap.String("flow_id", snap.FlowID),
				zap.String("transaction_id", snap.TransactionID),
			)
		},
	})

	if err := s.registry.Start(ctx, owner, controller, order); err != nil {
		controller.Stop()
		return Snapshot{}, err
	}
	return controller.Snapshot(), nil
}

// Flow returns the controller of a flow owned by the caller.
func (s *Service) Flow(ctx context.Context, flowID string) (*Controller, error) {
	owner, err := ownerOf(ctx)
	if err != nil {
		return nil, err
	}
	return s.registry.Get(owner, flowID)
}

// Retry starts a new attempt of a failed, timed out or disconnected flow.
func (s *Service) Retry(ctx context.Context, flowID string) (Snapshot, error) {
	owner, err := ownerOf(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	controller, err := s.registry.Retry(ctx, owner, flowID)
	if err != nil {
		return Snapshot{}, err
	}
	return controller.Snapshot(), nil
}

// Close cancels a flow and forgets it.
func (s *Service) Close(ctx context.Context, flowID string) error {
	owner, err := ownerOf(ctx)
	if err != nil {
		return err
	}
	return s.registry.Remove(owner, flowID)
}

// QuoteFees computes the fee breakdown for amount under the tariff of accountType.
func (s *Service) QuoteFees(amount decimal.Decimal, accountType domain.AccountType) (fees.Breakdown, error) {
	schedule, err := fees.ScheduleFor(accountType)
	if err != nil {
		return fees.Breakdown{}, err
	}
	return s.calculator.Compute(amount, schedule)
}

// RunJanitor removes settled flows untouched for retention until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.registry.Prune(retention); n > 0 {
				s.logger.Info("Pruned settled flows", zap.Int("count", n))
			}
		}
	}
}

// Shutdown stops every flow, closing their streams and timers.
func (s *Service) Shutdown() {
	s.registry.StopAll()
}

func ownerOf(ctx context.Context) (string, error) {
	return session.FromContext(ctx).Owner()
}
