package fees

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ryfty/ryfty-payments/internal/domain"
)

// DefaultPlatformRate is the Ryfty commission on every reservation amount.
var DefaultPlatformRate = decimal.RequireFromString("0.05")

var hundred = decimal.NewFromInt(100)

// Breakdown is the fee split for one amount. Money fields are whole currency units.
type Breakdown struct {
	Amount      decimal.Decimal `json:"amount"`
	Schedule    string          `json:"schedule"`
	PlatformFee decimal.Decimal `json:"platform_fee"`
	GatewayFee  decimal.Decimal `json:"gateway_fee"`
	TotalFee    decimal.Decimal `json:"total_fee"`
	NetAmount   decimal.Decimal `json:"net_amount"`
	FeePercent  decimal.Decimal `json:"fee_percent"`
	// InSchedule is false when no tier matched and the gateway fee defaulted to zero.
	InSchedule bool `json:"in_schedule"`
}

// Calculator applies the platform rate on top of a gateway schedule.
type Calculator struct {
	PlatformRate decimal.Decimal
	// Strict turns amounts beyond every tier into ErrAmountOutOfRange instead of a zero charge.
	Strict bool
}

// NewCalculator creates a calculator with the given platform rate.
func NewCalculator(rate decimal.Decimal, strict bool) *Calculator {
	return &Calculator{PlatformRate: rate, Strict: strict}
}

// Compute splits amount into platform fee, gateway fee and net earnings.
func (c *Calculator) Compute(amount decimal.Decimal, schedule Schedule) (Breakdown, error) {
	gatewayFee, err := c.gatewayFee(amount, schedule)
	if err != nil {
		return Breakdown{}, err
	}
	_, inSchedule := schedule.Charge(amount)

	platformRaw := amount.Mul(c.PlatformRate)
	totalRaw := platformRaw.Add(gatewayFee)

	return Breakdown{
		Amount:      amount,
		Schedule:    schedule.Name,
		PlatformFee: platformRaw.Round(0),
		GatewayFee:  gatewayFee,
		TotalFee:    totalRaw.Round(0),
		NetAmount:   amount.Sub(totalRaw).Round(0),
		FeePercent:  totalRaw.Div(amount).Mul(hundred).Round(2),
		InSchedule:  inSchedule,
	}, nil
}

// ComputeFee returns the gateway charge for amount under schedule.
func (c *Calculator) ComputeFee(amount decimal.Decimal, schedule Schedule) (decimal.Decimal, error) {
	return c.gatewayFee(amount, schedule)
}

func (c *Calculator) gatewayFee(amount decimal.Decimal, schedule Schedule) (decimal.Decimal, error) {
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	charge, ok := schedule.Charge(amount)
	if !ok && c.Strict {
		return decimal.Zero, domain.NewPaymentError(domain.ErrAmountOutOfRange,
			fmt.Sprintf("amount %s is not covered by the %s schedule (1 to %d)", amount, schedule.Name, schedule.Max()),
			"AMOUNT_OUT_OF_RANGE")
	}
	return charge, nil
}

// ValidateAmount rejects zero and negative amounts.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.NewValidationError("amount must be greater than zero")
	}
	return nil
}

// ParseAmount parses user input into a positive amount.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, domain.NewValidationError("amount is required")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, domain.NewValidationError(fmt.Sprintf("amount %q is not a number", raw))
	}
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}
