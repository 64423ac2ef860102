// Package fees computes platform and M-Pesa gateway charges for payments and payouts.
package fees

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/ryfty/ryfty-payments/internal/domain"
)

// ErrInvalidSchedule is returned by Validate for malformed tariff tables.
var ErrInvalidSchedule = errors.New("invalid fee schedule")

// Tier maps the inclusive amount range [Min, Max] to a flat Charge, in whole currency units.
type Tier struct {
	Min    int64 `json:"min"`
	Max    int64 `json:"max"`
	Charge int64 `json:"charge"`
}

// Contains reports whether amount falls inside the tier. Fractional amounts between two
// tiers, such as 500.5, fall inside neither.
func (t Tier) Contains(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(decimal.NewFromInt(t.Min)) &&
		amount.LessThanOrEqual(decimal.NewFromInt(t.Max))
}

// Schedule is an ordered tariff table published by the gateway.
type Schedule struct {
	Name  string `json:"name"`
	Tiers []Tier `json:"tiers"`
}

// Validate checks that tiers start at 1, are ascending, do not overlap and leave no gaps.
func (s Schedule) Validate() error {
	if len(s.Tiers) == 0 {
		return fmt.Errorf("%w: %s has no tiers", ErrInvalidSchedule, s.Name)
	}
	if s.Tiers[0].Min != 1 {
		return fmt.Errorf("%w: %s starts at %d, want 1", ErrInvalidSchedule, s.Name, s.Tiers[0].Min)
	}
	for i, t := range s.Tiers {
		if t.Min > t.Max {
			return fmt.Errorf("%w: %s tier %d has min %d above max %d", ErrInvalidSchedule, s.Name, i, t.Min, t.Max)
		}
		if t.Charge < 0 {
			return fmt.Errorf("%w: %s tier %d has negative charge", ErrInvalidSchedule, s.Name, i)
		}
		if i == 0 {
			continue
		}
		prev := s.Tiers[i-1]
		if t.Min != prev.Max+1 {
			return fmt.Errorf("%w: %s tier %d starts at %d, want %d", ErrInvalidSchedule, s.Name, i, t.Min, prev.Max+1)
		}
	}
	return nil
}

// Max returns the largest amount covered by the schedule.
func (s Schedule) Max() int64 {
	if len(s.Tiers) == 0 {
		return 0
	}
	return s.Tiers[len(s.Tiers)-1].Max
}

// Charge returns the flat charge of the first tier containing amount.
// When no tier matches it returns zero and false; callers decide whether that is an error.
func (s Schedule) Charge(amount decimal.Decimal) (decimal.Decimal, bool) {
	tier, ok := lo.Find(s.Tiers, func(t Tier) bool {
		return t.Contains(amount)
	})
	if !ok {
		return decimal.Zero, false
	}
	return decimal.NewFromInt(tier.Charge), true
}

// GrossForNet returns the amount that has to be disbursed so that net remains after the
// gateway charge, using the first tier where net plus its charge falls inside the tier.
func (s Schedule) GrossForNet(net decimal.Decimal) (decimal.Decimal, bool) {
	for _, t := range s.Tiers {
		candidate := net.Add(decimal.NewFromInt(t.Charge))
		if t.Contains(candidate) {
			return candidate, true
		}
	}
	return decimal.Zero, false
}

// ScheduleFor selects the disbursement tariff for a provider account type.
func ScheduleFor(accountType domain.AccountType) (Schedule, error) {
	switch accountType {
	case domain.AccountIndividual:
		return B2C, nil
	case domain.AccountBusiness:
		return B2B, nil
	}
	return Schedule{}, domain.NewValidationError(fmt.Sprintf("unknown account type %q", accountType))
}
