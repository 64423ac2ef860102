package payment

import (
	"github.com/ryfty/ryfty-payments/internal/domain"
	"github.com/ryfty/ryfty-payments/internal/fees"
	"github.com/ryfty/ryfty-payments/internal/validation"
)

type reservationPaymentInput struct {
	ReservationID string `json:"reservation_id" validate:"required"`
	MpesaNumber   string `json:"mpesa_number" validate:"required,ke_msisdn"`
}

type withdrawalVerifyInput struct {
	DisbursementID string `json:"disbursement_id" validate:"required"`
	Code           string `json:"code" validate:"required,alphanum,max=12"`
}

// validateOrder checks an order before anything is sent and returns it normalized.
// Errors wrap domain.ErrValidation.
func validateOrder(v *validation.Validator, order domain.PaymentOrder) (domain.PaymentOrder, error) {
	switch order.Kind {
	case domain.KindReservationPayment:
		order.Destination = validation.NormalizeMSISDN(order.Destination)
		if err := v.Struct(reservationPaymentInput{
			ReservationID: order.TargetID,
			MpesaNumber:   order.Destination,
		}); err != nil {
			return order, err
		}
		if err := fees.ValidateAmount(order.Amount); err != nil {
			return order, err
		}
	case domain.KindWithdrawal:
		if err := v.Struct(withdrawalVerifyInput{
			DisbursementID: order.TargetID,
			Code:           order.Code,
		}); err != nil {
			return order, err
		}
	default:
		return order, domain.NewValidationError("unsupported order kind")
	}
	return order, nil
}
