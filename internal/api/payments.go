package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/ryfty/ryfty-payments/internal/domain"
	"github.com/ryfty/ryfty-payments/internal/fees"
)

// ReservationPaymentRequest represents the JSON body of a reservation payment.
type ReservationPaymentRequest struct {
	MpesaNumber string          `json:"mpesa_number"`
	Amount      decimal.Decimal `json:"amount"`
}

// CreateWithdrawalRequest represents the JSON body of a new withdrawal.
type CreateWithdrawalRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// VerifyWithdrawalRequest represents the JSON body that releases a withdrawal.
type VerifyWithdrawalRequest struct {
	Code   string          `json:"code"`
	Amount decimal.Decimal `json:"amount"`
}

// QuoteFees handles GET /api/v1/fees/quote
func (h *Handler) QuoteFees(c *gin.Context) {
	amount, err := fees.ParseAmount(c.Query("amount"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	accountType := domain.AccountType(c.DefaultQuery("account_type", string(domain.AccountIndividual)))

	breakdown, err := h.payments.QuoteFees(amount, accountType)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, breakdown)
}

// StartReservationPayment handles POST /api/v1/reservations/:id/payments
// Sends the M-Pesa prompt and returns the flow that tracks its confirmation.
func (h *Handler) StartReservationPayment(c *gin.Context) {
	var req ReservationPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	snap, err := h.payments.StartReservationPayment(c.Request.Context(), c.Param("id"), req.MpesaNumber, req.Amount)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, snap)
}

// CreateWithdrawal handles POST /api/v1/wallet/withdrawals
func (h *Handler) CreateWithdrawal(c *gin.Context) {
	var req CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	withdrawal, err := h.payments.CreateWithdrawal(c.Request.Context(), req.Amount)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, withdrawal)
}

// VerifyWithdrawal handles POST /api/v1/wallet/withdrawals/:id/verify
func (h *Handler) VerifyWithdrawal(c *gin.Context) {
	var req VerifyWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	snap, err := h.payments.StartWithdrawal(c.Request.Context(), c.Param("id"), req.Code, req.Amount)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, snap)
}

// GetFlow handles GET /api/v1/flows/:flow_id
func (h *Handler) GetFlow(c *gin.Context) {
	controller, err := h.payments.Flow(c.Request.Context(), c.Param("flow_id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, controller.Snapshot())
}

// StreamFlow handles GET /api/v1/flows/:flow_id/events
// Relays every flow snapshot as a server-sent event until the flow settles or closes.
func (h *Handler) StreamFlow(c *gin.Context) {
	controller, err := h.payments.Flow(c.Request.Context(), c.Param("flow_id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	updates, stop := controller.Watch()
	defer stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case snap, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("flow", snap)
			return !snap.State.IsTerminal() && snap.State != domain.StateIdle
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// RetryFlow handles POST /api/v1/flows/:flow_id/retry
func (h *Handler) RetryFlow(c *gin.Context) {
	snap, err := h.payments.Retry(c.Request.Context(), c.Param("flow_id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, snap)
}

// CloseFlow handles DELETE /api/v1/flows/:flow_id
func (h *Handler) CloseFlow(c *gin.Context) {
	if err := h.payments.Close(c.Request.Context(), c.Param("flow_id")); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
