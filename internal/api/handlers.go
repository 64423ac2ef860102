// Package api contains the HTTP handlers and routing for the payments companion.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ryfty/ryfty-payments/internal/domain"
	"github.com/ryfty/ryfty-payments/internal/payment"
	"github.com/ryfty/ryfty-payments/internal/wizard"
)

// Handler contains the HTTP handlers for the browser-facing API.
type Handler struct {
	payments *payment.Service
	drafts   *wizard.Service
	logger   *zap.Logger
}

// NewHandler creates a new API handler with the payment and wizard services.
func NewHandler(payments *payment.Service, drafts *wizard.Service, logger *zap.Logger) *Handler {
	return &Handler{
		payments: payments,
		drafts:   drafts,
		logger:   logger,
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "ryfty-payments",
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Success: false,
		Error:   "Invalid request body: " + err.Error(),
		Code:    "VALIDATION_ERROR",
	})
}

// handleServiceError maps domain errors to HTTP responses.
// Rejections from the Ryfty API keep their message verbatim.
func handleServiceError(c *gin.Context, err error) {
	statusCode := http.StatusInternalServerError
	code := "INTERNAL_ERROR"

	switch {
	case errors.Is(err, domain.ErrValidation):
		statusCode, code = http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, domain.ErrSessionRequired), errors.Is(err, domain.ErrSessionInvalidated):
		statusCode, code = http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrFlowNotFound), errors.Is(err, domain.ErrControllerStopped):
		statusCode, code = http.StatusNotFound, "FLOW_NOT_FOUND"
	case errors.Is(err, domain.ErrInvalidTransition):
		statusCode, code = http.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, domain.ErrAmountOutOfRange):
		statusCode, code = http.StatusUnprocessableEntity, "AMOUNT_OUT_OF_RANGE"
	case errors.Is(err, domain.ErrRejected):
		statusCode, code = http.StatusUnprocessableEntity, "REJECTED"
	case errors.Is(err, domain.ErrNetworkFailure):
		statusCode, code = http.StatusBadGateway, "UPSTREAM_UNAVAILABLE"
	}

	var paymentErr *domain.PaymentError
	if errors.As(err, &paymentErr) && paymentErr.Code != "" {
		code = paymentErr.Code
	}

	message := domain.UserMessage(err)
	if statusCode == http.StatusInternalServerError {
		if logger, ok := c.Get(loggerKey); ok {
			logger.(*zap.Logger).Error("Unhandled service error", zap.Error(err))
		}
		message = "Internal server error"
	}

	c.JSON(statusCode, ErrorResponse{
		Success: false,
		Error:   message,
		Code:    code,
	})
}
