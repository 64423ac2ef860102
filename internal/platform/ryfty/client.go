// Package ryfty implements the PaymentInitiator and WithdrawalCreator ports
// by communicating with the remote Ryfty REST API.
package ryfty

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ryfty/ryfty-payments/internal/domain"
	"github.com/ryfty/ryfty-payments/internal/session"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Client makes authenticated HTTP requests to the Ryfty API on behalf of the
// session carried in the request context.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new Ryfty API client.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// paymentRequest is the body of POST /reservations/{id}/payments.
type paymentRequest struct {
	MpesaNumber string      `json:"mpesa_number"`
	Amount      json.Number `json:"amount"`
}

// verifyRequest is the body of POST /wallet/withdrawals/{id}/verify.
type verifyRequest struct {
	Code string `json:"code"`
}

// withdrawalRequest is the body of POST /wallet/withdrawals.
type withdrawalRequest struct {
	Amount json.Number `json:"amount"`
}

// initiateResponse covers both initiation endpoints.
type initiateResponse struct {
	RequestID      string `json:"request_id"`
	DisbursementID string `json:"disbursement_id"`
	StreamKey      string `json:"stream_key"`
}

// errorResponse is the error body returned by the API.
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Initiate sends a payment or withdrawal confirmation request. It never retries.
func (c *Client) Initiate(ctx context.Context, order domain.PaymentOrder) (*domain.PaymentRequest, error) {
	var (
		path string
		body any
	)
	switch order.Kind {
	case domain.KindReservationPayment:
		path = fmt.Sprintf("/reservations/%s/payments", url.PathEscape(order.TargetID))
		body = paymentRequest{
			MpesaNumber: order.Destination,
			Amount:      json.Number(order.Amount.String()),
		}
	case domain.KindWithdrawal:
		path = fmt.Sprintf("/wallet/withdrawals/%s/verify", url.PathEscape(order.TargetID))
		body = verifyRequest{Code: order.Code}
	default:
		return nil, domain.NewValidationError(fmt.Sprintf("unsupported order kind %q", order.Kind))
	}

	var resp initiateResponse
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}

	requestID := resp.RequestID
	if requestID == "" {
		requestID = resp.DisbursementID
	}
	if requestID == "" && order.Kind == domain.KindWithdrawal {
		requestID = order.TargetID
	}
	if requestID == "" {
		return nil, domain.NetworkFailure(errors.New("response is missing request_id"))
	}

	c.logger.Info("Payment initiated",
		zap.String("kind", string(order.Kind)),
		zap.String("target_id", order.TargetID),
		zap.String("request_id", requestID),
	)

	return &domain.PaymentRequest{
		RequestID:   requestID,
		StreamKey:   resp.StreamKey,
		Kind:        order.Kind,
		TargetID:    order.TargetID,
		Amount:      order.Amount,
		Destination: order.Destination,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// CreateWithdrawal opens a pending withdrawal. Money only moves once it is verified.
func (c *Client) CreateWithdrawal(ctx context.Context, amount decimal.Decimal) (*domain.Withdrawal, error) {
	var resp initiateResponse
	body := withdrawalRequest{Amount: json.Number(amount.String())}
	if err := c.do(ctx, http.MethodPost, "/wallet/withdrawals", body, &resp); err != nil {
		return nil, err
	}
	if resp.DisbursementID == "" {
		return nil, domain.NetworkFailure(errors.New("response is missing disbursement_id"))
	}
	return &domain.Withdrawal{
		DisbursementID: resp.DisbursementID,
		Amount:         amount,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// experienceResponse is the body returned by POST /experiences.
type experienceResponse struct {
	ID string `json:"id"`
}

// CreateExperience submits a completed experience draft and returns the new experience id.
func (c *Client) CreateExperience(ctx context.Context, draft any) (string, error) {
	var resp experienceResponse
	if err := c.do(ctx, http.MethodPost, "/experiences", draft, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// do sends one JSON request and decodes a 2xx body into out.
// Error bodies become *domain.RequestError with the server message kept verbatim.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	token, err := session.FromContext(ctx).Token()
	if err != nil {
		return err
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Ryfty API unreachable", zap.String("path", path), zap.Error(err))
		return domain.NetworkFailure(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reqErr := decodeError(resp)
		c.logger.Warn("Ryfty API returned an error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.Error(reqErr),
		)
		return reqErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NetworkFailure(fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// decodeError maps an error response to a RequestError.
// Any response carrying a message is a rejection; bare 5xx responses are treated as
// transport failures because they carry no authoritative answer.
func decodeError(resp *http.Response) *domain.RequestError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body errorResponse
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return domain.Rejected(resp.StatusCode, body.Message)
		}
		if body.Error != "" {
			return domain.Rejected(resp.StatusCode, body.Error)
		}
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		reqErr := domain.NetworkFailure(fmt.Errorf("API call failed: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
		reqErr.StatusCode = resp.StatusCode
		return reqErr
	}
	return domain.Rejected(resp.StatusCode,
		fmt.Sprintf("API call failed: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
}
