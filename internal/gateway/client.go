// Package gateway wraps the external payment provider's HTTP API: request,
// confirm and refund calls signed per request, plus structured errors so
// callers never see raw transport faults.
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"stall_pos_backend/internal/models"

	"github.com/google/uuid"
)

const successCode = "0000"

// Config carries the provider credentials and endpoints. It is constructed
// once at startup and injected into the client; there is no package-level
// mutable state.
type Config struct {
	BaseURL       string
	ChannelID     string
	ChannelSecret string
	// ConfirmURLBase and CancelURLBase are our public callback endpoints;
	// the order ID is appended per request.
	ConfirmURLBase string
	CancelURLBase  string
	Currency       string
	Timeout        time.Duration
}

// Error is the structured failure a provider call resolves to. Code carries
// the provider's raw return code (or a transport pseudo-code) for staff
// diagnostics.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway error %s: %s", e.Code, e.Message)
}

// Transport pseudo-codes used when the provider never answered.
const (
	CodeTimeout = "TIMEOUT"
	CodeNetwork = "NETWORK"
)

// PaymentRequest is the successful result of RequestPayment.
type PaymentRequest struct {
	TransactionID string
	PaymentURL    string
}

// Client is the provider API client. All calls use a bounded timeout; a
// timeout is reported as a gateway failure like any other.
type Client interface {
	RequestPayment(ctx context.Context, order *models.Order) (*PaymentRequest, error)
	ConfirmPayment(ctx context.Context, transactionID string, amount int64) error
	RefundPayment(ctx context.Context, transactionID string) (string, error)
}

type client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a provider client from the given configuration.
func NewClient(cfg Config) Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "TWD"
	}
	return &client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type requestPayload struct {
	Amount       int64            `json:"amount"`
	Currency     string           `json:"currency"`
	OrderID      string           `json:"orderId"`
	Packages     []requestPackage `json:"packages"`
	RedirectURLs redirectURLs     `json:"redirectUrls"`
}

type requestPackage struct {
	ID       string           `json:"id"`
	Amount   int64            `json:"amount"`
	Products []requestProduct `json:"products"`
}

type requestProduct struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

type redirectURLs struct {
	ConfirmURL string `json:"confirmUrl"`
	CancelURL  string `json:"cancelUrl"`
}

type providerResponse struct {
	ReturnCode    string `json:"returnCode"`
	ReturnMessage string `json:"returnMessage"`
	Info          struct {
		TransactionID       string `json:"transactionId"`
		RefundTransactionID string `json:"refundTransactionId"`
		PaymentURL          struct {
			Web string `json:"web"`
		} `json:"paymentUrl"`
	} `json:"info"`
}

func (c *client) RequestPayment(ctx context.Context, order *models.Order) (*PaymentRequest, error) {
	products := make([]requestProduct, 0, len(order.Items))
	for _, it := range order.Items {
		products = append(products, requestProduct{
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    it.UnitPrice,
		})
	}
	payload := requestPayload{
		Amount:   order.Total,
		Currency: c.cfg.Currency,
		OrderID:  fmt.Sprintf("%d", order.ID),
		Packages: []requestPackage{{
			ID:       fmt.Sprintf("order-%d", order.ID),
			Amount:   order.Total,
			Products: products,
		}},
		RedirectURLs: redirectURLs{
			ConfirmURL: fmt.Sprintf("%s/%d", c.cfg.ConfirmURLBase, order.ID),
			CancelURL:  fmt.Sprintf("%s/%d", c.cfg.CancelURLBase, order.ID),
		},
	}

	resp, err := c.post(ctx, "/v3/payments/request", payload)
	if err != nil {
		return nil, err
	}
	if resp.Info.PaymentURL.Web == "" {
		return nil, &Error{Code: resp.ReturnCode, Message: "provider returned no payment URL"}
	}
	return &PaymentRequest{
		TransactionID: resp.Info.TransactionID,
		PaymentURL:    resp.Info.PaymentURL.Web,
	}, nil
}

func (c *client) ConfirmPayment(ctx context.Context, transactionID string, amount int64) error {
	payload := map[string]interface{}{
		"amount":   amount,
		"currency": c.cfg.Currency,
	}
	_, err := c.post(ctx, "/v3/payments/"+transactionID+"/confirm", payload)
	return err
}

func (c *client) RefundPayment(ctx context.Context, transactionID string) (string, error) {
	resp, err := c.post(ctx, "/v3/payments/"+transactionID+"/refund", map[string]interface{}{})
	if err != nil {
		return "", err
	}
	return resp.Info.RefundTransactionID, nil
}

// post signs and sends one provider call. The signature covers the channel
// secret, request URI, body and a fresh random nonce; replay rejection is the
// provider's job, not ours.
func (c *client) post(ctx context.Context, uri string, payload interface{}) (*providerResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Code: CodeNetwork, Message: "encoding request body: " + err.Error()}
	}

	nonce := uuid.NewString()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+uri, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Code: CodeNetwork, Message: "building request: " + err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Channel-Id", c.cfg.ChannelID)
	req.Header.Set("X-Nonce", nonce)
	req.Header.Set("X-Signature", Sign(c.cfg.ChannelSecret, uri, string(body), nonce))

	httpResp, err := c.http.Do(req)
	if err != nil {
		code := CodeNetwork
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			code = CodeTimeout
		}
		return nil, &Error{Code: code, Message: err.Error()}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &Error{Code: CodeNetwork, Message: "reading response: " + err.Error()}
	}

	var resp providerResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &Error{
			Code:    fmt.Sprintf("HTTP_%d", httpResp.StatusCode),
			Message: "undecodable provider response: " + string(raw),
		}
	}
	if resp.ReturnCode != successCode {
		return nil, &Error{Code: resp.ReturnCode, Message: resp.ReturnMessage}
	}
	return &resp, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// Sign computes the request signature:
// base64(HMAC-SHA256(secret, secret + uri + body + nonce)).
func Sign(secret, uri, body, nonce string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(secret + uri + body + nonce))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
