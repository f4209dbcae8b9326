package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/config"
)

var (
	ErrNotConfigured = errors.New("payment gateway is not configured")
	ErrGateway       = errors.New("payment gateway error")
)

type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// Float parses the decimal string YooKassa uses for money.
func (a Amount) Float() float64 {
	v, err := strconv.ParseFloat(a.Value, 64)
	if err != nil {
		return 0
	}
	return v
}

type Confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

// GatewayPayment is the payment object as YooKassa returns it, both from the
// API and inside webhook notifications.
type GatewayPayment struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Paid         bool              `json:"paid"`
	Amount       Amount            `json:"amount"`
	Confirmation *Confirmation     `json:"confirmation,omitempty"`
	Description  string            `json:"description,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type createRequest struct {
	Amount       Amount            `json:"amount"`
	Confirmation Confirmation      `json:"confirmation"`
	Capture      bool              `json:"capture"`
	Description  string            `json:"description"`
	Metadata     map[string]string `json:"metadata"`
}

type CreateParams struct {
	IdempotenceKey string
	Amount         float64
	Currency       string
	Description    string
	ReturnURL      string
	Metadata       map[string]string
}

// Client talks to the YooKassa v3 API with shop credentials.
type Client struct {
	http      *http.Client
	baseURL   string
	shopID    string
	secretKey string
	log       *zap.Logger
}

func NewClient(cfg *config.PaymentConfig, log *zap.Logger) *Client {
	return &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		shopID:    cfg.ShopID,
		secretKey: cfg.SecretKey,
		log:       log.Named("yookassa"),
	}
}

func (c *Client) Configured() bool {
	return c.shopID != "" && c.secretKey != ""
}

// CreatePayment opens a redirect payment that captures automatically.
func (c *Client) CreatePayment(ctx context.Context, p CreateParams) (*GatewayPayment, error) {
	body, err := json.Marshal(createRequest{
		Amount: Amount{
			Value:    strconv.FormatFloat(p.Amount, 'f', 2, 64),
			Currency: p.Currency,
		},
		Confirmation: Confirmation{Type: "redirect", ReturnURL: p.ReturnURL},
		Capture:      true,
		Description:  p.Description,
		Metadata:     p.Metadata,
	})
	if err != nil {
		return nil, err
	}

	headers := map[string]string{"Idempotence-Key": p.IdempotenceKey}
	return c.do(ctx, http.MethodPost, "/payments", bytes.NewReader(body), headers)
}

// GetPayment fetches the current state of a payment.
func (c *Client) GetPayment(ctx context.Context, id string) (*GatewayPayment, error) {
	return c.do(ctx, http.MethodGet, "/payments/"+id, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, headers map[string]string) (*GatewayPayment, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.shopID, c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		c.log.Error("yookassa api error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", apiErr.Code),
			zap.String("description", apiErr.Description))
		return nil, fmt.Errorf("%w: status %d", ErrGateway, resp.StatusCode)
	}

	var payment GatewayPayment
	if err := json.Unmarshal(raw, &payment); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	return &payment, nil
}
