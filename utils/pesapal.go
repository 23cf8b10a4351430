package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

var ErrPaymentNotConfigured = errors.New("pesapal credentials are not set")

type BillingAddress struct {
	Email       string
	Phone       string
	FirstName   string
	LastName    string
	City        string
	Line1       string
	CountryCode string
}

type PaymentRequest struct {
	MerchantReference string
	Amount            decimal.Decimal
	Currency          string
	Description       string
	Billing           BillingAddress
}

type PaymentSession struct {
	TrackingID  string
	RedirectURL string
}

type TransactionStatus struct {
	TrackingID        string
	MerchantReference string
	StatusCode        int
	Description       string
	PaymentMethod     string
	Amount            decimal.Decimal
}

// PaymentGateway is the subset of the Pesapal API the checkout flow needs.
type PaymentGateway interface {
	SubmitOrder(ctx context.Context, req PaymentRequest) (*PaymentSession, error)
	TransactionStatus(ctx context.Context, trackingID string) (*TransactionStatus, error)
}

type PesapalConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	NotificationID string
	CallbackURL    string
	Timeout        time.Duration
}

type PesapalClient struct {
	cfg    PesapalConfig
	client *resty.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewPesapalClient(cfg PesapalConfig) *PesapalClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	return &PesapalClient{cfg: cfg, client: client}
}

// accessToken returns a cached bearer token. Pesapal tokens live five
// minutes; one is reused for four.
func (p *PesapalClient) accessToken(ctx context.Context) (string, error) {
	if p.cfg.ConsumerKey == "" || p.cfg.ConsumerSecret == "" {
		return "", ErrPaymentNotConfigured
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" && time.Now().Before(p.tokenExpiry) {
		return p.token, nil
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"consumer_key":    p.cfg.ConsumerKey,
			"consumer_secret": p.cfg.ConsumerSecret,
		}).
		Post("/api/Auth/RequestToken")
	if err != nil {
		return "", fmt.Errorf("pesapal token request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("pesapal token request failed with status %d: %s", resp.StatusCode(), resp.String())
	}

	body := gjson.ParseBytes(resp.Body())
	if msg := gatewayError(body); msg != "" {
		return "", fmt.Errorf("pesapal token request: %s", msg)
	}
	token := body.Get("token").String()
	if token == "" {
		return "", fmt.Errorf("token not found in response: %s", resp.String())
	}

	p.token = token
	p.tokenExpiry = time.Now().Add(4 * time.Minute)
	return token, nil
}

func (p *PesapalClient) SubmitOrder(ctx context.Context, req PaymentRequest) (*PaymentSession, error) {
	if p.cfg.NotificationID == "" {
		return nil, errors.New("missing pesapal notification id")
	}
	token, err := p.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	countryCode := req.Billing.CountryCode
	if countryCode == "" {
		countryCode = "KE"
	}
	payload := map[string]any{
		"id":              req.MerchantReference,
		"currency":        req.Currency,
		"amount":          req.Amount.InexactFloat64(),
		"description":     req.Description,
		"callback_url":    p.cfg.CallbackURL,
		"notification_id": p.cfg.NotificationID,
		"billing_address": map[string]any{
			"email_address": req.Billing.Email,
			"phone_number":  req.Billing.Phone,
			"country_code":  countryCode,
			"first_name":    req.Billing.FirstName,
			"last_name":     req.Billing.LastName,
			"city":          req.Billing.City,
			"line_1":        req.Billing.Line1,
		},
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(payload).
		Post("/api/Transactions/SubmitOrderRequest")
	if err != nil {
		return nil, fmt.Errorf("pesapal submit order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("pesapal submit order failed with status %d: %s", resp.StatusCode(), resp.String())
	}

	body := gjson.ParseBytes(resp.Body())
	if msg := gatewayError(body); msg != "" {
		return nil, fmt.Errorf("pesapal submit order: %s", msg)
	}
	session := &PaymentSession{
		TrackingID:  body.Get("order_tracking_id").String(),
		RedirectURL: body.Get("redirect_url").String(),
	}
	if session.TrackingID == "" || session.RedirectURL == "" {
		return nil, fmt.Errorf("incomplete response from payment gateway: %s", resp.String())
	}
	return session, nil
}

func (p *PesapalClient) TransactionStatus(ctx context.Context, trackingID string) (*TransactionStatus, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("orderTrackingId", trackingID).
		Get("/api/Transactions/GetTransactionStatus")
	if err != nil {
		return nil, fmt.Errorf("pesapal transaction status: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("pesapal transaction status failed with status %d: %s", resp.StatusCode(), resp.String())
	}

	body := gjson.ParseBytes(resp.Body())
	if msg := gatewayError(body); msg != "" {
		return nil, fmt.Errorf("pesapal transaction status: %s", msg)
	}
	amount, _ := decimal.NewFromString(body.Get("amount").String())
	return &TransactionStatus{
		TrackingID:        trackingID,
		MerchantReference: body.Get("merchant_reference").String(),
		StatusCode:        int(body.Get("status_code").Int()),
		Description:       body.Get("payment_status_description").String(),
		PaymentMethod:     body.Get("payment_method").String(),
		Amount:            amount,
	}, nil
}

// gatewayError extracts the message of a populated "error" object.
func gatewayError(body gjson.Result) string {
	errObj := body.Get("error")
	if !errObj.Exists() || errObj.Type == gjson.Null {
		return ""
	}
	for _, key := range []string{"message", "code", "error_type"} {
		if v := errObj.Get(key); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
