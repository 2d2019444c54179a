package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"edu-storefront/internal/domain"
	"edu-storefront/internal/domain/ports/adapter"
	"edu-storefront/internal/infra/metrics"
)

var (
	_ adapter.PaymentGateway    = (*RazorpayGateway)(nil)
	_ adapter.SignatureVerifier = (*RazorpayGateway)(nil)
)

// RazorpayGateway implements adapter.PaymentGateway against the Razorpay
// Orders API. Orders are created server-side so the amount cannot be
// changed by the browser.
type RazorpayGateway struct {
	keyID     string
	keySecret string
	baseURL   string
	client    *http.Client
}

func NewRazorpayGateway(keyID, keySecret, baseURL string) (*RazorpayGateway, error) {
	if keyID == "" || keySecret == "" {
		return nil, errors.New("razorpay key id and secret are required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid razorpay base url: %w", err)
	}
	return &RazorpayGateway{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (g *RazorpayGateway) Name() string { return "razorpay" }

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder calls POST /v1/orders and returns the gateway order id.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, in adapter.GatewayOrderRequest) (id string, err error) {
	const op = "razorpay.create_order"
	start := time.Now()
	defer func() { metrics.ObserveRemoteCall("gateway", "create_order", start, err) }()

	if in.Amount <= 0 {
		return "", domain.Validationf("amount must be positive, got %d", in.Amount)
	}
	payload := map[string]any{
		"amount":   in.Amount,
		"currency": in.Currency,
		"receipt":  in.Receipt,
	}
	if len(in.Notes) > 0 {
		payload["notes"] = in.Notes
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/orders", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", domain.NewRemoteError(op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", domain.NewRemoteError(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr razorpayError
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Description != "" {
			msg = apiErr.Error.Description
		}
		return "", &domain.RemoteError{Op: op, Message: msg, Err: fmt.Errorf("http %d", resp.StatusCode)}
	}

	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", domain.NewRemoteError(op, fmt.Errorf("decode order: %w", err))
	}
	if out.ID == "" {
		return "", domain.NewRemoteError(op, errors.New("order id missing in response"))
	}
	return out.ID, nil
}

// VerifySignature checks HMAC-SHA256(order_id|payment_id) keyed by the secret.
func (g *RazorpayGateway) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	return verifyHMAC(g.keySecret, gatewayOrderID, paymentID, signature)
}

func sign(secret, gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func verifyHMAC(secret, gatewayOrderID, paymentID, signature string) bool {
	if gatewayOrderID == "" || paymentID == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(sign(secret, gatewayOrderID, paymentID)), []byte(signature))
}
