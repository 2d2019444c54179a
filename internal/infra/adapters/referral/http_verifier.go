package referral

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"edu-storefront/internal/domain"
	"edu-storefront/internal/domain/ports/adapter"
	"edu-storefront/internal/infra/metrics"
)

var _ adapter.ReferralService = (*HTTPVerifier)(nil)

// HTTPVerifier calls the referral function endpoint.
type HTTPVerifier struct {
	baseURL string
	client  *http.Client
}

func NewHTTPVerifier(baseURL string, timeout time.Duration) (*HTTPVerifier, error) {
	if baseURL == "" {
		return nil, errors.New("referral base url empty")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type verifyResponse struct {
	IsValid         bool   `json:"isValid"`
	DiscountPercent *int   `json:"discountPercent"`
	Message         string `json:"message"`
	Error           string `json:"error"`
}

// Verify posts {"code": code} to /verify-referral. Any non-2xx answer is a
// RemoteError carrying the endpoint's error text.
func (v *HTTPVerifier) Verify(ctx context.Context, code string) (res adapter.ReferralResult, err error) {
	const op = "referral.verify"
	start := time.Now()
	defer func() { metrics.ObserveRemoteCall("referral", "verify", start, err) }()

	b, err := json.Marshal(map[string]string{"code": code})
	if err != nil {
		return res, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/verify-referral", bytes.NewReader(b))
	if err != nil {
		return res, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return res, domain.NewRemoteError(op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return res, domain.NewRemoteError(op, err)
	}

	var out verifyResponse
	decodeErr := json.Unmarshal(body, &out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := out.Error
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return res, &domain.RemoteError{Op: op, Message: msg, Err: fmt.Errorf("http %d", resp.StatusCode)}
	}
	if decodeErr != nil {
		return res, domain.NewRemoteError(op, fmt.Errorf("decode response: %w", decodeErr))
	}
	return adapter.ReferralResult{
		IsValid:         out.IsValid,
		DiscountPercent: out.DiscountPercent,
		Message:         out.Message,
	}, nil
}
