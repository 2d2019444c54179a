package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"edu-storefront/internal/domain"
	"edu-storefront/internal/domain/model"
	"edu-storefront/internal/domain/ports/adapter"
	"edu-storefront/internal/infra/metrics"
)

var _ adapter.EmailVerifier = (*EmailVerifier)(nil)

// EmailVerifier applies an email verification code with the identity
// provider's accounts API.
type EmailVerifier struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewEmailVerifier(baseURL, apiKey string) (*EmailVerifier, error) {
	if baseURL == "" {
		return nil, errors.New("identity base url empty")
	}
	return &EmailVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (v *EmailVerifier) ConfirmEmail(ctx context.Context, oobCode string) (out *model.EmailVerification, err error) {
	const op = "identity.confirm_email"
	start := time.Now()
	defer func() { metrics.ObserveRemoteCall("identity", "confirm_email", start, err) }()

	if strings.TrimSpace(oobCode) == "" {
		return nil, domain.Validationf("verification code is required")
	}
	b, err := json.Marshal(map[string]string{"oobCode": oobCode})
	if err != nil {
		return nil, err
	}
	endpoint := v.baseURL + "/v1/accounts:update?key=" + url.QueryEscape(v.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, domain.NewRemoteError(op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, domain.NewRemoteError(op, err)
	}

	if resp.StatusCode == http.StatusBadRequest {
		// expired or already used codes come back as 400
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(body, &apiErr)
		return nil, domain.Validationf("verification code rejected: %s", apiErr.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.RemoteError{Op: op, Message: http.StatusText(resp.StatusCode), Err: fmt.Errorf("http %d", resp.StatusCode)}
	}

	var res struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"emailVerified"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, domain.NewRemoteError(op, fmt.Errorf("decode response: %w", err))
	}
	return &model.EmailVerification{Email: res.Email, Verified: res.EmailVerified}, nil
}
