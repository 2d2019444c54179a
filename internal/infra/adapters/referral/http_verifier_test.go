//go:build !integration

package referral

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"edu-storefront/internal/domain"
)

func TestHTTPVerifier_Verify(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantValid   bool
		wantPercent int
		wantMessage string
		wantErr     error
	}{
		{
			name:        "valid code",
			status:      http.StatusOK,
			body:        `{"isValid":true,"discountPercent":10,"message":"10% off"}`,
			wantValid:   true,
			wantPercent: 10,
			wantMessage: "10% off",
		},
		{
			name:        "invalid code",
			status:      http.StatusOK,
			body:        `{"isValid":false,"message":"Code expired"}`,
			wantMessage: "Code expired",
		},
		{
			name:    "server error with message",
			status:  http.StatusInternalServerError,
			body:    `{"error":"database unavailable"}`,
			wantErr: domain.ErrRemote,
		},
		{
			name:    "garbage body",
			status:  http.StatusOK,
			body:    `<html>`,
			wantErr: domain.ErrRemote,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/verify-referral" || r.Method != http.MethodPost {
					t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
				}
				var in map[string]string
				_ = json.NewDecoder(r.Body).Decode(&in)
				if in["code"] != "SAVE10" {
					t.Errorf("code = %q", in["code"])
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			v, err := NewHTTPVerifier(srv.URL, time.Second)
			if err != nil {
				t.Fatal(err)
			}
			res, err := v.Verify(context.Background(), "SAVE10")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if res.IsValid != tt.wantValid || res.Message != tt.wantMessage {
				t.Errorf("result = %+v", res)
			}
			if tt.wantPercent != 0 && (res.DiscountPercent == nil || *res.DiscountPercent != tt.wantPercent) {
				t.Errorf("percent = %v", res.DiscountPercent)
			}
		})
	}
}

func TestHTTPVerifier_ServerMessageSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream down"}`))
	}))
	defer srv.Close()

	v, _ := NewHTTPVerifier(srv.URL, time.Second)
	_, err := v.Verify(context.Background(), "X")
	var re *domain.RemoteError
	if !errors.As(err, &re) || re.Message != "upstream down" {
		t.Fatalf("expected RemoteError with message, got %v", err)
	}
}
