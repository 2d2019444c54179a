//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"edu-storefront/internal/domain/model"
	"edu-storefront/internal/domain/ports/adapter"
	"edu-storefront/internal/domain/ports/repository"
	"edu-storefront/internal/infra/adapters/payment"
	"edu-storefront/internal/infra/memory"
)

// =============================
// Repositories
// =============================

// ---- Mock DocumentStore ----

// MockDocumentStore delegates to an in-memory store unless a Func is set.
type MockDocumentStore struct {
	Inner *memory.DocumentStore

	mu          sync.Mutex
	CreateCalls int
	UpdateCalls int

	CreateFunc func(ctx context.Context, collection string, doc repository.Document) (string, error)
	UpdateFunc func(ctx context.Context, collection, id string, partial repository.Document) error
	GetFunc    func(ctx context.Context, collection, id string) (repository.Document, error)
}

var _ repository.DocumentStore = (*MockDocumentStore)(nil)

func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{Inner: memory.NewDocumentStore()}
}

func (m *MockDocumentStore) Create(ctx context.Context, collection string, doc repository.Document) (string, error) {
	m.mu.Lock()
	m.CreateCalls++
	fn := m.CreateFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, collection, doc)
	}
	return m.Inner.Create(ctx, collection, doc)
}

func (m *MockDocumentStore) Update(ctx context.Context, collection, id string, partial repository.Document) error {
	m.mu.Lock()
	m.UpdateCalls++
	fn := m.UpdateFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, collection, id, partial)
	}
	return m.Inner.Update(ctx, collection, id, partial)
}

func (m *MockDocumentStore) Get(ctx context.Context, collection, id string) (repository.Document, error) {
	m.mu.Lock()
	fn := m.GetFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, collection, id)
	}
	return m.Inner.Get(ctx, collection, id)
}

// =============================
// Adapters
// =============================

// ---- Mock ReferralService ----

type MockReferralService struct {
	mu         sync.Mutex
	Calls      int
	VerifyFunc func(ctx context.Context, code string) (adapter.ReferralResult, error)
}

var _ adapter.ReferralService = (*MockReferralService)(nil)

func (m *MockReferralService) Verify(ctx context.Context, code string) (adapter.ReferralResult, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, code)
	}
	p := 10
	return adapter.ReferralResult{IsValid: true, DiscountPercent: &p}, nil
}

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	mu              sync.Mutex
	Requests        []adapter.GatewayOrderRequest
	CreateOrderFunc func(ctx context.Context, req adapter.GatewayOrderRequest) (string, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Name() string { return "mock" }

func (m *MockPaymentGateway) CreateOrder(ctx context.Context, req adapter.GatewayOrderRequest) (string, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	n := len(m.Requests)
	m.mu.Unlock()
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, req)
	}
	return fmt.Sprintf("order_G%d", n), nil
}

// ---- Mock SignatureVerifier ----

type MockSignatureVerifier struct {
	VerifyFunc func(gatewayOrderID, paymentID, signature string) bool
}

func (m *MockSignatureVerifier) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(gatewayOrderID, paymentID, signature)
	}
	return true
}

// ---- Mock WidgetLoader ----

type MockWidgetLoader struct {
	mu               sync.Mutex
	Calls            int
	EnsureLoadedFunc func(ctx context.Context) error
}

var _ adapter.WidgetLoader = (*MockWidgetLoader)(nil)

func (m *MockWidgetLoader) EnsureLoaded(ctx context.Context) error {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.EnsureLoadedFunc != nil {
		return m.EnsureLoadedFunc(ctx)
	}
	return nil
}

func (m *MockWidgetLoader) ScriptURL() string { return "https://checkout.example.test/v1/checkout.js" }

// ---- Mock Widget ----

// MockWidget records opened configs and delegates to a real bridge.
type MockWidget struct {
	Bridge *payment.WidgetBridge

	mu       sync.Mutex
	Opened   []model.WidgetConfig
	OpenFunc func(ctx context.Context, cfg model.WidgetConfig) (adapter.WidgetSession, error)
}

var _ adapter.Widget = (*MockWidget)(nil)

func NewMockWidget(ttl time.Duration) *MockWidget {
	return &MockWidget{Bridge: payment.NewWidgetBridge(ttl)}
}

func (m *MockWidget) Open(ctx context.Context, cfg model.WidgetConfig) (adapter.WidgetSession, error) {
	m.mu.Lock()
	m.Opened = append(m.Opened, cfg)
	fn := m.OpenFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, cfg)
	}
	return m.Bridge.Open(ctx, cfg)
}

func (m *MockWidget) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Opened)
}

// ---- Mock RateLimiter ----

type MockRateLimiter struct {
	AllowFunc func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

func (m *MockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if m.AllowFunc != nil {
		return m.AllowFunc(ctx, key, limit, window)
	}
	return true, nil
}

// ---- Mock identity ----

type MockTokenVerifier struct {
	VerifyFunc func(token string) (*adapter.IdentityClaims, error)
}

func (m *MockTokenVerifier) Verify(token string) (*adapter.IdentityClaims, error) {
	return m.VerifyFunc(token)
}

type MockEmailVerifier struct {
	ConfirmEmailFunc func(ctx context.Context, oobCode string) (*model.EmailVerification, error)
}

func (m *MockEmailVerifier) ConfirmEmail(ctx context.Context, oobCode string) (*model.EmailVerification, error) {
	return m.ConfirmEmailFunc(ctx, oobCode)
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func strPtr(s string) *string { return &s }
