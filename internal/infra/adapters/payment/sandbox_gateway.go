package payment

import (
	"context"
	"fmt"
	"sync"

	"edu-storefront/internal/domain"
	"edu-storefront/internal/domain/ports/adapter"
)

var (
	_ adapter.PaymentGateway    = (*SandboxGateway)(nil)
	_ adapter.SignatureVerifier = (*SandboxGateway)(nil)
	_ adapter.WidgetLoader      = (*SandboxGateway)(nil)
)

const sandboxSecret = "sandbox-secret"

// SandboxGateway is an in-process gateway for local development and tests.
// It also stands in for the widget script so no network is needed.
type SandboxGateway struct {
	mu     sync.Mutex
	seq    int64
	orders map[string]adapter.GatewayOrderRequest
}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{
		orders: make(map[string]adapter.GatewayOrderRequest),
	}
}

func (g *SandboxGateway) Name() string { return "sandbox" }

func (g *SandboxGateway) next() string {
	g.seq++
	return fmt.Sprintf("order_sandbox%d", g.seq)
}

func (g *SandboxGateway) CreateOrder(ctx context.Context, req adapter.GatewayOrderRequest) (string, error) {
	if req.Amount <= 0 {
		return "", domain.Validationf("amount must be positive, got %d", req.Amount)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.next()
	g.orders[id] = req
	return id, nil
}

// Order returns what was registered under a gateway order id.
func (g *SandboxGateway) Order(id string) (adapter.GatewayOrderRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[id]
	return o, ok
}

// Sign produces the signature a real widget would return for a payment.
func (g *SandboxGateway) Sign(gatewayOrderID, paymentID string) string {
	return sign(sandboxSecret, gatewayOrderID, paymentID)
}

func (g *SandboxGateway) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	return verifyHMAC(sandboxSecret, gatewayOrderID, paymentID, signature)
}

func (g *SandboxGateway) EnsureLoaded(ctx context.Context) error { return nil }

func (g *SandboxGateway) ScriptURL() string { return "" }
