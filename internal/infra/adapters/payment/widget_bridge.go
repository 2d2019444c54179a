package payment

import (
	"context"
	"sync"
	"time"

	"edu-storefront/internal/domain"
	"edu-storefront/internal/domain/model"
	"edu-storefront/internal/domain/ports/adapter"
)

var _ adapter.Widget = (*WidgetBridge)(nil)

// WidgetBridge connects the browser-side checkout widget to the server.
// The browser posts the widget's completion to the API, which hands it to
// the session opened for that order via Deliver.
type WidgetBridge struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*widgetSession
	now      func() time.Time
}

func NewWidgetBridge(ttl time.Duration) *WidgetBridge {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &WidgetBridge{ttl: ttl, sessions: make(map[string]*widgetSession), now: time.Now}
}

type widgetSession struct {
	bridge    *WidgetBridge
	orderID   string
	cfg       model.WidgetConfig
	events    chan adapter.WidgetEvent
	done      chan struct{}
	once      sync.Once
	delivered bool
	expires   time.Time
}

func (s *widgetSession) Events() <-chan adapter.WidgetEvent { return s.events }
func (s *widgetSession) Done() <-chan struct{}              { return s.done }

func (s *widgetSession) Close() {
	s.once.Do(func() {
		close(s.done)
		s.bridge.forget(s)
	})
}

// Open registers a session for cfg.Receipt, replacing any earlier one.
func (b *WidgetBridge) Open(ctx context.Context, cfg model.WidgetConfig) (adapter.WidgetSession, error) {
	if cfg.Receipt == "" {
		return nil, domain.Validationf("widget config has no receipt")
	}
	s := &widgetSession{
		bridge:  b,
		orderID: cfg.Receipt,
		cfg:     cfg,
		events:  make(chan adapter.WidgetEvent, 1),
		done:    make(chan struct{}),
		expires: b.now().Add(b.ttl),
	}
	b.mu.Lock()
	prev := b.sessions[cfg.Receipt]
	b.sessions[cfg.Receipt] = s
	b.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
	return s, nil
}

func (b *WidgetBridge) forget(s *widgetSession) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sessions[s.orderID] == s {
		delete(b.sessions, s.orderID)
	}
}

// Config returns the widget configuration of an open session.
func (b *WidgetBridge) Config(orderID string) (model.WidgetConfig, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[orderID]
	if !ok || b.now().After(s.expires) {
		return model.WidgetConfig{}, false
	}
	return s.cfg, true
}

// Deliver hands outcome to the session for orderID and waits for the
// subscriber's answer. Only the first delivery per session is accepted.
func (b *WidgetBridge) Deliver(ctx context.Context, orderID string, outcome adapter.WidgetOutcome) (adapter.WidgetResult, error) {
	b.mu.Lock()
	s, ok := b.sessions[orderID]
	if !ok || b.now().After(s.expires) {
		b.mu.Unlock()
		return adapter.WidgetResult{}, adapter.ErrNoWidgetSession
	}
	if s.delivered {
		b.mu.Unlock()
		return adapter.WidgetResult{}, adapter.ErrWidgetSessionClosed
	}
	s.delivered = true
	b.mu.Unlock()

	reply := make(chan adapter.WidgetResult, 1)
	s.events <- adapter.WidgetEvent{Outcome: outcome, Reply: reply}

	select {
	case r := <-reply:
		return r, nil
	case <-s.done:
		select {
		case r := <-reply:
			return r, nil
		default:
			return adapter.WidgetResult{}, adapter.ErrWidgetSessionClosed
		}
	case <-ctx.Done():
		return adapter.WidgetResult{}, ctx.Err()
	}
}

// Sweep closes sessions past their deadline and reports how many.
func (b *WidgetBridge) Sweep() int {
	now := b.now()
	b.mu.Lock()
	var expired []*widgetSession
	for _, s := range b.sessions {
		if now.After(s.expires) {
			expired = append(expired, s)
		}
	}
	b.mu.Unlock()
	for _, s := range expired {
		s.Close()
	}
	return len(expired)
}

func (b *WidgetBridge) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}
