package usecase

import (
	"sync"
	"time"

	"edu-storefront/internal/domain/model"
)

// checkoutSession is the in-progress checkout of one caller.
type checkoutSession struct {
	mu           sync.Mutex
	key          string
	state        model.CheckoutState
	plan         PlanSelector
	verification *model.ReferralVerification
	orderID      string
	resumeState  model.CheckoutState // where a failed or expired payment returns to
	lastSeen     time.Time
}

// planState is the state implied by the current selection.
func (s *checkoutSession) planState() model.CheckoutState {
	switch {
	case s.plan.Selected().IsZero():
		return model.CheckoutIdle
	case s.plan.HasDiscount():
		return model.CheckoutDiscountApplied
	default:
		return model.CheckoutPlanSelected
	}
}

type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*checkoutSession
	byOrder  map[string]*checkoutSession
	now      func() time.Time
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{
		sessions: make(map[string]*checkoutSession),
		byOrder:  make(map[string]*checkoutSession),
		now:      time.Now,
	}
}

// get returns the session for key, creating an idle one.
func (r *sessionRegistry) get(key string) *checkoutSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	if !ok {
		s = &checkoutSession{key: key, state: model.CheckoutIdle}
		r.sessions[key] = s
	}
	s.lastSeen = r.now()
	return s
}

func (r *sessionRegistry) bindOrder(orderID string, s *checkoutSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byOrder[orderID] = s
}

// forOrder returns the session that created orderID, if it is still held.
func (r *sessionRegistry) forOrder(orderID string) (*checkoutSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byOrder[orderID]
	return s, ok
}

func (r *sessionRegistry) unbindOrder(orderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byOrder, orderID)
}

// sweep drops sessions not touched within idle.
func (r *sessionRegistry) sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for key, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(r.sessions, key)
			n++
		}
	}
	for id, s := range r.byOrder {
		if _, live := r.sessions[s.key]; !live || r.sessions[s.key] != s {
			delete(r.byOrder, id)
		}
	}
	return n
}

func (r *sessionRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
