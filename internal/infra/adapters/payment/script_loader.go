package payment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"edu-storefront/internal/domain"
	"edu-storefront/internal/domain/ports/adapter"
	"edu-storefront/internal/infra/metrics"
)

var _ adapter.WidgetLoader = (*ScriptLoader)(nil)

// ScriptLoader checks that the checkout script is reachable. Concurrent
// callers share one fetch; only a successful fetch is remembered, so a
// failed load is retried on the next checkout.
type ScriptLoader struct {
	url    string
	client *http.Client
	loaded atomic.Bool
	group  singleflight.Group
}

func NewScriptLoader(url string) *ScriptLoader {
	return &ScriptLoader{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

func (l *ScriptLoader) ScriptURL() string { return l.url }

func (l *ScriptLoader) EnsureLoaded(ctx context.Context) error {
	if l.loaded.Load() {
		return nil
	}
	// the shared fetch outlives any one caller; the client timeout bounds it
	fetchCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan("script", func() (any, error) {
		if l.loaded.Load() {
			return nil, nil
		}
		if err := l.fetch(fetchCtx); err != nil {
			return nil, err
		}
		l.loaded.Store(true)
		return nil, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return fmt.Errorf("%w: checkout script: %v", domain.ErrDependencyUnavailable, res.Err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: checkout script: %v", domain.ErrDependencyUnavailable, ctx.Err())
	}
}

func (l *ScriptLoader) fetch(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveRemoteCall("script", "load", start, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	return nil
}
