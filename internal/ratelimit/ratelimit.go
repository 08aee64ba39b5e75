// Package ratelimit enforces per-minute rate limits and daily quotas
// against the shared counter store. Counters are advisory-consistent:
// concurrent requests may race between read and increment, so a burst can
// transiently exceed the nominal limit before the first rejection lands.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/akirafn/commerce-gateway/internal/models"
)

const (
	rateWindow  = time.Minute
	quotaWindow = 24 * time.Hour
)

// CounterStore is the subset of counter operations the limiter needs.
type CounterStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	GetInt(ctx context.Context, key string) (int64, error)
}

type RateResult struct {
	Allowed bool
	Limit   int
	Current int64
	ResetIn int // seconds
}

type QuotaResult struct {
	Allowed bool
	Limit   int
	Used    int64
}

type Limiter struct {
	store CounterStore
	now   func() time.Time
}

func NewLimiter(store CounterStore) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// rateKey buckets by tenant and the minute the request lands in, so every
// request inside the same minute shares one counter.
func (l *Limiter) rateKey(tenantID string, t time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%d", tenantID, t.Unix()/60)
}

func (l *Limiter) quotaKey(tenantID string, t time.Time) string {
	return fmt.Sprintf("quota:%s:%s", tenantID, t.UTC().Format("2006-01-02"))
}

// AllowRate increments the tenant's current minute window and checks it
// against the configured limit. The counter is incremented even when the
// result is a rejection.
func (l *Limiter) AllowRate(ctx context.Context, tenant *models.Tenant) (*RateResult, error) {
	key := l.rateKey(tenant.ID, l.now())

	count, err := l.store.IncrWithTTL(ctx, key, rateWindow)
	if err != nil {
		return nil, err
	}

	return &RateResult{
		Allowed: count <= int64(tenant.RateLimit),
		Limit:   tenant.RateLimit,
		Current: count,
		ResetIn: int(rateWindow.Seconds()),
	}, nil
}

// AllowQuota checks the tenant's daily counter. At or above quota the
// counter is not incremented further, so repeated over-quota requests do
// not inflate the stored count.
func (l *Limiter) AllowQuota(ctx context.Context, tenant *models.Tenant) (*QuotaResult, error) {
	key := l.quotaKey(tenant.ID, l.now())

	used, err := l.store.GetInt(ctx, key)
	if err != nil {
		return nil, err
	}

	if used >= int64(tenant.DailyQuota) {
		return &QuotaResult{Allowed: false, Limit: tenant.DailyQuota, Used: used}, nil
	}

	used, err = l.store.IncrWithTTL(ctx, key, quotaWindow)
	if err != nil {
		return nil, err
	}

	return &QuotaResult{Allowed: true, Limit: tenant.DailyQuota, Used: used}, nil
}

// RemainingQuota reports how many requests the tenant has left today.
func (l *Limiter) RemainingQuota(ctx context.Context, tenant *models.Tenant) (int64, error) {
	used, err := l.store.GetInt(ctx, l.quotaKey(tenant.ID, l.now()))
	if err != nil {
		return 0, err
	}

	remaining := int64(tenant.DailyQuota) - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
