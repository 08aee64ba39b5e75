package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akirafn/commerce-gateway/internal/models"
)

type fakeStore struct {
	counts    map[string]int64
	incrCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{counts: make(map[string]int64)}
}

func (s *fakeStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.incrCalls++
	s.counts[key]++
	return s.counts[key], nil
}

func (s *fakeStore) GetInt(ctx context.Context, key string) (int64, error) {
	return s.counts[key], nil
}

func testTenant() *models.Tenant {
	return &models.Tenant{ID: "tenant-1", RateLimit: 5, DailyQuota: 100}
}

func fixedLimiter(store CounterStore, at time.Time) *Limiter {
	l := NewLimiter(store)
	l.now = func() time.Time { return at }
	return l
}

func TestAllowRate_LimitOfFive(t *testing.T) {
	store := newFakeStore()
	l := fixedLimiter(store, time.Unix(1700000000, 0))
	tenant := testTenant()

	for i := 1; i <= 5; i++ {
		res, err := l.AllowRate(context.Background(), tenant)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d should pass", i)
	}

	res, err := l.AllowRate(context.Background(), tenant)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 5, res.Limit)
	assert.EqualValues(t, 6, res.Current)
	assert.Equal(t, 60, res.ResetIn)
}

func TestAllowRate_RequestsShareMinuteBucket(t *testing.T) {
	store := newFakeStore()
	base := time.Unix(1700000000, 0).Truncate(time.Minute)

	// Two calls 30s apart inside one minute hit the same counter; a call
	// in the next minute starts a fresh one.
	l := fixedLimiter(store, base)
	tenant := testTenant()
	l.AllowRate(context.Background(), tenant)

	l.now = func() time.Time { return base.Add(30 * time.Second) }
	res, err := l.AllowRate(context.Background(), tenant)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Current)

	l.now = func() time.Time { return base.Add(61 * time.Second) }
	res, err = l.AllowRate(context.Background(), tenant)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Current)
}

func TestAllowQuota_IncrementsBelowLimit(t *testing.T) {
	store := newFakeStore()
	l := fixedLimiter(store, time.Unix(1700000000, 0))

	res, err := l.AllowQuota(context.Background(), testTenant())
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.EqualValues(t, 1, res.Used)
}

func TestAllowQuota_AtLimitDoesNotIncrement(t *testing.T) {
	store := newFakeStore()
	at := time.Unix(1700000000, 0)
	l := fixedLimiter(store, at)
	tenant := testTenant()

	store.counts[l.quotaKey(tenant.ID, at)] = 100

	res, err := l.AllowQuota(context.Background(), tenant)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.EqualValues(t, 100, res.Used)
	assert.Equal(t, 0, store.incrCalls)

	// Repeated over-quota requests still read 100, never 101.
	res, err = l.AllowQuota(context.Background(), tenant)
	require.NoError(t, err)
	assert.EqualValues(t, 100, res.Used)
}

func TestRemainingQuota(t *testing.T) {
	store := newFakeStore()
	at := time.Unix(1700000000, 0)
	l := fixedLimiter(store, at)
	tenant := testTenant()

	store.counts[l.quotaKey(tenant.ID, at)] = 40
	remaining, err := l.RemainingQuota(context.Background(), tenant)
	require.NoError(t, err)
	assert.EqualValues(t, 60, remaining)

	store.counts[l.quotaKey(tenant.ID, at)] = 150
	remaining, err = l.RemainingQuota(context.Background(), tenant)
	require.NoError(t, err)
	assert.EqualValues(t, 0, remaining)
}

func TestQuotaKey_UTCDay(t *testing.T) {
	l := NewLimiter(newFakeStore())

	// 23:30 in UTC-3 is already the next day in UTC.
	loc := time.FixedZone("UTC-3", -3*60*60)
	at := time.Date(2026, 8, 30, 23, 30, 0, 0, loc)

	assert.Equal(t, "quota:tenant-1:2026-08-31", l.quotaKey("tenant-1", at))
}
