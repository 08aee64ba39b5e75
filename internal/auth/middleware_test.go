package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akirafn/commerce-gateway/internal/db"
	"github.com/akirafn/commerce-gateway/internal/models"
	"github.com/akirafn/commerce-gateway/internal/ratelimit"
)

type stubDirectory struct {
	tenant *models.Tenant
	err    error
	calls  int
}

func (d *stubDirectory) FindBySiteKey(ctx context.Context, siteKey string) (*models.Tenant, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.tenant, nil
}

type stubBlocklist struct {
	blocked bool
	err     error
}

func (b *stubBlocklist) IsMember(ctx context.Context, setKey, member string) (bool, error) {
	return b.blocked, b.err
}

type stubThrottle struct {
	rate      *ratelimit.RateResult
	quota     *ratelimit.QuotaResult
	remaining int64
}

func (t *stubThrottle) AllowRate(ctx context.Context, tenant *models.Tenant) (*ratelimit.RateResult, error) {
	return t.rate, nil
}

func (t *stubThrottle) AllowQuota(ctx context.Context, tenant *models.Tenant) (*ratelimit.QuotaResult, error) {
	return t.quota, nil
}

func (t *stubThrottle) RemainingQuota(ctx context.Context, tenant *models.Tenant) (int64, error) {
	return t.remaining, nil
}

type stubRecorder struct {
	mu      sync.Mutex
	entries []*models.AuditLog
}

func (r *stubRecorder) Record(entry *models.AuditLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *stubRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *stubRecorder) last() *models.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[len(r.entries)-1]
}

type gatewayFixture struct {
	directory *stubDirectory
	blocklist *stubBlocklist
	throttle  *stubThrottle
	recorder  *stubRecorder
	mw        *Middleware
}

func newGateway(tenant *models.Tenant) *gatewayFixture {
	f := &gatewayFixture{
		directory: &stubDirectory{tenant: tenant},
		blocklist: &stubBlocklist{},
		throttle: &stubThrottle{
			rate:      &ratelimit.RateResult{Allowed: true, Limit: 60, Current: 1, ResetIn: 60},
			quota:     &ratelimit.QuotaResult{Allowed: true, Limit: 1000, Used: 1},
			remaining: 999,
		},
		recorder: &stubRecorder{},
	}

	f.mw = NewMiddleware(MiddlewareConfig{
		Directory:  f.directory,
		Blocklist:  f.blocklist,
		Throttle:   f.throttle,
		Recorder:   f.recorder,
		Validator:  newValidator(),
		Logger:     zap.NewNop(),
		AppID:      "app-1",
		APIVersion: "v1",
		UpgradeURL: "https://example.test/upgrade",
	})
	return f
}

func openRequest(tenant *models.Tenant) *http.Request {
	r := httptest.NewRequest("GET", "/api/v1/products", nil)
	r.Header.Set(HeaderSiteKey, tenant.SiteKey)
	r.Header.Set(HeaderTimestamp, freshTimestamp())
	return r
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if called != nil {
			*called = true
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestSecure_OptionsBypassesAllGates(t *testing.T) {
	tenant := openTenant()
	f := newGateway(tenant)

	var called bool
	r := httptest.NewRequest(http.MethodOptions, "/api/v1/products", nil)
	w := httptest.NewRecorder()
	f.mw.Secure(okHandler(&called)).ServeHTTP(w, r)

	assert.True(t, called)
	assert.Equal(t, 0, f.directory.calls)
}

func TestSecure_BlockedIPRejectedBeforeLookup(t *testing.T) {
	tenant := openTenant()
	f := newGateway(tenant)
	f.blocklist.blocked = true

	w := httptest.NewRecorder()
	f.mw.Secure(okHandler(nil)).ServeHTTP(w, openRequest(tenant))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 0, f.directory.calls)
}

func TestSecure_MissingSiteKey(t *testing.T) {
	f := newGateway(openTenant())

	r := httptest.NewRequest("GET", "/api/v1/products", nil)
	w := httptest.NewRecorder()
	f.mw.Secure(okHandler(nil)).ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSecure_UnknownSiteKey(t *testing.T) {
	tenant := openTenant()
	f := newGateway(tenant)
	f.directory.err = db.ErrTenantNotFound

	w := httptest.NewRecorder()
	f.mw.Secure(okHandler(nil)).ServeHTTP(w, openRequest(tenant))

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSecure_DirectoryOutageFailsClosed(t *testing.T) {
	tenant := openTenant()
	f := newGateway(tenant)
	f.directory.err = assert.AnError

	w := httptest.NewRecorder()
	f.mw.Secure(okHandler(nil)).ServeHTTP(w, openRequest(tenant))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSecure_SuccessAttachesTenantAndHeaders(t *testing.T) {
	tenant := openTenant()
	tenant.SiteKey = "site_abc"
	tenant.RateLimit = 60
	f := newGateway(tenant)

	var gotTenant *models.Tenant
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTenant, _ = GetTenantFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	f.mw.Secure(next).ServeHTTP(w, openRequest(tenant))

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, gotTenant)
	assert.Equal(t, tenant.ID, gotTenant.ID)

	assert.Equal(t, "app-1", w.Header().Get("X-App-ID"))
	assert.Equal(t, "v1", w.Header().Get("X-API-Version"))
	assert.Equal(t, "60", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "999", w.Header().Get("X-RateLimit-Remaining"))
}

func TestSecure_RateLimited(t *testing.T) {
	tenant := openTenant()
	tenant.RateLimit = 5
	f := newGateway(tenant)
	f.throttle.rate = &ratelimit.RateResult{Allowed: false, Limit: 5, Current: 6, ResetIn: 60}

	var called bool
	w := httptest.NewRecorder()
	f.mw.Secure(okHandler(&called)).ServeHTTP(w, openRequest(tenant))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.False(t, called)
	assert.Contains(t, w.Body.String(), `"limit":5`)
	assert.Contains(t, w.Body.String(), `"current":6`)
	assert.Contains(t, w.Body.String(), `"reset_in":60`)
}

func TestSecure_QuotaExceeded(t *testing.T) {
	tenant := openTenant()
	f := newGateway(tenant)
	f.throttle.quota = &ratelimit.QuotaResult{Allowed: false, Limit: 100, Used: 100}

	w := httptest.NewRecorder()
	f.mw.Secure(okHandler(nil)).ServeHTTP(w, openRequest(tenant))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), `"upgrade"`)
}

func TestSecure_AuditRecordedOnceAndScrubbed(t *testing.T) {
	tenant := openTenant()
	f := newGateway(tenant)

	r := openRequest(tenant)
	r.Header.Set("Authorization", "Bearer super-secret")
	r.Header.Set("Cookie", "session=abc")
	r.Header.Set("User-Agent", "test-agent")

	// Downstream failure must not suppress the audit record.
	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	f.mw.Secure(failing).ServeHTTP(w, r)

	assert.Eventually(t, func() bool { return f.recorder.count() == 1 }, time.Second, 10*time.Millisecond)

	entry := f.recorder.last()
	assert.Equal(t, tenant.ID, entry.ClientID)
	assert.Equal(t, "test-agent", entry.RequestHeaders["User-Agent"])
	assert.NotContains(t, entry.RequestHeaders, "Authorization")
	assert.NotContains(t, entry.RequestHeaders, "Cookie")
	assert.NotEmpty(t, entry.RequestID)
}

func TestSecure_IneligibleTenantNeverResolved(t *testing.T) {
	// The directory contract only returns active/trial tenants; anything
	// else surfaces as not-found and is rejected with 403.
	tenant := openTenant()
	f := newGateway(tenant)
	f.directory.err = db.ErrTenantNotFound

	r := openRequest(tenant)
	r.Header.Set(HeaderAPIKey, "ak_valid")
	w := httptest.NewRecorder()
	f.mw.Secure(okHandler(nil)).ServeHTTP(w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:4321"
	assert.Equal(t, "10.0.0.1", ClientIP(r))

	r.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "10.0.0.3, 10.0.0.4")
	assert.Equal(t, "10.0.0.3", ClientIP(r))
}
