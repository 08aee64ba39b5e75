package auth

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akirafn/commerce-gateway/internal/audit"
	"github.com/akirafn/commerce-gateway/internal/db"
	"github.com/akirafn/commerce-gateway/internal/metrics"
	"github.com/akirafn/commerce-gateway/internal/middleware"
	"github.com/akirafn/commerce-gateway/internal/models"
	"github.com/akirafn/commerce-gateway/internal/ratelimit"
)

type contextKey string

const (
	TenantContextKey contextKey = "tenant"
	UserClaimsKey    contextKey = "user_claims"
)

// BlockedIPSet is the counter-store set holding blocked addresses.
// Population is external; the gateway only reads it.
const BlockedIPSet = "blocked_ips"

// TenantDirectory resolves a site key to an eligible tenant.
// Implementations return db.ErrTenantNotFound when no match exists.
type TenantDirectory interface {
	FindBySiteKey(ctx context.Context, siteKey string) (*models.Tenant, error)
}

// Blocklist checks set membership in the counter store.
type Blocklist interface {
	IsMember(ctx context.Context, setKey, member string) (bool, error)
}

// Throttle is the rate/quota engine.
type Throttle interface {
	AllowRate(ctx context.Context, tenant *models.Tenant) (*ratelimit.RateResult, error)
	AllowQuota(ctx context.Context, tenant *models.Tenant) (*ratelimit.QuotaResult, error)
	RemainingQuota(ctx context.Context, tenant *models.Tenant) (int64, error)
}

// AuditRecorder receives one entry per authorized request.
type AuditRecorder interface {
	Record(entry *models.AuditLog)
}

// LastRequestToucher is the advisory last-request timestamp update.
type LastRequestToucher interface {
	TouchLastRequest(ctx context.Context, id string, at time.Time) error
}

// Middleware is the gateway's single entry point. All dependencies are
// constructed at startup and injected; the middleware holds no lazily
// initialized state.
type Middleware struct {
	directory TenantDirectory
	blocklist Blocklist
	throttle  Throttle
	recorder  AuditRecorder
	toucher   LastRequestToucher
	validator *ModeValidator
	logger    *zap.Logger
	metrics   *metrics.GatewayMetrics

	appID      string
	apiVersion string
	upgradeURL string

	now func() time.Time
}

type MiddlewareConfig struct {
	Directory TenantDirectory
	Blocklist Blocklist
	Throttle  Throttle
	Recorder  AuditRecorder
	Toucher   LastRequestToucher
	Validator *ModeValidator
	Logger    *zap.Logger
	Metrics   *metrics.GatewayMetrics

	AppID      string
	APIVersion string
	UpgradeURL string
}

func NewMiddleware(cfg MiddlewareConfig) *Middleware {
	return &Middleware{
		directory:  cfg.Directory,
		blocklist:  cfg.Blocklist,
		throttle:   cfg.Throttle,
		recorder:   cfg.Recorder,
		toucher:    cfg.Toucher,
		validator:  cfg.Validator,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		appID:      cfg.AppID,
		apiVersion: cfg.APIVersion,
		upgradeURL: cfg.UpgradeURL,
		now:        time.Now,
	}
}

// Secure runs the gate chain for every request except pre-flight. The
// first failing gate short-circuits; downstream handlers only ever see
// requests carrying a resolved tenant in their context.
func (m *Middleware) Secure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		clientIP := ClientIP(r)

		blocked, err := m.blocklist.IsMember(ctx, BlockedIPSet, clientIP)
		if err != nil {
			m.fail(w, r, NewAPIError(http.StatusInternalServerError, "blocklist check failed"), "dependency")
			return
		}
		if blocked {
			m.fail(w, r, NewAPIError(http.StatusForbidden, "IP blocked for suspicious activity"), "blocked_ip")
			return
		}

		siteKey := r.Header.Get(HeaderSiteKey)
		if siteKey == "" {
			m.fail(w, r, NewAPIError(http.StatusUnauthorized, "site key is required"), "missing_site_key")
			return
		}

		tenant, err := m.directory.FindBySiteKey(ctx, siteKey)
		if err != nil {
			if errors.Is(err, db.ErrTenantNotFound) {
				m.fail(w, r, NewAPIError(http.StatusForbidden, "invalid site key"), "invalid_site_key")
			} else {
				m.logger.Error("tenant lookup failed", zap.Error(err))
				m.fail(w, r, NewAPIError(http.StatusInternalServerError, "tenant lookup failed"), "dependency")
			}
			return
		}

		// The body participates in signature checks and the audit record,
		// so it is read once here and restored for the handler.
		var body []byte
		if r.Body != nil {
			body, err = io.ReadAll(r.Body)
			if err != nil {
				m.fail(w, r, NewAPIError(http.StatusInternalServerError, "failed to read request body"), "dependency")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		var claims jwt.MapClaims
		var apiErr *APIError
		switch tenant.AuthMode {
		case models.AuthModeEnterprise:
			claims, apiErr = m.validator.ValidateEnterprise(r, tenant, body)
		default:
			apiErr = m.validator.ValidateOpen(r, tenant)
		}
		if apiErr != nil {
			m.fail(w, r, apiErr, "auth")
			return
		}

		rate, err := m.throttle.AllowRate(ctx, tenant)
		if err != nil {
			m.logger.Error("rate limit check failed", zap.Error(err))
			m.fail(w, r, NewAPIError(http.StatusInternalServerError, "rate limit check failed"), "dependency")
			return
		}
		if !rate.Allowed {
			m.fail(w, r, &APIError{
				Status:  http.StatusTooManyRequests,
				Message: "rate limit exceeded",
				Detail: RateLimitExceeded{
					Error:   "rate limit exceeded",
					Limit:   rate.Limit,
					Current: rate.Current,
					ResetIn: rate.ResetIn,
				},
			}, "rate_limit")
			return
		}

		quota, err := m.throttle.AllowQuota(ctx, tenant)
		if err != nil {
			m.logger.Error("quota check failed", zap.Error(err))
			m.fail(w, r, NewAPIError(http.StatusInternalServerError, "quota check failed"), "dependency")
			return
		}
		if !quota.Allowed {
			m.fail(w, r, &APIError{
				Status:  http.StatusTooManyRequests,
				Message: "daily quota exceeded",
				Detail: QuotaExceeded{
					Error:   "daily quota exceeded",
					Limit:   quota.Limit,
					Reset:   "tomorrow",
					Upgrade: m.upgradeURL,
				},
			}, "quota")
			return
		}

		ctx = context.WithValue(ctx, TenantContextKey, tenant)
		if claims != nil {
			ctx = context.WithValue(ctx, UserClaimsKey, claims)
		}

		requestID := middleware.RequestIDFromContext(ctx)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		// Audit is fire-and-forget relative to the response.
		entry := audit.BuildEntry(r, body, tenant, requestID, clientIP, m.now())
		go m.recorder.Record(entry)

		if m.toucher != nil {
			go func() {
				touchCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = m.toucher.TouchLastRequest(touchCtx, tenant.ID, m.now())
			}()
		}

		remaining, err := m.throttle.RemainingQuota(ctx, tenant)
		if err != nil {
			m.logger.Warn("remaining quota read failed", zap.Error(err))
		}

		h := w.Header()
		h.Set("X-App-ID", m.appID)
		h.Set("X-API-Version", m.apiVersion)
		h.Set("X-RateLimit-Limit", strconv.Itoa(tenant.RateLimit))
		h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) fail(w http.ResponseWriter, r *http.Request, apiErr *APIError, reason string) {
	m.metrics.RecordRejection(reason)
	m.logger.Info("request rejected",
		zap.String("reason", reason),
		zap.Int("status", apiErr.Status),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
	WriteError(w, apiErr)
}

// GetTenantFromContext returns the tenant resolved by the gateway.
func GetTenantFromContext(ctx context.Context) (*models.Tenant, bool) {
	tenant, ok := ctx.Value(TenantContextKey).(*models.Tenant)
	return tenant, ok
}

// GetUserClaims returns the optional user-level identity from an
// enterprise bearer token.
func GetUserClaims(ctx context.Context) (jwt.MapClaims, bool) {
	claims, ok := ctx.Value(UserClaimsKey).(jwt.MapClaims)
	return claims, ok
}

// ClientIP resolves the caller's address, honoring proxy headers.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if i := strings.Index(forwarded, ","); i >= 0 {
			return strings.TrimSpace(forwarded[:i])
		}
		return strings.TrimSpace(forwarded)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
