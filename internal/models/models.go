package models

import "time"

type AuthMode string

const (
	AuthModeOpen       AuthMode = "open"
	AuthModeEnterprise AuthMode = "enterprise"
)

type TenantStatus string

const (
	StatusActive    TenantStatus = "active"
	StatusTrial     TenantStatus = "trial"
	StatusInactive  TenantStatus = "inactive"
	StatusSuspended TenantStatus = "suspended"
	StatusCanceled  TenantStatus = "canceled"
)

// Eligible reports whether a tenant may use the gateway at all.
// Only active and trial tenants are served.
func (s TenantStatus) Eligible() bool {
	return s == StatusActive || s == StatusTrial
}

type Tenant struct {
	ID       string       `json:"id"`
	ClientID string       `json:"client_id"`
	Name     string       `json:"name"`
	Email    string       `json:"email"`
	Plan     string       `json:"plan"`
	AuthMode AuthMode     `json:"auth_mode"`
	Status   TenantStatus `json:"status"`

	// SiteKey is a public, low-entropy routing identifier. APIKey and
	// APISecret are the enterprise credentials; the secret is never sent
	// on the wire, only its HMAC derivative.
	SiteKey   string `json:"site_key"`
	APIKey    string `json:"api_key,omitempty"`
	APISecret string `json:"-"`

	AllowedOrigins []string `json:"allowed_origins"`

	RateLimit  int `json:"rate_limit"`  // requests per minute
	DailyQuota int `json:"daily_quota"` // requests per day
	DailyUsed  int `json:"daily_used"`  // informational; redis holds the live count

	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	LastRequestAt *time.Time `json:"last_request_at,omitempty"`
}

// AuditLog is one immutable record per completed request. The header map
// is scrubbed before storage: Authorization and Cookie values never persist.
type AuditLog struct {
	ID             string            `json:"id"`
	ClientID       string            `json:"client_id"`
	RequestID      string            `json:"request_id"`
	RequestMethod  string            `json:"request_method"`
	RequestPath    string            `json:"request_path"`
	RequestHeaders map[string]string `json:"request_headers"`
	RequestBody    string            `json:"request_body,omitempty"`
	IPAddress      string            `json:"ip_address"`
	UserAgent      string            `json:"user_agent"`
	Origin         string            `json:"origin"`
	AuthMode       AuthMode          `json:"auth_mode"`
	SiteKeyUsed    string            `json:"site_key_used"`
	APIKeyUsed     string            `json:"api_key_used,omitempty"`
	Success        bool              `json:"success"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}
