package auth

import (
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/akirafn/commerce-gateway/internal/models"
)

// Header names the gateway consumes. Lookup through http.Header is
// case-insensitive.
const (
	HeaderSiteKey   = "X-Site-Key"
	HeaderTimestamp = "X-Timestamp"
	HeaderAPIKey    = "X-API-Key"
	HeaderSignature = "X-Signature"
)

// ModeValidator executes the credential-validation protocol matching a
// tenant's auth mode.
type ModeValidator struct {
	JWTSecret    string
	JWTAlgorithm string
	HMACExpiry   time.Duration // enterprise replay window
	OpenSkew     time.Duration // open-mode staleness window

	Now func() time.Time
}

func (v *ModeValidator) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// checkFreshness rejects timestamps whose absolute skew from server time
// exceeds window. Skew exactly at the window boundary is accepted.
func (v *ModeValidator) checkFreshness(header string, window time.Duration) *APIError {
	ts, err := strconv.ParseInt(header, 10, 64)
	if err != nil {
		return NewAPIError(http.StatusForbidden, "invalid timestamp")
	}

	skew := v.now().Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if skew > int64(window.Seconds()) {
		return NewAPIError(http.StatusForbidden, "request expired")
	}
	return nil
}

// ValidateOpen checks origin membership and timestamp freshness. No
// signature is required: origin plus freshness is the whole guarantee for
// lower-trust public clients.
func (v *ModeValidator) ValidateOpen(r *http.Request, tenant *models.Tenant) *APIError {
	if len(tenant.AllowedOrigins) > 0 {
		origin := r.Header.Get("Origin")
		if !contains(tenant.AllowedOrigins, origin) {
			return NewAPIError(http.StatusForbidden, "origin not allowed")
		}
	}

	timestamp := r.Header.Get(HeaderTimestamp)
	if timestamp == "" {
		return NewAPIError(http.StatusForbidden, "missing timestamp header")
	}
	return v.checkFreshness(timestamp, v.OpenSkew)
}

// ValidateEnterprise checks the API key, the HMAC signature over
// "<timestamp>:<body>", the replay window, and an optional bearer token.
// Decoded bearer claims are returned for context attachment.
func (v *ModeValidator) ValidateEnterprise(r *http.Request, tenant *models.Tenant, body []byte) (jwt.MapClaims, *APIError) {
	apiKey := r.Header.Get(HeaderAPIKey)
	if apiKey == "" || apiKey != tenant.APIKey {
		return nil, NewAPIError(http.StatusUnauthorized, "invalid API key")
	}

	signature := r.Header.Get(HeaderSignature)
	timestamp := r.Header.Get(HeaderTimestamp)
	if signature == "" || timestamp == "" {
		return nil, NewAPIError(http.StatusUnauthorized, "HMAC signature required")
	}

	if apiErr := v.checkFreshness(timestamp, v.HMACExpiry); apiErr != nil {
		return nil, apiErr
	}

	payload := "{}"
	if len(body) > 0 {
		payload = string(body)
	}

	expected := SignHMAC(tenant.APISecret, timestamp+":"+payload)
	if !ValidSignature(expected, signature) {
		return nil, NewAPIError(http.StatusForbidden, "invalid HMAC signature")
	}

	// Optional user-level identity layered atop tenant-level identity.
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, nil
	}

	token := authHeader
	if len(token) > 7 && token[:7] == "Bearer " {
		token = token[7:]
	}
	claims, err := VerifyToken(token, v.JWTSecret, v.JWTAlgorithm)
	if err != nil {
		return nil, NewAPIError(http.StatusUnauthorized, "invalid JWT token")
	}
	return claims, nil
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
