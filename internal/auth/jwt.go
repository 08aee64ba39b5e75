package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	TenantID string `json:"tenant_id"`
	SiteKey  string `json:"site_key"`
	jwt.RegisteredClaims
}

// GenerateToken issues a tenant-scoped token for the operational token
// endpoint. Gateway authentication itself never requires one.
func GenerateToken(tenantID, siteKey, secret string) (string, error) {
	claims := &Claims{
		TenantID: tenantID,
		SiteKey:  siteKey,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// VerifyToken decodes and verifies a bearer token against the process-wide
// secret. Only the configured algorithm is accepted.
func VerifyToken(tokenString, secret, algorithm string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{algorithm}))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
