// internal/auth/token.go
package auth

import (
	"fmt"
	"time"

	"github.com/dangerclosesec/orgmgr/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

type TokenManager struct {
	secret       []byte
	expiryPeriod time.Duration
}

func NewTokenManager(secret string, expiryPeriod time.Duration) *TokenManager {
	return &TokenManager{
		secret:       []byte(secret),
		expiryPeriod: expiryPeriod,
	}
}

// Identity is the set of facts embedded in an access token.
type Identity struct {
	AdminID          string
	Email            string
	OrganizationID   string
	OrganizationName string
}

// Claims carries the admin id in the registered "sub" claim.
type Claims struct {
	Email            string `json:"email"`
	OrganizationID   string `json:"organization_id"`
	OrganizationName string `json:"organization_name"`
	jwt.RegisteredClaims
}

// AdminID returns the subject of the token.
func (c *Claims) AdminID() string {
	return c.Subject
}

// ExpiryPeriod is the TTL applied by Generate.
func (tm *TokenManager) ExpiryPeriod() time.Duration {
	return tm.expiryPeriod
}

// Generate signs a token for id using the configured expiry period.
func (tm *TokenManager) Generate(id Identity) (string, time.Time, error) {
	return tm.GenerateWithTTL(id, tm.expiryPeriod)
}

func (tm *TokenManager) GenerateWithTTL(id Identity, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := Claims{
		Email:            id.Email,
		OrganizationID:   id.OrganizationID,
		OrganizationName: id.OrganizationName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.AdminID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate checks signature and expiry. Every failure is reported as
// domain.ErrInvalidToken so callers cannot tell expired from tampered.
func (tm *TokenManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, domain.ErrInvalidToken
	}

	return claims, nil
}
