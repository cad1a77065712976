package jwt

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const defaultSecret = "nekotv-secret-change-me"

// Claims is the JWT payload binding an account to one device token.
type Claims struct {
	Username string `json:"uid"`
	Role     string `json:"role"`
	TokenID  string `json:"sid"`
	jwtlib.RegisteredClaims
}

// Codec signs and verifies auth credentials with an HS256 secret.
// Session semantics never depend on the signature scheme: swap the
// Codec and the session layer is untouched.
type Codec struct {
	secret []byte
}

// NewCodec creates a Codec. An empty secret falls back to the built-in
// development secret.
func NewCodec(secret string) *Codec {
	if secret == "" {
		secret = defaultSecret
	}
	return &Codec{secret: []byte(secret)}
}

// Sign creates a signed credential for the given identity and token ID.
func (c *Codec) Sign(username, role, tokenID string, ttl time.Duration) (string, error) {
	claims := Claims{
		Username: username,
		Role:     role,
		TokenID:  tokenID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(time.Now()),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Parse validates a credential's structural integrity and returns the claims.
// Liveness of the embedded token ID is a separate, store-backed check.
func (c *Codec) Parse(tokenStr string) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
