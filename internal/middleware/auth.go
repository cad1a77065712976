package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nekotv/core/internal/models"
	"github.com/nekotv/core/internal/pkg/jwt"
	"github.com/nekotv/core/internal/pkg/response"
	sessionpkg "github.com/nekotv/core/internal/pkg/session"
)

const (
	ContextKeyUsername = "auth_username"
	ContextKeyRole     = "auth_role"
	ContextKeyTokenID  = "auth_token_id"

	// CookieName carries the signed credential in browser clients.
	CookieName = "auth"
)

// Auth returns a middleware that rejects requests without an
// established identity. It does not resolve credentials itself:
// OptionalAuth earlier in the chain is the single resolution point,
// so a request hits the token store once, not once per middleware.
// Any resolution failure collapses to a uniform 401, never a partial
// identity.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAuthenticated(c) {
			response.Unauthorized(c)
			return
		}
		c.Next()
	}
}

// OptionalAuth resolves the request's credential and sets the identity
// if it is valid. It never blocks the request; Auth downstream does
// the gating.
func OptionalAuth(mgr *sessionpkg.Manager, codec *jwt.Codec) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := ResolveClaims(c, mgr, codec); err == nil {
			setIdentity(c, claims)
			// Best-effort; a failed touch never downgrades the request.
			mgr.Touch(c.Request.Context(), claims.Username, claims.TokenID)
		}
		c.Next()
	}
}

// ResolveClaims validates the request's credential end to end: carrier
// extraction, structural verification, then store-backed liveness.
func ResolveClaims(c *gin.Context, mgr *sessionpkg.Manager, codec *jwt.Codec) (*jwt.Claims, error) {
	token := ExtractCredential(c)
	if token == "" {
		return nil, sessionpkg.ErrTokenInvalid
	}
	claims, err := codec.Parse(token)
	if err != nil {
		return nil, err
	}
	if _, err := mgr.Validate(c.Request.Context(), claims.Username, claims.TokenID); err != nil {
		return nil, err
	}
	return claims, nil
}

func setIdentity(c *gin.Context, claims *jwt.Claims) {
	c.Set(ContextKeyUsername, claims.Username)
	c.Set(ContextKeyRole, claims.Role)
	c.Set(ContextKeyTokenID, claims.TokenID)
}

// ExtractCredential pulls the raw credential from the request carrier:
// Authorization header, auth cookie, then token query parameter.
func ExtractCredential(c *gin.Context) string {
	if token := NormalizeToken(c.GetHeader("Authorization")); token != "" {
		return token
	}
	if raw, err := c.Cookie(CookieName); err == nil {
		if token := NormalizeToken(raw); token != "" {
			return token
		}
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken trims spaces and strips an optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}

// CurrentUsername extracts the authenticated username from context.
func CurrentUsername(c *gin.Context) string {
	v, _ := c.Get(ContextKeyUsername)
	username, _ := v.(string)
	return username
}

// CurrentRole extracts the authenticated account role from context.
func CurrentRole(c *gin.Context) string {
	v, _ := c.Get(ContextKeyRole)
	role, _ := v.(string)
	return role
}

// CurrentTokenID extracts the current device's token ID from context.
func CurrentTokenID(c *gin.Context) string {
	v, _ := c.Get(ContextKeyTokenID)
	id, _ := v.(string)
	return id
}

// IsAuthenticated returns true if the request has a valid credential.
func IsAuthenticated(c *gin.Context) bool {
	return CurrentUsername(c) != ""
}

// IsOwner returns true if the authenticated account is the site owner.
func IsOwner(c *gin.Context) bool {
	return CurrentRole(c) == models.RoleOwner
}
