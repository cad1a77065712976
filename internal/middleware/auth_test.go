package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nekotv/core/internal/pkg/jwt"
	sessionpkg "github.com/nekotv/core/internal/pkg/session"
)

func newAuthTestRouter(t *testing.T) (*gin.Engine, *sessionpkg.Manager, *jwt.Codec) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mgr := sessionpkg.NewManager(sessionpkg.NewMemoryStore(), time.Hour, nil)
	codec := jwt.NewCodec("test-secret")

	r := gin.New()
	r.Use(OptionalAuth(mgr, codec))
	r.GET("/protected", Auth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"username": CurrentUsername(c),
			"role":     CurrentRole(c),
			"tokenId":  CurrentTokenID(c),
		})
	})
	r.GET("/open", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"authenticated": IsAuthenticated(c)})
	})
	return r, mgr, codec
}

func signedCredential(t *testing.T, mgr *sessionpkg.Manager, codec *jwt.Codec, username, role string) (string, string) {
	t.Helper()
	tok, err := mgr.Issue(context.Background(), username, "test device", "127.0.0.1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	cred, err := codec.Sign(username, role, tok.TokenID, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return cred, tok.TokenID
}

func TestAuthAcceptsHeaderCredential(t *testing.T) {
	r, mgr, codec := newAuthTestRouter(t)
	cred, _ := signedCredential(t, mgr, codec, "alice", "member")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+cred)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAuthAcceptsCookieCredential(t *testing.T) {
	r, mgr, codec := newAuthTestRouter(t)
	cred, _ := signedCredential(t, mgr, codec, "alice", "member")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: cred})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAuthRejectsMissingCredential(t *testing.T) {
	r, _, _ := newAuthTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthRejectsRevokedToken(t *testing.T) {
	r, mgr, codec := newAuthTestRouter(t)
	cred, tokenID := signedCredential(t, mgr, codec, "alice", "member")

	if _, err := mgr.RevokeOne(context.Background(), "alice", tokenID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+cred)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// Structurally valid signature, but the device token is gone.
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for revoked token, got %d", w.Code)
	}
}

func TestAuthRejectsForgedCredential(t *testing.T) {
	r, mgr, _ := newAuthTestRouter(t)
	forger := jwt.NewCodec("other-secret")

	tok, err := mgr.Issue(context.Background(), "alice", "device", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	cred, err := forger.Sign("alice", "member", tok.TokenID, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+cred)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for forged credential, got %d", w.Code)
	}
}

func TestOptionalAuthPassesThrough(t *testing.T) {
	r, _, _ := newAuthTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 without credential, got %d", w.Code)
	}
}

// countingStore records how many times the request path reads the
// token store.
type countingStore struct {
	sessionpkg.Store
	gets int
}

func (s *countingStore) Get(ctx context.Context, username, tokenID string) (*sessionpkg.Token, error) {
	s.gets++
	return s.Store.Get(ctx, username, tokenID)
}

func TestAuthResolvesCredentialOnce(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cs := &countingStore{Store: sessionpkg.NewMemoryStore()}
	mgr := sessionpkg.NewManager(cs, time.Hour, nil)
	codec := jwt.NewCodec("test-secret")

	r := gin.New()
	r.Use(OptionalAuth(mgr, codec))
	r.GET("/protected", Auth(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	cred, _ := signedCredential(t, mgr, codec, "alice", "member")
	cs.gets = 0

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+cred)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	// One Validate plus one Touch; a second resolver in the chain would
	// double that.
	if cs.gets > 2 {
		t.Fatalf("credential resolved more than once: %d store reads", cs.gets)
	}
}

func TestNormalizeToken(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"abc", "abc"},
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"  Bearer   abc  ", "abc"},
	}
	for _, tc := range cases {
		if got := NormalizeToken(tc.in); got != tc.want {
			t.Errorf("NormalizeToken(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
