package auth

import (
	"context"
	"time"

	"github.com/nekotv/core/internal/modules/auth/user"
	jwtpkg "github.com/nekotv/core/internal/pkg/jwt"
	sessionpkg "github.com/nekotv/core/internal/pkg/session"
	"go.uber.org/zap"
)

type Service struct {
	users    *user.Service
	sessions *sessionpkg.Manager
	codec    *jwtpkg.Codec
	logger   *zap.Logger
}

func NewService(users *user.Service, sessions *sessionpkg.Manager, codec *jwtpkg.Codec, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, sessions: sessions, codec: codec, logger: logger.Named("AuthService")}
}

// Login verifies the password, issues a device token and returns the
// signed credential to embed in the cookie/bearer carrier.
func (s *Service) Login(ctx context.Context, username, password, ip, ua string) (string, *sessionpkg.Token, error) {
	u, err := s.users.GetByUsername(username)
	if err != nil {
		return "", nil, err
	}
	if u == nil {
		time.Sleep(3 * time.Second)
		return "", nil, errAuthUserNotFound
	}
	if err := s.users.VerifyPassword(u, password); err != nil {
		time.Sleep(3 * time.Second)
		return "", nil, errAuthWrongPassword
	}

	t, err := s.sessions.Issue(ctx, u.Username, ua, ip)
	if err != nil {
		return "", nil, err
	}

	cred, err := s.codec.Sign(u.Username, u.Role, t.TokenID, s.sessions.TTL())
	if err != nil {
		// Don't leave an orphaned record behind a credential that never existed.
		_, _ = s.sessions.RevokeOne(ctx, u.Username, t.TokenID)
		return "", nil, err
	}

	s.users.RecordLogin(u.Username, ip)
	return cred, t, nil
}

// Logout revokes the device token carried by the raw credential.
// Always succeeds from the caller's perspective: an unparsable or
// already-dead credential just means there is nothing to revoke.
func (s *Service) Logout(ctx context.Context, rawCredential string) {
	if rawCredential == "" {
		return
	}
	claims, err := s.codec.Parse(rawCredential)
	if err != nil || claims.Username == "" || claims.TokenID == "" {
		return
	}
	if _, err := s.sessions.RevokeOne(ctx, claims.Username, claims.TokenID); err != nil {
		s.logger.Warn("logout: revoke failed",
			zap.String("username", claims.Username), zap.Error(err))
	}
}

// ChangePassword updates the credential material, then revokes every
// other device. The password update is the primary operation: a
// revocation shortfall is logged, never propagated.
func (s *Service) ChangePassword(ctx context.Context, username, currentTokenID, newPassword string) error {
	if err := s.users.UpdatePassword(username, newPassword); err != nil {
		return err
	}

	res, err := s.sessions.RevokeAllExcept(ctx, username, currentTokenID)
	if err != nil {
		s.logger.Warn("password changed but device enumeration failed",
			zap.String("username", username), zap.Error(err))
		return nil
	}
	if rerr := res.Err(); rerr != nil {
		s.logger.Warn("password changed, some devices not revoked",
			zap.String("username", username),
			zap.Int("revoked", res.Revoked),
			zap.Int("attempted", res.Attempted),
			zap.Error(rerr))
		return nil
	}
	s.logger.Info("password changed",
		zap.String("username", username), zap.Int("devices_revoked", res.Revoked))
	return nil
}
