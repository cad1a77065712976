package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTTL is the refresh-token lifetime when none is configured.
const DefaultTTL = 30 * 24 * time.Hour

const tokenIDBytes = 20

// ErrTokenInvalid covers absent, revoked and expired tokens uniformly,
// so callers cannot tell the cases apart.
var ErrTokenInvalid = errors.New("session: token invalid")

// Manager issues, validates, lists and revokes per-device refresh
// tokens on top of a Store. Safe for concurrent use; all shared state
// lives in the Store.
type Manager struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewManager creates a Manager. ttl <= 0 selects DefaultTTL.
func NewManager(store Store, ttl time.Duration, logger *zap.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, ttl: ttl, logger: logger.Named("SessionManager")}
}

// TTL returns the configured token lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue creates a new device token for the user and persists it.
// Two concurrent logins both succeed and produce distinct tokens.
func (m *Manager) Issue(ctx context.Context, username, deviceLabel, ip string) (*Token, error) {
	if strings.TrimSpace(username) == "" {
		return nil, errors.New("session: username is required")
	}

	id, err := generateTokenID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	t := Token{
		Username:    username,
		TokenID:     id,
		DeviceLabel: strings.TrimSpace(deviceLabel),
		IP:          strings.TrimSpace(ip),
		IssuedAt:    now,
		LastSeenAt:  now,
		ExpiresAt:   now.Add(m.ttl),
	}
	if err := m.store.Put(ctx, t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate is the liveness gate every authenticated request passes
// through. Absent, revoked and expired records all return
// ErrTokenInvalid; store I/O failures propagate as themselves.
func (m *Manager) Validate(ctx context.Context, username, tokenID string) (*Token, error) {
	if username == "" || tokenID == "" {
		return nil, ErrTokenInvalid
	}
	t, err := m.store.Get(ctx, username, tokenID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	if t.Expired(time.Now()) {
		return nil, ErrTokenInvalid
	}
	return t, nil
}

// Touch refreshes LastSeenAt. Best-effort: failures are logged and
// never surface to the request that triggered the touch.
func (m *Manager) Touch(ctx context.Context, username, tokenID string) {
	t, err := m.store.Get(ctx, username, tokenID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.logger.Debug("touch: get failed", zap.String("username", username), zap.Error(err))
		}
		return
	}
	if t.Expired(time.Now()) {
		return
	}
	t.LastSeenAt = time.Now()
	if err := m.store.Put(ctx, *t); err != nil {
		m.logger.Debug("touch: put failed", zap.String("username", username), zap.Error(err))
	}
}

// ListDevices returns the user's live tokens, most recently issued
// first. Expired-but-unpurged records are filtered out, as is any
// record whose stored username disagrees with the requested one (a
// store must never leak a neighboring namespace, but the manager does
// not rely on that alone).
func (m *Manager) ListDevices(ctx context.Context, username string) ([]Token, error) {
	all, err := m.store.ListByUser(ctx, username)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	live := make([]Token, 0, len(all))
	for _, t := range all {
		if t.Username != username || t.Expired(now) {
			continue
		}
		live = append(live, t)
	}
	return live, nil
}

// RevokeOne deletes exactly the named record. Idempotent: revoking an
// absent token returns (false, nil), never an error.
func (m *Manager) RevokeOne(ctx context.Context, username, tokenID string) (bool, error) {
	if username == "" || tokenID == "" {
		return false, nil
	}
	return m.store.Delete(ctx, username, tokenID)
}

// RevokeResult reports the outcome of a mass revocation.
type RevokeResult struct {
	Attempted int
	Revoked   int
	Errs      []error
}

// Err aggregates per-record failures, nil when all deletions succeeded.
func (r RevokeResult) Err() error {
	if len(r.Errs) == 0 {
		return nil
	}
	return fmt.Errorf("session: revoked %d of %d tokens: %w",
		r.Revoked, r.Attempted, errors.Join(r.Errs...))
}

// RevokeAllExcept deletes every token of the user except keepTokenID
// (all of them when keepTokenID is empty). Each deletion is independent
// and order-insensitive: a failing record does not abort the batch.
// The returned error covers enumeration only; per-record failures are
// collected in the result for the caller to log, retry or ignore.
func (m *Manager) RevokeAllExcept(ctx context.Context, username, keepTokenID string) (RevokeResult, error) {
	tokens, err := m.store.ListByUser(ctx, username)
	if err != nil {
		return RevokeResult{}, err
	}

	var res RevokeResult
	for _, t := range tokens {
		if t.Username != username {
			continue
		}
		if keepTokenID != "" && t.TokenID == keepTokenID {
			continue
		}
		res.Attempted++
		ok, err := m.store.Delete(ctx, username, t.TokenID)
		if err != nil {
			res.Errs = append(res.Errs, fmt.Errorf("token %s: %w", t.TokenID, err))
			continue
		}
		if ok {
			res.Revoked++
		}
	}
	return res, nil
}

// PurgeExpired sweeps expired records if the backing store supports it.
func (m *Manager) PurgeExpired(ctx context.Context) (int, error) {
	purger, ok := m.store.(expiredPurger)
	if !ok {
		return 0, nil
	}
	return purger.PurgeExpired(ctx, time.Now())
}

func generateTokenID() (string, error) {
	b := make([]byte, tokenIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: generate token id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
