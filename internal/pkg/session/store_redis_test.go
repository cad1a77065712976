package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisTestStore(t *testing.T) Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb)
}

func liveToken(username, tokenID string, issuedAt time.Time) Token {
	return Token{
		Username:   username,
		TokenID:    tokenID,
		IssuedAt:   issuedAt,
		LastSeenAt: issuedAt,
		ExpiresAt:  time.Now().Add(time.Hour),
	}
}

func TestRedisStorePutGet(t *testing.T) {
	ctx := context.Background()
	s := newRedisTestStore(t)

	want := liveToken("alice", "tok1", time.Now())
	want.DeviceLabel = "Firefox on macOS"
	want.IP = "10.0.0.1"
	if err := s.Put(ctx, want); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Get(ctx, "alice", "tok1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Username != "alice" || got.TokenID != "tok1" || got.DeviceLabel != want.DeviceLabel || got.IP != want.IP {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}

	if _, err := s.Get(ctx, "alice", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisStorePutOverwrites(t *testing.T) {
	ctx := context.Background()
	s := newRedisTestStore(t)

	tok := liveToken("alice", "tok1", time.Now())
	if err := s.Put(ctx, tok); err != nil {
		t.Fatalf("put: %v", err)
	}
	tok.DeviceLabel = "renamed"
	if err := s.Put(ctx, tok); err != nil {
		t.Fatalf("second put: %v", err)
	}

	got, err := s.Get(ctx, "alice", "tok1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DeviceLabel != "renamed" {
		t.Fatalf("overwrite lost: %+v", got)
	}
	tokens, err := s.ListByUser(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tokens) != 1 {
		t.Fatalf("expected 1 record after overwrite, got %d", len(tokens))
	}
}

func TestRedisStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := newRedisTestStore(t)

	if err := s.Put(ctx, liveToken("alice", "tok1", time.Now())); err != nil {
		t.Fatalf("put: %v", err)
	}

	ok, err := s.Delete(ctx, "alice", "tok1")
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if ok, err := s.Delete(ctx, "alice", "tok1"); err != nil || ok {
		t.Fatalf("second delete should be a no-op: ok=%v err=%v", ok, err)
	}
	if _, err := s.Get(ctx, "alice", "tok1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	tokens, err := s.ListByUser(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tokens) != 0 {
		t.Fatalf("deleted record still listed: %+v", tokens)
	}
}

func TestRedisStoreListOrder(t *testing.T) {
	ctx := context.Background()
	s := newRedisTestStore(t)

	base := time.Now()
	for i, id := range []string{"oldest", "middle", "newest"} {
		if err := s.Put(ctx, liveToken("alice", id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}

	tokens, err := s.ListByUser(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("expected 3 records, got %d", len(tokens))
	}
	for i, want := range []string{"newest", "middle", "oldest"} {
		if tokens[i].TokenID != want {
			t.Fatalf("position %d: got %q, want %q", i, tokens[i].TokenID, want)
		}
	}
}

func TestRedisStoreDeleteAllByUser(t *testing.T) {
	ctx := context.Background()
	s := newRedisTestStore(t)

	now := time.Now()
	_ = s.Put(ctx, liveToken("alice", "a1", now))
	_ = s.Put(ctx, liveToken("alice", "a2", now))
	_ = s.Put(ctx, liveToken("bob", "b1", now))

	n, err := s.DeleteAllByUser(ctx, "alice")
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}

	if tokens, _ := s.ListByUser(ctx, "alice"); len(tokens) != 0 {
		t.Fatalf("alice still has records: %+v", tokens)
	}
	if _, err := s.Get(ctx, "bob", "b1"); err != nil {
		t.Fatalf("bob's record must survive: %v", err)
	}
}

func TestRedisStoreExpiredPutRemoves(t *testing.T) {
	ctx := context.Background()
	s := newRedisTestStore(t)

	tok := liveToken("alice", "tok1", time.Now())
	if err := s.Put(ctx, tok); err != nil {
		t.Fatalf("put: %v", err)
	}
	tok.ExpiresAt = time.Now().Add(-time.Minute)
	if err := s.Put(ctx, tok); err != nil {
		t.Fatalf("expired put: %v", err)
	}

	if _, err := s.Get(ctx, "alice", "tok1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired record gone, got %v", err)
	}
	if tokens, _ := s.ListByUser(ctx, "alice"); len(tokens) != 0 {
		t.Fatalf("expired record still listed: %+v", tokens)
	}
}

// A username containing the key separator must not nest inside a
// neighboring namespace.
func TestRedisStoreColonUsernameIsolation(t *testing.T) {
	ctx := context.Background()
	s := newRedisTestStore(t)

	now := time.Now()
	_ = s.Put(ctx, liveToken("alice", "a1", now))
	_ = s.Put(ctx, liveToken("alice:work", "w1", now))

	tokens, err := s.ListByUser(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tokens) != 1 || tokens[0].TokenID != "a1" {
		t.Fatalf("alice's listing leaked a neighbor: %+v", tokens)
	}

	if _, err := s.DeleteAllByUser(ctx, "alice"); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if _, err := s.Get(ctx, "alice:work", "w1"); err != nil {
		t.Fatalf("neighbor's record must survive alice's mass delete: %v", err)
	}
}

// Glob metacharacters in a username must match nothing but that exact
// username.
func TestRedisStoreGlobUsernameIsolation(t *testing.T) {
	ctx := context.Background()
	s := newRedisTestStore(t)

	now := time.Now()
	_ = s.Put(ctx, liveToken("bob", "b1", now))
	_ = s.Put(ctx, liveToken("***", "g1", now))

	tokens, err := s.ListByUser(ctx, "***")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tokens) != 1 || tokens[0].TokenID != "g1" {
		t.Fatalf("glob username widened the match: %+v", tokens)
	}

	n, err := s.DeleteAllByUser(ctx, "***")
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 removed, got %d", n)
	}
	if _, err := s.Get(ctx, "bob", "b1"); err != nil {
		t.Fatalf("bob's record must survive: %v", err)
	}
}

// End-to-end over the manager, the way the device endpoints use it.
func TestRedisStoreManagerCrossUserIsolation(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newRedisTestStore(t), time.Hour, nil)

	victim, err := m.Issue(ctx, "alice:work", "victim device", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Issue(ctx, "alice", "attacker device", ""); err != nil {
		t.Fatalf("issue: %v", err)
	}

	devices, err := m.ListDevices(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, d := range devices {
		if d.TokenID == victim.TokenID {
			t.Fatal("alice's device listing leaked a neighbor's token")
		}
	}

	if _, err := m.RevokeAllExcept(ctx, "alice", ""); err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	if _, err := m.Validate(ctx, "alice:work", victim.TokenID); err != nil {
		t.Fatalf("neighbor's token must survive alice's revoke-all: %v", err)
	}
}
