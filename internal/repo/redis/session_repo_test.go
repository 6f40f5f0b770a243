package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/caffeinepub/connect-dating/internal/domain/enums"
	"github.com/caffeinepub/connect-dating/internal/domain/model"
	authsvc "github.com/caffeinepub/connect-dating/internal/services/auth"
)

func newMiniRedisClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func TestSessionRepoRoundTrip(t *testing.T) {
	_, client := newMiniRedisClient(t)
	repo := NewSessionRepo(client)
	ctx := context.Background()

	alice := model.SelfAuthenticating([]byte("alice"))
	expiresAt := time.Now().Add(time.Hour).Truncate(time.Second).UTC()
	if err := repo.Save(ctx, authsvc.SessionRecord{
		SID:       "sid-1",
		Principal: alice,
		Token:     "token-1",
		Status:    enums.LoginSuccess,
		ExpiresAt: expiresAt,
	}, time.Hour); err != nil {
		t.Fatalf("save session: %v", err)
	}

	record, err := repo.Get(ctx, "sid-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if record.Principal != alice || record.Token != "token-1" || record.Status != enums.LoginSuccess {
		t.Fatalf("unexpected record: %+v", record)
	}
	if !record.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("unexpected expiry: got %s want %s", record.ExpiresAt, expiresAt)
	}

	if err := repo.Save(ctx, authsvc.SessionRecord{
		SID:       "sid-1",
		State:     "state-1",
		Status:    enums.LoginInProgress,
		ExpiresAt: expiresAt,
	}, time.Hour); err != nil {
		t.Fatalf("overwrite session: %v", err)
	}
	record, err = repo.Get(ctx, "sid-1")
	if err != nil {
		t.Fatalf("get overwritten session: %v", err)
	}
	if !record.Principal.IsZero() || record.Token != "" || record.State != "state-1" {
		t.Fatalf("overwrite must drop stale identity fields: %+v", record)
	}

	if err := repo.Delete(ctx, "sid-1"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := repo.Get(ctx, "sid-1"); !errors.Is(err, authsvc.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionRepoExpires(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	repo := NewSessionRepo(client)
	ctx := context.Background()

	if err := repo.Save(ctx, authsvc.SessionRecord{
		SID:       "sid-2",
		Status:    enums.LoginInProgress,
		ExpiresAt: time.Now().Add(time.Minute),
	}, time.Minute); err != nil {
		t.Fatalf("save session: %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := repo.Get(ctx, "sid-2"); !errors.Is(err, authsvc.ErrSessionNotFound) {
		t.Fatalf("expected expired session to vanish, got %v", err)
	}
}

func TestSessionRepoRejectsInvalidRecord(t *testing.T) {
	_, client := newMiniRedisClient(t)
	repo := NewSessionRepo(client)

	err := repo.Save(context.Background(), authsvc.SessionRecord{SID: "", Status: enums.LoginSuccess}, time.Minute)
	if !errors.Is(err, authsvc.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRateRepoWindow(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	repo := NewRateRepo(client)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		count, ttl, err := repo.IncrementWindow(ctx, "rate:test", 10*time.Second)
		if err != nil {
			t.Fatalf("increment #%d: %v", i, err)
		}
		if count != i {
			t.Fatalf("unexpected count: got %d want %d", count, i)
		}
		if ttl <= 0 || ttl > 10*time.Second {
			t.Fatalf("unexpected ttl: %s", ttl)
		}
	}

	count, _, err := repo.WindowState(ctx, "rate:test")
	if err != nil || count != 3 {
		t.Fatalf("unexpected window state: count=%d err=%v", count, err)
	}

	mr.FastForward(11 * time.Second)
	count, ttl, err := repo.WindowState(ctx, "rate:test")
	if err != nil || count != 0 || ttl != 0 {
		t.Fatalf("window should be empty after expiry: count=%d ttl=%s err=%v", count, ttl, err)
	}
}
