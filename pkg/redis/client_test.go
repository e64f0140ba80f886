package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/sourcing-backend/pkg/config"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	for want := int64(1); want <= 2; want++ {
		state, err := client.FixedWindowAllow(ctx, "quote_submit:u1", 2, time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !state.Allowed || state.Count != want || state.RetryAfter != 0 {
			t.Fatalf("hit %d: unexpected state %+v", want, state)
		}
	}

	state, err := client.FixedWindowAllow(ctx, "quote_submit:u1", 2, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Allowed || state.Count != 3 {
		t.Fatalf("expected limit reached, got %+v", state)
	}
	if state.RetryAfter != time.Second {
		t.Fatalf("expected retry after the window, got %s", state.RetryAfter)
	}
	if got := mock.windows["src:rate_limit:quote_submit:u1"]; got != 1000 {
		t.Fatalf("expected 1000ms window on the key, got %d", got)
	}
}

func TestFixedWindowAllowRejectsZeroWindow(t *testing.T) {
	client := &Client{store: newMockCmdable()}
	if _, err := client.FixedWindowAllow(context.Background(), "s", 1, 0); err == nil {
		t.Fatal("expected error for zero window")
	}
}

func TestSetNXAndDel(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	ok, err := client.SetNX(ctx, client.LockKey("cron"), "owner-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first setnx to win, ok=%v err=%v", ok, err)
	}
	ok, err = client.SetNX(ctx, client.LockKey("cron"), "owner-2", time.Minute)
	if err != nil || ok {
		t.Fatalf("expected second setnx to lose, ok=%v err=%v", ok, err)
	}
	owner, err := client.Get(ctx, client.LockKey("cron"))
	if err != nil || owner != "owner-1" {
		t.Fatalf("unexpected owner %q err=%v", owner, err)
	}
	if err := client.Del(ctx, client.LockKey("cron")); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, client.LockKey("cron")); err != redis.Nil {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
}

func TestCompareAndDeleteOnlyRemovesOwnValue(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := client.LockKey("cron:requirement-expiry")

	if _, err := client.SetNX(ctx, key, "lease-a", time.Minute); err != nil {
		t.Fatalf("setnx: %v", err)
	}
	removed, err := client.CompareAndDelete(ctx, key, "lease-b")
	if err != nil || removed {
		t.Fatalf("foreign lease must not delete, removed=%v err=%v", removed, err)
	}
	removed, err = client.CompareAndDelete(ctx, key, "lease-a")
	if err != nil || !removed {
		t.Fatalf("owner should delete, removed=%v err=%v", removed, err)
	}
	if _, ok := mock.data[key]; ok {
		t.Fatal("key should be gone")
	}
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("expected error from uninitialized client")
	}
	if _, err := client.CompareAndDelete(context.Background(), "k", "v"); err != errNotInitialized {
		t.Fatalf("expected errNotInitialized, got %v", err)
	}
	var nilClient *Client
	if _, err := nilClient.Get(context.Background(), "k"); err != errNotInitialized {
		t.Fatalf("expected errNotInitialized from nil client, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close should be a no-op, got %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.IdempotencyKey("scope", "id"); got != "src:idempotency:scope:id" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.RateLimitKey("scope"); got != "src:rate_limit:scope" {
		t.Fatalf("unexpected rate limit key %s", got)
	}
	if got := client.LockKey("cron"); got != "src:lock:cron" {
		t.Fatalf("unexpected lock key %s", got)
	}
	if got := client.IdempotencyKey("scope", ""); got != "src:idempotency:scope" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url or address")
	}

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/3", PoolSize: 7, DB: 1, DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if opts.DB != 3 {
		t.Fatalf("db from the url should win, got %d", opts.DB)
	}
	if opts.PoolSize != 7 || opts.DialTimeout != time.Second {
		t.Fatalf("env settings should fill the gaps, got pool=%d dial=%s", opts.PoolSize, opts.DialTimeout)
	}

	opts, err = optionsFromConfig(config.RedisConfig{Address: " cache:6379 ", DB: 2})
	if err != nil {
		t.Fatalf("address config: %v", err)
	}
	if opts.Addr != "cache:6379" || opts.DB != 2 {
		t.Fatalf("unexpected options addr=%q db=%d", opts.Addr, opts.DB)
	}
}

type mockCmdable struct {
	data    map[string]string
	counts  map[string]int64
	windows map[string]int64
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data:    make(map[string]string),
		counts:  make(map[string]int64),
		windows: make(map[string]int64),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

// Eval emulates the two scripts the client ships. Time never advances, so
// PTTL always reports the full window.
func (m *mockCmdable) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	if len(keys) != 1 || len(args) != 1 {
		return redis.NewCmdResult(nil, fmt.Errorf("unexpected arity"))
	}
	key := keys[0]
	switch script {
	case compareAndDeleteScript:
		if m.data[key] == fmt.Sprint(args[0]) {
			delete(m.data, key)
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	case fixedWindowScript:
		m.counts[key]++
		if m.counts[key] == 1 {
			m.windows[key] = args[0].(int64)
		}
		return redis.NewCmdResult([]any{m.counts[key], m.windows[key]}, nil)
	default:
		return redis.NewCmdResult(nil, fmt.Errorf("unexpected script"))
	}
}
