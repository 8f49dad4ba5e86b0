package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/shopcore/pkg/config"
)

func TestSetNXGuardsKey(t *testing.T) {
	ctx := context.Background()
	mock := newMockStore()
	client := &Client{store: mock}

	ok, err := client.SetNX(ctx, "k", "first", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first setnx to win, ok=%v err=%v", ok, err)
	}
	ok, err = client.SetNX(ctx, "k", "second", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected second setnx to lose")
	}
	if mock.data["k"] != "first" {
		t.Fatalf("expected first value to remain, got %q", mock.data["k"])
	}
}

func TestCompareAndDeleteOnlyRemovesOwner(t *testing.T) {
	ctx := context.Background()
	mock := newMockStore()
	mock.data["lock"] = "owner-a"
	client := &Client{store: mock}

	deleted, err := client.CompareAndDelete(ctx, "lock", "owner-b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted {
		t.Fatalf("non-owner must not delete the key")
	}

	deleted, err = client.CompareAndDelete(ctx, "lock", "owner-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted {
		t.Fatalf("owner should delete the key")
	}
	if _, ok := mock.data["lock"]; ok {
		t.Fatalf("expected key removed")
	}
	if mock.evalSha != 2 || mock.eval != 2 {
		t.Fatalf("expected EVALSHA then EVAL fallback per call, got sha=%d eval=%d", mock.evalSha, mock.eval)
	}
}

func TestClientServesAsIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	var store IdempotencyStore = &Client{store: newMockStore()}

	key := store.IdempotencyKey("place_order", "customer-1", "key-1")
	won, err := store.SetNX(ctx, key, "token-a", time.Minute)
	if err != nil || !won {
		t.Fatalf("expected guard acquired, won=%v err=%v", won, err)
	}
	if won, _ := store.SetNX(ctx, key, "token-b", time.Minute); won {
		t.Fatalf("expected in-flight duplicate to lose")
	}
	released, err := store.CompareAndDelete(ctx, key, "token-a")
	if err != nil || !released {
		t.Fatalf("expected guard released, released=%v err=%v", released, err)
	}
	if won, _ := store.SetNX(ctx, key, "token-b", time.Minute); !won {
		t.Fatalf("expected guard reusable after release")
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.IdempotencyKey("place_order", "cust", "key-1"); got != "shop:idempotency:place_order:cust:key-1" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.IdempotencyKey("place_order", "", " key "); got != "shop:idempotency:place_order:key" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
	if got := client.LockKey("order-expiry"); got != "shop:lock:order-expiry" {
		t.Fatalf("unexpected lock key %s", got)
	}
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	ctx := context.Background()
	if err := client.Ping(ctx); err == nil {
		t.Fatalf("expected error for nil store")
	}
	if _, err := client.SetNX(ctx, "k", "v", time.Second); err == nil {
		t.Fatalf("expected error for nil store")
	}
	if _, err := client.CompareAndDelete(ctx, "k", "v"); err == nil {
		t.Fatalf("expected error for nil store")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close without connection: %v", err)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatalf("expected error without url or address")
	}

	opts, err := optionsFromConfig(config.RedisConfig{
		Address:     "localhost:6379",
		DB:          2,
		PoolSize:    7,
		DialTimeout: 3 * time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.DB != 2 || opts.PoolSize != 7 || opts.DialTimeout != 3*time.Second {
		t.Fatalf("unexpected options %+v", opts)
	}

	opts, err = optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6380/3", DB: 9, PoolSize: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "localhost:6380" || opts.DB != 3 || opts.PoolSize != 4 {
		t.Fatalf("url settings should win over fallbacks: %+v", opts)
	}

	if _, err := optionsFromConfig(config.RedisConfig{URL: "http://nope"}); err == nil {
		t.Fatalf("expected error for non-redis scheme")
	}
}

// noScript mimics the server reply that makes Script.Run fall back to EVAL.
type noScript string

func (e noScript) Error() string { return string(e) }
func (noScript) RedisError()     {}

type mockStore struct {
	data    map[string]string
	evalSha int
	eval    int
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string)}
}

func (m *mockStore) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockStore) EvalSha(context.Context, string, []string, ...any) *redis.Cmd {
	m.evalSha++
	return redis.NewCmdResult(nil, noScript("NOSCRIPT No matching script"))
}

// Eval emulates the compare-and-delete script only.
func (m *mockStore) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	m.eval++
	if script != compareAndDeleteSrc || len(keys) != 1 || len(args) != 1 {
		return redis.NewCmdResult(nil, fmt.Errorf("unsupported script"))
	}
	if m.data[keys[0]] == fmt.Sprint(args[0]) {
		delete(m.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (m *mockStore) EvalRO(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return m.Eval(ctx, script, keys, args...)
}

func (m *mockStore) EvalShaRO(ctx context.Context, sha string, keys []string, args ...any) *redis.Cmd {
	return m.EvalSha(ctx, sha, keys, args...)
}

func (m *mockStore) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (m *mockStore) ScriptLoad(context.Context, string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}
