package kv_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/yeisme/fileparser/pkg/configs"
	"github.com/yeisme/fileparser/pkg/internal/storage/kv"
)

func newMemory(t testing.TB) kv.KVStore {
	t.Helper()

	store, err := kv.NewKVStore(context.Background(), kv.KVTypeMemory, nil)
	if err != nil {
		t.Fatalf("create memory kv: %v", err)
	}

	return store
}

// exercise 对任意实现执行基本语义检查.
func exercise(t *testing.T, store kv.KVStore) {
	t.Helper()

	ctx := context.Background()

	if _, err := store.Get(ctx, "stats:files:1"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Set(ctx, "stats:files:1", []byte(`{"total_files":3}`), 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	if err := store.Set(ctx, "stats:files:all", []byte(`{}`), 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := store.Get(ctx, "stats:files:1")
	if err != nil || string(got) != `{"total_files":3}` {
		t.Fatalf("get = %q, %v", got, err)
	}

	keys, err := store.Keys(ctx, "stats:files:*")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}

	sort.Strings(keys)

	if len(keys) != 2 || keys[0] != "stats:files:1" || keys[1] != "stats:files:all" {
		t.Fatalf("unexpected keys %v", keys)
	}

	if err := store.Delete(ctx, "stats:files:1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if ok, _ := store.Exists(ctx, "stats:files:1"); ok {
		t.Fatal("key still exists after delete")
	}
}

// TestMemoryKV 内存实现的基本语义.
func TestMemoryKV(t *testing.T) {
	exercise(t, newMemory(t))
}

// TestMemoryKVTTL 过期的键不可读也不出现在 Keys 中.
func TestMemoryKVTTL(t *testing.T) {
	ctx := context.Background()
	store := newMemory(t)

	if err := store.Set(ctx, "short", []byte("v"), 20*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}

	if ok, _ := store.Exists(ctx, "short"); !ok {
		t.Fatal("expected key before expiry")
	}

	time.Sleep(40 * time.Millisecond)

	if _, err := store.Get(ctx, "short"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}

	if keys, _ := store.Keys(ctx, ""); len(keys) != 0 {
		t.Fatalf("expired key listed: %v", keys)
	}
}

// TestGroupcacheKV groupcache 实现与内存实现语义一致.
func TestGroupcacheKV(t *testing.T) {
	cfg := &configs.GroupcacheKVConfig{Name: "test-groupcache", CacheBytes: 1 << 20}

	store, err := kv.NewKVStore(context.Background(), kv.KVTypeGroupcache, cfg)
	if err != nil {
		t.Fatalf("create groupcache kv: %v", err)
	}

	exercise(t, store)

	if _, err := kv.NewKVStore(context.Background(), kv.KVTypeGroupcache, cfg); err == nil {
		t.Fatal("expected duplicate group name to fail")
	}
}

// TestNewDispatchesSubConfig New 根据类型选择子配置.
func TestNewDispatchesSubConfig(t *testing.T) {
	client, err := kv.New(context.Background(), &configs.KVConfig{Type: kv.KVTypeMemory})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if client.Type() != kv.KVTypeMemory {
		t.Fatalf("type = %s", client.Type())
	}

	if _, err := kv.New(context.Background(), &configs.KVConfig{Type: "etcd"}); err == nil {
		t.Fatal("expected unsupported type error")
	}

	types := kv.GetRegisteredKVTypes()
	if len(types) < 3 {
		t.Fatalf("registered types = %v", types)
	}
}

// TestRedisKV 需要 ENABLE_REDIS_TEST=1.
func TestRedisKV(t *testing.T) {
	if os.Getenv("ENABLE_REDIS_TEST") == "" {
		t.Skip("set ENABLE_REDIS_TEST=1 to enable")
	}

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}

	store, err := kv.NewKVStore(context.Background(), kv.KVTypeRedis, &configs.RedisKVConfig{Addr: addr})
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer store.Close()

	exercise(t, store)
}

func BenchmarkMemoryKV(b *testing.B) {
	benchKV(b, newMemory(b))
}

// benchKV 执行 Set/Get/Delete 基准测试.
func benchKV(b *testing.B, store kv.KVStore) {
	ctx := context.Background()
	payload := make([]byte, 1024)

	for _, ttl := range []time.Duration{0, 5 * time.Second} {
		b.Run(fmt.Sprintf("ttl=%s", ttl), func(b *testing.B) {
			b.ReportAllocs()

			for i := 0; b.Loop(); i++ {
				key := fmt.Sprintf("bench-%d", i)
				if err := store.Set(ctx, key, payload, ttl); err != nil {
					b.Fatalf("set failed: %v", err)
				}

				if _, err := store.Get(ctx, key); err != nil {
					b.Fatalf("get failed: %v", err)
				}

				if err := store.Delete(ctx, key); err != nil {
					b.Fatalf("delete failed: %v", err)
				}
			}
		})
	}
}
