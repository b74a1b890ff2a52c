package kv

import (
	"context"
	"sync"
	"time"
)

// MemoryKV 基于 sync.Map 的内存 KV 实现，过期时间写入值的 TTL 包装中，读取时惰性删除.
type MemoryKV struct {
	data sync.Map
	now  func() time.Time
}

// NewMemoryKV 创建内存 KV 实例.
func NewMemoryKV(_ context.Context, _ any) (KVStore, error) {
	return &MemoryKV{now: time.Now}, nil
}

// load 读取并解包，过期的键被删除.
func (m *MemoryKV) load(key string) ([]byte, bool, error) {
	raw, exists := m.data.Load(key)
	if !exists {
		return nil, false, nil
	}

	b, _ := raw.([]byte)

	val, expired, _, err := decodeWithTTL(b, m.now())
	if err != nil {
		return nil, false, err
	}

	if expired {
		m.data.CompareAndDelete(key, raw)

		return nil, false, nil
	}

	return val, true, nil
}

// Get 获取键的值.
func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	val, ok, err := m.load(key)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, notFound(key)
	}

	result := make([]byte, len(val))
	copy(result, val)

	return result, nil
}

// Set 设置键的值.
func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	data := make([]byte, len(value))
	copy(data, value)

	encoded, _, err := encodeWithTTL(data, ttl)
	if err != nil {
		return err
	}

	m.data.Store(key, encoded)

	return nil
}

// Delete 删除键.
func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.data.Delete(key)

	return nil
}

// Exists 检查键是否存在.
func (m *MemoryKV) Exists(_ context.Context, key string) (bool, error) {
	_, ok, err := m.load(key)

	return ok, err
}

// Keys 获取匹配模式的键.
func (m *MemoryKV) Keys(_ context.Context, pattern string) ([]string, error) {
	keys := make([]string, 0)

	m.data.Range(func(key, _ any) bool {
		k, ok := key.(string)
		if !ok || !matchKey(pattern, k) {
			return true
		}

		if _, alive, err := m.load(k); err == nil && alive {
			keys = append(keys, k)
		}

		return true
	})

	return keys, nil
}

// Close 内存实现无需操作.
func (m *MemoryKV) Close() error {
	return nil
}

func init() {
	RegisterKVFactory(KVTypeMemory, NewMemoryKV)
}
