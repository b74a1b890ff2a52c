// Package cache 提供基于键值存储的泛型缓存实现.
//
// 基本用法:
//
//	c := cache.NewCache(kvStore, cache.WithPrefix("fp:cache:"))
//
//	stats, err := cache.GetOrSet(ctx, c, cache.Key("stats", "42"), func() (Stats, error) {
//	    return loadStats(ctx)
//	}, 30*time.Second)
//
//	// 数据变更后失效
//	_ = c.Delete(ctx, cache.Key("stats", "42"))
//
// 缓存未命中与底层读取失败都会退化为调用 getter，写缓存失败不影响返回值.
// 值使用 bytedance/sonic 序列化.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/yeisme/fileparser/pkg/internal/storage/kv"
)

// DefaultPrefix 默认键前缀.
const DefaultPrefix = "fp:cache:"

// ErrDisabled 缓存被关闭.
var ErrDisabled = errors.New("cache disabled")

// Cache 基于KV存储的缓存实现.
type Cache struct {
	kvStore  kv.KVStore
	prefix   string
	disabled bool
}

// Option 缓存选项.
type Option func(*Cache)

// WithPrefix 设置键前缀.
func WithPrefix(prefix string) Option {
	return func(c *Cache) { c.prefix = prefix }
}

// WithDisabled 关闭缓存，所有读取直接回源.
func WithDisabled(disabled bool) Option {
	return func(c *Cache) { c.disabled = disabled }
}

// NewCache 创建一个新的缓存实例.
func NewCache(kvStore kv.KVStore, opts ...Option) *Cache {
	c := &Cache{kvStore: kvStore, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(c)
	}

	if kvStore == nil {
		c.disabled = true
	}

	return c
}

// Key 以冒号拼接键.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Get 泛型获取缓存值.
func Get[T any](ctx context.Context, c *Cache, key string) (T, error) {
	var zero T

	if c.disabled {
		return zero, ErrDisabled
	}

	data, err := c.kvStore.Get(ctx, c.prefix+key)
	if err != nil {
		return zero, err
	}

	var value T
	if err := sonic.Unmarshal(data, &value); err != nil {
		return zero, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}

	return value, nil
}

// Set 泛型设置缓存值.
func Set[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) error {
	if c.disabled {
		return nil
	}

	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return c.kvStore.Set(ctx, c.prefix+key, data, ttl)
}

// GetOrSet 获取缓存值，如果不存在则设置.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, getter func() (T, error), ttl time.Duration) (T, error) {
	if value, err := Get[T](ctx, c, key); err == nil {
		return value, nil
	}

	value, err := getter()
	if err != nil {
		var zero T

		return zero, err
	}

	// 缓存失败，但仍返回值
	_ = Set(ctx, c, key, value, ttl)

	return value, nil
}

// Delete 删除缓存键，键不存在不算错误.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if c.disabled {
		return nil
	}

	var errs []error

	for _, key := range keys {
		if err := c.kvStore.Delete(ctx, c.prefix+key); err != nil && !errors.Is(err, kv.ErrNotFound) {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Exists 检查缓存键是否存在.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	if c.disabled {
		return false, nil
	}

	return c.kvStore.Exists(ctx, c.prefix+key)
}

// Clear 清空当前前缀下的全部缓存.
func (c *Cache) Clear(ctx context.Context) error {
	if c.disabled {
		return nil
	}

	keys, err := c.kvStore.Keys(ctx, c.prefix+"*")
	if err != nil {
		return err
	}

	for _, key := range keys {
		if delErr := c.kvStore.Delete(ctx, key); delErr != nil && !errors.Is(delErr, kv.ErrNotFound) {
			return delErr
		}
	}

	return nil
}
