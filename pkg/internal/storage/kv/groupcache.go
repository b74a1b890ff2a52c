package kv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/groupcache"

	"github.com/yeisme/fileparser/pkg/configs"
)

// GroupcacheKV 基于 Groupcache 的 KV 实现.
// 本节点写入的值保存在本地 map 中并优先读取；本地缺失时经由 group 向对等节点取值，
// 对等节点取到的值会被 groupcache 缓存，删除不会传播到其它节点.
type GroupcacheKV struct {
	cache *groupcache.Group
	peers *groupcache.HTTPPool
	data  map[string][]byte
	mu    sync.RWMutex
}

// groupcacheGetter 在键的归属节点上读取本地数据.
type groupcacheGetter struct {
	kv *GroupcacheKV
}

func (g *groupcacheGetter) Get(_ context.Context, key string, dest groupcache.Sink) error {
	val, ok, err := g.kv.local(key)
	if err != nil {
		return err
	}

	if !ok {
		return notFound(key)
	}

	if err := dest.SetBytes(val); err != nil {
		return fmt.Errorf("failed to set bytes to sink: %w", err)
	}

	return nil
}

// NewGroupcacheKV 创建 Groupcache KV 实例，每个进程内 group 名称必须唯一.
func NewGroupcacheKV(_ context.Context, config any) (KVStore, error) {
	gcConfig, ok := config.(*configs.GroupcacheKVConfig)
	if !ok || gcConfig == nil {
		return nil, fmt.Errorf("invalid Groupcache config")
	}

	if groupcache.GetGroup(gcConfig.Name) != nil {
		return nil, fmt.Errorf("groupcache group %q already registered", gcConfig.Name)
	}

	kv := &GroupcacheKV{data: make(map[string][]byte)}
	kv.cache = groupcache.NewGroup(gcConfig.Name, gcConfig.CacheBytes, &groupcacheGetter{kv: kv})

	if len(gcConfig.Peers) > 0 && gcConfig.Self != "" {
		kv.peers = groupcache.NewHTTPPoolOpts(gcConfig.Self, &groupcache.HTTPPoolOptions{})
		kv.peers.Set(gcConfig.Peers...)
	}

	return kv, nil
}

// local 读取本节点数据，过期时删除.
func (g *GroupcacheKV) local(key string) ([]byte, bool, error) {
	g.mu.RLock()
	raw, exists := g.data[key]
	g.mu.RUnlock()

	if !exists {
		return nil, false, nil
	}

	val, expired, _, err := decodeWithTTL(raw, time.Now())
	if err != nil {
		return nil, false, err
	}

	if expired {
		g.mu.Lock()
		delete(g.data, key)
		g.mu.Unlock()

		return nil, false, nil
	}

	return val, true, nil
}

// Get 获取键的值.
func (g *GroupcacheKV) Get(ctx context.Context, key string) ([]byte, error) {
	val, ok, err := g.local(key)
	if err != nil {
		return nil, err
	}

	if ok {
		result := make([]byte, len(val))
		copy(result, val)

		return result, nil
	}

	if g.peers == nil {
		return nil, notFound(key)
	}

	var data []byte
	if err := g.cache.Get(ctx, key, groupcache.AllocatingByteSliceSink(&data)); err != nil {
		return nil, notFound(key)
	}

	return data, nil
}

// Set 设置键的值.
func (g *GroupcacheKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	data := make([]byte, len(value))
	copy(data, value)

	encoded, _, err := encodeWithTTL(data, ttl)
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.data[key] = encoded
	g.mu.Unlock()

	return nil
}

// Delete 删除键.
func (g *GroupcacheKV) Delete(_ context.Context, key string) error {
	g.mu.Lock()
	delete(g.data, key)
	g.mu.Unlock()

	return nil
}

// Exists 检查键是否存在.
func (g *GroupcacheKV) Exists(_ context.Context, key string) (bool, error) {
	_, ok, err := g.local(key)

	return ok, err
}

// Keys 获取本节点上匹配模式的键.
func (g *GroupcacheKV) Keys(_ context.Context, pattern string) ([]string, error) {
	g.mu.RLock()
	candidates := make([]string, 0, len(g.data))

	for key := range g.data {
		if matchKey(pattern, key) {
			candidates = append(candidates, key)
		}
	}
	g.mu.RUnlock()

	keys := candidates[:0]

	for _, key := range candidates {
		if _, ok, err := g.local(key); err == nil && ok {
			keys = append(keys, key)
		}
	}

	return keys, nil
}

// Close Groupcache 没有显式的关闭方法.
func (g *GroupcacheKV) Close() error {
	return nil
}

func init() {
	RegisterKVFactory(KVTypeGroupcache, NewGroupcacheKV)
}
