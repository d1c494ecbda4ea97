package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

const (
	defaultScope  = "lumina"
	defaultModule = "wallet"
)

// Scoped 带命名空间前缀的存储包装
//
// 所有键统一加 "<scope>.<module>." 前缀,避免与宿主应用的
// 其他存储键冲突;对象读写经JSON编解码。
type Scoped struct {
	backend Store
	scope   string
	module  string
	log     *zap.Logger
}

// NewScoped 创建带默认命名空间的存储包装
func NewScoped(backend Store, logger *zap.Logger) *Scoped {
	if backend == nil {
		backend = NewMemoryStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scoped{
		backend: backend,
		scope:   defaultScope,
		module:  defaultModule,
		log:     logger,
	}
}

// scopedKey 生成带前缀的完整键
func (s *Scoped) scopedKey(key string) string {
	return fmt.Sprintf("%s.%s.%s", s.scope, s.module, key)
}

// SetItem 写入字符串值
func (s *Scoped) SetItem(ctx context.Context, key string, value string) error {
	return s.backend.SetItem(ctx, s.scopedKey(key), value)
}

// GetItem 读取字符串值
func (s *Scoped) GetItem(ctx context.Context, key string) (string, bool, error) {
	return s.backend.GetItem(ctx, s.scopedKey(key))
}

// RemoveItem 删除键
func (s *Scoped) RemoveItem(ctx context.Context, key string) error {
	return s.backend.RemoveItem(ctx, s.scopedKey(key))
}

// StoreObject JSON序列化后写入
func (s *Scoped) StoreObject(ctx context.Context, key string, item interface{}) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal object: %w", err)
	}
	return s.SetItem(ctx, key, string(data))
}

// LoadObject 读取并反序列化到out,键缺失时写回fallback
//
// fallback写回保证后续读取看到一致的初始值;JSON损坏按
// fallback处理并记录日志,不让坏数据阻塞会话初始化。
func (s *Scoped) LoadObject(ctx context.Context, key string, out interface{}, fallback interface{}) error {
	raw, ok, err := s.GetItem(ctx, key)
	if err != nil {
		return fmt.Errorf("load object %s: %w", key, err)
	}

	if !ok || raw == "" {
		if err := s.StoreObject(ctx, key, fallback); err != nil {
			return fmt.Errorf("store fallback %s: %w", key, err)
		}
		return assignFallback(out, fallback)
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		s.log.Warn("存储对象JSON损坏,使用fallback",
			zap.String("key", key),
			zap.Error(err))
		return assignFallback(out, fallback)
	}
	return nil
}

// assignFallback 通过JSON中转把fallback赋给out
func assignFallback(out interface{}, fallback interface{}) error {
	data, err := json.Marshal(fallback)
	if err != nil {
		return fmt.Errorf("marshal fallback: %w", err)
	}
	return json.Unmarshal(data, out)
}
