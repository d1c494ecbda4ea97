// Package storage provides the scoped key-value storage used by the wallet session.
package storage

import "context"

// Store 字符串KV存储契约
//
// 会话状态与调用批次台账都经由此接口持久化。实现必须容忍
// 底层存储不可用:降级为内存兜底,而不是向调用方抛错。
type Store interface {
	// SetItem 写入键值
	SetItem(ctx context.Context, key string, value string) error

	// GetItem 读取键值,键不存在时ok为false
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)

	// RemoveItem 删除键
	RemoveItem(ctx context.Context, key string) error
}
