package storage

import (
	"context"
	"errors"

	badger "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// BadgerStore Badger持久化KV存储
//
// 用于非浏览器宿主(桌面/移动端嵌入)的会话持久化。
// 磁盘打开失败时降级为Badger内存模式,不向调用方抛错。
type BadgerStore struct {
	db  *badger.DB
	log *zap.Logger
}

// NewBadgerStore 创建Badger存储
//
// dataDir 为空或磁盘不可写时使用内存模式。
func NewBadgerStore(dataDir string, logger *zap.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var opts badger.Options
	if dataDir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dataDir)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		// 磁盘不可用,降级内存模式
		logger.Warn("badger磁盘存储不可用,降级为内存模式",
			zap.String("dataDir", dataDir),
			zap.Error(err))

		memOpts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
		db, err = badger.Open(memOpts)
		if err != nil {
			return nil, err
		}
	}

	return &BadgerStore{db: db, log: logger}, nil
}

func (s *BadgerStore) SetItem(_ context.Context, key string, value string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
}

func (s *BadgerStore) GetItem(_ context.Context, key string) (string, bool, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(value), true, nil
}

func (s *BadgerStore) RemoveItem(_ context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Close 关闭底层数据库
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
