package wallet

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/luminawallet/sdk-go/client/core/storage"
	"github.com/luminawallet/sdk-go/pkg/constants"
	"github.com/luminawallet/sdk-go/pkg/types"
)

// Ledger 调用批次台账
//
// 整个台账是单个存储键下的keyed map(bundle id → 批次),
// 所有读改写在同一把锁下串行(single-flight),并发SendCalls
// 不会交错写坏blob。记录只增改不删除,淘汰由存储属主决定。
type Ledger struct {
	store *storage.Scoped
	log   *zap.Logger
	mu    sync.Mutex
}

// NewLedger 创建台账
func NewLedger(store *storage.Scoped, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: store, log: logger}
}

// load 读取全量台账(调用方持锁)
func (l *Ledger) load(ctx context.Context) (map[string]*types.CallBatch, error) {
	batches := make(map[string]*types.CallBatch)
	if err := l.store.LoadObject(ctx, constants.StorageKeyCallBatches, &batches,
		map[string]*types.CallBatch{}); err != nil {
		return nil, fmt.Errorf("load call batches: %w", err)
	}
	return batches, nil
}

// save 写回全量台账(调用方持锁)
func (l *Ledger) save(ctx context.Context, batches map[string]*types.CallBatch) error {
	if err := l.store.StoreObject(ctx, constants.StorageKeyCallBatches, batches); err != nil {
		return fmt.Errorf("save call batches: %w", err)
	}
	return nil
}

// Create 登记新批次(幂等提交检查)
//
// bundle id已存在时拒绝(5720),且不产生任何写入。
func (l *Ledger) Create(ctx context.Context, batch *types.CallBatch) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	batches, err := l.load(ctx)
	if err != nil {
		return err
	}

	if _, exists := batches[batch.ID]; exists {
		return types.NewProviderErrorf(types.ErrCodeDuplicateBundle,
			"bundle id %s has already been submitted", batch.ID)
	}

	batches[batch.ID] = batch
	return l.save(ctx, batches)
}

// Get 按bundle id查询批次
func (l *Ledger) Get(ctx context.Context, id string) (*types.CallBatch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	batches, err := l.load(ctx)
	if err != nil {
		return nil, err
	}

	batch, ok := batches[id]
	if !ok {
		return nil, types.NewProviderErrorf(types.ErrCodeUnknownBundle,
			"unknown bundle id: %s", id)
	}
	return batch, nil
}

// Update 读改写单个批次(状态迁移/回执附加)
//
// mutate在锁内执行,写回完成后才返回,后续调用必然看到新状态。
func (l *Ledger) Update(ctx context.Context, id string, mutate func(*types.CallBatch)) (*types.CallBatch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	batches, err := l.load(ctx)
	if err != nil {
		return nil, err
	}

	batch, ok := batches[id]
	if !ok {
		return nil, types.NewProviderErrorf(types.ErrCodeUnknownBundle,
			"unknown bundle id: %s", id)
	}

	mutate(batch)
	batches[id] = batch

	if err := l.save(ctx, batches); err != nil {
		return nil, err
	}
	return batch, nil
}
