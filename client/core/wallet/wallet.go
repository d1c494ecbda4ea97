// Package wallet implements the connector session: connect, chain switching,
// signing passthrough and EIP-5792 call-batch tracking.
package wallet

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/luminawallet/sdk-go/client/core/communicator"
	"github.com/luminawallet/sdk-go/client/core/storage"
	"github.com/luminawallet/sdk-go/client/core/transport"
	"github.com/luminawallet/sdk-go/pkg/constants"
	"github.com/luminawallet/sdk-go/pkg/types"
)

// Config 会话配置
type Config struct {
	// AppMetadata 应用元信息
	AppMetadata types.AppMetadata

	// Chain 初始链(可选,默认Arbitrum One)
	Chain *types.Chain

	// BackendURL 签名界面地址
	BackendURL string

	// TrustedOrigin 受信来源(空则取BackendURL)
	TrustedOrigin string

	// AppOrigin 嵌入方应用origin
	AppOrigin string

	// Storage 持久化后端(空则内存兜底)
	Storage storage.Store

	// Opener 弹窗打开器(空则WebSocket实现)
	Opener transport.Opener

	// OnDisconnect 弹窗关闭/会话断开回调
	OnDisconnect func()

	// ReceiptTimeout 回执轮询HTTP超时
	ReceiptTimeout time.Duration

	Logger *zap.Logger
}

// Wallet 钱包会话
//
// 状态机: uninitialized → ready。构造时异步加载持久化的
// 账户与活跃链,每个公开操作先越过一次性初始化屏障再碰状态。
// 所有持久化写在操作返回前完成,后续调用必然看到新状态。
type Wallet struct {
	comm   *communicator.Communicator
	store  *storage.Scoped
	ledger *Ledger
	rpc    *transport.RPCClient
	log    *zap.Logger

	appOrigin string

	// 初始化屏障(一次性,非每次调用都读存储)
	initDone chan struct{}
	initErr  error

	mu       sync.RWMutex
	accounts []string // 已连接账户(当前至多一个)
	chain    types.Chain
}

// New 创建钱包会话并启动异步初始化
func New(cfg Config) (*Wallet, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Opener == nil {
		cfg.Opener = transport.NewWSOpener(cfg.Logger)
	}

	comm, err := communicator.New(communicator.Config{
		BackendURL:     cfg.BackendURL,
		TrustedOrigin:  cfg.TrustedOrigin,
		AppOrigin:      cfg.AppOrigin,
		AppMetadata:    cfg.AppMetadata,
		DefaultChainID: constants.DefaultChainID,
		Opener:         cfg.Opener,
		OnDisconnect:   cfg.OnDisconnect,
		Logger:         cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create communicator: %w", err)
	}

	// 默认链:配置优先,缺省补默认RPC
	fallbackChain := types.Chain{ID: constants.DefaultChainID}
	if cfg.Chain != nil {
		fallbackChain = *cfg.Chain
	}
	if fallbackChain.RPCURL == "" {
		fallbackChain.RPCURL = constants.DefaultRPCURL(fallbackChain.ID)
	}

	w := &Wallet{
		comm:      comm,
		store:     storage.NewScoped(cfg.Storage, cfg.Logger),
		rpc:       transport.NewRPCClient(cfg.ReceiptTimeout, cfg.Logger),
		log:       cfg.Logger,
		appOrigin: cfg.AppOrigin,
		initDone:  make(chan struct{}),
		chain:     fallbackChain,
	}
	w.ledger = NewLedger(w.store, cfg.Logger)

	go w.initializeFromStorage(fallbackChain)

	return w, nil
}

// initializeFromStorage 从存储重建会话状态
func (w *Wallet) initializeFromStorage(fallbackChain types.Chain) {
	defer close(w.initDone)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var storedChain types.Chain
	if err := w.store.LoadObject(ctx, constants.StorageKeyActiveChain, &storedChain, fallbackChain); err != nil {
		w.initErr = fmt.Errorf("restore active chain: %w", err)
		return
	}
	if storedChain.RPCURL == "" {
		storedChain.RPCURL = constants.DefaultRPCURL(storedChain.ID)
	}

	var storedAccounts []string
	if err := w.store.LoadObject(ctx, constants.StorageKeyAccounts, &storedAccounts, []string{}); err != nil {
		w.initErr = fmt.Errorf("restore accounts: %w", err)
		return
	}

	w.mu.Lock()
	w.chain = storedChain
	w.accounts = storedAccounts
	w.mu.Unlock()
}

// ensureInitialized 等待初始化屏障
func (w *Wallet) ensureInitialized(ctx context.Context) error {
	select {
	case <-w.initDone:
		return w.initErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitReady 等待异步初始化完成
//
// 供上层在读取账户/链状态前越过初始化屏障,
// 避免存储恢复完成前误判为未连接。
func (w *Wallet) WaitReady(ctx context.Context) error {
	return w.ensureInitialized(ctx)
}

// Accounts 当前已连接账户
func (w *Wallet) Accounts() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, len(w.accounts))
	copy(out, w.accounts)
	return out
}

// Chain 当前活跃链
func (w *Wallet) Chain() types.Chain {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.chain
}

// newMessage 构造发往弹窗的消息
func (w *Wallet) newMessage(event types.Event, data interface{}) *types.Message {
	return &types.Message{
		Event:   event,
		ChainID: w.Chain().ID,
		Origin:  w.appOrigin,
		Data:    data,
	}
}

// roundTrip 一次弹窗往返
func (w *Wallet) roundTrip(ctx context.Context, event types.Event, data interface{}) (*types.MessageResponse, error) {
	return w.comm.PostRequestAndWaitForResponse(ctx, w.newMessage(event, data))
}

// ===== 连接管理 =====

// Connect 连接钱包
//
// 一次弹窗往返,成功后账户集合变为[返回地址]并持久化。
func (w *Wallet) Connect(ctx context.Context) ([]string, error) {
	if err := w.ensureInitialized(ctx); err != nil {
		return nil, err
	}

	resp, err := w.roundTrip(ctx, types.EventConnect, nil)
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, types.NewProviderError(types.ErrCodeUserRejected, resp.Error)
	}

	var data types.ConnectData
	if err := resp.DecodeData(&data); err != nil {
		return nil, fmt.Errorf("decode connect response: %w", err)
	}

	var accounts []string
	if data.Address != (common.Address{}) {
		accounts = []string{data.Address.Hex()}
	}

	w.mu.Lock()
	w.accounts = accounts
	w.mu.Unlock()

	if err := w.store.StoreObject(ctx, constants.StorageKeyAccounts, accounts); err != nil {
		return nil, fmt.Errorf("persist accounts: %w", err)
	}

	w.log.Debug("钱包已连接", zap.Strings("accounts", accounts))
	return accounts, nil
}

// Disconnect 断开连接
//
// 纯本地操作:清空内存账户并清除持久化的账户/链键,不产生往返。
func (w *Wallet) Disconnect(ctx context.Context) error {
	if err := w.ensureInitialized(ctx); err != nil {
		return err
	}

	w.mu.Lock()
	w.accounts = nil
	w.mu.Unlock()

	if err := w.store.StoreObject(ctx, constants.StorageKeyAccounts, []string{}); err != nil {
		return fmt.Errorf("clear accounts: %w", err)
	}
	if err := w.store.RemoveItem(ctx, constants.StorageKeyActiveChain); err != nil {
		return fmt.Errorf("clear active chain: %w", err)
	}
	return nil
}

// SwitchChain 切换链
//
// 支持集内的链走本地快路径:切换并持久化,无往返,返回空串
// 表示成功(EIP-3326的null约定)。不支持的链交给弹窗往返,
// 返回人类可读的错误原因。
func (w *Wallet) SwitchChain(ctx context.Context, chainID int64) (string, error) {
	if err := w.ensureInitialized(ctx); err != nil {
		return "", err
	}

	if constants.IsChainSupported(chainID) {
		chain := types.Chain{
			ID:     chainID,
			RPCURL: constants.DefaultRPCURL(chainID),
		}

		w.mu.Lock()
		w.chain = chain
		w.mu.Unlock()

		if err := w.store.StoreObject(ctx, constants.StorageKeyActiveChain, chain); err != nil {
			return "", fmt.Errorf("persist active chain: %w", err)
		}
		return "", nil
	}

	resp, err := w.roundTrip(ctx, types.EventSwitchChain, map[string]int64{"id": chainID})
	if err != nil {
		return "", err
	}

	var data types.SwitchChainData
	if err := resp.DecodeData(&data); err != nil {
		return "", fmt.Errorf("decode switch chain response: %w", err)
	}
	if data.Error != "" {
		return data.Error, nil
	}
	return "Unsupported chain.", nil
}

// ===== 签名/交易透传 =====

// SendTransaction 发送交易(透传往返,无本地状态变更)
func (w *Wallet) SendTransaction(ctx context.Context, tx *types.TransactionRequest) (*types.TxResultData, error) {
	return w.passthrough(ctx, types.EventSendTransaction, tx)
}

// SignData 签名消息
func (w *Wallet) SignData(ctx context.Context, account string, message string) (*types.TxResultData, error) {
	return w.passthrough(ctx, types.EventSignData, &types.SignDataRequest{
		Account: account,
		Message: message,
	})
}

// SignTypedData EIP-712结构化签名
func (w *Wallet) SignTypedData(ctx context.Context, req *types.SignTypedDataRequest) (*types.TxResultData, error) {
	return w.passthrough(ctx, types.EventSignTypedData, req)
}

// OpenSettings 打开钱包设置页
func (w *Wallet) OpenSettings(ctx context.Context) error {
	if err := w.ensureInitialized(ctx); err != nil {
		return err
	}
	_, err := w.roundTrip(ctx, types.EventOpenSettings, struct{}{})
	return err
}

// SwitchWalletVersion 切换智能钱包方案版本(v2/v3)
//
// 版本校验通过后透传往返,由签名界面完成实际切换;
// 各方案的地址派生见 client/core/deriver。
func (w *Wallet) SwitchWalletVersion(ctx context.Context, version string) error {
	if err := w.ensureInitialized(ctx); err != nil {
		return err
	}
	if version != constants.WalletVersionV2 && version != constants.WalletVersionV3 {
		return invalidParams("unknown wallet version: %s (supported: %s, %s)",
			version, constants.WalletVersionV2, constants.WalletVersionV3)
	}

	resp, err := w.roundTrip(ctx, types.EventSwitchWalletVersion,
		&types.SwitchWalletVersionRequest{Version: version})
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return types.NewProviderError(types.ErrCodeUserRejected, resp.Error)
	}
	return nil
}

// passthrough 请求/响应透传
func (w *Wallet) passthrough(ctx context.Context, event types.Event, data interface{}) (*types.TxResultData, error) {
	if err := w.ensureInitialized(ctx); err != nil {
		return nil, err
	}

	resp, err := w.roundTrip(ctx, event, data)
	if err != nil {
		return nil, err
	}

	var result types.TxResultData
	if err := resp.DecodeData(&result); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", event, err)
	}
	if result.Error == "" && resp.Error != "" {
		result.Error = resp.Error
	}
	return &result, nil
}

// ===== EIP-5792 =====

// normalizeFrom 解析from账户
//
// 缺省取唯一已连接账户;显式指定时必须(大小写不敏感地)
// 匹配某个已连接账户,否则4100。
func (w *Wallet) normalizeFrom(requested string) (string, error) {
	accounts := w.Accounts()
	if len(accounts) == 0 {
		return "", types.NewProviderError(types.ErrCodeUnauthorized, "no connected account available")
	}
	if requested == "" {
		return accounts[0], nil
	}
	if !addressRe.MatchString(requested) {
		return "", invalidParams("invalid from address: %s", requested)
	}
	for _, account := range accounts {
		if strings.EqualFold(account, requested) {
			return account, nil
		}
	}
	return "", types.NewProviderErrorf(types.ErrCodeUnauthorized, "address %s is not connected", requested)
}

// rpcURLForChain 解析链的RPC端点
func (w *Wallet) rpcURLForChain(chainID int64) (string, error) {
	chain := w.Chain()
	if chain.ID == chainID && chain.RPCURL != "" {
		return chain.RPCURL, nil
	}
	if url := constants.DefaultRPCURL(chainID); url != "" {
		return url, nil
	}
	return "", types.NewProviderErrorf(types.ErrCodeChainMismatch, "rpc url missing for chain %d", chainID)
}

// SendCalls 提交调用批次(wallet_sendCalls)
//
// 完整校验管线全部通过后才产生副作用:台账先落pending记录,
// 再做弹窗往返;失败时记录标记failed后重新抛出(结构化错误
// 原样透传,其余按4001包装)。
func (w *Wallet) SendCalls(ctx context.Context, params *types.SendCallsParams) (*types.SendCallsResult, error) {
	if err := w.ensureInitialized(ctx); err != nil {
		return nil, err
	}

	// (1) 结构校验
	if params == nil || params.Version == "" {
		return nil, invalidParams("version is required")
	}
	if params.AtomicRequired == nil {
		return nil, invalidParams("atomicRequired must be a boolean")
	}
	if len(params.Calls) == 0 {
		return nil, invalidParams("calls array cannot be empty")
	}
	if len(params.Calls) > constants.MaxCallsPerBatch {
		return nil, invalidParams("call bundle exceeds maximum supported size (%d)", constants.MaxCallsPerBatch)
	}

	// (2) 链ID规范化,必须等于活跃链
	requestedChainID, normalizedChainID, err := normalizeChainID(params.ChainID)
	if err != nil {
		return nil, err
	}
	if activeChainID := w.Chain().ID; requestedChainID != activeChainID {
		return nil, types.NewProviderErrorf(types.ErrCodeChainMismatch,
			"active chain (%d) does not match requested chain (%d), switch chains first",
			activeChainID, requestedChainID)
	}

	// (3) from解析
	fromAddress, err := w.normalizeFrom(params.From)
	if err != nil {
		return nil, err
	}

	// (4) capability协商
	requestCaps, err := normalizeCapabilityMap(params.Capabilities, "request")
	if err != nil {
		return nil, err
	}

	// (5) 单调用校验
	calls := make([]types.Call, len(params.Calls))
	copy(calls, params.Calls)
	for i := range calls {
		if err := validateCall(&calls[i], i); err != nil {
			return nil, err
		}
	}

	bundleID, err := normalizeIdentifier(params.ID)
	if err != nil {
		return nil, err
	}

	rpcURL, err := w.rpcURLForChain(requestedChainID)
	if err != nil {
		return nil, err
	}

	// (6)(7) 幂等检查+登记pending记录(Create在锁内先查重)
	atomicRequired := *params.AtomicRequired
	batch := &types.CallBatch{
		ID:             bundleID,
		Version:        params.Version,
		ChainID:        normalizedChainID,
		From:           fromAddress,
		Calls:          calls,
		Capabilities:   requestCaps,
		Status:         types.BatchStatusPending,
		AtomicRequired: atomicRequired,
		AtomicExecuted: true,
		RPCURL:         rpcURL,
		Timestamp:      time.Now().UnixMilli(),
	}
	if err := w.ledger.Create(ctx, batch); err != nil {
		return nil, err
	}

	// (8) 弹窗往返
	normalized := &types.SendCallsParams{
		Version:        params.Version,
		ID:             bundleID,
		ChainID:        normalizedChainID,
		From:           fromAddress,
		AtomicRequired: &atomicRequired,
		Calls:          calls,
		Capabilities:   requestCaps,
	}

	result, err := w.submitBatch(ctx, bundleID, normalized)
	if err != nil {
		// 失败不静默:台账记录标记failed后再抛出
		if _, markErr := w.ledger.Update(ctx, bundleID, func(b *types.CallBatch) {
			b.Status = types.BatchStatusFailed
		}); markErr != nil {
			w.log.Warn("标记批次失败状态出错", zap.String("bundleId", bundleID), zap.Error(markErr))
		}
		return nil, types.WrapUnstructured(err, types.ErrCodeUserRejected)
	}
	return result, nil
}

// submitBatch 批次弹窗往返与成功路径持久化
func (w *Wallet) submitBatch(ctx context.Context, bundleID string, params *types.SendCallsParams) (*types.SendCallsResult, error) {
	resp, err := w.roundTrip(ctx, types.EventSendBatchCalls, params)
	if err != nil {
		return nil, err
	}

	var data types.TxResultData
	if err := resp.DecodeData(&data); err != nil {
		return nil, fmt.Errorf("decode batch response: %w", err)
	}
	if data.Error != "" {
		return nil, fmt.Errorf("%s", data.Error)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%s", resp.Error)
	}

	if _, err := w.ledger.Update(ctx, bundleID, func(b *types.CallBatch) {
		b.TransactionHash = data.Hash
	}); err != nil {
		return nil, err
	}

	requestedChainID, _, _ := parseChainIDHex(params.ChainID)
	var hashes []string
	if data.Hash != "" {
		hashes = []string{data.Hash}
	}

	return &types.SendCallsResult{
		ID: bundleID,
		Capabilities: &types.SendCallsCapabilities{
			CAIP345: types.CAIP345Capability{
				CAIP2:             fmt.Sprintf("eip155:%d", requestedChainID),
				TransactionHashes: hashes,
			},
		},
	}, nil
}

// GetCallsStatus 查询批次状态(wallet_getCallsStatus)
//
// 已有交易哈希时轮询一次回执端点并据此落盘confirmed/reverted;
// 回执日志过滤到调用目标与发送方,防止无关日志注入。回执
// 获取失败只记日志,状态降级为最后已知值。
func (w *Wallet) GetCallsStatus(ctx context.Context, bundleID string) (*types.CallsStatus, error) {
	if err := w.ensureInitialized(ctx); err != nil {
		return nil, err
	}
	if err := validateBundleID(bundleID); err != nil {
		return nil, err
	}

	batch, err := w.ledger.Get(ctx, bundleID)
	if err != nil {
		return nil, err
	}

	if batch.TransactionHash != "" {
		// 记录未存rpcUrl时(旧版台账)按链ID回退到默认端点
		rpcURL := batch.RPCURL
		if rpcURL == "" {
			if chainID, _, perr := parseChainIDHex(batch.ChainID); perr == nil {
				if fallback, ferr := w.rpcURLForChain(chainID); ferr == nil {
					rpcURL = fallback
				}
			}
		}
		if rpcURL != "" {
			if updated := w.reconcileReceipt(ctx, batch, rpcURL); updated != nil {
				batch = updated
			}
		}
	}

	status := &types.CallsStatus{
		Version:  batch.Version,
		ID:       bundleID,
		ChainID:  batch.ChainID,
		Atomic:   batch.AtomicExecuted,
		Status:   batch.Status.StatusCode(),
		Receipts: batch.Receipts,
	}

	if batch.TransactionHash != "" {
		chainID, _, _ := parseChainIDHex(batch.ChainID)
		status.Capabilities = &types.SendCallsCapabilities{
			CAIP345: types.CAIP345Capability{
				CAIP2:             fmt.Sprintf("eip155:%d", chainID),
				TransactionHashes: []string{batch.TransactionHash},
			},
		}
	}

	return status, nil
}

// reconcileReceipt 回执对账(失败非致命)
func (w *Wallet) reconcileReceipt(ctx context.Context, batch *types.CallBatch, rpcURL string) *types.CallBatch {
	receipt, err := w.rpc.TransactionReceipt(ctx, rpcURL, batch.TransactionHash)
	if err != nil {
		w.log.Warn("回执获取失败,维持最后已知状态",
			zap.String("bundleId", batch.ID),
			zap.Error(err))
		return nil
	}
	if receipt == nil {
		// 交易尚未上链
		return nil
	}

	// 只保留目标地址为批次调用对象或发送方的日志
	allowed := make(map[string]bool, len(batch.Calls)+1)
	for _, call := range batch.Calls {
		allowed[strings.ToLower(call.To)] = true
	}
	if batch.From != "" {
		allowed[strings.ToLower(batch.From)] = true
	}

	filtered := make([]*types.CallReceiptLog, 0, len(receipt.Logs))
	for _, entry := range receipt.Logs {
		if allowed[strings.ToLower(entry.Address)] {
			filtered = append(filtered, entry)
		}
	}

	newStatus := types.BatchStatusReverted
	statusHex := "0x0"
	if receipt.Succeeded() {
		newStatus = types.BatchStatusConfirmed
		statusHex = "0x1"
	}

	updated, err := w.ledger.Update(ctx, batch.ID, func(b *types.CallBatch) {
		b.Status = newStatus
		b.Receipts = []*types.CallReceipt{{
			Status:          statusHex,
			BlockHash:       receipt.BlockHash,
			BlockNumber:     receipt.BlockNumber,
			GasUsed:         receipt.GasUsed,
			TransactionHash: receipt.TransactionHash,
			Logs:            filtered,
		}}
	})
	if err != nil {
		w.log.Warn("批次回执落盘失败", zap.String("bundleId", batch.ID), zap.Error(err))
		return nil
	}
	return updated
}

// ShowCallsStatus 请求弹窗展示批次状态(纯通知往返)
func (w *Wallet) ShowCallsStatus(ctx context.Context, bundleID string) error {
	if err := w.ensureInitialized(ctx); err != nil {
		return err
	}
	if err := validateBundleID(bundleID); err != nil {
		return err
	}

	if _, err := w.ledger.Get(ctx, bundleID); err != nil {
		return err
	}

	_, err := w.roundTrip(ctx, types.EventShowCallsStatus, map[string]string{"bundleId": bundleID})
	return err
}
