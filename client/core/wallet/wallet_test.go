package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/luminawallet/sdk-go/client/core/storage"
	"github.com/luminawallet/sdk-go/client/core/transport"
	"github.com/luminawallet/sdk-go/pkg/types"
)

const (
	testOrigin  = "https://wallet.test"
	testAddress = "0x9b38a1f6c85b4cfb51f2e4b6c9d0a3e8f1b2c3d4"
	testTxHash  = "0x59ab2c11c3efeb0a9f8e6d5c4b3a291807f6e5d4c3b2a19087f6e5d4c3b2a190"
)

// scriptedPopup 测试用弹窗:handler按事件决定响应
type scriptedPopup struct {
	mu        sync.Mutex
	inbound   chan transport.Envelope
	done      chan struct{}
	posted    []*types.Message
	handler   func(msg *types.Message) *types.MessageResponse
	closeOnce sync.Once
}

func (p *scriptedPopup) emit(origin string, resp *types.MessageResponse) {
	raw, _ := json.Marshal(resp)
	select {
	case p.inbound <- transport.Envelope{Origin: origin, Raw: raw}:
	case <-p.done:
	}
}

func (p *scriptedPopup) Post(_ context.Context, payload interface{}) error {
	msg := payload.(*types.Message)

	p.mu.Lock()
	p.posted = append(p.posted, msg)
	p.mu.Unlock()

	if msg.Event == types.EventPopupAppContext {
		return nil
	}
	if p.handler != nil {
		if resp := p.handler(msg); resp != nil {
			if resp.RequestID == "" {
				resp.RequestID = msg.RequestID
			}
			go p.emit(testOrigin, resp)
		}
	}
	return nil
}

func (p *scriptedPopup) Inbound() <-chan transport.Envelope { return p.inbound }
func (p *scriptedPopup) Done() <-chan struct{}              { return p.done }
func (p *scriptedPopup) Focus()                             {}

func (p *scriptedPopup) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}

// eventCount 统计某事件被发往弹窗的次数
func (p *scriptedPopup) eventCount(event types.Event) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, msg := range p.posted {
		if msg.Event == event {
			n++
		}
	}
	return n
}

// postedMessages 已发往弹窗的消息快照
func (p *scriptedPopup) postedMessages() []*types.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*types.Message, len(p.posted))
	copy(out, p.posted)
	return out
}

// testEnv 钱包测试环境
type testEnv struct {
	wallet    *Wallet
	popup     *scriptedPopup
	store     *storage.MemoryStore
	openCount int
}

// defaultHandler 默认脚本:连接返回测试地址,其余事件回显
func defaultHandler(msg *types.Message) *types.MessageResponse {
	resp := &types.MessageResponse{Event: msg.Event, RequestID: msg.RequestID}
	switch msg.Event {
	case types.EventConnect:
		resp.Data = json.RawMessage(`{"address":"` + testAddress + `","chainId":42161}`)
	case types.EventSendBatchCalls:
		resp.Data = json.RawMessage(`{"hash":"` + testTxHash + `"}`)
	}
	return resp
}

func newTestEnv(t *testing.T, handler func(msg *types.Message) *types.MessageResponse, chain *types.Chain) *testEnv {
	t.Helper()

	if handler == nil {
		handler = defaultHandler
	}
	env := &testEnv{
		store: storage.NewMemoryStore(),
	}
	env.popup = &scriptedPopup{
		inbound: make(chan transport.Envelope, 16),
		done:    make(chan struct{}),
		handler: handler,
	}

	opener := func(ctx context.Context, backendURL string) (transport.Popup, error) {
		env.openCount++
		env.popup.emit(testOrigin, &types.MessageResponse{
			Event:     types.EventPopupLoaded,
			RequestID: "boot-1",
		})
		return env.popup, nil
	}

	w, err := New(Config{
		AppMetadata: types.AppMetadata{AppName: "Test App"},
		Chain:       chain,
		BackendURL:  testOrigin,
		AppOrigin:   "https://dapp.test",
		Storage:     env.store,
		Opener:      opener,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	env.wallet = w
	return env
}

// connect 完成连接并返回已连接账户
func (e *testEnv) connect(t *testing.T) string {
	t.Helper()
	accounts, err := e.wallet.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("Connect() accounts = %v, want 1 account", accounts)
	}
	return accounts[0]
}

// validSendCalls 构造合法的批次提交参数
func validSendCalls(id string) *types.SendCallsParams {
	atomicRequired := true
	return &types.SendCallsParams{
		Version:        "2.0.0",
		ID:             id,
		ChainID:        "0xa4b1",
		AtomicRequired: &atomicRequired,
		Calls: []types.Call{
			{To: "0x1111111111111111111111111111111111111111", Value: "0x0", Data: "0x"},
		},
	}
}

func wantCode(t *testing.T, err error, code int) {
	t.Helper()
	pe, ok := types.AsProviderError(err)
	if !ok {
		t.Fatalf("error = %v, want provider error %d", err, code)
	}
	if pe.Code != code {
		t.Fatalf("error code = %d (%s), want %d", pe.Code, pe.Message, code)
	}
}

// ===== 连接管理 =====

func TestConnectPersistsAccounts(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	account := env.connect(t)

	if !strings.EqualFold(account, testAddress) {
		t.Errorf("account = %s, want %s", account, testAddress)
	}
	if account != common.HexToAddress(testAddress).Hex() {
		t.Errorf("account = %s, want checksummed form", account)
	}

	// 同一存储后端重建会话,账户应恢复
	w, err := New(Config{
		BackendURL: testOrigin,
		Storage:    env.store,
		Opener: func(ctx context.Context, backendURL string) (transport.Popup, error) {
			t.Fatal("restore must not open popup")
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := w.ensureInitialized(context.Background()); err != nil {
		t.Fatalf("ensureInitialized() error = %v", err)
	}
	accounts := w.Accounts()
	if len(accounts) != 1 || accounts[0] != account {
		t.Errorf("restored accounts = %v, want [%s]", accounts, account)
	}
}

func TestConnectRejection(t *testing.T) {
	env := newTestEnv(t, func(msg *types.Message) *types.MessageResponse {
		return &types.MessageResponse{Event: msg.Event, RequestID: msg.RequestID, Error: "user denied connection"}
	}, nil)

	_, err := env.wallet.Connect(context.Background())
	wantCode(t, err, types.ErrCodeUserRejected)
	if len(env.wallet.Accounts()) != 0 {
		t.Error("accounts must stay empty after rejected connect")
	}
}

func TestDisconnectClearsState(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.connect(t)

	before := env.popup.eventCount(types.EventDisconnect)
	if err := env.wallet.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}

	if len(env.wallet.Accounts()) != 0 {
		t.Error("accounts not cleared")
	}
	// 断开是纯本地操作,不产生弹窗往返
	if after := env.popup.eventCount(types.EventDisconnect); after != before {
		t.Error("disconnect must not round trip to popup")
	}
}

// ===== 链切换 =====

func TestSwitchChainSupportedIsLocal(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	reason, err := env.wallet.SwitchChain(context.Background(), 137)
	if err != nil {
		t.Fatalf("SwitchChain() error = %v", err)
	}
	if reason != "" {
		t.Errorf("reason = %q, want empty (success)", reason)
	}
	if got := env.wallet.Chain().ID; got != 137 {
		t.Errorf("chain id = %d, want 137", got)
	}
	if env.wallet.Chain().RPCURL == "" {
		t.Error("switched chain must carry a default rpc url")
	}
	// 支持集内的链走本地快路径,弹窗始终未打开
	if env.openCount != 0 {
		t.Errorf("opener called %d times, want 0", env.openCount)
	}
}

func TestSwitchChainSupportedPersists(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	if _, err := env.wallet.SwitchChain(context.Background(), 8453); err != nil {
		t.Fatalf("SwitchChain() error = %v", err)
	}

	w, err := New(Config{
		BackendURL: testOrigin,
		Storage:    env.store,
		Opener: func(ctx context.Context, backendURL string) (transport.Popup, error) {
			t.Fatal("restore must not open popup")
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := w.ensureInitialized(context.Background()); err != nil {
		t.Fatalf("ensureInitialized() error = %v", err)
	}
	if got := w.Chain().ID; got != 8453 {
		t.Errorf("restored chain id = %d, want 8453", got)
	}
}

func TestSwitchChainUnsupportedRoundTrips(t *testing.T) {
	env := newTestEnv(t, func(msg *types.Message) *types.MessageResponse {
		resp := &types.MessageResponse{Event: msg.Event, RequestID: msg.RequestID}
		if msg.Event == types.EventSwitchChain {
			resp.Data = json.RawMessage(`{"error":"Unsupported chain."}`)
		}
		return resp
	}, nil)

	reason, err := env.wallet.SwitchChain(context.Background(), 999999)
	if err != nil {
		t.Fatalf("SwitchChain() error = %v", err)
	}
	if reason == "" {
		t.Error("unsupported chain must return a non-empty reason")
	}
	if env.popup.eventCount(types.EventSwitchChain) != 1 {
		t.Error("unsupported chain must round trip to popup")
	}
	// 失败的切换不得改变活跃链
	if got := env.wallet.Chain().ID; got != 42161 {
		t.Errorf("chain id = %d, want unchanged 42161", got)
	}
}

// ===== 钱包方案切换 =====

func TestSwitchWalletVersion(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	if err := env.wallet.SwitchWalletVersion(context.Background(), "v3"); err != nil {
		t.Fatalf("SwitchWalletVersion() error = %v", err)
	}
	if n := env.popup.eventCount(types.EventSwitchWalletVersion); n != 1 {
		t.Errorf("version switch round trips = %d, want 1", n)
	}

	// 往返消息携带目标版本
	for _, msg := range env.popup.postedMessages() {
		if msg.Event != types.EventSwitchWalletVersion {
			continue
		}
		req, ok := msg.Data.(*types.SwitchWalletVersionRequest)
		if !ok || req.Version != "v3" {
			t.Errorf("payload = %+v, want version v3", msg.Data)
		}
	}
}

func TestSwitchWalletVersionInvalid(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	err := env.wallet.SwitchWalletVersion(context.Background(), "v9")
	wantCode(t, err, types.ErrCodeInvalidParams)

	// 未知版本在往返前被拒
	if env.openCount != 0 {
		t.Error("invalid version must not contact popup")
	}
}

func TestSwitchWalletVersionRejection(t *testing.T) {
	env := newTestEnv(t, func(msg *types.Message) *types.MessageResponse {
		return &types.MessageResponse{Event: msg.Event, RequestID: msg.RequestID, Error: "user declined"}
	}, nil)

	err := env.wallet.SwitchWalletVersion(context.Background(), "v2")
	wantCode(t, err, types.ErrCodeUserRejected)
}

// ===== 批次提交 =====

func TestSendCallsHappyPath(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.connect(t)

	result, err := env.wallet.SendCalls(context.Background(), validSendCalls("bundle-1"))
	if err != nil {
		t.Fatalf("SendCalls() error = %v", err)
	}
	if result.ID != "bundle-1" {
		t.Errorf("result id = %s, want bundle-1", result.ID)
	}
	if result.Capabilities == nil {
		t.Fatal("result capabilities missing")
	}
	caip := result.Capabilities.CAIP345
	if caip.CAIP2 != "eip155:42161" {
		t.Errorf("caip2 = %s, want eip155:42161", caip.CAIP2)
	}
	if len(caip.TransactionHashes) != 1 || caip.TransactionHashes[0] != testTxHash {
		t.Errorf("transaction hashes = %v, want [%s]", caip.TransactionHashes, testTxHash)
	}

	// 台账记录:pending + 交易哈希 + 解析出的from
	batch, err := env.wallet.ledger.Get(context.Background(), "bundle-1")
	if err != nil {
		t.Fatalf("ledger.Get() error = %v", err)
	}
	if batch.Status != types.BatchStatusPending {
		t.Errorf("batch status = %s, want pending", batch.Status)
	}
	if batch.TransactionHash != testTxHash {
		t.Errorf("batch hash = %s, want %s", batch.TransactionHash, testTxHash)
	}
	if !strings.EqualFold(batch.From, testAddress) {
		t.Errorf("batch from = %s, want connected account", batch.From)
	}
	if batch.RPCURL == "" {
		t.Error("batch must record an rpc url for later receipt polls")
	}
}

func TestSendCallsGeneratesBundleID(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.connect(t)

	params := validSendCalls("")
	result, err := env.wallet.SendCalls(context.Background(), params)
	if err != nil {
		t.Fatalf("SendCalls() error = %v", err)
	}
	if !strings.HasPrefix(result.ID, "0x") || len(result.ID) != 66 {
		t.Errorf("generated id = %s, want 0x + 64 hex chars", result.ID)
	}
}

func TestSendCallsValidation(t *testing.T) {
	withID := func(mutate func(p *types.SendCallsParams)) *types.SendCallsParams {
		p := validSendCalls("bundle-x")
		mutate(p)
		return p
	}

	tests := []struct {
		name     string
		params   *types.SendCallsParams
		wantCode int
	}{
		{
			name:     "missing version",
			params:   withID(func(p *types.SendCallsParams) { p.Version = "" }),
			wantCode: types.ErrCodeInvalidParams,
		},
		{
			name:     "missing atomicRequired",
			params:   withID(func(p *types.SendCallsParams) { p.AtomicRequired = nil }),
			wantCode: types.ErrCodeInvalidParams,
		},
		{
			name:     "empty calls",
			params:   withID(func(p *types.SendCallsParams) { p.Calls = nil }),
			wantCode: types.ErrCodeInvalidParams,
		},
		{
			name: "too many calls",
			params: withID(func(p *types.SendCallsParams) {
				calls := make([]types.Call, 51)
				for i := range calls {
					calls[i] = types.Call{To: "0x1111111111111111111111111111111111111111"}
				}
				p.Calls = calls
			}),
			wantCode: types.ErrCodeInvalidParams,
		},
		{
			name:     "chainId without 0x prefix",
			params:   withID(func(p *types.SendCallsParams) { p.ChainID = "a4b1" }),
			wantCode: types.ErrCodeInvalidParams,
		},
		{
			name:     "chainId with leading zeros",
			params:   withID(func(p *types.SendCallsParams) { p.ChainID = "0x0a4b1" }),
			wantCode: types.ErrCodeInvalidParams,
		},
		{
			name:     "unsupported chain",
			params:   withID(func(p *types.SendCallsParams) { p.ChainID = "0x2" }),
			wantCode: types.ErrCodeChainMismatch,
		},
		{
			name:     "supported but inactive chain",
			params:   withID(func(p *types.SendCallsParams) { p.ChainID = "0x1" }),
			wantCode: types.ErrCodeChainMismatch,
		},
		{
			name: "invalid call target",
			params: withID(func(p *types.SendCallsParams) {
				p.Calls = []types.Call{{To: "not-an-address"}}
			}),
			wantCode: types.ErrCodeInvalidParams,
		},
		{
			name: "odd-length call data",
			params: withID(func(p *types.SendCallsParams) {
				p.Calls = []types.Call{{To: "0x1111111111111111111111111111111111111111", Data: "0xabc"}}
			}),
			wantCode: types.ErrCodeInvalidParams,
		},
		{
			name: "unknown mandatory capability",
			params: withID(func(p *types.SendCallsParams) {
				p.Capabilities = map[string]types.Capability{"flashLoan": {}}
			}),
			wantCode: types.ErrCodeUnsupportedCapability,
		},
		{
			name: "from not connected",
			params: withID(func(p *types.SendCallsParams) {
				p.From = "0x2222222222222222222222222222222222222222"
			}),
			wantCode: types.ErrCodeUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil, nil)
			env.connect(t)

			_, err := env.wallet.SendCalls(context.Background(), tt.params)
			wantCode(t, err, tt.wantCode)

			// 校验失败必须发生在任何副作用之前
			if env.popup.eventCount(types.EventSendBatchCalls) != 0 {
				t.Error("validation failure must not contact popup")
			}
			if _, gerr := env.wallet.ledger.Get(context.Background(), "bundle-x"); gerr == nil {
				t.Error("validation failure must not create a ledger record")
			}
		})
	}
}

func TestSendCallsNotConnected(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	_, err := env.wallet.SendCalls(context.Background(), validSendCalls("bundle-1"))
	wantCode(t, err, types.ErrCodeUnauthorized)
}

func TestSendCallsDropsOptionalUnknownCapability(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.connect(t)

	params := validSendCalls("bundle-1")
	params.Capabilities = map[string]types.Capability{
		"paymasterService": {},
		"flashLoan":        {Optional: true},
	}

	if _, err := env.wallet.SendCalls(context.Background(), params); err != nil {
		t.Fatalf("SendCalls() error = %v", err)
	}

	batch, err := env.wallet.ledger.Get(context.Background(), "bundle-1")
	if err != nil {
		t.Fatalf("ledger.Get() error = %v", err)
	}
	if _, ok := batch.Capabilities["flashLoan"]; ok {
		t.Error("optional unknown capability must be dropped")
	}
	if _, ok := batch.Capabilities["paymasterService"]; !ok {
		t.Error("supported capability must be kept")
	}
}

func TestSendCallsDuplicateBundleID(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.connect(t)

	if _, err := env.wallet.SendCalls(context.Background(), validSendCalls("bundle-1")); err != nil {
		t.Fatalf("first SendCalls() error = %v", err)
	}

	_, err := env.wallet.SendCalls(context.Background(), validSendCalls("bundle-1"))
	wantCode(t, err, types.ErrCodeDuplicateBundle)

	// 重复提交在登记阶段被拒,不产生第二次往返
	if n := env.popup.eventCount(types.EventSendBatchCalls); n != 1 {
		t.Errorf("batch round trips = %d, want 1", n)
	}
}

func TestSendCallsFailureMarksLedger(t *testing.T) {
	env := newTestEnv(t, func(msg *types.Message) *types.MessageResponse {
		resp := defaultHandler(msg)
		if msg.Event == types.EventSendBatchCalls {
			resp.Data = json.RawMessage(`{"error":"user denied batch"}`)
		}
		return resp
	}, nil)
	env.connect(t)

	_, err := env.wallet.SendCalls(context.Background(), validSendCalls("bundle-1"))
	wantCode(t, err, types.ErrCodeUserRejected)

	// 失败不静默:记录保留并标记failed
	status, err := env.wallet.GetCallsStatus(context.Background(), "bundle-1")
	if err != nil {
		t.Fatalf("GetCallsStatus() error = %v", err)
	}
	if status.Status != 400 {
		t.Errorf("status = %d, want 400 (failed)", status.Status)
	}
}

// ===== 批次状态查询 =====

// receiptServer 一次性回执端点
func receiptServer(t *testing.T, result string) (*httptest.Server, *int) {
	t.Helper()
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":` + result + `}`))
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestGetCallsStatusUnknownBundle(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	_, err := env.wallet.GetCallsStatus(context.Background(), "no-such-bundle")
	wantCode(t, err, types.ErrCodeUnknownBundle)
}

func TestGetCallsStatusEmptyBundleID(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	_, err := env.wallet.GetCallsStatus(context.Background(), "")
	wantCode(t, err, types.ErrCodeInvalidParams)
}

func TestGetCallsStatusPendingWithoutHash(t *testing.T) {
	server, hits := receiptServer(t, "null")
	env := newTestEnv(t, func(msg *types.Message) *types.MessageResponse {
		resp := defaultHandler(msg)
		if msg.Event == types.EventSendBatchCalls {
			resp.Data = json.RawMessage(`{}`) // 无哈希
		}
		return resp
	}, &types.Chain{ID: 42161, RPCURL: server.URL})
	env.connect(t)

	if _, err := env.wallet.SendCalls(context.Background(), validSendCalls("bundle-1")); err != nil {
		t.Fatalf("SendCalls() error = %v", err)
	}

	status, err := env.wallet.GetCallsStatus(context.Background(), "bundle-1")
	if err != nil {
		t.Fatalf("GetCallsStatus() error = %v", err)
	}
	if status.Status != 100 {
		t.Errorf("status = %d, want 100 (pending)", status.Status)
	}
	if status.Capabilities != nil {
		t.Error("status without hash must not carry caip345 capabilities")
	}
	// 无哈希不得轮询回执端点
	if *hits != 0 {
		t.Errorf("receipt endpoint hit %d times, want 0", *hits)
	}
}

func TestGetCallsStatusNotMinedStaysPending(t *testing.T) {
	server, hits := receiptServer(t, "null")
	env := newTestEnv(t, nil, &types.Chain{ID: 42161, RPCURL: server.URL})
	env.connect(t)

	if _, err := env.wallet.SendCalls(context.Background(), validSendCalls("bundle-1")); err != nil {
		t.Fatalf("SendCalls() error = %v", err)
	}

	status, err := env.wallet.GetCallsStatus(context.Background(), "bundle-1")
	if err != nil {
		t.Fatalf("GetCallsStatus() error = %v", err)
	}
	if status.Status != 100 {
		t.Errorf("status = %d, want 100 (pending)", status.Status)
	}
	if *hits != 1 {
		t.Errorf("receipt endpoint hit %d times, want 1", *hits)
	}
}

func TestGetCallsStatusLegacyRecordWithoutRPCURL(t *testing.T) {
	// 旧版台账记录未存rpcUrl:按批次链ID回退到端点后照常对账
	receipt := `{"status":"0x1","transactionHash":"` + testTxHash + `","logs":[]}`
	server, hits := receiptServer(t, receipt)
	env := newTestEnv(t, nil, &types.Chain{ID: 42161, RPCURL: server.URL})

	if err := env.wallet.ledger.Create(context.Background(), &types.CallBatch{
		ID:              "bundle-legacy",
		Version:         "2.0.0",
		ChainID:         "0xa4b1",
		From:            testAddress,
		Status:          types.BatchStatusPending,
		TransactionHash: testTxHash,
	}); err != nil {
		t.Fatalf("ledger.Create() error = %v", err)
	}

	status, err := env.wallet.GetCallsStatus(context.Background(), "bundle-legacy")
	if err != nil {
		t.Fatalf("GetCallsStatus() error = %v", err)
	}
	if status.Status != 200 {
		t.Errorf("status = %d, want 200 (confirmed via fallback endpoint)", status.Status)
	}
	if *hits != 1 {
		t.Errorf("receipt endpoint hit %d times, want 1", *hits)
	}
}

func TestGetCallsStatusConfirmedFiltersLogs(t *testing.T) {
	receipt := `{
		"status": "0x1",
		"blockHash": "0xblockhash",
		"blockNumber": "0x10",
		"gasUsed": "0x5208",
		"transactionHash": "` + testTxHash + `",
		"logs": [
			{"address": "0x1111111111111111111111111111111111111111", "data": "0x01"},
			{"address": "0x9999999999999999999999999999999999999999", "data": "0x02"},
			{"address": "` + testAddress + `", "data": "0x03"}
		]
	}`
	server, _ := receiptServer(t, receipt)
	env := newTestEnv(t, nil, &types.Chain{ID: 42161, RPCURL: server.URL})
	env.connect(t)

	if _, err := env.wallet.SendCalls(context.Background(), validSendCalls("bundle-1")); err != nil {
		t.Fatalf("SendCalls() error = %v", err)
	}

	status, err := env.wallet.GetCallsStatus(context.Background(), "bundle-1")
	if err != nil {
		t.Fatalf("GetCallsStatus() error = %v", err)
	}
	if status.Status != 200 {
		t.Errorf("status = %d, want 200 (confirmed)", status.Status)
	}
	if len(status.Receipts) != 1 {
		t.Fatalf("receipts = %d, want 1", len(status.Receipts))
	}
	// 无关合约的日志被过滤,只留调用目标与发送方的
	logs := status.Receipts[0].Logs
	if len(logs) != 2 {
		t.Fatalf("filtered logs = %d, want 2", len(logs))
	}
	for _, entry := range logs {
		if strings.EqualFold(entry.Address, "0x9999999999999999999999999999999999999999") {
			t.Error("unrelated log must be filtered out")
		}
	}
	if status.Capabilities == nil || status.Capabilities.CAIP345.CAIP2 != "eip155:42161" {
		t.Error("confirmed status must carry caip345 capabilities")
	}
}

func TestGetCallsStatusReverted(t *testing.T) {
	receipt := `{"status":"0x0","transactionHash":"` + testTxHash + `","logs":[]}`
	server, _ := receiptServer(t, receipt)
	env := newTestEnv(t, nil, &types.Chain{ID: 42161, RPCURL: server.URL})
	env.connect(t)

	if _, err := env.wallet.SendCalls(context.Background(), validSendCalls("bundle-1")); err != nil {
		t.Fatalf("SendCalls() error = %v", err)
	}

	status, err := env.wallet.GetCallsStatus(context.Background(), "bundle-1")
	if err != nil {
		t.Fatalf("GetCallsStatus() error = %v", err)
	}
	if status.Status != 500 {
		t.Errorf("status = %d, want 500 (reverted)", status.Status)
	}
}

func TestGetCallsStatusFetchFailureNonFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	t.Cleanup(server.Close)

	env := newTestEnv(t, nil, &types.Chain{ID: 42161, RPCURL: server.URL})
	env.connect(t)

	if _, err := env.wallet.SendCalls(context.Background(), validSendCalls("bundle-1")); err != nil {
		t.Fatalf("SendCalls() error = %v", err)
	}

	// 回执获取失败只降级,不报错
	status, err := env.wallet.GetCallsStatus(context.Background(), "bundle-1")
	if err != nil {
		t.Fatalf("GetCallsStatus() error = %v", err)
	}
	if status.Status != 100 {
		t.Errorf("status = %d, want 100 (last known)", status.Status)
	}
}

// ===== 状态展示 =====

func TestShowCallsStatus(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.connect(t)

	if _, err := env.wallet.SendCalls(context.Background(), validSendCalls("bundle-1")); err != nil {
		t.Fatalf("SendCalls() error = %v", err)
	}

	if err := env.wallet.ShowCallsStatus(context.Background(), "bundle-1"); err != nil {
		t.Fatalf("ShowCallsStatus() error = %v", err)
	}
	if env.popup.eventCount(types.EventShowCallsStatus) != 1 {
		t.Error("show calls status must round trip to popup")
	}
}

func TestShowCallsStatusUnknownBundle(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	err := env.wallet.ShowCallsStatus(context.Background(), "no-such-bundle")
	wantCode(t, err, types.ErrCodeUnknownBundle)
	if env.popup.eventCount(types.EventShowCallsStatus) != 0 {
		t.Error("unknown bundle must not contact popup")
	}
}
