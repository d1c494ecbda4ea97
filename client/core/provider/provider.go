// Package provider exposes the standard wallet-provider request surface backed by the session.
package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/asaskevich/EventBus"
	"go.uber.org/zap"

	"github.com/luminawallet/sdk-go/client/core/transport"
	"github.com/luminawallet/sdk-go/client/core/wallet"
	"github.com/luminawallet/sdk-go/pkg/constants"
	"github.com/luminawallet/sdk-go/pkg/types"
)

// ===== 提供者事件 =====

const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
	EventDisconnect      = "disconnect"
)

// Provider 钱包提供者
//
// 按方法名分发到会话操作的薄路由层;状态变化经事件总线
// 广播给嵌入方。未识别的只读方法直接透传到当前链RPC。
type Provider struct {
	wallet *wallet.Wallet
	bus    EventBus.Bus
	rpc    *transport.RPCClient
	log    *zap.Logger
}

// New 创建提供者
func New(cfg wallet.Config) (*Provider, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	p := &Provider{
		bus: EventBus.New(),
		rpc: transport.NewRPCClient(cfg.ReceiptTimeout, cfg.Logger),
		log: cfg.Logger,
	}

	// 弹窗断开时向嵌入方广播disconnect
	userCallback := cfg.OnDisconnect
	cfg.OnDisconnect = func() {
		p.bus.Publish(EventDisconnect, "popup closed")
		if userCallback != nil {
			userCallback()
		}
	}

	w, err := wallet.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	p.wallet = w

	return p, nil
}

// Wallet 底层会话(供需要直接访问的嵌入方使用)
func (p *Provider) Wallet() *wallet.Wallet {
	return p.wallet
}

// On 订阅提供者事件(accountsChanged/chainChanged/disconnect)
func (p *Provider) On(event string, fn interface{}) error {
	return p.bus.Subscribe(event, fn)
}

// Off 退订提供者事件
func (p *Provider) Off(event string, fn interface{}) error {
	return p.bus.Unsubscribe(event, fn)
}

// Request 统一的提供者请求入口
//
// params是JSON编码的参数数组。错误统一携带数字错误码;
// 4100会触发本地断开。
func (p *Provider) Request(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	result, err := p.dispatch(ctx, method, params)
	if err != nil {
		if pe, ok := types.AsProviderError(err); ok && pe.Code == types.ErrCodeUnauthorized {
			if derr := p.Disconnect(ctx); derr != nil {
				p.log.Warn("未授权后断开失败", zap.Error(derr))
			}
		}
		return nil, err
	}
	return result, nil
}

// Disconnect 断开会话并广播
func (p *Provider) Disconnect(ctx context.Context) error {
	if err := p.wallet.Disconnect(ctx); err != nil {
		return err
	}
	p.bus.Publish(EventDisconnect, "user initiated disconnection")
	return nil
}

// dispatch 方法名路由
func (p *Provider) dispatch(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	// 先越过初始化屏障,存储恢复完成前不判连接状态
	if err := p.wallet.WaitReady(ctx); err != nil {
		return nil, err
	}

	connected := len(p.wallet.Accounts()) > 0

	// 未连接时仅放行连接与只读默认值查询
	if !connected {
		switch method {
		case "eth_requestAccounts":
			accounts, err := p.wallet.Connect(ctx)
			if err != nil {
				return nil, err
			}
			p.bus.Publish(EventAccountsChanged, accounts)
			return accounts, nil
		case "net_version":
			return constants.DefaultChainID, nil
		case "eth_chainId":
			return fmt.Sprintf("0x%x", constants.DefaultChainID), nil
		default:
			return nil, types.NewProviderError(types.ErrCodeUnauthorized, "not connected")
		}
	}

	switch method {
	case "eth_requestAccounts", "eth_accounts":
		return p.wallet.Accounts(), nil

	case "net_version":
		return p.wallet.Chain().ID, nil

	case "eth_chainId":
		return fmt.Sprintf("0x%x", p.wallet.Chain().ID), nil

	case "personal_sign", "wallet_sign":
		// params: [message, account]
		var args []string
		if err := decodeParams(params, &args); err != nil || len(args) < 2 {
			return nil, types.NewProviderError(types.ErrCodeInvalidParams, "personal_sign expects [message, account]")
		}
		return hashOrError(p.wallet.SignData(ctx, args[1], args[0]))

	case "eth_sendTransaction", "wallet_sendTransaction":
		var args []types.TransactionRequest
		if err := decodeParams(params, &args); err != nil || len(args) < 1 {
			return nil, types.NewProviderError(types.ErrCodeInvalidParams, "eth_sendTransaction expects [transaction]")
		}
		return hashOrError(p.wallet.SendTransaction(ctx, &args[0]))

	case "eth_signTypedData", "eth_signTypedData_v3", "eth_signTypedData_v4":
		// params: [account, typedDataJSON]
		var args []json.RawMessage
		if err := decodeParams(params, &args); err != nil || len(args) < 2 {
			return nil, types.NewProviderError(types.ErrCodeInvalidParams, "eth_signTypedData expects [account, typedData]")
		}
		req, err := parseTypedDataParams(args[0], args[1])
		if err != nil {
			return nil, err
		}
		return hashOrError(p.wallet.SignTypedData(ctx, req))

	case "wallet_switchEthereumChain":
		var args struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(params, &args); err != nil || args.ID == 0 {
			return nil, types.NewProviderError(types.ErrCodeInvalidParams,
				"invalid chain id argument, must be valid chainId number")
		}
		reason, err := p.wallet.SwitchChain(ctx, args.ID)
		if err != nil {
			return nil, err
		}
		// EIP-3326:非空返回表示失败
		if reason != "" {
			return nil, types.NewProviderError(types.ErrCodeChainNotAdded, reason)
		}
		p.bus.Publish(EventChainChanged, fmt.Sprintf("0x%x", args.ID))
		return nil, nil

	case "wallet_sendCalls":
		var args []types.SendCallsParams
		if err := decodeParams(params, &args); err != nil || len(args) < 1 {
			return nil, types.NewProviderError(types.ErrCodeInvalidParams, "wallet_sendCalls expects [params]")
		}
		return p.wallet.SendCalls(ctx, &args[0])

	case "wallet_getCallsStatus":
		id, err := singleStringParam(params, method, "id")
		if err != nil {
			return nil, err
		}
		return p.wallet.GetCallsStatus(ctx, id)

	case "wallet_showCallsStatus":
		id, err := singleStringParam(params, method, "id")
		if err != nil {
			return nil, err
		}
		return nil, p.wallet.ShowCallsStatus(ctx, id)

	case "wallet_getCapabilities":
		var args []json.RawMessage
		if err := decodeParams(params, &args); err != nil || len(args) < 1 {
			return nil, types.NewProviderError(types.ErrCodeInvalidParams, "wallet_getCapabilities expects [address, chainIds?]")
		}
		var address string
		if err := json.Unmarshal(args[0], &address); err != nil {
			return nil, types.NewProviderError(types.ErrCodeInvalidParams, "invalid address argument")
		}
		var chainIDs []string
		if len(args) > 1 {
			if err := json.Unmarshal(args[1], &chainIDs); err != nil {
				return nil, types.NewProviderError(types.ErrCodeInvalidParams, "invalid chainIds argument")
			}
		}
		return p.wallet.GetCapabilities(ctx, address, chainIDs)

	case "wallet_openSettings":
		return nil, p.wallet.OpenSettings(ctx)

	case "wallet_switchWalletVersion":
		version, err := singleStringParam(params, method, "version")
		if err != nil {
			return nil, err
		}
		return nil, p.wallet.SwitchWalletVersion(ctx, version)

	case "wallet_disconnect":
		return nil, p.Disconnect(ctx)

	// 明确不支持的方法
	case "eth_sign", "eth_coinbase", "wallet_addEthereumChain", "wallet_watchAsset", "wallet_grantPermissions":
		return nil, types.NewProviderErrorf(types.ErrCodeMethodNotSupported, "method %s is not supported", method)

	default:
		// 其余只读方法直接透传当前链RPC
		return p.passthroughRPC(ctx, method, params)
	}
}

// passthroughRPC 只读方法透传
func (p *Provider) passthroughRPC(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	rpcURL := p.wallet.Chain().RPCURL
	if rpcURL == "" {
		return nil, types.NewProviderErrorf(types.ErrCodeInternal,
			"rpc url missing for current chain (%d)", p.wallet.Chain().ID)
	}

	var args []interface{}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, types.NewProviderError(types.ErrCodeInvalidParams, "params must be a JSON array")
		}
	}

	var result interface{}
	if err := p.rpc.Call(ctx, rpcURL, method, args, &result); err != nil {
		return nil, fmt.Errorf("rpc passthrough %s: %w", method, err)
	}
	return result, nil
}

// ===== 参数解析辅助 =====

func decodeParams(params json.RawMessage, out interface{}) error {
	if len(params) == 0 {
		return fmt.Errorf("missing params")
	}
	return json.Unmarshal(params, out)
}

func singleStringParam(params json.RawMessage, method string, argName string) (string, error) {
	var args []string
	if err := decodeParams(params, &args); err != nil || len(args) < 1 {
		return "", types.NewProviderErrorf(types.ErrCodeInvalidParams, "%s expects [%s]", method, argName)
	}
	return args[0], nil
}

// parseTypedDataParams 解析EIP-712参数对
func parseTypedDataParams(account json.RawMessage, typedData json.RawMessage) (*types.SignTypedDataRequest, error) {
	var accountStr string
	if err := json.Unmarshal(account, &accountStr); err != nil {
		return nil, types.NewProviderError(types.ErrCodeInvalidParams, "invalid account argument")
	}

	// typedData可能是JSON字符串,也可能是内联对象
	var typedDataStr string
	raw := typedData
	if err := json.Unmarshal(typedData, &typedDataStr); err == nil {
		raw = json.RawMessage(typedDataStr)
	}

	var req types.SignTypedDataRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, types.NewProviderError(types.ErrCodeInvalidParams, "invalid typed data payload")
	}
	req.Account = accountStr
	return &req, nil
}

// hashOrError 透传结果统一整形:错误转拒绝,否则返回哈希
func hashOrError(result *types.TxResultData, err error) (interface{}, error) {
	if err != nil {
		return nil, err
	}
	if result.Error != "" {
		return nil, types.NewProviderError(types.ErrCodeUserRejected, result.Error)
	}
	return result.Hash, nil
}
