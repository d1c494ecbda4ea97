package types

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
)

// Event 跨上下文消息的事件标签
type Event string

const (
	// ===== 弹窗生命周期事件 =====

	EventPopupLoaded     Event = "POPUP_LOADED"
	EventPopupUnloaded   Event = "POPUP_UNLOADED"
	EventPopupAppContext Event = "POPUP_APP_CONTEXT"

	// ===== SDK请求事件 =====

	EventConnect             Event = "SDK_CONNECT"
	EventDisconnect          Event = "SDK_DISCONNECT"
	EventSendTransaction     Event = "SDK_SEND_TRANSACTION"
	EventSignData            Event = "SDK_SIGN_DATA"
	EventSignTypedData       Event = "SDK_SIGN_TYPED_DATA"
	EventSwitchChain         Event = "SDK_SWITCH_CHAIN"
	EventOpenSettings        Event = "SDK_OPEN_SETTINGS"
	EventSwitchWalletVersion Event = "SDK_SWITCH_WALLET_VERSION"
	EventSendBatchCalls      Event = "SDK_SEND_BATCH_CALLS"
	EventShowCallsStatus     Event = "SDK_SHOW_CALLS_STATUS"
)

// Message 发往签名界面的消息
//
// RequestID 是关联键:通道不保证投递顺序,并发请求的响应
// 只能靠 RequestID 与原始请求匹配。
type Message struct {
	Event     Event       `json:"event"`
	RequestID string      `json:"requestId"`
	ChainID   int64       `json:"chainId"`
	Origin    string      `json:"origin"`
	Data      interface{} `json:"data,omitempty"`
}

// MessageResponse 来自签名界面的消息
//
// 每个 RequestID 至多对应一条响应;Data 按事件标签解码。
type MessageResponse struct {
	Event     Event           `json:"event"`
	RequestID string          `json:"requestId"`
	ChainID   int64           `json:"chainId,omitempty"`
	Error     string          `json:"error,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// DecodeData 将响应负载解码到out
func (r *MessageResponse) DecodeData(out interface{}) error {
	if len(r.Data) == 0 {
		return nil
	}
	return json.Unmarshal(r.Data, out)
}

// AppMetadata 嵌入方应用元信息
type AppMetadata struct {
	AppName    string   `json:"appName,omitempty"`
	AppLogoURL string   `json:"appLogoUrl,omitempty"`
	Name       string   `json:"name,omitempty"`
	URL        string   `json:"url,omitempty"`
	Icons      []string `json:"icons,omitempty"`
}

// AppContext 弹窗加载完成后推送的应用上下文
type AppContext struct {
	AppMetadata AppMetadata `json:"appMetadata"`
	Origin      string      `json:"origin"`
	SDKVersion  string      `json:"sdkVersion"`
}

// ConnectData 连接响应负载
type ConnectData struct {
	Address common.Address `json:"address"`
	ChainID int64          `json:"chainId"`
}

// TxResultData 交易/签名类响应负载(哈希或错误二选一)
type TxResultData struct {
	Hash  string `json:"hash,omitempty"`
	Error string `json:"error,omitempty"`
}

// SwitchWalletVersionRequest 钱包方案切换请求负载
type SwitchWalletVersionRequest struct {
	Version string `json:"version"`
}

// SwitchChainData 链切换响应负载
type SwitchChainData struct {
	ChainID int64  `json:"chainId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TransactionRequest 发送交易请求负载
type TransactionRequest struct {
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Value    string `json:"value,omitempty"`
	Data     string `json:"data,omitempty"`
	Gas      string `json:"gas,omitempty"`
	GasPrice string `json:"gasPrice,omitempty"`
}

// SignDataRequest 签名请求负载
type SignDataRequest struct {
	Account string `json:"account,omitempty"`
	Message string `json:"message"`
}

// SignTypedDataRequest EIP-712结构化签名请求负载
type SignTypedDataRequest struct {
	Account     string          `json:"account,omitempty"`
	Domain      json.RawMessage `json:"domain,omitempty"`
	Types       json.RawMessage `json:"types,omitempty"`
	PrimaryType string          `json:"primaryType,omitempty"`
	Message     json.RawMessage `json:"message,omitempty"`
}
