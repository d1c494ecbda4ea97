package types

import "encoding/json"

// ===== EIP-5792 调用批次(call bundle) =====

// BatchStatus 调用批次内部状态
type BatchStatus string

const (
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusConfirmed BatchStatus = "confirmed"
	BatchStatusFailed    BatchStatus = "failed"
	BatchStatusReverted  BatchStatus = "reverted"
)

// StatusCode 内部状态到协议状态码的固定映射
//
// 未知状态按pending处理。
func (s BatchStatus) StatusCode() int {
	switch s {
	case BatchStatusPending:
		return 100
	case BatchStatusConfirmed:
		return 200
	case BatchStatusFailed:
		return 400
	case BatchStatusReverted:
		return 500
	default:
		return 100
	}
}

// Capability 请求方声明的capability定义
//
// Optional 为 true 时,钱包不支持该capability也不报错,静默丢弃。
type Capability struct {
	Optional bool            `json:"optional,omitempty"`
	Params   json.RawMessage `json:"params,omitempty"`
}

// Call 批次内的单个调用(校验入库后不可变)
type Call struct {
	To           string                `json:"to"`
	Value        string                `json:"value,omitempty"`
	Data         string                `json:"data,omitempty"`
	Capabilities map[string]Capability `json:"capabilities,omitempty"`
}

// SendCallsParams wallet_sendCalls请求参数
type SendCallsParams struct {
	Version        string                `json:"version"`
	ID             string                `json:"id,omitempty"`
	ChainID        string                `json:"chainId"` // 十六进制,不允许前导零
	From           string                `json:"from,omitempty"`
	AtomicRequired *bool                 `json:"atomicRequired"`
	Calls          []Call                `json:"calls"`
	Capabilities   map[string]Capability `json:"capabilities,omitempty"`
}

// CallBatch 调用批次台账记录
//
// 由台账独占修改(状态迁移/回执附加),本核心从不删除。
type CallBatch struct {
	ID              string                `json:"id"`
	Version         string                `json:"version"`
	ChainID         string                `json:"chainId"` // 十六进制
	From            string                `json:"from"`
	Calls           []Call                `json:"calls"`
	Capabilities    map[string]Capability `json:"capabilities,omitempty"`
	Status          BatchStatus           `json:"status"`
	AtomicRequired  bool                  `json:"atomicRequired"`
	AtomicExecuted  bool                  `json:"atomicExecuted"`
	TransactionHash string                `json:"transactionHash,omitempty"`
	Receipts        []*CallReceipt        `json:"receipts,omitempty"`
	RPCURL          string                `json:"rpcUrl,omitempty"`
	Timestamp       int64                 `json:"timestamp"`
}

// CAIP345Capability 批次提交结果中携带的交易哈希capability
type CAIP345Capability struct {
	CAIP2             string   `json:"caip2"`
	TransactionHashes []string `json:"transactionHashes"`
}

// SendCallsCapabilities wallet_sendCalls响应capability块
type SendCallsCapabilities struct {
	CAIP345 CAIP345Capability `json:"caip345"`
}

// SendCallsResult wallet_sendCalls响应
type SendCallsResult struct {
	ID           string                 `json:"id"`
	Capabilities *SendCallsCapabilities `json:"capabilities,omitempty"`
}

// CallsStatus wallet_getCallsStatus响应
type CallsStatus struct {
	Version      string                 `json:"version"`
	ID           string                 `json:"id"`
	ChainID      string                 `json:"chainId"`
	Atomic       bool                   `json:"atomic"`
	Status       int                    `json:"status"`
	Receipts     []*CallReceipt         `json:"receipts,omitempty"`
	Capabilities *SendCallsCapabilities `json:"capabilities,omitempty"`
}

// WalletCapabilities wallet_getCapabilities响应
//
// 键为十六进制链ID;"0x0" 项承载全链通用capability,不在各链重复。
type WalletCapabilities map[string]map[string]interface{}
