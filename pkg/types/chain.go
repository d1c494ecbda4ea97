// Package types provides wallet-connector type definitions.
package types

// Chain 会话当前绑定的链
//
// RPCURL 为空时由上层按链ID补默认RPC端点。
type Chain struct {
	ID     int64  `json:"id"`
	RPCURL string `json:"rpcUrl,omitempty"`
}
