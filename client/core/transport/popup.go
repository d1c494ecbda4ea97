// Package transport provides the cross-context channels used by the wallet connector.
package transport

import (
	"context"
	"encoding/json"
)

// Envelope 入站帧
//
// Origin 是传输层来源,由实现在每帧上附带;
// 通信器只接受来源等于受信后端origin的帧。
type Envelope struct {
	Origin string          `json:"origin"`
	Raw    json.RawMessage `json:"message"`
}

// Popup 签名界面(弹窗)通道
//
// 每个通道对应一个打开的签名界面实例;界面被用户关闭后
// Done被关闭,之后通道不可复用。
type Popup interface {
	// Post 发送一条消息(fire-and-forget)
	Post(ctx context.Context, payload interface{}) error

	// Inbound 入站消息流
	Inbound() <-chan Envelope

	// Done 弹窗关闭信号(关闭即触发)
	Done() <-chan struct{}

	// Focus 将已打开的弹窗置前
	Focus()

	// Close 主动关闭弹窗通道
	Close() error
}

// Opener 在固定后端地址打开签名界面
type Opener func(ctx context.Context, backendURL string) (Popup, error)
