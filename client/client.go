// Package client 钱包连接器统一入口
//
// 嵌入方(dApp宿主)通过本包装配存储、通信器、会话与提供者,
// 得到标准钱包提供者接口。
package client

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/luminawallet/sdk-go/client/core/provider"
	"github.com/luminawallet/sdk-go/client/core/storage"
	"github.com/luminawallet/sdk-go/client/core/transport"
	"github.com/luminawallet/sdk-go/client/core/wallet"
	"github.com/luminawallet/sdk-go/pkg/types"
)

// Config 连接器配置
type Config struct {
	// AppMetadata 应用元信息(弹窗加载后推送给签名界面)
	AppMetadata types.AppMetadata

	// Chain 初始链(可选)
	Chain *types.Chain

	// BackendURL 签名界面地址(空则默认后端)
	BackendURL string

	// TrustedOrigin 受信入站来源(空则取BackendURL)
	TrustedOrigin string

	// AppOrigin 嵌入方应用origin
	AppOrigin string

	// Storage 持久化后端(空则内存兜底)
	Storage storage.Store

	// Opener 自定义弹窗打开器(空则WebSocket实现)
	Opener transport.Opener

	// OnDisconnect 会话断开回调
	OnDisconnect func()

	// ReceiptTimeout 回执轮询HTTP超时(默认30s)
	ReceiptTimeout time.Duration

	Logger *zap.Logger
}

// Client 钱包连接器客户端
type Client struct {
	provider *provider.Provider
}

// New 创建连接器客户端
func New(cfg Config) (*Client, error) {
	p, err := provider.New(wallet.Config{
		AppMetadata:    cfg.AppMetadata,
		Chain:          cfg.Chain,
		BackendURL:     cfg.BackendURL,
		TrustedOrigin:  cfg.TrustedOrigin,
		AppOrigin:      cfg.AppOrigin,
		Storage:        cfg.Storage,
		Opener:         cfg.Opener,
		OnDisconnect:   cfg.OnDisconnect,
		ReceiptTimeout: cfg.ReceiptTimeout,
		Logger:         cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Client{provider: p}, nil
}

// Provider 标准钱包提供者接口
func (c *Client) Provider() *provider.Provider {
	return c.provider
}

// Wallet 底层会话
func (c *Client) Wallet() *wallet.Wallet {
	return c.provider.Wallet()
}

// Request 提供者请求快捷方式
func (c *Client) Request(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	return c.provider.Request(ctx, method, params)
}
