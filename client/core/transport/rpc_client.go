package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/luminawallet/sdk-go/pkg/types"
)

// RPCClient JSON-RPC 2.0 客户端
//
// 用于回执轮询(eth_getTransactionReceipt)和provider的只读方法
// 透传。端点按请求传入:回执端点来自批次记录的rpcUrl。
type RPCClient struct {
	httpClient *http.Client
	nextID     atomic.Uint64
	log        *zap.Logger
}

// NewRPCClient 创建JSON-RPC客户端
func NewRPCClient(timeout time.Duration, logger *zap.Logger) *RPCClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RPCClient{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log: logger,
	}
}

// jsonrpcRequest JSON-RPC 2.0 请求
type jsonrpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      uint64        `json:"id"`
}

// jsonrpcResponse JSON-RPC 2.0 响应
type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
	ID      uint64          `json:"id"`
}

// jsonrpcError JSON-RPC 2.0 错误
type jsonrpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Call 统一的JSON-RPC调用方法
func (c *RPCClient) Call(ctx context.Context, endpoint string, method string, params []interface{}, result interface{}) error {
	if params == nil {
		params = []interface{}{}
	}

	req := &jsonrpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Debug("关闭响应体失败", zap.Error(err))
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var jsonResp jsonrpcResponse
	if err := json.Unmarshal(respBody, &jsonResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	if jsonResp.Error != nil {
		return fmt.Errorf("jsonrpc error %d: %s", jsonResp.Error.Code, jsonResp.Error.Message)
	}

	if result != nil && len(jsonResp.Result) > 0 {
		if err := json.Unmarshal(jsonResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}

	return nil
}

// TransactionReceipt 获取交易回执
//
// 交易未上链时回执为nil(JSON-RPC返回null),不是错误。
func (c *RPCClient) TransactionReceipt(ctx context.Context, endpoint string, txHash string) (*types.CallReceipt, error) {
	var receipt *types.CallReceipt
	if err := c.Call(ctx, endpoint, "eth_getTransactionReceipt", []interface{}{txHash}, &receipt); err != nil {
		return nil, fmt.Errorf("get transaction receipt: %w", err)
	}
	return receipt, nil
}
