package types

import (
	"errors"
	"fmt"
)

// ===== 协议级错误码(对外稳定) =====

const (
	// ErrCodeUserRejected 用户拒绝请求(关闭弹窗/取消签名)
	ErrCodeUserRejected = 4001

	// ErrCodeUnauthorized 未连接或账户未授权
	ErrCodeUnauthorized = 4100

	// ErrCodeChainNotAdded 链切换失败(EIP-3326约定)
	ErrCodeChainNotAdded = 4902

	// ErrCodeUnsupportedCapability 请求了不支持的非可选capability
	ErrCodeUnsupportedCapability = 5700

	// ErrCodeChainMismatch 链不匹配或不支持
	ErrCodeChainMismatch = 5710

	// ErrCodeDuplicateBundle bundle id重复提交
	ErrCodeDuplicateBundle = 5720

	// ErrCodeUnknownBundle bundle id不存在
	ErrCodeUnknownBundle = 5730

	// ErrCodeInvalidParams 参数校验失败(JSON-RPC通用错误码)
	ErrCodeInvalidParams = -32602

	// ErrCodeMethodNotSupported 方法不支持
	ErrCodeMethodNotSupported = -32004

	// ErrCodeInternal 内部错误
	ErrCodeInternal = -32603
)

// ProviderError 携带稳定数字错误码的协议错误
//
// 结构化错误在整个调用链中原样透传;
// 非结构化错误由各操作按默认错误码包装后再抛出。
type ProviderError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// NewProviderError 创建协议错误
func NewProviderError(code int, message string) *ProviderError {
	return &ProviderError{Code: code, Message: message}
}

// NewProviderErrorf 创建带格式化消息的协议错误
func NewProviderErrorf(code int, format string, args ...interface{}) *ProviderError {
	return &ProviderError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsProviderError 提取错误链中的ProviderError
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// WrapUnstructured 包装非结构化错误
//
// 已携带错误码的错误原样返回,其余按defaultCode包装。
func WrapUnstructured(err error, defaultCode int) error {
	if err == nil {
		return nil
	}
	if _, ok := AsProviderError(err); ok {
		return err
	}
	return &ProviderError{Code: defaultCode, Message: err.Error()}
}
