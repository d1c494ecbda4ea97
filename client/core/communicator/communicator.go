// Package communicator brokers correlated request/response messaging with the signing popup.
package communicator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/luminawallet/sdk-go/client/core/transport"
	"github.com/luminawallet/sdk-go/pkg/constants"
	"github.com/luminawallet/sdk-go/pkg/types"
)

// ErrPopupClosed 弹窗在响应到达前被关闭
//
// 作为取消信号扇出到所有等待中的请求,携带用户拒绝错误码。
var ErrPopupClosed = types.NewProviderError(types.ErrCodeUserRejected,
	"request cancelled: popup closed before response")

// popupState 弹窗状态机: closed → opening → open → closed
type popupState int

const (
	stateClosed popupState = iota
	stateOpening
	stateOpen
)

// Config 通信器配置
type Config struct {
	// BackendURL 签名界面地址(固定后端)
	BackendURL string

	// TrustedOrigin 受信来源,空则取BackendURL
	//
	// 入站消息的传输层origin不等于该值时静默丢弃,
	// 防止跨源伪造响应。
	TrustedOrigin string

	// AppOrigin 嵌入方应用origin(随每条消息发送)
	AppOrigin string

	// AppMetadata 应用元信息(弹窗加载后推送)
	AppMetadata types.AppMetadata

	// DefaultChainID appContext消息使用的链ID
	DefaultChainID int64

	// Opener 弹窗打开器
	Opener transport.Opener

	// OnDisconnect 弹窗关闭回调
	OnDisconnect func()

	Logger *zap.Logger
}

// waiter 谓词等待者(与关联ID无关的带外事件监听)
type waiter struct {
	pred func(*types.MessageResponse) bool
	ch   chan *types.MessageResponse
}

// Communicator 弹窗通信器
//
// 持有弹窗单例与关联表:每个在途请求以requestId登记一个
// 待决项,入站分发按requestId精确匹配投递。通道不保证投递
// 顺序,唯一的顺序保证是一个requestId恰好对应一条响应。
type Communicator struct {
	cfg Config
	log *zap.Logger

	// openMu 串行化弹窗打开握手,保证弹窗进程级单例复用
	openMu sync.Mutex

	mu           sync.Mutex
	state        popupState
	popup        transport.Popup
	closedCh     chan struct{} // 每代弹窗一个,弹窗关闭时close
	pending      map[string]chan *types.MessageResponse
	waiters      map[uint64]*waiter
	nextWaiterID uint64
}

// New 创建通信器
func New(cfg Config) (*Communicator, error) {
	if cfg.BackendURL == "" {
		cfg.BackendURL = constants.DefaultBackendURL
	}
	if cfg.TrustedOrigin == "" {
		cfg.TrustedOrigin = cfg.BackendURL
	}
	if cfg.DefaultChainID == 0 {
		cfg.DefaultChainID = constants.DefaultChainID
	}
	if cfg.Opener == nil {
		return nil, fmt.Errorf("communicator: opener is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Communicator{
		cfg:     cfg,
		log:     cfg.Logger,
		state:   stateClosed,
		pending: make(map[string]chan *types.MessageResponse),
		waiters: make(map[uint64]*waiter),
	}, nil
}

// PostMessage 发送消息(fire-and-forget)
//
// 弹窗未打开时先完成加载握手;已打开时置前复用。
func (c *Communicator) PostMessage(ctx context.Context, msg *types.Message) error {
	popup, _, err := c.ensureOpen(ctx)
	if err != nil {
		return err
	}
	return popup.Post(ctx, msg)
}

// PostRequestAndWaitForResponse 发送请求并等待关联响应
//
// 响应按requestId匹配;弹窗在响应前关闭时返回ErrPopupClosed。
// requestId缺省时自动生成。
func (c *Communicator) PostRequestAndWaitForResponse(ctx context.Context, msg *types.Message) (*types.MessageResponse, error) {
	if msg.RequestID == "" {
		msg.RequestID = uuid.NewString()
	}

	popup, closedCh, err := c.ensureOpen(ctx)
	if err != nil {
		return nil, err
	}

	// 登记待决项(重复的在途requestId直接拒绝)
	ch := make(chan *types.MessageResponse, 1)
	c.mu.Lock()
	if _, exists := c.pending[msg.RequestID]; exists {
		c.mu.Unlock()
		return nil, types.NewProviderErrorf(types.ErrCodeInvalidParams,
			"duplicate in-flight requestId: %s", msg.RequestID)
	}
	c.pending[msg.RequestID] = ch
	c.mu.Unlock()

	if err := popup.Post(ctx, msg); err != nil {
		c.removePending(msg.RequestID)
		return nil, fmt.Errorf("post request: %w", err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-closedCh:
		// 登记可能晚于handleClosed换表,待决项须自行清理
		c.removePending(msg.RequestID)
		return nil, ErrPopupClosed
	case <-ctx.Done():
		c.removePending(msg.RequestID)
		return nil, ctx.Err()
	}
}

// OnMessage 等待第一条满足谓词的入站消息
//
// 与关联ID无关,用于弹窗就绪等带外事件;同样只接受受信来源。
func (c *Communicator) OnMessage(ctx context.Context, pred func(*types.MessageResponse) bool) (*types.MessageResponse, error) {
	c.mu.Lock()
	closedCh := c.closedCh
	c.mu.Unlock()
	return c.awaitMessage(ctx, closedCh, pred)
}

// Close 主动关闭弹窗
func (c *Communicator) Close() error {
	c.mu.Lock()
	popup := c.popup
	c.mu.Unlock()

	if popup == nil {
		return nil
	}
	return popup.Close()
}

// ===== 内部实现 =====

// ensureOpen 确保弹窗打开并完成加载握手
//
// 已打开:置前复用,绝不开第二个弹窗。未打开:打开→等待
// POPUP_LOADED→推送appContext→标记open。
func (c *Communicator) ensureOpen(ctx context.Context) (transport.Popup, <-chan struct{}, error) {
	c.openMu.Lock()
	defer c.openMu.Unlock()

	c.mu.Lock()
	if c.state == stateOpen && c.popup != nil {
		popup, closedCh := c.popup, c.closedCh
		c.mu.Unlock()
		popup.Focus()
		return popup, closedCh, nil
	}
	c.mu.Unlock()

	return c.openAndWaitForLoaded(ctx)
}

// openAndWaitForLoaded 打开弹窗并执行一次性加载握手
func (c *Communicator) openAndWaitForLoaded(ctx context.Context) (transport.Popup, <-chan struct{}, error) {
	popup, err := c.cfg.Opener(ctx, c.cfg.BackendURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open popup: %w", err)
	}

	closedCh := make(chan struct{})
	c.mu.Lock()
	c.popup = popup
	c.closedCh = closedCh
	c.state = stateOpening
	c.mu.Unlock()

	// 等待者先于分发循环注册,避免加载信号在注册前被丢弃
	id, w := c.registerWaiter(func(m *types.MessageResponse) bool {
		return m.Event == types.EventPopupLoaded
	})

	go c.dispatchLoop(popup, closedCh)

	loaded, err := c.waitWaiter(ctx, closedCh, id, w)
	if err != nil {
		_ = popup.Close()
		return nil, nil, fmt.Errorf("wait for popup loaded: %w", err)
	}

	// 加载完成后立即推送应用上下文,此后弹窗才算就绪
	appCtx := &types.Message{
		Event:     types.EventPopupAppContext,
		RequestID: loaded.RequestID,
		ChainID:   c.cfg.DefaultChainID,
		Origin:    c.cfg.AppOrigin,
		Data: types.AppContext{
			AppMetadata: c.cfg.AppMetadata,
			Origin:      c.cfg.AppOrigin,
			SDKVersion:  constants.SDKVersion,
		},
	}
	if err := popup.Post(ctx, appCtx); err != nil {
		_ = popup.Close()
		return nil, nil, fmt.Errorf("push app context: %w", err)
	}

	c.mu.Lock()
	c.state = stateOpen
	c.mu.Unlock()

	c.log.Debug("弹窗加载握手完成", zap.String("backend", c.cfg.BackendURL))

	return popup, closedCh, nil
}

// dispatchLoop 入站分发循环(每代弹窗一个goroutine)
func (c *Communicator) dispatchLoop(popup transport.Popup, closedCh chan struct{}) {
	for {
		select {
		case env, ok := <-popup.Inbound():
			if !ok {
				c.handleClosed(popup, closedCh)
				return
			}
			c.dispatch(&env)
		case <-popup.Done():
			c.handleClosed(popup, closedCh)
			return
		}
	}
}

// dispatch 单条入站消息分发
//
// 来源不受信时静默丢弃,即使requestId匹配也绝不投递。
func (c *Communicator) dispatch(env *transport.Envelope) {
	if env.Origin != c.cfg.TrustedOrigin {
		c.log.Debug("丢弃非受信来源消息", zap.String("origin", env.Origin))
		return
	}

	var resp types.MessageResponse
	if err := json.Unmarshal(env.Raw, &resp); err != nil {
		c.log.Debug("入站消息解析失败", zap.Error(err))
		return
	}

	// 先按requestId匹配待决项(一个requestId只投递一次)
	c.mu.Lock()
	if resp.RequestID != "" {
		if ch, ok := c.pending[resp.RequestID]; ok {
			delete(c.pending, resp.RequestID)
			c.mu.Unlock()
			ch <- &resp
			return
		}
	}

	// 再尝试谓词等待者
	for id, w := range c.waiters {
		if w.pred(&resp) {
			delete(c.waiters, id)
			c.mu.Unlock()
			w.ch <- &resp
			return
		}
	}
	c.mu.Unlock()

	c.log.Debug("无匹配接收者的入站消息",
		zap.String("event", string(resp.Event)),
		zap.String("requestId", resp.RequestID))
}

// handleClosed 弹窗关闭处理
//
// 单个取消信号扇出到所有待决项与等待者,状态机回到closed。
func (c *Communicator) handleClosed(popup transport.Popup, closedCh chan struct{}) {
	c.mu.Lock()
	if c.popup == popup {
		c.popup = nil
		c.state = stateClosed
	}
	pendingCount := len(c.pending)
	c.pending = make(map[string]chan *types.MessageResponse)
	c.waiters = make(map[uint64]*waiter)
	c.mu.Unlock()

	close(closedCh)

	if pendingCount > 0 {
		c.log.Debug("弹窗关闭,取消在途请求", zap.Int("pending", pendingCount))
	}

	if c.cfg.OnDisconnect != nil {
		c.cfg.OnDisconnect()
	}
}

// awaitMessage 注册谓词等待者并等待
func (c *Communicator) awaitMessage(ctx context.Context, closedCh <-chan struct{}, pred func(*types.MessageResponse) bool) (*types.MessageResponse, error) {
	id, w := c.registerWaiter(pred)
	return c.waitWaiter(ctx, closedCh, id, w)
}

// registerWaiter 登记谓词等待者
func (c *Communicator) registerWaiter(pred func(*types.MessageResponse) bool) (uint64, *waiter) {
	w := &waiter{
		pred: pred,
		ch:   make(chan *types.MessageResponse, 1),
	}

	c.mu.Lock()
	c.nextWaiterID++
	id := c.nextWaiterID
	c.waiters[id] = w
	c.mu.Unlock()

	return id, w
}

// waitWaiter 等待已登记的等待者命中
func (c *Communicator) waitWaiter(ctx context.Context, closedCh <-chan struct{}, id uint64, w *waiter) (*types.MessageResponse, error) {
	defer func() {
		c.mu.Lock()
		delete(c.waiters, id)
		c.mu.Unlock()
	}()

	select {
	case resp := <-w.ch:
		return resp, nil
	case <-closedCh:
		return nil, ErrPopupClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// removePending 移除待决项
func (c *Communicator) removePending(requestID string) {
	c.mu.Lock()
	delete(c.pending, requestID)
	c.mu.Unlock()
}
