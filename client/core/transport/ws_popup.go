package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSPopup WebSocket弹窗通道实现
//
// 用于非浏览器宿主:签名界面作为独立进程/远端页面,经WebSocket
// 与连接器通信。每帧是一个Envelope,origin由对端握手时声明。
type WSPopup struct {
	endpoint  string
	conn      *websocket.Conn
	inbound   chan Envelope
	done      chan struct{}
	writeMu   sync.Mutex
	closeOnce sync.Once
	log       *zap.Logger
}

// DialPopup 连接签名界面后端
func DialPopup(ctx context.Context, backendURL string, logger *zap.Logger) (*WSPopup, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, toWSURL(backendURL), nil)
	if err != nil {
		return nil, fmt.Errorf("dial popup backend: %w", err)
	}
	if resp != nil && resp.Body != nil {
		if err := resp.Body.Close(); err != nil {
			logger.Debug("关闭握手响应体失败", zap.Error(err))
		}
	}

	p := &WSPopup{
		endpoint: backendURL,
		conn:     conn,
		inbound:  make(chan Envelope, 16),
		done:     make(chan struct{}),
		log:      logger,
	}

	go p.readLoop()

	return p, nil
}

// NewWSOpener 返回基于WebSocket的Opener
func NewWSOpener(logger *zap.Logger) Opener {
	return func(ctx context.Context, backendURL string) (Popup, error) {
		return DialPopup(ctx, backendURL, logger)
	}
}

// toWSURL http(s)端点转ws(s)
func toWSURL(u string) string {
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	default:
		return u
	}
}

// readLoop 消息读取循环
//
// 读错误(含对端关闭)统一视为弹窗关闭:关闭done,由上层
// 把取消信号扇出到所有等待中的请求。
func (p *WSPopup) readLoop() {
	defer p.signalClosed()

	for {
		var env Envelope
		if err := p.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.log.Debug("弹窗通道读取中断", zap.Error(err))
			}
			return
		}

		select {
		case p.inbound <- env:
		case <-p.done:
			return
		}
	}
}

func (p *WSPopup) signalClosed() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
}

func (p *WSPopup) Post(ctx context.Context, payload interface{}) error {
	select {
	case <-p.done:
		return fmt.Errorf("popup closed")
	default:
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = p.conn.SetWriteDeadline(deadline)
	} else {
		_ = p.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	}

	if err := p.conn.WriteJSON(payload); err != nil {
		return fmt.Errorf("write popup message: %w", err)
	}
	return nil
}

func (p *WSPopup) Inbound() <-chan Envelope {
	return p.inbound
}

func (p *WSPopup) Done() <-chan struct{} {
	return p.done
}

// Focus 置前弹窗
//
// WebSocket宿主下签名界面自行管理前台状态,这里仅记录调试日志。
func (p *WSPopup) Focus() {
	p.log.Debug("focus popup", zap.String("endpoint", p.endpoint))
}

func (p *WSPopup) Close() error {
	p.signalClosed()

	p.writeMu.Lock()
	_ = p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	p.writeMu.Unlock()

	return p.conn.Close()
}

// 确保WSPopup实现Popup接口
var _ Popup = (*WSPopup)(nil)
