package notification

import (
	"context"
	"sync"
	"time"

	"promptlib/internal/logger"
	"promptlib/internal/metrics"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type clientConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// WebSocketHub 管理编辑者的 WebSocket 连接，一个用户可以有多个连接
type WebSocketHub struct {
	mu                sync.RWMutex
	clients           map[string]map[*websocket.Conn]*clientConn
	offline           OfflineStore
	keepAliveInterval time.Duration
	writeTimeout      time.Duration
	logger            *zap.Logger
}

// HubOption 配置 hub
type HubOption func(*WebSocketHub)

// WithOfflineStore 指定离线存储
func WithOfflineStore(store OfflineStore) HubOption {
	return func(h *WebSocketHub) { h.offline = store }
}

// WithKeepAliveInterval 设置心跳间隔
func WithKeepAliveInterval(interval time.Duration) HubOption {
	return func(h *WebSocketHub) { h.keepAliveInterval = interval }
}

// WithHubLogger 设置日志器
func WithHubLogger(l *zap.Logger) HubOption {
	return func(h *WebSocketHub) { h.logger = l }
}

// NewWebSocketHub 创建 Hub
func NewWebSocketHub(opts ...HubOption) *WebSocketHub {
	hub := &WebSocketHub{
		clients:           make(map[string]map[*websocket.Conn]*clientConn),
		offline:           NewMemoryOfflineStore(50),
		keepAliveInterval: 30 * time.Second,
		writeTimeout:      5 * time.Second,
		logger:            logger.Get(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(hub)
		}
	}
	return hub
}

// Register 注册连接并重放离线消息
func (h *WebSocketHub) Register(userID string, conn *websocket.Conn) {
	client := &clientConn{conn: conn}

	h.mu.Lock()
	if _, ok := h.clients[userID]; !ok {
		h.clients[userID] = make(map[*websocket.Conn]*clientConn)
	}
	h.clients[userID][conn] = client
	h.mu.Unlock()

	metrics.WebSocketConnectionsGauge.Inc()
	h.replayOffline(context.Background(), userID, client)
	h.startKeepAlive(userID, client)
}

// Unregister 移除连接
func (h *WebSocketHub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.clients[userID]
	if !ok {
		return
	}
	if _, ok := conns[conn]; ok {
		delete(conns, conn)
		metrics.WebSocketConnectionsGauge.Dec()
	}
	if len(conns) == 0 {
		delete(h.clients, userID)
	}
}

// SendToUser 将消息发送给用户的所有连接，没有在线连接时写入离线队列
func (h *WebSocketHub) SendToUser(userID string, data []byte) error {
	h.mu.RLock()
	userConns := make([]*clientConn, 0, len(h.clients[userID]))
	for _, c := range h.clients[userID] {
		userConns = append(userConns, c)
	}
	h.mu.RUnlock()

	if len(userConns) == 0 {
		return h.storeOffline(context.Background(), userID, data)
	}

	var firstErr error
	for _, client := range userConns {
		client.mu.Lock()
		_ = client.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		err := client.conn.WriteMessage(websocket.TextMessage, data)
		client.mu.Unlock()
		if err != nil {
			h.Unregister(userID, client.conn)
			_ = client.conn.Close()
			_ = h.storeOffline(context.Background(), userID, data)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// ConnectedCount 返回用户的连接数
func (h *WebSocketHub) ConnectedCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Close 关闭所有连接
func (h *WebSocketHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.clients {
		for conn := range conns {
			_ = conn.Close()
			metrics.WebSocketConnectionsGauge.Dec()
		}
		delete(h.clients, userID)
	}
}

func (h *WebSocketHub) replayOffline(ctx context.Context, userID string, client *clientConn) {
	if h.offline == nil {
		return
	}
	messages, err := h.offline.Drain(ctx, userID)
	if err != nil {
		h.logger.Warn("离线消息重放失败", zap.String("user_id", userID), zap.Error(err))
		return
	}
	// 离线队列新消息在前，按时间顺序重放
	for i := len(messages) - 1; i >= 0; i-- {
		client.mu.Lock()
		_ = client.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := client.conn.WriteMessage(websocket.TextMessage, messages[i]); err != nil {
			h.logger.Debug("推送离线消息失败", zap.Error(err))
		}
		client.mu.Unlock()
	}
}

func (h *WebSocketHub) storeOffline(ctx context.Context, userID string, payload []byte) error {
	if h.offline == nil {
		return nil
	}
	return h.offline.Append(ctx, userID, payload)
}

func (h *WebSocketHub) startKeepAlive(userID string, client *clientConn) {
	if h.keepAliveInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(h.keepAliveInterval)
		defer ticker.Stop()
		for range ticker.C {
			client.mu.Lock()
			err := client.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout))
			client.mu.Unlock()
			if err != nil {
				h.Unregister(userID, client.conn)
				_ = client.conn.Close()
				return
			}
		}
	}()
}
