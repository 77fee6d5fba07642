// Package notifications 提供保存通知的 WebSocket 接入
package notifications

import (
	"net/http"
	"time"

	"promptlib/api/handlers/common"
	"promptlib/internal/auth"
	"promptlib/internal/notification"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WebSocketHandler 管理保存通知的 WebSocket 连接
type WebSocketHandler struct {
	hub      *notification.WebSocketHub
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建处理器
func NewWebSocketHandler(hub *notification.WebSocketHub) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 5 * time.Second,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Connect 升级连接并注册客户端
// @Summary 保存通知 WebSocket
// @Tags Notifications
// @Router /api/ws/notifications [get]
func (h *WebSocketHandler) Connect(c *gin.Context) {
	if h == nil || h.hub == nil {
		common.Fail(c, http.StatusServiceUnavailable, "UNAVAILABLE", "WebSocket 服务未就绪")
		return
	}
	userID, ok := auth.ActorFromContext(c.Request.Context())
	if !ok {
		common.Fail(c, http.StatusUnauthorized, "NOT_AUTHENTICATED", "缺少用户上下文")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Minute))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * time.Minute))
	})

	_ = conn.WriteJSON(gin.H{
		"type":    "connected",
		"message": "WebSocket 已连接",
	})
	h.hub.Register(userID, conn)

	go h.readLoop(userID, conn)
}

func (h *WebSocketHandler) readLoop(userID string, conn *websocket.Conn) {
	defer func() {
		h.hub.Unregister(userID, conn)
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
