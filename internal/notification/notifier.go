// Package notification 向编辑者推送保存结果通知
package notification

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"promptlib/internal/metrics"

	"go.uber.org/zap"
)

// Level 通知级别
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice 一条面向用户的通知
type Notice struct {
	Level    Level          `json:"level"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	PromptID string         `json:"prompt_id,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	At       time.Time      `json:"at"`
}

// Notifier 保存流程使用的通知接口
type Notifier interface {
	Success(ctx context.Context, userID string, n Notice)
	Warn(ctx context.Context, userID string, n Notice)
	Error(ctx context.Context, userID string, n Notice)
}

// Sender 按级别发送，Notifier 的各方法都委托到这里
type Sender interface {
	Send(ctx context.Context, userID string, n Notice) error
}

type levelNotifier struct {
	sender Sender
	logger *zap.Logger
}

// FromSender 把 Sender 包装为 Notifier，发送失败只记录日志
func FromSender(sender Sender, logger *zap.Logger) Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &levelNotifier{sender: sender, logger: logger}
}

func (l *levelNotifier) Success(ctx context.Context, userID string, n Notice) {
	l.send(ctx, userID, LevelSuccess, n)
}

func (l *levelNotifier) Warn(ctx context.Context, userID string, n Notice) {
	l.send(ctx, userID, LevelWarning, n)
}

func (l *levelNotifier) Error(ctx context.Context, userID string, n Notice) {
	l.send(ctx, userID, LevelError, n)
}

func (l *levelNotifier) send(ctx context.Context, userID string, level Level, n Notice) {
	n.Level = level
	if n.At.IsZero() {
		n.At = time.Now()
	}
	if err := l.sender.Send(ctx, userID, n); err != nil {
		l.logger.Warn("发送保存通知失败",
			zap.String("user_id", userID),
			zap.String("level", string(level)),
			zap.Error(err))
	}
}

// LogSender 写入日志的发送器，无实时通道时使用
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender 创建日志发送器
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send 记录通知
func (s *LogSender) Send(_ context.Context, userID string, n Notice) error {
	fields := []zap.Field{
		zap.String("user_id", userID),
		zap.String("prompt_id", n.PromptID),
		zap.String("title", n.Title),
		zap.String("message", n.Message),
	}
	switch n.Level {
	case LevelError:
		s.logger.Error("保存通知", fields...)
	case LevelWarning:
		s.logger.Warn("保存通知", fields...)
	default:
		s.logger.Info("保存通知", fields...)
	}
	metrics.NotificationsTotal.WithLabelValues(string(n.Level), "log").Inc()
	return nil
}

// HubSender 通过 WebSocket 推送，离线时进入离线队列
type HubSender struct {
	hub *WebSocketHub
}

// NewHubSender 创建 WebSocket 发送器
func NewHubSender(hub *WebSocketHub) *HubSender {
	return &HubSender{hub: hub}
}

// Send 推送通知
func (s *HubSender) Send(_ context.Context, userID string, n Notice) error {
	if s.hub == nil || userID == "" {
		return nil
	}
	payload := map[string]any{
		"type":   "prompt.save",
		"notice": n,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	metrics.NotificationsTotal.WithLabelValues(string(n.Level), "websocket").Inc()
	return s.hub.SendToUser(userID, data)
}

// MultiSender 多通道发送，返回第一个错误
type MultiSender []Sender

// Send 依次发送到所有通道
func (m MultiSender) Send(ctx context.Context, userID string, n Notice) error {
	var firstErr error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Send(ctx, userID, n); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Recorder 记录所有通知，用于测试
type Recorder struct {
	mu      sync.Mutex
	notices []Recorded
}

// Recorded 已记录的通知
type Recorded struct {
	UserID string
	Notice Notice
}

func (r *Recorder) Success(_ context.Context, userID string, n Notice) {
	r.record(userID, LevelSuccess, n)
}

func (r *Recorder) Warn(_ context.Context, userID string, n Notice) {
	r.record(userID, LevelWarning, n)
}

func (r *Recorder) Error(_ context.Context, userID string, n Notice) {
	r.record(userID, LevelError, n)
}

func (r *Recorder) record(userID string, level Level, n Notice) {
	n.Level = level
	r.mu.Lock()
	r.notices = append(r.notices, Recorded{UserID: userID, Notice: n})
	r.mu.Unlock()
}

// All 返回全部通知的副本
func (r *Recorder) All() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.notices...)
}

// ByLevel 返回指定级别的通知
func (r *Recorder) ByLevel(level Level) []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notice
	for _, rec := range r.notices {
		if rec.Notice.Level == level {
			out = append(out, rec.Notice)
		}
	}
	return out
}
