// Package conflict 检测编辑期间记录是否已被他人修改
package conflict

import (
	"context"
	"time"

	"promptlib/internal/prompt"

	"go.uber.org/zap"
)

// DefaultTimeout 读取服务端记录的默认超时
const DefaultTimeout = 5 * time.Second

// Reader 读取权威记录
type Reader interface {
	FetchByID(ctx context.Context, id string) (*prompt.Prompt, error)
}

// Result 冲突检测结果
type Result struct {
	HasConflict     bool
	ServerUpdatedAt *time.Time
}

// Guard 基于 updated_at 的乐观并发检查
type Guard struct {
	reader  Reader
	logger  *zap.Logger
	timeout time.Duration
}

// NewGuard 创建冲突检测器
func NewGuard(reader Reader, logger *zap.Logger, timeout time.Duration) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Guard{reader: reader, logger: logger, timeout: timeout}
}

// Check 比较服务端与客户端已知的 updated_at
//
// 服务端时间严格晚于客户端时间才算冲突。读取失败时不阻塞保存，只记录日志。
// recordID 为空（新建）时不发起读取。
func (g *Guard) Check(ctx context.Context, recordID string, clientUpdatedAt time.Time) Result {
	if recordID == "" || g.reader == nil {
		return Result{}
	}

	lookupCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	server, err := g.reader.FetchByID(lookupCtx, recordID)
	if err != nil || server == nil {
		g.logger.Warn("conflict check skipped, server record unavailable",
			zap.String("prompt_id", recordID),
			zap.Error(err))
		return Result{}
	}

	serverUpdatedAt := server.UpdatedAt
	if serverUpdatedAt.After(clientUpdatedAt) {
		return Result{HasConflict: true, ServerUpdatedAt: &serverUpdatedAt}
	}
	return Result{ServerUpdatedAt: &serverUpdatedAt}
}
