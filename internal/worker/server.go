// Package worker 处理保存流程的后台补偿任务
package worker

import (
	"context"

	"promptlib/internal/config"
	"promptlib/internal/infra/queue"
	"promptlib/internal/worker/handlers"
	"promptlib/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// 快照补建只是少量数据库写入，小并发即可
const concurrency = 4

// Server asynq 任务服务器
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

// NewServer 创建 Worker，只消费快照补建队列
func NewServer(cfg config.RedisConfig, snapshots *handlers.SnapshotHandler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeRepairSnapshot, snapshots.HandleRepairSnapshot)

	srv := asynq.NewServer(queue.RedisOpt(cfg), asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue.QueueSnapshots: 1},
		Logger:      logger.Sugar(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Error("补偿任务执行失败",
				zap.String("type", task.Type()),
				zap.ByteString("payload", task.Payload()),
				zap.Int("retried", retried),
				zap.Int("max_retry", maxRetry),
				zap.Error(err),
			)
		}),
	})

	return &Server{server: srv, mux: mux, logger: logger}
}

// Start 非阻塞启动
func (s *Server) Start() error {
	s.logger.Info("补偿 Worker 启动", zap.String("queue", queue.QueueSnapshots))
	return s.server.Start(s.mux)
}

// Shutdown 等待进行中的任务结束后停止
func (s *Server) Shutdown() {
	s.logger.Info("补偿 Worker 停止中...")
	s.server.Shutdown()
}
