// Package queue 基于 asynq 的后台任务入队
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"promptlib/internal/config"
	"promptlib/internal/prompt"
	"promptlib/internal/worker/tasks"

	"github.com/hibiken/asynq"
)

// QueueSnapshots 快照补建队列名
const QueueSnapshots = "snapshots"

// Enqueuer asynq.Client 的最小接口，便于测试替换
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client 任务队列客户端
type Client struct {
	client Enqueuer
}

// RedisOpt 由配置生成 asynq 连接参数
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewClient 创建任务队列客户端
func NewClient(cfg config.RedisConfig) *Client {
	return &Client{client: asynq.NewClient(RedisOpt(cfg))}
}

// NewClientWith 使用指定的入队实现
func NewClientWith(e Enqueuer) *Client {
	return &Client{client: e}
}

// EnqueueSnapshotRepair 初始版本创建失败后入队补建
//
// 同一 Prompt 只保留一个待处理任务，重复入队视为成功。
func (c *Client) EnqueueSnapshotRepair(ctx context.Context, promptID, userID, content string, vars []prompt.Variable) error {
	payload, err := json.Marshal(tasks.RepairSnapshotPayload{
		PromptID:  promptID,
		UserID:    userID,
		Content:   content,
		Variables: vars,
	})
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}

	task := asynq.NewTask(tasks.TypeRepairSnapshot, payload)
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.TaskID("snapshot:"+promptID),
		asynq.MaxRetry(5),
		asynq.Timeout(time.Minute),
		asynq.Queue(QueueSnapshots),
	)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("enqueue task failed: %w", err)
	}
	return nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	return c.client.Close()
}
