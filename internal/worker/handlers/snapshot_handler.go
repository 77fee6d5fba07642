package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"promptlib/internal/prompt"
	"promptlib/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// SnapshotCreator 幂等地创建首个版本
type SnapshotCreator interface {
	CreateInitial(ctx context.Context, promptID, content string, vars []prompt.Variable) (*prompt.SnapshotResult, error)
}

// SnapshotHandler 补建保存时未能创建的初始版本
type SnapshotHandler struct {
	snapshots SnapshotCreator
	logger    *zap.Logger
}

func NewSnapshotHandler(snapshots SnapshotCreator, logger *zap.Logger) *SnapshotHandler {
	return &SnapshotHandler{
		snapshots: snapshots,
		logger:    logger,
	}
}

// HandleRepairSnapshot 以入队时携带的首次内容创建初始版本，已存在时跳过
func (h *SnapshotHandler) HandleRepairSnapshot(ctx context.Context, t *asynq.Task) error {
	var p tasks.RepairSnapshotPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json unmarshal failed: %w: %w", err, asynq.SkipRetry)
	}

	res, err := h.snapshots.CreateInitial(ctx, p.PromptID, p.Content, p.Variables)
	if err != nil {
		if errors.Is(err, prompt.ErrNotFound) {
			h.logger.Info("Prompt 已删除，跳过初始版本补建", zap.String("prompt_id", p.PromptID))
			return nil
		}
		h.logger.Error("初始版本补建失败", zap.String("prompt_id", p.PromptID), zap.Error(err))
		return err
	}
	if res == nil || (!res.Success && !res.Skipped) {
		return fmt.Errorf("initial version for %s was not created", p.PromptID)
	}

	h.logger.Info("初始版本补建完成",
		zap.String("prompt_id", p.PromptID),
		zap.Bool("skipped", res.Skipped),
	)
	return nil
}
