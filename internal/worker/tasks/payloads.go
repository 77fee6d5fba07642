package tasks

import "promptlib/internal/prompt"

// Task Types
const (
	TypeRepairSnapshot = "prompt:repair_snapshot"
)

// RepairSnapshotPayload 初始版本补建任务载荷
//
// Content 与 Variables 为首次写入时的内容，之后的编辑不影响补建的版本。
type RepairSnapshotPayload struct {
	PromptID  string            `json:"prompt_id"`
	UserID    string            `json:"user_id"`
	Content   string            `json:"content"`
	Variables []prompt.Variable `json:"variables"`
}
