package saveflow

import (
	"context"
	"time"

	"promptlib/internal/apperr"
	"promptlib/internal/permission"
	"promptlib/internal/prompt"
)

// State 保存流程状态
type State string

const (
	StateValidating      State = "VALIDATING"
	StatePermissionCheck State = "PERMISSION_CHECK"
	StateConflictCheck   State = "CONFLICT_CHECK"
	StatePersisting      State = "PERSISTING"
	StateSideEffects     State = "SIDE_EFFECTS"
	StateDone            State = "DONE"
	StateAborted         State = "ABORTED"
	StateFailed          State = "FAILED"
)

// Terminal 是否为终态
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted || s == StateFailed
}

// Mode 保存模式
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// 附属步骤名称
const (
	StepVariables = "variables"
	StepSnapshot  = "snapshot"
	StepCache     = "cache"
)

// Input 一次保存请求
type Input struct {
	Mode     Mode
	RecordID string
	Form     *prompt.Form
	// ClientUpdatedAt 编辑器加载记录时看到的 updated_at，仅编辑模式使用
	ClientUpdatedAt time.Time
}

// Warning 附属步骤失败，不影响保存结果
type Warning struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Failure 保存未完成的原因
type Failure struct {
	Kind            apperr.Kind       `json:"kind"`
	Message         string            `json:"message"`
	CanRetry        bool              `json:"can_retry"`
	Reason          permission.Reason `json:"reason,omitempty"`
	FieldErrors     map[string]string `json:"field_errors,omitempty"`
	ServerUpdatedAt *time.Time        `json:"server_updated_at,omitempty"`
	ReloadRequired  bool              `json:"reload_required,omitempty"`
	Err             error             `json:"-"`

	// Retry 以相同输入重新执行，仅 CanRetry 为 true 时设置
	Retry func(ctx context.Context) (*Outcome, error) `json:"-"`
}

// Outcome 保存结果
type Outcome struct {
	Mode        Mode      `json:"mode"`
	State       State     `json:"state"`
	Trail       []State   `json:"trail"`
	RecordID    string    `json:"record_id,omitempty"`
	HighlightID string    `json:"highlight_id,omitempty"`
	Created     bool      `json:"created"`
	Attempt     int       `json:"attempt"`
	Warnings    []Warning `json:"warnings,omitempty"`
	Failure     *Failure  `json:"failure,omitempty"`

	enteredAt time.Time
}

// Saved 主记录已写入
func (o *Outcome) Saved() bool {
	return o != nil && o.State == StateDone
}

// NeedsFollowUp 已保存但有附属步骤失败，需要提示用户
func (o *Outcome) NeedsFollowUp() bool {
	return o.Saved() && len(o.Warnings) > 0
}

func (o *Outcome) warn(step, message string, err error) {
	o.Warnings = append(o.Warnings, Warning{Step: step, Message: message, Err: err})
}
