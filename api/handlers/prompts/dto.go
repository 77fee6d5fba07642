package prompts

import (
	"time"

	"promptlib/internal/permission"
	"promptlib/internal/prompt"
	"promptlib/internal/saveflow"
)

// HeaderSaveSession 客户端编辑器会话 ID，重试时复用
const HeaderSaveSession = "X-Save-Session"

// SaveRequest 创建或编辑请求
type SaveRequest struct {
	// ClientUpdatedAt 编辑器加载记录时的 updated_at，编辑时必填
	ClientUpdatedAt *time.Time   `json:"client_updated_at"`
	Form            *prompt.Form `json:"form"`
}

// SaveResponse 保存结果
type SaveResponse struct {
	// SessionID 可重试或客户端指定会话时返回
	SessionID     string            `json:"session_id,omitempty"`
	Saved         bool              `json:"saved"`
	NeedsFollowUp bool              `json:"needs_follow_up"`
	Outcome       *saveflow.Outcome `json:"outcome"`
}

// DetailResponse Prompt 详情，Access 按请求者计算
type DetailResponse struct {
	Prompt    *prompt.Prompt    `json:"prompt"`
	Variables []prompt.Variable `json:"variables"`
	Access    permission.Access `json:"access"`
}

// cachedDetail 缓存中保存的与请求者无关的部分
type cachedDetail struct {
	Prompt    *prompt.Prompt    `json:"prompt"`
	Variables []prompt.Variable `json:"variables"`
}

// ShareRequest 授权请求
type ShareRequest struct {
	UserID     string            `json:"user_id" binding:"required"`
	Permission prompt.Permission `json:"permission" binding:"required,oneof=READ WRITE"`
}
