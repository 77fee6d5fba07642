package prompt

import (
	"time"

	"gorm.io/datatypes"
)

// Visibility 可见性
type Visibility string

const (
	VisibilityPrivate Visibility = "PRIVATE"
	VisibilityShared  Visibility = "SHARED"
)

// Status 发布状态
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPublished Status = "PUBLISHED"
	StatusArchived  Status = "ARCHIVED"
)

// Permission 共享或公开权限
type Permission string

const (
	PermissionRead  Permission = "READ"
	PermissionWrite Permission = "WRITE"
)

// VariableType 模板变量类型
type VariableType string

const (
	VariableString      VariableType = "STRING"
	VariableNumber      VariableType = "NUMBER"
	VariableBoolean     VariableType = "BOOLEAN"
	VariableDate        VariableType = "DATE"
	VariableEnum        VariableType = "ENUM"
	VariableMultiString VariableType = "MULTISTRING"
)

// InitialVersion 首次保存时的语义化版本号
const InitialVersion = "1.0.0"

// Prompt Prompt 主记录
type Prompt struct {
	ID               string     `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Title            string     `json:"title" gorm:"size:255;not null"`
	Description      *string    `json:"description" gorm:"type:text"`
	Content          string     `json:"content" gorm:"type:text;not null"`
	Tags             []string   `json:"tags" gorm:"type:jsonb;serializer:json"`
	Visibility       Visibility `json:"visibility" gorm:"type:varchar(20);not null;default:PRIVATE"`
	Status           Status     `json:"status" gorm:"type:varchar(20);not null;default:PUBLISHED"`
	PublicPermission Permission `json:"public_permission" gorm:"type:varchar(20);not null;default:READ"`
	OwnerID          string     `json:"owner_id" gorm:"type:varchar(64);not null;index"`
	Version          string     `json:"version" gorm:"size:50;not null"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (Prompt) TableName() string {
	return "prompts"
}

// Variable 模板变量，整组随每次保存替换
type Variable struct {
	ID                string                      `json:"id" gorm:"primaryKey;type:varchar(64)"`
	PromptID          string                      `json:"prompt_id" gorm:"type:varchar(64);not null;index"`
	Name              string                      `json:"name" gorm:"size:100;not null"`
	Type              VariableType                `json:"type" gorm:"type:varchar(20);not null"`
	Required          bool                        `json:"required"`
	DefaultValue      string                      `json:"default_value" gorm:"type:text"`
	HelpText          string                      `json:"help_text" gorm:"type:text"`
	ValidationPattern string                      `json:"validation_pattern" gorm:"size:500"`
	Options           datatypes.JSONSlice[string] `json:"options"`
	OrderIndex        int                         `json:"order_index" gorm:"not null"`
}

func (Variable) TableName() string {
	return "prompt_variables"
}

// VariableSnapshot 版本中保存的变量副本
type VariableSnapshot struct {
	Name              string       `json:"name"`
	Type              VariableType `json:"type"`
	Required          bool         `json:"required"`
	DefaultValue      string       `json:"default_value,omitempty"`
	HelpText          string       `json:"help_text,omitempty"`
	ValidationPattern string       `json:"validation_pattern,omitempty"`
	Options           []string     `json:"options,omitempty"`
	OrderIndex        int          `json:"order_index"`
}

// Version 不可变的内容快照
type Version struct {
	ID        string             `json:"id" gorm:"primaryKey;type:varchar(64)"`
	PromptID  string             `json:"prompt_id" gorm:"type:varchar(64);not null;uniqueIndex:idx_prompt_version"`
	Version   string             `json:"version" gorm:"size:50;not null;uniqueIndex:idx_prompt_version"`
	Content   string             `json:"content" gorm:"type:text;not null"`
	Message   string             `json:"message" gorm:"type:text"`
	Variables []VariableSnapshot `json:"variables" gorm:"type:jsonb;serializer:json"`
	CreatedBy string             `json:"created_by" gorm:"type:varchar(64)"`
	CreatedAt time.Time          `json:"created_at" gorm:"not null;autoCreateTime"`
}

func (Version) TableName() string {
	return "prompt_versions"
}

// Share 指定用户的显式授权，与公开可见性无关
type Share struct {
	ID         string     `json:"id" gorm:"primaryKey;type:varchar(64)"`
	PromptID   string     `json:"prompt_id" gorm:"type:varchar(64);not null;uniqueIndex:idx_prompt_share_user"`
	UserID     string     `json:"user_id" gorm:"type:varchar(64);not null;uniqueIndex:idx_prompt_share_user"`
	Permission Permission `json:"permission" gorm:"type:varchar(20);not null"`
	CreatedAt  time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (Share) TableName() string {
	return "prompt_shares"
}

// Patch 编辑模式下的部分更新，nil 字段保持不变
type Patch struct {
	Title            *string
	Description      *string
	ClearDescription bool
	Content          *string
	Tags             []string
	Visibility       *Visibility
	Status           *Status
	PublicPermission *Permission
}

// SnapshotResult 初始快照创建结果
type SnapshotResult struct {
	Success bool
	Skipped bool
	Version *Version
}

// Snapshot 生成版本中使用的变量副本
func (v Variable) Snapshot() VariableSnapshot {
	return VariableSnapshot{
		Name:              v.Name,
		Type:              v.Type,
		Required:          v.Required,
		DefaultValue:      v.DefaultValue,
		HelpText:          v.HelpText,
		ValidationPattern: v.ValidationPattern,
		Options:           append([]string(nil), v.Options...),
		OrderIndex:        v.OrderIndex,
	}
}

// Models 需要迁移的全部模型
func Models() []any {
	return []any{&Prompt{}, &Variable{}, &Version{}, &Share{}}
}
