// Package permission 计算用户对 Prompt 的有效访问级别
package permission

import (
	"promptlib/internal/prompt"
)

// Level 访问级别
type Level string

const (
	LevelOwner Level = "OWNER"
	LevelWrite Level = "WRITE"
	LevelRead  Level = "READ"
	LevelNone  Level = "NONE"
)

// Access 解析结果
type Access struct {
	Level            Level `json:"level"`
	CanEdit          bool  `json:"can_edit"`
	CanDelete        bool  `json:"can_delete"`
	CanShare         bool  `json:"can_share"`
	CanCreateVersion bool  `json:"can_create_version"`
}

// Reason 无法保存的原因
type Reason string

const (
	ReasonNotAuthenticated Reason = "NOT_AUTHENTICATED"
	ReasonNotFound         Reason = "NOT_FOUND"
	ReasonNoWriteAccess    Reason = "NO_WRITE_ACCESS"
)

// SaveCheck 编辑保存前的权限检查结果
type SaveCheck struct {
	CanSave bool   `json:"can_save"`
	Reason  Reason `json:"reason,omitempty"`
	Access  Access `json:"access"`
}

// Resolve 解析 actor 对 record 的访问级别，按以下顺序首个命中生效：
//  1. 所有者：OWNER，全部能力
//  2. 显式共享：共享权限，WRITE 才可编辑和创建版本，不可删除或再共享
//  3. SHARED 且已发布：公开权限，能力映射同上
//  4. 其他：NONE
//
// 纯函数，不访问任何存储。
func Resolve(actor string, record *prompt.Prompt, shares []prompt.Share) Access {
	if record == nil || actor == "" {
		return Access{Level: LevelNone}
	}

	if record.OwnerID == actor {
		return Access{
			Level:            LevelOwner,
			CanEdit:          true,
			CanDelete:        true,
			CanShare:         true,
			CanCreateVersion: true,
		}
	}

	for _, s := range shares {
		if s.PromptID != "" && s.PromptID != record.ID {
			continue
		}
		if s.UserID == actor {
			return fromPermission(s.Permission)
		}
	}

	if record.Visibility == prompt.VisibilityShared && record.Status == prompt.StatusPublished {
		return fromPermission(record.PublicPermission)
	}

	return Access{Level: LevelNone}
}

func fromPermission(p prompt.Permission) Access {
	switch p {
	case prompt.PermissionWrite:
		return Access{Level: LevelWrite, CanEdit: true, CanCreateVersion: true}
	case prompt.PermissionRead:
		return Access{Level: LevelRead}
	default:
		return Access{Level: LevelNone}
	}
}

// CheckSave 判断 actor 能否保存对 record 的编辑：所有者或持有 WRITE
func CheckSave(actor string, record *prompt.Prompt, shares []prompt.Share) SaveCheck {
	if actor == "" {
		return SaveCheck{Reason: ReasonNotAuthenticated, Access: Access{Level: LevelNone}}
	}
	if record == nil {
		return SaveCheck{Reason: ReasonNotFound, Access: Access{Level: LevelNone}}
	}

	access := Resolve(actor, record, shares)
	if access.Level == LevelOwner || access.Level == LevelWrite {
		return SaveCheck{CanSave: true, Access: access}
	}
	return SaveCheck{Reason: ReasonNoWriteAccess, Access: access}
}
