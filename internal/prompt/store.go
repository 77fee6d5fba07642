// Package prompt 定义 Prompt、变量、版本与共享记录及其 gorm 存储
package prompt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound = errors.New("prompt: not found")
	ErrNotOwner = errors.New("prompt: permission denied, only the owner may manage shares")
)

// PromptStore Prompt 主记录存储
//
// 每条记录的创建与更新都是单记录原子操作，updated_at 由存储端分配。
type PromptStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPromptStore 创建 PromptStore
func NewPromptStore(db *gorm.DB) *PromptStore {
	return &PromptStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create 以 ownerID 为所有者创建 Prompt，返回带 ID 的记录
func (s *PromptStore) Create(ctx context.Context, ownerID string, p *Prompt) (*Prompt, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("prompt: owner is required")
	}

	now := s.now()
	rec := *p
	rec.ID = uuid.New().String()
	rec.OwnerID = ownerID
	rec.Version = InitialVersion
	if rec.Visibility == "" {
		rec.Visibility = VisibilityPrivate
	}
	if rec.Status == "" {
		rec.Status = StatusPublished
	}
	if rec.PublicPermission == "" {
		rec.PublicPermission = PermissionRead
	}
	rec.CreatedAt = now
	rec.UpdatedAt = now

	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("create prompt: %w", err)
	}
	return &rec, nil
}

// Update 按 patch 更新 Prompt
//
// updated_at 严格递增：若当前时钟不晚于已存储的值，则在其基础上前进 1 微秒。
func (s *PromptStore) Update(ctx context.Context, id string, patch *Patch) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current Prompt
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "updated_at").
			Where("id = ?", id).
			First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load prompt: %w", err)
		}

		updatedAt := s.now()
		if !updatedAt.After(current.UpdatedAt) {
			updatedAt = current.UpdatedAt.Add(time.Microsecond)
		}

		updates := patch.columns()
		updates["updated_at"] = updatedAt

		res := tx.Model(&Prompt{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update prompt: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// FetchByID 读取权威记录
func (s *PromptStore) FetchByID(ctx context.Context, id string) (*Prompt, error) {
	var p Prompt
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch prompt: %w", err)
	}
	return &p, nil
}

// ListByOwner 按 updated_at 倒序分页列出所有者的 Prompt
func (s *PromptStore) ListByOwner(ctx context.Context, ownerID string, page, pageSize int) ([]Prompt, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&Prompt{}).Scopes(OwnedBy(ownerID)).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count prompts: %w", err)
	}

	var items []Prompt
	if err := s.db.WithContext(ctx).
		Scopes(OwnedBy(ownerID), Paginate(page, pageSize)).
		Order("updated_at DESC").
		Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("list prompts: %w", err)
	}
	return items, total, nil
}

func (p *Patch) columns() map[string]any {
	cols := make(map[string]any)
	if p == nil {
		return cols
	}
	if p.Title != nil {
		cols["title"] = *p.Title
	}
	if p.ClearDescription {
		cols["description"] = nil
	} else if p.Description != nil {
		cols["description"] = *p.Description
	}
	if p.Content != nil {
		cols["content"] = *p.Content
	}
	if p.Tags != nil {
		cols["tags"] = jsonStrings(p.Tags)
	}
	if p.Visibility != nil {
		cols["visibility"] = *p.Visibility
	}
	if p.Status != nil {
		cols["status"] = *p.Status
	}
	if p.PublicPermission != nil {
		cols["public_permission"] = *p.PublicPermission
	}
	return cols
}

// jsonStrings 与 serializer:json 列保持一致的编码
func jsonStrings(items []string) string {
	data, _ := json.Marshal(items)
	return string(data)
}

// VariableStore 变量集合存储
type VariableStore struct {
	db *gorm.DB
}

// NewVariableStore 创建 VariableStore
func NewVariableStore(db *gorm.DB) *VariableStore {
	return &VariableStore{db: db}
}

// ReplaceAll 整组替换某个 Prompt 的变量，OrderIndex 按传入顺序重写为从 0 开始的连续值
func (s *VariableStore) ReplaceAll(ctx context.Context, promptID string, vars []Variable) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("prompt_id = ?", promptID).Delete(&Variable{}).Error; err != nil {
			return fmt.Errorf("delete variables: %w", err)
		}
		if len(vars) == 0 {
			return nil
		}

		rows := make([]Variable, len(vars))
		for i, v := range vars {
			v.ID = uuid.New().String()
			v.PromptID = promptID
			v.OrderIndex = i
			rows[i] = v
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert variables: %w", err)
		}
		return nil
	})
}

// ListByPrompt 按顺序列出变量
func (s *VariableStore) ListByPrompt(ctx context.Context, promptID string) ([]Variable, error) {
	var vars []Variable
	if err := s.db.WithContext(ctx).
		Where("prompt_id = ?", promptID).
		Order("order_index ASC").
		Find(&vars).Error; err != nil {
		return nil, fmt.Errorf("list variables: %w", err)
	}
	return vars, nil
}

// VersionStore 版本快照存储
type VersionStore struct {
	db *gorm.DB
}

// NewVersionStore 创建 VersionStore
func NewVersionStore(db *gorm.DB) *VersionStore {
	return &VersionStore{db: db}
}

// CreateInitial 创建首个版本快照
//
// 幂等：已存在任何快照时返回 Skipped；并发重复写入命中唯一索引时同样视为跳过。
func (s *VersionStore) CreateInitial(ctx context.Context, promptID, content string, vars []Variable) (*SnapshotResult, error) {
	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&Version{}).Where("prompt_id = ?", promptID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("count versions: %w", err)
	}
	if count > 0 {
		return &SnapshotResult{Success: true, Skipped: true}, nil
	}

	var owner Prompt
	if err := db.Select("id", "owner_id").Where("id = ?", promptID).First(&owner).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load prompt: %w", err)
	}

	snapshots := make([]VariableSnapshot, len(vars))
	for i, v := range vars {
		v.OrderIndex = i
		snapshots[i] = v.Snapshot()
	}

	version := &Version{
		ID:        uuid.New().String(),
		PromptID:  promptID,
		Version:   InitialVersion,
		Content:   content,
		Message:   "Initial version",
		Variables: snapshots,
		CreatedBy: owner.OwnerID,
	}

	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(version)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return &SnapshotResult{Success: true, Skipped: true}, nil
		}
		return nil, fmt.Errorf("create initial version: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &SnapshotResult{Success: true, Skipped: true}, nil
	}
	return &SnapshotResult{Success: true, Version: version}, nil
}

// ListByPrompt 按创建时间列出版本
func (s *VersionStore) ListByPrompt(ctx context.Context, promptID string) ([]Version, error) {
	var versions []Version
	if err := s.db.WithContext(ctx).
		Where("prompt_id = ?", promptID).
		Order("created_at ASC").
		Find(&versions).Error; err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return versions, nil
}

// ShareStore 显式共享存储
type ShareStore struct {
	db *gorm.DB
}

// NewShareStore 创建 ShareStore
func NewShareStore(db *gorm.DB) *ShareStore {
	return &ShareStore{db: db}
}

// ListByPrompt 列出某个 Prompt 的全部共享
func (s *ShareStore) ListByPrompt(ctx context.Context, promptID string) ([]Share, error) {
	var shares []Share
	if err := s.db.WithContext(ctx).Where("prompt_id = ?", promptID).Find(&shares).Error; err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}
	return shares, nil
}

// Grant 授予或更新共享权限，仅所有者可操作
func (s *ShareStore) Grant(ctx context.Context, actorID, promptID, userID string, perm Permission) (*Share, error) {
	if err := s.requireOwner(ctx, actorID, promptID); err != nil {
		return nil, err
	}

	share := &Share{
		ID:         uuid.New().String(),
		PromptID:   promptID,
		UserID:     userID,
		Permission: perm,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "prompt_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"permission"}),
	}).Create(share).Error
	if err != nil {
		return nil, fmt.Errorf("grant share: %w", err)
	}

	// 已有授权时只更新了 permission，需读回实际存储的行
	var stored Share
	if err := s.db.WithContext(ctx).
		Where("prompt_id = ? AND user_id = ?", promptID, userID).
		First(&stored).Error; err != nil {
		return nil, fmt.Errorf("load share: %w", err)
	}
	return &stored, nil
}

// Revoke 撤销共享，仅所有者可操作
func (s *ShareStore) Revoke(ctx context.Context, actorID, promptID, userID string) error {
	if err := s.requireOwner(ctx, actorID, promptID); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).
		Where("prompt_id = ? AND user_id = ?", promptID, userID).
		Delete(&Share{}).Error; err != nil {
		return fmt.Errorf("revoke share: %w", err)
	}
	return nil
}

func (s *ShareStore) requireOwner(ctx context.Context, actorID, promptID string) error {
	var p Prompt
	if err := s.db.WithContext(ctx).Select("id", "owner_id").Where("id = ?", promptID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("load prompt: %w", err)
	}
	if actorID == "" || p.OwnerID != actorID {
		return ErrNotOwner
	}
	return nil
}
