package prompt

import (
	"context"
	"errors"
	"fmt"
)

type titleScopeKey struct{}

type titleScope struct {
	actorID  string
	recordID string
}

// WithTitleScope 标记标题检查的操作者与被编辑记录
//
// 编辑时 recordID 为记录自身 ID：重名范围取该记录的所有者，且不与自己比较。
func WithTitleScope(ctx context.Context, actorID, recordID string) context.Context {
	return context.WithValue(ctx, titleScopeKey{}, titleScope{actorID: actorID, recordID: recordID})
}

// OwnerTitles 检查同一所有者下的标题是否重复
type OwnerTitles struct {
	store *PromptStore
}

// NewOwnerTitles 创建标题检查器
func NewOwnerTitles(store *PromptStore) *OwnerTitles {
	return &OwnerTitles{store: store}
}

// TitleAvailable 上下文中没有操作者时视为可用
func (t *OwnerTitles) TitleAvailable(ctx context.Context, title string) (bool, error) {
	scope, ok := ctx.Value(titleScopeKey{}).(titleScope)
	if !ok || scope.actorID == "" {
		return true, nil
	}

	ownerID := scope.actorID
	if scope.recordID != "" {
		rec, err := t.store.FetchByID(ctx, scope.recordID)
		switch {
		case errors.Is(err, ErrNotFound):
			// 记录不存在由权限检查报告
			return true, nil
		case err != nil:
			return false, err
		}
		ownerID = rec.OwnerID
	}

	taken, err := t.store.TitleTaken(ctx, ownerID, title, scope.recordID)
	if err != nil {
		return false, err
	}
	return !taken, nil
}

// TitleTaken 所有者名下是否已有同名记录，excludeID 不参与比较
func (s *PromptStore) TitleTaken(ctx context.Context, ownerID, title, excludeID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Prompt{}).
		Scopes(OwnedBy(ownerID), ExcludeID(excludeID)).
		Where("title = ?", title).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check title: %w", err)
	}
	return count > 0, nil
}
