package prompt

import "gorm.io/gorm"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// OwnedBy 按所有者过滤
// 使用方法：db.Scopes(prompt.OwnedBy(userID)).Find(&prompts)
func OwnedBy(ownerID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("owner_id = ?", ownerID)
	}
}

// ExcludeID 排除指定记录，id 为空时不过滤
func ExcludeID(id string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if id == "" {
			return db
		}
		return db.Where("id <> ?", id)
	}
}

// Paginate 分页，page 从 1 开始，pageSize 超出范围时使用默认值
func Paginate(page, pageSize int) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if page < 1 {
			page = 1
		}
		if pageSize < 1 || pageSize > maxPageSize {
			pageSize = defaultPageSize
		}
		return db.Offset((page - 1) * pageSize).Limit(pageSize)
	}
}
