package prompt

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:prompt_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(Models()...))
	return db
}

func strPtr(s string) *string { return &s }

func TestPromptStore_Create(t *testing.T) {
	db := setupTestDB(t)
	store := NewPromptStore(db)
	ctx := context.Background()

	created, err := store.Create(ctx, "alice", &Prompt{
		Title:   "Summarize",
		Content: "Summarize {{topic}}",
		Tags:    []string{"writing"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "alice", created.OwnerID)
	assert.Equal(t, InitialVersion, created.Version)
	assert.Equal(t, VisibilityPrivate, created.Visibility)
	assert.Equal(t, StatusPublished, created.Status)
	assert.Equal(t, PermissionRead, created.PublicPermission)

	fetched, err := store.FetchByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Summarize", fetched.Title)
	assert.Equal(t, []string{"writing"}, fetched.Tags)
	assert.Nil(t, fetched.Description)

	_, err = store.Create(ctx, "", &Prompt{Title: "x", Content: "y"})
	assert.Error(t, err)
}

func TestPromptStore_UpdateAdvancesUpdatedAt(t *testing.T) {
	db := setupTestDB(t)
	store := NewPromptStore(db)
	ctx := context.Background()

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	created, err := store.Create(ctx, "alice", &Prompt{Title: "Old", Content: "body", Description: strPtr("desc")})
	require.NoError(t, err)

	err = store.Update(ctx, created.ID, &Patch{
		Title:            strPtr("New"),
		ClearDescription: true,
		Tags:             []string{"a", "b"},
	})
	require.NoError(t, err)

	updated, err := store.FetchByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, "body", updated.Content)
	assert.Nil(t, updated.Description)
	assert.Equal(t, []string{"a", "b"}, updated.Tags)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt), "updated_at must advance even when the clock does not")
	assert.Equal(t, InitialVersion, updated.Version)
}

func TestPromptStore_UpdateMissing(t *testing.T) {
	store := NewPromptStore(setupTestDB(t))

	err := store.Update(context.Background(), "missing", &Patch{Title: strPtr("x")})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.FetchByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVariableStore_ReplaceAll(t *testing.T) {
	db := setupTestDB(t)
	store := NewVariableStore(db)
	ctx := context.Background()

	err := store.ReplaceAll(ctx, "p1", []Variable{
		{Name: "topic", Type: VariableString, OrderIndex: 7},
		{Name: "tone", Type: VariableEnum, Options: []string{"formal", "casual"}, OrderIndex: 3},
	})
	require.NoError(t, err)

	vars, err := store.ListByPrompt(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, vars, 2)
	assert.Equal(t, "topic", vars[0].Name)
	assert.Equal(t, 0, vars[0].OrderIndex)
	assert.Equal(t, "tone", vars[1].Name)
	assert.Equal(t, 1, vars[1].OrderIndex)
	assert.Equal(t, []string{"formal", "casual"}, []string(vars[1].Options))

	require.NoError(t, store.ReplaceAll(ctx, "p1", []Variable{{Name: "audience", Type: VariableString}}))
	vars, err = store.ListByPrompt(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, vars, 1)
	assert.Equal(t, "audience", vars[0].Name)

	require.NoError(t, store.ReplaceAll(ctx, "p1", nil))
	vars, err = store.ListByPrompt(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, vars)
}

func TestVersionStore_CreateInitialIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	prompts := NewPromptStore(db)
	versions := NewVersionStore(db)
	ctx := context.Background()

	created, err := prompts.Create(ctx, "alice", &Prompt{Title: "t", Content: "Hello {{topic}}"})
	require.NoError(t, err)

	vars := []Variable{{Name: "topic", Type: VariableString, Required: true}}
	first, err := versions.CreateInitial(ctx, created.ID, created.Content, vars)
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.False(t, first.Skipped)
	require.NotNil(t, first.Version)
	assert.Equal(t, InitialVersion, first.Version.Version)
	assert.Equal(t, "alice", first.Version.CreatedBy)

	second, err := versions.CreateInitial(ctx, created.ID, "changed", nil)
	require.NoError(t, err)
	assert.True(t, second.Skipped)

	list, err := versions.ListByPrompt(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Hello {{topic}}", list[0].Content)
	require.Len(t, list[0].Variables, 1)
	assert.Equal(t, "topic", list[0].Variables[0].Name)
}

func TestVersionStore_CreateInitialMissingPrompt(t *testing.T) {
	versions := NewVersionStore(setupTestDB(t))

	_, err := versions.CreateInitial(context.Background(), "missing", "c", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestShareStore_GrantAndRevoke(t *testing.T) {
	db := setupTestDB(t)
	prompts := NewPromptStore(db)
	shares := NewShareStore(db)
	ctx := context.Background()

	created, err := prompts.Create(ctx, "alice", &Prompt{Title: "t", Content: "c"})
	require.NoError(t, err)

	_, err = shares.Grant(ctx, "bob", created.ID, "carol", PermissionWrite)
	assert.ErrorIs(t, err, ErrNotOwner)

	first, err := shares.Grant(ctx, "alice", created.ID, "bob", PermissionRead)
	require.NoError(t, err)
	updated, err := shares.Grant(ctx, "alice", created.ID, "bob", PermissionWrite)
	require.NoError(t, err)
	assert.Equal(t, first.ID, updated.ID, "更新授权返回已存储的行")
	assert.Equal(t, PermissionWrite, updated.Permission)

	list, err := shares.ListByPrompt(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, PermissionWrite, list[0].Permission)
	assert.Equal(t, updated.ID, list[0].ID)

	require.NoError(t, shares.Revoke(ctx, "alice", created.ID, "bob"))
	list, err = shares.ListByPrompt(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.ErrorIs(t, shares.Revoke(ctx, "alice", "missing", "bob"), ErrNotFound)
}

func TestPromptStore_ListByOwner(t *testing.T) {
	db := setupTestDB(t)
	store := NewPromptStore(db)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		store.now = func() time.Time { return at }
		_, err := store.Create(ctx, "alice", &Prompt{Title: fmt.Sprintf("p%d", i), Content: "x"})
		require.NoError(t, err)
	}
	_, err := store.Create(ctx, "bob", &Prompt{Title: "other", Content: "x"})
	require.NoError(t, err)

	items, total, err := store.ListByOwner(ctx, "alice", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, items, 2)
	assert.Equal(t, "p2", items[0].Title)
	assert.Equal(t, "p1", items[1].Title)

	items, _, err = store.ListByOwner(ctx, "alice", 2, 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "p0", items[0].Title)
}
