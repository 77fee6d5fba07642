package permission

import (
	"testing"

	"promptlib/internal/prompt"

	"github.com/stretchr/testify/assert"
)

func sharedPrompt(public prompt.Permission) *prompt.Prompt {
	return &prompt.Prompt{
		ID:               "p1",
		OwnerID:          "owner",
		Visibility:       prompt.VisibilityShared,
		Status:           prompt.StatusPublished,
		PublicPermission: public,
	}
}

func TestResolve(t *testing.T) {
	private := &prompt.Prompt{ID: "p1", OwnerID: "owner", Visibility: prompt.VisibilityPrivate, Status: prompt.StatusPublished}
	draftShared := sharedPrompt(prompt.PermissionWrite)
	draftShared.Status = prompt.StatusDraft

	tests := []struct {
		name   string
		actor  string
		record *prompt.Prompt
		shares []prompt.Share
		want   Access
	}{
		{
			name:   "owner wins over share entries",
			actor:  "owner",
			record: private,
			shares: []prompt.Share{{PromptID: "p1", UserID: "owner", Permission: prompt.PermissionRead}},
			want:   Access{Level: LevelOwner, CanEdit: true, CanDelete: true, CanShare: true, CanCreateVersion: true},
		},
		{
			name:   "write share",
			actor:  "bob",
			record: private,
			shares: []prompt.Share{{PromptID: "p1", UserID: "bob", Permission: prompt.PermissionWrite}},
			want:   Access{Level: LevelWrite, CanEdit: true, CanCreateVersion: true},
		},
		{
			name:   "read share",
			actor:  "bob",
			record: private,
			shares: []prompt.Share{{PromptID: "p1", UserID: "bob", Permission: prompt.PermissionRead}},
			want:   Access{Level: LevelRead},
		},
		{
			name:   "private share overrides public permission",
			actor:  "bob",
			record: sharedPrompt(prompt.PermissionWrite),
			shares: []prompt.Share{{PromptID: "p1", UserID: "bob", Permission: prompt.PermissionRead}},
			want:   Access{Level: LevelRead},
		},
		{
			name:   "share for another prompt is ignored",
			actor:  "bob",
			record: private,
			shares: []prompt.Share{{PromptID: "p2", UserID: "bob", Permission: prompt.PermissionWrite}},
			want:   Access{Level: LevelNone},
		},
		{
			name:   "public write",
			actor:  "carol",
			record: sharedPrompt(prompt.PermissionWrite),
			want:   Access{Level: LevelWrite, CanEdit: true, CanCreateVersion: true},
		},
		{
			name:   "public read",
			actor:  "carol",
			record: sharedPrompt(prompt.PermissionRead),
			want:   Access{Level: LevelRead},
		},
		{
			name:   "shared draft is not public",
			actor:  "carol",
			record: draftShared,
			want:   Access{Level: LevelNone},
		},
		{
			name:   "private without share",
			actor:  "carol",
			record: private,
			want:   Access{Level: LevelNone},
		},
		{
			name:   "anonymous",
			actor:  "",
			record: sharedPrompt(prompt.PermissionWrite),
			want:   Access{Level: LevelNone},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.actor, tt.record, tt.shares))
		})
	}
}

func TestResolveIsPure(t *testing.T) {
	record := sharedPrompt(prompt.PermissionRead)
	shares := []prompt.Share{{PromptID: "p1", UserID: "bob", Permission: prompt.PermissionWrite}}

	first := Resolve("bob", record, shares)
	second := Resolve("bob", record, shares)
	assert.Equal(t, first, second)
	assert.Equal(t, prompt.PermissionRead, record.PublicPermission)
	assert.Len(t, shares, 1)
}

func TestCheckSave(t *testing.T) {
	t.Run("public read without share cannot save", func(t *testing.T) {
		check := CheckSave("stranger", sharedPrompt(prompt.PermissionRead), nil)
		assert.False(t, check.CanSave)
		assert.Equal(t, ReasonNoWriteAccess, check.Reason)
	})

	t.Run("write share can save", func(t *testing.T) {
		shares := []prompt.Share{{PromptID: "p1", UserID: "bob", Permission: prompt.PermissionWrite}}
		check := CheckSave("bob", sharedPrompt(prompt.PermissionRead), shares)
		assert.True(t, check.CanSave)
		assert.Empty(t, check.Reason)
	})

	t.Run("owner can save", func(t *testing.T) {
		check := CheckSave("owner", sharedPrompt(prompt.PermissionRead), nil)
		assert.True(t, check.CanSave)
		assert.Equal(t, LevelOwner, check.Access.Level)
	})

	t.Run("missing actor", func(t *testing.T) {
		check := CheckSave("", sharedPrompt(prompt.PermissionWrite), nil)
		assert.Equal(t, ReasonNotAuthenticated, check.Reason)
	})

	t.Run("missing record", func(t *testing.T) {
		check := CheckSave("bob", nil, nil)
		assert.Equal(t, ReasonNotFound, check.Reason)
	})
}
