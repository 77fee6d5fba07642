package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fieldErr struct{}

func (fieldErr) Error() string                   { return "validation failed" }
func (fieldErr) FieldErrors() map[string]string { return map[string]string{"title": "required"} }

type pgErr struct{ code string }

func (e pgErr) Error() string    { return "pg error " + e.code }
func (e pgErr) SQLState() string { return e.code }

type httpErr struct{ status int }

func (e httpErr) Error() string   { return fmt.Sprintf("http %d", e.status) }
func (e httpErr) StatusCode() int { return e.status }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindServer},
		{"field errors", fmt.Errorf("save: %w", fieldErr{}), KindValidation},
		{"conflict", fmt.Errorf("update: %w", ErrConflict), KindConflict},
		{"permission sentinel", fmt.Errorf("x: %w", ErrPermissionDenied), KindPermission},
		{"http 401", httpErr{401}, KindPermission},
		{"http 403", httpErr{403}, KindPermission},
		{"sqlstate 42501", pgErr{"42501"}, KindPermission},
		{"permission text", errors.New("new row violates row-level security: Permission denied"), KindPermission},
		{"gorm duplicated", fmt.Errorf("create: %w", gorm.ErrDuplicatedKey), KindDuplicate},
		{"sqlstate 23505", pgErr{"23505"}, KindDuplicate},
		{"duplicate text", errors.New("ERROR: duplicate key value violates unique constraint"), KindDuplicate},
		{"sqlite unique", errors.New("UNIQUE constraint failed: prompts.id"), KindDuplicate},
		{"deadline", fmt.Errorf("update: %w", context.DeadlineExceeded), KindNetwork},
		{"econnrefused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, KindNetwork},
		{"dns", &net.DNSError{Err: "no such host", Name: "db"}, KindNetwork},
		{"http 502", httpErr{502}, KindNetwork},
		{"fetch text", errors.New("Failed to fetch"), KindNetwork},
		{"timeout text", errors.New("i/o timeout"), KindNetwork},
		{"unknown", errors.New("boom"), KindServer},
		{"typed error keeps kind", New(KindDuplicate, "", errors.New("boom")), KindDuplicate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassify_PermissionBeatsNetwork(t *testing.T) {
	err := errors.New("permission check failed: network unreachable")
	assert.Equal(t, KindPermission, Classify(err))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(KindNetwork))
	assert.True(t, Retryable(KindServer))
	for _, k := range []Kind{KindValidation, KindPermission, KindConflict, KindDuplicate} {
		assert.False(t, Retryable(k), k)
	}
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil))

	cause := fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)
	wrapped := Wrap(cause)
	require.NotNil(t, wrapped)
	assert.Equal(t, KindDuplicate, wrapped.Kind)
	assert.Equal(t, Message(KindDuplicate), wrapped.Message)
	assert.ErrorIs(t, wrapped, gorm.ErrDuplicatedKey)

	var target *Error
	assert.True(t, errors.As(fmt.Errorf("outer: %w", wrapped), &target))
	assert.Same(t, wrapped, Wrap(fmt.Errorf("outer: %w", wrapped)))
}
