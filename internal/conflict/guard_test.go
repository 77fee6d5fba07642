package conflict

import (
	"context"
	"errors"
	"testing"
	"time"

	"promptlib/internal/prompt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeReader struct {
	record *prompt.Prompt
	err    error
	calls  int
	block  bool
}

func (f *fakeReader) FetchByID(ctx context.Context, _ string) (*prompt.Prompt, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.record, f.err
}

func TestGuard_Check(t *testing.T) {
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("server newer is a conflict", func(t *testing.T) {
		reader := &fakeReader{record: &prompt.Prompt{ID: "p1", UpdatedAt: base.Add(time.Second)}}
		res := NewGuard(reader, nil, 0).Check(context.Background(), "p1", base)
		assert.True(t, res.HasConflict)
		require.NotNil(t, res.ServerUpdatedAt)
		assert.Equal(t, base.Add(time.Second), *res.ServerUpdatedAt)
	})

	t.Run("equal timestamps are not a conflict", func(t *testing.T) {
		reader := &fakeReader{record: &prompt.Prompt{ID: "p1", UpdatedAt: base}}
		res := NewGuard(reader, nil, 0).Check(context.Background(), "p1", base)
		assert.False(t, res.HasConflict)
	})

	t.Run("client newer is not a conflict", func(t *testing.T) {
		reader := &fakeReader{record: &prompt.Prompt{ID: "p1", UpdatedAt: base}}
		res := NewGuard(reader, nil, 0).Check(context.Background(), "p1", base.Add(time.Minute))
		assert.False(t, res.HasConflict)
	})

	t.Run("create mode does not fetch", func(t *testing.T) {
		reader := &fakeReader{}
		res := NewGuard(reader, nil, 0).Check(context.Background(), "", base)
		assert.False(t, res.HasConflict)
		assert.Zero(t, reader.calls)
	})
}

func TestGuard_FailsOpen(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	reader := &fakeReader{err: errors.New("connection refused")}

	res := NewGuard(reader, zap.New(core), 0).Check(context.Background(), "p1", time.Now())
	assert.False(t, res.HasConflict)
	assert.Nil(t, res.ServerUpdatedAt)
	assert.Equal(t, 1, logs.FilterMessage("conflict check skipped, server record unavailable").Len())
}

func TestGuard_LookupTimeout(t *testing.T) {
	reader := &fakeReader{block: true}
	start := time.Now()

	res := NewGuard(reader, nil, 20*time.Millisecond).Check(context.Background(), "p1", time.Now())
	assert.False(t, res.HasConflict)
	assert.Less(t, time.Since(start), time.Second)
}
