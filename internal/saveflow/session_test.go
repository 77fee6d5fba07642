package saveflow

import (
	"context"
	"testing"
	"time"

	"promptlib/internal/prompt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AcquireReusesSession(t *testing.T) {
	h := newHarness(t)
	reg := NewRegistry(h.orch, time.Minute)

	a := reg.Acquire("editor-1")
	b := reg.Acquire("editor-1")
	assert.Same(t, a, b)
	assert.Equal(t, "editor-1", a.ID())

	anon := reg.Acquire("")
	assert.NotEmpty(t, anon.ID())
	got, ok := reg.Get(anon.ID())
	require.True(t, ok)
	assert.Same(t, anon, got)
}

func TestRegistry_RetryAcrossRequests(t *testing.T) {
	h := newHarness(t)
	h.seed(&prompt.Prompt{ID: "p1", OwnerID: "owner"})
	h.records.updateErr = errNetwork
	reg := NewRegistry(h.orch, time.Minute)
	ctx := context.Background()

	out, err := reg.Acquire("editor-1").Save(ctx, editInput("p1", form("Edited")))
	require.NoError(t, err)
	require.True(t, out.Failure.CanRetry)

	h.records.updateErr = nil
	session, ok := reg.Get("editor-1")
	require.True(t, ok)
	out, err = session.Retry(ctx)
	require.NoError(t, err)
	assert.True(t, out.Saved())
	assert.Equal(t, 2, out.Attempt)

	_, err = session.Retry(ctx)
	assert.ErrorIs(t, err, ErrNothingToRetry)
}

func TestRegistry_DetachedUntilKept(t *testing.T) {
	h := newHarness(t)
	h.seed(&prompt.Prompt{ID: "p1", OwnerID: "owner"})
	reg := NewRegistry(h.orch, time.Minute)
	ctx := context.Background()

	ok := reg.Detached("editor-ok")
	out, err := ok.Save(ctx, editInput("p1", form("Edited")))
	require.NoError(t, err)
	require.True(t, out.Saved())
	assert.Zero(t, reg.Len())

	h.records.updateErr = errNetwork
	failing := reg.Detached("editor-retry")
	out, err = failing.Save(ctx, editInput("p1", form("Edited")))
	require.NoError(t, err)
	require.True(t, out.Failure.CanRetry)
	reg.Keep(failing)
	reg.Keep(reg.Detached("editor-retry"))

	got, found := reg.Get("editor-retry")
	require.True(t, found)
	assert.Same(t, failing, got)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_Sweep(t *testing.T) {
	h := newHarness(t)
	reg := NewRegistry(h.orch, time.Minute)
	reg.Acquire("old")

	assert.Zero(t, reg.Sweep())

	reg.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	assert.Equal(t, 1, reg.Sweep())
	_, ok := reg.Get("old")
	assert.False(t, ok)
}

func TestSession_RetryWithoutFailure(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.NewSession().Retry(context.Background())
	assert.ErrorIs(t, err, ErrNothingToRetry)
}

func TestOutcome_Flags(t *testing.T) {
	var nilOutcome *Outcome
	assert.False(t, nilOutcome.Saved())

	out := &Outcome{State: StateDone}
	assert.True(t, out.Saved())
	assert.False(t, out.NeedsFollowUp())

	out.warn(StepSnapshot, "snapshot failed", nil)
	assert.True(t, out.NeedsFollowUp())

	assert.True(t, StateAborted.Terminal())
	assert.False(t, StatePersisting.Terminal())
}
