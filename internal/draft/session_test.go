package draft

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/contentgen/contentgen-backend/internal/metrics"
	kvmemory "github.com/contentgen/contentgen-backend/pkg/kv/memory"
)

var (
	testMetricsOnce sync.Once
	testMetricsObj  *metrics.Metrics
)

// Setup registers collectors with the global prometheus registry, so
// it must run at most once per test binary.
func newTestMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()
	testMetricsOnce.Do(func() {
		m, _, err := metrics.Setup("draft-test")
		if err != nil {
			t.Fatalf("metrics setup: %v", err)
		}
		testMetricsObj = m
	})
	return testMetricsObj
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	mgr := NewManager(kvmemory.New(0), time.Hour, zap.NewNop().Sugar(), newTestMetrics(t))
	t.Cleanup(mgr.Close)
	return mgr
}

func newTestSession(t *testing.T, mgr *Manager, owner string) *Session {
	t.Helper()
	d := NewPostDraft("go generics", ContentEducational, ToneProfessional, LengthMedium, false)
	return mgr.Create(context.Background(), owner, d)
}

func TestManager_OwnerScoping(t *testing.T) {
	mgr := newTestManager(t)
	sess := newTestSession(t, mgr, "alice")

	got, err := mgr.Get("alice", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)

	_, err = mgr.Get("bob", sess.ID)
	assert.ErrorIs(t, err, ErrNotFound, "foreign sessions must look like missing ones")

	_, err = mgr.Get("alice", "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_Delete(t *testing.T) {
	mgr := newTestManager(t)
	sess := newTestSession(t, mgr, "alice")

	assert.ErrorIs(t, mgr.Delete(context.Background(), "bob", sess.ID), ErrNotFound)
	require.NoError(t, mgr.Delete(context.Background(), "alice", sess.ID))

	_, err := mgr.Get("alice", sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSession_BeginRejectsConcurrentOperations(t *testing.T) {
	mgr := newTestManager(t)
	sess := newTestSession(t, mgr, "alice")

	seq, err := sess.Begin(PhaseRegeneratingText)
	require.NoError(t, err)

	_, err = sess.Begin(PhaseRegeneratingAll)
	assert.ErrorIs(t, err, ErrBusy)

	err = sess.DoIdle(func(d *PostDraft) error { return nil })
	assert.ErrorIs(t, err, ErrBusy, "synchronous edits are rejected while busy")

	require.True(t, sess.Complete(seq, nil))

	_, err = sess.Begin(PhaseRegeneratingImg)
	assert.NoError(t, err, "a settled operation frees the session")
}

func TestSession_StaleCompletionIsDiscarded(t *testing.T) {
	mgr := newTestManager(t)
	sess := newTestSession(t, mgr, "alice")

	_ = sess.Do(func(d *PostDraft) error {
		d.Hooks.Replace([]string{"h1", "h2", "h3", "h4"})
		d.Body = "original body"
		return nil
	})

	seq1, err := sess.Begin(PhaseRegeneratingText)
	require.NoError(t, err)
	require.True(t, sess.Fail(seq1))

	seq2, err := sess.Begin(PhaseRegeneratingText)
	require.NoError(t, err)

	// The first request's response arrives after it was superseded.
	applied := sess.Complete(seq1, func(d *PostDraft) {
		d.Body = "stale body"
	})
	assert.False(t, applied)

	_ = sess.Do(func(d *PostDraft) error {
		assert.Equal(t, "original body", d.Body, "stale response must not touch the draft")
		assert.True(t, d.Phase.Busy(), "the newer operation is still in flight")
		return nil
	})

	applied = sess.Complete(seq2, func(d *PostDraft) {
		d.Body = "fresh body"
	})
	assert.True(t, applied)

	_ = sess.Do(func(d *PostDraft) error {
		assert.Equal(t, "fresh body", d.Body)
		assert.Equal(t, PhaseIdle, d.Phase)
		return nil
	})
}

func TestSession_FailPreservesState(t *testing.T) {
	mgr := newTestManager(t)
	sess := newTestSession(t, mgr, "alice")

	_ = sess.Do(func(d *PostDraft) error {
		d.Hooks.Replace([]string{"a", "b", "c", "d"})
		require.NoError(t, d.Hooks.Select(1))
		d.Body = "keep me"
		return nil
	})

	seq, err := sess.Begin(PhaseRegeneratingAll)
	require.NoError(t, err)
	require.True(t, sess.Fail(seq))

	_ = sess.Do(func(d *PostDraft) error {
		assert.Equal(t, []string{"a", "b", "c", "d"}, d.Hooks.Candidates)
		assert.Equal(t, 1, d.Hooks.Index)
		assert.Equal(t, "keep me", d.Body)
		assert.Equal(t, PhaseIdle, d.Phase)
		return nil
	})
}

func TestManager_PreviewLifecycle(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	handle, err := mgr.StorePreview(ctx, []byte("png bytes"), "image/png")
	require.NoError(t, err)
	require.NotEmpty(t, handle)

	data, contentType, err := mgr.LoadPreview(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, []byte("png bytes"), data)
	assert.Equal(t, "image/png", contentType)

	mgr.ReleasePreview(ctx, handle)
	_, _, err = mgr.LoadPreview(ctx, handle)
	assert.Error(t, err, "released previews are gone")

	// Releasing again, or releasing nothing, is harmless.
	mgr.ReleasePreview(ctx, handle)
	mgr.ReleasePreview(ctx, "")
}
