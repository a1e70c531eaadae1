package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/contentgen/contentgen-backend/internal/draft"
	"github.com/contentgen/contentgen-backend/internal/generation"
	"github.com/contentgen/contentgen-backend/internal/metrics"
	"github.com/contentgen/contentgen-backend/internal/notify"
	kvmemory "github.com/contentgen/contentgen-backend/pkg/kv/memory"
)

type fakeGen struct {
	mu         sync.Mutex
	result     generation.Result
	imageURL   string
	textErr    error
	imageErr   error
	textCalls  int
	imageCalls int
}

func (f *fakeGen) GenerateHooksAndBody(ctx context.Context, req generation.Request) (*generation.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textCalls++
	if f.textErr != nil {
		return nil, f.textErr
	}
	r := f.result
	return &r, nil
}

func (f *fakeGen) GenerateImage(ctx context.Context, req generation.ImageRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imageCalls++
	if f.imageErr != nil {
		return "", f.imageErr
	}
	return f.imageURL, nil
}

type captureSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (s *captureSink) Publish(ctx context.Context, userID string, event notify.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *captureSink) ofType(eventType string) []notify.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notify.Event
	for _, ev := range s.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

var (
	testMetricsOnce sync.Once
	testMetricsObj  *metrics.Metrics
)

func newTestMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()
	testMetricsOnce.Do(func() {
		m, _, err := metrics.Setup("workflow-test")
		if err != nil {
			t.Fatalf("metrics setup: %v", err)
		}
		testMetricsObj = m
	})
	return testMetricsObj
}

type fixture struct {
	coord   *Coordinator
	gen     *fakeGen
	sink    *captureSink
	sess    *draft.Session
	pending []func()
}

// runPending drains the deferred async work in FIFO order.
func (f *fixture) runPending() {
	for len(f.pending) > 0 {
		fn := f.pending[0]
		f.pending = f.pending[1:]
		fn()
	}
}

func (f *fixture) body(t *testing.T) string {
	t.Helper()
	var body string
	require.NoError(t, f.sess.Do(func(d *draft.PostDraft) error {
		body = d.Body
		return nil
	}))
	return body
}

func newFixture(t *testing.T, topic string) *fixture {
	t.Helper()
	mgr := draft.NewManager(kvmemory.New(0), time.Hour, zap.NewNop().Sugar(), newTestMetrics(t))
	t.Cleanup(mgr.Close)

	f := &fixture{
		gen: &fakeGen{
			result: generation.Result{
				Hooks: []string{"hook 1", "hook 2", "hook 3", "hook 4"},
				Body:  "generated body",
			},
			imageURL: "https://cdn.example.com/generated.png",
		},
		sink: &captureSink{},
	}
	f.coord = NewCoordinator(f.gen, f.sink, zap.NewNop().Sugar(), newTestMetrics(t),
		WithSpawn(func(fn func()) { f.pending = append(f.pending, fn) }))

	d := draft.NewPostDraft(topic, draft.ContentEducational, draft.ToneProfessional, draft.LengthMedium, false)
	f.sess = mgr.Create(context.Background(), "alice", d)
	return f
}

func TestGenerate_AppliesHooksAndBody(t *testing.T) {
	f := newFixture(t, "go testing")

	require.NoError(t, f.coord.Generate(context.Background(), f.sess))
	f.runPending()

	_ = f.sess.Do(func(d *draft.PostDraft) error {
		assert.Equal(t, []string{"hook 1", "hook 2", "hook 3", "hook 4"}, d.Hooks.Candidates)
		assert.Equal(t, draft.NoSelection, d.Hooks.Index, "fresh hooks arrive unselected")
		assert.Equal(t, "generated body", d.Body)
		assert.Equal(t, draft.PhaseIdle, d.Phase)
		return nil
	})

	assert.Len(t, f.sink.ofType(notify.EventGenerationStarted), 1)
	completed := f.sink.ofType(notify.EventGenerationCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, OpGenerate, completed[0].Operation)
	assert.Equal(t, f.sess.ID, completed[0].SessionID)
}

func TestGenerate_EmptyTopicFailsBeforeNetwork(t *testing.T) {
	f := newFixture(t, "   ")

	err := f.coord.Generate(context.Background(), f.sess)
	var verr *draft.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "topic", verr.Field)

	assert.Zero(t, f.gen.textCalls, "validation must run before any service call")
	assert.Empty(t, f.pending)
	assert.Empty(t, f.sink.events)
}

func TestRegenerateText_BusyWhileInFlight(t *testing.T) {
	f := newFixture(t, "go testing")

	require.NoError(t, f.coord.RegenerateText(context.Background(), f.sess))
	require.Len(t, f.pending, 1)

	assert.ErrorIs(t, f.coord.RegenerateText(context.Background(), f.sess), draft.ErrBusy)
	assert.ErrorIs(t, f.coord.RegenerateAll(context.Background(), f.sess), draft.ErrBusy)
	assert.Len(t, f.pending, 1, "rejected triggers must not enqueue work")

	f.runPending()
	assert.NoError(t, f.coord.RegenerateText(context.Background(), f.sess))
}

func TestRegenerateText_FailurePreservesState(t *testing.T) {
	f := newFixture(t, "go testing")
	_ = f.sess.Do(func(d *draft.PostDraft) error {
		d.Hooks.Replace([]string{"a", "b", "c", "d"})
		require.NoError(t, d.Hooks.Select(2))
		d.Body = "previous body"
		return nil
	})

	f.gen.textErr = &generation.TimeoutError{Timeout: time.Second}
	require.NoError(t, f.coord.RegenerateText(context.Background(), f.sess))
	f.runPending()

	_ = f.sess.Do(func(d *draft.PostDraft) error {
		assert.Equal(t, []string{"a", "b", "c", "d"}, d.Hooks.Candidates)
		assert.Equal(t, 2, d.Hooks.Index)
		assert.Equal(t, "previous body", d.Body)
		assert.Equal(t, draft.PhaseIdle, d.Phase, "failure returns the session to idle")
		return nil
	})

	failed := f.sink.ofType(notify.EventGenerationFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, OpRegenerateText, failed[0].Operation)
	assert.NotEmpty(t, failed[0].Message)
	assert.Empty(t, f.sink.ofType(notify.EventGenerationCompleted))
}

func TestRegenerateText_StaleResponseDiscarded(t *testing.T) {
	f := newFixture(t, "go testing")
	_ = f.sess.Do(func(d *draft.PostDraft) error {
		d.Body = "original"
		return nil
	})

	// First trigger; its async work stays queued.
	require.NoError(t, f.coord.RegenerateText(context.Background(), f.sess))
	first := f.pending[0]
	f.pending = nil

	// The first operation gets settled as failed (a fresh session's
	// first operation is sequence 1), freeing the session for a retry.
	require.True(t, f.sess.Fail(1))

	f.gen.mu.Lock()
	f.gen.result.Body = "retry body"
	f.gen.mu.Unlock()
	require.NoError(t, f.coord.RegenerateText(context.Background(), f.sess))
	f.runPending()
	assert.Equal(t, "retry body", f.body(t))

	// The superseded response finally arrives. It must be dropped.
	f.gen.mu.Lock()
	f.gen.result.Body = "stale body"
	f.gen.mu.Unlock()
	first()

	assert.Equal(t, "retry body", f.body(t), "a stale response must never clobber newer state")
	assert.Len(t, f.sink.ofType(notify.EventGenerationCompleted), 1)
}

func TestRegenerateImage_AppliesGeneratedURL(t *testing.T) {
	f := newFixture(t, "go testing")
	require.NoError(t, f.coord.RegenerateImage(context.Background(), f.sess))
	f.runPending()

	_ = f.sess.Do(func(d *draft.PostDraft) error {
		assert.Equal(t, "https://cdn.example.com/generated.png", d.Image.GeneratedURL)
		return nil
	})
	assert.Equal(t, 1, f.gen.imageCalls)
}

func TestRegenerateImage_RejectedInUploadMode(t *testing.T) {
	f := newFixture(t, "go testing")
	_ = f.sess.Do(func(d *draft.PostDraft) error {
		d.Image.SetMode(draft.ImageModeUpload)
		return nil
	})

	err := f.coord.RegenerateImage(context.Background(), f.sess)
	var verr *draft.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "imageMode", verr.Field)
	assert.Zero(t, f.gen.imageCalls)
}

func TestRegenerateAll_TextAndImageApplyTogether(t *testing.T) {
	f := newFixture(t, "go testing")
	require.NoError(t, f.coord.RegenerateAll(context.Background(), f.sess))
	f.runPending()

	_ = f.sess.Do(func(d *draft.PostDraft) error {
		assert.Equal(t, "generated body", d.Body)
		assert.Equal(t, "https://cdn.example.com/generated.png", d.Image.GeneratedURL)
		return nil
	})
	assert.Equal(t, 1, f.gen.textCalls)
	assert.Equal(t, 1, f.gen.imageCalls)
}

func TestRegenerateAll_SkipsImageInUploadMode(t *testing.T) {
	f := newFixture(t, "go testing")
	_ = f.sess.Do(func(d *draft.PostDraft) error {
		d.Image.SetMode(draft.ImageModeUpload)
		return nil
	})

	require.NoError(t, f.coord.RegenerateAll(context.Background(), f.sess))
	f.runPending()

	assert.Equal(t, 1, f.gen.textCalls)
	assert.Zero(t, f.gen.imageCalls, "uploaded images are never regenerated")
	assert.Equal(t, "generated body", f.body(t))
}

func TestRegenerateAll_ImageFailureDiscardsText(t *testing.T) {
	f := newFixture(t, "go testing")
	_ = f.sess.Do(func(d *draft.PostDraft) error {
		d.Hooks.Replace([]string{"a", "b", "c", "d"})
		d.Body = "previous body"
		d.Image.GeneratedURL = "https://cdn.example.com/old.png"
		return nil
	})

	f.gen.imageErr = errors.New("image service down")
	require.NoError(t, f.coord.RegenerateAll(context.Background(), f.sess))
	f.runPending()

	_ = f.sess.Do(func(d *draft.PostDraft) error {
		assert.Equal(t, []string{"a", "b", "c", "d"}, d.Hooks.Candidates, "text result must not apply when the image leg fails")
		assert.Equal(t, "previous body", d.Body)
		assert.Equal(t, "https://cdn.example.com/old.png", d.Image.GeneratedURL)
		return nil
	})
	require.Len(t, f.sink.ofType(notify.EventGenerationFailed), 1)
}
