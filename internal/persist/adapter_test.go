package persist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/contentgen/contentgen-backend/internal/blob"
	"github.com/contentgen/contentgen-backend/internal/draft"
	"github.com/contentgen/contentgen-backend/internal/metrics"
	"github.com/contentgen/contentgen-backend/internal/notify"
	"github.com/contentgen/contentgen-backend/internal/records"
	kvmemory "github.com/contentgen/contentgen-backend/pkg/kv/memory"
)

var (
	testMetricsOnce sync.Once
	testMetricsObj  *metrics.Metrics
)

func newTestMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()
	testMetricsOnce.Do(func() {
		m, _, err := metrics.Setup("persist-test")
		if err != nil {
			t.Fatalf("metrics setup: %v", err)
		}
		testMetricsObj = m
	})
	return testMetricsObj
}

type fixture struct {
	adapter *Adapter
	store   records.Store
	images  *blob.Store
	sess    *draft.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mgr := draft.NewManager(kvmemory.New(0), time.Hour, zap.NewNop().Sugar(), newTestMetrics(t))
	t.Cleanup(mgr.Close)

	store := records.NewMemoryStore()
	images := blob.NewStore(kvmemory.New(0), "post_images")
	adapter := NewAdapter(store, images, notify.NopSink{}, zap.NewNop().Sugar(), 24*time.Hour)

	d := draft.NewPostDraft("go generics", draft.ContentEducational, draft.ToneProfessional, draft.LengthMedium, false)
	d.Hooks.Replace([]string{"h1", "h2", "h3", "h4"})
	require.NoError(t, d.Hooks.Select(0))
	d.Body = "the body"

	return &fixture{
		adapter: adapter,
		store:   store,
		images:  images,
		sess:    mgr.Create(context.Background(), "alice", d),
	}
}

func TestSave_InsertThenUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.adapter.Save(ctx, f.sess)
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	assert.Equal(t, "alice", rec.OwnerID)
	assert.Equal(t, records.StatusDraft, rec.Status)
	assert.Equal(t, []string{"h1", "h2", "h3", "h4"}, rec.Hooks)
	assert.Equal(t, 0, rec.SelectedHookIndex)

	// A second save updates the same record instead of inserting.
	_ = f.sess.Do(func(d *draft.PostDraft) error {
		assert.Equal(t, rec.ID, d.PersistedID)
		d.Body = "edited body"
		return nil
	})

	rec2, err := f.adapter.Save(ctx, f.sess)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, rec2.ID)

	list, err := f.store.Content().List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1, "re-saving must not create duplicates")
	assert.Equal(t, "edited body", list[0].Body)
}

func TestSchedule_DefaultOffset(t *testing.T) {
	f := newFixture(t)

	before := time.Now().UTC().Add(24 * time.Hour)
	rec, err := f.adapter.Schedule(context.Background(), f.sess, time.Time{})
	require.NoError(t, err)
	after := time.Now().UTC().Add(24 * time.Hour)

	assert.Equal(t, records.StatusScheduled, rec.Status)
	require.NotNil(t, rec.ScheduledAt)
	assert.False(t, rec.ScheduledAt.Before(before))
	assert.False(t, rec.ScheduledAt.After(after))

	_ = f.sess.Do(func(d *draft.PostDraft) error {
		assert.Equal(t, draft.StatusScheduled, d.Status)
		require.NotNil(t, d.ScheduledAt)
		return nil
	})
}

func TestSchedule_ExplicitTime(t *testing.T) {
	f := newFixture(t)

	when := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Second)
	rec, err := f.adapter.Schedule(context.Background(), f.sess, when)
	require.NoError(t, err)
	require.NotNil(t, rec.ScheduledAt)
	assert.True(t, rec.ScheduledAt.Equal(when))
}

func TestSchedule_RejectsPastTime(t *testing.T) {
	f := newFixture(t)

	_, err := f.adapter.Schedule(context.Background(), f.sess, time.Now().Add(-time.Hour))
	var verr *draft.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "scheduledAt", verr.Field)

	_ = f.sess.Do(func(d *draft.PostDraft) error {
		assert.Empty(t, d.PersistedID, "a rejected schedule must not persist anything")
		return nil
	})
}

func TestPublish_StampsPublishedAt(t *testing.T) {
	f := newFixture(t)

	rec, err := f.adapter.Publish(context.Background(), f.sess)
	require.NoError(t, err)
	assert.Equal(t, records.StatusPublished, rec.Status)
	assert.Nil(t, rec.ScheduledAt)
	require.NotNil(t, rec.PublishedAt)
	assert.WithinDuration(t, time.Now().UTC(), *rec.PublishedAt, 5*time.Second)
}

func TestSave_RejectedWhileGenerating(t *testing.T) {
	f := newFixture(t)

	_, err := f.sess.Begin(draft.PhaseRegeneratingText)
	require.NoError(t, err)

	_, err = f.adapter.Save(context.Background(), f.sess)
	assert.ErrorIs(t, err, draft.ErrBusy)
}

func TestSave_StoreFailureLeavesDraftUntouched(t *testing.T) {
	f := newFixture(t)
	failing := &failingStore{Store: f.store}
	f.adapter.store = failing

	_, err := f.adapter.Save(context.Background(), f.sess)
	require.Error(t, err)

	_ = f.sess.Do(func(d *draft.PostDraft) error {
		assert.Empty(t, d.PersistedID)
		assert.Equal(t, draft.StatusDraft, d.Status)
		return nil
	})
}

func TestSave_StagesUploadedImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_ = f.sess.Do(func(d *draft.PostDraft) error {
		d.Image.ApplyUpload(&draft.UploadedImage{
			Data:        []byte("png bytes"),
			Filename:    "chart.png",
			ContentType: "image/png",
			Size:        9,
			Width:       800,
			Height:      600,
		})
		return nil
	})

	rec, err := f.adapter.Save(ctx, f.sess)
	require.NoError(t, err)
	assert.Equal(t, "alice/"+f.sess.ID+"/chart.png", rec.ImagePath)

	data, obj, err := f.images.Get(ctx, rec.ImagePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("png bytes"), data)
	assert.Equal(t, "image/png", obj.ContentType)
}

func TestFinalContent(t *testing.T) {
	rec := &records.ContentRecord{
		Hooks:             []string{"h1", "h2"},
		SelectedHookIndex: 1,
		Body:              "body",
	}
	assert.Equal(t, "h2\n\nbody", FinalContent(rec))

	rec.SelectedHookIndex = -1
	assert.Equal(t, "body", FinalContent(rec))

	rec.SelectedHookIndex = 0
	rec.Body = ""
	assert.Equal(t, "h1", FinalContent(rec))
}

// failingStore wraps a real store with a content repository whose
// writes always fail.
type failingStore struct {
	records.Store
}

func (s *failingStore) Content() records.ContentRepository {
	return failingContent{}
}

type failingContent struct{}

var errStoreDown = errors.New("store down")

func (failingContent) Insert(ctx context.Context, rec *records.ContentRecord) error { return errStoreDown }
func (failingContent) Update(ctx context.Context, rec *records.ContentRecord) error { return errStoreDown }
func (failingContent) Get(ctx context.Context, ownerID, id string) (*records.ContentRecord, error) {
	return nil, errStoreDown
}
func (failingContent) List(ctx context.Context, ownerID string) ([]*records.ContentRecord, error) {
	return nil, errStoreDown
}
func (failingContent) Delete(ctx context.Context, ownerID, id string) error { return errStoreDown }
