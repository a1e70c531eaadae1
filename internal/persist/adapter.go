// Package persist moves draft sessions into the record store. A draft
// with no persisted id inserts a new record; later saves update that
// same record. Persistence failures leave the in-memory draft exactly
// as it was so the user can retry.
package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/contentgen/contentgen-backend/internal/blob"
	"github.com/contentgen/contentgen-backend/internal/draft"
	"github.com/contentgen/contentgen-backend/internal/notify"
	"github.com/contentgen/contentgen-backend/internal/records"
)

type Adapter struct {
	store          records.Store
	images         *blob.Store
	sink           notify.Sink
	logger         *zap.SugaredLogger
	scheduleOffset time.Duration
}

func NewAdapter(store records.Store, images *blob.Store, sink notify.Sink, logger *zap.SugaredLogger, scheduleOffset time.Duration) *Adapter {
	return &Adapter{
		store:          store,
		images:         images,
		sink:           sink,
		logger:         logger,
		scheduleOffset: scheduleOffset,
	}
}

// Save writes the draft as a plain draft record, preserving its current
// status when it was already scheduled or published.
func (a *Adapter) Save(ctx context.Context, sess *draft.Session) (*records.ContentRecord, error) {
	return a.persist(ctx, sess, nil, nil, notify.EventDraftSaved)
}

// Schedule saves the draft with scheduled status. A zero `when` applies
// the configured default offset from now.
func (a *Adapter) Schedule(ctx context.Context, sess *draft.Session, when time.Time) (*records.ContentRecord, error) {
	if when.IsZero() {
		when = time.Now().UTC().Add(a.scheduleOffset)
	}
	if when.Before(time.Now()) {
		return nil, &draft.ValidationError{Field: "scheduledAt", Reason: "scheduled time must be in the future"}
	}
	when = when.UTC()

	return a.persist(ctx, sess,
		func(rec *records.ContentRecord) {
			rec.Status = records.StatusScheduled
			rec.ScheduledAt = &when
			rec.PublishedAt = nil
		},
		func(d *draft.PostDraft) {
			d.Status = draft.StatusScheduled
			d.ScheduledAt = &when
		},
		notify.EventDraftScheduled)
}

// Publish saves the draft with published status, stamped now.
func (a *Adapter) Publish(ctx context.Context, sess *draft.Session) (*records.ContentRecord, error) {
	now := time.Now().UTC()
	return a.persist(ctx, sess,
		func(rec *records.ContentRecord) {
			rec.Status = records.StatusPublished
			rec.ScheduledAt = nil
			rec.PublishedAt = &now
		},
		func(d *draft.PostDraft) {
			d.Status = draft.StatusPublished
			d.ScheduledAt = nil
			d.PublishedAt = &now
		},
		notify.EventDraftPublished)
}

// persist runs entirely under the session lock and rejects with ErrBusy
// while a generation operation is in flight. mutateRec shapes the
// outgoing record; applyDraft runs only after the store write succeeds,
// so a failed save leaves the draft exactly as it was.
func (a *Adapter) persist(ctx context.Context, sess *draft.Session, mutateRec func(*records.ContentRecord), applyDraft func(*draft.PostDraft), eventType string) (*records.ContentRecord, error) {
	var saved *records.ContentRecord

	err := sess.DoIdle(func(d *draft.PostDraft) error {
		rec := recordFromDraft(sess, d)
		if mutateRec != nil {
			mutateRec(rec)
		}

		if d.Image.Mode == draft.ImageModeUpload && d.Image.Upload != nil {
			path, err := a.stageImage(ctx, sess, d.Image.Upload)
			if err != nil {
				return fmt.Errorf("stage image: %w", err)
			}
			rec.ImagePath = path
		}

		insert := d.PersistedID == ""
		if insert {
			rec.ID = uuid.NewString()
			if err := a.store.Content().Insert(ctx, rec); err != nil {
				return err
			}
		} else {
			rec.ID = d.PersistedID
			if err := a.store.Content().Update(ctx, rec); err != nil {
				return err
			}
		}

		d.PersistedID = rec.ID
		if applyDraft != nil {
			applyDraft(d)
		}
		d.Touch()
		saved = rec
		return nil
	})
	if err != nil {
		a.logger.Warnw("Draft persistence failed",
			"session_id", sess.ID, "owner", sess.OwnerID, "error", err)
		return nil, err
	}

	a.sink.Publish(ctx, sess.OwnerID, notify.Event{
		Type:      eventType,
		SessionID: sess.ID,
		Timestamp: time.Now().UTC(),
	})
	return saved, nil
}

func (a *Adapter) stageImage(ctx context.Context, sess *draft.Session, img *draft.UploadedImage) (string, error) {
	path := sess.OwnerID + "/" + sess.ID + "/" + img.Filename
	if _, err := a.images.Put(ctx, path, img.ContentType, img.Data); err != nil {
		return "", err
	}
	return path, nil
}

func recordFromDraft(sess *draft.Session, d *draft.PostDraft) *records.ContentRecord {
	rec := &records.ContentRecord{
		OwnerID:           sess.OwnerID,
		Topic:             d.Topic,
		ContentType:       string(d.ContentType),
		Tone:              string(d.Tone),
		Length:            string(d.Length),
		IncludeCTA:        d.IncludeCTA,
		Hooks:             append([]string(nil), d.Hooks.Candidates...),
		SelectedHookIndex: d.Hooks.Index,
		Body:              d.Body,
		ImageMode:         string(d.Image.Mode),
		ImageStyle:        string(d.Image.Style),
		ImageTemplate:     string(d.Image.Template),
		Status:            records.ContentStatus(d.Status),
		ScheduledAt:       d.ScheduledAt,
		PublishedAt:       d.PublishedAt,
	}
	if d.Image.Mode == draft.ImageModeGenerate {
		rec.ImagePath = d.Image.GeneratedURL
	}
	return rec
}

// FinalContent composes the publishable text of a stored record, the
// same way a live draft does.
func FinalContent(rec *records.ContentRecord) string {
	if rec.SelectedHookIndex >= 0 && rec.SelectedHookIndex < len(rec.Hooks) {
		hook := rec.Hooks[rec.SelectedHookIndex]
		if rec.Body == "" {
			return hook
		}
		return hook + "\n\n" + rec.Body
	}
	return rec.Body
}
