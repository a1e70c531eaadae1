// Package workflow coordinates the async generation operations of a
// draft session: initial generation, text/image/all regeneration. At
// most one operation runs per session; concurrent triggers are
// rejected with draft.ErrBusy. Results are applied only when they
// belong to the latest request, so a response from a superseded
// request can never clobber newer state.
package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/contentgen/contentgen-backend/internal/draft"
	"github.com/contentgen/contentgen-backend/internal/generation"
	"github.com/contentgen/contentgen-backend/internal/metrics"
	"github.com/contentgen/contentgen-backend/internal/notify"
)

// Operation names used in events and metrics labels.
const (
	OpGenerate        = "generate"
	OpRegenerateText  = "regenerateText"
	OpRegenerateImage = "regenerateImage"
	OpRegenerateAll   = "regenerateAll"
)

type Coordinator struct {
	gen     generation.Client
	sink    notify.Sink
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics

	// spawn runs the async part of an operation. Production uses a
	// goroutine; tests substitute an inline runner for determinism.
	spawn func(func())
}

type Option func(*Coordinator)

// WithSpawn overrides how async work is launched.
func WithSpawn(spawn func(func())) Option {
	return func(c *Coordinator) { c.spawn = spawn }
}

func NewCoordinator(gen generation.Client, sink notify.Sink, logger *zap.SugaredLogger, m *metrics.Metrics, opts ...Option) *Coordinator {
	c := &Coordinator{
		gen:     gen,
		sink:    sink,
		logger:  logger,
		metrics: m,
		spawn:   func(fn func()) { go fn() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// buildRequest snapshots the request parameters under the session lock.
func buildRequest(d *draft.PostDraft) generation.Request {
	return generation.Request{
		Topic:       d.Topic,
		ContentType: string(d.ContentType),
		Tone:        string(d.Tone),
		Length:      string(d.Length),
		IncludeCTA:  d.IncludeCTA,
	}
}

// Generate runs the initial hook and body generation for the session.
// It returns once the operation is accepted; completion is delivered
// through the notification sink.
func (c *Coordinator) Generate(ctx context.Context, sess *draft.Session) error {
	return c.textOperation(ctx, sess, OpGenerate, draft.PhaseGenerating)
}

// RegenerateText regenerates hooks and body with the current settings.
func (c *Coordinator) RegenerateText(ctx context.Context, sess *draft.Session) error {
	return c.textOperation(ctx, sess, OpRegenerateText, draft.PhaseRegeneratingText)
}

func (c *Coordinator) textOperation(ctx context.Context, sess *draft.Session, op string, phase draft.Phase) error {
	req, err := c.prepare(sess)
	if err != nil {
		c.countBusy(ctx, op, err)
		return err
	}
	seq, err := sess.Begin(phase)
	if err != nil {
		c.countBusy(ctx, op, err)
		return err
	}

	c.publish(ctx, sess, notify.EventGenerationStarted, op, "")
	c.spawn(func() {
		c.runText(context.WithoutCancel(ctx), sess, seq, op, req)
	})
	return nil
}

func (c *Coordinator) runText(ctx context.Context, sess *draft.Session, seq uint64, op string, req generation.Request) {
	start := time.Now()
	result, err := c.gen.GenerateHooksAndBody(ctx, req)
	c.metrics.RecordGenerationCall(ctx, op, err, time.Since(start))

	if err != nil {
		c.settleFailure(ctx, sess, seq, op, err)
		return
	}

	applied := sess.Complete(seq, func(d *draft.PostDraft) {
		d.Hooks.Replace(result.Hooks)
		d.Body = result.Body
	})
	c.settleSuccess(ctx, sess, seq, op, applied)
}

// RegenerateImage requests a new generated image. Only valid in
// generate mode; an uploaded image is never replaced by the service.
func (c *Coordinator) RegenerateImage(ctx context.Context, sess *draft.Session) error {
	var imgReq generation.ImageRequest
	err := sess.DoIdle(func(d *draft.PostDraft) error {
		if strings.TrimSpace(d.Topic) == "" {
			return &draft.ValidationError{Field: "topic", Reason: "topic is required before generating"}
		}
		if d.Image.Mode != draft.ImageModeGenerate {
			return &draft.ValidationError{Field: "imageMode", Reason: "image regeneration requires generate mode"}
		}
		imgReq = generation.ImageRequest{
			Topic:    d.Topic,
			Style:    string(d.Image.Style),
			Template: string(d.Image.Template),
		}
		return nil
	})
	if err != nil {
		c.countBusy(ctx, OpRegenerateImage, err)
		return err
	}
	seq, err := sess.Begin(draft.PhaseRegeneratingImg)
	if err != nil {
		c.countBusy(ctx, OpRegenerateImage, err)
		return err
	}

	c.publish(ctx, sess, notify.EventGenerationStarted, OpRegenerateImage, "")
	c.spawn(func() {
		c.runImage(context.WithoutCancel(ctx), sess, seq, OpRegenerateImage, imgReq)
	})
	return nil
}

func (c *Coordinator) runImage(ctx context.Context, sess *draft.Session, seq uint64, op string, req generation.ImageRequest) {
	start := time.Now()
	url, err := c.gen.GenerateImage(ctx, req)
	c.metrics.RecordGenerationCall(ctx, op, err, time.Since(start))

	if err != nil {
		c.settleFailure(ctx, sess, seq, op, err)
		return
	}

	applied := sess.Complete(seq, func(d *draft.PostDraft) {
		d.Image.GeneratedURL = url
	})
	c.settleSuccess(ctx, sess, seq, op, applied)
}

// RegenerateAll regenerates text and, in generate mode, the image in
// one operation. Text and image results apply together on success;
// if either call fails the draft keeps its previous hooks, body, and
// image unchanged.
func (c *Coordinator) RegenerateAll(ctx context.Context, sess *draft.Session) error {
	req, err := c.prepare(sess)
	if err != nil {
		c.countBusy(ctx, OpRegenerateAll, err)
		return err
	}

	var imgReq *generation.ImageRequest
	_ = sess.Do(func(d *draft.PostDraft) error {
		if d.Image.Mode == draft.ImageModeGenerate {
			imgReq = &generation.ImageRequest{
				Topic:    d.Topic,
				Style:    string(d.Image.Style),
				Template: string(d.Image.Template),
			}
		}
		return nil
	})

	seq, err := sess.Begin(draft.PhaseRegeneratingAll)
	if err != nil {
		c.countBusy(ctx, OpRegenerateAll, err)
		return err
	}

	c.publish(ctx, sess, notify.EventGenerationStarted, OpRegenerateAll, "")
	c.spawn(func() {
		c.runAll(context.WithoutCancel(ctx), sess, seq, req, imgReq)
	})
	return nil
}

func (c *Coordinator) runAll(ctx context.Context, sess *draft.Session, seq uint64, req generation.Request, imgReq *generation.ImageRequest) {
	start := time.Now()
	result, err := c.gen.GenerateHooksAndBody(ctx, req)
	if err != nil {
		c.metrics.RecordGenerationCall(ctx, OpRegenerateAll, err, time.Since(start))
		c.settleFailure(ctx, sess, seq, OpRegenerateAll, err)
		return
	}

	var imageURL string
	if imgReq != nil {
		imageURL, err = c.gen.GenerateImage(ctx, *imgReq)
		if err != nil {
			c.metrics.RecordGenerationCall(ctx, OpRegenerateAll, err, time.Since(start))
			c.settleFailure(ctx, sess, seq, OpRegenerateAll, err)
			return
		}
	}
	c.metrics.RecordGenerationCall(ctx, OpRegenerateAll, nil, time.Since(start))

	applied := sess.Complete(seq, func(d *draft.PostDraft) {
		d.Hooks.Replace(result.Hooks)
		d.Body = result.Body
		if imgReq != nil {
			d.Image.GeneratedURL = imageURL
		}
	})
	c.settleSuccess(ctx, sess, seq, OpRegenerateAll, applied)
}

// prepare validates preconditions without mutating the session. The
// topic check runs before any network activity.
func (c *Coordinator) prepare(sess *draft.Session) (generation.Request, error) {
	var req generation.Request
	err := sess.DoIdle(func(d *draft.PostDraft) error {
		if strings.TrimSpace(d.Topic) == "" {
			return &draft.ValidationError{Field: "topic", Reason: "topic is required before generating"}
		}
		req = buildRequest(d)
		return nil
	})
	return req, err
}

func (c *Coordinator) settleSuccess(ctx context.Context, sess *draft.Session, seq uint64, op string, applied bool) {
	if !applied {
		c.metrics.RecordStaleDiscard(ctx, op)
		c.logger.Debugw("Discarded stale generation response",
			"session_id", sess.ID, "operation", op, "seq", seq)
		return
	}
	c.publish(ctx, sess, notify.EventGenerationCompleted, op, "")
}

func (c *Coordinator) settleFailure(ctx context.Context, sess *draft.Session, seq uint64, op string, err error) {
	if !sess.Fail(seq) {
		c.metrics.RecordStaleDiscard(ctx, op)
		return
	}
	c.logger.Warnw("Generation operation failed",
		"session_id", sess.ID, "operation", op, "error", err)
	c.publish(ctx, sess, notify.EventGenerationFailed, op, err.Error())
}

func (c *Coordinator) publish(ctx context.Context, sess *draft.Session, eventType, op, message string) {
	c.sink.Publish(ctx, sess.OwnerID, notify.Event{
		Type:      eventType,
		SessionID: sess.ID,
		Operation: op,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

func (c *Coordinator) countBusy(ctx context.Context, op string, err error) {
	if errors.Is(err, draft.ErrBusy) {
		c.metrics.RecordBusyRejection(ctx, op)
	}
}
