package draft

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/contentgen/contentgen-backend/internal/metrics"
	"github.com/contentgen/contentgen-backend/pkg/kv"
)

// Session is one user's live editing session for one draft. All access
// to the draft goes through the session's mutex; the sequence counter
// orders generation requests so late responses from superseded requests
// can be recognized and dropped.
type Session struct {
	ID      string
	OwnerID string

	mu         sync.Mutex
	draft      *PostDraft
	seq        uint64
	lastActive time.Time
}

// Begin starts a generation-affecting operation. It fails with ErrBusy
// when another operation is in flight; requests are rejected, never
// queued. On success it moves the draft into phase and returns the
// sequence number identifying this operation.
func (s *Session) Begin(phase Phase) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draft.Phase.Busy() {
		return 0, ErrBusy
	}
	s.seq++
	s.draft.Phase = phase
	s.lastActive = time.Now()
	return s.seq, nil
}

// Complete settles the operation identified by seq. When seq is still
// the latest, apply runs against the draft, the phase returns to idle,
// and Complete reports true. A stale seq leaves the draft untouched and
// reports false.
func (s *Session) Complete(seq uint64, apply func(*PostDraft)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.seq {
		return false
	}
	if apply != nil {
		apply(s.draft)
		s.draft.Touch()
	}
	s.draft.Phase = PhaseIdle
	s.lastActive = time.Now()
	return true
}

// Fail settles a failed operation. The draft's hooks, body, and image
// are left exactly as they were before the operation began; only the
// phase rolls back to idle. Stale failures report false.
func (s *Session) Fail(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.seq {
		return false
	}
	s.draft.Phase = PhaseIdle
	s.lastActive = time.Now()
	return true
}

// Do runs fn against the draft while holding the session lock. It is
// the entry point for synchronous edits (body text, hook navigation,
// image settings) and for persistence reads.
func (s *Session) Do(fn func(*PostDraft) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = time.Now()
	return fn(s.draft)
}

// DoIdle is Do restricted to the idle phase; it returns ErrBusy while a
// generation operation is in flight.
func (s *Session) DoIdle(fn func(*PostDraft) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draft.Phase.Busy() {
		return ErrBusy
	}
	s.lastActive = time.Now()
	return fn(s.draft)
}

// Manager owns the live draft sessions. Sessions are keyed by UUID,
// scoped to their owner, and evicted by a janitor when idle longer
// than the configured TTL.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	previews kv.Store
	ttl      time.Duration
	logger   *zap.SugaredLogger
	metrics  *metrics.Metrics
	done     chan struct{}
	closed   sync.Once
}

const previewTTL = 2 * time.Hour

func NewManager(previews kv.Store, ttl time.Duration, logger *zap.SugaredLogger, m *metrics.Metrics) *Manager {
	mgr := &Manager{
		sessions: make(map[string]*Session),
		previews: previews,
		ttl:      ttl,
		logger:   logger,
		metrics:  m,
		done:     make(chan struct{}),
	}
	go mgr.janitor()
	return mgr
}

func (m *Manager) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictIdle()
		}
	}
}

func (m *Manager) evictIdle() {
	cutoff := time.Now().Add(-m.ttl)

	m.mu.Lock()
	var evicted []*Session
	for id, sess := range m.sessions {
		sess.mu.Lock()
		idle := sess.lastActive.Before(cutoff) && !sess.draft.Phase.Busy()
		sess.mu.Unlock()
		if idle {
			delete(m.sessions, id)
			evicted = append(evicted, sess)
		}
	}
	m.mu.Unlock()

	ctx := context.Background()
	for _, sess := range evicted {
		m.releaseSessionPreviews(ctx, sess)
		m.metrics.DecrementSessions(ctx)
		m.logger.Debugw("Evicted idle draft session", "session_id", sess.ID, "owner", sess.OwnerID)
	}
}

func (m *Manager) Create(ctx context.Context, ownerID string, d *PostDraft) *Session {
	sess := &Session{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		draft:      d,
		lastActive: time.Now(),
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	m.metrics.IncrementSessions(ctx)
	return sess
}

// Get returns the session when it exists and belongs to ownerID.
// A foreign session is indistinguishable from a missing one.
func (m *Manager) Get(ownerID, id string) (*Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok || sess.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return sess, nil
}

func (m *Manager) Delete(ctx context.Context, ownerID, id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if !ok || sess.OwnerID != ownerID {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	m.releaseSessionPreviews(ctx, sess)
	m.metrics.DecrementSessions(ctx)
	return nil
}

// StorePreview registers uploaded image bytes for browser display and
// returns the preview handle.
func (m *Manager) StorePreview(ctx context.Context, data []byte, contentType string) (string, error) {
	handle := uuid.NewString()
	if err := m.previews.Set(ctx, previewKey(handle), data, previewTTL); err != nil {
		return "", err
	}
	if err := m.previews.HSet(ctx, previewMetaKey(handle), "content_type", []byte(contentType)); err != nil {
		return "", err
	}
	_, _ = m.previews.Expire(ctx, previewMetaKey(handle), previewTTL)
	return handle, nil
}

// LoadPreview returns the preview bytes and content type for a handle.
func (m *Manager) LoadPreview(ctx context.Context, handle string) ([]byte, string, error) {
	data, err := m.previews.Get(ctx, previewKey(handle))
	if err != nil {
		return nil, "", err
	}
	ct, err := m.previews.HGet(ctx, previewMetaKey(handle), "content_type")
	if err != nil {
		ct = []byte("application/octet-stream")
	}
	return data, string(ct), nil
}

// ReleasePreview frees the resource behind a preview handle. Releasing
// an empty or already-released handle is a no-op.
func (m *Manager) ReleasePreview(ctx context.Context, handle string) {
	if handle == "" {
		return
	}
	if _, err := m.previews.Del(ctx, previewKey(handle), previewMetaKey(handle)); err != nil {
		m.logger.Warnw("Failed to release preview", "handle", handle, "error", err)
	}
}

func (m *Manager) releaseSessionPreviews(ctx context.Context, sess *Session) {
	sess.mu.Lock()
	var handle string
	if sess.draft.Image.Upload != nil {
		handle = sess.draft.Image.Upload.PreviewHandle
	}
	sess.mu.Unlock()
	m.ReleasePreview(ctx, handle)
}

func (m *Manager) Close() {
	m.closed.Do(func() { close(m.done) })
}

func previewKey(handle string) string     { return "preview:data:" + handle }
func previewMetaKey(handle string) string { return "preview:meta:" + handle }
