package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/contentgen/contentgen-backend/internal/auth"
	"github.com/contentgen/contentgen-backend/internal/blob"
	"github.com/contentgen/contentgen-backend/internal/config"
	"github.com/contentgen/contentgen-backend/internal/draft"
	"github.com/contentgen/contentgen-backend/internal/generation"
	"github.com/contentgen/contentgen-backend/internal/persist"
	"github.com/contentgen/contentgen-backend/internal/records"
	"github.com/contentgen/contentgen-backend/internal/workflow"
	"github.com/contentgen/contentgen-backend/internal/ws"
)

// MetricsInterface defines the interface for metrics recording.
type MetricsInterface interface {
	RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration)
}

type Handler struct {
	sessions    *draft.Manager
	coordinator *workflow.Coordinator
	persistence *persist.Adapter
	store       records.Store
	documents   *blob.Store
	wsHub       *ws.Hub
	sseHandler  *ws.SSEHandler
	config      *config.Config
	logger      *zap.SugaredLogger
	metrics     MetricsInterface
}

func NewHandler(
	sessions *draft.Manager,
	coordinator *workflow.Coordinator,
	persistence *persist.Adapter,
	store records.Store,
	documents *blob.Store,
	wsHub *ws.Hub,
	sseHandler *ws.SSEHandler,
	config *config.Config,
	logger *zap.SugaredLogger,
	metrics MetricsInterface,
) *Handler {
	return &Handler{
		sessions:    sessions,
		coordinator: coordinator,
		persistence: persistence,
		store:       store,
		documents:   documents,
		wsHub:       wsHub,
		sseHandler:  sseHandler,
		config:      config,
		logger:      logger,
		metrics:     metrics,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Errorw("Failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{Error: ErrorDTO{Code: code, Message: message}})
}

// writeDomainError maps domain errors to stable HTTP codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var validationErr *draft.ValidationError
	var timeoutErr *generation.TimeoutError
	var networkErr *generation.NetworkError
	var serviceErr *generation.ServiceError

	switch {
	case errors.Is(err, draft.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "DRAFT_NOT_FOUND", err.Error())
	case errors.Is(err, draft.ErrBusy):
		h.writeError(w, http.StatusConflict, "OPERATION_IN_PROGRESS", err.Error())
	case errors.Is(err, draft.ErrHookIndexOutOfRange):
		h.writeError(w, http.StatusUnprocessableEntity, "HOOK_INDEX_OUT_OF_RANGE", err.Error())
	case errors.Is(err, draft.ErrNoImage):
		h.writeError(w, http.StatusNotFound, "NO_UPLOADED_IMAGE", err.Error())
	case errors.Is(err, draft.ErrInvalidImageFormat):
		h.writeError(w, http.StatusUnsupportedMediaType, "INVALID_IMAGE_FORMAT", err.Error())
	case errors.Is(err, draft.ErrImageTooLarge):
		h.writeError(w, http.StatusRequestEntityTooLarge, "IMAGE_TOO_LARGE", err.Error())
	case errors.Is(err, draft.ErrImageTooSmall):
		h.writeError(w, http.StatusUnprocessableEntity, "IMAGE_TOO_SMALL", err.Error())
	case errors.Is(err, draft.ErrImageDecode):
		h.writeError(w, http.StatusUnprocessableEntity, "IMAGE_DECODE_ERROR", err.Error())
	case errors.As(err, &validationErr):
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.As(err, &timeoutErr):
		h.writeError(w, http.StatusGatewayTimeout, "GENERATION_TIMEOUT", err.Error())
	case errors.As(err, &networkErr):
		h.writeError(w, http.StatusBadGateway, "GENERATION_UNREACHABLE", err.Error())
	case errors.As(err, &serviceErr):
		h.writeError(w, http.StatusBadGateway, "GENERATION_FAILED", err.Error())
	case errors.Is(err, records.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "RECORD_NOT_FOUND", err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "request body is not valid JSON")
		return false
	}
	return true
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing authentication")
	}
	return userID, ok
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*draft.Session, bool) {
	userID, ok := h.userID(w, r)
	if !ok {
		return nil, false
	}
	sess, err := h.sessions.Get(userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return nil, false
	}
	return sess, true
}

func (h *Handler) respondDraft(w http.ResponseWriter, status int, sess *draft.Session) {
	var dto DraftDTO
	_ = sess.Do(func(d *draft.PostDraft) error {
		dto = draftDTO(sess.ID, d)
		return nil
	})
	h.writeJSON(w, status, dto)
}

// Health endpoints

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Draft session endpoints

func (h *Handler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req CreateDraftRequest
	if !h.decode(w, r, &req) {
		return
	}

	contentType := draft.ContentType(req.ContentType)
	if req.ContentType == "" {
		contentType = draft.ContentEngagement
	}
	tone := draft.Tone(req.Tone)
	if req.Tone == "" {
		tone = draft.ToneProfessional
	}
	length := draft.Length(req.Length)
	if req.Length == "" {
		length = draft.LengthMedium
	}

	if !contentType.Valid() {
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "unknown contentType")
		return
	}
	if !tone.Valid() {
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "unknown tone")
		return
	}
	if !length.Valid() {
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "unknown length")
		return
	}

	d := draft.NewPostDraft(strings.TrimSpace(req.Topic), contentType, tone, length, req.IncludeCTA)
	sess := h.sessions.Create(r.Context(), userID, d)
	h.respondDraft(w, http.StatusCreated, sess)
}

func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respondDraft(w, http.StatusOK, sess)
}

func (h *Handler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req UpdateDraftRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := sess.DoIdle(func(d *draft.PostDraft) error {
		if req.ContentType != nil {
			ct := draft.ContentType(*req.ContentType)
			if !ct.Valid() {
				return &draft.ValidationError{Field: "contentType", Reason: "unknown value"}
			}
			d.ContentType = ct
		}
		if req.Tone != nil {
			tone := draft.Tone(*req.Tone)
			if !tone.Valid() {
				return &draft.ValidationError{Field: "tone", Reason: "unknown value"}
			}
			d.Tone = tone
		}
		if req.Length != nil {
			length := draft.Length(*req.Length)
			if !length.Valid() {
				return &draft.ValidationError{Field: "length", Reason: "unknown value"}
			}
			d.Length = length
		}
		if req.Topic != nil {
			d.Topic = strings.TrimSpace(*req.Topic)
		}
		if req.Body != nil {
			d.Body = *req.Body
		}
		if req.IncludeCTA != nil {
			d.IncludeCTA = *req.IncludeCTA
		}
		d.Touch()
		return nil
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.respondDraft(w, http.StatusOK, sess)
}

func (h *Handler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Generation endpoints

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	h.startOperation(w, r, h.coordinator.Generate)
}

func (h *Handler) RegenerateText(w http.ResponseWriter, r *http.Request) {
	h.startOperation(w, r, h.coordinator.RegenerateText)
}

func (h *Handler) RegenerateImage(w http.ResponseWriter, r *http.Request) {
	h.startOperation(w, r, h.coordinator.RegenerateImage)
}

func (h *Handler) RegenerateAll(w http.ResponseWriter, r *http.Request) {
	h.startOperation(w, r, h.coordinator.RegenerateAll)
}

func (h *Handler) startOperation(w http.ResponseWriter, r *http.Request, start func(context.Context, *draft.Session) error) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := start(r.Context(), sess); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.respondDraft(w, http.StatusAccepted, sess)
}

// Hook endpoints

func (h *Handler) SelectHook(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req SelectHookRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := sess.DoIdle(func(d *draft.PostDraft) error {
		return d.Hooks.Select(req.Index)
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.respondDraft(w, http.StatusOK, sess)
}

func (h *Handler) NextHook(w http.ResponseWriter, r *http.Request) {
	h.navigateHook(w, r, func(s *draft.HookCandidateSet) { s.Next() })
}

func (h *Handler) PreviousHook(w http.ResponseWriter, r *http.Request) {
	h.navigateHook(w, r, func(s *draft.HookCandidateSet) { s.Previous() })
}

func (h *Handler) navigateHook(w http.ResponseWriter, r *http.Request, move func(*draft.HookCandidateSet)) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	err := sess.DoIdle(func(d *draft.PostDraft) error {
		move(&d.Hooks)
		return nil
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.respondDraft(w, http.StatusOK, sess)
}

// Image endpoints

func (h *Handler) UpdateImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req UpdateImageRequest
	if !h.decode(w, r, &req) {
		return
	}

	var released string
	err := sess.DoIdle(func(d *draft.PostDraft) error {
		if req.Mode != nil {
			mode := draft.ImageMode(*req.Mode)
			if mode != draft.ImageModeGenerate && mode != draft.ImageModeUpload {
				return &draft.ValidationError{Field: "imageMode", Reason: "unknown mode"}
			}
			released = d.Image.SetMode(mode)
		}
		if req.Style != nil {
			if err := d.Image.SetStyle(draft.ImageStyle(*req.Style)); err != nil {
				return err
			}
		}
		if req.Template != nil {
			if err := d.Image.SetTemplate(draft.ImageTemplate(*req.Template)); err != nil {
				return err
			}
		}
		d.Touch()
		return nil
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.sessions.ReleasePreview(r.Context(), released)
	h.respondDraft(w, http.StatusOK, sess)
}

func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	// Multipart form capped just above the validation ceiling so the
	// size check produces the domain error, not a parse failure.
	if err := r.ParseMultipartForm(draft.MaxImageBytes + 1<<20); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_MULTIPART", "could not parse multipart form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "MISSING_FILE", "image file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, draft.MaxImageBytes+1))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "UPLOAD_READ_ERROR", err.Error())
		return
	}

	img, err := draft.ValidateUpload(data, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	handle, err := h.sessions.StorePreview(r.Context(), img.Data, img.ContentType)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "PREVIEW_STORE_ERROR", err.Error())
		return
	}
	img.PreviewHandle = handle

	var released string
	err = sess.DoIdle(func(d *draft.PostDraft) error {
		released = d.Image.ApplyUpload(img)
		d.Touch()
		return nil
	})
	if err != nil {
		h.sessions.ReleasePreview(r.Context(), handle)
		h.writeDomainError(w, err)
		return
	}
	h.sessions.ReleasePreview(r.Context(), released)
	h.respondDraft(w, http.StatusOK, sess)
}

func (h *Handler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var released string
	err := sess.DoIdle(func(d *draft.PostDraft) error {
		var err error
		released, err = d.Image.RemoveUpload()
		if err != nil {
			return err
		}
		d.Touch()
		return nil
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.sessions.ReleasePreview(r.Context(), released)
	h.respondDraft(w, http.StatusOK, sess)
}

// GetPreview serves the raw bytes behind a preview handle.
func (h *Handler) GetPreview(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.userID(w, r); !ok {
		return
	}

	data, contentType, err := h.sessions.LoadPreview(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		h.writeError(w, http.StatusNotFound, "PREVIEW_NOT_FOUND", "preview not found")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// Persistence endpoints

func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	rec, err := h.persistence.Save(r.Context(), sess)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, contentDTO(rec, persist.FinalContent(rec)))
}

func (h *Handler) ScheduleDraft(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req ScheduleRequest
	if !h.decode(w, r, &req) {
		return
	}
	var when time.Time
	if req.ScheduledAt != nil {
		when = *req.ScheduledAt
	}

	rec, err := h.persistence.Schedule(r.Context(), sess, when)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, contentDTO(rec, persist.FinalContent(rec)))
}

func (h *Handler) PublishDraft(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	rec, err := h.persistence.Publish(r.Context(), sess)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, contentDTO(rec, persist.FinalContent(rec)))
}
