package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/contentgen/contentgen-backend/internal/persist"
	"github.com/contentgen/contentgen-backend/internal/records"
)

// Content library endpoints: CRUD over previously saved posts.

func (h *Handler) ListContent(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	recs, err := h.store.Content().List(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	out := make([]ContentDTO, 0, len(recs))
	for _, rec := range recs {
		out = append(out, contentDTO(rec, persist.FinalContent(rec)))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetContent(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	rec, err := h.store.Content().Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, contentDTO(rec, persist.FinalContent(rec)))
}

func (h *Handler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req UpdateContentRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.store.Content().Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if req.Topic != nil {
		rec.Topic = *req.Topic
	}
	if req.Body != nil {
		rec.Body = *req.Body
	}
	if req.SelectedHookIndex != nil {
		idx := *req.SelectedHookIndex
		if idx < -1 || idx >= len(rec.Hooks) {
			h.writeError(w, http.StatusUnprocessableEntity, "HOOK_INDEX_OUT_OF_RANGE", "selectedHookIndex out of range")
			return
		}
		rec.SelectedHookIndex = idx
	}
	if req.Status != nil {
		status := records.ContentStatus(*req.Status)
		switch status {
		case records.StatusDraft, records.StatusScheduled, records.StatusPublished:
		default:
			h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "unknown status")
			return
		}
		rec.Status = status
		if status != records.StatusScheduled {
			rec.ScheduledAt = nil
		}
	}
	if req.ScheduledAt != nil {
		rec.ScheduledAt = req.ScheduledAt
		rec.Status = records.StatusScheduled
	}

	if err := h.store.Content().Update(r.Context(), rec); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, contentDTO(rec, persist.FinalContent(rec)))
}

func (h *Handler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := h.store.Content().Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
