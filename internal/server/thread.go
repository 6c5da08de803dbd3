package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/recaplabs/recap/internal/store"
)

// Listing defaults and bounds for threads and messages.
const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// defaultThreadTitle applies when a thread is created without one.
const defaultThreadTitle = "New conversation"

// threadHandler serves thread CRUD endpoints.
type threadHandler struct {
	store  ThreadStore
	logger *slog.Logger
}

// createThreadRequest is the POST /api/v1/threads body.
type createThreadRequest struct {
	Title string `json:"title"`
}

// renameThreadRequest is the PATCH /api/v1/threads/{id} body.
type renameThreadRequest struct {
	Title string `json:"title"`
}

func (h *threadHandler) create(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	folderID := folderIDFromContext(r.Context())
	if folderID == "" {
		writeError(w, http.StatusBadRequest, "folder_required", "folder identity required to create a thread", h.logger)
		return
	}

	var req createThreadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultThreadTitle
	}

	thread, err := h.store.CreateThread(r.Context(), userID, folderID, title)
	if err != nil {
		h.logger.Error("creating thread", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create thread", h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, thread, h.logger)
}

func (h *threadHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	limit, offset := pagination(r)

	// Optional folder filter; applied in the query so a filtered page
	// is as full as the remaining matches allow.
	folder := r.URL.Query().Get("folder")

	threads, err := h.store.Threads(r.Context(), userID, folder, limit, offset)
	if err != nil {
		h.logger.Error("listing threads", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list threads", h.logger)
		return
	}
	if threads == nil {
		threads = []store.Thread{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"threads": threads}, h.logger)
}

func (h *threadHandler) get(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	thread, err := h.store.Thread(r.Context(), id, userID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, thread, h.logger)
}

func (h *threadHandler) messages(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)

	messages, err := h.store.Messages(r.Context(), id, userID, limit, offset)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": messages}, h.logger)
}

func (h *threadHandler) rename(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req renameThreadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		writeError(w, http.StatusBadRequest, "missing_title", "title is required", h.logger)
		return
	}

	if err := h.store.RenameThread(r.Context(), id, userID, title); err != nil {
		h.writeStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *threadHandler) delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteThread(r.Context(), id, userID); err != nil {
		h.writeStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// pathID parses the {id} path segment, writing a 400 on failure.
func (h *threadHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_thread_id", "thread id must be a UUID", h.logger)
		return uuid.Nil, false
	}
	return id, true
}

// writeStoreError maps store errors to HTTP statuses.
func (h *threadHandler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "thread_not_found", "thread not found", h.logger)
	case errors.Is(err, store.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "thread belongs to another user", h.logger)
	default:
		h.logger.Error("store error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
	}
}

// pagination parses limit/offset query parameters with defaults.
func pagination(r *http.Request) (limit, offset int32) {
	limit = defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = int32(min(n, maxPageSize))
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = int32(n)
		}
	}
	return limit, offset
}
