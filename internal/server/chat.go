package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/recaplabs/recap/internal/agent"
	"github.com/recaplabs/recap/internal/store"
	"github.com/recaplabs/recap/internal/stream"
)

// chatHandler runs one conversation turn over SSE.
type chatHandler struct {
	store  ThreadStore
	runner TurnRunner
	titler TitleGenerator
	logger *slog.Logger
}

// chatRequest is the POST /api/v1/chat body.
type chatRequest struct {
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
}

// chat handles one streaming turn. Validation failures are reported as
// JSON before the stream starts; once frames are flowing, failures
// surface as a terminal error frame instead.
//
// Persistence order: the user message is stored before generation
// begins, and the assistant answer (with its citations) is stored
// before the done frame is sent, so a client that sees done can reload
// the thread and find the full turn.
func (h *chatHandler) chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := userIDFromContext(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user_required", "user identity required", h.logger)
		return
	}

	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "missing_message", "message is required", h.logger)
		return
	}

	threadID, err := uuid.Parse(req.ThreadID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_thread_id", "thread_id must be a UUID", h.logger)
		return
	}

	// Ownership check also yields the thread's folder scope.
	thread, err := h.store.Thread(ctx, threadID, userID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	// History excludes the message being sent now.
	history, err := h.store.History(ctx, threadID)
	if err != nil {
		h.logger.Error("loading history", "thread_id", threadID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load history", h.logger)
		return
	}

	if _, err := h.store.AppendMessage(ctx, threadID, store.RoleUser, req.Message, nil); err != nil {
		h.logger.Error("persisting user message", "thread_id", threadID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to persist message", h.logger)
		return
	}

	sw, err := stream.NewWriter(w)
	if err != nil {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	projector := stream.NewProjector(sw, h.logger)

	result, err := h.runner.Run(ctx, history, req.Message, thread.FolderID, projector.Emit(ctx))
	if err != nil {
		if ctx.Err() != nil {
			h.logger.Info("client disconnected mid-turn", "thread_id", threadID)
			return
		}
		if errors.Is(err, agent.ErrGeneration) {
			h.logger.Error("turn aborted", "thread_id", threadID, "error", err)
			_ = projector.Error(ctx, "answer generation failed")
			return
		}
		// Emit failures mean the connection is gone; nothing to send.
		h.logger.Warn("turn stopped", "thread_id", threadID, "error", err)
		return
	}

	if _, err := h.store.AppendMessage(ctx, threadID, store.RoleAssistant, result.Answer, projector.Citations()); err != nil {
		h.logger.Error("persisting assistant message", "thread_id", threadID, "error", err)
		_ = projector.Error(ctx, "failed to persist answer")
		return
	}

	// First turn of a thread also names it, best-effort.
	if len(history) == 0 && h.titler != nil {
		title := h.titler.Title(ctx, req.Message)
		if err := h.store.RenameThread(ctx, threadID, userID, title); err != nil {
			h.logger.Warn("naming thread", "thread_id", threadID, "error", err)
		}
	}

	if err := projector.Done(ctx); err != nil {
		h.logger.Debug("writing done frame", "thread_id", threadID, "error", err)
	}
}

// writeStoreError maps store errors to HTTP statuses.
func (h *chatHandler) writeStoreError(w http.ResponseWriter, err error) {
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
