// Package store persists conversation threads and their messages in
// PostgreSQL. Only durable turn halves are stored: the user's message
// and the assistant's final answer with citations.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/recaplabs/recap/internal/agent"
	"github.com/recaplabs/recap/internal/stream"
)

// ErrNotFound indicates the requested thread does not exist.
var ErrNotFound = errors.New("thread not found")

// ErrForbidden indicates the thread belongs to a different user.
var ErrForbidden = errors.New("thread belongs to another user")

// historyLimit bounds how many messages are replayed into a turn's
// conversation history.
const historyLimit = 200

// Querier defines the database operations Store depends on. Interfaces
// are defined by the consumer; production uses Queries, tests use mocks.
type Querier interface {
	InsertThread(ctx context.Context, arg InsertThreadParams) (Thread, error)
	GetThread(ctx context.Context, id uuid.UUID) (Thread, error)
	ListThreads(ctx context.Context, userID, folderID string, limit, offset int32) ([]Thread, error)
	UpdateThreadTitle(ctx context.Context, id uuid.UUID, title string) error
	TouchThread(ctx context.Context, id uuid.UUID) error
	DeleteThread(ctx context.Context, id uuid.UUID) error

	InsertMessage(ctx context.Context, arg InsertMessageParams) (Message, error)
	ListMessages(ctx context.Context, threadID uuid.UUID, limit, offset int32) ([]Message, error)
}

// Store manages thread and message persistence.
// Safe for concurrent use by multiple goroutines.
type Store struct {
	querier Querier
	logger  *slog.Logger
}

// New creates a Store.
func New(querier Querier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{querier: querier, logger: logger}
}

// CreateThread creates a thread for the given user and folder scope.
func (s *Store) CreateThread(ctx context.Context, userID, folderID, title string) (*Thread, error) {
	t, err := s.querier.InsertThread(ctx, InsertThreadParams{
		ID:       uuid.New(),
		UserID:   userID,
		FolderID: folderID,
		Title:    title,
	})
	if err != nil {
		return nil, fmt.Errorf("creating thread: %w", err)
	}

	s.logger.Debug("created thread", "id", t.ID, "folder_id", folderID)
	return &t, nil
}

// Thread fetches a thread and verifies it belongs to userID.
func (s *Store) Thread(ctx context.Context, id uuid.UUID, userID string) (*Thread, error) {
	t, err := s.querier.GetThread(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting thread %s: %w", id, err)
	}
	if t.UserID != userID {
		return nil, ErrForbidden
	}
	return &t, nil
}

// Threads lists the user's threads, most recently updated first. A
// non-empty folderID narrows the listing to that folder before
// pagination; empty lists all folders.
func (s *Store) Threads(ctx context.Context, userID, folderID string, limit, offset int32) ([]Thread, error) {
	threads, err := s.querier.ListThreads(ctx, userID, folderID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}
	return threads, nil
}

// RenameThread updates a thread's title after an ownership check.
func (s *Store) RenameThread(ctx context.Context, id uuid.UUID, userID, title string) error {
	if _, err := s.Thread(ctx, id, userID); err != nil {
		return err
	}
	if err := s.querier.UpdateThreadTitle(ctx, id, title); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("renaming thread %s: %w", id, err)
	}
	return nil
}

// DeleteThread removes a thread and its messages after an ownership
// check. Messages cascade at the schema level.
func (s *Store) DeleteThread(ctx context.Context, id uuid.UUID, userID string) error {
	if _, err := s.Thread(ctx, id, userID); err != nil {
		return err
	}
	if err := s.querier.DeleteThread(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("deleting thread %s: %w", id, err)
	}
	s.logger.Debug("deleted thread", "id", id)
	return nil
}

// AppendMessage appends one message to a thread and bumps the thread's
// updated_at. citations may be nil for user messages.
func (s *Store) AppendMessage(ctx context.Context, threadID uuid.UUID, role, content string, citations []stream.Citation) (*Message, error) {
	var citationsJSON []byte
	if len(citations) > 0 {
		var err error
		citationsJSON, err = json.Marshal(citations)
		if err != nil {
			return nil, fmt.Errorf("marshal citations: %w", err)
		}
	}

	m, err := s.querier.InsertMessage(ctx, InsertMessageParams{
		ID:        uuid.New(),
		ThreadID:  threadID,
		Role:      role,
		Content:   content,
		Citations: citationsJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("appending message: %w", err)
	}

	if err := s.querier.TouchThread(ctx, threadID); err != nil {
		s.logger.Warn("touching thread after append", "thread_id", threadID, "error", err)
	}
	return &m, nil
}

// Messages lists a thread's messages in chronological order, after an
// ownership check.
func (s *Store) Messages(ctx context.Context, threadID uuid.UUID, userID string, limit, offset int32) ([]Message, error) {
	if _, err := s.Thread(ctx, threadID, userID); err != nil {
		return nil, err
	}
	messages, err := s.querier.ListMessages(ctx, threadID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing messages for thread %s: %w", threadID, err)
	}
	return messages, nil
}

// History loads a thread's messages as conversation turns for the
// orchestrator. Persisted assistant messages are always final answers,
// so no turn is marked as a tool call.
func (s *Store) History(ctx context.Context, threadID uuid.UUID) ([]agent.Turn, error) {
	messages, err := s.querier.ListMessages(ctx, threadID, historyLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("loading history for thread %s: %w", threadID, err)
	}

	turns := make([]agent.Turn, 0, len(messages))
	for _, m := range messages {
		role := agent.RoleUser
		if m.Role == RoleAssistant {
			role = agent.RoleAssistant
		}
		turns = append(turns, agent.Turn{Role: role, Content: m.Content})
	}
	return turns, nil
}
