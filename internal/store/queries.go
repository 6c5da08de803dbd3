package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgxpool.Pool the queries need. Satisfied by
// *pgxpool.Pool and by pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries is the pgx-backed Querier implementation.
type Queries struct {
	db DBTX
}

// NewQueries wraps a database handle.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// InsertThreadParams are the inputs for InsertThread.
type InsertThreadParams struct {
	ID       uuid.UUID
	UserID   string
	FolderID string
	Title    string
}

func (q *Queries) InsertThread(ctx context.Context, arg InsertThreadParams) (Thread, error) {
	const query = `
		INSERT INTO threads (id, user_id, folder_id, title)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, folder_id, title, created_at, updated_at`

	var t Thread
	err := q.db.QueryRow(ctx, query, arg.ID, arg.UserID, arg.FolderID, arg.Title).
		Scan(&t.ID, &t.UserID, &t.FolderID, &t.Title, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Thread{}, fmt.Errorf("insert thread: %w", err)
	}
	return t, nil
}

func (q *Queries) GetThread(ctx context.Context, id uuid.UUID) (Thread, error) {
	const query = `
		SELECT id, user_id, folder_id, title, created_at, updated_at
		FROM threads WHERE id = $1`

	var t Thread
	err := q.db.QueryRow(ctx, query, id).
		Scan(&t.ID, &t.UserID, &t.FolderID, &t.Title, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Thread{}, err
	}
	return t, nil
}

// ListThreads returns the user's threads, optionally narrowed to one
// folder. The folder predicate is part of the query so pagination
// applies to the filtered set.
func (q *Queries) ListThreads(ctx context.Context, userID, folderID string, limit, offset int32) ([]Thread, error) {
	const query = `
		SELECT id, user_id, folder_id, title, created_at, updated_at
		FROM threads
		WHERE user_id = $1 AND ($2 = '' OR folder_id = $2)
		ORDER BY updated_at DESC
		LIMIT $3 OFFSET $4`

	rows, err := q.db.Query(ctx, query, userID, folderID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var threads []Thread
	for rows.Next() {
		var t Thread
		if err := rows.Scan(&t.ID, &t.UserID, &t.FolderID, &t.Title, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

func (q *Queries) UpdateThreadTitle(ctx context.Context, id uuid.UUID, title string) error {
	const query = `UPDATE threads SET title = $2, updated_at = now() WHERE id = $1`

	tag, err := q.db.Exec(ctx, query, id, title)
	if err != nil {
		return fmt.Errorf("update thread title: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (q *Queries) TouchThread(ctx context.Context, id uuid.UUID) error {
	const query = `UPDATE threads SET updated_at = now() WHERE id = $1`

	if _, err := q.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("touch thread: %w", err)
	}
	return nil
}

func (q *Queries) DeleteThread(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM threads WHERE id = $1`

	tag, err := q.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// InsertMessageParams are the inputs for InsertMessage. Citations is
// pre-marshaled JSON; nil persists as SQL NULL.
type InsertMessageParams struct {
	ID        uuid.UUID
	ThreadID  uuid.UUID
	Role      string
	Content   string
	Citations []byte
}

func (q *Queries) InsertMessage(ctx context.Context, arg InsertMessageParams) (Message, error) {
	const query = `
		INSERT INTO messages (id, thread_id, role, content, citations)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, thread_id, role, content, citations, created_at`

	var m Message
	var citations []byte
	err := q.db.QueryRow(ctx, query, arg.ID, arg.ThreadID, arg.Role, arg.Content, arg.Citations).
		Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &citations, &m.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	if err := unmarshalCitations(citations, &m); err != nil {
		return Message{}, err
	}
	return m, nil
}

func (q *Queries) ListMessages(ctx context.Context, threadID uuid.UUID, limit, offset int32) ([]Message, error) {
	const query = `
		SELECT id, thread_id, role, content, citations, created_at
		FROM messages
		WHERE thread_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3`

	rows, err := q.db.Query(ctx, query, threadID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var citations []byte
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &citations, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if err := unmarshalCitations(citations, &m); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func unmarshalCitations(data []byte, m *Message) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &m.Citations); err != nil {
		return fmt.Errorf("unmarshal citations for message %s: %w", m.ID, err)
	}
	return nil
}
