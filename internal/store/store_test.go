package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/recaplabs/recap/internal/agent"
	"github.com/recaplabs/recap/internal/log"
	"github.com/recaplabs/recap/internal/stream"
)

// mockQuerier is an in-memory Querier recording calls.
type mockQuerier struct {
	threads  map[uuid.UUID]Thread
	messages map[uuid.UUID][]Message

	touched     []uuid.UUID
	insertErr   error
	lastMessage InsertMessageParams
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{
		threads:  make(map[uuid.UUID]Thread),
		messages: make(map[uuid.UUID][]Message),
	}
}

func (m *mockQuerier) InsertThread(_ context.Context, arg InsertThreadParams) (Thread, error) {
	t := Thread{ID: arg.ID, UserID: arg.UserID, FolderID: arg.FolderID, Title: arg.Title}
	m.threads[t.ID] = t
	return t, nil
}

func (m *mockQuerier) GetThread(_ context.Context, id uuid.UUID) (Thread, error) {
	t, ok := m.threads[id]
	if !ok {
		return Thread{}, pgx.ErrNoRows
	}
	return t, nil
}

func (m *mockQuerier) ListThreads(_ context.Context, userID, folderID string, _, _ int32) ([]Thread, error) {
	var out []Thread
	for _, t := range m.threads {
		if t.UserID != userID {
			continue
		}
		if folderID != "" && t.FolderID != folderID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *mockQuerier) UpdateThreadTitle(_ context.Context, id uuid.UUID, title string) error {
	t, ok := m.threads[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.Title = title
	m.threads[id] = t
	return nil
}

func (m *mockQuerier) TouchThread(_ context.Context, id uuid.UUID) error {
	m.touched = append(m.touched, id)
	return nil
}

func (m *mockQuerier) DeleteThread(_ context.Context, id uuid.UUID) error {
	if _, ok := m.threads[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.threads, id)
	delete(m.messages, id)
	return nil
}

func (m *mockQuerier) InsertMessage(_ context.Context, arg InsertMessageParams) (Message, error) {
	if m.insertErr != nil {
		return Message{}, m.insertErr
	}
	m.lastMessage = arg
	msg := Message{ID: arg.ID, ThreadID: arg.ThreadID, Role: arg.Role, Content: arg.Content}
	if err := unmarshalCitations(arg.Citations, &msg); err != nil {
		return Message{}, err
	}
	m.messages[arg.ThreadID] = append(m.messages[arg.ThreadID], msg)
	return msg, nil
}

func (m *mockQuerier) ListMessages(_ context.Context, threadID uuid.UUID, _, _ int32) ([]Message, error) {
	return m.messages[threadID], nil
}

func TestThreadOwnership(t *testing.T) {
	q := newMockQuerier()
	s := New(q, log.NewNop())

	created, err := s.CreateThread(context.Background(), "alice", "folder-a", "Q3 questions")
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}

	if _, err := s.Thread(context.Background(), created.ID, "alice"); err != nil {
		t.Errorf("owner lookup failed: %v", err)
	}
	if _, err := s.Thread(context.Background(), created.ID, "mallory"); !errors.Is(err, ErrForbidden) {
		t.Errorf("cross-user lookup = %v, want ErrForbidden", err)
	}
	if _, err := s.Thread(context.Background(), uuid.New(), "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing thread = %v, want ErrNotFound", err)
	}
}

func TestThreadsFolderFilter(t *testing.T) {
	q := newMockQuerier()
	s := New(q, log.NewNop())

	if _, err := s.CreateThread(context.Background(), "alice", "folder-a", "a"); err != nil {
		t.Fatalf("CreateThread: %v", err)
	}
	if _, err := s.CreateThread(context.Background(), "alice", "folder-b", "b"); err != nil {
		t.Fatalf("CreateThread: %v", err)
	}

	threads, err := s.Threads(context.Background(), "alice", "folder-a", 50, 0)
	if err != nil {
		t.Fatalf("Threads: %v", err)
	}
	if len(threads) != 1 || threads[0].FolderID != "folder-a" {
		t.Errorf("filtered threads = %+v", threads)
	}

	all, err := s.Threads(context.Background(), "alice", "", 50, 0)
	if err != nil {
		t.Fatalf("Threads: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("unfiltered listing has %d threads, want 2", len(all))
	}
}

func TestDeleteThreadChecksOwnership(t *testing.T) {
	q := newMockQuerier()
	s := New(q, log.NewNop())

	created, _ := s.CreateThread(context.Background(), "alice", "f", "t")

	if err := s.DeleteThread(context.Background(), created.ID, "mallory"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("DeleteThread as non-owner = %v, want ErrForbidden", err)
	}
	if err := s.DeleteThread(context.Background(), created.ID, "alice"); err != nil {
		t.Fatalf("DeleteThread as owner: %v", err)
	}
	if _, ok := q.threads[created.ID]; ok {
		t.Error("thread still present after delete")
	}
}

func TestAppendMessageWithCitations(t *testing.T) {
	q := newMockQuerier()
	s := New(q, log.NewNop())

	created, _ := s.CreateThread(context.Background(), "alice", "f", "t")
	citations := []stream.Citation{{ID: "doc1", Title: "q3.pdf", Page: 5, Content: "Revenue grew."}}

	msg, err := s.AppendMessage(context.Background(), created.ID, RoleAssistant, "Revenue grew 12%.", citations)
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	if len(q.lastMessage.Citations) == 0 {
		t.Error("citations not marshaled for persistence")
	}
	if len(msg.Citations) != 1 || msg.Citations[0].ID != "doc1" {
		t.Errorf("citations not round-tripped: %+v", msg.Citations)
	}
	if len(q.touched) != 1 || q.touched[0] != created.ID {
		t.Errorf("thread not touched after append: %v", q.touched)
	}
}

func TestAppendMessageWithoutCitations(t *testing.T) {
	q := newMockQuerier()
	s := New(q, log.NewNop())

	created, _ := s.CreateThread(context.Background(), "alice", "f", "t")

	if _, err := s.AppendMessage(context.Background(), created.ID, RoleUser, "hello", nil); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if q.lastMessage.Citations != nil {
		t.Errorf("user message persisted citations: %s", q.lastMessage.Citations)
	}
}

func TestHistoryConvertsRoles(t *testing.T) {
	q := newMockQuerier()
	s := New(q, log.NewNop())

	created, _ := s.CreateThread(context.Background(), "alice", "f", "t")
	if _, err := s.AppendMessage(context.Background(), created.ID, RoleUser, "what about revenue?", nil); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if _, err := s.AppendMessage(context.Background(), created.ID, RoleAssistant, "It grew 12%.", nil); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	turns, err := s.History(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}
	if turns[0].Role != agent.RoleUser || turns[1].Role != agent.RoleAssistant {
		t.Errorf("roles = %v, %v", turns[0].Role, turns[1].Role)
	}
	if turns[1].HadToolCall {
		t.Error("persisted assistant turns are final answers, not tool calls")
	}
}

func TestMessagesChecksOwnership(t *testing.T) {
	q := newMockQuerier()
	s := New(q, log.NewNop())

	created, _ := s.CreateThread(context.Background(), "alice", "f", "t")

	if _, err := s.Messages(context.Background(), created.ID, "mallory", 50, 0); !errors.Is(err, ErrForbidden) {
		t.Errorf("Messages as non-owner = %v, want ErrForbidden", err)
	}
}
