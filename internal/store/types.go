package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/recaplabs/recap/internal/stream"
)

// Message roles as persisted.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Thread is one conversation bound to a user and a folder scope.
type Thread struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	FolderID  string    `json:"folder_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one persisted turn half: a user message or the assistant's
// final answer with its citations. Intermediate tool-routing turns are
// never persisted.
type Message struct {
	ID        uuid.UUID         `json:"id"`
	ThreadID  uuid.UUID         `json:"thread_id"`
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	Citations []stream.Citation `json:"citations,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
