// Package server exposes the chat service over HTTP: a streaming chat
// endpoint, thread CRUD, and health probes. Identity arrives resolved
// from the authenticating proxy; the server enforces ownership but does
// not authenticate.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/recaplabs/recap/internal/agent"
	"github.com/recaplabs/recap/internal/store"
	"github.com/recaplabs/recap/internal/stream"
)

// defaultChatRatePerMinute applies when Config.ChatRatePerMinute is unset.
const defaultChatRatePerMinute = 20

// ThreadStore persists threads and messages. Satisfied by *store.Store.
type ThreadStore interface {
	CreateThread(ctx context.Context, userID, folderID, title string) (*store.Thread, error)
	Thread(ctx context.Context, id uuid.UUID, userID string) (*store.Thread, error)
	Threads(ctx context.Context, userID, folderID string, limit, offset int32) ([]store.Thread, error)
	RenameThread(ctx context.Context, id uuid.UUID, userID, title string) error
	DeleteThread(ctx context.Context, id uuid.UUID, userID string) error
	AppendMessage(ctx context.Context, threadID uuid.UUID, role, content string, citations []stream.Citation) (*store.Message, error)
	Messages(ctx context.Context, threadID uuid.UUID, userID string, limit, offset int32) ([]store.Message, error)
	History(ctx context.Context, threadID uuid.UUID) ([]agent.Turn, error)
}

// TurnRunner executes one conversation turn. Satisfied by
// *agent.Orchestrator.
type TurnRunner interface {
	Run(ctx context.Context, history []agent.Turn, userMessage, folderID string, emit agent.EmitFunc) (*agent.Result, error)
}

// TitleGenerator names a thread from its first user message.
// Satisfied by *agent.Titler.
type TitleGenerator interface {
	Title(ctx context.Context, userMessage string) string
}

// Pinger reports storage reachability for the readiness probe.
// Satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config contains configuration for creating the HTTP server.
type Config struct {
	Logger            *slog.Logger
	Store             ThreadStore    // Required
	Runner            TurnRunner     // Required
	Titler            TitleGenerator // Optional: nil keeps thread titles as created
	Pool              Pinger         // Optional: nil skips the storage check in /ready
	CORSOrigins       []string    // Allowed origins for CORS
	TrustProxy        bool        // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	ChatRatePerMinute int         // Chat requests per minute per client (0 = default 20)
}

// Server is the JSON/SSE HTTP server.
type Server struct {
	mux *http.ServeMux
}

// New creates a server with all routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("thread store is required")
	}
	if cfg.Runner == nil {
		return nil, errors.New("turn runner is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ch := &chatHandler{
		store:  cfg.Store,
		runner: cfg.Runner,
		titler: cfg.Titler,
		logger: logger,
	}
	th := &threadHandler{
		store:  cfg.Store,
		logger: logger,
	}

	// Chat turns are rate limited per client; thread CRUD is not.
	perMinute := cfg.ChatRatePerMinute
	if perMinute <= 0 {
		perMinute = defaultChatRatePerMinute
	}
	rl := newRateLimiter(float64(perMinute)/60.0, perMinute)
	limited := rateLimitMiddleware(rl, cfg.TrustProxy, logger)

	mux := http.NewServeMux()

	// Chat
	mux.Handle("POST /api/v1/chat", limited(http.HandlerFunc(ch.chat)))

	// Thread CRUD
	mux.HandleFunc("POST /api/v1/threads", th.create)
	mux.HandleFunc("GET /api/v1/threads", th.list)
	mux.HandleFunc("GET /api/v1/threads/{id}", th.get)
	mux.HandleFunc("GET /api/v1/threads/{id}/messages", th.messages)
	mux.HandleFunc("PATCH /api/v1/threads/{id}", th.rename)
	mux.HandleFunc("DELETE /api/v1/threads/{id}", th.delete)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → Identity → Routes
	// RequestID must be before Logging so request_id is available in log
	// attributes. CORS must be before Identity so preflight OPTIONS does
	// not require the identity headers.
	var handler http.Handler = mux
	handler = identityMiddleware(logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// Top-level mux separates health probes from the middleware stack so
	// probes need no identity headers.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
