// Package retrieval composes query reformulation and vector search into
// the single retrieval step the conversation flow calls per turn.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// ErrReformulation indicates the reformulation model call failed.
// Callers fall back to the raw query; retrieval is never blocked on it.
var ErrReformulation = errors.New("query reformulation failed")

// reformulateTimeout bounds the model call so a slow reformulation
// cannot stall the whole turn.
const reformulateTimeout = 5 * time.Second

// reformulatePrompt rewrites a conversational question into search terms.
// Meta-questions about the corpus itself are steered toward overview
// terms instead of literal keyword matching.
const reformulatePrompt = `Rewrite the user's question as a concise query for semantic search over a document collection.

Guidelines:
- Keep the key entities, topics, and constraints; drop filler and conversational phrasing.
- If the question asks about the collection itself (such as "what documents are here" or "what files do I have"), rewrite it toward overview terms like document titles, summaries, and main topics.
- Return ONLY the rewritten query. No quotes, no explanations.

Question: %s

Search query:`

// Reformulator rewrites raw user queries into search-optimized terms
// with a single non-streaming model call. No retries.
type Reformulator struct {
	modelName string
	logger    *slog.Logger

	// generate performs the model call. Swapped in tests.
	generate func(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error)
}

// NewReformulator creates a Reformulator using the given Genkit instance
// and provider-qualified model name.
func NewReformulator(g *genkit.Genkit, modelName string, logger *slog.Logger) *Reformulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reformulator{
		modelName: modelName,
		logger:    logger,
		generate: func(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error) {
			return genkit.Generate(ctx, g, opts...)
		},
	}
}

// Reformulate returns the search-optimized form of rawQuery.
// A model failure or an empty response is reported as ErrReformulation.
func (r *Reformulator) Reformulate(ctx context.Context, rawQuery string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, reformulateTimeout)
	defer cancel()

	opts := []ai.GenerateOption{
		ai.WithPrompt(reformulatePrompt, rawQuery),
	}
	if r.modelName != "" {
		opts = append(opts, ai.WithModelName(r.modelName))
	}

	resp, err := r.generate(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrReformulation, err)
	}

	query := strings.TrimSpace(resp.Text())
	if query == "" {
		return "", fmt.Errorf("%w: model returned empty text", ErrReformulation)
	}

	r.logger.Debug("reformulated query",
		"raw_length", len(rawQuery), "query_length", len(query))
	return query, nil
}
