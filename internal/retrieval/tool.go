package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/recaplabs/recap/internal/index"
)

// unknownSource is the display name for documents with no filename or
// source metadata.
const unknownSource = "Unknown Source"

// DefaultTopK is the number of passages retrieved per turn when the
// caller does not configure one.
const DefaultTopK = 10

// QueryRewriter rewrites a raw user query into search terms.
type QueryRewriter interface {
	Reformulate(ctx context.Context, rawQuery string) (string, error)
}

// Searcher performs filtered top-k similarity search.
type Searcher interface {
	Search(ctx context.Context, query string, filter map[string]string, topK int) ([]index.Document, error)
}

// Invocation records one retrieval step performed during a turn.
// Immutable after creation. SerializedText feeds the generation prompt;
// Results feeds citation derivation. Both come from the same search —
// never re-queried — so citations always match the grounding text.
type Invocation struct {
	Query             string
	ReformulatedQuery string
	Results           []index.Document
	SerializedText    string
}

// Tool composes reformulation and vector search into one callable step.
type Tool struct {
	rewriter QueryRewriter
	searcher Searcher
	topK     int
	logger   *slog.Logger
}

// NewTool creates a retrieval Tool. topK <= 0 selects DefaultTopK.
func NewTool(rewriter QueryRewriter, searcher Searcher, topK int, logger *slog.Logger) *Tool {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tool{
		rewriter: rewriter,
		searcher: searcher,
		topK:     topK,
		logger:   logger,
	}
}

// Retrieve runs reformulate → search → serialize for one query, scoped
// to folderID. A reformulation failure falls back to the raw query. An
// empty result set is not an error; only a hard search failure (the
// index could not initialize) is returned.
func (t *Tool) Retrieve(ctx context.Context, rawQuery, folderID string) (*Invocation, error) {
	searchQuery, err := t.rewriter.Reformulate(ctx, rawQuery)
	if err != nil {
		t.logger.Warn("reformulation failed, using raw query", "error", err)
		searchQuery = rawQuery
	}

	filter := map[string]string{index.MetaFolderID: folderID}
	docs, err := t.searcher.Search(ctx, searchQuery, filter, t.topK)
	if err != nil {
		return nil, fmt.Errorf("searching folder %s: %w", folderID, err)
	}

	t.logger.Debug("retrieval complete",
		"folder_id", folderID, "results", len(docs))

	return &Invocation{
		Query:             rawQuery,
		ReformulatedQuery: searchQuery,
		Results:           docs,
		SerializedText:    Serialize(docs),
	}, nil
}

// DisplayName returns the user-facing name of a document's source file:
// filename if present, else source, else "Unknown Source".
func DisplayName(doc index.Document) string {
	if name := doc.Metadata[index.MetaFilename]; name != "" {
		return name
	}
	if name := doc.Metadata[index.MetaSource]; name != "" {
		return name
	}
	return unknownSource
}

// Serialize renders documents for prompt injection. Each document gets
// a "> Document {rank} {name}" header followed by its content; entries
// are separated by blank lines. Ranks are 1-based in result order.
func Serialize(docs []index.Document) string {
	if len(docs) == 0 {
		return ""
	}

	var b strings.Builder
	for i, doc := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "> Document %d %s\n%s", i+1, DisplayName(doc), doc.Content)
	}
	return b.String()
}
