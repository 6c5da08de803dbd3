// Package index owns the embedding-backed similarity index.
//
// The index is a process-wide shared resource: one Index instance is
// constructed at startup and handed to every request task. The expensive
// load of the persistent store is deferred until first use and performed
// at most once, no matter how many requests race on it.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
)

// collectionName is the single chromem-go collection holding all chunks.
// Folder scoping is done with metadata filters, not per-folder collections.
const collectionName = "documents"

// Index provides lazy-initialized, folder-scoped vector search over a
// persistent chromem-go store.
//
// Index is safe for concurrent use by multiple goroutines. After the
// first successful EnsureReady, Search and Insert rely entirely on the
// underlying store's own concurrency guarantees.
type Index struct {
	dir    string
	embed  chromem.EmbeddingFunc
	logger *slog.Logger

	// open performs the expensive store load. Swapped in tests.
	open func() (*chromem.Collection, error)

	// readyMu guards the cheap "is it built" read path; initMu
	// serializes the expensive load itself so concurrent first
	// callers wait for one load instead of each starting their own.
	readyMu sync.RWMutex
	initMu  sync.Mutex
	coll    *chromem.Collection
}

// New creates an Index persisting under dir. The store is not opened
// until the first EnsureReady, Insert, or Search call.
func New(dir string, embed chromem.EmbeddingFunc, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}

	idx := &Index{
		dir:    dir,
		embed:  embed,
		logger: logger,
	}
	idx.open = idx.openCollection
	return idx
}

// EnsureReady returns the ready collection handle, performing the
// one-time store load if needed. Concurrent callers during
// initialization wait for the same load; all callers observe the same
// handle for the process lifetime.
//
// A failed load is reported as ErrInitialization and is not cached:
// a later call may retry.
func (x *Index) EnsureReady(ctx context.Context) (*chromem.Collection, error) {
	x.readyMu.RLock()
	coll := x.coll
	x.readyMu.RUnlock()
	if coll != nil {
		return coll, nil
	}

	x.initMu.Lock()
	defer x.initMu.Unlock()

	// Re-check: another caller may have finished the load while we
	// waited for initMu.
	x.readyMu.RLock()
	coll = x.coll
	x.readyMu.RUnlock()
	if coll != nil {
		return coll, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("index load canceled: %w", err)
	}

	x.logger.Info("loading vector index", "dir", x.dir)
	coll, err := x.open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInitialization, err)
	}

	x.readyMu.Lock()
	x.coll = coll
	x.readyMu.Unlock()

	x.logger.Info("vector index ready", "documents", coll.Count())
	return coll, nil
}

// openCollection opens the persistent store and its single collection.
func (x *Index) openCollection() (*chromem.Collection, error) {
	db, err := chromem.NewPersistentDB(x.dir, true)
	if err != nil {
		return nil, fmt.Errorf("opening store at %s: %w", x.dir, err)
	}

	coll, err := db.GetOrCreateCollection(collectionName, nil, x.embed)
	if err != nil {
		return nil, fmt.Errorf("opening collection %q: %w", collectionName, err)
	}
	return coll, nil
}

// Insert adds documents to the index with per-document metadata
// overrides. len(documents) must equal len(overrides); a mismatch fails
// with ErrArityMismatch before any write. Each document's final metadata
// is the merge of its own metadata with the override (override wins).
//
// Returns one id per input document, in input order. Documents without
// an ID get a generated UUID. On write failure no ids are returned; the
// caller must treat a short result as a failed batch.
func (x *Index) Insert(ctx context.Context, documents []Document, overrides []map[string]string) ([]string, error) {
	if len(documents) != len(overrides) {
		return nil, fmt.Errorf("%w: %d documents, %d overrides", ErrArityMismatch, len(documents), len(overrides))
	}
	if len(documents) == 0 {
		return nil, nil
	}

	coll, err := x.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(documents))
	batch := make([]chromem.Document, 0, len(documents))
	for i, doc := range documents {
		id := doc.ID
		if id == "" {
			id = uuid.NewString()
		}
		ids = append(ids, id)
		batch = append(batch, chromem.Document{
			ID:       id,
			Content:  doc.Content,
			Metadata: mergeMetadata(doc.Metadata, overrides[i]),
		})
	}

	if err := coll.AddDocuments(ctx, batch, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("adding %d documents: %w", len(batch), err)
	}

	x.logger.Debug("inserted documents", "count", len(ids))
	return ids, nil
}

// Search returns up to topK documents most similar to query, restricted
// to documents whose metadata matches every key/value pair in filter.
// Results are ordered by descending similarity.
//
// Search failures degrade to an empty result set and are only logged;
// the sole hard error is ErrInitialization from a failed store load.
func (x *Index) Search(ctx context.Context, query string, filter map[string]string, topK int) ([]Document, error) {
	coll, err := x.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults larger than the collection size.
	count := coll.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}
	if topK <= 0 {
		return nil, nil
	}

	results, err := coll.Query(ctx, query, topK, filter, nil)
	if err != nil {
		x.logger.Warn("similarity search failed, returning no results",
			"error", err, "top_k", topK)
		return nil, nil
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		docs = append(docs, Document{
			ID:       r.ID,
			Content:  r.Content,
			Metadata: r.Metadata,
		})
	}

	x.logger.Debug("search complete", "results", len(docs), "top_k", topK)
	return docs, nil
}
