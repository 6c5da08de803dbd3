package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/recaplabs/recap/internal/index"
)

// Inserter adds documents to the vector index.
type Inserter interface {
	Insert(ctx context.Context, documents []index.Document, overrides []map[string]string) ([]string, error)
}

// Config tunes the chunker. Zero or negative values select the defaults.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
}

// Pipeline turns source files into indexed, folder-scoped chunks.
type Pipeline struct {
	inserter     Inserter
	chunkSize    int
	chunkOverlap int
	logger       *slog.Logger
}

// NewPipeline creates a Pipeline inserting into the given index.
func NewPipeline(inserter Inserter, cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = DefaultChunkOverlap
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		inserter:     inserter,
		chunkSize:    cfg.ChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
		logger:       logger,
	}
}

// IngestFile loads, chunks, and indexes one file under folderID.
// Returns the number of chunks written.
func (p *Pipeline) IngestFile(ctx context.Context, path, folderID string) (int, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}

	pages, err := loadFile(path)
	if err != nil {
		return 0, err
	}

	documentID := uuid.NewString()
	filename := filepath.Base(path)
	pageCount := strconv.Itoa(len(pages))
	fileSize := strconv.FormatInt(stat.Size(), 10)

	var docs []index.Document
	for _, page := range pages {
		for _, chunk := range splitText(page.Text, p.chunkSize, p.chunkOverlap) {
			docs = append(docs, index.Document{
				Content: chunk,
				Metadata: map[string]string{
					index.MetaDocumentID: documentID,
					index.MetaFilename:   filename,
					index.MetaPage:       strconv.Itoa(page.Index),
					index.MetaPageCount:  pageCount,
					index.MetaFileSize:   fileSize,
				},
			})
		}
	}
	if len(docs) == 0 {
		p.logger.Warn("no extractable text", "path", path)
		return 0, nil
	}

	overrides := make([]map[string]string, len(docs))
	for i := range overrides {
		overrides[i] = map[string]string{index.MetaFolderID: folderID}
	}

	ids, err := p.inserter.Insert(ctx, docs, overrides)
	if err != nil {
		return 0, fmt.Errorf("indexing %s: %w", path, err)
	}
	if len(ids) != len(docs) {
		return len(ids), fmt.Errorf("indexed %d of %d chunks for %s", len(ids), len(docs), path)
	}

	p.logger.Info("ingested file",
		"path", path, "folder_id", folderID, "pages", len(pages), "chunks", len(ids))
	return len(ids), nil
}

// IngestDir walks dir and ingests every supported file under folderID.
// Returns the total number of chunks written.
func (p *Pipeline) IngestDir(ctx context.Context, dir, folderID string) (int, error) {
	total := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !supportedExt(path) {
			return nil
		}
		n, err := p.IngestFile(ctx, path, folderID)
		total += n
		return err
	})
	if err != nil {
		return total, fmt.Errorf("walking %s: %w", dir, err)
	}
	return total, nil
}
