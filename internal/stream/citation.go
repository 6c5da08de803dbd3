// Package stream projects the orchestrator's event stream into the
// transport frames the client consumes: incremental answer text and a
// deduplicated, ordered citation list.
package stream

import (
	"path/filepath"
	"strconv"

	"github.com/recaplabs/recap/internal/index"
	"github.com/recaplabs/recap/internal/retrieval"
)

// Citation is the user-facing provenance record derived from one
// retrieved document. Lifetime is one streamed response.
type Citation struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Page       int    `json:"page"`
	TotalPages *int   `json:"total_pages"`
	FileSize   *int64 `json:"file_size"`
	Content    string `json:"content"`
}

// CitationFromDocument derives a citation from a retrieved document.
//
// Page derivation: a 0-based "page" metadata value maps to page+1; else
// a 1-based "page_number" is used as-is; else the page defaults to 1.
// Titles containing path separators are reduced to the final segment.
func CitationFromDocument(doc index.Document) Citation {
	id := doc.Metadata[index.MetaDocumentID]
	if id == "" {
		id = doc.ID
	}

	c := Citation{
		ID:      id,
		Title:   filepath.Base(retrieval.DisplayName(doc)),
		Page:    derivePage(doc.Metadata),
		Content: doc.Content,
	}

	if n, err := strconv.Atoi(doc.Metadata[index.MetaPageCount]); err == nil {
		c.TotalPages = &n
	}
	if n, err := strconv.ParseInt(doc.Metadata[index.MetaFileSize], 10, 64); err == nil {
		c.FileSize = &n
	}
	return c
}

func derivePage(metadata map[string]string) int {
	if page, err := strconv.Atoi(metadata[index.MetaPage]); err == nil {
		return page + 1
	}
	if page, err := strconv.Atoi(metadata[index.MetaPageNumber]); err == nil {
		return page
	}
	return 1
}

// Citations derives the citation list for one retrieval invocation:
// 1:1 with the result list in rank order, with exact (id, page)
// duplicates collapsed to their first occurrence. No re-sorting, no
// further truncation.
func Citations(inv *retrieval.Invocation) []Citation {
	if inv == nil || len(inv.Results) == 0 {
		return nil
	}

	type key struct {
		id   string
		page int
	}
	seen := make(map[key]struct{}, len(inv.Results))

	citations := make([]Citation, 0, len(inv.Results))
	for _, doc := range inv.Results {
		c := CitationFromDocument(doc)
		k := key{c.ID, c.Page}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		citations = append(citations, c)
	}
	return citations
}
