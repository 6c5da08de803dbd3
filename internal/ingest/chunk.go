// Package ingest loads source files, splits them into overlapping
// chunks, and inserts them into the vector index under a folder scope.
package ingest

import "strings"

// Default chunking parameters, in bytes of UTF-8 text.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// splitText splits content into chunks of at most size bytes with the
// given overlap between consecutive chunks. Boundaries prefer a space,
// newline, or sentence end within the last tenth of the chunk so words
// are not cut mid-way. Whitespace-only input yields no chunks.
func splitText(content string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if len(content) <= size {
		return []string{content}
	}

	var chunks []string
	start := 0
	for start < len(content) {
		end := min(start+size, len(content))

		if end < len(content) {
			lookBack := min(size/10, end-start)
			for i := end - 1; i >= end-lookBack && i > start; i-- {
				if content[i] == ' ' || content[i] == '\n' || content[i] == '.' {
					end = i + 1
					break
				}
			}
		}

		if chunk := strings.TrimSpace(content[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(content) {
			break
		}

		// Overlap counts back from the actual cut point; advancing by a
		// fixed stride would skip the bytes the boundary search gave up.
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}
