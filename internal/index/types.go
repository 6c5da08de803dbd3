package index

// Metadata keys recognized across the retrieval pipeline.
// Values are always strings; numeric fields (pages, sizes) are stored as
// decimal strings and parsed where needed.
const (
	// MetaDocumentID identifies the source document a chunk belongs to.
	MetaDocumentID = "document_id"

	// MetaFolderID scopes a chunk to one folder. Every search is filtered
	// by this key; results must never cross folders.
	MetaFolderID = "folder_id"

	// MetaFilename is the display name of the source file.
	MetaFilename = "filename"

	// MetaSource is the fallback display name when filename is absent.
	MetaSource = "source"

	// MetaPage is a 0-based page index within the source document.
	MetaPage = "page"

	// MetaPageNumber is a 1-based page number, used by loaders that count
	// from one. MetaPage wins when both are present.
	MetaPageNumber = "page_number"

	// MetaPageCount is the total page count of the source document.
	MetaPageCount = "page_count"

	// MetaFileSize is the source file size in bytes.
	MetaFileSize = "file_size"
)

// Document is one indexed chunk of text with its metadata.
// Immutable once constructed.
type Document struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// mergeMetadata merges base and override; override wins on key collision.
// Neither input is mutated.
func mergeMetadata(base, override map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}
