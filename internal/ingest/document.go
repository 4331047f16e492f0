package ingest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

type FileType string

const (
	TypeText     FileType = "text"
	TypeSQL      FileType = "sql"
	TypeJSON     FileType = "json"
	TypeMarkdown FileType = "markdown"
	TypeUnknown  FileType = "unknown"
)

// DetectType maps a file name's extension to its FileType.
func DetectType(filename string) FileType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		return TypeText
	case ".sql":
		return TypeSQL
	case ".json":
		return TypeJSON
	case ".md":
		return TypeMarkdown
	default:
		return TypeUnknown
	}
}

type Metadata struct {
	Filename    string    `json:"filename"`
	FileType    FileType  `json:"fileType"`
	Size        int64     `json:"sizeBytes"`
	ProcessedAt time.Time `json:"processedAt"`
}

// ProcessedDocument is the model-ready text of one uploaded file.
type ProcessedDocument struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

var (
	ErrTooLarge      = errors.New("file exceeds the upload size limit")
	ErrEmptyFilename = errors.New("file has no name")
)

// IngestionError is a failure to materialize, read or format one file.
type IngestionError struct {
	Filename string
	Op       string
	Err      error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingest %s: %s: %v", e.Filename, e.Op, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// CleanupError is a failed temp file removal. It is logged, never returned
// in place of the error that ended processing.
type CleanupError struct {
	Path string
	Err  error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("remove temp file %s: %v", e.Path, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }
