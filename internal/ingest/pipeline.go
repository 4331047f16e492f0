package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Upload is one file received from a client.
type Upload struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

type Config struct {
	TempDir     string
	MaxBytes    int64
	Concurrency int
}

// Pipeline materializes uploads to temp files, reads them by type and
// formats them for a model prompt.
type Pipeline struct {
	dir         string
	maxBytes    int64
	concurrency int
	readers     map[FileType]ReadFunc
	now         func() time.Time
}

func NewPipeline(cfg Config) *Pipeline {
	dir := cfg.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	n := cfg.Concurrency
	if n <= 0 {
		n = 4
	}
	return &Pipeline{
		dir:         dir,
		maxBytes:    cfg.MaxBytes,
		concurrency: n,
		readers:     defaultReaders(),
		now:         time.Now,
	}
}

// Process runs a single upload through the pipeline. The temp file is gone
// when Process returns, whatever the outcome.
func (p *Pipeline) Process(ctx context.Context, u Upload) (*ProcessedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(u.Filename) == "" {
		return nil, &IngestionError{Filename: u.Filename, Op: "validate", Err: ErrEmptyFilename}
	}

	rc, err := u.Open()
	if err != nil {
		return nil, &IngestionError{Filename: u.Filename, Op: "open upload", Err: err}
	}
	defer rc.Close()

	fileType := DetectType(u.Filename)
	read, ok := p.readers[fileType]
	if !ok {
		read = readText
	}

	var doc *ProcessedDocument
	err = withTempFile(ctx, p.dir, u.Filename, rc, p.maxBytes, func(path string, size int64) error {
		content, err := read(path)
		if err != nil {
			return &IngestionError{Filename: u.Filename, Op: "read " + string(fileType), Err: err}
		}
		doc = &ProcessedDocument{
			Content: FormatForLLM(content, fileType),
			Metadata: Metadata{
				Filename:    u.Filename,
				FileType:    fileType,
				Size:        size,
				ProcessedAt: p.now().UTC(),
			},
		}
		return nil
	})
	if err != nil {
		slog.WarnContext(ctx, "document ingestion failed", "filename", u.Filename, "err", err)
		return nil, err
	}
	slog.DebugContext(ctx, "document processed", "filename", u.Filename, "type", fileType, "size", doc.Metadata.Size)
	return doc, nil
}

// ProcessBatch processes uploads concurrently and returns documents in
// input order. The first failure cancels the rest of the batch.
func (p *Pipeline) ProcessBatch(ctx context.Context, uploads []Upload) ([]ProcessedDocument, error) {
	out := make([]ProcessedDocument, len(uploads))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, u := range uploads {
		g.Go(func() error {
			doc, err := p.Process(gctx, u)
			if err != nil {
				return err
			}
			out[i] = *doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
