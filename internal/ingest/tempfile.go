package ingest

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// withTempFile copies src into a uniquely named file under dir, runs fn
// with its path and removes the file on every exit path.
func withTempFile(ctx context.Context, dir, filename string, src io.Reader, limit int64, fn func(path string, size int64) error) error {
	path := filepath.Join(dir, uuid.NewString()+"-"+sanitizeName(filename))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return &IngestionError{Filename: filename, Op: "create temp file", Err: err}
	}
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			slog.ErrorContext(ctx, "temp file cleanup failed", "err", &CleanupError{Path: path, Err: rmErr})
		}
	}()

	if limit > 0 {
		src = io.LimitReader(src, limit+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return &IngestionError{Filename: filename, Op: "write temp file", Err: err}
	}
	if limit > 0 && n > limit {
		return &IngestionError{Filename: filename, Op: "write temp file", Err: ErrTooLarge}
	}

	return fn(path, n)
}

// sanitizeName keeps the base name and replaces anything outside a
// conservative character set.
func sanitizeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" || base == ".." {
		return "upload"
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if len(s) > 128 {
		s = s[len(s)-128:]
	}
	return s
}
