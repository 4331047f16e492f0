package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func stringUpload(name, body string) Upload {
	return Upload{
		Filename: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

func newTestPipeline(t *testing.T) (*Pipeline, string) {
	t.Helper()
	dir := t.TempDir()
	p := NewPipeline(Config{TempDir: dir, MaxBytes: 1 << 20, Concurrency: 2})
	p.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return p, dir
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func contentOf(t *testing.T, doc *ProcessedDocument) string {
	t.Helper()
	const head = "Content:\n"
	const tail = "\n\nNote: This content has been processed"
	s := doc.Content
	i := strings.Index(s, head)
	j := strings.LastIndex(s, tail)
	if i < 0 || j < 0 {
		t.Fatalf("unexpected document layout: %q", s)
	}
	return s[i+len(head) : j]
}

func TestDetectType(t *testing.T) {
	cases := map[string]FileType{
		"a.txt":      TypeText,
		"b.SQL":      TypeSQL,
		"c.json":     TypeJSON,
		"d.md":       TypeMarkdown,
		"e.csv":      TypeUnknown,
		"no-ext":     TypeUnknown,
		"dir/f.Json": TypeJSON,
	}
	for name, want := range cases {
		if got := DetectType(name); got != want {
			t.Errorf("DetectType(%q)=%q want %q", name, got, want)
		}
	}
}

func TestProcess_SQLStripsComments(t *testing.T) {
	p, dir := newTestPipeline(t)

	doc, err := p.Process(context.Background(), stringUpload("q.sql", "-- header\n\nSELECT 1;\n  -- indented\nSELECT 2;\n"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if got := contentOf(t, doc); got != "SELECT 1;\nSELECT 2;" {
		t.Fatalf("sql content=%q", got)
	}
	if !strings.HasPrefix(doc.Content, "File Type: SQL\n") {
		t.Fatalf("missing type header: %q", doc.Content)
	}
	if doc.Metadata.FileType != TypeSQL || doc.Metadata.Filename != "q.sql" {
		t.Fatalf("metadata=%+v", doc.Metadata)
	}
	assertDirEmpty(t, dir)
}

func TestProcess_JSONRoundTrips(t *testing.T) {
	p, dir := newTestPipeline(t)
	in := `{"b":[1,2,{"c":null}],"a":"x<y"}`

	doc, err := p.Process(context.Background(), stringUpload("data.json", in))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	body := contentOf(t, doc)
	if !strings.Contains(body, "\n  \"b\": [") {
		t.Fatalf("expected two-space indentation, got %q", body)
	}

	var want, got any
	_ = json.Unmarshal([]byte(in), &want)
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("embedded json does not parse: %v", err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("round trip mismatch: %v vs %v", want, got)
	}
	if doc.Metadata.Size != int64(len(in)) {
		t.Fatalf("size=%d", doc.Metadata.Size)
	}
	assertDirEmpty(t, dir)
}

func TestProcess_MalformedJSONCleansUp(t *testing.T) {
	p, dir := newTestPipeline(t)

	_, err := p.Process(context.Background(), stringUpload("bad.json", `{"a":`))
	var ie *IngestionError
	if !errors.As(err, &ie) {
		t.Fatalf("expected IngestionError, got %v", err)
	}
	if ie.Filename != "bad.json" {
		t.Fatalf("filename=%q", ie.Filename)
	}
	assertDirEmpty(t, dir)
}

func TestProcess_ReadFailureCleansUp(t *testing.T) {
	p, dir := newTestPipeline(t)
	boom := errors.New("disk went away")
	var seen string
	p.readers[TypeText] = func(path string) (string, error) {
		seen = path
		if _, err := os.Stat(path); err != nil {
			t.Errorf("temp file not materialized: %v", err)
		}
		return "", boom
	}

	_, err := p.Process(context.Background(), stringUpload("notes.txt", "hello"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected reader error, got %v", err)
	}
	if !strings.HasSuffix(seen, "-notes.txt") {
		t.Fatalf("temp name %q lacks the original base name", seen)
	}
	assertDirEmpty(t, dir)
}

func TestProcess_CleanupFailureKeepsOriginalError(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	p, _ := newTestPipeline(t)
	boom := errors.New("reader exploded")
	p.readers[TypeText] = func(path string) (string, error) {
		// Swap the file for a non-empty directory so the final remove fails.
		if err := os.Remove(path); err != nil {
			t.Fatalf("remove: %v", err)
		}
		if err := os.Mkdir(path, 0o700); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(path, "pin"), []byte("x"), 0o600); err != nil {
			t.Fatalf("pin: %v", err)
		}
		return "", boom
	}

	_, err := p.Process(context.Background(), stringUpload("notes.txt", "hello"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected reader error, got %v", err)
	}
	var ce *CleanupError
	if errors.As(err, &ce) {
		t.Fatalf("cleanup error masked the original: %v", err)
	}
	if !strings.Contains(logs.String(), "temp file cleanup failed") {
		t.Fatalf("cleanup failure not logged: %s", logs.String())
	}
}

func TestProcess_UnknownTypeReadAsText(t *testing.T) {
	p, _ := newTestPipeline(t)

	doc, err := p.Process(context.Background(), stringUpload("table.csv", "  a,b\n1,2  \n"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if doc.Metadata.FileType != TypeUnknown {
		t.Fatalf("type=%q", doc.Metadata.FileType)
	}
	if !strings.HasPrefix(doc.Content, "File Type: UNKNOWN\n") || contentOf(t, doc) != "a,b\n1,2" {
		t.Fatalf("content=%q", doc.Content)
	}
}

func TestProcess_Idempotent(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	a, err := p.Process(ctx, stringUpload("readme.md", "# Title\n\nbody\n"))
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	b, err := p.Process(ctx, stringUpload("readme.md", "# Title\n\nbody\n"))
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if a.Content != b.Content || a.Metadata.FileType != b.Metadata.FileType {
		t.Fatalf("not idempotent: %q vs %q", a.Content, b.Content)
	}
}

func TestProcess_TooLarge(t *testing.T) {
	dir := t.TempDir()
	p := NewPipeline(Config{TempDir: dir, MaxBytes: 4})

	_, err := p.Process(context.Background(), stringUpload("big.txt", "12345"))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	assertDirEmpty(t, dir)
}

func TestProcessBatch_KeepsInputOrder(t *testing.T) {
	p, dir := newTestPipeline(t)
	uploads := []Upload{
		stringUpload("1.txt", "one"),
		stringUpload("2.sql", "two"),
		stringUpload("3.md", "three"),
		stringUpload("4.txt", "four"),
	}

	docs, err := p.ProcessBatch(context.Background(), uploads)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(docs) != len(uploads) {
		t.Fatalf("got %d docs", len(docs))
	}
	for i, d := range docs {
		if d.Metadata.Filename != uploads[i].Filename {
			t.Fatalf("doc %d is %q", i, d.Metadata.Filename)
		}
	}
	assertDirEmpty(t, dir)
}

func TestProcessBatch_FailureAbortsAndCleansUp(t *testing.T) {
	p, dir := newTestPipeline(t)

	_, err := p.ProcessBatch(context.Background(), []Upload{
		stringUpload("ok.txt", "fine"),
		stringUpload("bad.json", "not json"),
	})
	if err == nil {
		t.Fatal("expected batch failure")
	}
	assertDirEmpty(t, dir)
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"report.txt":         "report.txt",
		"../../etc/passwd":   "passwd",
		`C:\Users\me\a b.md`: "a_b.md",
		"..":                 "upload",
	}
	for in, want := range cases {
		if got := sanitizeName(in); got != want {
			t.Errorf("sanitizeName(%q)=%q want %q", in, got, want)
		}
	}
}
