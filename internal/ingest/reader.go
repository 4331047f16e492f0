package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ReadFunc turns a materialized file into plain content.
type ReadFunc func(path string) (string, error)

func defaultReaders() map[FileType]ReadFunc {
	return map[FileType]ReadFunc{
		TypeText:     readText,
		TypeMarkdown: readText,
		TypeSQL:      readSQL,
		TypeJSON:     readJSON,
		TypeUnknown:  readText,
	}
}

func readText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// readSQL drops "--" comment lines and blank lines.
func readSQL(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	lines := strings.Split(string(b), "\n")
	kept := lines[:0]
	for _, line := range lines {
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, "--") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n")), nil
}

// readJSON re-indents the document with two spaces. Key order and number
// literals are preserved.
func readJSON(path string) (string, error) {
	raw, err := readText(path)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err != nil {
		return "", fmt.Errorf("malformed json: %w", err)
	}
	return buf.String(), nil
}

// FormatForLLM wraps content in the template downstream models are primed
// with.
func FormatForLLM(content string, fileType FileType) string {
	return "File Type: " + strings.ToUpper(string(fileType)) + "\n" +
		"Content:\n" +
		content + "\n\n" +
		"Note: This content has been processed and formatted for analysis. " +
		"Please analyze the content and provide relevant insights or answers based on this information."
}
