package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

const ProviderOllama = "ollama"

type OllamaConfig struct {
	BaseURL    string
	HTTPClient *http.Client
}

// OllamaProvider talks to a local Ollama runtime, which streams one JSON
// object per line.
type OllamaProvider struct {
	baseURL string
	client  *http.Client
}

func NewOllamaProvider(cfg OllamaConfig) *OllamaProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	client := cfg.HTTPClient
	if client == nil {
		// no global timeout; ctx controls it
		client = &http.Client{}
	}
	return &OllamaProvider{baseURL: baseURL, client: client}
}

// OllamaFactory needs no caller secrets: the runtime is operator-hosted.
func OllamaFactory(cfg OllamaConfig) ProviderFactory {
	return func(ctx context.Context, creds Credentials) (Provider, error) {
		return NewOllamaProvider(cfg), nil
	}
}

func (p *OllamaProvider) Name() string { return ProviderOllama }

type ollamaChatReq struct {
	Model    string        `json:"model"`
	Messages []ollamaMsg   `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaMsg struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int64   `json:"num_predict,omitempty"`
}

func buildOllamaRequest(req Request) ollamaChatReq {
	out := ollamaChatReq{
		Model:  req.Model,
		Stream: true,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  int64(req.ContextLength),
		},
	}
	if req.System != "" {
		out.Messages = append(out.Messages, ollamaMsg{Role: string(RoleSystem), Content: req.System})
	}
	for _, m := range req.Messages {
		msg := ollamaMsg{Role: string(m.Role), Content: m.Text()}
		for _, part := range m.Parts {
			if img, ok := part.(ImagePart); ok {
				msg.Images = append(msg.Images, img.Data)
			}
		}
		out.Messages = append(out.Messages, msg)
	}
	return out
}

func (p *OllamaProvider) Stream(ctx context.Context, req Request) (*Stream, error) {
	b, err := json.Marshal(buildOllamaRequest(req))
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/chat", p.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	slog.DebugContext(ctx, "ollama stream request", "model", req.Model, "messages", len(req.Messages))
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, newProviderError("Ollama", 0, err.Error(), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, newProviderError("Ollama", resp.StatusCode, gjson.GetBytes(body, "error").String(), nil)
	}
	return NewStream(transcodeLines(ctx, resp.Body), resp.Body.Close), nil
}

// transcodeLines reads newline-delimited JSON objects. Lines that are not
// JSON are logged and skipped; an "error" field ends the stream.
func transcodeLines(ctx context.Context, body io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		sc := bufio.NewScanner(body)
		// Increase scanner buffer for long JSON lines.
		sc.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

		for sc.Scan() {
			line := sc.Bytes()
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			if !gjson.ValidBytes(line) {
				slog.WarnContext(ctx, "skipping stream chunk",
					"err", &StreamDecodeError{Provider: ProviderOllama, Chunk: line, Err: errMalformedChunk})
				continue
			}
			obj := gjson.ParseBytes(line)
			if msg := obj.Get("error").String(); msg != "" {
				yield("", newProviderError("Ollama", 0, msg, nil))
				return
			}
			if text := obj.Get("message.content").String(); text != "" {
				if !yield(text, nil) {
					return
				}
			}
			if obj.Get("done").Bool() {
				return
			}
		}
		if err := sc.Err(); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			yield("", err)
		}
	}
}
