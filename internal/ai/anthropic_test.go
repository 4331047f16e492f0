package ai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

func writeSSE(w http.ResponseWriter, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func anthropicServer(t *testing.T, handler func(w http.ResponseWriter, body string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		handler(w, string(b))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnthropicProvider_StreamsTextDeltas(t *testing.T) {
	var sentBody string
	srv := anthropicServer(t, func(w http.ResponseWriter, body string) {
		sentBody = body
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		writeSSE(w, "message_start",
			`{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"claude-3-haiku-20240307","stop_reason":null,"usage":{"input_tokens":5,"output_tokens":0}}}`)
		writeSSE(w, "content_block_start",
			`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`)
		writeSSE(w, "content_block_delta",
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`)
		writeSSE(w, "content_block_delta",
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" world"}}`)
		writeSSE(w, "content_block_stop", `{"type":"content_block_stop","index":0}`)
		writeSSE(w, "message_delta",
			`{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":2}}`)
		writeSSE(w, "message_stop", `{"type":"message_stop"}`)
	})

	p := NewAnthropicProvider("test-key", AnthropicConfig{BaseURL: srv.URL})
	s, err := p.Stream(context.Background(), Request{
		Model:       "claude-3-haiku-20240307",
		System:      "be terse",
		Temperature: 0.2,
		Messages: []ChatMessage{
			{Role: RoleUser, Parts: []ContentPart{
				TextPart{Text: "describe"},
				ImagePart{MediaType: "image/png", Data: "AAAA"},
			}},
		},
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	got := collect(t, s)
	if strings.Join(got, "|") != "Hello| world" {
		t.Fatalf("unexpected fragments: %q", got)
	}

	body := gjson.Parse(sentBody)
	if body.Get("stream").Bool() != true {
		t.Fatalf("request not streamed: %s", sentBody)
	}
	if body.Get("system.0.text").String() != "be terse" {
		t.Fatalf("system not sent out-of-band: %s", sentBody)
	}
	if body.Get("max_tokens").Int() != 4096 {
		t.Fatalf("max_tokens=%d", body.Get("max_tokens").Int())
	}
	if body.Get("messages.0.content.1.source.media_type").String() != "image/png" {
		t.Fatalf("image block missing: %s", sentBody)
	}
}

func TestAnthropicProvider_UpstreamErrorBeforeStreaming(t *testing.T) {
	srv := anthropicServer(t, func(w http.ResponseWriter, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	})

	p := NewAnthropicProvider("bad-key", AnthropicConfig{BaseURL: srv.URL})
	_, err := p.Stream(context.Background(), Request{
		Model:    "claude-3-haiku-20240307",
		Messages: []ChatMessage{{Role: RoleUser, Parts: []ContentPart{TextPart{Text: "hi"}}}},
	})
	pe, ok := AsProviderError(err)
	if !ok {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status=%d", pe.StatusCode)
	}
	if pe.Message != "invalid x-api-key" {
		t.Fatalf("message=%q", pe.Message)
	}
	if pe.Error() != "Anthropic API error: invalid x-api-key" {
		t.Fatalf("error text=%q", pe.Error())
	}
}

func TestAnthropicFactory_RequiresKey(t *testing.T) {
	factory := AnthropicFactory(AnthropicConfig{})
	_, err := factory(context.Background(), Credentials{AnthropicAPIKey: " "})
	mce, ok := err.(*MissingCredentialError)
	if !ok || mce.Field != "Anthropic" {
		t.Fatalf("expected missing Anthropic credential, got %v", err)
	}
}

func TestStream_NotRestartable(t *testing.T) {
	closed := 0
	s := NewStream(func(yield func(string, error) bool) {
		yield("once", nil)
	}, func() error {
		closed++
		return nil
	})

	if text, err := s.Collect(); err != nil || text != "once" {
		t.Fatalf("first pass: %q %v", text, err)
	}
	if _, err := s.Collect(); err != ErrStreamConsumed {
		t.Fatalf("second pass: expected ErrStreamConsumed, got %v", err)
	}
	_ = s.Close()
	if closed != 1 {
		t.Fatalf("close ran %d times", closed)
	}
}

func TestStream_ClosesOnPanic(t *testing.T) {
	closed := false
	s := NewStream(func(yield func(string, error) bool) {
		yield("boom", nil)
	}, func() error {
		closed = true
		return nil
	})

	func() {
		defer func() { _ = recover() }()
		for range s.Fragments() {
			panic("consumer failure")
		}
	}()
	if !closed {
		t.Fatal("upstream not closed after panic")
	}
}
