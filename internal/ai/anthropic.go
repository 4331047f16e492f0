package ai

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/tidwall/gjson"
)

const ProviderAnthropic = "anthropic"

type AnthropicConfig struct {
	BaseURL          string
	DefaultMaxTokens int64
	HTTPClient       *http.Client
}

// AnthropicProvider talks to the turn-based Messages API and streams with the
// SDK's event iterator.
type AnthropicProvider struct {
	client           anthropic.Client
	defaultMaxTokens int64
}

func NewAnthropicProvider(apiKey string, cfg AnthropicConfig) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return &AnthropicProvider{
		client:           anthropic.NewClient(opts...),
		defaultMaxTokens: cfg.DefaultMaxTokens,
	}
}

// AnthropicFactory gates on the API key before building a client.
func AnthropicFactory(cfg AnthropicConfig) ProviderFactory {
	return func(ctx context.Context, creds Credentials) (Provider, error) {
		if err := RequireCredentials(Field{Name: "Anthropic", Value: creds.AnthropicAPIKey}); err != nil {
			return nil, err
		}
		return NewAnthropicProvider(creds.AnthropicAPIKey, cfg), nil
	}
}

func (p *AnthropicProvider) Name() string { return ProviderAnthropic }

func (p *AnthropicProvider) Stream(ctx context.Context, req Request) (*Stream, error) {
	params := buildAnthropicParams(req, p.defaultMaxTokens)

	slog.InfoContext(ctx, "sending request to anthropic",
		"model", req.Model,
		"message_count", len(params.Messages),
		"temperature", req.Temperature,
		"has_system", req.System != "",
	)

	st := p.client.Messages.NewStreaming(ctx, params)

	// The SDK surfaces HTTP failures on the first Next; read ahead so a
	// rejected request becomes a ProviderError before any byte is streamed.
	if !st.Next() {
		err := st.Err()
		_ = st.Close()
		if err != nil {
			return nil, anthropicError(err)
		}
		return NewStream(func(func(string, error) bool) {}, nil), nil
	}

	src := prime[anthropic.MessageStreamEventUnion](st, st.Current())
	return NewStream(transcodeEvents(src, anthropicTextDelta), st.Close), nil
}

func buildAnthropicParams(req Request, defaultMaxTokens int64) anthropic.MessageNewParams {
	msgs := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Parts))
		for _, part := range m.Parts {
			switch v := part.(type) {
			case TextPart:
				blocks = append(blocks, anthropic.NewTextBlock(v.Text))
			case ImagePart:
				blocks = append(blocks, anthropic.NewImageBlockBase64(v.MediaType, v.Data))
			}
		}
		if m.Role == RoleUser {
			msgs = append(msgs, anthropic.NewUserMessage(blocks...))
		} else {
			msgs = append(msgs, anthropic.NewAssistantMessage(blocks...))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		Messages:    msgs,
		MaxTokens:   MaxOutputTokens(req.Model, defaultMaxTokens),
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	return params
}

func anthropicTextDelta(ev anthropic.MessageStreamEventUnion) (string, bool) {
	if delta, ok := ev.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
		if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok {
			return text.Text, true
		}
	}
	return "", false
}

// anthropicError prefers the message from the API's error body, then the
// transport error text.
func anthropicError(err error) *ProviderError {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		msg := gjson.Get(apiErr.RawJSON(), "error.message").String()
		return newProviderError("Anthropic", apiErr.StatusCode, strings.TrimSpace(msg), err)
	}
	return newProviderError("Anthropic", 0, err.Error(), err)
}
