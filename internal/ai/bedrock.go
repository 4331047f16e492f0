package ai

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
)

const (
	ProviderBedrock = "bedrock"

	bedrockAnthropicVersion = "bedrock-2023-05-31"
)

// BedrockAPI opens a model response stream. It is the only network boundary
// of BedrockProvider.
type BedrockAPI interface {
	InvokeStream(ctx context.Context, in *bedrockruntime.InvokeModelWithResponseStreamInput) (ChunkReader, error)
}

type bedrockRuntime struct {
	client *bedrockruntime.Client
}

// NewBedrockAPI builds a runtime client from static caller credentials.
func NewBedrockAPI(creds Credentials) BedrockAPI {
	cfg := aws.Config{
		Region: creds.AWSRegion,
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(creds.AWSAccessKeyID, creds.AWSSecretAccessKey, ""),
		),
	}
	client := bedrockruntime.NewFromConfig(cfg, func(o *bedrockruntime.Options) {
		o.RetryMaxAttempts = 1
	})
	return &bedrockRuntime{client: client}
}

var errNoBedrockBody = errors.New("bedrock: no response body received")

func (b *bedrockRuntime) InvokeStream(ctx context.Context, in *bedrockruntime.InvokeModelWithResponseStreamInput) (ChunkReader, error) {
	out, err := b.client.InvokeModelWithResponseStream(ctx, in)
	if err != nil {
		return nil, err
	}
	stream := out.GetStream()
	if stream == nil {
		return nil, errNoBedrockBody
	}
	return stream, nil
}

// BedrockProvider drives prompt-based Anthropic models on Bedrock and decodes
// the binary chunk stream.
//
// The prompt is built from the final message only; earlier turns and the
// system instruction are not sent.
type BedrockProvider struct {
	api              BedrockAPI
	defaultMaxTokens int64
}

func NewBedrockProvider(api BedrockAPI, defaultMaxTokens int64) *BedrockProvider {
	return &BedrockProvider{api: api, defaultMaxTokens: defaultMaxTokens}
}

// BedrockFactory gates on the AWS key pair and region. newAPI defaults to
// NewBedrockAPI.
func BedrockFactory(newAPI func(Credentials) BedrockAPI, defaultMaxTokens int64) ProviderFactory {
	if newAPI == nil {
		newAPI = NewBedrockAPI
	}
	return func(ctx context.Context, creds Credentials) (Provider, error) {
		if err := RequireCredentials(
			Field{Name: "AWS Access Key ID", Value: creds.AWSAccessKeyID},
			Field{Name: "AWS Secret Access Key", Value: creds.AWSSecretAccessKey},
			Field{Name: "AWS Region", Value: creds.AWSRegion},
		); err != nil {
			return nil, err
		}
		return NewBedrockProvider(newAPI(creds), defaultMaxTokens), nil
	}
}

func (p *BedrockProvider) Name() string { return ProviderBedrock }

type bedrockPromptBody struct {
	Prompt           string  `json:"prompt"`
	MaxTokens        int64   `json:"max_tokens"`
	Temperature      float64 `json:"temperature"`
	AnthropicVersion string  `json:"anthropic_version"`
}

func (p *BedrockProvider) Stream(ctx context.Context, req Request) (*Stream, error) {
	fallback := p.defaultMaxTokens
	if req.ContextLength > 0 {
		fallback = int64(req.ContextLength)
	}
	body, err := json.Marshal(bedrockPromptBody{
		Prompt:           BedrockPrompt(req.Messages),
		MaxTokens:        MaxOutputTokens(req.Model, fallback),
		Temperature:      req.Temperature,
		AnthropicVersion: bedrockAnthropicVersion,
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "sending request to bedrock",
		"model", req.Model,
		"message_count", len(req.Messages),
		"temperature", req.Temperature,
	)

	r, err := p.api.InvokeStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(req.Model),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, bedrockError(err)
	}
	return NewStream(transcodeChunks(ctx, ProviderBedrock, r), r.Close), nil
}

// BedrockPrompt renders the Human/Assistant prompt from the last message.
func BedrockPrompt(msgs []ChatMessage) string {
	var last string
	if len(msgs) > 0 {
		last = msgs[len(msgs)-1].Text()
	}
	return "\n\nHuman: " + last + "\n\nAssistant:"
}

func bedrockError(err error) *ProviderError {
	var status int
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status = respErr.HTTPStatusCode()
	}

	msg := err.Error()
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorMessage() != "" {
		msg = apiErr.ErrorMessage()
	}
	return newProviderError("Bedrock", status, msg, err)
}
