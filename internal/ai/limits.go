package ai

import "strings"

const DefaultMaxOutputTokens int64 = 4096

// maxOutputTokens is the per-model output ceiling. Bedrock ids share the
// table with the first-party Anthropic names.
var maxOutputTokens = map[string]int64{
	"claude-3-haiku-20240307":    4096,
	"claude-3-sonnet-20240229":   4096,
	"claude-3-opus-20240229":     4096,
	"claude-3-5-haiku-20241022":  8192,
	"claude-3-5-sonnet-20240620": 8192,
	"claude-3-5-sonnet-20241022": 8192,
	"claude-3-7-sonnet-20250219": 64000,
	"claude-sonnet-4-20250514":   64000,
	"claude-opus-4-20250514":     32000,

	"anthropic.claude-3-sonnet-20240229-v1:0": 4096,
	"anthropic.claude-3-haiku-20240307-v1:0":  4096,
	"anthropic.claude-v2:1":                   4096,
	"amazon.titan-text-express-v1":            8192,
}

// MaxOutputTokens returns the configured ceiling for model, or fallback when
// the model is not in the table. A non-positive fallback means
// DefaultMaxOutputTokens.
func MaxOutputTokens(model string, fallback int64) int64 {
	if n, ok := maxOutputTokens[strings.TrimSpace(model)]; ok {
		return n
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultMaxOutputTokens
}
