package ai

import "strings"

// Credentials holds the per-caller provider secrets. Values are opaque and
// must never be logged.
type Credentials struct {
	AnthropicAPIKey    string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSRegion          string
}

// Field is a named credential value checked by RequireCredentials.
type Field struct {
	Name  string
	Value string
}

// RequireCredentials fails with *MissingCredentialError naming the first field
// that is empty or blank. It does no I/O.
func RequireCredentials(fields ...Field) error {
	for _, f := range fields {
		if strings.TrimSpace(f.Value) == "" {
			return &MissingCredentialError{Field: f.Name}
		}
	}
	return nil
}
