package ai

import (
	"errors"
	"strings"
)

var errNotDataURL = errors.New("image must be a base64 data URL")

// ParseDataURL splits "data:<media type>[;param]*;base64,<payload>" into its
// declared media type and the base64 payload. The payload is returned as-is.
func ParseDataURL(u string) (mediaType, data string, err error) {
	rest, ok := strings.CutPrefix(u, "data:")
	if !ok {
		return "", "", errNotDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || payload == "" {
		return "", "", errNotDataURL
	}

	params := strings.Split(meta, ";")
	if params[len(params)-1] != "base64" {
		return "", "", errNotDataURL
	}
	mediaType = strings.ToLower(strings.TrimSpace(params[0]))
	if mediaType == "" || !strings.Contains(mediaType, "/") {
		return "", "", errors.New("data URL has no media type")
	}
	return mediaType, payload, nil
}
