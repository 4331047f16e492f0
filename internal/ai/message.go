package ai

import "strings"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ContentPart is one of TextPart or ImagePart. The set is closed: only this
// package can add variants.
type ContentPart interface {
	contentPart()
}

type TextPart struct {
	Text string
}

// ImagePart carries inline image bytes decoded from a data URL.
type ImagePart struct {
	MediaType string
	Data      string // base64, exactly as it appeared in the data URL
}

func (TextPart) contentPart()  {}
func (ImagePart) contentPart() {}

// ChatMessage is one normalized conversational turn. Parts is never empty.
type ChatMessage struct {
	Role  Role
	Parts []ContentPart
}

// Text joins the message's text parts, ignoring images.
func (m ChatMessage) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if t, ok := p.(TextPart); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

// Request is the provider-agnostic input to an invoker. It is built fresh per
// call and not modified once handed to a Provider.
type Request struct {
	Model         string
	System        string
	Messages      []ChatMessage
	Temperature   float64
	ContextLength int
}
