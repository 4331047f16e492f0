package ai

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Normalize turns the caller's raw message list into a system instruction
// and provider-ready turns.
//
// The first raw element is always taken as the system instruction and removed
// from the conversation. Remaining elements without content are skipped; any
// element whose content normalizes to nothing fails the whole request.
func Normalize(raw []json.RawMessage) (string, []ChatMessage, error) {
	if len(raw) == 0 {
		return "", nil, invalidMessage(-1, "No valid messages to send")
	}

	system := textOf(gjson.GetBytes(raw[0], "content"))

	msgs := make([]ChatMessage, 0, len(raw)-1)
	for i := 1; i < len(raw); i++ {
		r := gjson.ParseBytes(raw[i])
		content := r.Get("content")
		if !truthy(content) {
			continue
		}

		parts, err := normalizeContent(i, content)
		if err != nil {
			return "", nil, err
		}
		msgs = append(msgs, ChatMessage{Role: roleOf(r.Get("role").String()), Parts: parts})
	}

	if len(msgs) == 0 {
		return "", nil, invalidMessage(-1, "No valid messages to send")
	}
	return system, msgs, nil
}

func normalizeContent(index int, content gjson.Result) ([]ContentPart, error) {
	switch {
	case content.Type == gjson.String:
		if strings.TrimSpace(content.Str) == "" {
			return nil, invalidMessage(index, "Message content cannot be empty")
		}
		return []ContentPart{TextPart{Text: content.Str}}, nil

	case content.IsArray():
		var parts []ContentPart
		for _, item := range content.Array() {
			p, err := normalizeItem(index, item)
			if err != nil {
				return nil, err
			}
			if p != nil {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			return nil, invalidMessage(index, "Message content cannot be empty")
		}
		return parts, nil
	}

	return nil, invalidMessage(index, "Invalid message format")
}

// normalizeItem maps one element of an array content. A nil part with a nil
// error means the element is dropped.
func normalizeItem(index int, item gjson.Result) (ContentPart, error) {
	if item.Type == gjson.String {
		if strings.TrimSpace(item.Str) == "" {
			return nil, nil
		}
		return TextPart{Text: item.Str}, nil
	}
	if !item.IsObject() {
		return nil, nil
	}

	switch item.Get("type").String() {
	case "text":
		text := item.Get("text").String()
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		return TextPart{Text: text}, nil

	case "image_url":
		url := item.Get("image_url.url").String()
		if url == "" {
			return nil, nil
		}
		mediaType, data, err := ParseDataURL(url)
		if err != nil {
			return nil, invalidMessage(index, err.Error())
		}
		return ImagePart{MediaType: mediaType, Data: data}, nil
	}
	return nil, nil
}

// textOf extracts plain text from a content value: the string itself, or the
// text elements of an array joined by newlines.
func textOf(content gjson.Result) string {
	if content.Type == gjson.String {
		return content.Str
	}
	if !content.IsArray() {
		return ""
	}
	var texts []string
	for _, item := range content.Array() {
		switch {
		case item.Type == gjson.String:
			texts = append(texts, item.Str)
		case item.Get("type").String() == "text":
			texts = append(texts, item.Get("text").String())
		}
	}
	return strings.Join(texts, "\n")
}

func roleOf(s string) Role {
	if s == string(RoleUser) {
		return RoleUser
	}
	return RoleAssistant
}

// truthy follows the client's loose notion of "has content": null, false,
// zero and the empty string do not count.
func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.String:
		return r.Str != ""
	case gjson.Number:
		return r.Num != 0
	default:
		return true
	}
}
