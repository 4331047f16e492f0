package ai

import (
	"encoding/json"
	"errors"
	"testing"
)

func rawMessages(t *testing.T, msgs ...string) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, 0, len(msgs))
	for _, m := range msgs {
		if !json.Valid([]byte(m)) {
			t.Fatalf("invalid test json: %s", m)
		}
		out = append(out, json.RawMessage(m))
	}
	return out
}

func TestNormalize_ExtractsSystemAndTurns(t *testing.T) {
	raw := rawMessages(t,
		`{"role":"system","content":"You are helpful."}`,
		`{"role":"user","content":"Hi"}`,
		`{"role":"assistant","content":"Hello!"}`,
		`{"role":"user","content":"How are you?"}`,
	)

	system, msgs, err := Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if system != "You are helpful." {
		t.Fatalf("unexpected system: %q", system)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	wantRoles := []Role{RoleUser, RoleAssistant, RoleUser}
	for i, m := range msgs {
		if m.Role != wantRoles[i] {
			t.Fatalf("msg %d: role=%q want %q", i, m.Role, wantRoles[i])
		}
		if len(m.Parts) != 1 {
			t.Fatalf("msg %d: expected one part, got %d", i, len(m.Parts))
		}
	}
	if msgs[2].Text() != "How are you?" {
		t.Fatalf("unexpected last text: %q", msgs[2].Text())
	}
}

func TestNormalize_SkipsMessagesWithoutContent(t *testing.T) {
	raw := rawMessages(t,
		`{"role":"system","content":"sys"}`,
		`{"role":"user","content":""}`,
		`{"role":"user"}`,
		`{"role":"user","content":null}`,
		`{"role":"user","content":"kept"}`,
	)

	_, msgs, err := Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Text() != "kept" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}

func TestNormalize_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		raw    []string
		reason string
	}{
		{
			name:   "no messages",
			raw:    nil,
			reason: "No valid messages to send",
		},
		{
			name:   "only system",
			raw:    []string{`{"role":"system","content":"sys"}`},
			reason: "No valid messages to send",
		},
		{
			name:   "all empty",
			raw:    []string{`{"role":"system","content":"sys"}`, `{"role":"user","content":""}`},
			reason: "No valid messages to send",
		},
		{
			name:   "whitespace string",
			raw:    []string{`{"role":"system","content":"sys"}`, `{"role":"user","content":"   \n\t"}`},
			reason: "Message content cannot be empty",
		},
		{
			name: "array of blanks",
			raw: []string{
				`{"role":"system","content":"sys"}`,
				`{"role":"user","content":["  ",{"type":"text","text":" "},{"type":"video"}]}`,
			},
			reason: "Message content cannot be empty",
		},
		{
			name:   "object content",
			raw:    []string{`{"role":"system","content":"sys"}`, `{"role":"user","content":{"text":"hi"}}`},
			reason: "Invalid message format",
		},
		{
			name:   "numeric content",
			raw:    []string{`{"role":"system","content":"sys"}`, `{"role":"user","content":42}`},
			reason: "Invalid message format",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Normalize(rawMessages(t, tc.raw...))
			var ime *InvalidMessageError
			if !errors.As(err, &ime) {
				t.Fatalf("expected InvalidMessageError, got %v", err)
			}
			if ime.Reason != tc.reason {
				t.Fatalf("reason=%q want %q", ime.Reason, tc.reason)
			}
		})
	}
}

func TestNormalize_MixedContent(t *testing.T) {
	raw := rawMessages(t,
		`{"role":"system","content":"sys"}`,
		`{"role":"user","content":[
			"bare text",
			"   ",
			{"type":"text","text":"explicit"},
			{"type":"text","text":""},
			{"type":"image_url","image_url":{"url":"data:image/png;base64,AAAA"}},
			{"type":"audio","data":"x"},
			7
		]}`,
	)

	_, msgs, err := Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	parts := msgs[0].Parts
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d: %+v", len(parts), parts)
	}
	if p, ok := parts[0].(TextPart); !ok || p.Text != "bare text" {
		t.Fatalf("part 0: %+v", parts[0])
	}
	if p, ok := parts[1].(TextPart); !ok || p.Text != "explicit" {
		t.Fatalf("part 1: %+v", parts[1])
	}
	img, ok := parts[2].(ImagePart)
	if !ok {
		t.Fatalf("part 2 is not an image: %+v", parts[2])
	}
	if img.MediaType != "image/png" || img.Data != "AAAA" {
		t.Fatalf("unexpected image part: %+v", img)
	}
}

func TestNormalize_RejectsNonDataURLImage(t *testing.T) {
	raw := rawMessages(t,
		`{"role":"system","content":"sys"}`,
		`{"role":"user","content":[{"type":"image_url","image_url":{"url":"https://example.com/cat.png"}}]}`,
	)
	_, _, err := Normalize(raw)
	var ime *InvalidMessageError
	if !errors.As(err, &ime) {
		t.Fatalf("expected InvalidMessageError, got %v", err)
	}
	if ime.Index != 1 {
		t.Fatalf("index=%d want 1", ime.Index)
	}
}

func TestNormalize_SystemFromArrayContent(t *testing.T) {
	raw := rawMessages(t,
		`{"role":"system","content":[{"type":"text","text":"be brief"},"and kind"]}`,
		`{"role":"user","content":"q"}`,
	)
	system, _, err := Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if system != "be brief\nand kind" {
		t.Fatalf("unexpected system: %q", system)
	}
}

func TestNormalize_MissingSystemContent(t *testing.T) {
	raw := rawMessages(t, `{"role":"system"}`, `{"role":"user","content":"q"}`)
	system, msgs, err := Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if system != "" || len(msgs) != 1 {
		t.Fatalf("system=%q msgs=%d", system, len(msgs))
	}
}

func TestParseDataURL(t *testing.T) {
	cases := []struct {
		in        string
		mediaType string
		data      string
		wantErr   bool
	}{
		{in: "data:image/png;base64,AAAA", mediaType: "image/png", data: "AAAA"},
		{in: "data:image/JPEG;name=a.jpg;base64,/9j/4A==", mediaType: "image/jpeg", data: "/9j/4A=="},
		{in: "data:image/png,AAAA", wantErr: true},
		{in: "data:;base64,AAAA", wantErr: true},
		{in: "data:image/png;base64,", wantErr: true},
		{in: "http://x/y.png", wantErr: true},
	}
	for _, tc := range cases {
		mt, data, err := ParseDataURL(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if mt != tc.mediaType || data != tc.data {
			t.Fatalf("%q: got (%q,%q)", tc.in, mt, data)
		}
	}
}

func TestRequireCredentials(t *testing.T) {
	err := RequireCredentials(
		Field{Name: "AWS Access Key ID", Value: "id"},
		Field{Name: "AWS Secret Access Key", Value: "  "},
		Field{Name: "AWS Region", Value: ""},
	)
	var mce *MissingCredentialError
	if !errors.As(err, &mce) {
		t.Fatalf("expected MissingCredentialError, got %v", err)
	}
	if mce.Field != "AWS Secret Access Key" {
		t.Fatalf("field=%q", mce.Field)
	}

	if err := RequireCredentials(Field{Name: "Anthropic", Value: "k"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMaxOutputTokens(t *testing.T) {
	if got := MaxOutputTokens("claude-3-5-sonnet-20241022", 0); got != 8192 {
		t.Fatalf("table lookup: got %d", got)
	}
	if got := MaxOutputTokens("some-new-model", 0); got != DefaultMaxOutputTokens {
		t.Fatalf("default: got %d", got)
	}
	if got := MaxOutputTokens("some-new-model", 1000); got != 1000 {
		t.Fatalf("fallback: got %d", got)
	}
}
