package ai

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/tidwall/gjson"
)

// eventSource is the pull iterator exposed by SDK server-sent-event streams.
type eventSource[T any] interface {
	Next() bool
	Current() T
	Err() error
	Close() error
}

// primed replays an event that was read ahead to confirm the upstream
// accepted the request.
type primed[T any] struct {
	eventSource[T]
	first   T
	pending bool
	cur     T
}

func prime[T any](src eventSource[T], first T) *primed[T] {
	return &primed[T]{eventSource: src, first: first, pending: true}
}

func (p *primed[T]) Next() bool {
	if p.pending {
		p.pending = false
		p.cur = p.first
		return true
	}
	if !p.eventSource.Next() {
		return false
	}
	p.cur = p.eventSource.Current()
	return true
}

func (p *primed[T]) Current() T { return p.cur }

// transcodeEvents is the event-iterator strategy: text deltas pulled from src
// are passed through unchanged and in order.
func transcodeEvents[T any](src eventSource[T], text func(T) (string, bool)) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for src.Next() {
			t, ok := text(src.Current())
			if !ok || t == "" {
				continue
			}
			if !yield(t, nil) {
				return
			}
		}
		if err := src.Err(); err != nil {
			yield("", err)
		}
	}
}

// ChunkReader is the binary event stream returned by Bedrock's
// InvokeModelWithResponseStream.
type ChunkReader interface {
	Events() <-chan types.ResponseStream
	Close() error
	Err() error
}

var errMalformedChunk = errors.New("chunk is not valid JSON")

// transcodeChunks is the binary-chunk strategy: each payload part is one JSON
// document carrying either delta.text or completion. Undecodable chunks are
// logged and skipped.
func transcodeChunks(ctx context.Context, provider string, r ChunkReader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		events := r.Events()
		for {
			var (
				ev types.ResponseStream
				ok bool
			)
			select {
			case <-ctx.Done():
				yield("", ctx.Err())
				return
			case ev, ok = <-events:
			}
			if !ok {
				break
			}

			chunk, isChunk := ev.(*types.ResponseStreamMemberChunk)
			if !isChunk || len(chunk.Value.Bytes) == 0 {
				continue
			}
			text, err := decodeChunk(chunk.Value.Bytes)
			if err != nil {
				slog.WarnContext(ctx, "skipping stream chunk",
					"err", &StreamDecodeError{Provider: provider, Chunk: chunk.Value.Bytes, Err: err})
				continue
			}
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
		if err := r.Err(); err != nil {
			yield("", err)
		}
	}
}

// decodeChunk extracts the fragment from one chunk. Messages-API models send
// delta.text; legacy text-completion models send completion.
func decodeChunk(b []byte) (string, error) {
	if !gjson.ValidBytes(b) {
		return "", errMalformedChunk
	}
	r := gjson.ParseBytes(b)
	if t := r.Get("delta.text").String(); t != "" {
		return t, nil
	}
	return r.Get("completion").String(), nil
}
