package ai

import (
	"iter"
	"sync"
	"sync/atomic"
)

// Stream is a single-consumer, forward-only sequence of text fragments.
//
// Ranging over Fragments drives the upstream read; breaking out of the loop,
// a yielded error, or a panic in the loop body all close the upstream handle.
// A Stream cannot be restarted: a second range yields ErrStreamConsumed.
type Stream struct {
	seq     iter.Seq2[string, error]
	closeFn func() error

	started   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewStream wraps seq. closeFn releases the upstream handle and may be nil.
func NewStream(seq iter.Seq2[string, error], closeFn func() error) *Stream {
	return &Stream{seq: seq, closeFn: closeFn}
}

func (s *Stream) Fragments() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if !s.started.CompareAndSwap(false, true) {
			yield("", ErrStreamConsumed)
			return
		}
		defer s.Close()
		s.seq(yield)
	}
}

// Close releases the upstream handle. It is safe to call more than once and
// from a different goroutine than the consumer.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		if s.closeFn != nil {
			s.closeErr = s.closeFn()
		}
	})
	return s.closeErr
}

// Collect drains the stream into one string. It stops at the first error.
func (s *Stream) Collect() (string, error) {
	var out []byte
	for frag, err := range s.Fragments() {
		if err != nil {
			return string(out), err
		}
		out = append(out, frag...)
	}
	return string(out), nil
}
