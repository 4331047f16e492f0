package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/suPer8Hu/llm-bridge/internal/ai"
	"github.com/suPer8Hu/llm-bridge/internal/common"
)

// ProfileSource resolves a caller's provider secrets. *profile.Service
// implements it.
type ProfileSource interface {
	Credentials(ctx context.Context, userID uint64) (ai.Credentials, error)
}

// EventPublisher ships usage events off the request path.
type EventPublisher interface {
	PublishUsage(ctx context.Context, ev UsageEvent) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishUsage(context.Context, UsageEvent) error { return nil }

type ChatSettings struct {
	Model         string  `json:"model"`
	Temperature   float64 `json:"temperature"`
	ContextLength int     `json:"contextLength"`
}

// Request is the inbound chat body. Messages stay raw until normalized.
type Request struct {
	ChatSettings ChatSettings      `json:"chatSettings"`
	Messages     []json.RawMessage `json:"messages"`
}

var ErrModelRequired = errors.New("chatSettings.model is required")

type Service struct {
	profiles ProfileSource
	registry *ai.Registry
	events   EventPublisher
	usage    *Repo
	now      func() time.Time
}

// NewService wires the bridge. events may be nil; usage may be nil when
// the caller never lists usage.
func NewService(profiles ProfileSource, registry *ai.Registry, events EventPublisher, usage *Repo) *Service {
	if events == nil {
		events = NopPublisher{}
	}
	return &Service{profiles: profiles, registry: registry, events: events, usage: usage, now: time.Now}
}

// Stream runs one chat turn against providerName for userID.
//
// Credentials are checked before anything else is built, so a missing
// secret never reaches the network. The returned stream publishes a
// UsageEvent once it ends, however it ends.
func (s *Service) Stream(ctx context.Context, userID uint64, providerName string, req Request) (*ai.Stream, error) {
	if !s.registry.Has(providerName) {
		return nil, ai.ErrUnknownProvider
	}
	creds, err := s.profiles.Credentials(ctx, userID)
	if err != nil {
		return nil, err
	}
	provider, err := s.registry.Get(ctx, providerName, creds)
	if err != nil {
		return nil, err
	}

	model := strings.TrimSpace(req.ChatSettings.Model)
	if model == "" {
		return nil, ErrModelRequired
	}
	system, msgs, err := ai.Normalize(req.Messages)
	if err != nil {
		return nil, err
	}

	start := s.now()
	up, err := provider.Stream(ctx, ai.Request{
		Model:         model,
		System:        system,
		Messages:      msgs,
		Temperature:   req.ChatSettings.Temperature,
		ContextLength: req.ChatSettings.ContextLength,
	})
	if err != nil {
		slog.WarnContext(ctx, "provider rejected chat request", "provider", provider.Name(), "model", model, "err", err)
		return nil, err
	}

	ev := UsageEvent{UserID: userID, Provider: provider.Name(), Model: model}
	return s.meter(ctx, start, ev, up), nil
}

// meter counts what flows through up and publishes the totals when the
// consumer is done with it.
func (s *Service) meter(ctx context.Context, start time.Time, ev UsageEvent, up *ai.Stream) *ai.Stream {
	seq := func(yield func(string, error) bool) {
		outcome := OutcomeClientClosed
		defer func() {
			ev.Outcome = outcome
			ev.DurationMS = s.now().Sub(start).Milliseconds()
			s.publish(ctx, ev)
		}()

		for frag, err := range up.Fragments() {
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					outcome = OutcomeUpstreamError
				}
				yield("", err)
				return
			}
			ev.Fragments++
			ev.Bytes += int64(len(frag))
			if !yield(frag, nil) {
				return
			}
		}
		outcome = OutcomeCompleted
	}
	return ai.NewStream(seq, up.Close)
}

func (s *Service) publish(ctx context.Context, ev UsageEvent) {
	id, err := common.NewULID()
	if err != nil {
		slog.ErrorContext(ctx, "usage event id", "err", err)
		return
	}
	ev.ID = id
	ev.At = s.now().UTC()

	// The request context is usually canceled by now.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.events.PublishUsage(pctx, ev); err != nil {
		slog.WarnContext(ctx, "usage event publish failed", "event_id", ev.ID, "provider", ev.Provider, "err", err)
		return
	}
	slog.DebugContext(ctx, "chat stream finished",
		"provider", ev.Provider, "model", ev.Model, "outcome", ev.Outcome,
		"fragments", ev.Fragments, "bytes", ev.Bytes, "duration_ms", ev.DurationMS)
}

func (s *Service) ListUsage(ctx context.Context, userID uint64, limit int, beforeID uint64) ([]UsageRecord, error) {
	if s.usage == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.usage.ListUsage(ctx, userID, limit, beforeID)
}
