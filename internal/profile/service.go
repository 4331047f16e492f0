package profile

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/suPer8Hu/llm-bridge/internal/ai"
	"gorm.io/gorm"
)

// Cache holds sealed profile rows. *redisstore.Store implements it.
type Cache interface {
	GetProfile(ctx context.Context, userID uint64) ([]byte, error)
	SetProfile(ctx context.Context, userID uint64, b []byte, ttl time.Duration) error
	DeleteProfile(ctx context.Context, userID uint64) error
}

type Service struct {
	repo   *Repo
	sealer *Sealer
	cache  Cache
	ttl    time.Duration
}

// NewService wires the profile lookup. cache may be nil.
func NewService(repo *Repo, sealer *Sealer, cache Cache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{repo: repo, sealer: sealer, cache: cache, ttl: ttl}
}

// Credentials returns the caller's decrypted provider secrets. A caller
// without a stored profile gets empty credentials and no error, so the
// credential gate reports which field is missing.
func (s *Service) Credentials(ctx context.Context, userID uint64) (ai.Credentials, error) {
	p, err := s.load(ctx, userID)
	if err != nil {
		return ai.Credentials{}, err
	}
	if p == nil {
		return ai.Credentials{}, nil
	}
	return s.open(p)
}

// Update is a partial change to a caller's secrets: nil leaves a field as
// is, an empty string clears it.
type Update struct {
	AnthropicAPIKey    *string `json:"anthropic_api_key"`
	AWSAccessKeyID     *string `json:"aws_access_key_id"`
	AWSSecretAccessKey *string `json:"aws_secret_access_key"`
	AWSRegion          *string `json:"aws_region"`
}

func (s *Service) Update(ctx context.Context, userID uint64, u Update) error {
	current, err := s.Credentials(ctx, userID)
	if err != nil {
		return err
	}

	apply := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	apply(&current.AnthropicAPIKey, u.AnthropicAPIKey)
	apply(&current.AWSAccessKeyID, u.AWSAccessKeyID)
	apply(&current.AWSSecretAccessKey, u.AWSSecretAccessKey)
	apply(&current.AWSRegion, u.AWSRegion)

	p, err := s.seal(userID, current)
	if err != nil {
		return err
	}
	if err := s.repo.Upsert(ctx, p); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.DeleteProfile(ctx, userID); err != nil {
			slog.WarnContext(ctx, "profile cache invalidate failed", "user_id", userID, "err", err)
		}
	}
	return nil
}

func (s *Service) load(ctx context.Context, userID uint64) (*Profile, error) {
	if s.cache != nil {
		b, err := s.cache.GetProfile(ctx, userID)
		switch {
		case err == nil:
			var row cachedRow
			if jerr := json.Unmarshal(b, &row); jerr == nil {
				return row.profile(userID), nil
			}
		case !errors.Is(err, redis.Nil):
			slog.WarnContext(ctx, "profile cache read failed", "user_id", userID, "err", err)
		}
	}

	p, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if s.cache != nil {
		if b, err := json.Marshal(newCachedRow(p)); err == nil {
			if err := s.cache.SetProfile(ctx, userID, b, s.ttl); err != nil {
				slog.WarnContext(ctx, "profile cache write failed", "user_id", userID, "err", err)
			}
		}
	}
	return p, nil
}

// cachedRow is a Profile as stored in the cache. Secrets stay sealed.
type cachedRow struct {
	AnthropicAPIKey    string `json:"anthropic_api_key"`
	AWSAccessKeyID     string `json:"aws_access_key_id"`
	AWSSecretAccessKey string `json:"aws_secret_access_key"`
	AWSRegion          string `json:"aws_region"`
}

func newCachedRow(p *Profile) cachedRow {
	return cachedRow{
		AnthropicAPIKey:    p.AnthropicAPIKey,
		AWSAccessKeyID:     p.AWSAccessKeyID,
		AWSSecretAccessKey: p.AWSSecretAccessKey,
		AWSRegion:          p.AWSRegion,
	}
}

func (r cachedRow) profile(userID uint64) *Profile {
	return &Profile{
		UserID:             userID,
		AnthropicAPIKey:    r.AnthropicAPIKey,
		AWSAccessKeyID:     r.AWSAccessKeyID,
		AWSSecretAccessKey: r.AWSSecretAccessKey,
		AWSRegion:          r.AWSRegion,
	}
}

func (s *Service) open(p *Profile) (ai.Credentials, error) {
	var c ai.Credentials
	var err error
	if c.AnthropicAPIKey, err = s.sealer.Open(p.AnthropicAPIKey); err != nil {
		return ai.Credentials{}, err
	}
	if c.AWSAccessKeyID, err = s.sealer.Open(p.AWSAccessKeyID); err != nil {
		return ai.Credentials{}, err
	}
	if c.AWSSecretAccessKey, err = s.sealer.Open(p.AWSSecretAccessKey); err != nil {
		return ai.Credentials{}, err
	}
	c.AWSRegion = p.AWSRegion
	return c, nil
}

func (s *Service) seal(userID uint64, c ai.Credentials) (*Profile, error) {
	p := &Profile{UserID: userID, AWSRegion: c.AWSRegion}
	var err error
	if p.AnthropicAPIKey, err = s.sealer.Seal(c.AnthropicAPIKey); err != nil {
		return nil, err
	}
	if p.AWSAccessKeyID, err = s.sealer.Seal(c.AWSAccessKeyID); err != nil {
		return nil, err
	}
	if p.AWSSecretAccessKey, err = s.sealer.Seal(c.AWSSecretAccessKey); err != nil {
		return nil, err
	}
	return p, nil
}
