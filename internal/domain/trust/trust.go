// Package trust reads the server-computed trust score for one actor. The
// score is authoritative server state; the client only displays it and
// asks for a fresh copy after access attempts and on a timer.
package trust

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/medtrust/console/internal/platform/api"
	"github.com/medtrust/console/internal/platform/poll"
)

type Service struct {
	api   *api.Client
	actor string
	log   zerolog.Logger

	mu    sync.Mutex
	score int
}

func NewService(client *api.Client, actor string, logger zerolog.Logger) *Service {
	return &Service{api: client, actor: actor, log: logger}
}

// Refresh fetches the current score. Changes are logged; an unchanged
// score is not reported to avoid noise on the 30s polling path.
func (s *Service) Refresh(ctx context.Context) (int, error) {
	var out struct {
		TrustScore int `json:"trust_score"`
	}
	path := "/trust_score/" + url.PathEscape(s.actor)
	if err := s.api.GetOpen(ctx, path, &out); err != nil {
		return s.Score(), fmt.Errorf("fetch trust score: %w", err)
	}
	if out.TrustScore < 0 {
		out.TrustScore = 0
	}

	s.mu.Lock()
	prev := s.score
	s.score = out.TrustScore
	s.mu.Unlock()

	if prev != out.TrustScore {
		s.log.Info().Int("from", prev).Int("to", out.TrustScore).Msg("trust score updated")
	}
	return out.TrustScore, nil
}

// Score returns the last fetched value.
func (s *Service) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

// TrustScore implements the orchestrator's TrustReader.
func (s *Service) TrustScore(ctx context.Context) (int, error) {
	return s.Refresh(ctx)
}

// Watch polls the score until ctx is cancelled. Poll failures are
// diagnostics only, never surfaced.
func (s *Service) Watch(ctx context.Context, interval time.Duration) (stop func()) {
	return poll.Start(ctx, interval, func(ctx context.Context) {
		if _, err := s.Refresh(ctx); err != nil {
			s.log.Debug().Err(err).Msg("trust poll failed")
		}
	})
}
