package auditlog

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/rs/zerolog"

	"github.com/medtrust/console/internal/platform/api"
	"github.com/medtrust/console/internal/platform/poll"
)

// Feed selects which server-side log collection to read.
type Feed string

const (
	FeedAdmin      Feed = "admin"
	FeedDoctor     Feed = "doctor"
	FeedAllDoctors Feed = "all-doctors"
	FeedNurse      Feed = "nurse"
	FeedAllNurses  Feed = "all-nurses"
	FeedPatient    Feed = "patient"
)

// path resolves the feed to its endpoint. Feeds keyed by an actor take the
// name; the aggregate feeds ignore it.
func (f Feed) path(name string) (string, error) {
	esc := url.PathEscape(name)
	switch f {
	case FeedAdmin:
		return "/access_logs/admin", nil
	case FeedDoctor:
		return "/doctor_access_logs/" + esc, nil
	case FeedAllDoctors:
		return "/all_doctor_access_logs", nil
	case FeedNurse:
		return "/nurse_access_logs/" + esc, nil
	case FeedAllNurses:
		return "/all_nurse_access_logs", nil
	case FeedPatient:
		return "/patient_access_history/" + esc, nil
	}
	return "", fmt.Errorf("unknown log feed %q", f)
}

// Service fetches and caches one log feed, writes side-channel audit
// entries, and drives the resolve-then-refetch status update flow.
type Service struct {
	api   *api.Client
	feed  Feed
	actor string
	log   zerolog.Logger

	guard   poll.Guard
	mu      sync.Mutex
	entries []Entry
}

func NewService(client *api.Client, feed Feed, actor string, logger zerolog.Logger) *Service {
	return &Service{api: client, feed: feed, actor: actor, log: logger}
}

// Fetch loads the feed. Without force it is a no-op once loaded, and
// concurrent calls collapse into one request; the skipped caller gets the
// cached entries.
func (s *Service) Fetch(ctx context.Context, force bool) ([]Entry, error) {
	if !s.guard.TryStart(force) {
		return s.Entries(), nil
	}

	path, err := s.feed.path(s.actor)
	if err != nil {
		s.guard.Finish(false)
		return nil, err
	}

	var out struct {
		Success bool    `json:"success"`
		Logs    []Entry `json:"logs"`
	}
	if err := s.api.Get(ctx, path, &out); err != nil {
		s.guard.Finish(false)
		return nil, fmt.Errorf("fetch %s logs: %w", s.feed, err)
	}

	s.mu.Lock()
	s.entries = out.Logs
	s.mu.Unlock()
	s.guard.Finish(true)

	s.log.Debug().Str("feed", string(s.feed)).Int("count", len(out.Logs)).Msg("logs fetched")
	return out.Logs, nil
}

// Entries returns the cached copy of the feed.
func (s *Service) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Refresh forces a re-fetch. It implements the orchestrator's LogRefresher
// and is the unconditional post-attempt step.
func (s *Service) Refresh(ctx context.Context) error {
	_, err := s.Fetch(ctx, true)
	return err
}

// Record appends an audit entry via POST /log_access.
func (s *Service) Record(ctx context.Context, req WriteRequest) error {
	if err := s.api.Post(ctx, "/log_access", req, nil); err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

// Resolve transitions a flagged entry to Resolved or Dismissed, then
// unconditionally re-fetches the feed. There is no optimistic local
// mutation: the filtered view drops the entry when the fresh list arrives.
func (s *Service) Resolve(ctx context.Context, logID, newStatus string) error {
	if newStatus != StatusResolved && newStatus != StatusDismissed {
		return fmt.Errorf("resolve status must be %s or %s, got %q", StatusResolved, StatusDismissed, newStatus)
	}

	body := map[string]string{"log_id": logID, "status": newStatus}
	if err := s.api.Post(ctx, "/update_log_status", body, nil); err != nil {
		return fmt.Errorf("update log status: %w", err)
	}

	if err := s.Refresh(ctx); err != nil {
		// The update itself landed; a failed refresh only delays the view.
		s.log.Debug().Err(err).Msg("post-resolve refresh failed")
	}
	return nil
}
