// Package network tracks the caller's network classification: public IP
// and whether the caller sits inside the trusted hospital network. The
// classification itself is entirely server-side; this is a read-only view.
package network

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/medtrust/console/internal/platform/api"
)

// Status is the backend's answer from GET /ip_check.
type Status struct {
	IPAddress     string `json:"ip"`
	InsideNetwork bool   `json:"inside_network"`
}

type Service struct {
	api *api.Client
	log zerolog.Logger

	mu      sync.Mutex
	current Status
	known   bool
}

func NewService(client *api.Client, logger zerolog.Logger) *Service {
	return &Service{api: client, log: logger}
}

// Refresh re-classifies the caller. On failure the status degrades to
// outside-network with an unavailable address, which is the safe default
// for every precondition gate.
func (s *Service) Refresh(ctx context.Context) (Status, error) {
	var st Status
	if err := s.api.GetOpen(ctx, "/ip_check", &st); err != nil {
		s.log.Debug().Err(err).Msg("ip check failed")
		st = Status{IPAddress: "Unavailable", InsideNetwork: false}
		s.set(st)
		return st, err
	}
	s.set(st)
	return st, nil
}

// Current returns the last known status. Before the first successful
// refresh it reports outside-network.
func (s *Service) Current() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.known {
		return Status{IPAddress: "Unavailable", InsideNetwork: false}
	}
	return s.current
}

func (s *Service) set(st Status) {
	s.mu.Lock()
	s.current = st
	s.known = true
	s.mu.Unlock()
}
