// Package identity drives the login/OTP handshake against the backend.
// The bearer tokens themselves come from the external identity provider;
// these calls only establish who the actor is and verify the emailed OTP.
package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/medtrust/console/internal/platform/api"
)

type User struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// LoginResult carries the OTP session handle issued on a successful login.
type LoginResult struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Error     string `json:"error"`
}

type Service struct {
	api *api.Client
	log zerolog.Logger
}

func NewService(client *api.Client, logger zerolog.Logger) *Service {
	return &Service{api: client, log: logger}
}

// Login starts the OTP flow. The backend emails a one-time code and
// returns a session id for the verify step.
func (s *Service) Login(ctx context.Context, name, role, email string) (*LoginResult, error) {
	name = strings.TrimSpace(name)
	role = strings.ToLower(strings.TrimSpace(role))
	email = strings.TrimSpace(email)
	if name == "" || role == "" || email == "" {
		return nil, fmt.Errorf("name, role, and email are required")
	}
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email format: %q", email)
	}

	body := map[string]string{"name": name, "role": role, "email": email}
	var out LoginResult
	if err := s.api.Post(ctx, "/user_login", body, &out); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &out, nil
}

// VerifyOTP checks the emailed code. A false return with nil error is a
// wrong or expired code, not a failure of the call itself.
func (s *Service) VerifyOTP(ctx context.Context, sessionID, otp string) (bool, error) {
	body := map[string]string{"session_id": sessionID, "otp": otp}
	var out struct {
		Verified bool   `json:"verified"`
		Error    string `json:"error"`
	}
	if err := s.api.Post(ctx, "/verify_otp", body, &out); err != nil {
		return false, fmt.Errorf("verify otp: %w", err)
	}
	if !out.Verified && out.Error != "" {
		s.log.Debug().Str("reason", out.Error).Msg("otp rejected")
	}
	return out.Verified, nil
}

// ResendOTP asks for a new code on an existing session.
func (s *Service) ResendOTP(ctx context.Context, sessionID string) error {
	body := map[string]string{"session_id": sessionID}
	var out struct {
		Sent  bool   `json:"sent"`
		Error string `json:"error"`
	}
	if err := s.api.Post(ctx, "/resend_otp", body, &out); err != nil {
		return fmt.Errorf("resend otp: %w", err)
	}
	if !out.Sent {
		return fmt.Errorf("resend otp: %s", out.Error)
	}
	return nil
}
