package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/medtrust/console/internal/platform/api"
)

func TestLoginValidation(t *testing.T) {
	svc := NewService(api.New("http://localhost:0", zerolog.Nop()), zerolog.Nop())
	ctx := context.Background()

	cases := []struct {
		name, role, email string
	}{
		{"", "doctor", "a@b.com"},
		{"Dr. Smith", "", "a@b.com"},
		{"Dr. Smith", "doctor", ""},
		{"Dr. Smith", "doctor", "not-an-email"},
	}
	for _, tc := range cases {
		if _, err := svc.Login(ctx, tc.name, tc.role, tc.email); err == nil {
			t.Errorf("Login(%q, %q, %q) succeeded, want validation error", tc.name, tc.role, tc.email)
		}
	}
}

func TestLoginReturnsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user_login" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["role"] != "doctor" {
			t.Errorf("role %q not lowercased", body["role"])
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true, "session_id": "sess-1", "message": "OTP sent"}`))
	}))
	defer srv.Close()

	svc := NewService(api.New(srv.URL, zerolog.Nop()), zerolog.Nop())
	res, err := svc.Login(context.Background(), "Dr. Smith", "Doctor", "smith@hospital.org")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !res.Success || res.SessionID != "sess-1" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestVerifyOTP(t *testing.T) {
	verified := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if verified {
			w.Write([]byte(`{"verified": true}`))
		} else {
			w.Write([]byte(`{"verified": false, "error": "incorrect OTP"}`))
		}
	}))
	defer srv.Close()

	svc := NewService(api.New(srv.URL, zerolog.Nop()), zerolog.Nop())

	ok, err := svc.VerifyOTP(context.Background(), "sess-1", "000000")
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if ok {
		t.Error("wrong code must not verify")
	}

	verified = true
	ok, err = svc.VerifyOTP(context.Background(), "sess-1", "123456")
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if !ok {
		t.Error("correct code must verify")
	}
}

func TestResendOTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sent": false, "error": "unknown session"}`))
	}))
	defer srv.Close()

	svc := NewService(api.New(srv.URL, zerolog.Nop()), zerolog.Nop())
	if err := svc.ResendOTP(context.Background(), "stale"); err == nil {
		t.Error("expected error when the backend reports sent=false")
	}
}
