package network

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/medtrust/console/internal/platform/api"
)

func TestRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ip_check" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ip": "10.0.0.7", "inside_network": true}`))
	}))
	defer srv.Close()

	svc := NewService(api.New(srv.URL, zerolog.Nop()), zerolog.Nop())

	st, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if st.IPAddress != "10.0.0.7" || !st.InsideNetwork {
		t.Errorf("unexpected status %+v", st)
	}
	if got := svc.Current(); got != st {
		t.Errorf("Current() = %+v, want %+v", got, st)
	}
}

func TestRefreshFailureDegradesToOutside(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ip": "10.0.0.7", "inside_network": true}`))
	}))

	svc := NewService(api.New(srv.URL, zerolog.Nop()), zerolog.Nop())
	if _, err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	srv.Close()

	st, err := svc.Refresh(context.Background())
	if err == nil {
		t.Fatal("expected error after server went away")
	}
	if st.InsideNetwork {
		t.Error("failed refresh must report outside-network")
	}
	if st.IPAddress != "Unavailable" {
		t.Errorf("IPAddress = %q, want Unavailable", st.IPAddress)
	}
	if svc.Current().InsideNetwork {
		t.Error("Current() must track the degraded status")
	}
}

func TestCurrentBeforeFirstRefresh(t *testing.T) {
	svc := NewService(api.New("http://localhost:0", zerolog.Nop()), zerolog.Nop())
	st := svc.Current()
	if st.InsideNetwork {
		t.Error("unknown position must report outside-network")
	}
}
