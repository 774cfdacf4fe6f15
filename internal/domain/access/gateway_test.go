package access

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtrust/console/internal/platform/api"
)

func TestAPIGatewayDecodesDenialBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/restricted_access", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"success": false, "message": "❌ Access denied: trust score too low"}`))
	}))
	defer srv.Close()

	gw := NewAPIGateway(api.New(srv.URL, zerolog.Nop()))
	resp, err := gw.RequestAccess(context.Background(), TierRestricted, Request{
		ActorName:   "Dr. Smith",
		ActorRole:   "doctor",
		PatientName: "Alice",
	})
	require.NoError(t, err, "a 4xx denial with a readable body settles the attempt")
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "trust score too low")
}

func TestAPIGatewayServerFailureIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	gw := NewAPIGateway(api.New(srv.URL, zerolog.Nop()))
	resp, err := gw.RequestAccess(context.Background(), TierNormal, Request{
		ActorName:   "Dr. Smith",
		ActorRole:   "doctor",
		PatientName: "Alice",
	})
	require.Error(t, err)
	assert.Nil(t, resp)
}

func TestAPIGatewayPrecheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/access/precheck", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "weak", "message": "Add more detail"}`))
	}))
	defer srv.Close()

	gw := NewAPIGateway(api.New(srv.URL, zerolog.Nop()))
	adv, err := gw.Precheck(context.Background(), "checking")
	require.NoError(t, err)
	assert.Equal(t, AdvisoryWeak, adv.Status)
}
