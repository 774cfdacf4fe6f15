package sandbox

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any, inside bool) (*http.Response, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if !inside {
		req.Header.Set("X-Inside-Network", "false")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func getJSON(t *testing.T, url string, inside bool) map[string]any {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if !inside {
		req.Header.Set("X-Inside-Network", "false")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return decoded
}

func trustOf(t *testing.T, srv *httptest.Server, name string) int {
	t.Helper()
	out := getJSON(t, srv.URL+"/trust_score/"+name, true)
	return int(out["trust_score"].(float64))
}

func TestIPCheckFollowsHeader(t *testing.T) {
	srv := newTestServer(t)

	out := getJSON(t, srv.URL+"/ip_check", true)
	assert.Equal(t, true, out["inside_network"])

	out = getJSON(t, srv.URL+"/ip_check", false)
	assert.Equal(t, false, out["inside_network"])
}

func TestNormalAccessTrustAdjustments(t *testing.T) {
	srv := newTestServer(t)
	body := accessRequest{Name: "Dr. Smith", Role: "doctor", PatientName: "Alice Johnson"}

	resp, out := postJSON(t, srv.URL+"/normal_access", body, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["success"])
	assert.NotEmpty(t, out["pdf_link"])
	assert.Equal(t, 52, trustOf(t, srv, "Dr. Smith"))

	resp, out = postJSON(t, srv.URL+"/normal_access", body, false)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, out["message"], "inside the hospital network")
	assert.Equal(t, 47, trustOf(t, srv, "Dr. Smith"))
}

func TestEmergencyAccessJustificationRules(t *testing.T) {
	srv := newTestServer(t)
	base := accessRequest{Name: "Dr. Smith", Role: "doctor", PatientName: "Alice Johnson"}

	// Missing justification.
	resp, _ := postJSON(t, srv.URL+"/emergency_access", base, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 48, trustOf(t, srv, "Dr. Smith"))

	// Suspicious justification.
	flagged := base
	flagged.Justification = "just checking something"
	resp, out := postJSON(t, srv.URL+"/emergency_access", flagged, true)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, out["message"], "flagged")
	assert.Equal(t, 38, trustOf(t, srv, "Dr. Smith"))

	// Genuine emergency.
	genuine := base
	genuine.Justification = "patient unresponsive in ER, need medication history"
	resp, out = postJSON(t, srv.URL+"/emergency_access", genuine, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, 41, trustOf(t, srv, "Dr. Smith"))
}

func TestRestrictedAccessRules(t *testing.T) {
	srv := newTestServer(t)
	base := accessRequest{Name: "Dr. Smith", Role: "doctor", PatientName: "Alice Johnson"}

	// Outside the network a justification is mandatory.
	resp, out := postJSON(t, srv.URL+"/restricted_access", base, false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out["message"], "requires a justification")

	outside := base
	outside.Justification = "remote consult for post-op follow-up"
	resp, out = postJSON(t, srv.URL+"/restricted_access", outside, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, 52, trustOf(t, srv, "Dr. Smith"))

	// Inside the network the grant is worth less.
	resp, _ = postJSON(t, srv.URL+"/restricted_access", outside, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 53, trustOf(t, srv, "Dr. Smith"))

	flagged := base
	flagged.Justification = "no reason really"
	resp, out = postJSON(t, srv.URL+"/restricted_access", flagged, false)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, out["message"], "flagged")
	assert.Equal(t, 50, trustOf(t, srv, "Dr. Smith"))
}

func TestTemporaryAccessNurseOnly(t *testing.T) {
	srv := newTestServer(t)

	resp, out := postJSON(t, srv.URL+"/request_temp_access",
		accessRequest{Name: "Dr. Smith", Role: "doctor", PatientName: "Alice Johnson"}, true)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, out["message"], "Only nurses")

	resp, out = postJSON(t, srv.URL+"/request_temp_access",
		accessRequest{Name: "Nina Patel", Role: "nurse", PatientName: "Alice Johnson"}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, 51, trustOf(t, srv, "Nina Patel"))
}

func TestPrecheckTiers(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		justification string
		want          string
	}{
		{"meds", "insufficient"},
		{"checking patient meds", "weak"},
		{"reviewing post-operative labs ahead of tomorrow's consult", "valid"},
		{"testing if this account still works for record lookups", "weak"},
	}
	for _, tc := range cases {
		_, out := postJSON(t, srv.URL+"/api/access/precheck",
			map[string]string{"justification": tc.justification}, true)
		assert.Equal(t, tc.want, out["status"], "justification %q", tc.justification)
	}
}

func TestLogRecordFeedAndResolve(t *testing.T) {
	srv := newTestServer(t)

	_, out := postJSON(t, srv.URL+"/log_access", map[string]string{
		"name": "Dr. Smith", "role": "doctor",
		"doctor_name": "Dr. Smith", "doctor_role": "doctor",
		"patient_name": "Alice Johnson", "action": "EMERGENCY Access",
		"justification": "flagged attempt", "status": "Denied",
	}, true)
	require.Equal(t, true, out["success"])
	logID := out["id"].(string)

	feed := getJSON(t, srv.URL+"/doctor_access_logs/Dr.%20Smith", true)
	rows := feed["logs"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "Denied", rows[0].(map[string]any)["status"])

	resp, _ := postJSON(t, srv.URL+"/update_log_status",
		map[string]string{"log_id": logID, "status": "Resolved"}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	feed = getJSON(t, srv.URL+"/doctor_access_logs/Dr.%20Smith", true)
	rows = feed["logs"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "Resolved", rows[0].(map[string]any)["status"])

	// Unknown id.
	resp, _ = postJSON(t, srv.URL+"/update_log_status",
		map[string]string{"log_id": "nope", "status": "Resolved"}, true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPatientEndpoints(t *testing.T) {
	srv := newTestServer(t)

	out := getJSON(t, srv.URL+"/all_patients", true)
	require.Equal(t, true, out["success"])
	assert.Len(t, out["patients"].([]any), 5)

	out = getJSON(t, srv.URL+"/get_patient/alice%20johnson", true)
	require.Equal(t, true, out["success"])
	assert.Equal(t, "Alice Johnson", out["patient"].(map[string]any)["name"])

	resp, out := postJSON(t, srv.URL+"/update_patient", map[string]any{
		"patient_name": "Alice Johnson",
		"updated_by":   "Dr. Smith",
		"updates": map[string]string{
			"diagnosis": "Type 2 diabetes, well controlled",
			"treatment": "Metformin 500mg",
			"notes":     "HbA1c 6.4",
		},
	}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["success"])

	out = getJSON(t, srv.URL+"/get_patient/alice%20johnson", true)
	assert.Equal(t, "Type 2 diabetes, well controlled", out["patient"].(map[string]any)["diagnosis"])

	// Diagnosis is mandatory on update.
	resp, _ = postJSON(t, srv.URL+"/update_patient", map[string]any{
		"patient_name": "Alice Johnson",
		"updates":      map[string]string{"treatment": "none"},
	}, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPatientListPagination(t *testing.T) {
	srv := newTestServer(t)

	out := getJSON(t, srv.URL+"/all_patients?limit=2&offset=2", true)
	require.Equal(t, true, out["success"])
	assert.Len(t, out["patients"].([]any), 2)
	assert.Equal(t, float64(5), out["total"])
	assert.Equal(t, float64(2), out["limit"])
	assert.Equal(t, float64(2), out["offset"])
	assert.Equal(t, true, out["has_more"])
	assert.Equal(t, float64(4), out["next_offset"])
	assert.Equal(t, float64(0), out["prev_offset"])

	out = getJSON(t, srv.URL+"/all_patients?limit=2&offset=4", true)
	assert.Len(t, out["patients"].([]any), 1)
	assert.Equal(t, false, out["has_more"])
	_, hasNext := out["next_offset"]
	assert.False(t, hasNext)
	assert.Equal(t, float64(2), out["prev_offset"])
}

func TestLoginOTPFlow(t *testing.T) {
	srv := newTestServer(t)

	resp, out := postJSON(t, srv.URL+"/user_login",
		map[string]string{"name": "Dr. Smith", "role": "doctor", "email": "smith@hospital.org"}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, out["success"])
	sessionID := out["session_id"].(string)

	resp, out = postJSON(t, srv.URL+"/verify_otp",
		map[string]string{"session_id": sessionID, "otp": "000000"}, true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, out["verified"])

	_, out = postJSON(t, srv.URL+"/resend_otp", map[string]string{"session_id": sessionID}, true)
	assert.Equal(t, true, out["sent"])

	resp, out = postJSON(t, srv.URL+"/verify_otp",
		map[string]string{"session_id": sessionID, "otp": SandboxOTP}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["verified"])

	// Bad email rejected up front.
	resp, _ = postJSON(t, srv.URL+"/user_login",
		map[string]string{"name": "Dr. Smith", "role": "doctor", "email": "not-an-email"}, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTrustClampsAtZero(t *testing.T) {
	srv := newTestServer(t)
	flagged := accessRequest{Name: "Mallory", Role: "doctor", PatientName: "Alice Johnson", Justification: "just checking"}

	for i := 0; i < 6; i++ {
		postJSON(t, srv.URL+"/emergency_access", flagged, true)
	}
	assert.Equal(t, 0, trustOf(t, srv, "Mallory"))
}
