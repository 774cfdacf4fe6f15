// Package sandbox runs an in-memory rendition of the MedTrust backend so
// the console can be exercised without the real server: synthetic patients,
// per-actor trust scores with the production adjustment rules, an audit
// log store, and the OTP login flow.
package sandbox

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

const (
	defaultTrustScore = 50
	timestampLayout   = "2006-01-02 15:04:05"

	// The OTP every sandbox session accepts.
	SandboxOTP = "123456"
)

type patientRecord struct {
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Age       int    `json:"age,omitempty"`
	Gender    string `json:"gender,omitempty"`
	Diagnosis string `json:"diagnosis,omitempty"`
	Treatment string `json:"treatment,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

type logRow struct {
	ID            string `json:"id"`
	Timestamp     string `json:"timestamp"`
	DoctorName    string `json:"doctor_name"`
	DoctorRole    string `json:"doctor_role"`
	PatientName   string `json:"patient_name"`
	Action        string `json:"action"`
	Justification string `json:"justification"`
	Status        string `json:"status"`
}

// Server holds the sandbox state behind one mutex. All state is lost on
// shutdown; the sandbox exists for demos and tests, not persistence.
type Server struct {
	echo *echo.Echo
	log  zerolog.Logger
	now  func() time.Time

	mu       sync.Mutex
	trust    map[string]int
	patients map[string]*patientRecord
	logs     []logRow
	sessions map[string]string
}

func New(log zerolog.Logger) *Server {
	s := &Server{
		log:      log.With().Str("component", "sandbox").Logger(),
		now:      time.Now,
		trust:    make(map[string]int),
		patients: make(map[string]*patientRecord),
		sessions: make(map[string]string),
	}
	s.seed()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	s.routes(e)
	s.echo = e
	return s
}

func (s *Server) seed() {
	for _, p := range []*patientRecord{
		{Name: "Alice Johnson", Email: "alice.johnson@example.com", Age: 34, Gender: "female", Diagnosis: "Type 2 diabetes", Treatment: "Metformin 500mg", Notes: "Quarterly HbA1c review"},
		{Name: "Bob Martinez", Email: "bob.martinez@example.com", Age: 61, Gender: "male", Diagnosis: "Hypertension", Treatment: "Lisinopril 10mg", Notes: "Home BP log requested"},
		{Name: "Carol White", Email: "carol.white@example.com", Age: 47, Gender: "female", Diagnosis: "Asthma", Treatment: "Albuterol inhaler", Notes: ""},
		{Name: "David Kim", Email: "david.kim@example.com", Age: 29, Gender: "male", Diagnosis: "Post-op knee reconstruction", Treatment: "Physiotherapy", Notes: "Week 6 of rehab"},
		{Name: "Eve Thompson", Email: "eve.thompson@example.com", Age: 52, Gender: "female", Diagnosis: "Migraine", Treatment: "Sumatriptan PRN", Notes: ""},
	} {
		s.patients[normalizeName(p.Name)] = p
	}
}

// Handler exposes the sandbox as an http.Handler for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves the sandbox on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.log.Info().Str("addr", addr).Msg("sandbox listening")
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) routes(e *echo.Echo) {
	e.GET("/ip_check", s.ipCheck)
	e.GET("/trust_score/:name", s.trustScore)

	e.POST("/normal_access", s.normalAccess)
	e.POST("/restricted_access", s.restrictedAccess)
	e.POST("/emergency_access", s.emergencyAccess)
	e.POST("/request_temp_access", s.temporaryAccess)
	e.POST("/api/access/precheck", s.precheck)

	e.POST("/log_access", s.recordLog)
	e.POST("/update_log_status", s.updateLogStatus)
	e.GET("/doctor_access_logs/:name", s.actorLogs("doctor"))
	e.GET("/nurse_access_logs/:name", s.actorLogs("nurse"))
	e.GET("/access_logs/admin", s.allLogs)
	e.GET("/all_doctor_access_logs", s.roleLogs("doctor"))
	e.GET("/all_nurse_access_logs", s.roleLogs("nurse"))
	e.GET("/patient_access_history/:name", s.patientHistory)

	e.GET("/all_patients", s.listPatients)
	e.GET("/get_patient/:name", s.getPatient)
	e.POST("/update_patient", s.updatePatient)
	e.POST("/add_patient", s.addPatient)

	e.POST("/user_login", s.login)
	e.POST("/verify_otp", s.verifyOTP)
	e.POST("/resend_otp", s.resendOTP)
}

// insideNetwork reports the caller's claimed network position. Real
// deployments infer this from the source address; the sandbox lets the
// caller assert it with a header so both positions are testable, and
// defaults to inside.
func insideNetwork(c echo.Context) bool {
	return c.Request().Header.Get("X-Inside-Network") != "false"
}

func (s *Server) trustOf(name string) int {
	if v, ok := s.trust[name]; ok {
		return v
	}
	return defaultTrustScore
}

func sortPatients(list []*patientRecord) {
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
}

// adjustTrust applies delta and clamps to [0, 100].
func (s *Server) adjustTrust(name string, delta int) int {
	v := s.trustOf(name) + delta
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	s.trust[name] = v
	return v
}
