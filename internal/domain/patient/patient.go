// Package patient reads and updates patient records through the backend's
// patient endpoints. Record contents are opaque clinical data to the
// console; it never interprets diagnosis text.
package patient

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/medtrust/console/internal/platform/api"
	"github.com/medtrust/console/internal/platform/poll"
)

type Patient struct {
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Age       int    `json:"age,omitempty"`
	Gender    string `json:"gender,omitempty"`
	Diagnosis string `json:"diagnosis,omitempty"`
	Treatment string `json:"treatment,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// RecordUpdate is the editable portion of a record.
type RecordUpdate struct {
	Diagnosis string `json:"diagnosis"`
	Treatment string `json:"treatment"`
	Notes     string `json:"notes"`
}

type Service struct {
	api *api.Client
	log zerolog.Logger

	guard poll.Guard
	mu    sync.Mutex
	list  []Patient
}

func NewService(client *api.Client, logger zerolog.Logger) *Service {
	return &Service{api: client, log: logger}
}

// List fetches all patients, coalescing concurrent and repeat calls
// through the fetch guard.
func (s *Service) List(ctx context.Context, force bool) ([]Patient, error) {
	if !s.guard.TryStart(force) {
		return s.cached(), nil
	}

	var out struct {
		Success  bool      `json:"success"`
		Patients []Patient `json:"patients"`
	}
	if err := s.api.Get(ctx, "/all_patients", &out); err != nil {
		s.guard.Finish(false)
		return nil, fmt.Errorf("fetch patients: %w", err)
	}

	s.mu.Lock()
	s.list = out.Patients
	s.mu.Unlock()
	s.guard.Finish(true)
	return out.Patients, nil
}

func (s *Service) cached() []Patient {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Patient, len(s.list))
	copy(out, s.list)
	return out
}

// Get fetches one patient's detail. Patient lookup keys are lowercase on
// the server.
func (s *Service) Get(ctx context.Context, name string) (*Patient, error) {
	path := "/get_patient/" + url.PathEscape(strings.ToLower(strings.TrimSpace(name)))
	var out struct {
		Success bool     `json:"success"`
		Patient *Patient `json:"patient"`
	}
	if err := s.api.Get(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("fetch patient %q: %w", name, err)
	}
	if !out.Success || out.Patient == nil {
		return nil, fmt.Errorf("patient %q not found", name)
	}
	return out.Patient, nil
}

// Update writes the medical record fields. Diagnosis is mandatory.
func (s *Service) Update(ctx context.Context, patientName, updatedBy string, upd RecordUpdate) (*Patient, error) {
	if strings.TrimSpace(upd.Diagnosis) == "" {
		return nil, fmt.Errorf("diagnosis is required")
	}

	body := struct {
		PatientName string       `json:"patient_name"`
		UpdatedBy   string       `json:"updated_by"`
		Updates     RecordUpdate `json:"updates"`
	}{PatientName: patientName, UpdatedBy: updatedBy, Updates: upd}

	var out struct {
		Success bool     `json:"success"`
		Message string   `json:"message"`
		Patient *Patient `json:"patient"`
	}
	if err := s.api.Post(ctx, "/update_patient", body, &out); err != nil {
		return nil, fmt.Errorf("update patient: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("update patient: %s", out.Message)
	}
	return out.Patient, nil
}

// Add registers a new patient. Name and diagnosis are mandatory; the
// cached list is invalidated so the next List picks the patient up.
func (s *Service) Add(ctx context.Context, p Patient) (*Patient, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("patient name is required")
	}
	if strings.TrimSpace(p.Diagnosis) == "" {
		return nil, fmt.Errorf("diagnosis is required")
	}

	var out struct {
		Success bool     `json:"success"`
		Message string   `json:"message"`
		Patient *Patient `json:"patient"`
	}
	if err := s.api.Post(ctx, "/add_patient", p, &out); err != nil {
		return nil, fmt.Errorf("add patient: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("add patient: %s", out.Message)
	}

	s.guard.Reset()

	if out.Patient != nil {
		return out.Patient, nil
	}
	return &p, nil
}

// ResolvePDFLink turns a server-relative report link into an absolute URL
// against the API base. Absolute links pass through untouched.
func ResolvePDFLink(baseURL, link string) string {
	if link == "" {
		return ""
	}
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(link, "/")
}
