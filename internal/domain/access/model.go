package access

import (
	"fmt"
	"strings"
)

// Tier is one of the four access tiers. Each tier maps to its own backend
// endpoint and carries its own precondition set.
type Tier string

const (
	TierNormal     Tier = "normal"
	TierRestricted Tier = "restricted"
	TierEmergency  Tier = "emergency"
	TierTemporary  Tier = "temporary"
)

func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierNormal:
		return TierNormal, nil
	case TierRestricted:
		return TierRestricted, nil
	case TierEmergency:
		return TierEmergency, nil
	case TierTemporary:
		return TierTemporary, nil
	}
	return "", fmt.Errorf("unknown access tier %q", s)
}

// Endpoint returns the backend path for the tier's primary call.
func (t Tier) Endpoint() string {
	if t == TierTemporary {
		return "/request_temp_access"
	}
	return "/" + string(t) + "_access"
}

// Action is the audit-log action label for an attempt at this tier.
func (t Tier) Action() string {
	return strings.ToUpper(string(t)) + " Access"
}

// RequiresJustification reports whether the tier demands a justification
// before submission. Only break-glass (emergency) access does; for the
// other tiers free-text reasons are optional.
func (t Tier) RequiresJustification() bool {
	return t == TierEmergency
}

// Request is the transient value sent for one access attempt. It is
// constructed fresh per attempt and never persisted client-side.
type Request struct {
	ActorName     string `json:"name"`
	ActorRole     string `json:"role"`
	PatientName   string `json:"patient_name"`
	Justification string `json:"justification,omitempty"`
}

// Response is the settled outcome of an access attempt. PatientData is
// present only when the tier grants detail; the backend decorates Message
// with a leading symbol which the notifier strips before display.
type Response struct {
	Success     bool           `json:"success"`
	Message     string         `json:"message"`
	PatientData map[string]any `json:"patient_data,omitempty"`
	PDFLink     string         `json:"pdf_link,omitempty"`
}

// State of the per-patient request context.
type State int

const (
	StateIdle State = iota
	StateCollecting
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCollecting:
		return "collecting-justification"
	case StateSubmitting:
		return "submitting"
	}
	return fmt.Sprintf("state(%d)", int(s))
}
