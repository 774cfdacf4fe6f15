package auditlog

// TimestampLayout is the backend's timestamp format. It sorts and compares
// correctly as a plain string, which the date-range filter relies on.
const TimestampLayout = "2006-01-02 15:04:05"

// Entry statuses as the backend writes them. Flagged-view matching is
// substring based (see IsFlagged), so these are reference values rather
// than a closed set.
const (
	StatusSuccess   = "Success"
	StatusGranted   = "Granted"
	StatusApproved  = "Approved"
	StatusDenied    = "Denied"
	StatusFlagged   = "Flagged"
	StatusPending   = "Pending"
	StatusResolved  = "Resolved"
	StatusDismissed = "Dismissed"
)

// Entry is one recorded access attempt or administrative action. Entries
// are append-only from the client's perspective: status transitions happen
// via Service.Resolve and show up on the next fetch.
//
// The wire names keep the backend's historical doctor_* field names even
// though any staff role can be the actor.
type Entry struct {
	ID            string `json:"id,omitempty"`
	Timestamp     string `json:"timestamp"`
	ActorName     string `json:"doctor_name"`
	ActorRole     string `json:"doctor_role"`
	PatientName   string `json:"patient_name"`
	Action        string `json:"action"`
	Justification string `json:"justification,omitempty"`
	Status        string `json:"status"`
}

// Date returns the date portion of the timestamp ("2024-01-05").
func (e Entry) Date() string {
	if len(e.Timestamp) < 10 {
		return e.Timestamp
	}
	return e.Timestamp[:10]
}

// WriteRequest is the body of POST /log_access. The duplicated name/role
// pairs match what the backend accepts (it reads either).
type WriteRequest struct {
	Name          string `json:"name"`
	Role          string `json:"role"`
	ActorName     string `json:"doctor_name"`
	ActorRole     string `json:"doctor_role"`
	PatientName   string `json:"patient_name"`
	Action        string `json:"action"`
	Justification string `json:"justification"`
	Status        string `json:"status"`
}
