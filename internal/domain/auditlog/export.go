package auditlog

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Export is a pure serialization step with no network dependency: the
// caller hands over the (already filtered) entries and an io.Writer.

var csvHeader = []string{
	"Timestamp",
	"Doctor Name",
	"Doctor Role",
	"Patient Name",
	"Action",
	"Status",
}

// ExportCSV writes the entries with a fixed column order. Every data field
// is quoted regardless of content; that is the exchange format downstream
// tooling expects, so encoding/csv's minimal quoting is not used.
func ExportCSV(w io.Writer, entries []Entry) error {
	if _, err := io.WriteString(w, strings.Join(csvHeader, ",")+"\n"); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range entries {
		row := []string{e.Timestamp, e.ActorName, e.ActorRole, e.PatientName, e.Action, e.Status}
		for i, cell := range row {
			row[i] = `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
		}
		if _, err := io.WriteString(w, strings.Join(row, ",")+"\n"); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	return nil
}

// Summary is the computed roll-up included in JSON reports.
type Summary struct {
	TotalAccessAttempts int     `json:"total_access_attempts"`
	GrantedAccess       int     `json:"granted_access"`
	DeniedAccess        int     `json:"denied_access"`
	FlaggedAccess       int     `json:"flagged_access"`
	SuccessRate         float64 `json:"success_rate"`
}

// BuildSummary counts outcomes. "Granted" covers the backend's Granted,
// Approved, and Success spellings.
func BuildSummary(entries []Entry) Summary {
	s := Summary{TotalAccessAttempts: len(entries)}
	for _, e := range entries {
		switch e.Status {
		case StatusGranted, StatusApproved, StatusSuccess:
			s.GrantedAccess++
		case StatusDenied:
			s.DeniedAccess++
		case StatusFlagged:
			s.FlaggedAccess++
		}
	}
	if len(entries) > 0 {
		s.SuccessRate = float64(s.GrantedAccess) / float64(len(entries)) * 100
	}
	return s
}

// Report is the JSON export envelope.
type Report struct {
	ExportDate string  `json:"export_date"`
	TotalLogs  int     `json:"total_logs"`
	Logs       []Entry `json:"logs"`
	Summary    Summary `json:"summary"`
}

// ExportJSON writes an indented JSON report with the computed summary.
func ExportJSON(w io.Writer, entries []Entry, now time.Time) error {
	report := Report{
		ExportDate: now.UTC().Format(time.RFC3339),
		TotalLogs:  len(entries),
		Logs:       entries,
		Summary:    BuildSummary(entries),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}
	return nil
}
