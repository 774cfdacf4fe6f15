package auditlog

import "strings"

// The presenter is a pure function of a fetched entry slice: date-range
// and status filters plus fixed-page-size slicing, all client-side.

// FilterByDateRange keeps entries whose date portion falls inside the
// inclusive [start, end] range. Bounds are "YYYY-MM-DD" strings compared
// in ISO order; an empty bound leaves that side open.
func FilterByDateRange(entries []Entry, start, end string) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		d := e.Date()
		if start != "" && d < start {
			continue
		}
		if end != "" && d > end {
			continue
		}
		out = append(out, e)
	}
	return out
}

// IsFlagged reports whether a status belongs in the flagged-events view.
// Handled entries (reviewed/resolved/dismissed) are excluded even when the
// status text still mentions the original denial.
func IsFlagged(status string) bool {
	s := strings.ToLower(status)
	if strings.Contains(s, "reviewed") || strings.Contains(s, "resolved") || strings.Contains(s, "dismissed") {
		return false
	}
	return strings.Contains(s, "denied") ||
		strings.Contains(s, "flagged") ||
		strings.Contains(s, "fail") ||
		strings.Contains(s, "alert")
}

// FlaggedView filters entries down to unhandled security events.
func FlaggedView(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if IsFlagged(e.Status) {
			out = append(out, e)
		}
	}
	return out
}

// Paginate returns the 1-based page of entries with the given page size.
// Out-of-range pages come back empty.
func Paginate(entries []Entry, page, pageSize int) []Entry {
	if page < 1 || pageSize < 1 {
		return nil
	}
	lo := (page - 1) * pageSize
	if lo >= len(entries) {
		return nil
	}
	hi := lo + pageSize
	if hi > len(entries) {
		hi = len(entries)
	}
	return entries[lo:hi]
}

// TotalPages returns how many pages the entry list spans.
func TotalPages(total, pageSize int) int {
	if pageSize < 1 || total < 1 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
