package identity

import (
	"strings"
	"time"
)

// FilterPatients returns the patients whose name or email contains query,
// ignoring case, or whose id contains it. A blank query matches nothing.
func FilterPatients(patients []*Patient, query string) []*Patient {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []*Patient{}
	}

	out := make([]*Patient, 0, len(patients))
	for _, p := range patients {
		if strings.Contains(strings.ToLower(p.FullName()), q) ||
			strings.Contains(strings.ToLower(p.Email), q) ||
			strings.Contains(p.ID.String(), q) {
			out = append(out, p)
		}
	}
	return out
}

// Summarize converts patients to search result rows.
func Summarize(patients []*Patient, now time.Time) []PatientSummary {
	out := make([]PatientSummary, 0, len(patients))
	for _, p := range patients {
		s := PatientSummary{
			ID:    p.ID,
			Name:  p.FullName(),
			Email: p.Email,
			Age:   Age(p.DateOfBirth, now),
		}
		if p.BloodGroup != nil {
			s.BloodGroup = *p.BloodGroup
		}
		out = append(out, s)
	}
	return out
}
