package clinical

import (
	"testing"
	"time"

	"github.com/ehr/portal/pkg/badge"
)

func TestSeverityTone(t *testing.T) {
	tests := map[Severity]badge.Tone{
		SeverityMild:     badge.ToneSecondary,
		SeverityModerate: badge.ToneWarning,
		SeveritySevere:   badge.ToneDestructive,
		SeverityCritical: badge.ToneDestructive,
	}
	for s, want := range tests {
		if got := SeverityTone(s); got != want {
			t.Errorf("SeverityTone(%s) = %s, want %s", s, got, want)
		}
	}
}

func TestStatusTone(t *testing.T) {
	tests := map[Status]badge.Tone{
		StatusConfirmed:   badge.ToneDestructive,
		StatusProvisional: badge.ToneWarning,
		StatusChronic:     badge.ToneSecondary,
		StatusResolved:    badge.ToneSuccess,
	}
	for s, want := range tests {
		if got := StatusTone(s); got != want {
			t.Errorf("StatusTone(%s) = %s, want %s", s, got, want)
		}
	}
}

func TestNewView(t *testing.T) {
	d := &Diagnosis{
		Date:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Severity: SeveritySevere,
		Status:   StatusChronic,
	}
	v := NewView(d)
	if v.DisplayDate != "Mar 1, 2024" {
		t.Errorf("expected Mar 1, 2024, got %s", v.DisplayDate)
	}
	if v.SeverityBadge.Label != "Severe" || v.SeverityBadge.Tone != badge.ToneDestructive {
		t.Errorf("unexpected severity badge %+v", v.SeverityBadge)
	}
	if v.StatusBadge.Label != "Chronic" {
		t.Errorf("unexpected status badge %+v", v.StatusBadge)
	}
}

func TestDiagnosis_Urgent(t *testing.T) {
	for s, want := range map[Severity]bool{SeverityMild: false, SeverityModerate: false, SeveritySevere: true, SeverityCritical: true} {
		d := &Diagnosis{Severity: s}
		if d.Urgent() != want {
			t.Errorf("Urgent() for %s = %v", s, d.Urgent())
		}
	}
}
