package portal

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/portal/internal/domain/clinical"
	"github.com/ehr/portal/internal/domain/diagnostics"
	"github.com/ehr/portal/internal/domain/medication"
)

func TestDeriveTasks_FollowUps(t *testing.T) {
	diagnoses := []*clinical.Diagnosis{
		{ID: uuid.New(), Condition: "Flu", Severity: clinical.SeverityMild, FollowUpRequired: true},
		{ID: uuid.New(), Condition: "Sepsis", Severity: clinical.SeverityCritical, FollowUpRequired: true},
		{ID: uuid.New(), Condition: "Sprain", Severity: clinical.SeveritySevere},
	}
	tasks := DeriveTasks(diagnoses, nil, nil, fixedNow, time.UTC)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 follow-ups, got %d", len(tasks))
	}
	if tasks[0].Title != "Follow-up: Sepsis" || !tasks[0].Urgent || tasks[0].Priority.Label != "Urgent" {
		t.Errorf("expected urgent sepsis first, got %+v", tasks[0])
	}
	if tasks[1].Urgent || tasks[1].Priority.Label != "Normal" {
		t.Errorf("mild follow-up should be normal, got %+v", tasks[1])
	}
}

func TestDeriveTasks_Prescriptions(t *testing.T) {
	tests := []struct {
		name       string
		validUntil time.Time
		want       bool
		urgent     bool
	}{
		{"expires tomorrow", day(2024, 6, 11), true, true},
		{"expires in two days", day(2024, 6, 12), true, true},
		{"expires in five days", day(2024, 6, 15), true, false},
		{"valid", day(2024, 7, 1), false, false},
		{"expired", day(2024, 6, 9), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := []*medication.Prescription{{ID: uuid.New(), ValidUntil: tt.validUntil}}
			tasks := DeriveTasks(nil, ps, nil, fixedNow, time.UTC)
			if (len(tasks) == 1) != tt.want {
				t.Fatalf("expected task=%v, got %+v", tt.want, tasks)
			}
			if tt.want && tasks[0].Urgent != tt.urgent {
				t.Errorf("expected urgent=%v, got %v", tt.urgent, tasks[0].Urgent)
			}
		})
	}

	tasks := DeriveTasks(nil, []*medication.Prescription{{ValidUntil: day(2024, 6, 11)}}, nil, fixedNow, time.UTC)
	if tasks[0].Title != "Prescription expires Tomorrow" {
		t.Errorf("unexpected title %q", tasks[0].Title)
	}
}

func TestDeriveTasks_LabReports(t *testing.T) {
	reports := []*diagnostics.LabReport{
		{ID: uuid.New(), TestType: "MRI", Status: diagnostics.StatusPending},
		{ID: uuid.New(), TestType: "ECG", Status: diagnostics.StatusNormal},
		{ID: uuid.New(), TestType: "X-Ray", Status: diagnostics.StatusAbnormal},
	}
	tasks := DeriveTasks(nil, nil, reports, fixedNow, time.UTC)
	if len(tasks) != 2 {
		t.Fatalf("normal results need no task, got %+v", tasks)
	}
	if tasks[0].Title != "Abnormal X-Ray" || !tasks[0].Urgent {
		t.Errorf("expected urgent abnormal report first, got %+v", tasks[0])
	}
	if tasks[1].Title != "Review MRI" || tasks[1].Urgent || tasks[1].Kind != TaskLabReport {
		t.Errorf("pending report should be a normal task, got %+v", tasks[1])
	}
}

func TestDeriveTasks_Empty(t *testing.T) {
	tasks := DeriveTasks(nil, nil, nil, fixedNow, time.UTC)
	if tasks == nil || len(tasks) != 0 {
		t.Errorf("expected an empty non-nil list, got %v", tasks)
	}
}

func TestRecentPatients_Dedupes(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	ds := []*clinical.Diagnosis{{PatientID: a}, {PatientID: a}, {PatientID: b}}
	got := recentPatients(ds, 5)
	if len(got) != 2 || got[0] != ds[0] || got[1] != ds[2] {
		t.Errorf("expected newest diagnosis per patient, got %v", got)
	}
	if got := recentPatients(ds, 1); len(got) != 1 {
		t.Errorf("expected limit to apply, got %d", len(got))
	}
}
