package portal

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/portal/internal/domain/clinical"
	"github.com/ehr/portal/internal/domain/diagnostics"
	"github.com/ehr/portal/internal/domain/medication"
	"github.com/ehr/portal/pkg/badge"
	"github.com/ehr/portal/pkg/dates"
)

// dashboardLimit is how many entries each dashboard list shows.
const dashboardLimit = 5

// taskScanLimit bounds how many recent records are scanned for tasks.
const taskScanLimit = 20

type TaskKind string

const (
	TaskFollowUp     TaskKind = "Follow-up"
	TaskPrescription TaskKind = "Prescription"
	TaskLabReport    TaskKind = "Lab Report"
)

// Task is a pending item on the doctor dashboard. Tasks are derived from
// recent records and never stored.
type Task struct {
	Kind        TaskKind     `json:"kind"`
	Title       string       `json:"title"`
	PatientID   uuid.UUID    `json:"patient_id"`
	PatientName string       `json:"patient_name,omitempty"`
	RecordID    uuid.UUID    `json:"record_id"`
	Urgent      bool         `json:"urgent"`
	Priority    *badge.Badge `json:"priority"`
}

func newTask(kind TaskKind, title string, patientID, recordID uuid.UUID, urgent bool) Task {
	priority := badge.New("Normal", badge.ToneSecondary)
	if urgent {
		priority = badge.New("Urgent", badge.ToneDestructive)
	}
	return Task{Kind: kind, Title: title, PatientID: patientID, RecordID: recordID, Urgent: urgent, Priority: priority}
}

// DeriveTasks turns recent records into pending tasks, urgent ones first.
//
//   - a diagnosis needing follow-up is urgent when severe or critical;
//   - a prescription that expires soon is urgent within UrgentExpiryDays;
//   - a pending lab report is a normal task, an abnormal one is urgent.
func DeriveTasks(diagnoses []*clinical.Diagnosis, prescriptions []*medication.Prescription, reports []*diagnostics.LabReport, now time.Time, loc *time.Location) []Task {
	tasks := []Task{}
	for _, d := range diagnoses {
		if !d.FollowUpRequired {
			continue
		}
		tasks = append(tasks, newTask(TaskFollowUp, "Follow-up: "+d.Condition, d.PatientID, d.ID, d.Urgent()))
	}
	for _, p := range prescriptions {
		validUntil := p.ValidUntil
		v := medication.ClassifyValidity(&validUntil, now, loc)
		if v == nil || v.Validity != medication.ValidityExpiresSoon {
			continue
		}
		title := fmt.Sprintf("Prescription expires %s", dates.RelativeDay(dates.DateOnly(p.ValidUntil), dates.Day(now, loc), time.UTC))
		tasks = append(tasks, newTask(TaskPrescription, title, p.PatientID, p.ID, v.DaysLeft <= medication.UrgentExpiryDays))
	}
	for _, r := range reports {
		switch r.Status {
		case diagnostics.StatusPending:
			tasks = append(tasks, newTask(TaskLabReport, "Review "+r.TestType, r.PatientID, r.ID, false))
		case diagnostics.StatusAbnormal:
			tasks = append(tasks, newTask(TaskLabReport, "Abnormal "+r.TestType, r.PatientID, r.ID, true))
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Urgent && !tasks[j].Urgent })
	return tasks
}

// RecentPatient is one row of the doctor's recent patients list.
type RecentPatient struct {
	PatientID   uuid.UUID `json:"patient_id"`
	Name        string    `json:"name"`
	Condition   string    `json:"condition"`
	LastVisit   string    `json:"last_visit"`
	DiagnosisID uuid.UUID `json:"diagnosis_id"`
}

// recentPatients keeps the newest diagnosis per patient, up to limit.
func recentPatients(diagnoses []*clinical.Diagnosis, limit int) []*clinical.Diagnosis {
	seen := make(map[uuid.UUID]bool)
	var out []*clinical.Diagnosis
	for _, d := range diagnoses {
		if seen[d.PatientID] {
			continue
		}
		seen[d.PatientID] = true
		out = append(out, d)
		if len(out) == limit {
			break
		}
	}
	return out
}

// UpcomingAppointment is an appointment as a dashboard lists it. With is the
// other party: the patient on a doctor's dashboard and the doctor on a
// patient's.
type UpcomingAppointment struct {
	ID          uuid.UUID `json:"id"`
	With        string    `json:"with"`
	Type        string    `json:"type"`
	Day         string    `json:"day"`
	Time        string    `json:"time"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

func newUpcoming(a *Appointment, with string, now time.Time, loc *time.Location) UpcomingAppointment {
	return UpcomingAppointment{
		ID:          a.ID,
		With:        with,
		Type:        a.Type,
		Day:         dates.RelativeDay(a.ScheduledAt, now, loc),
		Time:        a.ScheduledAt.In(loc).Format(dates.TimeLayout),
		ScheduledAt: a.ScheduledAt,
	}
}

type QuickAction struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

var doctorQuickActions = []QuickAction{
	{Label: "Find Patient", Path: "/find-patient"},
	{Label: "Add Diagnosis", Path: "/add-diagnosis"},
	{Label: "New Prescription", Path: "/add-prescription"},
	{Label: "Add Lab Report", Path: "/add-lab-report"},
}

type DoctorSummary struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Specialization string    `json:"specialization,omitempty"`
}

type DoctorDashboard struct {
	Doctor               DoctorSummary         `json:"doctor"`
	RecentPatients       []RecentPatient       `json:"recent_patients"`
	UpcomingAppointments []UpcomingAppointment `json:"upcoming_appointments"`
	PendingTasks         []Task                `json:"pending_tasks"`
	QuickActions         []QuickAction         `json:"quick_actions"`
}

type PatientInfo struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Age        *int      `json:"age,omitempty"`
	BloodGroup string    `json:"blood_group,omitempty"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
}

type LatestDiagnosis struct {
	clinical.DiagnosisView
	DoctorName string `json:"doctor_name,omitempty"`
}

type PatientDashboard struct {
	Patient              PatientInfo                   `json:"patient"`
	LatestDiagnosis      *LatestDiagnosis              `json:"latest_diagnosis"`
	ActivePrescriptions  []medication.PrescriptionView `json:"active_prescriptions"`
	UpcomingAppointments []UpcomingAppointment         `json:"upcoming_appointments"`
	RecentLabReports     []diagnostics.LabReportView   `json:"recent_lab_reports"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
