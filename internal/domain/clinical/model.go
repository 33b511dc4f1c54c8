package clinical

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/portal/pkg/badge"
	"github.com/ehr/portal/pkg/dates"
)

type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityCritical Severity = "critical"
)

type Status string

const (
	StatusConfirmed   Status = "confirmed"
	StatusProvisional Status = "provisional"
	StatusChronic     Status = "chronic"
	StatusResolved    Status = "resolved"
)

// Diagnosis is a condition recorded against a patient by a doctor.
type Diagnosis struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID         *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	Date             time.Time  `db:"date" json:"date"`
	Condition        string     `db:"condition" json:"condition"`
	ICD10Code        *string    `db:"icd10_code" json:"icd10_code,omitempty"`
	Severity         Severity   `db:"severity" json:"severity"`
	Status           Status     `db:"status" json:"status"`
	ClinicalNotes    *string    `db:"clinical_notes" json:"clinical_notes,omitempty"`
	FollowUpRequired bool       `db:"follow_up_required" json:"follow_up_required"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// Urgent reports whether a follow-up on this diagnosis should be flagged.
func (d *Diagnosis) Urgent() bool {
	return d.Severity == SeveritySevere || d.Severity == SeverityCritical
}

// DiagnosisForm is the add-diagnosis submission. The condition arrives in
// the form's "diagnosis" field and the clinical notes in "details".
type DiagnosisForm struct {
	PatientID        string `json:"patient_id" validate:"required,uuid"`
	Date             string `json:"date" validate:"required,isodate"`
	Condition        string `json:"diagnosis" validate:"notblank,max=300"`
	ClinicalNotes    string `json:"details"`
	Severity         string `json:"severity" validate:"omitempty,oneof=mild moderate severe critical"`
	Status           string `json:"status" validate:"omitempty,oneof=confirmed provisional chronic resolved"`
	ICD10Code        string `json:"icd10_code" validate:"max=16"`
	FollowUpRequired bool   `json:"follow_up_required"`
}

func (f DiagnosisForm) toDiagnosis() (*Diagnosis, error) {
	patientID, err := uuid.Parse(f.PatientID)
	if err != nil {
		return nil, err
	}
	date, err := dates.Parse(f.Date)
	if err != nil {
		return nil, err
	}
	d := &Diagnosis{
		PatientID:        patientID,
		Date:             date,
		Condition:        strings.TrimSpace(f.Condition),
		ICD10Code:        optional(strings.ToUpper(f.ICD10Code)),
		Severity:         Severity(f.Severity),
		Status:           Status(f.Status),
		ClinicalNotes:    optional(f.ClinicalNotes),
		FollowUpRequired: f.FollowUpRequired,
	}
	if d.Severity == "" {
		d.Severity = SeverityMild
	}
	if d.Status == "" {
		d.Status = StatusProvisional
	}
	return d, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func SeverityTone(s Severity) badge.Tone {
	switch s {
	case SeverityMild:
		return badge.ToneSecondary
	case SeverityModerate:
		return badge.ToneWarning
	case SeveritySevere, SeverityCritical:
		return badge.ToneDestructive
	default:
		return badge.ToneOutline
	}
}

func StatusTone(s Status) badge.Tone {
	switch s {
	case StatusConfirmed:
		return badge.ToneDestructive
	case StatusProvisional:
		return badge.ToneWarning
	case StatusChronic:
		return badge.ToneSecondary
	case StatusResolved:
		return badge.ToneSuccess
	default:
		return badge.ToneOutline
	}
}

// DiagnosisView is a diagnosis as the record list displays it.
type DiagnosisView struct {
	*Diagnosis
	DisplayDate   string       `json:"display_date"`
	SeverityBadge *badge.Badge `json:"severity_badge"`
	StatusBadge   *badge.Badge `json:"status_badge"`
}

func NewView(d *Diagnosis) DiagnosisView {
	return DiagnosisView{
		Diagnosis:     d,
		DisplayDate:   dates.Display(dates.DateOnly(d.Date)),
		SeverityBadge: badge.New(titleCase(string(d.Severity)), SeverityTone(d.Severity)),
		StatusBadge:   badge.New(titleCase(string(d.Status)), StatusTone(d.Status)),
	}
}

func NewViews(ds []*Diagnosis) []DiagnosisView {
	out := make([]DiagnosisView, len(ds))
	for i, d := range ds {
		out[i] = NewView(d)
	}
	return out
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
