package immunization

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/portal/pkg/badge"
	"github.com/ehr/portal/pkg/dates"
)

type Vaccination struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID         *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	VaccineName      string     `db:"vaccine_name" json:"vaccine_name"`
	AdministeredDate time.Time  `db:"administered_date" json:"administered_date"`
	DoseNumber       int        `db:"dose_number" json:"dose_number"`
	TotalDoses       int        `db:"total_doses" json:"total_doses"`
	NextDoseDue      *time.Time `db:"next_dose_due" json:"next_dose_due,omitempty"`
	BatchNumber      *string    `db:"batch_number" json:"batch_number,omitempty"`
	ReactionNotes    *string    `db:"reaction_notes" json:"reaction_notes,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

type VaccinationForm struct {
	PatientID        string `json:"patient_id" validate:"required,uuid"`
	VaccineName      string `json:"vaccine_name" validate:"notblank,max=200"`
	AdministeredDate string `json:"administered_date" validate:"required,isodate"`
	DoseNumber       int    `json:"dose_number" validate:"gte=1"`
	TotalDoses       int    `json:"total_doses" validate:"gte=1"`
	NextDoseDue      string `json:"next_dose_due" validate:"isodate"`
	BatchNumber      string `json:"batch_number" validate:"max=60"`
	ReactionNotes    string `json:"reaction_notes"`
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

type NextDose string

const (
	NextDoseOverdue   NextDose = "Overdue"
	NextDoseDueSoon   NextDose = "Due Soon"
	NextDoseScheduled NextDose = "Scheduled"
)

const dueSoonWindowDays = 30

type NextDoseBadge struct {
	badge.Badge
	Status   NextDose `json:"status"`
	DaysLeft int      `json:"days_left"`
}

// ClassifyNextDose compares the next due date with today in loc. No due
// date means no badge.
func ClassifyNextDose(nextDue *time.Time, now time.Time, loc *time.Location) *NextDoseBadge {
	if nextDue == nil {
		return nil
	}
	days := dates.DaysUntil(*nextDue, now, loc)
	var s NextDose
	var tone badge.Tone
	switch {
	case days < 0:
		s, tone = NextDoseOverdue, badge.ToneDestructive
	case days <= dueSoonWindowDays:
		s, tone = NextDoseDueSoon, badge.ToneSecondary
	default:
		s, tone = NextDoseScheduled, badge.ToneOutline
	}
	return &NextDoseBadge{Badge: badge.Badge{Label: string(s), Tone: tone}, Status: s, DaysLeft: days}
}

type Progress struct {
	Label    string `json:"label"`
	Complete bool   `json:"complete"`
}

// DoseProgress renders "n/total". It is nil unless both counts are set.
func DoseProgress(n, total int) *Progress {
	if n <= 0 || total <= 0 {
		return nil
	}
	return &Progress{Label: fmt.Sprintf("%d/%d", n, total), Complete: n >= total}
}

type VaccinationView struct {
	*Vaccination
	DisplayAdministered string         `json:"display_administered_date"`
	DisplayNextDose     string         `json:"display_next_dose_due,omitempty"`
	Progress            *Progress      `json:"progress,omitempty"`
	NextDose            *NextDoseBadge `json:"next_dose,omitempty"`
}

func NewView(v *Vaccination, now time.Time, loc *time.Location) VaccinationView {
	view := VaccinationView{
		Vaccination:         v,
		DisplayAdministered: dates.Display(dates.DateOnly(v.AdministeredDate)),
		Progress:            DoseProgress(v.DoseNumber, v.TotalDoses),
		NextDose:            ClassifyNextDose(v.NextDoseDue, now, loc),
	}
	if v.NextDoseDue != nil {
		view.DisplayNextDose = dates.Display(dates.DateOnly(*v.NextDoseDue))
	}
	return view
}

func NewViews(vs []*Vaccination, now time.Time, loc *time.Location) []VaccinationView {
	out := make([]VaccinationView, len(vs))
	for i, v := range vs {
		out[i] = NewView(v, now, loc)
	}
	return out
}
