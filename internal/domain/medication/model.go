package medication

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/portal/pkg/dates"
)

type Frequency string

const (
	FrequencyOnceDaily       Frequency = "once-daily"
	FrequencyTwiceDaily      Frequency = "twice-daily"
	FrequencyThreeTimesDaily Frequency = "three-times-daily"
	FrequencyFourTimesDaily  Frequency = "four-times-daily"
	FrequencyAsNeeded        Frequency = "as-needed"
)

// Frequencies lists the dosing schedules in the order the form offers them.
var Frequencies = []Frequency{
	FrequencyOnceDaily,
	FrequencyTwiceDaily,
	FrequencyThreeTimesDaily,
	FrequencyFourTimesDaily,
	FrequencyAsNeeded,
}

// Medication is one line of a prescription.
type Medication struct {
	Name         string `json:"name" validate:"notblank,max=200"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency" validate:"omitempty,oneof=once-daily twice-daily three-times-daily four-times-daily as-needed"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions"`
}

type Prescription struct {
	ID          uuid.UUID    `db:"id" json:"id"`
	PatientID   uuid.UUID    `db:"patient_id" json:"patient_id"`
	DoctorID    *uuid.UUID   `db:"doctor_id" json:"doctor_id,omitempty"`
	StartDate   time.Time    `db:"start_date" json:"start_date"`
	ValidUntil  time.Time    `db:"valid_until" json:"valid_until"`
	Remarks     *string      `db:"remarks" json:"remarks,omitempty"`
	Tags        []string     `db:"tags" json:"tags"`
	Medications []Medication `db:"medications" json:"medications"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}

// PrescriptionForm is the add-prescription submission. Tags arrive as one
// comma-separated string.
type PrescriptionForm struct {
	PatientID   string       `json:"patient_id" validate:"required,uuid"`
	StartDate   string       `json:"start_date" validate:"required,isodate"`
	ExpiryDate  string       `json:"expiry_date" validate:"required,isodate"`
	Remarks     string       `json:"remarks"`
	Tags        string       `json:"tags"`
	Medications []Medication `json:"medications" validate:"min=1,dive"`
}

// ParseTags splits a comma-separated tag string, dropping blanks and
// duplicates while keeping the first-seen order.
func ParseTags(s string) []string {
	tags := []string{}
	seen := make(map[string]bool)
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		tags = append(tags, t)
	}
	return tags
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// PrescriptionView is a prescription as the record list displays it.
type PrescriptionView struct {
	*Prescription
	DisplayStartDate  string         `json:"display_start_date"`
	DisplayValidUntil string         `json:"display_valid_until"`
	Validity          *ValidityBadge `json:"validity,omitempty"`
}

func NewView(p *Prescription, now time.Time, loc *time.Location) PrescriptionView {
	validUntil := p.ValidUntil
	return PrescriptionView{
		Prescription:      p,
		DisplayStartDate:  dates.Display(dates.DateOnly(p.StartDate)),
		DisplayValidUntil: dates.Display(dates.DateOnly(p.ValidUntil)),
		Validity:          ClassifyValidity(&validUntil, now, loc),
	}
}

func NewViews(ps []*Prescription, now time.Time, loc *time.Location) []PrescriptionView {
	out := make([]PrescriptionView, len(ps))
	for i, p := range ps {
		out[i] = NewView(p, now, loc)
	}
	return out
}
