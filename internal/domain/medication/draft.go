package medication

import (
	"fmt"
	"time"

	"github.com/ehr/portal/pkg/dates"
)

// NewDraft returns an empty form prefilled with one blank medication and
// today's start date.
func NewDraft(now time.Time, loc *time.Location) PrescriptionForm {
	return PrescriptionForm{
		StartDate:   dates.Day(now, loc).Format(dates.ISOLayout),
		Medications: []Medication{{}},
	}
}

// AddMedication returns a copy of meds with a blank entry appended.
func AddMedication(meds []Medication) []Medication {
	out := make([]Medication, len(meds), len(meds)+1)
	copy(out, meds)
	return append(out, Medication{})
}

// RemoveMedication returns a copy of meds without the entry at index. The
// last remaining entry is never removed, and an out-of-range index changes
// nothing.
func RemoveMedication(meds []Medication, index int) []Medication {
	out := make([]Medication, 0, len(meds))
	if len(meds) <= 1 || index < 0 || index >= len(meds) {
		return append(out, meds...)
	}
	out = append(out, meds[:index]...)
	return append(out, meds[index+1:]...)
}

// UpdateMedication returns a copy of meds with one field of one entry set.
func UpdateMedication(meds []Medication, index int, field, value string) ([]Medication, error) {
	if index < 0 || index >= len(meds) {
		return nil, fmt.Errorf("medication %d does not exist", index)
	}
	out := make([]Medication, len(meds))
	copy(out, meds)
	m := &out[index]
	switch field {
	case "name":
		m.Name = value
	case "dosage":
		m.Dosage = value
	case "frequency":
		m.Frequency = value
	case "duration":
		m.Duration = value
	case "instructions":
		m.Instructions = value
	default:
		return nil, fmt.Errorf("unknown medication field %q", field)
	}
	return out, nil
}

type DraftOp string

const (
	DraftAdd    DraftOp = "add"
	DraftRemove DraftOp = "remove"
	DraftUpdate DraftOp = "update"
)

// DraftEdit is one change to the medication list of a prescription draft.
type DraftEdit struct {
	Op          DraftOp      `json:"op" validate:"required,oneof=add remove update"`
	Index       int          `json:"index"`
	Field       string       `json:"field"`
	Value       string       `json:"value"`
	Medications []Medication `json:"medications"`
}

// ApplyDraftEdit runs e against its medication list.
func ApplyDraftEdit(e DraftEdit) ([]Medication, error) {
	switch e.Op {
	case DraftAdd:
		return AddMedication(e.Medications), nil
	case DraftRemove:
		return RemoveMedication(e.Medications, e.Index), nil
	case DraftUpdate:
		return UpdateMedication(e.Medications, e.Index, e.Field, e.Value)
	default:
		return nil, fmt.Errorf("unknown draft operation %q", e.Op)
	}
}
