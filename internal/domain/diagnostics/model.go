package diagnostics

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/portal/pkg/badge"
	"github.com/ehr/portal/pkg/dates"
)

// TestTypes are the lab tests a report can be filed under.
var TestTypes = []string{
	"Blood Test - CBC",
	"Blood Test - Lipid Panel",
	"Blood Test - Glucose",
	"Urine Test",
	"X-Ray",
	"CT Scan",
	"MRI",
	"ECG",
	"Ultrasound",
	"Biopsy",
	"Other",
}

func IsTestType(s string) bool {
	for _, t := range TestTypes {
		if t == s {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusNormal   Status = "normal"
	StatusAbnormal Status = "abnormal"
)

// LabReport is the metadata of an uploaded lab result file.
type LabReport struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID    *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	Date        time.Time  `db:"date" json:"date"`
	TestType    string     `db:"test_type" json:"test_type"`
	Status      Status     `db:"status" json:"status"`
	Remarks     *string    `db:"remarks" json:"remarks,omitempty"`
	Tags        []string   `db:"tags" json:"tags"`
	ObjectKey   string     `db:"object_key" json:"-"`
	FileName    string     `db:"file_name" json:"file_name"`
	ContentType string     `db:"content_type" json:"content_type"`
	SizeBytes   int64      `db:"size_bytes" json:"size_bytes"`
	Checksum    string     `db:"checksum" json:"checksum"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// LabReportForm holds the text fields of the multipart upload.
type LabReportForm struct {
	PatientID string `json:"patient_id" form:"patient_id" validate:"required,uuid"`
	Date      string `json:"date" form:"date" validate:"required,isodate"`
	TestType  string `json:"test_type" form:"test_type" validate:"notblank"`
	Remarks   string `json:"remarks" form:"remarks"`
	Tags      string `json:"tags" form:"tags"`
	Status    string `json:"status" form:"status" validate:"omitempty,oneof=pending normal abnormal"`
}

// ParseTags splits a comma-separated tag string, dropping blanks.
func ParseTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
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

func StatusTone(s Status) badge.Tone {
	switch s {
	case StatusNormal:
		return badge.ToneSuccess
	case StatusAbnormal:
		return badge.ToneDestructive
	default:
		return badge.ToneSecondary
	}
}

type LabReportView struct {
	*LabReport
	DisplayDate string       `json:"display_date"`
	StatusBadge *badge.Badge `json:"status_badge"`
	FileURL     string       `json:"file_url"`
}

func NewView(r *LabReport) LabReportView {
	label := string(r.Status)
	if label != "" {
		label = strings.ToUpper(label[:1]) + label[1:]
	}
	return LabReportView{
		LabReport:   r,
		DisplayDate: dates.Display(dates.DateOnly(r.Date)),
		StatusBadge: badge.New(label, StatusTone(r.Status)),
		FileURL:     "/api/v1/lab-reports/" + r.ID.String() + "/file",
	}
}

func NewViews(rs []*LabReport) []LabReportView {
	out := make([]LabReportView, len(rs))
	for i, r := range rs {
		out[i] = NewView(r)
	}
	return out
}
