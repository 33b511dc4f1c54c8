package portal

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/portal/internal/domain/identity"
	"github.com/ehr/portal/internal/platform/validation"
	"github.com/ehr/portal/pkg/dates"
)

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

const defaultAppointmentType = "Consultation"

type Appointment struct {
	ID          uuid.UUID         `db:"id" json:"id"`
	PatientID   uuid.UUID         `db:"patient_id" json:"patient_id"`
	DoctorID    uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	ScheduledAt time.Time         `db:"scheduled_at" json:"scheduled_at"`
	Type        string            `db:"type" json:"type"`
	Status      AppointmentStatus `db:"status" json:"status"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
}

// AppointmentForm books a visit. Date and time are read in the portal's
// configured time zone.
type AppointmentForm struct {
	PatientID string `json:"patient_id" validate:"required,uuid"`
	Date      string `json:"date" validate:"required,isodate"`
	Time      string `json:"time" validate:"required"`
	Type      string `json:"type" validate:"max=60"`
}

type AppointmentStatusUpdate struct {
	Status string `json:"status" validate:"required,oneof=scheduled completed cancelled"`
}

// PatientProfileForm edits the patient's personal information. The email is
// the sign-in identity and is not editable here.
type PatientProfileForm struct {
	FirstName        string `json:"first_name" validate:"notblank,max=100"`
	LastName         string `json:"last_name" validate:"max=100"`
	Phone            string `json:"phone" validate:"max=40"`
	DateOfBirth      string `json:"date_of_birth" validate:"omitempty,isodate"`
	Address          string `json:"address" validate:"max=500"`
	EmergencyContact string `json:"emergency_contact" validate:"max=200"`
	BloodGroup       string `json:"blood_group" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies        string `json:"allergies" validate:"max=1000"`
}

func (f PatientProfileForm) apply(p *identity.Patient) error {
	dob, err := dates.ParseOptional(f.DateOfBirth)
	if err != nil {
		return &validation.Error{Field: "date_of_birth", Message: err.Error()}
	}
	p.FirstName = strings.TrimSpace(f.FirstName)
	p.LastName = strings.TrimSpace(f.LastName)
	p.Phone = optional(f.Phone)
	p.DateOfBirth = dob
	p.Address = optional(f.Address)
	p.EmergencyContact = optional(f.EmergencyContact)
	p.BloodGroup = optional(f.BloodGroup)
	p.Allergies = optional(f.Allergies)
	return nil
}

// DoctorProfileForm edits the doctor's professional information.
type DoctorProfileForm struct {
	Name           string `json:"name" validate:"notblank,max=200"`
	Phone          string `json:"phone" validate:"max=40"`
	Specialization string `json:"specialization" validate:"max=120"`
	LicenseNumber  string `json:"license_number" validate:"max=60"`
	Experience     string `json:"experience" validate:"max=60"`
	Hospital       string `json:"hospital" validate:"max=200"`
	Department     string `json:"department" validate:"max=120"`
	Bio            string `json:"bio" validate:"max=2000"`
}

func (f DoctorProfileForm) apply(d *identity.Doctor) {
	d.Name = strings.TrimSpace(f.Name)
	d.Phone = optional(f.Phone)
	d.Specialization = optional(f.Specialization)
	d.LicenseNumber = optional(f.LicenseNumber)
	d.Experience = optional(f.Experience)
	d.Hospital = optional(f.Hospital)
	d.Department = optional(f.Department)
	d.Bio = optional(f.Bio)
}

// SettingsForm saves one settings section. Values are keyed without the
// section prefix.
type SettingsForm struct {
	Section string                 `json:"section"`
	Values  map[string]interface{} `json:"values"`
}

type ToggleForm struct {
	Key string `json:"key"`
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
