package medication

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/portal/internal/platform/access"
	"github.com/ehr/portal/internal/platform/validation"
	"github.com/ehr/portal/pkg/dates"
)

// activeScanLimit bounds how many prescriptions are read when picking the
// active ones for a dashboard.
const activeScanLimit = 50

type Service struct {
	prescriptions PrescriptionRepository
	patients      access.Directory
	loc           *time.Location
	now           func() time.Time
}

func NewService(prescriptions PrescriptionRepository, patients access.Directory, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{prescriptions: prescriptions, patients: patients, loc: loc, now: time.Now}
}

func (s *Service) Location() *time.Location { return s.loc }
func (s *Service) Now() time.Time           { return s.now() }

func (s *Service) CreatePrescription(ctx context.Context, doctorID uuid.UUID, form PrescriptionForm) (*Prescription, error) {
	if err := validation.Struct(form); err != nil {
		return nil, err
	}
	start, err := dates.Parse(form.StartDate)
	if err != nil {
		return nil, err
	}
	expiry, err := dates.Parse(form.ExpiryDate)
	if err != nil {
		return nil, err
	}
	if expiry.Before(start) {
		return nil, &validation.Error{Field: "expiry_date", Message: "expiry_date must not be before start_date"}
	}
	patientID, err := uuid.Parse(form.PatientID)
	if err != nil {
		return nil, err
	}
	if err := access.RequirePatient(ctx, s.patients, patientID); err != nil {
		return nil, err
	}

	p := &Prescription{
		PatientID:   patientID,
		StartDate:   start,
		ValidUntil:  expiry,
		Remarks:     optional(form.Remarks),
		Tags:        ParseTags(form.Tags),
		Medications: form.Medications,
	}
	if doctorID != uuid.Nil {
		p.DoctorID = &doctorID
	}
	if err := s.prescriptions.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create prescription: %w", err)
	}
	return p, nil
}

func (s *Service) GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.prescriptions.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return s.prescriptions.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListRecentByDoctor(ctx context.Context, doctorID uuid.UUID, limit int) ([]*Prescription, error) {
	return s.prescriptions.ListRecentByDoctor(ctx, doctorID, limit)
}

// ActiveForPatient returns up to limit prescriptions that have not expired,
// newest first.
func (s *Service) ActiveForPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*Prescription, error) {
	items, _, err := s.prescriptions.ListByPatient(ctx, patientID, activeScanLimit, 0)
	if err != nil {
		return nil, err
	}
	now := s.now()
	active := make([]*Prescription, 0, limit)
	for _, p := range items {
		if len(active) == limit {
			break
		}
		if v := ClassifyValidity(&p.ValidUntil, now, s.loc); v.Validity != ValidityExpired {
			active = append(active, p)
		}
	}
	return active, nil
}
