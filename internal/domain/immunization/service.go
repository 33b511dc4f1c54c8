package immunization

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/portal/internal/platform/access"
	"github.com/ehr/portal/internal/platform/validation"
	"github.com/ehr/portal/pkg/dates"
)

type Service struct {
	vaccinations VaccinationRepository
	patients     access.Directory
	loc          *time.Location
	now          func() time.Time
}

func NewService(vaccinations VaccinationRepository, patients access.Directory, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{vaccinations: vaccinations, patients: patients, loc: loc, now: time.Now}
}

func (s *Service) Location() *time.Location { return s.loc }
func (s *Service) Now() time.Time           { return s.now() }

// RecordVaccination stores one administered dose.
func (s *Service) RecordVaccination(ctx context.Context, doctorID uuid.UUID, form VaccinationForm) (*Vaccination, error) {
	if err := validation.Struct(form); err != nil {
		return nil, err
	}
	administered, err := dates.Parse(form.AdministeredDate)
	if err != nil {
		return nil, err
	}
	nextDue, err := dates.ParseOptional(form.NextDoseDue)
	if err != nil {
		return nil, err
	}
	if nextDue != nil && nextDue.Before(administered) {
		return nil, &validation.Error{Field: "next_dose_due", Message: "next_dose_due must not be before administered_date"}
	}
	patientID, err := uuid.Parse(form.PatientID)
	if err != nil {
		return nil, err
	}
	if err := access.RequirePatient(ctx, s.patients, patientID); err != nil {
		return nil, err
	}

	v := &Vaccination{
		PatientID:        patientID,
		VaccineName:      strings.TrimSpace(form.VaccineName),
		AdministeredDate: administered,
		DoseNumber:       form.DoseNumber,
		TotalDoses:       form.TotalDoses,
		NextDoseDue:      nextDue,
		BatchNumber:      optional(form.BatchNumber),
		ReactionNotes:    optional(form.ReactionNotes),
	}
	if doctorID != uuid.Nil {
		v.DoctorID = &doctorID
	}
	if err := s.vaccinations.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("record vaccination: %w", err)
	}
	return v, nil
}

func (s *Service) GetVaccination(ctx context.Context, id uuid.UUID) (*Vaccination, error) {
	return s.vaccinations.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Vaccination, int, error) {
	return s.vaccinations.ListByPatient(ctx, patientID, limit, offset)
}
