package clinical

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ehr/portal/internal/platform/access"
	"github.com/ehr/portal/internal/platform/validation"
)

type Service struct {
	diagnoses DiagnosisRepository
	patients  access.Directory
}

func NewService(diagnoses DiagnosisRepository, patients access.Directory) *Service {
	return &Service{diagnoses: diagnoses, patients: patients}
}

// CreateDiagnosis validates the form, applies the severity and status
// defaults, and records the diagnosis under doctorID.
func (s *Service) CreateDiagnosis(ctx context.Context, doctorID uuid.UUID, form DiagnosisForm) (*Diagnosis, error) {
	if err := validation.Struct(form); err != nil {
		return nil, err
	}
	d, err := form.toDiagnosis()
	if err != nil {
		return nil, err
	}
	if err := access.RequirePatient(ctx, s.patients, d.PatientID); err != nil {
		return nil, err
	}
	if doctorID != uuid.Nil {
		d.DoctorID = &doctorID
	}
	if err := s.diagnoses.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("create diagnosis: %w", err)
	}
	return d, nil
}

func (s *Service) GetDiagnosis(ctx context.Context, id uuid.UUID) (*Diagnosis, error) {
	return s.diagnoses.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Diagnosis, int, error) {
	return s.diagnoses.ListByPatient(ctx, patientID, limit, offset)
}

// LatestForPatient returns the most recent diagnosis, or nil when the
// patient has none.
func (s *Service) LatestForPatient(ctx context.Context, patientID uuid.UUID) (*Diagnosis, error) {
	items, _, err := s.diagnoses.ListByPatient(ctx, patientID, 1, 0)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0], nil
}

func (s *Service) ListRecentByDoctor(ctx context.Context, doctorID uuid.UUID, limit int) ([]*Diagnosis, error) {
	return s.diagnoses.ListRecentByDoctor(ctx, doctorID, limit)
}
