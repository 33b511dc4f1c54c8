package clinical

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("diagnosis not found")

type DiagnosisRepository interface {
	Create(ctx context.Context, d *Diagnosis) error
	GetByID(ctx context.Context, id uuid.UUID) (*Diagnosis, error)
	// ListByPatient returns the patient's diagnoses, newest date first.
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Diagnosis, int, error)
	ListRecentByDoctor(ctx context.Context, doctorID uuid.UUID, limit int) ([]*Diagnosis, error)
}
