package immunization

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("vaccination not found")

type VaccinationRepository interface {
	Create(ctx context.Context, v *Vaccination) error
	GetByID(ctx context.Context, id uuid.UUID) (*Vaccination, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Vaccination, int, error)
}
