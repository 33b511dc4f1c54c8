package diagnostics

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("lab report not found")

type LabReportRepository interface {
	Create(ctx context.Context, r *LabReport) error
	GetByID(ctx context.Context, id uuid.UUID) (*LabReport, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*LabReport, int, error)
	ListRecentByDoctor(ctx context.Context, doctorID uuid.UUID, limit int) ([]*LabReport, error)
}
