package portal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("appointment not found")

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status AppointmentStatus) error
	// ListUpcomingByDoctor returns scheduled appointments at or after from,
	// soonest first.
	ListUpcomingByDoctor(ctx context.Context, doctorID uuid.UUID, from time.Time, limit int) ([]*Appointment, error)
	ListUpcomingByPatient(ctx context.Context, patientID uuid.UUID, from time.Time, limit int) ([]*Appointment, error)
}

// SettingsRepository stores one settings snapshot per account. Get returns
// nil without error when the account has never saved settings.
type SettingsRepository interface {
	Get(ctx context.Context, accountID uuid.UUID) (Settings, error)
	Save(ctx context.Context, accountID uuid.UUID, s Settings) error
}
