package portal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/portal/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func connFrom(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

const apptCols = `id, patient_id, doctor_id, scheduled_at, type, status, created_at`

func (r *appointmentRepoPG) scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.ScheduledAt, &a.Type, &status, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Status = AppointmentStatus(status)
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	return connFrom(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, scheduled_at, type, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		a.ID, a.PatientID, a.DoctorID, a.ScheduledAt, a.Type, string(a.Status),
	).Scan(&a.CreatedAt)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppt(connFrom(ctx, r.pool).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status AppointmentStatus) error {
	tag, err := connFrom(ctx, r.pool).Exec(ctx, `UPDATE appointments SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepoPG) ListUpcomingByDoctor(ctx context.Context, doctorID uuid.UUID, from time.Time, limit int) ([]*Appointment, error) {
	return r.listUpcoming(ctx, "doctor_id", doctorID, from, limit)
}

func (r *appointmentRepoPG) ListUpcomingByPatient(ctx context.Context, patientID uuid.UUID, from time.Time, limit int) ([]*Appointment, error) {
	return r.listUpcoming(ctx, "patient_id", patientID, from, limit)
}

// listUpcoming is called with a fixed column name, never user input.
func (r *appointmentRepoPG) listUpcoming(ctx context.Context, column string, id uuid.UUID, from time.Time, limit int) ([]*Appointment, error) {
	rows, err := connFrom(ctx, r.pool).Query(ctx, `SELECT `+apptCols+` FROM appointments
		WHERE `+column+` = $1 AND status = 'scheduled' AND scheduled_at >= $2
		ORDER BY scheduled_at ASC LIMIT $3`, id, from, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// =========== Settings Repository ===========

type settingsRepoPG struct{ pool *pgxpool.Pool }

func NewSettingsRepoPG(pool *pgxpool.Pool) SettingsRepository {
	return &settingsRepoPG{pool: pool}
}

func (r *settingsRepoPG) Get(ctx context.Context, accountID uuid.UUID) (Settings, error) {
	var raw []byte
	err := connFrom(ctx, r.pool).QueryRow(ctx, `SELECT settings FROM profile_settings WHERE account_id = $1`, accountID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode settings of %s: %w", accountID, err)
	}
	return s, nil
}

func (r *settingsRepoPG) Save(ctx context.Context, accountID uuid.UUID, s Settings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = connFrom(ctx, r.pool).Exec(ctx, `
		INSERT INTO profile_settings (account_id, settings, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (account_id) DO UPDATE SET settings = EXCLUDED.settings, updated_at = NOW()`,
		accountID, raw)
	return err
}
