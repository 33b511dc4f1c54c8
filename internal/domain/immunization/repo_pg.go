package immunization

import (
	"context"
	"errors"

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

// =========== Vaccination Repository ===========

type vaccinationRepoPG struct{ pool *pgxpool.Pool }

func NewVaccinationRepoPG(pool *pgxpool.Pool) VaccinationRepository {
	return &vaccinationRepoPG{pool: pool}
}

func (r *vaccinationRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const vacCols = `id, patient_id, doctor_id, vaccine_name, administered_date,
	dose_number, total_doses, next_dose_due, batch_number, reaction_notes, created_at`

func (r *vaccinationRepoPG) scanVac(row pgx.Row) (*Vaccination, error) {
	var v Vaccination
	err := row.Scan(&v.ID, &v.PatientID, &v.DoctorID, &v.VaccineName, &v.AdministeredDate,
		&v.DoseNumber, &v.TotalDoses, &v.NextDoseDue, &v.BatchNumber, &v.ReactionNotes, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *vaccinationRepoPG) Create(ctx context.Context, v *Vaccination) error {
	v.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO vaccinations (id, patient_id, doctor_id, vaccine_name, administered_date,
			dose_number, total_doses, next_dose_due, batch_number, reaction_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		v.ID, v.PatientID, v.DoctorID, v.VaccineName, v.AdministeredDate,
		v.DoseNumber, v.TotalDoses, v.NextDoseDue, v.BatchNumber, v.ReactionNotes,
	).Scan(&v.CreatedAt)
}

func (r *vaccinationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Vaccination, error) {
	return r.scanVac(r.conn(ctx).QueryRow(ctx, `SELECT `+vacCols+` FROM vaccinations WHERE id = $1`, id))
}

func (r *vaccinationRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Vaccination, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM vaccinations WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+vacCols+` FROM vaccinations WHERE patient_id = $1
		ORDER BY administered_date DESC, created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Vaccination
	for rows.Next() {
		v, err := r.scanVac(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
	}
	return items, total, rows.Err()
}
