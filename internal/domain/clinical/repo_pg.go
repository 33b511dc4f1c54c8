package clinical

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

type diagnosisRepoPG struct{ pool *pgxpool.Pool }

func NewDiagnosisRepoPG(pool *pgxpool.Pool) DiagnosisRepository {
	return &diagnosisRepoPG{pool: pool}
}

func (r *diagnosisRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const diagCols = `id, patient_id, doctor_id, date, condition, icd10_code,
	severity, status, clinical_notes, follow_up_required, created_at`

func (r *diagnosisRepoPG) scanDiag(row pgx.Row) (*Diagnosis, error) {
	var d Diagnosis
	var severity, status string
	err := row.Scan(&d.ID, &d.PatientID, &d.DoctorID, &d.Date, &d.Condition, &d.ICD10Code,
		&severity, &status, &d.ClinicalNotes, &d.FollowUpRequired, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	d.Severity = Severity(severity)
	d.Status = Status(status)
	return &d, nil
}

func (r *diagnosisRepoPG) Create(ctx context.Context, d *Diagnosis) error {
	d.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO diagnoses (id, patient_id, doctor_id, date, condition, icd10_code,
			severity, status, clinical_notes, follow_up_required)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		d.ID, d.PatientID, d.DoctorID, d.Date, d.Condition, d.ICD10Code,
		string(d.Severity), string(d.Status), d.ClinicalNotes, d.FollowUpRequired,
	).Scan(&d.CreatedAt)
}

func (r *diagnosisRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Diagnosis, error) {
	return r.scanDiag(r.conn(ctx).QueryRow(ctx, `SELECT `+diagCols+` FROM diagnoses WHERE id = $1`, id))
}

func (r *diagnosisRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Diagnosis, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM diagnoses WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+diagCols+` FROM diagnoses WHERE patient_id = $1
		ORDER BY date DESC, created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := r.collect(rows)
	return items, total, err
}

func (r *diagnosisRepoPG) ListRecentByDoctor(ctx context.Context, doctorID uuid.UUID, limit int) ([]*Diagnosis, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+diagCols+` FROM diagnoses WHERE doctor_id = $1
		ORDER BY date DESC, created_at DESC LIMIT $2`, doctorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *diagnosisRepoPG) collect(rows pgx.Rows) ([]*Diagnosis, error) {
	var items []*Diagnosis
	for rows.Next() {
		d, err := r.scanDiag(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}
