package diagnostics

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

type labReportRepoPG struct{ pool *pgxpool.Pool }

func NewLabReportRepoPG(pool *pgxpool.Pool) LabReportRepository {
	return &labReportRepoPG{pool: pool}
}

func (r *labReportRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const labCols = `id, patient_id, doctor_id, date, test_type, status, remarks, tags,
	object_key, file_name, content_type, size_bytes, checksum, created_at`

func (r *labReportRepoPG) scanLab(row pgx.Row) (*LabReport, error) {
	var l LabReport
	var status string
	err := row.Scan(&l.ID, &l.PatientID, &l.DoctorID, &l.Date, &l.TestType, &status, &l.Remarks, &l.Tags,
		&l.ObjectKey, &l.FileName, &l.ContentType, &l.SizeBytes, &l.Checksum, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	l.Status = Status(status)
	return &l, nil
}

// Create inserts the report. The caller sets ID, since the object key is
// derived before the row exists.
func (r *labReportRepoPG) Create(ctx context.Context, l *LabReport) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Tags == nil {
		l.Tags = []string{}
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO lab_reports (id, patient_id, doctor_id, date, test_type, status, remarks, tags,
			object_key, file_name, content_type, size_bytes, checksum)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at`,
		l.ID, l.PatientID, l.DoctorID, l.Date, l.TestType, string(l.Status), l.Remarks, l.Tags,
		l.ObjectKey, l.FileName, l.ContentType, l.SizeBytes, l.Checksum,
	).Scan(&l.CreatedAt)
}

func (r *labReportRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*LabReport, error) {
	return r.scanLab(r.conn(ctx).QueryRow(ctx, `SELECT `+labCols+` FROM lab_reports WHERE id = $1`, id))
}

func (r *labReportRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*LabReport, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM lab_reports WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+labCols+` FROM lab_reports WHERE patient_id = $1
		ORDER BY date DESC, created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := r.collect(rows)
	return items, total, err
}

func (r *labReportRepoPG) ListRecentByDoctor(ctx context.Context, doctorID uuid.UUID, limit int) ([]*LabReport, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+labCols+` FROM lab_reports WHERE doctor_id = $1
		ORDER BY date DESC, created_at DESC LIMIT $2`, doctorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *labReportRepoPG) collect(rows pgx.Rows) ([]*LabReport, error) {
	var items []*LabReport
	for rows.Next() {
		l, err := r.scanLab(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, rows.Err()
}
