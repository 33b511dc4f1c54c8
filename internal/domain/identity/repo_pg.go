package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/portal/internal/platform/auth"
	"github.com/ehr/portal/internal/platform/db"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func connFor(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

const uniqueViolation = "23505"

// -- Account Repository --

type accountRepoPG struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) AccountRepository {
	return &accountRepoPG{pool: pool}
}

const accountCols = `id, email, password_hash, role, full_name, last_sign_in, created_at, updated_at`

func (r *accountRepoPG) Create(ctx context.Context, a *Account) error {
	a.ID = uuid.New()
	err := connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO accounts (id, email, password_hash, role, full_name)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		a.ID, a.Email, a.PasswordHash, string(a.Role), a.FullName,
	).Scan(&a.CreatedAt, &a.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrEmailTaken
	}
	return err
}

func (r *accountRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return scanAccount(connFor(ctx, r.pool).QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE id = $1`, id))
}

func (r *accountRepoPG) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return scanAccount(connFor(ctx, r.pool).QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE LOWER(email) = LOWER($1)`, email))
}

func (r *accountRepoPG) TouchSignIn(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := connFor(ctx, r.pool).Exec(ctx, `UPDATE accounts SET last_sign_in = $2, updated_at = NOW() WHERE id = $1`, id, at)
	return err
}

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	var role string
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &role, &a.FullName, &a.LastSignIn, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	a.Role = auth.Role(role)
	return &a, nil
}

// -- Patient Repository --

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

const patientCols = `id, account_id, first_name, last_name, email, phone, date_of_birth,
	address, emergency_contact, blood_group, allergies, created_at, updated_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	return connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patients (id, account_id, first_name, last_name, email, phone, date_of_birth,
			address, emergency_contact, blood_group, allergies)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		p.ID, p.AccountID, p.FirstName, p.LastName, p.Email, p.Phone, p.DateOfBirth,
		p.Address, p.EmergencyContact, p.BloodGroup, p.Allergies,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(connFor(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *patientRepoPG) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*Patient, error) {
	return scanPatient(connFor(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE account_id = $1`, accountID))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `
		UPDATE patients SET first_name = $2, last_name = $3, email = $4, phone = $5, date_of_birth = $6,
			address = $7, emergency_contact = $8, blood_group = $9, allergies = $10, updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.Email, p.Phone, p.DateOfBirth,
		p.Address, p.EmergencyContact, p.BloodGroup, p.Allergies,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := connFor(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := connFor(ctx, r.pool).Query(ctx, `SELECT `+patientCols+` FROM patients ORDER BY last_name, first_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	patients, err := collectPatients(rows)
	return patients, total, err
}

func (r *patientRepoPG) ListRecent(ctx context.Context, limit int) ([]*Patient, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx, `SELECT `+patientCols+` FROM patients ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collectPatients(rows)
}

func collectPatients(rows pgx.Rows) ([]*Patient, error) {
	defer rows.Close()
	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.AccountID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.DateOfBirth,
		&p.Address, &p.EmergencyContact, &p.BloodGroup, &p.Allergies, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// -- Doctor Repository --

type doctorRepoPG struct {
	pool *pgxpool.Pool
}

func NewDoctorRepo(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

const doctorCols = `id, account_id, name, email, phone, specialization, license_number,
	experience, hospital, department, bio, created_at, updated_at`

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	return connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO doctors (id, account_id, name, email, phone, specialization, license_number,
			experience, hospital, department, bio)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		d.ID, d.AccountID, d.Name, d.Email, d.Phone, d.Specialization, d.LicenseNumber,
		d.Experience, d.Hospital, d.Department, d.Bio,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(connFor(ctx, r.pool).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE id = $1`, id))
}

func (r *doctorRepoPG) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*Doctor, error) {
	return scanDoctor(connFor(ctx, r.pool).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE account_id = $1`, accountID))
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `
		UPDATE doctors SET name = $2, email = $3, phone = $4, specialization = $5, license_number = $6,
			experience = $7, hospital = $8, department = $9, bio = $10, updated_at = NOW()
		WHERE id = $1`,
		d.ID, d.Name, d.Email, d.Phone, d.Specialization, d.LicenseNumber,
		d.Experience, d.Hospital, d.Department, d.Bio,
	)
	if err != nil {
		return fmt.Errorf("update doctor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID, &d.AccountID, &d.Name, &d.Email, &d.Phone, &d.Specialization, &d.LicenseNumber,
		&d.Experience, &d.Hospital, &d.Department, &d.Bio, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}
