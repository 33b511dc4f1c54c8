// Package access decides whose records a session may read or write.
// Doctors may act on any patient; patients only on their own record.
package access

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/portal/internal/platform/auth"
)

var (
	// ErrNoProfile means the account has no patient or doctor record.
	ErrNoProfile = errors.New("account has no linked profile")
	// ErrUnknownPatient is returned when a record names a patient that does not exist.
	ErrUnknownPatient = errors.New("patient not found")
)

// Resolver maps accounts to their patient or doctor record ids.
type Resolver interface {
	PatientIDForAccount(ctx context.Context, accountID uuid.UUID) (uuid.UUID, error)
	DoctorIDForAccount(ctx context.Context, accountID uuid.UUID) (uuid.UUID, error)
}

// Directory is a Resolver that can also confirm a patient exists before a
// record is written against it.
type Directory interface {
	Resolver
	PatientExists(ctx context.Context, patientID uuid.UUID) (bool, error)
}

// RequirePatient returns ErrUnknownPatient when patientID names no patient.
func RequirePatient(ctx context.Context, d Directory, patientID uuid.UUID) error {
	ok, err := d.PatientExists(ctx, patientID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownPatient
	}
	return nil
}

func accountID(sess auth.Session) (uuid.UUID, error) {
	id, err := uuid.Parse(sess.AccountID)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "sign in required")
	}
	return id, nil
}

// PatientScope returns the patient whose records the caller may list.
// Doctors name the patient with requested; a patient's own id is used when
// requested is empty, and any other value is refused.
func PatientScope(ctx context.Context, r Resolver, requested string) (uuid.UUID, error) {
	sess := auth.SessionFromContext(ctx)
	if !sess.IsAuthenticated() {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "sign in required")
	}

	if sess.Role == auth.RoleDoctor {
		if requested == "" {
			return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
		}
		id, err := uuid.Parse(requested)
		if err != nil {
			return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "patient_id must be a valid id")
		}
		return id, nil
	}

	acct, err := accountID(sess)
	if err != nil {
		return uuid.Nil, err
	}
	own, err := r.PatientIDForAccount(ctx, acct)
	if err != nil {
		if errors.Is(err, ErrNoProfile) {
			return uuid.Nil, echo.NewHTTPError(http.StatusNotFound, "patient record not found")
		}
		return uuid.Nil, err
	}
	if requested == "" {
		return own, nil
	}
	id, err := uuid.Parse(requested)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "patient_id must be a valid id")
	}
	if id != own {
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "patients may only view their own records")
	}
	return own, nil
}

// CanRead reports whether the caller may read a record belonging to patientID.
func CanRead(ctx context.Context, r Resolver, patientID uuid.UUID) (bool, error) {
	sess := auth.SessionFromContext(ctx)
	if !sess.IsAuthenticated() {
		return false, nil
	}
	if sess.Role == auth.RoleDoctor {
		return true, nil
	}
	acct, err := accountID(sess)
	if err != nil {
		return false, nil
	}
	own, err := r.PatientIDForAccount(ctx, acct)
	if errors.Is(err, ErrNoProfile) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return own == patientID, nil
}

// DoctorID returns the doctor record of the signed-in doctor.
func DoctorID(ctx context.Context, r Resolver) (uuid.UUID, error) {
	sess := auth.SessionFromContext(ctx)
	if sess.Role != auth.RoleDoctor {
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "required role: doctor")
	}
	acct, err := accountID(sess)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := r.DoctorIDForAccount(ctx, acct)
	if errors.Is(err, ErrNoProfile) {
		return uuid.Nil, echo.NewHTTPError(http.StatusNotFound, "doctor record not found")
	}
	return id, err
}

// StaticResolver is a map-backed Directory for tests and tooling. Patients
// and Doctors map account ids to record ids; Unlinked lists patients that
// exist without an account.
type StaticResolver struct {
	Patients map[uuid.UUID]uuid.UUID
	Doctors  map[uuid.UUID]uuid.UUID
	Unlinked []uuid.UUID
}

func (s StaticResolver) PatientExists(_ context.Context, patientID uuid.UUID) (bool, error) {
	for _, id := range s.Patients {
		if id == patientID {
			return true, nil
		}
	}
	for _, id := range s.Unlinked {
		if id == patientID {
			return true, nil
		}
	}
	return false, nil
}

func (s StaticResolver) PatientIDForAccount(_ context.Context, accountID uuid.UUID) (uuid.UUID, error) {
	if id, ok := s.Patients[accountID]; ok {
		return id, nil
	}
	return uuid.Nil, ErrNoProfile
}

func (s StaticResolver) DoctorIDForAccount(_ context.Context, accountID uuid.UUID) (uuid.UUID, error) {
	if id, ok := s.Doctors[accountID]; ok {
		return id, nil
	}
	return uuid.Nil, ErrNoProfile
}
