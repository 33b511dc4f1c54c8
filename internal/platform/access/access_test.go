package access

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/portal/internal/platform/auth"
)

func sessionCtx(accountID uuid.UUID, role auth.Role) context.Context {
	return auth.WithSession(context.Background(), auth.Session{
		State: auth.SessionAuthenticated, AccountID: accountID.String(), Role: role,
	})
}

func httpCode(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return 0
}

func TestPatientScope(t *testing.T) {
	patientAcct, patientID := uuid.New(), uuid.New()
	doctorAcct := uuid.New()
	r := StaticResolver{Patients: map[uuid.UUID]uuid.UUID{patientAcct: patientID}}
	other := uuid.NewString()

	got, err := PatientScope(sessionCtx(patientAcct, auth.RolePatient), r, "")
	if err != nil || got != patientID {
		t.Errorf("patient without request: got %s %v", got, err)
	}
	if _, err := PatientScope(sessionCtx(patientAcct, auth.RolePatient), r, other); httpCode(err) != http.StatusForbidden {
		t.Errorf("patient requesting another patient: expected 403, got %v", err)
	}
	got, err = PatientScope(sessionCtx(doctorAcct, auth.RoleDoctor), r, other)
	if err != nil || got.String() != other {
		t.Errorf("doctor: got %s %v", got, err)
	}
	if _, err := PatientScope(sessionCtx(doctorAcct, auth.RoleDoctor), r, ""); httpCode(err) != http.StatusBadRequest {
		t.Errorf("doctor without patient: expected 400, got %v", err)
	}
	if _, err := PatientScope(context.Background(), r, ""); httpCode(err) != http.StatusUnauthorized {
		t.Errorf("anonymous: expected 401, got %v", err)
	}
	if _, err := PatientScope(sessionCtx(uuid.New(), auth.RolePatient), r, ""); httpCode(err) != http.StatusNotFound {
		t.Errorf("patient without record: expected 404, got %v", err)
	}
}

func TestPatientScope_OwnIDAnyCase(t *testing.T) {
	patientAcct, patientID := uuid.New(), uuid.New()
	r := StaticResolver{Patients: map[uuid.UUID]uuid.UUID{patientAcct: patientID}}
	ctx := sessionCtx(patientAcct, auth.RolePatient)

	got, err := PatientScope(ctx, r, strings.ToUpper(patientID.String()))
	if err != nil || got != patientID {
		t.Errorf("uppercase own id: got %s %v", got, err)
	}
	if _, err := PatientScope(ctx, r, "not-an-id"); httpCode(err) != http.StatusBadRequest {
		t.Errorf("malformed id: expected 400, got %v", err)
	}
}

func TestCanRead(t *testing.T) {
	patientAcct, patientID := uuid.New(), uuid.New()
	r := StaticResolver{Patients: map[uuid.UUID]uuid.UUID{patientAcct: patientID}}

	if ok, _ := CanRead(sessionCtx(patientAcct, auth.RolePatient), r, patientID); !ok {
		t.Error("patient should read own record")
	}
	if ok, _ := CanRead(sessionCtx(patientAcct, auth.RolePatient), r, uuid.New()); ok {
		t.Error("patient should not read another record")
	}
	if ok, _ := CanRead(sessionCtx(uuid.New(), auth.RoleDoctor), r, uuid.New()); !ok {
		t.Error("doctor should read any record")
	}
}

func TestDoctorID(t *testing.T) {
	doctorAcct, doctorID := uuid.New(), uuid.New()
	r := StaticResolver{Doctors: map[uuid.UUID]uuid.UUID{doctorAcct: doctorID}}

	got, err := DoctorID(sessionCtx(doctorAcct, auth.RoleDoctor), r)
	if err != nil || got != doctorID {
		t.Errorf("got %s %v", got, err)
	}
	if _, err := DoctorID(sessionCtx(uuid.New(), auth.RolePatient), r); httpCode(err) != http.StatusForbidden {
		t.Errorf("patient: expected 403, got %v", err)
	}
}

func TestRequirePatient(t *testing.T) {
	linked, unlinked := uuid.New(), uuid.New()
	r := StaticResolver{Patients: map[uuid.UUID]uuid.UUID{uuid.New(): linked}, Unlinked: []uuid.UUID{unlinked}}
	ctx := context.Background()

	if err := RequirePatient(ctx, r, linked); err != nil {
		t.Errorf("linked patient: %v", err)
	}
	if err := RequirePatient(ctx, r, unlinked); err != nil {
		t.Errorf("unlinked patient: %v", err)
	}
	if err := RequirePatient(ctx, r, uuid.New()); !errors.Is(err, ErrUnknownPatient) {
		t.Errorf("expected ErrUnknownPatient, got %v", err)
	}
}
