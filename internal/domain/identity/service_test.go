package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/portal/internal/platform/access"
	"github.com/ehr/portal/internal/platform/auth"
	"github.com/ehr/portal/internal/platform/events"
	"github.com/ehr/portal/internal/platform/validation"
)

func TestService_SignUp_PatientDefault(t *testing.T) {
	svc, d := newTestServiceWithDeps()
	ctx := context.Background()

	acct, err := svc.SignUp(ctx, SignUpRequest{Email: "jane@example.com", Password: "secret1", FullName: "Jane Smith"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acct.Role != auth.RolePatient {
		t.Errorf("expected default role patient, got %s", acct.Role)
	}
	if acct.PasswordHash == "secret1" || acct.PasswordHash == "" {
		t.Error("expected password to be hashed")
	}

	p, err := d.patients.GetByAccountID(ctx, acct.ID)
	if err != nil {
		t.Fatalf("expected patient record: %v", err)
	}
	if p.FirstName != "Jane" || p.LastName != "Smith" || p.Email != "jane@example.com" {
		t.Errorf("unexpected patient %+v", p)
	}
	if len(d.doctors.store) != 0 {
		t.Error("no doctor record expected for a patient account")
	}
}

func TestService_SignUp_Doctor(t *testing.T) {
	svc, d := newTestServiceWithDeps()
	ctx := context.Background()

	acct, err := svc.SignUp(ctx, SignUpRequest{Email: "house@example.com", Password: "secret1", Role: "doctor"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc, err := d.doctors.GetByAccountID(ctx, acct.ID)
	if err != nil {
		t.Fatalf("expected doctor record: %v", err)
	}
	if doc.Name != "house" {
		t.Errorf("expected name derived from email, got %q", doc.Name)
	}
}

func TestService_SignUp_Validation(t *testing.T) {
	svc := newTestService()
	tests := []struct {
		req  SignUpRequest
		want string
	}{
		{SignUpRequest{Email: "", Password: "secret1"}, "email is required"},
		{SignUpRequest{Email: "not-an-email", Password: "secret1"}, "email must be a valid email address"},
		{SignUpRequest{Email: "a@b.com", Password: "12345"}, "password must be at least 6 characters"},
		{SignUpRequest{Email: "a@b.com", Password: "secret1", Role: "nurse"}, "role must be one of: doctor, patient"},
	}
	for _, tt := range tests {
		_, err := svc.SignUp(context.Background(), tt.req)
		if !validation.IsValidationError(err) {
			t.Errorf("%+v: expected validation error, got %v", tt.req, err)
			continue
		}
		if err.Error() != tt.want {
			t.Errorf("expected %q, got %q", tt.want, err.Error())
		}
	}
}

func TestService_SignUp_DuplicateEmail(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "dup@example.com", Password: "secret1"}); err != nil {
		t.Fatal(err)
	}
	_, err := svc.SignUp(ctx, SignUpRequest{Email: "DUP@example.com", Password: "secret1"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestService_SignIn(t *testing.T) {
	svc, d := newTestServiceWithDeps()
	ctx := context.Background()
	acct, _ := svc.SignUp(ctx, SignUpRequest{Email: "doc@example.com", Password: "secret1", Role: "doctor"})

	res, err := svc.SignIn(ctx, SignInRequest{Email: "doc@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Token == "" {
		t.Fatal("expected a token")
	}
	claims, err := d.tokens.Parse(res.Token)
	if err != nil {
		t.Fatalf("token does not verify: %v", err)
	}
	if claims.Subject != acct.ID.String() || claims.Role != auth.RoleDoctor {
		t.Errorf("unexpected claims %+v", claims)
	}
	if !res.Session.IsAuthenticated() || res.Session.TokenID == "" {
		t.Errorf("unexpected session %+v", res.Session)
	}
	if acct.LastSignIn == nil {
		t.Error("expected last sign-in to be recorded")
	}
}

func TestService_SignIn_InvalidCredentials(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	svc.SignUp(ctx, SignUpRequest{Email: "p@example.com", Password: "secret1"})

	for _, req := range []SignInRequest{
		{Email: "p@example.com", Password: "wrong-password"},
		{Email: "nobody@example.com", Password: "secret1"},
	} {
		if _, err := svc.SignIn(ctx, req); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("%s: expected ErrInvalidCredentials, got %v", req.Email, err)
		}
	}
}

func TestService_SignOut_RevokesToken(t *testing.T) {
	svc, d := newTestServiceWithDeps()
	ctx := context.Background()
	svc.SignUp(ctx, SignUpRequest{Email: "p@example.com", Password: "secret1"})
	res, _ := svc.SignIn(ctx, SignInRequest{Email: "p@example.com", Password: "secret1"})

	if err := svc.SignOut(ctx, res.Session); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	revoked, err := d.revocations.IsRevoked(ctx, res.Session.TokenID)
	if err != nil || !revoked {
		t.Errorf("expected token to be revoked, got %v %v", revoked, err)
	}

	if err := svc.SignOut(ctx, auth.Unauthenticated()); err != nil {
		t.Errorf("signing out an anonymous session should be a no-op: %v", err)
	}
}

func TestService_Subscribe(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	ch, unsubscribe := svc.Subscribe()

	svc.SignUp(ctx, SignUpRequest{Email: "p@example.com", Password: "secret1"})
	res, _ := svc.SignIn(ctx, SignInRequest{Email: "p@example.com", Password: "secret1"})
	svc.SignOut(ctx, res.Session)

	var got []string
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case ev := <-ch:
			if ev.AccountID != res.Session.AccountID {
				t.Errorf("unexpected account %s", ev.AccountID)
			}
			got = append(got, ev.Type)
		case <-timeout:
			t.Fatalf("timed out, got %v", got)
		}
	}
	if got[0] != events.TypeSignedIn || got[1] != events.TypeSignedOut {
		t.Errorf("expected signed_in then signed_out, got %v", got)
	}

	unsubscribe()
	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after unsubscribe")
	}
}

func TestService_CurrentSession(t *testing.T) {
	svc := newTestService()
	if got := svc.CurrentSession(context.Background()); got.State != auth.SessionUnauthenticated {
		t.Errorf("expected unauthenticated, got %s", got.State)
	}
	sess := auth.Session{State: auth.SessionAuthenticated, AccountID: "a", Role: auth.RolePatient}
	if got := svc.CurrentSession(auth.WithSession(context.Background(), sess)); got.AccountID != "a" {
		t.Errorf("expected session from context, got %+v", got)
	}
}

func TestService_SearchPatients(t *testing.T) {
	svc, d := newTestServiceWithDeps()
	ctx := context.Background()
	blood := "O-"
	dob := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	d.patients.Create(ctx, &Patient{FirstName: "Jane", LastName: "Smith", Email: "jane@example.com", BloodGroup: &blood, DateOfBirth: &dob})
	d.patients.Create(ctx, &Patient{FirstName: "John", LastName: "Doe", Email: "john@example.com"})
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	got, err := svc.SearchPatients(ctx, "smith")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Jane Smith" {
		t.Fatalf("unexpected results %+v", got)
	}
	if got[0].BloodGroup != "O-" || got[0].Age == nil || *got[0].Age != 34 {
		t.Errorf("unexpected summary %+v", got[0])
	}

	got, _ = svc.SearchPatients(ctx, "  ")
	if len(got) != 0 {
		t.Errorf("expected blank query to return nothing, got %d", len(got))
	}
}

func TestService_ResolvesProfiles(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	pat, _ := svc.SignUp(ctx, SignUpRequest{Email: "p@example.com", Password: "secret1"})
	doc, _ := svc.SignUp(ctx, SignUpRequest{Email: "d@example.com", Password: "secret1", Role: "doctor"})

	if _, err := svc.PatientIDForAccount(ctx, pat.ID); err != nil {
		t.Errorf("expected patient id: %v", err)
	}
	if _, err := svc.DoctorIDForAccount(ctx, doc.ID); err != nil {
		t.Errorf("expected doctor id: %v", err)
	}
	if _, err := svc.DoctorIDForAccount(ctx, pat.ID); !errors.Is(err, access.ErrNoProfile) {
		t.Errorf("expected ErrNoProfile, got %v", err)
	}
}

func TestService_PatientExists(t *testing.T) {
	svc, d := newTestServiceWithDeps()
	ctx := context.Background()
	svc.SignUp(ctx, SignUpRequest{Email: "p@example.com", Password: "secret1"})

	var patientID uuid.UUID
	for id := range d.patients.store {
		patientID = id
	}
	if ok, err := svc.PatientExists(ctx, patientID); !ok || err != nil {
		t.Errorf("expected patient to exist: %v %v", ok, err)
	}
	if ok, _ := svc.PatientExists(ctx, uuid.New()); ok {
		t.Error("unknown patient should not exist")
	}
}
