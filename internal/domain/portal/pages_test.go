package portal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/portal/internal/platform/auth"
)

type recordingGate struct {
	calls []string
}

func (r *recordingGate) ObserveGate(page, decision string) {
	r.calls = append(r.calls, page+":"+decision)
}

func newTestPages() (*echo.Echo, *recordingGate) {
	obs := &recordingGate{}
	e := echo.New()
	NewPages(newTestService(), PagesConfig{LabReportMaxBytes: 10 << 20, Observer: obs}).Register(e)
	return e, obs
}

func serve(e *echo.Echo, path string, sess auth.Session) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req = req.WithContext(auth.WithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func signedIn(account uuid.UUID, role auth.Role) auth.Session {
	return auth.Session{State: auth.SessionAuthenticated, AccountID: account.String(), Role: role}
}

func TestPages_Gate(t *testing.T) {
	doctor := signedIn(doctorAccount, auth.RoleDoctor)
	patient := signedIn(patientAccount, auth.RolePatient)

	tests := []struct {
		name     string
		path     string
		sess     auth.Session
		code     int
		location string
	}{
		{"unresolved waits", "/doctor-dashboard", auth.Unresolved(), http.StatusServiceUnavailable, ""},
		{"anonymous to login", "/patient-profile", auth.Unauthenticated(), http.StatusFound, "/login"},
		{"patient on doctor page", "/add-prescription", patient, http.StatusFound, "/patient-dashboard"},
		{"doctor on patient page", "/patient-dashboard", doctor, http.StatusFound, "/doctor-dashboard"},
		{"doctor renders", "/find-patient", doctor, http.StatusOK, ""},
		{"patient renders", "/patient-dashboard", patient, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestPages()
			rec := serve(e, tt.path, tt.sess)
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, rec.Code, rec.Body.String())
			}
			if loc := rec.Header().Get("Location"); loc != tt.location {
				t.Errorf("expected Location %q, got %q", tt.location, loc)
			}
		})
	}
}

func TestPages_LoadingBody(t *testing.T) {
	e, obs := newTestPages()
	rec := serve(e, "/add-diagnosis", auth.Unresolved())

	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("expected Retry-After: 1, got %q", rec.Header().Get("Retry-After"))
	}
	if strings.TrimSpace(rec.Body.String()) != `{"state":"loading"}` {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if len(obs.calls) != 1 || obs.calls[0] != "add-diagnosis:loading" {
		t.Errorf("unexpected observations %v", obs.calls)
	}
}

func TestPages_DoctorDashboardPayload(t *testing.T) {
	e, _ := newTestPages()
	rec := serve(e, "/doctor-dashboard", signedIn(doctorAccount, auth.RoleDoctor))

	var body struct {
		Page string          `json:"page"`
		Data DoctorDashboard `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Page != "doctor-dashboard" || body.Data.Doctor.Name != "Dr. Sarah Wilson" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestPages_FormPayloads(t *testing.T) {
	e, _ := newTestPages()
	doctor := signedIn(doctorAccount, auth.RoleDoctor)

	rec := serve(e, "/add-prescription?patient_id="+patientID.String(), doctor)
	var rx struct {
		Data struct {
			Draft struct {
				PatientID   string            `json:"patient_id"`
				StartDate   string            `json:"start_date"`
				Medications []json.RawMessage `json:"medications"`
			} `json:"draft"`
		} `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &rx)
	if rx.Data.Draft.PatientID != patientID.String() || rx.Data.Draft.StartDate != "2024-06-10" || len(rx.Data.Draft.Medications) != 1 {
		t.Errorf("unexpected prescription draft %s", rec.Body.String())
	}

	rec = serve(e, "/add-lab-report", doctor)
	if !strings.Contains(rec.Body.String(), `"Blood Test - CBC"`) || !strings.Contains(rec.Body.String(), `"max_bytes":10485760`) {
		t.Errorf("unexpected lab report form %s", rec.Body.String())
	}
}

func TestPages_MissingProfileIs404(t *testing.T) {
	e, _ := newTestPages()
	rec := serve(e, "/patient-dashboard", signedIn(uuid.New(), auth.RolePatient))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an account without a record, got %d", rec.Code)
	}
}

func TestPages_Landing(t *testing.T) {
	e, _ := newTestPages()

	rec := serve(e, "/", auth.Unauthenticated())
	if rec.Code != http.StatusOK || strings.Contains(rec.Body.String(), "dashboard") {
		t.Errorf("unexpected anonymous landing %d %s", rec.Code, rec.Body.String())
	}
	rec = serve(e, "/", signedIn(patientAccount, auth.RolePatient))
	if !strings.Contains(rec.Body.String(), `"dashboard":"/patient-dashboard"`) {
		t.Errorf("expected a dashboard link, got %s", rec.Body.String())
	}
}

func TestPages_Login(t *testing.T) {
	e, _ := newTestPages()

	rec := serve(e, "/login", auth.Unauthenticated())
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"page":"login"`) {
		t.Errorf("unexpected login page %d %s", rec.Code, rec.Body.String())
	}
	rec = serve(e, "/login", signedIn(doctorAccount, auth.RoleDoctor))
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/doctor-dashboard" {
		t.Errorf("expected redirect to dashboard, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestPages_NotFound(t *testing.T) {
	e, _ := newTestPages()

	rec := serve(e, "/no-such-page", auth.Unauthenticated())
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"page":"not-found"`) || !strings.Contains(rec.Body.String(), `"path":"/no-such-page"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	rec = serve(e, "/api/v1/nothing", auth.Unauthenticated())
	if rec.Code != http.StatusNotFound || strings.Contains(rec.Body.String(), "not-found") {
		t.Errorf("API paths should not get the page payload, got %s", rec.Body.String())
	}
}
