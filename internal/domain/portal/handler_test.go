package portal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/portal/internal/platform/auth"
	"github.com/ehr/portal/internal/platform/validation"
)

func newTestHandler() (*Handler, *testDeps, *echo.Echo) {
	svc, d := newTestServiceWithDeps()
	return NewHandler(svc, d.profiles), d, echo.New()
}

func asSession(req *http.Request, accountID uuid.UUID, role auth.Role) *http.Request {
	return req.WithContext(auth.WithSession(req.Context(), auth.Session{
		State: auth.SessionAuthenticated, AccountID: accountID.String(), Role: role,
	}))
}

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func httpCode(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return 0
}

type resultBody struct {
	Data   json.RawMessage `json:"data"`
	Notice struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"notice"`
	Redirect string `json:"redirect"`
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) resultBody {
	t.Helper()
	var body resultBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestHandler_BookAppointment(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"patient_id":"` + patientID.String() + `","date":"2024-06-11","time":"14:00","type":"Follow-up"}`
	req := asSession(jsonRequest(http.MethodPost, body), doctorAccount, auth.RoleDoctor)
	rec := httptest.NewRecorder()

	if err := h.BookAppointment(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	res := decodeResult(t, rec)
	if res.Notice.Title != "Appointment Scheduled" || res.Redirect != auth.DoctorDashboardPath {
		t.Errorf("unexpected result %s", rec.Body.String())
	}
}

func TestHandler_BookAppointment_UnknownPatient(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"patient_id":"` + uuid.NewString() + `","date":"2024-06-11","time":"14:00"}`
	req := asSession(jsonRequest(http.MethodPost, body), doctorAccount, auth.RoleDoctor)

	err := h.BookAppointment(e.NewContext(req, httptest.NewRecorder()))
	if httpCode(err) != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_UpdateAppointmentStatus_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	req := asSession(jsonRequest(http.MethodPatch, `{"status":"completed"}`), doctorAccount, auth.RoleDoctor)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())

	if err := h.UpdateAppointmentStatus(c); httpCode(err) != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_DoctorDashboard(t *testing.T) {
	h, _, e := newTestHandler()
	req := asSession(httptest.NewRequest(http.MethodGet, "/", nil), doctorAccount, auth.RoleDoctor)
	rec := httptest.NewRecorder()

	if err := h.DoctorDashboard(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, key := range []string{`"recent_patients":[]`, `"upcoming_appointments":[]`, `"pending_tasks":[]`, `"/find-patient"`} {
		if !strings.Contains(rec.Body.String(), key) {
			t.Errorf("expected %s in %s", key, rec.Body.String())
		}
	}
}

func TestHandler_UpdateProfile_Patient(t *testing.T) {
	h, _, e := newTestHandler()
	req := asSession(jsonRequest(http.MethodPut, `{"first_name":"Jane","last_name":"Doe","phone":"555-0199"}`), patientAccount, auth.RolePatient)
	rec := httptest.NewRecorder()

	if err := h.UpdateProfile(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res := decodeResult(t, rec)
	if res.Notice.Title != "Profile Updated" || res.Notice.Description != "Your personal information has been saved successfully." {
		t.Errorf("unexpected notice %+v", res.Notice)
	}
}

func TestHandler_UpdateProfile_Doctor(t *testing.T) {
	h, _, e := newTestHandler()
	req := asSession(jsonRequest(http.MethodPut, `{"name":"Dr. Sarah Wilson","department":"Cardiology"}`), doctorAccount, auth.RoleDoctor)
	rec := httptest.NewRecorder()

	if err := h.UpdateProfile(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res := decodeResult(t, rec)
	if res.Notice.Title != "Settings Saved" || res.Notice.Description != "Professional settings have been updated successfully." {
		t.Errorf("unexpected notice %+v", res.Notice)
	}
}

func TestHandler_UpdateProfile_Validation(t *testing.T) {
	h, _, e := newTestHandler()
	req := asSession(jsonRequest(http.MethodPut, `{"first_name":""}`), patientAccount, auth.RolePatient)

	err := h.UpdateProfile(e.NewContext(req, httptest.NewRecorder()))
	var ve *validation.Error
	if !errors.As(err, &ve) || ve.Field != "first_name" {
		t.Errorf("expected first_name validation error, got %v", err)
	}
}

func TestHandler_SaveSettings_Notices(t *testing.T) {
	tests := []struct {
		name    string
		account uuid.UUID
		role    auth.Role
		body    string
		title   string
		desc    string
	}{
		{"doctor practice", doctorAccount, auth.RoleDoctor, `{"section":"practice","values":{"weekends":true}}`,
			"Settings Saved", "Practice settings have been updated successfully."},
		{"doctor notifications", doctorAccount, auth.RoleDoctor, `{"section":"notifications","values":{"sms_alerts":true}}`,
			"Settings Saved", "Notifications settings have been updated successfully."},
		{"patient privacy", patientAccount, auth.RolePatient, `{"section":"privacy","values":{"allow_data_analytics":false}}`,
			"Privacy Settings Updated", "Your privacy preferences have been saved."},
		{"patient notifications", patientAccount, auth.RolePatient, `{"section":"notifications","values":{"email_updates":true}}`,
			"Notification Settings Updated", "Your notification preferences have been saved."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, e := newTestHandler()
			req := asSession(jsonRequest(http.MethodPut, tt.body), tt.account, tt.role)
			rec := httptest.NewRecorder()
			if err := h.SaveSettings(e.NewContext(req, rec)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			res := decodeResult(t, rec)
			if res.Notice.Title != tt.title || res.Notice.Description != tt.desc {
				t.Errorf("unexpected notice %+v", res.Notice)
			}
		})
	}
}

func TestHandler_ToggleSetting(t *testing.T) {
	h, d, e := newTestHandler()
	req := asSession(jsonRequest(http.MethodPost, `{"key":"privacy.marketing_communications"}`), patientAccount, auth.RolePatient)
	rec := httptest.NewRecorder()

	if err := h.ToggleSetting(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.settings.store[patientAccount]["privacy.marketing_communications"] != true {
		t.Error("expected the toggled value to be saved")
	}

	req = asSession(jsonRequest(http.MethodPost, `{"key":"privacy.unknown"}`), patientAccount, auth.RolePatient)
	err := h.ToggleSetting(e.NewContext(req, httptest.NewRecorder()))
	var ve *validation.Error
	if !errors.As(err, &ve) || ve.Field != "key" {
		t.Errorf("expected key validation error, got %v", err)
	}
}

func TestHandler_ListAppointments_Patient(t *testing.T) {
	h, d, e := newTestHandler()
	d.appointments.Create(context.Background(), &Appointment{PatientID: patientID, DoctorID: doctorID, ScheduledAt: fixedNow.Add(72 * time.Hour), Type: "Consultation", Status: AppointmentScheduled})

	req := asSession(httptest.NewRequest(http.MethodGet, "/", nil), patientAccount, auth.RolePatient)
	rec := httptest.NewRecorder()
	if err := h.ListAppointments(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"with":"Dr. Sarah Wilson"`) || !strings.Contains(rec.Body.String(), `"day":"Jun 13, 2024"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}
