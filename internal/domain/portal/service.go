package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/portal/internal/domain/clinical"
	"github.com/ehr/portal/internal/domain/diagnostics"
	"github.com/ehr/portal/internal/domain/identity"
	"github.com/ehr/portal/internal/domain/medication"
	"github.com/ehr/portal/internal/platform/access"
	"github.com/ehr/portal/internal/platform/auth"
	"github.com/ehr/portal/internal/platform/validation"
	"github.com/ehr/portal/pkg/dates"
)

// Profiles is the patient and doctor directory the portal reads and edits.
type Profiles interface {
	access.Directory
	GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
	GetPatientByAccount(ctx context.Context, accountID uuid.UUID) (*identity.Patient, error)
	UpdatePatient(ctx context.Context, p *identity.Patient) error
	GetDoctor(ctx context.Context, id uuid.UUID) (*identity.Doctor, error)
	GetDoctorByAccount(ctx context.Context, accountID uuid.UUID) (*identity.Doctor, error)
	UpdateDoctor(ctx context.Context, d *identity.Doctor) error
}

type DiagnosisSource interface {
	ListRecentByDoctor(ctx context.Context, doctorID uuid.UUID, limit int) ([]*clinical.Diagnosis, error)
	LatestForPatient(ctx context.Context, patientID uuid.UUID) (*clinical.Diagnosis, error)
}

type PrescriptionSource interface {
	ListRecentByDoctor(ctx context.Context, doctorID uuid.UUID, limit int) ([]*medication.Prescription, error)
	ActiveForPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*medication.Prescription, error)
}

type LabReportSource interface {
	ListRecentByDoctor(ctx context.Context, doctorID uuid.UUID, limit int) ([]*diagnostics.LabReport, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*diagnostics.LabReport, int, error)
}

type Service struct {
	profiles      Profiles
	diagnoses     DiagnosisSource
	prescriptions PrescriptionSource
	labReports    LabReportSource
	appointments  AppointmentRepository
	settings      SettingsRepository
	loc           *time.Location
	now           func() time.Time
}

type ServiceDeps struct {
	Profiles      Profiles
	Diagnoses     DiagnosisSource
	Prescriptions PrescriptionSource
	LabReports    LabReportSource
	Appointments  AppointmentRepository
	Settings      SettingsRepository
	Location      *time.Location
}

func NewService(d ServiceDeps) *Service {
	if d.Location == nil {
		d.Location = time.UTC
	}
	return &Service{
		profiles:      d.Profiles,
		diagnoses:     d.Diagnoses,
		prescriptions: d.Prescriptions,
		labReports:    d.LabReports,
		appointments:  d.Appointments,
		settings:      d.Settings,
		loc:           d.Location,
		now:           time.Now,
	}
}

func (s *Service) Location() *time.Location { return s.loc }
func (s *Service) Now() time.Time           { return s.now() }

// -- Dashboards --

// DoctorDashboard assembles the signed-in doctor's landing page.
func (s *Service) DoctorDashboard(ctx context.Context, accountID uuid.UUID) (*DoctorDashboard, error) {
	doc, err := s.profiles.GetDoctorByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	now := s.now()

	diagnoses, err := s.diagnoses.ListRecentByDoctor(ctx, doc.ID, taskScanLimit)
	if err != nil {
		return nil, fmt.Errorf("load recent diagnoses: %w", err)
	}
	prescriptions, err := s.prescriptions.ListRecentByDoctor(ctx, doc.ID, taskScanLimit)
	if err != nil {
		return nil, fmt.Errorf("load recent prescriptions: %w", err)
	}
	reports, err := s.labReports.ListRecentByDoctor(ctx, doc.ID, taskScanLimit)
	if err != nil {
		return nil, fmt.Errorf("load recent lab reports: %w", err)
	}
	appts, err := s.appointments.ListUpcomingByDoctor(ctx, doc.ID, now, dashboardLimit)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}

	names := newNameCache(s.profiles)
	dash := &DoctorDashboard{
		Doctor:               DoctorSummary{ID: doc.ID, Name: doc.Name, Specialization: deref(doc.Specialization)},
		RecentPatients:       []RecentPatient{},
		UpcomingAppointments: []UpcomingAppointment{},
		QuickActions:         doctorQuickActions,
	}
	for _, d := range recentPatients(diagnoses, dashboardLimit) {
		dash.RecentPatients = append(dash.RecentPatients, RecentPatient{
			PatientID:   d.PatientID,
			Name:        names.patient(ctx, d.PatientID),
			Condition:   d.Condition,
			LastVisit:   dates.Display(dates.DateOnly(d.Date)),
			DiagnosisID: d.ID,
		})
	}
	for _, a := range appts {
		dash.UpcomingAppointments = append(dash.UpcomingAppointments, newUpcoming(a, names.patient(ctx, a.PatientID), now, s.loc))
	}
	dash.PendingTasks = DeriveTasks(diagnoses, prescriptions, reports, now, s.loc)
	for i := range dash.PendingTasks {
		dash.PendingTasks[i].PatientName = names.patient(ctx, dash.PendingTasks[i].PatientID)
	}
	return dash, nil
}

// PatientDashboard assembles the signed-in patient's landing page.
func (s *Service) PatientDashboard(ctx context.Context, accountID uuid.UUID) (*PatientDashboard, error) {
	p, err := s.profiles.GetPatientByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}
	now := s.now()

	dash := &PatientDashboard{
		Patient: PatientInfo{
			ID:         p.ID,
			Name:       p.FullName(),
			Age:        identity.Age(p.DateOfBirth, now.In(s.loc)),
			BloodGroup: deref(p.BloodGroup),
			Email:      p.Email,
			Phone:      deref(p.Phone),
		},
		UpcomingAppointments: []UpcomingAppointment{},
	}

	latest, err := s.diagnoses.LatestForPatient(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("load latest diagnosis: %w", err)
	}
	names := newNameCache(s.profiles)
	if latest != nil {
		ld := &LatestDiagnosis{DiagnosisView: clinical.NewView(latest)}
		if latest.DoctorID != nil {
			ld.DoctorName = names.doctor(ctx, *latest.DoctorID)
		}
		dash.LatestDiagnosis = ld
	}

	active, err := s.prescriptions.ActiveForPatient(ctx, p.ID, dashboardLimit)
	if err != nil {
		return nil, fmt.Errorf("load prescriptions: %w", err)
	}
	dash.ActivePrescriptions = medication.NewViews(active, now, s.loc)

	appts, err := s.appointments.ListUpcomingByPatient(ctx, p.ID, now, dashboardLimit)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	for _, a := range appts {
		dash.UpcomingAppointments = append(dash.UpcomingAppointments, newUpcoming(a, names.doctor(ctx, a.DoctorID), now, s.loc))
	}

	reports, _, err := s.labReports.ListByPatient(ctx, p.ID, dashboardLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("load lab reports: %w", err)
	}
	dash.RecentLabReports = diagnostics.NewViews(reports)
	return dash, nil
}

// nameCache resolves display names once per request. Lookup failures
// leave the name blank.
type nameCache struct {
	profiles Profiles
	names    map[uuid.UUID]string
}

func newNameCache(p Profiles) *nameCache {
	return &nameCache{profiles: p, names: make(map[uuid.UUID]string)}
}

func (n *nameCache) patient(ctx context.Context, id uuid.UUID) string {
	if name, ok := n.names[id]; ok {
		return name
	}
	var name string
	if p, err := n.profiles.GetPatient(ctx, id); err == nil {
		name = p.FullName()
	}
	n.names[id] = name
	return name
}

func (n *nameCache) doctor(ctx context.Context, id uuid.UUID) string {
	if name, ok := n.names[id]; ok {
		return name
	}
	var name string
	if d, err := n.profiles.GetDoctor(ctx, id); err == nil {
		name = d.Name
	}
	n.names[id] = name
	return name
}

// -- Appointments --

// BookAppointment schedules a visit with the signed-in doctor. The slot must
// not be in the past.
func (s *Service) BookAppointment(ctx context.Context, doctorID uuid.UUID, form AppointmentForm) (*Appointment, error) {
	if err := validation.Struct(form); err != nil {
		return nil, err
	}
	patientID, err := uuid.Parse(form.PatientID)
	if err != nil {
		return nil, &validation.Error{Field: "patient_id", Message: "patient_id must be a valid id"}
	}
	at, err := time.ParseInLocation(dates.ISOLayout+" 15:04", form.Date+" "+form.Time, s.loc)
	if err != nil {
		return nil, &validation.Error{Field: "time", Message: "time must be in HH:MM format"}
	}
	if at.Before(s.now()) {
		return nil, &validation.Error{Field: "date", Message: "appointment must be in the future"}
	}
	if err := access.RequirePatient(ctx, s.profiles, patientID); err != nil {
		return nil, err
	}

	a := &Appointment{
		PatientID:   patientID,
		DoctorID:    doctorID,
		ScheduledAt: at.UTC(),
		Type:        strings.TrimSpace(form.Type),
		Status:      AppointmentScheduled,
	}
	if a.Type == "" {
		a.Type = defaultAppointmentType
	}
	if err := s.appointments.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	return a, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

// UpdateAppointmentStatus completes or cancels an appointment. Only the
// doctor it was booked with may change it.
func (s *Service) UpdateAppointmentStatus(ctx context.Context, doctorID, id uuid.UUID, upd AppointmentStatusUpdate) (*Appointment, error) {
	if err := validation.Struct(upd); err != nil {
		return nil, err
	}
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.DoctorID != doctorID {
		return nil, ErrNotFound
	}
	status := AppointmentStatus(upd.Status)
	if err := s.appointments.UpdateStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}
	a.Status = status
	return a, nil
}

// UpcomingFor lists the caller's own scheduled appointments.
func (s *Service) UpcomingFor(ctx context.Context, sess auth.Session, limit int) ([]UpcomingAppointment, error) {
	acct, err := uuid.Parse(sess.AccountID)
	if err != nil {
		return nil, access.ErrNoProfile
	}
	now := s.now()
	names := newNameCache(s.profiles)
	out := []UpcomingAppointment{}

	if sess.Role == auth.RoleDoctor {
		doctorID, err := s.profiles.DoctorIDForAccount(ctx, acct)
		if err != nil {
			return nil, err
		}
		appts, err := s.appointments.ListUpcomingByDoctor(ctx, doctorID, now, limit)
		if err != nil {
			return nil, err
		}
		for _, a := range appts {
			out = append(out, newUpcoming(a, names.patient(ctx, a.PatientID), now, s.loc))
		}
		return out, nil
	}

	patientID, err := s.profiles.PatientIDForAccount(ctx, acct)
	if err != nil {
		return nil, err
	}
	appts, err := s.appointments.ListUpcomingByPatient(ctx, patientID, now, limit)
	if err != nil {
		return nil, err
	}
	for _, a := range appts {
		out = append(out, newUpcoming(a, names.doctor(ctx, a.DoctorID), now, s.loc))
	}
	return out, nil
}

// -- Profiles --

// Profile is what the profile pages show: the record plus its settings.
type Profile struct {
	Role     auth.Role         `json:"role"`
	Patient  *identity.Patient `json:"patient,omitempty"`
	Doctor   *identity.Doctor  `json:"doctor,omitempty"`
	Settings Settings          `json:"settings"`
}

func (s *Service) GetProfile(ctx context.Context, accountID uuid.UUID, role auth.Role) (*Profile, error) {
	settings, err := s.GetSettings(ctx, accountID, role)
	if err != nil {
		return nil, err
	}
	prof := &Profile{Role: role, Settings: settings}
	if role == auth.RoleDoctor {
		prof.Doctor, err = s.profiles.GetDoctorByAccount(ctx, accountID)
	} else {
		prof.Patient, err = s.profiles.GetPatientByAccount(ctx, accountID)
	}
	if err != nil {
		return nil, err
	}
	return prof, nil
}

func (s *Service) UpdatePatientProfile(ctx context.Context, accountID uuid.UUID, form PatientProfileForm) (*identity.Patient, error) {
	if err := validation.Struct(form); err != nil {
		return nil, err
	}
	p, err := s.profiles.GetPatientByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := form.apply(p); err != nil {
		return nil, err
	}
	if err := s.profiles.UpdatePatient(ctx, p); err != nil {
		return nil, fmt.Errorf("update patient: %w", err)
	}
	return p, nil
}

func (s *Service) UpdateDoctorProfile(ctx context.Context, accountID uuid.UUID, form DoctorProfileForm) (*identity.Doctor, error) {
	if err := validation.Struct(form); err != nil {
		return nil, err
	}
	d, err := s.profiles.GetDoctorByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	form.apply(d)
	if err := s.profiles.UpdateDoctor(ctx, d); err != nil {
		return nil, fmt.Errorf("update doctor: %w", err)
	}
	return d, nil
}

// -- Settings --

// GetSettings returns the role defaults overlaid with what the account saved.
func (s *Service) GetSettings(ctx context.Context, accountID uuid.UUID, role auth.Role) (Settings, error) {
	stored, err := s.settings.Get(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return Overlay(Defaults(role), stored), nil
}

// SaveSection applies values to one section and persists the snapshot.
// Nothing is saved if any value is rejected.
func (s *Service) SaveSection(ctx context.Context, accountID uuid.UUID, role auth.Role, form SettingsForm) (Settings, error) {
	if !hasSection(role, form.Section) {
		return nil, &validation.Error{Field: "section", Message: fmt.Sprintf("unknown settings section %q", form.Section)}
	}
	cur, err := s.GetSettings(ctx, accountID, role)
	if err != nil {
		return nil, err
	}
	for k, v := range form.Values {
		key := form.Section + "." + k
		if cur, err = Set(cur, key, v); err != nil {
			return nil, &validation.Error{Field: key, Message: err.Error()}
		}
	}
	if err := s.settings.Save(ctx, accountID, cur); err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}
	return cur, nil
}

// ToggleSetting flips one boolean setting and persists the snapshot.
func (s *Service) ToggleSetting(ctx context.Context, accountID uuid.UUID, role auth.Role, key string) (Settings, error) {
	cur, err := s.GetSettings(ctx, accountID, role)
	if err != nil {
		return nil, err
	}
	next, err := Toggle(cur, key)
	if err != nil {
		return nil, &validation.Error{Field: "key", Message: err.Error()}
	}
	if err := s.settings.Save(ctx, accountID, next); err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}
	return next, nil
}

func hasSection(role auth.Role, section string) bool {
	for _, s := range Sections(role) {
		if s == section {
			return true
		}
	}
	return false
}

// IsMissingProfile reports whether err means the account has no record.
func IsMissingProfile(err error) bool {
	return errors.Is(err, identity.ErrNotFound) || errors.Is(err, access.ErrNoProfile)
}
