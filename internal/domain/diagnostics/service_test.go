package diagnostics

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/portal/internal/platform/access"
	"github.com/ehr/portal/internal/platform/blobstore"
	"github.com/ehr/portal/internal/platform/validation"
)

var (
	pdfBody = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")
	pngBody = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
)

// =========== Mock Repositories ===========

type mockLabReportRepo struct {
	store     map[uuid.UUID]*LabReport
	createErr error
}

func newMockLabReportRepo() *mockLabReportRepo {
	return &mockLabReportRepo{store: make(map[uuid.UUID]*LabReport)}
}

func (m *mockLabReportRepo) Create(_ context.Context, r *LabReport) error {
	if m.createErr != nil {
		return m.createErr
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.CreatedAt = time.Now()
	m.store[r.ID] = r
	return nil
}

func (m *mockLabReportRepo) GetByID(_ context.Context, id uuid.UUID) (*LabReport, error) {
	r, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

func (m *mockLabReportRepo) sorted(keep func(*LabReport) bool) []*LabReport {
	var result []*LabReport
	for _, r := range m.store {
		if keep(r) {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.After(result[j].Date) })
	return result
}

func (m *mockLabReportRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*LabReport, int, error) {
	result := m.sorted(func(r *LabReport) bool { return r.PatientID == patientID })
	total := len(result)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return result[offset:end], total, nil
}

func (m *mockLabReportRepo) ListRecentByDoctor(_ context.Context, doctorID uuid.UUID, limit int) ([]*LabReport, error) {
	result := m.sorted(func(r *LabReport) bool { return r.DoctorID != nil && *r.DoctorID == doctorID })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

type recordingObserver struct {
	outcomes []string
}

func (r *recordingObserver) ObserveUpload(outcome string, _ int64) {
	r.outcomes = append(r.outcomes, outcome)
}

var (
	patientAccount = uuid.New()
	patientID      = uuid.New()
	doctorAccount  = uuid.New()
	doctorID       = uuid.New()
)

func testResolver() access.StaticResolver {
	return access.StaticResolver{
		Patients: map[uuid.UUID]uuid.UUID{patientAccount: patientID},
		Doctors:  map[uuid.UUID]uuid.UUID{doctorAccount: doctorID},
	}
}

type testDeps struct {
	repo     *mockLabReportRepo
	store    *blobstore.MemoryStore
	observer *recordingObserver
}

func newTestService() (*Service, *testDeps) {
	d := &testDeps{repo: newMockLabReportRepo(), store: blobstore.NewMemoryStore(), observer: &recordingObserver{}}
	svc := NewService(d.repo, d.store, testResolver(), ServiceConfig{Observer: d.observer})
	return svc, d
}

func validForm() LabReportForm {
	return LabReportForm{
		PatientID: patientID.String(),
		Date:      "2024-06-01",
		TestType:  "Blood Test - CBC",
		Tags:      "routine, annual",
	}
}

func pdfUpload() Upload {
	return Upload{Name: "cbc.pdf", ContentType: "application/pdf", Size: int64(len(pdfBody)), Body: bytes.NewReader(pdfBody)}
}

// =========== Service Tests ===========

func TestService_AddLabReport(t *testing.T) {
	svc, d := newTestService()
	r, err := svc.AddLabReport(context.Background(), doctorID, validForm(), pdfUpload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Status != StatusPending {
		t.Errorf("expected default status pending, got %s", r.Status)
	}
	wantKey := "lab-reports/" + patientID.String() + "/" + r.ID.String() + ".pdf"
	if r.ObjectKey != wantKey {
		t.Errorf("expected key %s, got %s", wantKey, r.ObjectKey)
	}
	if r.SizeBytes != int64(len(pdfBody)) || len(r.Checksum) != 64 {
		t.Errorf("unexpected size or checksum: %d %q", r.SizeBytes, r.Checksum)
	}
	if len(r.Tags) != 2 {
		t.Errorf("unexpected tags %v", r.Tags)
	}

	rc, obj, err := svc.OpenFile(context.Background(), r)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if !bytes.Equal(got, pdfBody) || obj.ContentType != "application/pdf" {
		t.Error("stored file does not match the upload")
	}
	if len(d.observer.outcomes) != 1 || d.observer.outcomes[0] != "accepted" {
		t.Errorf("unexpected outcomes %v", d.observer.outcomes)
	}
}

func TestService_AddLabReport_RejectsBeforeStoring(t *testing.T) {
	tests := []struct {
		name    string
		form    func(*LabReportForm)
		upload  Upload
		wantErr error
		outcome string
	}{
		{
			name:    "too large",
			upload:  Upload{Name: "big.pdf", ContentType: "application/pdf", Size: blobstore.MaxLabReportSize, Body: bytes.NewReader(pdfBody)},
			wantErr: blobstore.ErrFileTooLarge,
			outcome: "rejected_size",
		},
		{
			name:    "wrong type",
			upload:  Upload{Name: "notes.txt", ContentType: "text/plain", Size: 5, Body: bytes.NewReader([]byte("hello"))},
			wantErr: blobstore.ErrInvalidContentType,
			outcome: "rejected_type",
		},
		{
			name:    "declared type disagrees with content",
			upload:  Upload{Name: "scan.pdf", ContentType: "application/pdf", Size: int64(len(pngBody)), Body: bytes.NewReader(pngBody)},
			wantErr: blobstore.ErrInvalidContentType,
			outcome: "rejected_type",
		},
		{
			name:    "empty",
			upload:  Upload{Name: "empty.pdf", ContentType: "application/pdf", Size: 0, Body: bytes.NewReader(nil)},
			wantErr: blobstore.ErrEmptyFile,
			outcome: "rejected_file",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, d := newTestService()
			_, err := svc.AddLabReport(context.Background(), doctorID, validForm(), tt.upload)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if d.store.Len() != 0 || len(d.repo.store) != 0 {
				t.Error("nothing should be stored for a rejected upload")
			}
			if len(d.observer.outcomes) != 1 || d.observer.outcomes[0] != tt.outcome {
				t.Errorf("expected outcome %s, got %v", tt.outcome, d.observer.outcomes)
			}
		})
	}
}

func TestService_AddLabReport_FormValidation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*LabReportForm)
		field string
	}{
		{"missing date", func(f *LabReportForm) { f.Date = "" }, "date"},
		{"unknown test type", func(f *LabReportForm) { f.TestType = "Blood Test - Unknown" }, "test_type"},
		{"bad status", func(f *LabReportForm) { f.Status = "unclear" }, "status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, d := newTestService()
			form := validForm()
			tt.edit(&form)
			_, err := svc.AddLabReport(context.Background(), doctorID, form, pdfUpload())
			var ve *validation.Error
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Fatalf("expected validation error on %s, got %v", tt.field, err)
			}
			if d.store.Len() != 0 {
				t.Error("nothing should be stored")
			}
		})
	}

	svc, _ := newTestService()
	_, err := svc.AddLabReport(context.Background(), doctorID, validForm(), Upload{})
	var ve *validation.Error
	if !errors.As(err, &ve) || ve.Field != "file" {
		t.Errorf("expected file is required, got %v", err)
	}
}

func TestService_AddLabReport_RemovesObjectWhenRecordFails(t *testing.T) {
	svc, d := newTestService()
	d.repo.createErr = errors.New("insert failed")

	_, err := svc.AddLabReport(context.Background(), doctorID, validForm(), pdfUpload())
	if err == nil {
		t.Fatal("expected error")
	}
	if d.store.Len() != 0 {
		t.Error("orphaned object should be deleted")
	}
	if d.observer.outcomes[0] != "failed" {
		t.Errorf("expected failed outcome, got %v", d.observer.outcomes)
	}
}

func TestService_AddLabReport_JPGAlias(t *testing.T) {
	jpeg := append([]byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"), make([]byte, 32)...)
	svc, _ := newTestService()
	r, err := svc.AddLabReport(context.Background(), doctorID, validForm(),
		Upload{Name: "scan.jpg", ContentType: "image/jpg", Size: int64(len(jpeg)), Body: bytes.NewReader(jpeg)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.ContentType != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", r.ContentType)
	}
}
