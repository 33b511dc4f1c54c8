package diagnostics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/ehr/portal/internal/platform/access"
	"github.com/ehr/portal/internal/platform/blobstore"
	"github.com/ehr/portal/internal/platform/validation"
	"github.com/ehr/portal/pkg/dates"
)

// UploadObserver is told the outcome of every upload attempt.
type UploadObserver interface {
	ObserveUpload(outcome string, size int64)
}

// Upload is the file part of a lab report submission.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Service struct {
	reports  LabReportRepository
	store    blobstore.Store
	patients access.Directory
	maxBytes int64
	observer UploadObserver
}

type ServiceConfig struct {
	MaxBytes int64
	Observer UploadObserver
}

func NewService(reports LabReportRepository, store blobstore.Store, patients access.Directory, cfg ServiceConfig) *Service {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = blobstore.MaxLabReportSize
	}
	return &Service{
		reports:  reports,
		store:    store,
		patients: patients,
		maxBytes: cfg.MaxBytes,
		observer: cfg.Observer,
	}
}

func (s *Service) MaxBytes() int64 { return s.maxBytes }

func (s *Service) observe(outcome string, size int64) {
	if s.observer != nil {
		s.observer.ObserveUpload(outcome, size)
	}
}

// AddLabReport validates the form and the file, stores the file and then
// records its metadata. Nothing reaches the blob store unless every check
// passes, and the stored object is removed again if the record cannot be
// written.
func (s *Service) AddLabReport(ctx context.Context, doctorID uuid.UUID, form LabReportForm, up Upload) (*LabReport, error) {
	report, err := s.buildReport(ctx, doctorID, form)
	if err != nil {
		s.observe("rejected_form", up.Size)
		return nil, err
	}
	if up.Body == nil {
		s.observe("rejected_form", 0)
		return nil, &validation.Error{Field: "file", Message: "file is required"}
	}

	head := make([]byte, blobstore.SniffLen)
	n, err := io.ReadFull(up.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		s.observe("failed", up.Size)
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	contentType, err := blobstore.ValidateFile(blobstore.FileHeader{
		Name:         up.Name,
		DeclaredType: up.ContentType,
		Size:         up.Size,
	}, head, s.maxBytes)
	if err != nil {
		s.observe(rejection(err), up.Size)
		return nil, err
	}

	report.ID = uuid.New()
	report.ObjectKey = fmt.Sprintf("lab-reports/%s/%s%s", report.PatientID, report.ID, blobstore.Extension(contentType))
	obj, err := s.store.Upload(ctx, report.ObjectKey, contentType, io.MultiReader(bytes.NewReader(head), up.Body), up.Size)
	if err != nil {
		s.observe("failed", up.Size)
		return nil, fmt.Errorf("store lab report file: %w", err)
	}

	report.FileName = strings.TrimSpace(up.Name)
	report.ContentType = contentType
	report.SizeBytes = obj.Size
	report.Checksum = obj.Checksum
	if err := s.reports.Create(ctx, report); err != nil {
		s.observe("failed", up.Size)
		if delErr := s.store.Delete(ctx, report.ObjectKey); delErr != nil {
			err = errors.Join(err, fmt.Errorf("remove orphaned object %s: %w", report.ObjectKey, delErr))
		}
		return nil, fmt.Errorf("save lab report: %w", err)
	}
	s.observe("accepted", obj.Size)
	return report, nil
}

func (s *Service) buildReport(ctx context.Context, doctorID uuid.UUID, form LabReportForm) (*LabReport, error) {
	if err := validation.Struct(form); err != nil {
		return nil, err
	}
	if !IsTestType(form.TestType) {
		return nil, &validation.Error{Field: "test_type", Message: "test_type must be one of the listed lab tests"}
	}
	date, err := dates.Parse(form.Date)
	if err != nil {
		return nil, err
	}
	patientID, err := uuid.Parse(form.PatientID)
	if err != nil {
		return nil, err
	}
	if err := access.RequirePatient(ctx, s.patients, patientID); err != nil {
		return nil, err
	}

	r := &LabReport{
		PatientID: patientID,
		Date:      date,
		TestType:  form.TestType,
		Status:    Status(form.Status),
		Remarks:   optional(form.Remarks),
		Tags:      ParseTags(form.Tags),
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	if doctorID != uuid.Nil {
		r.DoctorID = &doctorID
	}
	return r, nil
}

func rejection(err error) string {
	switch {
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return "rejected_size"
	case errors.Is(err, blobstore.ErrInvalidContentType):
		return "rejected_type"
	default:
		return "rejected_file"
	}
}

func (s *Service) GetLabReport(ctx context.Context, id uuid.UUID) (*LabReport, error) {
	return s.reports.GetByID(ctx, id)
}

// OpenFile returns the stored file of a report. The caller closes it.
func (s *Service) OpenFile(ctx context.Context, r *LabReport) (io.ReadCloser, *blobstore.Object, error) {
	return s.store.Download(ctx, r.ObjectKey)
}

// FileInfo reports what the store holds for a report without reading it.
func (s *Service) FileInfo(ctx context.Context, r *LabReport) (*blobstore.Object, error) {
	return s.store.Stat(ctx, r.ObjectKey)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*LabReport, int, error) {
	return s.reports.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListRecentByDoctor(ctx context.Context, doctorID uuid.UUID, limit int) ([]*LabReport, error) {
	return s.reports.ListRecentByDoctor(ctx, doctorID, limit)
}
