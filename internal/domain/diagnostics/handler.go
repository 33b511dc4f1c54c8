package diagnostics

import (
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/portal/internal/platform/access"
	"github.com/ehr/portal/internal/platform/auth"
	"github.com/ehr/portal/internal/platform/blobstore"
	"github.com/ehr/portal/internal/platform/notice"
	"github.com/ehr/portal/internal/platform/validation"
	"github.com/ehr/portal/pkg/pagination"
)

type Handler struct {
	svc      *Service
	resolver access.Resolver
}

func NewHandler(svc *Service, resolver access.Resolver) *Handler {
	return &Handler{svc: svc, resolver: resolver}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	writer := auth.RequireRole(auth.RoleDoctor)
	api.POST("/lab-reports", h.AddLabReport, writer)
	api.GET("/lab-reports/test-types", h.ListTestTypes, writer)

	reader := auth.RequireSession()
	api.GET("/lab-reports", h.ListLabReports, reader)
	api.GET("/lab-reports/:id", h.GetLabReport, reader)
	api.GET("/lab-reports/:id/file", h.DownloadFile, reader)
	api.HEAD("/lab-reports/:id/file", h.FileInfo, reader)
}

// AddLabReport accepts a multipart form with the report fields and a
// "file" part.
func (h *Handler) AddLabReport(c echo.Context) error {
	ctx := c.Request().Context()
	doctorID, err := access.DoctorID(ctx, h.resolver)
	if err != nil {
		return err
	}
	var form LabReportForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form data")
	}

	var up Upload
	fh, err := c.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, "invalid file upload")
	default:
		f, err := fh.Open()
		if err != nil {
			return fmt.Errorf("open upload: %w", err)
		}
		defer f.Close()
		up = Upload{Name: fh.Filename, ContentType: fh.Header.Get(echo.HeaderContentType), Size: fh.Size, Body: f}
	}

	report, err := h.svc.AddLabReport(ctx, doctorID, form, up)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusCreated, notice.Result{
		Data:     NewView(report),
		Notice:   notice.Success("Lab Report Added", "The lab report has been successfully uploaded and saved."),
		Redirect: auth.DoctorDashboardPath,
	})
}

func (h *Handler) ListTestTypes(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"test_types": TestTypes})
}

func (h *Handler) ListLabReports(c echo.Context) error {
	ctx := c.Request().Context()
	patientID, err := access.PatientScope(ctx, h.resolver, c.QueryParam("patient_id"))
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(ctx, patientID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(NewViews(items), total, pg.Limit, pg.Offset))
}

func (h *Handler) readable(c echo.Context) (*LabReport, error) {
	ctx := c.Request().Context()
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.GetLabReport(ctx, id)
	if err != nil {
		return nil, h.mapError(err)
	}
	ok, err := access.CanRead(ctx, h.resolver, r.PatientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, h.mapError(ErrNotFound)
	}
	return r, nil
}

func (h *Handler) GetLabReport(c echo.Context) error {
	r, err := h.readable(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, NewView(r))
}

// DownloadFile streams the stored file with the content type recorded at
// upload.
func (h *Handler) DownloadFile(c echo.Context) error {
	r, err := h.readable(c)
	if err != nil {
		return err
	}
	body, _, err := h.svc.OpenFile(c.Request().Context(), r)
	if err != nil {
		return h.mapError(err)
	}
	defer body.Close()

	c.Response().Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": r.FileName}))
	c.Response().Header().Set(echo.HeaderContentLength, fmt.Sprint(r.SizeBytes))
	return c.Stream(http.StatusOK, r.ContentType, body)
}

// FileInfo answers HEAD for a report file from the stored object's metadata.
func (h *Handler) FileInfo(c echo.Context) error {
	r, err := h.readable(c)
	if err != nil {
		return err
	}
	obj, err := h.svc.FileInfo(c.Request().Context(), r)
	if err != nil {
		return h.mapError(err)
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = r.ContentType
	}
	hdr := c.Response().Header()
	hdr.Set(echo.HeaderContentType, contentType)
	hdr.Set(echo.HeaderContentLength, fmt.Sprint(obj.Size))
	hdr.Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": r.FileName}))
	return c.NoContent(http.StatusOK)
}

func (h *Handler) mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "lab report not found")
	case errors.Is(err, blobstore.ErrBlobNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "lab report file not found")
	case errors.Is(err, access.ErrUnknownPatient):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return notice.NewError(http.StatusRequestEntityTooLarge, "File Too Large",
			fmt.Sprintf("Please upload a file smaller than %dMB.", h.svc.MaxBytes()>>20))
	case errors.Is(err, blobstore.ErrInvalidContentType):
		return notice.NewError(http.StatusUnsupportedMediaType, "Invalid File Type", "Please upload a PDF, JPG, or PNG file.")
	case errors.Is(err, blobstore.ErrEmptyFile), errors.Is(err, blobstore.ErrMissingFileName):
		return &validation.Error{Field: "file", Message: err.Error()}
	}
	return err
}
