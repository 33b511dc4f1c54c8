package clinical

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/portal/internal/platform/access"
	"github.com/ehr/portal/internal/platform/auth"
	"github.com/ehr/portal/internal/platform/notice"
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
	api.POST("/diagnoses", h.CreateDiagnosis, auth.RequireRole(auth.RoleDoctor))

	reader := auth.RequireSession()
	api.GET("/diagnoses", h.ListDiagnoses, reader)
	api.GET("/diagnoses/:id", h.GetDiagnosis, reader)
}

func (h *Handler) CreateDiagnosis(c echo.Context) error {
	ctx := c.Request().Context()
	doctorID, err := access.DoctorID(ctx, h.resolver)
	if err != nil {
		return err
	}
	var form DiagnosisForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	d, err := h.svc.CreateDiagnosis(ctx, doctorID, form)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, notice.Result{
		Data:     NewView(d),
		Notice:   notice.Success("Diagnosis Added", "The diagnosis has been successfully added to the patient's record."),
		Redirect: auth.DoctorDashboardPath,
	})
}

// ListDiagnoses lists one patient's diagnoses, newest first. Patients
// always get their own.
func (h *Handler) ListDiagnoses(c echo.Context) error {
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

func (h *Handler) GetDiagnosis(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.GetDiagnosis(ctx, id)
	if err != nil {
		return mapError(err)
	}
	ok, err := access.CanRead(ctx, h.resolver, d.PatientID)
	if err != nil {
		return err
	}
	if !ok {
		return mapError(ErrNotFound)
	}
	return c.JSON(http.StatusOK, NewView(d))
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "diagnosis not found")
	case errors.Is(err, access.ErrUnknownPatient):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return err
}
