package immunization

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
	api.POST("/vaccinations", h.RecordVaccination, auth.RequireRole(auth.RoleDoctor))

	reader := auth.RequireSession()
	api.GET("/vaccinations", h.ListVaccinations, reader)
	api.GET("/vaccinations/:id", h.GetVaccination, reader)
}

func (h *Handler) RecordVaccination(c echo.Context) error {
	ctx := c.Request().Context()
	doctorID, err := access.DoctorID(ctx, h.resolver)
	if err != nil {
		return err
	}
	var form VaccinationForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	v, err := h.svc.RecordVaccination(ctx, doctorID, form)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, notice.Result{
		Data:     NewView(v, h.svc.Now(), h.svc.Location()),
		Notice:   notice.Success("Vaccination Recorded", "The vaccination has been added to the patient's record."),
		Redirect: auth.DoctorDashboardPath,
	})
}

func (h *Handler) ListVaccinations(c echo.Context) error {
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
	views := NewViews(items, h.svc.Now(), h.svc.Location())
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetVaccination(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	v, err := h.svc.GetVaccination(ctx, id)
	if err != nil {
		return mapError(err)
	}
	ok, err := access.CanRead(ctx, h.resolver, v.PatientID)
	if err != nil {
		return err
	}
	if !ok {
		return mapError(ErrNotFound)
	}
	return c.JSON(http.StatusOK, NewView(v, h.svc.Now(), h.svc.Location()))
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "vaccination not found")
	case errors.Is(err, access.ErrUnknownPatient):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return err
}
