package medication

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/portal/internal/platform/access"
	"github.com/ehr/portal/internal/platform/auth"
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
	api.POST("/prescriptions", h.CreatePrescription, writer)
	api.GET("/prescriptions/draft", h.NewDraft, writer)
	api.POST("/prescriptions/draft", h.EditDraft, writer)

	reader := auth.RequireSession()
	api.GET("/prescriptions", h.ListPrescriptions, reader)
	api.GET("/prescriptions/:id", h.GetPrescription, reader)
}

func (h *Handler) CreatePrescription(c echo.Context) error {
	ctx := c.Request().Context()
	doctorID, err := access.DoctorID(ctx, h.resolver)
	if err != nil {
		return err
	}
	var form PrescriptionForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.CreatePrescription(ctx, doctorID, form)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, notice.Result{
		Data:     NewView(p, h.svc.Now(), h.svc.Location()),
		Notice:   notice.Success("Prescription Created", "The prescription has been successfully created and saved."),
		Redirect: auth.DoctorDashboardPath,
	})
}

// NewDraft returns the blank add-prescription form.
func (h *Handler) NewDraft(c echo.Context) error {
	return c.JSON(http.StatusOK, NewDraft(h.svc.Now(), h.svc.Location()))
}

// EditDraft applies one add, remove or update to a draft's medication list
// and returns the new list. Nothing is stored.
func (h *Handler) EditDraft(c echo.Context) error {
	var edit DraftEdit
	if err := c.Bind(&edit); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validation.Struct(edit); err != nil {
		return err
	}
	meds, err := ApplyDraftEdit(edit)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"medications": meds})
}

func (h *Handler) ListPrescriptions(c echo.Context) error {
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

func (h *Handler) GetPrescription(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetPrescription(ctx, id)
	if err != nil {
		return mapError(err)
	}
	ok, err := access.CanRead(ctx, h.resolver, p.PatientID)
	if err != nil {
		return err
	}
	if !ok {
		return mapError(ErrNotFound)
	}
	return c.JSON(http.StatusOK, NewView(p, h.svc.Now(), h.svc.Location()))
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "prescription not found")
	case errors.Is(err, access.ErrUnknownPatient):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return err
}
