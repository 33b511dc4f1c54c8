package portal

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/portal/internal/platform/access"
	"github.com/ehr/portal/internal/platform/auth"
	"github.com/ehr/portal/internal/platform/notice"
)

type Handler struct {
	svc      *Service
	resolver access.Resolver
}

func NewHandler(svc *Service, resolver access.Resolver) *Handler {
	return &Handler{svc: svc, resolver: resolver}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	doctor := auth.RequireRole(auth.RoleDoctor)
	api.GET("/dashboard/doctor", h.DoctorDashboard, doctor)
	api.POST("/appointments", h.BookAppointment, doctor)
	api.PATCH("/appointments/:id/status", h.UpdateAppointmentStatus, doctor)

	api.GET("/dashboard/patient", h.PatientDashboard, auth.RequireRole(auth.RolePatient))

	reader := auth.RequireSession()
	api.GET("/appointments", h.ListAppointments, reader)
	api.GET("/profile", h.GetProfile, reader)
	api.PUT("/profile", h.UpdateProfile, reader)
	api.PUT("/profile/settings", h.SaveSettings, reader)
	api.POST("/profile/settings/toggle", h.ToggleSetting, reader)
}

func sessionAccount(c echo.Context) (uuid.UUID, auth.Session, error) {
	sess := auth.SessionFromContext(c.Request().Context())
	id, err := uuid.Parse(sess.AccountID)
	if err != nil {
		return uuid.Nil, sess, echo.NewHTTPError(http.StatusUnauthorized, "sign in required")
	}
	return id, sess, nil
}

// -- Dashboards --

func (h *Handler) DoctorDashboard(c echo.Context) error {
	acct, _, err := sessionAccount(c)
	if err != nil {
		return err
	}
	dash, err := h.svc.DoctorDashboard(c.Request().Context(), acct)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, dash)
}

func (h *Handler) PatientDashboard(c echo.Context) error {
	acct, _, err := sessionAccount(c)
	if err != nil {
		return err
	}
	dash, err := h.svc.PatientDashboard(c.Request().Context(), acct)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, dash)
}

// -- Appointments --

func (h *Handler) BookAppointment(c echo.Context) error {
	ctx := c.Request().Context()
	doctorID, err := access.DoctorID(ctx, h.resolver)
	if err != nil {
		return err
	}
	var form AppointmentForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.BookAppointment(ctx, doctorID, form)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, notice.Result{
		Data:     a,
		Notice:   notice.Success("Appointment Scheduled", "The appointment has been added to the schedule."),
		Redirect: auth.DoctorDashboardPath,
	})
}

func (h *Handler) UpdateAppointmentStatus(c echo.Context) error {
	ctx := c.Request().Context()
	doctorID, err := access.DoctorID(ctx, h.resolver)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var upd AppointmentStatusUpdate
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.UpdateAppointmentStatus(ctx, doctorID, id, upd)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, notice.Result{
		Data:   a,
		Notice: notice.Success("Appointment Updated", fmt.Sprintf("The appointment is now %s.", a.Status)),
	})
}

func (h *Handler) ListAppointments(c echo.Context) error {
	_, sess, err := sessionAccount(c)
	if err != nil {
		return err
	}
	items, err := h.svc.UpcomingFor(c.Request().Context(), sess, dashboardLimit)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items})
}

// -- Profile --

func (h *Handler) GetProfile(c echo.Context) error {
	acct, sess, err := sessionAccount(c)
	if err != nil {
		return err
	}
	prof, err := h.svc.GetProfile(c.Request().Context(), acct, sess.Role)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, prof)
}

// UpdateProfile saves the patient's personal information or the doctor's
// professional information, depending on the caller's role.
func (h *Handler) UpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()
	acct, sess, err := sessionAccount(c)
	if err != nil {
		return err
	}

	if sess.Role == auth.RoleDoctor {
		var form DoctorProfileForm
		if err := c.Bind(&form); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		d, err := h.svc.UpdateDoctorProfile(ctx, acct, form)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(http.StatusOK, notice.Result{Data: d, Notice: settingsSaved("Professional")})
	}

	var form PatientProfileForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.UpdatePatientProfile(ctx, acct, form)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, notice.Result{
		Data:   p,
		Notice: notice.Success("Profile Updated", "Your personal information has been saved successfully."),
	})
}

func (h *Handler) SaveSettings(c echo.Context) error {
	acct, sess, err := sessionAccount(c)
	if err != nil {
		return err
	}
	var form SettingsForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	s, err := h.svc.SaveSection(c.Request().Context(), acct, sess.Role, form)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, notice.Result{Data: s, Notice: sectionNotice(sess.Role, form.Section)})
}

func (h *Handler) ToggleSetting(c echo.Context) error {
	acct, sess, err := sessionAccount(c)
	if err != nil {
		return err
	}
	var form ToggleForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	s, err := h.svc.ToggleSetting(c.Request().Context(), acct, sess.Role, form.Key)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, notice.Result{Data: s})
}

func settingsSaved(section string) *notice.Notice {
	return notice.Success("Settings Saved", section+" settings have been updated successfully.")
}

func sectionNotice(role auth.Role, section string) *notice.Notice {
	if role == auth.RoleDoctor {
		return settingsSaved(strings.ToUpper(section[:1]) + section[1:])
	}
	if section == SectionPrivacy {
		return notice.Success("Privacy Settings Updated", "Your privacy preferences have been saved.")
	}
	return notice.Success("Notification Settings Updated", "Your notification preferences have been saved.")
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	case errors.Is(err, access.ErrUnknownPatient):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case IsMissingProfile(err):
		return echo.NewHTTPError(http.StatusNotFound, "profile not found")
	}
	return err
}
