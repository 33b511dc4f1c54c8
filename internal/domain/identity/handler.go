package identity

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/portal/internal/platform/auth"
	"github.com/ehr/portal/internal/platform/notice"
	"github.com/ehr/portal/internal/platform/validation"
	"github.com/ehr/portal/pkg/pagination"
)

// AuthObserver receives sign-in and sign-up outcomes for metrics.
type AuthObserver interface {
	ObserveAuth(method, status string)
}

type HandlerConfig struct {
	CookieName   string
	SecureCookie bool
	Observer     AuthObserver
}

type Handler struct {
	svc *Service
	cfg HandlerConfig
}

func NewHandler(svc *Service, cfg HandlerConfig) *Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = "ehr_session"
	}
	return &Handler{svc: svc, cfg: cfg}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/auth/signup", h.SignUp)
	api.POST("/auth/signin", h.SignIn)
	api.GET("/auth/session", h.Session)
	api.POST("/auth/signout", h.SignOut, auth.RequireSession())

	doctor := auth.RequireRole(auth.RoleDoctor)
	api.GET("/patients", h.ListPatients, doctor)
	api.GET("/patients/search", h.SearchPatients, doctor)

	api.GET("/patients/:id", h.GetPatient, auth.RequireSession())
}

func (h *Handler) observe(method, status string) {
	if h.cfg.Observer != nil {
		h.cfg.Observer.ObserveAuth(method, status)
	}
}

// -- Session --

func (h *Handler) SignUp(c echo.Context) error {
	var req SignUpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	acct, err := h.svc.SignUp(c.Request().Context(), req)
	switch {
	case err == nil:
	case errors.Is(err, ErrEmailTaken):
		h.observe("signup", "conflict")
		return notice.NewError(http.StatusConflict, "Account Exists",
			"This email is already registered. Please try logging in instead.")
	case validation.IsValidationError(err):
		h.observe("signup", "invalid")
		return err
	default:
		h.observe("signup", "error")
		return err
	}

	h.observe("signup", "success")
	return c.JSON(http.StatusCreated, notice.Result{
		Data:     acct,
		Notice:   notice.Success("Account Created", "Your account is ready. Please sign in."),
		Redirect: auth.LoginPath,
	})
}

func (h *Handler) SignIn(c echo.Context) error {
	var req SignInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.SignIn(c.Request().Context(), req)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidCredentials):
		h.observe("signin", "failure")
		return notice.NewError(http.StatusUnauthorized, "Login Failed", "Invalid email or password")
	case validation.IsValidationError(err):
		h.observe("signin", "invalid")
		return err
	default:
		h.observe("signin", "error")
		return err
	}

	h.observe("signin", "success")
	c.SetCookie(&http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.Session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(http.StatusOK, notice.Result{
		Data:     res,
		Notice:   notice.Success("Login Successful", "Welcome back!"),
		Redirect: res.Session.Role.Dashboard(),
	})
}

func (h *Handler) SignOut(c echo.Context) error {
	sess := auth.SessionFromContext(c.Request().Context())
	if err := h.svc.SignOut(c.Request().Context(), sess); err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(http.StatusOK, notice.Result{
		Notice:   notice.Success("Signed Out", "You have been signed out."),
		Redirect: auth.LoginPath,
	})
}

type sessionResponse struct {
	State   string        `json:"state"`
	Session *auth.Session `json:"session,omitempty"`
}

// Session reports the caller's session state without requiring one.
func (h *Handler) Session(c echo.Context) error {
	sess := h.svc.CurrentSession(c.Request().Context())
	resp := sessionResponse{State: sess.State.String()}
	if sess.IsAuthenticated() {
		resp.Session = &sess
	}
	return c.JSON(http.StatusOK, resp)
}

// -- Patient --

func (h *Handler) SearchPatients(c echo.Context) error {
	results, err := h.svc.SearchPatients(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": results, "total": len(results)})
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	patients, total, err := h.svc.ListPatients(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, pg.Limit, pg.Offset))
}

// GetPatient returns a patient record. Doctors may read any patient;
// patients only their own.
func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return err
	}

	sess := auth.SessionFromContext(c.Request().Context())
	if sess.Role != auth.RoleDoctor && (p.AccountID == nil || p.AccountID.String() != sess.AccountID) {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, p)
}
