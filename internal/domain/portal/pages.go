package portal

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/portal/internal/domain/clinical"
	"github.com/ehr/portal/internal/domain/diagnostics"
	"github.com/ehr/portal/internal/domain/medication"
	"github.com/ehr/portal/internal/platform/auth"
)

// GateObserver records each page decision.
type GateObserver interface {
	ObserveGate(page, decision string)
}

type noopGateObserver struct{}

func (noopGateObserver) ObserveGate(string, string) {}

// PageBody is the payload of a rendered page.
type PageBody struct {
	Page string      `json:"page"`
	Data interface{} `json:"data,omitempty"`
}

type pageLoader func(c echo.Context, accountID uuid.UUID) (interface{}, error)

// page is one browser route. An empty role means the page is public.
type page struct {
	path string
	name string
	role auth.Role
	load pageLoader
}

type PagesConfig struct {
	LabReportMaxBytes int64
	Observer          GateObserver
}

// Pages serves the browser routes. Protected pages go through the role
// gate: a loading session gets 503, a redirect decision 302, and a render
// decision the page body.
type Pages struct {
	svc      *Service
	maxBytes int64
	observer GateObserver
	pages    []page
}

func NewPages(svc *Service, cfg PagesConfig) *Pages {
	if cfg.Observer == nil {
		cfg.Observer = noopGateObserver{}
	}
	p := &Pages{svc: svc, maxBytes: cfg.LabReportMaxBytes, observer: cfg.Observer}
	p.pages = []page{
		{path: "/doctor-dashboard", name: "doctor-dashboard", role: auth.RoleDoctor, load: p.doctorDashboard},
		{path: "/doctor-profile", name: "doctor-profile", role: auth.RoleDoctor, load: p.profile(auth.RoleDoctor)},
		{path: "/find-patient", name: "find-patient", role: auth.RoleDoctor},
		{path: "/add-diagnosis", name: "add-diagnosis", role: auth.RoleDoctor, load: p.diagnosisForm},
		{path: "/add-prescription", name: "add-prescription", role: auth.RoleDoctor, load: p.prescriptionForm},
		{path: "/add-lab-report", name: "add-lab-report", role: auth.RoleDoctor, load: p.labReportForm},
		{path: "/patient-dashboard", name: "patient-dashboard", role: auth.RolePatient, load: p.patientDashboard},
		{path: "/patient-profile", name: "patient-profile", role: auth.RolePatient, load: p.profile(auth.RolePatient)},
	}
	return p
}

func (p *Pages) Register(e *echo.Echo) {
	e.GET("/", p.Landing)
	e.GET(auth.LoginPath, p.Login)
	for _, pg := range p.pages {
		e.GET(pg.path, p.serve(pg))
	}
	e.RouteNotFound("/*", p.NotFound)
}

// Landing is public. A signed-in caller also gets a link to their dashboard.
func (p *Pages) Landing(c echo.Context) error {
	sess := auth.SessionFromContext(c.Request().Context())
	data := map[string]interface{}{}
	if sess.IsAuthenticated() {
		data["dashboard"] = sess.Role.Dashboard()
	}
	return c.JSON(http.StatusOK, PageBody{Page: "landing", Data: data})
}

// Login is public. A signed-in caller is sent to their dashboard instead.
func (p *Pages) Login(c echo.Context) error {
	sess := auth.SessionFromContext(c.Request().Context())
	if sess.IsAuthenticated() {
		p.observer.ObserveGate("login", auth.DecisionRedirect.String())
		return c.Redirect(http.StatusFound, sess.Role.Dashboard())
	}
	p.observer.ObserveGate("login", auth.DecisionRender.String())
	return c.JSON(http.StatusOK, PageBody{Page: "login"})
}

func (p *Pages) NotFound(c echo.Context) error {
	path := c.Request().URL.Path
	if strings.HasPrefix(path, "/api/") {
		return echo.ErrNotFound
	}
	return c.JSON(http.StatusNotFound, map[string]string{"page": "not-found", "path": path})
}

func (p *Pages) serve(pg page) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess := auth.SessionFromContext(c.Request().Context())
		d := auth.Evaluate(sess, pg.role)
		p.observer.ObserveGate(pg.name, d.Kind.String())

		switch d.Kind {
		case auth.DecisionLoading:
			c.Response().Header().Set("Retry-After", strconv.Itoa(1))
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"state": "loading"})
		case auth.DecisionRedirect:
			return c.Redirect(http.StatusFound, d.Path)
		}

		body := PageBody{Page: pg.name}
		if pg.load != nil {
			acct, err := uuid.Parse(sess.AccountID)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "sign in required")
			}
			if body.Data, err = pg.load(c, acct); err != nil {
				return mapError(err)
			}
		}
		return c.JSON(http.StatusOK, body)
	}
}

// -- Loaders --

func (p *Pages) doctorDashboard(c echo.Context, acct uuid.UUID) (interface{}, error) {
	return p.svc.DoctorDashboard(c.Request().Context(), acct)
}

func (p *Pages) patientDashboard(c echo.Context, acct uuid.UUID) (interface{}, error) {
	return p.svc.PatientDashboard(c.Request().Context(), acct)
}

func (p *Pages) profile(role auth.Role) pageLoader {
	return func(c echo.Context, acct uuid.UUID) (interface{}, error) {
		return p.svc.GetProfile(c.Request().Context(), acct, role)
	}
}

func (p *Pages) diagnosisForm(c echo.Context, _ uuid.UUID) (interface{}, error) {
	return map[string]interface{}{
		"patient_id": c.QueryParam("patient_id"),
		"severities": []clinical.Severity{clinical.SeverityMild, clinical.SeverityModerate, clinical.SeveritySevere, clinical.SeverityCritical},
		"statuses":   []clinical.Status{clinical.StatusConfirmed, clinical.StatusProvisional, clinical.StatusChronic, clinical.StatusResolved},
	}, nil
}

func (p *Pages) prescriptionForm(c echo.Context, _ uuid.UUID) (interface{}, error) {
	draft := medication.NewDraft(p.svc.Now(), p.svc.Location())
	draft.PatientID = c.QueryParam("patient_id")
	return map[string]interface{}{
		"draft":       draft,
		"frequencies": medication.Frequencies,
	}, nil
}

func (p *Pages) labReportForm(c echo.Context, _ uuid.UUID) (interface{}, error) {
	return map[string]interface{}{
		"patient_id":    c.QueryParam("patient_id"),
		"test_types":    diagnostics.TestTypes,
		"max_bytes":     p.maxBytes,
		"accepted_mime": []string{"application/pdf", "image/jpeg", "image/png"},
	}, nil
}
