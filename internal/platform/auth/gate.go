package auth

const (
	LoginPath            = "/login"
	DoctorDashboardPath  = "/doctor-dashboard"
	PatientDashboardPath = "/patient-dashboard"
)

// DecisionKind is the outcome of evaluating a protected page.
type DecisionKind int

const (
	DecisionLoading DecisionKind = iota
	DecisionRedirect
	DecisionRender
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionRedirect:
		return "redirect"
	case DecisionRender:
		return "render"
	default:
		return "loading"
	}
}

// Decision tells the page layer what to do. Path is set only for redirects.
type Decision struct {
	Kind DecisionKind
	Path string
}

func Loading() Decision               { return Decision{Kind: DecisionLoading} }
func Render() Decision                { return Decision{Kind: DecisionRender} }
func RedirectTo(path string) Decision { return Decision{Kind: DecisionRedirect, Path: path} }

// Evaluate decides whether a page guarded by required may be shown for s.
// An empty required role admits any authenticated session. A role mismatch
// sends the caller to their own dashboard, never to an error page.
func Evaluate(s Session, required Role) Decision {
	switch s.State {
	case SessionUnresolved:
		return Loading()
	case SessionAuthenticated:
		if required != "" && s.Role != required {
			return RedirectTo(s.Role.Dashboard())
		}
		return Render()
	default:
		return RedirectTo(LoginPath)
	}
}
