package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/portal/internal/platform/auth"
)

// AuditEntry records who touched which patient record, and how.
type AuditEntry struct {
	AccountID  string
	Role       string
	Resource   string
	PatientID  string
	Action     string // read, create, update, delete
	IPAddress  string
	UserAgent  string
	Path       string
	Method     string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// AuditRecorder persists audit entries somewhere other than the log.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// auditedResources are the /api/v1 collections that carry patient data.
var auditedResources = map[string]bool{
	"patients":      true,
	"diagnoses":     true,
	"prescriptions": true,
	"vaccinations":  true,
	"lab-reports":   true,
	"appointments":  true,
	"dashboard":     true,
}

// Audit logs every request against a patient record collection as a
// record_access event, after the handler has run so the status is known.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			resource := extractResource(req.URL.Path)
			if !auditedResources[resource] {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			sess := auth.SessionFromContext(req.Context())
			entry := AuditEntry{
				AccountID:  sess.AccountID,
				Role:       string(sess.Role),
				Resource:   resource,
				PatientID:  extractPatientID(c, resource),
				Action:     httpMethodToAction(req.Method),
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				Path:       req.URL.Path,
				Method:     req.Method,
				Timestamp:  time.Now().UTC(),
				StatusCode: status,
			}
			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("account_id", entry.AccountID).
				Str("role", entry.Role).
				Str("resource", entry.Resource).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Int("status", entry.StatusCode).
				Msg("record_access")

			return err
		}
	}
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// extractResource returns the first segment after /api/v1/, e.g. "diagnoses"
// for /api/v1/diagnoses/123.
func extractResource(path string) string {
	if !strings.HasPrefix(path, "/api/v1/") {
		return ""
	}
	seg, _, _ := strings.Cut(strings.TrimPrefix(path, "/api/v1/"), "/")
	return seg
}

// extractPatientID looks for /api/v1/patients/<uuid> and then the
// patient_id query or form value.
func extractPatientID(c echo.Context, resource string) string {
	if resource == "patients" {
		rest := strings.TrimPrefix(c.Request().URL.Path, "/api/v1/patients/")
		seg, _, _ := strings.Cut(rest, "/")
		if _, err := uuid.Parse(seg); err == nil {
			return seg
		}
	}
	if id := c.QueryParam("patient_id"); id != "" {
		return id
	}
	return ""
}
