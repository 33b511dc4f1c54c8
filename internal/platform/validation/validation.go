// Package validation wraps go-playground/validator with the portal's custom
// tags and user-facing messages.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const DateLayout = "2006-01-02"

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
	validate.RegisterValidation("notblank", validateNotBlank)
	validate.RegisterValidation("isodate", validateISODate)
}

// Error is the first failing field of a struct, phrased for display.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string { return e.Message }

// IsValidationError reports whether err came from Struct.
func IsValidationError(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}

// Struct validates s and returns an *Error for the first failing field.
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return err
	}
	return formatFirst(ves[0])
}

var messages = map[string]string{
	"required": "is required",
	"notblank": "is required",
	"email":    "must be a valid email address",
	"min":      "must be at least %s characters",
	"max":      "must be at most %s characters",
	"oneof":    "must be one of: %s",
	"isodate":  "must be a date in YYYY-MM-DD format",
	"gte":      "must be at least %s",
	"lte":      "must be at most %s",
	"uuid":     "must be a valid id",
}

func formatFirst(fe validator.FieldError) *Error {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	msg, ok := messages[fe.Tag()]
	if !ok {
		msg = "is invalid"
	}
	if strings.Contains(msg, "%s") {
		param := fe.Param()
		if fe.Tag() == "oneof" {
			param = strings.Join(strings.Fields(param), ", ")
		}
		if fe.Tag() == "min" && fe.Kind() == reflect.Slice {
			msg = "must have at least %s entries"
		}
		msg = strings.Replace(msg, "%s", param, 1)
	}
	return &Error{Field: field, Message: field + " " + msg}
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func validateISODate(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
