// Package notice defines the toast-style messages returned to the browser
// and the echo error handler that renders every failure as one.
package notice

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/portal/internal/platform/validation"
)

type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notice is a transient user-facing message.
type Notice struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Variant     Variant `json:"variant"`
}

func Success(title, description string) *Notice {
	return &Notice{Title: title, Description: description, Variant: VariantDefault}
}

func Failure(title, description string) *Notice {
	return &Notice{Title: title, Description: description, Variant: VariantDestructive}
}

// Result is the body of every mutating API response: the stored record, the
// notice to show, and where the browser should go next.
type Result struct {
	Data     interface{} `json:"data,omitempty"`
	Notice   *Notice     `json:"notice,omitempty"`
	Redirect string      `json:"redirect,omitempty"`
}

// ErrorBody is returned for every failed request.
type ErrorBody struct {
	Notice *Notice `json:"notice"`
	Field  string  `json:"field,omitempty"`
}

// Error is an HTTP error that carries its own notice title, for failures
// the browser shows with a specific heading such as "Login Failed".
type Error struct {
	Code        int
	Title       string
	Description string
}

func (e *Error) Error() string { return e.Description }

func NewError(code int, title, description string) *Error {
	return &Error{Code: code, Title: title, Description: description}
}

var titles = map[int]string{
	http.StatusBadRequest:            "Validation Error",
	http.StatusUnauthorized:          "Sign In Required",
	http.StatusForbidden:             "Access Denied",
	http.StatusNotFound:              "Not Found",
	http.StatusConflict:              "Already Exists",
	http.StatusRequestEntityTooLarge: "File Too Large",
	http.StatusUnsupportedMediaType:  "Unsupported File Type",
	http.StatusTooManyRequests:       "Too Many Requests",
	http.StatusServiceUnavailable:    "Please Wait",
}

const genericFailure = "Something went wrong. Please try again."

// ErrorHandler renders errors as an ErrorBody. Server errors are logged and
// their details are not sent to the client.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		description := genericFailure
		field := ""
		title := ""

		var ne *Error
		var he *echo.HTTPError
		var ve *validation.Error
		switch {
		case errors.As(err, &ne):
			code = ne.Code
			title = ne.Title
			if code < http.StatusInternalServerError {
				description = ne.Description
			}
		case errors.As(err, &ve):
			code = http.StatusBadRequest
			description = ve.Message
			field = ve.Field
		case errors.As(err, &he):
			code = he.Code
			if code < http.StatusInternalServerError || code == http.StatusServiceUnavailable {
				description = fmt.Sprint(he.Message)
			}
		}

		if code >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Int("status", code).
				Msg("request failed")
		}

		if title == "" {
			var ok bool
			if title, ok = titles[code]; !ok {
				title = "Error"
			}
		}
		body := ErrorBody{Notice: Failure(title, description), Field: field}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}
