// Package response defines the JSON error envelope shared by handlers and
// middlewares.
package response

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

const StatusError = "error"

type Response struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var (
	EmptyRequestBody   = Error("empty request body")
	InvalidRequestBody = Error("invalid request body")
	InvalidInput       = Error("invalid input")
	InvalidCursor      = Error("invalid cursor")
	LinkNotFound       = Error("link not found")
	ShortCodeExists    = Error("short code already exists")
	Unauthorized       = Error("unauthorized")
	TooManyRequests    = Error("too many requests")
	ResolveTimeout     = Error("resolve timeout")
	StorageUnavailable = Error("storage unavailable")
	ServerError        = Error("server error occurred")
)

func Error(msg string) Response {
	return Response{
		Status:  StatusError,
		Message: msg,
	}
}

// Render writes resp with the given status code.
func Render(w http.ResponseWriter, r *http.Request, statusCode int, resp Response) {
	render.Status(r, statusCode)
	render.JSON(w, r, resp)
}

func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "url", "http_url":
		return "invalid url"
	case "max":
		return "value is too long"
	case "alphanumunicode", "short_code":
		return "invalid short code"
	default:
		return "invalid value"
	}
}

func getValidationErrors(err error) []ValidationError {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return nil
	}

	errs := make([]ValidationError, 0, len(validationErrs))
	for _, e := range validationErrs {
		errs = append(errs, ValidationError{
			Field:   e.Field(),
			Message: messageForTag(e.Tag()),
		})
	}

	return errs
}

// Validation builds the response for a failed validator.Struct call.
func Validation(err error) Response {
	return Response{
		Status:  StatusError,
		Message: "validation error",
		Errors:  getValidationErrors(err),
	}
}
