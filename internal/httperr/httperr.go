package httperr

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Code is the stable machine-readable identifier carried in every error
// body. Clients match on Code, Details is for humans only.
type Code string

const (
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeForbidden          Code = "FORBIDDEN"
	CodeExpired            Code = "EXPIRED"
	CodeNotFound           Code = "NOT_FOUND"
	CodeDuplicateEntity    Code = "DUPLICATE_ENTITY"
	CodeValidationError    Code = "VALIDATION_ERROR"
	CodeInvalidEmail       Code = "INVALID_EMAIL"
	CodeInvalidResetLink   Code = "INVALID_RESET_LINK"
	CodePasswordsNotSame   Code = "PASSWORDS_NOT_SAME"
	CodeCourseNotFound     Code = "COURSE_NOT_FOUND"
	CodeSectionExists      Code = "SECTION_EXISTS"
	CodeSectionNotFound    Code = "SECTION_NOT_FOUND"
	CodeSectionEnrolled    Code = "SECTION_ALREADY_ENROLLED"
	CodeInstructorNotFound Code = "INSTRUCTOR_NOT_FOUND"
	CodeStudentNotFound    Code = "STUDENT_NOT_FOUND"
	CodeUnknownError       Code = "UNKNOWN_ERROR"
)

type Error struct {
	Status          int      `json:"-"`
	Code            Code     `json:"code"`
	Details         string   `json:"details"`
	DuplicateFields []string `json:"duplicate_fields,omitempty"`
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Details
}

func New(status int, code Code, details string) *Error {
	return &Error{Status: status, Code: code, Details: details}
}

func Forbidden() *Error {
	return New(http.StatusForbidden, CodeForbidden, "Could not validate credentials")
}

func InvalidCredentials() *Error {
	return New(http.StatusUnauthorized, CodeInvalidCredentials, "invalid username or password")
}

func NotFound(details string) *Error {
	return New(http.StatusNotFound, CodeNotFound, details)
}

func Validation(details string) *Error {
	return New(http.StatusBadRequest, CodeValidationError, details)
}

func Duplicate(fields ...string) *Error {
	e := New(http.StatusBadRequest, CodeDuplicateEntity, "entity with the same unique fields already exists")
	e.DuplicateFields = fields
	return e
}

func Unknown() *Error {
	return New(http.StatusInternalServerError, CodeUnknownError, "Something Unexpected, Server Error")
}

// Handler converts every error escaping a handler into a structured JSON
// body. Business failures arrive as *Error; anything else is collapsed to
// UNKNOWN_ERROR so internals never reach the client.
func Handler(base *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var apiErr *Error
		if errors.As(err, &apiErr) {
			_ = c.JSON(apiErr.Status, apiErr)
			return
		}

		var echoErr *echo.HTTPError
		if errors.As(err, &echoErr) {
			_ = c.JSON(echoErr.Code, &Error{
				Code:    codeForStatus(echoErr.Code),
				Details: http.StatusText(echoErr.Code),
			})
			return
		}

		base.Error("unhandled error", "path", c.Path(), "error", err)
		_ = c.JSON(http.StatusInternalServerError, Unknown())
	}
}

func codeForStatus(status int) Code {
	switch status {
	case http.StatusBadRequest:
		return CodeValidationError
	case http.StatusUnauthorized:
		return CodeInvalidCredentials
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	default:
		return CodeUnknownError
	}
}
