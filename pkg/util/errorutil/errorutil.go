package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/event-service/internal/domain"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewUnauthenticated is the single response for every token or session failure.
func NewUnauthenticated() error {
	return NewDomainError("UNAUTHENTICATED", "could not validate credentials", http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

func NewTooManyRequests(message string) error {
	return NewDomainError("TOO_MANY_REQUESTS", message, http.StatusTooManyRequests, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}

	switch {
	case domain.IsTokenError(err), errors.Is(err, domain.ErrCredentialsInvalid):
		return NewUnauthenticated().(*DomainError)
	case errors.Is(err, domain.ErrAuthFailed):
		return NewDomainError("AUTH_FAILED", domain.ErrAuthFailed.Error(), http.StatusUnauthorized, nil)
	case errors.Is(err, domain.ErrTooManyAttempts):
		return NewTooManyRequests(domain.ErrTooManyAttempts.Error()).(*DomainError)
	case errors.Is(err, domain.ErrForbidden):
		return NewForbidden("this action is only available to administrators").(*DomainError)
	case errors.Is(err, domain.ErrDuplicateIdentity):
		return NewDomainError("DUPLICATE_IDENTITY", domain.ErrDuplicateIdentity.Error(), http.StatusBadRequest, nil)
	case errors.Is(err, domain.ErrEventNotFound):
		return NewNotFound("event", nil).(*DomainError)
	case errors.Is(err, domain.ErrUserNotFound):
		return NewNotFound("user", nil).(*DomainError)
	case errors.Is(err, domain.ErrAlreadySubscribed):
		return NewDomainError("ALREADY_SUBSCRIBED", domain.ErrAlreadySubscribed.Error(), http.StatusConflict, nil)
	case errors.Is(err, domain.ErrNotSubscribed):
		return NewDomainError("NOT_SUBSCRIBED", domain.ErrNotSubscribed.Error(), http.StatusConflict, nil)
	case errors.Is(err, domain.ErrInvalidAction), errors.Is(err, domain.ErrInvalidInput):
		return NewValidationError(err.Error(), nil).(*DomainError)
	case errors.Is(err, pgx.ErrNoRows):
		return NewNotFound("resource", nil).(*DomainError)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return NewDomainError(statusCode(fiberErr.Code), fiberErr.Message, fiberErr.Code, nil)
	}

	return NewInternalError(err).(*DomainError)
}

// MapError converts err into a DomainError while keeping the error interface.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "ERROR"
	}
	return strings.ToUpper(strings.ReplaceAll(text, " ", "_"))
}
