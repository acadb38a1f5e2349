package errors

import (
	"context"
	"errors"
	"net/http"

	"vidgate/pkg/contracts/domain"
)

// Sentinel errors for the license taxonomy. Wrap them with fmt.Errorf("...: %w")
// and test with errors.Is.
var (
	ErrInvalidLicense          = errors.New("license not found")
	ErrDeviceMismatch          = errors.New("license bound to a different device")
	ErrExpired                 = errors.New("license expired")
	ErrSessionExpired          = errors.New("session expired")
	ErrNetwork                 = errors.New("network error")
	ErrInvalidSessionStructure = errors.New("invalid session structure")
	ErrServerConfiguration     = errors.New("license store not configured")
	ErrServer                  = errors.New("license server error")
	ErrNoSession               = errors.New("no session")
	ErrInvalidRequest          = errors.New("invalid request")
	ErrNotAuthenticated        = errors.New("not authenticated")

	// ErrConflict is returned by conditional store writes when the record
	// version moved underneath the caller.
	ErrConflict = errors.New("record version conflict")
)

// CodedError carries a wire error code received from a remote authority,
// so that a client can return the failure to its caller unmodified.
type CodedError struct {
	Code    string
	Message string
}

// Error implements the error interface
func (e *CodedError) Error() string {
	if e.Message != "" {
		return e.Code + ": " + e.Message
	}
	return e.Code
}

// Is lets errors.Is match a CodedError against the sentinel of the same code.
func (e *CodedError) Is(target error) bool {
	return FromCode(e.Code) == target
}

// FromCode maps a wire error code back to its sentinel.
func FromCode(code string) error {
	switch code {
	case domain.ErrCodeInvalidLicense:
		return ErrInvalidLicense
	case domain.ErrCodeDeviceMismatch:
		return ErrDeviceMismatch
	case domain.ErrCodeExpired:
		return ErrExpired
	case domain.ErrCodeSessionExpired:
		return ErrSessionExpired
	case domain.ErrCodeNetwork:
		return ErrNetwork
	case domain.ErrCodeInvalidSessionStructure:
		return ErrInvalidSessionStructure
	case domain.ErrCodeNoSession:
		return ErrNoSession
	case domain.ErrCodeInvalidRequest:
		return ErrInvalidRequest
	case domain.ErrCodeNotAuthenticated:
		return ErrNotAuthenticated
	default:
		return ErrServer
	}
}

// Code maps an error to the wire error code. Unknown errors are server_error.
func Code(err error) string {
	var coded *CodedError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &coded):
		return coded.Code
	case errors.Is(err, ErrInvalidLicense):
		return domain.ErrCodeInvalidLicense
	case errors.Is(err, ErrDeviceMismatch):
		return domain.ErrCodeDeviceMismatch
	case errors.Is(err, ErrExpired):
		return domain.ErrCodeExpired
	case errors.Is(err, ErrSessionExpired):
		return domain.ErrCodeSessionExpired
	case errors.Is(err, ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return domain.ErrCodeNetwork
	case errors.Is(err, ErrInvalidSessionStructure):
		return domain.ErrCodeInvalidSessionStructure
	case errors.Is(err, ErrNoSession):
		return domain.ErrCodeNoSession
	case errors.Is(err, ErrInvalidRequest):
		return domain.ErrCodeInvalidRequest
	case errors.Is(err, ErrNotAuthenticated):
		return domain.ErrCodeNotAuthenticated
	default:
		return domain.ErrCodeServerError
	}
}

// HTTPStatus returns the status code the authority answers with for a wire code.
func HTTPStatus(code string) int {
	switch code {
	case "":
		return http.StatusOK
	case domain.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case domain.ErrCodeInvalidLicense:
		return http.StatusNotFound
	case domain.ErrCodeDeviceMismatch, domain.ErrCodeExpired:
		return http.StatusForbidden
	case domain.ErrCodeNoSession, domain.ErrCodeSessionExpired, domain.ErrCodeNotAuthenticated:
		return http.StatusUnauthorized
	case domain.ErrCodeNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
