package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"vidgate/pkg/contracts/domain"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "invalid license", err: ErrInvalidLicense, want: domain.ErrCodeInvalidLicense},
		{name: "wrapped device mismatch", err: fmt.Errorf("validate: %w", ErrDeviceMismatch), want: domain.ErrCodeDeviceMismatch},
		{name: "expired", err: ErrExpired, want: domain.ErrCodeExpired},
		{name: "session expired", err: ErrSessionExpired, want: domain.ErrCodeSessionExpired},
		{name: "network", err: fmt.Errorf("store: %w", ErrNetwork), want: domain.ErrCodeNetwork},
		{name: "deadline is network", err: context.DeadlineExceeded, want: domain.ErrCodeNetwork},
		{name: "structure", err: ErrInvalidSessionStructure, want: domain.ErrCodeInvalidSessionStructure},
		{name: "no session", err: ErrNoSession, want: domain.ErrCodeNoSession},
		{name: "configuration is server error", err: ErrServerConfiguration, want: domain.ErrCodeServerError},
		{name: "conflict is server error", err: ErrConflict, want: domain.ErrCodeServerError},
		{name: "unknown is server error", err: errors.New("boom"), want: domain.ErrCodeServerError},
		{name: "coded error keeps remote code", err: &CodedError{Code: domain.ErrCodeExpired, Message: "x"}, want: domain.ErrCodeExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Code(tt.err))
		})
	}
}

func TestCodedError_Is(t *testing.T) {
	err := fmt.Errorf("login: %w", &CodedError{Code: domain.ErrCodeDeviceMismatch})

	assert.True(t, errors.Is(err, ErrDeviceMismatch))
	assert.False(t, errors.Is(err, ErrExpired))
	assert.Equal(t, "deviceMismatch", (&CodedError{Code: "deviceMismatch"}).Error())
}

func TestFromCode_RoundTrip(t *testing.T) {
	for _, code := range []string{
		domain.ErrCodeInvalidLicense,
		domain.ErrCodeDeviceMismatch,
		domain.ErrCodeExpired,
		domain.ErrCodeSessionExpired,
		domain.ErrCodeNetwork,
		domain.ErrCodeInvalidSessionStructure,
		domain.ErrCodeNoSession,
		domain.ErrCodeServerError,
	} {
		assert.Equal(t, code, Code(FromCode(code)), code)
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatus(""))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(domain.ErrCodeInvalidLicense))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(domain.ErrCodeDeviceMismatch))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(domain.ErrCodeExpired))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(domain.ErrCodeInvalidRequest))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(domain.ErrCodeServerError))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Your license has expired.", Message(domain.ErrCodeExpired, LangEnglish))
	assert.NotEqual(t, Message(domain.ErrCodeExpired, LangEnglish), Message(domain.ErrCodeExpired, LangArabic))
	assert.Equal(t, Message(domain.ErrCodeExpired, LangEnglish), Message(domain.ErrCodeExpired, "fr"), "unknown language falls back to English")
	assert.Equal(t, Message(domain.ErrCodeServerError, LangEnglish), Message("mystery", LangEnglish))
}
